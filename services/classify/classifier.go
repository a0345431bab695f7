package classify

import "strings"

// Category is a coarse classification of a prompt's intent, used to bias
// backend selection toward specialised models.
type Category string

const (
	CategoryCode        Category = "code"
	CategoryCreative    Category = "creative"
	CategoryReasoning   Category = "reasoning"
	CategoryMath        Category = "math"
	CategoryLongContext Category = "long-context"
	CategoryMultimodal  Category = "multimodal"
	CategoryRealTime    Category = "real-time"
	CategoryGeneral     Category = "general"
)

type rule struct {
	category Category
	keywords []string
}

// Classifier maps a prompt to exactly one task category by checking an
// ordered list of keyword sets. The order is a fixed priority: the first
// matching category wins.
type Classifier struct {
	rules []rule
}

// New creates a classifier with the built-in keyword rules
func New() *Classifier {
	return &Classifier{
		rules: []rule{
			{CategoryCode, []string{"code", "function", "debug", "program", "script", "compile", "refactor"}},
			{CategoryCreative, []string{"story", "poem", "creative", "imagine", "fiction", "lyrics"}},
			{CategoryReasoning, []string{"analyze", "explain", "summarize", "reasoning", "compare", "evaluate"}},
			{CategoryMath, []string{"calculate", "equation", "math", "solve", "integral", "derivative", "proof"}},
			{CategoryLongContext, []string{"document", "transcript", "chapters", "entire file", "full text"}},
			{CategoryMultimodal, []string{"image", "picture", "photo", "diagram", "screenshot"}},
			{CategoryRealTime, []string{"latest", "current", "today", "news", "real-time", "right now"}},
		},
	}
}

// Classify returns the first category whose keyword set matches the prompt,
// or CategoryGeneral when nothing matches.
func (c *Classifier) Classify(prompt string) Category {
	lower := strings.ToLower(prompt)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return CategoryGeneral
}
