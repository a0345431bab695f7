package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := New()

	tests := []struct {
		name   string
		prompt string
		want   Category
	}{
		{"code", "Write a function to reverse a string", CategoryCode},
		{"creative", "Tell me a story about a dragon", CategoryCreative},
		{"reasoning", "Explain why the sky is blue", CategoryReasoning},
		{"math", "Solve this equation for x", CategoryMath},
		{"long context", "Here is the full text of the contract, review it", CategoryLongContext},
		{"multimodal", "What is in this image?", CategoryMultimodal},
		{"real-time", "What is the latest stock price?", CategoryRealTime},
		{"general", "Hello there", CategoryGeneral},
		{"case insensitive", "DEBUG this PROGRAM", CategoryCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.prompt))
		})
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	c := New()

	// "code" outranks "creative" when both keyword sets match
	got := c.Classify("Write a creative program that prints a poem")
	assert.Equal(t, CategoryCode, got)

	// "creative" outranks "reasoning"
	got = c.Classify("Write a poem that explains recursion")
	assert.Equal(t, CategoryCreative, got)
}
