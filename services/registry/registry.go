package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBackends is returned when a registry is constructed without profiles
	ErrNoBackends = errors.New("no backends registered")

	// ErrDuplicateBackend is returned when two profiles share a name
	ErrDuplicateBackend = errors.New("duplicate backend name")
)

// BackendProfile describes the fixed capability and cost characteristics of a
// registered model endpoint. Profiles are populated once at startup and are
// read-only afterwards.
type BackendProfile struct {
	// Name is the model identifier, e.g. "claude-sonnet-4"
	Name string

	// Provider is the upstream vendor, e.g. "anthropic"
	Provider string

	// ContextWindow is the maximum context size in tokens
	ContextWindow int

	// Capability flags
	SupportsFunctions bool
	SupportsVision    bool
	SupportsStreaming bool

	// AvgLatencyMS is the typical time-to-full-response in milliseconds
	AvgLatencyMS float64

	// Cost per one million tokens, in USD
	InputCostPerMillion  float64
	OutputCostPerMillion float64

	// QualityScore is a relative quality rating in [0,1]
	QualityScore float64

	// Specialties lists the task categories this backend is tuned for
	Specialties []string
}

// HasSpecialty reports whether the profile lists the given task category
func (p *BackendProfile) HasSpecialty(category string) bool {
	for _, s := range p.Specialties {
		if s == category {
			return true
		}
	}
	return false
}

// Registry is an immutable, ordered catalog of backend profiles. Registration
// order is preserved so that selection tie-breaks and failover iteration are
// deterministic (first-registered wins).
type Registry struct {
	order    []string
	profiles map[string]*BackendProfile
}

// New builds a registry from the given profiles, preserving their order.
func New(profiles []BackendProfile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, ErrNoBackends
	}

	r := &Registry{
		profiles: make(map[string]*BackendProfile, len(profiles)),
	}

	for i := range profiles {
		p := profiles[i]
		if p.Name == "" {
			return nil, fmt.Errorf("backend at position %d has no name", i)
		}
		if _, exists := r.profiles[p.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBackend, p.Name)
		}
		r.order = append(r.order, p.Name)
		r.profiles[p.Name] = &p
	}

	return r, nil
}

// Get retrieves a profile by backend name
func (r *Registry) Get(name string) (*BackendProfile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// Profiles returns all profiles in registration order
func (r *Registry) Profiles() []*BackendProfile {
	out := make([]*BackendProfile, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.profiles[name])
	}
	return out
}

// Providers returns the distinct provider names in registration order
func (r *Registry) Providers() []string {
	seen := make(map[string]bool, len(r.order))
	var out []string
	for _, name := range r.order {
		provider := r.profiles[name].Provider
		if !seen[provider] {
			seen[provider] = true
			out = append(out, provider)
		}
	}
	return out
}

// Len returns the number of registered backends
func (r *Registry) Len() int {
	return len(r.order)
}

// DefaultCatalog returns the built-in 2025 backend catalog. Deployments can
// replace it entirely from configuration.
func DefaultCatalog() []BackendProfile {
	return []BackendProfile{
		{
			Name:                 "gpt-5",
			Provider:             "openai",
			ContextWindow:        400000,
			SupportsFunctions:    true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			AvgLatencyMS:         800,
			InputCostPerMillion:  3.0,
			OutputCostPerMillion: 15.0,
			QualityScore:         0.95,
			Specialties:          []string{"reasoning", "creative", "code"},
		},
		{
			Name:                 "o3",
			Provider:             "openai",
			ContextWindow:        200000,
			SupportsFunctions:    true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			AvgLatencyMS:         2500,
			InputCostPerMillion:  15.0,
			OutputCostPerMillion: 60.0,
			QualityScore:         0.97,
			Specialties:          []string{"reasoning", "math"},
		},
		{
			Name:                 "o4-mini",
			Provider:             "openai",
			ContextWindow:        200000,
			SupportsFunctions:    true,
			SupportsVision:       false,
			SupportsStreaming:    true,
			AvgLatencyMS:         300,
			InputCostPerMillion:  0.15,
			OutputCostPerMillion: 0.60,
			QualityScore:         0.84,
			Specialties:          []string{"real-time", "math"},
		},
		{
			Name:                 "claude-opus-4.1",
			Provider:             "anthropic",
			ContextWindow:        200000,
			SupportsFunctions:    true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			AvgLatencyMS:         900,
			InputCostPerMillion:  15.0,
			OutputCostPerMillion: 75.0,
			QualityScore:         0.96,
			Specialties:          []string{"code", "reasoning", "creative"},
		},
		{
			Name:                 "claude-sonnet-4",
			Provider:             "anthropic",
			ContextWindow:        1000000,
			SupportsFunctions:    true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			AvgLatencyMS:         600,
			InputCostPerMillion:  3.0,
			OutputCostPerMillion: 15.0,
			QualityScore:         0.93,
			Specialties:          []string{"code", "long-context"},
		},
		{
			Name:                 "gemini-2.5-pro",
			Provider:             "google",
			ContextWindow:        1048576,
			SupportsFunctions:    true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			AvgLatencyMS:         700,
			InputCostPerMillion:  1.25,
			OutputCostPerMillion: 5.0,
			QualityScore:         0.92,
			Specialties:          []string{"multimodal", "long-context", "reasoning"},
		},
		{
			Name:                 "gemini-2.5-flash",
			Provider:             "google",
			ContextWindow:        1048576,
			SupportsFunctions:    true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			AvgLatencyMS:         250,
			InputCostPerMillion:  0.075,
			OutputCostPerMillion: 0.30,
			QualityScore:         0.86,
			Specialties:          []string{"real-time", "multimodal"},
		},
		{
			Name:                 "grok-4",
			Provider:             "xai",
			ContextWindow:        256000,
			SupportsFunctions:    true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			AvgLatencyMS:         850,
			InputCostPerMillion:  5.0,
			OutputCostPerMillion: 15.0,
			QualityScore:         0.91,
			Specialties:          []string{"reasoning", "real-time"},
		},
		{
			Name:                 "grok-4-heavy",
			Provider:             "xai",
			ContextWindow:        256000,
			SupportsFunctions:    true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			AvgLatencyMS:         1400,
			InputCostPerMillion:  10.0,
			OutputCostPerMillion: 30.0,
			QualityScore:         0.94,
			Specialties:          []string{"math", "reasoning"},
		},
	}
}
