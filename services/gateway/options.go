package gateway

import "github.com/upb/ai-gateway/services/routing"

// Options steer one request through the pipeline. The zero value disables
// caching and failover, so construct from DefaultOptions.
type Options struct {
	routing.Requirements

	CacheEnabled    bool
	FailoverEnabled bool
}

// DefaultOptions enables caching and failover with no routing preferences
func DefaultOptions() Options {
	return Options{
		CacheEnabled:    true,
		FailoverEnabled: true,
	}
}
