package providers

import (
	"context"
	"fmt"
	"sort"

	"github.com/upb/ai-gateway/services/gateway"
)

// Mux dispatches completion requests to the client for the request's
// provider. It is populated once at startup and read-only afterwards.
type Mux struct {
	clients map[string]gateway.CompletionClient
}

// NewMux creates a dispatcher over the given per-provider clients
func NewMux(clients map[string]gateway.CompletionClient) *Mux {
	m := &Mux{clients: make(map[string]gateway.CompletionClient, len(clients))}
	for name, c := range clients {
		m.clients[name] = c
	}
	return m
}

// Complete routes the request to its provider's client
func (m *Mux) Complete(ctx context.Context, req gateway.CompletionRequest) (*gateway.CompletionResult, error) {
	client, ok := m.clients[req.Provider]
	if !ok {
		return nil, fmt.Errorf("no client configured for provider %q", req.Provider)
	}
	return client.Complete(ctx, req)
}

// Providers returns the configured provider names, sorted
func (m *Mux) Providers() []string {
	out := make([]string, 0, len(m.clients))
	for name := range m.clients {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
