package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	t.Run("empty catalog", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrNoBackends)
	})

	t.Run("unnamed backend", func(t *testing.T) {
		_, err := New([]BackendProfile{{Provider: "openai"}})
		assert.Error(t, err)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := New([]BackendProfile{
			{Name: "gpt-5", Provider: "openai"},
			{Name: "gpt-5", Provider: "openai"},
		})
		assert.ErrorIs(t, err, ErrDuplicateBackend)
	})
}

func TestRegistry_OrderPreserved(t *testing.T) {
	reg, err := New([]BackendProfile{
		{Name: "b", Provider: "two"},
		{Name: "a", Provider: "one"},
		{Name: "c", Provider: "two"},
	})
	require.NoError(t, err)

	var names []string
	for _, p := range reg.Profiles() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
	assert.Equal(t, []string{"two", "one"}, reg.Providers())
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_Get(t *testing.T) {
	reg, err := New(DefaultCatalog())
	require.NoError(t, err)

	p, ok := reg.Get("claude-sonnet-4")
	require.True(t, ok)
	assert.Equal(t, "anthropic", p.Provider)
	assert.True(t, p.HasSpecialty("code"))
	assert.False(t, p.HasSpecialty("multimodal"))

	_, ok = reg.Get("no-such-model")
	assert.False(t, ok)
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	require.NotEmpty(t, catalog)

	for _, p := range catalog {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Provider)
		assert.Greater(t, p.ContextWindow, 0, p.Name)
		assert.GreaterOrEqual(t, p.QualityScore, 0.0, p.Name)
		assert.LessOrEqual(t, p.QualityScore, 1.0, p.Name)
		assert.Greater(t, p.OutputCostPerMillion, 0.0, p.Name)
	}
}
