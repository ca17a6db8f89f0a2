package inline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entity struct{ id string }

func (e entity) EntityID() string { return e.id }
func (e entity) Attributes() map[string]any {
	return map[string]any{"id": e.id}
}

func TestParseSet(t *testing.T) {
	s := ParseSet([]string{"versions, Meta", "versions", ""})
	assert.Equal(t, []string{"versions", "meta"}, s.Targets)
	assert.False(t, s.All)
	assert.True(t, s.Has("meta"))
	assert.False(t, s.Has("model"))

	all := ParseSet([]string{"*"})
	assert.True(t, all.All)
	assert.True(t, all.Has("anything"))
	assert.True(t, ParseSet(nil).Empty())
}

func TestApply(t *testing.T) {
	calls := 0
	providers := map[string]Provider{
		"model": func(context.Context, int) (Value, error) {
			calls++
			return Value{Data: map[string]any{"groups": map[string]any{}}}, nil
		},
		"capabilities": func(context.Context, int) (Value, error) {
			return Value{}, errors.New("boom")
		},
	}

	t.Run("attaches requested targets and warns on failures", func(t *testing.T) {
		attrs := map[string]any{"modelurl": "http://x/model"}
		r := NewResolver(10)
		warnings := r.Apply(context.Background(), "/", attrs, ParseSet([]string{"model,capabilities,bogus,a.b"}), providers)

		assert.Contains(t, attrs, "model")
		assert.Contains(t, attrs, "modelurl")
		assert.NotContains(t, attrs, "capabilities")
		require.Len(t, warnings, 3)
		assert.Contains(t, warnings[0], "boom")
		assert.Contains(t, warnings[1], "unknown target")
		assert.Contains(t, warnings[2], "nested")
	})

	t.Run("idempotent", func(t *testing.T) {
		calls = 0
		attrs := map[string]any{}
		r := NewResolver(10)
		r.Apply(context.Background(), "/", attrs, ParseSet([]string{"model"}), providers)
		first := attrs["model"]
		r.Apply(context.Background(), "/", attrs, ParseSet([]string{"model"}), providers)
		assert.Equal(t, 1, calls)
		assert.Equal(t, first, attrs["model"])
	})

	t.Run("star expands every provider", func(t *testing.T) {
		attrs := map[string]any{}
		warnings := NewResolver(10).Apply(context.Background(), "/", attrs, ParseSet([]string{"*"}), providers)
		assert.Contains(t, attrs, "model")
		assert.Len(t, warnings, 1)
	})
}

func TestMapTruncates(t *testing.T) {
	items := []entity{{"a"}, {"b"}, {"c"}}
	v := Map(items, 2)
	assert.True(t, v.Truncated)
	assert.Len(t, v.Data, 2)

	v = Map(items, 0)
	assert.False(t, v.Truncated)
	assert.Len(t, v.Data, 3)

	attrs := map[string]any{}
	providers := map[string]Provider{
		"packages": func(_ context.Context, max int) (Value, error) { return Map(items, max), nil },
	}
	warnings := NewResolver(1).Apply(context.Background(), "/g/x", attrs, ParseSet([]string{"packages"}), providers)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "truncated")
}
