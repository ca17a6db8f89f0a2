package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

type doc map[string]any

func (d doc) Lookup(path string) (any, bool) {
	v, ok := d[path]
	return v, ok
}

func ids(docs []doc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d["id"].(string)
	}
	return out
}

func TestEntities(t *testing.T) {
	base := func() []doc {
		return []doc{
			{"id": "a", "name": "Serilog", "count": 120},
			{"id": "b", "name": "xunit"},
			{"id": "c", "name": "newtonsoft.json", "count": 80},
			{"id": "d", "name": "Moq", "count": 80},
		}
	}

	tests := []struct {
		name string
		sort Sort
		want []string
	}{
		{name: "no sort", sort: Sort{}, want: []string{"a", "b", "c", "d"}},
		{name: "name asc case insensitive", sort: Sort{Field: "name"}, want: []string{"d", "c", "a", "b"}},
		{name: "name desc", sort: Sort{Field: "name", Desc: true}, want: []string{"b", "a", "c", "d"}},
		{name: "numeric, stable, missing last", sort: Sort{Field: "count"}, want: []string{"c", "d", "a", "b"}},
		{name: "missing last when descending", sort: Sort{Field: "count", Desc: true}, want: []string{"a", "c", "d", "b"}},
		{name: "unknown field is a no-op", sort: Sort{Field: "nope"}, want: []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := base()
			Entities(tt.sort, docs)
			assert.Equal(t, tt.want, ids(docs))
		})
	}
}

func TestNames(t *testing.T) {
	names := []string{"b", "A", "c"}
	Names(Sort{Field: "name"}, names)
	assert.Equal(t, []string{"A", "b", "c"}, names)

	Names(Sort{Field: "packageid", Desc: true}, names, "packageid")
	assert.Equal(t, []string{"c", "b", "A"}, names)

	Names(Sort{Field: "versionscount"}, names)
	assert.Equal(t, []string{"c", "b", "A"}, names)
}

func TestEntitiesIsStableUnderEqualKeys(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		docs := make([]doc, n)
		for i := range docs {
			docs[i] = doc{"id": rapid.StringMatching(`[a-z]{1,3}`).Draw(t, "id"), "k": rapid.IntRange(0, 3).Draw(t, "k"), "pos": i}
		}
		Entities(Sort{Field: "k"}, docs)
		for i := 1; i < len(docs); i++ {
			prev, cur := docs[i-1], docs[i]
			if prev["k"].(int) > cur["k"].(int) {
				t.Fatalf("not sorted at %d", i)
			}
			if prev["k"] == cur["k"] && prev["pos"].(int) > cur["pos"].(int) {
				t.Fatalf("not stable at %d", i)
			}
		}
	})
}
