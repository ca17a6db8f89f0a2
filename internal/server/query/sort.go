package query

import (
	"slices"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/filter"
)

// Entities stably sorts items by s. Items lacking the attribute sort
// after the ones that have it in either direction, so an unknown field
// leaves the order unchanged.
func Entities[T interface{ Lookup(string) (any, bool) }](s Sort, items []T) {
	if s.Field == "" || len(items) < 2 {
		return
	}
	type keyed struct {
		item T
		v    any
		ok   bool
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		v, ok := it.Lookup(s.Field)
		ks[i] = keyed{item: it, v: v, ok: ok && v != nil}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		return s.compare(a.v, a.ok, b.v, b.ok)
	})
	for i, k := range ks {
		items[i] = k.item
	}
}

// Names stably sorts bare names. Only the name attribute orders names;
// any other field leaves them unchanged.
func Names(s Sort, names []string, nameAttrs ...string) {
	if !slices.Contains(append([]string{"name"}, nameAttrs...), s.Field) {
		return
	}
	slices.SortStableFunc(names, func(a, b string) int {
		return s.compare(a, true, b, true)
	})
}

func (s Sort) compare(a any, aok bool, b any, bok bool) int {
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}
	c := filter.Compare(a, b)
	if s.Desc {
		return -c
	}
	return c
}
