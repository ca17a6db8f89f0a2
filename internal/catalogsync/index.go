package catalogsync

import (
	"slices"
	"strings"
	"sync"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

// Index is the set of package names known to exist upstream. Lookups use
// the same sanitization as xid construction and ignore case, so a path
// segment always finds the upstream spelling of its name.
type Index struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{names: make(map[string]string)}
}

func indexKey(name string) string {
	return strings.ToLower(registry.SanitizeID(name))
}

// Add merges names into the index and returns how many were new.
func (i *Index) Add(names ...string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	added := 0
	for _, n := range names {
		if n == "" {
			continue
		}
		k := indexKey(n)
		if _, ok := i.names[k]; !ok {
			i.names[k] = n
			added++
		}
	}
	return added
}

// Lookup resolves an id or name to the upstream spelling.
func (i *Index) Lookup(id string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	n, ok := i.names[indexKey(id)]
	return n, ok
}

// Names returns all names sorted case-insensitively.
func (i *Index) Names() []string {
	i.mu.RLock()
	out := make([]string, 0, len(i.names))
	for _, n := range i.names {
		out = append(out, n)
	}
	i.mu.RUnlock()
	slices.SortFunc(out, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return out
}

// Len returns the number of known names.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.names)
}
