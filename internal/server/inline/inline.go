// Package inline expands *url references into the document that carries
// them when a client asks for ?inline.
package inline

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Set is the parsed inline request.
type Set struct {
	All     bool
	Targets []string
}

// ParseSet parses every inline query value. Values are comma separated;
// "*" requests every target the document offers.
func ParseSet(raw []string) Set {
	var s Set
	for _, r := range raw {
		for _, t := range strings.Split(r, ",") {
			t = strings.ToLower(strings.TrimSpace(t))
			switch t {
			case "":
			case "*":
				s.All = true
			default:
				if !slices.Contains(s.Targets, t) {
					s.Targets = append(s.Targets, t)
				}
			}
		}
	}
	return s
}

// Empty reports whether nothing was requested.
func (s Set) Empty() bool {
	return !s.All && len(s.Targets) == 0
}

// Has reports whether target was requested, explicitly or through "*".
func (s Set) Has(target string) bool {
	return s.All || slices.Contains(s.Targets, target)
}

// Value is what a provider attaches.
type Value struct {
	Data      any
	Truncated bool
}

// Provider produces the value of one inline target. max caps collection
// sizes.
type Provider func(ctx context.Context, max int) (Value, error)

// Resolver attaches inline targets to documents. One Resolver serves one
// request; it remembers which (xid, target) pairs it has expanded.
type Resolver struct {
	max int

	mu      sync.Mutex
	visited map[string]bool
}

// NewResolver creates a resolver capping inlined collections at max items.
func NewResolver(max int) *Resolver {
	return &Resolver{max: max, visited: make(map[string]bool)}
}

// Apply expands the requested targets of the document attrs, whose xid is
// xid, using providers keyed by target name. Each target is attached under
// its own name next to its *url reference. Values are never expanded
// further. It returns warnings for unknown, failed and truncated targets;
// a failing target is omitted without failing the document.
func (r *Resolver) Apply(ctx context.Context, xid string, attrs map[string]any, set Set, providers map[string]Provider) []string {
	if set.Empty() {
		return nil
	}

	var warnings []string
	targets := set.Targets
	if set.All {
		targets = make([]string, 0, len(providers))
		for name := range providers {
			targets = append(targets, name)
		}
		slices.Sort(targets)
	}

	for _, target := range targets {
		p, ok := providers[target]
		if !ok {
			if strings.Contains(target, ".") {
				warnings = append(warnings, fmt.Sprintf("inline %q: nested inlining is not supported", target))
			} else {
				warnings = append(warnings, fmt.Sprintf("inline %q: unknown target", target))
			}
			continue
		}
		if !r.visit(xid, target) {
			continue
		}
		if _, done := attrs[target]; done {
			continue
		}
		v, err := p(ctx, r.max)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("inline %q: %v", target, err))
			continue
		}
		attrs[target] = v.Data
		if v.Truncated {
			warnings = append(warnings, fmt.Sprintf("inline %q: truncated to %d items", target, r.max))
		}
	}
	return warnings
}

func (r *Resolver) visit(xid, target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := xid + "#" + target
	if r.visited[key] {
		return false
	}
	r.visited[key] = true
	return true
}

// Map builds a collection value keyed by each item's id, truncated to max
// items. items must already be in response order.
func Map[T interface {
	EntityID() string
	Attributes() map[string]any
}](items []T, max int) Value {
	v := Value{}
	if max > 0 && len(items) > max {
		items = items[:max]
		v.Truncated = true
	}
	m := make(map[string]any, len(items))
	for _, it := range items {
		m[it.EntityID()] = it.Attributes()
	}
	v.Data = m
	return v
}
