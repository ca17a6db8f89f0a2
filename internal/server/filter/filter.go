// Package filter evaluates registry filter expressions against entity
// attribute maps.
//
// A filter query parameter holds comma-separated terms that must all hold
// (AND). Several filter parameters are alternatives (OR). A parameter that
// is a single bare token is a keyword query, which adapters may delegate to
// an upstream search service.
package filter

import (
	"slices"
	"strings"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

// Op is a comparison operator.
type Op int

// Operators, in the order the parser tries them.
const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opText = [...]string{"=", "!=", "<", "<=", ">", ">="}

func (o Op) String() string {
	if int(o) < len(opText) {
		return opText[o]
	}
	return "?"
}

// Null is the value that matches absent attributes.
const Null = "null"

// Term is one attribute comparison.
type Term struct {
	Path  string // dotted; the top-level attribute is lower case
	Op    Op
	Value string
}

// Expression is a conjunction of terms, or a keyword query when Text is set.
type Expression struct {
	Terms []Term
	Text  string
}

// Query is a disjunction of expressions. The zero Query matches everything.
type Query struct {
	Expressions []Expression
}

// Parse parses the raw values of every filter query parameter. Empty
// values are ignored.
func Parse(raw []string) (Query, error) {
	var q Query
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		e, err := parseExpression(r)
		if err != nil {
			return Query{}, err
		}
		q.Expressions = append(q.Expressions, e)
	}
	return q, nil
}

func parseExpression(raw string) (Expression, error) {
	parts := strings.Split(raw, ",")
	if len(parts) == 1 && strings.IndexAny(raw, "=<>!") < 0 {
		return Expression{Text: raw}, nil
	}
	e := Expression{Terms: make([]Term, 0, len(parts))}
	for _, p := range parts {
		t, err := parseTerm(strings.TrimSpace(p))
		if err != nil {
			return Expression{}, errors.NewValidationError("filter", raw, err.Error())
		}
		e.Terms = append(e.Terms, t)
	}
	return e, nil
}

func parseTerm(s string) (Term, error) {
	i := strings.IndexAny(s, "=<>!")
	if i < 0 {
		return Term{}, errors.New("term " + quote(s) + " has no operator")
	}
	var op Op
	n := 1
	switch s[i] {
	case '=':
		op = OpEq
	case '!':
		if i+1 >= len(s) || s[i+1] != '=' {
			return Term{}, errors.New("expected != in " + quote(s))
		}
		op, n = OpNe, 2
	case '<':
		op = OpLt
		if i+1 < len(s) && s[i+1] == '=' {
			op, n = OpLe, 2
		}
	case '>':
		op = OpGt
		if i+1 < len(s) && s[i+1] == '=' {
			op, n = OpGe, 2
		}
	}
	path := strings.TrimSpace(s[:i])
	top, rest, nested := strings.Cut(path, ".")
	path = strings.ToLower(top)
	if nested {
		path += "." + rest
	}
	value := strings.TrimSpace(s[i+n:])
	switch {
	case path == "":
		return Term{}, errors.New("missing attribute name in " + quote(s))
	case strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") || strings.Contains(path, ".."):
		return Term{}, errors.New("malformed attribute path in " + quote(s))
	case value == "":
		return Term{}, errors.New("dangling operator in " + quote(s))
	}
	return Term{Path: path, Op: op, Value: value}, nil
}

func quote(s string) string { return `"` + s + `"` }

// Empty reports whether the query has no expressions.
func (q Query) Empty() bool {
	return len(q.Expressions) == 0
}

// Text returns the keyword of the first keyword expression, if any.
func (q Query) Text() (string, bool) {
	for _, e := range q.Expressions {
		if e.Text != "" {
			return e.Text, true
		}
	}
	return "", false
}

// TextOnly reports whether every expression is a keyword query.
func (q Query) TextOnly() bool {
	if q.Empty() {
		return false
	}
	for _, e := range q.Expressions {
		if e.Text == "" {
			return false
		}
	}
	return true
}

// NameOnly reports whether the query references only the given attribute
// paths. Keyword queries match on name and count as name-only. Listing
// handlers use it to filter a name index without materializing entities.
func (q Query) NameOnly(paths ...string) bool {
	for _, e := range q.Expressions {
		for _, t := range e.Terms {
			found := false
			for _, p := range paths {
				if t.Path == strings.ToLower(p) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// ExactValues returns the values of plain equality terms on the given
// attribute paths, at most one per expression. Wildcard and null terms are
// skipped. Listing handlers use them to look up names missing from an
// index.
func (q Query) ExactValues(paths ...string) []string {
	var out []string
	for _, e := range q.Expressions {
		for _, t := range e.Terms {
			if t.Op != OpEq || strings.Contains(t.Value, "*") || strings.EqualFold(t.Value, Null) {
				continue
			}
			if slices.ContainsFunc(paths, func(p string) bool { return strings.EqualFold(p, t.Path) }) {
				if !slices.Contains(out, t.Value) {
					out = append(out, t.Value)
				}
				break
			}
		}
	}
	return out
}

// Match reports whether attrs satisfies the query.
func (q Query) Match(attrs map[string]any) bool {
	if q.Empty() {
		return true
	}
	for _, e := range q.Expressions {
		if e.Match(attrs) {
			return true
		}
	}
	return false
}

// Match reports whether attrs satisfies every term of the expression.
func (e Expression) Match(attrs map[string]any) bool {
	if e.Text != "" {
		return matchText(attrs, e.Text)
	}
	for _, t := range e.Terms {
		if !t.Match(attrs) {
			return false
		}
	}
	return true
}

// Match evaluates the term. A missing attribute never matches, except
// against null.
func (t Term) Match(attrs map[string]any) bool {
	v, ok := lookup(attrs, t.Path)
	if strings.EqualFold(t.Value, Null) {
		present := ok && v != nil
		switch t.Op {
		case OpEq:
			return !present
		case OpNe:
			return present
		default:
			return false
		}
	}
	if !ok || v == nil {
		return false
	}
	if items, isList := asList(v); isList {
		// Lists match when any element matches; != requires that none does.
		if t.Op == OpNe {
			for _, it := range items {
				if !t.matchScalar(it) {
					return false
				}
			}
			return true
		}
		for _, it := range items {
			if t.matchScalar(it) {
				return true
			}
		}
		return false
	}
	return t.matchScalar(v)
}

func (t Term) matchScalar(v any) bool {
	if strings.Contains(t.Value, "*") && (t.Op == OpEq || t.Op == OpNe) {
		m := Glob(t.Value, stringify(v))
		if t.Op == OpEq {
			return m
		}
		return !m
	}
	c := Compare(v, t.Value)
	switch t.Op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}

func matchText(attrs map[string]any, text string) bool {
	needle := Fold(text)
	for _, k := range []string{"name", "description"} {
		if v, ok := attrs[k]; ok && strings.Contains(Fold(stringify(v)), needle) {
			return true
		}
	}
	return false
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// lookup walks a dotted path. Keys match exactly first, then
// case-insensitively.
func lookup(attrs map[string]any, path string) (any, bool) {
	var cur any = attrs
	for _, part := range strings.Split(path, ".") {
		var (
			v  any
			ok bool
		)
		switch m := cur.(type) {
		case map[string]any:
			v, ok = mapKey(m, part)
		case map[string]string:
			v, ok = mapKey(m, part)
		}
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func mapKey[V any](m map[string]V, key string) (V, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Apply returns the entities matching q, preserving input order.
func Apply[T interface{ Attributes() map[string]any }](q Query, items []T) []T {
	if q.Empty() {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if q.Match(it.Attributes()) {
			out = append(out, it)
		}
	}
	return out
}

// Names returns the names whose synthesized attributes match q, preserving
// input order. attrs builds the attribute map of one name.
func Names(q Query, names []string, attrs func(string) map[string]any) []string {
	if q.Empty() {
		return names
	}
	out := make([]string, 0)
	for _, n := range names {
		if q.Match(attrs(n)) {
			out = append(out, n)
		}
	}
	return out
}
