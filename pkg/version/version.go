// Package version implements the version precedence and range parsing used
// by dependency resolution.
//
// Precedence is deliberately simpler than full semantic versioning:
// numeric dot components are compared as integers from left to right
// (missing components count as zero), a pre-release sorts below the same
// numeric version without one, and two pre-releases with equal numeric
// components compare equal regardless of their labels. Dependency links
// produced by the resolver rely on this ordering.
package version

import (
	"slices"
	"strconv"
	"strings"
)

// parts splits v into its numeric components and reports whether it
// carries a pre-release label. Build metadata is ignored.
func parts(v string) ([]int, bool) {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	pre := false
	if i := strings.IndexByte(v, '-'); i >= 0 {
		pre = true
		v = v[:i]
	}
	var nums []int
	for _, s := range strings.Split(v, ".") {
		nums = append(nums, leadingInt(s))
	}
	return nums, pre
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// Compare returns -1, 0 or +1 as a is lower than, equal to, or higher than b.
func Compare(a, b string) int {
	an, apre := parts(a)
	bn, bpre := parts(b)
	for i := 0; i < max(len(an), len(bn)); i++ {
		var x, y int
		if i < len(an) {
			x = an[i]
		}
		if i < len(bn) {
			y = bn[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	switch {
	case apre && !bpre:
		return -1
	case !apre && bpre:
		return 1
	}
	return 0
}

// IsPrerelease reports whether v carries a pre-release label.
func IsPrerelease(v string) bool {
	_, pre := parts(v)
	return pre
}

// SortDescending orders versions highest first. The sort is stable, so
// versions that compare equal keep their upstream order.
func SortDescending(versions []string) {
	slices.SortStableFunc(versions, func(a, b string) int { return Compare(b, a) })
}

// Kind classifies a dependency range for resolution.
type Kind int

const (
	// Other covers bounded, wildcard, and unparseable ranges.
	Other Kind = iota
	// Exact is a single pinned version ("[1.2.3]").
	Exact
	// LowerBound is an open-ended minimum (">= 1.2", "1.2", "[1.2, )", "(1.2, )").
	LowerBound
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case LowerBound:
		return "lower-bound"
	}
	return "other"
}

// Range is a parsed dependency version range.
type Range struct {
	Raw          string
	Kind         Kind
	Min          string
	MinInclusive bool
	Max          string
	MaxInclusive bool
}

// ParseRange parses npm-style comparators and NuGet interval notation.
// A bare version is a NuGet minimum version, i.e. an inclusive lower bound.
// Anything not understood yields Kind Other with no bounds.
func ParseRange(raw string) Range {
	r := Range{Raw: raw}
	s := strings.TrimSpace(raw)
	switch {
	case s == "", s == "*":
		return r
	case strings.HasPrefix(s, ">="):
		return lower(r, strings.TrimSpace(s[2:]), true)
	case strings.HasPrefix(s, ">"):
		return lower(r, strings.TrimSpace(s[1:]), false)
	case strings.HasPrefix(s, "=="):
		return exact(r, strings.TrimSpace(s[2:]))
	case strings.HasPrefix(s, "="):
		return exact(r, strings.TrimSpace(s[1:]))
	case strings.HasPrefix(s, "[") || strings.HasPrefix(s, "("):
		return interval(r, s)
	}
	if isPlainVersion(s) {
		return lower(r, s, true)
	}
	return r
}

func lower(r Range, v string, inclusive bool) Range {
	if !isPlainVersion(v) {
		return r
	}
	r.Kind = LowerBound
	r.Min = v
	r.MinInclusive = inclusive
	return r
}

func exact(r Range, v string) Range {
	if !isPlainVersion(v) {
		return r
	}
	r.Kind = Exact
	r.Min, r.Max = v, v
	r.MinInclusive, r.MaxInclusive = true, true
	return r
}

func interval(r Range, s string) Range {
	if len(s) < 3 {
		return r
	}
	open, closing := s[0], s[len(s)-1]
	if closing != ']' && closing != ')' {
		return r
	}
	body := s[1 : len(s)-1]
	lo, hi, comma := strings.Cut(body, ",")
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if !comma {
		if open == '[' && closing == ']' {
			return exact(r, lo)
		}
		return r
	}
	if lo != "" && !isPlainVersion(lo) || hi != "" && !isPlainVersion(hi) {
		return r
	}
	if lo != "" && hi == "" {
		return lower(r, lo, open == '[')
	}
	r.Min, r.MinInclusive = lo, open == '['
	r.Max, r.MaxInclusive = hi, closing == ']'
	return r
}

func isPlainVersion(s string) bool {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	return !strings.ContainsAny(s, " *^~|<>=,[]()")
}

// Satisfies reports whether v lies within the range. A range of Kind Other
// without bounds admits everything.
func (r Range) Satisfies(v string) bool {
	if r.Min != "" {
		c := Compare(v, r.Min)
		if c < 0 || c == 0 && !r.MinInclusive {
			return false
		}
	}
	if r.Max != "" {
		c := Compare(v, r.Max)
		if c > 0 || c == 0 && !r.MaxInclusive {
			return false
		}
	}
	return true
}
