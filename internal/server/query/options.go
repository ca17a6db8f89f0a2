// Package query parses the registry query flags once per request into a
// closed Options value and implements the sort and pagination stages of
// the collection pipeline.
package query

import (
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/filter"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/inline"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

// Sort is a parsed sort flag. The zero value means no explicit order.
type Sort struct {
	Field string
	Desc  bool
}

// Options holds every query flag a handler honors.
type Options struct {
	Filter      filter.Query
	Sort        Sort
	Inline      inline.Set
	Limit       int
	Offset      int
	Collections bool
	Doc         bool
	Epoch       int // 0 when absent
	NoEpoch     bool
	SpecVersion string
	Schema      string
}

// Parse reads the query flags and the Accept header of r. Malformed
// flags are validation errors; unsupported schemas or media types are
// not-acceptable errors.
func Parse(r *http.Request) (Options, error) {
	q := r.URL.Query()
	opts := Options{Limit: constants.DefaultPageSize}

	var err error
	if opts.Filter, err = filter.Parse(q["filter"]); err != nil {
		return Options{}, err
	}
	if opts.Sort, err = parseSort(q.Get("sort")); err != nil {
		return Options{}, err
	}
	opts.Inline = inline.ParseSet(q["inline"])

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Options{}, errors.NewValidationError("limit", v, "must be a positive integer")
		}
		opts.Limit = min(n, constants.MaxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Options{}, errors.NewValidationError("offset", v, "must be a non-negative integer")
		}
		opts.Offset = n
	}
	if v := q.Get("epoch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Options{}, errors.NewValidationError("epoch", v, "must be a positive integer")
		}
		opts.Epoch = n
	}

	opts.Collections = flag(q, "collections")
	opts.Doc = flag(q, "doc")
	opts.NoEpoch = flag(q, "noepoch")

	opts.SpecVersion = q.Get("specversion")
	if v := q.Get("schema"); v != "" {
		if !supportedSchema(v) {
			return Options{}, &errors.NotAcceptableError{What: "schema", Value: v}
		}
		opts.Schema = v
	}
	if accept := r.Header.Get("Accept"); accept != "" && !Acceptable(accept) {
		return Options{}, &errors.NotAcceptableError{What: "media type", Value: accept}
	}
	return opts, nil
}

// Warnings lists the requested flags the server cannot honor exactly.
// They are reported, never fatal.
func (o Options) Warnings() []string {
	var warnings []string
	if o.SpecVersion != "" && o.SpecVersion != constants.SpecVersion {
		warnings = append(warnings, "specversion "+o.SpecVersion+" unsupported, serving "+constants.SpecVersion)
	}
	return warnings
}

// flag reports a boolean flag. Presence without a value means true.
func flag(q url.Values, name string) bool {
	vs, ok := q[name]
	if !ok {
		return false
	}
	if len(vs) == 0 || vs[0] == "" {
		return true
	}
	b, err := strconv.ParseBool(vs[0])
	return err == nil && b
}

func parseSort(v string) (Sort, error) {
	if v == "" {
		return Sort{}, nil
	}
	field, dir, _ := strings.Cut(v, "=")
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" {
		return Sort{}, errors.NewValidationError("sort", v, "missing attribute name")
	}
	switch strings.ToLower(dir) {
	case "", "asc":
		return Sort{Field: field}, nil
	case "desc":
		return Sort{Field: field, Desc: true}, nil
	default:
		return Sort{}, errors.NewValidationError("sort", v, "direction must be asc or desc")
	}
}

func supportedSchema(v string) bool {
	return strings.EqualFold(v, "xRegistry-json") || strings.EqualFold(v, constants.SchemaName)
}

// Acceptable reports whether an Accept header admits the registry's JSON
// rendering.
func Acceptable(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if q, ok := params["q"]; ok && q == "0" {
			continue
		}
		switch mt {
		case "*/*", "application/*":
			return true
		case "application/json":
			if s, ok := params["schema"]; !ok || supportedSchema(s) {
				return true
			}
		}
	}
	return false
}
