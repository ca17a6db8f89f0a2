package registry

import (
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

// Model is the registry model document served at /model. Adapters
// declare it in YAML; the gateway merges the adapters' models by group
// type.
type Model struct {
	Attributes map[string]Attribute  `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Groups     map[string]GroupModel `yaml:"groups" json:"groups"`
}

// GroupModel describes one group type.
type GroupModel struct {
	Plural      string                   `yaml:"plural" json:"plural"`
	Singular    string                   `yaml:"singular" json:"singular"`
	Description string                   `yaml:"description,omitempty" json:"description,omitempty"`
	Attributes  map[string]Attribute     `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Resources   map[string]ResourceModel `yaml:"resources" json:"resources"`
}

// ResourceModel describes one resource type within a group type.
type ResourceModel struct {
	Plural       string               `yaml:"plural" json:"plural"`
	Singular     string               `yaml:"singular" json:"singular"`
	Description  string               `yaml:"description,omitempty" json:"description,omitempty"`
	MaxVersions  int                  `yaml:"maxversions" json:"maxversions"`
	SetVersionID bool                 `yaml:"setversionid" json:"setversionid"`
	HasDocument  bool                 `yaml:"hasdocument" json:"hasdocument"`
	Attributes   map[string]Attribute `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// Attribute describes one model attribute.
type Attribute struct {
	Name        string     `yaml:"name" json:"name"`
	Type        string     `yaml:"type" json:"type"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool       `yaml:"required,omitempty" json:"required,omitempty"`
	ReadOnly    bool       `yaml:"readonly,omitempty" json:"readonly,omitempty"`
	Item        *Attribute `yaml:"item,omitempty" json:"item,omitempty"`
}

// LoadModel parses a YAML model document.
func LoadModel(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapParse("yaml", "model", err)
	}
	if len(m.Groups) == 0 {
		return nil, errors.NewConfigError("model", "model declares no group types", nil)
	}
	for plural, g := range m.Groups {
		if g.Plural == "" {
			g.Plural = plural
		}
		for rplural, r := range g.Resources {
			if r.Plural == "" {
				r.Plural = rplural
			}
			g.Resources[rplural] = r
		}
		m.Groups[plural] = g
	}
	return &m, nil
}

// Group returns the group model for a group type.
func (m *Model) Group(groupType string) (GroupModel, bool) {
	if m == nil {
		return GroupModel{}, false
	}
	g, ok := m.Groups[groupType]
	return g, ok
}

// Merge adds other's group types to m. Existing group types win.
func (m *Model) Merge(other *Model) {
	if other == nil {
		return
	}
	if m.Groups == nil {
		m.Groups = make(map[string]GroupModel, len(other.Groups))
	}
	for k, g := range other.Groups {
		if _, exists := m.Groups[k]; !exists {
			m.Groups[k] = g
		}
	}
}

// Capabilities is the document served at /capabilities.
type Capabilities struct {
	APIs         []string `json:"apis,omitempty"`
	Flags        []string `json:"flags"`
	Mutable      []string `json:"mutable"`
	Pagination   bool     `json:"pagination"`
	Schemas      []string `json:"schemas"`
	ShortSelf    bool     `json:"shortself"`
	SpecVersions []string `json:"specversions"`
	Sticky       bool     `json:"sticky"`
}

// SupportedFlags are the query flags every adapter understands.
var SupportedFlags = []string{
	"collections", "doc", "epoch", "filter", "inline", "limit",
	"noepoch", "offset", "schema", "sort", "specversion",
}

// DefaultCapabilities describes a read-only paginated adapter.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		APIs:         []string{"/capabilities", "/model"},
		Flags:        slices.Clone(SupportedFlags),
		Mutable:      []string{},
		Pagination:   true,
		Schemas:      []string{constants.SchemaName},
		SpecVersions: []string{constants.SpecVersion},
	}
}

// Merge unions other into c. Pagination is advertised only when every
// adapter supports it.
func (c *Capabilities) Merge(other Capabilities) {
	c.APIs = union(c.APIs, other.APIs)
	c.Flags = union(c.Flags, other.Flags)
	c.Mutable = union(c.Mutable, other.Mutable)
	c.Schemas = union(c.Schemas, other.Schemas)
	c.SpecVersions = union(c.SpecVersions, other.SpecVersions)
	c.Pagination = c.Pagination && other.Pagination
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	if out == nil {
		out = []string{}
	}
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// Schema renders a JSON Schema describing documents of this model. It is
// served when a client inlines "schema".
func (m *Model) Schema() map[string]any {
	groups := make(map[string]any, len(m.Groups))
	for plural, g := range m.Groups {
		resources := make(map[string]any, len(g.Resources))
		for rplural, r := range g.Resources {
			resources[rplural] = map[string]any{
				"type":                 "object",
				"additionalProperties": objectSchema(r.Attributes),
			}
		}
		gs := objectSchema(g.Attributes)
		props := gs["properties"].(map[string]any)
		for k, v := range resources {
			props[k] = v
		}
		groups[plural] = map[string]any{
			"type":                 "object",
			"additionalProperties": gs,
		}
	}
	root := objectSchema(m.Attributes)
	props := root["properties"].(map[string]any)
	for k, v := range groups {
		props[k] = v
	}
	root["$schema"] = "https://json-schema.org/draft/2020-12/schema"
	root["title"] = constants.SchemaName
	return root
}

func objectSchema(attrs map[string]Attribute) map[string]any {
	props := make(map[string]any, len(attrs))
	var required []string
	for name, a := range attrs {
		props[name] = attributeSchema(a)
		if a.Required {
			required = append(required, name)
		}
	}
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		slices.Sort(required)
		s["required"] = required
	}
	return s
}

func attributeSchema(a Attribute) map[string]any {
	s := map[string]any{}
	switch a.Type {
	case "string", "xid":
		s["type"] = "string"
	case "integer", "uinteger":
		s["type"] = "integer"
	case "decimal":
		s["type"] = "number"
	case "boolean":
		s["type"] = "boolean"
	case "timestamp":
		s["type"], s["format"] = "string", "date-time"
	case "url", "uri", "urlreference", "uri-reference":
		s["type"], s["format"] = "string", "uri-reference"
	case "map":
		s["type"] = "object"
		if a.Item != nil {
			s["additionalProperties"] = attributeSchema(*a.Item)
		}
	case "array":
		s["type"] = "array"
		if a.Item != nil {
			s["items"] = attributeSchema(*a.Item)
		}
	case "object":
		s["type"] = "object"
	}
	if a.Description != "" {
		s["description"] = a.Description
	}
	return s
}
