// Package registry defines the hierarchical entity model served by every
// adapter: a registry root owning groups, groups owning resources, and
// resources owning versions plus a synthesized meta sub-entity. Every
// entity is addressed by a normalized xid and serialized through its
// attribute map, so the filter and sort engines see exactly the fields a
// client sees.
package registry

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/agentstation/utc"
)

// Identifiable entities expose their id and canonical xid.
type Identifiable interface {
	EntityID() string
	EntityXID() string
}

// Filterable entities expose their materialized attributes.
type Filterable interface {
	Attributes() map[string]any
}

// Sortable entities resolve dotted attribute paths.
type Sortable interface {
	Lookup(path string) (any, bool)
}

// Entity is implemented by every registry document.
type Entity interface {
	Identifiable
	Filterable
	Sortable
}

// Common holds the attributes shared by every entity.
type Common struct {
	IDAttribute string // "registryid", "dotnetregistryid", "packageid", "versionid"
	ID          string
	XID         string
	Self        string
	Name        string
	Description string
	Epoch       int
	CreatedAt   utc.Time
	ModifiedAt  utc.Time
	Labels      map[string]string
	Docs        string

	// Extensions carries ecosystem specific attributes. Keys never
	// override a common attribute.
	Extensions map[string]any
}

// NewCommon builds the common attributes of an entity of the given type
// under parentXID. The upstream id becomes the name; the sanitized id is
// used in the xid.
func NewCommon(idAttribute, parentXID, typ, id string) (Common, error) {
	xid, err := BuildXID(parentXID, typ, id)
	if err != nil {
		return Common{}, err
	}
	return Common{
		IDAttribute: idAttribute,
		ID:          SanitizeID(id),
		XID:         xid,
		Name:        id,
		Epoch:       1,
	}, nil
}

// EntityID returns the sanitized id.
func (c *Common) EntityID() string { return c.ID }

// EntityXID returns the canonical xid.
func (c *Common) EntityXID() string { return c.XID }

// Bind resolves self and docs against the externally visible base URL.
func (c *Common) Bind(base string) {
	c.Self = AbsoluteURL(base, c.XID)
	if c.Docs != "" {
		c.Docs = AbsoluteURL(base, c.Docs)
	}
}

func (c *Common) attributes() map[string]any {
	attrs := make(map[string]any, 12+len(c.Extensions))
	for k, v := range c.Extensions {
		attrs[k] = v
	}
	if c.IDAttribute != "" {
		attrs[c.IDAttribute] = c.ID
	}
	attrs["xid"] = c.XID
	attrs["self"] = c.Self
	epoch := c.Epoch
	if epoch < 1 {
		epoch = 1
	}
	attrs["epoch"] = epoch
	if c.Name != "" {
		attrs["name"] = c.Name
	}
	if c.Description != "" {
		attrs["description"] = c.Description
	}
	if ts := FormatTime(c.CreatedAt); ts != "" {
		attrs["createdat"] = ts
	}
	if ts := FormatTime(c.ModifiedAt); ts != "" {
		attrs["modifiedat"] = ts
	} else if ts := FormatTime(c.CreatedAt); ts != "" {
		attrs["modifiedat"] = ts
	}
	if len(c.Labels) > 0 {
		attrs["labels"] = c.Labels
	}
	if c.Docs != "" {
		attrs["docs"] = c.Docs
	}
	return attrs
}

// FormatTime renders t as RFC 3339 UTC, or "" for the zero time.
func FormatTime(t utc.Time) string {
	if t.Time.IsZero() {
		return ""
	}
	return t.Time.UTC().Format(time.RFC3339)
}

// Collection is a link to a child collection with its size.
type Collection struct {
	Name  string
	URL   string
	Count int
}

func (c Collection) addTo(attrs map[string]any) {
	attrs[c.Name+"url"] = c.URL
	attrs[c.Name+"count"] = c.Count
}

func bindCollections(base string, cols []Collection) {
	for i := range cols {
		cols[i].URL = AbsoluteURL(base, cols[i].URL)
	}
}

// Registry is the root document.
type Registry struct {
	Common
	SpecVersion     string
	ModelURL        string
	CapabilitiesURL string
	Collections     []Collection
}

// NewRegistry creates the root entity.
func NewRegistry(id, specVersion string) *Registry {
	return &Registry{
		Common:      Common{IDAttribute: "registryid", ID: SanitizeID(id), XID: "/", Name: id, Epoch: 1},
		SpecVersion: specVersion,
	}
}

// Bind resolves every URL of the document against base.
func (r *Registry) Bind(base string) {
	r.Common.Bind(base)
	r.ModelURL = AbsoluteURL(base, "/model")
	r.CapabilitiesURL = AbsoluteURL(base, "/capabilities")
	bindCollections(base, r.Collections)
}

// Attributes implements Filterable.
func (r *Registry) Attributes() map[string]any {
	attrs := r.attributes()
	attrs["specversion"] = r.SpecVersion
	if r.ModelURL != "" {
		attrs["modelurl"] = r.ModelURL
	}
	if r.CapabilitiesURL != "" {
		attrs["capabilitiesurl"] = r.CapabilitiesURL
	}
	for _, c := range r.Collections {
		c.addTo(attrs)
	}
	return attrs
}

// Lookup implements Sortable.
func (r *Registry) Lookup(path string) (any, bool) { return LookupPath(r.Attributes(), path) }

// MarshalJSON renders the attribute map.
func (r *Registry) MarshalJSON() ([]byte, error) { return json.Marshal(r.Attributes()) }

// Group is one upstream registry instance.
type Group struct {
	Common
	Collections []Collection
}

// Bind resolves every URL of the document against base.
func (g *Group) Bind(base string) {
	g.Common.Bind(base)
	bindCollections(base, g.Collections)
}

// Attributes implements Filterable.
func (g *Group) Attributes() map[string]any {
	attrs := g.attributes()
	for _, c := range g.Collections {
		c.addTo(attrs)
	}
	return attrs
}

// Lookup implements Sortable.
func (g *Group) Lookup(path string) (any, bool) { return LookupPath(g.Attributes(), path) }

// MarshalJSON renders the attribute map.
func (g *Group) MarshalJSON() ([]byte, error) { return json.Marshal(g.Attributes()) }

// Resource is a named package. Normalized package metadata is carried
// in dedicated fields; anything else goes into Extensions.
type Resource struct {
	Common
	DefaultVersionID string
	Authors          []string
	License          string
	Homepage         string
	Repository       string
	Tags             []string
	VersionsCount    int

	MetaURL     string
	VersionsURL string
}

// Bind resolves every URL of the document against base. Resources
// without an external documentation URL point at their doc sub-path.
func (r *Resource) Bind(base string) {
	if r.Docs == "" {
		r.Docs = r.XID + "/" + DocSegment
	}
	r.Common.Bind(base)
	r.MetaURL = AbsoluteURL(base, r.XID+"/"+MetaSegment)
	r.VersionsURL = AbsoluteURL(base, r.XID+"/"+VersionsCollection)
}

// Attributes implements Filterable.
func (r *Resource) Attributes() map[string]any {
	attrs := r.attributes()
	if r.DefaultVersionID != "" {
		attrs["versionid"] = r.DefaultVersionID
	}
	if len(r.Authors) > 0 {
		attrs["authors"] = r.Authors
	}
	if r.License != "" {
		attrs["license"] = r.License
	}
	if r.Homepage != "" {
		attrs["homepage"] = r.Homepage
	}
	if r.Repository != "" {
		attrs["repository"] = r.Repository
	}
	if len(r.Tags) > 0 {
		attrs["tags"] = r.Tags
	}
	if r.MetaURL != "" {
		attrs["metaurl"] = r.MetaURL
	}
	if r.VersionsURL != "" {
		attrs["versionsurl"] = r.VersionsURL
	}
	attrs["versionscount"] = r.VersionsCount
	return attrs
}

// Lookup implements Sortable.
func (r *Resource) Lookup(path string) (any, bool) { return LookupPath(r.Attributes(), path) }

// MarshalJSON renders the attribute map.
func (r *Resource) MarshalJSON() ([]byte, error) { return json.Marshal(r.Attributes()) }

// Dependency is one declared dependency of a version. Version holds the
// declared range verbatim; ResolvedVersion and Package are set only when
// resolution produced a link.
type Dependency struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ResolvedVersion string `json:"resolved_version,omitempty"`
	Package         string `json:"package,omitempty"`
	TargetFramework string `json:"targetframework,omitempty"`
}

func (d Dependency) attributes() map[string]any {
	m := map[string]any{"name": d.Name, "version": d.Version}
	if d.ResolvedVersion != "" {
		m["resolved_version"] = d.ResolvedVersion
	}
	if d.Package != "" {
		m["package"] = d.Package
	}
	if d.TargetFramework != "" {
		m["targetframework"] = d.TargetFramework
	}
	return m
}

// Version is one immutable release of a resource.
type Version struct {
	Common
	ResourceIDAttribute string
	ResourceID          string
	IsDefault           bool
	Dependencies        []Dependency
	PackageContent      string
}

// Bind resolves every URL of the document against base.
func (v *Version) Bind(base string) {
	v.Common.Bind(base)
	for i, d := range v.Dependencies {
		if d.Package != "" {
			v.Dependencies[i].Package = AbsoluteURL(base, d.Package)
		}
	}
}

// Attributes implements Filterable.
func (v *Version) Attributes() map[string]any {
	attrs := v.attributes()
	if v.ResourceIDAttribute != "" {
		attrs[v.ResourceIDAttribute] = v.ResourceID
	}
	attrs["version"] = v.Name
	attrs["isdefault"] = v.IsDefault
	deps := make([]any, len(v.Dependencies))
	for i, d := range v.Dependencies {
		deps[i] = d.attributes()
	}
	attrs["dependencies"] = deps
	if v.PackageContent != "" {
		attrs["packagecontent"] = v.PackageContent
	}
	return attrs
}

// Lookup implements Sortable.
func (v *Version) Lookup(path string) (any, bool) { return LookupPath(v.Attributes(), path) }

// MarshalJSON renders the attribute map.
func (v *Version) MarshalJSON() ([]byte, error) { return json.Marshal(v.Attributes()) }

// Meta is the synthesized sub-entity describing a resource's versions.
type Meta struct {
	Common
	DefaultVersionID  string
	DefaultVersionURL string
	VersionsCount     int
	ReadOnly          bool
}

// NewMeta derives the meta entity of r. r should already be bound.
func NewMeta(r *Resource, base string) *Meta {
	m := &Meta{
		Common: Common{
			IDAttribute: r.IDAttribute,
			ID:          r.ID,
			XID:         r.XID + "/" + MetaSegment,
			Epoch:       r.Epoch,
			CreatedAt:   r.CreatedAt,
			ModifiedAt:  r.ModifiedAt,
		},
		DefaultVersionID: r.DefaultVersionID,
		VersionsCount:    r.VersionsCount,
		ReadOnly:         true,
	}
	m.Common.Bind(base)
	if r.DefaultVersionID != "" {
		m.DefaultVersionURL = AbsoluteURL(base, r.XID+"/"+VersionsCollection+"/"+SanitizeID(r.DefaultVersionID))
	}
	return m
}

// Attributes implements Filterable.
func (m *Meta) Attributes() map[string]any {
	attrs := m.attributes()
	attrs["readonly"] = m.ReadOnly
	attrs["versionscount"] = m.VersionsCount
	attrs["defaultversionsticky"] = false
	if m.DefaultVersionID != "" {
		attrs["defaultversionid"] = m.DefaultVersionID
	}
	if m.DefaultVersionURL != "" {
		attrs["defaultversionurl"] = m.DefaultVersionURL
	}
	return attrs
}

// Lookup implements Sortable.
func (m *Meta) Lookup(path string) (any, bool) { return LookupPath(m.Attributes(), path) }

// MarshalJSON renders the attribute map.
func (m *Meta) MarshalJSON() ([]byte, error) { return json.Marshal(m.Attributes()) }

// LookupPath resolves a dotted path ("labels.env", "meta.readonly")
// through nested attribute maps. Attribute names are case-insensitive.
func LookupPath(attrs map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = attrs
	for _, part := range strings.Split(strings.ToLower(path), ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}
