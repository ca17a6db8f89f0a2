package registry

import (
	"net/url"
	"strings"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

// VersionsCollection is the fixed name of a resource's version collection.
const VersionsCollection = "versions"

// MetaSegment is the fixed name of a resource's meta sub-entity.
const MetaSegment = "meta"

// DocSegment is the fixed name of a resource's documentation sub-path.
const DocSegment = "doc"

// SanitizeID replaces every character outside [A-Za-z0-9_.:-] with '_'.
// The mapping is lossy; it must be applied both when an xid is built and
// when an incoming path segment is looked up.
func SanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if isIDRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '.', r == ':', r == '-':
		return true
	}
	return false
}

// BuildXID appends "/{typ}/{id}" to parent. The root is "/" (or "").
// parent must itself be a normalized entity xid.
func BuildXID(parent, typ, id string) (string, error) {
	if parent == "" {
		parent = "/"
	}
	p, err := ParseXID(parent)
	if err != nil {
		return "", err
	}
	if !p.IsEntity() || p.Meta || p.VersionID != "" {
		return "", errors.NewIdentifierError(parent, "parent is not a group or resource")
	}
	if typ == "" || id == "" {
		return "", errors.NewIdentifierError(parent, "type and id are required")
	}
	if p.ResourceID != "" && typ != VersionsCollection {
		return "", errors.NewIdentifierError(parent, "resources only own versions")
	}
	if parent == "/" {
		parent = ""
	}
	return parent + "/" + SanitizeID(typ) + "/" + SanitizeID(id), nil
}

// Path is a parsed xid or collection path.
type Path struct {
	GroupType    string
	GroupID      string
	ResourceType string
	ResourceID   string
	Versions     bool // the path names the versions collection or a version
	VersionID    string
	Meta         bool
}

// ParseXID splits a normalized path into its hierarchy components. Any
// prefix of the hierarchy is accepted, so collection paths such as
// "/dotnetregistries" or ".../versions" parse too.
func ParseXID(xid string) (Path, error) {
	var p Path
	if xid == "" || xid == "/" {
		return p, nil
	}
	if !strings.HasPrefix(xid, "/") {
		return p, errors.NewIdentifierError(xid, "must start with /")
	}
	if strings.HasSuffix(xid, "/") {
		return p, errors.NewIdentifierError(xid, "trailing separator")
	}
	segs := strings.Split(xid[1:], "/")
	if len(segs) > 6 {
		return p, errors.NewIdentifierError(xid, "too many segments")
	}
	for _, s := range segs {
		if s == "" {
			return p, errors.NewIdentifierError(xid, "repeated separator")
		}
	}

	fields := []*string{&p.GroupType, &p.GroupID, &p.ResourceType, &p.ResourceID}
	for i := 0; i < len(segs) && i < 4; i++ {
		*fields[i] = segs[i]
	}
	if len(segs) >= 5 {
		switch segs[4] {
		case VersionsCollection:
			p.Versions = true
		case MetaSegment:
			if len(segs) != 5 {
				return Path{}, errors.NewIdentifierError(xid, "meta has no children")
			}
			p.Meta = true
		default:
			return Path{}, errors.NewIdentifierError(xid, "unknown resource child "+segs[4])
		}
	}
	if len(segs) == 6 {
		p.VersionID = segs[5]
	}
	return p, nil
}

// Depth is the number of path segments.
func (p Path) Depth() int {
	n := 0
	for _, s := range []string{p.GroupType, p.GroupID, p.ResourceType, p.ResourceID} {
		if s != "" {
			n++
		}
	}
	if p.Versions || p.Meta {
		n++
	}
	if p.VersionID != "" {
		n++
	}
	return n
}

// IsEntity reports whether the path addresses a single entity (root,
// group, resource, meta, or version) rather than a collection.
func (p Path) IsEntity() bool {
	d := p.Depth()
	return d%2 == 0 || p.Meta
}

// String renders the path back to its xid.
func (p Path) String() string {
	var b strings.Builder
	for _, s := range []string{p.GroupType, p.GroupID, p.ResourceType, p.ResourceID} {
		if s == "" {
			break
		}
		b.WriteByte('/')
		b.WriteString(s)
	}
	switch {
	case p.Meta:
		b.WriteString("/" + MetaSegment)
	case p.Versions:
		b.WriteString("/" + VersionsCollection)
		if p.VersionID != "" {
			b.WriteString("/" + p.VersionID)
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Parent returns the xid of the owning entity. The root is its own parent.
func (p Path) Parent() Path {
	switch {
	case p.VersionID != "":
		return Path{GroupType: p.GroupType, GroupID: p.GroupID, ResourceType: p.ResourceType, ResourceID: p.ResourceID}
	case p.Meta, p.Versions, p.ResourceID != "":
		return Path{GroupType: p.GroupType, GroupID: p.GroupID}
	default:
		return Path{}
	}
}

// AbsoluteURL resolves ref against base. Absolute refs are returned as is.
func AbsoluteURL(base, ref string) string {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	base = strings.TrimSuffix(base, "/")
	if ref == "" || ref == "/" {
		if base == "" {
			return "/"
		}
		return base + "/"
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return base + ref
}
