package nuget

import (
	"slices"
	"time"

	"github.com/agentstation/utc"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/version"
)

// defaultLeaf picks the version a package resolves to: the highest listed
// stable release, else the highest listed pre-release, else the highest
// version. leaves must be sorted ascending.
func defaultLeaf(leaves []registrationLeaf) *registrationLeaf {
	var listed *registrationLeaf
	for i := len(leaves) - 1; i >= 0; i-- {
		e := leaves[i].CatalogEntry
		if !e.IsListed() {
			continue
		}
		if !version.IsPrerelease(e.Version) {
			return &leaves[i]
		}
		if listed == nil {
			listed = &leaves[i]
		}
	}
	if listed != nil {
		return listed
	}
	if len(leaves) == 0 {
		return nil
	}
	return &leaves[len(leaves)-1]
}

func license(e catalogEntry) string {
	if e.LicenseExpression != "" {
		return e.LicenseExpression
	}
	return e.LicenseURL
}

func published(e catalogEntry) utc.Time {
	if e.Published.IsZero() || !e.IsListed() {
		return utc.Time{}
	}
	return utc.Time{Time: e.Published}
}

func leafModified(l registrationLeaf) time.Time {
	if !l.CommitTimeStamp.IsZero() {
		return l.CommitTimeStamp
	}
	return l.CatalogEntry.Published
}

// toResource builds the package entity from its registration leaves. The
// default version supplies the descriptive metadata.
func toResource(leaves []registrationLeaf) (*registry.Resource, error) {
	def := defaultLeaf(leaves)
	e := def.CatalogEntry

	c, err := registry.NewCommon(resourceIDAttr, GroupXID, ResourceType, e.ID)
	if err != nil {
		return nil, err
	}
	c.Description = e.Description
	c.Docs = e.ProjectURL

	var created, modified time.Time
	for _, l := range leaves {
		if p := published(l.CatalogEntry); !p.Time.IsZero() && (created.IsZero() || p.Time.Before(created)) {
			created = p.Time
		}
		if m := leafModified(l); m.After(modified) {
			modified = m
		}
	}
	if !created.IsZero() {
		c.CreatedAt = utc.Time{Time: created}
	}
	if !modified.IsZero() {
		c.ModifiedAt = utc.Time{Time: modified}
	}

	ext := map[string]any{}
	if e.Title != "" {
		ext["title"] = e.Title
	}
	if e.Summary != "" {
		ext["summary"] = e.Summary
	}
	if e.IconURL != "" {
		ext["iconurl"] = e.IconURL
	}
	ext["requirelicenseacceptance"] = e.RequireLicenseAcceptance
	ext["deprecated"] = e.Deprecation != nil
	c.Extensions = ext

	return &registry.Resource{
		Common:           c,
		DefaultVersionID: e.Version,
		Authors:          slices.Clone([]string(e.Authors)),
		License:          license(e),
		Homepage:         e.ProjectURL,
		Tags:             slices.Clone([]string(e.Tags)),
		VersionsCount:    len(leaves),
	}, nil
}

// toVersion builds one version entity. Dependencies carry their declared
// ranges only.
func toVersion(l registrationLeaf, isDefault bool) (*registry.Version, error) {
	e := l.CatalogEntry
	resXID, err := registry.BuildXID(GroupXID, ResourceType, e.ID)
	if err != nil {
		return nil, err
	}
	c, err := registry.NewCommon("versionid", resXID, registry.VersionsCollection, e.Version)
	if err != nil {
		return nil, err
	}
	c.Description = e.Description
	c.CreatedAt = published(e)
	if m := leafModified(l); !m.IsZero() {
		c.ModifiedAt = utc.Time{Time: m}
	}

	var (
		deps       []registry.Dependency
		frameworks []string
	)
	for _, g := range e.DependencyGroups {
		if g.TargetFramework != "" && !slices.Contains(frameworks, g.TargetFramework) {
			frameworks = append(frameworks, g.TargetFramework)
		}
		for _, d := range g.Dependencies {
			deps = append(deps, registry.Dependency{
				Name:            d.ID,
				Version:         d.Range,
				TargetFramework: g.TargetFramework,
			})
		}
	}

	ext := map[string]any{"listed": e.IsListed()}
	if len(frameworks) > 0 {
		ext["targetframeworks"] = frameworks
	}
	if e.MinClientVersion != "" {
		ext["minclientversion"] = e.MinClientVersion
	}
	if lic := license(e); lic != "" {
		ext["license"] = lic
	}
	c.Extensions = ext

	content := l.PackageContent
	if content == "" {
		content = e.PackageContent
	}
	return &registry.Version{
		Common:              c,
		ResourceIDAttribute: resourceIDAttr,
		ResourceID:          registry.SanitizeID(e.ID),
		IsDefault:           isDefault,
		Dependencies:        deps,
		PackageContent:      content,
	}, nil
}
