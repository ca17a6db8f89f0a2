package nuget

import (
	"encoding/json"
	"strings"
	"time"
)

// Response structures for the NuGet v3 API.

type catalogIndex struct {
	CommitTimeStamp time.Time     `json:"commitTimeStamp"`
	Count           int           `json:"count"`
	Items           []catalogItem `json:"items"`
}

type catalogItem struct {
	ID              string    `json:"@id"`
	Type            string    `json:"@type"`
	CommitTimeStamp time.Time `json:"commitTimeStamp"`
	Count           int       `json:"count,omitempty"`
	PackageID       string    `json:"nuget:id,omitempty"`
	PackageVersion  string    `json:"nuget:version,omitempty"`
}

type catalogPage struct {
	Items []catalogItem `json:"items"`
}

const (
	typePackageDetails = "nuget:PackageDetails"
	typePackageDelete  = "nuget:PackageDelete"
)

type registrationIndex struct {
	Count int                `json:"count"`
	Items []registrationPage `json:"items"`
}

// registrationPage items are omitted for large packages and must be
// fetched from the page's own URL.
type registrationPage struct {
	ID              string             `json:"@id"`
	Count           int                `json:"count"`
	Lower           string             `json:"lower"`
	Upper           string             `json:"upper"`
	CommitTimeStamp time.Time          `json:"commitTimeStamp"`
	Items           []registrationLeaf `json:"items"`
}

type registrationLeaf struct {
	ID              string       `json:"@id"`
	CommitTimeStamp time.Time    `json:"commitTimeStamp"`
	CatalogEntry    catalogEntry `json:"catalogEntry"`
	PackageContent  string       `json:"packageContent"`
}

type catalogEntry struct {
	ID                       string            `json:"id"`
	Version                  string            `json:"version"`
	Title                    string            `json:"title"`
	Description              string            `json:"description"`
	Summary                  string            `json:"summary"`
	Authors                  stringList        `json:"authors"`
	Tags                     stringList        `json:"tags"`
	ProjectURL               string            `json:"projectUrl"`
	IconURL                  string            `json:"iconUrl"`
	LicenseExpression        string            `json:"licenseExpression"`
	LicenseURL               string            `json:"licenseUrl"`
	Language                 string            `json:"language"`
	MinClientVersion         string            `json:"minClientVersion"`
	RequireLicenseAcceptance bool              `json:"requireLicenseAcceptance"`
	Listed                   *bool             `json:"listed"`
	Published                time.Time         `json:"published"`
	PackageContent           string            `json:"packageContent"`
	DependencyGroups         []dependencyGroup `json:"dependencyGroups"`
	Deprecation              *deprecation      `json:"deprecation"`
}

type dependencyGroup struct {
	TargetFramework string       `json:"targetFramework"`
	Dependencies    []dependency `json:"dependencies"`
}

type dependency struct {
	ID    string `json:"id"`
	Range string `json:"range"`
}

type deprecation struct {
	Reasons []string `json:"reasons"`
	Message string   `json:"message"`
}

// unlistedPublished is the publish date NuGet assigns to unlisted versions.
var unlistedPublished = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// IsListed reports whether the version shows up in search and listings.
func (e catalogEntry) IsListed() bool {
	if e.Listed != nil {
		return *e.Listed
	}
	return e.Published.IsZero() || e.Published.Year() > unlistedPublished.Year()
}

type flatContainerIndex struct {
	Versions []string `json:"versions"`
}

type searchResponse struct {
	TotalHits int            `json:"totalHits"`
	Data      []searchResult `json:"data"`
}

type searchResult struct {
	ID             string `json:"id"`
	Version        string `json:"version"`
	Description    string `json:"description"`
	TotalDownloads int64  `json:"totalDownloads"`
}

// stringList accepts either a JSON array of strings or a single
// comma-separated string. NuGet uses both shapes for authors and tags.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = trimAll(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = trimAll(strings.FieldsFunc(s, func(r rune) bool { return r == ',' }))
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
