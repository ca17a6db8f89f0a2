package nuget

import (
	"context"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/catalogsync"
)

// FeedName labels the nuget.org catalog in logs, metrics and store keys.
const FeedName = "nuget.org"

// Feed reads the NuGet catalog (catalog0) as a catalogsync.Feed.
type Feed struct {
	client *Client
}

// NewFeed creates a feed over client's catalog endpoint.
func NewFeed(client *Client) *Feed {
	return &Feed{client: client}
}

// Name implements catalogsync.Feed.
func (f *Feed) Name() string { return FeedName }

// Index implements catalogsync.Feed.
func (f *Feed) Index(ctx context.Context) ([]catalogsync.PageRef, error) {
	var idx catalogIndex
	if err := f.client.getJSON(ctx, f.client.endpoints.Catalog, &idx); err != nil {
		return nil, err
	}
	refs := make([]catalogsync.PageRef, 0, len(idx.Items))
	for _, it := range idx.Items {
		refs = append(refs, catalogsync.PageRef{URL: it.ID, CommitTime: it.CommitTimeStamp})
	}
	return refs, nil
}

// Page implements catalogsync.Feed. Items that are themselves pages are
// returned as sub-pages.
func (f *Feed) Page(ctx context.Context, ref catalogsync.PageRef) (catalogsync.Page, error) {
	var page catalogPage
	if err := f.client.getJSON(ctx, ref.URL, &page); err != nil {
		return catalogsync.Page{}, err
	}
	var out catalogsync.Page
	for _, it := range page.Items {
		switch it.Type {
		case typePackageDetails:
			out.Events = append(out.Events, catalogsync.Event{
				ID:         it.PackageID,
				Version:    it.PackageVersion,
				Kind:       catalogsync.Detail,
				CommitTime: it.CommitTimeStamp,
			})
		case typePackageDelete:
			out.Events = append(out.Events, catalogsync.Event{
				ID:         it.PackageID,
				Version:    it.PackageVersion,
				Kind:       catalogsync.Delete,
				CommitTime: it.CommitTimeStamp,
			})
		case "CatalogPage":
			out.SubPages = append(out.SubPages, catalogsync.PageRef{URL: it.ID, CommitTime: it.CommitTimeStamp})
		}
	}
	return out, nil
}
