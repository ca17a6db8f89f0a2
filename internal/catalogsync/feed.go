// Package catalogsync keeps a name index of an upstream registry current by
// crawling its paged, timestamp-ordered commit feed. Each run fetches only
// pages newer than a persisted cursor, so the index converges on upstream
// state without re-reading the whole catalog.
package catalogsync

import (
	"context"
	"time"
)

// EventKind distinguishes catalog commit events.
type EventKind int

const (
	// Detail announces a new or updated package version.
	Detail EventKind = iota
	// Delete announces a removal. The index is a read-mostly mirror and
	// ignores deletions.
	Delete
)

// Event is one commit entry of a catalog page.
type Event struct {
	ID         string
	Version    string
	Kind       EventKind
	CommitTime time.Time
}

// PageRef points at a page (or an index of sub-pages) together with the
// timestamp of its newest commit.
type PageRef struct {
	URL        string
	CommitTime time.Time
}

// Page is a fetched catalog page. A page holds events, sub-page
// references, or both.
type Page struct {
	Events   []Event
	SubPages []PageRef
}

// Feed is a paged, timestamp-ordered upstream commit log.
type Feed interface {
	// Name identifies the feed in logs and store keys.
	Name() string

	// Index returns the top-level page references.
	Index(ctx context.Context) ([]PageRef, error)

	// Page fetches one page.
	Page(ctx context.Context, ref PageRef) (Page, error)
}
