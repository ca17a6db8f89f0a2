// Package store holds the process-wide mutable state of an adapter: the
// conditional cache entries and the catalog cursor. Callers receive a Store
// through their constructors; nothing in the process reaches for a global.
//
// The production wiring is a Memory store in front of a Badger database:
// reads and writes hit memory, and a Snapshotter periodically flushes
// changed keys to disk and restores them on start.
package store

import "context"

// Store persists opaque payloads under string keys. Writes are whole-value
// overwrites; concurrent writers to one key race and the last one wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}
