// Package backend abstracts the distributed key-value store underneath the
// row engine: per-key get/put/delete plus a secondary-index query primitive.
//
// The backing store is assumed eventually consistent. A key may hold more
// than one value at once (a version set) when writers race; callers collapse
// version sets with the resolve package, never the backend itself.
package backend

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the backing store cannot be reached.
//
// Implementations must return an error satisfying
// errors.Is(err, ErrUnavailable) for I/O failures and timeouts, so callers
// can apply their retry policy. Context cancellation is passed through
// untranslated.
var ErrUnavailable = errors.New("backend: unavailable")

// Version is one stored value for a key.
type Version struct {
	// Value is the opaque encoded record.
	Value []byte

	// WriteTag uniquely identifies the physical write that produced this
	// version. Tags are opaque but totally ordered as strings.
	WriteTag string
}

// IndexEntry is one secondary-index entry attached to a key.
type IndexEntry struct {
	// Name is the index name; names are namespaced by the caller.
	Name string

	// Value is the encoded index value; ordering of values is lexical.
	Value string
}

// Put describes a write to a key.
type Put struct {
	// Value is the record to store.
	Value []byte

	// Entries replaces the key's current index entries.
	Entries []IndexEntry

	// Replaces lists the write tags this write observed and supersedes.
	// Tags no longer present are ignored. A write that replaces nothing
	// coexists with any concurrent versions as a sibling.
	Replaces []string
}

// IndexQuery selects keys from a secondary index.
//
// Either Match (exact value) or the Start/End range is used; an empty bound
// leaves that side open. Results are ordered by (value, key) and paged via
// the opaque continuation token.
type IndexQuery struct {
	Name  string
	Match string
	Start string
	End   string
	Token string
	Limit int
}

// KeyPage is one page of index query results.
type KeyPage struct {
	// Keys are the matching keys, ordered by (value, key), deduplicated.
	Keys []string

	// Next restarts the query after this page. Empty means exhausted.
	Next string
}

// Backend is the contract the row engine requires from a backing store.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the version set stored under key. An absent key yields
	// an empty set, not an error.
	Get(ctx context.Context, bucket, key string) ([]Version, error)

	// Put writes a new version and installs its index entries, retiring
	// the versions named in p.Replaces. It returns the written version.
	Put(ctx context.Context, bucket, key string, p Put) (Version, error)

	// Delete removes every version of key and all its index entries.
	// Deleting an absent key is a no-op.
	Delete(ctx context.Context, bucket, key string) error

	// IndexQuery returns one page of keys matching q.
	IndexQuery(ctx context.Context, bucket string, q IndexQuery) (KeyPage, error)
}
