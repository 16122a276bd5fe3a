package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jacentio/stratum/backend"
	"github.com/jacentio/stratum/index"
	"github.com/jacentio/stratum/internal/keys"
	"github.com/jacentio/stratum/resolve"
)

// Rows is the row repository: CRUD over rows within a store, composing
// schema validation, index planning, and conflict resolution around the
// backing store. Stateless; safe for unbounded concurrent use.
type Rows struct {
	backend backend.Backend
	catalog *Catalog
	config  Config
	now     func() time.Time
}

// NewRows creates a row repository sharing the catalog's backing store.
func NewRows(b backend.Backend, catalog *Catalog, config Config) *Rows {
	config.validate()
	return &Rows{backend: b, catalog: catalog, config: config, now: time.Now}
}

// Create validates data against the store's schema and writes a new row.
// An empty rowID assigns a fresh one; the suffix is fixed before the write
// so a retry after an unknown outcome converges on the same row. A caller
// supplied rowID already in use fails with ErrRowExists; concurrent creates
// under the same id can still race past the check and land as siblings,
// collapsed per the store's strategy on the next read.
func (r *Rows) Create(ctx context.Context, owner, storeID, rowID string, data map[string]any) (*Row, error) {
	st, err := r.catalog.Get(ctx, owner, storeID)
	if err != nil {
		return nil, err
	}

	normalized, err := st.Schema.Validate(data, st.Strict)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if rowID == "" {
		rowID = keys.NewSuffix()
	} else {
		existing, _, err := r.readVersions(ctx, storeID, rowID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, fmt.Errorf("%w: %s/%s", ErrRowExists, storeID, rowID)
		}
	}
	now := r.now().UTC()
	entries := index.Plan(storeID, st.Schema, normalized, now, now)

	if err := r.write(ctx, storeID, rowID, rowDoc{
		Data:       normalized,
		CreatedAt:  now,
		ModifiedAt: now,
	}, entries, nil); err != nil {
		return nil, err
	}

	return &Row{
		ID:         rowID,
		StoreID:    storeID,
		Data:       normalized,
		Indexes:    index.Display(storeID, entries),
		CreatedAt:  now,
		ModifiedAt: now,
	}, nil
}

// Get reads a row. A version set of more than one sibling is collapsed per
// the store's strategy and the resolved value written back, so subsequent
// reads see a single version until the next write race.
func (r *Rows) Get(ctx context.Context, owner, storeID, rowID string) (*Row, error) {
	st, err := r.catalog.Get(ctx, owner, storeID)
	if err != nil {
		return nil, err
	}

	versions, tags, err := r.readVersions(ctx, storeID, rowID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrRowNotFound, storeID, rowID)
	}

	resolved := versions[0]
	entries := index.Plan(storeID, st.Schema, resolved.Data, resolved.CreatedAt, resolved.ModifiedAt)

	if len(versions) > 1 {
		resolved, err = resolve.Resolve(st.Strategy, versions)
		if err != nil {
			if errors.Is(err, resolve.ErrUnresolved) {
				return nil, fmt.Errorf("%w: %w", ErrUnresolvedConflict, err)
			}
			return nil, err
		}
		// Indexes are recomputed from the resolved data, never merged.
		entries = index.Plan(storeID, st.Schema, resolved.Data, resolved.CreatedAt, resolved.ModifiedAt)
		if err := r.write(ctx, storeID, rowID, rowDoc{
			Data:       resolved.Data,
			CreatedAt:  resolved.CreatedAt,
			ModifiedAt: resolved.ModifiedAt,
		}, entries, tags); err != nil {
			return nil, err
		}
	}

	return &Row{
		ID:         rowID,
		StoreID:    storeID,
		Data:       resolved.Data,
		Indexes:    index.Display(storeID, entries),
		CreatedAt:  resolved.CreatedAt,
		ModifiedAt: resolved.ModifiedAt,
	}, nil
}

// Update re-validates data and replaces the row's observed versions.
// Racing updates legitimately produce siblings rather than losing data.
func (r *Rows) Update(ctx context.Context, owner, storeID, rowID string, data map[string]any) (*Row, error) {
	st, err := r.catalog.Get(ctx, owner, storeID)
	if err != nil {
		return nil, err
	}

	versions, tags, err := r.readVersions(ctx, storeID, rowID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrRowNotFound, storeID, rowID)
	}

	normalized, err := st.Schema.Validate(data, st.Strict)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	created := versions[0].CreatedAt
	for _, v := range versions[1:] {
		if v.CreatedAt.Before(created) {
			created = v.CreatedAt
		}
	}
	now := r.now().UTC()
	entries := index.Plan(storeID, st.Schema, normalized, created, now)

	if err := r.write(ctx, storeID, rowID, rowDoc{
		Data:       normalized,
		CreatedAt:  created,
		ModifiedAt: now,
	}, entries, tags); err != nil {
		return nil, err
	}

	return &Row{
		ID:         rowID,
		StoreID:    storeID,
		Data:       normalized,
		Indexes:    index.Display(storeID, entries),
		CreatedAt:  created,
		ModifiedAt: now,
	}, nil
}

// Delete removes a row and its index entries, returning the deleted row
// when one existed. Deleting an absent row is not an error; the returned
// row is nil. A row in unresolved conflict is still deleted, but its data
// cannot be reported.
func (r *Rows) Delete(ctx context.Context, owner, storeID, rowID string) (*Row, error) {
	row, err := r.Get(ctx, owner, storeID, rowID)
	if err != nil {
		if !errors.Is(err, ErrRowNotFound) && !errors.Is(err, ErrUnresolvedConflict) {
			return nil, err
		}
		row = nil
	}
	err = withRetry(ctx, r.config, func() error {
		return r.backend.Delete(ctx, keys.RowBucket, keys.RowKey(storeID, rowID))
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ListIDs returns one page of row ids ordered by creation time. The token
// restarts the listing; empty starts from the beginning.
func (r *Rows) ListIDs(ctx context.Context, owner, storeID, token string, limit int) ([]string, string, error) {
	if _, err := r.catalog.Get(ctx, owner, storeID); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = r.config.PageSize
	}

	var page backend.KeyPage
	err := withRetry(ctx, r.config, func() (err error) {
		page, err = r.backend.IndexQuery(ctx, keys.RowBucket, backend.IndexQuery{
			Name:  keys.MetaIndex(storeID, keys.MetaCreatedAt),
			Token: token,
			Limit: limit,
		})
		return err
	})
	if err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(page.Keys))
	for _, key := range page.Keys {
		_, suffix := keys.SplitRowKey(key)
		ids = append(ids, suffix)
	}
	return ids, page.Next, nil
}

// readVersions loads and decodes a row's version set.
func (r *Rows) readVersions(ctx context.Context, storeID, rowID string) ([]resolve.Version, []string, error) {
	var set []backend.Version
	err := withRetry(ctx, r.config, func() (err error) {
		set, err = r.backend.Get(ctx, keys.RowBucket, keys.RowKey(storeID, rowID))
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	versions := make([]resolve.Version, 0, len(set))
	tags := make([]string, 0, len(set))
	for _, v := range set {
		var doc rowDoc
		if err := json.Unmarshal(v.Value, &doc); err != nil {
			return nil, nil, fmt.Errorf("decode row version: %w", err)
		}
		versions = append(versions, resolve.Version{
			Data:       doc.Data,
			CreatedAt:  doc.CreatedAt,
			ModifiedAt: doc.ModifiedAt,
			WriteTag:   v.WriteTag,
		})
		tags = append(tags, v.WriteTag)
	}
	return versions, tags, nil
}

// write encodes and stores one row version with its index entries.
func (r *Rows) write(ctx context.Context, storeID, rowID string, doc rowDoc, entries []index.Entry, replaces []string) error {
	value, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	backendEntries := make([]backend.IndexEntry, len(entries))
	for i, e := range entries {
		backendEntries[i] = backend.IndexEntry{Name: e.Name, Value: e.Value}
	}

	return withRetry(ctx, r.config, func() error {
		_, err := r.backend.Put(ctx, keys.RowBucket, keys.RowKey(storeID, rowID), backend.Put{
			Value:    value,
			Entries:  backendEntries,
			Replaces: replaces,
		})
		return err
	})
}
