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

// Catalog owns store metadata lifecycle and schema versioning.
type Catalog struct {
	backend backend.Backend
	config  Config
	now     func() time.Time
}

// NewCatalog creates a Catalog on top of a backing store.
func NewCatalog(b backend.Backend, config Config) *Catalog {
	config.validate()
	return &Catalog{backend: b, config: config, now: time.Now}
}

// Create registers a new store for owner. An empty def.ID assigns a fresh id.
func (c *Catalog) Create(ctx context.Context, owner string, def Definition) (*Store, error) {
	if err := def.Schema.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDefinition, err)
	}
	strategy := def.Strategy
	if strategy == "" {
		strategy = resolve.StrategyNone
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: unknown sibling strategy %q", ErrBadDefinition, def.Strategy)
	}

	id := def.ID
	if id == "" {
		id = keys.NewSuffix()
	}
	key := keys.StoreKey(owner, id)

	var existing []backend.Version
	err := withRetry(ctx, c.config, func() (err error) {
		existing, err = c.backend.Get(ctx, keys.StoreBucket, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrStoreExists, id)
	}

	now := c.now().UTC()
	st := &Store{
		ID:         id,
		Owner:      owner,
		KeyType:    def.KeyType,
		Strategy:   strategy,
		Strict:     def.Strict,
		Schema:     def.Schema,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := c.write(ctx, st, nil); err != nil {
		return nil, err
	}
	return st, nil
}

// Get loads a store by (owner, id).
func (c *Catalog) Get(ctx context.Context, owner, id string) (*Store, error) {
	key := keys.StoreKey(owner, id)

	var set []backend.Version
	err := withRetry(ctx, c.config, func() (err error) {
		set, err = c.backend.Get(ctx, keys.StoreBucket, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrStoreNotFound, owner, id)
	}

	st, tags, err := decodeStoreSet(set)
	if err != nil {
		return nil, err
	}
	if len(set) > 1 {
		// Concurrent metadata updates: last writer wins, collapse eagerly.
		// A failed write-back is harmless, the next read resolves again.
		_ = c.write(ctx, st, tags)
	}
	return st, nil
}

// List returns one page of the owner's stores ordered by creation time.
// An empty token starts from the beginning.
func (c *Catalog) List(ctx context.Context, owner, token string, limit int) ([]*Store, string, error) {
	if limit <= 0 {
		limit = c.config.PageSize
	}

	var page backend.KeyPage
	err := withRetry(ctx, c.config, func() (err error) {
		page, err = c.backend.IndexQuery(ctx, keys.StoreBucket, backend.IndexQuery{
			Name:  keys.OwnerIndex(owner),
			Token: token,
			Limit: limit,
		})
		return err
	})
	if err != nil {
		return nil, "", err
	}

	stores := make([]*Store, 0, len(page.Keys))
	for _, key := range page.Keys {
		_, id := keys.SplitRowKey(key)
		st, err := c.Get(ctx, owner, id)
		if err != nil {
			// Deleted between the index read and the record read.
			if errors.Is(err, ErrStoreNotFound) {
				continue
			}
			return nil, "", err
		}
		stores = append(stores, st)
	}
	return stores, page.Next, nil
}

// Update applies a partial update to a store's metadata or schema.
// Schema changes are lazy: existing rows are untouched, subsequent writes
// conform to the new schema.
func (c *Catalog) Update(ctx context.Context, owner, id string, upd Update) (*Store, error) {
	if upd.Schema != nil {
		if err := upd.Schema.Check(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadDefinition, err)
		}
	}
	if upd.Strategy != nil && !upd.Strategy.Valid() {
		return nil, fmt.Errorf("%w: unknown sibling strategy %q", ErrBadDefinition, *upd.Strategy)
	}

	key := keys.StoreKey(owner, id)
	var set []backend.Version
	err := withRetry(ctx, c.config, func() (err error) {
		set, err = c.backend.Get(ctx, keys.StoreBucket, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrStoreNotFound, owner, id)
	}

	st, tags, err := decodeStoreSet(set)
	if err != nil {
		return nil, err
	}

	if upd.KeyType != nil {
		st.KeyType = *upd.KeyType
	}
	if upd.Strategy != nil {
		st.Strategy = *upd.Strategy
	}
	if upd.Strict != nil {
		st.Strict = *upd.Strict
	}
	if upd.Schema != nil {
		st.Schema = *upd.Schema
	}
	st.ModifiedAt = c.now().UTC()

	if err := c.write(ctx, st, tags); err != nil {
		return nil, err
	}
	return st, nil
}

// Delete removes a store record and returns it. Rows become logically
// unreachable immediately; physical cleanup is asynchronous.
func (c *Catalog) Delete(ctx context.Context, owner, id string) (*Store, error) {
	st, err := c.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	err = withRetry(ctx, c.config, func() error {
		return c.backend.Delete(ctx, keys.StoreBucket, keys.StoreKey(owner, id))
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// write persists a store record, listing it under the owner index so List
// can page through stores ordered by creation time.
func (c *Catalog) write(ctx context.Context, st *Store, replaces []string) error {
	value, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return withRetry(ctx, c.config, func() error {
		_, err := c.backend.Put(ctx, keys.StoreBucket, keys.StoreKey(st.Owner, st.ID), backend.Put{
			Value: value,
			Entries: []backend.IndexEntry{{
				Name:  keys.OwnerIndex(st.Owner),
				Value: index.EncodeTime(st.CreatedAt),
			}},
			Replaces: replaces,
		})
		return err
	})
}

// decodeStoreSet decodes a store version set and picks the winner by
// (ModifiedAt, WriteTag). Store metadata always resolves last-writer-wins;
// the configurable sibling strategy applies to rows only.
func decodeStoreSet(set []backend.Version) (*Store, []string, error) {
	var winner *Store
	var winnerTag string
	tags := make([]string, 0, len(set))
	for _, v := range set {
		var st Store
		if err := json.Unmarshal(v.Value, &st); err != nil {
			return nil, nil, fmt.Errorf("decode store record: %w", err)
		}
		tags = append(tags, v.WriteTag)
		if winner == nil ||
			st.ModifiedAt.After(winner.ModifiedAt) ||
			(st.ModifiedAt.Equal(winner.ModifiedAt) && v.WriteTag > winnerTag) {
			winner = &st
			winnerTag = v.WriteTag
		}
	}
	return winner, tags, nil
}
