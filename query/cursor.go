package query

import (
	"context"
	"errors"

	"github.com/jacentio/stratum/backend"
	"github.com/jacentio/stratum/internal/keys"
	"github.com/jacentio/stratum/store"
)

// Cursor streams matching rows one at a time. It is lazy: backend pages
// are fetched on demand and nothing is materialized beyond one page of
// candidate keys. A Cursor is not safe for concurrent use.
type Cursor struct {
	engine *Engine
	owner  string
	store  *store.Store

	query  backend.IndexQuery
	filter func(*store.Row) bool

	pending   []string
	token     string
	exhausted bool

	// emitted guards against a row surfacing twice when it holds several
	// matching index entries split across backend pages.
	emitted map[string]bool
}

// Next returns the next matching row, or Done when the sequence is
// exhausted. Cancelling ctx aborts the stream without side effects.
func (c *Cursor) Next(ctx context.Context) (*store.Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(c.pending) == 0 {
			if c.exhausted {
				return nil, Done
			}
			if err := c.fetch(ctx); err != nil {
				return nil, err
			}
			continue
		}

		key := c.pending[0]
		c.pending = c.pending[1:]
		if c.emitted[key] {
			continue
		}
		_, suffix := keys.SplitRowKey(key)

		row, err := c.engine.rows.Get(ctx, c.owner, c.store.ID, suffix)
		if err != nil {
			// The row vanished between the index read and the record read.
			if errors.Is(err, store.ErrRowNotFound) {
				continue
			}
			return nil, err
		}
		if c.filter != nil && !c.filter(row) {
			continue
		}
		if c.emitted == nil {
			c.emitted = make(map[string]bool)
		}
		c.emitted[key] = true
		return row, nil
	}
}

// fetch loads the next page of candidate keys.
func (c *Cursor) fetch(ctx context.Context) error {
	q := c.query
	q.Token = c.token
	q.Limit = c.engine.PageSize
	if q.Limit <= 0 {
		q.Limit = 50
	}

	page, err := c.engine.backend.IndexQuery(ctx, keys.RowBucket, q)
	if err != nil {
		return err
	}
	c.pending = page.Keys
	c.token = page.Next
	if page.Next == "" {
		c.exhausted = true
	}
	return nil
}
