// Package bulk applies batches of row mutations with per-item outcome
// accounting. Items run concurrently for throughput, but outcomes are
// emitted strictly in input order so callers can stream them back against
// an unbuffered request body.
package bulk

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jacentio/stratum/store"
)

// Item is one row mutation in a batch. An empty ID creates a new row with
// an assigned id; a non-empty ID updates the existing row.
type Item struct {
	ID   string         `json:"id,omitempty"`
	Data map[string]any `json:"data"`
}

// Outcome is the result of applying one item. Exactly one of Row and Err
// is set.
type Outcome struct {
	// Index is the item's position in the input sequence.
	Index int

	Row *store.Row
	Err error
}

// Config tunes a Processor.
type Config struct {
	// Workers bounds concurrent item application. Default: 8.
	Workers int

	// Rate caps item applications per second across all workers.
	// Zero means unlimited.
	Rate rate.Limit

	// Burst is the limiter burst size when Rate is set. Default: Workers.
	Burst int
}

func (c *Config) validate() {
	if c.Workers < 1 {
		c.Workers = 8
	}
	if c.Burst < 1 {
		c.Burst = c.Workers
	}
}

// Processor drives row repository calls for batches of items.
type Processor struct {
	rows    *store.Rows
	config  Config
	limiter *rate.Limiter
}

// New creates a Processor over the given row repository.
func New(rows *store.Rows, config Config) *Processor {
	config.validate()
	p := &Processor{rows: rows, config: config}
	if config.Rate > 0 {
		p.limiter = rate.NewLimiter(config.Rate, config.Burst)
	}
	return p
}

// pending pairs an item with the slot its outcome will arrive on.
type pending struct {
	index int
	item  Item
	done  chan Outcome
}

// Run applies every item from in and returns a channel of outcomes in
// input order, one per item. No item's failure aborts later items; each
// failure is reported in its outcome. The returned channel is closed once
// every consumed item has been reported.
//
// Cancelling ctx stops consumption of in; items already dispatched report
// the cancellation error as their outcome.
func (p *Processor) Run(ctx context.Context, owner, storeID string, in <-chan Item) <-chan Outcome {
	// The order channel's buffer bounds how far dispatch may run ahead
	// of emission.
	order := make(chan pending, p.config.Workers)
	work := make(chan pending)
	out := make(chan Outcome)

	go func() {
		defer close(order)
		defer close(work)
		index := 0
		for item := range in {
			pd := pending{index: index, item: item, done: make(chan Outcome, 1)}
			index++
			select {
			case order <- pd:
			case <-ctx.Done():
				return
			}
			select {
			case work <- pd:
			case <-ctx.Done():
				pd.done <- Outcome{Index: pd.index, Err: ctx.Err()}
				return
			}
		}
	}()

	var g errgroup.Group
	for i := 0; i < p.config.Workers; i++ {
		g.Go(func() error {
			for pd := range work {
				row, err := p.apply(ctx, owner, storeID, pd.item)
				pd.done <- Outcome{Index: pd.index, Row: row, Err: err}
			}
			return nil
		})
	}

	go func() {
		defer close(out)
		for pd := range order {
			out <- <-pd.done
		}
		_ = g.Wait()
	}()

	return out
}

// apply executes one item against the row repository.
func (p *Processor) apply(ctx context.Context, owner, storeID string, it Item) (*store.Row, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if it.ID == "" {
		return p.rows.Create(ctx, owner, storeID, "", it.Data)
	}
	return p.rows.Update(ctx, owner, storeID, it.ID, it.Data)
}
