package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jacentio/stratum/backend"
	"github.com/jacentio/stratum/bulk"
	"github.com/jacentio/stratum/query"
	"github.com/jacentio/stratum/store"
)

// lineWriter emits one NDJSON envelope per line, flushing after each so
// consumers see results as they are produced.
type lineWriter struct {
	w     http.ResponseWriter
	flush http.Flusher
	enc   *json.Encoder
}

func newLineWriter(w http.ResponseWriter) *lineWriter {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	lw := &lineWriter{w: w, enc: json.NewEncoder(w)}
	lw.flush, _ = w.(http.Flusher)
	return lw
}

func (lw *lineWriter) write(v any) {
	_ = lw.enc.Encode(v)
	if lw.flush != nil {
		lw.flush.Flush()
	}
}

// upload applies a newline-delimited stream of row mutations and streams
// one outcome line per input item, in input order. Item failures are
// reported inline and never abort the batch.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, storeID := r.PathValue("owner"), r.PathValue("store")

	// Resolve the store up front so an unknown store fails as a plain
	// JSON error instead of an open stream.
	if _, err := h.catalog.Get(ctx, owner, storeID); err != nil {
		h.fail(w, r, err)
		return
	}

	items := make(chan bulk.Item)
	var decErr error
	go func() {
		defer close(items)
		defer r.Body.Close()
		dec := json.NewDecoder(r.Body)
		for {
			var it bulk.Item
			if err := dec.Decode(&it); err != nil {
				if !errors.Is(err, io.EOF) {
					decErr = err
				}
				return
			}
			select {
			case items <- it:
			case <-ctx.Done():
				return
			}
		}
	}()

	lw := newLineWriter(w)
	for outcome := range h.processor.Run(ctx, owner, storeID, items) {
		if outcome.Err != nil {
			_, reason := classify(outcome.Err)
			lw.write(envelope{"success": false, "index": outcome.Index, "reason": reason})
			continue
		}
		lw.write(envelope{"success": true, "index": outcome.Index, "row": outcome.Row})
	}
	// The outcome channel closing means the decode goroutine finished.
	if decErr != nil {
		lw.write(envelope{"success": false, "reason": fmt.Sprintf("malformed item: %v", decErr)})
	}
}

// search streams matching rows as NDJSON, fetching lazily so abandoning
// the response body abandons the query.
func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cur, err := h.engine.Search(ctx, r.PathValue("owner"), r.PathValue("store"), r.URL.Query().Get("query"))
	if err != nil {
		h.fail(w, r, searchErr(err))
		return
	}

	lw := newLineWriter(w)
	for {
		row, err := cur.Next(ctx)
		if errors.Is(err, query.Done) {
			return
		}
		if err != nil {
			// Mid-stream failure: the status line is gone, report inline.
			_, reason := classify(err)
			lw.write(envelope{"success": false, "reason": reason})
			return
		}
		lw.write(envelope{"success": true, "row": row})
	}
}

func searchErr(err error) error {
	// Parse and plan failures are client errors; everything else keeps
	// its own classification.
	if errors.Is(err, store.ErrStoreNotFound) || errors.Is(err, backend.ErrUnavailable) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", errBadRequest, err)
}
