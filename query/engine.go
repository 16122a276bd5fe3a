// Package query evaluates indexed and free-text searches against a store's
// rows, producing a lazy, cancelable result sequence.
package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jacentio/stratum/backend"
	"github.com/jacentio/stratum/index"
	"github.com/jacentio/stratum/internal/keys"
	"github.com/jacentio/stratum/schema"
	"github.com/jacentio/stratum/store"
)

// Done is returned by Cursor.Next when the result sequence is exhausted.
var Done = errors.New("query: no more results")

// Tokenizer splits free text into match terms. The default is
// index.Tokenize; replace it to change ranking/tokenization policy.
type Tokenizer func(string) []string

// Engine evaluates queries for one backing store.
type Engine struct {
	backend  backend.Backend
	catalog  *store.Catalog
	rows     *store.Rows
	tokenize Tokenizer

	// PageSize is the backend page size used while streaming. Default: 50.
	PageSize int
}

// New creates a query engine sharing the repository's backing store.
func New(b backend.Backend, catalog *store.Catalog, rows *store.Rows) *Engine {
	return &Engine{
		backend:  b,
		catalog:  catalog,
		rows:     rows,
		tokenize: index.Tokenize,
		PageSize: 50,
	}
}

// SetTokenizer replaces the free-text tokenizer.
func (e *Engine) SetTokenizer(t Tokenizer) {
	if t != nil {
		e.tokenize = t
	}
}

// Search parses q and returns a lazy cursor over matching rows.
// Rows with unresolved siblings are collapsed exactly as in a direct read.
// Abandoning the cursor mid-stream is safe; search never writes beyond
// sibling write-backs.
func (e *Engine) Search(ctx context.Context, owner, storeID, q string) (*Cursor, error) {
	st, err := e.catalog.Get(ctx, owner, storeID)
	if err != nil {
		return nil, err
	}

	parsed, err := Parse(q, e.tokenize)
	if err != nil {
		return nil, err
	}

	cur := &Cursor{engine: e, owner: owner, store: st}
	switch parsed.Kind {
	case KindEquality:
		e.planEquality(cur, st, parsed)
	case KindRange:
		if err := e.planRange(cur, st, parsed); err != nil {
			return nil, err
		}
	case KindText:
		e.planText(cur, st, parsed)
	}
	return cur, nil
}

// planEquality picks an index lookup when the field is indexed, otherwise
// a full scan with an equality filter.
func (e *Engine) planEquality(cur *Cursor, st *store.Store, q Query) {
	if enc, name, ok := e.encodeOperand(st, q.Field, q.Value); ok {
		cur.query = backend.IndexQuery{Name: name, Match: enc}
		return
	}
	cur.query = scanQuery(st.ID)
	cur.filter = equalityFilter(st.Schema, q.Field, q.Value)
}

// planRange translates bounds through the same order-preserving encoding
// the planner used at write time.
func (e *Engine) planRange(cur *Cursor, st *store.Store, q Query) error {
	var low, high, name string
	if q.Low != "" {
		enc, n, ok := e.encodeOperand(st, q.Field, q.Low)
		if !ok {
			return fmt.Errorf("query: field %q is not range-queryable", q.Field)
		}
		low, name = enc, n
	}
	if q.High != "" {
		enc, n, ok := e.encodeOperand(st, q.Field, q.High)
		if !ok {
			return fmt.Errorf("query: field %q is not range-queryable", q.Field)
		}
		high, name = enc, n
	}
	cur.query = backend.IndexQuery{Name: name, Start: low, End: high}
	return nil
}

// planText matches rows containing every term. The token index holds tokens
// for every string value a row carries, so it narrows candidates to rows
// holding the first term; the full term set is then checked against the
// row data.
func (e *Engine) planText(cur *Cursor, st *store.Store, q Query) {
	cur.query = backend.IndexQuery{Name: keys.TokenIndex(st.ID), Match: q.Terms[0]}
	cur.filter = textFilter(e.tokenize, q.Terms)
}

// encodeOperand encodes a raw query operand for the field's index, if one
// exists. Structural created_at/modified_at fields are always queryable.
func (e *Engine) encodeOperand(st *store.Store, field, raw string) (value, name string, ok bool) {
	if field == keys.MetaCreatedAt || field == keys.MetaModifiedAt {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return "", "", false
		}
		return index.EncodeTime(ts), keys.MetaIndex(st.ID, field), true
	}

	f, declared := st.Schema[field]
	if !declared || !f.Indexed {
		return "", "", false
	}
	name = keys.FieldIndex(st.ID, field)

	switch f.Type {
	case schema.TypeString, schema.TypeList:
		return raw, name, true
	case schema.TypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", "", false
		}
		return index.EncodeNumber(n), name, true
	case schema.TypeBoolean:
		return raw, name, raw == "true" || raw == "false"
	case schema.TypeTimestamp:
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return "", "", false
		}
		return index.EncodeTime(ts), name, true
	}
	return "", "", false
}

// scanQuery walks every row via the structural created_at index, yielding
// insertion order.
func scanQuery(storeID string) backend.IndexQuery {
	return backend.IndexQuery{Name: keys.MetaIndex(storeID, keys.MetaCreatedAt)}
}

// equalityFilter compares a data value against a raw operand, numerically
// when both sides parse as numbers.
func equalityFilter(s schema.Schema, field, raw string) func(*store.Row) bool {
	return func(row *store.Row) bool {
		v, ok := row.Data[field]
		if !ok {
			return false
		}
		switch val := v.(type) {
		case string:
			return val == raw
		case float64:
			n, err := strconv.ParseFloat(raw, 64)
			return err == nil && val == n
		case bool:
			return strconv.FormatBool(val) == raw
		case []any:
			for _, elem := range val {
				if s, ok := elem.(string); ok && s == raw {
					return true
				}
			}
			return false
		}
		return false
	}
}

// textFilter requires every term to appear among the tokens of the row's
// text values.
func textFilter(tokenize Tokenizer, terms []string) func(*store.Row) bool {
	return func(row *store.Row) bool {
		tokens := make(map[string]bool)
		for _, v := range row.Data {
			switch val := v.(type) {
			case string:
				for _, tok := range tokenize(val) {
					tokens[tok] = true
				}
			case []any:
				for _, elem := range val {
					if s, ok := elem.(string); ok {
						for _, tok := range tokenize(s) {
							tokens[tok] = true
						}
					}
				}
			}
		}
		for _, term := range terms {
			if !tokens[term] {
				return false
			}
		}
		return true
	}
}
