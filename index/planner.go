// Package index derives secondary-index entries for rows from their schema
// and field values.
package index

import (
	"time"

	"github.com/jacentio/stratum/internal/keys"
	"github.com/jacentio/stratum/schema"
)

// Entry is one derived secondary-index entry for a row.
type Entry struct {
	// Name is the store-scoped index name used by the backing store.
	Name string

	// Field is the field the entry was derived from, as exposed to clients.
	// Structural entries use "created_at" / "modified_at".
	Field string

	// Value is the order-preserving encoded index value.
	Value string
}

// Plan derives the full set of index entries for a row.
//
// Every schema field flagged indexed and present in data contributes entries;
// list fields fan out to one entry per element. Two structural entries on
// created_at and modified_at are always produced. Every string value, declared
// or not, contributes token entries so free-text search covers the same data
// the row holds.
func Plan(storeID string, s schema.Schema, data map[string]any, created, modified time.Time) []Entry {
	entries := []Entry{
		{Name: keys.MetaIndex(storeID, keys.MetaCreatedAt), Field: keys.MetaCreatedAt, Value: EncodeTime(created)},
		{Name: keys.MetaIndex(storeID, keys.MetaModifiedAt), Field: keys.MetaModifiedAt, Value: EncodeTime(modified)},
	}

	for field, f := range s {
		if !f.Indexed {
			continue
		}
		v, ok := data[field]
		if !ok {
			continue
		}
		name := keys.FieldIndex(storeID, field)

		if f.Type == schema.TypeList {
			elems, ok := v.([]any)
			if !ok {
				continue
			}
			for _, e := range elems {
				if enc, ok := encodeElement(e); ok {
					entries = append(entries, Entry{Name: name, Field: field, Value: enc})
				}
			}
			continue
		}

		enc, ok := EncodeScalar(f.Type, v)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Name: name, Field: field, Value: enc})
	}

	tokens := keys.TokenIndex(storeID)
	for field, v := range data {
		switch val := v.(type) {
		case string:
			for _, tok := range Tokenize(val) {
				entries = append(entries, Entry{Name: tokens, Field: field, Value: tok})
			}
		case []any:
			for _, elem := range val {
				s, ok := elem.(string)
				if !ok {
					continue
				}
				for _, tok := range Tokenize(s) {
					entries = append(entries, Entry{Name: tokens, Field: field, Value: tok})
				}
			}
		}
	}

	return entries
}

// Display builds the client-visible indexes mapping (field name to values)
// from a planned entry set. Token entries are an internal detail and are
// excluded.
func Display(storeID string, entries []Entry) map[string][]string {
	tokens := keys.TokenIndex(storeID)
	out := make(map[string][]string)
	for _, e := range entries {
		if e.Name == tokens {
			continue
		}
		out[e.Field] = append(out[e.Field], e.Value)
	}
	return out
}
