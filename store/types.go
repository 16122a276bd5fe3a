package store

import (
	"time"

	"github.com/jacentio/stratum/resolve"
	"github.com/jacentio/stratum/schema"
)

// Store is the metadata record for one named, per-owner row namespace.
type Store struct {
	// ID is the opaque store identifier, immutable once assigned.
	ID string `json:"id"`

	// Owner identifies the owning account; all operations are scoped by it.
	Owner string `json:"owner"`

	// KeyType is an optional tag describing how row keys are interpreted
	// by clients. It has no structural effect.
	KeyType string `json:"key_type,omitempty"`

	// Strategy selects how concurrent row versions are reconciled.
	Strategy resolve.Strategy `json:"sibling_strategy"`

	// Strict rejects data fields not declared in the schema.
	Strict bool `json:"strict,omitempty"`

	// Schema maps field names to type descriptors. Nil means no
	// field-level validation.
	Schema schema.Schema `json:"schema,omitempty"`

	// CreatedAt is set once at creation; ModifiedAt bumps on every
	// metadata or schema change.
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Row is one record within a store.
type Row struct {
	// ID is the client-visible row identifier, unique within the store.
	ID string `json:"id"`

	// StoreID back-references the owning store.
	StoreID string `json:"store_id"`

	// Data is the schema-validated field mapping.
	Data map[string]any `json:"data"`

	// Indexes maps field names to the index values derived from Data.
	// Derived, never client-settable.
	Indexes map[string][]string `json:"indexes,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Definition describes a store to create.
type Definition struct {
	// ID optionally supplies the store id; empty means assign one.
	ID string `json:"id,omitempty"`

	KeyType  string           `json:"key_type,omitempty"`
	Strategy resolve.Strategy `json:"sibling_strategy,omitempty"`
	Strict   bool             `json:"strict,omitempty"`
	Schema   schema.Schema    `json:"schema,omitempty"`
}

// Update describes a partial store update; nil fields are left untouched.
type Update struct {
	KeyType  *string           `json:"key_type,omitempty"`
	Strategy *resolve.Strategy `json:"sibling_strategy,omitempty"`
	Strict   *bool             `json:"strict,omitempty"`
	Schema   *schema.Schema    `json:"schema,omitempty"`
}

// rowDoc is the encoded form of one row version in the backing store.
type rowDoc struct {
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	ModifiedAt time.Time      `json:"modified_at"`
}
