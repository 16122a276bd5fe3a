// Package keys provides key and index-name composition for the backing store.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Bucket names in the backing store.
const (
	StoreBucket = "stores"
	RowBucket   = "rows"
)

// Structural index fields maintained for every row regardless of schema.
const (
	MetaCreatedAt  = "created_at"
	MetaModifiedAt = "modified_at"
)

// StoreKey composes the backing-store key for a store record.
// Stores are addressed by (owner, store_id).
func StoreKey(owner, storeID string) string {
	return owner + ":" + storeID
}

// RowKey composes the backing-store key for a row.
// Row keys embed the owning store id so listings can never leak across stores.
func RowKey(storeID, suffix string) string {
	return storeID + ":" + suffix
}

// SplitRowKey splits a composed row key into store id and row suffix.
// The suffix is what clients see as the row id.
func SplitRowKey(key string) (storeID, suffix string) {
	storeID, suffix, _ = strings.Cut(key, ":")
	return storeID, suffix
}

// OwnerIndex returns the index name under which an owner's stores are listed.
func OwnerIndex(owner string) string {
	return "owner#" + owner
}

// FieldIndex returns the store-scoped index name for a schema field.
// Scoping by store id keeps index namespaces disjoint across stores.
func FieldIndex(storeID, field string) string {
	return storeID + "#field#" + field
}

// MetaIndex returns the store-scoped index name for a structural field
// (created_at or modified_at).
func MetaIndex(storeID, name string) string {
	return storeID + "#meta#" + name
}

// TokenIndex returns the store-scoped index name holding free-text tokens.
func TokenIndex(storeID string) string {
	return storeID + "#tokens"
}

// NewSuffix generates a new unique row suffix (or store id).
func NewSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// maxIndexValue is the longest index value stored verbatim in a sort key.
const maxIndexValue = 256

// Fingerprint bounds an index value for use inside a composite sort key.
// Values short enough to sort meaningfully are kept verbatim; overlong
// values are replaced by a 128-bit hash so they cannot blow the backing
// store's key size limits.
func Fingerprint(value string) string {
	if len(value) <= maxIndexValue {
		return value
	}
	h := sha256.Sum256([]byte(value))
	return value[:maxIndexValue-33] + "~" + hex.EncodeToString(h[:16])
}
