// Package store implements the schema-aware row store: the catalog of
// per-owner stores and the row repository composing schema validation,
// index planning, and conflict resolution around a backing key-value store.
package store
