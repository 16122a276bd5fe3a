package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jacentio/stratum/backend"
	"github.com/jacentio/stratum/resolve"
	"github.com/jacentio/stratum/schema"
	"github.com/jacentio/stratum/store"
)

func newCatalog(t *testing.T) (*store.Catalog, *backend.Memory) {
	t.Helper()
	m := backend.NewMemory()
	return store.NewCatalog(m, store.DefaultConfig()), m
}

func TestCatalogCreate_AssignsID(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	st, err := c.Create(ctx, "owner-1", store.Definition{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if st.ID == "" {
		t.Error("expected an assigned store id")
	}
	if st.Owner != "owner-1" {
		t.Errorf("expected owner 'owner-1', got %q", st.Owner)
	}
	if st.Strategy != resolve.StrategyNone {
		t.Errorf("expected default strategy none, got %q", st.Strategy)
	}
	if st.CreatedAt.IsZero() || !st.CreatedAt.Equal(st.ModifiedAt) {
		t.Error("expected both timestamps set to creation time")
	}
}

func TestCatalogCreate_ClientSuppliedID(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	st, err := c.Create(ctx, "o", store.Definition{ID: "my-store"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if st.ID != "my-store" {
		t.Errorf("expected id 'my-store', got %q", st.ID)
	}

	_, err = c.Create(ctx, "o", store.Definition{ID: "my-store"})
	if !errors.Is(err, store.ErrStoreExists) {
		t.Errorf("expected ErrStoreExists on collision, got %v", err)
	}
}

func TestCatalogCreate_RejectsBadDefinition(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name string
		def  store.Definition
	}{
		{"unknown field type", store.Definition{Schema: schema.Schema{"f": {Type: "decimal"}}}},
		{"unknown strategy", store.Definition{Strategy: "lww"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Create(ctx, "o", tt.def)
			if !errors.Is(err, store.ErrBadDefinition) {
				t.Errorf("expected ErrBadDefinition, got %v", err)
			}
		})
	}
}

func TestCatalogGet_NotFound(t *testing.T) {
	c, _ := newCatalog(t)

	_, err := c.Get(context.Background(), "o", "nope")
	if !errors.Is(err, store.ErrStoreNotFound) {
		t.Errorf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestCatalogGet_ScopedByOwner(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	st, err := c.Create(ctx, "alice", store.Definition{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(ctx, "alice", st.ID); err != nil {
		t.Errorf("owner should see own store: %v", err)
	}
	if _, err := c.Get(ctx, "bob", st.ID); !errors.Is(err, store.ErrStoreNotFound) {
		t.Errorf("other owners must not resolve the store, got %v", err)
	}
}

func TestCatalogList(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := c.Create(ctx, "o", store.Definition{}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.Create(ctx, "other", store.Definition{}); err != nil {
		t.Fatal(err)
	}

	stores, next, err := c.List(ctx, "o", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stores) != 5 {
		t.Errorf("expected 5 stores, got %d", len(stores))
	}
	if next != "" {
		t.Errorf("expected exhausted listing, got token %q", next)
	}
}

func TestCatalogList_Paged(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := c.Create(ctx, "o", store.Definition{}); err != nil {
			t.Fatal(err)
		}
	}

	var all []*store.Store
	token := ""
	for {
		page, next, err := c.List(ctx, "o", token, 3)
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		token = next
	}
	if len(all) != 7 {
		t.Errorf("expected 7 stores across pages, got %d", len(all))
	}
}

func TestCatalogUpdate_PartialFields(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	st, err := c.Create(ctx, "o", store.Definition{KeyType: "contact"})
	if err != nil {
		t.Fatal(err)
	}

	merge := resolve.StrategyMerge
	updated, err := c.Update(ctx, "o", st.ID, store.Update{Strategy: &merge})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Strategy != resolve.StrategyMerge {
		t.Errorf("expected strategy merge, got %q", updated.Strategy)
	}
	if updated.KeyType != "contact" {
		t.Errorf("untouched fields must survive, got key_type %q", updated.KeyType)
	}
	if !updated.ModifiedAt.After(st.ModifiedAt) && !updated.ModifiedAt.Equal(st.ModifiedAt) {
		t.Error("modified_at must not move backwards")
	}
	if !updated.CreatedAt.Equal(st.CreatedAt) {
		t.Error("created_at is immutable")
	}
}

func TestCatalogUpdate_SchemaChangeIsLazy(t *testing.T) {
	c, m := newCatalog(t)
	ctx := context.Background()
	rows := store.NewRows(m, c, store.DefaultConfig())

	st, err := c.Create(ctx, "o", store.Definition{})
	if err != nil {
		t.Fatal(err)
	}
	row, err := rows.Create(ctx, "o", st.ID, "", map[string]any{"free": "form"})
	if err != nil {
		t.Fatal(err)
	}

	// Tighten the schema after the fact.
	s := schema.Schema{"count": {Type: schema.TypeNumber, Required: true}}
	if _, err := c.Update(ctx, "o", st.ID, store.Update{Schema: &s}); err != nil {
		t.Fatal(err)
	}

	// The old row still reads back untouched.
	got, err := rows.Get(ctx, "o", st.ID, row.ID)
	if err != nil {
		t.Fatalf("pre-change row must remain readable: %v", err)
	}
	if got.Data["free"] != "form" {
		t.Errorf("pre-change data must be intact, got %v", got.Data)
	}

	// New writes conform to the new schema.
	_, err = rows.Create(ctx, "o", st.ID, "", map[string]any{"free": "form"})
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("post-change writes must validate, got %v", err)
	}
}

func TestCatalogUpdate_NotFound(t *testing.T) {
	c, _ := newCatalog(t)

	_, err := c.Update(context.Background(), "o", "nope", store.Update{})
	if !errors.Is(err, store.ErrStoreNotFound) {
		t.Errorf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestCatalogDelete(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	st, err := c.Create(ctx, "o", store.Definition{})
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := c.Delete(ctx, "o", st.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != st.ID {
		t.Errorf("delete should return the removed store, got %q", deleted.ID)
	}

	if _, err := c.Get(ctx, "o", st.ID); !errors.Is(err, store.ErrStoreNotFound) {
		t.Errorf("expected ErrStoreNotFound after delete, got %v", err)
	}
	if _, err := c.Delete(ctx, "o", st.ID); !errors.Is(err, store.ErrStoreNotFound) {
		t.Errorf("expected ErrStoreNotFound on second delete, got %v", err)
	}
}

func TestCatalog_RetriesUnavailableBackend(t *testing.T) {
	c, m := newCatalog(t)
	ctx := context.Background()

	st, err := c.Create(ctx, "o", store.Definition{})
	if err != nil {
		t.Fatal(err)
	}

	// Fail the first two reads, then recover.
	failures := 2
	m.Hook = func(op, bucket, key string) error {
		if op == "get" && failures > 0 {
			failures--
			return backend.ErrUnavailable
		}
		return nil
	}

	if _, err := c.Get(ctx, "o", st.ID); err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
}

func TestCatalog_BoundedRetryGivesUp(t *testing.T) {
	c, m := newCatalog(t)

	m.Hook = func(op, bucket, key string) error {
		return backend.ErrUnavailable
	}

	_, err := c.Get(context.Background(), "o", "any")
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable after exhausted retries, got %v", err)
	}
}
