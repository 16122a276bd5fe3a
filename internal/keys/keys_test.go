package keys

import (
	"strings"
	"testing"
)

func TestRowKeyRoundTrip(t *testing.T) {
	key := RowKey("store-1", "abc123")
	if key != "store-1:abc123" {
		t.Errorf("expected 'store-1:abc123', got %q", key)
	}

	storeID, suffix := SplitRowKey(key)
	if storeID != "store-1" {
		t.Errorf("expected store id 'store-1', got %q", storeID)
	}
	if suffix != "abc123" {
		t.Errorf("expected suffix 'abc123', got %q", suffix)
	}
}

func TestSplitRowKey_SuffixWithColon(t *testing.T) {
	// Only the first separator belongs to the key structure.
	storeID, suffix := SplitRowKey("s1:a:b")
	if storeID != "s1" || suffix != "a:b" {
		t.Errorf("expected ('s1', 'a:b'), got (%q, %q)", storeID, suffix)
	}
}

func TestIndexNames_DisjointAcrossStores(t *testing.T) {
	if FieldIndex("s1", "foo") == FieldIndex("s2", "foo") {
		t.Error("field index names must differ across stores")
	}
	if MetaIndex("s1", MetaCreatedAt) == FieldIndex("s1", MetaCreatedAt) {
		t.Error("structural index names must not collide with schema fields")
	}
}

func TestNewSuffix(t *testing.T) {
	a := NewSuffix()
	b := NewSuffix()
	if a == b {
		t.Error("expected unique suffixes")
	}
	if strings.Contains(a, "-") {
		t.Errorf("suffix should be bare hex, got %q", a)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestFingerprint(t *testing.T) {
	short := "plain value"
	if Fingerprint(short) != short {
		t.Errorf("short values must pass through verbatim")
	}

	long := strings.Repeat("x", 1000)
	fp := Fingerprint(long)
	if len(fp) > maxIndexValue {
		t.Errorf("fingerprint too long: %d", len(fp))
	}
	if fp != Fingerprint(long) {
		t.Error("fingerprint must be deterministic")
	}
	if fp == Fingerprint(long+"y") {
		t.Error("different values must not collide")
	}
}
