package backend

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"
	"sync"

	"github.com/jacentio/stratum/internal/keys"
)

// Memory is an in-process Backend used by tests and local development.
// It honors the full contract, including sibling accumulation when
// concurrent puts replace nothing.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*memBucket

	// Hook, when set, runs before every operation and may inject an error.
	// Tests use it to simulate backend unavailability.
	Hook func(op, bucket, key string) error
}

type memBucket struct {
	versions map[string][]Version
	entries  map[string][]IndexEntry
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*memBucket)}
}

func (m *Memory) hook(op, bucket, key string) error {
	if m.Hook != nil {
		return m.Hook(op, bucket, key)
	}
	return nil
}

func (m *Memory) bucket(name string) *memBucket {
	b, ok := m.buckets[name]
	if !ok {
		b = &memBucket{
			versions: make(map[string][]Version),
			entries:  make(map[string][]IndexEntry),
		}
		m.buckets[name] = b
	}
	return b
}

// Get implements Backend.
func (m *Memory) Get(ctx context.Context, bucket, key string) ([]Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.hook("get", bucket, key); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.bucket(bucket).versions[key]
	out := make([]Version, len(set))
	copy(out, set)
	return out, nil
}

// Put implements Backend.
func (m *Memory) Put(ctx context.Context, bucket, key string, p Put) (Version, error) {
	if err := ctx.Err(); err != nil {
		return Version{}, err
	}
	if err := m.hook("put", bucket, key); err != nil {
		return Version{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(bucket)

	replaced := make(map[string]bool, len(p.Replaces))
	for _, tag := range p.Replaces {
		replaced[tag] = true
	}

	var kept []Version
	for _, v := range b.versions[key] {
		if !replaced[v.WriteTag] {
			kept = append(kept, v)
		}
	}

	value := make([]byte, len(p.Value))
	copy(value, p.Value)
	written := Version{Value: value, WriteTag: keys.NewSuffix()}
	b.versions[key] = append(kept, written)

	entries := make([]IndexEntry, len(p.Entries))
	copy(entries, p.Entries)
	b.entries[key] = entries

	return written, nil
}

// Delete implements Backend.
func (m *Memory) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.hook("delete", bucket, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(bucket)
	delete(b.versions, key)
	delete(b.entries, key)
	return nil
}

// IndexQuery implements Backend.
func (m *Memory) IndexQuery(ctx context.Context, bucket string, q IndexQuery) (KeyPage, error) {
	if err := ctx.Err(); err != nil {
		return KeyPage{}, err
	}
	if err := m.hook("indexquery", bucket, ""); err != nil {
		return KeyPage{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	type match struct{ value, key string }
	var matches []match

	b := m.bucket(bucket)
	for key, entries := range b.entries {
		for _, e := range entries {
			if e.Name != q.Name {
				continue
			}
			if q.Match != "" {
				if e.Value != q.Match {
					continue
				}
			} else {
				if q.Start != "" && e.Value < q.Start {
					continue
				}
				if q.End != "" && e.Value > q.End {
					continue
				}
			}
			matches = append(matches, match{value: e.Value, key: key})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].value != matches[j].value {
			return matches[i].value < matches[j].value
		}
		return matches[i].key < matches[j].key
	})

	after, err := decodeToken(q.Token)
	if err != nil {
		return KeyPage{}, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var page KeyPage
	var last string
	seen := make(map[string]bool)
	for _, mt := range matches {
		cursor := mt.value + "\x00" + mt.key
		if after != "" && cursor <= after {
			continue
		}
		if seen[mt.key] {
			last = cursor
			continue
		}
		if len(page.Keys) == limit {
			// The token restarts after the last position consumed.
			page.Next = encodeToken(last)
			return page, nil
		}
		seen[mt.key] = true
		page.Keys = append(page.Keys, mt.key)
		last = cursor
	}
	return page, nil
}

func encodeToken(cursor string) string {
	if cursor == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(cursor))
}

func decodeToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
