package resolve

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func version(tag string, modOffset time.Duration, data map[string]any) Version {
	return Version{
		Data:       data,
		CreatedAt:  base,
		ModifiedAt: base.Add(modOffset),
		WriteTag:   tag,
	}
}

func TestResolve_EmptySet(t *testing.T) {
	_, err := Resolve(StrategyNone, nil)
	assert.Error(t, err)
}

func TestResolve_SingletonPassesThrough(t *testing.T) {
	v := version("a", 0, map[string]any{"x": 1})
	got, err := Resolve(StrategyReject, []Version{v})
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestResolve_NoneKeepsLatest(t *testing.T) {
	older := version("a", 0, map[string]any{"x": "old", "only-old": true})
	newer := version("b", time.Minute, map[string]any{"x": "new"})

	got, err := Resolve(StrategyNone, []Version{newer, older})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": "new"}, got.Data)
	assert.Equal(t, "b", got.WriteTag)
}

func TestResolve_NoneTieBreaksByWriteTag(t *testing.T) {
	a := version("aaa", 0, map[string]any{"from": "a"})
	b := version("bbb", 0, map[string]any{"from": "b"})

	first, err := Resolve(StrategyNone, []Version{a, b})
	require.NoError(t, err)
	second, err := Resolve(StrategyNone, []Version{b, a})
	require.NoError(t, err)

	// Deterministic regardless of input order; greater tag wins the tie.
	assert.Equal(t, first, second)
	assert.Equal(t, "bbb", first.WriteTag)
}

func TestResolve_MergeUnionsDisjointFields(t *testing.T) {
	v1 := version("a", 0, map[string]any{"left": "L"})
	v2 := version("b", time.Second, map[string]any{"right": "R"})

	got, err := Resolve(StrategyMerge, []Version{v1, v2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"left": "L", "right": "R"}, got.Data)
}

func TestResolve_MergeConflictTakesMostRecent(t *testing.T) {
	v1 := version("a", 0, map[string]any{"x": "stale", "a-only": 1})
	v2 := version("b", time.Minute, map[string]any{"x": "fresh", "b-only": 2})

	got, err := Resolve(StrategyMerge, []Version{v2, v1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": "fresh", "a-only": 1, "b-only": 2}, got.Data)
	assert.Equal(t, v2.ModifiedAt, got.ModifiedAt)
}

func TestResolve_MergeThreeWay(t *testing.T) {
	v1 := version("a", 0, map[string]any{"x": 1, "p": "p"})
	v2 := version("b", time.Second, map[string]any{"x": 2, "q": "q"})
	v3 := version("c", 2*time.Second, map[string]any{"x": 3, "r": "r"})

	got, err := Resolve(StrategyMerge, []Version{v3, v1, v2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 3, "p": "p", "q": "q", "r": "r"}, got.Data)
}

func TestResolve_MergeKeepsEarliestCreated(t *testing.T) {
	v1 := version("a", 0, map[string]any{"x": 1})
	v1.CreatedAt = base.Add(-time.Hour)
	v2 := version("b", time.Second, map[string]any{"y": 2})

	got, err := Resolve(StrategyMerge, []Version{v2, v1})
	require.NoError(t, err)
	assert.Equal(t, v1.CreatedAt, got.CreatedAt)
}

func TestResolve_RejectSurfacesConflict(t *testing.T) {
	v1 := version("a", 0, map[string]any{"x": 1})
	v2 := version("b", time.Second, map[string]any{"x": 2})

	_, err := Resolve(StrategyReject, []Version{v1, v2})
	assert.True(t, errors.Is(err, ErrUnresolved))
}

func TestStrategyValid(t *testing.T) {
	assert.True(t, StrategyNone.Valid())
	assert.True(t, StrategyMerge.Valid())
	assert.True(t, StrategyReject.Valid())
	assert.False(t, Strategy("lww").Valid())
	assert.False(t, Strategy("").Valid())
}
