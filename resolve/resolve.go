// Package resolve collapses concurrently-written row versions (siblings)
// into one logical row according to a store-level strategy.
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Strategy selects how a version set collapses into one logical row.
type Strategy string

const (
	// StrategyNone keeps the most recent version wholesale (last writer wins).
	StrategyNone Strategy = "none"

	// StrategyMerge takes the field-level union of all versions; conflicting
	// fields take the value from the most recently modified version.
	StrategyMerge Strategy = "merge"

	// StrategyReject refuses to resolve and surfaces the conflict.
	StrategyReject Strategy = "reject"
)

// Valid reports whether the strategy is a known policy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyNone, StrategyMerge, StrategyReject:
		return true
	}
	return false
}

// ErrUnresolved is returned when the strategy declines to collapse a
// version set. Callers may resubmit after inspecting the siblings.
var ErrUnresolved = errors.New("resolve: conflicting versions")

// Version is one member of a version set.
type Version struct {
	// Data is the version's field mapping.
	Data map[string]any

	// CreatedAt and ModifiedAt are the version's timestamps.
	CreatedAt  time.Time
	ModifiedAt time.Time

	// WriteTag is the opaque unique tag of the physical write that produced
	// this version. It is the stable tie-break for the total order.
	WriteTag string
}

// Resolve collapses a version set into a single version.
//
// The set must be non-empty; a singleton is returned unchanged. The result's
// CreatedAt is the earliest across the set and its ModifiedAt the latest, so
// resolution never makes a row look newer than its last write.
func Resolve(strategy Strategy, set []Version) (Version, error) {
	switch len(set) {
	case 0:
		return Version{}, fmt.Errorf("resolve: empty version set")
	case 1:
		return set[0], nil
	}

	switch strategy {
	case StrategyMerge:
		return merge(set), nil
	case StrategyReject:
		return Version{}, fmt.Errorf("%w: %d siblings", ErrUnresolved, len(set))
	default:
		// StrategyNone, or anything unrecognized on a legacy store record.
		return latest(set), nil
	}
}

// order sorts versions oldest first by (ModifiedAt, WriteTag).
func order(set []Version) []Version {
	sorted := make([]Version, len(set))
	copy(sorted, set)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ModifiedAt.Equal(sorted[j].ModifiedAt) {
			return sorted[i].ModifiedAt.Before(sorted[j].ModifiedAt)
		}
		return sorted[i].WriteTag < sorted[j].WriteTag
	})
	return sorted
}

func latest(set []Version) Version {
	sorted := order(set)
	v := sorted[len(sorted)-1]
	v.CreatedAt = earliestCreated(set)
	return v
}

func merge(set []Version) Version {
	sorted := order(set)

	// Overlay oldest to newest: fields unique to any version survive,
	// conflicting fields settle on the most recent writer's value.
	data := make(map[string]any)
	for _, v := range sorted {
		for k, val := range v.Data {
			data[k] = val
		}
	}

	return Version{
		Data:       data,
		CreatedAt:  earliestCreated(set),
		ModifiedAt: sorted[len(sorted)-1].ModifiedAt,
		WriteTag:   sorted[len(sorted)-1].WriteTag,
	}
}

func earliestCreated(set []Version) time.Time {
	earliest := set[0].CreatedAt
	for _, v := range set[1:] {
		if v.CreatedAt.Before(earliest) {
			earliest = v.CreatedAt
		}
	}
	return earliest
}
