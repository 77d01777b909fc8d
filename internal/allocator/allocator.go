// Package allocator hands out canvas/folder identifiers and sibling sort orders.
package allocator

import (
	"github.com/google/uuid"
)

// NewID returns a globally unique identifier for a canvas or folder.
func NewID() string {
	return uuid.NewString()
}

// IsID reports whether s looks like an identifier produced by NewID.
func IsID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NextSortOrder computes the sort order for a new sibling. At the beginning
// it is strictly below the current minimum, at the end strictly above the
// current maximum. An empty folder starts at 1.
//
// Values below 1 are possible after repeated front insertions; the next
// batch reorder renumbers the folder from 1.
func NextSortOrder(existing []int, atBeginning bool) int {
	if len(existing) == 0 {
		return 1
	}
	lo, hi := existing[0], existing[0]
	for _, v := range existing[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if atBeginning {
		return lo - 1
	}
	return hi + 1
}

// Renumber assigns dense sort orders 1..n in the order given.
func Renumber(orderedIDs []string) map[string]int {
	out := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		out[id] = i + 1
	}
	return out
}
