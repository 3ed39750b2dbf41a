// Package accum consolidates weighted pair contributions into one sum per
// unordered pair of token ids.
package accum

import (
	"fmt"
	"math"
)

// MaxPairID is the largest id that fits in half of a packed pair key.
const MaxPairID = math.MaxUint32

// Accumulator sums contributions keyed by unordered id pair. Each pair is
// stored once under its canonical (min, max) key, so memory grows with the
// number of distinct pairs seen.
//
// An Accumulator is not safe for concurrent use; parallel scans keep one per
// worker and Merge them afterwards.
type Accumulator struct {
	sums  map[uint64]float64
	maxID int
	adds  int64
}

// New creates an accumulator, reserving room for capacityHint pairs.
func New(capacityHint int) *Accumulator {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Accumulator{
		sums:  make(map[uint64]float64, capacityHint),
		maxID: -1,
	}
}

// Key packs the unordered pair (a, b) into a single map key.
func Key(a, b int) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(b)
}

// Unpack splits a key back into its (low, high) ids.
func Unpack(k uint64) (int, int) {
	return int(k >> 32), int(k & math.MaxUint32)
}

// Add records weight w between i and j. Self pairs are dropped.
func (a *Accumulator) Add(i, j int, w float64) {
	if i == j {
		return
	}
	if i < 0 || j < 0 || uint64(i) > MaxPairID || uint64(j) > MaxPairID {
		panic(fmt.Sprintf("accum: id pair (%d, %d) out of range", i, j))
	}
	a.sums[Key(i, j)] += w
	a.adds++
	a.maxID = max(a.maxID, i, j)
}

// Merge adds every pair of other into a.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	for k, v := range other.sums {
		a.sums[k] += v
	}
	a.adds += other.adds
	a.maxID = max(a.maxID, other.maxID)
}

// Len returns the number of distinct pairs.
func (a *Accumulator) Len() int { return len(a.sums) }

// Contributions returns how many non-self contributions were added.
func (a *Accumulator) Contributions() int64 { return a.adds }

// MaxID returns the largest id seen, or -1 when empty.
func (a *Accumulator) MaxID() int { return a.maxID }

// Range calls fn for every pair with i < j, in no particular order.
func (a *Accumulator) Range(fn func(i, j int, w float64)) {
	for k, v := range a.sums {
		i, j := Unpack(k)
		fn(i, j, v)
	}
}
