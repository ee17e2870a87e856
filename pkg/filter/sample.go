package filter

import (
	"math/rand/v2"
	"slices"

	"github.com/ccollicutt/acclog/pkg/record"
)

// NewRand returns the random source used by Sample. A zero seed draws a
// fresh one, so runs differ; any other seed repeats the same selection.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// Sample picks n records uniformly at random, keeping their input order.
// It returns records unchanged when n <= 0 or n >= len(records). A nil rng
// means NewRand(0).
func Sample(records []*record.LogRecord, n int, rng *rand.Rand) []*record.LogRecord {
	if n <= 0 || n >= len(records) {
		return records
	}
	if rng == nil {
		rng = NewRand(0)
	}

	// Reservoir of indices; each index ends up kept with probability n/len.
	keep := make([]int, n)
	for i := range keep {
		keep[i] = i
	}
	for i := n; i < len(records); i++ {
		if j := rng.IntN(i + 1); j < n {
			keep[j] = i
		}
	}
	slices.Sort(keep)

	out := make([]*record.LogRecord, n)
	for i, idx := range keep {
		out[i] = records[idx]
	}
	return out
}
