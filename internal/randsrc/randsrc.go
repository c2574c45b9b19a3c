// Package randsrc hands out reproducible random generators, one per
// pipeline stage, derived from a single master seed.
package randsrc

import (
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/spaolacci/murmur3"
)

// Source derives per-stage generators from a master seed.
type Source struct {
	seed int64
}

// New returns a Source for seed. A zero seed is replaced by one taken from
// the clock; Seed reports the value in use.
func New(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{seed: seed}
}

// Seed returns the master seed.
func (s *Source) Seed() int64 {
	return s.seed
}

// For returns a generator for the named stage. The same seed and stage
// always produce the same sequence, independent of other stages.
func (s *Source) For(stage string) *rand.Rand {
	return rand.New(rand.NewSource(DeriveSeed(s.seed, stage)))
}

// DeriveSeed hashes the master seed together with the stage name.
func DeriveSeed(seed int64, stage string) int64 {
	buf := make([]byte, 8, 8+len(stage))
	binary.LittleEndian.PutUint64(buf, uint64(seed))
	buf = append(buf, stage...)
	return int64(murmur3.Sum64(buf))
}

// Bernoulli reports true with probability p.
func Bernoulli(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}

// IntRange returns a uniform integer in [lo, hi].
func IntRange(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

// Sample returns k distinct elements of ids chosen without replacement.
// ids is not modified. k is clamped to len(ids).
func Sample(rng *rand.Rand, ids []int64, k int) []int64 {
	if k > len(ids) {
		k = len(ids)
	}
	if k <= 0 {
		return nil
	}
	pool := make([]int64, len(ids))
	copy(pool, ids)
	// Partial Fisher-Yates: the first k slots end up a uniform sample.
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
