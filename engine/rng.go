package engine

import (
	"math"
	"math/rand"
)

// RNG wraps math/rand.Rand with deterministic position tracking.
// Every draw consumes exactly one value from the source, so a seed and a
// position are enough to restore the stream.
type RNG struct {
	seed int64
	src  *rand.Rand
	pos  int64
}

// NewRNG creates a new deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns a value in [0, 1).
func (r *RNG) Float64() float64 {
	r.pos++
	return r.src.Float64()
}

// Intn returns a value in [0, n). n must be positive.
func (r *RNG) Intn(n int) int {
	i := int(r.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// WeightedSelect returns an index chosen with probability proportional to
// its weight, using a single cumulative-sum draw. Negative weights count
// as zero, as do NaN and infinite weights. When every weight is zero the
// pick is uniform.
// weights must be non-empty.
func (r *RNG) WeightedSelect(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if usableWeight(w) {
			total += w
		}
	}
	if total <= 0 {
		return r.Intn(len(weights))
	}

	roll := r.Float64() * total
	cumulative := 0.0
	last := 0
	for i, w := range weights {
		if !usableWeight(w) {
			continue
		}
		cumulative += w
		last = i
		if roll < cumulative {
			return i
		}
	}
	return last
}

func usableWeight(w float64) bool {
	return w > 0 && !math.IsInf(w, 1)
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Position returns the number of RNG calls made since creation.
func (r *RNG) Position() int64 {
	return r.pos
}

// MaxRNGPosition bounds the positions a save file may ask to replay.
const MaxRNGPosition = 1 << 24

// RestoreRNG creates an RNG and advances it to the given position.
// This reproduces the exact RNG state for save/load.
func RestoreRNG(seed int64, position int64) *RNG {
	rng := NewRNG(seed)
	for i := int64(0); i < position; i++ {
		rng.src.Float64()
	}
	rng.pos = position
	return rng
}
