package utils

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RandSource is a thread-safe random number generator
type RandSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// NormFloat64 returns a normally distributed random number with mean and stddev
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.NormFloat64()*stddev + mean
}

// UniformFloat64 returns a uniformly distributed random number in [min, max)
func (r *RandSource) UniformFloat64(min, max float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.rng.Float64()*(max-min)
}

// LogUniformFloat64 returns a log-uniformly distributed random number in [min, max).
// Both bounds must be positive.
func (r *RandSource) LogUniformFloat64(min, max float64) float64 {
	if min <= 0 || max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	logMin := math.Log(min)
	logMax := math.Log(max)
	return math.Exp(logMin + r.rng.Float64()*(logMax-logMin))
}

// WeightedIndex returns an index in [0, len(weights)) drawn proportionally to
// the given non-negative weights. Returns 0 if all weights are zero, and -1
// if the slice is empty.
func (r *RandSource) WeightedIndex(weights []float64) int {
	if len(weights) == 0 {
		return -1
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return 0
	}
	r.mu.Lock()
	target := r.rng.Float64() * total
	r.mu.Unlock()
	acc := 0.0
	for i, w := range weights {
		if w > 0 {
			acc += w
		}
		if target < acc {
			return i
		}
	}
	return len(weights) - 1
}
