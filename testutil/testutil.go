package testutil

import (
	"math/rand"
	"strconv"
	"sync"

	"github.com/hupe1980/colframe/codec"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Bytes returns n random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	r.rand.Read(b)
	return b
}

// Ints returns n int values in [lo, hi).
func (r *RNG) Ints(n int, lo, hi int64) []codec.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	vals := make([]codec.Value, n)
	for i := range vals {
		vals[i] = codec.Int(lo + r.rand.Int63n(hi-lo))
	}
	return vals
}

// Values returns n random values of kind. Roughly one in ten is null.
func (r *RNG) Values(kind codec.Kind, n int) []codec.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	vals := make([]codec.Value, n)
	for i := range vals {
		if r.rand.Intn(10) == 0 {
			continue
		}
		switch kind {
		case codec.KindInt:
			vals[i] = codec.Int(r.rand.Int63n(1 << 20))
		case codec.KindFloat:
			vals[i] = codec.Float(r.rand.NormFloat64())
		case codec.KindString:
			vals[i] = codec.String("s" + strconv.Itoa(r.rand.Intn(1000)))
		case codec.KindBytes:
			b := make([]byte, 1+r.rand.Intn(16))
			r.rand.Read(b)
			vals[i] = codec.Bytes(b)
		}
	}
	return vals
}

// Sequence returns the ints first, first+1, ..., first+n-1.
func Sequence(first int64, n int) []codec.Value {
	vals := make([]codec.Value, n)
	for i := range vals {
		vals[i] = codec.Int(first + int64(i))
	}
	return vals
}
