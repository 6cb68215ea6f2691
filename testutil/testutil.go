package testutil

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sync"
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

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// Zipf returns a Zipfian-distributed value in [0, n).
// P(k) ∝ 1/k^s; s=1.0 is standard Zipf, larger s concentrates on the head.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Inverse transform over the normalized harmonic weights.
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// ZipfKeys draws num keys from [0, keySpace) with skew s. The result is
// the access pattern of a hot-set workload.
func (r *RNG) ZipfKeys(num, keySpace int, s float64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]uint64, num)
	if s <= 1 {
		// The harmonic sum is recomputed per draw; fine for test sizes.
		for i := range keys {
			keys[i] = uint64(r.zipfLocked(keySpace, s))
		}
		return keys
	}
	z := rand.NewZipf(r.rand, s, 1, uint64(keySpace-1))
	for i := range keys {
		keys[i] = z.Uint64()
	}
	return keys
}

// UniformKeys draws num keys uniformly from [0, keySpace).
func (r *RNG) UniformKeys(num, keySpace int) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]uint64, num)
	for i := range keys {
		keys[i] = uint64(r.rand.Int63n(int64(keySpace)))
	}
	return keys
}

// Shuffle returns keys 0..n-1 in random order.
func (r *RNG) Shuffle(n int) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]uint64, n)
	for i, p := range r.rand.Perm(n) {
		keys[i] = uint64(p)
	}
	return keys
}

// Key encodes k as an 8-byte little-endian key.
func Key(k uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, k)
}

// VarKey encodes k as a printable key of the form "key:<k>".
func VarKey(k uint64) []byte {
	return fmt.Appendf(nil, "key:%d", k)
}

// Op is one step of a generated workload.
type Op struct {
	Kind  OpKind
	Key   uint64
	Value uint64
}

// OpKind names the store operation of an Op.
type OpKind uint8

const (
	Read OpKind = iota
	Upsert
	RMW
	Delete
)

// Mix is the share of each operation in a workload. Shares are relative
// and need not sum to one.
type Mix struct {
	Read, Upsert, RMW, Delete float64
}

// Workload draws n operations over keySpace keys with Zipf skew s.
func (r *RNG) Workload(n, keySpace int, s float64, mix Mix) []Op {
	keys := r.ZipfKeys(n, keySpace, s)

	r.mu.Lock()
	defer r.mu.Unlock()

	total := mix.Read + mix.Upsert + mix.RMW + mix.Delete
	ops := make([]Op, n)
	for i := range ops {
		u := r.rand.Float64() * total
		kind := Delete
		switch {
		case u < mix.Read:
			kind = Read
		case u < mix.Read+mix.Upsert:
			kind = Upsert
		case u < mix.Read+mix.Upsert+mix.RMW:
			kind = RMW
		}
		ops[i] = Op{Kind: kind, Key: keys[i], Value: uint64(r.rand.Int63n(1 << 20))}
	}
	return ops
}
