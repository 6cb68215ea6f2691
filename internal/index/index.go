// Package index implements the hash index of the store: a fixed table of
// buckets, each holding the log address of the newest record whose key
// hashes to it. Older records are reached through the previous-address
// links in the record headers.
package index

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/latchkv/internal/record"
)

// MaxBits bounds the table to 2^30 buckets.
const MaxBits = 30

// ErrInvalidBits is returned for table sizes outside [1, MaxBits].
var ErrInvalidBits = errors.New("index: invalid bucket bits")

// Index is a power-of-two table of atomic chain heads.
type Index struct {
	buckets []atomic.Uint64
	mask    uint64
}

// New creates an index with 2^bits buckets.
func New(bits uint) (*Index, error) {
	if bits == 0 || bits > MaxBits {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBits, bits)
	}
	n := uint64(1) << bits
	return &Index{
		buckets: make([]atomic.Uint64, n),
		mask:    n - 1,
	}, nil
}

// Len returns the number of buckets.
func (x *Index) Len() int { return len(x.buckets) }

func (x *Index) bucket(hash uint64) *atomic.Uint64 {
	return &x.buckets[hash&x.mask]
}

// Head returns the newest address for hash, or 0 if the bucket is empty.
func (x *Index) Head(hash uint64) uint64 {
	return x.bucket(hash).Load()
}

// CompareAndSwap replaces the head of hash's bucket if it still equals old.
func (x *Index) CompareAndSwap(hash, old, new uint64) bool {
	return x.bucket(hash).CompareAndSwap(old, new&record.AddressMask)
}

// Store sets the head unconditionally. Only recovery uses it, before the
// index is shared.
func (x *Index) Store(hash, addr uint64) {
	x.bucket(hash).Store(addr & record.AddressMask)
}

// Used counts non-empty buckets.
func (x *Index) Used() int {
	n := 0
	for i := range x.buckets {
		if x.buckets[i].Load() != 0 {
			n++
		}
	}
	return n
}

// TruncateBelow clears buckets whose head lies below begin; their whole
// chain is gone with the truncated log prefix.
func (x *Index) TruncateBelow(begin uint64) {
	for i := range x.buckets {
		b := &x.buckets[i]
		for {
			h := b.Load()
			if h == 0 || h >= begin || b.CompareAndSwap(h, 0) {
				break
			}
		}
	}
}
