package cache

import (
	"context"
	"encoding/binary"

	"github.com/hupe1980/latchkv/internal/hash"
	"github.com/hupe1980/latchkv/internal/resource"
)

const maxShards = 16

// Sharded spreads keys over independent LRUs to reduce lock contention
// between concurrent device reads.
type Sharded struct {
	shards []*LRU
}

// NewSharded splits capacity evenly across up to 16 shards, using fewer
// shards when needed so each one holds at least one item of itemSize bytes.
func NewSharded(capacity, itemSize int64, rc *resource.Controller) *Sharded {
	n := int64(maxShards)
	if itemSize > 0 {
		n = min(max(capacity/itemSize, 1), maxShards)
	}
	per := max(capacity/n, 1)
	s := &Sharded{shards: make([]*LRU, n)}
	for i := range s.shards {
		s.shards[i] = NewLRU(per, rc)
	}
	return s
}

func (s *Sharded) shard(key Key) *LRU {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key.Segment)
	h := hash.Key(append([]byte(key.Namespace), buf[:]...))
	return s.shards[h%uint64(len(s.shards))]
}

func (s *Sharded) Get(ctx context.Context, key Key) ([]byte, bool) {
	return s.shard(key).Get(ctx, key)
}

func (s *Sharded) Set(ctx context.Context, key Key, b []byte) {
	s.shard(key).Set(ctx, key, b)
}

func (s *Sharded) Invalidate(predicate func(key Key) bool) {
	for _, sh := range s.shards {
		sh.Invalidate(predicate)
	}
}

func (s *Sharded) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

func (s *Sharded) Size() int64 {
	var n int64
	for _, sh := range s.shards {
		n += sh.Size()
	}
	return n
}
