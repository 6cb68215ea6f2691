package cache

import "context"

// Key identifies a decoded segment of one device.
type Key struct {
	// Namespace separates devices that share a cache.
	Namespace string
	// Segment is the segment number within the device.
	Segment uint64
}

// SegmentCache is a byte-bounded cache of decoded segments.
// Returned slices must be treated as read-only.
type SegmentCache interface {
	Get(ctx context.Context, key Key) (b []byte, ok bool)
	Set(ctx context.Context, key Key, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key Key) bool)
	// Stats returns hit and miss counts.
	Stats() (hits, misses int64)
	// Size returns the cached bytes.
	Size() int64
}
