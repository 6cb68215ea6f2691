package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/latchkv/blobstore"
	"github.com/hupe1980/latchkv/internal/cache"
	"github.com/hupe1980/latchkv/internal/resource"
	"golang.org/x/sync/errgroup"
)

const segmentPrefix = "segment-"

// BlobOptions configures a BlobDevice. Zero values select defaults.
type BlobOptions struct {
	// SegmentBits is the log2 of the segment size. Default: 22 (4 MiB).
	SegmentBits uint
	// Codec compresses stored segments. Default: CodecLZ4.
	Codec Codec
	// DisableCompression stores segments uncompressed.
	DisableCompression bool
	// Prefix is prepended to every blob name, e.g. "log/".
	Prefix string
	// CacheBytes bounds the decoded segment cache. Default: 64 MiB.
	CacheBytes int64
	// Cache replaces the private segment cache, e.g. to share one between devices.
	Cache cache.SegmentCache
	// Resource charges cached segments against a memory budget.
	Resource *resource.Controller
}

// BlobStats reports device activity.
type BlobStats struct {
	SegmentWrites   int64
	SegmentReads    int64
	RawBytes        int64
	StoredBytes     int64
	CacheHits       int64
	CacheMisses     int64
	LiveSegments    uint64
	ChecksumFailure int64
}

// BlobDevice stores the log as one blob per segment on a BlobStore. Each
// write rewrites the affected segments, so it suits stores that only offer
// whole-object puts.
type BlobDevice struct {
	store  blobstore.BlobStore
	opts   BlobOptions
	codec  Codec
	cache  cache.SegmentCache
	nsName string

	// wmu serializes read-modify-write of segments.
	wmu sync.Mutex

	mu       sync.RWMutex
	segments *roaring.Bitmap
	// gens counts stores per segment. A read fills the cache only when no
	// write landed while it fetched the blob.
	gens   map[uint64]uint64
	closed bool

	writes, reads    atomic.Int64
	rawBytes, stored atomic.Int64
	checksumFailures atomic.Int64
}

var (
	_ Device    = (*BlobDevice)(nil)
	_ Segmented = (*BlobDevice)(nil)
)

// NewBlobDevice opens a device on store and indexes the segments it
// already holds.
func NewBlobDevice(ctx context.Context, store blobstore.BlobStore, opts BlobOptions) (*BlobDevice, error) {
	if opts.SegmentBits == 0 {
		opts.SegmentBits = 22
	}
	if opts.SegmentBits < 12 || opts.SegmentBits > 31 {
		return nil, fmt.Errorf("segment bits %d out of range [12, 31]", opts.SegmentBits)
	}
	codec := opts.Codec
	if codec == CodecNone && !opts.DisableCompression {
		codec = CodecLZ4
	}
	if opts.DisableCompression {
		codec = CodecNone
	}
	if codec > CodecZSTD {
		return nil, fmt.Errorf("unknown codec %d", codec)
	}
	c := opts.Cache
	if c == nil {
		size := opts.CacheBytes
		if size == 0 {
			size = 64 << 20
		}
		c = cache.NewSharded(size, 1<<opts.SegmentBits, opts.Resource)
	}

	d := &BlobDevice{
		store:    store,
		opts:     opts,
		codec:    codec,
		cache:    c,
		nsName:   opts.Prefix + segmentPrefix,
		segments: roaring.New(),
		gens:     make(map[uint64]uint64),
	}

	names, err := store.List(ctx, d.nsName)
	if err != nil {
		return nil, wrap("open", 0, err)
	}
	for _, name := range names {
		seg, err := strconv.ParseUint(strings.TrimPrefix(name, d.nsName), 16, 32)
		if err != nil {
			continue
		}
		d.segments.Add(uint32(seg))
	}
	return d, nil
}

func (d *BlobDevice) SegmentBits() uint { return d.opts.SegmentBits }

func (d *BlobDevice) name(seg uint64) string {
	return fmt.Sprintf("%s%016x", d.nsName, seg)
}

func (d *BlobDevice) key(seg uint64) cache.Key {
	return cache.Key{Namespace: d.nsName, Segment: seg}
}

// lookup reports whether seg exists and its current write generation.
func (d *BlobDevice) lookup(seg uint64) (bool, uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false, 0, ErrClosed
	}
	return d.segments.Contains(uint32(seg)), d.gens[seg], nil
}

// load returns the decoded segment, nil when it does not exist.
func (d *BlobDevice) load(ctx context.Context, seg uint64) ([]byte, error) {
	ok, gen, err := d.lookup(seg)
	if err != nil || !ok {
		return nil, err
	}
	if raw, ok := d.cache.Get(ctx, d.key(seg)); ok {
		return raw, nil
	}

	frame, err := blobstore.ReadAll(ctx, d.store, d.name(seg))
	if err != nil {
		return nil, err
	}
	raw, err := decodeFrame(frame)
	if err != nil {
		if errors.Is(err, ErrChecksum) {
			d.checksumFailures.Add(1)
		}
		return nil, fmt.Errorf("segment %d: %w", seg, err)
	}
	d.reads.Add(1)

	d.mu.Lock()
	if d.gens[seg] == gen && d.segments.Contains(uint32(seg)) {
		d.cache.Set(ctx, d.key(seg), raw)
	}
	d.mu.Unlock()
	return raw, nil
}

// WriteAt merges p into the affected segments and stores each of them.
func (d *BlobDevice) WriteAt(ctx context.Context, p []byte, off uint64) error {
	d.wmu.Lock()
	defer d.wmu.Unlock()

	err := span(d.opts.SegmentBits, off, len(p), func(seg uint64, segOff, lo, hi int) error {
		old, err := d.load(ctx, seg)
		if err != nil {
			return err
		}
		raw := make([]byte, max(len(old), segOff+hi-lo))
		copy(raw, old)
		copy(raw[segOff:], p[lo:hi])

		frame, err := encodeFrame(raw, d.codec)
		if err != nil {
			return err
		}
		if err := d.store.Put(ctx, d.name(seg), frame); err != nil {
			return err
		}

		d.writes.Add(1)
		d.rawBytes.Add(int64(len(raw)))
		d.stored.Add(int64(len(frame)))

		d.mu.Lock()
		d.gens[seg]++
		d.cache.Set(ctx, d.key(seg), raw)
		d.segments.Add(uint32(seg))
		d.mu.Unlock()
		return nil
	})
	return wrap("write", off, err)
}

func (d *BlobDevice) ReadAt(ctx context.Context, p []byte, off uint64) error {
	err := span(d.opts.SegmentBits, off, len(p), func(seg uint64, segOff, lo, hi int) error {
		raw, err := d.load(ctx, seg)
		if err != nil {
			return err
		}
		n := 0
		if segOff < len(raw) {
			n = copy(p[lo:hi], raw[segOff:])
		}
		clear(p[lo+n : hi])
		return nil
	})
	return wrap("read", off, err)
}

// Truncate deletes the segment blobs that lie entirely below until.
func (d *BlobDevice) Truncate(ctx context.Context, until uint64) error {
	cut := until >> d.opts.SegmentBits

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	var victims []uint64
	it := d.segments.Iterator()
	for it.HasNext() {
		seg := uint64(it.Next())
		if seg >= cut {
			break
		}
		victims = append(victims, seg)
	}
	d.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, seg := range victims {
		g.Go(func() error {
			return d.store.Delete(gctx, d.name(seg))
		})
	}
	if err := g.Wait(); err != nil {
		return wrap("truncate", until, err)
	}

	d.mu.Lock()
	for _, seg := range victims {
		d.segments.Remove(uint32(seg))
		delete(d.gens, seg)
	}
	d.mu.Unlock()
	d.cache.Invalidate(func(k cache.Key) bool {
		return k.Namespace == d.nsName && k.Segment < cut
	})
	return nil
}

// Sync is a no-op: every Put is durable when it returns.
func (d *BlobDevice) Sync(context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

func (d *BlobDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.cache.Invalidate(func(k cache.Key) bool { return k.Namespace == d.nsName })
	return nil
}

// Stats returns a snapshot of the device counters.
func (d *BlobDevice) Stats() BlobStats {
	hits, misses := d.cache.Stats()
	d.mu.RLock()
	live := d.segments.GetCardinality()
	d.mu.RUnlock()
	return BlobStats{
		SegmentWrites:   d.writes.Load(),
		SegmentReads:    d.reads.Load(),
		RawBytes:        d.rawBytes.Load(),
		StoredBytes:     d.stored.Load(),
		CacheHits:       hits,
		CacheMisses:     misses,
		LiveSegments:    live,
		ChecksumFailure: d.checksumFailures.Load(),
	}
}
