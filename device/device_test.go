package device

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/latchkv/blobstore"
	"github.com/hupe1980/latchkv/internal/cache"
	"github.com/hupe1980/latchkv/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDevice(t *testing.T, d Device) {
	t.Helper()
	ctx := context.Background()
	segSize := uint64(1) << d.(Segmented).SegmentBits()

	t.Run("UnwrittenReadsZero", func(t *testing.T) {
		buf := bytes.Repeat([]byte{0xff}, 64)
		require.NoError(t, d.ReadAt(ctx, buf, 64))
		assert.Equal(t, make([]byte, 64), buf)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		data := []byte("the quick brown fox jumps over the lazy dog")
		require.NoError(t, d.WriteAt(ctx, data, 128))

		buf := make([]byte, len(data))
		require.NoError(t, d.ReadAt(ctx, buf, 128))
		assert.Equal(t, data, buf)

		// Reads past the written end are zero filled.
		buf = make([]byte, len(data)+16)
		require.NoError(t, d.ReadAt(ctx, buf, 128))
		assert.Equal(t, data, buf[:len(data)])
		assert.Equal(t, make([]byte, 16), buf[len(data):])
	})

	t.Run("SpansSegments", func(t *testing.T) {
		data := make([]byte, 3000)
		for i := range data {
			data[i] = byte(i % 251)
		}
		off := 2*segSize - 1000
		require.NoError(t, d.WriteAt(ctx, data, off))

		buf := make([]byte, len(data))
		require.NoError(t, d.ReadAt(ctx, buf, off))
		assert.Equal(t, data, buf)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, d.WriteAt(ctx, []byte("aaaaaaaa"), 4096))
		require.NoError(t, d.WriteAt(ctx, []byte("bb"), 4098))

		buf := make([]byte, 8)
		require.NoError(t, d.ReadAt(ctx, buf, 4096))
		assert.Equal(t, "aabbaaaa", string(buf))
	})

	t.Run("Truncate", func(t *testing.T) {
		require.NoError(t, d.Truncate(ctx, 2*segSize))

		buf := make([]byte, 8)
		require.NoError(t, d.ReadAt(ctx, buf, 4096))
		assert.Equal(t, make([]byte, 8), buf)

		// Data in the segment holding the boundary survives.
		buf = make([]byte, 100)
		require.NoError(t, d.ReadAt(ctx, buf, 2*segSize))
		assert.Equal(t, byte(1000%251), buf[0])
	})

	require.NoError(t, d.Sync(ctx))
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Sync(ctx), ErrClosed)
}

func TestFileDevice(t *testing.T) {
	d, err := NewFileDevice(t.TempDir(), FileOptions{SegmentBits: 12})
	require.NoError(t, err)
	testDevice(t, d)
}

func TestBlobDevice(t *testing.T) {
	for _, codec := range []Codec{CodecLZ4, CodecZSTD} {
		t.Run(codec.String(), func(t *testing.T) {
			d, err := NewBlobDevice(t.Context(), blobstore.NewMemoryStore(), BlobOptions{SegmentBits: 12, Codec: codec})
			require.NoError(t, err)
			testDevice(t, d)
		})
	}
	t.Run("none", func(t *testing.T) {
		d, err := NewBlobDevice(t.Context(), blobstore.NewMemoryStore(), BlobOptions{SegmentBits: 12, DisableCompression: true})
		require.NoError(t, err)
		testDevice(t, d)
	})
}

func TestBlobDevice_Reopen(t *testing.T) {
	ctx := t.Context()
	store := blobstore.NewMemoryStore()

	d, err := NewBlobDevice(ctx, store, BlobOptions{SegmentBits: 12, Prefix: "log/"})
	require.NoError(t, err)
	data := bytes.Repeat([]byte("latchkv!"), 1024)
	require.NoError(t, d.WriteAt(ctx, data, 1<<12))
	require.NoError(t, d.Close())

	names, err := store.List(ctx, "log/")
	require.NoError(t, err)
	assert.Equal(t, []string{"log/segment-0000000000000001", "log/segment-0000000000000002"}, names)

	d, err = NewBlobDevice(ctx, store, BlobOptions{SegmentBits: 12, Prefix: "log/"})
	require.NoError(t, err)
	buf := make([]byte, len(data))
	require.NoError(t, d.ReadAt(ctx, buf, 1<<12))
	assert.Equal(t, data, buf)

	stats := d.Stats()
	assert.Equal(t, uint64(2), stats.LiveSegments)
	assert.Equal(t, int64(2), stats.SegmentReads)
	assert.Equal(t, int64(2), stats.CacheMisses)
}

// gatedStore holds the next Open after it fetched the blob until released.
type gatedStore struct {
	*blobstore.MemoryStore
	armed   atomic.Bool
	fetched chan struct{}
	release chan struct{}
}

func (s *gatedStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if s.armed.CompareAndSwap(true, false) {
		close(s.fetched)
		<-s.release
	}
	return b, err
}

func TestBlobDevice_SlowReadKeepsNewerWrite(t *testing.T) {
	ctx := t.Context()
	store := &gatedStore{
		MemoryStore: blobstore.NewMemoryStore(),
		fetched:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	d, err := NewBlobDevice(ctx, store, BlobOptions{SegmentBits: 12, Cache: cache.NewLRU(4096, nil)})
	require.NoError(t, err)

	require.NoError(t, d.WriteAt(ctx, []byte("AAAAAAAA"), 0))
	d.cache.Invalidate(func(cache.Key) bool { return true })

	store.armed.Store(true)
	done := make(chan error, 1)
	go func() { done <- d.ReadAt(ctx, make([]byte, 8), 0) }()
	<-store.fetched

	// Lands while the reader holds the segment without B.
	require.NoError(t, d.WriteAt(ctx, []byte("BBBBBBBB"), 8))
	close(store.release)
	require.NoError(t, <-done)

	require.NoError(t, d.WriteAt(ctx, []byte("CCCCCCCC"), 16))
	require.NoError(t, d.Close())

	d, err = NewBlobDevice(ctx, store.MemoryStore, BlobOptions{SegmentBits: 12})
	require.NoError(t, err)
	buf := make([]byte, 24)
	require.NoError(t, d.ReadAt(ctx, buf, 0))
	assert.Equal(t, "AAAAAAAABBBBBBBBCCCCCCCC", string(buf))
}

func TestBlobDevice_CachesLargeSegments(t *testing.T) {
	ctx := t.Context()
	d, err := NewBlobDevice(ctx, blobstore.NewMemoryStore(), BlobOptions{SegmentBits: 22, CacheBytes: 4 << 22})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.WriteAt(ctx, bytes.Repeat([]byte{7}, 2<<20), 0))
	buf := make([]byte, 64)
	for range 10 {
		require.NoError(t, d.ReadAt(ctx, buf, 1<<20))
	}
	assert.Equal(t, int64(10), d.Stats().CacheHits)
	assert.Zero(t, d.Stats().SegmentReads)
}

func TestBlobDevice_ChecksumMismatch(t *testing.T) {
	ctx := t.Context()
	store := blobstore.NewMemoryStore()

	d, err := NewBlobDevice(ctx, store, BlobOptions{SegmentBits: 12, DisableCompression: true})
	require.NoError(t, err)
	require.NoError(t, d.WriteAt(ctx, []byte("payload!"), 0))

	frame, err := blobstore.ReadAll(ctx, store, "segment-0000000000000000")
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xff
	require.NoError(t, store.Put(ctx, "segment-0000000000000000", frame))

	// A fresh device has nothing cached.
	d, err = NewBlobDevice(ctx, store, BlobOptions{SegmentBits: 12})
	require.NoError(t, err)
	err = d.ReadAt(ctx, make([]byte, 8), 0)
	assert.ErrorIs(t, err, ErrChecksum)
	assert.ErrorIs(t, err, ErrDevice)
	assert.Equal(t, int64(1), d.Stats().ChecksumFailure)
}

func TestFileDevice_Faults(t *testing.T) {
	ctx := t.Context()
	faulty := fs.NewFaultyFS(nil)
	d, err := NewFileDevice(t.TempDir(), FileOptions{SegmentBits: 12, FS: faulty})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.WriteAt(ctx, []byte("ok"), 0))

	faulty.AddRule("log.0", fs.Fault{FailAfterBytes: 0})
	err = d.WriteAt(ctx, []byte("fail"), 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDevice)
	assert.ErrorIs(t, err, fs.ErrInjected)

	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "write", de.Op)
	assert.Equal(t, uint64(8), de.Offset)

	faulty.AddRule("log.0", fs.Fault{FailAfterBytes: -1, FailOnRead: true})
	assert.ErrorIs(t, d.ReadAt(ctx, make([]byte, 2), 0), fs.ErrInjected)

	faulty.AddRule("log.0", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	assert.ErrorIs(t, d.Sync(ctx), fs.ErrInjected)

	faulty.ClearRules()
	buf := make([]byte, 2)
	require.NoError(t, d.ReadAt(ctx, buf, 0))
	assert.Equal(t, "ok", string(buf))
}

func TestCodec_Incompressible(t *testing.T) {
	raw := []byte{0x12, 0x9a, 0x33, 0x01}
	frame, err := encodeFrame(raw, CodecZSTD)
	require.NoError(t, err)
	assert.Equal(t, byte(CodecNone), frame[0])

	got, err := decodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = decodeFrame(frame[:4])
	assert.Error(t, err)
}
