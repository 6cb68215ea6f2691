package latchkv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/latchkv/blobstore"
	"github.com/hupe1980/latchkv/device"
	"github.com/hupe1980/latchkv/internal/checkpoint"
	"github.com/hupe1980/latchkv/internal/hlog"
	"github.com/hupe1980/latchkv/internal/index"
	"github.com/hupe1980/latchkv/internal/resource"
	"github.com/hupe1980/latchkv/internal/version"
)

// Store is a latch-free key-value store over a hybrid log. It is safe for
// concurrent use; each goroutine works through its own Session.
type Store struct {
	opts     options
	shape    Shape
	fns      Functions
	logger   *Logger
	metrics  MetricsObserver
	resource *resource.Controller

	log         *hlog.Log
	index       *index.Index
	version     *version.Counter
	dev         device.Device
	ownsDevice  bool
	checkpoints *checkpoint.Store

	ckptMu sync.Mutex

	ctx      context.Context // cancelled on Close; bounds pending I/O
	cancel   context.CancelFunc
	ioMu     sync.RWMutex // orders io.Add and ops.Add against Close
	io       sync.WaitGroup
	ops      sync.WaitGroup
	sessions atomic.Uint64
	closed   atomic.Bool
}

// Open creates a store. With WithRecover it restores the latest checkpoint
// from the object store.
//
// Example:
//
//	store, err := latchkv.Open(ctx, latchkv.WithFunctions(latchkv.AddFunctions{}))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	sess := store.NewSession()
//	sess.Upsert(key, value, nil)
func Open(ctx context.Context, optFns ...Option) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	s := &Store{
		opts:     opts,
		shape:    opts.shape,
		fns:      opts.functions,
		logger:   opts.logger,
		metrics:  opts.metrics,
		resource: resource.NewController(opts.resource),
		version:  version.NewCounter(0),
		dev:      opts.device,
	}

	if s.dev == nil {
		// Cached segments are not charged: the memory limit is for log pages.
		bits := max(opts.pageSizeBits, 22)
		dev, err := device.NewBlobDevice(ctx, blobstore.NewMemoryStore(), device.BlobOptions{
			SegmentBits: bits,
			CacheBytes:  4 << bits,
		})
		if err != nil {
			return nil, err
		}
		s.dev = dev
		s.ownsDevice = true
	}

	objects := opts.objectStore
	if objects == nil {
		objects = blobstore.NewMemoryStore()
	}
	s.checkpoints = checkpoint.NewStore(objects)

	idx, err := index.New(opts.indexBits)
	if err != nil {
		s.closeDevice()
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	s.index = idx

	log, err := hlog.New(hlog.Config{
		PageSizeBits:    opts.pageSizeBits,
		MemorySizeBits:  opts.memorySizeBits,
		MutableFraction: opts.mutableFraction,
		Shape:           opts.shape,
		Device:          s.dev,
		Resource:        s.resource,
		Logger:          opts.logger.Logger,
		Observer:        logObserver{s},
	})
	if err != nil {
		s.closeDevice()
		if errors.Is(err, ErrMemoryLimitExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	s.log = log
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if opts.recover {
		if err := s.recover(ctx); err != nil {
			s.cancel()
			_ = s.log.Close()
			s.closeDevice()
			return nil, err
		}
	}
	return s, nil
}

// logObserver forwards log events to the store's logger and metrics.
type logObserver struct {
	s *Store
}

func (o logObserver) OnFlush(from, until uint64, bytes int, elapsed time.Duration) {
	o.s.logger.LogFlush(from, until, bytes, elapsed)
	o.s.metrics.RecordFlush(bytes, elapsed)
}

func (o logObserver) OnPageEvicted(page uint64) {
	o.s.logger.LogPageEvicted(page)
	o.s.metrics.RecordPageEvicted()
}

func (o logObserver) OnFlushError(err error) {
	o.s.logger.LogFlushError(err)
}

func (s *Store) closeDevice() {
	if s.ownsDevice {
		_ = s.dev.Close()
	}
}

// NewSession starts a session. Sessions are not safe for concurrent use.
func (s *Store) NewSession() *Session {
	id := s.sessions.Add(1)
	return &Session{
		s:      s,
		id:     id,
		logger: s.logger.WithSession(id),
		wake:   make(chan struct{}, 1),
	}
}

// Close waits for running operations, flushes the log to the device and
// releases the store. Pending operations that did not complete fail with
// ErrClosed. A device passed with
// WithDevice is synced but not closed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	s.ioMu.Lock()
	s.ioMu.Unlock() //nolint:staticcheck // barrier: no new operation or I/O after this point
	s.ops.Wait()
	s.cancel()
	s.io.Wait()

	var errs []error
	if err := s.log.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.dev.Sync(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if s.ownsDevice {
		if err := s.dev.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ShiftBeginAddress drops the log below addr. Records whose chains end
// below it become unreachable. addr must already be flushed.
func (s *Store) ShiftBeginAddress(ctx context.Context, addr uint64) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.log.ShiftBeginAddress(ctx, addr); err != nil {
		return translateError(err)
	}
	s.index.TruncateBelow(s.log.BeginAddress())
	return nil
}

// Stats is a snapshot of the store.
type Stats struct {
	BeginAddress        uint64
	HeadAddress         uint64
	SafeReadOnlyAddress uint64
	ReadOnlyAddress     uint64
	TailAddress         uint64
	FlushedAddress      uint64
	Version             uint64
	IndexBuckets        int
	IndexUsed           int
	MemoryUsage         int64
}

// Stats returns current addresses and usage. IndexUsed scans the table.
func (s *Store) Stats() Stats {
	ls := s.log.Stats()
	return Stats{
		BeginAddress:        ls.BeginAddress,
		HeadAddress:         ls.HeadAddress,
		SafeReadOnlyAddress: ls.SafeReadOnlyAddress,
		ReadOnlyAddress:     ls.ReadOnlyAddress,
		TailAddress:         ls.TailAddress,
		FlushedAddress:      ls.FlushedAddress,
		Version:             s.version.Current(),
		IndexBuckets:        s.index.Len(),
		IndexUsed:           s.index.Used(),
		MemoryUsage:         s.resource.MemoryUsage(),
	}
}
