package hlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/latchkv/internal/record"
	"github.com/hupe1980/latchkv/internal/resource"
)

// FirstAddress is the address of the first record of a fresh log.
// Address 0 is reserved as the invalid address.
const FirstAddress = 64

var (
	// ErrMemoryLimitExceeded is returned when a new page cannot be charged
	// to the memory budget.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

	// ErrRecordTooLarge is returned for records that do not fit in a page.
	ErrRecordTooLarge = errors.New("record larger than a page")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("log closed")

	// ErrCorrupt is returned when the device holds no record where one is expected.
	ErrCorrupt = errors.New("corrupt log")

	// ErrInvalidAddress is returned for addresses outside the allowed range.
	ErrInvalidAddress = errors.New("invalid log address")
)

// page is one in-memory frame of the log.
type page struct {
	num  uint64
	data []byte

	// guard counts mutators (record creators and in-place writers) that
	// are currently working on the page.
	guard atomic.Int64
}

// Log is a hybrid log: an append-only address space whose newest pages live
// in memory and whose older pages live on a device.
//
// Address regions, low to high:
//
//	[Begin, Head)     on the device only
//	[Head, ReadOnly)  in memory, immutable
//	[ReadOnly, Tail)  in memory, open to in-place updates
type Log struct {
	cfg       Config
	pageBits  uint
	pageSize  uint64
	numFrames uint64
	mutable   uint64

	frames []atomic.Pointer[page]

	begin        atomic.Uint64
	head         atomic.Uint64
	safeReadOnly atomic.Uint64
	readOnly     atomic.Uint64
	tail         atomic.Uint64

	turnMu  sync.Mutex
	shiftMu sync.Mutex

	flushMu  sync.Mutex
	flushed  atomic.Uint64
	flushErr error
	flushCh  chan struct{} // closed and replaced on every flush progress
	flushReq chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates an empty log and starts its flusher.
func New(cfg Config) (*Log, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	numFrames := uint64(1) << (cfg.MemorySizeBits - cfg.PageSizeBits)
	mutable := uint64(float64(numFrames) * cfg.MutableFraction)
	mutable = min(max(mutable, 1), numFrames-1)

	ctx, cancel := context.WithCancel(context.Background())
	l := &Log{
		cfg:       cfg,
		pageBits:  cfg.PageSizeBits,
		pageSize:  uint64(1) << cfg.PageSizeBits,
		numFrames: numFrames,
		mutable:   mutable,
		frames:    make([]atomic.Pointer[page], numFrames),
		flushCh:   make(chan struct{}),
		flushReq:  make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := l.install(0); err != nil {
		cancel()
		return nil, err
	}
	l.begin.Store(FirstAddress)
	l.safeReadOnly.Store(FirstAddress)
	l.readOnly.Store(FirstAddress)
	l.flushed.Store(FirstAddress)
	l.tail.Store(FirstAddress)

	l.wg.Add(1)
	go l.runFlushLoop()
	return l, nil
}

func (l *Log) pageOf(addr uint64) uint64 { return addr >> l.pageBits }

func (l *Log) pageStart(p uint64) uint64 { return p << l.pageBits }

// PageSize returns the page size in bytes.
func (l *Log) PageSize() int { return int(l.pageSize) }

// Shape returns the record shape of the log.
func (l *Log) Shape() record.Shape { return l.cfg.Shape }

func (l *Log) frame(p uint64) *page {
	pg := l.frames[p%l.numFrames].Load()
	if pg == nil || pg.num != p {
		return nil
	}
	return pg
}

func (l *Log) install(p uint64) error {
	if err := l.cfg.Resource.AcquireMemory(int64(l.pageSize)); err != nil {
		return fmt.Errorf("page %d: %w", p, err)
	}
	l.frames[p%l.numFrames].Store(&page{num: p, data: make([]byte, l.pageSize)})
	return nil
}

func (l *Log) BeginAddress() uint64 { return l.begin.Load() }

func (l *Log) HeadAddress() uint64 { return l.head.Load() }

func (l *Log) SafeReadOnlyAddress() uint64 { return l.safeReadOnly.Load() }

func (l *Log) ReadOnlyAddress() uint64 { return l.readOnly.Load() }

func (l *Log) TailAddress() uint64 { return l.tail.Load() }

func (l *Log) FlushedAddress() uint64 { return l.flushed.Load() }

// Get returns the page memory from addr to the end of its page, or nil when
// addr is not in memory. Readers of records at or above the safe read-only
// address must hold the record's shared lock.
func (l *Log) Get(addr uint64) []byte {
	if addr < l.head.Load() {
		return nil
	}
	pg := l.frame(l.pageOf(addr))
	if pg == nil {
		return nil
	}
	return pg.data[addr-l.pageStart(pg.num):]
}

// Guard pins a page against the read-only shift.
type Guard struct {
	pg *page
}

// Release ends the guarded section. It is safe on the zero Guard.
func (g Guard) Release() {
	if g.pg != nil {
		g.pg.guard.Add(-1)
	}
}

// EnterMutable pins the page of addr for an in-place update. It fails when
// addr is not in the mutable region; the check happens after the pin so a
// concurrent ShiftReadOnly either sees the pin or the update sees the shift.
func (l *Log) EnterMutable(addr uint64) (Guard, []byte, bool) {
	pg := l.frame(l.pageOf(addr))
	if pg == nil {
		return Guard{}, nil, false
	}
	pg.guard.Add(1)
	if addr < l.readOnly.Load() || l.frame(pg.num) != pg {
		pg.guard.Add(-1)
		return Guard{}, nil, false
	}
	return Guard{pg: pg}, pg.data[addr-l.pageStart(pg.num):], true
}

// Stats is a snapshot of the log addresses.
type Stats struct {
	BeginAddress        uint64
	HeadAddress         uint64
	SafeReadOnlyAddress uint64
	ReadOnlyAddress     uint64
	TailAddress         uint64
	FlushedAddress      uint64
	Frames              int
	MutablePages        int
}

func (l *Log) Stats() Stats {
	return Stats{
		BeginAddress:        l.begin.Load(),
		HeadAddress:         l.head.Load(),
		SafeReadOnlyAddress: l.safeReadOnly.Load(),
		ReadOnlyAddress:     l.readOnly.Load(),
		TailAddress:         l.tail.Load(),
		FlushedAddress:      l.flushed.Load(),
		Frames:              int(l.numFrames),
		MutablePages:        int(l.mutable),
	}
}

// Close flushes the whole log and stops the flusher. It does not close
// the device.
func (l *Log) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	tail := l.tail.Load()
	l.ShiftReadOnly(tail)
	err := l.WaitFlushed(context.Background(), tail)

	l.cancel()
	l.wg.Wait()

	for i := range l.frames {
		if pg := l.frames[i].Swap(nil); pg != nil {
			l.cfg.Resource.ReleaseMemory(int64(l.pageSize))
		}
	}
	return err
}
