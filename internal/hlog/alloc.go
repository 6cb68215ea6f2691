package hlog

import (
	"context"
	"fmt"

	"github.com/hupe1980/latchkv/internal/record"
)

// Slot is space reserved at the tail. The page stays pinned until Release,
// which the caller issues after publishing the record header.
type Slot struct {
	Addr uint64
	Rec  []byte
	g    Guard
}

// Release unpins the page of the slot.
func (s Slot) Release() { s.g.Release() }

// Allocate reserves size bytes at the tail. size must be a multiple of 8.
//
// The returned slot is pinned: the caller must publish a non-null header
// into Rec and then Release it. Never allocate while holding a pin.
func (l *Log) Allocate(size int) (Slot, error) {
	if size <= 0 || size%8 != 0 || uint64(size) > l.pageSize {
		return Slot{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, size)
	}

	for {
		if l.closed.Load() {
			return Slot{}, ErrClosed
		}
		if err := l.failure(); err != nil {
			return Slot{}, err
		}

		t := l.tail.Load()
		p := l.pageOf(t)
		pg := l.frame(p)
		if pg == nil {
			if err := l.turn(p); err != nil {
				return Slot{}, err
			}
			continue
		}

		pg.guard.Add(1)
		if off := t - l.pageStart(p); off+uint64(size) <= l.pageSize {
			if l.tail.CompareAndSwap(t, t+uint64(size)) {
				return Slot{Addr: t, Rec: pg.data[off : off+uint64(size)], g: Guard{pg: pg}}, nil
			}
			pg.guard.Add(-1)
			continue
		}
		pg.guard.Add(-1)

		if err := l.turn(p + 1); err != nil {
			return Slot{}, err
		}
	}
}

// turn makes page n the tail page. It evicts the page that leaves memory,
// installs a fresh frame, pads the rest of the previous page with a filler
// and moves the read-only address so that at most the configured number
// of pages stay mutable.
func (l *Log) turn(n uint64) error {
	l.turnMu.Lock()
	defer l.turnMu.Unlock()

	if n < l.pageOf(l.tail.Load()) {
		return nil // stale
	}

	if l.frame(n) == nil {
		if n >= l.numFrames {
			old := n - l.numFrames
			end := l.pageStart(old + 1)
			l.ShiftReadOnly(end)
			if err := l.WaitFlushed(context.Background(), end); err != nil {
				return err
			}
			l.evict(old)
		}
		if err := l.install(n); err != nil {
			l.cfg.Logger.Warn("page allocation refused", "page", n, "error", err)
			return err
		}
	}

	start := l.pageStart(n)
	for {
		t := l.tail.Load()
		if t >= start {
			break
		}
		prev := l.frame(l.pageOf(t))
		if prev == nil {
			if l.tail.CompareAndSwap(t, start) {
				break
			}
			continue
		}
		prev.guard.Add(1)
		if l.tail.CompareAndSwap(t, start) {
			if gap := start - t; gap > 0 {
				record.WordAt(prev.data[t-l.pageStart(prev.num):]).Publish(record.Filler(int(gap)))
			}
			prev.guard.Add(-1)
			break
		}
		prev.guard.Add(-1)
	}

	if n+1 > l.mutable {
		l.ShiftReadOnly(l.pageStart(n + 1 - l.mutable))
	}
	return nil
}

// evict drops page p from memory. The page must be flushed.
func (l *Log) evict(p uint64) {
	end := l.pageStart(p + 1)
	for {
		h := l.head.Load()
		if h >= end || l.head.CompareAndSwap(h, end) {
			break
		}
	}

	slot := &l.frames[p%l.numFrames]
	if pg := slot.Load(); pg != nil && pg.num == p {
		slot.CompareAndSwap(pg, nil)
		l.cfg.Resource.ReleaseMemory(int64(l.pageSize))
		l.cfg.Observer.OnPageEvicted(p)
	}
}
