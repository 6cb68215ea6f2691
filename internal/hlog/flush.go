package hlog

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/hupe1980/latchkv/internal/record"
)

// ShiftReadOnly moves the read-only address up to addr (never down) and
// returns the resulting read-only address. It waits until every mutator
// pinned below the new boundary has finished, then hands the range to the
// flusher.
func (l *Log) ShiftReadOnly(addr uint64) uint64 {
	l.shiftMu.Lock()
	defer l.shiftMu.Unlock()

	old := l.readOnly.Load()
	if addr <= old {
		return old
	}
	l.readOnly.Store(addr)

	for p := l.pageOf(old); p <= l.pageOf(addr-1); p++ {
		pg := l.frame(p)
		if pg == nil {
			continue
		}
		for pg.guard.Load() > 0 {
			runtime.Gosched()
		}
	}

	l.safeReadOnly.Store(addr)
	l.requestFlush()
	return addr
}

func (l *Log) requestFlush() {
	select {
	case l.flushReq <- struct{}{}:
	default:
	}
}

func (l *Log) failure() error {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()
	return l.flushErr
}

// WaitFlushed blocks until every byte below addr is on the device or the
// flusher failed.
func (l *Log) WaitFlushed(ctx context.Context, addr uint64) error {
	for {
		l.flushMu.Lock()
		flushed, err, ch := l.flushed.Load(), l.flushErr, l.flushCh
		l.flushMu.Unlock()

		if err != nil {
			return err
		}
		if flushed >= addr {
			return nil
		}
		if l.safeReadOnly.Load() < addr {
			return fmt.Errorf("wait for %d beyond read-only address %d", addr, l.safeReadOnly.Load())
		}
		l.requestFlush()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Log) runFlushLoop() {
	defer l.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.flushReq:
			l.flushPending()
		}
	}
}

// flushPending writes [flushed, safeReadOnly) to the device, one page piece
// at a time.
func (l *Log) flushPending() {
	for {
		if l.failure() != nil {
			return
		}
		from, until := l.flushed.Load(), l.safeReadOnly.Load()
		if from >= until {
			return
		}
		p := l.pageOf(from)
		end := min(until, l.pageStart(p+1))

		pg := l.frame(p)
		if pg == nil {
			l.fail(fmt.Errorf("%w: page %d left memory before it was flushed", ErrCorrupt, p))
			return
		}

		start := time.Now()
		buf, err := l.snapshot(pg, from, end)
		if err == nil {
			err = l.cfg.Resource.AcquireIO(l.ctx, len(buf))
		}
		if err == nil {
			err = l.cfg.Device.WriteAt(l.ctx, buf, from)
		}
		if err != nil {
			l.fail(fmt.Errorf("flush [%d, %d): %w", from, end, err))
			return
		}

		l.forEach(pg, from, end, func(w record.Word) { w.SetDirty(false) })

		l.flushMu.Lock()
		l.flushed.Store(end)
		close(l.flushCh)
		l.flushCh = make(chan struct{})
		l.flushMu.Unlock()

		l.cfg.Observer.OnFlush(from, end, len(buf), time.Since(start))
	}
}

func (l *Log) fail(err error) {
	l.flushMu.Lock()
	if l.flushErr == nil {
		l.flushErr = err
	}
	close(l.flushCh)
	l.flushCh = make(chan struct{})
	l.flushMu.Unlock()

	l.cfg.Logger.Error("log flush failed", "error", err)
	l.cfg.Observer.OnFlushError(err)
}

// snapshot copies the records of [from, end) out of pg. Headers are read
// atomically and stripped of their transient bits.
func (l *Log) snapshot(pg *page, from, end uint64) ([]byte, error) {
	base := l.pageStart(pg.num)
	buf := make([]byte, end-from)

	var err error
	l.walk(pg, from, end, func(off uint64, size int, h record.Header) {
		dst := buf[off-from:]
		record.Encode(dst, h.Sanitized())
		copy(dst[record.Size:size], pg.data[off-base+record.Size:off-base+uint64(size)])
	}, &err)
	return buf, err
}

func (l *Log) forEach(pg *page, from, end uint64, fn func(record.Word)) {
	base := l.pageStart(pg.num)
	var err error
	l.walk(pg, from, end, func(off uint64, _ int, _ record.Header) {
		fn(record.WordAt(pg.data[off-base:]))
	}, &err)
}

// walk visits the records and fillers of [from, end) in page memory. A null
// header ends the page.
func (l *Log) walk(pg *page, from, end uint64, fn func(off uint64, size int, h record.Header), errp *error) {
	base := l.pageStart(pg.num)
	for off := from; off < end; {
		rec := pg.data[off-base:]
		h := record.WordAt(rec).Load()
		if h.IsNull() {
			return
		}
		size, err := l.sizeOf(h, rec)
		if err != nil {
			*errp = err
			return
		}
		if off+uint64(size) > end {
			*errp = fmt.Errorf("%w: record at %d crosses %d", ErrCorrupt, off, end)
			return
		}
		fn(off, size, h)
		off += uint64(size)
	}
}

func (l *Log) sizeOf(h record.Header, rec []byte) (int, error) {
	if h.IsFiller() {
		n := int(h.PreviousAddress())
		if n < record.Size || n%8 != 0 || n > len(rec) {
			return 0, fmt.Errorf("%w: filler size %d", ErrCorrupt, n)
		}
		return n, nil
	}
	if len(rec) < l.cfg.Shape.PrefixSize() {
		return 0, fmt.Errorf("%w: record prefix beyond page end", ErrCorrupt)
	}
	n, err := l.cfg.Shape.SizeOf(rec)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if n > len(rec) {
		return 0, fmt.Errorf("%w: record of %d bytes beyond page end", ErrCorrupt, n)
	}
	return n, nil
}
