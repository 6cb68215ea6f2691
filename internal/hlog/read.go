package hlog

import (
	"context"
	"fmt"

	"github.com/hupe1980/latchkv/internal/record"
)

// ReadRecord reads the record at addr from the device. The returned bytes
// are owned by the caller.
func (l *Log) ReadRecord(ctx context.Context, addr uint64) ([]byte, error) {
	if addr < l.begin.Load() {
		return nil, fmt.Errorf("%w: address %d below begin %d", ErrCorrupt, addr, l.begin.Load())
	}
	pageEnd := l.pageStart(l.pageOf(addr) + 1)
	prefix := uint64(max(record.Size, l.cfg.Shape.PrefixSize(), l.cfg.Shape.RecordSize(0, 0)))
	prefix = min(prefix, pageEnd-addr)

	buf := make([]byte, prefix)
	if err := l.cfg.Device.ReadAt(ctx, buf, addr); err != nil {
		return nil, err
	}
	h := record.Decode(buf)
	if h.IsNull() || h.IsFiller() {
		return nil, fmt.Errorf("%w: no record at %d", ErrCorrupt, addr)
	}
	size, err := l.cfg.Shape.SizeOf(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if uint64(size) > pageEnd-addr {
		return nil, fmt.Errorf("%w: record at %d crosses its page", ErrCorrupt, addr)
	}
	if size <= len(buf) {
		return buf[:size], nil
	}

	rec := make([]byte, size)
	copy(rec, buf)
	if err := l.cfg.Device.ReadAt(ctx, rec[len(buf):], addr+uint64(len(buf))); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReadAsync reads the record at addr on a worker goroutine and calls fn
// with the result. Concurrent reads are bounded by the I/O worker slots of
// the resource controller.
func (l *Log) ReadAsync(ctx context.Context, addr uint64, fn func(rec []byte, err error)) {
	go func() {
		if err := l.cfg.Resource.AcquireIOWorker(ctx); err != nil {
			fn(nil, err)
			return
		}
		defer l.cfg.Resource.ReleaseIOWorker()
		fn(l.ReadRecord(ctx, addr))
	}()
}
