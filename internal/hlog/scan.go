package hlog

import (
	"context"
	"fmt"

	"github.com/hupe1980/latchkv/device"
	"github.com/hupe1980/latchkv/internal/record"
)

// ScanFunc receives each record in address order. rec is only valid during
// the call. Fillers are not reported.
type ScanFunc func(addr uint64, rec []byte) error

// Scan visits the records of [from, until) that are flushed or read-only.
// from must be a record boundary; until is clamped to the safe read-only
// address.
func (l *Log) Scan(ctx context.Context, from, until uint64, fn ScanFunc) error {
	from = max(from, l.begin.Load())
	until = min(until, l.safeReadOnly.Load())

	for a := from; a < until; {
		p := l.pageOf(a)
		end := min(until, l.pageStart(p+1))

		var buf []byte
		if end > l.flushed.Load() {
			if pg := l.frame(p); pg != nil {
				var err error
				if buf, err = l.snapshot(pg, a, end); err != nil {
					return err
				}
			}
		}
		if buf == nil {
			buf = make([]byte, end-a)
			if err := l.cfg.Device.ReadAt(ctx, buf, a); err != nil {
				return err
			}
		}
		if err := scanBuffer(l.cfg.Shape, buf, a, fn); err != nil {
			return err
		}
		a = end
	}
	return nil
}

// ScanDevice visits the records of [from, until) stored on dev, reading one
// page at a time. It is used before a log exists, during recovery.
func ScanDevice(ctx context.Context, dev device.Device, shape record.Shape, pageBits uint, from, until uint64, fn ScanFunc) error {
	pageSize := uint64(1) << pageBits
	buf := make([]byte, pageSize)
	for a := from; a < until; {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(until, (a>>pageBits+1)<<pageBits)
		chunk := buf[:end-a]
		if err := dev.ReadAt(ctx, chunk, a); err != nil {
			return err
		}
		if err := scanBuffer(shape, chunk, a, fn); err != nil {
			return err
		}
		a = end
	}
	return nil
}

// scanBuffer walks the records of a page piece starting at base. A null
// header ends the piece.
func scanBuffer(shape record.Shape, buf []byte, base uint64, fn ScanFunc) error {
	for off := 0; off < len(buf); {
		rec := buf[off:]
		if len(rec) < record.Size {
			return fmt.Errorf("%w: truncated header at %d", ErrCorrupt, base+uint64(off))
		}
		h := record.Decode(rec)
		if h.IsNull() {
			return nil
		}
		if !h.IsFiller() && len(rec) < shape.PrefixSize() {
			return fmt.Errorf("%w: truncated record at %d", ErrCorrupt, base+uint64(off))
		}
		size, err := record.SizeAt(shape, rec)
		if err != nil {
			return fmt.Errorf("%w: at %d: %w", ErrCorrupt, base+uint64(off), err)
		}
		if size > len(rec) {
			return fmt.Errorf("%w: record at %d crosses %d", ErrCorrupt, base+uint64(off), base+uint64(len(buf)))
		}
		if !h.IsFiller() {
			if err := fn(base+uint64(off), rec[:size]); err != nil {
				return err
			}
		}
		off += size
	}
	return nil
}
