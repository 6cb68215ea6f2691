package hlog

import (
	"context"
	"fmt"
)

// ShiftBeginAddress moves the begin address up to addr, a page boundary,
// and truncates the device below it. Only flushed addresses can be dropped.
func (l *Log) ShiftBeginAddress(ctx context.Context, addr uint64) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if addr%l.pageSize != 0 {
		return fmt.Errorf("%w: begin address %d is not page aligned", ErrInvalidAddress, addr)
	}
	if flushed := l.flushed.Load(); addr > flushed {
		return fmt.Errorf("%w: begin address %d beyond flushed address %d", ErrInvalidAddress, addr, flushed)
	}
	for {
		b := l.begin.Load()
		if addr <= b {
			return nil
		}
		if l.begin.CompareAndSwap(b, addr) {
			break
		}
	}
	if err := l.cfg.Device.Truncate(ctx, addr); err != nil {
		return err
	}
	l.cfg.Logger.Info("log begin address shifted", "begin_address", addr)
	return nil
}
