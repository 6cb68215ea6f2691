package hlog

import (
	"fmt"
)

// RecoverAt positions an unused log at tail, a page boundary. Every address
// below tail is expected on the device; begin becomes the lowest readable
// address.
func (l *Log) RecoverAt(begin, tail uint64) error {
	l.turnMu.Lock()
	defer l.turnMu.Unlock()

	if l.tail.Load() != FirstAddress {
		return fmt.Errorf("recover into a log that is in use (tail %d)", l.tail.Load())
	}
	if tail%l.pageSize != 0 || begin > tail || begin < FirstAddress {
		return fmt.Errorf("invalid recovery range [%d, %d)", begin, tail)
	}
	if pg := l.frames[0].Swap(nil); pg != nil {
		l.cfg.Resource.ReleaseMemory(int64(l.pageSize))
	}
	if err := l.install(l.pageOf(tail)); err != nil {
		return err
	}

	l.begin.Store(begin)
	l.head.Store(tail)
	l.flushed.Store(tail)
	l.safeReadOnly.Store(tail)
	l.readOnly.Store(tail)
	l.tail.Store(tail)
	return nil
}
