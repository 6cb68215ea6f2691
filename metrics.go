package latchkv

import (
	"sync/atomic"
	"time"
)

// MetricsObserver receives operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; see the prometheus package for a ready-made adapter.
type MetricsObserver interface {
	// RecordOperation is called when an operation returns or, if it went
	// pending, when it finally completes.
	RecordOperation(kind OpKind, status Status, duration time.Duration)

	// RecordUpdate is called for every successful write. inPlace reports
	// whether an existing record was modified instead of a new one appended.
	RecordUpdate(kind OpKind, inPlace bool)

	// RecordPending is called each time an operation goes pending.
	RecordPending(kind OpKind)

	// RecordCheckpoint is called after each checkpoint attempt.
	RecordCheckpoint(duration time.Duration, err error)

	// RecordFlush is called after the log wrote a range to the device.
	RecordFlush(bytes int, duration time.Duration)

	// RecordPageEvicted is called when a page leaves memory.
	RecordPageEvicted()
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) RecordOperation(OpKind, Status, time.Duration) {}
func (NoopMetricsObserver) RecordUpdate(OpKind, bool)                     {}
func (NoopMetricsObserver) RecordPending(OpKind)                          {}
func (NoopMetricsObserver) RecordCheckpoint(time.Duration, error)         {}
func (NoopMetricsObserver) RecordFlush(int, time.Duration)                {}
func (NoopMetricsObserver) RecordPageEvicted()                            {}

// BasicMetricsObserver provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsObserver struct {
	ReadCount        atomic.Int64
	ReadNotFound     atomic.Int64
	ReadTotalNanos   atomic.Int64
	UpsertCount      atomic.Int64
	RMWCount         atomic.Int64
	DeleteCount      atomic.Int64
	ErrorCount       atomic.Int64
	PendingCount     atomic.Int64
	InPlaceUpdates   atomic.Int64
	AppendUpdates    atomic.Int64
	CheckpointCount  atomic.Int64
	CheckpointErrors atomic.Int64
	FlushCount       atomic.Int64
	FlushBytes       atomic.Int64
	PagesEvicted     atomic.Int64
}

// RecordOperation implements MetricsObserver.
func (b *BasicMetricsObserver) RecordOperation(kind OpKind, status Status, duration time.Duration) {
	if status == StatusError {
		b.ErrorCount.Add(1)
	}
	switch kind {
	case OpRead:
		b.ReadCount.Add(1)
		b.ReadTotalNanos.Add(duration.Nanoseconds())
		if status == StatusNotFound {
			b.ReadNotFound.Add(1)
		}
	case OpUpsert:
		b.UpsertCount.Add(1)
	case OpRMW:
		b.RMWCount.Add(1)
	case OpDelete:
		b.DeleteCount.Add(1)
	}
}

// RecordUpdate implements MetricsObserver.
func (b *BasicMetricsObserver) RecordUpdate(_ OpKind, inPlace bool) {
	if inPlace {
		b.InPlaceUpdates.Add(1)
	} else {
		b.AppendUpdates.Add(1)
	}
}

// RecordPending implements MetricsObserver.
func (b *BasicMetricsObserver) RecordPending(OpKind) {
	b.PendingCount.Add(1)
}

// RecordCheckpoint implements MetricsObserver.
func (b *BasicMetricsObserver) RecordCheckpoint(_ time.Duration, err error) {
	b.CheckpointCount.Add(1)
	if err != nil {
		b.CheckpointErrors.Add(1)
	}
}

// RecordFlush implements MetricsObserver.
func (b *BasicMetricsObserver) RecordFlush(bytes int, _ time.Duration) {
	b.FlushCount.Add(1)
	b.FlushBytes.Add(int64(bytes))
}

// RecordPageEvicted implements MetricsObserver.
func (b *BasicMetricsObserver) RecordPageEvicted() {
	b.PagesEvicted.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsObserver) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:        b.ReadCount.Load(),
		ReadNotFound:     b.ReadNotFound.Load(),
		ReadAvgNanos:     b.getAvgReadNanos(),
		UpsertCount:      b.UpsertCount.Load(),
		RMWCount:         b.RMWCount.Load(),
		DeleteCount:      b.DeleteCount.Load(),
		ErrorCount:       b.ErrorCount.Load(),
		PendingCount:     b.PendingCount.Load(),
		InPlaceUpdates:   b.InPlaceUpdates.Load(),
		AppendUpdates:    b.AppendUpdates.Load(),
		CheckpointCount:  b.CheckpointCount.Load(),
		CheckpointErrors: b.CheckpointErrors.Load(),
		FlushCount:       b.FlushCount.Load(),
		FlushBytes:       b.FlushBytes.Load(),
		PagesEvicted:     b.PagesEvicted.Load(),
	}
}

func (b *BasicMetricsObserver) getAvgReadNanos() int64 {
	count := b.ReadCount.Load()
	if count == 0 {
		return 0
	}
	return b.ReadTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsObserver state.
type BasicMetricsStats struct {
	ReadCount        int64
	ReadNotFound     int64
	ReadAvgNanos     int64
	UpsertCount      int64
	RMWCount         int64
	DeleteCount      int64
	ErrorCount       int64
	PendingCount     int64
	InPlaceUpdates   int64
	AppendUpdates    int64
	CheckpointCount  int64
	CheckpointErrors int64
	FlushCount       int64
	FlushBytes       int64
	PagesEvicted     int64
}
