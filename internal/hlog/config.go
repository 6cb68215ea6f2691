package hlog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/latchkv/device"
	"github.com/hupe1980/latchkv/internal/record"
	"github.com/hupe1980/latchkv/internal/resource"
)

// Config configures a Log.
type Config struct {
	// PageSizeBits is the log2 of the page size. Default: 20 (1 MiB).
	PageSizeBits uint
	// MemorySizeBits is the log2 of the in-memory part of the log.
	// Default: 24 (16 MiB). At least two pages are kept.
	MemorySizeBits uint
	// MutableFraction is the share of in-memory pages open to in-place
	// updates. Default: 0.9.
	MutableFraction float64

	Shape    record.Shape
	Device   device.Device
	Resource *resource.Controller
	Logger   *slog.Logger
	Observer Observer
}

func (c *Config) validate() error {
	if c.PageSizeBits == 0 {
		c.PageSizeBits = 20
	}
	if c.MemorySizeBits == 0 {
		c.MemorySizeBits = 24
	}
	if c.MutableFraction == 0 {
		c.MutableFraction = 0.9
	}
	if c.Shape == nil {
		c.Shape = record.Fixed{KeySize: 8, ValueSize: 8}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Observer == nil {
		c.Observer = NoopObserver{}
	}

	if c.PageSizeBits < 9 || c.PageSizeBits > 30 {
		return fmt.Errorf("page size bits %d out of range [9, 30]", c.PageSizeBits)
	}
	if c.MemorySizeBits < c.PageSizeBits+1 {
		return fmt.Errorf("memory size bits %d must exceed page size bits %d", c.MemorySizeBits, c.PageSizeBits)
	}
	if c.MemorySizeBits > 40 {
		return fmt.Errorf("memory size bits %d out of range", c.MemorySizeBits)
	}
	if c.MutableFraction < 0 || c.MutableFraction > 1 {
		return fmt.Errorf("mutable fraction %v out of range [0, 1]", c.MutableFraction)
	}
	if c.Device == nil {
		return fmt.Errorf("device is required")
	}
	if s, ok := c.Device.(device.Segmented); ok && s.SegmentBits() < c.PageSizeBits {
		return fmt.Errorf("page size bits %d exceed device segment bits %d", c.PageSizeBits, s.SegmentBits())
	}
	return nil
}

// Observer receives log events.
type Observer interface {
	OnFlush(from, until uint64, bytes int, elapsed time.Duration)
	OnPageEvicted(page uint64)
	OnFlushError(err error)
}

// NoopObserver ignores all events.
type NoopObserver struct{}

func (NoopObserver) OnFlush(uint64, uint64, int, time.Duration) {}
func (NoopObserver) OnPageEvicted(uint64)                       {}
func (NoopObserver) OnFlushError(error)                         {}
