package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// DefaultIOWorkers is the number of concurrent device reads when unset.
const DefaultIOWorkers = 16

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for log pages and segment caches.
	// If 0, usage is tracked but not limited.
	MemoryLimitBytes int64

	// MaxIOWorkers bounds concurrent device reads. If 0, DefaultIOWorkers.
	MaxIOWorkers int64

	// IOLimitBytesPerSec throttles flush writes. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller governs the memory, read concurrency and write bandwidth of a store.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxIOWorkers <= 0 {
		cfg.MaxIOWorkers = DefaultIOWorkers
	}

	c := &Controller{
		cfg:   cfg,
		ioSem: semaphore.NewWeighted(cfg.MaxIOWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireMemory reserves bytes without blocking.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
func (c *Controller) AcquireMemory(bytes int64) error {
	if !c.TryAcquireMemory(bytes) {
		return ErrMemoryLimitExceeded
	}
	return nil
}

// TryAcquireMemory is AcquireMemory reporting success as a bool.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns reserved bytes.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireIOWorker blocks until a device read slot is free.
func (c *Controller) AcquireIOWorker(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	return c.ioSem.Acquire(ctx, 1)
}

// TryAcquireIOWorker reserves a read slot without blocking.
func (c *Controller) TryAcquireIOWorker() bool {
	if c == nil {
		return true
	}
	return c.ioSem.TryAcquire(1)
}

// ReleaseIOWorker frees a read slot.
func (c *Controller) ReleaseIOWorker() {
	if c == nil {
		return
	}
	c.ioSem.Release(1)
}

// AcquireIO waits until the write budget allows bytes. Requests larger than
// the burst are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > burst {
		if err := c.ioLimiter.WaitN(ctx, burst); err != nil {
			return err
		}
		bytes -= burst
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}

// TryAcquireIO takes write budget without blocking.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}
