// Package resource governs the shared resources of a store.
//
//   - Memory: log page frames and decoded segment caches reserve bytes up
//     front. Reservations never block; a refused reservation surfaces as
//     ErrMemoryLimitExceeded.
//   - Read concurrency: device reads issued for pending operations run on a
//     bounded number of worker slots (weighted semaphore).
//   - Write bandwidth: the flusher takes tokens from a token bucket before
//     every device write.
//
// All methods are safe on a nil *Controller, which imposes no limits:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   64 << 20,
//	    IOLimitBytesPerSec: 32 << 20,
//	})
package resource
