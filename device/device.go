package device

import (
	"context"
	"errors"
	"fmt"
)

// Device is the storage below the in-memory part of the log. Offsets are
// logical log addresses. Bytes that were never written read back as zeros.
//
// Implementations must be safe for concurrent use; writes to overlapping
// ranges are never issued concurrently by the log.
type Device interface {
	WriteAt(ctx context.Context, p []byte, off uint64) error
	ReadAt(ctx context.Context, p []byte, off uint64) error
	// Truncate releases whole segments below until.
	Truncate(ctx context.Context, until uint64) error
	// Sync makes all completed writes durable.
	Sync(ctx context.Context) error
	Close() error
}

// Segmented is implemented by devices that store the log in segments.
// A log page must not be larger than a segment.
type Segmented interface {
	SegmentBits() uint
}

var (
	// ErrDevice is matched by every *Error.
	ErrDevice = errors.New("device failure")

	// ErrChecksum is returned when a stored segment fails verification.
	ErrChecksum = errors.New("segment checksum mismatch")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("device closed")
)

// Error describes a failed device operation.
type Error struct {
	Op     string
	Offset uint64
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %s at %d: %v", e.Op, e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every device error match ErrDevice.
func (e *Error) Is(target error) bool { return target == ErrDevice }

func wrap(op string, off uint64, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Op: op, Offset: off, Err: err}
}

// span visits the per-segment pieces of [off, off+n).
func span(segmentBits uint, off uint64, n int, fn func(seg uint64, segOff int, lo, hi int) error) error {
	segSize := uint64(1) << segmentBits
	done := 0
	for done < n {
		addr := off + uint64(done)
		seg := addr >> segmentBits
		segOff := int(addr & (segSize - 1))
		chunk := min(n-done, int(segSize)-segOff)
		if err := fn(seg, segOff, done, done+chunk); err != nil {
			return err
		}
		done += chunk
	}
	return nil
}
