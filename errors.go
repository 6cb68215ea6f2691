package latchkv

import (
	"errors"
	"fmt"

	"github.com/hupe1980/latchkv/device"
	"github.com/hupe1980/latchkv/internal/checkpoint"
	"github.com/hupe1980/latchkv/internal/hlog"
	"github.com/hupe1980/latchkv/internal/resource"
)

var (
	// ErrClosed is returned by operations on a closed store or session.
	ErrClosed = errors.New("store closed")

	// ErrInvalidArgument is returned for keys, values or options the store
	// cannot represent.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCorrupt is returned when the log or a checkpoint holds data that
	// cannot be decoded.
	ErrCorrupt = errors.New("corrupt data")

	// ErrMemoryLimitExceeded is returned when the log cannot get memory for a
	// new page.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

	// ErrDevice matches every storage device failure.
	ErrDevice = device.ErrDevice

	// ErrNoCheckpoint is returned by LatestCheckpoint when none was committed.
	ErrNoCheckpoint = checkpoint.ErrNotFound
)

// DeviceError describes a failed device operation. It matches ErrDevice.
type DeviceError = device.Error

// ErrIncompatibleCheckpoint indicates a checkpoint taken with a different
// log geometry or record shape than the store being opened.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrIncompatibleCheckpoint struct {
	Field string
	Want  any
	Got   any
	cause error
}

func (e *ErrIncompatibleCheckpoint) Error() string {
	return fmt.Sprintf("incompatible checkpoint: %s is %v, store uses %v", e.Field, e.Got, e.Want)
}

func (e *ErrIncompatibleCheckpoint) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrClosed), errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrCorrupt):
		return err
	case errors.Is(err, hlog.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, hlog.ErrCorrupt), errors.Is(err, checkpoint.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	case errors.Is(err, hlog.ErrRecordTooLarge), errors.Is(err, hlog.ErrInvalidAddress):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return err
}
