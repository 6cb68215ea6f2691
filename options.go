package latchkv

import (
	"fmt"

	"github.com/hupe1980/latchkv/blobstore"
	"github.com/hupe1980/latchkv/device"
	"github.com/hupe1980/latchkv/internal/index"
	"github.com/hupe1980/latchkv/internal/record"
	"github.com/hupe1980/latchkv/internal/resource"
)

// Shape describes the record layout of a store.
type Shape = record.Shape

// FixedShape stores keys and values of exactly keySize and valueSize bytes.
func FixedShape(keySize, valueSize int) Shape {
	return record.Fixed{KeySize: keySize, ValueSize: valueSize}
}

// VariableShape stores length-prefixed keys and values.
func VariableShape() Shape { return record.Variable{} }

// CheckpointMode selects how checkpoints capture the log.
type CheckpointMode uint8

const (
	// CheckpointFoldOver makes the whole log read-only at the checkpoint
	// and flushes it to the device.
	CheckpointFoldOver CheckpointMode = iota
)

const (
	DefaultMemorySizeBits  = 24
	DefaultPageSizeBits    = 20
	DefaultMutableFraction = 0.9
	DefaultIndexBits       = 16
	DefaultLockSpinBudget  = 1024
)

type options struct {
	device          device.Device
	objectStore     blobstore.BlobStore
	memorySizeBits  uint
	pageSizeBits    uint
	mutableFraction float64
	indexBits       uint
	shape           Shape
	functions       Functions
	checkpointMode  CheckpointMode
	spinBudget      int
	resource        resource.Config
	logger          *Logger
	metrics         MetricsObserver
	recover         bool
}

func defaultOptions() options {
	return options{
		memorySizeBits:  DefaultMemorySizeBits,
		pageSizeBits:    DefaultPageSizeBits,
		mutableFraction: DefaultMutableFraction,
		indexBits:       DefaultIndexBits,
		shape:           record.Fixed{KeySize: 8, ValueSize: 8},
		functions:       ReplaceFunctions{},
		checkpointMode:  CheckpointFoldOver,
		spinBudget:      DefaultLockSpinBudget,
		logger:          NoopLogger(),
		metrics:         NoopMetricsObserver{},
	}
}

func (o *options) validate() error {
	if o.pageSizeBits < 9 || o.pageSizeBits > 30 {
		return fmt.Errorf("%w: page size bits %d out of range [9, 30]", ErrInvalidArgument, o.pageSizeBits)
	}
	if o.memorySizeBits <= o.pageSizeBits || o.memorySizeBits > 40 {
		return fmt.Errorf("%w: memory size bits %d must be in (%d, 40]", ErrInvalidArgument, o.memorySizeBits, o.pageSizeBits)
	}
	if o.mutableFraction <= 0 || o.mutableFraction > 1 {
		return fmt.Errorf("%w: mutable fraction %v out of range (0, 1]", ErrInvalidArgument, o.mutableFraction)
	}
	if o.indexBits == 0 || o.indexBits > index.MaxBits {
		return fmt.Errorf("%w: index bits %d out of range [1, %d]", ErrInvalidArgument, o.indexBits, index.MaxBits)
	}
	if o.shape == nil {
		return fmt.Errorf("%w: nil shape", ErrInvalidArgument)
	}
	if f, ok := o.shape.(record.Fixed); ok && (f.KeySize <= 0 || f.ValueSize < 0) {
		return fmt.Errorf("%w: fixed shape %d/%d", ErrInvalidArgument, f.KeySize, f.ValueSize)
	}
	if o.shape.RecordSize(0, 0) > 1<<o.pageSizeBits {
		return fmt.Errorf("%w: records do not fit a page", ErrInvalidArgument)
	}
	if o.functions == nil {
		return fmt.Errorf("%w: nil functions", ErrInvalidArgument)
	}
	if o.checkpointMode != CheckpointFoldOver {
		return fmt.Errorf("%w: checkpoint mode %d", ErrInvalidArgument, o.checkpointMode)
	}
	if o.spinBudget < 1 {
		return fmt.Errorf("%w: lock spin budget %d", ErrInvalidArgument, o.spinBudget)
	}
	if o.resource.MemoryLimitBytes < 0 || o.resource.MaxIOWorkers < 0 || o.resource.IOLimitBytesPerSec < 0 {
		return fmt.Errorf("%w: negative resource limit", ErrInvalidArgument)
	}
	return nil
}

// Option configures a Store.
type Option func(*options)

// WithDevice sets the device that holds the on-disk part of the log.
// The store does not close a device passed here.
//
// Default: an in-memory BlobDevice.
func WithDevice(d device.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithObjectStore sets where checkpoint manifests are committed.
//
// Default: an in-memory store.
func WithObjectStore(s blobstore.BlobStore) Option {
	return func(o *options) {
		o.objectStore = s
	}
}

// WithMemorySizeBits sets the log2 of the in-memory part of the log.
func WithMemorySizeBits(n uint) Option {
	return func(o *options) {
		o.memorySizeBits = n
	}
}

// WithPageSizeBits sets the log2 of the log page size.
func WithPageSizeBits(n uint) Option {
	return func(o *options) {
		o.pageSizeBits = n
	}
}

// WithMutableFraction sets the share of in-memory pages that accept
// in-place updates.
func WithMutableFraction(f float64) Option {
	return func(o *options) {
		o.mutableFraction = f
	}
}

// WithIndexBits sets the log2 of the number of hash buckets.
func WithIndexBits(n uint) Option {
	return func(o *options) {
		o.indexBits = n
	}
}

// WithShape sets the record layout.
//
// Example:
//
//	store, _ := latchkv.Open(ctx, latchkv.WithShape(latchkv.VariableShape()))
func WithShape(s Shape) Option {
	return func(o *options) {
		o.shape = s
	}
}

// WithFunctions sets the read and update callbacks.
func WithFunctions(f Functions) Option {
	return func(o *options) {
		o.functions = f
	}
}

// WithCheckpointMode sets the checkpoint mode.
func WithCheckpointMode(m CheckpointMode) Option {
	return func(o *options) {
		o.checkpointMode = m
	}
}

// WithLockSpinBudget bounds the attempts of a record lock before the
// operation falls back or goes pending.
func WithLockSpinBudget(n int) Option {
	return func(o *options) {
		o.spinBudget = n
	}
}

// WithMemoryLimit caps the bytes of log pages held in memory. Allocations
// beyond it fail with ErrMemoryLimitExceeded.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.resource.MemoryLimitBytes = bytes
	}
}

// WithIOWorkers bounds concurrent device reads.
func WithIOWorkers(n int64) Option {
	return func(o *options) {
		o.resource.MaxIOWorkers = n
	}
}

// WithIOLimit throttles flush writes to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.resource.IOLimitBytesPerSec = bytesPerSec
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := latchkv.NewJSONLogger(slog.LevelInfo)
//	store, _ := latchkv.Open(ctx, latchkv.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsObserver configures a metrics observer.
// Pass nil to disable metrics.
func WithMetricsObserver(m MetricsObserver) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsObserver{}
		}
		o.metrics = m
	}
}

// WithRecover restores the store from the latest checkpoint of the object
// store. Without a checkpoint the store starts empty.
func WithRecover() Option {
	return func(o *options) {
		o.recover = true
	}
}
