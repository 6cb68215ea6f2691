package latchkv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/latchkv/internal/hash"
	"github.com/hupe1980/latchkv/internal/record"
)

// operation carries a request through its synchronous attempt and, when it
// goes pending, through every resumption.
type operation struct {
	kind    OpKind
	key     []byte
	hash    uint64
	input   []byte
	value   []byte
	out     *Output
	userCtx any
	start   time.Time

	// Continuation. With retry set the operation restarts from the bucket
	// head; otherwise rec holds the device record at addr.
	retry bool
	addr  uint64
	head  uint64 // bucket head the device walk started from
	rec   []byte
	err   error
	ready chan struct{}
	wake  chan<- struct{}
}

func newOperation(kind OpKind, key, input, value []byte, out *Output, userCtx any) *operation {
	return &operation{
		kind:    kind,
		key:     key,
		hash:    hash.Key(key),
		input:   input,
		value:   value,
		out:     out,
		userCtx: userCtx,
		start:   time.Now(),
	}
}

// detach copies the caller's buffers; a pending operation outlives the call.
func (op *operation) detach() {
	op.key = bytes.Clone(op.key)
	op.input = bytes.Clone(op.input)
	op.value = bytes.Clone(op.value)
}

// enter registers a running operation. Close waits for every registered
// operation before it flushes the tail.
func (s *Store) enter() bool {
	s.ioMu.RLock()
	defer s.ioMu.RUnlock()
	if s.closed.Load() {
		return false
	}
	s.ops.Add(1)
	return true
}

func (s *Store) execute(op *operation) (Status, error) {
	if !s.enter() {
		return StatusError, ErrClosed
	}
	defer s.ops.Done()
	return s.dispatch(op)
}

func (s *Store) dispatch(op *operation) (Status, error) {
	switch op.kind {
	case OpRead:
		return s.read(op)
	case OpUpsert:
		return s.upsert(op)
	case OpRMW:
		return s.rmw(op)
	case OpDelete:
		return s.delete(op)
	default:
		return StatusError, fmt.Errorf("%w: operation %v", ErrInvalidArgument, op.kind)
	}
}

// resume continues an operation whose ready channel is closed.
func (s *Store) resume(op *operation) (Status, error) {
	if !s.enter() {
		return StatusError, ErrClosed
	}
	defer s.ops.Done()

	// A truncation may have removed the record meanwhile; start over.
	if op.retry || op.addr < s.log.BeginAddress() {
		return s.dispatch(op)
	}
	if op.err != nil {
		return StatusError, s.ioError(op.err)
	}
	switch op.kind {
	case OpRead:
		return s.continueRead(op)
	case OpRMW:
		return s.continueRMW(op)
	case OpDelete:
		return s.continueDelete(op)
	default:
		return s.dispatch(op)
	}
}

func (s *Store) ioError(err error) error {
	if errors.Is(err, context.Canceled) && s.closed.Load() {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return translateError(err)
}

// issue starts the wait of a pending operation. Contention retries are ready
// at once; device reads complete on an I/O worker.
func (s *Store) issue(op *operation) {
	s.metrics.RecordPending(op.kind)
	op.ready = make(chan struct{})
	op.rec, op.err = nil, nil

	if op.retry {
		s.signal(op)
		return
	}

	s.ioMu.RLock()
	if s.closed.Load() {
		s.ioMu.RUnlock()
		op.err = ErrClosed
		s.signal(op)
		return
	}
	s.io.Add(1)
	s.ioMu.RUnlock()

	s.log.ReadAsync(s.ctx, op.addr, func(rec []byte, err error) {
		defer s.io.Done()
		op.rec, op.err = rec, err
		s.signal(op)
	})
}

func (s *Store) signal(op *operation) {
	close(op.ready)
	if op.wake != nil {
		select {
		case op.wake <- struct{}{}:
		default:
		}
	}
}

// finish records the final status of an operation.
func (s *Store) finish(op *operation, st Status) {
	if op.out != nil {
		op.out.Status = st
	}
	s.metrics.RecordOperation(op.kind, st, time.Since(op.start))
}

// trace walks the hash chain from addr while it stays in memory. It returns
// the newest valid record of key, the first address that is only on the
// device (with a nil record), or 0 when the chain ends.
func (s *Store) trace(key []byte, addr uint64) (uint64, []byte) {
	begin := s.log.BeginAddress()
	for addr >= begin {
		rec := s.log.Get(addr)
		if rec == nil {
			return addr, nil
		}
		h := record.WordAt(rec).Load()
		if h.Valid() && bytes.Equal(s.shape.Key(rec), key) {
			return addr, rec
		}
		addr = h.PreviousAddress()
	}
	return 0, nil
}

// appendRecord adds a record at the tail and links it in front of head. It
// returns false, leaving an abandoned record behind, when the bucket head
// moved. head must be read before the call so that chains stay ordered by
// address.
func (s *Store) appendRecord(h uint64, head uint64, key []byte, valueLen int, tombstone bool, fill func(value []byte)) (bool, error) {
	slot, err := s.log.Allocate(s.shape.RecordSize(len(key), valueLen))
	if err != nil {
		return false, err
	}
	// The pin keeps the flusher away until the header is final.
	defer slot.Release()

	s.shape.Init(slot.Rec, key, valueLen)
	if fill != nil {
		fill(s.shape.Value(slot.Rec))
	}

	w := record.WordAt(slot.Rec)
	w.Publish(record.WriteInfo(s.version.Current(), tombstone, false, head))
	if !s.index.CompareAndSwap(h, head, slot.Addr) {
		w.Abandon()
		return false, nil
	}
	return true, nil
}

// updateInPlace runs fn on the record at addr under its exclusive lock. It
// returns false when the record left the mutable region, is sealed or
// belongs to an earlier version, when the lock is contended, or when fn
// declines.
func (s *Store) updateInPlace(addr uint64, fn func(h record.Header, w record.Word, rec []byte) bool) bool {
	g, rec, ok := s.log.EnterMutable(addr)
	if !ok {
		return false
	}
	defer g.Release()

	w := record.WordAt(rec)
	if !w.TryLockExclusive(s.opts.spinBudget) {
		return false
	}
	defer w.UnlockExclusive()

	h := w.Load()
	if h.Sealed() || h.Version() != s.version.CurrentShort() {
		return false
	}
	if !fn(h, w, rec) {
		return false
	}
	w.SetDirty(true)
	return true
}

func (s *Store) checkKey(key []byte, valueLen int) error {
	if !s.shape.Fits(len(key), valueLen) {
		return fmt.Errorf("%w: key of %d bytes and value of %d bytes do not fit the record shape", ErrInvalidArgument, len(key), valueLen)
	}
	return nil
}
