package latchkv

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/latchkv/internal/record"
)

// rmw applies the input to the newest value of the key.
//
//	mutable record, current version   InPlaceUpdater under the exclusive lock
//	mutable record, otherwise         seal it, then copy update
//	fuzzy region                      pending retry
//	read-only memory                  copy update
//	device                            pending I/O, then copy update
//	absent                            InitialUpdater
func (s *Store) rmw(op *operation) (Status, error) {
	if !s.keyFits(op.key) {
		return StatusError, fmt.Errorf("%w: key of %d bytes does not fit the record shape", ErrInvalidArgument, len(op.key))
	}
	for {
		head := s.index.Head(op.hash)
		addr, rec := s.trace(op.key, head)

		var (
			st   Status
			done bool
			err  error
		)
		switch {
		case addr == 0:
			st, done, err = s.createUpdated(op, head, nil, false)
		case rec == nil:
			op.retry, op.addr, op.head = false, addr, head
			return StatusPending, nil
		case addr >= s.log.ReadOnlyAddress():
			st, done, err = s.rmwMutable(op, head, addr)
		case addr >= s.log.SafeReadOnlyAddress():
			// The record just turned read-only and may still see an
			// in-place writer finishing.
			op.retry = true
			return StatusPending, nil
		default:
			h := record.WordAt(rec).Load()
			st, done, err = s.createUpdated(op, head, s.shape.Value(rec), !h.Tombstone())
		}
		if done {
			return st, err
		}
	}
}

func (s *Store) rmwMutable(op *operation, head, addr uint64) (Status, bool, error) {
	g, rec, ok := s.log.EnterMutable(addr)
	if !ok {
		return 0, false, nil
	}
	w := record.WordAt(rec)
	if !w.TryLockExclusive(s.opts.spinBudget) {
		g.Release()
		op.retry = true
		return StatusPending, true, nil
	}

	h := w.Load()
	value := s.shape.Value(rec)
	if !h.Sealed() && !h.Tombstone() && h.Version() == s.version.CurrentShort() &&
		s.fns.InPlaceUpdater(op.key, op.input, value) {
		w.SetDirty(true)
		w.UnlockExclusive()
		g.Release()
		s.metrics.RecordUpdate(OpRMW, true)
		return StatusOK, true, nil
	}

	// Seal the source so that no in-place writer changes it behind the copy.
	w.SetSealed(true)
	w.UnlockExclusive()
	g.Release()
	return s.createUpdated(op, head, value, !h.Tombstone())
}

// createUpdated appends the result of the RMW in front of head. It reports
// done=false when the bucket head moved and the operation must start over.
func (s *Store) createUpdated(op *operation, head uint64, old []byte, exists bool) (Status, bool, error) {
	var n int
	if exists {
		n = s.fns.CopyValueSize(op.key, op.input, old)
	} else {
		n = s.fns.InitialValueSize(op.key, op.input)
	}
	if n < 0 {
		return StatusError, true, fmt.Errorf("%w: negative value size %d", ErrInvalidArgument, n)
	}
	if err := s.checkKey(op.key, n); err != nil {
		return StatusError, true, err
	}

	ok, err := s.appendRecord(op.hash, head, op.key, n, false, func(v []byte) {
		if exists {
			s.fns.CopyUpdater(op.key, op.input, old, v)
		} else {
			s.fns.InitialUpdater(op.key, op.input, v)
		}
	})
	if err != nil {
		return StatusError, true, translateError(err)
	}
	if !ok {
		return 0, false, nil
	}
	s.metrics.RecordUpdate(OpRMW, false)
	return StatusOK, true, nil
}

// continueRMW inspects a record fetched from the device. The copy update is
// only valid while the bucket head is the one the walk started from.
func (s *Store) continueRMW(op *operation) (Status, error) {
	h := record.Decode(op.rec)
	if h.Valid() && bytes.Equal(s.shape.Key(op.rec), op.key) {
		if s.index.Head(op.hash) != op.head {
			return s.rmw(op)
		}
		st, done, err := s.createUpdated(op, op.head, s.shape.Value(op.rec), !h.Tombstone())
		if !done {
			return s.rmw(op)
		}
		return st, err
	}

	addr, rec := s.trace(op.key, h.PreviousAddress())
	switch {
	case rec != nil || s.index.Head(op.hash) != op.head:
		return s.rmw(op)
	case addr == 0:
		st, done, err := s.createUpdated(op, op.head, nil, false)
		if !done {
			return s.rmw(op)
		}
		return st, err
	default:
		op.addr = addr
		return StatusPending, nil
	}
}
