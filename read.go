package latchkv

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/latchkv/internal/record"
)

func (s *Store) read(op *operation) (Status, error) {
	if !s.keyFits(op.key) {
		return StatusError, fmt.Errorf("%w: key of %d bytes does not fit the record shape", ErrInvalidArgument, len(op.key))
	}
	addr, rec := s.trace(op.key, s.index.Head(op.hash))
	return s.readAt(op, addr, rec)
}

// readAt finishes a read at the record trace returned.
func (s *Store) readAt(op *operation, addr uint64, rec []byte) (Status, error) {
	switch {
	case addr == 0:
		return StatusNotFound, nil
	case rec == nil:
		op.retry, op.addr = false, addr
		return StatusPending, nil
	case addr >= s.log.SafeReadOnlyAddress():
		// In-place writers may still be at work up to the safe read-only
		// address.
		w := record.WordAt(rec)
		if !w.TryLockShared(s.opts.spinBudget) {
			op.retry = true
			return StatusPending, nil
		}
		defer w.UnlockShared()
		return s.readValue(op, w.Load(), rec), nil
	default:
		return s.readValue(op, record.WordAt(rec).Load(), rec), nil
	}
}

func (s *Store) readValue(op *operation, h record.Header, rec []byte) Status {
	if h.Tombstone() {
		return StatusNotFound
	}
	s.fns.Reader(op.key, op.input, s.shape.Value(rec), op.out)
	return StatusOK
}

// continueRead inspects a record fetched from the device.
func (s *Store) continueRead(op *operation) (Status, error) {
	h := record.Decode(op.rec)
	if h.Valid() && bytes.Equal(s.shape.Key(op.rec), op.key) {
		return s.readValue(op, h, op.rec), nil
	}
	addr, rec := s.trace(op.key, h.PreviousAddress())
	return s.readAt(op, addr, rec)
}

func (s *Store) keyFits(key []byte) bool {
	if f, ok := s.shape.(record.Fixed); ok {
		return len(key) == f.KeySize
	}
	return s.shape.Fits(len(key), 0)
}
