package latchkv

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/latchkv/internal/record"
)

// delete sets the tombstone of a mutable record or appends a tombstone
// record. A key without a live record is left alone; when the chain leads
// to the device the record is fetched first to tell.
func (s *Store) delete(op *operation) (Status, error) {
	if !s.keyFits(op.key) {
		return StatusError, fmt.Errorf("%w: key of %d bytes does not fit the record shape", ErrInvalidArgument, len(op.key))
	}
	for {
		head := s.index.Head(op.hash)
		addr, rec := s.trace(op.key, head)
		switch {
		case addr == 0:
			return StatusOK, nil
		case rec == nil:
			op.retry, op.addr, op.head = false, addr, head
			return StatusPending, nil
		case record.WordAt(rec).Load().Tombstone():
			return StatusOK, nil
		}

		if addr >= s.log.ReadOnlyAddress() && s.updateInPlace(addr, func(h record.Header, w record.Word, _ []byte) bool {
			if !h.Tombstone() {
				w.SetTombstone(true)
			}
			return true
		}) {
			s.metrics.RecordUpdate(OpDelete, true)
			return StatusOK, nil
		}

		if st, done, err := s.appendTombstone(op, head); done {
			return st, err
		}
	}
}

// continueDelete inspects a record fetched from the device.
func (s *Store) continueDelete(op *operation) (Status, error) {
	h := record.Decode(op.rec)
	if h.Valid() && bytes.Equal(s.shape.Key(op.rec), op.key) {
		if h.Tombstone() {
			return StatusOK, nil
		}
		if s.index.Head(op.hash) != op.head {
			return s.delete(op)
		}
		st, done, err := s.appendTombstone(op, op.head)
		if !done {
			return s.delete(op)
		}
		return st, err
	}

	addr, rec := s.trace(op.key, h.PreviousAddress())
	switch {
	case rec != nil || s.index.Head(op.hash) != op.head:
		return s.delete(op)
	case addr == 0:
		return StatusOK, nil
	default:
		op.addr = addr
		return StatusPending, nil
	}
}

// appendTombstone links a tombstone record in front of head. It reports
// done=false when the bucket head moved.
func (s *Store) appendTombstone(op *operation, head uint64) (Status, bool, error) {
	ok, err := s.appendRecord(op.hash, head, op.key, s.tombstoneValueLen(), true, nil)
	if err != nil {
		return StatusError, true, translateError(err)
	}
	if !ok {
		return 0, false, nil
	}
	s.metrics.RecordUpdate(OpDelete, false)
	return StatusOK, true, nil
}

// tombstoneValueLen is the value length of an appended tombstone: the fixed
// value size, or none for variable records.
func (s *Store) tombstoneValueLen() int {
	if f, ok := s.shape.(record.Fixed); ok {
		return f.ValueSize
	}
	return 0
}
