package latchkv

import (
	"github.com/hupe1980/latchkv/internal/record"
)

// upsert overwrites the newest record of the key in place when it is mutable
// and otherwise appends. A contended lock also leads to an append: the new
// record supersedes whatever the lock holder writes.
func (s *Store) upsert(op *operation) (Status, error) {
	if err := s.checkKey(op.key, len(op.value)); err != nil {
		return StatusError, err
	}
	for {
		head := s.index.Head(op.hash)
		addr, rec := s.trace(op.key, head)
		if rec != nil && addr >= s.log.ReadOnlyAddress() {
			if s.updateInPlace(addr, func(h record.Header, _ record.Word, rec []byte) bool {
				v := s.shape.Value(rec)
				if h.Tombstone() || len(v) != len(op.value) {
					return false
				}
				copy(v, op.value)
				return true
			}) {
				s.metrics.RecordUpdate(OpUpsert, true)
				return StatusOK, nil
			}
		}

		ok, err := s.appendRecord(op.hash, head, op.key, len(op.value), false, func(v []byte) {
			copy(v, op.value)
		})
		if err != nil {
			return StatusError, translateError(err)
		}
		if ok {
			s.metrics.RecordUpdate(OpUpsert, false)
			return StatusOK, nil
		}
	}
}
