package latchkv

import (
	"context"

	"github.com/hupe1980/latchkv/internal/record"
	"github.com/hupe1980/latchkv/internal/version"
)

// LogRecord is a record visited by ScanLog. Key and Value are only valid
// during the callback.
type LogRecord struct {
	Address uint64
	Key     []byte
	Value   []byte
	Deleted bool
	// Version is the checkpoint version that wrote the record, expanded
	// against the current one. Records more than 31 versions old alias.
	Version uint64
}

// ScanLog visits the live records of [from, until) in address order; from
// is 0 or the address of a record. Only
// the read-only part of the log is visited; older versions of a key are
// reported too.
func (s *Store) ScanLog(ctx context.Context, from, until uint64, fn func(LogRecord) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	current := s.version.Current()
	err := s.log.Scan(ctx, from, until, func(addr uint64, rec []byte) error {
		h := record.Decode(rec)
		if h.Invalid() {
			return nil
		}
		return fn(LogRecord{
			Address: addr,
			Key:     s.shape.Key(rec),
			Value:   s.shape.Value(rec),
			Deleted: h.Tombstone(),
			Version: version.Expand(h.Version(), current),
		})
	})
	return translateError(err)
}
