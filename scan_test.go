package latchkv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ScanLog(t *testing.T) {
	s := openSpill(t)
	sess := s.NewSession()
	load(t, sess, 2000)
	_, err := sess.Delete(key(1999), nil)
	require.NoError(t, err)
	_, err = s.Checkpoint(t.Context())
	require.NoError(t, err)

	seen := make(map[uint64]int)
	deleted := 0
	var last uint64
	err = s.ScanLog(t.Context(), 0, s.Stats().TailAddress, func(r LogRecord) error {
		assert.Greater(t, r.Address, last)
		last = r.Address
		assert.Equal(t, uint64(0), r.Version)
		if r.Deleted {
			deleted++
			return nil
		}
		seen[Uint64(r.Key)]++
		assert.Equal(t, Uint64(r.Key), Uint64(r.Value))
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 1999, "the tombstone was set in place")
	assert.Equal(t, 1, deleted)

	// Written after the first checkpoint, so tagged with the next version.
	_, err = sess.Upsert(key(5000), PutUint64(5000), nil)
	require.NoError(t, err)
	_, err = s.Checkpoint(t.Context())
	require.NoError(t, err)
	var found bool
	err = s.ScanLog(t.Context(), last, s.Stats().TailAddress, func(r LogRecord) error {
		if Uint64(r.Key) == 5000 {
			found = true
			assert.Equal(t, uint64(1), r.Version)
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, found)

	stop := errors.New("stop")
	n := 0
	err = s.ScanLog(t.Context(), 0, s.Stats().TailAddress, func(LogRecord) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}
