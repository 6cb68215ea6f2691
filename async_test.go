package latchkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Wait(t *testing.T) {
	s := openSpill(t, WithFunctions(AddFunctions{}))
	sess := s.NewSession()
	load(t, sess, 2000)

	read := sess.ReadAsync(key(23), nil, nil)
	require.Equal(t, StatusPending, read.Status())
	st, err := read.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, StatusOK, read.Status())
	assert.Equal(t, uint64(23), Uint64(read.Output().Value))

	rmw := sess.RMWAsync(key(10), PutUint64(5), nil)
	st, err = rmw.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)

	up := sess.UpsertAsync(key(11), PutUint64(111), nil)
	assert.Equal(t, StatusOK, up.Status())
	select {
	case <-up.Ready():
	default:
		t.Fatal("finished token must be ready")
	}

	del := sess.DeleteAsync(key(12), nil)
	_, err = del.Wait(t.Context())
	require.NoError(t, err)

	for k, want := range map[uint64]uint64{10: 15, 11: 111} {
		st, v := readValue(t, sess, k)
		assert.Equal(t, StatusOK, st)
		assert.Equal(t, want, v)
	}
	st, _ = readValue(t, sess, 12)
	assert.Equal(t, StatusNotFound, st)
	assert.Equal(t, 0, sess.PendingCount(), "tokens are not session work")
}

func TestToken_CompleteLoop(t *testing.T) {
	s := openSpill(t)
	sess := s.NewSession()
	load(t, sess, 2000)

	tok := sess.ReadAsync(key(99999), nil, nil)
	steps := 0
	for tok.Status() == StatusPending {
		<-tok.Ready()
		_, err := tok.Complete(t.Context())
		require.NoError(t, err)
		steps++
	}
	assert.Positive(t, steps)
	assert.Equal(t, StatusNotFound, tok.Status())
	assert.NoError(t, tok.Err())
}

func TestToken_ContextCancel(t *testing.T) {
	s := openSpill(t, WithIOWorkers(1))
	sess := s.NewSession()
	load(t, sess, 2000)

	tok := sess.ReadAsync(key(1), nil, nil)
	require.Equal(t, StatusPending, tok.Status())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	select {
	case <-tok.Ready():
		t.Skip("read finished before the cancelled wait")
	default:
	}
	st, err := tok.Complete(ctx)
	assert.Equal(t, StatusPending, st)
	assert.ErrorIs(t, err, context.Canceled)

	st, err = tok.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, uint64(1), Uint64(tok.Output().Value))
}
