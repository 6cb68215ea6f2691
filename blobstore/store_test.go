package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s BlobStore) {
	ctx := t.Context()

	_, err := s.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "segments/0001", []byte("hello")))
	require.NoError(t, s.Put(ctx, "segments/0000", []byte("zero")))
	require.NoError(t, s.Put(ctx, "CURRENT", []byte("checkpoints/a.json")))

	data, err := ReadAll(ctx, s, "segments/0001")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Put replaces.
	require.NoError(t, s.Put(ctx, "segments/0001", []byte("hello, world")))
	b, err := s.Open(ctx, "segments/0001")
	require.NoError(t, err)
	assert.Equal(t, int64(12), b.Size())
	buf := make([]byte, 5)
	n, err := b.ReadAt(ctx, buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))
	require.NoError(t, b.Close())

	names, err := s.List(ctx, "segments/")
	require.NoError(t, err)
	assert.Equal(t, []string{"segments/0000", "segments/0001"}, names)

	require.NoError(t, s.Delete(ctx, "segments/0000"))
	require.NoError(t, s.Delete(ctx, "segments/0000"), "deleting twice is fine")
	names, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CURRENT", "segments/0001"}, names)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	testStore(t, s)
	assert.Equal(t, 2, s.Len())

	// Callers may reuse the buffer they passed to Put.
	buf := []byte("abc")
	require.NoError(t, s.Put(t.Context(), "x", buf))
	buf[0] = 'z'
	data, err := ReadAll(t.Context(), s, "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, s)
}
