package minio

import (
	"context"
	"io"
	"testing"

	"github.com/hupe1980/latchkv/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	const bucket = "test-latchkv"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "segments/0", data))

	blob, err := store.Open(ctx, "segments/0")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(buf[:n]))

	n, err = blob.ReadAt(ctx, make([]byte, 10), 12)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 5, n)

	names, err := store.List(ctx, "segments/")
	require.NoError(t, err)
	assert.Contains(t, names, "segments/0")

	require.NoError(t, store.Delete(ctx, "segments/0"))
	_, err = store.Open(ctx, "segments/0")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "segments/0"))
}

func TestStore_Key(t *testing.T) {
	assert.Equal(t, "kv/a", NewStore(nil, "b", "kv/").key("a"))
	assert.Equal(t, "a", NewStore(nil, "b", "").key("a"))
}
