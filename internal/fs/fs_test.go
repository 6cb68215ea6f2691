package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "subdir")
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	fpath := filepath.Join(dir, "test.txt")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("world"), 5)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	buf := make([]byte, 10)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "helloworld", string(buf))
	require.NoError(t, f.Close())

	entries, err := lfs.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, lfs.Rename(fpath, fpath+".bak"))
	_, err = lfs.Stat(fpath)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, lfs.Remove(fpath+".bak"))
}

func TestFaultyFS_WriteLimit(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("seg", Fault{FailAfterBytes: 8})

	dir := t.TempDir()
	f, err := ffs.OpenFile(filepath.Join(dir, "seg.0"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteAt(make([]byte, 8), 0)
	require.NoError(t, err)
	_, err = f.WriteAt(make([]byte, 1), 8)
	assert.ErrorIs(t, err, ErrInjected)

	other, err := ffs.OpenFile(filepath.Join(dir, "other"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer other.Close()
	_, err = other.Write(make([]byte, 64))
	assert.NoError(t, err, "rule does not match")
}

func TestFaultyFS_ReadSyncClose(t *testing.T) {
	boom := errors.New("boom")
	ffs := NewFaultyFS(LocalFS{})

	f, err := ffs.OpenFile(filepath.Join(t.TempDir(), "data"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)

	// Rules added after open apply to the open file.
	ffs.AddRule("data", Fault{FailAfterBytes: -1, FailOnRead: true, FailOnSync: true, FailOnClose: true, Err: boom})

	_, err = f.ReadAt(make([]byte, 3), 0)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, f.Sync(), boom)
	assert.ErrorIs(t, f.Close(), boom)

	ffs.ClearRules()
}
