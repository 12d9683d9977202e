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

	dir := filepath.Join(tmp, "frames")
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "x.tmp")
	f, err := lfs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	assert.Equal(t, path, f.Name())

	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	_, err = lfs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	assert.ErrorIs(t, err, os.ErrExist)

	final := filepath.Join(dir, "x")
	require.NoError(t, lfs.Rename(path, final))
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, lfs.Remove(final))
	_, err = os.Stat(final)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFaultyFS(t *testing.T) {
	tmp := t.TempDir()
	custom := errors.New("disk full")

	ffs := NewFaultyFS(nil)
	ffs.AddRule("limited", Fault{FailAfterBytes: 4, Err: custom})
	ffs.AddRule("nosync", Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("noclose", Fault{FailAfterBytes: -1, FailOnClose: true})
	ffs.AddRule("norename", Fault{FailAfterBytes: -1, FailOnRename: true})

	open := func(name string) File {
		f, err := ffs.OpenFile(filepath.Join(tmp, name), os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		return f
	}

	t.Run("FailAfterBytes", func(t *testing.T) {
		f := open("limited")
		defer f.Close()

		_, err := f.Write([]byte("abc"))
		require.NoError(t, err)
		_, err = f.Write([]byte("de"))
		assert.ErrorIs(t, err, custom)
	})

	t.Run("FailOnSync", func(t *testing.T) {
		f := open("nosync")
		defer f.Close()
		assert.ErrorIs(t, f.Sync(), ErrInjected)
	})

	t.Run("FailOnClose", func(t *testing.T) {
		f := open("noclose")
		assert.ErrorIs(t, f.Close(), ErrInjected)
	})

	t.Run("FailOnRename", func(t *testing.T) {
		f := open("norename")
		require.NoError(t, f.Close())
		err := ffs.Rename(filepath.Join(tmp, "norename"), filepath.Join(tmp, "renamed"))
		assert.ErrorIs(t, err, ErrInjected)
	})

	t.Run("NoRule", func(t *testing.T) {
		f := open("plain")
		_, err := f.Write(make([]byte, 1024))
		require.NoError(t, err)
		require.NoError(t, f.Sync())
		require.NoError(t, f.Close())
	})
}
