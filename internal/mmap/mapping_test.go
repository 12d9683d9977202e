package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.pmto")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestMapping_ReadAt(t *testing.T) {
	m, err := Open(writeFile(t, []byte("PMTO frame payload")))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 18, m.Size())
	assert.Equal(t, []byte("PMTO frame payload"), m.Bytes())

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "frame", string(buf))

	tail := make([]byte, 10)
	n, err = m.ReadAt(tail, 11)
	assert.Equal(t, 7, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "payload", string(tail[:n]))

	n, err = m.ReadAt(buf, 100)
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestMapping_Advise(t *testing.T) {
	m, err := Open(writeFile(t, make([]byte, 8192)))
	require.NoError(t, err)

	for _, p := range []AccessPattern{AccessDefault, AccessSequential, AccessRandom, AccessWillNeed, AccessDontNeed} {
		assert.NoError(t, m.Advise(p))
	}

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Advise(AccessSequential), ErrClosed)
}

func TestMapping_Empty(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Zero(t, m.Size())
	assert.NoError(t, m.Advise(AccessSequential))
}

func TestMapping_Close(t *testing.T) {
	m, err := Open(writeFile(t, []byte("data")))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
