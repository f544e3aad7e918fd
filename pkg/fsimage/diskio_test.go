package fsimage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDiskReadMissing(t *testing.T) {
	_, err := OpenDisk(filepath.Join(t.TempDir(), "missing.img"), ModeRead)
	assert.ErrorIs(t, err, ErrFileDoesNotExist)
}

func TestOpenDiskReadWriteCreates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.img")

	d, err := OpenDisk(path, ModeReadWrite)
	require.NoError(t, err)
	defer d.Close()

	assert.True(t, d.IsOpen())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDiskReadWrite(t *testing.T) {
	d, err := OpenDisk(filepath.Join(t.TempDir(), "rw.img"), ModeReadWrite)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Write(10, []byte("hello")))

	data, err := d.Read(10, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	// Bytes between offset 0 and the write read back as zeros.
	data, err = d.Read(0, 10)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 10), data)
}

func TestDiskShortRead(t *testing.T) {
	d, err := OpenDisk(filepath.Join(t.TempDir(), "short.img"), ModeReadWrite)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Write(0, []byte("abc")))

	data, err := d.Read(0, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	data, err = d.Read(50, 10)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestDiskReadOnlyMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.img")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	d, err := OpenDisk(path, ModeRead)
	require.NoError(t, err)
	defer d.Close()

	data, err := d.Read(0, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)

	assert.ErrorIs(t, d.Write(0, []byte("x")), ErrFileReadOnly)
	assert.ErrorIs(t, d.Resize(100), ErrFileReadOnly)
}

func TestDiskResizeZeroFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resize.img")

	d, err := OpenDisk(path, ModeReadWrite)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Write(0, []byte("leftover data")))
	require.NoError(t, d.Resize(64))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(64), info.Size())

	// The whole new length is zeroed, not just the grown region.
	data, err := d.Read(0, 64)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 64), data)
}

func TestDiskResizeShrinks(t *testing.T) {
	d, err := OpenDisk(filepath.Join(t.TempDir(), "shrink.img"), ModeReadWrite)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Resize(1024))
	require.NoError(t, d.Resize(16))

	data, err := d.Read(0, 1024)
	require.NoError(t, err)
	assert.Len(t, data, 16)
}

func TestDiskClosed(t *testing.T) {
	d, err := OpenDisk(filepath.Join(t.TempDir(), "closed.img"), ModeReadWrite)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.False(t, d.IsOpen())
	_, err = d.Read(0, 1)
	assert.ErrorIs(t, err, ErrFileNotOpen)
	assert.ErrorIs(t, d.Write(0, []byte("x")), ErrFileNotOpen)
	assert.ErrorIs(t, d.Flush(), ErrFileNotOpen)

	// Double close is harmless.
	assert.NoError(t, d.Close())
}
