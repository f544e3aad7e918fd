package fsimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitmapSetGet(t *testing.T) {
	b := NewBitmap(20)

	for i := uint32(0); i < 20; i++ {
		assert.False(t, b.Get(i))
	}

	b.Set(0, true)
	b.Set(7, true)
	b.Set(8, true)
	b.Set(19, true)

	assert.True(t, b.Get(0))
	assert.True(t, b.Get(7))
	assert.True(t, b.Get(8))
	assert.True(t, b.Get(19))
	assert.False(t, b.Get(1))
	assert.False(t, b.Get(9))

	b.Set(7, false)
	assert.False(t, b.Get(7))
}

func TestBitmapLSBFirst(t *testing.T) {
	b := NewBitmap(16)
	b.Set(0, true)
	assert.Equal(t, []byte{0x01, 0x00}, b.Bytes())

	b.Set(3, true)
	assert.Equal(t, []byte{0x09, 0x00}, b.Bytes())

	b.Set(8, true)
	assert.Equal(t, []byte{0x09, 0x01}, b.Bytes())
}

func TestBitmapFindFirstFree(t *testing.T) {
	b := NewBitmap(4)

	i, ok := b.FindFirstFree()
	require.True(t, ok)
	assert.Equal(t, uint32(0), i)

	b.Set(0, true)
	b.Set(1, true)
	i, ok = b.FindFirstFree()
	require.True(t, ok)
	assert.Equal(t, uint32(2), i)

	b.Set(2, true)
	b.Set(3, true)
	_, ok = b.FindFirstFree()
	assert.False(t, ok)
}

func TestBitmapFreeCount(t *testing.T) {
	b := NewBitmap(10)
	assert.Equal(t, uint32(10), b.FreeCount())

	b.Set(2, true)
	b.Set(9, true)
	assert.Equal(t, uint32(8), b.FreeCount())
}

func TestBitmapLoadRoundTrip(t *testing.T) {
	b := NewBitmap(12)
	b.Set(1, true)
	b.Set(11, true)

	loaded := LoadBitmap(b.Bytes(), 12)
	assert.Equal(t, b.Bytes(), loaded.Bytes())
	assert.True(t, loaded.Get(1))
	assert.True(t, loaded.Get(11))
	assert.Equal(t, uint32(10), loaded.FreeCount())
}

func TestBitmapByteSizing(t *testing.T) {
	assert.Len(t, NewBitmap(1).Bytes(), 1)
	assert.Len(t, NewBitmap(8).Bytes(), 1)
	assert.Len(t, NewBitmap(9).Bytes(), 2)
	assert.Len(t, NewBitmap(256).Bytes(), 32)
}
