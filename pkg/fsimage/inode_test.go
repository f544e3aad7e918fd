package fsimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestINodeNew(t *testing.T) {
	n := NewINode(3, true)

	assert.Equal(t, uint32(3), n.ID)
	assert.Equal(t, uint32(1), n.Links)
	assert.Equal(t, uint32(0), n.Size)
	assert.True(t, n.IsDir())
	for _, link := range n.Direct {
		assert.Equal(t, uint32(UnusedLink), link)
	}
	assert.Equal(t, uint32(UnusedLink), n.Indirect1)
	assert.Equal(t, uint32(UnusedLink), n.Indirect2)
}

func TestINodeRoundTrip(t *testing.T) {
	n := NewINode(42, false)
	n.Links = 2
	n.Size = 5000
	require.NoError(t, n.AddDirectLink(10))
	require.NoError(t, n.AddDirectLink(11))
	require.NoError(t, n.AddIndirect1(12))

	data := n.Bytes()
	require.Len(t, data, INodeSize)

	decoded, err := INodeFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, n, decoded)
}

func TestINodeLayout(t *testing.T) {
	n := NewINode(1, true)
	data := n.Bytes()

	assert.Equal(t, []byte{1, 0, 0, 0}, data[0:4])
	// Unused links serialize as the sentinel.
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, data[12:16])
	assert.Equal(t, byte(1), data[40])
}

func TestINodeInvalidDirByte(t *testing.T) {
	data := NewINode(0, false).Bytes()
	data[40] = 2
	_, err := INodeFromBytes(data)
	assert.ErrorIs(t, err, ErrInvalidINode)
}

func TestINodeWrongSize(t *testing.T) {
	_, err := INodeFromBytes(make([]byte, INodeSize-1))
	assert.ErrorIs(t, err, ErrInvalidINode)
}

func TestINodeDirectLinks(t *testing.T) {
	n := NewINode(0, false)

	for i := uint32(0); i < NumDirectLinks; i++ {
		require.NoError(t, n.AddDirectLink(100+i))
		assert.Equal(t, 100+i, n.Direct[i])
	}
	assert.Error(t, n.AddDirectLink(200))

	require.NoError(t, n.RemoveDirectLink(102))
	assert.Equal(t, uint32(UnusedLink), n.Direct[2])
	assert.Error(t, n.RemoveDirectLink(102))

	// Freed slot is reused first.
	require.NoError(t, n.AddDirectLink(300))
	assert.Equal(t, uint32(300), n.Direct[2])
}

func TestINodeIndirectLinks(t *testing.T) {
	n := NewINode(0, false)

	require.NoError(t, n.AddIndirect1(5))
	assert.Error(t, n.AddIndirect1(6))
	n.RemoveIndirect1()
	require.NoError(t, n.AddIndirect1(6))

	require.NoError(t, n.AddIndirect2(7))
	assert.Error(t, n.AddIndirect2(8))
}

func TestINodeLinkCount(t *testing.T) {
	n := NewINode(0, false)
	n.AddLink()
	assert.Equal(t, uint32(2), n.Links)

	assert.False(t, n.RemoveLink())
	assert.True(t, n.RemoveLink())
	assert.Equal(t, uint32(0), n.Links)
}

func TestINodeSize(t *testing.T) {
	n := NewINode(0, false)
	n.AddSize(100)
	assert.Equal(t, uint32(100), n.Size)

	assert.Error(t, n.RemoveSize(101))
	require.NoError(t, n.RemoveSize(100))
	assert.Equal(t, uint32(0), n.Size)
}
