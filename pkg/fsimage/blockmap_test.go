package fsimage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestFS returns a freshly formatted 1 MiB filesystem.
func newTestFS(t *testing.T) *Filesystem {
	t.Helper()

	fs, err := Open(filepath.Join(t.TempDir(), "test.img"))
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	require.NoError(t, fs.Format(1048576))
	return fs
}

func attachBlocks(t *testing.T, fs *Filesystem, node *INode, count int) []uint32 {
	t.Helper()

	var blocks []uint32
	for i := 0; i < count; i++ {
		b, err := fs.allocateBlock()
		require.NoError(t, err)
		require.NoError(t, fs.attachBlock(node, b))
		blocks = append(blocks, b)
	}
	return blocks
}

func TestAttachFillsDirectsFirst(t *testing.T) {
	fs := newTestFS(t)
	node, err := fs.allocateNode(false)
	require.NoError(t, err)

	blocks := attachBlocks(t, fs, node, NumDirectLinks)
	for i, b := range blocks {
		require.Equal(t, b, node.Direct[i])
	}
	require.Equal(t, uint32(UnusedLink), node.Indirect1)
}

func TestAttachSpillsToSingleIndirect(t *testing.T) {
	fs := newTestFS(t)
	node, err := fs.allocateNode(false)
	require.NoError(t, err)

	blocks := attachBlocks(t, fs, node, NumDirectLinks+2)

	require.NotEqual(t, uint32(UnusedLink), node.Indirect1)
	ids, err := fs.readBlockIDs(node.Indirect1)
	require.NoError(t, err)
	require.Equal(t, blocks[NumDirectLinks:], ids)
	require.Equal(t, uint32(UnusedLink), node.Indirect2)
}

func TestDetachDirectBlock(t *testing.T) {
	fs := newTestFS(t)
	node, err := fs.allocateNode(false)
	require.NoError(t, err)

	blocks := attachBlocks(t, fs, node, 3)
	require.NoError(t, fs.detachBlock(node, blocks[1]))

	require.Equal(t, uint32(UnusedLink), node.Direct[1])
	require.False(t, fs.BlockInUse(blocks[1]))
}

func TestDetachFreesEmptySingleIndirectTable(t *testing.T) {
	fs := newTestFS(t)
	node, err := fs.allocateNode(false)
	require.NoError(t, err)

	blocks := attachBlocks(t, fs, node, NumDirectLinks+1)
	table := node.Indirect1
	require.NotEqual(t, uint32(UnusedLink), table)

	require.NoError(t, fs.detachBlock(node, blocks[NumDirectLinks]))

	require.Equal(t, uint32(UnusedLink), node.Indirect1)
	require.False(t, fs.BlockInUse(table))
	require.False(t, fs.BlockInUse(blocks[NumDirectLinks]))
}

func TestDetachNotAttached(t *testing.T) {
	fs := newTestFS(t)
	node, err := fs.allocateNode(false)
	require.NoError(t, err)

	attachBlocks(t, fs, node, 1)
	err = fs.detachBlock(node, 999)
	require.ErrorIs(t, err, ErrBlockNotAttached)
}

func TestRemoveFromIDTableSwapsWithLast(t *testing.T) {
	fs := newTestFS(t)

	table, err := fs.allocateBlock()
	require.NoError(t, err)
	require.NoError(t, fs.fillBlock(table, 0xFF))

	for i, id := range []uint32{10, 20, 30} {
		offset := fs.blockOffset(table) + uint64(i)*idEntrySize
		require.NoError(t, fs.disk.Write(offset, WriteUint32(id)))
	}

	removed, err := fs.removeFromIDTable(table, 10)
	require.NoError(t, err)
	require.True(t, removed)

	ids, err := fs.readBlockIDs(table)
	require.NoError(t, err)
	require.Equal(t, []uint32{30, 20}, ids)

	removed, err = fs.removeFromIDTable(table, 99)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestAllBlockIDsIncludesTables(t *testing.T) {
	fs := newTestFS(t)
	node, err := fs.allocateNode(false)
	require.NoError(t, err)

	blocks := attachBlocks(t, fs, node, NumDirectLinks+2)

	all, err := fs.allBlockIDs(node)
	require.NoError(t, err)

	// Five directs, the indirect table, and its two contents.
	require.Len(t, all, NumDirectLinks+3)
	require.Contains(t, all, node.Indirect1)
	for _, b := range blocks {
		require.Contains(t, all, b)
	}
}
