package fsimage

import (
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEncodeDirEntry(t *testing.T) {
	entry := encodeDirEntry("ab", 5)
	require.Len(t, entry, DirEntrySize)
	require.Equal(t, []byte{'a', 'b', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, entry[:DirNameLen])
	require.Equal(t, []byte{5, 0, 0, 0}, entry[DirNameLen:])

	// Long names are truncated to the fixed field width.
	entry = encodeDirEntry("averylongfilename", 1)
	require.Equal(t, []byte("averylongfil"), entry[:DirNameLen])
}

func sortedChildren(entries []ChildEntry) []ChildEntry {
	out := append([]ChildEntry(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func TestAddAndRemoveChildren(t *testing.T) {
	fs := newTestFS(t)
	dir, err := fs.allocateNode(true)
	require.NoError(t, err)

	require.NoError(t, fs.addChild(dir, "alpha", 10))
	require.NoError(t, fs.addChild(dir, "beta", 11))
	require.NoError(t, fs.addChild(dir, "gamma", 12))

	children, err := fs.getChildren(dir)
	require.NoError(t, err)
	want := []ChildEntry{{"alpha", 10}, {"beta", 11}, {"gamma", 12}}
	require.Empty(t, cmp.Diff(want, sortedChildren(children)))

	// Swap-with-last: removal preserves the remaining set, not order.
	require.NoError(t, fs.removeChild(dir, 11))
	children, err = fs.getChildren(dir)
	require.NoError(t, err)
	want = []ChildEntry{{"alpha", 10}, {"gamma", 12}}
	require.Empty(t, cmp.Diff(want, sortedChildren(children)))

	err = fs.removeChild(dir, 11)
	require.ErrorIs(t, err, ErrChildNotFound)
}

func TestRemoveLastChildClearsSlot(t *testing.T) {
	fs := newTestFS(t)
	dir, err := fs.allocateNode(true)
	require.NoError(t, err)

	require.NoError(t, fs.addChild(dir, "only", 7))
	require.NoError(t, fs.removeChild(dir, 7))

	children, err := fs.getChildren(dir)
	require.NoError(t, err)
	require.Empty(t, children)
}

func TestAddChildNotADirectory(t *testing.T) {
	fs := newTestFS(t)
	file, err := fs.allocateNode(false)
	require.NoError(t, err)

	require.ErrorIs(t, fs.addChild(file, "x", 1), ErrNotADirectory)
	require.ErrorIs(t, fs.removeChild(file, 1), ErrNotADirectory)
	_, err = fs.getChildren(file)
	require.ErrorIs(t, err, ErrNotADirectory)
}

func TestDirectorySpillsAcrossTiers(t *testing.T) {
	fs := newTestFS(t)
	dir, err := fs.allocateNode(true)
	require.NoError(t, err)

	// Five direct content blocks hold 5 * 64 entries; one more spills
	// into the single indirect tier.
	perBlock := int(fs.entriesPerBlock())
	total := NumDirectLinks*perBlock + 1
	for i := 0; i < total; i++ {
		require.NoError(t, fs.addChild(dir, fmt.Sprintf("e%d", i), uint32(1000+i)))
	}

	require.NotEqual(t, uint32(UnusedLink), dir.Indirect1)

	children, err := fs.getChildren(dir)
	require.NoError(t, err)
	require.Len(t, children, total)

	seen := make(map[uint32]bool)
	for _, c := range children {
		seen[c.ID] = true
	}
	require.Len(t, seen, total)

	// Removal swaps the globally last entry into the freed slot,
	// across block boundaries.
	require.NoError(t, fs.removeChild(dir, 1000))
	children, err = fs.getChildren(dir)
	require.NoError(t, err)
	require.Len(t, children, total-1)
	for _, c := range children {
		require.NotEqual(t, uint32(1000), c.ID)
	}
}

func TestFindChildID(t *testing.T) {
	fs := newTestFS(t)
	dir, err := fs.allocateNode(true)
	require.NoError(t, err)

	require.NoError(t, fs.addChild(dir, "needle", 42))

	id, ok, err := fs.findChildID(dir, "needle")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(42), id)

	_, ok, err = fs.findChildID(dir, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}
