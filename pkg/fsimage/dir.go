package fsimage

import (
	"fmt"
	"strings"
)

const (
	// DirNameLen is the fixed width of a directory entry name.
	DirNameLen = 12
	// DirEntrySize is the on-disk size of one directory entry.
	DirEntrySize = DirNameLen + 4
)

// ChildEntry is one live (name, inode id) pair of a directory.
type ChildEntry struct {
	Name string
	ID   uint32
}

func (fs *Filesystem) entriesPerBlock() uint32 {
	return fs.sb.BlockSize / DirEntrySize
}

// encodeDirEntry packs name and the child id into a fixed 16-byte
// entry. Names longer than 12 bytes are truncated; shorter names are
// NUL-padded on the right.
func encodeDirEntry(name string, child uint32) []byte {
	entry := make([]byte, DirEntrySize)
	copy(entry[:DirNameLen], name)
	copy(entry[DirNameLen:], WriteUint32(child))
	return entry
}

// readBlockEntries interprets a data block as a directory entry
// sequence, terminated by the first entry whose inode id is UNUSED.
func (fs *Filesystem) readBlockEntries(block uint32) ([]ChildEntry, error) {
	data, err := fs.disk.Read(fs.blockOffset(block), fs.sb.BlockSize)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) != fs.sb.BlockSize {
		return nil, fmt.Errorf("%w: block %d", ErrInvalidBlock, block)
	}

	var entries []ChildEntry
	for off := 0; off+DirEntrySize <= len(data); off += DirEntrySize {
		name := string(data[off : off+DirNameLen])
		if nul := strings.IndexByte(name, 0); nul >= 0 {
			name = name[:nul]
		}

		id, err := ReadUint32(data[off+DirNameLen : off+DirEntrySize])
		if err != nil {
			return nil, err
		}
		if id == UnusedLink {
			break
		}
		entries = append(entries, ChildEntry{Name: name, ID: id})
	}
	return entries, nil
}

// addChild inserts a (name, child) entry into the directory, walking
// content blocks in canonical order and allocating new ones on demand.
func (fs *Filesystem) addChild(dir *INode, name string, child uint32) error {
	if !dir.IsDir() {
		return fmt.Errorf("%w: inode %d", ErrNotADirectory, dir.ID)
	}

	entry := encodeDirEntry(name, child)

	// Direct content blocks.
	for _, block := range dir.Direct {
		if block == UnusedLink {
			b, err := fs.allocateBlock()
			if err != nil {
				return err
			}
			if err := fs.fillBlock(b, 0xFF); err != nil {
				return err
			}
			if err := dir.AddDirectLink(b); err != nil {
				return err
			}
			if err := fs.writeINode(dir); err != nil {
				return err
			}
			block = b
		}

		entries, err := fs.readBlockEntries(block)
		if err != nil {
			return err
		}
		if uint32(len(entries)) < fs.entriesPerBlock() {
			offset := fs.blockOffset(block) + uint64(len(entries))*DirEntrySize
			if err := fs.disk.Write(offset, entry); err != nil {
				return err
			}
			return fs.writeINode(dir)
		}
	}

	// Single indirect contents.
	if dir.Indirect1 == UnusedLink {
		ind, err := fs.allocateBlock()
		if err != nil {
			return err
		}
		if err := fs.fillBlock(ind, 0xFF); err != nil {
			return err
		}
		if err := dir.AddIndirect1(ind); err != nil {
			return err
		}
		if err := fs.writeINode(dir); err != nil {
			return err
		}
	}

	ids, err := fs.readBlockIDs(dir.Indirect1)
	if err != nil {
		return err
	}
	for _, block := range ids {
		entries, err := fs.readBlockEntries(block)
		if err != nil {
			return err
		}
		if uint32(len(entries)) < fs.entriesPerBlock() {
			offset := fs.blockOffset(block) + uint64(len(entries))*DirEntrySize
			if err := fs.disk.Write(offset, entry); err != nil {
				return err
			}
			return fs.writeINode(dir)
		}
	}
	if uint32(len(ids)) < fs.idsPerBlock() {
		b, err := fs.allocateBlock()
		if err != nil {
			return err
		}
		if err := fs.fillBlock(b, 0xFF); err != nil {
			return err
		}

		idOffset := fs.blockOffset(dir.Indirect1) + uint64(len(ids))*idEntrySize
		if err := fs.disk.Write(idOffset, WriteUint32(b)); err != nil {
			return err
		}
		if err := fs.disk.Write(fs.blockOffset(b), entry); err != nil {
			return err
		}
		return fs.writeINode(dir)
	}

	// Double indirect contents.
	if dir.Indirect2 == UnusedLink {
		ind2, err := fs.allocateBlock()
		if err != nil {
			return err
		}
		if err := fs.fillBlock(ind2, 0xFF); err != nil {
			return err
		}
		if err := dir.AddIndirect2(ind2); err != nil {
			return err
		}
		if err := fs.writeINode(dir); err != nil {
			return err
		}
	}

	ptrs, err := fs.readBlockIDs(dir.Indirect2)
	if err != nil {
		return err
	}
	for _, ptr := range ptrs {
		blocks, err := fs.readBlockIDs(ptr)
		if err != nil {
			return err
		}
		for _, block := range blocks {
			entries, err := fs.readBlockEntries(block)
			if err != nil {
				return err
			}
			if uint32(len(entries)) < fs.entriesPerBlock() {
				offset := fs.blockOffset(block) + uint64(len(entries))*DirEntrySize
				if err := fs.disk.Write(offset, entry); err != nil {
					return err
				}
				return fs.writeINode(dir)
			}
		}

		if uint32(len(blocks)) < fs.idsPerBlock() {
			b, err := fs.allocateBlock()
			if err != nil {
				return err
			}
			if err := fs.fillBlock(b, 0xFF); err != nil {
				return err
			}

			idOffset := fs.blockOffset(ptr) + uint64(len(blocks))*idEntrySize
			if err := fs.disk.Write(idOffset, WriteUint32(b)); err != nil {
				return err
			}
			if err := fs.disk.Write(fs.blockOffset(b), entry); err != nil {
				return err
			}
			return fs.writeINode(dir)
		}
	}

	if uint32(len(ptrs)) < fs.idsPerBlock() {
		ptr, err := fs.allocateBlock()
		if err != nil {
			return err
		}
		if err := fs.fillBlock(ptr, 0xFF); err != nil {
			return err
		}

		ptrOffset := fs.blockOffset(dir.Indirect2) + uint64(len(ptrs))*idEntrySize
		if err := fs.disk.Write(ptrOffset, WriteUint32(ptr)); err != nil {
			return err
		}

		b, err := fs.allocateBlock()
		if err != nil {
			return err
		}
		if err := fs.fillBlock(b, 0xFF); err != nil {
			return err
		}
		if err := fs.disk.Write(fs.blockOffset(ptr), WriteUint32(b)); err != nil {
			return err
		}
		if err := fs.disk.Write(fs.blockOffset(b), entry); err != nil {
			return err
		}
		return fs.writeINode(dir)
	}

	return fmt.Errorf("%w: directory %d is full", ErrFileTooLarge, dir.ID)
}

// entryLoc identifies one directory entry slot.
type entryLoc struct {
	block uint32
	index uint32
}

// removeChild deletes the entry pointing at child using swap-with-last
// compaction: the globally last live entry (by scan order) replaces the
// removed one and its old slot is sentinel-cleared.
func (fs *Filesystem) removeChild(dir *INode, child uint32) error {
	if !dir.IsDir() {
		return fmt.Errorf("%w: inode %d", ErrNotADirectory, dir.ID)
	}

	var target, last *entryLoc

	scanBlock := func(block uint32) error {
		entries, err := fs.readBlockEntries(block)
		if err != nil {
			return err
		}
		for i, e := range entries {
			if e.ID == child {
				target = &entryLoc{block: block, index: uint32(i)}
			}
			last = &entryLoc{block: block, index: uint32(i)}
		}
		return nil
	}

	for _, block := range dir.Direct {
		if block == UnusedLink {
			break
		}
		if err := scanBlock(block); err != nil {
			return err
		}
	}

	if dir.Indirect1 != UnusedLink {
		ids, err := fs.readBlockIDs(dir.Indirect1)
		if err != nil {
			return err
		}
		for _, block := range ids {
			if err := scanBlock(block); err != nil {
				return err
			}
		}
	}

	if dir.Indirect2 != UnusedLink {
		ptrs, err := fs.readBlockIDs(dir.Indirect2)
		if err != nil {
			return err
		}
		for _, ptr := range ptrs {
			blocks, err := fs.readBlockIDs(ptr)
			if err != nil {
				return err
			}
			for _, block := range blocks {
				if err := scanBlock(block); err != nil {
					return err
				}
			}
		}
	}

	if target == nil {
		return fmt.Errorf("%w: inode %d in directory %d", ErrChildNotFound, child, dir.ID)
	}

	cleared := make([]byte, DirEntrySize)
	for i := range cleared {
		cleared[i] = 0xFF
	}

	lastOffset := fs.blockOffset(last.block) + uint64(last.index)*DirEntrySize
	if *target == *last {
		return fs.disk.Write(lastOffset, cleared)
	}

	lastData, err := fs.disk.Read(lastOffset, DirEntrySize)
	if err != nil {
		return err
	}
	if len(lastData) != DirEntrySize {
		return fmt.Errorf("%w: directory entry in block %d", ErrFileRead, last.block)
	}

	targetOffset := fs.blockOffset(target.block) + uint64(target.index)*DirEntrySize
	if err := fs.disk.Write(targetOffset, lastData); err != nil {
		return err
	}
	return fs.disk.Write(lastOffset, cleared)
}

// getChildren lists every live entry across all three tiers, in scan
// order.
func (fs *Filesystem) getChildren(dir *INode) ([]ChildEntry, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("%w: inode %d", ErrNotADirectory, dir.ID)
	}

	var children []ChildEntry

	for _, block := range dir.Direct {
		if block == UnusedLink {
			return children, nil
		}
		entries, err := fs.readBlockEntries(block)
		if err != nil {
			return nil, err
		}
		children = append(children, entries...)
	}

	if dir.Indirect1 == UnusedLink {
		return children, nil
	}
	ids, err := fs.readBlockIDs(dir.Indirect1)
	if err != nil {
		return nil, err
	}
	for _, block := range ids {
		entries, err := fs.readBlockEntries(block)
		if err != nil {
			return nil, err
		}
		children = append(children, entries...)
	}

	if dir.Indirect2 == UnusedLink {
		return children, nil
	}
	ptrs, err := fs.readBlockIDs(dir.Indirect2)
	if err != nil {
		return nil, err
	}
	for _, ptr := range ptrs {
		blocks, err := fs.readBlockIDs(ptr)
		if err != nil {
			return nil, err
		}
		for _, block := range blocks {
			entries, err := fs.readBlockEntries(block)
			if err != nil {
				return nil, err
			}
			children = append(children, entries...)
		}
	}

	return children, nil
}

// findChildID looks up a child by exact name.
func (fs *Filesystem) findChildID(dir *INode, name string) (uint32, bool, error) {
	children, err := fs.getChildren(dir)
	if err != nil {
		return 0, false, err
	}
	for _, child := range children {
		if child.Name == name {
			return child.ID, true, nil
		}
	}
	return 0, false, nil
}
