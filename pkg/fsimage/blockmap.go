package fsimage

import "fmt"

// idEntrySize is the width of one reference inside a block-id table.
const idEntrySize = 4

func (fs *Filesystem) idsPerBlock() uint32 {
	return fs.sb.BlockSize / idEntrySize
}

// readBlockIDs interprets a data block as a block-id table: a
// left-packed sequence of references terminated by the first UNUSED
// sentinel.
func (fs *Filesystem) readBlockIDs(block uint32) ([]uint32, error) {
	data, err := fs.disk.Read(fs.blockOffset(block), fs.sb.BlockSize)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) != fs.sb.BlockSize {
		return nil, fmt.Errorf("%w: block %d", ErrInvalidBlock, block)
	}

	var ids []uint32
	for off := 0; off+idEntrySize <= len(data); off += idEntrySize {
		id, err := ReadUint32(data[off : off+idEntrySize])
		if err != nil {
			return nil, err
		}
		if id == UnusedLink {
			break
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// BlockIDs returns the live references in the block-id table stored in
// the given data block.
func (fs *Filesystem) BlockIDs(block uint32) ([]uint32, error) {
	return fs.readBlockIDs(block)
}

// attachBlock appends block to the inode's logical block list,
// allocating indirect tables on demand: directs first, then the single
// indirect table, then the double indirect hierarchy.
func (fs *Filesystem) attachBlock(node *INode, block uint32) error {
	for _, b := range node.Direct {
		if b == UnusedLink {
			if err := node.AddDirectLink(block); err != nil {
				return err
			}
			return fs.writeINode(node)
		}
	}

	if node.Indirect1 == UnusedLink {
		ind, err := fs.allocateBlock()
		if err != nil {
			return err
		}
		if err := fs.fillBlock(ind, 0xFF); err != nil {
			return err
		}
		if err := node.AddIndirect1(ind); err != nil {
			return err
		}
		if err := fs.writeINode(node); err != nil {
			return err
		}
	}

	ids, err := fs.readBlockIDs(node.Indirect1)
	if err != nil {
		return err
	}
	if uint32(len(ids)) < fs.idsPerBlock() {
		offset := fs.blockOffset(node.Indirect1) + uint64(len(ids))*idEntrySize
		return fs.disk.Write(offset, WriteUint32(block))
	}

	if node.Indirect2 == UnusedLink {
		ind2, err := fs.allocateBlock()
		if err != nil {
			return err
		}
		if err := fs.fillBlock(ind2, 0xFF); err != nil {
			return err
		}
		if err := node.AddIndirect2(ind2); err != nil {
			return err
		}
		if err := fs.writeINode(node); err != nil {
			return err
		}
	}

	ptrs, err := fs.readBlockIDs(node.Indirect2)
	if err != nil {
		return err
	}
	for _, ptr := range ptrs {
		ids, err := fs.readBlockIDs(ptr)
		if err != nil {
			return err
		}
		if uint32(len(ids)) < fs.idsPerBlock() {
			offset := fs.blockOffset(ptr) + uint64(len(ids))*idEntrySize
			return fs.disk.Write(offset, WriteUint32(block))
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

		ptrOffset := fs.blockOffset(node.Indirect2) + uint64(len(ptrs))*idEntrySize
		if err := fs.disk.Write(ptrOffset, WriteUint32(ptr)); err != nil {
			return err
		}
		return fs.disk.Write(fs.blockOffset(ptr), WriteUint32(block))
	}

	return fmt.Errorf("%w: no room for new blocks", ErrFileTooLarge)
}

// removeFromIDTable removes value from the block-id table using
// swap-with-last compaction. Reports whether the value was present.
func (fs *Filesystem) removeFromIDTable(table, value uint32) (bool, error) {
	ids, err := fs.readBlockIDs(table)
	if err != nil {
		return false, err
	}

	target := -1
	for i, id := range ids {
		if id == value {
			target = i
			break
		}
	}
	if target == -1 {
		return false, nil
	}

	last := len(ids) - 1
	targetOffset := fs.blockOffset(table) + uint64(target)*idEntrySize
	lastOffset := fs.blockOffset(table) + uint64(last)*idEntrySize

	if target != last {
		if err := fs.disk.Write(targetOffset, WriteUint32(ids[last])); err != nil {
			return false, err
		}
	}
	if err := fs.disk.Write(lastOffset, []byte{0xFF, 0xFF, 0xFF, 0xFF}); err != nil {
		return false, err
	}
	return true, nil
}

// detachBlock removes block from the inode's block map and frees it.
// Indirect tables left empty by the removal are detached and freed as
// well.
func (fs *Filesystem) detachBlock(node *INode, block uint32) error {
	for _, b := range node.Direct {
		if b == block {
			if err := node.RemoveDirectLink(block); err != nil {
				return err
			}
			if err := fs.freeBlock(block); err != nil {
				return err
			}
			return fs.writeINode(node)
		}
	}

	if node.Indirect1 != UnusedLink {
		removed, err := fs.removeFromIDTable(node.Indirect1, block)
		if err != nil {
			return err
		}
		if removed {
			if err := fs.freeBlock(block); err != nil {
				return err
			}

			ids, err := fs.readBlockIDs(node.Indirect1)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				if err := fs.freeBlock(node.Indirect1); err != nil {
					return err
				}
				node.RemoveIndirect1()
			}
			return fs.writeINode(node)
		}
	}

	if node.Indirect2 != UnusedLink {
		ptrs, err := fs.readBlockIDs(node.Indirect2)
		if err != nil {
			return err
		}
		for _, ptr := range ptrs {
			removed, err := fs.removeFromIDTable(ptr, block)
			if err != nil {
				return err
			}
			if !removed {
				continue
			}
			if err := fs.freeBlock(block); err != nil {
				return err
			}

			ids, err := fs.readBlockIDs(ptr)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				if _, err := fs.removeFromIDTable(node.Indirect2, ptr); err != nil {
					return err
				}
				if err := fs.freeBlock(ptr); err != nil {
					return err
				}
			}

			remaining, err := fs.readBlockIDs(node.Indirect2)
			if err != nil {
				return err
			}
			if len(remaining) == 0 {
				if err := fs.freeBlock(node.Indirect2); err != nil {
					return err
				}
				node.RemoveIndirect2()
			}
			return fs.writeINode(node)
		}
	}

	return fmt.Errorf("%w: block %d, inode %d", ErrBlockNotAttached, block, node.ID)
}

// allBlockIDs returns every block reachable from the inode: direct
// links, both indirect tables themselves, and everything those tables
// point at.
func (fs *Filesystem) allBlockIDs(node *INode) ([]uint32, error) {
	var ids []uint32

	for _, b := range node.Direct {
		if b != UnusedLink {
			ids = append(ids, b)
		}
	}

	if node.Indirect1 != UnusedLink {
		ids = append(ids, node.Indirect1)
		contents, err := fs.readBlockIDs(node.Indirect1)
		if err != nil {
			return nil, err
		}
		ids = append(ids, contents...)
	}

	if node.Indirect2 != UnusedLink {
		ids = append(ids, node.Indirect2)
		ptrs, err := fs.readBlockIDs(node.Indirect2)
		if err != nil {
			return nil, err
		}
		for _, ptr := range ptrs {
			ids = append(ids, ptr)
			contents, err := fs.readBlockIDs(ptr)
			if err != nil {
				return nil, err
			}
			ids = append(ids, contents...)
		}
	}

	return ids, nil
}
