package fsimage

import "fmt"

// CheckConsistency walks the directory tree from the root and
// reconciles what it finds against both bitmaps: every reachable block
// must be marked allocated by exactly one inode, every allocated bit
// must be reachable, and file link counts must match their directory
// entries. Returns one message per inconsistency; an empty slice means
// the image is clean. Read-only.
func (fs *Filesystem) CheckConsistency() ([]string, error) {
	if !fs.formatted {
		return nil, ErrNotFormatted
	}

	var issues []string
	blockRefs := make(map[uint32][]uint32)
	entryCounts := make(map[uint32]uint32)
	nodes := make(map[uint32]*INode)

	var walk func(id uint32)
	walk = func(id uint32) {
		if _, seen := nodes[id]; seen {
			return
		}

		node, err := fs.readINode(id)
		if err != nil {
			issues = append(issues, fmt.Sprintf("inode %d: unreadable: %v", id, err))
			return
		}
		nodes[id] = node

		blocks, err := fs.allBlockIDs(node)
		if err != nil {
			issues = append(issues, fmt.Sprintf("inode %d: block map unreadable: %v", id, err))
			return
		}
		for _, b := range blocks {
			blockRefs[b] = append(blockRefs[b], id)
		}

		if !node.IsDir() {
			return
		}
		children, err := fs.getChildren(node)
		if err != nil {
			issues = append(issues, fmt.Sprintf("inode %d: directory unreadable: %v", id, err))
			return
		}
		for _, child := range children {
			if child.Name == "." || child.Name == ".." {
				continue
			}
			entryCounts[child.ID]++
			walk(child.ID)
		}
	}
	walk(fs.sb.RootNodeID)

	for b, refs := range blockRefs {
		if len(refs) > 1 {
			issues = append(issues, fmt.Sprintf("block %d referenced by multiple inodes %v", b, refs))
		}
		if !fs.blockBitmap.Get(b) {
			issues = append(issues, fmt.Sprintf("block %d reachable from inode %d but marked free", b, refs[0]))
		}
	}
	for b := uint32(0); b < fs.sb.TotalBlocks; b++ {
		if fs.blockBitmap.Get(b) {
			if _, ok := blockRefs[b]; !ok {
				issues = append(issues, fmt.Sprintf("block %d marked allocated but unreachable", b))
			}
		}
	}

	for id := range nodes {
		if !fs.inodeBitmap.Get(id) {
			issues = append(issues, fmt.Sprintf("inode %d reachable but marked free", id))
		}
	}
	for id := uint32(0); id < fs.sb.TotalInodes; id++ {
		if fs.inodeBitmap.Get(id) {
			if _, ok := nodes[id]; !ok {
				issues = append(issues, fmt.Sprintf("inode %d marked allocated but unreachable", id))
			}
		}
	}

	for id, node := range nodes {
		if node.IsDir() {
			continue
		}
		if node.Links != entryCounts[id] {
			issues = append(issues, fmt.Sprintf(
				"inode %d has link count %d but %d directory entries", id, node.Links, entryCounts[id]))
		}
	}

	return issues, nil
}
