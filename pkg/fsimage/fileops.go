package fsimage

import (
	"fmt"
	"strings"
)

// SubdirEntry is one listing row: a child name and whether it is a
// directory.
type SubdirEntry struct {
	Name  string
	IsDir bool
}

func baseName(path string) (string, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no file name in %q", ErrPathNotFound, path)
	}
	return parts[len(parts)-1], nil
}

// CreateDirectory allocates a directory inode at path and links it into
// its parent with "." and ".." entries. The inode is freed again if any
// step after allocation fails.
func (fs *Filesystem) CreateDirectory(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	parent, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	name, err := baseName(path)
	if err != nil {
		return err
	}

	node, err := fs.allocateNode(true)
	if err != nil {
		return fmt.Errorf("could not allocate directory inode: %w", err)
	}

	if err := fs.addChild(parent, name, node.ID); err != nil {
		fs.freeNode(node)
		return err
	}
	if err := fs.addChild(node, ".", node.ID); err != nil {
		fs.freeNode(node)
		return err
	}
	if err := fs.addChild(node, "..", parent.ID); err != nil {
		fs.freeNode(node)
		return err
	}
	return nil
}

// RemoveDirectory deletes an empty directory. The root and the current
// working directory cannot be removed.
func (fs *Filesystem) RemoveDirectory(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if path == "/" {
		return fmt.Errorf("cannot remove root directory")
	}

	parent, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	name, err := baseName(path)
	if err != nil {
		return err
	}

	id, ok, err := fs.findChildID(parent, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPathNotFound, name)
	}
	if id == fs.current.ID {
		return fmt.Errorf("cannot remove current directory")
	}

	dir, err := fs.readINode(id)
	if err != nil {
		return err
	}
	if !dir.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, name)
	}

	children, err := fs.getChildren(dir)
	if err != nil {
		return err
	}
	if len(children) > 2 {
		return fmt.Errorf("directory not empty: %s", name)
	}

	if err := fs.removeChild(parent, dir.ID); err != nil {
		return err
	}
	if err := fs.writeINode(parent); err != nil {
		return err
	}
	return fs.freeNode(dir)
}

// releaseFileBlocks frees every block reachable from the file and
// resets its block map and size. Used when overwriting an existing
// file.
func (fs *Filesystem) releaseFileBlocks(file *INode) error {
	for _, block := range file.Direct {
		if block != UnusedLink {
			if err := fs.freeBlock(block); err != nil {
				return err
			}
		}
	}

	if file.Indirect1 != UnusedLink {
		ids, err := fs.readBlockIDs(file.Indirect1)
		if err != nil {
			return err
		}
		for _, block := range ids {
			if err := fs.freeBlock(block); err != nil {
				return err
			}
		}
		if err := fs.freeBlock(file.Indirect1); err != nil {
			return err
		}
		file.RemoveIndirect1()
	}

	if file.Indirect2 != UnusedLink {
		ptrs, err := fs.readBlockIDs(file.Indirect2)
		if err != nil {
			return err
		}
		for _, ptr := range ptrs {
			ids, err := fs.readBlockIDs(ptr)
			if err != nil {
				return err
			}
			for _, block := range ids {
				if err := fs.freeBlock(block); err != nil {
					return err
				}
			}
			if err := fs.freeBlock(ptr); err != nil {
				return err
			}
		}
		if err := fs.freeBlock(file.Indirect2); err != nil {
			return err
		}
		file.RemoveIndirect2()
	}

	file.ClearDirectLinks()
	return file.RemoveSize(file.Size)
}

// WriteFile stores data at path, overwriting an existing file in place
// or creating a new one. Data is split into block-sized chunks, each
// allocated and attached in order. If allocation fails mid-write the
// inode keeps the blocks attached so far.
func (fs *Filesystem) WriteFile(path string, data []byte) error {
	if path == "" {
		return ErrEmptyPath
	}

	parent, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return fmt.Errorf("%w: parent of %s", ErrNotADirectory, path)
	}

	name, err := baseName(path)
	if err != nil {
		return err
	}

	var file *INode
	id, ok, err := fs.findChildID(parent, name)
	if err != nil {
		return err
	}
	if ok {
		file, err = fs.readINode(id)
		if err != nil {
			return err
		}
		if file.IsDir() {
			return fmt.Errorf("%w: cannot write to directory %s", ErrNotADirectory, name)
		}
		if err := fs.releaseFileBlocks(file); err != nil {
			return err
		}
	} else {
		file, err = fs.allocateNode(false)
		if err != nil {
			return fmt.Errorf("could not allocate file inode: %w", err)
		}
		if err := fs.addChild(parent, name, file.ID); err != nil {
			return err
		}
		if err := fs.writeINode(parent); err != nil {
			return err
		}
	}

	written := uint32(0)
	total := uint32(len(data))
	for written < total {
		block, err := fs.allocateBlock()
		if err != nil {
			return err
		}

		chunk := fs.sb.BlockSize
		if total-written < chunk {
			chunk = total - written
		}
		if err := fs.disk.Write(fs.blockOffset(block), data[written:written+chunk]); err != nil {
			return err
		}
		if err := fs.attachBlock(file, block); err != nil {
			return err
		}
		written += chunk
	}

	file.AddSize(total)
	return fs.writeINode(file)
}

// ReadFile returns the full contents of the file at path, walking the
// block map in canonical order and stopping once size bytes were read.
func (fs *Filesystem) ReadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	file, err := fs.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if file.IsDir() {
		return nil, fmt.Errorf("%w: cannot read directory %s", ErrNotADirectory, path)
	}

	result := make([]byte, 0, file.Size)
	remaining := file.Size

	readBlock := func(block uint32) error {
		if remaining == 0 {
			return nil
		}
		toRead := fs.sb.BlockSize
		if remaining < toRead {
			toRead = remaining
		}

		data, err := fs.disk.Read(fs.blockOffset(block), toRead)
		if err != nil {
			return err
		}
		if uint32(len(data)) != toRead {
			return fmt.Errorf("%w: file block %d", ErrFileRead, block)
		}

		result = append(result, data...)
		remaining -= toRead
		return nil
	}

	for _, block := range file.Direct {
		if block == UnusedLink || remaining == 0 {
			break
		}
		if err := readBlock(block); err != nil {
			return nil, err
		}
	}

	if remaining > 0 && file.Indirect1 != UnusedLink {
		ids, err := fs.readBlockIDs(file.Indirect1)
		if err != nil {
			return nil, err
		}
		for _, block := range ids {
			if remaining == 0 {
				break
			}
			if err := readBlock(block); err != nil {
				return nil, err
			}
		}
	}

	if remaining > 0 && file.Indirect2 != UnusedLink {
		ptrs, err := fs.readBlockIDs(file.Indirect2)
		if err != nil {
			return nil, err
		}
		for _, ptr := range ptrs {
			if remaining == 0 {
				break
			}
			ids, err := fs.readBlockIDs(ptr)
			if err != nil {
				return nil, err
			}
			for _, block := range ids {
				if remaining == 0 {
					break
				}
				if err := readBlock(block); err != nil {
					return nil, err
				}
			}
		}
	}

	return result, nil
}

// CopyFile duplicates the file at src to dst. The destination gets its
// own inode and blocks.
func (fs *Filesystem) CopyFile(src, dst string) error {
	if src == "" || dst == "" {
		return fmt.Errorf("%w: source or destination", ErrEmptyPath)
	}

	node, err := fs.resolvePath(src)
	if err != nil {
		return err
	}
	if node.IsDir() {
		return fmt.Errorf("%w: source %s is a directory", ErrNotADirectory, src)
	}

	data, err := fs.ReadFile(src)
	if err != nil {
		return err
	}
	return fs.WriteFile(dst, data)
}

// MoveFile is copy-then-remove: the destination is a new inode, so hard
// links to the source do not follow the move.
func (fs *Filesystem) MoveFile(src, dst string) error {
	if src == "" || dst == "" {
		return fmt.Errorf("%w: source or destination", ErrEmptyPath)
	}
	if src == dst {
		return nil
	}

	node, err := fs.resolvePath(src)
	if err != nil {
		return err
	}
	if node.IsDir() {
		return fmt.Errorf("%w: source %s is a directory", ErrNotADirectory, src)
	}

	if err := fs.CopyFile(src, dst); err != nil {
		return err
	}
	return fs.RemoveFile(src)
}

// RemoveFile unlinks the file at path. The inode and its blocks are
// freed once the last link is gone.
func (fs *Filesystem) RemoveFile(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	parent, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return fmt.Errorf("%w: parent of %s", ErrNotADirectory, path)
	}

	name, err := baseName(path)
	if err != nil {
		return err
	}

	id, ok, err := fs.findChildID(parent, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPathNotFound, name)
	}

	file, err := fs.readINode(id)
	if err != nil {
		return err
	}
	if file.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotADirectory, name)
	}

	if err := fs.removeChild(parent, file.ID); err != nil {
		return err
	}
	if err := fs.writeINode(parent); err != nil {
		return err
	}

	if file.Links == 1 {
		return fs.freeNode(file)
	}
	file.RemoveLink()
	return fs.writeINode(file)
}

// LinkFile creates a hard link at linkPath pointing at the inode of
// original. Both names share the inode; blocks are never shared between
// inodes.
func (fs *Filesystem) LinkFile(original, linkPath string) error {
	if original == "" || linkPath == "" {
		return fmt.Errorf("%w: original or link path", ErrEmptyPath)
	}

	node, err := fs.resolvePath(original)
	if err != nil {
		return err
	}
	if node.IsDir() {
		return fmt.Errorf("%w: cannot hard-link directory %s", ErrNotADirectory, original)
	}

	parent, err := fs.resolveParent(linkPath)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return fmt.Errorf("%w: parent of %s", ErrNotADirectory, linkPath)
	}

	name, err := baseName(linkPath)
	if err != nil {
		return err
	}

	if _, exists, err := fs.findChildID(parent, name); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: destination %s already exists", ErrFileWrite, name)
	}

	if err := fs.addChild(parent, name, node.ID); err != nil {
		return err
	}
	node.AddLink()
	if err := fs.writeINode(node); err != nil {
		return err
	}
	return fs.writeINode(parent)
}

// GetSubdirectories lists the children of the directory at path,
// excluding "." and "..".
func (fs *Filesystem) GetSubdirectories(path string) ([]SubdirEntry, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	dir, err := fs.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}

	children, err := fs.getChildren(dir)
	if err != nil {
		return nil, err
	}

	var result []SubdirEntry
	for _, child := range children {
		if child.Name == "." || child.Name == ".." {
			continue
		}
		node, err := fs.readINode(child.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, SubdirEntry{Name: child.Name, IsDir: node.IsDir()})
	}
	return result, nil
}

// ChangeActiveDirectory switches the working directory to path.
func (fs *Filesystem) ChangeActiveDirectory(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	dir, err := fs.resolvePath(path)
	if err != nil {
		return err
	}
	if !dir.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}

	fs.current = dir
	return nil
}

// GetCurrentPath returns the working directory as path segments from
// the root, found by climbing ".." entries and matching the child name
// in each parent.
func (fs *Filesystem) GetCurrentPath() ([]string, error) {
	var path []string

	node := fs.current
	if node.ID == fs.sb.RootNodeID {
		return path, nil
	}

	for {
		parentID, ok, err := fs.findChildID(node, "..")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNoParentDirectory
		}

		parent, err := fs.readINode(parentID)
		if err != nil {
			return nil, err
		}
		if parent.ID == node.ID {
			break
		}

		children, err := fs.getChildren(parent)
		if err != nil {
			return nil, err
		}
		found := false
		for _, child := range children {
			if child.ID == node.ID && child.Name != "." && child.Name != ".." {
				path = append(path, child.Name)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: could not resolve current path", ErrFileRead)
		}

		node = parent
	}

	// Climbed root-to-leaf in reverse.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// GetNode resolves path and returns the inode it names.
func (fs *Filesystem) GetNode(path string) (*INode, error) {
	return fs.resolvePath(path)
}

// GetNodeInfo returns a one-line description of the inode at path.
func (fs *Filesystem) GetNodeInfo(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	node, err := fs.resolvePath(path)
	if err != nil {
		return "", err
	}

	name := "/"
	if path != "/" {
		name, err = baseName(path)
		if err != nil {
			return "", err
		}
	}

	var out strings.Builder
	fmt.Fprintf(&out, "%s - %d B - inode %d - direct blocks ", name, node.Size, node.ID)

	first := true
	for _, block := range node.Direct {
		if block == UnusedLink {
			continue
		}
		if !first {
			out.WriteString(", ")
		}
		fmt.Fprintf(&out, "%d", block)
		first = false
	}
	if first {
		out.WriteString("none")
	}

	if node.Indirect1 != UnusedLink {
		fmt.Fprintf(&out, " - single indirect %d", node.Indirect1)
	}
	if node.Indirect2 != UnusedLink {
		fmt.Fprintf(&out, " - double indirect %d", node.Indirect2)
	}
	if !node.IsDir() {
		fmt.Fprintf(&out, " - links %d", node.Links)
	}

	return out.String(), nil
}

// GetFilesystemStats returns a human-readable summary of image
// geometry and allocation state.
func (fs *Filesystem) GetFilesystemStats() (string, error) {
	if !fs.formatted {
		return "", ErrNotFormatted
	}

	usedBlocks := fs.sb.TotalBlocks - fs.blockBitmap.FreeCount()
	usedInodes := fs.sb.TotalInodes - fs.inodeBitmap.FreeCount()

	cwd, err := fs.GetCurrentPath()
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Filesystem size: %d B\n", fs.sb.Size)
	fmt.Fprintf(&out, "Block size: %d B\n", fs.sb.BlockSize)
	fmt.Fprintf(&out, "Blocks: total %d, used %d, free %d\n",
		fs.sb.TotalBlocks, usedBlocks, fs.sb.TotalBlocks-usedBlocks)
	fmt.Fprintf(&out, "Inodes: total %d, used %d, free %d\n",
		fs.sb.TotalInodes, usedInodes, fs.sb.TotalInodes-usedInodes)
	fmt.Fprintf(&out, "Root inode: %d\n", fs.sb.RootNodeID)
	fmt.Fprintf(&out, "Current directory: /%s\n", strings.Join(cwd, "/"))

	return out.String(), nil
}
