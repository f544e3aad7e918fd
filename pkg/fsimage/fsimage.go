package fsimage

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	// BlockSize is the fixed data block size of every image.
	BlockSize = 1024
	// blocksPerInode fixes the blocks : inodes ratio used by Format.
	blocksPerInode = 4
)

// Filesystem is a single-image inode filesystem. It is the only owner
// of the backing file, both allocation bitmaps and the current working
// directory. Not safe for concurrent use.
type Filesystem struct {
	disk        *DiskFile
	sb          Superblock
	inodeBitmap *Bitmap
	blockBitmap *Bitmap
	current     *INode
	formatted   bool
	log         *logrus.Entry
}

// Open mounts the image at path, creating the backing file if missing.
// An image whose superblock magic does not match stays unformatted;
// only Format is usable until it succeeds.
func Open(path string) (*Filesystem, error) {
	disk, err := OpenDisk(path, ModeReadWrite)
	if err != nil {
		return nil, err
	}

	fs := &Filesystem{
		disk: disk,
		log:  logrus.WithField("image", path),
	}

	data, err := fs.disk.Read(0, SuperblockSize)
	if err != nil {
		disk.Close()
		return nil, err
	}
	if len(data) != SuperblockSize {
		// Empty or truncated image.
		return fs, nil
	}

	sb, err := SuperblockFromBytes(data)
	if err != nil {
		disk.Close()
		return nil, err
	}
	if sb.Magic != Magic {
		return fs, nil
	}
	fs.sb = sb

	if err := fs.loadMetadata(); err != nil {
		disk.Close()
		return nil, err
	}

	fs.formatted = true
	fs.log.WithFields(logrus.Fields{
		"blocks": fs.sb.TotalBlocks,
		"inodes": fs.sb.TotalInodes,
	}).Debug("mounted filesystem")
	return fs, nil
}

func (fs *Filesystem) loadMetadata() error {
	inodeBytes := (fs.sb.TotalInodes + 7) / 8
	data, err := fs.disk.Read(uint64(fs.sb.InodeBitmapOffset), inodeBytes)
	if err != nil {
		return err
	}
	fs.inodeBitmap = LoadBitmap(data, fs.sb.TotalInodes)

	blockBytes := (fs.sb.TotalBlocks + 7) / 8
	data, err = fs.disk.Read(uint64(fs.sb.BlockBitmapOffset), blockBytes)
	if err != nil {
		return err
	}
	fs.blockBitmap = LoadBitmap(data, fs.sb.TotalBlocks)

	root, err := fs.readINode(fs.sb.RootNodeID)
	if err != nil {
		return err
	}
	fs.current = root
	return nil
}

// Close flushes all deferred metadata and releases the backing file.
// Bitmap writes are deferred to this point; everything else is written
// through eagerly during operation.
func (fs *Filesystem) Close() error {
	if !fs.formatted {
		return fs.disk.Close()
	}

	if err := fs.disk.Write(0, fs.sb.Bytes()); err != nil {
		return err
	}
	if err := fs.disk.Write(uint64(fs.sb.InodeBitmapOffset), fs.inodeBitmap.Bytes()); err != nil {
		return err
	}
	if err := fs.disk.Write(uint64(fs.sb.BlockBitmapOffset), fs.blockBitmap.Bytes()); err != nil {
		return err
	}
	if err := fs.writeINode(fs.current); err != nil {
		return err
	}
	if err := fs.disk.Flush(); err != nil {
		return err
	}
	return fs.disk.Close()
}

// Formatted reports whether the image holds a mounted filesystem.
func (fs *Filesystem) Formatted() bool {
	return fs.formatted
}

// Superblock returns a copy of the mounted superblock.
func (fs *Filesystem) Superblock() Superblock {
	return fs.sb
}

// FreeBlocks returns the number of unallocated data blocks.
func (fs *Filesystem) FreeBlocks() uint32 {
	return fs.blockBitmap.FreeCount()
}

// FreeInodes returns the number of unallocated inodes.
func (fs *Filesystem) FreeInodes() uint32 {
	return fs.inodeBitmap.FreeCount()
}

// INodeInUse reports the inode bitmap bit for id.
func (fs *Filesystem) INodeInUse(id uint32) bool {
	return fs.inodeBitmap.Get(id)
}

// BlockInUse reports the block bitmap bit for block.
func (fs *Filesystem) BlockInUse(block uint32) bool {
	return fs.blockBitmap.Get(block)
}

// Format writes a fresh filesystem over the image. Geometry targets a
// 4:1 blocks to inodes ratio at a fixed 1024 byte block size, shrinking
// the block count until metadata and data both fit in the requested
// image size. Destroys any previous contents.
func (fs *Filesystem) Format(bytes uint32) error {
	if err := fs.disk.Resize(uint64(bytes)); err != nil {
		return fmt.Errorf("%w: %v", ErrCouldNotResize, err)
	}

	blocks := bytes / BlockSize
	inodes := uint32(0)
	for blocks > 0 {
		inodes = blocks / blocksPerInode
		metadata := uint32(SuperblockSize) +
			(inodes+7)/8 +
			(blocks+7)/8 +
			inodes*INodeSize
		if metadata+blocks*BlockSize <= bytes {
			break
		}
		blocks--
	}
	if blocks == 0 || inodes == 0 {
		return fmt.Errorf("%w: %d bytes is too small", ErrInvalidSize, bytes)
	}

	fs.sb = Superblock{
		Magic:       Magic,
		BlockSize:   BlockSize,
		TotalBlocks: blocks,
		TotalInodes: inodes,
		Size:        bytes,
	}
	fs.sb.InodeBitmapOffset = SuperblockSize
	fs.sb.BlockBitmapOffset = fs.sb.InodeBitmapOffset + (inodes+7)/8
	fs.sb.InodeTableOffset = fs.sb.BlockBitmapOffset + (blocks+7)/8
	fs.sb.DataBlocksOffset = fs.sb.InodeTableOffset + inodes*INodeSize

	fs.inodeBitmap = NewBitmap(inodes)
	fs.blockBitmap = NewBitmap(blocks)
	fs.formatted = true

	root, err := fs.allocateNode(true)
	if err != nil {
		fs.formatted = false
		return fmt.Errorf("could not allocate root: %w", err)
	}
	fs.current = root
	fs.sb.RootNodeID = root.ID

	// Root is its own parent.
	if err := fs.addChild(root, ".", root.ID); err != nil {
		fs.formatted = false
		return err
	}
	if err := fs.addChild(root, "..", root.ID); err != nil {
		fs.formatted = false
		return err
	}

	if err := fs.disk.Write(0, fs.sb.Bytes()); err != nil {
		return err
	}
	if err := fs.disk.Write(uint64(fs.sb.InodeBitmapOffset), fs.inodeBitmap.Bytes()); err != nil {
		return err
	}
	if err := fs.disk.Write(uint64(fs.sb.BlockBitmapOffset), fs.blockBitmap.Bytes()); err != nil {
		return err
	}
	if err := fs.writeINode(fs.current); err != nil {
		return err
	}

	fs.log.WithFields(logrus.Fields{
		"size":   bytes,
		"blocks": blocks,
		"inodes": inodes,
	}).Debug("formatted filesystem")
	return nil
}

func (fs *Filesystem) inodeOffset(id uint32) uint64 {
	return uint64(fs.sb.InodeTableOffset) + uint64(id)*INodeSize
}

func (fs *Filesystem) blockOffset(block uint32) uint64 {
	return uint64(fs.sb.DataBlocksOffset) + uint64(block)*uint64(fs.sb.BlockSize)
}

func (fs *Filesystem) readINode(id uint32) (*INode, error) {
	data, err := fs.disk.Read(fs.inodeOffset(id), INodeSize)
	if err != nil {
		return nil, err
	}
	if len(data) != INodeSize {
		return nil, fmt.Errorf("%w: inode %d", ErrInvalidINode, id)
	}
	return INodeFromBytes(data)
}

func (fs *Filesystem) writeINode(node *INode) error {
	if err := fs.disk.Write(fs.inodeOffset(node.ID), node.Bytes()); err != nil {
		return err
	}
	// Keep the in-memory working directory in sync when its on-disk
	// record changes underneath it.
	if fs.current != nil && fs.current != node && fs.current.ID == node.ID {
		fs.current = node
	}
	return nil
}

// allocateNode reserves the first free inode. Directory inodes get one
// data block attached and sentinel-filled so it decodes as empty. On
// block allocation failure the inode reservation is rolled back.
func (fs *Filesystem) allocateNode(isDir bool) (*INode, error) {
	id, ok := fs.inodeBitmap.FindFirstFree()
	if !ok {
		return nil, ErrNoFreeINodes
	}
	fs.inodeBitmap.Set(id, true)

	node := NewINode(id, isDir)
	if isDir {
		block, err := fs.allocateBlock()
		if err != nil {
			fs.inodeBitmap.Set(id, false)
			return nil, err
		}
		if err := fs.fillBlock(block, 0xFF); err != nil {
			return nil, err
		}
		if err := fs.attachBlock(node, block); err != nil {
			return nil, err
		}
	}
	if err := fs.writeINode(node); err != nil {
		return nil, err
	}

	fs.log.WithFields(logrus.Fields{"inode": id, "dir": isDir}).Debug("allocated inode")
	return node, nil
}

// freeNode releases the inode, every block reachable from it, and
// zeroes its slot in the inode table.
func (fs *Filesystem) freeNode(node *INode) error {
	fs.inodeBitmap.Set(node.ID, false)

	blocks, err := fs.allBlockIDs(node)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := fs.freeBlock(b); err != nil {
			return err
		}
	}

	if err := fs.disk.Write(fs.inodeOffset(node.ID), make([]byte, INodeSize)); err != nil {
		return err
	}
	fs.log.WithField("inode", node.ID).Debug("freed inode")
	return nil
}

// allocateBlock reserves the first free data block. The caller is
// responsible for initializing its contents.
func (fs *Filesystem) allocateBlock() (uint32, error) {
	block, ok := fs.blockBitmap.FindFirstFree()
	if !ok {
		return 0, ErrNoFreeBlocks
	}
	fs.blockBitmap.Set(block, true)
	return block, nil
}

func (fs *Filesystem) freeBlock(block uint32) error {
	fs.blockBitmap.Set(block, false)
	return fs.disk.Write(fs.blockOffset(block), make([]byte, fs.sb.BlockSize))
}

func (fs *Filesystem) fillBlock(block uint32, value byte) error {
	data := make([]byte, fs.sb.BlockSize)
	for i := range data {
		data[i] = value
	}
	return fs.disk.Write(fs.blockOffset(block), data)
}
