package fsimage

import "fmt"

const (
	// UnusedLink in any link field means "no block".
	UnusedLink = 0xFFFFFFFF
	// NumDirectLinks is the number of direct block slots per inode.
	NumDirectLinks = 5
	// INodeSize is the on-disk size of one inode record.
	INodeSize = 41
)

/*
 * offset | size | item
 * ====================
 *      0 |    4 | id
 *      4 |    4 | link count
 *      8 |    4 | size in bytes
 *     12 |  4x5 | direct links
 *     32 |    4 | single indirect link
 *     36 |    4 | double indirect link
 *     40 |    1 | is directory (0 or 1)
 * ====================
 * TOTAL = 41 bytes
 */

type INode struct {
	ID        uint32
	Links     uint32
	Size      uint32
	Direct    [NumDirectLinks]uint32
	Indirect1 uint32
	Indirect2 uint32
	Dir       bool
}

// NewINode constructs a freshly allocated inode with a single link and
// no attached blocks.
func NewINode(id uint32, dir bool) *INode {
	n := &INode{
		ID:        id,
		Links:     1,
		Indirect1: UnusedLink,
		Indirect2: UnusedLink,
		Dir:       dir,
	}
	for i := range n.Direct {
		n.Direct[i] = UnusedLink
	}
	return n
}

func INodeFromBytes(data []byte) (*INode, error) {
	if len(data) != INodeSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidINode, INodeSize, len(data))
	}

	var n INode
	offset := 0
	next := func() uint32 {
		v, _ := ReadUint32(data[offset : offset+4])
		offset += 4
		return v
	}

	n.ID = next()
	n.Links = next()
	n.Size = next()
	for i := range n.Direct {
		n.Direct[i] = next()
	}
	n.Indirect1 = next()
	n.Indirect2 = next()

	switch data[offset] {
	case 0:
		n.Dir = false
	case 1:
		n.Dir = true
	default:
		return nil, fmt.Errorf("%w: bad directory flag %d", ErrInvalidINode, data[offset])
	}

	return &n, nil
}

func (n *INode) Bytes() []byte {
	data := make([]byte, 0, INodeSize)

	data = append(data, WriteUint32(n.ID)...)
	data = append(data, WriteUint32(n.Links)...)
	data = append(data, WriteUint32(n.Size)...)
	for _, link := range n.Direct {
		data = append(data, WriteUint32(link)...)
	}
	data = append(data, WriteUint32(n.Indirect1)...)
	data = append(data, WriteUint32(n.Indirect2)...)

	if n.Dir {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}

	return data
}

func (n *INode) IsDir() bool {
	return n.Dir
}

// AddDirectLink stores block in the first free direct slot. The caller
// must fall back to the indirect chain when this fails.
func (n *INode) AddDirectLink(block uint32) error {
	for i := range n.Direct {
		if n.Direct[i] == UnusedLink {
			n.Direct[i] = block
			return nil
		}
	}
	return fmt.Errorf("no free direct link slot for block %d", block)
}

func (n *INode) RemoveDirectLink(block uint32) error {
	for i := range n.Direct {
		if n.Direct[i] == block {
			n.Direct[i] = UnusedLink
			return nil
		}
	}
	return fmt.Errorf("block %d is not a direct link", block)
}

func (n *INode) ClearDirectLinks() {
	for i := range n.Direct {
		n.Direct[i] = UnusedLink
	}
}

func (n *INode) AddIndirect1(block uint32) error {
	if n.Indirect1 != UnusedLink {
		return fmt.Errorf("single indirect link already set to %d", n.Indirect1)
	}
	n.Indirect1 = block
	return nil
}

func (n *INode) RemoveIndirect1() {
	n.Indirect1 = UnusedLink
}

func (n *INode) AddIndirect2(block uint32) error {
	if n.Indirect2 != UnusedLink {
		return fmt.Errorf("double indirect link already set to %d", n.Indirect2)
	}
	n.Indirect2 = block
	return nil
}

func (n *INode) RemoveIndirect2() {
	n.Indirect2 = UnusedLink
}

func (n *INode) AddLink() {
	n.Links++
}

// RemoveLink decrements the link count and reports whether the inode is
// now unreferenced.
func (n *INode) RemoveLink() bool {
	if n.Links > 0 {
		n.Links--
	}
	return n.Links == 0
}

func (n *INode) AddSize(bytes uint32) {
	n.Size += bytes
}

func (n *INode) RemoveSize(bytes uint32) error {
	if bytes > n.Size {
		return fmt.Errorf("cannot shrink inode %d by %d bytes, size is %d", n.ID, bytes, n.Size)
	}
	n.Size -= bytes
	return nil
}
