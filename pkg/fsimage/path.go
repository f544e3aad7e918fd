package fsimage

import (
	"fmt"
	"strings"
)

// splitPath breaks a path on '/' and drops empty segments, so
// "/a//b/" and "a/b" both resolve segment by segment.
func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// walkPath resolves the given segments starting from node. A ".."
// segment is an ordinary child lookup: directories store their parent
// as a literal ".." entry.
func (fs *Filesystem) walkPath(node *INode, parts []string) (*INode, error) {
	for _, part := range parts {
		if part == "." {
			continue
		}

		if part == ".." {
			parent, ok, err := fs.findChildID(node, "..")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrNoParentDirectory
			}
			next, err := fs.readINode(parent)
			if err != nil {
				return nil, err
			}
			node = next
			continue
		}

		if !node.IsDir() {
			return nil, fmt.Errorf("%w: path component %q", ErrNotADirectory, part)
		}

		id, ok, err := fs.findChildID(node, part)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, part)
		}

		next, err := fs.readINode(id)
		if err != nil {
			return nil, err
		}
		node = next
	}
	return node, nil
}

func (fs *Filesystem) startNode(path string) (*INode, error) {
	if path[0] == '/' {
		return fs.readINode(fs.sb.RootNodeID)
	}
	return fs.current, nil
}

// resolvePath returns the inode the path names.
func (fs *Filesystem) resolvePath(path string) (*INode, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	node, err := fs.startNode(path)
	if err != nil {
		return nil, err
	}
	return fs.walkPath(node, splitPath(path))
}

// resolveParent resolves all but the final segment of the path.
func (fs *Filesystem) resolveParent(path string) (*INode, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	node, err := fs.startNode(path)
	if err != nil {
		return nil, err
	}

	parts := splitPath(path)
	if len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	return fs.walkPath(node, parts)
}
