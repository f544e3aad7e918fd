package fsimage

import "errors"

// I/O layer errors.
var (
	ErrFileDoesNotExist = errors.New("file does not exist")
	ErrCouldNotOpen     = errors.New("could not open file")
	ErrFileNotOpen      = errors.New("file is not open")
	ErrFileReadOnly     = errors.New("file opened read-only")
	ErrFileRead         = errors.New("file read failed")
	ErrFileWrite        = errors.New("file write failed")
)

// Filesystem state errors.
var (
	ErrNotFormatted      = errors.New("filesystem is not formatted")
	ErrInvalidSize       = errors.New("invalid filesystem size")
	ErrCouldNotResize    = errors.New("could not resize image")
	ErrInvalidSuperblock = errors.New("invalid superblock")
	ErrInvalidINode      = errors.New("invalid inode record")
	ErrInvalidBlock      = errors.New("invalid block read")
)

// Capacity errors.
var (
	ErrNoFreeINodes = errors.New("could not allocate inode")
	ErrNoFreeBlocks = errors.New("could not allocate block")
	ErrFileTooLarge = errors.New("file too large")
)

// Path errors.
var (
	ErrEmptyPath         = errors.New("empty path")
	ErrPathNotFound      = errors.New("path not found")
	ErrNotADirectory     = errors.New("not a directory")
	ErrNoParentDirectory = errors.New("no parent directory")
	ErrChildNotFound     = errors.New("child not found")
)

// Block map errors.
var ErrBlockNotAttached = errors.New("block not attached to inode")
