package fsimage

import (
	"fmt"
	"io"
	"os"
)

// FileMode selects how a backing image file is opened.
type FileMode int

const (
	// ModeRead opens an existing file read-only. Writes and resizes
	// are rejected.
	ModeRead FileMode = iota
	// ModeReadWrite opens the file for random read/write, creating it
	// if it does not exist.
	ModeReadWrite
)

// DiskFile is a random-access wrapper over a single backing file.
// Offsets are absolute; there is no cursor shared between calls.
type DiskFile struct {
	f    *os.File
	path string
	mode FileMode
}

func OpenDisk(path string, mode FileMode) (*DiskFile, error) {
	var f *os.File
	var err error

	switch mode {
	case ModeRead:
		if _, err = os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileDoesNotExist, path)
		}
		f, err = os.OpenFile(path, os.O_RDONLY, 0644)
	case ModeReadWrite:
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCouldNotOpen, path, err)
	}

	return &DiskFile{f: f, path: path, mode: mode}, nil
}

func (d *DiskFile) IsOpen() bool {
	return d.f != nil
}

// Read returns up to size bytes starting at offset. The result is
// truncated to the bytes actually available, which may be short at EOF.
func (d *DiskFile) Read(offset uint64, size uint32) ([]byte, error) {
	if !d.IsOpen() {
		return nil, ErrFileNotOpen
	}

	buf := make([]byte, size)
	n, err := d.f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: offset %d: %v", ErrFileRead, offset, err)
	}
	return buf[:n], nil
}

// Write stores data at offset, extending the file if needed.
func (d *DiskFile) Write(offset uint64, data []byte) error {
	if !d.IsOpen() {
		return ErrFileNotOpen
	}
	if d.mode == ModeRead {
		return ErrFileReadOnly
	}

	n, err := d.f.WriteAt(data, int64(offset))
	if err != nil {
		return fmt.Errorf("%w: offset %d: %v", ErrFileWrite, offset, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: short write at offset %d (%d of %d)", ErrFileWrite, offset, n, len(data))
	}
	return nil
}

// Resize sets the file length to newSize and zero-fills the whole file,
// discarding previous contents.
func (d *DiskFile) Resize(newSize uint64) error {
	if !d.IsOpen() {
		return ErrFileNotOpen
	}
	if d.mode == ModeRead {
		return ErrFileReadOnly
	}

	// Truncating to zero first guarantees the full new length reads
	// back as zeros, not just the grown region.
	if err := d.f.Truncate(0); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	if err := d.f.Truncate(int64(newSize)); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	return nil
}

func (d *DiskFile) Flush() error {
	if !d.IsOpen() {
		return ErrFileNotOpen
	}
	return d.f.Sync()
}

// Close flushes and releases the backing file. Safe to call twice.
func (d *DiskFile) Close() error {
	if !d.IsOpen() {
		return nil
	}
	if d.mode == ModeReadWrite {
		if err := d.f.Sync(); err != nil {
			d.f.Close()
			d.f = nil
			return err
		}
	}
	err := d.f.Close()
	d.f = nil
	return err
}
