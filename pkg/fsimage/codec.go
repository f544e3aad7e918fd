package fsimage

import (
	"encoding/binary"
	"fmt"
)

// All integers stored in the image are little-endian.

func ReadUint32(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("ReadUint32: expected 4 bytes, got %d", len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

func ReadUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("ReadUint64: expected 8 bytes, got %d", len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}

func WriteUint32(value uint32) []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, value)
	return data
}

func WriteUint64(value uint64) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, value)
	return data
}
