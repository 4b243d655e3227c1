// Package sstable writes and reads sorted-string table files made of
// fixed-budget blocks. File layout:
//
//	| data block 1 | ... | data block N | index | footer |
//
// Each index entry locates one data block by its first key:
//
//	| key_len (2B) | first key | block offset (8B) | block size (4B) |
package sstable

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/KevoDB/blockpack/pkg/sstable/block"
)

const (
	// DefaultBlockSize is the target size for data blocks
	DefaultBlockSize = block.DefaultBlockSize
	// indexLocatorSize is the offset and size trailing each index key
	indexLocatorSize = 8 + 4
)

var (
	// ErrNotFound indicates a key was not found in the SSTable
	ErrNotFound = errors.New("key not found in sstable")
	// ErrCorruption indicates data corruption was detected
	ErrCorruption = errors.New("sstable corruption detected")
	// ErrOutOfOrder indicates a key was added at or before the previous key
	ErrOutOfOrder = errors.New("keys must be added in strictly increasing order")
	// ErrEmptyKey indicates an attempt to add an empty key
	ErrEmptyKey = errors.New("key must not be empty")
)

// IndexEntry locates a data block within the file
type IndexEntry struct {
	// BlockOffset is the offset of the block in the file
	BlockOffset uint64
	// BlockSize is the size of the encoded block in bytes
	BlockSize uint32
	// FirstKey is the first key in the block
	FirstKey block.KeyVec
}

func appendIndexEntry(buf []byte, e IndexEntry) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(e.FirstKey)))
	buf = append(buf, e.FirstKey...)
	buf = binary.BigEndian.AppendUint64(buf, e.BlockOffset)
	return binary.BigEndian.AppendUint32(buf, e.BlockSize)
}

func decodeIndex(data []byte) ([]IndexEntry, error) {
	var entries []IndexEntry
	for pos := 0; pos < len(data); {
		if pos+block.SizeOfU16 > len(data) {
			return nil, fmt.Errorf("%w: truncated index key length at %d", ErrCorruption, pos)
		}
		keyLen := int(binary.BigEndian.Uint16(data[pos:]))
		pos += block.SizeOfU16

		if pos+keyLen+indexLocatorSize > len(data) {
			return nil, fmt.Errorf("%w: truncated index entry at %d", ErrCorruption, pos)
		}
		entry := IndexEntry{
			FirstKey:    block.Key(data[pos : pos+keyLen]).ToKeyVec(),
			BlockOffset: binary.BigEndian.Uint64(data[pos+keyLen:]),
			BlockSize:   binary.BigEndian.Uint32(data[pos+keyLen+8:]),
		}
		pos += keyLen + indexLocatorSize
		entries = append(entries, entry)
	}
	return entries, nil
}
