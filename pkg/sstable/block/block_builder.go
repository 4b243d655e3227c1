package block

import (
	"encoding/binary"
	"fmt"
)

// Builder packs sorted key/value entries into a block until its size budget
// is reached. Keys must be added in sorted order; the builder does not check.
type Builder struct {
	data      []byte
	offsets   []uint16
	blockSize int
	firstKey  KeyVec
	built     bool
}

// NewBuilder creates a new block builder targeting blockSize encoded bytes
func NewBuilder(blockSize int) *Builder {
	if blockSize <= 0 {
		panic(fmt.Sprintf("block size must be positive, got %d", blockSize))
	}
	return &Builder{
		data:      make([]byte, 0, blockSize),
		offsets:   make([]uint16, 0, blockSize/(4*SizeOfU16)),
		blockSize: blockSize,
	}
}

// entrySize is the encoded size of one entry including its offset slot
func entrySize(key Key, value []byte) int {
	return SizeOfU16 + len(key) + SizeOfU16 + len(value) + SizeOfU16
}

// Add appends a key-value pair to the block. It returns false without
// modifying the block when the entry would push the encoded size past the
// budget. An empty block always accepts its first entry, however large.
func (b *Builder) Add(key Key, value []byte) bool {
	b.checkUsable()
	if len(key) == 0 {
		panic("key must not be empty")
	}
	if len(key) > MaxFieldLen {
		panic(fmt.Sprintf("key length %d exceeds maximum %d", len(key), MaxFieldLen))
	}
	if len(value) > MaxFieldLen {
		panic(fmt.Sprintf("value length %d exceeds maximum %d", len(value), MaxFieldLen))
	}

	if !b.IsEmpty() {
		if b.EstimatedSize()+entrySize(key, value) > b.blockSize {
			return false
		}
		// The new offset must fit in a uint16 whatever the budget
		if len(b.data) > MaxFieldLen {
			return false
		}
	}

	b.offsets = append(b.offsets, uint16(len(b.data)))
	b.data = binary.BigEndian.AppendUint16(b.data, uint16(len(key)))
	b.data = append(b.data, key...)
	b.data = binary.BigEndian.AppendUint16(b.data, uint16(len(value)))
	b.data = append(b.data, value...)

	if b.firstKey.IsEmpty() {
		b.firstKey = key.ToKeyVec()
	}
	return true
}

// IsEmpty reports whether no entry has been accepted yet
func (b *Builder) IsEmpty() bool {
	return len(b.offsets) == 0
}

// Entries returns the number of entries in the block
func (b *Builder) Entries() int {
	return len(b.offsets)
}

// FirstKey returns the first key added to the block, or nil if empty
func (b *Builder) FirstKey() KeyVec {
	return b.firstKey
}

// EstimatedSize returns the encoded size of the block if it were built now
func (b *Builder) EstimatedSize() int {
	return len(b.data) + len(b.offsets)*SizeOfU16 + SizeOfU16
}

// Build finalizes the block. The builder hands its buffers to the returned
// Block and cannot be used afterwards.
func (b *Builder) Build() *Block {
	b.checkUsable()
	if b.IsEmpty() {
		panic("block should not be empty")
	}

	blk := &Block{
		data:    b.data,
		offsets: b.offsets,
	}
	b.data = nil
	b.offsets = nil
	b.built = true
	return blk
}

func (b *Builder) checkUsable() {
	if b.built {
		panic("block builder used after Build")
	}
}
