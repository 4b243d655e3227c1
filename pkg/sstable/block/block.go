package block

import (
	"encoding/binary"
	"fmt"
)

// Block is a finished, immutable run of sorted entries plus the offset of
// each entry within the data section. Encoded layout:
//
//	| entry 1 | ... | entry N | offset 1 | ... | offset N | N |
//
// where entry = | key_len | key | value_len | value | and every length,
// offset and count is a big-endian uint16.
type Block struct {
	data    []byte
	offsets []uint16
}

// Encode serializes the block
func (b *Block) Encode() []byte {
	buf := make([]byte, 0, b.EncodedSize())
	buf = append(buf, b.data...)
	for _, offset := range b.offsets {
		buf = binary.BigEndian.AppendUint16(buf, offset)
	}
	return binary.BigEndian.AppendUint16(buf, uint16(len(b.offsets)))
}

// EncodedSize returns the length of the slice Encode produces
func (b *Block) EncodedSize() int {
	return len(b.data) + len(b.offsets)*SizeOfU16 + SizeOfU16
}

// Decode parses an encoded block. The returned block owns its memory and does
// not alias raw. Offsets are taken as given and are not checked against entry
// boundaries.
func Decode(raw []byte) (*Block, error) {
	if len(raw) < SizeOfU16 {
		return nil, fmt.Errorf("%w: %d bytes is too small for the entry count", ErrCorrupt, len(raw))
	}

	countPos := len(raw) - SizeOfU16
	count := int(binary.BigEndian.Uint16(raw[countPos:]))

	dataEnd := countPos - count*SizeOfU16
	if dataEnd < 0 {
		return nil, fmt.Errorf("%w: %d entries need %d bytes, block has %d",
			ErrCorrupt, count, SizeOfU16+count*SizeOfU16, len(raw))
	}

	offsets := make([]uint16, count)
	for i := range offsets {
		offsets[i] = binary.BigEndian.Uint16(raw[dataEnd+i*SizeOfU16:])
	}

	data := make([]byte, dataEnd)
	copy(data, raw[:dataEnd])

	return &Block{
		data:    data,
		offsets: offsets,
	}, nil
}

// Data returns the data section. Callers must not modify it.
func (b *Block) Data() []byte {
	return b.data
}

// Offsets returns the offset table. Callers must not modify it.
func (b *Block) Offsets() []uint16 {
	return b.offsets
}

// NumEntries returns the number of entries in the block
func (b *Block) NumEntries() int {
	return len(b.offsets)
}

// EntryAt decodes the i-th entry. The returned slices alias the block.
func (b *Block) EntryAt(i int) (key, value []byte, err error) {
	if i < 0 || i >= len(b.offsets) {
		return nil, nil, fmt.Errorf("entry index %d out of range [0, %d)", i, len(b.offsets))
	}

	pos := int(b.offsets[i])
	key, pos, err = b.readField(pos)
	if err != nil {
		return nil, nil, fmt.Errorf("entry %d key: %w", i, err)
	}
	value, _, err = b.readField(pos)
	if err != nil {
		return nil, nil, fmt.Errorf("entry %d value: %w", i, err)
	}
	return key, value, nil
}

// readField reads a length-prefixed field at pos and returns it with the
// position just past it
func (b *Block) readField(pos int) ([]byte, int, error) {
	if pos+SizeOfU16 > len(b.data) {
		return nil, 0, fmt.Errorf("%w: length prefix at %d past data end %d", ErrCorrupt, pos, len(b.data))
	}
	n := int(binary.BigEndian.Uint16(b.data[pos:]))
	pos += SizeOfU16
	if pos+n > len(b.data) {
		return nil, 0, fmt.Errorf("%w: field of %d bytes at %d past data end %d", ErrCorrupt, n, pos, len(b.data))
	}
	return b.data[pos : pos+n : pos+n], pos + n, nil
}
