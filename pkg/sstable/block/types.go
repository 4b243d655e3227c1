package block

import (
	"bytes"
	"errors"
	"math"
)

const (
	// SizeOfU16 is the width of every length, offset and count field in a block
	SizeOfU16 = 2
	// MaxFieldLen is the largest key or value a single entry can hold
	MaxFieldLen = math.MaxUint16
	// DefaultBlockSize is the target encoded size for each block
	DefaultBlockSize = 4 * 1024 // 4KB
)

// ErrCorrupt is returned when encoded block bytes cannot be decoded
var ErrCorrupt = errors.New("corrupt block")

// Key is a borrowed view of a key. The block never retains a Key past the
// call it was passed to.
type Key []byte

// KeyVec is a key owned by its holder.
type KeyVec []byte

// ToKeyVec copies the borrowed key into an owned buffer
func (k Key) ToKeyVec() KeyVec {
	return append(KeyVec(nil), k...)
}

// Compare compares the key with other lexicographically
func (k Key) Compare(other []byte) int {
	return bytes.Compare(k, other)
}

// AsKey returns a borrowed view of the owned key
func (k KeyVec) AsKey() Key {
	return Key(k)
}

// IsEmpty reports whether the key holds no bytes
func (k KeyVec) IsEmpty() bool {
	return len(k) == 0
}
