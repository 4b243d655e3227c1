// Package bounded limits an iterator to a half-open key range
package bounded

import (
	"bytes"

	"github.com/KevoDB/blockpack/pkg/common/iterator"
)

// BoundedIterator wraps an iterator and limits it to the range [start, end).
// A nil bound leaves that side of the range open.
type BoundedIterator struct {
	iterator.Iterator
	start []byte
	end   []byte
}

// NewBoundedIterator creates a new bounded iterator
func NewBoundedIterator(iter iterator.Iterator, startKey, endKey []byte) *BoundedIterator {
	bi := &BoundedIterator{Iterator: iter}
	bi.SetBounds(startKey, endKey)
	return bi
}

// NewPrefixIterator creates an iterator over the keys that start with prefix
func NewPrefixIterator(iter iterator.Iterator, prefix []byte) *BoundedIterator {
	if len(prefix) == 0 {
		return NewBoundedIterator(iter, nil, nil)
	}
	return NewBoundedIterator(iter, prefix, prefixSuccessor(prefix))
}

// prefixSuccessor returns the smallest key greater than every key with the
// given prefix, or nil when no such key exists
func prefixSuccessor(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// SetBounds sets the start and end bounds for the iterator
func (b *BoundedIterator) SetBounds(start, end []byte) {
	// Copy the bounds so callers may reuse their buffers
	b.start = nil
	if start != nil {
		b.start = bytes.Clone(start)
	}
	b.end = nil
	if end != nil {
		b.end = bytes.Clone(end)
	}
}

// SeekToFirst positions at the first key in the bounded range
func (b *BoundedIterator) SeekToFirst() {
	if b.start != nil {
		b.Iterator.Seek(b.start)
	} else {
		b.Iterator.SeekToFirst()
	}
}

// Seek positions at the first key >= target within bounds
func (b *BoundedIterator) Seek(target []byte) bool {
	if b.start != nil && bytes.Compare(target, b.start) < 0 {
		target = b.start
	}
	b.Iterator.Seek(target)
	return b.Valid()
}

// Next advances to the next key within bounds
func (b *BoundedIterator) Next() bool {
	if !b.Valid() {
		return false
	}
	b.Iterator.Next()
	return b.Valid()
}

// Valid returns true if the iterator is positioned at a valid entry within bounds
func (b *BoundedIterator) Valid() bool {
	if !b.Iterator.Valid() {
		return false
	}
	key := b.Iterator.Key()
	if b.start != nil && bytes.Compare(key, b.start) < 0 {
		return false
	}
	return b.end == nil || bytes.Compare(key, b.end) < 0
}

// Key returns the current key if within bounds
func (b *BoundedIterator) Key() []byte {
	if !b.Valid() {
		return nil
	}
	return b.Iterator.Key()
}

// Value returns the current value if within bounds
func (b *BoundedIterator) Value() []byte {
	if !b.Valid() {
		return nil
	}
	return b.Iterator.Value()
}
