package block

import (
	"bytes"

	"github.com/KevoDB/blockpack/pkg/common/iterator"
)

var _ iterator.Iterator = (*Iterator)(nil)

// Iterator walks the entries of a block in order. Key and Value alias the
// block's data and stay valid for the life of the block.
type Iterator struct {
	block      *Block
	idx        int
	currentKey []byte
	currentVal []byte
	err        error
}

// NewIterator creates an iterator over b. It starts unpositioned.
func NewIterator(b *Block) *Iterator {
	return &Iterator{
		block: b,
		idx:   -1,
	}
}

// SeekToFirst positions the iterator at the first entry
func (it *Iterator) SeekToFirst() {
	it.seekTo(0)
}

// SeekToLast positions the iterator at the last entry
func (it *Iterator) SeekToLast() {
	it.seekTo(it.block.NumEntries() - 1)
}

// Seek positions the iterator at the first key >= target and reports
// whether such a key exists
func (it *Iterator) Seek(target []byte) bool {
	it.err = nil

	// Binary search over the offset table
	left, right := 0, it.block.NumEntries()
	for left < right {
		mid := int(uint(left+right) >> 1)
		key, _, err := it.block.EntryAt(mid)
		if err != nil {
			it.invalidate(err)
			return false
		}
		if bytes.Compare(key, target) < 0 {
			left = mid + 1
		} else {
			right = mid
		}
	}

	it.seekTo(left)
	return it.Valid()
}

// Next advances the iterator to the next entry. An unpositioned iterator
// moves to the first entry.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.idx < 0 {
		it.SeekToFirst()
		return it.Valid()
	}
	if !it.Valid() {
		return false
	}
	it.seekTo(it.idx + 1)
	return it.Valid()
}

// Key returns the current key
func (it *Iterator) Key() []byte {
	return it.currentKey
}

// Value returns the current value
func (it *Iterator) Value() []byte {
	return it.currentVal
}

// Valid returns true if the iterator is positioned at an entry
func (it *Iterator) Valid() bool {
	return it.err == nil && it.currentKey != nil
}

// Err returns the corruption error that stopped the iterator, if any
func (it *Iterator) Err() error {
	return it.err
}

// Index returns the position of the current entry in the offset table
func (it *Iterator) Index() int {
	return it.idx
}

func (it *Iterator) seekTo(idx int) {
	it.err = nil
	if idx < 0 || idx >= it.block.NumEntries() {
		it.idx = it.block.NumEntries()
		it.currentKey = nil
		it.currentVal = nil
		return
	}

	key, val, err := it.block.EntryAt(idx)
	if err != nil {
		it.invalidate(err)
		return
	}
	it.idx = idx
	it.currentKey = key
	it.currentVal = val
}

func (it *Iterator) invalidate(err error) {
	it.err = err
	it.currentKey = nil
	it.currentVal = nil
}
