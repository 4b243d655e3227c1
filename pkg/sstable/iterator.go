package sstable

import (
	"context"
	"fmt"

	"github.com/KevoDB/blockpack/pkg/common/iterator"
	"github.com/KevoDB/blockpack/pkg/sstable/block"
	"github.com/KevoDB/blockpack/pkg/stats"
)

var _ iterator.Iterator = (*Iterator)(nil)

// Iterator iterates over key-value pairs in an SSTable, loading one data
// block at a time. An Iterator is not safe for concurrent use; create one
// per goroutine.
type Iterator struct {
	reader    *Reader
	blockIdx  int
	blockIter *block.Iterator
	err       error
}

// SeekToFirst positions the iterator at the first key
func (it *Iterator) SeekToFirst() {
	it.err = nil
	if !it.loadBlock(0) {
		return
	}
	it.blockIter.SeekToFirst()
	if it.checkBlockErr() {
		it.skipExhaustedBlocks()
	}
}

// Seek positions the iterator at the first key >= target
func (it *Iterator) Seek(target []byte) bool {
	it.err = nil
	it.reader.stats.TrackOperation(stats.OpSeek)

	idx := it.reader.findBlock(target)
	if idx < 0 {
		idx = 0
	}
	if !it.loadBlock(idx) {
		return false
	}

	// A miss in this block means the answer is the next block's first key
	if !it.blockIter.Seek(target) && it.checkBlockErr() {
		it.skipExhaustedBlocks()
	}
	return it.Valid()
}

// Next advances the iterator to the next key. An unpositioned iterator moves
// to the first key.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.blockIter == nil {
		if it.blockIdx >= len(it.reader.index) {
			return false
		}
		it.SeekToFirst()
		return it.Valid()
	}

	if !it.blockIter.Next() && it.checkBlockErr() {
		it.skipExhaustedBlocks()
	}
	return it.Valid()
}

// Key returns the current key
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.blockIter.Key()
}

// Value returns the current value
func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.blockIter.Value()
}

// Valid returns true if the iterator is positioned at a valid entry
func (it *Iterator) Valid() bool {
	return it.err == nil && it.blockIter != nil && it.blockIter.Valid()
}

// Err returns the error that stopped iteration, if any
func (it *Iterator) Err() error {
	return it.err
}

// loadBlock positions the iterator on block idx, unpositioned within it
func (it *Iterator) loadBlock(idx int) bool {
	it.blockIdx = idx
	it.blockIter = nil
	if idx >= len(it.reader.index) {
		return false
	}

	blk, err := it.reader.ReadBlock(idx)
	if err != nil {
		it.err = err
		return false
	}
	it.blockIter = block.NewIterator(blk)
	return true
}

// checkBlockErr records a corruption error from the block iterator and
// reports whether iteration may continue
func (it *Iterator) checkBlockErr() bool {
	if err := it.blockIter.Err(); err != nil {
		it.reader.stats.TrackError(stats.ErrTypeCorruption)
		it.reader.metrics.RecordCorruption(context.Background(), "entry", it.reader.tableID)
		it.err = fmt.Errorf("%w: block %d: %w", ErrCorruption, it.blockIdx, err)
		return false
	}
	return true
}

// skipExhaustedBlocks moves forward until positioned on an entry or past the
// last block
func (it *Iterator) skipExhaustedBlocks() {
	for it.blockIter != nil && !it.blockIter.Valid() {
		if !it.loadBlock(it.blockIdx + 1) {
			return
		}
		it.blockIter.SeekToFirst()
		if !it.checkBlockErr() {
			return
		}
	}
}
