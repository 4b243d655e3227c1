package block

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockIteratorScan(t *testing.T) {
	const numEntries = 50
	builder := NewBuilder(DefaultBlockSize)
	for i := 0; i < numEntries; i++ {
		require.True(t, builder.Add(Key(fmt.Sprintf("key%03d", i)), []byte(fmt.Sprintf("value%03d", i))))
	}
	blk := builder.Build()

	iter := NewIterator(blk)
	count := 0
	for iter.SeekToFirst(); iter.Valid(); iter.Next() {
		assert.Equal(t, fmt.Sprintf("key%03d", count), string(iter.Key()))
		assert.Equal(t, fmt.Sprintf("value%03d", count), string(iter.Value()))
		assert.Equal(t, count, iter.Index())
		count++
	}
	require.NoError(t, iter.Err())
	assert.Equal(t, numEntries, count)
}

func TestBlockIteratorNextFromUnpositioned(t *testing.T) {
	blk := buildBlock(t, DefaultBlockSize, "a", "1", "b", "2")

	iter := NewIterator(blk)
	assert.False(t, iter.Valid())
	require.True(t, iter.Next())
	assert.Equal(t, "a", string(iter.Key()))
	require.True(t, iter.Next())
	assert.Equal(t, "b", string(iter.Key()))
	assert.False(t, iter.Next())
	assert.False(t, iter.Next())
}

func TestBlockIteratorSeek(t *testing.T) {
	blk := buildBlock(t, DefaultBlockSize,
		"apple", "1",
		"banana", "2",
		"cherry", "3",
		"grape", "4",
	)
	iter := NewIterator(blk)

	tests := []struct {
		target  string
		found   bool
		wantKey string
	}{
		{"a", true, "apple"},
		{"apple", true, "apple"},
		{"b", true, "banana"},
		{"cherry", true, "cherry"},
		{"date", true, "grape"},
		{"grape", true, "grape"},
		{"zebra", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.found, iter.Seek([]byte(tt.target)))
			if tt.found {
				assert.Equal(t, tt.wantKey, string(iter.Key()))
			} else {
				assert.False(t, iter.Valid())
			}
		})
	}

	require.True(t, iter.Seek([]byte("banana")))
	require.True(t, iter.Next())
	assert.Equal(t, "cherry", string(iter.Key()))
	assert.Equal(t, "3", string(iter.Value()))
}

func TestBlockIteratorSeekToLast(t *testing.T) {
	blk := buildBlock(t, DefaultBlockSize, "a", "1", "b", "2", "c", "3")

	iter := NewIterator(blk)
	iter.SeekToLast()
	require.True(t, iter.Valid())
	assert.Equal(t, "c", string(iter.Key()))
	assert.False(t, iter.Next())
}

func TestBlockIteratorEmptyBlock(t *testing.T) {
	blk, err := Decode([]byte{0x00, 0x00})
	require.NoError(t, err)

	iter := NewIterator(blk)
	iter.SeekToFirst()
	assert.False(t, iter.Valid())
	iter.SeekToLast()
	assert.False(t, iter.Valid())
	assert.False(t, iter.Seek([]byte("a")))
	assert.NoError(t, iter.Err())
}

func TestBlockIteratorCorruptEntry(t *testing.T) {
	raw := []byte{0x00, 0x09, 'a', 0x00, 0x00, 0x00, 0x00, 0x01}
	blk, err := Decode(raw)
	require.NoError(t, err)

	iter := NewIterator(blk)
	iter.SeekToFirst()
	assert.False(t, iter.Valid())
	assert.ErrorIs(t, iter.Err(), ErrCorrupt)
	assert.False(t, iter.Next())

	assert.False(t, iter.Seek([]byte("a")))
	assert.ErrorIs(t, iter.Err(), ErrCorrupt)
}
