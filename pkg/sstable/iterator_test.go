package sstable

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevoDB/blockpack/pkg/common/iterator/bounded"
)

func openTestTable(t *testing.T, blockSize, n int) *Reader {
	t.Helper()
	sstablePath := filepath.Join(t.TempDir(), "iter.sst")
	writeTestTable(t, sstablePath, blockSize, n)

	reader, err := OpenReader(sstablePath)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })
	return reader
}

func TestIteratorFullScan(t *testing.T) {
	reader := openTestTable(t, 128, 300)
	require.Greater(t, reader.BlockCount(), 10)

	iter := reader.NewIterator()
	count := 0
	for iter.SeekToFirst(); iter.Valid(); iter.Next() {
		assert.Equal(t, fmt.Sprintf("key%05d", count), string(iter.Key()))
		assert.Equal(t, fmt.Sprintf("value%05d", count), string(iter.Value()))
		count++
	}
	require.NoError(t, iter.Err())
	assert.Equal(t, 300, count)
	assert.False(t, iter.Next())
	assert.Nil(t, iter.Key())
}

func TestIteratorNextFromUnpositioned(t *testing.T) {
	reader := openTestTable(t, 128, 20)

	iter := reader.NewIterator()
	count := 0
	for iter.Next() {
		count++
	}
	assert.Equal(t, 20, count)
}

func TestIteratorSeek(t *testing.T) {
	reader := openTestTable(t, 100, 100)
	iter := reader.NewIterator()

	tests := []struct {
		target  string
		found   bool
		wantKey string
	}{
		{"", true, "key00000"},
		{"a", true, "key00000"},
		{"key00042", true, "key00042"},
		{"key00042x", true, "key00043"},
		{"key00099", true, "key00099"},
		{"key00099x", false, ""},
		{"z", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.found, iter.Seek([]byte(tt.target)))
			if tt.found {
				assert.Equal(t, tt.wantKey, string(iter.Key()))
			}
		})
	}
}

func TestIteratorSeekAcrossBlockBoundary(t *testing.T) {
	reader := openTestTable(t, 100, 100)
	require.Greater(t, reader.BlockCount(), 1)

	// A target just past the last key of block 0 lands on block 1's first key
	second := reader.BlockInfo(1).FirstKey
	blk, err := reader.ReadBlock(0)
	require.NoError(t, err)
	lastKey, _, err := blk.EntryAt(blk.NumEntries() - 1)
	require.NoError(t, err)

	iter := reader.NewIterator()
	require.True(t, iter.Seek(append(append([]byte(nil), lastKey...), 'x')))
	assert.Equal(t, []byte(second), iter.Key())

	// Iteration continues from there
	remaining := 0
	for ; iter.Valid(); iter.Next() {
		remaining++
	}
	expected := 100 - blk.NumEntries()
	assert.Equal(t, expected, remaining)
}

func TestIteratorBoundedAcrossBlocks(t *testing.T) {
	reader := openTestTable(t, 64, 100)
	require.Greater(t, reader.BlockCount(), 20)

	it := bounded.NewBoundedIterator(reader.NewIterator(), []byte(keyFor(17)), []byte(keyFor(43)))
	var keys []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	require.Len(t, keys, 26)
	assert.Equal(t, keyFor(17), keys[0])
	assert.Equal(t, keyFor(42), keys[len(keys)-1])

	prefix := bounded.NewPrefixIterator(reader.NewIterator(), []byte("key0005"))
	count := 0
	for prefix.SeekToFirst(); prefix.Valid(); prefix.Next() {
		count++
	}
	assert.Equal(t, 10, count)
}
