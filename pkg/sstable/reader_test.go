package sstable

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevoDB/blockpack/pkg/sstable/block"
	"github.com/KevoDB/blockpack/pkg/sstable/footer"
	"github.com/KevoDB/blockpack/pkg/stats"
)

func TestReaderGet(t *testing.T) {
	sstablePath := filepath.Join(t.TempDir(), "get.sst")
	writeTestTable(t, sstablePath, 200, 500)

	reader, err := OpenReader(sstablePath)
	require.NoError(t, err)
	defer reader.Close()

	for i := 0; i < 500; i += 7 {
		value, err := reader.Get([]byte(fmt.Sprintf("key%05d", i)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("value%05d", i), string(value))
	}

	for _, missing := range []string{"a", "key", "key00000a", "key99999", "zzz"} {
		_, err := reader.Get([]byte(missing))
		assert.ErrorIs(t, err, ErrNotFound, missing)
	}
}

func TestReaderConcurrentGet(t *testing.T) {
	sstablePath := filepath.Join(t.TempDir(), "concurrent.sst")
	writeTestTable(t, sstablePath, 512, 1000)

	reader, err := OpenReader(sstablePath)
	require.NoError(t, err)
	defer reader.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := g; i < 1000; i += 8 {
				value, err := reader.Get([]byte(fmt.Sprintf("key%05d", i)))
				if err != nil {
					errs <- err
					return
				}
				if string(value) != fmt.Sprintf("value%05d", i) {
					errs <- fmt.Errorf("key%05d: got %q", i, value)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestReaderReadBlockOutOfRange(t *testing.T) {
	sstablePath := filepath.Join(t.TempDir(), "range.sst")
	writeTestTable(t, sstablePath, 256, 10)

	reader, err := OpenReader(sstablePath)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadBlock(-1)
	assert.Error(t, err)
	_, err = reader.ReadBlock(reader.BlockCount())
	assert.Error(t, err)
}

func TestReaderFooter(t *testing.T) {
	sstablePath := filepath.Join(t.TempDir(), "footer.sst")
	writeTestTable(t, sstablePath, 256, 50)

	reader, err := OpenReader(sstablePath)
	require.NoError(t, err)
	defer reader.Close()

	ft := reader.Footer()
	assert.Equal(t, footer.FooterMagic, ft.Magic)
	assert.Equal(t, uint32(50), ft.NumEntries)
	assert.Equal(t, uint32(reader.BlockCount()), ft.NumBlocks)
}

func corruptFile(t *testing.T, path string, mutate func([]byte) []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, mutate(data), 0644))
}

func TestReaderDetectsCorruption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:footer.FooterSize-1] }},
		{"footer flipped", func(b []byte) []byte { b[len(b)-10] ^= 0xFF; return b }},
		{"index flipped", func(b []byte) []byte { b[len(b)-footer.FooterSize-3] ^= 0xFF; return b }},
		{"leading bytes dropped", func(b []byte) []byte { return b[5:] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sstablePath := filepath.Join(t.TempDir(), "corrupt.sst")
			writeTestTable(t, sstablePath, 256, 20)
			corruptFile(t, sstablePath, tt.mutate)

			_, err := OpenReader(sstablePath)
			assert.ErrorIs(t, err, ErrCorruption)
		})
	}
}

func TestReaderCorruptBlock(t *testing.T) {
	sstablePath := filepath.Join(t.TempDir(), "badblock.sst")
	writeTestTable(t, sstablePath, 64, 6)

	reader, err := OpenReader(sstablePath)
	require.NoError(t, err)
	info := reader.BlockInfo(0)
	require.NoError(t, reader.Close())

	// Claim far more entries than the block holds
	countPos := int(info.BlockOffset) + int(info.BlockSize) - block.SizeOfU16
	corruptFile(t, sstablePath, func(b []byte) []byte {
		b[countPos] = 0xFF
		b[countPos+1] = 0xFF
		return b
	})

	reader, err = OpenReader(sstablePath)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadBlock(0)
	assert.ErrorIs(t, err, ErrCorruption)
	assert.ErrorIs(t, err, block.ErrCorrupt)

	_, err = reader.Get(info.FirstKey)
	assert.ErrorIs(t, err, ErrCorruption)

	iter := reader.NewIterator()
	iter.SeekToFirst()
	assert.False(t, iter.Valid())
	assert.ErrorIs(t, iter.Err(), block.ErrCorrupt)
}

func TestReaderMissingFile(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "nope.sst"))
	assert.Error(t, err)
}

func TestReaderStats(t *testing.T) {
	sstablePath := filepath.Join(t.TempDir(), "stats.sst")
	writeTestTable(t, sstablePath, 256, 50)

	collector := stats.NewAtomicCollector()
	reader, err := OpenReader(sstablePath, WithReaderStats(collector))
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Get([]byte("key00010"))
	require.NoError(t, err)
	_, err = reader.Get([]byte("key00010x"))
	require.ErrorIs(t, err, ErrNotFound)
	_, err = reader.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)

	got := reader.Stats().GetStats()
	assert.Equal(t, uint64(1), got["open_ops"])
	assert.Equal(t, uint64(3), got["get_ops"])
	assert.Equal(t, uint64(2), got["get_miss_ops"])
	assert.Equal(t, uint64(2), got["block_read_ops"])
	assert.NotZero(t, got["total_bytes_read"])
}

func TestReaderStatsCountsCorruptOpen(t *testing.T) {
	sstablePath := filepath.Join(t.TempDir(), "corrupt.sst")
	writeTestTable(t, sstablePath, 256, 5)
	corruptFile(t, sstablePath, func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b })

	collector := stats.NewAtomicCollector()
	_, err := OpenReader(sstablePath, WithReaderStats(collector))
	require.ErrorIs(t, err, ErrCorruption)

	errs := collector.GetStats()["errors"].(map[string]uint64)
	assert.Equal(t, uint64(1), errs[stats.ErrTypeCorruption])
}
