package sstable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/KevoDB/blockpack/pkg/common/log"
	"github.com/KevoDB/blockpack/pkg/sstable/block"
	"github.com/KevoDB/blockpack/pkg/sstable/footer"
	"github.com/KevoDB/blockpack/pkg/stats"
	"github.com/KevoDB/blockpack/pkg/telemetry"
)

// IOManager handles file I/O operations for SSTable
type IOManager struct {
	path     string
	file     *os.File
	fileSize int64
	mu       sync.RWMutex
}

// NewIOManager creates a new IOManager for the given file path
func NewIOManager(path string) (*IOManager, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &IOManager{
		path:     path,
		file:     file,
		fileSize: stat.Size(),
	}, nil
}

// ReadFull reads exactly size bytes at offset
func (io *IOManager) ReadFull(offset uint64, size uint32) ([]byte, error) {
	io.mu.RLock()
	defer io.mu.RUnlock()

	if io.file == nil {
		return nil, fmt.Errorf("file is closed")
	}

	data := make([]byte, size)
	n, err := io.file.ReadAt(data, int64(offset))
	if n == len(data) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %d bytes at offset %d: %w", size, offset, err)
	}
	return nil, fmt.Errorf("%w: short read of %d/%d bytes at offset %d", ErrCorruption, n, size, offset)
}

// GetFileSize returns the size of the file
func (io *IOManager) GetFileSize() int64 {
	return io.fileSize
}

// Close closes the file
func (io *IOManager) Close() error {
	io.mu.Lock()
	defer io.mu.Unlock()

	if io.file == nil {
		return nil
	}

	err := io.file.Close()
	io.file = nil
	return err
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithReaderLogger sets the logger used to report corruption
func WithReaderLogger(logger log.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithReaderStats sets the collector that receives read statistics
func WithReaderStats(collector stats.Collector) ReaderOption {
	return func(r *Reader) {
		r.stats = collector
	}
}

// WithReaderTelemetry sets the telemetry that receives lookup and block read metrics
func WithReaderTelemetry(tel telemetry.Telemetry) ReaderOption {
	return func(r *Reader) {
		r.metrics = NewSSTableMetrics(tel)
	}
}

// Reader reads an SSTable file. It is safe for concurrent use.
type Reader struct {
	ioManager *IOManager
	index     []IndexEntry
	ft        *footer.Footer
	logger    log.Logger
	stats     stats.Collector
	metrics   SSTableMetrics
	tableID   string
}

// OpenReader opens an SSTable file and loads its index
func OpenReader(path string, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{
		logger:  log.Nop(),
		stats:   stats.NewAtomicCollector(),
		metrics: NewSSTableMetrics(nil),
		tableID: filepath.Base(path),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithField("sstable", r.tableID)

	_, end := r.metrics.StartSpan(context.Background(), telemetry.OpTypeOpen, r.tableID)
	defer end()

	ioManager, err := NewIOManager(path)
	if err != nil {
		return nil, err
	}
	r.ioManager = ioManager

	if err := r.load(); err != nil {
		ioManager.Close()
		if errors.Is(err, ErrCorruption) {
			r.stats.TrackError(stats.ErrTypeCorruption)
			r.metrics.RecordCorruption(context.Background(), "file", r.tableID)
		} else {
			r.stats.TrackError(stats.ErrTypeIO)
		}
		r.logger.Error("failed to open sstable: %v", err)
		return nil, err
	}
	r.stats.TrackOperation(stats.OpOpen)

	return r, nil
}

func (r *Reader) load() error {
	fileSize := r.ioManager.GetFileSize()
	if fileSize < int64(footer.FooterSize) {
		return fmt.Errorf("%w: file too small to be valid SSTable: %d bytes", ErrCorruption, fileSize)
	}

	footerData, err := r.ioManager.ReadFull(uint64(fileSize-footer.FooterSize), footer.FooterSize)
	if err != nil {
		return fmt.Errorf("failed to read footer: %w", err)
	}

	ft, err := footer.Decode(footerData)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruption, err)
	}

	if ft.IndexOffset+uint64(ft.IndexSize)+footer.FooterSize != uint64(fileSize) {
		return fmt.Errorf("%w: index [%d, +%d) does not end at footer", ErrCorruption, ft.IndexOffset, ft.IndexSize)
	}

	indexData, err := r.ioManager.ReadFull(ft.IndexOffset, ft.IndexSize)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	if sum := xxhash.Sum64(indexData); sum != ft.IndexChecksum {
		return fmt.Errorf("%w: index checksum mismatch: footer has %d, calculated %d",
			ErrCorruption, ft.IndexChecksum, sum)
	}

	index, err := decodeIndex(indexData)
	if err != nil {
		return err
	}
	if len(index) != int(ft.NumBlocks) {
		return fmt.Errorf("%w: index has %d blocks, footer says %d", ErrCorruption, len(index), ft.NumBlocks)
	}
	for i, entry := range index {
		if entry.BlockOffset+uint64(entry.BlockSize) > ft.IndexOffset {
			return fmt.Errorf("%w: block %d overlaps the index", ErrCorruption, i)
		}
	}

	r.ft = ft
	r.index = index
	return nil
}

// BlockCount returns the number of data blocks in the file
func (r *Reader) BlockCount() int {
	return len(r.index)
}

// BlockInfo returns the index entry of the i-th data block
func (r *Reader) BlockInfo(i int) IndexEntry {
	return r.index[i]
}

// ReadBlock reads and decodes the i-th data block
func (r *Reader) ReadBlock(i int) (*block.Block, error) {
	if i < 0 || i >= len(r.index) {
		return nil, fmt.Errorf("block %d out of range [0, %d)", i, len(r.index))
	}
	entry := r.index[i]

	start := time.Now()
	data, err := r.ioManager.ReadFull(entry.BlockOffset, entry.BlockSize)
	if err != nil {
		r.stats.TrackError(stats.ErrTypeIO)
		return nil, fmt.Errorf("failed to read block %d: %w", i, err)
	}
	r.stats.TrackOperation(stats.OpBlockRead)
	r.stats.TrackBytes(false, uint64(len(data)))
	r.metrics.RecordBlockRead(context.Background(), time.Since(start), len(data), r.tableID)

	blk, err := block.Decode(data)
	if err != nil {
		r.stats.TrackError(stats.ErrTypeCorruption)
		r.metrics.RecordCorruption(context.Background(), "block", r.tableID)
		r.logger.Error("block %d at offset %d: %v", i, entry.BlockOffset, err)
		return nil, fmt.Errorf("%w: block %d: %w", ErrCorruption, i, err)
	}
	return blk, nil
}

// findBlock returns the index of the only block that can hold key, or -1
func (r *Reader) findBlock(key []byte) int {
	return sort.Search(len(r.index), func(i int) bool {
		return bytes.Compare(r.index[i].FirstKey, key) > 0
	}) - 1
}

// Get returns the value for a given key
func (r *Reader) Get(key []byte) ([]byte, error) {
	ctx, end := r.metrics.StartSpan(context.Background(), telemetry.OpTypeGet, r.tableID)
	defer end()

	start := time.Now()
	value, err := r.get(key)
	latency := time.Since(start)

	r.stats.TrackOperationWithLatency(stats.OpGet, uint64(latency.Nanoseconds()))
	if errors.Is(err, ErrNotFound) {
		r.stats.TrackOperation(stats.OpGetMiss)
	}
	if err == nil || errors.Is(err, ErrNotFound) {
		r.metrics.RecordGet(ctx, latency, err == nil, r.tableID)
	}
	return value, err
}

func (r *Reader) get(key []byte) ([]byte, error) {
	idx := r.findBlock(key)
	if idx < 0 {
		return nil, ErrNotFound
	}

	blk, err := r.ReadBlock(idx)
	if err != nil {
		return nil, err
	}

	iter := block.NewIterator(blk)
	if iter.Seek(key) && bytes.Equal(iter.Key(), key) {
		return iter.Value(), nil
	}
	if err := iter.Err(); err != nil {
		r.stats.TrackError(stats.ErrTypeCorruption)
		r.metrics.RecordCorruption(context.Background(), "entry", r.tableID)
		return nil, fmt.Errorf("%w: block %d: %w", ErrCorruption, idx, err)
	}
	return nil, ErrNotFound
}

// NewIterator returns an iterator over the entire SSTable
func (r *Reader) NewIterator() *Iterator {
	return &Iterator{
		reader:   r,
		blockIdx: -1,
	}
}

// GetKeyCount returns the number of keys in the SSTable
func (r *Reader) GetKeyCount() int {
	return int(r.ft.NumEntries)
}

// Footer returns the decoded file footer
func (r *Reader) Footer() footer.Footer {
	return *r.ft
}

// Stats returns the reader's statistics
func (r *Reader) Stats() stats.Provider {
	return r.stats
}

// Close closes the SSTable reader
func (r *Reader) Close() error {
	return r.ioManager.Close()
}
