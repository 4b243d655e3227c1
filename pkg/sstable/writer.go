package sstable

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/KevoDB/blockpack/pkg/common/log"
	"github.com/KevoDB/blockpack/pkg/sstable/block"
	"github.com/KevoDB/blockpack/pkg/sstable/footer"
	"github.com/KevoDB/blockpack/pkg/stats"
	"github.com/KevoDB/blockpack/pkg/telemetry"
)

// FileManager writes an SSTable to a temporary file and renames it into
// place once complete
type FileManager struct {
	path    string
	tmpPath string
	file    *os.File
	buf     *bufio.Writer
	written uint64
}

// NewFileManager creates a new FileManager for the given file path
func NewFileManager(path string) (*FileManager, error) {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp", filepath.Base(path)))

	file, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	return &FileManager{
		path:    path,
		tmpPath: tmpPath,
		file:    file,
		buf:     bufio.NewWriterSize(file, 64*1024),
	}, nil
}

// Write appends data to the file
func (fm *FileManager) Write(data []byte) (int, error) {
	n, err := fm.buf.Write(data)
	fm.written += uint64(n)
	if err == nil && n != len(data) {
		err = fmt.Errorf("wrote incomplete data: %d of %d bytes", n, len(data))
	}
	return n, err
}

// Offset returns the number of bytes written so far
func (fm *FileManager) Offset() uint64 {
	return fm.written
}

// Sync flushes buffered data and the file to disk
func (fm *FileManager) Sync() error {
	if err := fm.buf.Flush(); err != nil {
		return err
	}
	return fm.file.Sync()
}

// Close closes the file
func (fm *FileManager) Close() error {
	if fm.file == nil {
		return nil
	}
	err := fm.file.Close()
	fm.file = nil
	return err
}

// FinalizeFile closes the file and renames it to the final path
func (fm *FileManager) FinalizeFile() error {
	if err := fm.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(fm.tmpPath, fm.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Cleanup removes the temporary file if writing is aborted
func (fm *FileManager) Cleanup() error {
	fm.Close()
	return os.Remove(fm.tmpPath)
}

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithBlockSize sets the target encoded size of each data block
func WithBlockSize(size int) WriterOption {
	return func(w *Writer) {
		w.blockSize = size
	}
}

// WithWriterLogger sets the logger used for block and file events
func WithWriterLogger(logger log.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithWriterStats sets the collector that receives block and byte counts
func WithWriterStats(collector stats.Collector) WriterOption {
	return func(w *Writer) {
		w.stats = collector
	}
}

// WithWriterTelemetry sets the telemetry that receives block flush metrics
func WithWriterTelemetry(tel telemetry.Telemetry) WriterOption {
	return func(w *Writer) {
		w.metrics = NewSSTableMetrics(tel)
	}
}

// Writer writes an SSTable file from keys added in strictly increasing order
type Writer struct {
	fileManager  *FileManager
	builder      *block.Builder
	blockSize    int
	index        []IndexEntry
	lastKey      block.KeyVec
	entriesAdded uint32
	logger       log.Logger
	stats        stats.Collector
	metrics      SSTableMetrics
	tableID      string
}

// NewWriter creates a new SSTable writer
func NewWriter(path string, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		blockSize: DefaultBlockSize,
		logger:    log.Nop(),
		stats:     stats.NewAtomicCollector(),
		metrics:   NewSSTableMetrics(nil),
		tableID:   filepath.Base(path),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", w.blockSize)
	}

	fileManager, err := NewFileManager(path)
	if err != nil {
		return nil, err
	}
	w.fileManager = fileManager
	w.logger = w.logger.WithField("sstable", w.tableID)

	return w, nil
}

// Add adds a key-value pair to the SSTable
func (w *Writer) Add(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > block.MaxFieldLen || len(value) > block.MaxFieldLen {
		return fmt.Errorf("entry too large: key %d bytes, value %d bytes, limit %d",
			len(key), len(value), block.MaxFieldLen)
	}
	if w.entriesAdded > 0 && bytes.Compare(key, w.lastKey) <= 0 {
		return fmt.Errorf("%w: got %q after %q", ErrOutOfOrder, key, w.lastKey)
	}

	if w.builder == nil {
		w.builder = block.NewBuilder(w.blockSize)
	}

	if !w.builder.Add(block.Key(key), value) {
		if err := w.flushBlock(); err != nil {
			return err
		}
		w.builder = block.NewBuilder(w.blockSize)
		// An empty builder accepts any entry
		w.builder.Add(block.Key(key), value)
	}

	w.lastKey = block.Key(key).ToKeyVec()
	w.entriesAdded++
	return nil
}

// flushBlock writes the current block to the file and records its index entry
func (w *Writer) flushBlock() error {
	if w.builder == nil || w.builder.IsEmpty() {
		return nil
	}

	firstKey := w.builder.FirstKey()
	blk := w.builder.Build()
	w.builder = nil

	blockOffset := w.fileManager.Offset()
	blockData := blk.Encode()
	if _, err := w.fileManager.Write(blockData); err != nil {
		w.stats.TrackError(stats.ErrTypeIO)
		return fmt.Errorf("failed to write block to file: %w", err)
	}
	w.stats.TrackOperation(stats.OpBlockFlush)
	w.stats.TrackBlock(blk.NumEntries(), len(blockData))
	w.stats.TrackBytes(true, uint64(len(blockData)))
	w.metrics.RecordBlockFlush(context.Background(), blk.NumEntries(), len(blockData), w.tableID)

	w.index = append(w.index, IndexEntry{
		BlockOffset: blockOffset,
		BlockSize:   uint32(len(blockData)),
		FirstKey:    firstKey,
	})

	w.logger.Debug("flushed block %d: %d entries, %d bytes at offset %d",
		len(w.index)-1, blk.NumEntries(), len(blockData), blockOffset)
	return nil
}

// Finish flushes the last block, writes the index and footer, and moves the
// file into place
func (w *Writer) Finish() error {
	defer w.fileManager.Close()
	_, end := w.metrics.StartSpan(context.Background(), telemetry.OpTypeFlush, w.tableID)
	defer end()

	if err := w.flushBlock(); err != nil {
		return err
	}

	indexOffset := w.fileManager.Offset()
	var indexData []byte
	for _, entry := range w.index {
		indexData = appendIndexEntry(indexData, entry)
	}
	if _, err := w.fileManager.Write(indexData); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	ft := footer.NewFooter(
		indexOffset,
		uint32(len(indexData)),
		w.entriesAdded,
		uint32(len(w.index)),
		xxhash.Sum64(indexData),
	)
	if _, err := w.fileManager.Write(ft.Encode()); err != nil {
		return fmt.Errorf("failed to write footer: %w", err)
	}

	w.stats.TrackBytes(true, uint64(len(indexData)+footer.FooterSize))

	if err := w.fileManager.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := w.fileManager.FinalizeFile(); err != nil {
		return err
	}

	w.logger.Info("finished sstable: %d entries in %d blocks", w.entriesAdded, len(w.index))
	return nil
}

// Stats returns the writer's statistics
func (w *Writer) Stats() stats.Provider {
	return w.stats
}

// Abort cancels the SSTable writing process
func (w *Writer) Abort() error {
	return w.fileManager.Cleanup()
}
