package main

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KevoDB/blockpack/pkg/common/log"
	"github.com/KevoDB/blockpack/pkg/config"
	"github.com/KevoDB/blockpack/pkg/sstable"
	"github.com/KevoDB/blockpack/pkg/sstable/block"
	"github.com/KevoDB/blockpack/pkg/telemetry"
)

// maxLineSize fits the largest key and value plus the separator
const maxLineSize = 2*block.MaxFieldLen + 1

func runPack(args []string, cfg *config.Config, logger log.Logger, tel telemetry.Telemetry) error {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	in := fs.String("in", "", "Input file of sorted key<TAB>value lines (- for stdin)")
	out := fs.String("out", "", "Output SSTable path (default: <sst_dir>/<input>.sst)")
	blockSize := fs.Int("block-size", cfg.BlockSize, "Target encoded block size in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("missing -in")
	}

	cfg.Update(func(c *config.Config) { c.BlockSize = *blockSize })
	if err := cfg.Validate(); err != nil {
		return err
	}

	outPath := *out
	if outPath == "" {
		base := "stdin"
		if *in != "-" {
			base = strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
		}
		outPath = filepath.Join(cfg.SSTDir, base+".sst")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var src io.Reader = os.Stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		src = f
	}

	return packFile(src, outPath, cfg.BlockSize, logger, tel)
}

// packFile writes every line of src into a new SSTable at outPath
func packFile(src io.Reader, outPath string, blockSize int, logger log.Logger, tel telemetry.Telemetry) error {
	writer, err := sstable.NewWriter(outPath,
		sstable.WithBlockSize(blockSize),
		sstable.WithWriterLogger(logger),
		sstable.WithWriterTelemetry(tel),
	)
	if err != nil {
		return err
	}

	n, err := packEntries(src, writer)
	if err != nil {
		writer.Abort()
		return err
	}
	if err := writer.Finish(); err != nil {
		writer.Abort()
		return err
	}

	logger.Info("packed %d entries into %s", n, outPath)
	return nil
}

// packEntries adds each non-empty key<TAB>value line to w. A line without a
// tab is a key with an empty value.
func packEntries(src io.Reader, w *sstable.Writer) (int, error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize+1)

	count := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		key, value := line, []byte(nil)
		if i := bytes.IndexByte(line, '\t'); i >= 0 {
			key, value = line[:i], line[i+1:]
		}
		if err := w.Add(key, value); err != nil {
			return count, fmt.Errorf("line %d: %w", lineNo, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read input: %w", err)
	}
	return count, nil
}
