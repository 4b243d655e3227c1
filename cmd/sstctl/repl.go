package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/KevoDB/blockpack/pkg/common/iterator/bounded"
	"github.com/KevoDB/blockpack/pkg/common/log"
	"github.com/KevoDB/blockpack/pkg/sstable"
	"github.com/KevoDB/blockpack/pkg/telemetry"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".close"),
	readline.PcItem(".exit"),
	readline.PcItem(".stats"),
	readline.PcItem(".blocks"),
	readline.PcItem(".dump"),
	readline.PcItem("GET"),
	readline.PcItem("SCAN"),
	readline.PcItem("RANGE"),
)

const helpText = `
sstctl - inspect a block-packed SSTable

Commands:
  .help                   - Show this help message
  .open PATH              - Open an SSTable at PATH
  .close                  - Close the current SSTable
  .exit                   - Exit the program
  .stats                  - Show footer statistics
  .blocks                 - List data blocks with their first keys
  .dump N                 - Hex dump the encoded bytes of block N

  GET key                 - Retrieve a value by key
  SCAN                    - Scan all key-value pairs
  SCAN prefix             - Scan key-value pairs with given prefix
  RANGE start end         - Scan key-value pairs in [start, end)
`

// session holds the table opened by the interactive inspector
type session struct {
	reader *sstable.Reader
	path   string
	logger log.Logger
	tel    telemetry.Telemetry
	colors *palette
}

func (s *session) pal() *palette {
	if s.colors == nil {
		return plainPalette
	}
	return s.colors
}

func (s *session) open(path string) error {
	reader, err := sstable.OpenReader(path,
		sstable.WithReaderLogger(s.logger),
		sstable.WithReaderTelemetry(s.tel),
	)
	if err != nil {
		return err
	}
	s.close()
	s.reader = reader
	s.path = path
	return nil
}

func (s *session) close() {
	if s.reader != nil {
		s.reader.Close()
	}
	s.reader = nil
	s.path = ""
}

func (s *session) prompt() string {
	if s.path != "" {
		return fmt.Sprintf("sstctl:%s> ", filepath.Base(s.path))
	}
	return "sstctl> "
}

// execute runs one command line and reports whether the session should end
func (s *session) execute(line string, out io.Writer) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToUpper(parts[0])

	if strings.HasPrefix(cmd, ".") {
		switch strings.ToLower(cmd) {
		case ".help":
			fmt.Fprint(out, helpText)
		case ".open":
			if len(parts) < 2 {
				fmt.Fprintln(out, "Error: Missing path argument")
				return false
			}
			if err := s.open(parts[1]); err != nil {
				fmt.Fprintln(out, s.pal().Err("Error opening SSTable: %s", err))
				return false
			}
			fmt.Fprintf(out, "Opened %s\n", parts[1])
		case ".close":
			if s.reader == nil {
				fmt.Fprintln(out, "No SSTable open")
				return false
			}
			fmt.Fprintf(out, "Closed %s\n", s.path)
			s.close()
		case ".exit":
			s.close()
			return true
		case ".stats":
			if s.requireOpen(out) {
				s.stats(out)
			}
		case ".blocks":
			if s.requireOpen(out) {
				s.blocks(out)
			}
		case ".dump":
			if !s.requireOpen(out) {
				return false
			}
			if len(parts) < 2 {
				fmt.Fprintln(out, "Error: Missing block number")
				return false
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Fprintf(out, "Error: invalid block number %q\n", parts[1])
				return false
			}
			s.dump(out, n)
		default:
			fmt.Fprintf(out, "Unknown command: %s\n", parts[0])
		}
		return false
	}

	switch cmd {
	case "GET":
		if len(parts) != 2 {
			fmt.Fprintln(out, "Error: GET requires exactly one argument")
			return false
		}
		if !s.requireOpen(out) {
			return false
		}
		value, err := s.reader.Get([]byte(parts[1]))
		if errors.Is(err, sstable.ErrNotFound) {
			fmt.Fprintln(out, "Key not found")
		} else if err != nil {
			fmt.Fprintln(out, s.pal().Err("Error: %s", err))
		} else {
			fmt.Fprintln(out, s.pal().Value("%s", value))
		}
	case "SCAN":
		if !s.requireOpen(out) {
			return false
		}
		var prefix []byte
		if len(parts) > 1 {
			prefix = []byte(parts[1])
		}
		s.scan(out, bounded.NewPrefixIterator(s.reader.NewIterator(), prefix))
	case "RANGE":
		if len(parts) != 3 {
			fmt.Fprintln(out, "Error: RANGE requires start and end keys")
			return false
		}
		if !s.requireOpen(out) {
			return false
		}
		s.scan(out, bounded.NewBoundedIterator(s.reader.NewIterator(), []byte(parts[1]), []byte(parts[2])))
	default:
		fmt.Fprintf(out, "Unknown command: %s\n", parts[0])
	}
	return false
}

func (s *session) requireOpen(out io.Writer) bool {
	if s.reader == nil {
		fmt.Fprintln(out, "No SSTable open")
		return false
	}
	return true
}

func (s *session) stats(out io.Writer) {
	ft := s.reader.Footer()
	fmt.Fprintf(out, "SSTable %s:\n", s.path)
	fmt.Fprintf(out, "  Format version: %d\n", ft.Version)
	fmt.Fprintf(out, "  Entries: %d in %d blocks\n", ft.NumEntries, ft.NumBlocks)
	fmt.Fprintf(out, "  Index: %d bytes at offset %d\n", ft.IndexSize, ft.IndexOffset)

	st := s.reader.Stats().GetStats()
	fmt.Fprintf(out, "  Session: %d gets (%d misses), %d block reads, %d bytes read\n",
		counter(st, "get_ops"), counter(st, "get_miss_ops"),
		counter(st, "block_read_ops"), counter(st, "total_bytes_read"))
}

// counter reads a numeric stat, treating absent entries as zero
func counter(st map[string]interface{}, key string) uint64 {
	v, _ := st[key].(uint64)
	return v
}

func (s *session) blocks(out io.Writer) {
	for i := 0; i < s.reader.BlockCount(); i++ {
		info := s.reader.BlockInfo(i)
		fmt.Fprintf(out, "%s  first=%s\n",
			s.pal().Meta("%6d  offset=%-10d size=%-6d", i, info.BlockOffset, info.BlockSize),
			s.pal().Key("%q", info.FirstKey))
	}
}

func (s *session) dump(out io.Writer, n int) {
	blk, err := s.reader.ReadBlock(n)
	if err != nil {
		fmt.Fprintln(out, s.pal().Err("Error: %s", err))
		return
	}
	fmt.Fprintln(out, s.pal().Meta("Block %d: %d entries, %d data bytes", n, blk.NumEntries(), len(blk.Data())))
	fmt.Fprint(out, hex.Dump(blk.Encode()))
}

func (s *session) scan(out io.Writer, iter *bounded.BoundedIterator) {
	count := 0
	for iter.SeekToFirst(); iter.Valid(); iter.Next() {
		fmt.Fprintf(out, "%s: %s\n", s.pal().Key("%s", iter.Key()), s.pal().Value("%s", iter.Value()))
		count++
	}
	if err := iter.Err(); err != nil {
		fmt.Fprintln(out, s.pal().Err("Error: %s", err))
	}
	fmt.Fprintf(out, "%d entries found\n", count)
}

func runInteractive(path string, logger log.Logger, tel telemetry.Telemetry) error {
	s := &session{logger: logger, tel: tel, colors: newPalette(isTerminal(os.Stdout))}
	if path != "" {
		if err := s.open(path); err != nil {
			return fmt.Errorf("failed to open SSTable: %w", err)
		}
	}
	defer s.close()

	historyFile := filepath.Join(os.TempDir(), ".sstctl_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Enter .help for usage hints.")
	for {
		rl.SetPrompt(s.prompt())

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil
				}
				continue
			}
			if readErr == io.EOF {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if s.execute(line, rl.Stdout()) {
			return nil
		}
	}
}
