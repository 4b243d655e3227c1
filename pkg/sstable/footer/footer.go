package footer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// FooterSize is the fixed size of the footer in bytes
	FooterSize = 56
	// FooterMagic identifies a blockpack SSTable
	FooterMagic = uint64(0xB10C5EA1B10C5EA1)
	// CurrentVersion is the current file format version
	CurrentVersion = uint32(1)

	checksumOffset = FooterSize - 8
)

// ErrInvalidFooter is returned for footers with a bad magic, version or checksum
var ErrInvalidFooter = errors.New("invalid sstable footer")

// Footer is the fixed-size trailer of an SSTable file. All fields are
// big-endian, like the blocks it describes.
type Footer struct {
	Magic     uint64
	Version   uint32
	Timestamp int64
	// Offset and size of the index section
	IndexOffset uint64
	IndexSize   uint32
	NumEntries  uint32
	NumBlocks   uint32
	// xxhash of the index section
	IndexChecksum uint64
	// xxhash of the footer fields preceding it
	Checksum uint64
}

// NewFooter creates a new footer with the given parameters
func NewFooter(indexOffset uint64, indexSize, numEntries, numBlocks uint32, indexChecksum uint64) *Footer {
	return &Footer{
		Magic:         FooterMagic,
		Version:       CurrentVersion,
		Timestamp:     time.Now().UnixNano(),
		IndexOffset:   indexOffset,
		IndexSize:     indexSize,
		NumEntries:    numEntries,
		NumBlocks:     numBlocks,
		IndexChecksum: indexChecksum,
	}
}

// Encode serializes the footer and fills in its checksum
func (f *Footer) Encode() []byte {
	result := make([]byte, FooterSize)

	binary.BigEndian.PutUint64(result[0:8], f.Magic)
	binary.BigEndian.PutUint32(result[8:12], f.Version)
	binary.BigEndian.PutUint64(result[12:20], uint64(f.Timestamp))
	binary.BigEndian.PutUint64(result[20:28], f.IndexOffset)
	binary.BigEndian.PutUint32(result[28:32], f.IndexSize)
	binary.BigEndian.PutUint32(result[32:36], f.NumEntries)
	binary.BigEndian.PutUint32(result[36:40], f.NumBlocks)
	binary.BigEndian.PutUint64(result[40:48], f.IndexChecksum)

	f.Checksum = xxhash.Sum64(result[:checksumOffset])
	binary.BigEndian.PutUint64(result[checksumOffset:], f.Checksum)

	return result
}

// WriteTo writes the footer to an io.Writer
func (f *Footer) WriteTo(w io.Writer) (int64, error) {
	data := f.Encode()
	n, err := w.Write(data)
	return int64(n), err
}

// Decode parses and verifies a footer
func Decode(data []byte) (*Footer, error) {
	if len(data) < FooterSize {
		return nil, fmt.Errorf("%w: %d bytes, expected %d", ErrInvalidFooter, len(data), FooterSize)
	}
	data = data[len(data)-FooterSize:]

	f := &Footer{
		Magic:         binary.BigEndian.Uint64(data[0:8]),
		Version:       binary.BigEndian.Uint32(data[8:12]),
		Timestamp:     int64(binary.BigEndian.Uint64(data[12:20])),
		IndexOffset:   binary.BigEndian.Uint64(data[20:28]),
		IndexSize:     binary.BigEndian.Uint32(data[28:32]),
		NumEntries:    binary.BigEndian.Uint32(data[32:36]),
		NumBlocks:     binary.BigEndian.Uint32(data[36:40]),
		IndexChecksum: binary.BigEndian.Uint64(data[40:48]),
		Checksum:      binary.BigEndian.Uint64(data[checksumOffset:]),
	}

	if f.Magic != FooterMagic {
		return nil, fmt.Errorf("%w: magic %x, expected %x", ErrInvalidFooter, f.Magic, FooterMagic)
	}

	if f.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFooter, f.Version)
	}

	expected := xxhash.Sum64(data[:checksumOffset])
	if f.Checksum != expected {
		return nil, fmt.Errorf("%w: checksum mismatch: file has %d, calculated %d",
			ErrInvalidFooter, f.Checksum, expected)
	}

	return f, nil
}
