package footer

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFooterEncodeDecode(t *testing.T) {
	f := NewFooter(
		1000,   // indexOffset
		500,    // indexSize
		1234,   // numEntries
		17,     // numBlocks
		0xBEEF, // indexChecksum
	)

	encoded := f.Encode()
	require.Len(t, encoded, FooterSize)
	assert.NotZero(t, f.Checksum)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestFooterWriteTo(t *testing.T) {
	f := NewFooter(1000, 500, 1234, 17, 42)

	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(FooterSize), n)

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(17), decoded.NumBlocks)
}

func TestFooterDecodeUsesTrailingBytes(t *testing.T) {
	f := NewFooter(64, 32, 10, 2, 7)
	file := append(bytes.Repeat([]byte{0xAA}, 96), f.Encode()...)

	decoded, err := Decode(file)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), decoded.IndexOffset)
}

func TestFooterCorruption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"too short", func(b []byte) []byte { return b[:FooterSize-1] }},
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xFF; return b }},
		{"bad version", func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[8:12], CurrentVersion+1)
			return b
		}},
		{"flipped field", func(b []byte) []byte { b[25] ^= 0x01; return b }},
		{"bad checksum", func(b []byte) []byte { b[FooterSize-1] ^= 0x01; return b }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := NewFooter(1000, 500, 1234, 17, 42).Encode()
			_, err := Decode(tt.mutate(encoded))
			assert.ErrorIs(t, err, ErrInvalidFooter)
		})
	}
}
