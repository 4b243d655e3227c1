package bounded

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockIterator is a simple in-memory iterator for testing
type mockIterator struct {
	keys   []string
	values map[string]string
	index  int
	err    error
}

func newMockIterator(data map[string]string) *mockIterator {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &mockIterator{keys: keys, values: data, index: -1}
}

func (m *mockIterator) SeekToFirst() {
	m.index = 0
}

func (m *mockIterator) Seek(target []byte) bool {
	m.index = sort.SearchStrings(m.keys, string(target))
	return m.Valid()
}

func (m *mockIterator) Next() bool {
	if m.index < 0 {
		m.index = 0
	} else if m.index < len(m.keys) {
		m.index++
	}
	return m.Valid()
}

func (m *mockIterator) Key() []byte {
	if !m.Valid() {
		return nil
	}
	return []byte(m.keys[m.index])
}

func (m *mockIterator) Value() []byte {
	if !m.Valid() {
		return nil
	}
	return []byte(m.values[m.keys[m.index]])
}

func (m *mockIterator) Valid() bool {
	return m.err == nil && m.index >= 0 && m.index < len(m.keys)
}

func (m *mockIterator) Err() error {
	return m.err
}

func collect(it *BoundedIterator) []string {
	var keys []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	return keys
}

func testData() map[string]string {
	return map[string]string{
		"a":     "1",
		"b":     "2",
		"ba":    "3",
		"bb":    "4",
		"c":     "5",
		"d":     "6",
		"e\xff": "7",
	}
}

func TestBoundedIteratorRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end []byte
		want       []string
	}{
		{"unbounded", nil, nil, []string{"a", "b", "ba", "bb", "c", "d", "e\xff"}},
		{"start only", []byte("c"), nil, []string{"c", "d", "e\xff"}},
		{"end only", nil, []byte("b"), []string{"a"}},
		{"both", []byte("b"), []byte("c"), []string{"b", "ba", "bb"}},
		{"start between keys", []byte("bab"), []byte("d"), []string{"bb", "c"}},
		{"empty range", []byte("c"), []byte("c"), nil},
		{"past the end", []byte("z"), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewBoundedIterator(newMockIterator(testData()), tt.start, tt.end)
			assert.Equal(t, tt.want, collect(it))
		})
	}
}

func TestBoundedIteratorSeek(t *testing.T) {
	it := NewBoundedIterator(newMockIterator(testData()), []byte("b"), []byte("d"))

	// Targets before the start bound are clamped to it
	require.True(t, it.Seek([]byte("a")))
	assert.Equal(t, []byte("b"), it.Key())
	assert.Equal(t, []byte("2"), it.Value())

	require.True(t, it.Seek([]byte("bc")))
	assert.Equal(t, []byte("c"), it.Key())

	assert.False(t, it.Seek([]byte("d")))
	assert.Nil(t, it.Key())
	assert.Nil(t, it.Value())
	assert.False(t, it.Next())
}

func TestBoundedIteratorCopiesBounds(t *testing.T) {
	start := []byte("b")
	end := []byte("c")
	it := NewBoundedIterator(newMockIterator(testData()), start, end)
	start[0] = 'a'
	end[0] = 'z'

	assert.Equal(t, []string{"b", "ba", "bb"}, collect(it))
}

func TestPrefixIterator(t *testing.T) {
	tests := []struct {
		prefix string
		want   []string
	}{
		{"b", []string{"b", "ba", "bb"}},
		{"ba", []string{"ba"}},
		{"e\xff", []string{"e\xff"}},
		{"x", nil},
		{"", []string{"a", "b", "ba", "bb", "c", "d", "e\xff"}},
	}

	for _, tt := range tests {
		it := NewPrefixIterator(newMockIterator(testData()), []byte(tt.prefix))
		assert.Equal(t, tt.want, collect(it), "prefix %q", tt.prefix)
	}
}

func TestPrefixSuccessor(t *testing.T) {
	assert.Equal(t, []byte("c"), prefixSuccessor([]byte("b")))
	assert.Equal(t, []byte("ac"), prefixSuccessor([]byte("ab")))
	assert.Equal(t, []byte("b"), prefixSuccessor([]byte("a\xff\xff")))
	assert.Nil(t, prefixSuccessor([]byte("\xff\xff")))

	// The prefix itself is left untouched
	prefix := []byte("ab")
	prefixSuccessor(prefix)
	assert.True(t, bytes.Equal([]byte("ab"), prefix))
}

func TestBoundedIteratorPropagatesErr(t *testing.T) {
	mock := newMockIterator(testData())
	it := NewBoundedIterator(mock, nil, nil)
	it.SeekToFirst()
	require.True(t, it.Valid())

	corrupt := errors.New("corrupt")
	mock.err = corrupt
	assert.False(t, it.Valid())
	assert.ErrorIs(t, it.Err(), corrupt)
}
