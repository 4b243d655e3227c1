package iterator

// Iterator defines the interface for iterating over sorted key-value pairs.
// Both a single decoded block and a whole SSTable are traversed through it.
type Iterator interface {
	// SeekToFirst positions the iterator at the first key
	SeekToFirst()

	// Seek positions the iterator at the first key >= target
	Seek(target []byte) bool

	// Next advances the iterator to the next key
	Next() bool

	// Key returns the current key
	Key() []byte

	// Value returns the current value
	Value() []byte

	// Valid returns true if the iterator is positioned at a valid entry
	Valid() bool

	// Err returns the error that stopped iteration, if any. An iterator
	// that runs off the end of its data is invalid with a nil error.
	Err() error
}
