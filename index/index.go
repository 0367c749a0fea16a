package index

import (
	"bytes"

	"github.com/google/btree"

	"casklog/data"
)

// Indexer is the key directory: it maps encoded keys to the position of
// their most recent record in the log. There is no Delete; the store has no
// deletion operation, so entries are only ever created or overwritten.
type Indexer interface {
	// Put stores the position for key, returning the previous position if
	// the key already existed.
	Put(key []byte, pos *data.RecordPos) *data.RecordPos

	// Get returns the position for key, or nil if the key is unknown.
	Get(key []byte) *data.RecordPos

	// Size returns the number of live keys.
	Size() int

	// Iterator returns an ordered iterator over the directory.
	Iterator(reverse bool) Iterator

	// Close releases any resources held by the index.
	Close() error
}

type IndexType = int8

const (
	// Btree index backed by google/btree
	Btree IndexType = iota + 1

	// ART Adaptive Radix Tree index
	ART

	// BPTree disk-resident index backed by bbolt, survives restarts
	BPTree
)

// NewIndexer builds the key directory for the given type. indexPath and
// syncWrites only matter for the B+ tree, which lives on disk.
func NewIndexer(typ IndexType, indexPath string, syncWrites bool) Indexer {
	switch typ {
	case Btree:
		return NewBTree()
	case ART:
		return NewART()
	case BPTree:
		return NewBPlusTree(indexPath, syncWrites)
	default:
		panic("unsupported index type")
	}
}

type Item struct {
	key []byte
	pos *data.RecordPos
}

// Less orders btree items by raw key bytes.
func (ai *Item) Less(bi btree.Item) bool {
	return bytes.Compare(ai.key, bi.(*Item).key) == -1
}

// Iterator walks the key directory in key order.
type Iterator interface {
	// Rewind resets the iterator to the first entry.
	Rewind()

	// Seek positions the iterator at the first key >= (or <= when
	// reversed) the given key.
	Seek(key []byte)

	// Next advances to the following entry.
	Next()

	// Valid reports whether the iterator still points at an entry.
	Valid() bool

	// Key returns the encoded key at the current position.
	Key() []byte

	// Value returns the record position at the current position.
	Value() *data.RecordPos

	// Close releases the iterator.
	Close()
}
