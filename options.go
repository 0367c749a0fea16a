package casklog

import (
	"os"
	"path/filepath"

	"casklog/index"
)

type Options struct {
	// Path of the log file
	Path string

	// Fsync after every Put
	SyncWrites bool

	// Fsync once this many bytes have accumulated (0 disables)
	BytesPerSync uint

	// Key directory implementation
	IndexType IndexType

	// Rebuild the key directory from the log on Open. Ignored for the
	// B+ tree index, which is persistent and needs no replay.
	ReplayOnOpen bool
}

// IteratorOptions configure a DB iterator.
type IteratorOptions struct {
	// Only keys whose encoded form starts with Prefix, empty matches all
	Prefix []byte

	// Walk in descending key order
	Reverse bool
}

type IndexType = index.IndexType

const (
	// BTreeIndex in-memory btree
	BTreeIndex = index.Btree

	// ARTIndex in-memory adaptive radix tree
	ARTIndex = index.ART

	// BPlusTreeIndex disk-resident index, survives restarts
	BPlusTreeIndex = index.BPTree
)

var DefaultOptions = Options{
	Path:         filepath.Join(os.TempDir(), "casklog.data"),
	SyncWrites:   false,
	BytesPerSync: 0,
	IndexType:    BTreeIndex,
	ReplayOnOpen: true,
}

var DefaultIteratorOptions = IteratorOptions{
	Prefix:  nil,
	Reverse: false,
}
