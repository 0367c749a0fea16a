package casklog

import (
	"bytes"

	"casklog/data"
	"casklog/index"
)

// Iterator walks the live keys of a store in encoded-key order.
type Iterator struct {
	indexIter index.Iterator
	db        *DB
	options   IteratorOptions
}

func (db *DB) NewIterator(opts IteratorOptions) *Iterator {
	indexIter := db.index.Iterator(opts.Reverse)
	it := &Iterator{
		db:        db,
		indexIter: indexIter,
		options:   opts,
	}
	it.skipToNext()
	return it
}

func (it *Iterator) Rewind() {
	it.indexIter.Rewind()
	it.skipToNext()
}

func (it *Iterator) Seek(key []byte) {
	it.indexIter.Seek(key)
	it.skipToNext()
}

func (it *Iterator) Next() {
	it.indexIter.Next()
	it.skipToNext()
}

func (it *Iterator) Valid() bool {
	return it.indexIter.Valid()
}

// Key decodes the logical key at the current position.
func (it *Iterator) Key() (data.Value, error) {
	return data.DecodeKey(it.indexIter.Key())
}

// Value reads the value at the current position from the log.
func (it *Iterator) Value() (data.Value, error) {
	pos := it.indexIter.Value()
	it.db.mu.RLock()
	defer it.db.mu.RUnlock()
	record, err := it.db.readLogRecord(pos)
	if err != nil {
		return data.Value{}, err
	}
	return record.Value, nil
}

func (it *Iterator) Close() {
	it.indexIter.Close()
}

// skipToNext advances past keys that do not carry the configured prefix.
func (it *Iterator) skipToNext() {
	prefixLen := len(it.options.Prefix)
	if prefixLen == 0 {
		return
	}

	for ; it.indexIter.Valid(); it.indexIter.Next() {
		key := it.indexIter.Key()
		if prefixLen <= len(key) && bytes.Equal(it.options.Prefix, key[:prefixLen]) {
			break
		}
	}
}
