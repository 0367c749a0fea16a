package casklog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"casklog/data"
	"casklog/index"
	"casklog/utils"
)

const (
	fileLockSuffix  = ".lock"
	indexFileSuffix = ".idx"
)

// DB is a log-structured key/value store over a single append-only file.
// Values are only ever appended; the key directory points each key at its
// most recent record. A DB owns its file exclusively: a second process
// opening the same path is rejected via a file lock.
type DB struct {
	options     Options
	mu          *sync.RWMutex
	activeFile  *data.DataFile // the append-only log
	index       index.Indexer  // key directory
	fileLock    *flock.Flock
	bytesWrite  uint  // bytes written since the last sync
	reclaimSize int64 // bytes made stale by overwrites
}

// Stat reports store statistics.
//
// ReclaimableSize counts stale bytes this instance has observed: overwrites
// made through Put, plus overwrites rediscovered when replay rebuilds the
// directory on open. The B+ tree directory persists and skips replay, so
// with it the counter restarts at zero on every open.
type Stat struct {
	KeyNum          uint  // number of live keys
	LogSize         int64 // log file size on disk
	ReclaimableSize int64 // stale bytes left behind by overwrites
}

// Open opens the store at options.Path, creating the log file if absent.
// Unless disabled, the key directory is rebuilt by replaying the log; with
// replay off an existing file keeps its records but none are reachable
// until overwritten, matching the bare append-only contract.
func Open(options Options) (*DB, error) {
	if err := checkOptions(options); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(options.Path); dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return nil, err
			}
		}
	}

	// only one process may own the log
	fileLock := flock.New(options.Path + fileLockSuffix)
	hold, err := fileLock.TryLock()
	if err != nil {
		return nil, err
	}
	if !hold {
		return nil, ErrDatabaseIsUsing
	}

	db := &DB{
		options:  options,
		mu:       new(sync.RWMutex),
		index:    index.NewIndexer(options.IndexType, options.Path+indexFileSuffix, options.SyncWrites),
		fileLock: fileLock,
	}

	activeFile, err := data.OpenDataFile(options.Path)
	if err != nil {
		_ = fileLock.Unlock()
		return nil, err
	}
	db.activeFile = activeFile

	// the B+ tree directory is persistent, nothing to replay
	if options.ReplayOnOpen && options.IndexType != BPlusTreeIndex {
		if err := db.loadIndexFromDataFile(); err != nil {
			_ = activeFile.Close()
			_ = fileLock.Unlock()
			return nil, err
		}
	}

	return db, nil
}

// Close syncs and closes the log file, closes the key directory and
// releases the file lock.
func (db *DB) Close() error {
	defer func() {
		if err := db.fileLock.Unlock(); err != nil {
			panic(fmt.Sprintf("failed to unlock the database file, %v", err))
		}
	}()
	if db.activeFile == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.index.Close(); err != nil {
		return err
	}
	if err := db.activeFile.Sync(); err != nil {
		return err
	}
	return db.activeFile.Close()
}

// Sync forces buffered writes to the storage device. Idempotent.
func (db *DB) Sync() error {
	if db.activeFile == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.activeFile.Sync()
}

// Stat returns store statistics.
func (db *DB) Stat() *Stat {
	db.mu.RLock()
	defer db.mu.RUnlock()

	logSize, err := utils.FileSize(db.options.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to get log file size: %v", err))
	}

	return &Stat{
		KeyNum:          uint(db.index.Size()),
		LogSize:         logSize,
		ReclaimableSize: db.reclaimSize,
	}
}

// Put appends a record for key and points the key directory at it. The
// record is written (and synced, when configured) before the directory is
// touched, so a crash mid-Put can orphan a record in the log but can never
// leave a directory entry pointing past the end of the file. A previous
// record for the same key stays in the file as unreachable garbage.
func (db *DB) Put(key data.Value, value data.Value) error {
	encKey, err := data.EncodeKey(key)
	if err != nil {
		return err
	}

	logRecord := &data.LogRecord{
		Timestamp: uint32(time.Now().Unix()),
		Key:       key,
		Value:     value,
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	pos, err := db.appendLogRecord(logRecord)
	if err != nil {
		return err
	}

	if oldPos := db.index.Put(encKey, pos); oldPos != nil {
		db.reclaimSize += int64(oldPos.Size)
	}
	return nil
}

// Get returns the value last written for key. A missing directory entry, a
// truncated record and a checksum mismatch all report ErrKeyNotFound; an
// unrecognized type tag under a valid checksum is surfaced as-is.
func (db *DB) Get(key data.Value) (data.Value, error) {
	encKey, err := data.EncodeKey(key)
	if err != nil {
		return data.Value{}, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	pos := db.index.Get(encKey)
	if pos == nil {
		return data.Value{}, ErrKeyNotFound
	}

	record, err := db.readLogRecord(pos)
	if err != nil {
		return data.Value{}, err
	}
	return record.Value, nil
}

// ListKeys returns every live key in encoded-key order.
func (db *DB) ListKeys() ([]data.Value, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	iterator := db.index.Iterator(false)
	defer iterator.Close()
	keys := make([]data.Value, db.index.Size())
	var idx int
	for iterator.Rewind(); iterator.Valid(); iterator.Next() {
		key, err := data.DecodeKey(iterator.Key())
		if err != nil {
			return nil, err
		}
		keys[idx] = key
		idx++
	}
	return keys, nil
}

// Fold visits every live key/value pair until fn returns false.
func (db *DB) Fold(fn func(key data.Value, value data.Value) bool) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	iterator := db.index.Iterator(false)
	defer iterator.Close()
	for iterator.Rewind(); iterator.Valid(); iterator.Next() {
		key, err := data.DecodeKey(iterator.Key())
		if err != nil {
			return err
		}
		record, err := db.readLogRecord(iterator.Value())
		if err != nil {
			return err
		}
		if !fn(key, record.Value) {
			break
		}
	}
	return nil
}

// readLogRecord reads the record at pos, mapping truncation and checksum
// failures to ErrKeyNotFound.
func (db *DB) readLogRecord(pos *data.RecordPos) (*data.LogRecord, error) {
	record, _, err := db.activeFile.ReadLogRecord(pos.Offset)
	if err != nil {
		if errors.Is(err, data.ErrInvalidCRC) || errors.Is(err, io.EOF) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return record, nil
}

// appendLogRecord writes the record at the current end of the log and
// returns its position. Callers must hold the mutex.
func (db *DB) appendLogRecord(logRecord *data.LogRecord) (*data.RecordPos, error) {
	encRecord, size, err := data.EncodeLogRecord(logRecord)
	if err != nil {
		return nil, err
	}

	writeOff := db.activeFile.WriteOff
	if err := db.activeFile.Write(encRecord); err != nil {
		return nil, err
	}

	db.bytesWrite += uint(size)
	var needSync = db.options.SyncWrites
	if !needSync && db.options.BytesPerSync > 0 && db.bytesWrite >= db.options.BytesPerSync {
		needSync = true
	}
	if needSync {
		if err := db.activeFile.Sync(); err != nil {
			return nil, err
		}
		if db.bytesWrite > 0 {
			db.bytesWrite = 0
		}
	}

	return &data.RecordPos{Offset: writeOff, Size: uint32(size)}, nil
}

// loadIndexFromDataFile rebuilds the key directory by scanning the log from
// the start. Later records for the same key win. A record that fails its
// checksum mid-scan aborts the open; repairing a damaged log is out of
// scope here.
func (db *DB) loadIndexFromDataFile() error {
	var offset int64 = 0
	for {
		logRecord, size, err := db.activeFile.ReadLogRecord(offset)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, data.ErrInvalidCRC) {
				return ErrDataFileCorrupted
			}
			return err
		}

		encKey, err := data.EncodeKey(logRecord.Key)
		if err != nil {
			return err
		}
		pos := &data.RecordPos{Offset: offset, Size: uint32(size)}
		if oldPos := db.index.Put(encKey, pos); oldPos != nil {
			db.reclaimSize += int64(oldPos.Size)
		}

		offset += size
	}

	db.activeFile.WriteOff = offset
	return nil
}

func checkOptions(options Options) error {
	if options.Path == "" {
		return errors.New("database file path is empty")
	}
	return nil
}
