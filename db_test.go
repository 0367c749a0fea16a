package casklog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"casklog/data"
	"casklog/utils"
)

func openTestDB(t *testing.T, options Options) *DB {
	t.Helper()
	if options.Path == "" || options.Path == DefaultOptions.Path {
		options.Path = filepath.Join(t.TempDir(), "casklog.data")
	}
	db, err := Open(options)
	assert.Nil(t, err)
	assert.NotNil(t, db)
	return db
}

func TestOpen(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	assert.Equal(t, uint(0), db.Stat().KeyNum)
}

func TestOpen_Locked(t *testing.T) {
	options := DefaultOptions
	options.Path = filepath.Join(t.TempDir(), "casklog.data")
	db := openTestDB(t, options)
	defer db.Close()

	// a second instance on the same file is rejected
	_, err := Open(options)
	assert.Equal(t, ErrDatabaseIsUsing, err)
}

func TestPutGet(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	assert.Nil(t, db.Put(data.NewText("name"), data.NewText("Sai'd")))
	assert.Nil(t, db.Put(data.NewText("lang"), data.NewText("Ruby")))

	value, err := db.Get(data.NewText("name"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewText("Sai'd"), value)

	value, err = db.Get(data.NewText("lang"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewText("Ruby"), value)

	// reads are idempotent
	value, err = db.Get(data.NewText("name"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewText("Sai'd"), value)

	// records sit back to back from offset 0
	size, err := utils.FileSize(db.options.Path)
	assert.Nil(t, err)
	assert.Equal(t, int64((20+4+5)+(20+4+4)), size)
}

func TestPutGet_Typed(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	assert.Nil(t, db.Put(data.NewText("age"), data.NewInt(25)))
	assert.Nil(t, db.Put(data.NewText("pi"), data.NewFloat(3.141592653589793)))
	assert.Nil(t, db.Put(data.NewInt(7), data.NewText("seven")))

	// the integer comes back as an integer, not its text rendering
	value, err := db.Get(data.NewText("age"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewInt(25), value)

	value, err = db.Get(data.NewText("pi"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewFloat(3.141592653589793), value)

	value, err = db.Get(data.NewInt(7))
	assert.Nil(t, err)
	assert.Equal(t, data.NewText("seven"), value)

	// Text("25") and Int(25) are distinct keys
	_, err = db.Get(data.NewText("7"))
	assert.Equal(t, ErrKeyNotFound, err)
}

func TestPut_LastWriteWins(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	assert.Nil(t, db.Put(data.NewText("k"), data.NewText("v1")))
	assert.Nil(t, db.Put(data.NewText("k"), data.NewText("v2")))

	value, err := db.Get(data.NewText("k"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewText("v2"), value)

	// no overwrite in place: both records remain in the file
	size, err := utils.FileSize(db.options.Path)
	assert.Nil(t, err)
	assert.Equal(t, int64(2*(20+1+2)), size)

	// the stale first record is accounted as reclaimable
	assert.Equal(t, int64(20+1+2), db.Stat().ReclaimableSize)
	assert.Equal(t, uint(1), db.Stat().KeyNum)
}

func TestPut_UnsupportedType(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	err := db.Put(data.Value{}, data.NewText("v"))
	assert.True(t, errors.Is(err, data.ErrUnsupportedType))

	err = db.Put(data.NewText("k"), data.Value{Type: 9})
	assert.True(t, errors.Is(err, data.ErrUnsupportedType))

	// a failed Put leaves nothing behind
	assert.Equal(t, int64(0), db.Stat().LogSize)
}

func TestGet_Missing(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	_, err := db.Get(data.NewText("absent"))
	assert.Equal(t, ErrKeyNotFound, err)
}

func TestGet_CorruptedRecord(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	assert.Nil(t, db.Put(data.NewText("x"), data.NewText("y")))
	assert.Nil(t, db.Sync())

	// flip one byte inside the record's payload region on disk
	fd, err := os.OpenFile(db.options.Path, os.O_RDWR, 0644)
	assert.Nil(t, err)
	_, err = fd.WriteAt([]byte{'z'}, 20)
	assert.Nil(t, err)
	assert.Nil(t, fd.Close())

	_, err = db.Get(data.NewText("x"))
	assert.Equal(t, ErrKeyNotFound, err)
}

func TestOpen_Replay(t *testing.T) {
	options := DefaultOptions
	options.Path = filepath.Join(t.TempDir(), "casklog.data")

	db := openTestDB(t, options)
	assert.Nil(t, db.Put(data.NewText("name"), data.NewText("Sai'd")))
	assert.Nil(t, db.Put(data.NewText("age"), data.NewInt(25)))
	assert.Nil(t, db.Put(data.NewText("name"), data.NewText("updated")))
	assert.Nil(t, db.Close())

	// replay rebuilds the directory, later records win
	reopened := openTestDB(t, options)
	defer reopened.Close()

	value, err := reopened.Get(data.NewText("name"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewText("updated"), value)

	value, err = reopened.Get(data.NewText("age"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewInt(25), value)

	assert.Equal(t, uint(2), reopened.Stat().KeyNum)
	// the overwritten record is rediscovered as reclaimable
	assert.Equal(t, int64(20+4+5), reopened.Stat().ReclaimableSize)
}

func TestOpen_NoReplay(t *testing.T) {
	options := DefaultOptions
	options.Path = filepath.Join(t.TempDir(), "casklog.data")

	db := openTestDB(t, options)
	assert.Nil(t, db.Put(data.NewText("name"), data.NewText("Sai'd")))
	assert.Nil(t, db.Close())

	// with replay off the directory starts empty: old records are
	// unreachable, new writes still append after them
	options.ReplayOnOpen = false
	reopened := openTestDB(t, options)
	defer reopened.Close()

	_, err := reopened.Get(data.NewText("name"))
	assert.Equal(t, ErrKeyNotFound, err)

	assert.Nil(t, reopened.Put(data.NewText("lang"), data.NewText("Ruby")))
	value, err := reopened.Get(data.NewText("lang"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewText("Ruby"), value)

	size, err := utils.FileSize(options.Path)
	assert.Nil(t, err)
	assert.Equal(t, int64((20+4+5)+(20+4+4)), size)
}

func TestOpen_ReplayCorrupted(t *testing.T) {
	options := DefaultOptions
	options.Path = filepath.Join(t.TempDir(), "casklog.data")

	db := openTestDB(t, options)
	assert.Nil(t, db.Put(data.NewText("name"), data.NewText("Sai'd")))
	assert.Nil(t, db.Close())

	fd, err := os.OpenFile(options.Path, os.O_RDWR, 0644)
	assert.Nil(t, err)
	_, err = fd.WriteAt([]byte{0xff}, 22)
	assert.Nil(t, err)
	assert.Nil(t, fd.Close())

	_, err = Open(options)
	assert.Equal(t, ErrDataFileCorrupted, err)
}

func TestOpen_BPlusTreeIndex(t *testing.T) {
	options := DefaultOptions
	options.Path = filepath.Join(t.TempDir(), "casklog.data")
	options.IndexType = BPlusTreeIndex

	db := openTestDB(t, options)
	assert.Nil(t, db.Put(data.NewText("name"), data.NewText("Sai'd")))
	assert.Nil(t, db.Close())

	// the B+ tree directory persists, no replay needed
	options.ReplayOnOpen = false
	reopened := openTestDB(t, options)
	defer reopened.Close()

	value, err := reopened.Get(data.NewText("name"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewText("Sai'd"), value)
}

func TestSync(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	assert.Nil(t, db.Put(data.NewText("k"), data.NewText("v")))
	assert.Nil(t, db.Sync())
	// idempotent
	assert.Nil(t, db.Sync())
}

func TestSyncWrites(t *testing.T) {
	options := DefaultOptions
	options.SyncWrites = true
	db := openTestDB(t, options)
	defer db.Close()

	assert.Nil(t, db.Put(data.NewText("k"), data.NewText("v")))
	value, err := db.Get(data.NewText("k"))
	assert.Nil(t, err)
	assert.Equal(t, data.NewText("v"), value)
}

func TestListKeys(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	keys, err := db.ListKeys()
	assert.Nil(t, err)
	assert.Equal(t, 0, len(keys))

	assert.Nil(t, db.Put(data.NewText("bb"), data.NewText("2")))
	assert.Nil(t, db.Put(data.NewText("aa"), data.NewText("1")))
	assert.Nil(t, db.Put(data.NewText("aa"), data.NewText("1+")))

	keys, err = db.ListKeys()
	assert.Nil(t, err)
	assert.Equal(t, []data.Value{data.NewText("aa"), data.NewText("bb")}, keys)
}

func TestFold(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	assert.Nil(t, db.Put(data.NewText("a"), data.NewInt(1)))
	assert.Nil(t, db.Put(data.NewText("b"), data.NewInt(2)))
	assert.Nil(t, db.Put(data.NewText("c"), data.NewInt(3)))

	var sum int64
	err := db.Fold(func(key data.Value, value data.Value) bool {
		sum += value.Int
		return true
	})
	assert.Nil(t, err)
	assert.Equal(t, int64(6), sum)

	// early stop
	var visited int
	err = db.Fold(func(key data.Value, value data.Value) bool {
		visited++
		return visited < 2
	})
	assert.Nil(t, err)
	assert.Equal(t, 2, visited)
}

func TestStat_BPlusTreeReopen(t *testing.T) {
	options := DefaultOptions
	options.Path = filepath.Join(t.TempDir(), "casklog.data")
	options.IndexType = BPlusTreeIndex

	db := openTestDB(t, options)
	assert.Nil(t, db.Put(data.NewText("k"), data.NewText("v1")))
	assert.Nil(t, db.Put(data.NewText("k"), data.NewText("v2")))
	assert.Equal(t, int64(20+1+2), db.Stat().ReclaimableSize)
	assert.Nil(t, db.Close())

	// no replay with the persistent directory: the counter starts over,
	// stale bytes written before the reopen go uncounted
	reopened := openTestDB(t, options)
	defer reopened.Close()
	assert.Equal(t, uint(1), reopened.Stat().KeyNum)
	assert.Equal(t, int64(0), reopened.Stat().ReclaimableSize)
}

func TestStat(t *testing.T) {
	db := openTestDB(t, DefaultOptions)
	defer db.Close()

	assert.Nil(t, db.Put(data.NewText("name"), data.NewText("Sai'd")))
	assert.Nil(t, db.Put(data.NewText("lang"), data.NewText("Ruby")))

	stat := db.Stat()
	assert.Equal(t, uint(2), stat.KeyNum)
	assert.Equal(t, int64((20+4+5)+(20+4+4)), stat.LogSize)
	assert.Equal(t, int64(0), stat.ReclaimableSize)
}
