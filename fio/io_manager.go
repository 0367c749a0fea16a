package fio

const DataFilePerm = 0644

// IOManager abstracts file IO so other backends can be plugged in later.
// Only standard file IO is implemented.
type IOManager interface {
	// Read fills b from the given offset in the file.
	Read(b []byte, offset int64) (int, error)

	// Write appends b at the end of the file.
	Write(b []byte) (int, error)

	// Sync flushes buffered data to the storage device.
	Sync() error

	// Close closes the file.
	Close() error

	// Size returns the current file size in bytes.
	Size() (int64, error)
}

// NewIOManager opens the file at fileName for append and offset reads.
func NewIOManager(fileName string) (IOManager, error) {
	return NewFileIOManager(fileName)
}
