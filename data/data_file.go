package data

import (
	"errors"
	"io"

	"casklog/fio"
)

// DataFile is the single append-only log file backing a store. WriteOff is
// the next append offset and always equals the end of written data.
type DataFile struct {
	Path      string
	WriteOff  int64
	IoManager fio.IOManager
}

// OpenDataFile opens (creating if absent) the log file at path. The write
// offset starts at the current end of the file.
func OpenDataFile(path string) (*DataFile, error) {
	ioManager, err := fio.NewIOManager(path)
	if err != nil {
		return nil, err
	}
	size, err := ioManager.Size()
	if err != nil {
		_ = ioManager.Close()
		return nil, err
	}
	return &DataFile{
		Path:      path,
		WriteOff:  size,
		IoManager: ioManager,
	}, nil
}

// ReadLogRecord reads and decodes the record starting at offset, returning
// the record and its total on-disk size. io.EOF signals the end of the log;
// a record cut short by the end of the file reports ErrInvalidCRC.
func (df *DataFile) ReadLogRecord(offset int64) (*LogRecord, int64, error) {
	fileSize, err := df.IoManager.Size()
	if err != nil {
		return nil, 0, err
	}
	if offset >= fileSize {
		return nil, 0, io.EOF
	}

	headerBuf, err := df.readNBytes(recordMinSize, offset)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrInvalidCRC
		}
		return nil, 0, err
	}
	header, err := decodeLogRecordHeader(headerBuf)
	if err != nil {
		return nil, 0, err
	}

	size := int64(recordMinSize) + int64(header.keySize) + int64(header.valueSize)
	recordBuf, err := df.readNBytes(size, offset)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrInvalidCRC
		}
		return nil, 0, err
	}

	record, err := DecodeLogRecord(recordBuf)
	if err != nil {
		return nil, 0, err
	}
	return record, size, nil
}

// Write appends buf and advances the write offset.
func (df *DataFile) Write(buf []byte) error {
	n, err := df.IoManager.Write(buf)
	if err != nil {
		return err
	}
	df.WriteOff += int64(n)
	return nil
}

func (df *DataFile) Sync() error {
	return df.IoManager.Sync()
}

func (df *DataFile) Close() error {
	return df.IoManager.Close()
}

func (df *DataFile) readNBytes(n int64, offset int64) ([]byte, error) {
	b := make([]byte, n)
	if _, err := df.IoManager.Read(b, offset); err != nil {
		return nil, err
	}
	return b, nil
}
