package data

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

// ValueType tags how a key or value payload is encoded on disk.
type ValueType = uint16

const (
	TypeText  ValueType = 1
	TypeInt   ValueType = 2
	TypeFloat ValueType = 3
)

var (
	ErrInvalidCRC      = errors.New("invalid crc value, log record maybe corrupted")
	ErrUnsupportedType = errors.New("unsupported value type")
)

// crc(4) + timestamp(4) + keySize(4) + valueSize(4) + keyType(2) + valueType(2)
const (
	headerSize    = 16
	recordMinSize = crc32.Size + headerSize
)

// Value is the closed union of types a record can carry: text, signed
// 64-bit integer, or 64-bit float. The zero Value is invalid.
type Value struct {
	Type  ValueType
	Text  string
	Int   int64
	Float float64
}

func NewText(s string) Value   { return Value{Type: TypeText, Text: s} }
func NewInt(i int64) Value     { return Value{Type: TypeInt, Int: i} }
func NewFloat(f float64) Value { return Value{Type: TypeFloat, Float: f} }

// ValueOf resolves a runtime Go value into the union. Anything outside
// string/int/int64/float64 is a caller error.
func ValueOf(v interface{}) (Value, error) {
	switch x := v.(type) {
	case string:
		return NewText(x), nil
	case int:
		return NewInt(int64(x)), nil
	case int64:
		return NewInt(x), nil
	case float64:
		return NewFloat(x), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// String renders the payload without the type tag, for CLI output.
func (v Value) String() string {
	switch v.Type {
	case TypeText:
		return v.Text
	case TypeInt:
		return fmt.Sprintf("%d", v.Int)
	case TypeFloat:
		return fmt.Sprintf("%g", v.Float)
	default:
		return fmt.Sprintf("<invalid type %d>", v.Type)
	}
}

// encodePayload returns the raw payload bytes for a value.
func encodePayload(v Value) ([]byte, error) {
	switch v.Type {
	case TypeText:
		return []byte(v.Text), nil
	case TypeInt:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v.Int))
		return buf, nil
	case TypeFloat:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.Float))
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnsupportedType, v.Type)
	}
}

// decodePayload rebuilds a value from its payload bytes and type tag.
// Text bytes are taken as-is, invalid UTF-8 included. Numeric payloads are
// fixed 8 bytes; any other length only occurs in a forged record, since the
// codec never writes one and corruption fails the checksum first.
func decodePayload(typ ValueType, buf []byte) (Value, error) {
	switch typ {
	case TypeText:
		return NewText(string(buf)), nil
	case TypeInt:
		if len(buf) != 8 {
			return Value{}, ErrInvalidCRC
		}
		return NewInt(int64(binary.LittleEndian.Uint64(buf))), nil
	case TypeFloat:
		if len(buf) != 8 {
			return Value{}, ErrInvalidCRC
		}
		return NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(buf))), nil
	default:
		return Value{}, fmt.Errorf("%w: tag %d", ErrUnsupportedType, typ)
	}
}

// EncodeKey returns the key-directory form of a key: the 2-byte type tag
// followed by the payload. Keeps Text("25") and Int(25) distinct.
func EncodeKey(key Value) ([]byte, error) {
	payload, err := encodePayload(key)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 2+len(payload))
	binary.LittleEndian.PutUint16(buf, key.Type)
	copy(buf[2:], payload)
	return buf, nil
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(buf []byte) (Value, error) {
	if len(buf) < 2 {
		return Value{}, fmt.Errorf("%w: short key", ErrUnsupportedType)
	}
	return decodePayload(binary.LittleEndian.Uint16(buf), buf[2:])
}

// LogRecord is one write of one key/value pair, as stored in the log.
type LogRecord struct {
	Timestamp uint32
	Key       Value
	Value     Value
}

// logRecordHeader holds the fixed fields that follow the CRC.
type logRecordHeader struct {
	crc       uint32
	timestamp uint32
	keySize   uint32
	valueSize uint32
	keyType   ValueType
	valueType ValueType
}

// EncodeLogRecord encodes a record as
//
//	crc | timestamp | keySize | valueSize | keyType | valueType | key | value
//
// all little-endian, and returns the bytes along with the total length.
func EncodeLogRecord(rec *LogRecord) ([]byte, int64, error) {
	keyBuf, err := encodePayload(rec.Key)
	if err != nil {
		return nil, 0, err
	}
	valueBuf, err := encodePayload(rec.Value)
	if err != nil {
		return nil, 0, err
	}

	size := recordMinSize + len(keyBuf) + len(valueBuf)
	buf := make([]byte, size)

	binary.LittleEndian.PutUint32(buf[4:], rec.Timestamp)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(keyBuf)))
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(valueBuf)))
	binary.LittleEndian.PutUint16(buf[16:], rec.Key.Type)
	binary.LittleEndian.PutUint16(buf[18:], rec.Value.Type)
	copy(buf[recordMinSize:], keyBuf)
	copy(buf[recordMinSize+len(keyBuf):], valueBuf)

	crc := crc32.ChecksumIEEE(buf[crc32.Size:])
	binary.LittleEndian.PutUint32(buf[:4], crc)

	return buf, int64(size), nil
}

// decodeLogRecordHeader parses the CRC and fixed header fields.
func decodeLogRecordHeader(buf []byte) (*logRecordHeader, error) {
	if len(buf) < recordMinSize {
		return nil, ErrInvalidCRC
	}
	return &logRecordHeader{
		crc:       binary.LittleEndian.Uint32(buf[:4]),
		timestamp: binary.LittleEndian.Uint32(buf[4:]),
		keySize:   binary.LittleEndian.Uint32(buf[8:]),
		valueSize: binary.LittleEndian.Uint32(buf[12:]),
		keyType:   binary.LittleEndian.Uint16(buf[16:]),
		valueType: binary.LittleEndian.Uint16(buf[18:]),
	}, nil
}

// DecodeLogRecord decodes exactly one complete record. A checksum mismatch
// (or a buffer that disagrees with the lengths in its header) reports
// ErrInvalidCRC; callers treat that record as absent. An unknown type tag
// under a valid checksum reports ErrUnsupportedType and is always surfaced.
func DecodeLogRecord(buf []byte) (*LogRecord, error) {
	header, err := decodeLogRecordHeader(buf)
	if err != nil {
		return nil, err
	}
	if int(header.keySize)+int(header.valueSize) != len(buf)-recordMinSize {
		return nil, ErrInvalidCRC
	}
	if crc32.ChecksumIEEE(buf[crc32.Size:]) != header.crc {
		return nil, ErrInvalidCRC
	}

	keyBuf := buf[recordMinSize : recordMinSize+header.keySize]
	valueBuf := buf[recordMinSize+header.keySize:]

	key, err := decodePayload(header.keyType, keyBuf)
	if err != nil {
		return nil, err
	}
	value, err := decodePayload(header.valueType, valueBuf)
	if err != nil {
		return nil, err
	}

	return &LogRecord{
		Timestamp: header.timestamp,
		Key:       key,
		Value:     value,
	}, nil
}

// RecordPos locates one record inside the log file.
type RecordPos struct {
	Offset int64  // byte position of the record's CRC field
	Size   uint32 // total record length, CRC included
}

// EncodeRecordPos encodes a position for the persistent index.
func EncodeRecordPos(pos *RecordPos) []byte {
	buf := make([]byte, binary.MaxVarintLen64+binary.MaxVarintLen32)
	var index = 0
	index += binary.PutVarint(buf[index:], pos.Offset)
	index += binary.PutVarint(buf[index:], int64(pos.Size))
	return buf[:index]
}

// DecodeRecordPos decodes a position written by EncodeRecordPos.
func DecodeRecordPos(buf []byte) *RecordPos {
	var index = 0
	offset, n := binary.Varint(buf[index:])
	index += n
	size, _ := binary.Varint(buf[index:])
	return &RecordPos{Offset: offset, Size: uint32(size)}
}
