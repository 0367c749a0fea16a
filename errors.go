package casklog

import "errors"

var (
	ErrKeyNotFound       = errors.New("key not found in database")
	ErrDataFileCorrupted = errors.New("the data file maybe corrupted")
	ErrDatabaseIsUsing   = errors.New("the database file is used by another process")
)
