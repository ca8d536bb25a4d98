package storage

import "errors"

var (
	ErrTableCorrupted = errors.New("table corrupted")
	ErrTableNotFound  = errors.New("table not found")
)
