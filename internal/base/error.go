package base

import "errors"

var (
	ErrInvalidMagicNumber = errors.New("invalid magic number")
	ErrInvalidChecksum    = errors.New("invalid header checksum")
	ErrCorruptPage        = errors.New("corrupt page")
	ErrInvalidValueSize   = errors.New("value size out of range")
)
