package algo

import (
	"errors"

	"slotdb/internal/base"
)

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrInvalidValueSize = base.ErrInvalidValueSize
	ErrTreeCorrupted    = errors.New("tree invariant violated")
)
