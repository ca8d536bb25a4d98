package slotdb

import (
	"errors"

	"slotdb/internal/algo"
	"slotdb/internal/base"
	"slotdb/internal/cache"
	"slotdb/internal/storage"
)

//goland:noinspection GoUnusedGlobalVariable
var (
	ErrDatabaseClosed = errors.New("database is closed")

	ErrKeyNotFound      = algo.ErrKeyNotFound
	ErrDuplicateKey     = algo.ErrDuplicateKey
	ErrInvalidValueSize = algo.ErrInvalidValueSize
	ErrTreeCorrupted    = algo.ErrTreeCorrupted

	ErrPoolExhausted   = cache.ErrPoolExhausted
	ErrInvalidPoolSize = cache.ErrInvalidPoolSize

	ErrTableCorrupted = storage.ErrTableCorrupted
	ErrTableNotFound  = storage.ErrTableNotFound

	ErrInvalidMagicNumber = base.ErrInvalidMagicNumber
	ErrInvalidChecksum    = base.ErrInvalidChecksum
	ErrCorruptPage        = base.ErrCorruptPage
)
