package logger

import (
	"go.uber.org/zap"

	"slotdb"
)

// Zap logs through a sugared zap logger.
type Zap struct {
	logger *zap.SugaredLogger
}

// NewZap creates a slotdb.Logger from a zap.Logger. Optional key-value pairs
// in args are attached to every entry.
func NewZap(logger *zap.Logger, args ...any) slotdb.Logger {
	return &Zap{logger: logger.Sugar().With(keysAndValues(args)...)}
}

func (z *Zap) Error(msg string, args ...any) {
	z.logger.Errorw(msg, keysAndValues(args)...)
}

func (z *Zap) Warn(msg string, args ...any) {
	z.logger.Warnw(msg, keysAndValues(args)...)
}

func (z *Zap) Info(msg string, args ...any) {
	z.logger.Infow(msg, keysAndValues(args)...)
}

func (z *Zap) Debug(msg string, args ...any) {
	z.logger.Debugw(msg, keysAndValues(args)...)
}

// keysAndValues drops malformed pairs before zap sees them; zap would log
// its own error for each one.
func keysAndValues(args []any) []any {
	kv := make([]any, 0, len(args))
	eachPair(args, func(key string, value any) {
		kv = append(kv, key, value)
	})
	return kv
}
