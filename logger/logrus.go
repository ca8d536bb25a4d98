package logger

import (
	"github.com/sirupsen/logrus"

	"slotdb"
)

// Logrus logs through a logrus entry carrying fixed context fields.
type Logrus struct {
	entry *logrus.Entry
}

// NewLogrus creates a slotdb.Logger from a logrus.Logger. Optional key-value
// pairs in args are attached to every entry.
func NewLogrus(logger *logrus.Logger, args ...any) slotdb.Logger {
	return &Logrus{entry: logrus.NewEntry(logger).WithFields(toFields(args))}
}

func (l *Logrus) Error(msg string, args ...any) {
	l.entry.WithFields(toFields(args)).Error(msg)
}

func (l *Logrus) Warn(msg string, args ...any) {
	l.entry.WithFields(toFields(args)).Warn(msg)
}

func (l *Logrus) Info(msg string, args ...any) {
	l.entry.WithFields(toFields(args)).Info(msg)
}

func (l *Logrus) Debug(msg string, args ...any) {
	l.entry.WithFields(toFields(args)).Debug(msg)
}

func toFields(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2)
	eachPair(args, func(key string, value any) {
		fields[key] = value
	})
	return fields
}
