package base

// Logger is the logging surface shared by the internal packages. It has the
// same method set as slotdb.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// DiscardLogger drops everything.
type DiscardLogger struct{}

func (DiscardLogger) Error(string, ...any) {}

func (DiscardLogger) Warn(string, ...any) {}

func (DiscardLogger) Info(string, ...any) {}

func (DiscardLogger) Debug(string, ...any) {}
