package slotdb

import "slotdb/internal/base"

const (
	// DefaultPoolSize is the number of buffer pool frames when no size is given.
	DefaultPoolSize = 1024

	// MinPoolSize is the smallest pool Open will build. Smaller requests are
	// raised to it.
	MinPoolSize = 8
)

// Options configures a DB.
type Options struct {
	poolSize     int
	initialPages uint64
	syncOff      bool
	directIO     bool
	logger       Logger
}

func defaultOptions() Options {
	return Options{
		poolSize:     DefaultPoolSize,
		initialPages: base.DefaultInitialPages,
		logger:       DiscardLogger{},
	}
}

// Option configures database options using the functional options pattern.
type Option func(*Options)

// WithPoolSize sets the number of page frames in the buffer pool.
//
//goland:noinspection GoUnusedExportedFunction
func WithPoolSize(frames int) Option {
	return func(opts *Options) {
		opts.poolSize = frames
	}
}

// WithInitialPages sets the page count of newly created table files.
//
//goland:noinspection GoUnusedExportedFunction
func WithInitialPages(n uint64) Option {
	return func(opts *Options) {
		opts.initialPages = n
	}
}

// WithSyncOff disables the durability barrier after file writes.
// All data not yet written back is lost on crash. Only use for testing or
// bulk loads where data can be reconstructed.
//
//goland:noinspection GoUnusedExportedFunction
func WithSyncOff() Option {
	return func(opts *Options) {
		opts.syncOff = true
	}
}

// WithDirectIO opens table files bypassing the OS page cache where the
// platform supports it.
//
//goland:noinspection GoUnusedExportedFunction
func WithDirectIO() Option {
	return func(opts *Options) {
		opts.directIO = true
	}
}

// WithLogger sets the logger. Defaults to DiscardLogger.
//
//goland:noinspection GoUnusedExportedFunction
func WithLogger(l Logger) Option {
	return func(opts *Options) {
		if l != nil {
			opts.logger = l
		}
	}
}
