package storage

import "slotdb/internal/base"

// Options configures a Manager.
type Options struct {
	initialPages uint64
	syncOff      bool
	directIO     bool
	logger       base.Logger
}

// Option configures a Manager using the functional options pattern.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		initialPages: base.DefaultInitialPages,
		logger:       base.DiscardLogger{},
	}
}

// WithInitialPages sets the page count of newly created table files,
// header included. Values below 2 are raised to 2.
func WithInitialPages(n uint64) Option {
	return func(o *Options) {
		o.initialPages = max(n, 2)
	}
}

// WithSyncOff drops the durability barrier after writes. Testing and bulk
// loads only.
func WithSyncOff() Option {
	return func(o *Options) {
		o.syncOff = true
	}
}

// WithDirectIO opens table files with the OS page cache bypassed.
func WithDirectIO() Option {
	return func(o *Options) {
		o.directIO = true
	}
}

// WithLogger sets the logger.
func WithLogger(l base.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}
