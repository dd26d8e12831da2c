package store

import (
	"log/slog"
	"time"
)

// options collects the knobs shared by every backend constructor. Each
// backend reads only the fields that concern it.
type options struct {
	logger      *slog.Logger
	fs          FileSystem
	lockFactory FileLockFactory
	lockTimeout time.Duration
	database    string
	collection  string
}

// Option configures a backend at construction time.
type Option func(*options)

// WithLogger sets the logger used for backend diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFileSystem replaces the file system used by the local-file store.
func WithFileSystem(fs FileSystem) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithFileLockFactory replaces the cross-process lock used by the local-file store.
func WithFileLockFactory(factory FileLockFactory) Option {
	return func(o *options) {
		o.lockFactory = factory
	}
}

// WithLockTimeout bounds how long the local-file store waits for its lock file.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// WithDatabase names the document-store database.
func WithDatabase(name string) Option {
	return func(o *options) {
		o.database = name
	}
}

// WithCollection names the document-store collection.
func WithCollection(name string) Option {
	return func(o *options) {
		o.collection = name
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:      slog.New(slog.DiscardHandler),
		fs:          OSFileSystem{},
		lockFactory: FlockFactory{},
		lockTimeout: defaultLockTimeout,
		database:    DefaultDatabase,
		collection:  DefaultCollection,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
