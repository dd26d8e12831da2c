package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotodo/nanotodo/storage"
)

// Backend names accepted by Config.Backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Defaults for the document store.
const (
	DefaultDatabase   = "todo_app"
	DefaultCollection = "todos"
)

// Config selects and locates a backend.
type Config struct {
	Backend    string
	Path       string // file and sqlite
	URI        string // mongo
	Database   string
	Collection string
}

// Open constructs the backend named by cfg and initializes it. The caller
// owns the returned backend and must Close it.
func Open(ctx context.Context, cfg Config, opts ...Option) (storage.Backend, error) {
	backend, err := build(cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize %s backend: %w", cfg.Backend, err)
	}
	return backend, nil
}

func build(cfg Config, opts []Option) (storage.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendFile, "json":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return NewJSONFileStore(cfg.Path, opts...), nil
	case BackendSQLite, "sql":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		sqlStore, err := NewSQLStore(cfg.Path, opts...)
		if err != nil {
			return nil, err
		}
		return sqlStore, nil
	case BackendMongo, "mongodb":
		if cfg.URI == "" {
			return nil, fmt.Errorf("mongo backend requires a uri")
		}
		if cfg.Database != "" {
			opts = append(opts, WithDatabase(cfg.Database))
		}
		if cfg.Collection != "" {
			opts = append(opts, WithCollection(cfg.Collection))
		}
		return NewMongoStore(cfg.URI, opts...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s, %s or %s)", cfg.Backend, BackendFile, BackendSQLite, BackendMongo)
	}
}
