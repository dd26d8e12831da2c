package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/nanotodo/nanotodo/storage"
	"github.com/arthur-debert/nanotodo/types"
)

const (
	defaultLockTimeout = 3 * time.Second
	lockRetryDelay     = 100 * time.Millisecond
)

var errNotInitialized = errors.New("store not initialized")

// JSONFileStore is the local-file backend. The whole collection lives in
// memory and every mutation rewrites the file through a temp file and a
// rename, so a failed write leaves the previous file intact.
//
// All calls go through one LockManager, which serializes the
// read-modify-write cycle inside the process. Writes also hold the flock
// on <path>.lock while they reload the file, apply the change and save,
// so concurrent processes never overwrite each other's todos. Reads are
// served from the copy taken at the last load.
type JSONFileStore struct {
	filePath    string
	fs          FileSystem
	fileLock    FileLock
	lockTimeout time.Duration
	lockManager *storage.LockManager
	logger      *slog.Logger

	data   storage.StoreData
	loaded bool
	closed bool
}

// NewJSONFileStore creates a local-file backend for filePath. Nothing is
// read until Init.
func NewJSONFileStore(filePath string, opts ...Option) *JSONFileStore {
	o := newOptions(opts)
	return &JSONFileStore{
		filePath:    filePath,
		fs:          o.fs,
		fileLock:    o.lockFactory.New(filePath + ".lock"),
		lockTimeout: o.lockTimeout,
		lockManager: storage.NewLockManager(),
		logger:      o.logger.With("backend", BackendFile, "path", filePath),
		data:        storage.StoreData{},
	}
}

// Init loads the file if it exists. A missing or empty file is an empty store.
func (s *JSONFileStore) Init(ctx context.Context) error {
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		if s.closed {
			return errors.New("store is closed")
		}
		if s.loaded {
			return nil
		}
		if err := s.fs.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		if err := s.withFileLock(ctx, s.load); err != nil {
			return err
		}
		s.loaded = true
		s.logger.Debug("todos file loaded", "todos", s.data.Count())
		return nil
	})
}

// FindAll implements storage.Backend.
func (s *JSONFileStore) FindAll(_ context.Context, ownerKey string) ([]types.Todo, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() ([]types.Todo, error) {
		if err := s.ready(); err != nil {
			return nil, err
		}
		todos := make([]types.Todo, len(s.data[ownerKey]))
		copy(todos, s.data[ownerKey])
		return todos, nil
	})
}

// FindByID implements storage.Backend.
func (s *JSONFileStore) FindByID(_ context.Context, id, ownerKey string) (*types.Todo, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() (*types.Todo, error) {
		if err := s.ready(); err != nil {
			return nil, err
		}
		idx := s.data.IndexOf(id, ownerKey)
		if idx < 0 {
			return nil, storage.ErrNotFound
		}
		todo := s.data[ownerKey][idx]
		return &todo, nil
	})
}

// Insert implements storage.Backend.
func (s *JSONFileStore) Insert(ctx context.Context, todo types.Todo) (*types.Todo, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.WriteOperation, func() (*types.Todo, error) {
		if err := s.ready(); err != nil {
			return nil, err
		}
		owner := todo.OwnerKey
		err := s.reloadAndSave(ctx, func() (func(), error) {
			if s.data.IndexOf(todo.ID, owner) >= 0 {
				return nil, fmt.Errorf("duplicate todo id %q", todo.ID)
			}
			previous, existed := s.data[owner]
			s.data[owner] = append(previous[:len(previous):len(previous)], todo)
			return func() {
				if existed {
					s.data[owner] = previous
				} else {
					delete(s.data, owner)
				}
			}, nil
		})
		if err != nil {
			return nil, err
		}
		return &todo, nil
	})
}

// ReplaceOrMerge implements storage.Backend.
func (s *JSONFileStore) ReplaceOrMerge(ctx context.Context, id, ownerKey string, patch types.Patch) (*types.Todo, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.WriteOperation, func() (*types.Todo, error) {
		if err := s.ready(); err != nil {
			return nil, err
		}
		var updated types.Todo
		err := s.reloadAndSave(ctx, func() (func(), error) {
			idx := s.data.IndexOf(id, ownerKey)
			if idx < 0 {
				return nil, storage.ErrNotFound
			}
			old := s.data[ownerKey][idx]
			updated = patch.Apply(old)
			s.data[ownerKey][idx] = updated
			return func() { s.data[ownerKey][idx] = old }, nil
		})
		if err != nil {
			return nil, err
		}
		return &updated, nil
	})
}

// Remove implements storage.Backend.
func (s *JSONFileStore) Remove(ctx context.Context, id, ownerKey string) (bool, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.WriteOperation, func() (bool, error) {
		if err := s.ready(); err != nil {
			return false, err
		}
		removed := false
		err := s.reloadAndSave(ctx, func() (func(), error) {
			idx := s.data.IndexOf(id, ownerKey)
			if idx < 0 {
				return nil, nil
			}
			previous := s.data[ownerKey]
			remaining := make([]types.Todo, 0, len(previous)-1)
			remaining = append(remaining, previous[:idx]...)
			remaining = append(remaining, previous[idx+1:]...)
			if len(remaining) == 0 {
				delete(s.data, ownerKey)
			} else {
				s.data[ownerKey] = remaining
			}
			removed = true
			return func() { s.data[ownerKey] = previous }, nil
		})
		if err != nil {
			return false, err
		}
		return removed, nil
	})
}

// Close implements storage.Backend. Every mutation is already on disk.
func (s *JSONFileStore) Close() error {
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		s.closed = true
		return nil
	})
}

func (s *JSONFileStore) ready() error {
	if s.closed {
		return errors.New("store is closed")
	}
	if !s.loaded {
		return errNotInitialized
	}
	return nil
}

// withFileLock runs fn while holding the cross-process lock file.
func (s *JSONFileStore) withFileLock(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock on %s", s.filePath)
	}
	defer func() { _ = s.fileLock.Unlock() }()

	return fn()
}

// load reads the file into memory. Caller holds both locks.
func (s *JSONFileStore) load() error {
	raw, err := s.fs.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = storage.StoreData{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		s.data = storage.StoreData{}
		return nil
	}

	var data storage.StoreData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.filePath, err)
	}
	if data == nil {
		data = storage.StoreData{}
	}
	for owner, todos := range data {
		for i := range todos {
			todos[i].OwnerKey = owner
		}
	}
	s.data = data
	return nil
}

// reloadAndSave holds the file lock across load, change and save. change
// mutates s.data and returns a func that undoes it; a nil undo means there
// is nothing to write.
func (s *JSONFileStore) reloadAndSave(ctx context.Context, change func() (undo func(), err error)) error {
	return s.withFileLock(ctx, func() error {
		if err := s.load(); err != nil {
			return err
		}
		undo, err := change()
		if err != nil || undo == nil {
			return err
		}
		if err := s.save(); err != nil {
			undo()
			return err
		}
		return nil
	})
}

// save rewrites the whole file: write <path>.tmp, then rename over <path>.
func (s *JSONFileStore) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := s.fs.WriteFile(tmpFile, raw, 0o644); err != nil {
		_ = s.fs.Remove(tmpFile)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := s.fs.Rename(tmpFile, s.filePath); err != nil {
		_ = s.fs.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
