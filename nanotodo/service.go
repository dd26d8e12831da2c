// Package nanotodo is the todo service: it normalizes and validates client
// payloads, stamps ids and timestamps, and delegates persistence to a
// storage.Backend chosen once at startup.
//
// Every operation takes an owner key. Records are only ever visible through
// the key they were created with; the empty key is a partition of its own.
package nanotodo

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arthur-debert/nanotodo/internal/validation"
	"github.com/arthur-debert/nanotodo/nanotodo/storage"
	"github.com/arthur-debert/nanotodo/types"
)

// Service implements the todo operations on top of a single backend.
// It is safe for concurrent use when the backend is.
type Service struct {
	backend       storage.Backend
	rules         Rules
	ownerRequired bool
	now           func() time.Time
	newID         func() string
	logger        *slog.Logger

	clockMu   sync.Mutex
	lastStamp time.Time
}

// New creates a Service over an initialized backend. The service takes
// ownership of the backend: Close closes it.
func New(backend storage.Backend, opts ...Option) *Service {
	s := defaultService()
	s.backend = backend
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the owner's todos, newest first. Ties on createdAt are
// ordered by id so the result is deterministic.
func (s *Service) List(ctx context.Context, ownerKey string) ([]types.Todo, error) {
	if err := s.checkOwner(ownerKey); err != nil {
		return nil, err
	}
	todos, err := s.backend.FindAll(ctx, ownerKey)
	if err != nil {
		return nil, s.storageError("list", err)
	}
	if todos == nil {
		todos = []types.Todo{}
	}
	storage.SortNewestFirst(todos)
	return todos, nil
}

// Get returns one todo or a *NotFoundError.
func (s *Service) Get(ctx context.Context, id, ownerKey string) (*types.Todo, error) {
	if err := s.checkOwner(ownerKey); err != nil {
		return nil, err
	}
	todo, err := s.backend.FindByID(ctx, id, ownerKey)
	if err != nil {
		return nil, s.lookupError("get", id, err)
	}
	return todo, nil
}

// Create validates the payload and stores a new todo. A payload that fails
// validation yields a *ValidationError and nothing is written.
func (s *Service) Create(ctx context.Context, p types.Payload, ownerKey string) (*types.Todo, error) {
	if err := s.checkOwner(ownerKey); err != nil {
		return nil, err
	}

	normalized := validation.NormalizeCreate(p)
	if errs := validation.ValidateCreate(normalized, s.rules); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	todo := validation.ToTodo(normalized)
	todo.ID = s.newID()
	todo.OwnerKey = ownerKey
	todo.CreatedAt = s.stamp()
	todo.UpdatedAt = todo.CreatedAt

	created, err := s.backend.Insert(ctx, todo)
	if err != nil {
		return nil, s.storageError("create", err)
	}
	s.logger.Debug("todo created", "id", created.ID, "owner", ownerKey)
	return created, nil
}

// Update applies the fields present in p. Absent fields keep their stored
// value; updatedAt is always refreshed.
func (s *Service) Update(ctx context.Context, id, ownerKey string, p types.Payload) (*types.Todo, error) {
	if err := s.checkOwner(ownerKey); err != nil {
		return nil, err
	}

	normalized := validation.NormalizeUpdate(p)
	if errs := validation.ValidateUpdate(normalized, s.rules); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	patch := validation.ToPatch(normalized)
	return s.apply(ctx, "update", id, ownerKey, patch)
}

// Toggle flips done on an existing todo.
func (s *Service) Toggle(ctx context.Context, id, ownerKey string) (*types.Todo, error) {
	current, err := s.Get(ctx, id, ownerKey)
	if err != nil {
		return nil, err
	}
	done := !current.Done
	return s.apply(ctx, "toggle", id, ownerKey, types.Patch{Done: &done})
}

// Delete reports whether a todo existed and was removed. Deleting a missing
// id is not an error.
func (s *Service) Delete(ctx context.Context, id, ownerKey string) (bool, error) {
	if err := s.checkOwner(ownerKey); err != nil {
		return false, err
	}
	removed, err := s.backend.Remove(ctx, id, ownerKey)
	if err != nil {
		return false, s.storageError("delete", err)
	}
	s.logger.Debug("todo delete", "id", id, "owner", ownerKey, "removed", removed)
	return removed, nil
}

// Close closes the backend.
func (s *Service) Close() error {
	return s.backend.Close()
}

func (s *Service) apply(ctx context.Context, op, id, ownerKey string, patch types.Patch) (*types.Todo, error) {
	patch.UpdatedAt = s.stamp()
	updated, err := s.backend.ReplaceOrMerge(ctx, id, ownerKey, patch)
	if err != nil {
		return nil, s.lookupError(op, id, err)
	}
	s.logger.Debug("todo updated", "op", op, "id", id, "owner", ownerKey)
	return updated, nil
}

func (s *Service) checkOwner(ownerKey string) error {
	if s.ownerRequired && ownerKey == "" {
		return &PreconditionError{Reason: "owner key required"}
	}
	return nil
}

// stamp returns the current time in UTC at millisecond precision, the
// precision every backend can store. Successive stamps strictly increase.
func (s *Service) stamp() time.Time {
	now := s.now().UTC().Truncate(time.Millisecond)

	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Millisecond)
	}
	s.lastStamp = now
	return now
}

func (s *Service) lookupError(op, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return s.storageError(op, err)
}

func (s *Service) storageError(op string, err error) error {
	s.logger.Error("storage operation failed", "op", op, "error", err)
	return &StorageError{Op: op, Err: err}
}
