// Package storage defines the persistence contract for todos.
// Implementations live in the store package; everything above this
// boundary (the service and the CLI) only ever sees Backend.
package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/arthur-debert/nanotodo/types"
)

// ErrNotFound is returned when no todo matches the id within the owner's partition.
var ErrNotFound = errors.New("todo not found")

// Backend is the capability set shared by every storage variant.
//
// Every method scopes by ownerKey equality. The empty key is a partition of
// its own, so a record stored under "a" is never visible through "" or "b".
type Backend interface {
	// Init prepares the medium (loads the file, creates the schema, connects
	// and ensures indexes). It is safe to call more than once.
	Init(ctx context.Context) error

	// FindAll returns every todo in the owner's partition.
	FindAll(ctx context.Context, ownerKey string) ([]types.Todo, error)

	// FindByID returns ErrNotFound when the id does not exist in the partition.
	FindByID(ctx context.Context, id, ownerKey string) (*types.Todo, error)

	// Insert stores a fully populated todo and returns it as persisted.
	Insert(ctx context.Context, todo types.Todo) (*types.Todo, error)

	// ReplaceOrMerge applies the patch and returns the resulting todo,
	// or ErrNotFound.
	ReplaceOrMerge(ctx context.Context, id, ownerKey string, patch types.Patch) (*types.Todo, error)

	// Remove reports whether a record existed and was removed.
	Remove(ctx context.Context, id, ownerKey string) (bool, error)

	// Close releases the handle. The backend is unusable afterwards.
	Close() error
}

// StoreData is the on-disk layout of the local-file variant: one JSON object
// mapping owner key to that owner's todos, in insertion order.
type StoreData map[string][]types.Todo

// Count returns the total number of todos across all owners.
func (d StoreData) Count() int {
	n := 0
	for _, todos := range d {
		n += len(todos)
	}
	return n
}

// IndexOf returns the position of id in the owner's list, or -1.
func (d StoreData) IndexOf(id, ownerKey string) int {
	for i, todo := range d[ownerKey] {
		if todo.ID == id {
			return i
		}
	}
	return -1
}

// SortNewestFirst orders todos by CreatedAt descending, breaking ties by ID
// ascending so the order is total.
func SortNewestFirst(todos []types.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		if !todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].CreatedAt.After(todos[j].CreatedAt)
		}
		return todos[i].ID < todos[j].ID
	})
}
