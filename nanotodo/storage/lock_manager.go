package storage

import (
	"sync"
)

// OperationType selects the lock mode used by LockManager.
type OperationType int

const (
	// ReadOperation takes the shared lock; reads run concurrently.
	ReadOperation OperationType = iota

	// WriteOperation takes the exclusive lock.
	WriteOperation
)

// LockManager is the single per-process gate in front of an in-memory
// collection. Backends that rewrite a whole medium on every mutation
// (the local-file store) route every call through it so that no two
// read-modify-write cycles interleave.
type LockManager struct {
	mu sync.RWMutex
}

// NewLockManager creates a ready-to-use lock manager.
func NewLockManager() *LockManager {
	return &LockManager{}
}

// Execute runs fn while holding the lock selected by opType.
//
//	err := lm.Execute(WriteOperation, func() error {
//	    data[owner] = append(data[owner], todo)
//	    return save()
//	})
func (lm *LockManager) Execute(opType OperationType, fn func() error) error {
	switch opType {
	case WriteOperation:
		lm.mu.Lock()
		defer lm.mu.Unlock()
	default:
		lm.mu.RLock()
		defer lm.mu.RUnlock()
	}
	return fn()
}

// ExecuteWithResult is Execute for functions that also produce a value.
func ExecuteWithResult[T any](lm *LockManager, opType OperationType, fn func() (T, error)) (T, error) {
	var result T
	err := lm.Execute(opType, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
