package nanotodo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotodo/types"
)

// Sentinels for errors.Is. Each typed error below matches exactly one.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("todo not found")
	ErrStorage      = errors.New("storage failure")
	ErrPrecondition = errors.New("precondition failed")
)

// ValidationError reports every rule a payload violated. Nothing was written.
type ValidationError struct {
	Errors []types.FieldError
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Error()
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Fields lists the offending field names in report order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		fields[i] = fe.Field
	}
	return fields
}

// NotFoundError means the id does not exist within the caller's owner key.
// A todo stored under another owner is reported the same way.
type NotFoundError struct {
	ID string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("todo %q not found", e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StorageError wraps a backend failure. The service never retries it.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

// Unwrap allows error unwrapping
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// PreconditionError is returned when the deployment requires an owner key
// and the call carried none.
type PreconditionError struct {
	Reason string
}

// Error implements the error interface
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrPrecondition, e.Reason)
}

// Is matches ErrPrecondition.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}
