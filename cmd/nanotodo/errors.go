package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotodo/nanotodo"
)

// CLIError represents a user-friendly CLI error with context and suggestions
type CLIError struct {
	Operation   string   // The operation that failed (e.g., "add", "list")
	Cause       string   // The underlying cause (e.g., "todo not found")
	Details     string   // Additional details, one per line
	Suggestions []string // Helpful suggestions for the user
	Underlying  error    // Original error for debugging
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var msg strings.Builder

	if e.Operation != "" {
		msg.WriteString(fmt.Sprintf("Failed to %s", e.Operation))
	} else {
		msg.WriteString("Operation failed")
	}
	if e.Cause != "" {
		msg.WriteString(fmt.Sprintf(": %s", e.Cause))
	}
	if e.Details != "" {
		msg.WriteString("\n")
		msg.WriteString(e.Details)
	}

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			msg.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return msg.String()
}

// Unwrap returns the underlying error for error chain compatibility
func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// NewConfigError creates an error for configuration issues
func NewConfigError(operation, issue string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("configuration error: %s", issue),
		Suggestions: suggestions,
	}
}

// NewInputError creates an error for malformed command input
func NewInputError(operation, issue string, underlying error) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       issue,
		Suggestions: []string{CommonSuggestions.CheckFlags, CommonSuggestions.RunHelp},
		Underlying:  underlying,
	}
}

// WrapError maps a service error to a CLIError. Storage details are only
// shown when verbose is set.
func WrapError(operation string, err error, verbose bool) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Operation == "" {
			cliErr.Operation = operation
		}
		return cliErr
	}

	var (
		validationErr   *nanotodo.ValidationError
		notFoundErr     *nanotodo.NotFoundError
		preconditionErr *nanotodo.PreconditionError
	)
	switch {
	case errors.As(err, &validationErr):
		lines := make([]string, len(validationErr.Errors))
		for i, fe := range validationErr.Errors {
			lines[i] = fmt.Sprintf("  - %s: %s", fe.Field, fe.Message)
		}
		return &CLIError{
			Operation:   operation,
			Cause:       "invalid todo",
			Details:     strings.Join(lines, "\n"),
			Suggestions: []string{CommonSuggestions.CheckTitle, CommonSuggestions.CheckDate},
			Underlying:  err,
		}
	case errors.As(err, &notFoundErr):
		return &CLIError{
			Operation:   operation,
			Cause:       fmt.Sprintf("todo %q not found", notFoundErr.ID),
			Suggestions: []string{CommonSuggestions.CheckID, CommonSuggestions.CheckOwner},
			Underlying:  err,
		}
	case errors.As(err, &preconditionErr):
		return &CLIError{
			Operation:   operation,
			Cause:       preconditionErr.Reason,
			Suggestions: []string{CommonSuggestions.SetOwner},
			Underlying:  err,
		}
	}

	cause := "internal error"
	if errors.Is(err, nanotodo.ErrStorage) {
		cause = "storage operation failed"
	}
	details := ""
	if verbose {
		details = err.Error()
	}
	return &CLIError{
		Operation:   operation,
		Cause:       cause,
		Details:     details,
		Suggestions: []string{CommonSuggestions.CheckDB, CommonSuggestions.Verbose},
		Underlying:  err,
	}
}

// Common error messages and suggestions
var (
	CommonSuggestions = struct {
		CheckTitle string
		CheckDate  string
		CheckID    string
		CheckOwner string
		SetOwner   string
		CheckDB    string
		CheckFlags string
		RunHelp    string
		Verbose    string
	}{
		CheckTitle: "Titles must be 4 to 100 characters after trimming",
		CheckDate:  "Use an ISO-8601 date such as 2030-01-31 or 2030-01-31T09:00:00Z",
		CheckID:    "Verify the todo ID exists (try 'list' command first)",
		CheckOwner: "Todos are only visible to the owner that created them",
		SetOwner:   "Pass --owner or set NANOTODO_OWNER",
		CheckDB:    "Verify --backend and --db (or --mongo-uri) point to a reachable store",
		CheckFlags: "Check command line flags and their values",
		RunHelp:    "Run command with --help for usage information",
		Verbose:    "Re-run with --verbose for details",
	}
)
