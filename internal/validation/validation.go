// Package validation holds the field rules and input normalization for todo payloads.
// Both halves are pure: they never touch storage and never return Go errors for
// business-rule violations. Violations come back as a list of field errors.
package validation

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/arthur-debert/nanotodo/types"
)

// Canonical payload field names.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDueDate     = "dueDate"
	FieldDone        = "done"
)

// Length limits, counted in Unicode code points after trimming.
const (
	TitleMinLength       = 4
	TitleMaxLength       = 100
	DescriptionMaxLength = 500
)

// Messages reported in FieldError.Message.
var (
	MsgTitleRequired     = "title required"
	MsgTitleLength       = fmt.Sprintf("title must be %d to %d characters", TitleMinLength, TitleMaxLength)
	MsgDescriptionLength = fmt.Sprintf("description must be 0 to %d characters", DescriptionMaxLength)
	MsgDueDateRequired   = "dueDate required"
	MsgDueDateInvalid    = "dueDate must be a valid date"
	MsgDoneMustBeBoolean = "done must be a boolean"
)

// Rules carries the per-deployment policy knobs. A deployment picks one
// Rules value at startup and uses it for every backend.
type Rules struct {
	// DueDateRequired makes dueDate mandatory on create.
	DueDateRequired bool
}

// DefaultRules requires a due date, which is what most deployments expect.
func DefaultRules() Rules {
	return Rules{DueDateRequired: true}
}

// dueDateLayouts are tried in order. Layouts without a zone are read as UTC.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate parses an ISO-8601 date or date-time.
func ParseDueDate(s string) (time.Time, error) {
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ValidateCreate checks a full (normalized) payload. Every violated rule is
// reported, in the fixed order title, description, dueDate, done.
func ValidateCreate(p types.Payload, rules Rules) []types.FieldError {
	var errs []types.FieldError
	errs = appendTitle(errs, p)
	if p.Has(FieldDescription) {
		errs = appendDescription(errs, p)
	}
	if p.Has(FieldDueDate) {
		errs = appendDueDate(errs, p)
	} else if rules.DueDateRequired {
		errs = append(errs, types.FieldError{Field: FieldDueDate, Message: MsgDueDateRequired})
	}
	if p.Has(FieldDone) {
		errs = appendDone(errs, p)
	}
	return errs
}

// ValidateUpdate checks a partial (normalized) payload. Absent fields are
// never checked; present fields get the same rule as on create. An empty
// payload is valid.
func ValidateUpdate(p types.Payload, _ Rules) []types.FieldError {
	var errs []types.FieldError
	if p.Has(FieldTitle) {
		errs = appendTitle(errs, p)
	}
	if p.Has(FieldDescription) {
		errs = appendDescription(errs, p)
	}
	if p.Has(FieldDueDate) {
		errs = appendDueDate(errs, p)
	}
	if p.Has(FieldDone) {
		errs = appendDone(errs, p)
	}
	return errs
}

func appendTitle(errs []types.FieldError, p types.Payload) []types.FieldError {
	title, ok := p[FieldTitle].(string)
	if !ok {
		return append(errs, types.FieldError{Field: FieldTitle, Message: MsgTitleRequired})
	}
	if n := utf8.RuneCountInString(title); n < TitleMinLength || n > TitleMaxLength {
		return append(errs, types.FieldError{Field: FieldTitle, Message: MsgTitleLength})
	}
	return errs
}

func appendDescription(errs []types.FieldError, p types.Payload) []types.FieldError {
	desc, ok := p[FieldDescription].(string)
	if !ok || utf8.RuneCountInString(desc) > DescriptionMaxLength {
		return append(errs, types.FieldError{Field: FieldDescription, Message: MsgDescriptionLength})
	}
	return errs
}

func appendDueDate(errs []types.FieldError, p types.Payload) []types.FieldError {
	s, ok := p[FieldDueDate].(string)
	if !ok {
		return append(errs, types.FieldError{Field: FieldDueDate, Message: MsgDueDateInvalid})
	}
	if _, err := ParseDueDate(s); err != nil {
		return append(errs, types.FieldError{Field: FieldDueDate, Message: MsgDueDateInvalid})
	}
	return errs
}

func appendDone(errs []types.FieldError, p types.Payload) []types.FieldError {
	if _, ok := p[FieldDone].(bool); !ok {
		return append(errs, types.FieldError{Field: FieldDone, Message: MsgDoneMustBeBoolean})
	}
	return errs
}
