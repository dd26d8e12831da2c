package validation

import (
	"strings"

	"github.com/arthur-debert/nanotodo/types"
)

// aliases maps field names used by older clients to the canonical names.
var aliases = map[string]string{
	"name":      FieldTitle,
	"completed": FieldDone,
}

// trimmed are the string fields whose surrounding whitespace is dropped.
var trimmed = []string{FieldTitle, FieldDescription, FieldDueDate}

// NormalizeCreate prepares a full payload for validation: aliases are
// resolved, string fields trimmed, and description/done defaulted.
// The input is not modified.
func NormalizeCreate(p types.Payload) types.Payload {
	out := canonical(p)
	if !out.Has(FieldDescription) {
		out[FieldDescription] = ""
	}
	if !out.Has(FieldDone) {
		out[FieldDone] = false
	}
	return out
}

// NormalizeUpdate prepares a partial payload. Only present fields are
// touched; absence keeps meaning "leave unchanged".
func NormalizeUpdate(p types.Payload) types.Payload {
	return canonical(p)
}

func canonical(p types.Payload) types.Payload {
	out := p.Clone()
	for alias, field := range aliases {
		v, ok := out[alias]
		if !ok {
			continue
		}
		if !out.Has(field) {
			out[field] = v
		}
		delete(out, alias)
	}
	for k, v := range out {
		if v == nil {
			delete(out, k)
		}
	}
	for _, field := range trimmed {
		if s, ok := out[field].(string); ok {
			out[field] = strings.TrimSpace(s)
		}
	}
	return out
}

// ToTodo builds the caller-controlled fields of a todo from a normalized,
// validated create payload. Unknown keys are ignored.
func ToTodo(p types.Payload) types.Todo {
	var t types.Todo
	t.Title, _ = p[FieldTitle].(string)
	t.Description, _ = p[FieldDescription].(string)
	t.DueDate, _ = p[FieldDueDate].(string)
	t.Done, _ = p[FieldDone].(bool)
	return t
}

// ToPatch builds a patch from a normalized, validated update payload.
func ToPatch(p types.Payload) types.Patch {
	var patch types.Patch
	if s, ok := p[FieldTitle].(string); ok {
		patch.Title = &s
	}
	if s, ok := p[FieldDescription].(string); ok {
		patch.Description = &s
	}
	if s, ok := p[FieldDueDate].(string); ok {
		patch.DueDate = &s
	}
	if b, ok := p[FieldDone].(bool); ok {
		patch.Done = &b
	}
	return patch
}
