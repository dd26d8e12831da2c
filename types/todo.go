package types

import "time"

// Todo is the single persisted entity.
type Todo struct {
	ID          string    `json:"id" bson:"id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	DueDate     string    `json:"dueDate" bson:"dueDate"`
	Done        bool      `json:"done" bson:"done"`
	OwnerKey    string    `json:"ownerKey,omitempty" bson:"ownerKey"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Payload is a decoded JSON object as received from a client.
// Values keep their decoded dynamic types so that type checks
// (string, bool) can be reported as field errors.
type Payload map[string]interface{}

// Has reports whether key is present with a non-null value.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Patch specifies the fields to change on an existing todo.
// Nil pointers leave the stored value untouched.
type Patch struct {
	Title       *string
	Description *string
	DueDate     *string
	Done        *bool

	// UpdatedAt is always applied.
	UpdatedAt time.Time
}

// IsEmpty reports whether the patch changes nothing but the timestamp.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil && p.Done == nil
}

// Apply merges the patch into todo and returns the result.
func (p Patch) Apply(todo Todo) Todo {
	if p.Title != nil {
		todo.Title = *p.Title
	}
	if p.Description != nil {
		todo.Description = *p.Description
	}
	if p.DueDate != nil {
		todo.DueDate = *p.DueDate
	}
	if p.Done != nil {
		todo.Done = *p.Done
	}
	todo.UpdatedAt = p.UpdatedAt
	return todo
}

// FieldError describes a single rule violation on one payload field.
type FieldError struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}
