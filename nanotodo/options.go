package nanotodo

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arthur-debert/nanotodo/internal/validation"
)

// Rules is the per-deployment validation policy.
type Rules = validation.Rules

// DefaultRules requires a due date on create.
func DefaultRules() Rules {
	return validation.DefaultRules()
}

// Option configures a Service.
type Option func(*Service)

// WithRules sets the validation policy.
func WithRules(rules Rules) Option {
	return func(s *Service) {
		s.rules = rules
	}
}

// WithOwnerRequired makes every call without an owner key fail with a
// PreconditionError.
func WithOwnerRequired(required bool) Option {
	return func(s *Service) {
		s.ownerRequired = required
	}
}

// WithTimeFunc replaces the clock used for createdAt/updatedAt.
func WithTimeFunc(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithIDFunc replaces the id generator. Ids must be unique.
func WithIDFunc(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func defaultService() *Service {
	return &Service{
		rules:  validation.DefaultRules(),
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.New(slog.DiscardHandler),
	}
}
