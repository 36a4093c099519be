package learning

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dunamismax/smartlearn/internal/access"
	"github.com/dunamismax/smartlearn/internal/store"
)

// The service reuses the store and access sentinels so callers can match on
// one set of errors regardless of where a failure originated.
var (
	ErrNotFound     = store.ErrNotFound
	ErrConflict     = store.ErrConflict
	ErrForbidden    = access.ErrDenied
	ErrInvalid      = errors.New("invalid input")
	ErrUnauthorized = errors.New("invalid credentials")
	ErrUnavailable  = errors.New("object storage is unavailable")
)

// ValidationError carries per-field messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

func invalid(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}
