package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by metadata readers when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ConfigurationError indicates a source configuration that cannot be used.
// It is fatal to that source and surfaced to the administrator.
type ConfigurationError struct {
	SourceID string
	Field    string
	Message  string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid source configuration")
	if e.SourceID != "" {
		fmt.Fprintf(&b, " %q", e.SourceID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// ErrConfiguration creates a ConfigurationError for a field with a formatted message.
func ErrConfiguration(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnsupportedDialectError is returned when a source type has no registered client or dialect.
type UnsupportedDialectError struct {
	Type      string
	Available []string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("unsupported dialect %q (available: %s)", e.Type, strings.Join(e.Available, ", "))
}

// InvalidValueError rejects a single field write. It names the offending
// column and the violated constraint.
type InvalidValueError struct {
	Column     string
	Constraint string
	Value      any
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for column %q: %s", e.Column, e.Constraint)
}

// ErrInvalidValue creates an InvalidValueError for col.
func ErrInvalidValue(col *Column, value any, format string, args ...any) *InvalidValueError {
	name := ""
	if col != nil {
		name = col.Title
		if name == "" {
			name = col.ColumnName
		}
	}
	return &InvalidValueError{Column: name, Constraint: fmt.Sprintf(format, args...), Value: value}
}

// FieldErrors aggregates per-field validation failures of one row.
type FieldErrors []*InvalidValueError

func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes each field error to errors.As.
func (e FieldErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, fe := range e {
		errs[i] = fe
	}
	return errs
}

// UnresolvedReferenceError marks a computed column whose reference chain is
// broken (deleted column, broken link, cycle). It never leaves the compiler:
// handlers turn it into a NULL expression.
type UnresolvedReferenceError struct {
	ColumnID string
	Reason   string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference from column %s: %s", e.ColumnID, e.Reason)
}

// Unresolved creates an UnresolvedReferenceError.
func Unresolved(columnID, format string, args ...any) *UnresolvedReferenceError {
	return &UnresolvedReferenceError{ColumnID: columnID, Reason: fmt.Sprintf(format, args...)}
}

// IsUnresolved reports whether err is or wraps an UnresolvedReferenceError.
func IsUnresolved(err error) bool {
	var ure *UnresolvedReferenceError
	return errors.As(err, &ure)
}

// RecursionDepthExceededError is raised when a traversal reaches the depth cap
// with rows still pending. It is converted into a truncated result.
type RecursionDepthExceededError struct {
	MaxDepth int
	Pending  int
}

func (e *RecursionDepthExceededError) Error() string {
	return fmt.Sprintf("traversal exceeded max depth %d with %d pending rows", e.MaxDepth, e.Pending)
}
