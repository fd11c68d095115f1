// Package importerror defines the typed errors returned by the statement import pipeline.
// Callers branch on them with errors.As.
package importerror

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is a single field-qualified validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// String renders the error as "field: message".
func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError reports a malformed upload, selection or record.
// It is always recoverable by the caller.
type ValidationError struct {
	Subject string
	Fields  []FieldError
}

// NewValidationError builds a ValidationError with a single field failure.
func NewValidationError(subject, field, message string) *ValidationError {
	return &ValidationError{
		Subject: subject,
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Subject, strings.Join(parts, "; "))
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failure was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// ExtractionFailure wraps an error or timeout from the extraction service.
// The session is parked in Failed; retrying is the caller's decision.
type ExtractionFailure struct {
	SessionID string
	Extractor string
	Err       error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extraction failed for session %s using %s: %v", e.SessionID, e.Extractor, e.Err)
}

func (e *ExtractionFailure) Unwrap() error {
	return e.Err
}

// Retryable reports that a fresh upload of the same file may succeed.
func (e *ExtractionFailure) Retryable() bool { return true }

// LedgerFailure wraps an error or timeout from the ledger while committing.
// The session stays Confirmed so the commit can be retried.
type LedgerFailure struct {
	SessionID string
	Err       error
}

func (e *LedgerFailure) Error() string {
	return fmt.Sprintf("ledger commit failed for session %s: %v", e.SessionID, e.Err)
}

func (e *LedgerFailure) Unwrap() error {
	return e.Err
}

// Retryable reports that Commit may be called again on the same session.
func (e *LedgerFailure) Retryable() bool { return true }

// IsRetryable reports whether err carries a collaborator failure worth retrying.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

// NotFoundError reports an unknown session id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError reports an operation that is illegal in the session's current state.
type ConflictError struct {
	SessionID string
	Operation string
	Status    string
	Reason    string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s session %s in status %s: %s", e.Operation, e.SessionID, e.Status, e.Reason)
	}
	return fmt.Sprintf("cannot %s session %s in status %s", e.Operation, e.SessionID, e.Status)
}

// ExpiredError reports an operation attempted on an expired session.
type ExpiredError struct {
	SessionID string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("session %s has expired; start a new import", e.SessionID)
}
