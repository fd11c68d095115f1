package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an import session.
type SessionStatus int

const (
	StatusCreated SessionStatus = iota
	StatusFileValidated
	StatusExtracted
	StatusReviewed
	StatusConfirmed
	StatusCommitted
	StatusFailed
	StatusCancelled
	StatusExpired
)

var statusNames = map[SessionStatus]string{
	StatusCreated:       "created",
	StatusFileValidated: "file_validated",
	StatusExtracted:     "extracted",
	StatusReviewed:      "reviewed",
	StatusConfirmed:     "confirmed",
	StatusCommitted:     "committed",
	StatusFailed:        "failed",
	StatusCancelled:     "cancelled",
	StatusExpired:       "expired",
}

// String returns the wire name of the status.
func (s SessionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "invalid"
}

// MarshalText encodes the status by name.
func (s SessionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether no further transition is possible.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case StatusCommitted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// AtLeast reports whether s is on the main path at or beyond other.
func (s SessionStatus) AtLeast(other SessionStatus) bool {
	return s <= StatusCommitted && s >= other
}

// CanTransition reports whether moving from s to next is a legal step: exactly one
// step forward on the main path, or into Failed/Cancelled/Expired from a non-terminal state.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return next == s+1 && next <= StatusCommitted
}

// FileMeta describes the uploaded statement file.
type FileMeta struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	MIMEType  string `json:"mimeType"`
}

// DraftRecord is a validated record held by a session, with the id used to select it.
type DraftRecord struct {
	ID     uuid.UUID                  `json:"id"`
	Record ExtractedTransactionRecord `json:"record"`
}

// ImportSession is one attempt at importing a statement.
type ImportSession struct {
	ID              uuid.UUID        `json:"id"`
	Status          SessionStatus    `json:"status"`
	File            FileMeta         `json:"file"`
	Detection       *DetectionResult `json:"detection,omitempty"`
	Drafts          []DraftRecord    `json:"drafts,omitempty"`
	InvalidCount    int              `json:"invalidCount"`
	Selected        []int            `json:"selected,omitempty"`
	TargetAccountID *uuid.UUID       `json:"targetAccountId,omitempty"`
	FailureReason   string           `json:"failureReason,omitempty"`
	CommitResult    *ImportSummary   `json:"commitResult,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	ExpiresAt       time.Time        `json:"expiresAt"`
}

// Records returns the validated records in draft order.
func (s *ImportSession) Records() []ExtractedTransactionRecord {
	out := make([]ExtractedTransactionRecord, len(s.Drafts))
	for i, d := range s.Drafts {
		out[i] = d.Record
	}
	return out
}

// Clone returns a deep copy safe to hand to callers.
func (s *ImportSession) Clone() *ImportSession {
	c := *s
	c.Drafts = append([]DraftRecord(nil), s.Drafts...)
	c.Selected = append([]int(nil), s.Selected...)
	if s.Detection != nil {
		d := *s.Detection
		c.Detection = &d
	}
	if s.TargetAccountID != nil {
		id := *s.TargetAccountID
		c.TargetAccountID = &id
	}
	if s.CommitResult != nil {
		r := *s.CommitResult
		c.CommitResult = &r
	}
	return &c
}
