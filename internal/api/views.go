package api

import (
	"time"

	"fjacquet/statement-import/internal/dateutils"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/session"
)

// SessionView is the public shape of an import session. Draft records are only
// exposed through the review endpoints.
type SessionView struct {
	ID            string                  `json:"id"`
	Status        string                  `json:"status"`
	File          models.FileMeta         `json:"file"`
	Detection     *models.DetectionResult `json:"detection,omitempty"`
	RecordCount   int                     `json:"recordCount"`
	InvalidCount  int                     `json:"invalidCount"`
	Summary       *models.ImportSummary   `json:"summary,omitempty"`
	CommitResult  *models.ImportSummary   `json:"commitResult,omitempty"`
	FailureReason string                  `json:"failureReason,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
	ExpiresAt     time.Time               `json:"expiresAt"`
}

// ReviewView is the response of the review endpoint.
type ReviewView struct {
	Session     SessionView          `json:"session"`
	Summary     models.ImportSummary `json:"summary"`
	Items       []session.ReviewItem `json:"items"`
	Preselected []int                `json:"preselected"`
}

// ConfirmRequest selects the drafts to commit.
type ConfirmRequest struct {
	SelectedTransactionIDs []string `json:"selectedTransactionIds"`
	AccountID              string   `json:"accountId,omitempty"`
}

// ConfirmResponse is returned once the selection reached the ledger.
type ConfirmResponse struct {
	SessionID string               `json:"sessionId"`
	Status    string               `json:"status"`
	Summary   models.ImportSummary `json:"summary"`
}

// msgpackRecord flattens a record for binary export; amounts travel as decimal strings.
type msgpackRecord struct {
	ID             string  `msgpack:"id"`
	Index          int     `msgpack:"index"`
	Date           string  `msgpack:"date"`
	Description    string  `msgpack:"description"`
	Amount         string  `msgpack:"amount"`
	Kind           string  `msgpack:"kind"`
	BalanceAfter   string  `msgpack:"balanceAfter,omitempty"`
	Confidence     float64 `msgpack:"confidence"`
	Classification string  `msgpack:"classification"`
	LineNumber     int     `msgpack:"lineNumber,omitempty"`
}

func newSessionView(s *models.ImportSession, summary *models.ImportSummary) SessionView {
	return SessionView{
		ID:            s.ID.String(),
		Status:        s.Status.String(),
		File:          s.File,
		Detection:     s.Detection,
		RecordCount:   len(s.Drafts),
		InvalidCount:  s.InvalidCount,
		Summary:       summary,
		CommitResult:  s.CommitResult,
		FailureReason: s.FailureReason,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
	}
}

func newMsgpackRecords(items []session.ReviewItem) []msgpackRecord {
	out := make([]msgpackRecord, len(items))
	for i, item := range items {
		r := item.Record
		rec := msgpackRecord{
			ID:             item.ID.String(),
			Index:          item.Index,
			Date:           dateutils.ToISODate(r.Date),
			Description:    r.Description,
			Amount:         r.Amount.String(),
			Kind:           string(r.Kind),
			Confidence:     r.Confidence,
			Classification: string(item.Classification),
		}
		if r.BalanceAfter != nil {
			rec.BalanceAfter = r.BalanceAfter.String()
		}
		if r.LineNumber != nil {
			rec.LineNumber = *r.LineNumber
		}
		out[i] = rec
	}
	return out
}
