package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedTransactionRecord is a validated transaction candidate taken from a statement.
// Records are immutable once validated and are identified by their position in a batch.
type ExtractedTransactionRecord struct {
	Date         time.Time        `json:"date"`
	Description  string           `json:"description"`
	Amount       decimal.Decimal  `json:"amount"`
	Kind         TransactionKind  `json:"kind"`
	BalanceAfter *decimal.Decimal `json:"balanceAfter,omitempty"`
	RawText      string           `json:"rawText"`
	Confidence   float64          `json:"confidence"`
	LineNumber   *int             `json:"lineNumber,omitempty"`
}

// IsCredit returns true if the record brings money into the account.
func (r ExtractedTransactionRecord) IsCredit() bool {
	return r.Kind == KindCredit
}

// IsDebit returns true if the record takes money out of the account.
func (r ExtractedTransactionRecord) IsDebit() bool {
	return r.Kind == KindDebit
}

// AbsAmount returns the unsigned amount.
func (r ExtractedTransactionRecord) AbsAmount() decimal.Decimal {
	return r.Amount.Abs()
}

// Classification buckets a record by confidence for the review step.
type Classification string

const (
	ClassReliable         Classification = "reliable"
	ClassLowConfidence    Classification = "low_confidence"
	ClassDuplicateSuspect Classification = "duplicate_suspect"
)

// Classify places a confidence value in its review bucket.
func (t ConfidenceThresholds) Classify(confidence float64) Classification {
	switch {
	case confidence < t.DuplicateBelow:
		return ClassDuplicateSuspect
	case confidence < t.ReliableFrom:
		return ClassLowConfidence
	default:
		return ClassReliable
	}
}
