package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImportSummary holds aggregate statistics over a set of extracted records.
// It is always recomputed from records and never stored as a source of truth.
type ImportSummary struct {
	Total              int             `json:"total"`
	Selected           int             `json:"selected"`
	DuplicateCount     int             `json:"duplicateCount"`
	LowConfidenceCount int             `json:"lowConfidenceCount"`
	TotalCredits       decimal.Decimal `json:"totalCredits"`
	TotalDebits        decimal.Decimal `json:"totalDebits"`
	NetBalance         decimal.Decimal `json:"netBalance"`
	PeriodStart        *time.Time      `json:"periodStart,omitempty"`
	PeriodEnd          *time.Time      `json:"periodEnd,omitempty"`
}

// Equal compares two summaries, treating decimals by value.
func (s ImportSummary) Equal(o ImportSummary) bool {
	return s.Total == o.Total &&
		s.Selected == o.Selected &&
		s.DuplicateCount == o.DuplicateCount &&
		s.LowConfidenceCount == o.LowConfidenceCount &&
		s.TotalCredits.Equal(o.TotalCredits) &&
		s.TotalDebits.Equal(o.TotalDebits) &&
		s.NetBalance.Equal(o.NetBalance) &&
		timePtrEqual(s.PeriodStart, o.PeriodStart) &&
		timePtrEqual(s.PeriodEnd, o.PeriodEnd)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
