// Package summary derives aggregate statistics from a set of extracted records.
package summary

import (
	"sort"
	"time"

	"fjacquet/statement-import/internal/models"

	"github.com/shopspring/decimal"
)

// Calculator computes ImportSummary values using a fixed set of confidence thresholds.
type Calculator struct {
	thresholds models.ConfidenceThresholds
}

// NewCalculator creates a Calculator.
func NewCalculator(thresholds models.ConfidenceThresholds) *Calculator {
	return &Calculator{thresholds: thresholds}
}

// Summarize uses the default thresholds.
func Summarize(records []models.ExtractedTransactionRecord, selected []int) models.ImportSummary {
	return NewCalculator(models.DefaultThresholds()).Summarize(records, selected)
}

// Summarize computes the summary of records. A nil selection scopes the money totals
// to the whole batch; otherwise only the selected indices count towards them.
// Out-of-range and repeated indices are ignored.
//
// Duplicate and low-confidence counts and the period bounds always cover the full
// batch because they are diagnostics for the reviewer.
func (c *Calculator) Summarize(records []models.ExtractedTransactionRecord, selected []int) models.ImportSummary {
	s := models.ImportSummary{
		Total:        len(records),
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
		NetBalance:   decimal.Zero,
	}

	for _, i := range scope(len(records), selected) {
		r := records[i]
		s.Selected++
		switch r.Kind {
		case models.KindCredit:
			// signed: a reversed credit lowers the inflow
			s.TotalCredits = s.TotalCredits.Add(r.Amount)
		case models.KindDebit:
			s.TotalDebits = s.TotalDebits.Add(r.AbsAmount())
		}
	}
	s.NetBalance = s.TotalCredits.Sub(s.TotalDebits)

	dates := make([]time.Time, 0, len(records))
	for _, r := range records {
		switch c.thresholds.Classify(r.Confidence) {
		case models.ClassDuplicateSuspect:
			s.DuplicateCount++
		case models.ClassLowConfidence:
			s.LowConfidenceCount++
		}
		dates = append(dates, r.Date)
	}

	if len(dates) > 0 {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		start, end := dates[0], dates[len(dates)-1]
		s.PeriodStart = &start
		s.PeriodEnd = &end
	}
	return s
}

func scope(n int, selected []int) []int {
	if selected == nil {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	seen := make(map[int]struct{}, len(selected))
	out := make([]int, 0, len(selected))
	for _, i := range selected {
		if i < 0 || i >= n {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}
