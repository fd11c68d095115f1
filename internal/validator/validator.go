// Package validator checks draft transaction candidates produced by the extraction
// service and partitions them into valid records and rejected entries.
package validator

import (
	"strings"
	"time"
	"unicode/utf8"

	"fjacquet/statement-import/internal/dateutils"
	"fjacquet/statement-import/internal/importerror"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
)

// Field names used in error messages.
const (
	FieldRecord       = "record"
	FieldDate         = "date"
	FieldDescription  = "description"
	FieldAmount       = "amount"
	FieldKind         = "kind"
	FieldBalanceAfter = "balanceAfter"
	FieldRawText      = "rawText"
	FieldConfidence   = "confidence"
	FieldLineNumber   = "lineNumber"
)

// InvalidRecord is a rejected candidate together with the reasons.
type InvalidRecord struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

// BatchResult partitions a batch. Every input lands in exactly one of the two lists.
type BatchResult struct {
	Valid   []models.ExtractedTransactionRecord `json:"valid"`
	Invalid []InvalidRecord                     `json:"invalid"`
}

// Total returns the number of inputs represented in the result.
func (r BatchResult) Total() int {
	return len(r.Valid) + len(r.Invalid)
}

// Validator validates draft records and buckets them by confidence.
type Validator struct {
	thresholds models.ConfidenceThresholds
	now        func() time.Time
	logger     logging.Logger
}

// NewValidator creates a Validator. A nil clock uses time.Now and a nil logger the
// process-wide logger.
func NewValidator(thresholds models.ConfidenceThresholds, now func() time.Time, logger logging.Logger) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{
		thresholds: thresholds,
		now:        now,
		logger:     logging.OrDefault(logger).WithField(logging.FieldComponent, "RecordValidator"),
	}
}

// ValidateBatch checks every raw record independently. One bad record never stops
// the others from being validated.
func (v *Validator) ValidateBatch(raw []any) BatchResult {
	result := BatchResult{
		Valid:   make([]models.ExtractedTransactionRecord, 0, len(raw)),
		Invalid: make([]InvalidRecord, 0),
	}
	now := v.now()

	for i, r := range raw {
		record, verr := v.validateOne(r, now)
		if verr != nil {
			result.Invalid = append(result.Invalid, InvalidRecord{Index: i, Errors: errorStrings(verr)})
			continue
		}
		result.Valid = append(result.Valid, record)
	}

	v.logger.Info("Validated draft records",
		logging.Field{Key: logging.FieldCount, Value: len(raw)},
		logging.Field{Key: logging.FieldValidCount, Value: len(result.Valid)},
		logging.Field{Key: logging.FieldInvalidCount, Value: len(result.Invalid)})
	return result
}

// ValidateRecord checks a single raw record.
func (v *Validator) ValidateRecord(raw any) (models.ExtractedTransactionRecord, error) {
	record, verr := v.validateOne(raw, v.now())
	if verr != nil {
		return models.ExtractedTransactionRecord{}, verr
	}
	return record, nil
}

// Classify places a record in its review bucket.
func (v *Validator) Classify(record models.ExtractedTransactionRecord) models.Classification {
	return v.thresholds.Classify(record.Confidence)
}

// Thresholds returns the thresholds used for classification.
func (v *Validator) Thresholds() models.ConfidenceThresholds {
	return v.thresholds
}

func errorStrings(verr *importerror.ValidationError) []string {
	out := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		out[i] = f.String()
	}
	return out
}

func (v *Validator) validateOne(raw any, now time.Time) (models.ExtractedTransactionRecord, *importerror.ValidationError) {
	verr := &importerror.ValidationError{Subject: "record"}
	var rec models.ExtractedTransactionRecord

	m, ok := asObject(raw)
	if !ok {
		verr.Add(FieldRecord, "Record must be an object")
		return rec, verr
	}

	if val, ok := lookup(m, "date"); !ok {
		verr.Add(FieldDate, "Date is required")
	} else if date, withClock, err := toTime(val); err != nil {
		verr.Add(FieldDate, "Invalid date")
	} else if isFuture(date, withClock, now) {
		verr.Add(FieldDate, "Transaction date cannot be in the future")
	} else {
		rec.Date = date
	}

	if val, ok := lookup(m, "description"); !ok {
		verr.Add(FieldDescription, "Description is required")
	} else if s, isStr := val.(string); !isStr {
		verr.Add(FieldDescription, "Description must be a string")
	} else {
		s = strings.TrimSpace(s)
		switch n := utf8.RuneCountInString(s); {
		case n == 0:
			verr.Add(FieldDescription, "Description is required")
		case n > models.MaxDescriptionLength:
			verr.Add(FieldDescription, "Description must be at most 500 characters")
		default:
			rec.Description = s
		}
	}

	if val, ok := lookup(m, "amount"); !ok {
		verr.Add(FieldAmount, "Amount is required")
	} else if amount, err := toDecimal(val); err != nil {
		verr.Add(FieldAmount, "Amount must be a number")
	} else if amount.IsZero() {
		verr.Add(FieldAmount, "Amount cannot be zero")
	} else {
		rec.Amount = amount
	}

	if val, ok := lookup(m, "kind", "type"); !ok {
		verr.Add(FieldKind, "Kind is required")
	} else if s, isStr := val.(string); !isStr {
		verr.Add(FieldKind, "Kind must be one of credit, debit")
	} else if kind, err := models.ParseTransactionKind(strings.TrimSpace(s)); err != nil {
		verr.Add(FieldKind, "Kind must be one of credit, debit")
	} else {
		rec.Kind = kind
	}

	if val, ok := lookup(m, "balanceAfter", "balance_after", "balance"); ok {
		if bal, err := toDecimal(val); err != nil {
			verr.Add(FieldBalanceAfter, "Balance must be a number")
		} else {
			rec.BalanceAfter = &bal
		}
	}

	if val, ok := lookup(m, "rawText", "raw_text"); !ok {
		verr.Add(FieldRawText, "Raw text is required")
	} else if s, isStr := val.(string); !isStr || strings.TrimSpace(s) == "" {
		verr.Add(FieldRawText, "Raw text is required")
	} else {
		rec.RawText = s
	}

	if val, ok := lookup(m, "confidence"); !ok {
		verr.Add(FieldConfidence, "Confidence is required")
	} else if c, err := toFloat(val); err != nil {
		verr.Add(FieldConfidence, "Confidence must be a number")
	} else if c < 0 || c > 1 {
		verr.Add(FieldConfidence, "Confidence must be between 0 and 1")
	} else {
		rec.Confidence = c
	}

	if val, ok := lookup(m, "lineNumber", "line_number"); ok {
		if n, err := toInt(val); err != nil {
			verr.Add(FieldLineNumber, "Line number must be an integer")
		} else {
			rec.LineNumber = &n
		}
	}

	if verr.HasErrors() {
		return models.ExtractedTransactionRecord{}, verr
	}
	return rec, nil
}

// isFuture compares instants when the date carries a time of day and calendar days
// otherwise, so a date-only value for today is never in the future.
func isFuture(date time.Time, withClock bool, now time.Time) bool {
	if withClock {
		return date.After(now)
	}
	return dateutils.IsAfterDay(date, now)
}
