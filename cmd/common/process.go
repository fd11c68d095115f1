// Package common contains shared functionality for command handlers
package common

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"fjacquet/statement-import/internal/currencyutils"
	"fjacquet/statement-import/internal/dateutils"
	"fjacquet/statement-import/internal/fileutils"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/validation"
)

// DisplayCurrency is the currency used to print summary amounts.
const DisplayCurrency = "BRL"

// LoadStatement reads a statement from disk and describes it the way an HTTP
// upload would. Files above maxBytes are described but not read, so that upload
// validation rejects them on size.
func LoadStatement(path string, maxBytes int64) (models.FileMeta, []byte, error) {
	if path == "" {
		return models.FileMeta{}, nil, fmt.Errorf("input file is required (use --input)")
	}
	if err := validation.IsValidPath(path); err != nil {
		return models.FileMeta{}, nil, err
	}
	content, size, err := fileutils.ReadFileLimited(path, maxBytes)
	if err != nil {
		return models.FileMeta{}, nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	meta := models.FileMeta{
		Name:      filepath.Base(path),
		SizeBytes: size,
		MIMEType:  validation.MIMETypeFor(path),
	}
	return meta, content, nil
}

// PrintDetection writes a detection result.
func PrintDetection(w io.Writer, d models.DetectionResult) {
	if !d.Found() {
		fmt.Fprintln(w, "Bank:       unknown")
		return
	}
	fmt.Fprintf(w, "Bank:       %s\n", d.Bank)
	fmt.Fprintf(w, "Confidence: %.2f\n", d.Confidence)
	fmt.Fprintf(w, "Source:     %s\n", d.Source)
}

// PrintSummary writes the aggregate figures of an import.
func PrintSummary(w io.Writer, s models.ImportSummary) {
	fmt.Fprintf(w, "Transactions:   %d (%d selected)\n", s.Total, s.Selected)
	if s.PeriodStart != nil && s.PeriodEnd != nil {
		fmt.Fprintf(w, "Period:         %s to %s\n",
			dateutils.ToISODate(*s.PeriodStart), dateutils.ToISODate(*s.PeriodEnd))
	}
	fmt.Fprintf(w, "Credits:        %s\n", currencyutils.FormatAmount(s.TotalCredits, DisplayCurrency))
	fmt.Fprintf(w, "Debits:         %s\n", currencyutils.FormatAmount(s.TotalDebits, DisplayCurrency))
	fmt.Fprintf(w, "Net:            %s\n", currencyutils.FormatAmount(s.NetBalance, DisplayCurrency))
	if s.LowConfidenceCount > 0 || s.DuplicateCount > 0 {
		fmt.Fprintf(w, "Needs review:   %d low confidence, %d possible duplicates\n", s.LowConfidenceCount, s.DuplicateCount)
	}
}

// PrintRecord writes one record as a single line.
func PrintRecord(w io.Writer, index int, r models.ExtractedTransactionRecord, class models.Classification) {
	fmt.Fprintf(w, "%4d  %s  %-6s %14s  %-16s %s\n",
		index,
		dateutils.ToISODate(r.Date),
		r.Kind,
		currencyutils.FormatAmount(r.Amount, DisplayCurrency),
		class,
		truncate(r.Description, 60))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
