package extraction

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"fjacquet/statement-import/internal/currencyutils"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/textsource"

	"github.com/gocarina/gocsv"
)

// Confidence given to CSV rows. Exports are structured, so they score high; rows whose
// kind had to be inferred from the amount sign score lower.
const (
	CSVConfidenceExplicitKind = 0.95
	CSVConfidenceInferredKind = 0.75
)

// csvRow maps a normalized statement export row.
type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Type        string `csv:"type"`
	Balance     string `csv:"balance"`
}

// headerAliases maps the column titles used by bank exports to the csvRow tags.
var headerAliases = map[string]string{
	"date":            "date",
	"data":            "date",
	"data lançamento": "date",
	"data lancamento": "date",
	"description":     "description",
	"descrição":       "description",
	"descricao":       "description",
	"histórico":       "description",
	"historico":       "description",
	"lançamento":      "description",
	"lancamento":      "description",
	"title":           "description",
	"amount":          "amount",
	"valor":           "amount",
	"value":           "amount",
	"valor (r$)":      "amount",
	"type":            "type",
	"tipo":            "type",
	"kind":            "type",
	"balance":         "balance",
	"saldo":           "balance",
	"saldo (r$)":      "balance",
}

// CSVExtractor reads tabular bank exports with gocsv.
type CSVExtractor struct {
	logger logging.Logger
}

// NewCSVExtractor creates a CSVExtractor.
func NewCSVExtractor(logger logging.Logger) *CSVExtractor {
	return &CSVExtractor{logger: logging.OrDefault(logger)}
}

// Name returns "csv".
func (e *CSVExtractor) Name() string {
	return "csv"
}

// Extract parses doc.Content as a comma or semicolon separated export.
func (e *CSVExtractor) Extract(ctx context.Context, doc Document) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(textsource.DecodeText(doc.Content))
	if text == "" {
		return nil, fmt.Errorf("empty CSV document")
	}

	headerLine, body, _ := strings.Cut(text, "\n")
	delim := detectDelimiter(headerLine)
	header, err := normalizeHeader(headerLine, delim)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(header + "\n" + body))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows []csvRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("error parsing CSV export: %w", err)
	}

	records := make([]any, 0, len(rows))
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		records = append(records, rowToRecord(row, i+2, delim))
	}

	e.logger.Debug("Extracted CSV rows",
		logging.Field{Key: logging.FieldExtractor, Value: e.Name()},
		logging.Field{Key: logging.FieldFileName, Value: doc.FileName},
		logging.Field{Key: logging.FieldCount, Value: len(records)})
	return records, nil
}

func detectDelimiter(headerLine string) rune {
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}

func normalizeHeader(headerLine string, delim rune) (string, error) {
	r := csv.NewReader(strings.NewReader(headerLine))
	r.Comma = delim
	r.LazyQuotes = true
	cols, err := r.Read()
	if err != nil {
		return "", fmt.Errorf("error reading CSV header: %w", err)
	}

	seen := map[string]bool{}
	for i, c := range cols {
		key := strings.ToLower(strings.TrimSpace(c))
		if canonical, ok := headerAliases[key]; ok {
			key = canonical
		}
		seen[key] = true
		cols[i] = key
	}
	if !seen["date"] || !seen["amount"] {
		return "", fmt.Errorf("unrecognized CSV header %q: date and amount columns are required", headerLine)
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Comma = delim
	if err := w.Write(cols); err != nil {
		return "", err
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n"), nil
}

func isBlank(row csvRow) bool {
	return strings.TrimSpace(row.Date+row.Description+row.Amount+row.Type+row.Balance) == ""
}

func rowToRecord(row csvRow, line int, delim rune) map[string]any {
	raw := strings.TrimRight(strings.Join([]string{row.Date, row.Description, row.Amount, row.Type, row.Balance}, string(delim)), string(delim))
	rec := map[string]any{
		"date":        strings.TrimSpace(row.Date),
		"description": strings.TrimSpace(row.Description),
		"amount":      strings.TrimSpace(row.Amount),
		"rawText":     raw,
		"lineNumber":  line,
		"confidence":  CSVConfidenceExplicitKind,
	}
	if b := strings.TrimSpace(row.Balance); b != "" {
		rec["balanceAfter"] = b
	}

	amount, amountErr := currencyutils.ParseAmount(row.Amount)
	kind, _ := parseKind(row.Type)
	if strings.TrimSpace(row.Type) == "" && amountErr == nil {
		kind = models.KindCredit
		if amount.IsNegative() {
			kind = models.KindDebit
		}
		rec["confidence"] = CSVConfidenceInferredKind
	}
	if kind != "" {
		rec["kind"] = string(kind)
	} else if t := strings.TrimSpace(row.Type); t != "" {
		rec["kind"] = t
	}

	// Debits are stored negative, credits positive.
	if amountErr == nil && kind != "" {
		amount = amount.Abs()
		if kind == models.KindDebit {
			amount = amount.Neg()
		}
		rec["amount"] = amount.String()
	}
	return rec
}

func parseKind(s string) (models.TransactionKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "cr", "credit", "crdt", "credito", "crédito", "entrada":
		return models.KindCredit, true
	case "d", "dr", "debit", "dbit", "debito", "débito", "saida", "saída":
		return models.KindDebit, true
	default:
		return "", false
	}
}
