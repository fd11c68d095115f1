package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"fjacquet/statement-import/internal/fileutils"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

// ledgerRow is one line of the ledger file.
type ledgerRow struct {
	Key          string `csv:"key"`
	AccountID    string `csv:"account_id"`
	Date         string `csv:"date"`
	Description  string `csv:"description"`
	Amount       string `csv:"amount"`
	Kind         string `csv:"kind"`
	BalanceAfter string `csv:"balance_after"`
	Confidence   string `csv:"confidence"`
	CommittedAt  string `csv:"committed_at"`
}

// CSVLedger appends committed transactions to a CSV file. Existing keys are read
// from the file on first use.
type CSVLedger struct {
	path   string
	logger logging.Logger

	mu     sync.Mutex
	keys   map[string]struct{}
	loaded bool
	now    func() time.Time
}

// NewCSVLedger creates a ledger backed by path.
func NewCSVLedger(path string, logger logging.Logger) *CSVLedger {
	return &CSVLedger{
		path:   path,
		logger: logging.OrDefault(logger),
		keys:   make(map[string]struct{}),
		now:    time.Now,
	}
}

// Name returns "csv".
func (l *CSVLedger) Name() string {
	return "csv"
}

// Path returns the ledger file path.
func (l *CSVLedger) Path() string {
	return l.path
}

// Commit appends the records whose natural key is not yet in the file.
func (l *CSVLedger) Commit(ctx context.Context, accountID uuid.UUID, records []models.ExtractedTransactionRecord) (CommitReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.load(); err != nil {
		return CommitReceipt{}, err
	}

	var receipt CommitReceipt
	now := l.now().UTC().Format(time.RFC3339)
	pending := make(map[string]struct{})
	var rows []ledgerRow
	for _, r := range records {
		key := NaturalKey(accountID, r)
		if _, exists := l.keys[key]; exists {
			receipt.Skipped++
			continue
		}
		if _, dup := pending[key]; dup {
			receipt.Skipped++
			continue
		}
		pending[key] = struct{}{}
		rows = append(rows, toRow(key, accountID, r, now))
	}

	if len(rows) == 0 {
		return receipt, nil
	}
	if err := ctx.Err(); err != nil {
		return CommitReceipt{}, fmt.Errorf("commit aborted: %w", err)
	}
	if err := l.appendRows(rows); err != nil {
		return CommitReceipt{}, err
	}

	for k := range pending {
		l.keys[k] = struct{}{}
	}
	receipt.Inserted = len(rows)

	l.logger.Info("Appended transactions to ledger file",
		logging.Field{Key: logging.FieldLedger, Value: l.path},
		logging.Field{Key: logging.FieldAccountID, Value: accountID.String()},
		logging.Field{Key: logging.FieldCount, Value: receipt.Inserted})
	return receipt, nil
}

// load reads the keys already present in the file once.
func (l *CSVLedger) load() error {
	if l.loaded {
		return nil
	}

	file, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		l.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("error opening ledger file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			l.logger.WithError(err).Warn("Failed to close ledger file")
		}
	}()

	var rows []ledgerRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("error parsing ledger file: %w", err)
	}
	for _, row := range rows {
		l.keys[row.Key] = struct{}{}
	}
	l.loaded = true
	return nil
}

func (l *CSVLedger) appendRows(rows []ledgerRow) error {
	file, writeHeader, err := fileutils.OpenAppend(l.path, models.PermissionLedgerFile)
	if err != nil {
		return fmt.Errorf("error opening ledger file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			l.logger.WithError(err).Warn("Failed to close ledger file")
		}
	}()

	w := gocsv.NewSafeCSVWriter(csv.NewWriter(file))
	if writeHeader {
		err = gocsv.MarshalCSV(rows, w)
	} else {
		err = gocsv.MarshalCSVWithoutHeaders(rows, w)
	}
	if err != nil {
		return fmt.Errorf("error writing ledger rows: %w", err)
	}
	return nil
}

func toRow(key string, accountID uuid.UUID, r models.ExtractedTransactionRecord, committedAt string) ledgerRow {
	row := ledgerRow{
		Key:         key,
		AccountID:   accountID.String(),
		Date:        r.Date.Format("2006-01-02"),
		Description: r.Description,
		Amount:      r.Amount.StringFixed(2),
		Kind:        string(r.Kind),
		Confidence:  fmt.Sprintf("%.2f", r.Confidence),
		CommittedAt: committedAt,
	}
	if r.BalanceAfter != nil {
		row.BalanceAfter = r.BalanceAfter.StringFixed(2)
	}
	return row
}
