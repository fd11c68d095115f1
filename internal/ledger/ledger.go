// Package ledger holds the collaborators that persist committed transactions.
// Inserts are idempotent on the natural transaction identity, so a retried
// commit never books the same transaction twice.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fjacquet/statement-import/internal/models"

	"github.com/google/uuid"
)

// CommitReceipt reports the outcome of a commit.
type CommitReceipt struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Ledger persists confirmed records for an account.
type Ledger interface {
	Name() string
	Commit(ctx context.Context, accountID uuid.UUID, records []models.ExtractedTransactionRecord) (CommitReceipt, error)
}

// Entry is a persisted transaction.
type Entry struct {
	Key         string
	AccountID   uuid.UUID
	Record      models.ExtractedTransactionRecord
	CommittedAt time.Time
}

// NaturalKey identifies a transaction by date, amount, description and account.
func NaturalKey(accountID uuid.UUID, r models.ExtractedTransactionRecord) string {
	return strings.Join([]string{
		accountID.String(),
		r.Date.Format("2006-01-02"),
		r.Amount.StringFixed(2),
		strings.ToLower(strings.Join(strings.Fields(r.Description), " ")),
	}, "|")
}

// MemoryLedger keeps entries in memory.
type MemoryLedger struct {
	mu      sync.Mutex
	keys    map[string]struct{}
	entries []Entry
	now     func() time.Time
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{keys: make(map[string]struct{}), now: time.Now}
}

// Name returns "memory".
func (l *MemoryLedger) Name() string {
	return "memory"
}

// Commit inserts the records that are not yet present.
func (l *MemoryLedger) Commit(ctx context.Context, accountID uuid.UUID, records []models.ExtractedTransactionRecord) (CommitReceipt, error) {
	if err := ctx.Err(); err != nil {
		return CommitReceipt{}, fmt.Errorf("commit aborted: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var receipt CommitReceipt
	now := l.now()
	for _, r := range records {
		key := NaturalKey(accountID, r)
		if _, exists := l.keys[key]; exists {
			receipt.Skipped++
			continue
		}
		l.keys[key] = struct{}{}
		l.entries = append(l.entries, Entry{Key: key, AccountID: accountID, Record: r, CommittedAt: now})
		receipt.Inserted++
	}
	return receipt, nil
}

// Entries returns a copy of every stored entry in insertion order.
func (l *MemoryLedger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
