package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fjacquet/statement-import/internal/catalog"
	"fjacquet/statement-import/internal/detector"
	"fjacquet/statement-import/internal/extraction"
	"fjacquet/statement-import/internal/importerror"
	"fjacquet/statement-import/internal/ledger"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// blockingExtractor parks inside Extract until released.
type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
	records []any
}

func newBlockingExtractor(records []any) *blockingExtractor {
	return &blockingExtractor{started: make(chan struct{}, 1), release: make(chan struct{}), records: records}
}

func (b *blockingExtractor) Name() string { return "blocking" }

func (b *blockingExtractor) Extract(ctx context.Context, _ extraction.Document) ([]any, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return b.records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// countingLedger wraps a MemoryLedger, counts calls and can fail the first ones.
type countingLedger struct {
	inner    *ledger.MemoryLedger
	calls    atomic.Int32
	failNext atomic.Int32
	delay    time.Duration
	// during runs inside Commit before the write.
	during func()
}

func (l *countingLedger) Name() string { return "counting" }

func (l *countingLedger) Commit(ctx context.Context, acc uuid.UUID, records []models.ExtractedTransactionRecord) (ledger.CommitReceipt, error) {
	l.calls.Add(1)
	if l.during != nil {
		l.during()
	}
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.failNext.Load() > 0 {
		l.failNext.Add(-1)
		return ledger.CommitReceipt{}, errors.New("ledger unavailable")
	}
	return l.inner.Commit(ctx, acc, records)
}

type fixture struct {
	manager   *Manager
	clock     *fakeClock
	extractor *extraction.MockExtractor
	ledger    *countingLedger
	logger    *logging.MockLogger
}

func statementRecords() []any {
	return []any{
		map[string]any{"date": "2024-06-01", "description": "SALARIO", "amount": 5000.0, "kind": "credit", "rawText": "01/06 SALARIO 5.000,00", "confidence": 0.95},
		map[string]any{"date": "2024-06-03", "description": "ALUGUEL", "amount": -1500.0, "kind": "debit", "rawText": "03/06 ALUGUEL -1.500,00", "confidence": 0.6},
		map[string]any{"date": "2024-06-05", "description": "MERCADO", "amount": -230.4, "kind": "debit", "rawText": "05/06 MERCADO -230,40", "confidence": 0.3},
		map[string]any{"date": "2099-01-01", "description": "FUTURO", "amount": 1.0, "kind": "credit", "rawText": "??", "confidence": 0.9},
	}
}

func newFixture(t *testing.T, opts Options, ext extraction.Extractor) *fixture {
	t.Helper()
	clock := newFakeClock()
	logger := logging.NewMockLogger()
	mock, _ := ext.(*extraction.MockExtractor)
	if ext == nil {
		mock = extraction.NewMockExtractor(statementRecords(), nil)
		ext = mock
	}
	led := &countingLedger{inner: ledger.NewMemoryLedger()}

	thresholds := models.DefaultThresholds()
	m, err := NewManager(Dependencies{
		Detector:  detector.New(catalog.Default(), detector.WithLogger(logger)),
		Validator: validator.NewValidator(thresholds, clock.Now, logger),
		Extractor: ext,
		Ledger:    led,
		Logger:    logger,
		Clock:     clock.Now,
	}, opts)
	require.NoError(t, err)
	return &fixture{manager: m, clock: clock, extractor: mock, ledger: led, logger: logger}
}

var csvContent = []byte("Nu Pagamentos S.A. extrato da conta nubank\ndate,description,amount\n")

func csvMeta() models.FileMeta {
	return models.FileMeta{Name: "extrato.csv", SizeBytes: int64(len(csvContent)), MIMEType: "text/csv"}
}

// toReviewed drives a fresh session up to Reviewed.
func (f *fixture) toReviewed(t *testing.T) (*models.ImportSession, *Review) {
	t.Helper()
	s := f.manager.Create(csvMeta(), csvContent)
	_, err := f.manager.ValidateFile(s.ID)
	require.NoError(t, err)
	_, err = f.manager.Extract(context.Background(), s.ID)
	require.NoError(t, err)
	review, err := f.manager.Review(s.ID)
	require.NoError(t, err)
	return s, review
}

func TestManager_HappyPath(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()

	s := f.manager.Create(csvMeta(), csvContent)
	assert.Equal(t, models.StatusCreated, s.Status)
	assert.Equal(t, f.clock.Now().Add(DefaultOptions().TTL), s.ExpiresAt)

	s, err := f.manager.ValidateFile(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFileValidated, s.Status)
	require.NotNil(t, s.Detection)
	assert.Equal(t, "Nubank", s.Detection.Bank)
	assert.Equal(t, models.SourceContent, s.Detection.Source)

	s, err = f.manager.Extract(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExtracted, s.Status)
	assert.Len(t, s.Drafts, 3)
	assert.Equal(t, 1, s.InvalidCount)
	require.Len(t, f.extractor.Calls(), 1)
	assert.Equal(t, "Nubank", f.extractor.Calls()[0].BankHint)
	assert.Equal(t, models.FormatCSV, f.extractor.Calls()[0].Format)

	review, err := f.manager.Review(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, review.Session.Status)
	assert.Equal(t, 3, review.Summary.Total)
	assert.Equal(t, 1, review.Summary.DuplicateCount)
	assert.Equal(t, 1, review.Summary.LowConfidenceCount)
	assert.Equal(t, []int{0}, review.Preselected)
	assert.Equal(t, models.ClassDuplicateSuspect, review.Items[2].Classification)

	account := uuid.New()
	s, err = f.manager.Confirm(s.ID, []int{1, 0}, &account)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, s.Status)
	assert.Equal(t, []int{0, 1}, s.Selected)

	result, err := f.manager.Commit(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Selected)
	assert.Equal(t, "5000", result.TotalCredits.String())
	assert.Equal(t, "1500", result.TotalDebits.String())
	assert.Equal(t, "3500", result.NetBalance.String())

	s, err = f.manager.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCommitted, s.Status)
	require.NotNil(t, s.CommitResult)
	assert.True(t, s.CommitResult.Equal(result))

	entries := f.ledger.inner.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, account, entries[0].AccountID)
}

func TestManager_CommitIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	s, _ := f.toReviewed(t)

	_, err := f.manager.Confirm(s.ID, []int{0, 1, 2}, nil)
	require.NoError(t, err)

	first, err := f.manager.Commit(ctx, s.ID)
	require.NoError(t, err)

	// A retried confirm with the same selection and a retried commit change nothing.
	_, err = f.manager.Confirm(s.ID, []int{2, 1, 0}, nil)
	require.NoError(t, err)
	second, err := f.manager.Commit(ctx, s.ID)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, int32(1), f.ledger.calls.Load())
	assert.Len(t, f.ledger.inner.Entries(), 3)

	_, err = f.manager.Confirm(s.ID, []int{0}, nil)
	var conflict *importerror.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestManager_ConcurrentCommitsAreSerialized(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.ledger.delay = 20 * time.Millisecond
	s, _ := f.toReviewed(t)
	_, err := f.manager.Confirm(s.ID, []int{0, 1}, nil)
	require.NoError(t, err)

	const workers = 8
	results := make([]models.ImportSummary, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.manager.Commit(context.Background(), s.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[0].Equal(results[i]))
	}
	assert.Equal(t, int32(1), f.ledger.calls.Load())
	assert.Len(t, f.ledger.inner.Entries(), 2)
}

func TestManager_OversizedUploadFails(t *testing.T) {
	f := newFixture(t, Options{}, nil)

	meta := models.FileMeta{Name: "extrato.pdf", SizeBytes: 30 << 20, MIMEType: "application/pdf"}
	s := f.manager.Create(meta, nil)

	_, err := f.manager.ValidateFile(s.ID)
	var verr *importerror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fileSize", verr.Fields[0].Field)

	s, err = f.manager.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, s.Status)
	assert.Contains(t, s.FailureReason, "exceeds the maximum")

	// Not retried: the session stays failed.
	_, err = f.manager.ValidateFile(s.ID)
	var conflict *importerror.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestManager_DetectionFallsBackToFileName(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	content := []byte("date,description,amount\n2024-01-01,x,1\n")
	s := f.manager.Create(models.FileMeta{Name: "itaú-junho.csv", SizeBytes: int64(len(content)), MIMEType: "text/csv"}, content)

	s, err := f.manager.ValidateFile(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Itaú", s.Detection.Bank)
	assert.Equal(t, models.SourceFilename, s.Detection.Source)
	assert.Equal(t, 0.4, s.Detection.Confidence)
}

func TestManager_UnknownSession(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	id := uuid.New()

	var nf *importerror.NotFoundError
	_, err := f.manager.Get(id)
	assert.ErrorAs(t, err, &nf)
	_, err = f.manager.Extract(context.Background(), id)
	assert.ErrorAs(t, err, &nf)
	_, err = f.manager.Commit(context.Background(), id)
	assert.ErrorAs(t, err, &nf)
	_, err = f.manager.Cancel(id)
	assert.ErrorAs(t, err, &nf)
}

func TestManager_ExtractionFailure(t *testing.T) {
	upstream := errors.New("service unavailable")
	f := newFixture(t, Options{}, extraction.NewMockExtractor(nil, upstream))

	s := f.manager.Create(csvMeta(), csvContent)
	_, err := f.manager.ValidateFile(s.ID)
	require.NoError(t, err)

	_, err = f.manager.Extract(context.Background(), s.ID)
	var failure *importerror.ExtractionFailure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, "mock", failure.Extractor)

	s, _ = f.manager.Get(s.ID)
	assert.Equal(t, models.StatusFailed, s.Status)

	// No automatic retry.
	assert.Len(t, f.extractor.Calls(), 1)
}

func TestManager_ExtractionTimeout(t *testing.T) {
	slow := extraction.NewMockExtractor(statementRecords(), nil)
	slow.Delay = time.Minute
	f := newFixture(t, Options{ExtractionTimeout: 20 * time.Millisecond}, slow)

	s := f.manager.Create(csvMeta(), csvContent)
	_, err := f.manager.ValidateFile(s.ID)
	require.NoError(t, err)

	_, err = f.manager.Extract(context.Background(), s.ID)
	var failure *importerror.ExtractionFailure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_CancelDuringExtraction(t *testing.T) {
	blocking := newBlockingExtractor(statementRecords())
	f := newFixture(t, Options{}, blocking)

	s := f.manager.Create(csvMeta(), csvContent)
	_, err := f.manager.ValidateFile(s.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.Extract(context.Background(), s.ID)
		done <- err
	}()
	<-blocking.started

	// A second extraction is rejected while the first is in flight.
	_, err = f.manager.Extract(context.Background(), s.ID)
	var conflict *importerror.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "extraction already in progress", conflict.Reason)

	// Cancellation is not blocked by the in-flight call.
	cancelled, err := f.manager.Cancel(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	close(blocking.release)
	err = <-done
	require.ErrorAs(t, err, &conflict)

	s, _ = f.manager.Get(s.ID)
	assert.Equal(t, models.StatusCancelled, s.Status)
	assert.Empty(t, s.Drafts, "the late extraction result is discarded")
}

func TestManager_SelectionRules(t *testing.T) {
	f := newFixture(t, Options{MaxTransactions: 2}, nil)
	s, _ := f.toReviewed(t)

	tests := []struct {
		name    string
		indices []int
		message string
	}{
		{"empty", []int{}, "At least one transaction must be selected"},
		{"out of range", []int{0, 3}, "Index 3 is out of range [0, 3)"},
		{"negative", []int{-1}, "Index -1 is out of range [0, 3)"},
		{"duplicate", []int{1, 1}, "Index 1 is selected more than once"},
		{"above ceiling", []int{0, 1, 2}, "At most 2 transactions can be imported at once"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Confirm(s.ID, tt.indices, nil)
			var verr *importerror.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.message, verr.Fields[0].Message)

			got, _ := f.manager.Get(s.ID)
			assert.Equal(t, models.StatusReviewed, got.Status)
		})
	}
}

func TestManager_ConfirmByIDs(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s, review := f.toReviewed(t)

	_, err := f.manager.ConfirmByIDs(s.ID, []uuid.UUID{uuid.New()}, nil)
	var verr *importerror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "selectedTransactionIds", verr.Fields[0].Field)

	s, err = f.manager.ConfirmByIDs(s.ID, review.SelectedIDs([]int{2, 0}), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, s.Selected)
}

func TestManager_OutOfOrderOperations(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	s := f.manager.Create(csvMeta(), csvContent)

	var conflict *importerror.ConflictError
	_, err := f.manager.Extract(ctx, s.ID)
	assert.ErrorAs(t, err, &conflict, "extract before validation")
	_, err = f.manager.Review(s.ID)
	assert.ErrorAs(t, err, &conflict, "review before extraction")
	_, err = f.manager.Confirm(s.ID, []int{0}, nil)
	assert.ErrorAs(t, err, &conflict, "confirm before review")
	_, err = f.manager.Commit(ctx, s.ID)
	assert.ErrorAs(t, err, &conflict, "commit before confirm")

	got, _ := f.manager.Get(s.ID)
	assert.Equal(t, models.StatusCreated, got.Status)
}

func TestManager_LedgerFailureKeepsConfirmed(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.ledger.failNext.Store(1)
	s, _ := f.toReviewed(t)
	_, err := f.manager.Confirm(s.ID, []int{0}, nil)
	require.NoError(t, err)

	_, err = f.manager.Commit(context.Background(), s.ID)
	var failure *importerror.LedgerFailure
	require.ErrorAs(t, err, &failure)

	got, _ := f.manager.Get(s.ID)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	result, err := f.manager.Commit(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Selected)
	got, _ = f.manager.Get(s.ID)
	assert.Equal(t, models.StatusCommitted, got.Status)
}

func TestManager_Cancel(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s, _ := f.toReviewed(t)

	got, err := f.manager.Cancel(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	_, err = f.manager.Cancel(s.ID)
	assert.NoError(t, err, "cancel is idempotent")

	var conflict *importerror.ConflictError
	_, err = f.manager.Confirm(s.ID, []int{0}, nil)
	assert.ErrorAs(t, err, &conflict)

	committed, _ := f.toReviewed(t)
	_, err = f.manager.Confirm(committed.ID, []int{0}, nil)
	require.NoError(t, err)
	_, err = f.manager.Commit(context.Background(), committed.ID)
	require.NoError(t, err)
	_, err = f.manager.Cancel(committed.ID)
	assert.ErrorAs(t, err, &conflict)
}

func TestManager_Expiry(t *testing.T) {
	f := newFixture(t, Options{TTL: time.Minute, Retention: time.Minute}, nil)
	s := f.manager.Create(csvMeta(), csvContent)
	_, err := f.manager.ValidateFile(s.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	_, err = f.manager.Extract(context.Background(), s.ID)
	var expired *importerror.ExpiredError
	require.ErrorAs(t, err, &expired)

	got, err := f.manager.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)

	_, err = f.manager.Cancel(s.ID)
	assert.ErrorAs(t, err, &expired)
	_, err = f.manager.Commit(context.Background(), s.ID)
	assert.ErrorAs(t, err, &expired)
	assert.Empty(t, f.extractor.Calls())
}

func TestManager_CommitExpiringDuringLedgerCall(t *testing.T) {
	f := newFixture(t, Options{TTL: time.Minute}, nil)
	s, _ := f.toReviewed(t)
	_, err := f.manager.Confirm(s.ID, []int{0}, nil)
	require.NoError(t, err)

	f.ledger.during = func() { f.clock.Advance(2 * time.Minute) }
	_, err = f.manager.Commit(context.Background(), s.ID)

	var expired *importerror.ExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, int32(1), f.ledger.calls.Load())

	got, err := f.manager.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)
	assert.Nil(t, got.CommitResult)
}

func TestManager_Sweep(t *testing.T) {
	f := newFixture(t, Options{TTL: time.Minute, Retention: time.Hour}, nil)
	live := f.manager.Create(csvMeta(), csvContent)
	f.clock.Advance(30 * time.Second)
	fresh := f.manager.Create(csvMeta(), csvContent)

	f.clock.Advance(45 * time.Second)
	res := f.manager.Sweep()
	assert.Equal(t, SweepResult{Expired: 1}, res)

	got, _ := f.manager.Get(live.ID)
	assert.Equal(t, models.StatusExpired, got.Status)
	got, _ = f.manager.Get(fresh.ID)
	assert.Equal(t, models.StatusCreated, got.Status)

	f.clock.Advance(2 * time.Hour)
	res = f.manager.Sweep()
	assert.Equal(t, SweepResult{Expired: 1, Removed: 2}, res)
	assert.Equal(t, 0, f.manager.Len())
}

func TestManager_RunSweeperStops(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.manager.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestManager_TransitionsNeverSkipStates(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	s, _ := f.toReviewed(t)
	_, err := f.manager.Confirm(s.ID, []int{0}, nil)
	require.NoError(t, err)
	_, err = f.manager.Commit(context.Background(), s.ID)
	require.NoError(t, err)

	other := f.manager.Create(csvMeta(), csvContent)
	_, err = f.manager.Cancel(other.ID)
	require.NoError(t, err)

	parse := map[string]models.SessionStatus{}
	for st := models.StatusCreated; st <= models.StatusExpired; st++ {
		parse[st.String()] = st
	}

	transitions := 0
	for _, e := range f.logger.GetEntriesByLevel("INFO") {
		if e.Message != "Session status changed" {
			continue
		}
		fromName, _ := e.FieldValue(logging.FieldFromStatus)
		toName, _ := e.FieldValue(logging.FieldStatus)
		from, to := parse[fromName.(string)], parse[toName.(string)]
		assert.True(t, from.CanTransition(to), "%s -> %s", from, to)
		transitions++
	}
	assert.Equal(t, 6, transitions)
}

func TestNewManager_RequiresCollaborators(t *testing.T) {
	_, err := NewManager(Dependencies{}, Options{})
	assert.Error(t, err)
}
