// Package session owns the lifecycle of statement import sessions, from upload to
// commit. Transitions follow
//
//	Created -> FileValidated -> Extracted -> Reviewed -> Confirmed -> Committed
//
// with Failed, Cancelled and Expired reachable from every non-terminal state.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fjacquet/statement-import/internal/detector"
	"fjacquet/statement-import/internal/extraction"
	"fjacquet/statement-import/internal/importerror"
	"fjacquet/statement-import/internal/ledger"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/summary"
	"fjacquet/statement-import/internal/textsource"
	"fjacquet/statement-import/internal/validation"
	"fjacquet/statement-import/internal/validator"

	"github.com/google/uuid"
)

// Dependencies are the collaborators a Manager drives.
type Dependencies struct {
	Detector   *detector.Detector
	Validator  *validator.Validator
	Calculator *summary.Calculator
	TextSource textsource.Source
	Extractor  extraction.Extractor
	Ledger     ledger.Ledger
	Logger     logging.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Manager holds every live session in memory.
//
// The manager lock is never held while the extraction service or the ledger is
// called, so a slow collaborator does not block other sessions or a cancellation.
type Manager struct {
	deps   Dependencies
	opts   Options
	now    func() time.Time
	logger logging.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
}

type entry struct {
	session *models.ImportSession
	// content is released once extraction finished or the session ended.
	content    []byte
	format     models.DocumentFormat
	extracting bool
	// commitMu serializes commits of this session.
	commitMu sync.Mutex
}

// NewManager creates a Manager. Detector, Validator, Extractor and Ledger are required.
func NewManager(deps Dependencies, opts Options) (*Manager, error) {
	switch {
	case deps.Detector == nil:
		return nil, fmt.Errorf("session manager requires a detector")
	case deps.Validator == nil:
		return nil, fmt.Errorf("session manager requires a validator")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("session manager requires an extractor")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("session manager requires a ledger")
	}
	if deps.Calculator == nil {
		deps.Calculator = summary.NewCalculator(deps.Validator.Thresholds())
	}
	if deps.TextSource == nil {
		deps.TextSource = textsource.New(validation.FormatOf)
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &Manager{
		deps:     deps,
		opts:     opts.withDefaults(),
		now:      now,
		logger:   logging.OrDefault(deps.Logger).WithField(logging.FieldComponent, "ImportSessionManager"),
		sessions: make(map[uuid.UUID]*entry),
	}, nil
}

// Options returns the effective options.
func (m *Manager) Options() Options {
	return m.opts
}

// Create registers a new upload in status Created.
func (m *Manager) Create(meta models.FileMeta, content []byte) *models.ImportSession {
	now := m.now()
	s := &models.ImportSession{
		ID:        uuid.New(),
		Status:    models.StatusCreated,
		File:      meta,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.opts.TTL),
	}

	m.mu.Lock()
	m.sessions[s.ID] = &entry{session: s, content: content}
	m.mu.Unlock()

	m.logger.Info("Import session created",
		logging.Field{Key: logging.FieldSessionID, Value: s.ID.String()},
		logging.Field{Key: logging.FieldFileName, Value: meta.Name},
		logging.Field{Key: logging.FieldFileSize, Value: meta.SizeBytes},
		logging.Field{Key: logging.FieldMIMEType, Value: meta.MIMEType})
	return s.Clone()
}

// Get returns a snapshot of the session. An overdue session is moved to Expired
// first, so the snapshot always shows the current status.
func (m *Manager) Get(id uuid.UUID) (*models.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	m.expireIfDueLocked(e)
	return e.session.Clone(), nil
}

// ValidateFile checks the upload contract and runs bank detection.
// A violation moves the session to Failed and returns a ValidationError.
func (m *Manager) ValidateFile(id uuid.UUID) (*models.ImportSession, error) {
	m.mu.Lock()
	e, err := m.activeLocked(id, "validate file", models.StatusCreated)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	meta := e.session.File
	content := e.content
	m.mu.Unlock()

	verr := validation.ValidateUpload(meta, content, m.opts.Upload)

	var detection models.DetectionResult
	var format models.DocumentFormat
	if verr == nil {
		detection, format = m.detect(id, meta, content)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, err = m.activeLocked(id, "validate file", models.StatusCreated); err != nil {
		return nil, err
	}

	if verr != nil {
		m.failLocked(e, verr.Error())
		m.logger.Warn("Upload rejected",
			logging.Field{Key: logging.FieldSessionID, Value: id.String()},
			logging.Field{Key: logging.FieldReason, Value: verr.Error()})
		return nil, verr
	}

	e.format = format
	e.session.Detection = &detection
	if err := m.transitionLocked(e, models.StatusFileValidated); err != nil {
		return nil, err
	}
	return e.session.Clone(), nil
}

func (m *Manager) detect(id uuid.UUID, meta models.FileMeta, content []byte) (models.DetectionResult, models.DocumentFormat) {
	text, format, err := m.deps.TextSource.Extract(meta.Name, meta.MIMEType, content)
	if err != nil {
		m.logger.WithError(err).Warn("Could not read document text, detecting from file name only",
			logging.Field{Key: logging.FieldSessionID, Value: id.String()})
		text = ""
	}
	if format == "" {
		format = validation.FormatOf(meta.Name, meta.MIMEType)
	}

	result := m.deps.Detector.DetectCombined(text, meta.Name, format)
	m.logger.Info("Bank detection finished",
		logging.Field{Key: logging.FieldSessionID, Value: id.String()},
		logging.Field{Key: logging.FieldBank, Value: result.Bank},
		logging.Field{Key: logging.FieldConfidence, Value: result.Confidence},
		logging.Field{Key: logging.FieldSource, Value: string(result.Source)})
	return result, format
}

// Extract hands the file to the extraction service and validates its output.
// The call runs with the configured timeout. If the session is cancelled or expires
// meanwhile, the extraction result is discarded.
func (m *Manager) Extract(ctx context.Context, id uuid.UUID) (*models.ImportSession, error) {
	m.mu.Lock()
	e, err := m.activeLocked(id, "extract", models.StatusFileValidated)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if e.extracting {
		status := e.session.Status.String()
		m.mu.Unlock()
		return nil, &importerror.ConflictError{SessionID: id.String(), Operation: "extract", Status: status, Reason: "extraction already in progress"}
	}
	e.extracting = true
	doc := extraction.Document{
		FileName: e.session.File.Name,
		MIMEType: e.session.File.MIMEType,
		Format:   e.format,
		Content:  e.content,
	}
	if d := e.session.Detection; d != nil {
		doc.BankHint = d.Bank
	}
	m.mu.Unlock()

	started := m.now()
	callCtx, cancel := context.WithTimeout(ctx, m.opts.ExtractionTimeout)
	raw, callErr := m.deps.Extractor.Extract(callCtx, doc)
	cancel()

	var result validator.BatchResult
	if callErr == nil {
		result = m.deps.Validator.ValidateBatch(raw)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e.extracting = false

	if e.session.Status.IsTerminal() || m.expireIfDueLocked(e) {
		m.logger.Warn("Discarding extraction result for a session that ended meanwhile",
			logging.Field{Key: logging.FieldSessionID, Value: id.String()},
			logging.Field{Key: logging.FieldStatus, Value: e.session.Status.String()})
		return nil, m.endedError(e, "extract")
	}

	if callErr != nil {
		failure := &importerror.ExtractionFailure{SessionID: id.String(), Extractor: m.deps.Extractor.Name(), Err: callErr}
		m.failLocked(e, failure.Error())
		m.logger.WithError(callErr).Error("Extraction failed",
			logging.Field{Key: logging.FieldSessionID, Value: id.String()},
			logging.Field{Key: logging.FieldExtractor, Value: m.deps.Extractor.Name()},
			logging.Field{Key: logging.FieldDuration, Value: m.now().Sub(started).Milliseconds()})
		return nil, failure
	}

	drafts := make([]models.DraftRecord, len(result.Valid))
	for i, r := range result.Valid {
		drafts[i] = models.DraftRecord{ID: uuid.New(), Record: r}
	}
	e.session.Drafts = drafts
	e.session.InvalidCount = len(result.Invalid)
	e.content = nil

	if err := m.transitionLocked(e, models.StatusExtracted); err != nil {
		return nil, err
	}
	m.logger.Info("Extraction finished",
		logging.Field{Key: logging.FieldSessionID, Value: id.String()},
		logging.Field{Key: logging.FieldValidCount, Value: len(result.Valid)},
		logging.Field{Key: logging.FieldInvalidCount, Value: len(result.Invalid)},
		logging.Field{Key: logging.FieldDuration, Value: m.now().Sub(started).Milliseconds()})
	return e.session.Clone(), nil
}

// Review returns the review view of the drafts. The first review moves an Extracted
// session to Reviewed; later reviews only read.
func (m *Manager) Review(id uuid.UUID) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if m.expireIfDueLocked(e) {
		return nil, &importerror.ExpiredError{SessionID: id.String()}
	}

	switch e.session.Status {
	case models.StatusExtracted:
		if err := m.transitionLocked(e, models.StatusReviewed); err != nil {
			return nil, err
		}
	case models.StatusReviewed, models.StatusConfirmed, models.StatusCommitted:
	default:
		return nil, m.conflict(e, "review", "records have not been extracted")
	}

	return m.buildReview(e.session), nil
}

// Confirm records the selected draft indices and the target account.
// Re-confirming with the same selection is a no-op.
func (m *Manager) Confirm(id uuid.UUID, indices []int, accountID *uuid.UUID) (*models.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return m.confirmLocked(e, indices, accountID)
}

// ConfirmByIDs is Confirm with draft record ids instead of indices.
func (m *Manager) ConfirmByIDs(id uuid.UUID, recordIDs []uuid.UUID, accountID *uuid.UUID) (*models.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookupLocked(id)
	if err != nil {
		return nil, err
	}

	positions := make(map[uuid.UUID]int, len(e.session.Drafts))
	for i, d := range e.session.Drafts {
		positions[d.ID] = i
	}
	verr := &importerror.ValidationError{Subject: "selection"}
	indices := make([]int, 0, len(recordIDs))
	for _, rid := range recordIDs {
		i, ok := positions[rid]
		if !ok {
			verr.Add("selectedTransactionIds", fmt.Sprintf("unknown transaction id %s", rid))
			continue
		}
		indices = append(indices, i)
	}
	if verr.HasErrors() {
		if m.expireIfDueLocked(e) {
			return nil, &importerror.ExpiredError{SessionID: id.String()}
		}
		return nil, verr
	}
	return m.confirmLocked(e, indices, accountID)
}

func (m *Manager) confirmLocked(e *entry, indices []int, accountID *uuid.UUID) (*models.ImportSession, error) {
	if m.expireIfDueLocked(e) {
		return nil, &importerror.ExpiredError{SessionID: e.session.ID.String()}
	}

	switch e.session.Status {
	case models.StatusReviewed:
	case models.StatusConfirmed, models.StatusCommitted:
		if sameSelection(e.session, indices, accountID) {
			return e.session.Clone(), nil
		}
		return nil, m.conflict(e, "confirm", "a different selection was already confirmed")
	default:
		return nil, m.conflict(e, "confirm", "records must be reviewed first")
	}

	selected, err := m.checkSelection(indices, len(e.session.Drafts))
	if err != nil {
		return nil, err
	}

	e.session.Selected = selected
	if accountID != nil {
		acc := *accountID
		e.session.TargetAccountID = &acc
	}
	if err := m.transitionLocked(e, models.StatusConfirmed); err != nil {
		return nil, err
	}
	return e.session.Clone(), nil
}

func (m *Manager) checkSelection(indices []int, n int) ([]int, error) {
	verr := &importerror.ValidationError{Subject: "selection"}
	switch {
	case len(indices) == 0:
		verr.Add("selectedIndices", "At least one transaction must be selected")
	case len(indices) > m.opts.MaxTransactions:
		verr.Add("selectedIndices", fmt.Sprintf("At most %d transactions can be imported at once", m.opts.MaxTransactions))
	}

	seen := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 || i >= n {
			verr.Add("selectedIndices", fmt.Sprintf("Index %d is out of range [0, %d)", i, n))
			continue
		}
		if _, dup := seen[i]; dup {
			verr.Add("selectedIndices", fmt.Sprintf("Index %d is selected more than once", i))
			continue
		}
		seen[i] = struct{}{}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	selected := append([]int(nil), indices...)
	sort.Ints(selected)
	return selected, nil
}

func sameSelection(s *models.ImportSession, indices []int, accountID *uuid.UUID) bool {
	if len(indices) != len(s.Selected) {
		return false
	}
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	for i := range sorted {
		if sorted[i] != s.Selected[i] {
			return false
		}
	}
	switch {
	case accountID == nil:
		return s.TargetAccountID == nil
	case s.TargetAccountID == nil:
		return false
	default:
		return *accountID == *s.TargetAccountID
	}
}

// Commit hands the selected records to the ledger. Commits of one session are
// serialized; a committed session returns its earlier summary without touching the
// ledger again. A ledger error keeps the session Confirmed so the commit can be retried.
func (m *Manager) Commit(ctx context.Context, id uuid.UUID) (models.ImportSummary, error) {
	m.mu.Lock()
	e, err := m.lookupLocked(id)
	m.mu.Unlock()
	if err != nil {
		return models.ImportSummary{}, err
	}

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	m.mu.Lock()
	if m.expireIfDueLocked(e) {
		m.mu.Unlock()
		return models.ImportSummary{}, &importerror.ExpiredError{SessionID: id.String()}
	}
	if e.session.Status == models.StatusCommitted && e.session.CommitResult != nil {
		prior := *e.session.CommitResult
		m.mu.Unlock()
		return prior, nil
	}
	if e.session.Status != models.StatusConfirmed {
		err := m.conflict(e, "commit", "the session must be confirmed first")
		m.mu.Unlock()
		return models.ImportSummary{}, err
	}

	records := e.session.Records()
	selected := append([]int(nil), e.session.Selected...)
	account := uuid.Nil
	if e.session.TargetAccountID != nil {
		account = *e.session.TargetAccountID
	}
	m.mu.Unlock()

	batch := make([]models.ExtractedTransactionRecord, len(selected))
	for i, idx := range selected {
		batch[i] = records[idx]
	}
	result := m.deps.Calculator.Summarize(records, selected)

	callCtx, cancel := context.WithTimeout(ctx, m.opts.LedgerTimeout)
	receipt, callErr := m.deps.Ledger.Commit(callCtx, account, batch)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e.session.Status.IsTerminal() || m.expireIfDueLocked(e) {
		m.logger.Warn("Discarding ledger result for a session that ended meanwhile",
			logging.Field{Key: logging.FieldSessionID, Value: id.String()},
			logging.Field{Key: logging.FieldStatus, Value: e.session.Status.String()})
		return models.ImportSummary{}, m.endedError(e, "commit")
	}

	if callErr != nil {
		m.logger.WithError(callErr).Error("Ledger commit failed",
			logging.Field{Key: logging.FieldSessionID, Value: id.String()},
			logging.Field{Key: logging.FieldLedger, Value: m.deps.Ledger.Name()})
		return models.ImportSummary{}, &importerror.LedgerFailure{SessionID: id.String(), Err: callErr}
	}

	e.session.CommitResult = &result
	if err := m.transitionLocked(e, models.StatusCommitted); err != nil {
		return models.ImportSummary{}, err
	}
	m.logger.Info("Import committed",
		logging.Field{Key: logging.FieldSessionID, Value: id.String()},
		logging.Field{Key: logging.FieldAccountID, Value: account.String()},
		logging.Field{Key: logging.FieldCount, Value: receipt.Inserted},
		logging.Field{Key: logging.FieldSkipped, Value: receipt.Skipped})
	return result, nil
}

// Cancel moves a live session to Cancelled. In-flight extraction or commit calls are
// not interrupted; their results are discarded when they return.
func (m *Manager) Cancel(id uuid.UUID) (*models.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if m.expireIfDueLocked(e) {
		return nil, &importerror.ExpiredError{SessionID: id.String()}
	}
	switch e.session.Status {
	case models.StatusCancelled:
		return e.session.Clone(), nil
	case models.StatusCommitted, models.StatusFailed:
		return nil, m.conflict(e, "cancel", "")
	}

	e.content = nil
	if err := m.transitionLocked(e, models.StatusCancelled); err != nil {
		return nil, err
	}
	return e.session.Clone(), nil
}

// SweepResult counts what a sweep changed.
type SweepResult struct {
	Expired int
	Removed int
}

// Sweep expires overdue sessions and forgets terminal sessions whose retention
// period has passed.
func (m *Manager) Sweep() SweepResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res SweepResult
	now := m.now()
	for id, e := range m.sessions {
		if m.expireIfDueLocked(e) {
			res.Expired++
		}
		if e.session.Status.IsTerminal() && !e.extracting && now.After(e.session.ExpiresAt.Add(m.opts.Retention)) {
			delete(m.sessions, id)
			res.Removed++
		}
	}
	if res.Expired > 0 || res.Removed > 0 {
		m.logger.Info("Session sweep finished",
			logging.Field{Key: logging.FieldExpired, Value: res.Expired},
			logging.Field{Key: logging.FieldRemoved, Value: res.Removed})
	}
	return res
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len returns the number of sessions held.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lookupLocked(id uuid.UUID) (*entry, error) {
	e, ok := m.sessions[id]
	if !ok {
		return nil, &importerror.NotFoundError{Resource: "import session", ID: id.String()}
	}
	return e, nil
}

// activeLocked fetches a session that must be in want.
func (m *Manager) activeLocked(id uuid.UUID, op string, want models.SessionStatus) (*entry, error) {
	e, err := m.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if m.expireIfDueLocked(e) || e.session.Status == models.StatusExpired {
		return nil, &importerror.ExpiredError{SessionID: id.String()}
	}
	if e.session.Status != want {
		return nil, m.conflict(e, op, fmt.Sprintf("expected status %s", want))
	}
	return e, nil
}

// expireIfDueLocked moves an overdue live session to Expired and reports whether the
// session is expired now.
func (m *Manager) expireIfDueLocked(e *entry) bool {
	s := e.session
	if s.Status == models.StatusExpired {
		return true
	}
	if s.Status.IsTerminal() || m.now().Before(s.ExpiresAt) {
		return false
	}
	e.content = nil
	_ = m.transitionLocked(e, models.StatusExpired)
	return true
}

func (m *Manager) failLocked(e *entry, reason string) {
	e.session.FailureReason = reason
	e.content = nil
	_ = m.transitionLocked(e, models.StatusFailed)
}

func (m *Manager) transitionLocked(e *entry, next models.SessionStatus) error {
	s := e.session
	from := s.Status
	if !from.CanTransition(next) {
		return &importerror.ConflictError{
			SessionID: s.ID.String(),
			Operation: "move to " + next.String(),
			Status:    from.String(),
			Reason:    "illegal transition",
		}
	}
	s.Status = next
	s.UpdatedAt = m.now()
	m.logger.Info("Session status changed",
		logging.Field{Key: logging.FieldSessionID, Value: s.ID.String()},
		logging.Field{Key: logging.FieldFromStatus, Value: from.String()},
		logging.Field{Key: logging.FieldStatus, Value: next.String()})
	return nil
}

func (m *Manager) conflict(e *entry, op, reason string) error {
	return &importerror.ConflictError{
		SessionID: e.session.ID.String(),
		Operation: op,
		Status:    e.session.Status.String(),
		Reason:    reason,
	}
}

// endedError reports why an in-flight result was dropped.
func (m *Manager) endedError(e *entry, op string) error {
	if e.session.Status == models.StatusExpired {
		return &importerror.ExpiredError{SessionID: e.session.ID.String()}
	}
	return m.conflict(e, op, "session ended while the call was in flight")
}
