// Package extraction turns an uploaded statement file into raw draft transaction
// candidates. The candidates are untyped; the validator decides what is acceptable.
package extraction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fjacquet/statement-import/internal/models"
)

// Document is the file handed to an extractor.
type Document struct {
	FileName string
	MIMEType string
	Format   models.DocumentFormat
	Content  []byte
	// BankHint is the detected bank name, empty when unknown.
	BankHint string
}

// Extractor produces raw draft records from a document.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, doc Document) ([]any, error)
}

// Router dispatches a document to the extractor registered for its format.
type Router struct {
	routes   map[models.DocumentFormat]Extractor
	fallback Extractor
}

// NewRouter creates a Router. fallback may be nil.
func NewRouter(routes map[models.DocumentFormat]Extractor, fallback Extractor) *Router {
	r := &Router{routes: make(map[models.DocumentFormat]Extractor, len(routes)), fallback: fallback}
	for f, e := range routes {
		if e != nil {
			r.routes[f] = e
		}
	}
	return r
}

// Name returns "router".
func (r *Router) Name() string {
	return "router"
}

// For returns the extractor that would handle the format.
func (r *Router) For(format models.DocumentFormat) (Extractor, error) {
	if e, ok := r.routes[format]; ok {
		return e, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no extractor configured for %s documents", format)
}

// Extract delegates to the extractor registered for doc.Format.
func (r *Router) Extract(ctx context.Context, doc Document) ([]any, error) {
	e, err := r.For(doc.Format)
	if err != nil {
		return nil, err
	}
	return e.Extract(ctx, doc)
}

// MockExtractor implements Extractor for testing purposes.
// It returns predefined records, optionally after a delay that honours ctx.
type MockExtractor struct {
	Records []any
	Err     error
	Delay   time.Duration
	// Started, when set, receives a value as soon as Extract is entered.
	Started chan struct{}

	mu    sync.Mutex
	calls []Document
}

// NewMockExtractor creates a MockExtractor with the given result.
func NewMockExtractor(records []any, err error) *MockExtractor {
	return &MockExtractor{Records: records, Err: err}
}

// Name returns "mock".
func (m *MockExtractor) Name() string {
	return "mock"
}

// Extract returns the predefined records or error.
func (m *MockExtractor) Extract(ctx context.Context, doc Document) ([]any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, doc)
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Records, nil
}

// Calls returns the documents passed to Extract so far.
func (m *MockExtractor) Calls() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Document, len(m.calls))
	copy(out, m.calls)
	return out
}
