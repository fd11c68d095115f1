// Package container provides dependency injection for the statement import
// application. It centralizes the creation and wiring of all dependencies,
// making them explicit and testable.
package container

import (
	"context"
	"fmt"
	"time"

	"fjacquet/statement-import/internal/catalog"
	"fjacquet/statement-import/internal/config"
	"fjacquet/statement-import/internal/detector"
	"fjacquet/statement-import/internal/extraction"
	"fjacquet/statement-import/internal/ledger"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/session"
	"fjacquet/statement-import/internal/summary"
	"fjacquet/statement-import/internal/textsource"
	"fjacquet/statement-import/internal/validation"
	"fjacquet/statement-import/internal/validator"
)

// Extraction providers accepted in extraction.provider.
const (
	ProviderAuto   = "auto"
	ProviderCSV    = "csv"
	ProviderGemini = "gemini"
)

// Container holds all application dependencies and provides methods to access them.
// It is immutable after creation.
type Container struct {
	logger     logging.Logger
	config     *config.Config
	catalog    *catalog.Catalog
	detector   *detector.Detector
	validator  *validator.Validator
	calculator *summary.Calculator
	textSource textsource.Source
	extractor  *extraction.Router
	gemini     *extraction.GeminiExtractor
	ledger     ledger.Ledger
	manager    *session.Manager
}

// Option overrides a collaborator the container would otherwise build from config.
type Option func(*overrides)

type overrides struct {
	logger    logging.Logger
	ledger    ledger.Ledger
	extractor extraction.Extractor
	clock     func() time.Time
}

// WithLogger replaces the logger built from the log section.
func WithLogger(l logging.Logger) Option {
	return func(o *overrides) { o.logger = l }
}

// WithLedger replaces the CSV ledger built from the ledger section.
func WithLedger(l ledger.Ledger) Option {
	return func(o *overrides) { o.ledger = l }
}

// WithExtractor registers e as the fallback for formats without a configured extractor.
func WithExtractor(e extraction.Extractor) Option {
	return func(o *overrides) { o.extractor = e }
}

// WithClock replaces time.Now for the validator and the session manager.
func WithClock(now func() time.Time) Option {
	return func(o *overrides) { o.clock = now }
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	// Create logger first as it's needed by other components
	logger := o.logger
	if logger == nil {
		logger = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	}

	cat, err := catalog.LoadOrDefault(cfg.Catalog.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank catalog: %w", err)
	}

	thresholds := cfg.Confidence
	det := detector.New(cat, detector.WithThresholds(thresholds), detector.WithLogger(logger))
	val := validator.NewValidator(thresholds, o.clock, logger)
	calc := summary.NewCalculator(thresholds)
	src := textsource.New(validation.FormatOf)

	c := &Container{
		logger:     logger,
		config:     cfg,
		catalog:    cat,
		detector:   det,
		validator:  val,
		calculator: calc,
		textSource: src,
	}

	if err := c.buildExtractor(ctx, o.extractor); err != nil {
		return nil, err
	}

	c.ledger = o.ledger
	if c.ledger == nil {
		c.ledger = ledger.NewCSVLedger(cfg.Ledger.File, logger)
	}

	c.manager, err = session.NewManager(session.Dependencies{
		Detector:   det,
		Validator:  val,
		Calculator: calc,
		TextSource: src,
		Extractor:  c.extractor,
		Ledger:     c.ledger,
		Logger:     logger,
		Clock:      o.clock,
	}, SessionOptions(cfg))
	if err != nil {
		_ = c.closeExtractor()
		return nil, err
	}

	logger.Info("Container initialized successfully",
		logging.Field{Key: "banks_count", Value: cat.Len()},
		logging.Field{Key: logging.FieldExtractor, Value: cfg.Extraction.Provider},
		logging.Field{Key: logging.FieldLedger, Value: c.ledger.Name()},
		logging.Field{Key: "ai_enabled", Value: c.gemini != nil})

	return c, nil
}

// buildExtractor routes CSV exports to the tabular reader and documents to Gemini
// when AI extraction is available.
func (c *Container) buildExtractor(ctx context.Context, fallback extraction.Extractor) error {
	cfg := c.config
	routes := map[models.DocumentFormat]extraction.Extractor{
		models.FormatCSV: extraction.NewCSVExtractor(c.logger),
	}

	useGemini := cfg.Extraction.Provider == ProviderGemini ||
		(cfg.Extraction.Provider == ProviderAuto && cfg.AI.Enabled)
	if useGemini {
		g, err := extraction.NewGeminiExtractor(ctx, cfg.AI.APIKey, cfg.AI.Model, c.logger)
		if err != nil {
			return fmt.Errorf("failed to create AI extractor: %w", err)
		}
		c.gemini = g
		routes[models.FormatPDF] = g
		if cfg.Extraction.Provider == ProviderGemini {
			routes[models.FormatCSV] = g
		}
		c.logger.Info("AI extraction enabled", logging.Field{Key: logging.FieldModel, Value: cfg.AI.Model})
	} else {
		c.logger.Info("AI extraction disabled")
	}

	c.extractor = extraction.NewRouter(routes, fallback)
	return nil
}

// SessionOptions translates the import, extraction and ledger sections into
// session manager options.
func SessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		Upload: validation.UploadLimits{
			MaxFileSizeBytes:  cfg.Import.MaxFileSizeBytes,
			AllowedExtensions: cfg.Import.AllowedExtensions,
			AllowedMIMETypes:  cfg.Import.AllowedMIMETypes,
		},
		MaxTransactions:   cfg.Import.MaxTransactions,
		TTL:               time.Duration(cfg.Import.SessionTTLMinutes) * time.Minute,
		ExtractionTimeout: time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second,
		LedgerTimeout:     time.Duration(cfg.Ledger.TimeoutSeconds) * time.Second,
	}
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetCatalog returns the bank catalog.
func (c *Container) GetCatalog() *catalog.Catalog {
	return c.catalog
}

// GetDetector returns the bank detector.
func (c *Container) GetDetector() *detector.Detector {
	return c.detector
}

// GetValidator returns the record validator.
func (c *Container) GetValidator() *validator.Validator {
	return c.validator
}

// GetCalculator returns the summary calculator.
func (c *Container) GetCalculator() *summary.Calculator {
	return c.calculator
}

// GetTextSource returns the text source used for detection.
func (c *Container) GetTextSource() textsource.Source {
	return c.textSource
}

// GetExtractor returns the extraction router.
func (c *Container) GetExtractor() *extraction.Router {
	return c.extractor
}

// GetLedger returns the ledger sessions commit to.
func (c *Container) GetLedger() ledger.Ledger {
	return c.ledger
}

// GetManager returns the import session manager.
func (c *Container) GetManager() *session.Manager {
	return c.manager
}

// Close releases the AI client, if one was created.
func (c *Container) Close() error {
	if err := c.closeExtractor(); err != nil {
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

func (c *Container) closeExtractor() error {
	if c.gemini == nil {
		return nil
	}
	if err := c.gemini.Close(); err != nil {
		return fmt.Errorf("failed to close AI extractor: %w", err)
	}
	c.gemini = nil
	return nil
}
