package session

import (
	"time"

	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/validation"
)

// Options tunes the limits and timeouts of a Manager.
type Options struct {
	Upload            validation.UploadLimits
	MaxTransactions   int
	TTL               time.Duration
	ExtractionTimeout time.Duration
	LedgerTimeout     time.Duration
	// Retention is how long a terminal session stays queryable after it expired.
	Retention time.Duration
}

// DefaultOptions returns the built-in limits.
func DefaultOptions() Options {
	return Options{
		Upload:            validation.DefaultUploadLimits(),
		MaxTransactions:   models.DefaultMaxTransactions,
		TTL:               models.DefaultSessionTTLMinutes * time.Minute,
		ExtractionTimeout: 60 * time.Second,
		LedgerTimeout:     15 * time.Second,
		Retention:         models.DefaultSessionTTLMinutes * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Upload.MaxFileSizeBytes <= 0 {
		o.Upload.MaxFileSizeBytes = d.Upload.MaxFileSizeBytes
	}
	if len(o.Upload.AllowedExtensions) == 0 {
		o.Upload.AllowedExtensions = d.Upload.AllowedExtensions
	}
	if len(o.Upload.AllowedMIMETypes) == 0 {
		o.Upload.AllowedMIMETypes = d.Upload.AllowedMIMETypes
	}
	if o.MaxTransactions <= 0 {
		o.MaxTransactions = d.MaxTransactions
	}
	if o.TTL <= 0 {
		o.TTL = d.TTL
	}
	if o.ExtractionTimeout <= 0 {
		o.ExtractionTimeout = d.ExtractionTimeout
	}
	if o.LedgerTimeout <= 0 {
		o.LedgerTimeout = d.LedgerTimeout
	}
	if o.Retention <= 0 {
		o.Retention = d.Retention
	}
	return o
}
