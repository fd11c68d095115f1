package models

import "fmt"

// ConfidenceThresholds holds every confidence cut-off used by detection and review.
// Components read them from here instead of hard-coding numbers.
type ConfidenceThresholds struct {
	// UnknownGate: top detection confidence below this reports no bank.
	UnknownGate float64 `mapstructure:"unknown_gate" yaml:"unknown_gate"`
	// ContentAuthoritative: content detection at or above this ignores the filename.
	ContentAuthoritative float64 `mapstructure:"content_authoritative" yaml:"content_authoritative"`
	// FilenameFallback is the fixed confidence given to filename-only matches.
	// It is an arbitrary constant kept below ContentAuthoritative, not a derived probability.
	FilenameFallback float64 `mapstructure:"filename_fallback" yaml:"filename_fallback"`
	// DuplicateBelow: records below this are duplicate/unreliable suspects.
	DuplicateBelow float64 `mapstructure:"duplicate_below" yaml:"duplicate_below"`
	// ReliableFrom: records at or above this are pre-selected for import.
	ReliableFrom float64 `mapstructure:"reliable_from" yaml:"reliable_from"`
	// MaxDetectionConfidence caps any detection confidence.
	MaxDetectionConfidence float64 `mapstructure:"max_detection_confidence" yaml:"max_detection_confidence"`
}

// DefaultThresholds returns the standard cut-offs.
func DefaultThresholds() ConfidenceThresholds {
	return ConfidenceThresholds{
		UnknownGate:            0.3,
		ContentAuthoritative:   0.5,
		FilenameFallback:       0.4,
		DuplicateBelow:         0.5,
		ReliableFrom:           0.7,
		MaxDetectionConfidence: 0.99,
	}
}

// Validate checks range and ordering of the thresholds.
func (t ConfidenceThresholds) Validate() error {
	values := map[string]float64{
		"unknown_gate":             t.UnknownGate,
		"content_authoritative":    t.ContentAuthoritative,
		"filename_fallback":        t.FilenameFallback,
		"duplicate_below":          t.DuplicateBelow,
		"reliable_from":            t.ReliableFrom,
		"max_detection_confidence": t.MaxDetectionConfidence,
	}
	for name, v := range values {
		if v < 0 || v > 1 {
			return fmt.Errorf("confidence.%s must be between 0.0 and 1.0, got: %f", name, v)
		}
	}
	if t.DuplicateBelow > t.ReliableFrom {
		return fmt.Errorf("confidence.duplicate_below (%f) must not exceed confidence.reliable_from (%f)", t.DuplicateBelow, t.ReliableFrom)
	}
	if t.FilenameFallback >= t.ContentAuthoritative {
		return fmt.Errorf("confidence.filename_fallback (%f) must stay below confidence.content_authoritative (%f)", t.FilenameFallback, t.ContentAuthoritative)
	}
	return nil
}
