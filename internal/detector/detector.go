// Package detector identifies the bank that issued a statement from its text
// and, as a fallback, from its file name.
package detector

import (
	"math"
	"sort"
	"strings"

	"fjacquet/statement-import/internal/catalog"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
)

// Scoring weights.
const (
	headerKeywordPoints = 5
	bodyKeywordPoints   = 2
	headerPatternPoints = 3
	multiKeywordFactor  = 2
)

// Candidate is one scored signature.
type Candidate struct {
	Signature     models.BankSignature
	Score         int
	KeywordsFound int
	Confidence    float64
}

type compiledSignature struct {
	signature        models.BankSignature
	keywords         []catalog.Matcher
	patterns         []catalog.Matcher
	filenameKeywords []catalog.Matcher
}

// Detector scores statement text against a bank catalog. It holds no mutable
// state and may be shared between goroutines.
type Detector struct {
	catalog    *catalog.Catalog
	thresholds models.ConfidenceThresholds
	compiled   []compiledSignature
	logger     logging.Logger
}

// Option customizes a Detector.
type Option func(*settings)

type settings struct {
	thresholds      models.ConfidenceThresholds
	contentMatcher  catalog.MatcherFactory
	filenameMatcher catalog.MatcherFactory
	logger          logging.Logger
}

// WithThresholds overrides the default confidence thresholds.
func WithThresholds(t models.ConfidenceThresholds) Option {
	return func(s *settings) { s.thresholds = t }
}

// WithContentMatcher swaps the strategy used to find keywords and patterns in text.
func WithContentMatcher(f catalog.MatcherFactory) Option {
	return func(s *settings) { s.contentMatcher = f }
}

// WithFilenameMatcher swaps the strategy used to find keywords in file names.
func WithFilenameMatcher(f catalog.MatcherFactory) Option {
	return func(s *settings) { s.filenameMatcher = f }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New compiles the catalog's keywords and patterns into matchers.
func New(cat *catalog.Catalog, opts ...Option) *Detector {
	s := settings{
		thresholds:      models.DefaultThresholds(),
		contentMatcher:  catalog.NewSubstringMatcher,
		filenameMatcher: catalog.NewWordMatcher,
	}
	for _, opt := range opts {
		opt(&s)
	}

	d := &Detector{
		catalog:    cat,
		thresholds: s.thresholds,
		logger:     logging.OrDefault(s.logger).WithField(logging.FieldComponent, "BankDetector"),
	}
	for _, sig := range cat.Signatures() {
		cs := compiledSignature{signature: sig}
		for _, k := range sig.Keywords {
			cs.keywords = append(cs.keywords, s.contentMatcher(k))
			cs.filenameKeywords = append(cs.filenameKeywords, s.filenameMatcher(k))
		}
		for _, p := range sig.HeaderPatterns {
			cs.patterns = append(cs.patterns, s.contentMatcher(p))
		}
		d.compiled = append(d.compiled, cs)
	}
	return d
}

// headerArea lower-cases text and returns it together with its first
// HeaderAreaLength characters.
func headerArea(text string) (lower, header string) {
	lower = strings.ToLower(text)
	n := 0
	for i := range lower {
		if n == models.HeaderAreaLength {
			return lower, lower[:i]
		}
		n++
	}
	return lower, lower
}

// score evaluates one signature. Body keywords are matched against the whole text
// so an occurrence crossing the header boundary still counts.
func score(cs compiledSignature, lower, header string) (points, keywordsFound int) {
	for _, m := range cs.keywords {
		switch {
		case m.Matches(header):
			points += headerKeywordPoints
			keywordsFound++
		case len(lower) > len(header) && m.Matches(lower):
			points += bodyKeywordPoints
			keywordsFound++
		}
	}
	for _, m := range cs.patterns {
		if m.Matches(header) {
			points += headerPatternPoints
		}
	}
	if keywordsFound >= 2 {
		points += multiKeywordFactor * keywordsFound
	}
	return points, keywordsFound
}

func (d *Detector) confidence(sig models.BankSignature, points int) float64 {
	max := sig.MaxTheoreticalScore()
	if max == 0 {
		return 0
	}
	return math.Min(float64(points)/float64(max), d.thresholds.MaxDetectionConfidence)
}

// Rank scores every signature and returns those with a positive score, best first.
// Equal scores keep catalog order.
func (d *Detector) Rank(text string) []Candidate {
	lower, header := headerArea(text)
	var out []Candidate
	for _, cs := range d.compiled {
		points, found := score(cs, lower, header)
		if points == 0 {
			continue
		}
		out = append(out, Candidate{
			Signature:     cs.signature,
			Score:         points,
			KeywordsFound: found,
			Confidence:    d.confidence(cs.signature, points),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func contentResult(c Candidate) models.DetectionResult {
	sig := c.Signature
	return models.DetectionResult{
		Bank:       sig.Name,
		Confidence: c.Confidence,
		Signature:  &sig,
		Source:     models.SourceContent,
	}
}

// Detect identifies the bank from statement content. Matches below the unknown
// gate are reported as unknown. It never fails.
func (d *Detector) Detect(text string, format models.DocumentFormat) models.DetectionResult {
	ranked := d.Rank(text)
	if len(ranked) == 0 {
		d.logger.Debug("No bank signature matched content", logging.Field{Key: logging.FieldFormat, Value: format})
		return models.UnknownDetection()
	}

	top := ranked[0]
	if top.Confidence < d.thresholds.UnknownGate {
		d.logger.Debug("Best bank match below confidence gate",
			logging.Field{Key: logging.FieldBank, Value: top.Signature.Name},
			logging.Field{Key: logging.FieldConfidence, Value: top.Confidence},
			logging.Field{Key: logging.FieldFormat, Value: format})
		return models.UnknownDetection()
	}

	d.logger.Debug("Bank detected from content",
		logging.Field{Key: logging.FieldBank, Value: top.Signature.Name},
		logging.Field{Key: logging.FieldConfidence, Value: top.Confidence},
		logging.Field{Key: logging.FieldFormat, Value: format})
	return contentResult(top)
}

// SuggestFromFilename returns the first catalog bank with a keyword appearing as a
// whole word in the file name.
func (d *Detector) SuggestFromFilename(fileName string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(fileName))
	if name == "" {
		return "", false
	}
	for _, cs := range d.compiled {
		for _, m := range cs.filenameKeywords {
			if m.Matches(name) {
				return cs.signature.Name, true
			}
		}
	}
	return "", false
}

// DetectCombined merges content and file name evidence. Content at or above the
// authoritative threshold wins outright; a file name match comes next with the fixed
// fallback confidence; a low-confidence content guess beats nothing at all.
func (d *Detector) DetectCombined(text, fileName string, format models.DocumentFormat) models.DetectionResult {
	ranked := d.Rank(text)

	if len(ranked) > 0 && ranked[0].Confidence >= d.thresholds.UnknownGate &&
		ranked[0].Confidence >= d.thresholds.ContentAuthoritative {
		return contentResult(ranked[0])
	}

	if bank, ok := d.SuggestFromFilename(fileName); ok {
		result := models.DetectionResult{
			Bank:       bank,
			Confidence: d.thresholds.FilenameFallback,
			Source:     models.SourceFilename,
		}
		if sig, found := d.catalog.Lookup(bank); found {
			result.Signature = &sig
		}
		d.logger.Debug("Bank suggested from file name",
			logging.Field{Key: logging.FieldBank, Value: bank},
			logging.Field{Key: logging.FieldFileName, Value: fileName})
		return result
	}

	if len(ranked) > 0 {
		d.logger.Debug("Using low-confidence content guess",
			logging.Field{Key: logging.FieldBank, Value: ranked[0].Signature.Name},
			logging.Field{Key: logging.FieldConfidence, Value: ranked[0].Confidence})
		return contentResult(ranked[0])
	}

	return models.UnknownDetection()
}
