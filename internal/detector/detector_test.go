package detector

import (
	"math/rand"
	"strings"
	"testing"

	"fjacquet/statement-import/internal/catalog"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]models.BankSignature{
		{
			Name:           "Banco X",
			Keywords:       []string{"banco-x", "bx digital"},
			HeaderPatterns: []string{"extrato banco-x", "bx s.a.", "ouvidoria bx"},
		},
		{
			Name:           "Banco Y",
			Keywords:       []string{"banco-y", "y bank"},
			HeaderPatterns: []string{"y bank s.a."},
		},
		{
			Name:     "Alpha",
			Keywords: []string{"shared-token"},
		},
		{
			Name:     "Beta",
			Keywords: []string{"shared-token"},
		},
	})
	require.NoError(t, err)
	return c
}

func newTestDetector(t *testing.T, opts ...Option) *Detector {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewMockLogger())}, opts...)
	return New(testCatalog(t), opts...)
}

func TestDetect_KeywordsAndPatternInHeader(t *testing.T) {
	d := newTestDetector(t)
	text := "BANCO-X\nBX Digital - Extrato Banco-X\n01/02/2024 PIX RECEBIDO 100,00"

	result := d.Detect(text, models.FormatPDF)

	require.True(t, result.Found())
	assert.Equal(t, "Banco X", result.Bank)
	assert.Equal(t, models.SourceContent, result.Source)
	require.NotNil(t, result.Signature)
	assert.Equal(t, "Banco X", result.Signature.Name)
	// 2 header keywords (10) + 1 pattern (3) + bonus 2*2 (4) over max 10+9+4.
	assert.InDelta(t, 17.0/23.0, result.Confidence, 1e-9)
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
}

func TestDetect_CapsConfidence(t *testing.T) {
	d := newTestDetector(t)
	result := d.Detect("Y BANK S.A. — banco-y", models.FormatPDF)
	assert.Equal(t, "Banco Y", result.Bank)
	assert.Equal(t, 0.99, result.Confidence)
}

func TestDetect_BelowGateIsUnknown(t *testing.T) {
	d := newTestDetector(t)

	result := d.Detect("comprovante bx s.a.", models.FormatPDF)

	assert.False(t, result.Found())
	assert.Zero(t, result.Confidence)
	assert.Nil(t, result.Signature)
	assert.Equal(t, models.SourceUnknown, result.Source)

	ranked := d.Rank("comprovante bx s.a.")
	require.Len(t, ranked, 1)
	assert.Equal(t, 3, ranked[0].Score)
}

func TestDetect_KeywordOutsideHeaderScoresLess(t *testing.T) {
	d := newTestDetector(t)
	padding := strings.Repeat("é", models.HeaderAreaLength)

	ranked := d.Rank(padding + " banco-x bx digital")
	require.NotEmpty(t, ranked)
	assert.Equal(t, "Banco X", ranked[0].Signature.Name)
	// two body keywords (2+2) + bonus 2*2
	assert.Equal(t, 8, ranked[0].Score)
	assert.Equal(t, 2, ranked[0].KeywordsFound)

	inHeader := d.Rank("banco-x bx digital")
	assert.Greater(t, inHeader[0].Score, ranked[0].Score)
}

func TestDetect_HeaderPatternOnlyCountsInHeader(t *testing.T) {
	d := newTestDetector(t)
	padding := strings.Repeat("x", models.HeaderAreaLength)
	assert.Empty(t, d.Rank(padding+" ouvidoria bx"))
}

func TestDetect_EmptyInputs(t *testing.T) {
	d := newTestDetector(t)
	assert.Equal(t, models.UnknownDetection(), d.Detect("", models.FormatCSV))

	empty, err := catalog.New(nil)
	require.NoError(t, err)
	ed := New(empty, WithLogger(logging.NewMockLogger()))
	assert.Equal(t, models.UnknownDetection(), ed.Detect("banco-x bx digital", models.FormatPDF))
	assert.Equal(t, models.UnknownDetection(), ed.DetectCombined("banco-x", "banco-x.pdf", models.FormatPDF))
}

func TestDetect_TiesKeepCatalogOrder(t *testing.T) {
	d := newTestDetector(t)
	for i := 0; i < 20; i++ {
		result := d.Detect("shared-token statement", models.FormatCSV)
		assert.Equal(t, "Alpha", result.Bank)
		assert.InDelta(t, 5.0/7.0, result.Confidence, 1e-9)
	}
	ranked := d.Rank("shared-token")
	require.Len(t, ranked, 2)
	assert.Equal(t, []string{"Alpha", "Beta"}, []string{ranked[0].Signature.Name, ranked[1].Signature.Name})
}

func TestDetect_Monotonicity(t *testing.T) {
	d := newTestDetector(t)
	base := "extrato banco-x 2024"
	before := d.Detect(base, models.FormatPDF)
	after := d.Detect(base+" bx digital", models.FormatPDF)
	again := d.Detect(base+" bx digital banco-x", models.FormatPDF)

	assert.GreaterOrEqual(t, after.Confidence, before.Confidence)
	assert.GreaterOrEqual(t, again.Confidence, after.Confidence)
}

func TestDetect_ConfidenceBounds(t *testing.T) {
	d := newTestDetector(t)
	words := []string{"banco-x", "bx digital", "extrato banco-x", "bx s.a.", "ouvidoria bx",
		"banco-y", "y bank", "y bank s.a.", "shared-token", "pix", "saldo", "ted"}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		var sb strings.Builder
		for j := 0; j < rng.Intn(12); j++ {
			sb.WriteString(words[rng.Intn(len(words))])
			sb.WriteString(" ")
		}
		text := sb.String()
		result := d.Detect(text, models.FormatPDF)
		assert.GreaterOrEqual(t, result.Confidence, 0.0)
		assert.LessOrEqual(t, result.Confidence, 0.99)
		if !result.Found() {
			assert.Zero(t, result.Confidence)
		}
		assert.Equal(t, result, d.Detect(text, models.FormatPDF))
	}
}

func TestSuggestFromFilename(t *testing.T) {
	d := newTestDetector(t)
	tests := []struct {
		file string
		bank string
		ok   bool
	}{
		{"banco-x-extrato.pdf", "Banco X", true},
		{"EXTRATO_BANCO-Y_2024.csv", "Banco Y", true},
		{"banco-xyz.pdf", "", false},
		{"shared-token.csv", "Alpha", true},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			bank, ok := d.SuggestFromFilename(tt.file)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bank, bank)
		})
	}
}

func TestDetectCombined(t *testing.T) {
	d := newTestDetector(t)

	t.Run("content authoritative", func(t *testing.T) {
		result := d.DetectCombined("banco-x bx digital extrato banco-x", "banco-y.pdf", models.FormatPDF)
		assert.Equal(t, "Banco X", result.Bank)
		assert.Equal(t, models.SourceContent, result.Source)
	})

	t.Run("filename fallback on garbled text", func(t *testing.T) {
		result := d.DetectCombined("#@!%", "banco-x-extrato.pdf", models.FormatPDF)
		assert.Equal(t, "Banco X", result.Bank)
		assert.Equal(t, 0.4, result.Confidence)
		assert.Equal(t, models.SourceFilename, result.Source)
		require.NotNil(t, result.Signature)
		assert.Equal(t, "Banco X", result.Signature.Name)
	})

	t.Run("filename beats weak content", func(t *testing.T) {
		// Banco X alone: 5/23, below the authoritative threshold.
		result := d.DetectCombined("banco-x", "banco-y.csv", models.FormatCSV)
		assert.Equal(t, "Banco Y", result.Bank)
		assert.Equal(t, models.SourceFilename, result.Source)
	})

	t.Run("low confidence guess surfaced", func(t *testing.T) {
		result := d.DetectCombined("bx s.a.", "statement.pdf", models.FormatPDF)
		assert.Equal(t, "Banco X", result.Bank)
		assert.Equal(t, models.SourceContent, result.Source)
		assert.Less(t, result.Confidence, 0.3)
	})

	t.Run("nothing at all", func(t *testing.T) {
		result := d.DetectCombined("", "statement.pdf", models.FormatPDF)
		assert.Equal(t, models.UnknownDetection(), result)
	})
}

func TestDetectCombined_NeverFilenameWhenContentAuthoritative(t *testing.T) {
	d := newTestDetector(t)
	texts := []string{
		"banco-x bx digital",
		"y bank s.a. banco-y y bank",
		"extrato banco-x bx s.a. ouvidoria bx bx digital",
	}
	for _, text := range texts {
		content := d.Detect(text, models.FormatPDF)
		require.GreaterOrEqual(t, content.Confidence, 0.5, text)
		combined := d.DetectCombined(text, "banco-y-banco-x.pdf", models.FormatPDF)
		assert.NotEqual(t, models.SourceFilename, combined.Source, text)
		assert.Equal(t, content, combined)
	}
}

func TestWithContentMatcher(t *testing.T) {
	c, err := catalog.New([]models.BankSignature{{Name: "Nubank", Keywords: []string{"nubank"}}})
	require.NoError(t, err)

	substring := New(c, WithLogger(logging.NewMockLogger()))
	assert.Equal(t, "Nubank", substring.Detect("nubanking", models.FormatPDF).Bank)

	words := New(c, WithLogger(logging.NewMockLogger()), WithContentMatcher(catalog.NewWordMatcher))
	assert.False(t, words.Detect("nubanking", models.FormatPDF).Found())
	assert.True(t, words.Detect("nubank s.a.", models.FormatPDF).Found())
}

func TestWithThresholds(t *testing.T) {
	th := models.DefaultThresholds()
	th.UnknownGate = 0.8
	d := newTestDetector(t, WithThresholds(th))
	assert.False(t, d.Detect("banco-x bx digital extrato banco-x", models.FormatPDF).Found())
}

func TestHeaderArea(t *testing.T) {
	lower, header := headerArea("ABC")
	assert.Equal(t, "abc", lower)
	assert.Equal(t, "abc", header)

	long := strings.Repeat("Ç", models.HeaderAreaLength) + "TAIL"
	lower, header = headerArea(long)
	assert.Equal(t, models.HeaderAreaLength, len([]rune(header)))
	assert.True(t, strings.HasSuffix(lower, "tail"))
	assert.Equal(t, models.HeaderAreaLength+4, len([]rune(lower)))
}

func TestDetect_KeywordAcrossHeaderBoundary(t *testing.T) {
	d := newTestDetector(t)
	// "banco-x" starts three characters before the end of the header area
	padding := strings.Repeat("z", models.HeaderAreaLength-3)

	ranked := d.Rank(padding + "banco-x tail")
	require.Len(t, ranked, 1)
	assert.Equal(t, "Banco X", ranked[0].Signature.Name)
	assert.Equal(t, 2, ranked[0].Score)
	assert.Equal(t, 1, ranked[0].KeywordsFound)
}
