package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fjacquet/statement-import/internal/config"
	"fjacquet/statement-import/internal/ledger"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nubankExport = []byte("data;descrição;valor;tipo;saldo\n" +
	"2024-06-01;Transferência recebida Nu Pagamentos S.A. extrato da conta nubank;1.500,00;C;1.500,00\n" +
	"2024-06-02;Mercado;-230,40;;1.269,60\n" +
	"2024-06-03;Aluguel;800,00;D;469,60\n")

func fixedClock() time.Time {
	return time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)
}

func TestNewContainer(t *testing.T) {
	tests := []struct {
		name        string
		config      func() *config.Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "nil config",
			config:      func() *config.Config { return nil },
			expectError: true,
			errorMsg:    "configuration cannot be nil",
		},
		{
			name:   "defaults without AI",
			config: config.Defaults,
		},
		{
			name: "gemini provider without API key",
			config: func() *config.Config {
				cfg := config.Defaults()
				cfg.Extraction.Provider = ProviderGemini
				return cfg
			},
			expectError: true,
			errorMsg:    "GEMINI_API_KEY",
		},
		{
			name: "missing catalog file",
			config: func() *config.Config {
				cfg := config.Defaults()
				cfg.Catalog.File = filepath.Join(t.TempDir(), "missing.yaml")
				return cfg
			},
			expectError: true,
			errorMsg:    "failed to load bank catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContainer(context.Background(), tt.config(), WithLogger(logging.NewMockLogger()))

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, c)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, c)
			assert.NotNil(t, c.GetLogger())
			assert.NotNil(t, c.GetConfig())
			assert.NotNil(t, c.GetDetector())
			assert.NotNil(t, c.GetValidator())
			assert.NotNil(t, c.GetCalculator())
			assert.NotNil(t, c.GetTextSource())
			assert.NotNil(t, c.GetManager())
			assert.Greater(t, c.GetCatalog().Len(), 0)
			assert.NoError(t, c.Close())
		})
	}
}

func TestNewContainer_DefaultLedgerIsCSVFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Ledger.File = filepath.Join(t.TempDir(), "ledger.csv")

	c, err := NewContainer(context.Background(), cfg, WithLogger(logging.NewMockLogger()))
	require.NoError(t, err)

	csvLedger, ok := c.GetLedger().(*ledger.CSVLedger)
	require.True(t, ok)
	assert.Equal(t, cfg.Ledger.File, csvLedger.Path())
}

func TestNewContainer_ExtractorRoutes(t *testing.T) {
	c, err := NewContainer(context.Background(), config.Defaults(), WithLogger(logging.NewMockLogger()))
	require.NoError(t, err)

	csvExtractor, err := c.GetExtractor().For(models.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "csv", csvExtractor.Name())

	_, err = c.GetExtractor().For(models.FormatPDF)
	assert.Error(t, err, "PDF needs AI extraction")
}

func TestSessionOptions(t *testing.T) {
	cfg := config.Defaults()
	cfg.Import.MaxTransactions = 50
	cfg.Import.SessionTTLMinutes = 5
	cfg.Extraction.TimeoutSeconds = 30
	cfg.Ledger.TimeoutSeconds = 3

	opts := SessionOptions(cfg)

	assert.Equal(t, 50, opts.MaxTransactions)
	assert.Equal(t, 5*time.Minute, opts.TTL)
	assert.Equal(t, 30*time.Second, opts.ExtractionTimeout)
	assert.Equal(t, 3*time.Second, opts.LedgerTimeout)
	assert.Equal(t, int64(models.DefaultMaxFileSizeBytes), opts.Upload.MaxFileSizeBytes)
	assert.Equal(t, models.DefaultAllowedExtensions, opts.Upload.AllowedExtensions)
}

func TestContainer_ImportsCSVExportEndToEnd(t *testing.T) {
	mem := ledger.NewMemoryLedger()
	c, err := NewContainer(context.Background(), config.Defaults(),
		WithLogger(logging.NewMockLogger()),
		WithLedger(mem),
		WithClock(fixedClock))
	require.NoError(t, err)
	m := c.GetManager()

	s := m.Create(models.FileMeta{Name: "extrato-junho.csv", SizeBytes: int64(len(nubankExport)), MIMEType: "text/csv"}, nubankExport)

	validated, err := m.ValidateFile(s.ID)
	require.NoError(t, err)
	require.NotNil(t, validated.Detection)
	assert.Equal(t, "Nubank", validated.Detection.Bank)
	assert.Equal(t, models.SourceContent, validated.Detection.Source)

	extracted, err := m.Extract(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, extracted.Drafts, 3)
	assert.Equal(t, 0, extracted.InvalidCount)

	review, err := m.Review(s.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, review.Preselected)
	inferred := review.Items[1].Record
	assert.Equal(t, models.KindDebit, inferred.Kind)
	assert.True(t, decimal.RequireFromString("-230.4").Equal(inferred.Amount))

	account := uuid.New()
	_, err = m.Confirm(s.ID, []int{0, 1, 2}, &account)
	require.NoError(t, err)

	result, err := m.Commit(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1500").Equal(result.TotalCredits))
	assert.True(t, decimal.RequireFromString("1030.4").Equal(result.TotalDebits))
	assert.True(t, decimal.RequireFromString("469.6").Equal(result.NetBalance))

	entries := mem.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, account, entries[0].AccountID)
}
