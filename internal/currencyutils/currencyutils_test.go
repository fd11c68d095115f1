package currencyutils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "1234.56", "1234.56"},
		{"brazilian", "1.234,56", "1234.56"},
		{"real sign", "R$ 1.234,56", "1234.56"},
		{"negative real", "-R$ 10,00", "-10"},
		{"us format", "1,234.56", "1234.56"},
		{"decimal comma", "1234,5", "1234.5"},
		{"thousand comma", "1,234", "1234"},
		{"swiss apostrophe", "CHF 1'234.56", "1234.56"},
		{"euro", "€12,30", "12.3"},
		{"non-breaking space", "1 234,00", "1234"},
		{"accounting negative", "(45,10)", "-45.1"},
		{"trailing minus", "45,10-", "-45.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)), "got %s", got)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "R$", "-", "abc", "1.2.3,4,5"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseAmount(input)
			assert.Error(t, err)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	amount := decimal.RequireFromString("1234.5")
	assert.Equal(t, "R$ 1234.50", FormatAmount(amount, "BRL"))
	assert.Equal(t, "€1234.50", FormatAmount(amount, "eur"))
	assert.Equal(t, "$1234.50", FormatAmount(amount, "USD"))
	assert.Equal(t, "CHF 1234.50", FormatAmount(amount, "CHF"))
	assert.Equal(t, "1234.50", FormatAmount(amount, ""))
}
