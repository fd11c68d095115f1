package models

import "fmt"

// TransactionKind tells whether a record adds money to or takes money from the account.
type TransactionKind string

const (
	KindCredit TransactionKind = "credit"
	KindDebit  TransactionKind = "debit"
)

// ParseTransactionKind accepts the canonical kinds plus the ISO 20022 codes.
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch s {
	case "credit", "CREDIT", "Credit", "CRDT":
		return KindCredit, nil
	case "debit", "DEBIT", "Debit", "DBIT":
		return KindDebit, nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
}

// DocumentFormat is the family of the uploaded statement file.
type DocumentFormat string

const (
	FormatPDF     DocumentFormat = "pdf"
	FormatCSV     DocumentFormat = "csv"
	FormatUnknown DocumentFormat = "unknown"
)

// DetectionSource records which signal produced a DetectionResult.
type DetectionSource string

const (
	SourceContent  DetectionSource = "content"
	SourceFilename DetectionSource = "filename"
	SourceUnknown  DetectionSource = "unknown"
)

// File limits for uploaded statements.
const (
	MaxFileNameLength        = 255
	DefaultMaxFileSizeBytes  = 20 * 1024 * 1024
	DefaultMaxTransactions   = 1000
	MaxDescriptionLength     = 500
	HeaderAreaLength         = 3000
	DefaultSessionTTLMinutes = 60
)

// DefaultAllowedExtensions lists statement-document and tabular-export extensions.
var DefaultAllowedExtensions = []string{".pdf", ".csv"}

// DefaultAllowedMIMETypes lists the declared MIME types accepted on upload.
var DefaultAllowedMIMETypes = []string{
	"application/pdf",
	"text/csv",
	"application/csv",
	"text/plain",
	"application/vnd.ms-excel",
}

// File permissions
const (
	PermissionLedgerFile = 0600
	PermissionDirectory  = 0750
)
