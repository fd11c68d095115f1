package logging

// Standardized field names for structured logging across the import pipeline.
const (
	FieldSessionID    = "session_id"
	FieldFileName     = "file_name"
	FieldFileSize     = "file_size"
	FieldMIMEType     = "mime_type"
	FieldFormat       = "format"
	FieldBank         = "bank"
	FieldConfidence   = "confidence"
	FieldSource       = "source"
	FieldStatus       = "status"
	FieldFromStatus   = "from_status"
	FieldExtractor    = "extractor"
	FieldLedger       = "ledger"
	FieldAccountID    = "account_id"
	FieldOperation    = "operation"
	FieldReason       = "reason"
	FieldError        = "error"
	FieldDuration     = "duration_ms"
	FieldCount        = "count"
	FieldValidCount   = "valid_count"
	FieldInvalidCount = "invalid_count"
	FieldComponent    = "component"
	FieldModel        = "model"
	FieldPath         = "path"
	FieldMethod       = "method"
	FieldSkipped      = "skipped"
	FieldExpired      = "expired"
	FieldRemoved      = "removed"
)
