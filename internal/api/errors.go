package api

import (
	"errors"
	"fmt"
	"net/http"

	"fjacquet/statement-import/internal/importerror"
	"fjacquet/statement-import/internal/logging"

	"github.com/labstack/echo/v4"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Status    int                      `json:"-"`
	Code      string                   `json:"code"`
	Message   string                   `json:"message"`
	Details   string                   `json:"details,omitempty"`
	SessionID string                   `json:"sessionId,omitempty"`
	Fields    []importerror.FieldError `json:"fields,omitempty"`
	Retryable bool                     `json:"retryable,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error.
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewInternalError creates a 500 Internal Server Error.
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// FromError maps pipeline errors to their HTTP representation.
func FromError(err error) *APIError {
	var (
		apiErr     *APIError
		validation *importerror.ValidationError
		notFound   *importerror.NotFoundError
		conflict   *importerror.ConflictError
		expired    *importerror.ExpiredError
		extraction *importerror.ExtractionFailure
		ledger     *importerror.LedgerFailure
		httpErr    *echo.HTTPError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &validation):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: fmt.Sprintf("validation failed for %s", validation.Subject),
			Fields:  validation.Fields,
		}
	case errors.As(err, &notFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: notFound.Error()}
	case errors.As(err, &conflict):
		return &APIError{Status: http.StatusConflict, Code: "CONFLICT", Message: conflict.Error(), SessionID: conflict.SessionID}
	case errors.As(err, &expired):
		return &APIError{Status: http.StatusGone, Code: "SESSION_EXPIRED", Message: expired.Error(), SessionID: expired.SessionID}
	case errors.As(err, &extraction):
		return &APIError{
			Status:    http.StatusBadGateway,
			Code:      "EXTRACTION_FAILED",
			Message:   "the extraction service could not process the statement",
			Details:   extraction.Err.Error(),
			SessionID: extraction.SessionID,
			Retryable: importerror.IsRetryable(err),
		}
	case errors.As(err, &ledger):
		return &APIError{
			Status:    http.StatusBadGateway,
			Code:      "LEDGER_UNAVAILABLE",
			Message:   "the ledger did not accept the transactions; the import can be retried",
			Details:   ledger.Err.Error(),
			SessionID: ledger.SessionID,
			Retryable: importerror.IsRetryable(err),
		}
	case errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge:
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: "validation failed for upload",
			Fields:  []importerror.FieldError{{Field: "fileSize", Message: "Request body exceeds the maximum accepted upload size"}},
		}
	case errors.As(err, &httpErr):
		return &APIError{Status: httpErr.Code, Code: "HTTP_ERROR", Message: fmt.Sprintf("%v", httpErr.Message)}
	default:
		return &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
	}
}

// ErrorHandler renders errors as APIError JSON.
// Usage: e.HTTPErrorHandler = api.ErrorHandler(logger)
func ErrorHandler(logger logging.Logger) echo.HTTPErrorHandler {
	logger = logging.OrDefault(logger)
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		apiErr := FromError(err)
		if apiErr.Status >= http.StatusInternalServerError {
			logger.WithError(err).Error("Request failed",
				logging.Field{Key: logging.FieldMethod, Value: c.Request().Method},
				logging.Field{Key: logging.FieldPath, Value: c.Path()})
		}
		if jsonErr := c.JSON(apiErr.Status, apiErr); jsonErr != nil {
			logger.WithError(jsonErr).Warn("Failed to write error response")
		}
	}
}
