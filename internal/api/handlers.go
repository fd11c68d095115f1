package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"fjacquet/statement-import/internal/importerror"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/validation"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// HandleHealth returns the server health status.
func (h *Handlers) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"sessions": h.manager.Len(),
	})
}

// HandleUpload accepts a statement file, validates it and extracts its records.
// The session is returned even when extraction produced no valid records.
func (h *Handlers) HandleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return NewBadRequestError("no file provided", err)
	}

	meta := models.FileMeta{
		Name:      fh.Filename,
		SizeBytes: fh.Size,
		MIMEType:  fh.Header.Get(echo.HeaderContentType),
	}
	if meta.MIMEType == "" {
		meta.MIMEType = validation.MIMETypeFor(fh.Filename)
	}

	// Oversized files are not read; validation rejects them on the declared size.
	var content []byte
	if fh.Size <= h.manager.Options().Upload.MaxFileSizeBytes {
		src, err := fh.Open()
		if err != nil {
			return NewInternalError("failed to open uploaded file", err)
		}
		defer func() {
			if cerr := src.Close(); cerr != nil {
				h.logger.WithError(cerr).Warn("Failed to close uploaded file")
			}
		}()
		content, err = io.ReadAll(src)
		if err != nil {
			return NewInternalError("failed to read uploaded file", err)
		}
	}

	s := h.manager.Create(meta, content)
	if _, err := h.manager.ValidateFile(s.ID); err != nil {
		return withSession(err, s.ID)
	}
	extracted, err := h.manager.Extract(c.Request().Context(), s.ID)
	if err != nil {
		return withSession(err, s.ID)
	}

	h.logger.Info("Statement uploaded",
		logging.Field{Key: logging.FieldSessionID, Value: s.ID.String()},
		logging.Field{Key: logging.FieldFileName, Value: meta.Name},
		logging.Field{Key: logging.FieldCount, Value: len(extracted.Drafts)})
	return c.JSON(http.StatusCreated, h.view(extracted))
}

// HandleGetSession returns the current state of a session.
func (h *Handlers) HandleGetSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	s, err := h.manager.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.view(s))
}

// HandleReview returns the drafts with their ids and classification.
func (h *Handlers) HandleReview(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	review, err := h.manager.Review(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReviewView{
		Session:     h.view(review.Session),
		Summary:     review.Summary,
		Items:       review.Items,
		Preselected: review.Preselected,
	})
}

// HandleRecordsMsgpack returns the drafts encoded as MessagePack.
func (h *Handlers) HandleRecordsMsgpack(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	review, err := h.manager.Review(id)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"sessionId": review.Session.ID.String(),
		"records":   newMsgpackRecords(review.Items),
	})
	if err != nil {
		return NewInternalError("failed to encode records", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleConfirm confirms the selected drafts and commits them to the ledger.
// Replaying the same request after a success or a ledger failure is safe.
func (h *Handlers) HandleConfirm(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	recordIDs, accountID, err := parseConfirmRequest(req)
	if err != nil {
		return err
	}

	// Confirming requires a reviewed session; reviewing is idempotent.
	if _, err := h.manager.Review(id); err != nil {
		return err
	}
	if _, err := h.manager.ConfirmByIDs(id, recordIDs, accountID); err != nil {
		return err
	}
	result, err := h.manager.Commit(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ConfirmResponse{
		SessionID: id.String(),
		Status:    models.StatusCommitted.String(),
		Summary:   result,
	})
}

// HandleCancel abandons a session.
func (h *Handlers) HandleCancel(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	s, err := h.manager.Cancel(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.view(s))
}

func (h *Handlers) view(s *models.ImportSession) SessionView {
	if !s.Status.AtLeast(models.StatusExtracted) {
		return newSessionView(s, nil)
	}
	var selected []int
	if s.Status.AtLeast(models.StatusConfirmed) {
		selected = s.Selected
	}
	sum := h.calculator.Summarize(s.Records(), selected)
	return newSessionView(s, &sum)
}

func sessionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, NewBadRequestError("invalid session id", err)
	}
	return id, nil
}

func parseConfirmRequest(req ConfirmRequest) ([]uuid.UUID, *uuid.UUID, error) {
	verr := &importerror.ValidationError{Subject: "selection"}

	ids := make([]uuid.UUID, 0, len(req.SelectedTransactionIDs))
	for _, raw := range req.SelectedTransactionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			verr.Add("selectedTransactionIds", fmt.Sprintf("Invalid transaction id %q", raw))
			continue
		}
		ids = append(ids, id)
	}

	var accountID *uuid.UUID
	if req.AccountID != "" {
		acc, err := uuid.Parse(req.AccountID)
		if err != nil {
			verr.Add("accountId", "Account id must be a UUID")
		} else {
			accountID = &acc
		}
	}

	if verr.HasErrors() {
		return nil, nil, verr
	}
	return ids, accountID, nil
}

// withSession attaches the session id to the rendered error.
func withSession(err error, id uuid.UUID) error {
	apiErr := FromError(err)
	if apiErr.SessionID == "" {
		apiErr.SessionID = id.String()
	}
	return apiErr
}
