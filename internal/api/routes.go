// Package api exposes the import session manager over HTTP.
package api

import (
	"fmt"
	"time"

	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/session"
	"fjacquet/statement-import/internal/summary"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds the collaborators used by the HTTP handlers.
type Dependencies struct {
	Manager    *session.Manager
	Calculator *summary.Calculator
	Logger     logging.Logger
	Version    string
}

// Handlers contains the HTTP handler methods.
type Handlers struct {
	manager    *session.Manager
	calculator *summary.Calculator
	logger     logging.Logger
	version    string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Dependencies) *Handlers {
	calc := deps.Calculator
	if calc == nil {
		calc = summary.NewCalculator(models.DefaultThresholds())
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Handlers{
		manager:    deps.Manager,
		calculator: calc,
		logger:     logging.OrDefault(deps.Logger).WithField(logging.FieldComponent, "api"),
		version:    version,
	}
}

// RegisterRoutes sets up all API routes on the Echo instance.
func RegisterRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/health", h.HandleHealth)

	imports := e.Group("/api/imports")
	imports.POST("", h.HandleUpload)
	imports.GET("/:id", h.HandleGetSession)
	imports.GET("/:id/review", h.HandleReview)
	imports.GET("/:id/records/msgpack", h.HandleRecordsMsgpack)
	imports.POST("/:id/confirm", h.HandleConfirm)
	imports.POST("/:id/cancel", h.HandleCancel)
}

// SetupMiddleware installs panic recovery, request logging and a body limit sized
// from the largest accepted upload.
func SetupMiddleware(e *echo.Echo, logger logging.Logger, maxUploadBytes int64) {
	logger = logging.OrDefault(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("Request handled",
				logging.Field{Key: logging.FieldMethod, Value: v.Method},
				logging.Field{Key: logging.FieldPath, Value: v.URIPath},
				logging.Field{Key: logging.FieldStatus, Value: v.Status},
				logging.Field{Key: logging.FieldDuration, Value: v.Latency.Milliseconds()})
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(BodyLimitFor(maxUploadBytes)))
}

// BodyLimitFor returns the hard request body cap for a file size limit. Files
// between the two limits reach upload validation and fail on fileSize; bodies over
// the cap are refused before parsing and rendered as the same fileSize failure.
func BodyLimitFor(maxUploadBytes int64) string {
	return fmt.Sprintf("%dK", 2*maxUploadBytes/1024+64)
}

// NewServer builds a configured Echo instance serving the import API.
func NewServer(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 10 * time.Second

	SetupMiddleware(e, deps.Logger, deps.Manager.Options().Upload.MaxFileSizeBytes)
	e.HTTPErrorHandler = ErrorHandler(deps.Logger)
	RegisterRoutes(e, NewHandlers(deps))
	return e
}
