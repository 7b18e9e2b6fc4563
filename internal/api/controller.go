package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
	"github.com/adamidy7424/GeneNFT-Z/internal/records"
	"github.com/adamidy7424/GeneNFT-Z/internal/session"
	"github.com/adamidy7424/GeneNFT-Z/internal/workflow"
)

// Session is the part of the session coordinator the handlers need
type Session interface {
	Initialize(ctx context.Context) error
	Context() session.Context
}

// Controller holds the handler dependencies
type Controller struct {
	Records   *records.Normalizer
	Estimates *records.EstimateCache
	Creator   *workflow.Creator
	Verifier  *workflow.Verifier
	Session   Session

	logger    logger.Logger
	now       func() time.Time
	startTime time.Time
}

// NewController creates a controller. estimates may be nil.
func NewController(n *records.Normalizer, estimates *records.EstimateCache, c *workflow.Creator, v *workflow.Verifier, s Session, log logger.Logger) *Controller {
	if log == nil {
		log = GetLogger()
	}
	return &Controller{
		Records:   n,
		Estimates: estimates,
		Creator:   c,
		Verifier:  v,
		Session:   s,
		logger:    log,
		now:       time.Now,
		startTime: time.Now(),
	}
}

// RegisterRoutes mounts the v1 API on g
func (c *Controller) RegisterRoutes(g *echo.Group) {
	g.GET("/health", c.HealthCheck)
	g.GET("/dashboard", c.Dashboard)
	g.POST("/refresh", c.Refresh)

	g.GET("/records", c.ListRecords)
	g.POST("/records", c.CreateRecord)
	g.GET("/records/:key", c.GetRecord)
	g.GET("/records/:key/analysis", c.AnalyzeRecord)
	g.POST("/records/:key/verify", c.VerifyRecord)
	g.DELETE("/records/:key/estimate", c.InvalidateEstimate)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error response with a fresh correlation id
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// StatusCode maps an error's category to the HTTP status it is reported with
func StatusCode(err error) int {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryUserRejected:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryNotReady:
		return http.StatusServiceUnavailable
	case errors.CategoryService, errors.CategoryLedger, errors.CategoryNetwork:
		return http.StatusBadGateway
	case errors.CategoryFinality:
		return http.StatusAccepted
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HandleError logs err under a correlation id and writes the error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	c.logger.Error("API error",
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.String("error", resp.Error),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()))

	return ctx.JSON(code, resp)
}

// handleWorkflowError reports err with the status its category maps to
func (c *Controller) handleWorkflowError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, StatusCode(err))
}

// HealthCheck reports session readiness and the loaded record count
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := c.now().Sub(c.startTime)
	sc := c.Session.Context()

	status := "healthy"
	if !sc.Ready() {
		status = "degraded"
	}

	set := c.Records.Current()
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         status,
		"session":        sc,
		"records":        set.Len(),
		"loaded_at":      formatTime(set.LoadedAt()),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      c.now().Format(time.RFC3339),
	})
}

// readySession initializes the session on first use and returns a snapshot
func (c *Controller) readySession(ctx context.Context) (session.Context, error) {
	if err := c.Session.Initialize(ctx); err != nil {
		return session.Context{}, err
	}
	return c.Session.Context(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
