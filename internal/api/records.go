package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/adamidy7424/GeneNFT-Z/internal/analysis"
	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
	"github.com/adamidy7424/GeneNFT-Z/internal/records"
	"github.com/adamidy7424/GeneNFT-Z/internal/workflow"
)

// ValueResponse is the wire form of a RecordValue. Value is omitted while
// the record is still encrypted.
type ValueResponse struct {
	Provenance genetic.Provenance `json:"provenance"`
	Value      *int64             `json:"value,omitempty"`
}

func valueResponse(v genetic.RecordValue) ValueResponse {
	resp := ValueResponse{Provenance: v.Provenance()}
	if plain, ok := v.Value(); ok {
		resp.Value = &plain
	}
	return resp
}

// RecordResponse is a record with its best known value
type RecordResponse struct {
	genetic.Record
	Value ValueResponse `json:"value"`
}

// AnalysisResponse is the score card for one record
type AnalysisResponse struct {
	Key      string            `json:"key"`
	Analysis analysis.Analysis `json:"analysis"`
}

// CreateResponse carries a create result. Warning is set when the
// transaction was submitted but finality is unconfirmed.
type CreateResponse struct {
	*workflow.CreateResult
	Warning string `json:"warning,omitempty"`
}

// VerifyResponse carries a verify result with its value
type VerifyResponse struct {
	*workflow.VerifyResult
	Value   ValueResponse `json:"value"`
	Warning string        `json:"warning,omitempty"`
}

func (c *Controller) best(r genetic.Record) genetic.RecordValue {
	if c.Estimates == nil {
		return genetic.Best(r, genetic.UnknownValue())
	}
	return c.Estimates.Best(r)
}

func (c *Controller) recordResponse(r genetic.Record) RecordResponse {
	return RecordResponse{Record: r, Value: valueResponse(c.best(r))}
}

// loadedSet returns the published set, refreshing first when nothing has
// been loaded yet
func (c *Controller) loadedSet(ctx echo.Context) (*records.Set, error) {
	set := c.Records.Current()
	if !set.LoadedAt().IsZero() {
		return set, nil
	}
	return c.Records.Refresh(ctx.Request().Context())
}

// lookup finds key in the published set, falling back to the ledger
func (c *Controller) lookup(ctx echo.Context, key string) (genetic.Record, error) {
	if r, ok := c.Records.Current().Get(key); ok {
		return r, nil
	}
	return c.Records.Fetch(ctx.Request().Context(), key)
}

// ListRecords handles GET /records?search=&verified=
func (c *Controller) ListRecords(ctx echo.Context) error {
	verifiedOnly := false
	if raw := ctx.QueryParam("verified"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid verified parameter", http.StatusBadRequest)
		}
		verifiedOnly = v
	}

	set, err := c.loadedSet(ctx)
	if err != nil {
		return c.handleWorkflowError(ctx, err, "Failed to load records")
	}

	filtered := set.Filter(ctx.QueryParam("search"), verifiedOnly)
	out := make([]RecordResponse, 0, len(filtered))
	for _, r := range filtered {
		out = append(out, c.recordResponse(r))
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetRecord handles GET /records/:key
func (c *Controller) GetRecord(ctx echo.Context) error {
	r, err := c.lookup(ctx, ctx.Param("key"))
	if err != nil {
		return c.handleWorkflowError(ctx, err, "Failed to get record")
	}
	return ctx.JSON(http.StatusOK, c.recordResponse(r))
}

// AnalyzeRecord handles GET /records/:key/analysis
func (c *Controller) AnalyzeRecord(ctx echo.Context) error {
	key := ctx.Param("key")
	r, err := c.lookup(ctx, key)
	if err != nil {
		return c.handleWorkflowError(ctx, err, "Failed to get record")
	}
	return ctx.JSON(http.StatusOK, AnalysisResponse{
		Key:      key,
		Analysis: analysis.Analyze(r, c.best(r), c.now()),
	})
}

// CreateRecord handles POST /records
func (c *Controller) CreateRecord(ctx echo.Context) error {
	var req workflow.CreateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	sc, err := c.readySession(ctx.Request().Context())
	if err != nil {
		return c.handleWorkflowError(ctx, err, "Session not ready")
	}

	result, err := c.Creator.Create(ctx.Request().Context(), sc, req)
	switch {
	case err == nil:
		return ctx.JSON(http.StatusCreated, CreateResponse{CreateResult: result})
	case result != nil && errors.IsCategory(err, errors.CategoryFinality):
		return ctx.JSON(http.StatusAccepted, CreateResponse{CreateResult: result, Warning: err.Error()})
	default:
		return c.handleWorkflowError(ctx, err, "Failed to create record")
	}
}

// VerifyRecord handles POST /records/:key/verify
func (c *Controller) VerifyRecord(ctx echo.Context) error {
	sc, err := c.readySession(ctx.Request().Context())
	if err != nil {
		return c.handleWorkflowError(ctx, err, "Session not ready")
	}

	result, err := c.Verifier.Verify(ctx.Request().Context(), sc, ctx.Param("key"))
	switch {
	case err == nil:
		return ctx.JSON(http.StatusOK, VerifyResponse{VerifyResult: result, Value: valueResponse(result.Value)})
	case result != nil && errors.IsCategory(err, errors.CategoryFinality):
		return ctx.JSON(http.StatusAccepted, VerifyResponse{
			VerifyResult: result,
			Value:        valueResponse(result.Value),
			Warning:      err.Error(),
		})
	default:
		return c.handleWorkflowError(ctx, err, "Failed to verify record")
	}
}

// InvalidateEstimate handles DELETE /records/:key/estimate
func (c *Controller) InvalidateEstimate(ctx echo.Context) error {
	if c.Estimates != nil {
		c.Estimates.Invalidate(ctx.Param("key"))
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Refresh handles POST /refresh
func (c *Controller) Refresh(ctx echo.Context) error {
	set, err := c.Records.Refresh(ctx.Request().Context())
	if err != nil {
		return c.handleWorkflowError(ctx, err, "Failed to refresh records")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"records":   set.Len(),
		"loaded_at": formatTime(set.LoadedAt()),
	})
}

// Dashboard handles GET /dashboard
func (c *Controller) Dashboard(ctx echo.Context) error {
	set, err := c.loadedSet(ctx)
	if err != nil {
		return c.handleWorkflowError(ctx, err, "Failed to load records")
	}
	return ctx.JSON(http.StatusOK, analysis.Summarize(set.Records(), c.now()))
}
