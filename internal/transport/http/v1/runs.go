package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
)

// CreateRunRequest is the request to start a generation run.
type CreateRunRequest struct {
	OwnerID string `json:"owner_id"`
	Tier    string `json:"tier"`
	Subject string `json:"subject"`
}

// CreateRun starts a new run.
// POST /v1/runs
func (h *Handler) CreateRun(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Tier == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "tier is required"})
	}
	if req.Subject == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "subject is required"})
	}

	run, err := h.service.StartRun(ctx, req.OwnerID, domain.Tier(req.Tier), req.Subject)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, run)
}

// GetRun returns a run with its counters.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, run)
}

// ListItems returns a run's item executions in execution order.
// GET /v1/runs/:run_id/items
func (h *Handler) ListItems(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	items, err := h.service.ListItemExecutions(ctx, runID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"run_id": runID,
		"items":  items,
	})
}

// CancelRun cancels a running execution. Idempotent for terminal runs.
// POST /v1/runs/:run_id/cancel
func (h *Handler) CancelRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	if run.Status.Terminal() {
		return c.JSON(http.StatusOK, map[string]any{
			"run_id":  runID,
			"status":  run.Status,
			"message": "run already in terminal state",
		})
	}

	if err := h.service.CancelRun(ctx, runID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"run_id":  runID,
		"status":  domain.RunStatusCancelled,
		"message": "run cancellation requested",
	})
}
