// Package v1 contains the public HTTP handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/service"
)

// Handler holds the v1 route handlers.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new v1 handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes registers the v1 routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	e.POST("/v1/runs", h.CreateRun)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/items", h.ListItems)
	e.POST("/v1/runs/:run_id/cancel", h.CancelRun)
	e.GET("/v1/runs/:run_id/progress", h.StreamProgress)

	e.POST("/v1/runs/:run_id/package", h.PackageRun)
	e.POST("/v1/packages/:package_id/refresh", h.RefreshPackage)
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
