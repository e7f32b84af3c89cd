package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/service"
)

// PackageRun builds (or returns) the delivery package for a finished run.
// POST /v1/runs/:run_id/package
func (h *Handler) PackageRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	pkg, err := h.service.PackageRun(ctx, runID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRunNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrRunNotFinished):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, pkg)
}

// RefreshPackage regenerates the signed URL of an existing package.
// POST /v1/packages/:package_id/refresh
func (h *Handler) RefreshPackage(c echo.Context) error {
	ctx := c.Request().Context()
	packageID := c.Param("package_id")

	pkg, err := h.service.RefreshPackageLink(ctx, packageID)
	if err != nil {
		if errors.Is(err, service.ErrPackageNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, pkg)
}
