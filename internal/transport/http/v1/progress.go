package v1

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// StreamProgress streams a run's progress events as newline-delimited JSON.
// GET /v1/runs/:run_id/progress
//
// The handler re-derives progress from persisted state on a fixed poll
// interval, one loop per connected observer, and closes the stream once the
// run reaches a terminal state or the observer disconnects. Disconnecting
// never stops the underlying run.
func (h *Handler) StreamProgress(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		log.Printf("ERROR: failed to get run: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get run"})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	enc := json.NewEncoder(c.Response())
	flush := func() {
		if flusher, ok := c.Response().Writer.(http.Flusher); ok {
			flusher.Flush()
		}
	}

	lastTs := int64(0)
	drain := func() error {
		for {
			events, err := h.service.ListProgressEvents(ctx, runID, lastTs, 100)
			if err != nil {
				log.Printf("ERROR: failed to get progress events: %v", err)
				return nil
			}
			if len(events) == 0 {
				return nil
			}
			for _, event := range events {
				if err := enc.Encode(event); err != nil {
					return err
				}
				lastTs = event.Ts
			}
			flush()
		}
	}

	ticker := time.NewTicker(h.service.ProgressPollInterval())
	defer ticker.Stop()

	for {
		if err := drain(); err != nil {
			return nil // observer went away
		}

		current, err := h.service.GetRun(ctx, runID)
		if err != nil {
			log.Printf("ERROR: failed to get run status: %v", err)
		} else if current != nil && current.Status.Terminal() {
			// Flush anything recorded between the drain and the status
			// check, then close.
			if err := drain(); err != nil {
				return nil
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
