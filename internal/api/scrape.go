package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/event-scraper/event-scraper/internal/jobs"
)

// @Summary      Run the pipeline
// @Description  Collects, cleans and pushes events once and waits for completion.
// @Tags         Pipeline
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: success"
// @Failure      409  {object}  map[string]interface{}  "A run is already in progress"
// @Failure      500  {object}  map[string]interface{}  "status: error"
// @Router       /api/scrape [post]
func scrapeHandler(job *jobs.PipelineJob) gin.HandlerFunc {
	return func(c *gin.Context) {
		// A paced collect outlasts server.write_timeout; lift the deadline
		// for this response only.
		if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			slog.Warn("failed to clear write deadline", "error", err)
		}

		// The run outlives a disconnected caller.
		ctx := context.WithoutCancel(c.Request.Context())

		err := job.TriggerRun(ctx)
		switch {
		case errors.Is(err, jobs.ErrRunInProgress):
			c.JSON(http.StatusConflict, gin.H{"status": "error", "error": err.Error()})
		case err != nil:
			slog.Error("pipeline run failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		default:
			c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Pipeline complete!"})
		}
	}
}

// @Summary      Pipeline status
// @Tags         Pipeline
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "running, last_run, last_error"
// @Router       /api/scrape [get]
func scrapeStatusHandler(job *jobs.PipelineJob) gin.HandlerFunc {
	return func(c *gin.Context) {
		running, lastRun, lastErr := job.Status()

		body := gin.H{"running": running, "last_run": nil, "last_error": nil}
		if !lastRun.IsZero() {
			body["last_run"] = lastRun.UTC().Format(time.RFC3339)
		}
		if lastErr != nil {
			body["last_error"] = lastErr.Error()
		}
		c.JSON(http.StatusOK, body)
	}
}
