// Package events implements the ingest and listing endpoints of the events API.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/event-scraper/event-scraper/internal/db/models"
	"github.com/event-scraper/event-scraper/internal/db/repositories"
	"github.com/event-scraper/event-scraper/internal/telemetry"
	"github.com/event-scraper/event-scraper/pkg/checksum"
)

const errExpectedArray = "Expected an array of events"

// @Summary      Ingest a batch of events
// @Description  Inserts every event in one transaction. Events that collide on (name, startdate) are skipped.
// @Tags         Events
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "success: true, inserted: n"
// @Failure      400  {object}  map[string]interface{}  "Body is not a JSON array of objects, or fails its X-Content-SHA256 check"
// @Failure      413  {object}  map[string]interface{}  "Body too large"
// @Failure      500  {object}  map[string]interface{}  "Insert failed, nothing stored"
// @Router       /events/batch [post]
// BatchHandler handles POST /events/batch
func BatchHandler(db *sqlx.DB, maxBodyBytes int64) gin.HandlerFunc {
	repo := repositories.NewEventRepository(db)

	return func(c *gin.Context) {
		if maxBodyBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			return
		}

		if sum := c.GetHeader(checksum.Header); sum != "" && !checksum.Verify(body, sum) {
			telemetry.IngestFailuresTotal.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Body does not match " + checksum.Header})
			return
		}

		inputs, err := parseBatch(body)
		if err != nil {
			telemetry.IngestFailuresTotal.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		telemetry.EventsReceivedTotal.Add(float64(len(inputs)))

		inserted, err := repo.InsertBatch(c.Request.Context(), inputs)
		if err != nil {
			telemetry.IngestFailuresTotal.Inc()
			slog.Error("batch insert failed", "events", len(inputs), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		telemetry.EventsInsertedTotal.Add(float64(inserted))

		slog.Info("batch ingested", "received", len(inputs), "inserted", inserted)
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"inserted": inserted,
		})
	}
}

// parseBatch decodes a JSON array of event objects, keeping each element's
// original bytes.
func parseBatch(body []byte) ([]models.EventInput, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New(errExpectedArray)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, errors.New(errExpectedArray)
	}

	inputs := make([]models.EventInput, 0, len(elems))
	for i, raw := range elems {
		if b := bytes.TrimSpace(raw); len(b) == 0 || b[0] != '{' {
			return nil, fmt.Errorf("Invalid event at index %d: expected an object", i)
		}
		in, err := models.ParseEventInput(raw)
		if err != nil {
			return nil, fmt.Errorf("Invalid event at index %d: %v", i, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
