package events

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/event-scraper/event-scraper/internal/db/models"
	"github.com/event-scraper/event-scraper/internal/db/repositories"
)

var pageTemplate = template.Must(template.New("events").Funcs(template.FuncMap{
	"join": func(tags []string) string { return strings.Join(tags, ", ") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Events</title>
<style>
table { border-collapse: collapse; font-family: sans-serif; font-size: 13px; }
th, td { border: 1px solid #ccc; padding: 4px 8px; vertical-align: top; }
th { background: #f2f2f2; }
</style>
</head>
<body>
<h1>Events</h1>
<table>
<tr><th>ID</th><th>Name</th><th>Tags</th><th>Topics</th><th>Maplink</th><th>Location</th><th>Series Name</th><th>Event Series</th><th>Start Date</th><th>End Date</th><th>Event ID</th><th>Short Description</th><th>Description</th><th>Organiser</th><th>Status</th></tr>
{{- range .}}
<tr><td>{{.ID}}</td><td>{{.Name}}</td><td>{{join .Tags}}</td><td>{{.Topics}}</td><td>{{.Maplink}}</td><td>{{.Location}}</td><td>{{.SeriesName}}</td><td>{{.EventSeries}}</td><td>{{.StartDate}}</td><td>{{.EndDate}}</td><td>{{.EventID}}</td><td>{{.ShortDescription}}</td><td>{{.Description}}</td><td>{{.Organiser}}</td><td>{{.Status}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

// renderPage renders events as the HTML table.
func renderPage(events []models.Event) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, events); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// @Summary      Events table
// @Description  HTML table of all stored events, newest start date first.
// @Tags         Events
// @Produce      html
// @Success      200  {string}  string  "HTML page"
// @Failure      500  {string}  string  "Error fetching events"
// @Router       /events [get]
// PageHandler handles GET /events
func PageHandler(db *sqlx.DB) gin.HandlerFunc {
	repo := repositories.NewEventRepository(db)

	return func(c *gin.Context) {
		events, err := repo.List(c.Request.Context())
		if err != nil {
			slog.Error("failed to list events", "error", err)
			c.String(http.StatusInternalServerError, "Error fetching events: "+err.Error())
			return
		}

		page, err := renderPage(events)
		if err != nil {
			c.String(http.StatusInternalServerError, "Error fetching events: "+err.Error())
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	}
}

// @Summary      List events
// @Description  Stored events as JSON, newest start date first. status filters by review status.
// @Tags         Events
// @Produce      json
// @Param        status  query  string  false  "Filter by status (pending, approved, ...)"
// @Success      200  {array}   models.Event
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/events [get]
// ListHandler handles GET /api/events
func ListHandler(db *sqlx.DB) gin.HandlerFunc {
	repo := repositories.NewEventRepository(db)

	return func(c *gin.Context) {
		var (
			events []models.Event
			err    error
		)
		if status := c.Query("status"); status != "" {
			events, err = repo.ListByStatus(c.Request.Context(), status)
		} else {
			events, err = repo.List(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
			return
		}
		c.JSON(http.StatusOK, events)
	}
}
