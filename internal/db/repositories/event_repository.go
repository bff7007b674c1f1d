// event_repository.go implements EventRepository, the batch ingest and listing
// queries behind the events API.
package repositories

import (
	"context"
	"fmt"

	"github.com/event-scraper/event-scraper/internal/db/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const insertEventQuery = `
	INSERT INTO events (
		name, tags, topics, maplink, location, seriesname, eventseries, startdate, enddate,
		event_id, short_description, description, organiser, status, raw_json
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (name, startdate) DO NOTHING
`

const selectEventColumns = `
	SELECT id, name, tags, topics, maplink, location, seriesname, eventseries, startdate, enddate,
	       event_id, short_description, description, organiser, status, created_at
	FROM events
`

// EventRepository handles database operations for scraped events
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertBatch inserts every event in a single transaction. Rows that collide
// on (name, startdate) are skipped. Any error rolls the whole batch back.
// It returns the number of rows actually inserted.
func (r *EventRepository) InsertBatch(ctx context.Context, events []models.EventInput) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	var inserted int64
	for i := range events {
		ev := events[i]
		ev.Normalize()

		var raw interface{}
		if len(ev.Raw) > 0 {
			raw = string(ev.Raw)
		}

		res, err := tx.ExecContext(ctx, insertEventQuery,
			ev.Name,
			pq.Array(ev.Tags),
			ev.Topics,
			ev.Maplink,
			ev.Location,
			ev.SeriesName,
			ev.EventSeries,
			ev.StartDate,
			ev.EndDate,
			ev.ID,
			ev.ShortDescription,
			ev.Description,
			ev.Organiser,
			ev.Status,
			raw,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event %q: %w", ev.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events: %w", err)
	}

	return inserted, nil
}

// List returns every event, newest start date first
func (r *EventRepository) List(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, selectEventColumns+" ORDER BY startdate DESC"); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// ListByStatus returns events with the given status, newest start date first
func (r *EventRepository) ListByStatus(ctx context.Context, status string) ([]models.Event, error) {
	var events []models.Event
	query := selectEventColumns + " WHERE status = $1 ORDER BY startdate DESC"
	if err := r.db.SelectContext(ctx, &events, query, status); err != nil {
		return nil, fmt.Errorf("failed to list events by status: %w", err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Count returns the number of stored events
func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM events`); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// CountByStatus returns the number of stored events with the given status
func (r *EventRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM events WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("failed to count events by status: %w", err)
	}
	return n, nil
}
