// Package models - event.go defines the persisted event row and the ingest
// payload accepted by the batch endpoint.
package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// DefaultEventStatus is applied when an ingested event carries no status.
const DefaultEventStatus = "pending"

// Event is a row of the events table.
type Event struct {
	ID               int64          `json:"id" db:"id"`
	Name             string         `json:"name" db:"name"`
	Tags             pq.StringArray `json:"tags" db:"tags"`
	Topics           string         `json:"topics" db:"topics"`
	Maplink          string         `json:"maplink" db:"maplink"`
	Location         string         `json:"location" db:"location"`
	SeriesName       string         `json:"seriesName" db:"seriesname"`
	EventSeries      string         `json:"eventSeries" db:"eventseries"`
	StartDate        string         `json:"startdate" db:"startdate"`
	EndDate          string         `json:"enddate" db:"enddate"`
	EventID          string         `json:"event_id" db:"event_id"`
	ShortDescription string         `json:"short_description" db:"short_description"`
	Description      string         `json:"description" db:"description"`
	Organiser        string         `json:"organiser" db:"organiser"`
	Status           string         `json:"status" db:"status"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// EventInput is one element of a POST /events/batch body. Raw holds the
// element exactly as received and is stored in raw_json.
type EventInput struct {
	Name             string   `json:"name"`
	Tags             []string `json:"tags"`
	Topics           string   `json:"topics"`
	Maplink          string   `json:"maplink"`
	Location         string   `json:"location"`
	SeriesName       string   `json:"seriesName"`
	EventSeries      string   `json:"eventSeries"`
	StartDate        string   `json:"startdate"`
	EndDate          string   `json:"enddate"`
	ID               string   `json:"id"`
	ShortDescription string   `json:"short_description"`
	Description      string   `json:"description"`
	Organiser        string   `json:"organiser"`
	Status           string   `json:"status"`

	Raw json.RawMessage `json:"-"`
}

// ParseEventInput decodes a single batch element and keeps its raw bytes.
func ParseEventInput(raw json.RawMessage) (EventInput, error) {
	var in EventInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return EventInput{}, err
	}
	in.Raw = raw
	return in, nil
}

// Normalize fills defaults for missing optional fields.
func (in *EventInput) Normalize() {
	if in.Tags == nil {
		in.Tags = []string{}
	}
	if in.Status == "" {
		in.Status = DefaultEventStatus
	}
}
