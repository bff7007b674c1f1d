// Package cleaning normalises scraped event documents into CleanedEvent
// records and merges them into the cleaned snapshot consumed by the push step.
package cleaning

import (
	"fmt"
	"strings"
)

// CleanedEvent is the flat record the events API ingests.
type CleanedEvent struct {
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
}

// ExtractEventFields maps a generic scraped event object.
func ExtractEventFields(ev map[string]interface{}) CleanedEvent {
	return CleanedEvent{
		Name:             firstString(ev, "name"),
		Tags:             tagList(ev["tags"]),
		Topics:           commaString(ev["topics"]),
		Maplink:          firstString(ev, "mapLink"),
		Location:         firstString(ev, "location"),
		SeriesName:       commaString(ev["seriesName"]),
		EventSeries:      commaString(ev["eventSeries"]),
		StartDate:        firstString(ev, "startdate", "startDate"),
		EndDate:          firstString(ev, "enddate", "endDate"),
		ID:               firstString(ev, "id", "_id"),
		ShortDescription: firstString(ev, "cached_description", "short_description"),
		Description:      firstString(ev, "description"),
		Organiser:        firstString(ev, "organiser", "organizer"),
	}
}

// CleanLumaEvent maps a stored Luma document. The event lives under "event"
// when present; the series name comes from the wrapper.
func CleanLumaEvent(raw map[string]interface{}) CleanedEvent {
	ev := raw
	if inner, ok := object(raw["event"]); ok {
		ev = inner
	}

	return CleanedEvent{
		Name:             firstString(ev, "name"),
		Tags:             tagList(ev["tags"]),
		Topics:           commaString(ev["topics"]),
		Maplink:          lumaMapLink(ev),
		Location:         lumaLocation(ev),
		SeriesName:       commaString(first(raw, "seriesName", "name")),
		EventSeries:      commaString(ev["eventSeries"]),
		StartDate:        firstString(ev, "start_at", "startdate", "startDate"),
		EndDate:          firstString(ev, "end_at", "enddate", "endDate"),
		ID:               firstString(ev, "api_id", "id", "_id"),
		ShortDescription: firstString(ev, "short_description", "cached_description"),
		Description:      firstString(ev, "description"),
		Organiser:        lumaOrganiser(ev),
	}
}

func lumaMapLink(ev map[string]interface{}) string {
	if link, ok := ev["mapLink"].(string); ok && strings.TrimSpace(link) != "" {
		return link
	}
	coord, ok := object(ev["coordinate"])
	if !ok || !truthy(coord["latitude"]) || !truthy(coord["longitude"]) {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s", scalarString(coord["latitude"]), scalarString(coord["longitude"]))
}

func lumaLocation(ev map[string]interface{}) string {
	if loc := firstString(ev, "location"); loc != "" {
		return loc
	}
	if geo, ok := object(ev["geo_address_info"]); ok {
		return firstString(geo, "city_state")
	}
	return ""
}

func lumaOrganiser(ev map[string]interface{}) string {
	if org := firstString(ev, "organiser", "organizer"); org != "" {
		return org
	}
	hosts, ok := ev["hosts"].([]interface{})
	if !ok {
		return ""
	}
	names := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if hm, ok := object(h); ok {
			names = append(names, scalarString(hm["name"]))
		} else {
			names = append(names, "")
		}
	}
	return strings.Join(names, ", ")
}
