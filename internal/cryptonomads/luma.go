package cryptonomads

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	validLumaID = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	lumaLink    = regexp.MustCompile(`lu\.ma/(\w+)`)
)

// IsValidLumaID reports whether id is a plain alphanumeric Luma event id.
func IsValidLumaID(id string) bool {
	return validLumaID.MatchString(id)
}

// LumaIDFromURL extracts the event id from a lu.ma link, or "".
func LumaIDFromURL(href string) string {
	m := lumaLink.FindStringSubmatch(href)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// EventDetails is the summary extracted from a get_event response.
type EventDetails struct {
	Name             string          `json:"name"`
	Description      json.RawMessage `json:"description,omitempty"`
	Host             string          `json:"host"`
	Agenda           json.RawMessage `json:"agenda"`
	DateTime         string          `json:"datetime"`
	Location         string          `json:"location"`
	RegistrationLink *string         `json:"registration_link"`
	Speakers         json.RawMessage `json:"speakers"`
	Tags             []string        `json:"tags"`
}

type named struct {
	Name string `json:"name"`
}

type lumaPayload struct {
	Event             map[string]json.RawMessage `json:"event"`
	Hosts             []named                    `json:"hosts"`
	DescriptionMirror json.RawMessage            `json:"description_mirror"`
}

type getEventResponse struct {
	Data struct {
		Data *lumaPayload `json:"data"`
	} `json:"data"`
}

func parseGetEvent(raw json.RawMessage) (*lumaPayload, bool) {
	var resp getEventResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	if resp.Data.Data == nil || len(resp.Data.Data.Event) == 0 {
		return nil, false
	}
	return resp.Data.Data, true
}

// ExtractEventDetails summarises a get_event response. It returns false when
// the response carries no event.
func ExtractEventDetails(raw json.RawMessage) (*EventDetails, bool) {
	payload, ok := parseGetEvent(raw)
	if !ok {
		return nil, false
	}
	ev := payload.Event

	hostNames := make([]string, 0, len(payload.Hosts))
	for _, h := range payload.Hosts {
		hostNames = append(hostNames, h.Name)
	}

	details := &EventDetails{
		Name:        stringField(ev, "name"),
		Description: nullIfEmpty(payload.DescriptionMirror),
		Host:        strings.Join(hostNames, ", "),
		Agenda:      orNull(ev["agenda"]),
		DateTime:    firstString(ev, "start_at", "date"),
		Location:    location(ev),
		Speakers:    orNull(ev["speakers"]),
	}

	if url := stringField(ev, "url"); url != "" {
		link := "https://lu.ma/" + url
		details.RegistrationLink = &link
	}

	var categories []named
	if raw, ok := ev["categories"]; ok && json.Unmarshal(raw, &categories) == nil && categories != nil {
		details.Tags = make([]string, 0, len(categories))
		for _, c := range categories {
			details.Tags = append(details.Tags, c.Name)
		}
	}

	return details, true
}

// LumaDocument rewraps a get_event response into the document stored under
// data/luma_<id>.json: {"event": {...}, "seriesName": series}. Hosts from the
// response are copied onto the event when it has none of its own.
func LumaDocument(raw json.RawMessage, seriesName string) (json.RawMessage, bool) {
	payload, ok := parseGetEvent(raw)
	if !ok {
		return nil, false
	}

	event := payload.Event
	if _, has := event["hosts"]; !has && len(payload.Hosts) > 0 {
		if hosts, err := json.Marshal(payload.Hosts); err == nil {
			event["hosts"] = hosts
		}
	}

	doc := map[string]interface{}{"event": event}
	if seriesName != "" {
		doc["seriesName"] = seriesName
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, false
	}
	return out, true
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}

func location(ev map[string]json.RawMessage) string {
	var geo struct {
		FullAddress string `json:"full_address"`
	}
	if raw, ok := ev["geo_address_info"]; ok && json.Unmarshal(raw, &geo) == nil && geo.FullAddress != "" {
		return geo.FullAddress
	}
	return stringField(ev, "location")
}

var jsonNull = json.RawMessage("null")

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return jsonNull
	}
	return raw
}

func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
