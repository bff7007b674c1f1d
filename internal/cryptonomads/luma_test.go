package cryptonomads

import (
	"encoding/json"
	"reflect"
	"testing"
)

const sampleGetEvent = `{
  "data": {
    "data": {
      "event": {
        "api_id": "evt-abc",
        "name": "Interop Summit",
        "start_at": "2025-06-12T09:00:00.000Z",
        "url": "interop",
        "geo_address_info": {"full_address": "Alexanderplatz 1, Berlin"},
        "categories": [{"name": "DeFi"}, {"name": "ZK"}]
      },
      "hosts": [{"name": "Alice"}, {"name": "Bob"}],
      "description_mirror": {"type": "doc"}
    }
  }
}`

// ---------------------------------------------------------------------------
// IsValidLumaID / LumaIDFromURL
// ---------------------------------------------------------------------------

func TestIsValidLumaID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"n6e7l7hn", true},
		{"ABC123", true},
		{"", false},
		{"abc-def", false},
		{"abc_def", false},
		{"../etc", false},
	}
	for _, tt := range tests {
		if got := IsValidLumaID(tt.id); got != tt.want {
			t.Errorf("IsValidLumaID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestLumaIDFromURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://lu.ma/n6e7l7hn", "n6e7l7hn"},
		{"https://lu.ma/abc?tk=1", "abc"},
		{"https://example.com/abc", ""},
	}
	for _, tt := range tests {
		if got := LumaIDFromURL(tt.in); got != tt.want {
			t.Errorf("LumaIDFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// ExtractEventDetails
// ---------------------------------------------------------------------------

func TestExtractEventDetails(t *testing.T) {
	d, ok := ExtractEventDetails(json.RawMessage(sampleGetEvent))
	if !ok {
		t.Fatal("ExtractEventDetails() ok = false")
	}

	if d.Name != "Interop Summit" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.Host != "Alice, Bob" {
		t.Errorf("Host = %q, want hosts joined", d.Host)
	}
	if d.DateTime != "2025-06-12T09:00:00.000Z" {
		t.Errorf("DateTime = %q", d.DateTime)
	}
	if d.Location != "Alexanderplatz 1, Berlin" {
		t.Errorf("Location = %q", d.Location)
	}
	if d.RegistrationLink == nil || *d.RegistrationLink != "https://lu.ma/interop" {
		t.Errorf("RegistrationLink = %v", d.RegistrationLink)
	}
	if !reflect.DeepEqual(d.Tags, []string{"DeFi", "ZK"}) {
		t.Errorf("Tags = %v", d.Tags)
	}
	if !jsonEqual(t, `{"type":"doc"}`, string(d.Description)) {
		t.Errorf("Description = %s", d.Description)
	}
	if string(d.Agenda) != "null" || string(d.Speakers) != "null" {
		t.Errorf("Agenda = %s, Speakers = %s, want null", d.Agenda, d.Speakers)
	}
}

func TestExtractEventDetails_Fallbacks(t *testing.T) {
	raw := `{"data":{"data":{"event":{"name":"x","date":"2025-01-01","location":"Online"}}}}`
	d, ok := ExtractEventDetails(json.RawMessage(raw))
	if !ok {
		t.Fatal("ExtractEventDetails() ok = false")
	}

	if d.DateTime != "2025-01-01" {
		t.Errorf("DateTime = %q, want date fallback", d.DateTime)
	}
	if d.Location != "Online" {
		t.Errorf("Location = %q, want location fallback", d.Location)
	}
	if d.RegistrationLink != nil {
		t.Errorf("RegistrationLink = %v, want nil", *d.RegistrationLink)
	}
	if d.Tags != nil {
		t.Errorf("Tags = %v, want nil", d.Tags)
	}
	if d.Host != "" {
		t.Errorf("Host = %q, want empty", d.Host)
	}
}

func TestExtractEventDetails_NoEvent(t *testing.T) {
	for _, raw := range []string{`{}`, `{"data":{"data":{}}}`, `not json`, `{"data":{"data":{"event":{}}}}`} {
		if _, ok := ExtractEventDetails(json.RawMessage(raw)); ok {
			t.Errorf("ExtractEventDetails(%s) ok = true, want false", raw)
		}
	}
}

// ---------------------------------------------------------------------------
// LumaDocument
// ---------------------------------------------------------------------------

func TestLumaDocument_WrapsEventWithHostsAndSeries(t *testing.T) {
	doc, ok := LumaDocument(json.RawMessage(sampleGetEvent), "BerBW2025")
	if !ok {
		t.Fatal("LumaDocument() ok = false")
	}

	var got struct {
		Event struct {
			APIID string  `json:"api_id"`
			Hosts []named `json:"hosts"`
		} `json:"event"`
		SeriesName string `json:"seriesName"`
	}
	if err := json.Unmarshal(doc, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Event.APIID != "evt-abc" {
		t.Errorf("api_id = %q", got.Event.APIID)
	}
	if !reflect.DeepEqual(got.Event.Hosts, []named{{"Alice"}, {"Bob"}}) {
		t.Errorf("hosts = %v", got.Event.Hosts)
	}
	if got.SeriesName != "BerBW2025" {
		t.Errorf("seriesName = %q", got.SeriesName)
	}
}

func TestLumaDocument_NoEvent(t *testing.T) {
	if _, ok := LumaDocument(json.RawMessage(`{"data":{}}`), "x"); ok {
		t.Error("LumaDocument() ok = true for a response without an event")
	}
}
