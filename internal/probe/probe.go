// Package probe holds the fixed set of single-shot HTTP probes against the
// cryptonomads.org endpoints. Each probe is a literal list of requests; running
// one sends every request once, in order, and prints the status and body.
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/event-scraper/event-scraper/internal/telemetry"
)

// DefaultBaseURL is the host every probe targets unless overridden.
const DefaultBaseURL = "https://cryptonomads.org"

// Report selects how a response is printed.
type Report int

const (
	// ReportOptions prints "Options: <status>".
	ReportOptions Report = iota
	// ReportText prints "Status code: <n>" then "Response text: <body>".
	ReportText
	// ReportBody prints "Status code: <n>" then "Response: <body>".
	ReportBody
)

// Header is one request header. A slice keeps the literal order.
type Header struct {
	Name  string
	Value string
}

// Request is one literal request of a probe.
type Request struct {
	Method  string
	Path    string
	Headers []Header
	Body    string
	Report  Report
}

// Probe is a named, fixed sequence of requests.
type Probe struct {
	Name        string
	Description string
	Requests    []Request
}

var getEventHeaders = []Header{
	{"accept", "*/*"},
	{"accept-language", "en-US,en;q=0.9"},
	{"content-type", "text/plain;charset=UTF-8"},
}

var sideEventHeaders = []Header{
	{"Content-Type", "application/json"},
	{"Accept", "*/*"},
}

// probes is the complete list, in the order `all` runs them.
var probes = []Probe{
	{
		Name:        "get-event",
		Description: "OPTIONS then POST /api/luma/get_event for Luma event n6e7l7hn",
		Requests: []Request{
			{Method: http.MethodOptions, Path: "/api/luma/get_event", Headers: getEventHeaders, Report: ReportOptions},
			{Method: http.MethodPost, Path: "/api/luma/get_event", Headers: getEventHeaders, Body: `{"lumaEventId":"n6e7l7hn"}`, Report: ReportText},
		},
	},
	{
		Name:        "side-event-berbw",
		Description: "POST /api/airtable/events findSideEventBySlug BerBW2025/MasTJf",
		Requests: []Request{
			{Method: http.MethodPost, Path: "/api/airtable/events", Headers: sideEventHeaders,
				Body: `{"queryType":"findSideEventBySlug","seriesSlug":"BerBW2025","slug":"MasTJf"}`, Report: ReportBody},
		},
	},
	{
		Name:        "side-event-permissionless",
		Description: "POST /api/airtable/events findSideEventBySlug PermissionlessSideEvents2025/interopacc-TJf",
		Requests: []Request{
			{Method: http.MethodPost, Path: "/api/airtable/events", Headers: sideEventHeaders,
				Body: `{"queryType":"findSideEventBySlug","seriesSlug":"PermissionlessSideEvents2025","slug":"interopacc-TJf"}`, Report: ReportBody},
		},
	},
}

// All returns every probe in run order.
func All() []Probe {
	out := make([]Probe, len(probes))
	copy(out, probes)
	return out
}

// Lookup finds a probe by name.
func Lookup(name string) (Probe, bool) {
	for _, p := range probes {
		if p.Name == name {
			return p, true
		}
	}
	return Probe{}, false
}

// Names returns the probe names in run order.
func Names() []string {
	names := make([]string, len(probes))
	for i, p := range probes {
		names[i] = p.Name
	}
	return names
}

// Runner sends probe requests and writes their output.
type Runner struct {
	Client  *http.Client
	BaseURL string
	Out     io.Writer
}

// NewRunner creates a runner. An empty baseURL means DefaultBaseURL.
func NewRunner(client *http.Client, baseURL string, out io.Writer) *Runner {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Runner{
		Client:  client,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Out:     out,
	}
}

// Run sends each request of p exactly once. Any HTTP status is printed and
// is not an error; a transport failure stops the probe and is returned.
func (r *Runner) Run(ctx context.Context, p Probe) error {
	for _, req := range p.Requests {
		if err := r.send(ctx, p.Name, req); err != nil {
			return err
		}
	}
	return nil
}

// RunAll runs every probe in order, stopping at the first failure.
func (r *Runner) RunAll(ctx context.Context) error {
	for _, p := range probes {
		if err := r.Run(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) send(ctx context.Context, name string, pr Request) error {
	var body io.Reader
	if pr.Body != "" {
		body = strings.NewReader(pr.Body)
	}

	url := r.BaseURL + pr.Path
	req, err := http.NewRequestWithContext(ctx, pr.Method, url, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create %s request: %w", name, pr.Method, err)
	}
	for _, h := range pr.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	slog.Debug("sending probe request", "probe", name, "method", pr.Method, "url", url)

	resp, err := r.Client.Do(req)
	if err != nil {
		telemetry.UpstreamRequestsTotal.WithLabelValues("probe_"+name, "error").Inc()
		return fmt.Errorf("%s: %s %s: %w", name, pr.Method, url, err)
	}
	defer resp.Body.Close()

	telemetry.UpstreamRequestsTotal.WithLabelValues("probe_"+name, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", name, err)
	}

	switch pr.Report {
	case ReportOptions:
		_, err = fmt.Fprintf(r.Out, "Options: %d\n", resp.StatusCode)
	case ReportText:
		_, err = fmt.Fprintf(r.Out, "Status code: %d\nResponse text: %s\n", resp.StatusCode, respBody)
	default:
		_, err = fmt.Fprintf(r.Out, "Status code: %d\nResponse: %s\n", resp.StatusCode, respBody)
	}
	return err
}
