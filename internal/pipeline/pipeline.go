// Package pipeline drives the collect, clean and push steps that move side
// events from cryptonomads.org into the events API.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/event-scraper/event-scraper/internal/cleaning"
	"github.com/event-scraper/event-scraper/internal/config"
	"github.com/event-scraper/event-scraper/internal/cryptonomads"
	"github.com/event-scraper/event-scraper/internal/safego"
	"github.com/event-scraper/event-scraper/internal/storage"
	"github.com/event-scraper/event-scraper/internal/telemetry"
	"github.com/event-scraper/event-scraper/pkg/checksum"
)

// ErrNoCleanedEvents is returned by Push when the snapshot does not exist yet.
var ErrNoCleanedEvents = errors.New("cleaned events file not found")

// ErrNoEvent is returned by Details when the upstream response carries no event.
var ErrNoEvent = errors.New("no event data found")

// CollectResult counts what one collect pass did.
type CollectResult struct {
	Stored  int
	Skipped int
	Failed  int
}

// Pipeline holds the wired dependencies of every step. Runs are serialised.
type Pipeline struct {
	Client         *cryptonomads.Client
	Store          storage.Storage
	Cleaner        *cleaning.Cleaner
	HTTPClient     *http.Client
	EventsAPIURL   string
	CollectEnabled bool
	SeedIDs        []string
	DataPrefix     string

	mu sync.Mutex
}

// New builds a pipeline from configuration over store.
func New(cfg *config.Config, store storage.Storage) *Pipeline {
	client := cryptonomads.NewClient(cfg.Cryptonomads.BaseURL, cfg.Cryptonomads.Timeout, cfg.Cryptonomads.RequestsPerMinute)
	cleaner := cleaning.NewCleaner(store, cfg.Pipeline.DataPrefix, cfg.Pipeline.CleanedKey)
	return &Pipeline{
		Client:         client,
		Store:          store,
		Cleaner:        cleaner,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		EventsAPIURL:   cfg.Pipeline.EventsAPIURL,
		CollectEnabled: cfg.Pipeline.CollectEnabled,
		SeedIDs:        cfg.Pipeline.LumaEventIDs,
		DataPrefix:     cleaner.DataPrefix,
	}
}

// step runs fn under panic recovery and records its outcome.
func step(name string, fn func() error) error {
	start := time.Now()
	err := safego.Run("pipeline."+name, fn)
	telemetry.PipelineStepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	result := "success"
	if err != nil {
		result = "error"
	}
	telemetry.PipelineRunsTotal.WithLabelValues(name, result).Inc()
	return err
}

// Run executes collect (when enabled), clean and push in order and stops at the
// first failing step.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	slog.Info("pipeline run started", "collect", p.CollectEnabled)
	start := time.Now()

	if p.CollectEnabled {
		if _, err := p.collect(ctx); err != nil {
			return fmt.Errorf("collect: %w", err)
		}
	}
	if _, err := p.clean(ctx); err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	if _, err := p.push(ctx); err != nil {
		return fmt.Errorf("push: %w", err)
	}

	slog.Info("pipeline run complete", "duration", time.Since(start))
	return nil
}

// Clean merges newly collected documents into the cleaned snapshot.
func (p *Pipeline) Clean(ctx context.Context) (cleaning.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clean(ctx)
}

func (p *Pipeline) clean(ctx context.Context) (cleaning.Result, error) {
	var res cleaning.Result
	err := step("clean", func() error {
		var err error
		res, err = p.Cleaner.Run(ctx)
		return err
	})
	return res, err
}

// Push posts the cleaned snapshot to the events API and returns how many
// events were sent.
func (p *Pipeline) Push(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.push(ctx)
}

func (p *Pipeline) push(ctx context.Context) (int, error) {
	var sent int
	err := step("push", func() error {
		exists, err := p.Store.Exists(ctx, p.Cleaner.CleanedKey)
		if err != nil {
			return fmt.Errorf("failed to check cleaned events: %w", err)
		}
		if !exists {
			return ErrNoCleanedEvents
		}

		events, err := p.Cleaner.ReadCleanedEvents(ctx)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			slog.Info("No cleaned events to push.")
			return nil
		}

		body, err := cleaning.MarshalSnapshot(events)
		if err != nil {
			return err
		}
		if err := p.postBatch(ctx, body); err != nil {
			return err
		}
		sent = len(events)
		slog.Info("pushed cleaned events", "count", sent, "url", p.EventsAPIURL)
		return nil
	})
	return sent, err
}

func (p *Pipeline) postBatch(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.EventsAPIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(checksum.Header, checksum.SHA256(body))

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to push events: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("events API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Details fetches one Luma event and extracts its human readable fields.
func (p *Pipeline) Details(ctx context.Context, lumaID string) (*cryptonomads.EventDetails, error) {
	if !cryptonomads.IsValidLumaID(lumaID) {
		return nil, fmt.Errorf("invalid luma event id %q", lumaID)
	}
	raw, err := p.Client.GetLumaEvent(ctx, lumaID)
	if err != nil {
		return nil, err
	}
	details, ok := cryptonomads.ExtractEventDetails(raw)
	if !ok {
		return nil, ErrNoEvent
	}
	return details, nil
}
