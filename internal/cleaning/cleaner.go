package cleaning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/event-scraper/event-scraper/internal/storage"
	"github.com/event-scraper/event-scraper/internal/telemetry"
	"github.com/event-scraper/event-scraper/pkg/checksum"
)

const lumaFilePrefix = "luma_"

// Result summarises one merge.
type Result struct {
	Added int
	Total int
}

// Cleaner reads raw documents under DataPrefix and maintains the snapshot at
// CleanedKey, both in Store.
type Cleaner struct {
	Store      storage.Storage
	DataPrefix string
	CleanedKey string
}

// NewCleaner creates a cleaner over store.
func NewCleaner(store storage.Storage, dataPrefix, cleanedKey string) *Cleaner {
	if dataPrefix != "" && !strings.HasSuffix(dataPrefix, "/") {
		dataPrefix += "/"
	}
	return &Cleaner{Store: store, DataPrefix: dataPrefix, CleanedKey: cleanedKey}
}

// ReadAllEvents cleans every *.json document directly under DataPrefix, in key
// order. Documents that fail to read or parse are logged and skipped.
func (c *Cleaner) ReadAllEvents(ctx context.Context) ([]CleanedEvent, error) {
	keys, err := c.Store.List(ctx, c.DataPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw events: %w", err)
	}

	var events []CleanedEvent
	for _, key := range keys {
		rest := strings.TrimPrefix(key, c.DataPrefix)
		if strings.Contains(rest, "/") || !strings.HasSuffix(rest, ".json") {
			continue
		}

		data, err := storage.ReadAll(ctx, c.Store, key)
		if err != nil {
			slog.Error("failed to read raw event file", "file", key, "error", err)
			continue
		}

		parsed, err := CleanDocument(path.Base(key), data)
		if err != nil {
			slog.Error("failed to parse raw event file", "file", key, "error", err)
			continue
		}
		events = append(events, parsed...)
	}
	return events, nil
}

// CleanDocument cleans one raw file. Luma files hold a single event; other
// files may hold an array, an object with an "events" array, or one event.
func CleanDocument(name string, data []byte) ([]CleanedEvent, error) {
	doc, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(name, lumaFilePrefix) {
		raw, ok := object(doc)
		if !ok {
			return nil, fmt.Errorf("luma document is not an object")
		}
		return []CleanedEvent{CleanLumaEvent(raw)}, nil
	}

	switch t := doc.(type) {
	case []interface{}:
		return extractAll(t), nil
	case map[string]interface{}:
		if list, ok := t["events"].([]interface{}); ok {
			return extractAll(list), nil
		}
		return []CleanedEvent{ExtractEventFields(t)}, nil
	default:
		return nil, nil
	}
}

func extractAll(items []interface{}) []CleanedEvent {
	out := make([]CleanedEvent, 0, len(items))
	for _, item := range items {
		m, ok := object(item)
		if !ok {
			m = map[string]interface{}{}
		}
		out = append(out, ExtractEventFields(m))
	}
	return out
}

// ReadCleanedEvents loads the snapshot. A missing or unparseable snapshot is
// treated as empty.
func (c *Cleaner) ReadCleanedEvents(ctx context.Context) ([]CleanedEvent, error) {
	data, err := storage.ReadAll(ctx, c.Store, c.CleanedKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []CleanedEvent{}, nil
		}
		return nil, err
	}

	var events []CleanedEvent
	if err := json.Unmarshal(data, &events); err != nil {
		slog.Warn("cleaned events snapshot is unreadable, starting empty", "key", c.CleanedKey, "error", err)
		return []CleanedEvent{}, nil
	}
	return events, nil
}

// Run merges newly cleaned events into the snapshot. An event is new when it
// has an id not already present; the first occurrence of an id wins. The
// snapshot is only rewritten when something was added.
func (c *Cleaner) Run(ctx context.Context) (Result, error) {
	all, err := c.ReadAllEvents(ctx)
	if err != nil {
		return Result{}, err
	}
	existing, err := c.ReadCleanedEvents(ctx)
	if err != nil {
		return Result{}, err
	}

	merged, added := Merge(existing, all)
	if added == 0 {
		slog.Info("No new events to add.")
		return Result{Added: 0, Total: len(existing)}, nil
	}

	data, err := MarshalSnapshot(merged)
	if err != nil {
		return Result{}, err
	}
	if _, err := storage.WriteBytes(ctx, c.Store, c.CleanedKey, data); err != nil {
		return Result{}, fmt.Errorf("failed to write cleaned events: %w", err)
	}

	telemetry.EventsCleanedTotal.Add(float64(added))
	slog.Info(fmt.Sprintf("Added %d new events. Total: %d", added, len(merged)),
		"added", added, "total", len(merged), "sha256", checksum.SHA256(data))
	return Result{Added: added, Total: len(merged)}, nil
}

// Merge appends events from incoming whose id is non-empty and unseen.
func Merge(existing, incoming []CleanedEvent) ([]CleanedEvent, int) {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e.ID] = true
	}

	merged := append([]CleanedEvent{}, existing...)
	added := 0
	for _, e := range incoming {
		if e.ID == "" || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		merged = append(merged, e)
		added++
	}
	return merged, added
}

// MarshalSnapshot renders events as a two-space indented JSON array.
func MarshalSnapshot(events []CleanedEvent) ([]byte, error) {
	if events == nil {
		events = []CleanedEvent{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return nil, fmt.Errorf("failed to encode cleaned events: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
