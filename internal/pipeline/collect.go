package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/event-scraper/event-scraper/internal/cryptonomads"
	"github.com/event-scraper/event-scraper/internal/storage"
)

type lumaTarget struct {
	ID     string
	Series string
}

// Collect scrapes the series listings and stores the raw Luma document for
// every side event not yet collected.
func (p *Pipeline) Collect(ctx context.Context) (CollectResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.collect(ctx)
}

func (p *Pipeline) collect(ctx context.Context) (CollectResult, error) {
	var res CollectResult
	err := step("collect", func() error {
		targets, err := p.targets(ctx)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.collectOne(ctx, t, &res)
		}
		slog.Info("collect complete", "stored", res.Stored, "skipped", res.Skipped, "failed", res.Failed)
		return nil
	})
	return res, err
}

// targets lists Luma ids from configured seeds followed by every side event
// linked from the current, non-future series pages.
func (p *Pipeline) targets(ctx context.Context) ([]lumaTarget, error) {
	seen := map[string]bool{}
	var out []lumaTarget
	add := func(id, series string) {
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, lumaTarget{ID: id, Series: series})
	}

	for _, id := range p.SeedIDs {
		add(strings.TrimSpace(id), "")
	}

	paths, err := p.Client.TopLevelPaths(ctx)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if cryptonomads.IsFutureEventPath(path) {
			slog.Debug("skipping future event", "path", path)
			continue
		}
		links, err := p.Client.SideEventLinks(ctx, path)
		if err != nil {
			slog.Error("failed to load side events", "path", path, "error", err)
			continue
		}
		series := strings.TrimPrefix(path, "/")
		for _, link := range links {
			if link.LumaID == "" {
				continue
			}
			add(link.LumaID, series)
		}
	}
	return out, nil
}

func (p *Pipeline) collectOne(ctx context.Context, t lumaTarget, res *CollectResult) {
	if !cryptonomads.IsValidLumaID(t.ID) {
		slog.Warn("invalid luma event id", "id", t.ID)
		res.Skipped++
		return
	}

	key := p.DataPrefix + "luma_" + t.ID + ".json"
	exists, err := p.Store.Exists(ctx, key)
	if err != nil {
		slog.Error("failed to check stored event", "key", key, "error", err)
		res.Failed++
		return
	}
	if exists {
		res.Skipped++
		return
	}

	raw, err := p.Client.GetLumaEvent(ctx, t.ID)
	if err != nil {
		slog.Error("failed to fetch luma event", "id", t.ID, "error", err)
		res.Failed++
		return
	}
	doc, ok := cryptonomads.LumaDocument(raw, t.Series)
	if !ok {
		slog.Warn("luma response has no event", "id", t.ID)
		res.Skipped++
		return
	}
	if _, err := storage.WriteBytes(ctx, p.Store, key, doc); err != nil {
		slog.Error("failed to store luma event", "key", key, "error", err)
		res.Failed++
		return
	}
	res.Stored++
}
