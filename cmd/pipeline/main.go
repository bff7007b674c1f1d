// Package main runs the scrape pipeline from the command line.
//
// Usage:
//
//	pipeline [--config FILE] <run|collect|clean|push|schedule|details LUMA_ID|side-event SERIES SLUG>
//
// schedule runs the full pipeline every pipeline.interval until SIGINT or
// SIGTERM.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/event-scraper/event-scraper/internal/config"
	"github.com/event-scraper/event-scraper/internal/jobs"
	"github.com/event-scraper/event-scraper/internal/pipeline"
	"github.com/event-scraper/event-scraper/internal/storage"
	"github.com/event-scraper/event-scraper/internal/telemetry"

	// Import storage backends to register them
	_ "github.com/event-scraper/event-scraper/internal/storage/azure"
	_ "github.com/event-scraper/event-scraper/internal/storage/gcs"
	_ "github.com/event-scraper/event-scraper/internal/storage/local"
	_ "github.com/event-scraper/event-scraper/internal/storage/s3"
)

const usage = "usage: pipeline [flags] <run|collect|clean|push|schedule|details LUMA_ID|side-event SERIES SLUG>"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("expected a command")
	}
	command := fs.Arg(0)

	switch command {
	case "run", "collect", "clean", "push", "schedule":
		if fs.NArg() != 1 {
			return fmt.Errorf("%s takes no arguments", command)
		}
	case "details":
		if fs.NArg() != 2 {
			return fmt.Errorf("usage: pipeline details LUMA_ID")
		}
	case "side-event":
		if fs.NArg() != 3 {
			return fmt.Errorf("usage: pipeline side-event SERIES SLUG")
		}
	default:
		return fmt.Errorf("unknown command: %s\n%s", command, usage)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	telemetry.SetupStderrLogger(cfg.Logging.Format, cfg.Logging.Level)

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	p := pipeline.New(cfg, store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		if err := p.Run(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Pipeline complete!")
	case "collect":
		res, err := p.Collect(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Stored %d events (skipped %d, failed %d)\n", res.Stored, res.Skipped, res.Failed)
	case "clean":
		res, err := p.Clean(ctx)
		if err != nil {
			return err
		}
		if res.Added == 0 {
			fmt.Fprintln(out, "No new events to add.")
		} else {
			fmt.Fprintf(out, "Added %d new events. Total: %d\n", res.Added, res.Total)
		}
	case "push":
		n, err := p.Push(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(out, "No cleaned events to push.")
		} else {
			fmt.Fprintf(out, "Pushed %d events to %s\n", n, cfg.Pipeline.EventsAPIURL)
		}
	case "details":
		details, err := p.Details(ctx, fs.Arg(1))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(details)
	case "side-event":
		raw, err := p.Client.FindSideEventBySlug(ctx, fs.Arg(1), fs.Arg(2))
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(out, buf.String())
	case "schedule":
		job := jobs.NewPipelineJob(p)
		job.Start(ctx, cfg.Pipeline.Interval)
		<-ctx.Done()
		slog.Info("stopping scheduled pipeline")
		job.Stop()
	}
	return nil
}
