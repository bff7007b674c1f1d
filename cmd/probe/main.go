// Package main runs the single-shot cryptonomads.org probes. Each probe sends
// its literal requests once and prints the status code and raw response body.
// A transport error exits non-zero; HTTP error statuses are printed as-is.
//
// Usage:
//
//	probe [--base-url URL] [--config FILE] <get-event|side-event-berbw|side-event-permissionless|all|list>
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/event-scraper/event-scraper/internal/config"
	"github.com/event-scraper/event-scraper/internal/probe"
	"github.com/event-scraper/event-scraper/internal/telemetry"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	baseURL := fs.String("base-url", "", "override probe.base_url")
	configPath := fs.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: probe [flags] <%s|all|list>\n", strings.Join(probe.Names(), "|"))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one probe name")
	}
	name := fs.Arg(0)

	if name == "list" {
		for _, p := range probe.All() {
			fmt.Fprintf(out, "%-28s %s\n", p.Name, p.Description)
		}
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	telemetry.SetupStderrLogger(cfg.Logging.Format, cfg.Logging.Level)

	target := cfg.Probe.BaseURL
	if *baseURL != "" {
		target = *baseURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := probe.NewRunner(&http.Client{Timeout: cfg.Probe.Timeout}, target, out)

	if name == "all" {
		return runner.RunAll(ctx)
	}

	p, ok := probe.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown probe %q (available: %s, all, list)", name, strings.Join(probe.Names(), ", "))
	}
	return runner.Run(ctx, p)
}
