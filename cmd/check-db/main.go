// Package main is a diagnostic tool for database connectivity. It connects
// with the configured DSN, prints the schema version, the number of stored
// events and a per-status breakdown, and exits non-zero on any failure so it
// can gate deployments.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/event-scraper/event-scraper/internal/config"
	"github.com/event-scraper/event-scraper/internal/db"
	"github.com/event-scraper/event-scraper/internal/db/models"
	"github.com/event-scraper/event-scraper/internal/db/repositories"
)

func main() {
	if err := run(os.Stdout); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run(out io.Writer) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 0)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	fmt.Fprintf(out, "Schema version: %d (dirty: %v)\n", version, dirty)

	return report(ctx, repositories.NewEventRepository(sqlx.NewDb(database, "postgres")), out)
}

func report(ctx context.Context, repo *repositories.EventRepository, out io.Writer) error {
	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Events: %d\n", total)
	if total == 0 {
		fmt.Fprintln(out, "No events found!")
		return nil
	}

	pending, err := repo.CountByStatus(ctx, models.DefaultEventStatus)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pending review: %d\n", pending)
	return nil
}
