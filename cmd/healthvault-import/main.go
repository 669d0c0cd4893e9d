package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/healthvault/internal/config"
	"github.com/claude/healthvault/internal/importer"
	"github.com/claude/healthvault/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportPath := flag.String("path", "", "path to export.xml, export.zip, or an inbox directory (required)")
	dryRun := flag.Bool("dry-run", false, "parse and report counts without inserting into database")
	skipBad := flag.Bool("skip-bad", false, "skip malformed records instead of aborting the import")
	stateDir := flag.String("state-dir", "", "directory for the imported-files state db (empty disables dedupe)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: healthvault-import -config config.yaml -path /path/to/export.zip [-dry-run] [-skip-bad]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode — no data will be written to the database")
	}

	var db *storage.DB
	if !*dryRun {
		// Load config
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}

		dsn := cfg.Database.DSN()

		// Run migrations
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		// Connect database
		db, err = storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		log.Info("database connected")
	}

	var state *importer.StateDB
	if *stateDir != "" {
		var err error
		state, err = importer.OpenStateDB(*stateDir)
		if err != nil {
			log.Error("failed to open state db", "error", err)
			os.Exit(1)
		}
		defer state.Close()
	}

	// Run import
	imp := importer.New(db, state, log, *dryRun, *skipBad)
	stats, err := imp.Import(ctx, *exportPath)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"records_parsed", stats.RecordsParsed,
		"records_skipped", stats.RecordsSkipped,
		"series_parsed", stats.SeriesParsed,
		"series_created", stats.SeriesCreated,
		"measurements_parsed", stats.MeasurementsParsed,
		"measurements_inserted", stats.MeasurementsInserted,
		"measurements_duplicated", stats.MeasurementsDuplicated,
	)
}
