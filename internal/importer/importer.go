// Package importer orchestrates one import run: locate the export XML,
// parse it into series, and persist the result with an import log entry.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/healthvault/internal/healthkit"
	"github.com/claude/healthvault/internal/inbox"
	"github.com/claude/healthvault/internal/models"
	"github.com/claude/healthvault/internal/storage"
	"github.com/google/uuid"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int

	RecordsParsed          int
	RecordsSkipped         int
	SeriesParsed           int
	SeriesCreated          int
	MeasurementsParsed     int64
	MeasurementsInserted   int64
	MeasurementsDuplicated int64
}

// Importer turns HealthKit export files into stored series. With dryRun set
// it parses and reports without touching the database; state may be nil to
// disable file-level dedupe.
type Importer struct {
	db      *storage.DB
	state   *StateDB
	log     *slog.Logger
	dryRun  bool
	skipBad bool
	stats   Stats
}

// New creates a new Importer.
func New(db *storage.DB, state *StateDB, log *slog.Logger, dryRun, skipBad bool) *Importer {
	return &Importer{db: db, state: state, log: log, dryRun: dryRun, skipBad: skipBad}
}

// Import processes one export input: a bare export.xml, an export.zip, or an
// inbox directory holding health_kit/export.zip.
func (imp *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &imp.stats, fmt.Errorf("stat %s: %w", path, err)
	}

	var hash string
	if imp.state != nil && !info.IsDir() {
		hash, err = HashFile(path)
		if err != nil {
			return &imp.stats, fmt.Errorf("hashing %s: %w", path, err)
		}
		done, err := imp.state.IsImported(path, info.Size(), hash)
		if err != nil {
			return &imp.stats, fmt.Errorf("checking state db: %w", err)
		}
		if done {
			imp.log.Info("already imported, skipping", "path", path)
			imp.stats.FilesSkipped++
			return &imp.stats, nil
		}
	}

	xmlPath, cleanup, err := inbox.Resolve(path)
	if err != nil {
		return &imp.stats, err
	}
	defer cleanup()

	parser := healthkit.New(imp.log, imp.skipBad)
	result, err := parser.ParseFile(xmlPath)
	if err != nil {
		return &imp.stats, fmt.Errorf("parsing %s: %w", path, err)
	}
	// Extracted archives parse from a temp file; the collection should name
	// the input the user handed us.
	result.Collection.Source = path

	imp.stats.FilesProcessed++
	imp.stats.RecordsParsed = result.Records
	imp.stats.RecordsSkipped = len(result.Skipped)
	imp.stats.SeriesParsed = len(result.Collection.Series)
	imp.stats.MeasurementsParsed = result.Collection.MeasurementCount()

	if imp.dryRun {
		imp.log.Info("dry run, not inserting",
			"records", imp.stats.RecordsParsed,
			"series", imp.stats.SeriesParsed,
			"measurements", imp.stats.MeasurementsParsed)
		return &imp.stats, nil
	}

	if err := imp.insert(ctx, result.Collection); err != nil {
		return &imp.stats, err
	}

	if imp.state != nil && hash != "" {
		if err := imp.state.MarkImported(path, info.Size(), hash); err != nil {
			return &imp.stats, fmt.Errorf("updating state db: %w", err)
		}
	}

	imp.log.Info("import complete",
		"records", imp.stats.RecordsParsed,
		"records_skipped", imp.stats.RecordsSkipped,
		"series_created", imp.stats.SeriesCreated,
		"measurements_inserted", imp.stats.MeasurementsInserted,
		"measurements_duplicated", imp.stats.MeasurementsDuplicated)
	return &imp.stats, nil
}

// insert persists the collection inside an import log entry so failed runs
// stay visible.
func (imp *Importer) insert(ctx context.Context, col *models.SeriesCollection) error {
	importID := uuid.New()
	start := time.Now()

	logRow := storage.ImportLog{
		ID:     importID,
		Source: col.Source,
		Status: "running",
	}
	if err := imp.db.InsertImportLog(ctx, logRow); err != nil {
		return err
	}

	inserted, insertErr := imp.db.InsertSeriesCollection(ctx, col, importID)

	durationMs := int(time.Since(start).Milliseconds())
	logRow.RecordsParsed = imp.stats.RecordsParsed
	logRow.RecordsSkipped = imp.stats.RecordsSkipped
	logRow.SeriesCreated = inserted.SeriesCreated
	logRow.MeasurementsInserted = inserted.MeasurementsInserted
	logRow.DurationMs = &durationMs
	if insertErr != nil {
		logRow.Status = "error"
		msg := insertErr.Error()
		logRow.ErrorMessage = &msg
	} else {
		logRow.Status = "success"
	}

	if err := imp.db.UpdateImportLog(ctx, importID, logRow); err != nil {
		imp.log.Warn("updating import log failed", "import_id", importID, "error", err)
	}
	if insertErr != nil {
		return fmt.Errorf("inserting collection: %w", insertErr)
	}

	imp.stats.SeriesCreated = inserted.SeriesCreated
	imp.stats.MeasurementsInserted = inserted.MeasurementsInserted
	imp.stats.MeasurementsDuplicated = inserted.MeasurementsDuplicated
	return nil
}
