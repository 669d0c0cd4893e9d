package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImportLog is one import run, successful or not.
type ImportLog struct {
	ID                   uuid.UUID `json:"id"`
	Source               string    `json:"source"`
	Status               string    `json:"status"` // running, success, error
	RecordsParsed        int       `json:"records_parsed"`
	RecordsSkipped       int       `json:"records_skipped"`
	SeriesCreated        int       `json:"series_created"`
	MeasurementsInserted int64     `json:"measurements_inserted"`
	DurationMs           *int      `json:"duration_ms,omitempty"`
	ErrorMessage         *string   `json:"error_message,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// InsertImportLog creates an import log row, usually with status "running".
func (db *DB) InsertImportLog(ctx context.Context, log ImportLog) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO import_logs (id, source, status)
		 VALUES ($1, $2, $3)`,
		log.ID, log.Source, log.Status)
	if err != nil {
		return fmt.Errorf("inserting import log: %w", err)
	}
	return nil
}

// UpdateImportLog finalizes an import log row with results.
func (db *DB) UpdateImportLog(ctx context.Context, id uuid.UUID, log ImportLog) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE import_logs
		 SET status = $2, records_parsed = $3, records_skipped = $4,
		     series_created = $5, measurements_inserted = $6,
		     duration_ms = $7, error_message = $8
		 WHERE id = $1`,
		id, log.Status, log.RecordsParsed, log.RecordsSkipped,
		log.SeriesCreated, log.MeasurementsInserted,
		log.DurationMs, log.ErrorMessage)
	if err != nil {
		return fmt.Errorf("updating import log: %w", err)
	}
	return nil
}

// ListImportLogs returns the most recent import runs, newest first.
func (db *DB) ListImportLogs(ctx context.Context, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, source, status, records_parsed, records_skipped,
		        series_created, measurements_inserted, duration_ms,
		        error_message, created_at
		 FROM import_logs
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	defer rows.Close()

	var result []ImportLog
	for rows.Next() {
		var l ImportLog
		if err := rows.Scan(&l.ID, &l.Source, &l.Status, &l.RecordsParsed,
			&l.RecordsSkipped, &l.SeriesCreated, &l.MeasurementsInserted,
			&l.DurationMs, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning import log row: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
