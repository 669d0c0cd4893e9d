package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/healthvault/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertStats reports what an InsertSeriesCollection call actually wrote.
type InsertStats struct {
	SeriesCreated          int   `json:"series_created"`
	MeasurementsInserted   int64 `json:"measurements_inserted"`
	MeasurementsDuplicated int64 `json:"measurements_duplicated"`
}

// InsertSeriesCollection persists every series and measurement in the
// collection. Series rows are upserted by name; measurements are
// batch-inserted with ON CONFLICT DO NOTHING so re-importing an overlapping
// export is idempotent.
func (db *DB) InsertSeriesCollection(ctx context.Context, col *models.SeriesCollection, importID uuid.UUID) (*InsertStats, error) {
	stats := &InsertStats{}

	for i := range col.Series {
		s := &col.Series[i]

		seriesID, created, err := db.upsertSeries(ctx, s, col.Source, importID)
		if err != nil {
			return stats, fmt.Errorf("upserting series %s: %w", s.Name, err)
		}
		if created {
			stats.SeriesCreated++
		}

		inserted, err := db.insertMeasurements(ctx, seriesID, s.Measurements)
		if err != nil {
			return stats, fmt.Errorf("inserting measurements for %s: %w", s.Name, err)
		}
		stats.MeasurementsInserted += inserted
		stats.MeasurementsDuplicated += int64(len(s.Measurements)) - inserted
	}

	return stats, nil
}

// upsertSeries creates or finds the series row for a name. The unit and
// family of an existing series must match the incoming one; a conflict here
// means two imports disagree about the series' fixed-point unit.
func (db *DB) upsertSeries(ctx context.Context, s *models.Series, source string, importID uuid.UUID) (int64, bool, error) {
	var id int64
	var unit, family string

	err := db.Pool.QueryRow(ctx,
		`SELECT id, unit, family FROM series WHERE name = $1`, s.Name).Scan(&id, &unit, &family)
	if err == nil {
		if unit != s.Unit || family != s.Family {
			return 0, false, fmt.Errorf("series %s exists with unit=%s family=%s, incoming unit=%s family=%s",
				s.Name, unit, family, s.Unit, s.Family)
		}
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("looking up series: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`INSERT INTO series (name, family, unit, source_file, import_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		s.Name, s.Family, s.Unit, source, importID).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("inserting series: %w", err)
	}
	return id, true, nil
}

// insertMeasurements batch-inserts measurements in chunks to stay within
// PostgreSQL parameter limits. 5 params per row, max 65535 params → ~13107
// rows per batch. Use 10000.
func (db *DB) insertMeasurements(ctx context.Context, seriesID int64, ms []models.Measurement) (int64, error) {
	const batchSize = 10000
	var total int64

	for i := 0; i < len(ms); i += batchSize {
		end := i + batchSize
		if end > len(ms) {
			end = len(ms)
		}
		n, err := db.insertMeasurementBatch(ctx, seriesID, ms[i:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (db *DB) insertMeasurementBatch(ctx context.Context, seriesID int64, ms []models.Measurement) (int64, error) {
	if len(ms) == 0 {
		return 0, nil
	}

	query := `INSERT INTO measurements (series_id, ms_since_epoch, value, grp, source)
VALUES `
	args := make([]any, 0, len(ms)*5)
	valueStrings := make([]string, 0, len(ms))

	for i, m := range ms {
		base := i * 5
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5))
		args = append(args, seriesID, m.MsSinceUnixEpoch, m.Value, m.Group, m.Source)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting measurements: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SeriesInfo is a stored series with its measurement extent.
type SeriesInfo struct {
	Name             string `json:"name"`
	Family           string `json:"family"`
	Unit             string `json:"unit"`
	MeasurementCount int64  `json:"measurement_count"`
	FirstMs          *int64 `json:"first_ms,omitempty"`
	LastMs           *int64 `json:"last_ms,omitempty"`
}

// ListSeries returns every stored series with measurement counts, ordered
// by family then name.
func (db *DB) ListSeries(ctx context.Context) ([]SeriesInfo, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.name, s.family, s.unit,
		        COUNT(m.id), MIN(m.ms_since_epoch), MAX(m.ms_since_epoch)
		 FROM series s
		 LEFT JOIN measurements m ON m.series_id = s.id
		 GROUP BY s.id, s.name, s.family, s.unit
		 ORDER BY s.family, s.name`)
	if err != nil {
		return nil, fmt.Errorf("querying series: %w", err)
	}
	defer rows.Close()

	var result []SeriesInfo
	for rows.Next() {
		var info SeriesInfo
		if err := rows.Scan(&info.Name, &info.Family, &info.Unit,
			&info.MeasurementCount, &info.FirstMs, &info.LastMs); err != nil {
			return nil, fmt.Errorf("scanning series row: %w", err)
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

// QueryMeasurements returns a series' measurements within [startMs, endMs),
// ordered by timestamp. A zero endMs means no upper bound.
func (db *DB) QueryMeasurements(ctx context.Context, seriesName string, startMs, endMs int64) ([]models.Measurement, error) {
	query := `SELECT m.ms_since_epoch, m.value, m.grp, m.source
		 FROM measurements m
		 JOIN series s ON s.id = m.series_id
		 WHERE s.name = $1 AND m.ms_since_epoch >= $2`
	args := []any{seriesName, startMs}
	if endMs > 0 {
		query += ` AND m.ms_since_epoch < $3`
		args = append(args, endMs)
	}
	query += ` ORDER BY m.ms_since_epoch ASC`

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer rows.Close()

	var result []models.Measurement
	for rows.Next() {
		var m models.Measurement
		if err := rows.Scan(&m.MsSinceUnixEpoch, &m.Value, &m.Group, &m.Source); err != nil {
			return nil, fmt.Errorf("scanning measurement row: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// SeriesStats are aggregate statistics over a series' integer values.
type SeriesStats struct {
	Name  string   `json:"name"`
	Unit  string   `json:"unit"`
	Count int64    `json:"count"`
	Min   *int64   `json:"min"`
	Max   *int64   `json:"max"`
	Avg   *float64 `json:"avg"`
	Sum   *int64   `json:"sum"`
}

// GetSeriesStats computes count/min/max/avg/sum for one series.
func (db *DB) GetSeriesStats(ctx context.Context, seriesName string) (*SeriesStats, error) {
	stats := &SeriesStats{Name: seriesName}
	err := db.Pool.QueryRow(ctx,
		`SELECT s.unit, COUNT(m.id), MIN(m.value), MAX(m.value), AVG(m.value), SUM(m.value)
		 FROM series s
		 LEFT JOIN measurements m ON m.series_id = s.id
		 WHERE s.name = $1
		 GROUP BY s.unit`,
		seriesName).Scan(&stats.Unit, &stats.Count, &stats.Min, &stats.Max, &stats.Avg, &stats.Sum)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("series %s not found", seriesName)
	}
	if err != nil {
		return nil, fmt.Errorf("querying series stats: %w", err)
	}
	return stats, nil
}

// FamilyCount is the number of series and measurements within one family.
type FamilyCount struct {
	Family       string `json:"family"`
	SeriesCount  int64  `json:"series_count"`
	Measurements int64  `json:"measurements"`
}

// ListFamilies returns per-family series and measurement counts.
func (db *DB) ListFamilies(ctx context.Context) ([]FamilyCount, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.family, COUNT(DISTINCT s.id), COUNT(m.id)
		 FROM series s
		 LEFT JOIN measurements m ON m.series_id = s.id
		 GROUP BY s.family
		 ORDER BY s.family`)
	if err != nil {
		return nil, fmt.Errorf("querying families: %w", err)
	}
	defer rows.Close()

	var result []FamilyCount
	for rows.Next() {
		var fc FamilyCount
		if err := rows.Scan(&fc.Family, &fc.SeriesCount, &fc.Measurements); err != nil {
			return nil, fmt.Errorf("scanning family row: %w", err)
		}
		result = append(result, fc)
	}
	return result, rows.Err()
}
