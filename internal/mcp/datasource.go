package mcp

import (
	"context"

	"github.com/claude/healthvault/internal/models"
	"github.com/claude/healthvault/internal/storage"
)

// DataSource abstracts the data layer for MCP tools.
type DataSource interface {
	ListSeries(ctx context.Context) ([]storage.SeriesInfo, error)
	QueryMeasurements(ctx context.Context, seriesName string, startMs, endMs int64) ([]models.Measurement, error)
	GetSeriesStats(ctx context.Context, seriesName string) (*storage.SeriesStats, error)
	ListFamilies(ctx context.Context) ([]storage.FamilyCount, error)
	ListImportLogs(ctx context.Context, limit int) ([]storage.ImportLog, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
