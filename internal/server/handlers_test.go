package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claude/healthvault/internal/models"
	"github.com/claude/healthvault/internal/storage"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	series       []storage.SeriesInfo
	measurements map[string][]models.Measurement
	stats        map[string]*storage.SeriesStats
	families     []storage.FamilyCount
	importLogs   []storage.ImportLog

	collections []*models.SeriesCollection
}

func (f *fakeStore) InsertImportLog(ctx context.Context, log storage.ImportLog) error {
	f.importLogs = append(f.importLogs, log)
	return nil
}

func (f *fakeStore) UpdateImportLog(ctx context.Context, id uuid.UUID, log storage.ImportLog) error {
	for i := range f.importLogs {
		if f.importLogs[i].ID == id {
			f.importLogs[i] = log
			return nil
		}
	}
	return fmt.Errorf("import log %s not found", id)
}

func (f *fakeStore) ListImportLogs(ctx context.Context, limit int) ([]storage.ImportLog, error) {
	return f.importLogs, nil
}

func (f *fakeStore) InsertSeriesCollection(ctx context.Context, col *models.SeriesCollection, importID uuid.UUID) (*storage.InsertStats, error) {
	f.collections = append(f.collections, col)
	stats := &storage.InsertStats{SeriesCreated: len(col.Series)}
	for _, s := range col.Series {
		stats.MeasurementsInserted += int64(len(s.Measurements))
	}
	return stats, nil
}

func (f *fakeStore) ListSeries(ctx context.Context) ([]storage.SeriesInfo, error) {
	return f.series, nil
}

func (f *fakeStore) QueryMeasurements(ctx context.Context, seriesName string, startMs, endMs int64) ([]models.Measurement, error) {
	var result []models.Measurement
	for _, m := range f.measurements[seriesName] {
		if m.MsSinceUnixEpoch < startMs {
			continue
		}
		if endMs > 0 && m.MsSinceUnixEpoch >= endMs {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (f *fakeStore) GetSeriesStats(ctx context.Context, seriesName string) (*storage.SeriesStats, error) {
	stats, ok := f.stats[seriesName]
	if !ok {
		return nil, fmt.Errorf("series %s not found", seriesName)
	}
	return stats, nil
}

func (f *fakeStore) ListFamilies(ctx context.Context) ([]storage.FamilyCount, error) {
	return f.families, nil
}

func newTestServer(store *fakeStore) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, "test-key", log)
}

// TestListSeries verifies the series listing endpoint returns stored series.
func TestListSeries(t *testing.T) {
	store := &fakeStore{
		series: []storage.SeriesInfo{
			{Name: "StepCount", Family: "Activity", Unit: "Count", MeasurementCount: 10},
			{Name: "Weight", Family: "BodyMeasurement", Unit: "Milligrams", MeasurementCount: 3},
		},
	}
	s := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/series", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var series []storage.SeriesInfo
	if err := json.NewDecoder(rec.Body).Decode(&series); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series count = %d, want 2", len(series))
	}
	if series[0].Name != "StepCount" {
		t.Errorf("series[0].Name = %q, want StepCount", series[0].Name)
	}
}

// TestQueryMeasurements verifies the measurement query endpoint filters by
// the ms range parameters.
func TestQueryMeasurements(t *testing.T) {
	store := &fakeStore{
		measurements: map[string][]models.Measurement{
			"StepCount": {
				{MsSinceUnixEpoch: 1000, Value: 10, Group: "StepCount", Source: "HealthKit:MyIPhone"},
				{MsSinceUnixEpoch: 2000, Value: 20, Group: "StepCount", Source: "HealthKit:MyIPhone"},
				{MsSinceUnixEpoch: 3000, Value: 30, Group: "StepCount", Source: "HealthKit:MyIPhone"},
			},
		},
	}
	s := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/series/StepCount/measurements?start_ms=1500&end_ms=2500", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var ms []models.Measurement
	if err := json.NewDecoder(rec.Body).Decode(&ms); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(ms) != 1 {
		t.Fatalf("measurement count = %d, want 1", len(ms))
	}
	if ms[0].Value != 20 {
		t.Errorf("value = %d, want 20", ms[0].Value)
	}
}

// TestQueryMeasurementsBadRange verifies a malformed range parameter is a 400.
func TestQueryMeasurementsBadRange(t *testing.T) {
	s := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/series/StepCount/measurements?start_ms=abc", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestSeriesStatsNotFound verifies an unknown series returns 404.
func TestSeriesStatsNotFound(t *testing.T) {
	s := newTestServer(&fakeStore{stats: map[string]*storage.SeriesStats{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/series/Nope/stats", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestImportRequiresAPIKey verifies the import endpoint rejects requests
// without a valid key.
func TestImportRequiresAPIKey(t *testing.T) {
	s := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader("<HealthData/>"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader("<HealthData/>"))
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key status = %d, want 403", rec.Code)
	}
}

// TestImportXML verifies a full import round trip through the HTTP handler.
func TestImportXML(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)

	body := `<?xml version="1.0" encoding="UTF-8"?>
<HealthData>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="My iPhone" unit="count" startDate="2018-01-01 09:00:00 +0000" endDate="2018-01-01 09:10:00 +0000" value="312"/>
 <Record type="HKQuantityTypeIdentifierBodyMass" sourceName="Scale" unit="kg" startDate="2018-01-01 08:00:00 +0000" endDate="2018-01-01 08:00:00 +0000" value="70.5"/>
</HealthData>`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader(body))
	req.Header.Set("X-API-Key", "test-key")
	req.Header.Set("X-Source-Name", "phone-export")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var result ImportResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.RecordsParsed != 2 {
		t.Errorf("records parsed = %d, want 2", result.RecordsParsed)
	}
	if result.SeriesCreated != 2 {
		t.Errorf("series created = %d, want 2", result.SeriesCreated)
	}

	if len(store.collections) != 1 {
		t.Fatalf("collections stored = %d, want 1", len(store.collections))
	}
	if store.collections[0].Source != "phone-export" {
		t.Errorf("source = %q, want phone-export", store.collections[0].Source)
	}
	if len(store.importLogs) != 1 || store.importLogs[0].Status != "success" {
		t.Errorf("import log not finalized: %+v", store.importLogs)
	}
}

// TestImportBadRecord verifies a fail-fast parse error surfaces as 400 and
// nothing is inserted.
func TestImportBadRecord(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)

	body := `<HealthData>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="P" unit="kg" startDate="2018-01-01 09:00:00 +0000" endDate="2018-01-01 09:10:00 +0000" value="312"/>
</HealthData>`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader(body))
	req.Header.Set("X-API-Key", "test-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(store.collections) != 0 {
		t.Errorf("collections stored = %d, want 0", len(store.collections))
	}
}

// TestImportSkipBad verifies skip_bad=true imports the good records and
// reports the skipped count.
func TestImportSkipBad(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)

	body := `<HealthData>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="P" unit="kg" startDate="2018-01-01 09:00:00 +0000" endDate="2018-01-01 09:10:00 +0000" value="312"/>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="P" unit="count" startDate="2018-01-01 10:00:00 +0000" endDate="2018-01-01 10:10:00 +0000" value="48"/>
</HealthData>`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import?skip_bad=true", strings.NewReader(body))
	req.Header.Set("X-API-Key", "test-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var result ImportResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.RecordsSkipped != 1 {
		t.Errorf("records skipped = %d, want 1", result.RecordsSkipped)
	}
	if result.MeasurementsInserted != 1 {
		t.Errorf("measurements inserted = %d, want 1", result.MeasurementsInserted)
	}
}

// TestListImports verifies the import history endpoint.
func TestListImports(t *testing.T) {
	store := &fakeStore{
		importLogs: []storage.ImportLog{
			{ID: uuid.New(), Source: "phone-export", Status: "success"},
		},
	}
	s := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var logs []storage.ImportLog
	if err := json.NewDecoder(rec.Body).Decode(&logs); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(logs) != 1 || logs[0].Source != "phone-export" {
		t.Errorf("logs = %+v", logs)
	}
}
