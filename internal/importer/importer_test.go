package importer

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

const sampleExport = `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_US">
 <ExportDate value="2018-02-01 10:00:00 +0000"/>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="My iPhone" unit="count" startDate="2018-01-01 09:00:00 +0000" endDate="2018-01-01 09:10:00 +0000" value="312"/>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="My iPhone" unit="count" startDate="2018-01-01 10:00:00 +0000" endDate="2018-01-01 10:10:00 +0000" value="48"/>
 <Record type="HKQuantityTypeIdentifierBodyMass" sourceName="Scale" unit="kg" startDate="2018-01-01 08:00:00 +0000" endDate="2018-01-01 08:00:00 +0000" value="70.5"/>
</HealthData>
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSampleXML(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.xml")
	if err := os.WriteFile(path, []byte(sampleExport), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDryRunImport parses an export and reports stats without a database.
func TestDryRunImport(t *testing.T) {
	path := writeSampleXML(t)

	imp := New(nil, nil, testLogger(), true, false)
	stats, err := imp.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if stats.FilesProcessed != 1 {
		t.Errorf("files processed = %d, want 1", stats.FilesProcessed)
	}
	if stats.RecordsParsed != 3 {
		t.Errorf("records parsed = %d, want 3", stats.RecordsParsed)
	}
	if stats.SeriesParsed != 2 {
		t.Errorf("series parsed = %d, want 2", stats.SeriesParsed)
	}
	if stats.MeasurementsParsed != 3 {
		t.Errorf("measurements parsed = %d, want 3", stats.MeasurementsParsed)
	}
	if stats.MeasurementsInserted != 0 {
		t.Errorf("dry run inserted %d measurements", stats.MeasurementsInserted)
	}
}

// TestDryRunImportZip resolves an export.zip before parsing.
func TestDryRunImportZip(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "export.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("apple_health_export/export.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(sampleExport)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	imp := New(nil, nil, testLogger(), true, false)
	stats, err := imp.Import(context.Background(), zipPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.RecordsParsed != 3 {
		t.Errorf("records parsed = %d, want 3", stats.RecordsParsed)
	}
}

// TestDryRunFailFast surfaces the first bad record when skip mode is off.
func TestDryRunFailFast(t *testing.T) {
	bad := `<?xml version="1.0" encoding="UTF-8"?>
<HealthData>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="P" unit="kg" startDate="2018-01-01 09:00:00 +0000" endDate="2018-01-01 09:10:00 +0000" value="312"/>
</HealthData>`
	path := filepath.Join(t.TempDir(), "export.xml")
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	imp := New(nil, nil, testLogger(), true, false)
	if _, err := imp.Import(context.Background(), path); err == nil {
		t.Fatal("expected error for unit mismatch")
	}
}

// TestStateDBRoundTrip stores and re-checks an imported-file record.
func TestStateDBRoundTrip(t *testing.T) {
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatalf("open state db: %v", err)
	}
	defer state.Close()

	done, err := state.IsImported("export.zip", 100, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("fresh state db claims file imported")
	}

	if err := state.MarkImported("export.zip", 100, "abc"); err != nil {
		t.Fatal(err)
	}

	done, err = state.IsImported("export.zip", 100, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("marked file not reported as imported")
	}

	// A changed hash means a changed file, which should import again.
	done, err = state.IsImported("export.zip", 100, "different")
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("changed hash reported as imported")
	}
}

// TestImportSkipsKnownFile short-circuits before parsing when the state db
// already has the file.
func TestImportSkipsKnownFile(t *testing.T) {
	path := writeSampleXML(t)

	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	hash, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := state.MarkImported(path, info.Size(), hash); err != nil {
		t.Fatal(err)
	}

	imp := New(nil, state, testLogger(), true, false)
	stats, err := imp.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.FilesSkipped != 1 {
		t.Errorf("files skipped = %d, want 1", stats.FilesSkipped)
	}
	if stats.FilesProcessed != 0 {
		t.Errorf("files processed = %d, want 0", stats.FilesProcessed)
	}
}

// TestHashFile hashes are stable across calls and change with content.
func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xml")
	if err := os.WriteFile(a, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := HashFile(a)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashFile(a)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash not stable: %s vs %s", h1, h2)
	}

	b := filepath.Join(dir, "b.xml")
	if err := os.WriteFile(b, []byte("world"), 0o644); err != nil {
		t.Fatal(err)
	}
	h3, err := HashFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h3 {
		t.Error("different content produced identical hashes")
	}
}
