// Package inbox locates the export.xml inside the various shapes a
// HealthKit export arrives in: a bare XML file, the export.zip archive that
// the Health app produces, or an inbox directory containing
// health_kit/export.zip.
package inbox

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// archiveXMLPath is where the Health app places the export inside
// export.zip.
const archiveXMLPath = "apple_health_export/export.xml"

// Resolve returns a path to a readable export.xml for the given input. When
// the input is a zip archive the XML is extracted to a temporary file;
// cleanup removes it and must always be called.
func Resolve(path string) (xmlPath string, cleanup func(), err error) {
	noop := func() {}

	info, err := os.Stat(path)
	if err != nil {
		return "", noop, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		zipPath := filepath.Join(path, "health_kit", "export.zip")
		if _, err := os.Stat(zipPath); err != nil {
			return "", noop, fmt.Errorf("inbox %s has no health_kit/export.zip: %w", path, err)
		}
		return extractExport(zipPath)
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return extractExport(path)
	}
	return path, noop, nil
}

// extractExport copies apple_health_export/export.xml out of the archive
// into a temporary file.
func extractExport(zipPath string) (string, func(), error) {
	noop := func() {}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", noop, fmt.Errorf("opening archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	src, err := zr.Open(archiveXMLPath)
	if err != nil {
		return "", noop, fmt.Errorf("archive %s has no %s: %w", zipPath, archiveXMLPath, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "healthvault-export-*.xml")
	if err != nil {
		return "", noop, fmt.Errorf("creating temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, fmt.Errorf("extracting %s: %w", archiveXMLPath, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("closing temp file: %w", err)
	}
	return tmp.Name(), cleanup, nil
}
