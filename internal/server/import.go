package server

import (
	"net/http"
	"time"

	"github.com/claude/healthvault/internal/healthkit"
	"github.com/claude/healthvault/internal/storage"
	"github.com/google/uuid"
)

// ImportResult is the response body for a successful import request.
type ImportResult struct {
	ImportID               uuid.UUID `json:"import_id"`
	RecordsParsed          int       `json:"records_parsed"`
	RecordsSkipped         int       `json:"records_skipped"`
	SeriesCreated          int       `json:"series_created"`
	MeasurementsInserted   int64     `json:"measurements_inserted"`
	MeasurementsDuplicated int64     `json:"measurements_duplicated"`
	DurationMs             int       `json:"duration_ms"`
}

// handleImport accepts a raw HealthKit export XML document in the request
// body and stores its series. skip_bad=true switches the parser from
// fail-fast to collect-and-continue.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	skipBad := r.URL.Query().Get("skip_bad") == "true"
	source := r.Header.Get("X-Source-Name")
	if source == "" {
		source = "upload"
	}

	start := time.Now()
	parser := healthkit.New(s.log, skipBad)
	result, err := parser.Parse(r.Body, source)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	importID := uuid.New()
	logRow := storage.ImportLog{ID: importID, Source: source, Status: "running"}
	if err := s.store.InsertImportLog(r.Context(), logRow); err != nil {
		s.log.Error("insert import log", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	inserted, insertErr := s.store.InsertSeriesCollection(r.Context(), result.Collection, importID)

	durationMs := int(time.Since(start).Milliseconds())
	logRow.RecordsParsed = result.Records
	logRow.RecordsSkipped = len(result.Skipped)
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
	if err := s.store.UpdateImportLog(r.Context(), importID, logRow); err != nil {
		s.log.Warn("updating import log failed", "import_id", importID, "error", err)
	}

	if insertErr != nil {
		s.log.Error("import error", "error", insertErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": insertErr.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ImportResult{
		ImportID:               importID,
		RecordsParsed:          result.Records,
		RecordsSkipped:         len(result.Skipped),
		SeriesCreated:          inserted.SeriesCreated,
		MeasurementsInserted:   inserted.MeasurementsInserted,
		MeasurementsDuplicated: inserted.MeasurementsDuplicated,
		DurationMs:             durationMs,
	})
}
