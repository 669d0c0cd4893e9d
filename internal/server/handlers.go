package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.store.ListSeries(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleQueryMeasurements(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	startMs, endMs, err := parseMsRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	measurements, err := s.store.QueryMeasurements(r.Context(), name, startMs, endMs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, measurements)
}

func (s *Server) handleSeriesStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	stats, err := s.store.GetSeriesStats(r.Context(), name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := s.store.ListFamilies(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, families)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	logs, err := s.store.ListImportLogs(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseMsRange reads optional start_ms and end_ms query parameters as unix
// millisecond bounds. Zero means unbounded.
func parseMsRange(r *http.Request) (startMs, endMs int64, err error) {
	if v := r.URL.Query().Get("start_ms"); v != "" {
		startMs, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, 0, err
		}
	}
	if v := r.URL.Query().Get("end_ms"); v != "" {
		endMs, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, 0, err
		}
	}
	return startMs, endMs, nil
}
