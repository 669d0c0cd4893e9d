package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/healthvault/internal/models"
	"github.com/claude/healthvault/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Store is the storage surface the HTTP handlers need. *storage.DB
// implements it.
type Store interface {
	InsertImportLog(ctx context.Context, log storage.ImportLog) error
	UpdateImportLog(ctx context.Context, id uuid.UUID, log storage.ImportLog) error
	ListImportLogs(ctx context.Context, limit int) ([]storage.ImportLog, error)
	InsertSeriesCollection(ctx context.Context, col *models.SeriesCollection, importID uuid.UUID) (*storage.InsertStats, error)
	ListSeries(ctx context.Context) ([]storage.SeriesInfo, error)
	QueryMeasurements(ctx context.Context, seriesName string, startMs, endMs int64) ([]models.Measurement, error)
	GetSeriesStats(ctx context.Context, seriesName string) (*storage.SeriesStats, error)
	ListFamilies(ctx context.Context) ([]storage.FamilyCount, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store  Store
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(store Store, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:  store,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Import endpoint (API key required)
	s.router.Route("/api/v1/import", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/", s.handleImport)
	})

	// Query endpoints (no auth — tsnet handles access)
	s.router.Get("/api/v1/series", s.handleListSeries)
	s.router.Get("/api/v1/series/{name}/measurements", s.handleQueryMeasurements)
	s.router.Get("/api/v1/series/{name}/stats", s.handleSeriesStats)
	s.router.Get("/api/v1/families", s.handleListFamilies)
	s.router.Get("/api/v1/imports", s.handleListImports)
}
