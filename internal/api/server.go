package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/mdchunk/internal/config"
	"github.com/dgallion1/mdchunk/internal/pathstore"
	"github.com/dgallion1/mdchunk/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DocumentStore is the subset of the pathstore client used to browse and
// remove published documents.
type DocumentStore interface {
	GetNode(ctx context.Context, key string) (*pathstore.NodeResponse, error)
	ListChildren(ctx context.Context, key string, limit int) ([]pathstore.ListChildrenResponse, error)
	DeleteNode(ctx context.Context, key string, recursive bool) error
}

// Server is the HTTP API server for mdchunk.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        DocumentStore
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. store may be nil when
// chunks are not published; the document endpoints then answer 503.
func NewServer(orch *pipeline.Orchestrator, store DocumentStore, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		store:        store,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/chunk", s.handleChunk)
		r.Post("/api/chunk/batch", s.handleChunkBatch)
		r.Post("/api/analyze", s.handleAnalyze)

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/ingest/{jobID}/chunks", s.handleIngestChunks)
		r.Post("/api/ingest/batch", s.handleBatchIngest)

		r.Get("/api/stats", s.handleStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
