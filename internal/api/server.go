package api

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dherrin84/mortscan/internal/cache"
	"github.com/dherrin84/mortscan/internal/config"
	"github.com/dherrin84/mortscan/internal/extract"
	"github.com/dherrin84/mortscan/internal/history"
	"github.com/dherrin84/mortscan/internal/pipeline"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

//go:embed index.html
var indexHTML []byte

// Server is the HTTP server for mortscan: the browser UI plus the
// analysis API it talks to.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	history      *history.Store
	cache        *cache.Results
	stats        *extract.Stats
	log          *slog.Logger
	cfg          config.Config
	ocrAvailable bool
}

// NewServer creates and configures the HTTP server. history may be nil
// when persistence is disabled.
func NewServer(orch *pipeline.Orchestrator, hist *history.Store, results *cache.Results, stats *extract.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		history:      hist,
		cache:        results,
		stats:        stats,
		log:          log,
		cfg:          cfg,
		ocrAvailable: cfg.OCREnabled && extract.OCRAvailable(),
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

	r.Get("/", s.handleIndex)
	r.Get("/api/health", s.handleHealth)

	r.Post("/api/analyze", s.handleAnalyze)
	r.Get("/api/progress/{sessionID}", s.handleProgress)
	r.Get("/api/analyze/{sessionID}/result", s.handleResult)

	r.Get("/api/history", s.handleHistory)
	r.Get("/api/stats", s.handleStats)
	r.Post("/api/toc", s.handleTOC)

	s.router = r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":        "healthy",
		"version":       Version,
		"ocr_available": s.ocrAvailable,
		"dependencies": map[string]bool{
			"pdftoppm":  extract.OCRAvailable(),
			"pdftotext": extract.PdftotextAvailable(),
		},
	})
}
