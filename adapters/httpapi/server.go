// Package httpapi exposes the pipeline over HTTP: starting runs, listing
// and fetching them, and rendering run reports.
package httpapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gocre/app"
	"gocre/ports"
)

// Server routes API requests to the pipeline and the run ledger.
type Server struct {
	router     *chi.Mux
	pipeline   *app.Pipeline
	reader     ports.DatasetReaderPort
	ledger     ports.RunLedgerReaderPort
	estimators ports.EstimatorRegistryPort
}

func NewServer(pipeline *app.Pipeline, reader ports.DatasetReaderPort, ledger ports.RunLedgerReaderPort, estimators ports.EstimatorRegistryPort) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		pipeline:   pipeline,
		reader:     reader,
		ledger:     ledger,
		estimators: estimators,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Post("/api/runs", s.handleStartRun)
	s.router.Get("/api/runs", s.handleListRuns)
	s.router.Get("/api/runs/{id}", s.handleGetRun)
	s.router.Get("/api/runs/{id}/report", s.handleRunReport)
	s.router.Get("/api/methods", s.handleListMethods)
}

// Router exposes the handler for embedding and tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves the API until the listener fails.
func (s *Server) Start(addr string) error {
	log.Printf("[API] Listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}
