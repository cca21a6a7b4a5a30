// Package web serves the CSV upload front-end: upload a listing export,
// review warnings, download the annotated predictions file.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/pdx-proptype/internal/audit"
	"github.com/pdx-proptype/internal/pipeline"
)

// Server hosts the upload and prediction endpoints.
type Server struct {
	runner     *pipeline.Runner
	store      *audit.Store
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a web server over a loaded pipeline runner. store
// may be nil when run auditing is not configured.
func NewServer(runner *pipeline.Runner, store *audit.Store, host string, port int) *Server {
	s := &Server{runner: runner, store: store}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/predict", s.handlePredict).Methods("POST")
	s.router.HandleFunc("/predict/download", s.handleDownload).Methods("POST")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// Start runs the server until SIGINT/SIGTERM, then shuts down
// gracefully.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
