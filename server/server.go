// Package server exposes the import pipeline over HTTP: job start and
// polling endpoints, a synchronous scan, Google account management, device
// token registration, and a websocket feed of job updates.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stampbook/stampbook/config"
	"github.com/stampbook/stampbook/google"
	"github.com/stampbook/stampbook/importer"
	"github.com/stampbook/stampbook/logger"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 60 * time.Second
	idleTimeout  = 90 * time.Second

	// ShutdownTimeout is how long to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

// Server is the HTTP surface over the import pipeline.
type Server struct {
	cfg          *config.Config
	store        *importer.Store
	runner       *importer.Runner
	orchestrator *importer.Orchestrator
	google       *google.Service
	log          *zap.SugaredLogger

	httpServer *http.Server

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// New wires a server. The orchestrator's update hook is pointed at the
// websocket broadcast so connected clients see job progress live.
func New(cfg *config.Config, store *importer.Store, runner *importer.Runner, orchestrator *importer.Orchestrator, googleSvc *google.Service) *Server {
	s := &Server{
		cfg:          cfg,
		store:        store,
		runner:       runner,
		orchestrator: orchestrator,
		google:       googleSvc,
		log:          logger.Named("server"),
		clients:      make(map[*wsClient]struct{}),
	}
	orchestrator.OnUpdate = s.BroadcastJob
	return s
}

// Handler returns the configured route mux
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Start runs the HTTP server until Shutdown is called
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	s.log.Infow("Server listening", "addr", s.cfg.Server.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes websocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for client := range s.clients {
		client.close()
	}
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// HandleHealth handles GET /api/health
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// BroadcastJob pushes a job snapshot to the owner's websocket clients.
func (s *Server) BroadcastJob(job *importer.Job) {
	payload, err := json.Marshal(job)
	if err != nil {
		s.log.Errorw("Failed to marshal job for broadcast", "job_id", job.ID, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.userID != job.UserID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Slow client, drop the update rather than block the pipeline
		}
	}
}
