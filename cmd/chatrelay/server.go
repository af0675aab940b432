package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"chatrelay/internal/constants"
	"chatrelay/internal/metrics"
	"chatrelay/internal/middleware"
	"chatrelay/internal/models"
	"chatrelay/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// QueueReader is the read side of the queue the status server exposes.
type QueueReader interface {
	Ping(ctx context.Context) error
	ListPending(ctx context.Context, limit int) ([]*models.QueuedMessage, error)
}

type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	queue   QueueReader
	verbose bool
	server  *http.Server
}

func NewServer(queue QueueReader, logger *logrus.Logger, verbose bool) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		queue:   queue,
		verbose: verbose,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/queue", s.handleQueue()).Methods(http.MethodGet)
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting status server on port %d", port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.queue.Ping(r.Context()); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Error: "queue store unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

type queueResponse struct {
	Count    int                     `json:"count"`
	Messages []*models.QueuedMessage `json:"messages"`
}

func (s *Server) handleQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := constants.DefaultPendingListMax
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > constants.DefaultPendingListMax {
				http.Error(w, fmt.Sprintf("limit must be between 1 and %d", constants.DefaultPendingListMax), http.StatusBadRequest)
				return
			}
			limit = n
		}

		msgs, err := s.queue.ListPending(r.Context(), limit)
		if err != nil {
			s.logger.WithError(err).Error("Failed to list pending messages")
			http.Error(w, "failed to read queue", http.StatusInternalServerError)
			return
		}

		if msgs == nil {
			msgs = []*models.QueuedMessage{}
		}
		if !s.verbose {
			for _, m := range msgs {
				m.UserID = service.SanitizeUserID(m.UserID)
			}
		}
		writeJSON(w, http.StatusOK, queueResponse{Count: len(msgs), Messages: msgs})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
