//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package server is the HTTP host of the meeting and chat workflows.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/phuocNg964/ProMeet-AI/agent/meetingtask"
	"github.com/phuocNg964/ProMeet-AI/agent/projectmanager"
	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/log"
)

// DefaultWorkers bounds concurrent meeting analyses.
const DefaultWorkers = 8

// Server exposes the workflows over HTTP.
type Server struct {
	meetings *meetingtask.Agent
	chat     *projectmanager.Agent
	router   *mux.Router
	handler  http.Handler
	pool     *ants.Pool
	metrics  *httpMetrics
	gatherer prometheus.Gatherer
	progress *Progress

	mu       sync.Mutex
	running  map[string]bool
	failures map[string]string
	wg       sync.WaitGroup
}

// Option configures the Server.
type Option func(*options)

type options struct {
	workers     int
	corsOrigins []string
	registry    *prometheus.Registry
	progress    *Progress
}

// WithWorkers sets the size of the background analysis pool.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins ...string) Option {
	return func(o *options) { o.corsOrigins = origins }
}

// WithRegistry sets the Prometheus registry used for HTTP metrics and
// served on /metrics.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithProgress reports the tracker's current node in meeting views. Its
// hooks must be installed on the meeting agent's executor.
func WithProgress(p *Progress) Option {
	return func(o *options) { o.progress = p }
}

// New creates a server. Either agent may be nil, which disables its routes.
func New(meetings *meetingtask.Agent, chat *projectmanager.Agent, opts ...Option) (*Server, error) {
	o := &options{workers: DefaultWorkers, corsOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	metrics, err := newHTTPMetrics(o.registry)
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(o.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	s := &Server{
		meetings: meetings,
		chat:     chat,
		router:   mux.NewRouter(),
		pool:     pool,
		metrics:  metrics,
		gatherer: o.registry,
		progress: o.progress,
		running:  make(map[string]bool),
		failures: make(map[string]string),
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   o.corsOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	s.router.Use(c.Handler, s.metrics.middleware, bearerToken)
	s.registerRoutes()
	s.handler = otelhttp.NewHandler(s.router, "promeet.http",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	)
	return s, nil
}

// Handler returns the traced http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.handler }

// Close waits for background runs and releases the pool.
func (s *Server) Close() {
	s.wg.Wait()
	s.pool.Release()
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.meetings != nil {
		api.HandleFunc("/meeting/analyze", s.handleAnalyze).Methods(http.MethodPost)
		api.HandleFunc("/meeting/{id}", s.handleMeetingStatus).Methods(http.MethodGet)
		api.HandleFunc("/meeting/{id}/review", s.handleReview).Methods(http.MethodPost)
	}
	if s.chat != nil {
		api.HandleFunc("/project/chat", s.handleChat).Methods(http.MethodPost)
		api.HandleFunc("/project/chat/{id}", s.handleChatHistory).Methods(http.MethodGet)
		api.HandleFunc("/project/chat/{id}", s.handleChatReset).Methods(http.MethodDelete)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// bearerToken forwards the caller's token to backend requests.
func bearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && strings.TrimSpace(token) != "" {
			r = r.WithContext(backend.WithBearerToken(r.Context(), strings.TrimSpace(token)))
		}
		next.ServeHTTP(w, r)
	})
}

// claim marks a thread as running. It fails if a run is already in flight.
func (s *Server) claim(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[threadID] {
		return false
	}
	s.running[threadID] = true
	delete(s.failures, threadID)
	return true
}

func (s *Server) release(threadID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, threadID)
	if err != nil {
		s.failures[threadID] = err.Error()
	}
}

// forget drops the failure and progress kept for a finished thread.
func (s *Server) forget(threadID string) {
	s.mu.Lock()
	delete(s.failures, threadID)
	s.mu.Unlock()
	s.progress.Forget(threadID)
}

func (s *Server) runState(threadID string) (running bool, failure string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[threadID], s.failures[threadID]
}

// background runs fn in the pool with a context that keeps the request
// values but not its cancellation.
func (s *Server) background(r *http.Request, fn func(ctx context.Context)) error {
	ctx := context.WithoutCancel(r.Context())
	s.wg.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		fn(ctx)
	})
	if err != nil {
		s.wg.Done()
	}
	return err
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

var errThreadBusy = errors.New("a run is already in progress for this thread")
