// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package gateway is the HTTP surface: routing, middleware, health and
// admin endpoints, and the JSON envelopes around the pipeline.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/unigate/unigate/breaker"
	"github.com/unigate/unigate/cache"
	"github.com/unigate/unigate/pipeline"
	"github.com/unigate/unigate/providers"
	"github.com/unigate/unigate/shared/logger"
)

// Config tunes the HTTP server.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server wires the pipeline to HTTP routes.
type Server struct {
	pipeline *pipeline.Pipeline
	registry *providers.Registry
	cache    *cache.MultiLevel
	breakers *breaker.Set
	config   Config
	log      *logger.Logger
}

// NewServer creates the gateway server.
func NewServer(p *pipeline.Pipeline, registry *providers.Registry, mlc *cache.MultiLevel, breakers *breaker.Set, cfg Config) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{
		pipeline: p,
		registry: registry,
		cache:    mlc,
		breakers: breakers,
		config:   cfg,
		log:      logger.New("gateway"),
	}
}

// Handler builds the full middleware + route stack.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/health/ready", s.readinessHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/chat", s.chatHandler).Methods("POST")
	r.HandleFunc("/api/search", s.searchHandler).Methods("POST")

	r.HandleFunc("/api/crypto/price/{id}", s.cryptoPriceHandler).Methods("GET")
	r.HandleFunc("/api/stocks/quote/{symbol}", s.stockQuoteHandler).Methods("GET")
	r.HandleFunc("/api/market/summary", s.marketSummaryHandler).Methods("GET")
	r.HandleFunc("/api/news/search", s.newsSearchHandler).Methods("GET")
	r.HandleFunc("/api/weather", s.weatherHandler).Methods("GET")
	r.HandleFunc("/api/geocode", s.geocodeHandler).Methods("GET")
	r.HandleFunc("/api/geocode/reverse", s.reverseGeocodeHandler).Methods("GET")
	r.HandleFunc("/api/translate", s.translateHandler).Methods("POST")
	r.HandleFunc("/api/media/search", s.mediaSearchHandler).Methods("GET")
	r.HandleFunc("/api/medical/{topic}", s.medicalHandler).Methods("GET")

	r.HandleFunc("/api/admin/cache/invalidate", s.adminInvalidateHandler).Methods("POST")
	r.HandleFunc("/api/admin/providers", s.adminProvidersHandler).Methods("GET")

	r.Use(requestIDMiddleware, s.recoveryMiddleware, s.metricsMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return c.Handler(r)
}

// ListenAndServe runs the server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("", "gateway listening", map[string]interface{}{"addr": s.config.ListenAddr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// errorEnvelope is the uniform failure body.
type errorEnvelope struct {
	RequestID  string `json:"request_id"`
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		RequestID:  RequestIDFrom(r.Context()),
		Error:      message,
		StatusCode: status,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// healthHandler is the liveness probe.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// readinessHandler reports per-component status: registered providers,
// breaker states, and cache counters. Ready means at least one
// provider is eligible.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	snapshots := s.registry.SnapshotAll()
	ready := false
	for _, snap := range snapshots {
		if snap.Status == providers.StatusAvailable {
			ready = true
			break
		}
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	s.writeJSON(w, status, map[string]any{
		"status":    state,
		"providers": snapshots,
		"breakers":  s.breakers.Snapshot(),
		"cache":     s.cache.Stats(),
	})
}
