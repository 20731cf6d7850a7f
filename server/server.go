// Package server exposes parsing, streaming sessions and highlight
// resolution over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blockstream/circuitbreaker"
	"blockstream/config"
	"blockstream/highlight"
	"blockstream/internal"
	"blockstream/logger"
	"blockstream/speech"
)

// Server handles HTTP requests
type Server struct {
	config   *config.Config
	log      logger.Logger
	version  string
	engine   *highlight.Engine
	sessions *SessionCache
	metrics  *Metrics
	speech   *speech.Coordinator
	health   *circuitbreaker.HealthManager
	mux      *http.ServeMux
}

// New creates a server. Speech routes answer 503 unless the config names a
// speech command or WithSpeaker is used.
func New(cfg *config.Config, log logger.Logger, version string) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		config:   cfg,
		log:      log,
		version:  version,
		sessions: NewSessionCache(cfg.SessionTTL, log),
		health:   circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig(), log),
	}
	s.metrics = NewMetrics(s.sessions.Len)

	engine, err := highlight.NewEngine(highlight.Options{
		SeparatorWidth: cfg.SeparatorWidth,
		DedupePrefix:   cfg.DedupePrefixLength,
		Labels:         cfg.SemanticLabels,
		Colors:         cfg.Colors,
		CacheSize:      cfg.CacheSize,
		DevMode:        cfg.DevMode,
		Log:            log,
		OnDrop: func(reason string) {
			s.metrics.HighlightsDropped.WithLabelValues(reason).Inc()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create highlight engine: %w", err)
	}
	s.engine = engine

	if len(cfg.SpeechCommand) > 0 {
		s.WithSpeaker(speech.CommandSpeaker{Command: cfg.SpeechCommand})
	}

	s.routes()
	return s, nil
}

// speechBackend names the speech backend in circuit breaker records
const speechBackend = "speech"

// WithSpeaker replaces the speech backend
func (s *Server) WithSpeaker(speaker speech.Speaker) *Server {
	if s.speech != nil {
		s.speech.Stop()
	}
	s.speech = speech.NewCoordinator(speaker, s.log)
	s.speech.SetHealthManager(s.health, speechBackend)
	return s
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Sessions returns the streaming session cache
func (s *Server) Sessions() *SessionCache {
	return s.sessions
}

func (s *Server) routes() {
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/{$}", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/v1/blocks", s.handleParse)
	s.mux.HandleFunc("/v1/blocks/stream", s.handleParseStream)
	s.mux.HandleFunc("/v1/sessions/{id}/chunks", s.handleSessionChunk)
	s.mux.HandleFunc("/v1/sessions/{id}/finish", s.handleSessionFinish)
	s.mux.HandleFunc("/v1/highlights/resolve", s.handleResolve)
	s.mux.HandleFunc("/v1/render", s.handleRender)
	s.mux.HandleFunc("/v1/speech", s.handleSpeech)
}

// Handler returns the root handler with request ID tagging
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = internal.NewRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := internal.WithRequestID(r.Context(), requestID)

		start := time.Now()
		s.mux.ServeHTTP(w, r.WithContext(ctx))
		s.log.Debug(logger.ComponentServer, logger.CategoryRequest, requestID, "Request handled", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for streaming responses
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(logger.ComponentServer, logger.CategoryRequest, "", "Blockstream server started", map[string]interface{}{
			"address": fmt.Sprintf("http://localhost:%s", s.config.Port),
		})
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		if s.speech != nil {
			s.speech.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info(logger.ComponentServer, logger.CategoryRequest, "", "Blockstream server shutting down", nil)
		return server.Shutdown(shutdownCtx)
	}
}
