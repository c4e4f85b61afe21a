package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/amanullahtanweer/deepgram-relay/internal/metrics"
	"github.com/amanullahtanweer/deepgram-relay/internal/store"
	"github.com/amanullahtanweer/deepgram-relay/internal/transcriber"
)

// Config contains the HTTP server settings and transcript persistence flags.
type Config struct {
	Host            string
	Port            int
	StaticDir       string
	OutputDir       string
	SaveTranscripts bool
}

// Server is the browser-facing front end: it serves the landing and
// transcription pages, the static asset directory and the transcription
// WebSocket endpoint.
type Server struct {
	config   Config
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	store    *store.SessionStore
	factory  transcriber.Factory
	opts     transcriber.Options
	upgrader websocket.Upgrader

	httpServer *http.Server
	wg         sync.WaitGroup
	startTime  time.Time
}

// New creates the server. factory constructs one transcriber per client
// connection; opts are the immutable transcription options every session
// starts with.
func New(config Config, logger *logrus.Logger, m *metrics.Metrics, st *store.SessionStore,
	factory transcriber.Factory, opts transcriber.Options) *Server {

	s := &Server{
		config:  config,
		logger:  logger,
		metrics: m,
		store:   st,
		factory: factory,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 4096,
			// The transcribe page is served from this same origin; audio
			// tooling (e.g. websocat) has no Origin header at all.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:     mux,
		ReadTimeout: 0, // WebSocket sessions are long-lived
		IdleTimeout: 120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/transcribe", s.handleTranscribePage)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.StaticDir))))
	mux.HandleFunc("/ws/transcribe/deepgram", s.handleTranscribeWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// Start runs the HTTP server until Stop is called. It blocks.
func (s *Server) Start() error {
	s.logger.Infof("transcription relay listening on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the server down and waits for active sessions to finish.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("http server shutdown")
	}
	s.wg.Wait()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.config.StaticDir, "index.html"))
}

func (s *Server) handleTranscribePage(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.config.StaticDir, "transcribe.html"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
