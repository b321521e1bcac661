// Package api serves the dashboard's JSON endpoints, the status
// websocket and the Prometheus scrape endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/scantrade/engine"
	"github.com/rustyeddy/scantrade/journal"
)

type Config struct {
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8000,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type Deps struct {
	Engine  *engine.Engine
	History journal.History
	Metrics http.Handler // optional
	Version string
	Log     zerolog.Logger
}

type Server struct {
	cfg    Config
	deps   Deps
	router *mux.Router
	hub    *Hub
	srv    *http.Server
	log    zerolog.Logger
}

// NewServer builds the router and subscribes the websocket hub to the
// engine's ticks.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: mux.NewRouter(),
		log:    deps.Log.With().Str("component", "api").Logger(),
	}
	s.hub = NewHub(s.log)
	deps.Engine.OnTick(func(st engine.SystemStatus) { s.hub.Broadcast(st) })
	s.routes()

	s.srv = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }
func (s *Server) Hub() *Hub             { return s.hub }

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestID, s.accessLog, s.cors)

	// preflight; cors answers it before the handler runs
	r.Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	r.HandleFunc("/ws", s.hub.ServeWS(func() any { return s.deps.Engine.SystemStatus() })).Methods(http.MethodGet)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics).Methods(http.MethodGet)
	}

	j := r.PathPrefix("/").Subrouter()
	j.Use(s.timeout, jsonContentType)

	j.HandleFunc("/", s.root).Methods(http.MethodGet)
	j.HandleFunc("/health", s.health).Methods(http.MethodGet)

	j.HandleFunc("/api/health-score", s.healthScore).Methods(http.MethodGet)
	j.HandleFunc("/api/system-status", s.systemStatus).Methods(http.MethodGet)
	j.HandleFunc("/api/quick-stats", s.quickStats).Methods(http.MethodGet)
	j.HandleFunc("/api/portfolio", s.portfolio).Methods(http.MethodGet)

	j.HandleFunc("/api/scanners", s.listScanners).Methods(http.MethodGet)
	j.HandleFunc("/api/scanners/{id}", s.getScanner).Methods(http.MethodGet)
	j.HandleFunc("/api/scanners/{id}/toggle", s.toggleScanner).Methods(http.MethodPost)
	j.HandleFunc("/api/scanners/{id}/signals", s.scannerSignals).Methods(http.MethodGet)

	j.HandleFunc("/api/bots", s.listBots).Methods(http.MethodGet)
	j.HandleFunc("/api/bots/{id}", s.getBot).Methods(http.MethodGet)
	j.HandleFunc("/api/bots/{id}/toggle", s.toggleBot).Methods(http.MethodPost)
	j.HandleFunc("/api/bots/{id}/trades", s.botTrades).Methods(http.MethodGet)

	j.HandleFunc("/api/governance/risk-limits", s.riskLimits).Methods(http.MethodGet)
	j.HandleFunc("/api/governance/rules", s.rules).Methods(http.MethodGet)

	j.HandleFunc("/api/logs/trades", s.tradeLogs).Methods(http.MethodGet)
	j.HandleFunc("/api/logs/signals", s.signalLogs).Methods(http.MethodGet)
	j.HandleFunc("/api/logs/system", s.systemLogs).Methods(http.MethodGet)

	r.NotFoundHandler = jsonContentType(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	}))
}

// ListenAndServe serves until ctx is cancelled, then shuts down with a
// grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("api listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := s.srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.log.Info().Msg("api stopped")
	return nil
}
