// Package server assembles the HTTP surface of the bridge and runs it with
// graceful shutdown that drains live calls.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxbridge/voxbridge/pkg/bridge/config"
	"github.com/voxbridge/voxbridge/pkg/bridge/handlers"
	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	"github.com/voxbridge/voxbridge/pkg/bridge/mw"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/telephony"
)

// Deps anchor the server to the rest of the bridge.
type Deps struct {
	Registry *session.Registry
	Runner   handlers.CallRunner
	Metrics  *metrics.Metrics
	Prom     *prometheus.Registry
	Log      *slog.Logger
}

type Server struct {
	cfg     config.Config
	deps    Deps
	log     *slog.Logger
	handler http.Handler

	mu   sync.Mutex
	addr string
}

func New(cfg config.Config, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, deps: deps, log: log}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	h := handlers.New(handlers.Deps{
		Registry:   s.deps.Registry,
		Runner:     s.deps.Runner,
		Metrics:    s.deps.Metrics,
		PublicHost: s.cfg.PublicHost,
		StreamCfg: telephony.StreamConfig{
			PingInterval:      s.cfg.WSPingInterval,
			WriteTimeout:      s.cfg.WSWriteTimeout,
			MediaQueueSize:    s.cfg.MediaQueueSize,
			PriorityQueueSize: s.cfg.PriorityQueueSize,
		},
		Log: s.log,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(func(next http.Handler) http.Handler { return mw.Recover(s.log, next) })
	r.Use(func(next http.Handler) http.Handler { return mw.AccessLog(s.log, next) })

	r.Post("/incoming-call", h.IncomingCall)
	r.Get("/media-stream", h.MediaStream)
	r.Get("/healthz", h.Healthz)
	if s.deps.Prom != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.deps.Prom, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler exposes the routed surface, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr reports the bound listen address once Run has opened the listener.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down: close the listener,
// wait out live calls for the grace period and cancel whatever is left.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	s.log.Info("listening", "addr", s.Addr())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := srv.Shutdown(graceCtx); err != nil {
		s.log.Warn("http shutdown", "error", err)
	}
	if !s.deps.Registry.Wait(graceCtx) {
		s.log.Warn("grace period elapsed, cancelling live calls",
			"sessions", s.deps.Registry.Len())
		s.deps.Registry.CancelAll()
	}
	s.log.Info("server stopped")
	return nil
}
