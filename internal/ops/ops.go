// Package ops is the optional local HTTP surface: liveness, Prometheus
// metrics, and pprof. Disabled by default and bound to loopback; it exposes
// operational state only, never leaderboard data.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"giftboard/internal/conn"
	logx "giftboard/pkg/logx"
)

type Config struct {
	Enabled bool
	Addr    string // default "127.0.0.1:8090"
	// AllowInsecure permits binding to a non-loopback address.
	AllowInsecure bool
}

type Server struct {
	cfg    Config
	state  *conn.State
	active func() int64
	log    logx.Logger
	srv    *http.Server
}

// New builds the server. active reports the number of running supervised
// loops and may be nil.
func New(cfg Config, state *conn.State, active func() int64, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8090"
	}
	if active == nil {
		active = func() int64 { return 0 }
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, state: state, active: active, log: log}
}

// Run serves until ctx is cancelled. Returns nil immediately when disabled.
func (s *Server) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	if !s.cfg.AllowInsecure && !isLoopbackAddr(s.cfg.Addr) {
		return fmt.Errorf("ops: refusing non-loopback bind %q without allow_insecure", s.cfg.Addr)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Get("/", hpprof.Index)
		r.Get("/cmdline", hpprof.Cmdline)
		r.Get("/profile", hpprof.Profile)
		r.Get("/symbol", hpprof.Symbol)
		r.Get("/trace", hpprof.Trace)
		r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
			hpprof.Handler(chi.URLParam(req, "name")).ServeHTTP(w, req)
		})
	})

	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	s.log.Info("ops server listening", logx.String("addr", s.cfg.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"linked":          snap.Linked,
		"last_event_at":   snap.LastEventAt,
		"last_attempt_at": snap.LastAttemptAt,
		"backoff_seconds": snap.Backoff.Seconds(),
		"active_loops":    s.active(),
	})
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	if host == "localhost" || host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
