package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/config"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
)

// DebugServer exposes profiling endpoints and optional extra handlers on an
// operator-only listener, away from the public API.
type DebugServer struct {
	srv    *http.Server
	logger *logging.Logger
}

// NewDebugServer builds the listener; it returns nil when PPROF_ENABLED is false.
// extra maps additional paths (for example /metrics) onto the same mux.
func NewDebugServer(cfg config.Config, logger *logging.Logger, extra map[string]http.Handler) *DebugServer {
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.PprofEnabled {
		logger.Info("debug server disabled", "reason", "PPROF_ENABLED=false")
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	for path, handler := range extra {
		if handler != nil {
			mux.Handle(path, handler)
		}
	}

	return &DebugServer{
		srv: &http.Server{
			Addr:              cfg.PprofAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.Named("debug"),
	}
}

func (d *DebugServer) Handler() http.Handler {
	if d == nil {
		return http.NotFoundHandler()
	}
	return d.srv.Handler
}

// ListenAndServe blocks until Shutdown. A nil server returns immediately.
func (d *DebugServer) ListenAndServe() error {
	if d == nil {
		return nil
	}
	d.logger.Info("debug server starting", "addr", d.srv.Addr)
	if err := d.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (d *DebugServer) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	if err := d.srv.Shutdown(ctx); err != nil {
		return err
	}
	d.logger.Info("debug server stopped")
	return nil
}
