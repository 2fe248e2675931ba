// Package api exposes the HTTP control surface and the WebSocket event
// stream. Requests are translated into commands on the ipc channel;
// replies come back on per-request slots.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/internal/config"
	"github.com/kibrowser/ki-browser/internal/events"
	"github.com/kibrowser/ki-browser/internal/ipc"
	"github.com/kibrowser/ki-browser/internal/tabs"
)

const shutdownGrace = 5 * time.Second

// Server is the HTTP control plane.
type Server struct {
	cfg      config.ServerConfig
	ch       *ipc.Channel
	registry *tabs.Registry
	bus      *events.Bus
	logger   *zap.Logger
	version  string

	enabled atomic.Bool
	httpSrv *http.Server
}

// NewServer wires the control surface. The bus may be nil when the
// WebSocket stream is not needed.
func NewServer(cfg config.ServerConfig, ch *ipc.Channel, registry *tabs.Registry, bus *events.Bus, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		ch:       ch,
		registry: registry,
		bus:      bus,
		logger:   logger.Named("api"),
		version:  version,
	}
	s.enabled.Store(cfg.Enabled)
	return s
}

// Enabled reports whether command endpoints accept requests.
func (s *Server) Enabled() bool { return s.enabled.Load() }

// SetEnabled flips the command endpoints on or off. Health, status and
// toggle stay reachable either way.
func (s *Server) SetEnabled(on bool) {
	s.enabled.Store(on)
	if on {
		s.logger.Info("api enabled by request")
	} else {
		s.logger.Info("api disabled by request")
	}
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleAPIStatus)
	r.Post("/api/toggle", s.handleAPIToggle)

	r.Group(func(r chi.Router) {
		r.Use(s.requireEnabled)

		r.Get("/tabs", s.handleListTabs)
		r.Post("/tabs/new", s.handleCreateTab)
		r.Post("/tabs/close", s.handleCloseTab)
		r.Post("/navigate", s.handleNavigate)
		r.Post("/click", s.handleClick)
		r.Post("/type", s.handleType)
		r.Post("/evaluate", s.handleEvaluate)
		r.Get("/screenshot", s.handleScreenshot)
		r.Post("/scroll", s.handleScroll)
		r.Get("/dom/element", s.handleFindElement)

		r.Get("/ws", s.handleWebSocket)
	})
	return r
}

// Run serves until the context is canceled, then drains in-flight
// handlers for up to five seconds.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control api listening", zap.String("addr", s.cfg.Addr()))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown did not drain cleanly", zap.Error(err))
		return err
	}
	s.logger.Info("control api stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) requireEnabled(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.enabled.Load() {
			writeError(w, http.StatusServiceUnavailable, "API is disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}
