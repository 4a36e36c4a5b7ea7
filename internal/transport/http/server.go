// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"

	"github.com/opentrusty/seedkeeper/internal/observability/logger"
)

// ServerConfig holds listener and lifecycle settings.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// DrainDuration is how long Shutdown reports not-ready before closing
	// the listener, so load balancers stop routing first.
	DrainDuration time.Duration
	// AdminAddr serves /drain and /undrain. They are never mounted on the
	// public router; an empty AdminAddr leaves them unserved.
	AdminAddr string
}

// Server runs the router and tracks readiness.
type Server struct {
	cfg     ServerConfig
	srv     *http.Server
	admin   *http.Server
	isReady atomic.Bool
	errCh   chan error
}

// NewServer registers the health routes on router, builds the admin router
// and wraps both in http.Servers.
func NewServer(cfg ServerConfig, router chi.Router) *Server {
	s := &Server{
		cfg:   cfg,
		errCh: make(chan error, 2),
	}
	s.isReady.Store(true)

	router.Get("/livez", s.handleLiveness)
	router.Get("/readyz", s.handleReadiness)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	s.admin = &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      s.AdminHandler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// AdminHandler returns the operator routes: the health routes plus the drain
// controls.
func (s *Server) AdminHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware())
	r.Get("/livez", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Post("/drain", s.handleDrain)
	r.Post("/undrain", s.handleUndrain)
	return r
}

// RunInBackground starts listening. A listener failure is delivered on Err.
func (s *Server) RunInBackground() {
	go s.listen("http", s.srv)
	if s.cfg.AdminAddr != "" {
		go s.listen("admin", s.admin)
	}
}

func (s *Server) listen(name string, srv *http.Server) {
	slog.Info("starting "+name+" server", logger.Component("server"), logger.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", logger.Component("server"), logger.String("listener", name), logger.Error(err))
		s.errCh <- err
	}
}

// Err reports listener failures.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Ready reports whether the server accepts traffic.
func (s *Server) Ready() bool {
	return s.isReady.Load()
}

// Shutdown marks the server not ready, waits for the drain period and then
// shuts down gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.isReady.Store(false)
	if s.cfg.DrainDuration > 0 {
		slog.Info("draining", logger.Component("server"), logger.Duration(s.cfg.DrainDuration.Milliseconds()))
		select {
		case <-time.After(s.cfg.DrainDuration):
		case <-ctx.Done():
		}
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := s.admin.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped", logger.Component("server"))
	return nil
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.isReady.Load() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !s.isReady.Swap(false) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "already draining"})
		return
	}
	slog.InfoContext(r.Context(), "server marked as not ready", logger.Component("server"))
	respondJSON(w, http.StatusOK, map[string]string{"status": "draining"})
}

func (s *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if s.isReady.Swap(true) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "already ready"})
		return
	}
	slog.InfoContext(r.Context(), "server marked as ready", logger.Component("server"))
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
