// Package outputs serves the recorded output bundles over HTTP, so
// application pipelines can read connection endpoints and secret
// references without access to the state backend itself. Read-only:
// the only writers are provisioning runs.
package outputs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/edvin/landingzone/internal/state"
)

type Server struct {
	router chi.Router
	logger zerolog.Logger
	store  state.Store
}

func NewServer(store state.Store, logger zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.With().Str("component", "outputs-server").Logger(),
		store:  store,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/environments/{environment}/hub", s.handleHub)
		r.Get("/environments/{environment}/spokes", s.handleSpokeList)
		r.Get("/environments/{environment}/spokes/{domain}", s.handleSpoke)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe blocks until the context is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info().Str("addr", addr).Msg("serving outputs")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHub(w http.ResponseWriter, r *http.Request) {
	env := chi.URLParam(r, "environment")
	hub, err := s.store.LoadHubOutputs(r.Context(), env)
	if errors.Is(err, state.ErrHubNotProvisioned) {
		writeError(w, http.StatusNotFound, "hub not provisioned")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("environment", env).Msg("load hub outputs")
		writeError(w, http.StatusInternalServerError, "state backend error")
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (s *Server) handleSpokeList(w http.ResponseWriter, r *http.Request) {
	env := chi.URLParam(r, "environment")
	domains, err := s.store.ListSpokeDomains(r.Context(), env)
	if err != nil {
		s.logger.Error().Err(err).Str("environment", env).Msg("list spokes")
		writeError(w, http.StatusInternalServerError, "state backend error")
		return
	}
	if domains == nil {
		domains = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": domains})
}

func (s *Server) handleSpoke(w http.ResponseWriter, r *http.Request) {
	env := chi.URLParam(r, "environment")
	domain := chi.URLParam(r, "domain")
	spoke, err := s.store.LoadSpokeOutputs(r.Context(), env, domain)
	if errors.Is(err, state.ErrSpokeNotProvisioned) {
		writeError(w, http.StatusNotFound, "spoke not provisioned")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("environment", env).Str("domain", domain).Msg("load spoke outputs")
		writeError(w, http.StatusInternalServerError, "state backend error")
		return
	}
	writeJSON(w, http.StatusOK, spoke)
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
