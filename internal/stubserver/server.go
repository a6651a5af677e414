// Package stubserver is a self-contained scoring backend for local
// development and integration tests: the same endpoints, auth scheme and
// quota behavior the real competition backend exposes, graded against a
// ground-truth CSV instead of the hidden evaluation set.
package stubserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/datathon-cli/internal/config"
)

// Server hosts the stub scoring API.
type Server struct {
	cfg   *config.StubConfig
	store *Store
	http  *http.Server
}

// New builds the server: opens the database, loads the ground truth and
// seeds a demo account when the user table is empty.
func New(cfg *config.StubConfig) (*Server, error) {
	store, err := OpenStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	scorer, err := NewScorer(cfg.TruthPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	quota, err := NewQuota(cfg.ResetSchedule, cfg.MaxDaily)
	if err != nil {
		store.Close()
		return nil, err
	}

	auth := NewAuthenticator(cfg.JWTSecret)
	handler := NewHandler(store, scorer, quota, auth)

	if err := seedDemoUser(store); err != nil {
		store.Close()
		return nil, err
	}

	s := &Server{cfg: cfg, store: store}
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: newRouter(handler, auth),
	}

	log.Info().
		Int("truth_rows", scorer.Rows()).
		Int("max_daily", quota.Max()).
		Str("reset_schedule", cfg.ResetSchedule).
		Msg("Stub scoring backend ready")
	return s, nil
}

// newRouter creates and configures a new Chi router.
func newRouter(h *Handler, auth *Authenticator) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration so the browser dashboard can talk to the stub
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Get("/leaderboard", h.Leaderboard)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Get("/scores", h.Scores)
		r.Get("/remaining-submissions", h.RemainingSubmissions)
		r.Get("/submissions-remaining", h.SubmissionsRemaining)
		r.Post("/upload", h.Upload)
	})

	return r
}

// Handler exposes the router, mainly so tests can mount it on httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.cfg.Port).Msg("Stub server starting")
		if err := s.http.ListenAndServe(); err != http.ErrServerClosed {
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

	log.Info().Msg("Shutting down stub server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return <-errCh
}

// Close releases the store.
func (s *Server) Close() error {
	return s.store.Close()
}

func seedDemoUser(store *Store) error {
	n, err := store.CountUsers()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	user, err := store.CreateUser("demo", "demo@example.com", "datathon")
	if err != nil {
		return fmt.Errorf("failed to seed demo user: %w", err)
	}
	log.Info().
		Str("email", user.Email).
		Str("password", "datathon").
		Msg("Seeded demo account")
	return nil
}
