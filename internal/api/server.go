// Package api provides the target management HTTP API.
//
// The API is the write side of the system: it registers and deletes targets
// in the repository. The evaluation cycle picks changes up at its next
// snapshot. No HTML, no sessions; authentication is a deployment concern
// handled in front of this service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockwatch/internal/errors"
	"stockwatch/internal/models"
	"stockwatch/internal/store"
)

// Server serves the target management API.
type Server struct {
	repo   store.TargetRepository
	logger zerolog.Logger
	http   *http.Server
}

// NewServer creates a new API server listening on addr.
func NewServer(addr string, repo store.TargetRepository, logger zerolog.Logger) *Server {
	s := &Server{
		repo:   repo,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/targets", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Delete("/{symbol}", s.handleDelete)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("API server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// createRequest is the POST /api/targets body. Threshold accepts both a
// JSON number and a numeric string.
type createRequest struct {
	User      string          `json:"user"`
	Symbol    string          `json:"symbol"`
	Threshold decimal.Decimal `json:"threshold"`
	Direction string          `json:"direction"`
}

type targetResponse struct {
	Symbol     string     `json:"symbol"`
	Threshold  string     `json:"threshold"`
	Direction  string     `json:"direction"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	direction, ok := models.ParseDirection(req.Direction)
	if !ok {
		writeError(w, http.StatusBadRequest, "direction must be below or above")
		return
	}

	target := models.Target{
		Symbol:    models.NormalizeSymbol(req.Symbol),
		Threshold: req.Threshold,
		Direction: direction,
		State:     models.StatePending,
		CreatedAt: time.Now().UTC(),
	}
	if err := target.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.Save(r.Context(), req.User, target); err != nil {
		s.logger.Error().Err(err).Str("symbol", target.Symbol).Msg("Failed to save target")
		writeError(w, http.StatusInternalServerError, "failed to save target")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Target set for %s at %s", target.Symbol, target.Threshold.StringFixed(2)),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	symbol := models.NormalizeSymbol(chi.URLParam(r, "symbol"))

	err := s.repo.Delete(r.Context(), user, symbol)
	if errors.Is(err, errors.ErrTargetNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no target for %s", symbol))
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to delete target")
		writeError(w, http.StatusInternalServerError, "failed to delete target")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Target for %s deleted", symbol),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	targets, err := s.repo.List(r.Context(), user)
	if err != nil {
		s.logger.Error().Err(err).Str("user", user).Msg("Failed to list targets")
		writeError(w, http.StatusInternalServerError, "failed to list targets")
		return
	}

	out := make([]targetResponse, 0, len(targets))
	for _, t := range targets {
		out = append(out, targetResponse{
			Symbol:     t.Symbol,
			Threshold:  t.Threshold.String(),
			Direction:  string(t.Direction),
			State:      string(t.State),
			CreatedAt:  t.CreatedAt,
			NotifiedAt: t.NotifiedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": out})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
