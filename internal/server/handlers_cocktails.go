package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/soul-spirits/internal/db"
)

// History is the generation history store. *db.DB satisfies it.
type History interface {
	SaveCocktail(ctx context.Context, rec *db.CocktailRecord) error
	GetCocktail(ctx context.Context, id uuid.UUID) (*db.CocktailRecord, error)
	ListCocktails(ctx context.Context, limit, offset int) ([]db.CocktailSummary, error)
	SaveFailure(ctx context.Context, f *db.GenerationFailure) error
	ListFailures(ctx context.Context, sessionID string, limit int) ([]db.GenerationFailure, error)
	Ping(ctx context.Context) error
}

// CocktailListResponse represents the response for GET /cocktails
type CocktailListResponse struct {
	Cocktails []db.CocktailSummary `json:"cocktails"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
}

// handleListCocktails lists generated cocktails, newest first
func (s *Server) handleListCocktails(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, ErrHistoryDisabled, nil)
		return
	}

	limit, err := queryInt(r, "limit", db.DefaultListLimit)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if limit == 0 {
		limit = db.DefaultListLimit
	}
	limit = min(limit, db.MaxListLimit)

	cocktails, err := s.history.ListCocktails(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("failed to list cocktails", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to list cocktails")
		return
	}
	if cocktails == nil {
		cocktails = []db.CocktailSummary{}
	}

	s.jsonResponse(w, http.StatusOK, CocktailListResponse{
		Cocktails: cocktails,
		Limit:     limit,
		Offset:    offset,
	})
}

// handleGetCocktail returns one generated cocktail with its inputs
func (s *Server) handleGetCocktail(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, ErrHistoryDisabled, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, &ErrBadRequest{Field: "id", Message: "invalid cocktail id"}, nil)
		return
	}

	rec, err := s.history.GetCocktail(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get cocktail", zap.Stringer("id", id), zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to get cocktail")
		return
	}
	if rec == nil {
		s.errorResponse(w, http.StatusNotFound, "Cocktail not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &ErrBadRequest{Field: name, Message: "must be a non-negative integer"}
	}
	return v, nil
}

// handleListFailures lists the failed attempts recorded for a session. The
// session itself may already have been swept.
func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, ErrHistoryDisabled, nil)
		return
	}

	limit, err := queryInt(r, "limit", db.DefaultListLimit)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	sessionID := r.PathValue("id")
	failures, err := s.history.ListFailures(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error("failed to list failures", zap.String("session_id", sessionID), zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to list failures")
		return
	}
	if failures == nil {
		failures = []db.GenerationFailure{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"failures": failures})
}
