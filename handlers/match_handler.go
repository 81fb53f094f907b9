package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/pong-tournaments/models"
)

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

// ResultLister reads finished matches back from the result ledger.
type ResultLister interface {
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]models.MatchResult, error)
}

type MatchHandler struct {
	results ResultLister
}

func NewMatchHandler(results ResultLister) *MatchHandler {
	return &MatchHandler{results: results}
}

// ListPlayerResultsHandler обрабатывает GET /api/players/{playerID}/results?limit=20
func (h *MatchHandler) ListPlayerResultsHandler(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		badRequestResponse(w, r, errors.New("missing playerID"))
		return
	}

	limit := defaultResultsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxResultsLimit {
			badRequestResponse(w, r, errors.New("limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	results, err := h.results.ListByPlayer(r.Context(), playerID, limit)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
