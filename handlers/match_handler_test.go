package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/models"
)

type stubResults struct {
	player string
	limit  int
	err    error
}

func (s *stubResults) ListByPlayer(_ context.Context, playerID string, limit int) ([]models.MatchResult, error) {
	s.player, s.limit = playerID, limit
	if s.err != nil {
		return nil, s.err
	}
	return []models.MatchResult{{GameID: 3, Player1ID: playerID, Player2ID: "b", WinnerID: playerID, Score1: 5}}, nil
}

func TestListPlayerResultsHandler(t *testing.T) {
	stub := &stubResults{}
	router := chi.NewRouter()
	router.Get("/players/{playerID}/results", NewMatchHandler(stub).ListPlayerResultsHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/players/alice/results?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", stub.player)
	assert.Equal(t, 5, stub.limit)

	var body struct {
		Results []models.MatchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, 3, body.Results[0].GameID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/players/alice/results", nil))
	assert.Equal(t, defaultResultsLimit, stub.limit)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/players/alice/results?limit=1000", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub.err = errors.New("db down")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/players/alice/results", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
