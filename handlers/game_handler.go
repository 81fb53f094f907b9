package handlers

import (
	"net/http"

	"github.com/Dosada05/pong-tournaments/middleware"
	"github.com/Dosada05/pong-tournaments/rooms"
	"github.com/Dosada05/pong-tournaments/services"
)

type GameHandler struct {
	gameService services.GameService
}

func NewGameHandler(gs services.GameService) *GameHandler {
	return &GameHandler{gameService: gs}
}

// CreateHandler обрабатывает POST /api/games
func (h *GameHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.GetIdentityFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create game")
		return
	}

	var input services.CreateGameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.CreateGame(rooms.Participant{ID: identity.ID, DisplayName: identity.DisplayName}, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /api/games
func (h *GameHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"games": h.gameService.ListGames()}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
