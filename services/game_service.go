package services

import (
	"fmt"
	"log/slog"

	"github.com/Dosada05/pong-tournaments/rooms"
)

// GameReserver is the part of the rooms registry used for one-off games.
type GameReserver interface {
	Reserve(opts rooms.Options) (int, error)
	List() []rooms.RoomInfo
}

type CreateGameInput struct {
	OpponentID   string `json:"opponent_id"`
	OpponentName string `json:"opponent_name,omitempty"`
	Type         string `json:"type"`
}

type GameInfo struct {
	GameID  int        `json:"game_id"`
	Type    rooms.Kind `json:"type"`
	Player1 string     `json:"player1"`
	Player2 string     `json:"player2"`
}

type GameService interface {
	CreateGame(requester rooms.Participant, input CreateGameInput) (*GameInfo, error)
	ListGames() []rooms.RoomInfo
}

type gameService struct {
	rooms  GameReserver
	logger *slog.Logger
}

func NewGameService(reserver GameReserver, logger *slog.Logger) GameService {
	if logger == nil {
		logger = slog.Default()
	}
	return &gameService{rooms: reserver, logger: logger.With(slog.String("component", "games"))}
}

// CreateGame reserves a remote or custom room between the requester and an opponent.
// The room itself is created when the first of them connects.
func (s *gameService) CreateGame(requester rooms.Participant, input CreateGameInput) (*GameInfo, error) {
	kind := rooms.Kind(input.Type)
	if kind == "" {
		kind = rooms.KindRemote
	}
	if kind != rooms.KindRemote && kind != rooms.KindCustom {
		return nil, fmt.Errorf("%w: game type must be %q or %q", ErrValidationFailed, rooms.KindRemote, rooms.KindCustom)
	}
	if input.OpponentID == "" || input.OpponentID == requester.ID {
		return nil, ErrOpponentRequired
	}

	id, err := s.rooms.Reserve(rooms.Options{
		Kind:    kind,
		Player1: requester,
		Player2: rooms.Participant{ID: input.OpponentID, DisplayName: input.OpponentName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reserve game: %w", err)
	}
	s.logger.Info("game created",
		slog.Int("game_id", id),
		slog.String("type", string(kind)),
		slog.String("player1", requester.ID),
		slog.String("player2", input.OpponentID))

	return &GameInfo{GameID: id, Type: kind, Player1: requester.ID, Player2: input.OpponentID}, nil
}

func (s *gameService) ListGames() []rooms.RoomInfo {
	return s.rooms.List()
}
