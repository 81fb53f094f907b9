package services

import "errors"

// Общие ошибки сервисного слоя, используются в маппинге HTTP и WS-ответов.
var (
	// Ресурс не найден
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrGameNotFound       = errors.New("game not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed     = errors.New("validation failed")
	ErrTournamentNameLength = errors.New("tournament name must be between 1 and 64 characters")
	ErrChatMessageLength    = errors.New("chat message must be between 1 and 500 characters")
	ErrAlreadyInTournament  = errors.New("player already belongs to another tournament")
	ErrPlayerEliminated     = errors.New("player has no remaining matches in this tournament")
	ErrPlayerHasLeft        = errors.New("player has left this tournament")
	ErrOpponentRequired     = errors.New("opponent must be another player")

	// Ошибки авторизации
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)
