package brackets

import "errors"

var (
	ErrInvalidPhase         = errors.New("operation not allowed in the current tournament phase")
	ErrTournamentFull       = errors.New("tournament registration is full")
	ErrAlreadyRegistered    = errors.New("player is already registered in this tournament")
	ErrPlayerNotFound       = errors.New("player is not registered in this tournament")
	ErrQuorumNotMet         = errors.New("not enough ready players to start the tournament")
	ErrBracketExists        = errors.New("bracket has already been generated")
	ErrUnsupportedBracket   = errors.New("bracket generation supports exactly 4 players")
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchNotPending      = errors.New("match is not pending")
	ErrMatchNotInProgress   = errors.New("match is not in progress")
	ErrMatchNotSeated       = errors.New("match does not have both players yet")
	ErrInvalidWinner        = errors.New("winner is not a participant of the match")
	ErrSpectatorsNotAllowed = errors.New("spectators are not allowed in this tournament")
)
