package models

import (
	"errors"
	"time"
)

// TournamentPhase - фазы жизненного цикла турнира.
type TournamentPhase string

const (
	PhaseRegistration TournamentPhase = "registration"
	PhaseReady        TournamentPhase = "ready"
	PhaseInProgress   TournamentPhase = "in_progress"
	PhaseCompleted    TournamentPhase = "completed"
	PhaseArchived     TournamentPhase = "archived"
)

// BracketSize is the only bracket shape the seeding supports.
const BracketSize = 4

var (
	ErrConfigBracketSize = errors.New("tournament must have exactly 4 players")
	ErrConfigTimeout     = errors.New("tournament timeouts must be positive")
)

type TournamentConfig struct {
	MaxPlayers          int           `json:"max_players"`
	MinPlayers          int           `json:"min_players"`
	RegistrationTimeout time.Duration `json:"registration_timeout"`
	MatchTimeout        time.Duration `json:"match_timeout"`
	IsRanked            bool          `json:"is_ranked"`
	AllowSpectators     bool          `json:"allow_spectators"`
	ThirdPlaceMatch     bool          `json:"third_place_match"`
}

func DefaultTournamentConfig() TournamentConfig {
	return TournamentConfig{
		MaxPlayers:          BracketSize,
		MinPlayers:          BracketSize,
		RegistrationTimeout: 5 * time.Minute,
		MatchTimeout:        10 * time.Minute,
		IsRanked:            false,
		AllowSpectators:     true,
		ThirdPlaceMatch:     true,
	}
}

// Validate checks the config against the supported bracket shape.
func (c TournamentConfig) Validate() error {
	if c.MaxPlayers != BracketSize || c.MinPlayers != BracketSize {
		return ErrConfigBracketSize
	}
	if c.RegistrationTimeout <= 0 || c.MatchTimeout <= 0 {
		return ErrConfigTimeout
	}
	return nil
}

// TournamentSnapshot - безопасное для клиента представление турнира.
type TournamentSnapshot struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Phase        TournamentPhase  `json:"phase"`
	Config       TournamentConfig `json:"config"`
	CreatorID    string           `json:"creator_id"`
	Players      []PlayerSnapshot `json:"players"`
	Bracket      *Bracket         `json:"bracket,omitempty"`
	CurrentRound int              `json:"current_round"`
	Spectators   int              `json:"spectators"`
	WinnerID     string           `json:"winner_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	ArchivedAt   *time.Time       `json:"archived_at,omitempty"`
}

type PlayerSnapshot struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Avatar      *string `json:"avatar,omitempty"`
	Skill       float64 `json:"skill"`
	IsReady     bool    `json:"is_ready"`
	IsConnected bool    `json:"is_connected"`
	HasLeft     bool    `json:"has_left,omitempty"`
}
