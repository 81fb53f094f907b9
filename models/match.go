package models

import "time"

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

// Номера раундов сетки. Матч за третье место имеет раунд 0.
const (
	RoundThirdPlace = 0
	RoundSemifinal  = 1
	RoundFinal      = 2
)

type Score struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

type Match struct {
	ID          string      `json:"id"`
	Round       int         `json:"round"`
	Position    int         `json:"position"`
	Player1ID   string      `json:"player1_id,omitempty"`
	Player2ID   string      `json:"player2_id,omitempty"`
	Status      MatchStatus `json:"status"`
	WinnerID    string      `json:"winner_id,omitempty"`
	Score       *Score      `json:"score,omitempty"`
	GameID      int         `json:"game_id,omitempty"`
	Forfeit     bool        `json:"forfeit,omitempty"`
	TimedOut    bool        `json:"timed_out,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// HasPlayer reports whether the identity occupies either slot.
func (m *Match) HasPlayer(playerID string) bool {
	return playerID != "" && (m.Player1ID == playerID || m.Player2ID == playerID)
}

// Opponent returns the other slot's identity, or "" if the slot is empty.
func (m *Match) Opponent(playerID string) string {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return ""
}

// Side returns 1 or 2 for the slot the identity occupies, 0 otherwise.
func (m *Match) Side(playerID string) int {
	switch {
	case playerID == "":
		return 0
	case m.Player1ID == playerID:
		return 1
	case m.Player2ID == playerID:
		return 2
	}
	return 0
}

// IsActive reports whether the match is still to be played.
func (m *Match) IsActive() bool {
	return m.Status == MatchPending || m.Status == MatchInProgress
}

// Seated reports whether both slots are filled.
func (m *Match) Seated() bool {
	return m.Player1ID != "" && m.Player2ID != ""
}

// Bracket: два полуфинала, финал и опциональный матч за третье место.
type Bracket struct {
	Semifinals [2]*Match `json:"semifinals"`
	Final      *Match    `json:"final"`
	ThirdPlace *Match    `json:"third_place,omitempty"`
}

// Matches returns the bracket in scan order: semifinals, final, third place.
func (b *Bracket) Matches() []*Match {
	if b == nil {
		return nil
	}
	out := []*Match{b.Semifinals[0], b.Semifinals[1], b.Final}
	if b.ThirdPlace != nil {
		out = append(out, b.ThirdPlace)
	}
	return out
}

// MatchResult is the record handed to the result ledger once per finished room.
type MatchResult struct {
	GameID       int       `json:"game_id"`
	TournamentID string    `json:"tournament_id,omitempty"`
	MatchID      string    `json:"match_id,omitempty"`
	Player1ID    string    `json:"player1"`
	Player2ID    string    `json:"player2"`
	Score1       int       `json:"score1"`
	Score2       int       `json:"score2"`
	WinnerID     string    `json:"winner"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	FinalMatch   bool      `json:"final_match"`
	Forfeit      bool      `json:"forfeit"`
	// LeaverID is set when the forfeit came from an explicit leave.
	LeaverID string `json:"leaver_id,omitempty"`
}
