package rooms

import "time"

// Kind is the room flavor; it selects what happens when a player never shows up.
type Kind string

const (
	KindRemote     Kind = "remote"
	KindCustom     Kind = "custom"
	KindTournament Kind = "tournament"
)

// AbsencePolicy decides the outcome when the wait counter runs out with an empty seat.
type AbsencePolicy int

const (
	// PolicyForfeit awards the match to the player who stayed.
	PolicyForfeit AbsencePolicy = iota
	// PolicyCancel ends the room without a winner.
	PolicyCancel
)

func (k Kind) Policy() AbsencePolicy {
	if k == KindCustom {
		return PolicyCancel
	}
	return PolicyForfeit
}

func (k Kind) Valid() bool {
	switch k {
	case KindRemote, KindCustom, KindTournament:
		return true
	}
	return false
}

type Status string

const (
	StatusWaiting   Status = "waiting_for_players"
	StatusPlaying   Status = "playing"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Причины отмены комнаты.
const (
	ReasonInviteExpired = "invite_expired"
	ReasonPlayerLeft    = "player_left"
	ReasonForfeited     = "match_forfeited"
)

type Config struct {
	TickRate      int
	WaitSeconds   int
	GraceDelay    time.Duration
	CancelDelay   time.Duration
	ReportTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickRate:      60,
		WaitSeconds:   45,
		GraceDelay:    5 * time.Second,
		CancelDelay:   2 * time.Second,
		ReportTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TickRate <= 0 {
		c.TickRate = def.TickRate
	}
	if c.WaitSeconds <= 0 {
		c.WaitSeconds = def.WaitSeconds
	}
	if c.GraceDelay < 0 {
		c.GraceDelay = 0
	}
	if c.CancelDelay < 0 {
		c.CancelDelay = 0
	}
	if c.ReportTimeout <= 0 {
		c.ReportTimeout = def.ReportTimeout
	}
	return c
}
