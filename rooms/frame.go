package rooms

import (
	"github.com/Dosada05/pong-tournaments/game"
	"github.com/Dosada05/pong-tournaments/models"
)

type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type FramePlayer struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Connected   bool   `json:"connected"`
}

// Frame is the per-tick room state sent to both seats.
type Frame struct {
	Type      string         `json:"type"`
	GameID    int            `json:"gameId"`
	Kind      Kind           `json:"kind"`
	Status    Status         `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	Canvas    Canvas         `json:"canvas"`
	Paddle1   game.Paddle    `json:"paddle1"`
	Paddle2   game.Paddle    `json:"paddle2"`
	Ball      game.Ball      `json:"ball"`
	Score     game.Score     `json:"score"`
	Paused    bool           `json:"paused"`
	WaitTimer int            `json:"waitTimer"`
	Players   [2]FramePlayer `json:"players"`
}

func (r *Room) frameLocked() Frame {
	f := Frame{
		Type:      models.MsgGameState,
		GameID:    r.opts.ID,
		Kind:      r.opts.Kind,
		Status:    r.status,
		Reason:    r.reason,
		Canvas:    Canvas{Width: r.state.Width, Height: r.state.Height},
		Paddle1:   r.state.Paddle1,
		Paddle2:   r.state.Paddle2,
		Ball:      r.state.Ball,
		Score:     r.state.Score,
		Paused:    r.state.Paused,
		WaitTimer: r.waitRemaining,
	}
	for i := range r.seats {
		f.Players[i] = FramePlayer{
			ID:          r.seats[i].participant.ID,
			DisplayName: r.seats[i].participant.DisplayName,
			Connected:   r.seats[i].conn != nil,
		}
	}
	return f
}
