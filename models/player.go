package models

import "time"

// Connection - живое соединение игрока. Никогда не сериализуется.
type Connection interface {
	Send(data []byte) error
	Close() error
}

type PlayerStatus string

const (
	PlayerConnected    PlayerStatus = "connected"
	PlayerDisconnected PlayerStatus = "disconnected"
	PlayerReadyStatus  PlayerStatus = "ready"
	PlayerLeft         PlayerStatus = "left"
)

// Player is a tournament roster entry.
type Player struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Avatar      *string    `json:"avatar,omitempty"`
	Skill       float64    `json:"skill"`
	IsReady     bool       `json:"is_ready"`
	IsConnected bool       `json:"is_connected"`
	HasLeft     bool       `json:"has_left"`
	JoinedAt    time.Time  `json:"joined_at"`
	Conn        Connection `json:"-"`
}

// Name returns the display name, falling back to the identity.
func (p *Player) Name() string {
	if p == nil {
		return ""
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}
