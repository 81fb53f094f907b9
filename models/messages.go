package models

import "encoding/json"

// Типы входящих сообщений.
const (
	MsgPlayerReady     = "player:ready"
	MsgTournamentStart = "tournament:start"
	MsgMatchReady      = "match:ready"
	MsgChat            = "chat:message"
	MsgTournamentLeave = "tournament:leave"
	MsgPing            = "ping"
	MsgKeyDown         = "keydown"
	MsgKeyUp           = "keyup"
	MsgCommand         = "command"
)

// Типы исходящих сообщений.
const (
	MsgConnected         = "connected"
	MsgTournamentState   = "tournament:state"
	MsgTournamentStarted = "tournament:started"
	MsgPlayerStatus      = "player:status"
	MsgMatchAssigned     = "match:assigned"
	MsgMatchPending      = "match:pending"
	MsgMatchNone         = "match:none"
	MsgError             = "error"
	MsgPong              = "pong"
	MsgGameState         = "game:state"
)

// InboundMessage covers every inbound kind; unused fields stay empty.
type InboundMessage struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	Text string `json:"text,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type SimpleMessage struct {
	Type string `json:"type"`
}

type ConnectedMessage struct {
	Type         string `json:"type"`
	PlayerID     string `json:"playerId"`
	TournamentID string `json:"tournamentId,omitempty"`
	GameID       int    `json:"gameId,omitempty"`
	Side         int    `json:"side,omitempty"`
	Reconnect    bool   `json:"reconnect,omitempty"`
	Spectator    bool   `json:"spectator,omitempty"`
}

type SnapshotMessage struct {
	Type     string              `json:"type"`
	Snapshot *TournamentSnapshot `json:"snapshot"`
}

type PlayerStatusMessage struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"playerId"`
	Status   PlayerStatus `json:"status"`
}

type OpponentInfo struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Avatar      *string `json:"avatar,omitempty"`
}

type MatchAssignedMessage struct {
	Type         string       `json:"type"`
	TournamentID string       `json:"tournamentId"`
	MatchID      string       `json:"matchId"`
	Round        int          `json:"round"`
	GameID       int          `json:"gameId"`
	GameMode     string       `json:"gameMode"`
	Side         int          `json:"side"`
	Opponent     OpponentInfo `json:"opponent"`
}

type ChatMessage struct {
	Type        string `json:"type"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
}

// Encode marshals an outbound frame. Frames are plain structs, so failure means a programming error.
func Encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(ErrorMessage{Type: MsgError, Message: "internal encoding error"})
	}
	return b
}

func NewError(message string) []byte {
	return Encode(ErrorMessage{Type: MsgError, Message: message})
}

func NewSimple(kind string) []byte {
	return Encode(SimpleMessage{Type: kind})
}
