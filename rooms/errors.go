package rooms

import "errors"

var (
	ErrRoomNotFound     = errors.New("game room not found")
	ErrRoomClosed       = errors.New("game room is closed")
	ErrUnknownIdentity  = errors.New("player is not a participant of this game")
	ErrUnknownMessage   = errors.New("unknown message type")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrResetNotAllowed  = errors.New("reset is only available in custom games")
	ErrInvalidOptions   = errors.New("game room needs two distinct participants")
	ErrRoomAlreadyTaken = errors.New("game id is already in use")
)
