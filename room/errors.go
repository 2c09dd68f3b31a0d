package room

import "errors"

var (
	ErrRoomClosed       = errors.New("room is closed")
	ErrRoomFull         = errors.New("room is full")
	ErrGameInProgress   = errors.New("game already in progress")
	ErrInvalidDirection = errors.New("invalid direction")
)
