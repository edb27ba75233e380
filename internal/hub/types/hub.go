package types

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/player"
)

// RegistrationRequest represents a request to register a connected player.
type RegistrationRequest struct {
	Player *player.Player
	Ctx    context.Context
}

// ClientMessage is one raw frame read from a player's connection.
type ClientMessage struct {
	PlayerID string
	Data     []byte
}
