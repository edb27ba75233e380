package proto

import (
	"ctchen222/tictactoe-rooms/internal/game"
	"ctchen222/tictactoe-rooms/internal/room"
	"ctchen222/tictactoe-rooms/internal/validator"
	"encoding/json"
	"errors"
	"fmt"
)

// Client to server message types.
const (
	TypeCreateRoom = "create-room"
	TypeJoinRoom   = "join-room"
	TypeLeaveRoom  = "leave-room"
	TypeMakeMove   = "make-move"
	TypeListRooms  = "list-rooms"
	TypeAddBot     = "add-bot"
)

// Server to client message types.
const (
	TypeRoomsUpdated = "rooms-updated"
	TypeRoomJoined   = "room-joined"
	TypePlayerJoined = "player-joined"
	TypeGameStarted  = "game-started"
	TypeStateUpdate  = "state-update"
	TypeGameOver     = "game-over"
	TypePlayerLeft   = "player-left"
	TypeError        = "error"
)

var (
	ErrMalformed = errors.New("malformed message")
	ErrInvalid   = errors.New("invalid message")
)

// ClientToServerMessage represents a message from the client to the server.
type ClientToServerMessage struct {
	Type       string `json:"type" validate:"required,oneof=create-room join-room leave-room make-move list-rooms add-bot"`
	RoomName   string `json:"roomName,omitempty" validate:"omitempty,roomname"`
	RoomID     string `json:"roomId,omitempty" validate:"required_if=Type join-room,omitempty,uuid4"`
	Position   *int   `json:"position,omitempty" validate:"required_if=Type make-move,omitempty,min=0,max=8"`
	Difficulty string `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

// DecodeClientMessage parses and validates one inbound frame.
func DecodeClientMessage(data []byte) (*ClientToServerMessage, error) {
	var msg ClientToServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validator.GetValidator().Struct(&msg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, validator.Describe(err))
	}
	return &msg, nil
}

// RoomsUpdatedMessage carries the full room list.
type RoomsUpdatedMessage struct {
	Type  string          `json:"type"`
	Rooms []room.Snapshot `json:"rooms"`
}

// RoomJoinedMessage confirms a create or join to the acting connection.
type RoomJoinedMessage struct {
	Type string        `json:"type"`
	Room room.Snapshot `json:"room"`
	Mark game.Mark     `json:"mark"`
}

// PlayerJoinedMessage tells the room a second player took a seat.
type PlayerJoinedMessage struct {
	Type string        `json:"type"`
	Room room.Snapshot `json:"room"`
}

// GameStartedMessage announces the turn order. TurnOrder[0] plays X.
type GameStartedMessage struct {
	Type      string        `json:"type"`
	Room      room.Snapshot `json:"room"`
	TurnOrder [2]string     `json:"turnOrder"`
}

// StateUpdateMessage carries the game state after an accepted move.
type StateUpdateMessage struct {
	Type      string     `json:"type"`
	GameState game.State `json:"gameState"`
}

// GameOverMessage carries the final outcome.
type GameOverMessage struct {
	Type        string       `json:"type"`
	Outcome     game.Outcome `json:"outcome"`
	WinningLine *[3]int      `json:"winningLine"`
}

// PlayerLeftMessage tells the remaining player their opponent is gone.
type PlayerLeftMessage struct {
	Type      string `json:"type"`
	Remaining int    `json:"remaining"`
}

// ErrorMessage reports a rejected request.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewRoomsUpdated(rooms []room.Snapshot) *RoomsUpdatedMessage {
	if rooms == nil {
		rooms = []room.Snapshot{}
	}
	return &RoomsUpdatedMessage{Type: TypeRoomsUpdated, Rooms: rooms}
}

func NewRoomJoined(r room.Snapshot, mark game.Mark) *RoomJoinedMessage {
	return &RoomJoinedMessage{Type: TypeRoomJoined, Room: r, Mark: mark}
}

func NewPlayerJoined(r room.Snapshot) *PlayerJoinedMessage {
	return &PlayerJoinedMessage{Type: TypePlayerJoined, Room: r}
}

func NewGameStarted(r room.Snapshot, turnOrder [2]string) *GameStartedMessage {
	return &GameStartedMessage{Type: TypeGameStarted, Room: r, TurnOrder: turnOrder}
}

func NewStateUpdate(s game.State) *StateUpdateMessage {
	return &StateUpdateMessage{Type: TypeStateUpdate, GameState: s}
}

func NewGameOver(outcome game.Outcome, line *[3]int) *GameOverMessage {
	return &GameOverMessage{Type: TypeGameOver, Outcome: outcome, WinningLine: line}
}

func NewPlayerLeft(remaining int) *PlayerLeftMessage {
	return &PlayerLeftMessage{Type: TypePlayerLeft, Remaining: remaining}
}

func NewError(message string) *ErrorMessage {
	return &ErrorMessage{Type: TypeError, Message: message}
}
