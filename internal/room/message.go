package room

import (
	"ctchen222/tictactoe-rooms/internal/game"
	"errors"
)

// ErrActorFault wraps a panic recovered while an actor processed a command.
var ErrActorFault = errors.New("room actor fault")

// Op names a command kind in error reports.
type Op string

const (
	OpJoin  Op = "join"
	OpLeave Op = "leave"
	OpMove  Op = "move"
)

// Command is the closed set of messages an Actor accepts.
type Command interface {
	Op() Op
	isCommand()
}

// Join seats a second player.
type Join struct {
	PlayerID string
}

// Leave removes a player, by request or on disconnect.
type Leave struct {
	PlayerID string
}

// Move places the player's mark at Position (0-8).
type Move struct {
	PlayerID string
	Position int
}

func (Join) Op() Op  { return OpJoin }
func (Leave) Op() Op { return OpLeave }
func (Move) Op() Op  { return OpMove }

func (Join) isCommand()  {}
func (Leave) isCommand() {}
func (Move) isCommand()  {}

// Event is the closed set of messages an Actor emits.
type Event interface {
	isEvent()
}

// RoomCreated is the first event of every actor.
type RoomCreated struct {
	Room Snapshot
}

// PlayerJoined follows a successful Join.
type PlayerJoined struct {
	Room Snapshot
}

// GameStarted follows the Join that fills the room. TurnOrder[0] plays X.
type GameStarted struct {
	Room      Snapshot
	TurnOrder [2]string
}

// StateUpdate follows every accepted Move.
type StateUpdate struct {
	Game game.State
	Room Snapshot
}

// GameOver follows the StateUpdate of a finishing Move.
type GameOver struct {
	Outcome     game.Outcome
	WinningLine *[3]int
}

// PlayerLeft follows a successful Leave. IsEmpty means the actor is about to exit.
type PlayerLeft struct {
	PlayerID  string
	Remaining int
	IsEmpty   bool
	Room      Snapshot
}

// Error reports a rejected command to the player that issued it.
type Error struct {
	PlayerID string
	Op       Op
	Message  string
}

// Terminated is always the last event of an actor. Err is nil when the actor
// stopped cooperatively and wraps ErrActorFault when it crashed.
type Terminated struct {
	Err error
}

func (RoomCreated) isEvent()  {}
func (PlayerJoined) isEvent() {}
func (GameStarted) isEvent()  {}
func (StateUpdate) isEvent()  {}
func (GameOver) isEvent()     {}
func (PlayerLeft) isEvent()   {}
func (Error) isEvent()        {}
func (Terminated) isEvent()   {}

// Envelope tags an event with the room that emitted it.
type Envelope struct {
	RoomID string
	Event  Event
}
