package room

import (
	"ctchen222/tictactoe-rooms/internal/game"
	"errors"
	"slices"
)

// Status is the externally reported lifecycle of a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusFull     Status = "full"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// MaxPlayers is fixed: a room always hosts exactly one X and one O.
const MaxPlayers = 2

var (
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInRoom = errors.New("player is already in this room")
	ErrNotInRoom     = errors.New("player is not in this room")
)

// State is everything a room knows about itself. It is owned by a single
// Actor and never shared; other components only ever see a Snapshot.
type State struct {
	ID      string
	Name    string
	Players []string
	Status  Status
	Game    game.State
}

// Snapshot is an immutable, wire-ready copy of a room's visible fields.
type Snapshot struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Players    []string   `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	Status     Status     `json:"status"`
	Game       game.State `json:"gameState"`
}

// NewState creates a room holding only its creator.
func NewState(id, name, creator string) *State {
	return &State{
		ID:      id,
		Name:    name,
		Players: []string{creator},
		Status:  StatusWaiting,
		Game:    game.NewState(),
	}
}

// Join adds playerID as the O player. It reports whether the join filled the
// room and started the game.
func (s *State) Join(playerID string) (started bool, err error) {
	if slices.Contains(s.Players, playerID) {
		return false, ErrAlreadyInRoom
	}
	if len(s.Players) >= MaxPlayers || s.Status != StatusWaiting {
		return false, ErrRoomFull
	}

	s.Players = append(s.Players, playerID)
	if len(s.Players) < MaxPlayers {
		return false, nil
	}

	s.Status = StatusFull
	s.Game = s.Game.Start()
	s.Status = StatusPlaying
	return true, nil
}

// Move plays playerID's mark at pos.
func (s *State) Move(playerID string, pos int) error {
	mark := s.MarkOf(playerID)
	if mark == game.None {
		return ErrNotInRoom
	}

	next, err := s.Game.Play(mark, pos)
	if err != nil {
		return err
	}

	s.Game = next
	if next.Finished() {
		s.Status = StatusFinished
	}
	return nil
}

// Leave removes playerID and returns how many players remain. A player left
// alone in a started room gets a fresh game and waits for a new opponent.
func (s *State) Leave(playerID string) (remaining int, err error) {
	idx := slices.Index(s.Players, playerID)
	if idx < 0 {
		return len(s.Players), ErrNotInRoom
	}

	s.Players = slices.Delete(s.Players, idx, idx+1)
	if len(s.Players) == 1 && s.Game.Status != game.StatusWaiting {
		s.Game = game.NewState()
		s.Status = StatusWaiting
	}
	return len(s.Players), nil
}

// Empty reports whether the last player has left.
func (s *State) Empty() bool {
	return len(s.Players) == 0
}

// MarkOf returns the mark held by playerID, or game.None if absent.
func (s *State) MarkOf(playerID string) game.Mark {
	return markAt(slices.Index(s.Players, playerID))
}

// Snapshot copies the visible fields.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		ID:         s.ID,
		Name:       s.Name,
		Players:    slices.Clone(s.Players),
		MaxPlayers: MaxPlayers,
		Status:     s.Status,
		Game:       s.Game.Clone(),
	}
}

// MarkOf returns the mark held by playerID in the snapshot.
func (s Snapshot) MarkOf(playerID string) game.Mark {
	return markAt(slices.Index(s.Players, playerID))
}

// Has reports whether playerID is seated in the snapshot.
func (s Snapshot) Has(playerID string) bool {
	return slices.Contains(s.Players, playerID)
}

func markAt(idx int) game.Mark {
	switch idx {
	case 0:
		return game.PlayerX
	case 1:
		return game.PlayerO
	default:
		return game.None
	}
}
