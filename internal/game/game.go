package game

import (
	"errors"
	"fmt"
)

// Mark represents the mark of a player (X, O) or an empty cell.
type Mark string

// Status is the lifecycle of a single game.
type Status string

// Outcome is the result of evaluating a board.
type Outcome string

const (
	// Player marks
	None    Mark = ""
	PlayerX Mark = "X"
	PlayerO Mark = "O"

	// Game statuses
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"

	// Outcomes
	OutcomeNone Outcome = ""
	OutcomeX    Outcome = "X"
	OutcomeO    Outcome = "O"
	OutcomeDraw Outcome = "draw"

	// Board boundaries
	BoardSize   = 9
	PositionMin = 0
	PositionMax = BoardSize - 1
)

var (
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrCellOccupied      = errors.New("cell is already occupied")
	ErrInvalidPosition   = errors.New("position must be between 0 and 8")
)

// Board is the 3x3 grid in row-major order.
type Board [BoardSize]Mark

// State is the game part of a room: board, turn and result.
type State struct {
	Board       Board   `json:"board"`
	Turn        Mark    `json:"currentPlayer"`
	Status      Status  `json:"status"`
	Outcome     Outcome `json:"winner"`
	WinningLine *[3]int `json:"winningLine"`
}

// NewState returns a fresh game waiting for its second player. X always moves first.
func NewState() State {
	return State{
		Turn:    PlayerX,
		Status:  StatusWaiting,
		Outcome: OutcomeNone,
	}
}

// Start moves a waiting game into play.
func (s State) Start() State {
	s.Status = StatusPlaying
	s.Turn = PlayerX
	return s
}

// Play applies mark at pos and returns the resulting state. The receiver is
// never modified, so a rejected move leaves the caller's state untouched.
func (s State) Play(mark Mark, pos int) (State, error) {
	if s.Status != StatusPlaying {
		return s, ErrGameNotInProgress
	}
	if pos < PositionMin || pos > PositionMax {
		return s, fmt.Errorf("%w: got %d", ErrInvalidPosition, pos)
	}
	if mark != s.Turn {
		return s, ErrNotYourTurn
	}
	if s.Board[pos] != None {
		return s, ErrCellOccupied
	}

	next := s
	next.Board[pos] = mark

	outcome, line := Evaluate(next.Board)
	if outcome != OutcomeNone {
		next.Status = StatusFinished
		next.Outcome = outcome
		next.WinningLine = line
		return next, nil
	}

	next.Turn = Opponent(mark)
	return next, nil
}

// Finished reports whether the game reached a win or a draw.
func (s State) Finished() bool {
	return s.Status == StatusFinished
}

// Clone returns a deep copy; the board is an array so only the line needs copying.
func (s State) Clone() State {
	if s.WinningLine != nil {
		line := *s.WinningLine
		s.WinningLine = &line
	}
	return s
}

// Opponent returns the other player's mark.
func Opponent(mark Mark) Mark {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
