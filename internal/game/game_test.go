package game

import (
	"errors"
	"testing"
)

const (
	x = PlayerX
	o = PlayerO
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		board    Board
		want     Outcome
		wantLine *[3]int
	}{
		{
			name:  "No winner - empty board",
			board: Board{},
			want:  OutcomeNone,
		},
		{
			name: "No winner - partial board",
			board: Board{
				x, None, None,
				None, o, None,
				None, None, None,
			},
			want: OutcomeNone,
		},
		{
			name: "X wins - first row",
			board: Board{
				x, x, x,
				None, o, None,
				None, None, o,
			},
			want:     OutcomeX,
			wantLine: &[3]int{0, 1, 2},
		},
		{
			name: "O wins - second column",
			board: Board{
				x, o, None,
				x, o, None,
				None, o, None,
			},
			want:     OutcomeO,
			wantLine: &[3]int{1, 4, 7},
		},
		{
			name: "X wins - main diagonal",
			board: Board{
				x, None, None,
				None, x, None,
				None, None, x,
			},
			want:     OutcomeX,
			wantLine: &[3]int{0, 4, 8},
		},
		{
			name: "O wins - anti-diagonal",
			board: Board{
				None, None, o,
				None, o, None,
				o, None, None,
			},
			want:     OutcomeO,
			wantLine: &[3]int{2, 4, 6},
		},
		{
			name: "Draw - full board",
			board: Board{
				x, o, x,
				x, o, o,
				o, x, x,
			},
			want: OutcomeDraw,
		},
		{
			name: "Win on a full board is not a draw",
			board: Board{
				x, x, x,
				o, o, x,
				o, x, o,
			},
			want:     OutcomeX,
			wantLine: &[3]int{0, 1, 2},
		},
		{
			name: "Two complete lines report the first in scan order",
			board: Board{
				x, x, x,
				x, o, o,
				x, o, o,
			},
			want:     OutcomeX,
			wantLine: &[3]int{0, 1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, line := Evaluate(tt.board)
			if got != tt.want {
				t.Errorf("Evaluate() got = %q, want %q", got, tt.want)
			}
			if (line == nil) != (tt.wantLine == nil) {
				t.Fatalf("Evaluate() line = %v, want %v", line, tt.wantLine)
			}
			if line != nil && *line != *tt.wantLine {
				t.Errorf("Evaluate() line = %v, want %v", *line, *tt.wantLine)
			}
		})
	}
}

// TestEvaluateAllBoards walks every one of the 3^9 possible boards and checks
// the win/draw/none characterisation directly.
func TestEvaluateAllBoards(t *testing.T) {
	marks := [3]Mark{None, PlayerX, PlayerO}
	for n := 0; n < 19683; n++ {
		var board Board
		v := n
		for i := range board {
			board[i] = marks[v%3]
			v /= 3
		}

		outcome, line := Evaluate(board)

		anyLine := false
		for _, l := range WinningLines {
			if board[l[0]] != None && board[l[0]] == board[l[1]] && board[l[1]] == board[l[2]] {
				anyLine = true
				break
			}
		}

		switch {
		case anyLine:
			if outcome != OutcomeX && outcome != OutcomeO {
				t.Fatalf("board %v: got %q, want a win", board, outcome)
			}
			if line == nil || Outcome(board[line[0]]) != outcome {
				t.Fatalf("board %v: line %v does not match outcome %q", board, line, outcome)
			}
		case IsBoardFull(board):
			if outcome != OutcomeDraw || line != nil {
				t.Fatalf("board %v: got %q/%v, want draw", board, outcome, line)
			}
		default:
			if outcome != OutcomeNone || line != nil {
				t.Fatalf("board %v: got %q/%v, want none", board, outcome, line)
			}
		}
	}
}

func TestIsBoardFull(t *testing.T) {
	tests := []struct {
		name  string
		board Board
		want  bool
	}{
		{
			name:  "Empty board is not full",
			board: Board{},
			want:  false,
		},
		{
			name:  "Partial board is not full",
			board: Board{x, None, None, None, o, None, None, None, None},
			want:  false,
		},
		{
			name:  "Full board is full",
			board: Board{x, o, x, x, o, o, o, x, x},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBoardFull(tt.board); got != tt.want {
				t.Errorf("IsBoardFull() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlay(t *testing.T) {
	playing := NewState().Start()

	t.Run("Accepted move flips the turn", func(t *testing.T) {
		next, err := playing.Play(PlayerX, 4)
		if err != nil {
			t.Fatalf("Play() unexpected error: %v", err)
		}
		if next.Board[4] != PlayerX {
			t.Errorf("Board[4] = %q, want X", next.Board[4])
		}
		if next.Turn != PlayerO {
			t.Errorf("Turn = %q, want O", next.Turn)
		}
		if next.Status != StatusPlaying {
			t.Errorf("Status = %q, want playing", next.Status)
		}
		if playing.Board[4] != None {
			t.Error("Play() mutated the receiver")
		}
	})

	rejected := []struct {
		name  string
		state State
		mark  Mark
		pos   int
		want  error
	}{
		{"Waiting game", NewState(), PlayerX, 0, ErrGameNotInProgress},
		{"Wrong turn", playing, PlayerO, 0, ErrNotYourTurn},
		{"Position too low", playing, PlayerX, -1, ErrInvalidPosition},
		{"Position too high", playing, PlayerX, 9, ErrInvalidPosition},
		{"Occupied cell", State{Board: Board{x}, Turn: PlayerO, Status: StatusPlaying}, PlayerO, 0, ErrCellOccupied},
		{"Finished game", State{Status: StatusFinished, Turn: PlayerX, Outcome: OutcomeDraw}, PlayerX, 0, ErrGameNotInProgress},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.state.Play(tt.mark, tt.pos)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Play() error = %v, want %v", err, tt.want)
			}
			if next.Board != tt.state.Board || next.Turn != tt.state.Turn {
				t.Error("rejected move changed the state")
			}
		})
	}

	t.Run("Winning move finishes the game and keeps the turn", func(t *testing.T) {
		s := playing
		var err error
		for i, pos := range []int{0, 1, 4, 2, 8} {
			s, err = s.Play([]Mark{x, o}[i%2], pos)
			if err != nil {
				t.Fatalf("move %d: %v", i, err)
			}
		}
		if s.Status != StatusFinished || s.Outcome != OutcomeX {
			t.Fatalf("got status %q outcome %q, want finished X", s.Status, s.Outcome)
		}
		if s.WinningLine == nil || *s.WinningLine != [3]int{0, 4, 8} {
			t.Errorf("WinningLine = %v, want [0 4 8]", s.WinningLine)
		}
		if s.Turn != PlayerX {
			t.Errorf("Turn = %q, want X unchanged after the winning move", s.Turn)
		}
	})

	t.Run("Full board without a line is a draw", func(t *testing.T) {
		s := playing
		var err error
		// X O X / X O O / O X X
		for i, pos := range []int{0, 1, 2, 4, 3, 5, 7, 6, 8} {
			s, err = s.Play([]Mark{x, o}[i%2], pos)
			if err != nil {
				t.Fatalf("move %d: %v", i, err)
			}
		}
		if s.Outcome != OutcomeDraw || s.WinningLine != nil || s.Status != StatusFinished {
			t.Errorf("got outcome %q line %v status %q, want finished draw", s.Outcome, s.WinningLine, s.Status)
		}
	})
}

func TestClone(t *testing.T) {
	s := State{WinningLine: &[3]int{0, 1, 2}}
	c := s.Clone()
	c.WinningLine[0] = 7
	if s.WinningLine[0] != 0 {
		t.Error("Clone() shares the winning line")
	}
}
