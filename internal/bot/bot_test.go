package bot

import (
	"ctchen222/tictactoe-rooms/internal/game"
	"ctchen222/tictactoe-rooms/internal/room"
	"ctchen222/tictactoe-rooms/pkg/proto"
	"encoding/json"
	"io"
	"testing"
	"time"
)

func frame(t *testing.T, msg any) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func readMove(t *testing.T, bc *BotConnection) (*proto.ClientToServerMessage, bool) {
	t.Helper()
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		_, data, err := bc.ReadMessage()
		ch <- result{data, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, false
		}
		msg, err := proto.DecodeClientMessage(r.data)
		if err != nil {
			t.Fatalf("bot produced an invalid frame %s: %v", r.data, err)
		}
		return msg, true
	case <-time.After(100 * time.Millisecond):
		bc.Close()
		<-ch
		return nil, false
	}
}

func TestNewBotConnection(t *testing.T) {
	bc := NewBotConnection("testBot", "", 0)

	if bc.playerID != "testBot" {
		t.Errorf("Expected playerID testBot, got %s", bc.playerID)
	}
	if bc.difficulty != DifficultyEasy {
		t.Errorf("Expected default difficulty %s, got %s", DifficultyEasy, bc.difficulty)
	}
	if bc.Mark() != game.None {
		t.Errorf("Expected initial mark to be empty, got %s", bc.Mark())
	}
}

func TestBotConnection_WriteMessage_RoomJoined(t *testing.T) {
	bc := NewBotConnection("testBot", DifficultyEasy, 0)

	err := bc.WriteMessage(1, frame(t, proto.NewRoomJoined(room.Snapshot{}, game.PlayerO)))
	if err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if bc.Mark() != game.PlayerO {
		t.Errorf("Expected bot mark to be %s, got %s", game.PlayerO, bc.Mark())
	}
}

func TestBotConnection_WriteMessage_BotTurn_MakesMove(t *testing.T) {
	bc := NewBotConnection("testBot", DifficultyHard, 0)
	bc.setMark(game.PlayerO)

	state, err := game.NewState().Start().Play(game.PlayerX, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := bc.WriteMessage(1, frame(t, proto.NewStateUpdate(state))); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	move, ok := readMove(t, bc)
	if !ok {
		t.Fatal("Bot did not make a move on its turn")
	}
	if move.Type != proto.TypeMakeMove || move.Position == nil || *move.Position != 4 {
		t.Errorf("Expected hard bot to take the center, got %+v", move)
	}
}

func TestBotConnection_WriteMessage_GameStarted_XMovesFirst(t *testing.T) {
	bc := NewBotConnection("testBot", DifficultyEasy, 0)
	bc.setMark(game.PlayerX)

	snap := room.Snapshot{Game: game.NewState().Start()}
	if err := bc.WriteMessage(1, frame(t, proto.NewGameStarted(snap, [2]string{"testBot", "p2"}))); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	if _, ok := readMove(t, bc); !ok {
		t.Fatal("Bot holding X did not open the game")
	}
}

func TestBotConnection_WriteMessage_NoMove(t *testing.T) {
	finished := game.State{Board: game.Board{game.PlayerX, game.PlayerX, game.PlayerX}, Turn: game.PlayerX, Status: game.StatusFinished, Outcome: game.OutcomeX}

	tests := []struct {
		name  string
		mark  game.Mark
		state game.State
	}{
		{name: "Not the bot's turn", mark: game.PlayerO, state: game.NewState().Start()},
		{name: "Game already ended", mark: game.PlayerX, state: finished},
		{name: "No mark assigned yet", mark: game.None, state: game.NewState().Start()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := NewBotConnection("testBot", DifficultyEasy, 0)
			bc.setMark(tt.mark)

			if err := bc.WriteMessage(1, frame(t, proto.NewStateUpdate(tt.state))); err != nil {
				t.Fatalf("WriteMessage failed: %v", err)
			}
			if move, ok := readMove(t, bc); ok {
				t.Errorf("Bot moved when it should not have: %+v", move)
			}
		})
	}
}

func TestBotConnection_WriteMessage_IgnoresOtherFrames(t *testing.T) {
	bc := NewBotConnection("testBot", DifficultyEasy, 0)

	if err := bc.WriteMessage(1, frame(t, proto.NewError("nope"))); err != nil {
		t.Errorf("Expected unrelated frames to be ignored, got %v", err)
	}
	if err := bc.WriteMessage(1, []byte("not json")); err == nil {
		t.Error("Expected an error for a malformed frame")
	}
}

func TestBotConnection_CloseReleasesReader(t *testing.T) {
	bc := NewBotConnection("testBot", DifficultyEasy, 0)
	if err := bc.Close(); err != nil {
		t.Errorf("Expected Close to return nil, got %v", err)
	}
	bc.Close()

	_, _, err := bc.ReadMessage()
	if err != io.EOF {
		t.Errorf("Expected ReadMessage to return io.EOF, got %v", err)
	}
}
