package bot

import (
	"ctchen222/tictactoe-rooms/internal/game"
	"ctchen222/tictactoe-rooms/pkg/proto"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultThinkTime is how long a bot waits before answering its turn.
const DefaultThinkTime = 500 * time.Millisecond

// BotConnection simulates a websocket connection for a bot player.
// It implements the player.Connection interface: frames the hub writes to it
// are read as game updates, and its moves come back out of ReadMessage.
type BotConnection struct {
	playerID   string
	difficulty string
	think      time.Duration

	mu   sync.Mutex
	mark game.Mark

	moves     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewBotConnection creates a new connection for a bot.
func NewBotConnection(playerID, difficulty string, think time.Duration) *BotConnection {
	if difficulty == "" {
		difficulty = DifficultyEasy
	}
	return &BotConnection{
		playerID:   playerID,
		difficulty: difficulty,
		think:      think,
		moves:      make(chan []byte, 1),
		closed:     make(chan struct{}),
	}
}

// WriteMessage is called by the player's write pump with every server frame.
func (bc *BotConnection) WriteMessage(_ int, data []byte) error {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	switch envelope.Type {
	case proto.TypeRoomJoined:
		var msg proto.RoomJoinedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		bc.setMark(msg.Mark)
		slog.Info("Bot assigned mark", "player.id", bc.playerID, "mark", msg.Mark)

	case proto.TypeGameStarted:
		var msg proto.GameStartedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		bc.maybeMove(msg.Room.Game)

	case proto.TypeStateUpdate:
		var msg proto.StateUpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		bc.maybeMove(msg.GameState)
	}
	return nil
}

// ReadMessage blocks until the bot has decided on a move or is closed.
func (bc *BotConnection) ReadMessage() (int, []byte, error) {
	select {
	case move := <-bc.moves:
		return websocket.TextMessage, move, nil
	case <-bc.closed:
		return 0, nil, io.EOF
	}
}

// Close releases a pending ReadMessage.
func (bc *BotConnection) Close() error {
	bc.closeOnce.Do(func() {
		close(bc.closed)
	})
	return nil
}

// Mark returns the mark assigned to the bot, if any.
func (bc *BotConnection) Mark() game.Mark {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.mark
}

func (bc *BotConnection) setMark(m game.Mark) {
	bc.mu.Lock()
	bc.mark = m
	bc.mu.Unlock()
}

// maybeMove plays when it is the bot's turn in a running game.
func (bc *BotConnection) maybeMove(state game.State) {
	mark := bc.Mark()
	if mark == game.None || state.Status != game.StatusPlaying || state.Turn != mark {
		return
	}

	slog.Info("Bot is thinking", "player.id", bc.playerID, "mark", mark, "difficulty", bc.difficulty)
	if bc.think > 0 {
		select {
		case <-time.After(bc.think):
		case <-bc.closed:
			return
		}
	}

	pos := CalculateNextMove(state.Board, mark, bc.difficulty)
	if pos < 0 {
		return
	}
	move, err := json.Marshal(proto.ClientToServerMessage{Type: proto.TypeMakeMove, Position: &pos})
	if err != nil {
		return
	}

	select {
	case bc.moves <- move:
	case <-bc.closed:
	}
}
