package room

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/game"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// explode is a command the actor does not know how to handle.
type explode struct{}

func (explode) Op() Op     { return "explode" }
func (explode) isCommand() {}

func spawnTestActor(t *testing.T, name, creator string) (*Actor, chan Envelope) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	out := make(chan Envelope, 64)
	a := Spawn(ctx, "room-"+name, name, creator, out)
	return a, out
}

func nextEvent(t *testing.T, out <-chan Envelope) Event {
	t.Helper()
	select {
	case env := <-out:
		return env.Event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for room event")
		return nil
	}
}

func expectEvent[T Event](t *testing.T, out <-chan Envelope) T {
	t.Helper()
	ev := nextEvent(t, out)
	typed, ok := ev.(T)
	require.Truef(t, ok, "expected %T, got %T (%+v)", *new(T), ev, ev)
	return typed
}

func TestActor_Created(t *testing.T) {
	a, out := spawnTestActor(t, "A", "p1")

	env := <-out
	assert.Equal(t, a.ID(), env.RoomID)
	created, ok := env.Event.(RoomCreated)
	require.True(t, ok)
	assert.Equal(t, "A", created.Room.Name)
	assert.Equal(t, []string{"p1"}, created.Room.Players)
	assert.Equal(t, StatusWaiting, created.Room.Status)
}

func TestActor_FullGameScenario(t *testing.T) {
	a, out := spawnTestActor(t, "A", "p1")
	expectEvent[RoomCreated](t, out)

	a.Send(Join{PlayerID: "p2"})
	joined := expectEvent[PlayerJoined](t, out)
	assert.Equal(t, []string{"p1", "p2"}, joined.Room.Players)

	started := expectEvent[GameStarted](t, out)
	assert.Equal(t, [2]string{"p1", "p2"}, started.TurnOrder)
	assert.Equal(t, StatusPlaying, started.Room.Status)
	assert.Equal(t, game.PlayerX, started.Room.Game.Turn)

	a.Send(Move{PlayerID: "p1", Position: 4})
	update := expectEvent[StateUpdate](t, out)
	assert.Equal(t, game.PlayerX, update.Game.Board[4])
	assert.Equal(t, game.PlayerO, update.Game.Turn)
	assert.Equal(t, game.StatusPlaying, update.Game.Status)

	a.Send(Move{PlayerID: "p2", Position: 1})
	update = expectEvent[StateUpdate](t, out)
	assert.Equal(t, game.OutcomeNone, update.Game.Outcome)

	a.Send(Move{PlayerID: "p1", Position: 0})
	expectEvent[StateUpdate](t, out)
	a.Send(Move{PlayerID: "p2", Position: 2})
	expectEvent[StateUpdate](t, out)

	a.Send(Move{PlayerID: "p1", Position: 8})
	update = expectEvent[StateUpdate](t, out)
	assert.Equal(t, game.StatusFinished, update.Game.Status)
	assert.Equal(t, StatusFinished, update.Room.Status)

	over := expectEvent[GameOver](t, out)
	assert.Equal(t, game.OutcomeX, over.Outcome)
	require.NotNil(t, over.WinningLine)
	assert.Equal(t, [3]int{0, 4, 8}, *over.WinningLine)
}

func TestActor_RejectedCommands(t *testing.T) {
	a, out := spawnTestActor(t, "A", "p1")
	expectEvent[RoomCreated](t, out)

	t.Run("Move before the game starts", func(t *testing.T) {
		a.Send(Move{PlayerID: "p1", Position: 0})
		rejected := expectEvent[Error](t, out)
		assert.Equal(t, "p1", rejected.PlayerID)
		assert.Equal(t, OpMove, rejected.Op)
		assert.Equal(t, game.ErrGameNotInProgress.Error(), rejected.Message)
	})

	a.Send(Join{PlayerID: "p2"})
	expectEvent[PlayerJoined](t, out)
	expectEvent[GameStarted](t, out)

	t.Run("Move on the opponent's turn", func(t *testing.T) {
		a.Send(Move{PlayerID: "p2", Position: 0})
		rejected := expectEvent[Error](t, out)
		assert.Equal(t, "p2", rejected.PlayerID)
		assert.Equal(t, game.ErrNotYourTurn.Error(), rejected.Message)
	})

	t.Run("Third player joining", func(t *testing.T) {
		a.Send(Join{PlayerID: "p3"})
		rejected := expectEvent[Error](t, out)
		assert.Equal(t, "p3", rejected.PlayerID)
		assert.Equal(t, OpJoin, rejected.Op)
		assert.Equal(t, ErrRoomFull.Error(), rejected.Message)
	})

	t.Run("Occupied cell", func(t *testing.T) {
		a.Send(Move{PlayerID: "p1", Position: 0})
		expectEvent[StateUpdate](t, out)
		a.Send(Move{PlayerID: "p2", Position: 0})
		rejected := expectEvent[Error](t, out)
		assert.Equal(t, game.ErrCellOccupied.Error(), rejected.Message)
	})

	t.Run("State is unchanged after rejections", func(t *testing.T) {
		a.Send(Move{PlayerID: "p2", Position: 1})
		update := expectEvent[StateUpdate](t, out)
		assert.Equal(t, []string{"p1", "p2"}, update.Room.Players)
		assert.Equal(t, game.Board{game.PlayerX, game.PlayerO}, update.Game.Board)
	})
}

func TestActor_Draw(t *testing.T) {
	a, out := spawnTestActor(t, "A", "p1")
	expectEvent[RoomCreated](t, out)
	a.Send(Join{PlayerID: "p2"})
	expectEvent[PlayerJoined](t, out)
	expectEvent[GameStarted](t, out)

	// Commands are queued back to back and must be applied in order.
	players := [2]string{"p1", "p2"}
	for i, pos := range []int{0, 1, 2, 4, 3, 5, 7, 6, 8} {
		require.True(t, a.Send(Move{PlayerID: players[i%2], Position: pos}))
	}

	var last StateUpdate
	for range 9 {
		last = expectEvent[StateUpdate](t, out)
	}
	over := expectEvent[GameOver](t, out)

	assert.Equal(t, game.OutcomeDraw, over.Outcome)
	assert.Nil(t, over.WinningLine)
	assert.True(t, game.IsBoardFull(last.Game.Board))
}

func TestActor_LeaveResetsAndEmptyTerminates(t *testing.T) {
	a, out := spawnTestActor(t, "A", "p1")
	expectEvent[RoomCreated](t, out)
	a.Send(Join{PlayerID: "p2"})
	expectEvent[PlayerJoined](t, out)
	expectEvent[GameStarted](t, out)
	a.Send(Move{PlayerID: "p1", Position: 4})
	expectEvent[StateUpdate](t, out)

	a.Send(Leave{PlayerID: "p1"})
	left := expectEvent[PlayerLeft](t, out)
	assert.Equal(t, 1, left.Remaining)
	assert.False(t, left.IsEmpty)
	assert.Equal(t, StatusWaiting, left.Room.Status)
	assert.Equal(t, []string{"p2"}, left.Room.Players)
	assert.Equal(t, game.Board{}, left.Room.Game.Board)

	a.Send(Leave{PlayerID: "p2"})
	left = expectEvent[PlayerLeft](t, out)
	assert.Zero(t, left.Remaining)
	assert.True(t, left.IsEmpty)

	terminated := expectEvent[Terminated](t, out)
	assert.NoError(t, terminated.Err)

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("actor did not exit after the room emptied")
	}
	assert.False(t, a.Send(Join{PlayerID: "p3"}))
}

func TestActor_Stop(t *testing.T) {
	a, out := spawnTestActor(t, "A", "p1")
	expectEvent[RoomCreated](t, out)

	a.Stop()
	a.Stop()

	terminated := expectEvent[Terminated](t, out)
	assert.NoError(t, terminated.Err)
	<-a.Done()
}

func TestActor_FaultIsIsolated(t *testing.T) {
	faulty, faultyOut := spawnTestActor(t, "faulty", "p1")
	healthy, healthyOut := spawnTestActor(t, "healthy", "p3")
	expectEvent[RoomCreated](t, faultyOut)
	expectEvent[RoomCreated](t, healthyOut)

	faulty.Send(explode{})

	terminated := expectEvent[Terminated](t, faultyOut)
	require.Error(t, terminated.Err)
	assert.ErrorIs(t, terminated.Err, ErrActorFault)
	<-faulty.Done()

	healthy.Send(Join{PlayerID: "p4"})
	joined := expectEvent[PlayerJoined](t, healthyOut)
	assert.Equal(t, []string{"p3", "p4"}, joined.Room.Players)
}

func TestActor_ParallelRooms(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const rooms = 50
	out := make(chan Envelope, rooms*8)

	var wg sync.WaitGroup
	for i := range rooms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("room-%d", i)
			a := Spawn(ctx, id, "parallel", "x-"+id, out)
			a.Send(Join{PlayerID: "o-" + id})
			a.Send(Move{PlayerID: "x-" + id, Position: 0})
		}()
	}
	wg.Wait()

	updates := 0
	deadline := time.After(2 * time.Second)
	for updates < rooms {
		select {
		case env := <-out:
			if _, ok := env.Event.(StateUpdate); ok {
				updates++
			}
		case <-deadline:
			t.Fatalf("only %d of %d rooms applied their move", updates, rooms)
		}
	}
}

func TestMailbox_OrderAndClose(t *testing.T) {
	m := newMailbox()
	for i := range 5 {
		require.True(t, m.push(Move{Position: i}))
	}

	for i := range 3 {
		cmd, ok := m.pop()
		require.True(t, ok)
		assert.Equal(t, i, cmd.(Move).Position)
	}

	assert.Equal(t, 2, m.close())
	assert.False(t, m.push(Join{}))
	_, ok := m.pop()
	assert.False(t, ok)
}
