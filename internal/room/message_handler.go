package room

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// handleCommand dispatches one command and reports whether it was rejected.
func (a *Actor) handleCommand(ctx context.Context, cmd Command) bool {
	switch c := cmd.(type) {
	case Join:
		return a.handleJoin(ctx, c)
	case Leave:
		return a.handleLeave(ctx, c)
	case Move:
		return a.handleMove(ctx, c)
	default:
		panic(fmt.Sprintf("room: unhandled command %T", cmd))
	}
}

// handleJoin seats a second player and starts the game when the room fills.
func (a *Actor) handleJoin(ctx context.Context, c Join) bool {
	ctx, span := tracer.Start(ctx, "room.handleJoin", trace.WithAttributes(
		attribute.String("player.id", c.PlayerID),
		attribute.String("room.id", a.id),
	))
	defer span.End()

	started, err := a.state.Join(c.PlayerID)
	if err != nil {
		a.logger.WarnContext(ctx, "join rejected", "player.id", c.PlayerID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Join rejected")
		a.reject(ctx, c.PlayerID, OpJoin, err)
		return true
	}

	snap := a.state.Snapshot()
	a.emit(ctx, PlayerJoined{Room: snap})

	if started {
		a.logger.InfoContext(ctx, "Room full, game started", "player.x", snap.Players[0], "player.o", snap.Players[1])
		span.SetAttributes(attribute.Bool("game.started", true))
		a.emit(ctx, GameStarted{Room: snap, TurnOrder: [2]string{snap.Players[0], snap.Players[1]}})
	}
	return false
}

// handleMove validates and applies a move.
func (a *Actor) handleMove(ctx context.Context, c Move) bool {
	ctx, span := tracer.Start(ctx, "room.handleMove", trace.WithAttributes(
		attribute.String("player.id", c.PlayerID),
		attribute.String("room.id", a.id),
		attribute.Int("move.position", c.Position),
	))
	defer span.End()

	if err := a.state.Move(c.PlayerID, c.Position); err != nil {
		a.logger.WarnContext(ctx, "invalid move from player", "player.id", c.PlayerID, "position", c.Position, "error", err)
		span.SetAttributes(attribute.Bool("move.valid", false))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid move")
		a.reject(ctx, c.PlayerID, OpMove, err)
		return true
	}
	span.SetAttributes(attribute.Bool("move.valid", true))

	snap := a.state.Snapshot()
	a.emit(ctx, StateUpdate{Game: snap.Game, Room: snap})

	if snap.Game.Finished() {
		a.logger.InfoContext(ctx, "Game over", "outcome", snap.Game.Outcome)
		span.SetAttributes(attribute.String("game.outcome", string(snap.Game.Outcome)))
		a.emit(ctx, GameOver{Outcome: snap.Game.Outcome, WinningLine: snap.Game.Clone().WinningLine})
	}
	return false
}

// handleLeave removes a player; an emptied room ends the actor.
func (a *Actor) handleLeave(ctx context.Context, c Leave) bool {
	ctx, span := tracer.Start(ctx, "room.handleLeave", trace.WithAttributes(
		attribute.String("player.id", c.PlayerID),
		attribute.String("room.id", a.id),
	))
	defer span.End()

	remaining, err := a.state.Leave(c.PlayerID)
	if err != nil {
		a.logger.WarnContext(ctx, "leave rejected", "player.id", c.PlayerID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Leave rejected")
		a.reject(ctx, c.PlayerID, OpLeave, err)
		return true
	}

	span.SetAttributes(attribute.Int("room.remaining", remaining))
	a.logger.InfoContext(ctx, "Player left room", "player.id", c.PlayerID, "remaining", remaining)
	a.emit(ctx, PlayerLeft{
		PlayerID:  c.PlayerID,
		Remaining: remaining,
		IsEmpty:   remaining == 0,
		Room:      a.state.Snapshot(),
	})
	return false
}

func (a *Actor) reject(ctx context.Context, playerID string, op Op, err error) {
	a.emit(ctx, Error{PlayerID: playerID, Op: op, Message: err.Error()})
}
