package hub

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/events"
	"ctchen222/tictactoe-rooms/internal/game"
	"ctchen222/tictactoe-rooms/internal/repository"
	"ctchen222/tictactoe-rooms/internal/room"
	"ctchen222/tictactoe-rooms/pkg/proto"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// handleRoomEvent updates the registry from one actor event and fans it out.
func (h *Hub) handleRoomEvent(ctx context.Context, env room.Envelope) {
	ctx, span := tracer.Start(ctx, "hub.handleRoomEvent", trace.WithAttributes(
		attribute.String("room.id", env.RoomID),
		attribute.String("event.type", eventName(env.Event)),
	))
	defer span.End()

	_, known := h.rooms[env.RoomID]
	if !known {
		// Late events from a room that was already released.
		if t, ok := env.Event.(room.Terminated); ok && t.Err != nil {
			slog.WarnContext(ctx, "Released room terminated with error", "room.id", env.RoomID, "error", t.Err)
		}
		return
	}

	switch ev := env.Event.(type) {
	case room.RoomCreated:
		h.snapshots[env.RoomID] = ev.Room
		creator := ev.Room.Players[0]
		if !h.attached(creator, env.RoomID) {
			h.evict(ctx, env.RoomID, creator)
			break
		}
		h.sendTo(ctx, creator, proto.NewRoomJoined(ev.Room, game.PlayerX))

	case room.PlayerJoined:
		h.snapshots[env.RoomID] = ev.Room
		joiner := ev.Room.Players[len(ev.Room.Players)-1]
		if !h.attached(joiner, env.RoomID) {
			h.evict(ctx, env.RoomID, joiner)
		} else {
			h.sendTo(ctx, joiner, proto.NewRoomJoined(ev.Room, ev.Room.MarkOf(joiner)))
		}
		h.broadcastRoom(ctx, env.RoomID, proto.NewPlayerJoined(ev.Room))

	case room.GameStarted:
		h.snapshots[env.RoomID] = ev.Room
		h.broadcastRoom(ctx, env.RoomID, proto.NewGameStarted(ev.Room, ev.TurnOrder))

	case room.StateUpdate:
		h.snapshots[env.RoomID] = ev.Room
		h.broadcastRoom(ctx, env.RoomID, proto.NewStateUpdate(ev.Game))

	case room.GameOver:
		h.handleGameOver(ctx, env.RoomID, ev)

	case room.PlayerLeft:
		h.snapshots[env.RoomID] = ev.Room
		if ev.IsEmpty {
			h.releaseRoom(ctx, env.RoomID)
			break
		}
		h.broadcastRoom(ctx, env.RoomID, proto.NewPlayerLeft(ev.Remaining))
		h.dropBots(ctx, ev.Room)

	case room.Error:
		h.handleRoomError(ctx, env.RoomID, ev)

	case room.Terminated:
		if ev.Err != nil {
			slog.ErrorContext(ctx, "Room actor crashed", "room.id", env.RoomID, "error", ev.Err)
			span.RecordError(ev.Err)
			span.SetStatus(codes.Error, "Room actor crashed")
			h.metrics.IncRoomFaults()
			h.broadcastRoom(ctx, env.RoomID, proto.NewError(criticalErrorMessage))
		}
		h.releaseRoom(ctx, env.RoomID)

	default:
		slog.ErrorContext(ctx, "Unhandled room event", "room.id", env.RoomID, "event.type", eventName(env.Event))
		return
	}

	h.broadcastAll(ctx, h.roomsUpdated())
	h.publishEvent(ctx, env)
}

// handleGameOver records the result and delivers game-over after the
// configured delay to the players of the game that ended.
func (h *Hub) handleGameOver(ctx context.Context, roomID string, ev room.GameOver) {
	h.metrics.IncGamesFinished(string(ev.Outcome))

	snap := h.snapshots[roomID]
	if len(snap.Players) == room.MaxPlayers {
		h.recordResult(ctx, repository.GameResult{
			RoomID:      roomID,
			RoomName:    snap.Name,
			PlayerX:     snap.Players[0],
			PlayerO:     snap.Players[1],
			Outcome:     ev.Outcome,
			WinningLine: ev.WinningLine,
			FinishedAt:  time.Now().UTC(),
		})
	}

	msg := proto.NewGameOver(ev.Outcome, ev.WinningLine)
	if h.cfg.GameOverDelay <= 0 {
		h.broadcastRoom(ctx, roomID, msg)
		return
	}

	d := deferredDelivery{roomID: roomID, recipients: slices.Clone(snap.Players), msg: msg}
	time.AfterFunc(h.cfg.GameOverDelay, func() {
		select {
		case h.deferred <- d:
		case <-ctx.Done():
		}
	})
}

// deliverDeferred sends a delayed game-over to those of its players still in
// the room. It is dropped once the room has started another game.
func (h *Hub) deliverDeferred(ctx context.Context, d deferredDelivery) {
	snap, ok := h.snapshots[d.roomID]
	if !ok || snap.Game.Status == game.StatusPlaying {
		slog.DebugContext(ctx, "Dropping stale game over", "room.id", d.roomID)
		return
	}
	for _, playerID := range d.recipients {
		if h.connRooms[playerID] == d.roomID {
			h.sendTo(ctx, playerID, d.msg)
		}
	}
}

// handleRoomError sends a rejection to the player that caused it. Rejections
// for players that have since disconnected are only logged.
func (h *Hub) handleRoomError(ctx context.Context, roomID string, ev room.Error) {
	if ev.Op == room.OpJoin && h.connRooms[ev.PlayerID] == roomID {
		delete(h.connRooms, ev.PlayerID)
		if p, ok := h.connections[ev.PlayerID]; ok && p.IsBot {
			h.handleUnregister(ctx, p.ID)
			return
		}
	}

	if _, ok := h.connections[ev.PlayerID]; !ok {
		slog.InfoContext(ctx, "Dropping rejection for departed player", "room.id", roomID, "player.id", ev.PlayerID, "op", ev.Op, "error", ev.Message)
		return
	}
	h.sendTo(ctx, ev.PlayerID, proto.NewError(ev.Message))
}

// publishEvent queues env for the external event feed.
func (h *Hub) publishEvent(ctx context.Context, env room.Envelope) {
	ev, err := feedEvent(env)
	if err != nil {
		slog.ErrorContext(ctx, "Could not build feed event", "room.id", env.RoomID, "error", err)
		return
	}

	select {
	case h.publishQueue <- ev:
	default:
		slog.WarnContext(ctx, "Publish queue full, dropping event", "room.id", env.RoomID, "event", ev.Type)
	}
}

// feedEvent maps an actor event to its published form.
func feedEvent(env room.Envelope) (events.Event, error) {
	switch ev := env.Event.(type) {
	case room.RoomCreated:
		return events.NewEvent(events.TypeRoomCreated, env.RoomID, ev.Room)
	case room.PlayerJoined:
		return events.NewEvent(events.TypePlayerJoined, env.RoomID, ev.Room)
	case room.GameStarted:
		return events.NewEvent(events.TypeGameStarted, env.RoomID, proto.NewGameStarted(ev.Room, ev.TurnOrder))
	case room.StateUpdate:
		return events.NewEvent(events.TypeStateUpdate, env.RoomID, ev.Game)
	case room.GameOver:
		return events.NewEvent(events.TypeGameOver, env.RoomID, proto.NewGameOver(ev.Outcome, ev.WinningLine))
	case room.PlayerLeft:
		return events.NewEvent(events.TypePlayerLeft, env.RoomID, ev.Room)
	case room.Error:
		return events.NewEvent(events.TypeCommandRejected, env.RoomID, events.RejectedPayload{
			PlayerID: ev.PlayerID,
			Op:       string(ev.Op),
			Message:  ev.Message,
		})
	case room.Terminated:
		payload := events.TerminatedPayload{}
		if ev.Err != nil {
			payload.Error = ev.Err.Error()
		}
		return events.NewEvent(events.TypeRoomTerminated, env.RoomID, payload)
	default:
		return events.Event{}, fmt.Errorf("unknown room event %T", env.Event)
	}
}

func eventName(ev room.Event) string {
	return fmt.Sprintf("%T", ev)
}
