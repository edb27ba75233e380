package hub

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/hub/types"
	"ctchen222/tictactoe-rooms/internal/player"
	"ctchen222/tictactoe-rooms/internal/room"
	"ctchen222/tictactoe-rooms/pkg/proto"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// handleClientMessage decodes one frame and routes it.
func (h *Hub) handleClientMessage(ctx context.Context, msg *types.ClientMessage) {
	p, ok := h.connections[msg.PlayerID]
	if !ok {
		return
	}

	ctx, span := tracer.Start(ctx, "hub.handleClientMessage", trace.WithAttributes(
		attribute.String("player.id", p.ID),
	))
	defer span.End()

	req, err := proto.DecodeClientMessage(msg.Data)
	if err != nil {
		slog.WarnContext(ctx, "Rejected client message", "player.id", p.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rejected client message")
		h.metrics.IncMessagesReceived("invalid")
		h.sendError(ctx, p.ID, err.Error())
		return
	}
	span.SetAttributes(attribute.String("message.type", req.Type))
	h.metrics.IncMessagesReceived(req.Type)

	switch req.Type {
	case proto.TypeCreateRoom:
		h.handleCreateRoom(ctx, p, req.RoomName)
	case proto.TypeJoinRoom:
		h.handleJoinRoom(ctx, p, req.RoomID)
	case proto.TypeLeaveRoom:
		h.handleLeaveRoom(ctx, p)
	case proto.TypeMakeMove:
		h.handleMakeMove(ctx, p, *req.Position)
	case proto.TypeListRooms:
		h.sendTo(ctx, p.ID, h.roomsUpdated())
	case proto.TypeAddBot:
		h.handleAddBot(ctx, p, req.Difficulty)
	}
}

// handleCreateRoom spawns a room actor with p as its creator.
func (h *Hub) handleCreateRoom(ctx context.Context, p *player.Player, name string) {
	if _, inRoom := h.connRooms[p.ID]; inRoom {
		h.sendError(ctx, p.ID, alreadyInRoomMessage)
		return
	}

	roomID := uuid.NewString()
	if name == "" {
		name = "Room " + roomID[:8]
	}

	// The actor outlives this request; keep cancellation but not the span.
	actorCtx := trace.ContextWithSpanContext(ctx, trace.SpanContext{})
	actor := room.Spawn(actorCtx, roomID, name, p.ID, h.events,
		room.WithLogger(slog.Default()),
		room.WithCommandObserver(func(op room.Op, elapsed time.Duration, rejected bool) {
			h.metrics.ObserveCommand(string(op), elapsed, rejected)
		}),
	)
	h.rooms[roomID] = actor
	h.connRooms[p.ID] = roomID
	h.metrics.SetActiveRooms(len(h.rooms))

	slog.InfoContext(ctx, "Room created", "room.id", roomID, "room.name", name, "player.id", p.ID)
}

// handleJoinRoom forwards a join to an existing room. The actor decides
// whether there is a free seat.
func (h *Hub) handleJoinRoom(ctx context.Context, p *player.Player, roomID string) {
	if _, inRoom := h.connRooms[p.ID]; inRoom {
		h.sendError(ctx, p.ID, alreadyInRoomMessage)
		return
	}
	actor, ok := h.rooms[roomID]
	if !ok {
		slog.WarnContext(ctx, "Join for unknown room", "player.id", p.ID, "room.id", roomID)
		h.sendError(ctx, p.ID, roomNotFoundMessage)
		return
	}
	if !actor.Send(room.Join{PlayerID: p.ID}) {
		h.sendError(ctx, p.ID, roomNotFoundMessage)
		return
	}
	h.connRooms[p.ID] = roomID
}

func (h *Hub) handleLeaveRoom(ctx context.Context, p *player.Player) {
	roomID, ok := h.connRooms[p.ID]
	if !ok {
		h.sendError(ctx, p.ID, notInRoomMessage)
		return
	}
	delete(h.connRooms, p.ID)
	h.leaveIfSeated(roomID, p.ID)
}

func (h *Hub) handleMakeMove(ctx context.Context, p *player.Player, position int) {
	roomID, ok := h.connRooms[p.ID]
	if !ok {
		h.sendError(ctx, p.ID, notInRoomMessage)
		return
	}
	actor, live := h.rooms[roomID]
	if !live || !actor.Send(room.Move{PlayerID: p.ID, Position: position}) {
		delete(h.connRooms, p.ID)
		h.sendError(ctx, p.ID, roomNotFoundMessage)
	}
}
