package hub

import (
	"cmp"
	"context"
	"ctchen222/tictactoe-rooms/internal/room"
	"ctchen222/tictactoe-rooms/pkg/proto"
	"log/slog"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// sendTo queues msg for one connection. A connection that cannot keep up is
// disconnected rather than allowed to stall the hub.
func (h *Hub) sendTo(ctx context.Context, playerID string, msg any) {
	p, ok := h.connections[playerID]
	if !ok {
		return
	}
	if err := p.Send(msg); err != nil {
		slog.WarnContext(ctx, "Error sending message to player, disconnecting", "player.id", playerID, "error", err)
		h.handleUnregister(ctx, playerID)
	}
}

func (h *Hub) sendError(ctx context.Context, playerID, message string) {
	h.sendTo(ctx, playerID, proto.NewError(message))
}

// broadcastRoom sends msg to the room's seated players that are still
// attached to it.
func (h *Hub) broadcastRoom(ctx context.Context, roomID string, msg any) {
	snap, ok := h.snapshots[roomID]
	if !ok {
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("room.recipients", len(snap.Players)))

	for _, playerID := range snap.Players {
		if h.connRooms[playerID] == roomID {
			h.sendTo(ctx, playerID, msg)
		}
	}
}

// attached reports whether playerID is a live connection mapped to roomID.
func (h *Hub) attached(playerID, roomID string) bool {
	_, live := h.connections[playerID]
	return live && h.connRooms[playerID] == roomID
}

// evict removes a player the room seated after its connection had already
// left the room or disconnected.
func (h *Hub) evict(ctx context.Context, roomID, playerID string) {
	slog.InfoContext(ctx, "Removing detached player from room", "room.id", roomID, "player.id", playerID)
	if actor, live := h.rooms[roomID]; live {
		actor.Send(room.Leave{PlayerID: playerID})
	}
}

// broadcastAll sends msg to every connection.
func (h *Hub) broadcastAll(ctx context.Context, msg any) {
	for _, playerID := range slices.Collect(maps.Keys(h.connections)) {
		h.sendTo(ctx, playerID, msg)
	}
}

// roomList returns the cached snapshots ordered by name then id.
func (h *Hub) roomList() []room.Snapshot {
	list := slices.Collect(maps.Values(h.snapshots))
	slices.SortFunc(list, func(a, b room.Snapshot) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return list
}

// releaseRoom forgets a room and every connection mapped to it.
func (h *Hub) releaseRoom(ctx context.Context, roomID string) {
	if actor, ok := h.rooms[roomID]; ok {
		actor.Stop()
		delete(h.rooms, roomID)
	}
	delete(h.snapshots, roomID)
	for playerID, mapped := range h.connRooms {
		if mapped == roomID {
			delete(h.connRooms, playerID)
		}
	}
	h.metrics.SetActiveRooms(len(h.rooms))
	slog.InfoContext(ctx, "Room released", "room.id", roomID)
}
