package hub

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/bot"
	"ctchen222/tictactoe-rooms/internal/hub/types"
	"ctchen222/tictactoe-rooms/internal/player"
	"ctchen222/tictactoe-rooms/internal/room"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// handleRegister accepts a new connection and sends it the room list.
func (h *Hub) handleRegister(ctx context.Context, req *types.RegistrationRequest) {
	spanCtx := ctx
	if req.Ctx != nil {
		spanCtx = trace.ContextWithSpanContext(ctx, trace.SpanContextFromContext(req.Ctx))
	}
	_, span := tracer.Start(spanCtx, "hub.handleRegister", trace.WithAttributes(
		attribute.String("player.id", req.Player.ID),
	))
	defer span.End()

	if _, exists := h.connections[req.Player.ID]; exists {
		slog.WarnContext(ctx, "Duplicate player id, closing new connection", "player.id", req.Player.ID)
		req.Player.Close()
		go req.Player.WritePump(ctx)
		return
	}

	h.addConnection(ctx, req.Player)
	h.sendTo(ctx, req.Player.ID, h.roomsUpdated())
	slog.InfoContext(ctx, "Player registered", "player.id", req.Player.ID, "connections", len(h.connections))
}

// addConnection tracks p and starts its pumps. The pumps reach back into the
// hub only through its channels.
func (h *Hub) addConnection(ctx context.Context, p *player.Player) {
	h.connections[p.ID] = p
	h.metrics.IncOnlineConnections()

	go p.WritePump(ctx)
	go p.ReadPump(ctx, func(data []byte) {
		select {
		case h.inbound <- &types.ClientMessage{PlayerID: p.ID, Data: data}:
		case <-ctx.Done():
		}
	}, func() {
		select {
		case h.unregister <- p.ID:
		case <-ctx.Done():
		}
	})
}

// handleUnregister treats a dropped connection as leaving its room.
func (h *Hub) handleUnregister(ctx context.Context, playerID string) {
	p, ok := h.connections[playerID]
	if !ok {
		return
	}
	ctx, span := tracer.Start(ctx, "hub.handleUnregister", trace.WithAttributes(
		attribute.String("player.id", playerID),
	))
	defer span.End()

	if roomID, inRoom := h.connRooms[playerID]; inRoom {
		span.SetAttributes(attribute.String("room.id", roomID))
		delete(h.connRooms, playerID)
		h.leaveIfSeated(roomID, playerID)
	}

	delete(h.connections, playerID)
	p.Close()
	h.metrics.DecOnlineConnections()
	slog.InfoContext(ctx, "Player disconnected", "player.id", playerID, "bot", p.IsBot)
}

// leaveIfSeated sends Leave only for a player the room has confirmed. A join
// still in flight is reconciled when its PlayerJoined arrives.
func (h *Hub) leaveIfSeated(roomID, playerID string) {
	actor, live := h.rooms[roomID]
	if !live || !h.snapshots[roomID].Has(playerID) {
		return
	}
	actor.Send(room.Leave{PlayerID: playerID})
}

// handleAddBot seats an in-process bot as the caller's opponent.
func (h *Hub) handleAddBot(ctx context.Context, p *player.Player, difficulty string) {
	if difficulty == "" {
		difficulty = bot.DifficultyEasy
	}
	ctx, span := tracer.Start(ctx, "hub.handleAddBot", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("bot.difficulty", difficulty),
	))
	defer span.End()

	roomID, ok := h.connRooms[p.ID]
	if !ok {
		h.sendError(ctx, p.ID, notInRoomMessage)
		return
	}
	actor, live := h.rooms[roomID]
	snap, known := h.snapshots[roomID]
	if !live || !known || snap.Status != room.StatusWaiting || len(snap.Players) != 1 {
		h.sendError(ctx, p.ID, botNotAllowedMessage)
		return
	}

	botID := "bot-" + uuid.NewString()[:8]
	conn := bot.NewBotConnection(botID, difficulty, h.cfg.BotThinkTime)
	bp := player.NewPlayer(botID, conn, h.cfg.SendBuffer)
	bp.Name = "Bot (" + difficulty + ")"
	bp.IsBot = true

	h.addConnection(ctx, bp)
	h.connRooms[botID] = roomID
	actor.Send(room.Join{PlayerID: botID})

	span.SetAttributes(attribute.String("room.id", roomID), attribute.String("bot.id", botID))
	slog.InfoContext(ctx, "Bot added to room", "room.id", roomID, "bot.id", botID, "bot.difficulty", difficulty)
}

// dropBots disconnects bots left alone in a room.
func (h *Hub) dropBots(ctx context.Context, snap room.Snapshot) {
	for _, id := range snap.Players {
		p, ok := h.connections[id]
		if !ok || !p.IsBot {
			return
		}
	}
	for _, id := range snap.Players {
		h.handleUnregister(ctx, id)
	}
}
