package hub

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/repository"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const backgroundTimeout = 5 * time.Second

// runPublisher drains the publish queue to the event feed so a slow broker
// never blocks the hub loop.
func (h *Hub) runPublisher(ctx context.Context) {
	defer h.workers.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.publishQueue:
			pubCtx, span := tracer.Start(ctx, "hub.publishEvent", trace.WithAttributes(
				attribute.String("room.id", ev.RoomID),
				attribute.String("event.type", ev.Type),
			))
			pubCtx, cancel := context.WithTimeout(pubCtx, backgroundTimeout)
			if err := h.publisher.Publish(pubCtx, ev); err != nil {
				slog.ErrorContext(pubCtx, "Failed to publish room event", "room.id", ev.RoomID, "event", ev.Type, "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "Failed to publish room event")
			}
			cancel()
			span.End()
		}
	}
}

// recordResult queues a finished game for the results ledger.
func (h *Hub) recordResult(ctx context.Context, result repository.GameResult) {
	if h.results == nil {
		return
	}
	select {
	case h.resultQueue <- result:
	default:
		slog.WarnContext(ctx, "Result queue full, dropping game result", "room.id", result.RoomID)
	}
}

// runRecorder writes queued results to the ledger.
func (h *Hub) runRecorder(ctx context.Context) {
	defer h.workers.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case result := <-h.resultQueue:
			recCtx, cancel := context.WithTimeout(ctx, backgroundTimeout)
			if err := h.results.Record(recCtx, &result); err != nil {
				slog.ErrorContext(recCtx, "Failed to record game result", "room.id", result.RoomID, "error", err)
			} else {
				slog.InfoContext(recCtx, "Game result recorded", "room.id", result.RoomID, "outcome", result.Outcome)
			}
			cancel()
		}
	}
}

// sweep reclaims rooms whose actor has exited or whose last snapshot has no
// players. Normally PlayerLeft and Terminated already release them.
func (h *Hub) sweep(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "hub.sweep")
	defer span.End()

	reclaimed := 0
	for roomID, actor := range h.rooms {
		exited := false
		select {
		case <-actor.Done():
			exited = true
		default:
		}

		snap, known := h.snapshots[roomID]
		if exited || (known && len(snap.Players) == 0) {
			h.releaseRoom(ctx, roomID)
			reclaimed++
		}
	}

	span.SetAttributes(attribute.Int("rooms.reclaimed", reclaimed), attribute.Int("rooms.active", len(h.rooms)))
	if reclaimed > 0 {
		slog.InfoContext(ctx, "Sweep reclaimed rooms", "reclaimed", reclaimed, "active", len(h.rooms))
		h.broadcastAll(ctx, h.roomsUpdated())
	}
}
