package hub

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/events"
	"ctchen222/tictactoe-rooms/internal/hub/types"
	"ctchen222/tictactoe-rooms/internal/monitor"
	"ctchen222/tictactoe-rooms/internal/player"
	"ctchen222/tictactoe-rooms/internal/repository"
	"ctchen222/tictactoe-rooms/internal/room"
	"ctchen222/tictactoe-rooms/pkg/proto"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("hub")

const (
	criticalErrorMessage = "A critical error occurred in the game room."
	roomNotFoundMessage  = "Room not found or is full."
	alreadyInRoomMessage = "You are already in a room."
	notInRoomMessage     = "You are not in a room."
	botNotAllowedMessage = "A bot can only join a room that is waiting for an opponent."

	eventBuffer   = 256
	publishBuffer = 256
	resultBuffer  = 64
)

// Config holds the hub's timing and buffering policy.
type Config struct {
	// SweepInterval is how often exited or empty rooms are reclaimed. Zero
	// disables the sweep.
	SweepInterval time.Duration
	// GameOverDelay postpones game-over delivery so clients can render the
	// final move first. Zero delivers immediately.
	GameOverDelay time.Duration
	// SendBuffer is the outbound queue length per connection.
	SendBuffer int
	// BotThinkTime is how long a bot waits before answering its turn.
	BotThinkTime time.Duration
}

// Option configures a Hub.
type Option func(*Hub)

// WithPublisher sets where room events are published.
func WithPublisher(p events.Publisher) Option {
	return func(h *Hub) {
		h.publisher = p
	}
}

// WithResults sets the ledger finished games are recorded in.
func WithResults(r repository.ResultRepository) Option {
	return func(h *Hub) {
		h.results = r
	}
}

// WithMetrics sets the metrics the hub and its rooms report to.
func WithMetrics(m *monitor.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

type deferredDelivery struct {
	roomID     string
	recipients []string
	msg        any
}

// Hub is the room registry and client gateway. All of its maps are owned by
// the Run goroutine; other goroutines reach it only through channels.
type Hub struct {
	cfg       Config
	publisher events.Publisher
	results   repository.ResultRepository
	metrics   *monitor.Metrics

	register   chan *types.RegistrationRequest
	unregister chan string
	inbound    chan *types.ClientMessage
	events     chan room.Envelope
	deferred   chan deferredDelivery
	roomsQuery chan chan []room.Snapshot

	publishQueue chan events.Event
	resultQueue  chan repository.GameResult

	connections map[string]*player.Player
	connRooms   map[string]string
	rooms       map[string]*room.Actor
	snapshots   map[string]room.Snapshot

	workers sync.WaitGroup
}

// NewHub creates a new hub.
func NewHub(cfg Config, opts ...Option) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = player.DefaultSendBuffer
	}

	h := &Hub{
		cfg:          cfg,
		publisher:    events.NopPublisher{},
		register:     make(chan *types.RegistrationRequest),
		unregister:   make(chan string),
		inbound:      make(chan *types.ClientMessage),
		events:       make(chan room.Envelope, eventBuffer),
		deferred:     make(chan deferredDelivery),
		roomsQuery:   make(chan chan []room.Snapshot),
		publishQueue: make(chan events.Event, publishBuffer),
		resultQueue:  make(chan repository.GameResult, resultBuffer),
		connections:  make(map[string]*player.Player),
		connRooms:    make(map[string]string),
		rooms:        make(map[string]*room.Actor),
		snapshots:    make(map[string]room.Snapshot),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = monitor.NewMetrics("tictactoe", nil)
	}
	return h
}

// Run starts the hub and blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Hub started")

	h.workers.Add(2)
	go h.runPublisher(ctx)
	go h.runRecorder(ctx)

	var sweep <-chan time.Time
	if h.cfg.SweepInterval > 0 {
		ticker := time.NewTicker(h.cfg.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	defer h.shutdown(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-h.register:
			h.handleRegister(ctx, req)

		case playerID := <-h.unregister:
			h.handleUnregister(ctx, playerID)

		case msg := <-h.inbound:
			h.handleClientMessage(ctx, msg)

		case env := <-h.events:
			h.handleRoomEvent(ctx, env)

		case d := <-h.deferred:
			h.deliverDeferred(ctx, d)

		case reply := <-h.roomsQuery:
			reply <- h.roomList()

		case <-sweep:
			h.sweep(ctx)
		}
	}
}

// shutdown stops every room and connection once Run exits.
func (h *Hub) shutdown(ctx context.Context) {
	for id, actor := range h.rooms {
		actor.Stop()
		<-actor.Done()
		delete(h.rooms, id)
	}
	for id, p := range h.connections {
		p.Close()
		delete(h.connections, id)
	}
	h.workers.Wait()
	slog.InfoContext(ctx, "Hub stopped")
}

// Register returns the register channel.
func (h *Hub) Register() chan<- *types.RegistrationRequest {
	return h.register
}

// Rooms returns the latest snapshot of every live room.
func (h *Hub) Rooms(ctx context.Context) ([]room.Snapshot, error) {
	reply := make(chan []room.Snapshot, 1)
	select {
	case h.roomsQuery <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rooms := <-reply:
		return rooms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// roomsUpdated is the full room list message.
func (h *Hub) roomsUpdated() *proto.RoomsUpdatedMessage {
	return proto.NewRoomsUpdated(h.roomList())
}
