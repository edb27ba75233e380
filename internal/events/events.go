package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Pub/Sub channel constants
const (
	RoomsChannel = "channel:rooms"
)

// Event types published on RoomsChannel.
const (
	TypeRoomCreated     = "room_created"
	TypePlayerJoined    = "player_joined"
	TypeGameStarted     = "game_started"
	TypeStateUpdate     = "state_update"
	TypeGameOver        = "game_over"
	TypePlayerLeft      = "player_left"
	TypeCommandRejected = "command_rejected"
	TypeRoomTerminated  = "room_terminated"
)

// Event represents a room event published via Pub/Sub.
type Event struct {
	Type    string          `json:"event"`
	RoomID  string          `json:"room_id"`
	Payload json.RawMessage `json:"payload"`
}

// RejectedPayload is the payload for the "command_rejected" event.
type RejectedPayload struct {
	PlayerID string `json:"player_id"`
	Op       string `json:"op"`
	Message  string `json:"message"`
}

// TerminatedPayload is the payload for the "room_terminated" event.
type TerminatedPayload struct {
	Error string `json:"error,omitempty"`
}

// NewEvent marshals payload into an Event.
func NewEvent(eventType, roomID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, RoomID: roomID, Payload: data}, nil
}

// Publisher fans room events out to external consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisPublisher publishes events on a Redis channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher writing to RoomsChannel.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: RoomsChannel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Subscribe decodes events from RoomsChannel until ctx is done. Malformed
// payloads are skipped.
func Subscribe(ctx context.Context, rdb *redis.Client) (<-chan Event, error) {
	pubsub := rdb.Subscribe(ctx, RoomsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", RoomsChannel, err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// NopPublisher drops every event. It is used when Redis is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
