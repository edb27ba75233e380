package player

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -source=player.go -destination=mock_connection.go -package=player -exclude_interfaces=keepAlive

var tracer = otel.Tracer("player")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024

	// DefaultSendBuffer is the outbound queue length used when none is given.
	DefaultSendBuffer = 32
)

// ErrSendBufferFull is returned when a slow connection cannot keep up.
var ErrSendBufferFull = errors.New("player send buffer full")

// Connection is an interface that abstracts the websocket connection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// keepAlive is implemented by *websocket.Conn; bots and test doubles skip pings.
type keepAlive interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// Player is one connected client. Send is only called by the hub goroutine,
// which also owns Close.
type Player struct {
	ID    string
	Name  string
	IsBot bool
	Conn  Connection

	send      chan []byte
	closeOnce sync.Once
}

// NewPlayer creates a new player with an outbound queue of sendBuffer frames.
func NewPlayer(id string, conn Connection, sendBuffer int) *Player {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Player{
		ID:   id,
		Conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// Send marshals msg and queues it for the write pump without blocking.
func (p *Player) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case p.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump, which then closes the connection.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		close(p.send)
	})
}

// WritePump drains the outbound queue to the connection until Close is called
// or a write fails.
func (p *Player) WritePump(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "player.WritePump", trace.WithAttributes(
		attribute.String("player.id", p.ID),
	))
	defer span.End()

	ka, _ := p.Conn.(keepAlive)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-p.send:
			if !ok {
				if ka != nil {
					_ = ka.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				}
				return
			}
			if err := p.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.WarnContext(ctx, "error writing message to player", "player.id", p.ID, "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "Error writing message to player")
				return
			}
		case <-ticker.C:
			if ka == nil {
				continue
			}
			if err := ka.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.WarnContext(ctx, "ping failed", "player.id", p.ID, "error", err)
				return
			}
		}
	}
}

// ReadPump passes every inbound frame to handle until the connection fails.
// onClose runs exactly once when reading stops.
func (p *Player) ReadPump(ctx context.Context, handle func(data []byte), onClose func()) {
	ctx, span := tracer.Start(ctx, "player.ReadPump", trace.WithAttributes(
		attribute.String("player.id", p.ID),
	))
	defer span.End()
	defer onClose()

	if ka, ok := p.Conn.(keepAlive); ok {
		ka.SetReadLimit(maxMessageSize)
		_ = ka.SetReadDeadline(time.Now().Add(pongWait))
		ka.SetPongHandler(func(string) error {
			return ka.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, msg, err := p.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "Player connection error", "player.id", p.ID, "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "Player connection error")
			} else {
				slog.InfoContext(ctx, "Player connection closed", "player.id", p.ID)
			}
			return
		}
		handle(msg)
	}
}
