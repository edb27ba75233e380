package room

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("room")

// CommandObserver is notified after every processed command.
type CommandObserver func(op Op, elapsed time.Duration, rejected bool)

// Option configures an Actor.
type Option func(*Actor)

// WithLogger sets the actor's logger. The room id is added to every record.
func WithLogger(l *slog.Logger) Option {
	return func(a *Actor) {
		a.logger = l
	}
}

// WithCommandObserver registers a callback invoked after each command.
func WithCommandObserver(fn CommandObserver) Option {
	return func(a *Actor) {
		a.observe = fn
	}
}

// Actor owns one room's State and applies commands from its mailbox one at a
// time. Nothing outside the actor goroutine touches the state.
type Actor struct {
	id       string
	state    *State
	mailbox  *mailbox
	out      chan<- Envelope
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	logger   *slog.Logger
	observe  CommandObserver
}

// Spawn creates the room, starts its goroutine and returns its handle. The
// first event on out is RoomCreated, the last is Terminated. Events are
// dropped once ctx is cancelled so a stopped consumer never blocks the actor.
func Spawn(ctx context.Context, id, name, creator string, out chan<- Envelope, opts ...Option) *Actor {
	a := &Actor{
		id:      id,
		state:   NewState(id, name, creator),
		mailbox: newMailbox(),
		out:     out,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("room.id", id)

	go a.run(ctx)
	return a
}

// ID returns the room id.
func (a *Actor) ID() string {
	return a.id
}

// Send enqueues cmd without waiting for it to be processed. It returns false
// if the actor has already exited.
func (a *Actor) Send(cmd Command) bool {
	return a.mailbox.push(cmd)
}

// Stop asks the actor to exit after the command in flight, if any.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		close(a.stop)
	})
}

// Done is closed when the actor goroutine has exited.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// run is the actor loop.
func (a *Actor) run(ctx context.Context) {
	var exitErr error

	defer func() {
		if dropped := a.mailbox.close(); dropped > 0 {
			a.logger.WarnContext(ctx, "Room actor exiting with queued commands", "dropped", dropped)
		}
		a.emit(ctx, Terminated{Err: exitErr})
		close(a.done)
	}()

	a.logger.InfoContext(ctx, "Room actor started", "room.name", a.state.Name, "player.id", a.state.Players[0])
	a.emit(ctx, RoomCreated{Room: a.state.Snapshot()})

	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "Room actor context done, stopping")
			return
		case <-a.stop:
			a.logger.InfoContext(ctx, "Room actor stop requested")
			return
		case <-a.mailbox.ready():
		}

		for {
			select {
			case <-a.stop:
				a.logger.InfoContext(ctx, "Room actor stop requested")
				return
			default:
			}

			cmd, ok := a.mailbox.pop()
			if !ok {
				break
			}

			if err := a.process(ctx, cmd); err != nil {
				a.logger.ErrorContext(ctx, "Room actor crashed", "op", cmd.Op(), "error", err)
				exitErr = err
				return
			}

			if a.state.Empty() {
				a.logger.InfoContext(ctx, "Room is empty, actor exiting")
				return
			}
		}
	}
}

// process runs one command to completion, turning a panic into an error.
func (a *Actor) process(ctx context.Context, cmd Command) (err error) {
	start := time.Now()
	rejected := false

	defer func() {
		if r := recover(); r != nil {
			a.logger.ErrorContext(ctx, "panic while processing command", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrActorFault, r)
			return
		}
		if a.observe != nil {
			a.observe(cmd.Op(), time.Since(start), rejected)
		}
	}()

	rejected = a.handleCommand(ctx, cmd)
	return nil
}

// emit delivers ev to the registry in order.
func (a *Actor) emit(ctx context.Context, ev Event) {
	select {
	case a.out <- Envelope{RoomID: a.id, Event: ev}:
	case <-ctx.Done():
	}
}
