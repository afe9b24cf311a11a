// Package hub is the room-state coordinator. A single goroutine (Run) owns the
// connection registry, room membership and ephemeral room state; transports feed
// it through Register, Unregister and Dispatch. Every state mutation runs to
// completion on that goroutine before the next event is looked at.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/manpreetbhatti/huddle/internal/registry"
	"github.com/manpreetbhatti/huddle/internal/room"
)

type Options struct {
	// HistoryLimit caps the chat history pushed to a joining connection.
	HistoryLimit int
	// StoreTimeout bounds every call into the MessageStore.
	StoreTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		HistoryLimit: 200,
		StoreTimeout: 5 * time.Second,
	}
}

// task is one unit of work for the loop. Tasks run in the order they were
// queued, so a connection's events always precede its disconnect.
type task struct {
	name   string
	connID string
	fn     func()
}

type Hub struct {
	log   *slog.Logger
	store MessageStore
	opts  Options

	registry *registry.Registry
	members  *room.Membership
	state    *room.StateStore

	// Registrations, client events, disconnects, store completions and
	// snapshot queries
	tasks chan task

	done    chan struct{}
	pending sync.WaitGroup
}

func New(store MessageStore, log *slog.Logger, opts Options) *Hub {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultOptions().HistoryLimit
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultOptions().StoreTimeout
	}
	return &Hub{
		log:      log,
		store:    store,
		opts:     opts,
		registry: registry.New(),
		members:  room.NewMembership(),
		state:    room.NewStateStore(),
		tasks:    make(chan task, 256),
		done:     make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled. On return every remaining peer
// has been closed and in-flight store calls have finished.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Hub started")
	defer func() {
		h.registry.Each(func(c *registry.Connection) {
			c.State = registry.Disconnected
			c.Peer.Close()
		})
		close(h.done)
		h.pending.Wait()
		h.log.Info("Hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-h.tasks:
			h.safely(t)
		}
	}
}

func (h *Hub) enqueue(t task) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.tasks <- t:
		return true
	case <-h.done:
		return false
	}
}

// Register hands a new transport connection to the hub. It reports false once
// the hub has stopped.
func (h *Hub) Register(peer registry.Peer) bool {
	return h.enqueue(task{name: "register", connID: peer.ID(), fn: func() {
		id := h.registry.Register(peer)
		h.log.Debug("Client connected", "conn", id, "clients", h.registry.Len())
	}})
}

// Unregister reports a transport-level disconnect.
func (h *Hub) Unregister(connID string) {
	h.enqueue(task{name: "disconnect", connID: connID, fn: func() {
		h.disconnect(connID)
	}})
}

// Dispatch queues a client event for processing on the loop.
func (h *Hub) Dispatch(connID string, env protocol.Envelope) bool {
	return h.enqueue(task{name: env.Event, connID: connID, fn: func() {
		h.handle(connID, env)
	}})
}

// post schedules fn on the loop; it is dropped once the hub has stopped.
func (h *Hub) post(fn func()) {
	h.enqueue(task{name: "completion", fn: fn})
}

// call runs fn on the loop after everything queued before it, and waits.
func (h *Hub) call(fn func()) bool {
	finished := make(chan struct{})
	if !h.enqueue(task{name: "query", fn: func() { defer close(finished); fn() }}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-h.done:
		return false
	}
}

// async runs store I/O off the loop. Results re-enter through post.
func (h *Hub) async(fn func(ctx context.Context)) {
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				h.log.Error("Store call panicked", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.StoreTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// safely is the fault boundary of the loop: a panicking task is logged and
// the loop carries on with the next one.
func (h *Hub) safely(t task) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Handler panicked", "event", t.name, "conn", t.connID, "panic", r)
		}
	}()
	t.fn()
}
