// Package hub contains the session coordinator: the single place where
// inbound envelopes become state changes and state changes become teacher
// broadcasts. One goroutine consumes all coordination channels, so
// command application is serialized without locks at this level; the
// state store's own mutex covers the out-of-band snapshot readers.
package hub

import (
	"context"
	"errors"
	"log"
	"sync"

	"classboard/internal/state"
	"classboard/internal/websocket"
	"classboard/pkg/interfaces"
	"classboard/pkg/protocol"
	"classboard/pkg/types"
)

// Coordinator applies the per-envelope pipeline: decode, check the
// sender's role for privileged commands, mutate the store, broadcast the
// resulting snapshot to every authenticated teacher. It also owns
// resynchronization: a teacher connection receives a full snapshot at
// registration, before joining the broadcast set, so a reconnecting
// observer is never stale.
type Coordinator struct {
	inbound    chan *envelope
	register   chan interfaces.Connection
	unregister chan string
	shutdown   chan struct{}

	store    *state.Store
	registry *websocket.Registry
	limiter  *RateLimiter

	running bool
	mu      sync.RWMutex
}

// envelope pairs a raw inbound frame with its sending connection.
type envelope struct {
	conn interfaces.Connection
	raw  []byte
}

// NewCoordinator wires the coordinator to its store and registry.
// messagesPerMinute caps inbound envelopes per connection.
func NewCoordinator(store *state.Store, registry *websocket.Registry, messagesPerMinute int) *Coordinator {
	return &Coordinator{
		inbound:    make(chan *envelope, 1000),
		register:   make(chan interfaces.Connection, 100),
		unregister: make(chan string, 100),
		shutdown:   make(chan struct{}),
		store:      store,
		registry:   registry,
		limiter:    NewRateLimiter(messagesPerMinute),
	}
}

// Start launches the coordination goroutine.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	log.Println("starting session coordinator")
	go c.run(ctx)
	return nil
}

// Stop shuts the coordination goroutine down.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}
	c.running = false

	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}
	return nil
}

// Register queues a connection for registration. Implements
// interfaces.Coordinator.
func (c *Coordinator) Register(conn interfaces.Connection) error {
	if err := c.checkRunning(); err != nil {
		return err
	}
	select {
	case c.register <- conn:
		return nil
	default:
		return ErrRegisterChannelFull
	}
}

// Unregister queues a connection id for removal after its transport
// closed. Implements interfaces.Coordinator.
func (c *Coordinator) Unregister(connID string) error {
	if err := c.checkRunning(); err != nil {
		return err
	}
	select {
	case c.unregister <- connID:
		return nil
	default:
		return ErrUnregisterChannelFull
	}
}

// Dispatch queues one raw inbound envelope. Implements
// interfaces.Coordinator.
func (c *Coordinator) Dispatch(conn interfaces.Connection, raw []byte) error {
	if err := c.checkRunning(); err != nil {
		return err
	}
	select {
	case c.inbound <- &envelope{conn: conn, raw: raw}:
		return nil
	default:
		return ErrInboundChannelFull
	}
}

func (c *Coordinator) checkRunning() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.running {
		return ErrNotRunning
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context) {
	defer log.Println("session coordinator stopped")

	for {
		select {
		case env := <-c.inbound:
			c.handleEnvelope(env)
		case conn := <-c.register:
			c.handleRegister(conn)
		case connID := <-c.unregister:
			c.handleUnregister(connID)
		case <-c.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleEnvelope runs the command pipeline for one inbound frame.
// A malformed or invalid envelope, or a privileged command from a
// student connection, closes only the offending connection after an
// error-frame notify; state is never touched on any failure path.
func (c *Coordinator) handleEnvelope(env *envelope) {
	conn := env.conn

	if !c.limiter.Allow(conn.ID()) {
		c.notify(conn, protocol.ReasonRateLimited, "")
		return
	}

	cmd, err := protocol.Decode(env.raw)
	if err != nil {
		reason := protocol.ReasonInvalid
		if errors.Is(err, protocol.ErrMalformedEnvelope) {
			reason = protocol.ReasonMalformed
		}
		log.Printf("rejecting envelope from %s (%s): %v", conn.ID(), conn.Role(), err)
		c.drop(conn, reason, err.Error())
		return
	}

	if protocol.Privileged(cmd) && conn.Role() != types.RoleTeacher {
		log.Printf("unauthorized %T from %s connection %s", cmd, conn.Role(), conn.ID())
		c.drop(conn, protocol.ReasonUnauthorized, "teacher role required")
		return
	}

	switch cmd := cmd.(type) {
	case protocol.NewFeedback:
		c.store.UpsertReaction(cmd.Student, cmd.Kind)
	case protocol.ClearFeedback:
		c.store.ClearReactions()
	case protocol.NewQuestion:
		id := c.store.AddQuestion(cmd.Student, cmd.Text)
		log.Printf("question %d added by %q", id, cmd.Student)
	case protocol.DeleteQuestion:
		c.store.DeleteQuestion(cmd.ID)
	}

	c.broadcast()
}

// handleRegister adds a connection to the registry. Teacher connections
// get a snapshot unicast first; only after that send succeeds do they
// join the broadcast set, so the first frame a teacher sees is always a
// complete state, never a delta-less update mid-stream.
func (c *Coordinator) handleRegister(conn interfaces.Connection) {
	if conn == nil {
		log.Println("attempted to register nil connection")
		return
	}

	if conn.Role() == types.RoleTeacher {
		frame, err := protocol.EncodeUpdate(c.store.Snapshot())
		if err != nil {
			log.Printf("failed to encode join snapshot: %v", err)
			_ = conn.Close()
			return
		}
		if err := conn.Send(frame); err != nil {
			log.Printf("failed to send join snapshot to %s: %v", conn.ID(), err)
			_ = conn.Close()
			return
		}
	}

	if err := c.registry.Add(conn); err != nil {
		log.Printf("connection registration failed for %s: %v", conn.ID(), err)
		_ = conn.Close()
		return
	}
	log.Printf("connection registered: id=%s role=%s", conn.ID(), conn.Role())
}

func (c *Coordinator) handleUnregister(connID string) {
	c.registry.Remove(connID)
	c.limiter.Forget(connID)
	log.Printf("connection unregistered: id=%s", connID)
}

// broadcast pushes the current snapshot to all teacher connections.
// The snapshot is taken after the triggering mutation completed, so
// every broadcast payload reflects a fully consistent state even though
// later mutations may already be queued behind it.
func (c *Coordinator) broadcast() {
	frame, err := protocol.EncodeUpdate(c.store.Snapshot())
	if err != nil {
		log.Printf("failed to encode broadcast snapshot: %v", err)
		return
	}
	c.registry.BroadcastTeachers(frame)
}

// notify sends an error frame without closing the connection.
func (c *Coordinator) notify(conn interfaces.Connection, reason, detail string) {
	if err := conn.Send(protocol.EncodeErrorFrame(reason, detail)); err != nil {
		log.Printf("failed to notify %s: %v", conn.ID(), err)
	}
}

// drop notifies the connection of the violation, then removes and closes
// it. Delivery of the notice is best-effort; the close is not.
func (c *Coordinator) drop(conn interfaces.Connection, reason, detail string) {
	c.notify(conn, reason, detail)
	c.registry.Remove(conn.ID())
	c.limiter.Forget(conn.ID())
	if err := conn.Close(); err != nil {
		log.Printf("failed to close dropped connection %s: %v", conn.ID(), err)
	}
}
