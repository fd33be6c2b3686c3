package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps a WebSocket transport with a single-writer goroutine.
// All outbound frames pass through writeCh so gorilla's one-writer rule
// holds no matter how many goroutines call Send. The role is fixed at
// construction; a connection never changes role after the handshake.
type Connection struct {
	conn         *websocket.Conn
	id           string
	role         string
	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection wraps an upgraded WebSocket connection and starts its
// writer goroutine. bufferSize bounds the outbound queue; a slow client
// whose queue fills is dropped rather than allowed to stall broadcasts.
func NewConnection(conn *websocket.Conn, id, role string, bufferSize int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           id,
		role:         role,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues a frame for delivery without blocking. It fails when the
// connection is closed or the outbound buffer is full; the caller treats
// either as grounds for dropping the connection.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close tears down the transport and cancels pending sends. Safe to call
// from any goroutine, any number of times.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection has been torn down. The keepalive
// goroutine uses it to stop pinging.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Connection) ID() string   { return c.id }
func (c *Connection) Role() string { return c.role }
