package ws

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer.
	maxMessageSize = 16 << 10

	DefaultBufferSize = 256
)

// Conn is one participant's event channel.
// Outbound events are queued and written by a dedicated goroutine, so Consume never blocks a broadcast.
type Conn struct {
	id     string
	socket *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

func newConn(socket *websocket.Conn, bufferSize int, log *slog.Logger) *Conn {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	id := uuid.NewString()
	return &Conn{
		id:     id,
		socket: socket,
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
		log:    log.With("conn_id", id),
	}
}

func (c *Conn) ID() string { return c.id }

// Consume queues an outbound event. A full queue fails fast with ErrBackpressure.
func (c *Conn) Consume(_ context.Context, evt event.Outbound) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	frame, err := event.EncodeOutbound(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.Name(), err)
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
		return fmt.Errorf("%w: %d frames pending", errors.ErrBackpressure, len(c.send))
	}
}

// Close stops the write pump and closes the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.socket != nil {
			_ = c.socket.Close()
		}
	})
}

// Session is what the read pump feeds decoded events into.
type Session interface {
	Handle(ctx context.Context, in event.Inbound) error
	Close(ctx context.Context)
}

// ReadPump decodes frames and hands them to the session one at a time, in arrival order.
// Malformed or unknown frames are dropped; the connection stays open.
func (c *Conn) ReadPump(ctx context.Context, session Session) {
	defer func() {
		session.Close(ctx)
		c.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		in, err := event.DecodeInbound(frame)
		if err != nil {
			c.log.Warn("Frame dropped", "error", err)
			continue
		}
		if err := session.Handle(ctx, in); err != nil {
			if errors.IsValidation(err) {
				c.log.Warn("Event rejected", "event", in.Name(), "error", err)
				continue
			}
			c.log.Error("Failed to handle event", "event", in.Name(), "error", err)
			if goerrors.Is(err, errors.ErrDisconnected) {
				return
			}
		}
	}
}

// WritePump drains the send queue to the socket and keeps the peer alive with pings.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Warn("Failed to write frame", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
