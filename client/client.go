package client

import (
	"chat-relay/domain/event"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is one terminal participant connected to the relay.
type Client struct {
	log     *slog.Logger
	conn    *websocket.Conn
	printer *Printer
	mu      sync.Mutex
}

func Dial(ctx context.Context, url string, log *slog.Logger, printer *Printer) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", url, err)
	}
	return &Client{log: log, conn: conn, printer: printer}, nil
}

// Listen prints every event pushed by the server until the connection or ctx ends.
func (c *Client) Listen(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		evt, err := event.DecodeOutbound(frame)
		if err != nil {
			c.log.Warn("Ignoring frame", "error", err)
			continue
		}
		c.printer.Print(evt)
	}
}

func (c *Client) Send(in event.Inbound) error {
	frame, err := event.EncodeInbound(in)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close says goodbye to the server, then drops the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.conn.Close()
}
