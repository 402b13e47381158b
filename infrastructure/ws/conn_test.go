package ws

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestConn_ConsumeBackpressure(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a connection with room for two frames and no writer draining it
	c := newConn(nil, 2, log)
	evt := event.UserTyping{Username: "User1234"}

	// When three events are queued
	req.NoError(c.Consume(context.Background(), evt))
	req.NoError(c.Consume(context.Background(), evt))
	err := c.Consume(context.Background(), evt)

	// Then the third fails fast instead of blocking
	req.ErrorIs(err, errors.ErrBackpressure)
	req.Len(c.send, 2)
}

func TestConn_ConsumeAfterClose(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a closed connection
	c := newConn(nil, 2, log)
	c.Close()
	c.Close()

	// When an event is delivered
	err := c.Consume(context.Background(), event.UserTyping{Username: "User1234"})

	// Then it is refused
	req.ErrorIs(err, errors.ErrConnectionClosed)
}

func TestConn_QueuedFrameIsEnvelope(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	c := newConn(nil, 1, log)

	// When a typing notice is queued
	req.NoError(c.Consume(context.Background(), event.UserStopTyping{Username: "User4321"}))

	// Then the wire frame carries the event name and the bare username
	req.JSONEq(`{"event":"user stop typing","data":"User4321"}`, string(<-c.send))
}

func TestConn_UniqueIDs(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	a, b := newConn(nil, 1, log), newConn(nil, 1, log)
	req.NotEqual(a.ID(), b.ID())
}
