package runtime

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const sharedKey = "secret-key-123"

var now = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func newTestRouter(opts ...RouterOption) (*Router, *Registry) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry(WithNameGenerator(sequentialNames()))
	opts = append([]RouterOption{WithClock(fixedClock(now)), WithPlaintextEcho(true)}, opts...)
	return NewRouter(log, registry, codec.NewXOR(sharedKey), opts...), registry
}

func TestRouter_Scenario_Join_Chat_Leave(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, _ := newTestRouter()
	a, b := newConn(), newConn()

	// When A connects
	sessionA := router.Open(ctx, a)

	// Then A receives its own join with only itself listed
	req.Equal(event.UserJoined{Presence: event.Presence{
		Username:  "User1000",
		Users:     []string{"User1000"},
		Timestamp: "2024-05-01T12:30:00.000Z",
	}}, a.Last())

	// When B connects
	sessionB := router.Open(ctx, b)

	// Then both receive the join of B, users in join order
	joined := event.UserJoined{Presence: event.Presence{
		Username:  "User1001",
		Users:     []string{"User1000", "User1001"},
		Timestamp: "2024-05-01T12:30:00.000Z",
	}}
	req.Equal(joined, a.Last())
	req.Equal(joined, b.Last())

	// When A says hi
	req.NoError(sessionA.Handle(ctx, event.ChatMessageRequest{Message: "hi"}))

	// Then both receive the same message, decryptable to "hi"
	msgA, ok := a.Last().(event.ChatMessage)
	req.True(ok)
	msgB, ok := b.Last().(event.ChatMessage)
	req.True(ok)
	req.Equal(msgA, msgB)
	req.Equal("User1000", msgA.Username)
	req.Equal("text", msgA.Type)
	req.Equal("hi", msgA.OriginalMessage)
	plain, err := codec.Decrypt(msgA.Message, sharedKey)
	req.NoError(err)
	req.Equal("hi", plain)

	// When B disconnects
	req.NoError(sessionB.Handle(ctx, event.Disconnect{}))

	// Then A learns B left
	req.Equal(event.UserLeft{Presence: event.Presence{
		Username:  "User1001",
		Users:     []string{"User1000"},
		Timestamp: "2024-05-01T12:30:00.000Z",
	}}, a.Last())
	req.Equal(Disconnected, sessionB.State())
	req.Equal(Connected, sessionA.State())
}

func TestRouter_Chat_Delivers_Once_To_Every_Connection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, _ := newTestRouter()

	conns := []*recordingConn{newConn(), newConn(), newConn(), newConn()}
	sessions := make([]*Session, 0, len(conns))
	for _, c := range conns {
		sessions = append(sessions, router.Open(ctx, c))
	}
	for _, c := range conns {
		c.Reset()
	}

	req.NoError(sessions[2].Handle(ctx, event.ChatMessageRequest{Message: "hello all"}))

	var first event.ChatMessage
	for i, c := range conns {
		events := c.Events()
		req.Len(events, 1)
		msg, ok := events[0].(event.ChatMessage)
		req.True(ok)
		if i == 0 {
			first = msg
			continue
		}
		req.Equal(first.ID, msg.ID)
		req.Equal(first.Timestamp, msg.Timestamp)
	}
}

func TestRouter_Message_Ids_Are_Unique(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	// The clock is frozen, ids must still differ
	router, _ := newTestRouter()
	conn := newConn()
	session := router.Open(ctx, conn)
	conn.Reset()

	req.NoError(session.Handle(ctx, event.ChatMessageRequest{Message: "one"}))
	req.NoError(session.Handle(ctx, event.FileUploadRequest{Filename: "1-2.png", OriginalName: "a.png", Size: 3}))
	req.NoError(session.Handle(ctx, event.ChatMessageRequest{Message: "two"}))

	events := conn.Events()
	req.Len(events, 3)
	ids := map[string]struct{}{
		events[0].(event.ChatMessage).ID: {},
		events[1].(event.FileUpload).ID:  {},
		events[2].(event.ChatMessage).ID: {},
	}
	req.Len(ids, 3)
}

func TestRouter_Typing_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, _ := newTestRouter()
	a, b, c := newConn(), newConn(), newConn()
	sessionA := router.Open(ctx, a)
	router.Open(ctx, b)
	router.Open(ctx, c)
	a.Reset()
	b.Reset()
	c.Reset()

	// When A starts typing
	req.NoError(sessionA.Handle(ctx, event.TypingStarted{}))

	// Then everyone but A is told
	req.Empty(a.Events())
	req.Equal([]event.Outbound{event.UserTyping{Username: "User1000"}}, b.Events())
	req.Equal([]event.Outbound{event.UserTyping{Username: "User1000"}}, c.Events())

	// When A stops typing
	req.NoError(sessionA.Handle(ctx, event.TypingStopped{}))

	req.Empty(a.Events())
	req.Equal(event.UserStopTyping{Username: "User1000"}, b.Last())
	req.Equal(event.UserStopTyping{Username: "User1000"}, c.Last())
}

func TestRouter_File_Notice_Broadcast_To_All(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, _ := newTestRouter()
	a, b := newConn(), newConn()
	sessionA := router.Open(ctx, a)
	router.Open(ctx, b)

	req.NoError(sessionA.Handle(ctx, event.FileUploadRequest{
		Filename:     "1714566600000-42.pdf",
		OriginalName: "report.pdf",
		Size:         2048,
	}))

	for _, c := range []*recordingConn{a, b} {
		notice, ok := c.Last().(event.FileUpload)
		req.True(ok)
		req.Equal("User1000", notice.Username)
		req.Equal("1714566600000-42.pdf", notice.Filename)
		req.Equal("report.pdf", notice.OriginalName)
		req.Equal(int64(2048), notice.Size)
		req.Equal("/uploads/1714566600000-42.pdf", notice.URL)
		req.Equal("file", notice.Type)
		req.Equal("2024-05-01T12:30:00.000Z", notice.Timestamp)
	}
}

func TestRouter_Rejects_Invalid_Payloads(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, _ := newTestRouter()
	conn := newConn()
	session := router.Open(ctx, conn)
	conn.Reset()

	invalid := []event.Inbound{
		event.ChatMessageRequest{Message: ""},
		event.ChatMessageRequest{Message: string(make([]rune, event.MaxMessageLength+1))},
		event.FileUploadRequest{Filename: "../etc/passwd", OriginalName: "passwd", Size: 1},
		event.FileUploadRequest{Filename: "a.png", OriginalName: "", Size: 1},
		event.FileUploadRequest{Filename: "a.png", OriginalName: "a.png", Size: -1},
		event.FileUploadRequest{Filename: "a.png", OriginalName: "a.png", Size: event.MaxFileSize + 1},
	}
	for _, in := range invalid {
		req.ErrorIs(session.Handle(ctx, in), errors.ErrInvalidPayload, "%#v", in)
	}

	// Then nothing was broadcast
	req.Empty(conn.Events())
	req.Equal(Connected, session.State())
}

func TestRouter_Session_Closed_Refuses_Events(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, registry := newTestRouter()
	conn := newConn()
	session := router.Open(ctx, conn)

	session.Close(ctx)
	// Closing twice does not announce twice
	session.Close(ctx)

	req.Equal(0, registry.Len())
	req.ErrorIs(session.Handle(ctx, event.ChatMessageRequest{Message: "late"}), errors.ErrDisconnected)
	req.ErrorIs(session.Handle(ctx, event.TypingStarted{}), errors.ErrDisconnected)
}

func TestRouter_Without_Plaintext_Echo(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	router, _ := newTestRouter(WithPlaintextEcho(false))
	conn := newConn()
	session := router.Open(ctx, conn)

	req.NoError(session.Handle(ctx, event.ChatMessageRequest{Message: "secret"}))

	msg := conn.Last().(event.ChatMessage)
	req.Empty(msg.OriginalMessage)
	plain, err := codec.Decrypt(msg.Message, sharedKey)
	req.NoError(err)
	req.Equal("secret", plain)
}

func TestRouter_Moderation_Runs_Before_Encoding(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	req.NoError(err)
	router, _ := newTestRouter(WithInspector(moderator))
	conn := newConn()
	session := router.Open(ctx, conn)

	req.NoError(session.Handle(ctx, event.ChatMessageRequest{Message: "the badger is here"}))

	msg := conn.Last().(event.ChatMessage)
	plain, err := codec.Decrypt(msg.Message, sharedKey)
	req.NoError(err)
	req.Equal("the ****** is here", plain)
	req.Equal("the ****** is here", msg.OriginalMessage)
}

func TestRouter_Works_With_AEAD_Codec(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	aead, err := codec.NewAEAD(sharedKey)
	req.NoError(err)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	router := NewRouter(log, NewRegistry(), aead)
	a, b := newConn(), newConn()
	sessionA := router.Open(ctx, a)
	router.Open(ctx, b)

	req.NoError(sessionA.Handle(ctx, event.ChatMessageRequest{Message: "sealed"}))

	msg := b.Last().(event.ChatMessage)
	req.Empty(msg.OriginalMessage)
	plain, err := aead.Decode(msg.Message)
	req.NoError(err)
	req.Equal("sealed", plain)
}

func TestPresence_Snapshot_Includes_Changed_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry(WithNameGenerator(sequentialNames()))
	presence := NewPresence(log, registry, fixedClock(now))
	a, b := newConn(), newConn()
	registry.Register(a)
	name := registry.Register(b)

	d := presence.OnJoin(ctx, name)

	req.Equal(2, d.Delivered)
	req.Equal(event.UserJoined{Presence: event.Presence{
		Username:  "User1001",
		Users:     []string{"User1000", "User1001"},
		Timestamp: domain.ISOTimestamp(now),
	}}, b.Last())
}
