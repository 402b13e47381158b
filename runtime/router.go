package runtime

import (
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Connected State = iota
	Disconnected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Inspector is the optional moderation stage run on plaintext before encoding.
type Inspector interface {
	Inspect(text string) moderation.Verdict
}

// Router dispatches inbound events of every connection.
// It owns no connection state itself; each connection gets a Session from Open.
type Router struct {
	log              *slog.Logger
	registry         contract.IRegistry
	presence         *Presence
	relay            *Relay
	codec            codec.Codec
	ids              *domain.IDGenerator
	clock            domain.Clock
	inspector        Inspector
	includePlaintext bool
}

type RouterOption func(*Router)

// WithInspector enables the moderation stage.
func WithInspector(i Inspector) RouterOption {
	return func(r *Router) { r.inspector = i }
}

// WithPlaintextEcho controls whether chat messages carry their plaintext next to the ciphertext.
func WithPlaintextEcho(enabled bool) RouterOption {
	return func(r *Router) { r.includePlaintext = enabled }
}

func WithClock(c domain.Clock) RouterOption {
	return func(r *Router) { r.clock = c }
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, c codec.Codec, opts ...RouterOption) *Router {
	r := &Router{
		log:      log,
		registry: registry,
		codec:    c,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ids = domain.NewIDGenerator(r.clock)
	r.presence = NewPresence(log, registry, r.clock)
	r.relay = NewRelay(log, registry, r.ids, r.clock)
	return r
}

// Open registers a freshly established connection, announces it, and returns
// its session in the Connected state.
func (r *Router) Open(ctx context.Context, conn contract.Connection) *Session {
	name := r.registry.Register(conn)
	r.log.Info("Participant connected", "conn_id", conn.ID(), "username", name)
	r.presence.OnJoin(ctx, name)
	return &Session{router: r, conn: conn, name: name, state: Connected}
}

// Session is the state machine of one connection: Connected until the transport closes.
// Events of a session are handled one at a time, in arrival order.
type Session struct {
	mu     sync.Mutex
	router *Router
	conn   contract.Connection
	name   domain.DisplayName
	state  State
}

func (s *Session) Name() domain.DisplayName { return s.name }

func (s *Session) ConnID() string { return s.conn.ID() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle validates and dispatches one inbound event.
func (s *Session) Handle(ctx context.Context, in event.Inbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Disconnected {
		return errors.ErrDisconnected
	}
	if err := event.Validate(in); err != nil {
		return err
	}

	switch e := in.(type) {
	case event.ChatMessageRequest:
		return s.chat(ctx, e)
	case event.FileUploadRequest:
		sender, err := s.sender()
		if err != nil {
			return err
		}
		s.router.relay.Announce(ctx, sender, e)
		return nil
	case event.TypingStarted:
		return s.typing(ctx, func(n domain.DisplayName) event.Outbound { return event.UserTyping{Username: n.String()} })
	case event.TypingStopped:
		return s.typing(ctx, func(n domain.DisplayName) event.Outbound { return event.UserStopTyping{Username: n.String()} })
	case event.Disconnect:
		s.closeLocked(ctx)
		return nil
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnknownEvent, in.Name())
	}
}

// Close moves the session to Disconnected. Calling it twice is harmless.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(ctx)
}

func (s *Session) closeLocked(ctx context.Context) {
	if s.state == Disconnected {
		return
	}
	s.state = Disconnected

	name, ok := s.router.registry.Unregister(s.conn)
	if !ok {
		return
	}
	s.router.log.Info("Participant disconnected", "conn_id", s.conn.ID(), "username", name)
	s.router.presence.OnLeave(ctx, name)
}

func (s *Session) sender() (domain.DisplayName, error) {
	name, ok := s.router.registry.Lookup(s.conn)
	if !ok {
		return "", errors.ErrDisconnected
	}
	return name, nil
}

func (s *Session) chat(ctx context.Context, req event.ChatMessageRequest) error {
	sender, err := s.sender()
	if err != nil {
		return err
	}

	plaintext := req.Message
	if s.router.inspector != nil {
		verdict := s.router.inspector.Inspect(plaintext)
		if verdict.Censored() {
			s.router.log.Warn("Message censored",
				"username", sender,
				"lang", verdict.Lang,
				"words", len(verdict.Words))
		}
		plaintext = verdict.Text
	}

	ciphertext, err := s.router.codec.Encode(plaintext)
	if err != nil {
		return fmt.Errorf("encode message with %s: %w", s.router.codec.Name(), err)
	}

	msg := domain.ChatMessage{
		ID:         s.router.ids.Next(),
		Sender:     sender,
		Ciphertext: ciphertext,
		Timestamp:  s.router.clock(),
	}
	if s.router.includePlaintext {
		msg.Plaintext = plaintext
	}

	d := s.router.registry.Deliver(ctx, nil, constant(event.NewChatMessage(msg)))
	logDelivery(s.router.log, event.ChatMessageName, d)
	return nil
}

// typing relays the sender's name to everyone else. The server keeps no typing state.
func (s *Session) typing(ctx context.Context, build func(domain.DisplayName) event.Outbound) error {
	sender, err := s.sender()
	if err != nil {
		return err
	}
	evt := build(sender)
	d := s.router.registry.Deliver(ctx, s.conn, constant(evt))
	logDelivery(s.router.log, evt.Name(), d)
	return nil
}
