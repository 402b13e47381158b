package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// recordingConn is an in-memory connection keeping every event it receives.
type recordingConn struct {
	mu     sync.Mutex
	id     string
	events []event.Outbound
}

func newConn() *recordingConn {
	return &recordingConn{id: uuid.NewString()}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Consume(_ context.Context, e event.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *recordingConn) Events() []event.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Outbound(nil), c.events...)
}

func (c *recordingConn) Last() event.Outbound {
	events := c.Events()
	if len(events) == 0 {
		return nil
	}
	return events[len(events)-1]
}

func (c *recordingConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// sequentialNames hands out User1000, User1001, ...
func sequentialNames() domain.NameGenerator {
	var mu sync.Mutex
	next := 1000
	return func() domain.DisplayName {
		mu.Lock()
		defer mu.Unlock()
		name := domain.DisplayName(fmt.Sprintf("User%d", next))
		next++
		return name
	}
}

func fixedClock(t time.Time) domain.Clock {
	return func() time.Time { return t }
}
