package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"time"
)

// Presence announces joins and leaves to every participant, the changed one included.
type Presence struct {
	log      *slog.Logger
	registry contract.IRegistry
	clock    domain.Clock
}

func NewPresence(log *slog.Logger, registry contract.IRegistry, clock domain.Clock) *Presence {
	if clock == nil {
		clock = time.Now
	}
	return &Presence{log: log, registry: registry, clock: clock}
}

func (p *Presence) OnJoin(ctx context.Context, name domain.DisplayName) contract.Delivery {
	return p.announce(ctx, event.UserJoinedName, func(s domain.PresenceSnapshot) event.Outbound {
		return event.NewUserJoined(s)
	}, name)
}

func (p *Presence) OnLeave(ctx context.Context, name domain.DisplayName) contract.Delivery {
	return p.announce(ctx, event.UserLeftName, func(s domain.PresenceSnapshot) event.Outbound {
		return event.NewUserLeft(s)
	}, name)
}

func (p *Presence) announce(ctx context.Context, evtName event.Name,
	build func(domain.PresenceSnapshot) event.Outbound, name domain.DisplayName) contract.Delivery {
	at := p.clock()
	d := p.registry.Deliver(ctx, nil, func(names []domain.DisplayName) event.Outbound {
		return build(domain.PresenceSnapshot{ChangedUser: name, AllUsers: names, Timestamp: at})
	})
	logDelivery(p.log, evtName, d)
	return d
}
