package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"log/slog"
)

// constant wraps an already built event for Registry.Deliver.
func constant(evt event.Outbound) func([]domain.DisplayName) event.Outbound {
	return func([]domain.DisplayName) event.Outbound { return evt }
}

// logDelivery reports sinks that refused an event. A failed send stays local to its connection.
func logDelivery(log *slog.Logger, name event.Name, d contract.Delivery) {
	for connID, err := range d.Failed {
		log.Warn("Event not delivered", "event", name, "conn_id", connID, "error", err)
	}
	log.Debug("Event delivered", "event", name, "delivered", d.Delivered, "failed", len(d.Failed))
}
