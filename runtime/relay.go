package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"time"
)

// Relay turns metadata of an already stored file into a chat-stream entry.
// Storage happens before, at the upload boundary; Relay never touches bytes.
type Relay struct {
	log      *slog.Logger
	registry contract.IRegistry
	ids      *domain.IDGenerator
	clock    domain.Clock
}

func NewRelay(log *slog.Logger, registry contract.IRegistry, ids *domain.IDGenerator, clock domain.Clock) *Relay {
	if clock == nil {
		clock = time.Now
	}
	if ids == nil {
		ids = domain.NewIDGenerator(clock)
	}
	return &Relay{log: log, registry: registry, ids: ids, clock: clock}
}

// Announce broadcasts the file notice to every participant, the sender included.
func (r *Relay) Announce(ctx context.Context, sender domain.DisplayName, req event.FileUploadRequest) domain.FileNotice {
	notice := domain.FileNotice{
		ID:           r.ids.Next(),
		Sender:       sender,
		StoredName:   req.Filename,
		OriginalName: req.OriginalName,
		SizeBytes:    req.Size,
		URL:          domain.UploadURL(req.Filename),
		Timestamp:    r.clock(),
	}
	d := r.registry.Deliver(ctx, nil, constant(event.NewFileUpload(notice)))
	logDelivery(r.log, event.FileUploadName, d)
	return notice
}
