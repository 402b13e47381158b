//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"io"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives outbound events for one participant.
// Consume must not block: a slow participant drops events instead of stalling the fan-out.
type EventSink interface {
	Consume(ctx context.Context, e event.Outbound) error
}

// Connection is one live transport session, identified for the registry's lifetime.
type Connection interface {
	EventSink
	ID() string
}

// Delivery reports a fan-out: how many sinks accepted the event and which refused it.
type Delivery struct {
	Delivered int
	Failed    map[string]error
}

type IRegistry interface {
	Register(conn Connection) domain.DisplayName
	Unregister(conn Connection) (domain.DisplayName, bool)
	Lookup(conn Connection) (domain.DisplayName, bool)
	Snapshot() []domain.DisplayName
	Len() int
	Deliver(ctx context.Context, exclude Connection, build func(names []domain.DisplayName) event.Outbound) Delivery
}

type BlobInfo struct {
	Name        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// BlobStore keeps uploaded file bytes. Names are chosen by the caller.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, BlobInfo, error)
	Delete(ctx context.Context, name string) error
}
