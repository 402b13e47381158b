package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"slices"
	"sync"
	"time"
)

type entry struct {
	conn    contract.Connection
	session domain.Session
}

// Registry is the authoritative map of live connections to display names.
// Every read and write goes through its lock; the map itself never leaves the struct.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry // map connection ID -> session
	order    []string          // connection IDs in join order
	newName  domain.NameGenerator
	clock    domain.Clock
}

type RegistryOption func(*Registry)

func WithNameGenerator(g domain.NameGenerator) RegistryOption {
	return func(r *Registry) { r.newName = g }
}

func WithRegistryClock(c domain.Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		newName:  domain.RandomDisplayName,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register assigns a display name to the connection and stores its session.
// A connection already registered keeps its name.
func (r *Registry) Register(conn contract.Connection) domain.DisplayName {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[conn.ID()]; ok {
		return e.session.Name
	}
	name := r.newName()
	r.sessions[conn.ID()] = &entry{
		conn: conn,
		session: domain.Session{
			ConnID:   conn.ID(),
			Name:     name,
			JoinedAt: r.clock(),
		},
	}
	r.order = append(r.order, conn.ID())
	return name
}

// Unregister removes the connection and returns the name it held.
// The boolean is false when the connection was not registered.
func (r *Registry) Unregister(conn contract.Connection) (domain.DisplayName, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[conn.ID()]
	if !ok {
		return "", false
	}
	delete(r.sessions, conn.ID())
	if i := slices.Index(r.order, conn.ID()); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return e.session.Name, true
}

func (r *Registry) Lookup(conn contract.Connection) (domain.DisplayName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[conn.ID()]
	if !ok {
		return "", false
	}
	return e.session.Name, true
}

// Snapshot returns the current names in join order.
func (r *Registry) Snapshot() []domain.DisplayName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Sessions returns a copy of every live session in join order.
func (r *Registry) Sessions() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]domain.Session, 0, len(r.order))
	for _, id := range r.order {
		sessions = append(sessions, r.sessions[id].session)
	}
	return sessions
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Deliver builds one event from the current snapshot and hands it to every
// connection except exclude, under a single read lock. No register or unregister
// can land between the snapshot and the fan-out.
// Sinks are expected not to block; a failing sink is recorded and skipped.
func (r *Registry) Deliver(ctx context.Context, exclude contract.Connection,
	build func(names []domain.DisplayName) event.Outbound) contract.Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	evt := build(r.snapshotLocked())
	delivery := contract.Delivery{}
	for _, id := range r.order {
		if exclude != nil && id == exclude.ID() {
			continue
		}
		if err := r.sessions[id].conn.Consume(ctx, evt); err != nil {
			if delivery.Failed == nil {
				delivery.Failed = make(map[string]error)
			}
			delivery.Failed[id] = err
			continue
		}
		delivery.Delivered++
	}
	return delivery
}

func (r *Registry) snapshotLocked() []domain.DisplayName {
	names := make([]domain.DisplayName, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.sessions[id].session.Name)
	}
	return names
}
