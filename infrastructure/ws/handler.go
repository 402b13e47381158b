package ws

import (
	"chat-relay/runtime"
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to event channels and binds each one to a session.
type Handler struct {
	log        *slog.Logger
	router     *runtime.Router
	upgrader   websocket.Upgrader
	bufferSize int

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

func NewHandler(log *slog.Logger, router *runtime.Router, bufferSize int) *Handler {
	return &Handler{
		log:        log,
		router:     router,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*Conn]struct{}),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(socket, h.bufferSize, h.log)
	h.track(conn)
	defer h.untrack(conn)

	go conn.WritePump()

	// The hijacked request context is never cancelled by the client going away.
	ctx := context.WithoutCancel(r.Context())
	session := h.router.Open(ctx, conn)
	conn.ReadPump(ctx, session)
}

// CloseAll drops every open channel; each session then leaves as if the client hung up.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (h *Handler) track(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Handler) untrack(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}
