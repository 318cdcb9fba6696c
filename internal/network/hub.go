package network

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Hub tracks live clients by connection id and delivers server pushes to them.
// Registration is synchronous so a push made right after add reaches the client;
// removals go through Run.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	stopped bool

	unregister chan *Client
	done       chan struct{}

	handler EventHandler
	logger  hclog.Logger
}

// NewHub returns a hub dispatching client events to handler. handler may be nil
// until SetHandler is called.
func NewHub(handler EventHandler, logger hclog.Logger) *Hub {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		handler:    handler,
		logger:     logger,
	}
}

// SetHandler replaces the handler; call it before Run when the handler itself
// needs the hub as its broadcaster.
func (h *Hub) SetHandler(handler EventHandler) { h.handler = handler }

// Run processes removals until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.id]; ok && cur == c {
				delete(h.clients, c.id)
			}
			h.mu.Unlock()
			c.close()
			h.logger.Debug("client unregistered", "conn_id", c.id)

		case <-ctx.Done():
			h.mu.Lock()
			h.stopped = true
			for id, c := range h.clients {
				c.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// add makes c visible to Push before returning. It fails once the hub has stopped.
func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[c.id] = c
	h.logger.Debug("client registered", "conn_id", c.id, "user", c.user.Username)
	return true
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.close()
	}
}

// Push encodes payload as event and queues it for connID. Unknown ids and full
// buffers drop the message.
func (h *Hub) Push(connID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	msg, err := NewMessage(event, payload)
	if err != nil {
		h.logger.Error("encode push", "event", event, "error", err)
		return
	}
	if !c.Send(msg) {
		h.logger.Warn("push dropped", "conn_id", connID, "event", event)
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
