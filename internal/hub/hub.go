// Package hub fans decoded frames out to subscribers.
package hub

import (
	"log/slog"
	"sync"

	"github.com/kstaniek/go-siyi-gimbal/internal/logging"
	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

type BackpressurePolicy int

const (
	PolicyDrop BackpressurePolicy = iota
	PolicyKick
)

// ParsePolicy maps "drop" and "kick" to a policy.
func ParsePolicy(s string) (BackpressurePolicy, bool) {
	switch s {
	case "drop":
		return PolicyDrop, true
	case "kick":
		return PolicyKick, true
	}
	return PolicyDrop, false
}

func (p BackpressurePolicy) String() string {
	if p == PolicyKick {
		return "kick"
	}
	return "drop"
}

// Client receives frames on Out until Closed is closed. A client with a
// non-empty command filter only sees those commands.
type Client struct {
	Out       chan siyi.Frame
	Closed    chan struct{}
	cmds      map[siyi.Command]struct{}
	closeOnce sync.Once
}

// NewClient creates a client with an Out buffer of buf frames, optionally
// limited to cmds.
func NewClient(buf int, cmds ...siyi.Command) *Client {
	c := &Client{Out: make(chan siyi.Frame, buf), Closed: make(chan struct{})}
	if len(cmds) > 0 {
		c.cmds = make(map[siyi.Command]struct{}, len(cmds))
		for _, cmd := range cmds {
			c.cmds[cmd] = struct{}{}
		}
	}
	return c
}

// Wants reports whether the client subscribed to cmd.
func (c *Client) Wants(cmd siyi.Command) bool {
	if c.cmds == nil {
		return true
	}
	_, ok := c.cmds[cmd]
	return ok
}

// Close signals the client is closed (idempotent).
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Closed)
	})
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	OutBufSize int
	Policy     BackpressurePolicy
	l          *slog.Logger
}

// New creates a Hub with default settings.
func New(l *slog.Logger) *Hub {
	return &Hub{clients: make(map[*Client]struct{}), OutBufSize: 64, l: logging.OrDiscard(l)}
}

// Add registers a client with the hub.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	cur := len(h.clients)
	h.mu.Unlock()
	metrics.SetHubClients(cur)
	if cur == 1 {
		h.l.Debug("subscribers_first_added")
	}
}

// Subscribe creates, registers and returns a client using OutBufSize.
func (h *Hub) Subscribe(cmds ...siyi.Command) *Client {
	c := NewClient(h.OutBufSize, cmds...)
	h.Add(c)
	return c
}

// Remove unregisters a client and closes it; safe to call multiple times.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	if existed {
		delete(h.clients, c)
	}
	cur := len(h.clients)
	h.mu.Unlock()
	c.Close()
	metrics.SetHubClients(cur)
	if existed && cur == 0 {
		h.l.Debug("subscribers_last_removed")
	}
}

// Broadcast delivers a frame to every interested client honoring the
// backpressure policy. It never blocks.
func (h *Hub) Broadcast(fr siyi.Frame) {
	for _, c := range h.Snapshot() {
		if !c.Wants(fr.Cmd) {
			continue
		}
		select {
		case <-c.Closed:
			continue
		default:
		}
		select {
		case c.Out <- fr:
		default:
			if h.Policy == PolicyKick {
				metrics.IncHubKick()
				h.l.Warn("subscriber_kicked", "cmd", fr.Cmd.String())
				h.Remove(c)
			} else {
				metrics.IncHubDrop()
			}
		}
	}
}

// CloseAll removes every client.
func (h *Hub) CloseAll() {
	for _, c := range h.Snapshot() {
		h.Remove(c)
	}
}

// Snapshot returns a slice copy of current clients (read-only use).
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	return clients
}

// Count returns the number of active clients.
func (h *Hub) Count() int { h.mu.RLock(); n := len(h.clients); h.mu.RUnlock(); return n }
