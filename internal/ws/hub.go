package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
)

// ErrTooManyConnections is returned when one identity exceeds its
// connection allowance.
var ErrTooManyConnections = errors.New("max connections reached for identity")

const maxConnsPerIdentity = 10

// Conn is the subset of *websocket.Conn the hub needs. Tests substitute
// a fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one registered, authenticated connection. The hub is the
// sole owner; callers hold it only to unregister or mark liveness.
type Client struct {
	identity string
	role     string
	conn     Conn

	mu    sync.Mutex // guards writes and alive
	alive bool
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// Identity returns the recipient id this connection authenticated as.
func (c *Client) Identity() string { return c.identity }

// Hub tracks currently-connected, authenticated realtime clients,
// indexed by identity. All mutation happens under the mutex.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*Client]bool

	interval time.Duration
	logger   *logging.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub constructs a Hub with the given heartbeat interval.
func NewHub(interval time.Duration, logger *logging.Logger) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{
		clients:  make(map[string]map[*Client]bool),
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Register creates a Client for an authenticated connection.
func (h *Hub) Register(identity, role string, conn Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[identity]; !exists {
		h.clients[identity] = make(map[*Client]bool)
	}
	if len(h.clients[identity]) >= maxConnsPerIdentity {
		h.logger.Warnf("Max connections reached for %s", identity)
		return nil, ErrTooManyConnections
	}

	c := &Client{identity: identity, role: role, conn: conn, alive: true}
	h.clients[identity][c] = true
	h.logger.Infof("Registered connection for %s as %s (total: %d)", identity, role, len(h.clients[identity]))
	return c, nil
}

// Unregister removes a connection; the last connection for an identity
// removes the identity from the index entirely.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	conns, exists := h.clients[c.identity]
	if !exists {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.identity)
	}
	h.logger.Infof("Removed connection for %s (remaining: %d)", c.identity, len(conns))
}

// MarkAlive records a liveness acknowledgment from the client.
func (h *Hub) MarkAlive(c *Client) {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

// Broadcast sends the alert to every live connection whose role may
// receive kitchen alerts, and returns how many sends completed. A failed
// send evicts that connection without affecting the others.
func (h *Hub) Broadcast(alert models.Alert) int {
	payload, err := json.Marshal(alertMessage(alert))
	if err != nil {
		h.logger.Errorf("Marshal alert %s failed: %v", alert.ID, err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for _, conns := range h.clients {
		for c := range conns {
			if !allowedRoles[c.role] {
				continue
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				h.logger.Errorf("Send to %s failed, evicting connection: %v", c.identity, err)
				_ = c.conn.Close()
				h.removeLocked(c)
				continue
			}
			sent++
		}
	}
	return sent
}

// SendTo delivers the alert to all live connections of one identity and
// reports whether at least one send succeeded.
func (h *Hub) SendTo(identity string, alert models.Alert) bool {
	payload, err := json.Marshal(alertMessage(alert))
	if err != nil {
		h.logger.Errorf("Marshal alert %s failed: %v", alert.ID, err)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ok := false
	for c := range h.clients[identity] {
		if err := c.write(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("Send to %s failed, evicting connection: %v", identity, err)
			_ = c.conn.Close()
			h.removeLocked(c)
			continue
		}
		ok = true
	}
	return ok
}

// Run drives the heartbeat until Stop is called.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// Stop terminates the heartbeat loop. In-flight broadcasts finish.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// sweep is one heartbeat tick: connections that never answered the
// previous ping are terminated, everyone else has the liveness flag
// cleared and is pinged again. Only connections that respond within one
// full interval survive the next tick.
func (h *Hub) sweep() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.clients {
		for c := range conns {
			c.mu.Lock()
			alive := c.alive
			c.alive = false
			c.mu.Unlock()

			if !alive {
				h.logger.Warnf("Connection for %s missed heartbeat, terminating", c.identity)
				_ = c.conn.Close()
				h.removeLocked(c)
				continue
			}
			if err := c.write(websocket.PingMessage, nil); err != nil {
				h.logger.Errorf("Ping to %s failed, evicting connection: %v", c.identity, err)
				_ = c.conn.Close()
				h.removeLocked(c)
			}
		}
	}
}

// ConnectionCount reports the number of live connections across all
// identities.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}
