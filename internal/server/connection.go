// Package server hosts the embedded TCP listener that accepts an AMT
// panel's outbound connection (C7), and the registry that tracks every
// live connection (C6). It is adapted from the teacher's sol.Manager
// session registry and go-sol's sequential-handshake Session shape,
// generalized from an IPMI SOL session to an ISECNet panel connection.
package server

import (
	"net"
	"sync"
	"time"

	"github.com/intelbras/alarm-bridge/internal/isecnet"
)

// Connection represents one live panel connection, keyed by "host:port".
// The pending-response slot is a single-assignment rendezvous: the
// dispatch path creates it (via newPendingResponse) before writing a
// command; the read loop completes it with the next non-auto-handled frame
// that arrives.
type Connection struct {
	ID          string
	Host        string
	Port        int
	Conn        net.Conn
	ConnectedAt time.Time

	metaMu   sync.RWMutex
	metadata map[string]any

	writeMu sync.Mutex // serializes writes: dispatch commands vs. auto-acks

	pendingMu sync.Mutex
	pending   chan *isecnet.Frame
}

// WrapConnection adapts an already-established net.Conn into a Connection
// without registering it in a Manager. Exposed for callers (and tests in
// internal/handler) that need to drive a Server's dispatch path over a
// connection obtained outside of Server.Run's accept loop, such as net.Pipe.
func WrapConnection(conn net.Conn) *Connection {
	return newConnection(conn)
}

func newConnection(conn net.Conn) *Connection {
	host, portStr, _ := net.SplitHostPort(conn.RemoteAddr().String())
	port := 0
	if portStr != "" {
		for _, c := range portStr {
			if c < '0' || c > '9' {
				break
			}
			port = port*10 + int(c-'0')
		}
	}
	return &Connection{
		ID:          conn.RemoteAddr().String(),
		Host:        host,
		Port:        port,
		Conn:        conn,
		ConnectedAt: time.Now(),
		metadata:    make(map[string]any),
	}
}

// SetMetadata stores a key/value on the connection (e.g. decoded
// identification-frame info).
func (c *Connection) SetMetadata(key string, value any) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	c.metadata[key] = value
}

// Metadata retrieves a previously stored value.
func (c *Connection) Metadata(key string) (any, bool) {
	c.metaMu.RLock()
	defer c.metaMu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// WriteFrame writes raw bytes to the connection under the per-connection
// write lock, serializing dispatch-path command writes against read-path
// auto-ack writes.
func (c *Connection) WriteFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.Conn.Write(data)
	return err
}

// newPendingResponse creates a fresh single-use response slot. It must be
// called before the command bytes are written, to avoid a race against the
// read loop delivering the response before the slot exists.
func (c *Connection) newPendingResponse() chan *isecnet.Frame {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ch := make(chan *isecnet.Frame, 1)
	c.pending = ch
	return ch
}

// completePending delivers frame to the current pending-response slot, if
// any, and clears it. Returns true if a waiter was present and received the
// frame.
func (c *Connection) completePending(frame *isecnet.Frame) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending == nil {
		return false
	}
	select {
	case c.pending <- frame:
		c.pending = nil
		return true
	default:
		// Slot already has a frame queued (shouldn't happen with capacity
		// 1 and single-producer discipline) — drop and clear defensively.
		c.pending = nil
		return false
	}
}

// clearPending drops the current pending-response slot without delivering
// anything, used on timeout.
func (c *Connection) clearPending(ch chan *isecnet.Frame) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending == ch {
		c.pending = nil
	}
}

func (c *Connection) close() error {
	return c.Conn.Close()
}

// Manager is an insertion-ordered registry of live panel connections.
// Grounded on isecnet/server/connection_manager.py::ConnectionManager and
// the teacher's sol.Manager session map.
type Manager struct {
	mu    sync.RWMutex
	order []string
	conns map[string]*Connection
}

// NewManager returns an empty connection registry.
func NewManager() *Manager {
	return &Manager{conns: make(map[string]*Connection)}
}

// Add registers a new connection.
func (m *Manager) Add(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.conns[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.conns[c.ID] = c
}

// Remove deregisters a connection by ID, returning it if present.
func (m *Manager) Remove(id string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return nil
	}
	delete(m.conns, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return c
}

// Get looks up a connection by ID.
func (m *Manager) Get(id string) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[id]
}

// GetByHost returns the first connection matching host, in insertion order.
func (m *Manager) GetByHost(host string) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if c := m.conns[id]; c.Host == host {
			return c
		}
	}
	return nil
}

// All returns every live connection in insertion order.
func (m *Manager) All() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Connection, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.conns[id])
	}
	return out
}

// Count reports the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// CloseAll closes and deregisters every connection. Idempotent.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		m.conns[id].close()
	}
	m.conns = make(map[string]*Connection)
	m.order = nil
}
