package legacy

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const recvTimeout = 8 * time.Second

// Client is a persistent AMT8000 legacy socket client. The bridge is the
// TCP client here; the panel is the server — the inverse of the ISECNet
// dialect. Grounded on addon_main.py's alarm_client lifecycle: connect opens
// or reuses the socket, any I/O error marks it closed so the next call
// reconnects, and auth retries three times with a one-second backoff.
type Client struct {
	addr     string
	password string
	log      *logrus.Entry

	mu   sync.Mutex
	conn net.Conn
}

// New constructs a legacy Client dialing addr (host:port).
func New(addr, password string, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{addr: addr, password: password, log: log.WithField("component", "legacy-client")}
}

// Connect opens the socket if not already open. Safe to call repeatedly.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("legacy: dial %s: %w", c.addr, err)
	}
	c.conn = conn
	return nil
}

// Close shuts the socket down. Safe to call when already closed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip writes a request frame and reads one reply, applying the
// 8-second receive timeout. Any I/O error closes the socket so the next
// call reconnects, matching §4.9's connection-lost strategy for this
// dialect.
func (c *Client) roundTrip(request []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	if _, err := c.conn.Write(request); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("legacy: write: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(recvTimeout))
	buf := make([]byte, 512)
	n, err := c.conn.Read(buf)
	if err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("legacy: read: %w", err)
	}
	return buf[:n], nil
}

// Authenticate performs the auth handshake, retrying up to three times
// with a one-second backoff on failure before giving up.
func (c *Client) Authenticate() (AuthResult, error) {
	req, err := BuildAuthFrame(c.password)
	if err != nil {
		return AuthUnknown, err
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		reply, err := c.roundTrip(req)
		if err != nil {
			lastErr = err
			c.log.WithError(err).WithField("attempt", attempt).Warn("legacy auth attempt failed")
			time.Sleep(time.Second)
			continue
		}
		result, err := ParseAuthReply(reply)
		if err != nil {
			lastErr = err
			time.Sleep(time.Second)
			continue
		}
		if result != AuthOK {
			c.log.WithField("result", result.String()).Warn("legacy auth rejected")
		}
		return result, nil
	}
	return AuthUnknown, fmt.Errorf("legacy: auth failed after 3 attempts: %w", lastErr)
}

// Status requests and decodes the panel's current status.
func (c *Client) Status() (*Status, error) {
	reply, err := c.roundTrip(BuildStatusFrame())
	if err != nil {
		return nil, err
	}
	return ParseStatus(reply)
}

// Arm requests arming the given partition (PartitionAll for the whole
// panel) and reports whether the panel armed with an active bypass.
func (c *Client) Arm(partition byte) (bypassed bool, err error) {
	reply, err := c.roundTrip(BuildArmFrame(partition))
	if err != nil {
		return false, err
	}
	result, err := ParseArmReply(reply)
	if err != nil {
		return false, err
	}
	if result == ArmFailed {
		return false, fmt.Errorf("legacy: arm rejected")
	}
	return result == ArmOKWithBypass, nil
}

// Disarm requests disarming the given partition.
func (c *Client) Disarm(partition byte) error {
	reply, err := c.roundTrip(BuildDisarmFrame(partition))
	if err != nil {
		return err
	}
	ok, err := ParseDisarmReply(reply)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("legacy: disarm rejected")
	}
	return nil
}

// Panic triggers a panic alarm of the given type.
func (c *Client) Panic(panicType byte) error {
	reply, err := c.roundTrip(BuildPanicFrame(panicType))
	if err != nil {
		return err
	}
	ok, err := ParsePanicReply(reply)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("legacy: panic rejected")
	}
	return nil
}

// PairedSensors requests the raw paired-sensors reply. The base protocol
// document leaves this opcode's reply body undocumented beyond its
// existence; callers that need structured data should fall back to the
// raw bytes.
func (c *Client) PairedSensors() ([]byte, error) {
	return c.roundTrip(BuildPairedSensorsFrame())
}
