package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/intelbras/alarm-bridge/internal/isecnet"
)

// ErrTimeout is returned by SendCommand when the panel does not answer a
// dispatched command within the configured response timeout.
var ErrTimeout = fmt.Errorf("isecnet: response timeout")

// FrameHandler is invoked for every frame that the auto-ack logic in Config
// does not itself consume. It receives the connection the frame arrived on.
type FrameHandler func(conn *Connection, frame *isecnet.Frame)

// ConnectHandler is invoked when a panel connects or disconnects.
type ConnectHandler func(conn *Connection)

// Config controls the AMT panel TCP server's listener and auto-ack policy.
// Grounded on protocol_handlers/isecnet.py::AMTServerConfig.
type Config struct {
	BindHost string
	BindPort int

	// AutoAckHeartbeat, when true, immediately answers a bare 0xF7
	// heartbeat with a bare ACK byte rather than surfacing it to OnFrame.
	AutoAckHeartbeat bool

	// AutoAckIdentification, when true, immediately answers a 0x94
	// identification frame with a bare ACK, after recording its decoded
	// ConnectionInfo on the connection's metadata under key "connection_info".
	AutoAckIdentification bool

	// ResponseTimeout bounds SendCommand's wait for a matching response.
	ResponseTimeout time.Duration

	OnConnect    ConnectHandler
	OnDisconnect ConnectHandler
	OnFrame      FrameHandler

	Logger *logrus.Logger
}

// Server is the embedded TCP listener an AMT panel connects outbound to.
// Unlike a conventional client/server protocol, the alarm panel initiates
// the TCP connection to the bridge and then waits to be driven — this
// mirrors isecnet/server/tcp_server.py's accept loop exactly.
type Server struct {
	cfg      Config
	Manager  *Manager
	listener net.Listener
	log      *logrus.Entry

	stopCh chan struct{}
}

// New constructs a Server with the given configuration. It does not start
// listening until Run is called.
func New(cfg Config) *Server {
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = 8 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Server{
		cfg:     cfg,
		Manager: NewManager(),
		log:     cfg.Logger.WithField("component", "isecnet-server"),
		stopCh:  make(chan struct{}),
	}
}

// Run binds the listener and accepts connections until ctx is canceled or
// Stop is called. It blocks until the listener shuts down.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindHost, s.cfg.BindPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("isecnet: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.log.WithField("addr", addr).Info("listening for panel connections")

	go func() {
		select {
		case <-ctx.Done():
			s.listener.Close()
		case <-s.stopCh:
			s.listener.Close()
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-s.stopCh:
				return nil
			default:
				return fmt.Errorf("isecnet: accept: %w", err)
			}
		}
		go s.serve(conn)
	}
}

// Stop closes the listener and every live connection.
func (s *Server) Stop() {
	close(s.stopCh)
	s.Manager.CloseAll()
}

func (s *Server) serve(netConn net.Conn) {
	conn := newConnection(netConn)
	s.Manager.Add(conn)
	s.ServeConnection(conn)
}

// ServeConnection runs the read/dispatch loop for a connection that has
// already been constructed (via WrapConnection) and, if it should be
// tracked by this server's registry, added to Manager. It blocks until the
// connection's read side errors or returns EOF, then deregisters and closes
// it. Exposed so callers that obtain a panel connection outside of Run's
// accept loop (tests, or an alternate transport) can still drive it through
// the server's dispatch path.
func (s *Server) ServeConnection(conn *Connection) {
	log := s.log.WithField("peer", conn.ID)
	log.Info("panel connected")

	if s.cfg.OnConnect != nil {
		s.cfg.OnConnect(conn)
	}

	defer func() {
		s.Manager.Remove(conn.ID)
		conn.Conn.Close()
		log.Info("panel disconnected")
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect(conn)
		}
	}()

	reader := isecnet.NewFrameReader()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Debug("read error, closing connection")
			}
			return
		}
		for _, frame := range reader.Feed(buf[:n]) {
			s.dispatchInbound(conn, frame)
		}
	}
}

func (s *Server) dispatchInbound(conn *Connection, frame *isecnet.Frame) {
	log := s.log.WithField("peer", conn.ID)

	switch {
	case frame.IsHeartbeat():
		log.Debug("heartbeat")
		if s.cfg.AutoAckHeartbeat {
			if err := conn.WriteFrame(isecnet.NewSimpleAckFrame().Build()); err != nil {
				log.WithError(err).Warn("failed to ack heartbeat")
			}
			return
		}
	case frame.Command == isecnet.OpIdentification:
		if info, err := isecnet.ParseConnectionInfo(frame.Content); err == nil {
			conn.SetMetadata("connection_info", info)
			log.WithField("account", info.Account).Info("panel identified")
		} else {
			log.WithError(err).Warn("malformed identification frame")
		}
		if s.cfg.AutoAckIdentification {
			if err := conn.WriteFrame(isecnet.NewSimpleAckFrame().Build()); err != nil {
				log.WithError(err).Warn("failed to ack identification")
			}
			return
		}
	}

	// A pending dispatch absorbs the next frame that was not auto-handled
	// above, before it reaches the general-purpose handler, mirroring the
	// original's single in-flight command-response rendezvous. No check is
	// made that the frame answers the command that was sent.
	if conn.completePending(frame) {
		return
	}

	if s.cfg.OnFrame != nil {
		s.cfg.OnFrame(conn, frame)
	}
}

// SendCommand serializes cmd, writes it to conn, and waits up to the
// configured response timeout for the matching reply frame. Only one
// dispatch may be outstanding per connection at a time; callers are
// expected to serialize calls through a higher-level lock (internal/handler
// holds the single serializing mutex referenced in the base protocol doc).
func (s *Server) SendCommand(ctx context.Context, conn *Connection, cmd isecnet.Command) (*isecnet.Response, error) {
	wire, err := isecnet.BuildNetFrame(cmd)
	if err != nil {
		return nil, fmt.Errorf("isecnet: build command: %w", err)
	}

	pending := conn.newPendingResponse()
	if err := conn.WriteFrame(wire); err != nil {
		conn.clearPending(pending)
		return nil, fmt.Errorf("isecnet: write command: %w", err)
	}

	// A deadline the caller already attached to ctx governs the wait, whether
	// it is longer (e.g. a status poll's larger dispatch window) or shorter
	// than the server's own response timeout; the response timeout applies
	// only when ctx has no deadline.
	deadline := time.Now().Add(s.cfg.ResponseTimeout)
	if d, ok := ctx.Deadline(); ok && d.After(deadline) {
		deadline = d
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	select {
	case frame := <-pending:
		return isecnet.ParseResponse(frame), nil
	case <-ctx.Done():
		conn.clearPending(pending)
		return nil, ErrTimeout
	}
}

// Broadcast writes wire bytes to every live connection, ignoring per-write
// errors beyond logging them (used for fire-and-forget notifications; no
// response is awaited).
func (s *Server) Broadcast(wire []byte) {
	for _, conn := range s.Manager.All() {
		if err := conn.WriteFrame(wire); err != nil {
			s.log.WithField("peer", conn.ID).WithError(err).Warn("broadcast write failed")
		}
	}
}
