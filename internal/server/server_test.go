package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/intelbras/alarm-bridge/internal/isecnet"
)

func TestManagerAddRemoveGet(t *testing.T) {
	m := NewManager()
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	c := newConnection(srv)
	m.Add(c)

	if m.Count() != 1 {
		t.Fatalf("count = %d, want 1", m.Count())
	}
	if m.Get(c.ID) != c {
		t.Error("Get did not return the added connection")
	}
	if got := m.Remove(c.ID); got != c {
		t.Error("Remove did not return the connection")
	}
	if m.Count() != 0 {
		t.Errorf("count after remove = %d, want 0", m.Count())
	}
}

func TestSendCommandRoundTrip(t *testing.T) {
	clientConn, panelConn := net.Pipe()
	defer clientConn.Close()
	defer panelConn.Close()

	srv := New(Config{ResponseTimeout: time.Second})
	conn := newConnection(clientConn)
	// The read loop is what delivers the panel's reply to SendCommand.
	go srv.ServeConnection(conn)

	// Simulate the panel: read the dispatched command, then write back an
	// ACK-wrapped response frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 256)
		n, err := panelConn.Read(buf)
		if err != nil {
			return
		}
		if _, err := isecnet.ParseFrame(buf[:n]); err != nil {
			return
		}
		ack := isecnet.NewAckCarrierFrame().Build()
		panelConn.Write(ack)
	}()

	resp, err := srv.SendCommand(context.Background(), conn, isecnet.ArmAll("1234"))
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("response = %+v, want Ack", resp)
	}

	<-done
}

func TestSendCommandTimeout(t *testing.T) {
	clientConn, panelConn := net.Pipe()
	defer clientConn.Close()
	defer panelConn.Close()

	srv := New(Config{ResponseTimeout: 50 * time.Millisecond})
	conn := newConnection(clientConn)

	go func() {
		buf := make([]byte, 256)
		panelConn.Read(buf) // absorb the write, never reply
	}()

	_, err := srv.SendCommand(context.Background(), conn, isecnet.ArmAll("1234"))
	if err != ErrTimeout {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestDispatchInboundReachesFrameHandler(t *testing.T) {
	clientConn, _ := net.Pipe()
	defer clientConn.Close()

	var received *isecnet.Frame
	srv := New(Config{
		OnFrame: func(conn *Connection, frame *isecnet.Frame) {
			received = frame
		},
	})
	conn := newConnection(clientConn)

	srv.dispatchInbound(conn, isecnet.NewMobileCarrierFrame([]byte{0x01, 0x02}))

	if received == nil || received.Command != isecnet.CommandMobile {
		t.Errorf("OnFrame not invoked with expected frame, got %+v", received)
	}
}
