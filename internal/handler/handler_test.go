package handler

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/intelbras/alarm-bridge/internal/isecnet"
	"github.com/intelbras/alarm-bridge/internal/server"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs map[string]string
}

func newFakePublisher() *fakePublisher { return &fakePublisher{msgs: map[string]string{}} }

func (f *fakePublisher) Publish(topic, payload string, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs[topic] = payload
	return nil
}

func (f *fakePublisher) get(topic string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgs[topic]
}

func TestNormalizeCommandAndAliases(t *testing.T) {
	if NormalizeCommand(" arm_home ") != "ARM_HOME" {
		t.Fatal("normalize failed")
	}
	if aliasTable["ARM_PARTITION_B"] != aliasTable["ARM_PART_B"] {
		t.Error("ARM_PARTITION_B should alias ARM_PART_B")
	}
	if aliasTable["DISARM_PARTITION_C"] != aliasTable["DISARM_PART_C"] {
		t.Error("DISARM_PARTITION_C should alias DISARM_PART_C")
	}
}

// loopbackHandler wires a Handler to a Server over a net.Pipe connection and
// runs a goroutine that answers every dispatched command with an ACK,
// simulating a cooperative panel.
func loopbackHandler(t *testing.T) (*Handler, *fakePublisher, func()) {
	t.Helper()
	clientConn, panelConn := net.Pipe()

	pub := newFakePublisher()
	srv := server.New(server.Config{ResponseTimeout: time.Second})
	h := New(Config{Password: "1234", ZoneIDs: []int{1, 2, 3}, SirenAutoOffDelay: 20 * time.Millisecond}, pub)
	h.Attach(srv)
	h.srv = srv

	conn := server.WrapConnection(clientConn)
	h.conn = conn
	go srv.ServeConnection(conn)

	stop := make(chan struct{})
	go func() {
		buf := make([]byte, 512)
		for {
			select {
			case <-stop:
				return
			default:
			}
			n, err := panelConn.Read(buf)
			if err != nil {
				return
			}
			frame, err := isecnet.ParseFrame(buf[:n])
			if err != nil {
				continue
			}
			mobile, err := isecnet.ParseMobileFrame(frame.Content)
			if err != nil {
				continue
			}
			if mobile.Opcode == isecnet.OpFullStatus {
				ackPrefixedStatus := append([]byte{isecnet.ResponseAck}, make([]byte, 54)...)
				panelConn.Write(isecnet.NewMobileCarrierFrame(ackPrefixedStatus).Build())
				continue
			}
			panelConn.Write(isecnet.NewAckCarrierFrame().Build())
		}
	}()

	cleanup := func() {
		close(stop)
		clientConn.Close()
		panelConn.Close()
	}
	return h, pub, cleanup
}

func TestHandleCommandArmAway(t *testing.T) {
	h, _, cleanup := loopbackHandler(t)
	defer cleanup()

	if err := h.HandleCommand(context.Background(), "arm_away"); err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
}

func TestHandleCommandUnknownIsIgnored(t *testing.T) {
	h, _, cleanup := loopbackHandler(t)
	defer cleanup()

	if err := h.HandleCommand(context.Background(), "NOT_A_COMMAND"); err != nil {
		t.Errorf("unknown command should be ignored, got err: %v", err)
	}
}

func TestZoneMemorySticky(t *testing.T) {
	h, _, cleanup := loopbackHandler(t)
	defer cleanup()

	status := &isecnet.CentralStatus{
		Zones: isecnet.ZoneStatus{ViolatedZones: []int{2}},
	}
	h.mu.Lock()
	h.updateZoneStateLocked(status)
	h.mu.Unlock()

	if !h.zones[2].Triggered {
		t.Fatal("zone 2 should be marked triggered")
	}

	cleared := &isecnet.CentralStatus{}
	h.mu.Lock()
	h.updateZoneStateLocked(cleared)
	stillTriggered := h.zones[2].Triggered
	h.mu.Unlock()

	if !stillTriggered {
		t.Error("triggered flag should stick across a poll with no violation")
	}
}

func TestStateLabelPriority(t *testing.T) {
	triggered := &isecnet.CentralStatus{Triggered: true, Armed: true}
	if stateLabel(triggered) != "Disparada" {
		t.Errorf("triggered should win over armed, got %q", stateLabel(triggered))
	}
	disarmed := &isecnet.CentralStatus{}
	if stateLabel(disarmed) != "Desarmada" {
		t.Errorf("got %q", stateLabel(disarmed))
	}
}

func TestTriggeredZonesListFormatting(t *testing.T) {
	if triggeredZonesList(nil) != "Ninguna" {
		t.Error("empty should be Ninguna")
	}
	if got := triggeredZonesList([]int{1, 3}); got != "1,3" {
		t.Errorf("got %q", got)
	}
}

func TestBatteryPercentageTable(t *testing.T) {
	cases := []struct {
		p    isecnet.SystemProblems
		want string
	}{
		{isecnet.SystemProblems{}, "100"},
		{isecnet.SystemProblems{LowBattery: true}, "25"},
		{isecnet.SystemProblems{BatteryAbsent: true}, "unknown"},
	}
	for _, c := range cases {
		if got := batteryPercentage(c.p); got != c.want {
			t.Errorf("batteryPercentage(%+v) = %q, want %q", c.p, got, c.want)
		}
	}
}
