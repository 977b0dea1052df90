package legacy

import (
	"bytes"
	"testing"

	"github.com/intelbras/alarm-bridge/internal/isecnet"
)

func TestBuildAuthFrameChecksum(t *testing.T) {
	frame, err := BuildAuthFrame("123456")
	if err != nil {
		t.Fatal(err)
	}
	if !isecnet.ValidatePacket(frame) {
		t.Errorf("auth frame checksum invalid: % X", frame)
	}
	// dst_id, our_id, length(be16)=2+8=10, opcode
	want := []byte{0x00, 0x00, 0x8F, 0xFF, 0x00, 0x0A, 0xF0, 0xF0}
	if !bytes.Equal(frame[:8], want) {
		t.Errorf("header = % X, want % X", frame[:8], want)
	}
	body := frame[8 : len(frame)-1]
	wantBody := []byte{0x01, 1, 2, 3, 4, 5, 6, softwareVersion}
	if !bytes.Equal(body, wantBody) {
		t.Errorf("body = % X, want % X", body, wantBody)
	}
}

func TestBuildAuthFrameRejectsBadPassword(t *testing.T) {
	if _, err := BuildAuthFrame("12345"); err == nil {
		t.Error("expected error for 5-digit password")
	}
	if _, err := BuildAuthFrame("12a456"); err == nil {
		t.Error("expected error for non-digit password")
	}
}

func TestParseAuthReply(t *testing.T) {
	reply := make([]byte, 9)
	reply[8] = 1
	result, err := ParseAuthReply(reply)
	if err != nil {
		t.Fatal(err)
	}
	if result != AuthBadPassword {
		t.Errorf("got %v, want AuthBadPassword", result)
	}
}

func TestParseArmReplyBypass(t *testing.T) {
	reply := make([]byte, 10)
	reply[9] = 0x99
	result, err := ParseArmReply(reply)
	if err != nil {
		t.Fatal(err)
	}
	if result != ArmOKWithBypass {
		t.Errorf("got %v, want ArmOKWithBypass", result)
	}
}

func TestParseStatusDecodesZonesAndBattery(t *testing.T) {
	reply := make([]byte, 8+135)
	p := reply[8:]
	p[0] = 1 // AMT-8000
	p[1], p[2], p[3] = 2, 5, 0
	p[20] = 0x60 // armed-away nibble (3<<5)
	p[22] = 0x01 // zone 1 open
	p[23] = 0x01 // zone 9 open
	p[71] = 0x02 // tamper
	p[134] = 4   // full battery

	s, err := ParseStatus(reply)
	if err != nil {
		t.Fatal(err)
	}
	if !s.ArmedAway || s.ArmedPartial {
		t.Errorf("armed decode wrong: %+v", s)
	}
	if len(s.OpenZones) != 2 || s.OpenZones[0] != 1 || s.OpenZones[1] != 9 {
		t.Errorf("open zones = %v, want [1 9]", s.OpenZones)
	}
	if !s.Tamper {
		t.Error("tamper should be set")
	}
	if s.BatteryPercent != 100 {
		t.Errorf("battery = %d, want 100", s.BatteryPercent)
	}
	if s.FirmwareVersion != "2.5.0" {
		t.Errorf("firmware = %q, want 2.5.0", s.FirmwareVersion)
	}
}

func TestParseLineZoneEvents(t *testing.T) {
	ev, ok := ParseLine("12:01:03 Disparo de zona 7")
	if !ok || ev.Kind != EventZoneTriggered || ev.ZoneID != 7 {
		t.Errorf("got %+v ok=%v", ev, ok)
	}

	ev, ok = ParseLine("12:01:10 Restauracao de zona 7")
	if !ok || ev.Kind != EventZoneRestored || ev.ZoneID != 7 {
		t.Errorf("got %+v ok=%v", ev, ok)
	}
}

func TestParseLineNonMatchingReturnsFalse(t *testing.T) {
	if _, ok := ParseLine("some unrelated diagnostic line"); ok {
		t.Error("expected no match")
	}
}

func TestParseLinePanicAndPower(t *testing.T) {
	cases := map[string]EventKind{
		"Evento: Panico botao":          EventPanic,
		"Falta de energia AC detectada": EventACPowerLost,
		"Retorno de energia AC ok":      EventACPowerRestored,
	}
	for line, want := range cases {
		ev, ok := ParseLine(line)
		if !ok || ev.Kind != want {
			t.Errorf("line %q: got %+v ok=%v, want kind %v", line, ev, ok, want)
		}
	}
}
