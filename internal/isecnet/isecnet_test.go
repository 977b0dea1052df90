package isecnet

import (
	"bytes"
	"testing"
	"time"
)

func hexBytes(t *testing.T, hex string) []byte {
	t.Helper()
	fields := bytes.Fields([]byte(hex))
	out := make([]byte, len(fields))
	for i, f := range fields {
		var b byte
		for _, c := range f {
			b <<= 4
			switch {
			case c >= '0' && c <= '9':
				b |= c - '0'
			case c >= 'A' && c <= 'F':
				b |= c - 'A' + 10
			case c >= 'a' && c <= 'f':
				b |= c - 'a' + 10
			}
		}
		out[i] = b
	}
	return out
}

func TestBuildArmAll(t *testing.T) {
	got, err := BuildNetFrame(ArmAll("1234"))
	if err != nil {
		t.Fatal(err)
	}
	want := hexBytes(t, "08 E9 21 31 32 33 34 41 21 5B")
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}

	ack := ClassifyResponse([]byte{ResponseAck})
	if ack.Kind != KindAck || !ack.IsSuccess() {
		t.Errorf("ack classification = %+v", ack)
	}
}

func TestBuildDisarmPartitionA(t *testing.T) {
	got, err := BuildNetFrame(DisarmPartitionA("1234"))
	if err != nil {
		t.Fatal(err)
	}
	want := hexBytes(t, "09 E9 21 31 32 33 34 44 41 21 1E")
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}

	nack := ClassifyResponse([]byte{0xE1})
	if nack.Kind != KindNack || nack.Code != 0xE1 || nack.Message() != "wrong password" {
		t.Errorf("nack classification = %+v message=%q", nack, nack.Message())
	}
}

func TestFrameBuildParseRoundTrip(t *testing.T) {
	for _, content := range [][]byte{
		nil,
		{0x01},
		bytes.Repeat([]byte{0xAB}, 200),
	} {
		f := NewMobileCarrierFrame(content)
		built := f.Build()
		parsed, err := ParseFrame(built)
		if err != nil {
			t.Fatalf("len=%d: %v", len(content), err)
		}
		if parsed.Command != CommandMobile || !bytes.Equal(parsed.Content, content) {
			t.Errorf("len=%d: roundtrip mismatch: %+v", len(content), parsed)
		}
		if !ValidatePacket(built) {
			t.Errorf("len=%d: checksum invalid", len(content))
		}
	}
}

func TestMobileFrameRoundTrip(t *testing.T) {
	f, err := NewMobileFrame("1234", OpActivation, nil)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseMobileFrame(f.Build())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Password != "1234" || parsed.Opcode != OpActivation || len(parsed.Body) != 0 {
		t.Errorf("roundtrip mismatch: %+v", parsed)
	}
}

func TestStreamingReaderHeartbeatThenFrame(t *testing.T) {
	r := NewFrameReader()
	input := hexBytes(t, "F7 08 E9 21 31 32 33 34 41 21 5B")

	frames := r.Feed(input)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !frames[0].IsHeartbeat() {
		t.Errorf("frame 0 = %+v, want heartbeat", frames[0])
	}
	if frames[1].Command != CommandMobile {
		t.Errorf("frame 1 command = 0x%02X, want 0xE9", frames[1].Command)
	}
	if r.PendingBytes() != 0 {
		t.Errorf("pending bytes = %d, want 0", r.PendingBytes())
	}
}

func TestStreamingReaderArbitrarySplit(t *testing.T) {
	input := hexBytes(t, "F7 08 E9 21 31 32 33 34 41 21 5B 09 E9 21 31 32 33 34 44 41 21 1E")

	whole := NewFrameReader().Feed(input)

	for split := 0; split <= len(input); split++ {
		r := NewFrameReader()
		var got []*Frame
		got = append(got, r.Feed(input[:split])...)
		got = append(got, r.Feed(input[split:])...)

		if len(got) != len(whole) {
			t.Fatalf("split=%d: got %d frames, want %d", split, len(got), len(whole))
		}
		for i := range got {
			if got[i].Command != whole[i].Command || !bytes.Equal(got[i].Content, whole[i].Content) {
				t.Errorf("split=%d frame %d: got %+v, want %+v", split, i, got[i], whole[i])
			}
		}
	}
}

func TestPartialStatusParse(t *testing.T) {
	payload := make([]byte, 43)
	payload[21] = 0x03
	payload[22] = 0x08

	s, err := ParsePartialStatus(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Partitions.A || !s.Partitions.B {
		t.Errorf("partitions = %+v, want A and B armed", s.Partitions)
	}
	if !s.Armed {
		t.Error("armed = false, want true")
	}
	if s.Triggered {
		t.Error("triggered = true, want false")
	}
}

func TestDateTimeDecoding(t *testing.T) {
	got := decodeDateTime(0x12, 0x3B, 0x12, 0x0C, 0x19)
	want := time.Date(2025, time.December, 18, 18, 59, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPartialStatusInvalidLengthTryParse(t *testing.T) {
	if TryParsePartialStatus(make([]byte, 10)) != nil {
		t.Error("expected nil for invalid length")
	}
}

func TestZoneTriggeredMonotonicity(t *testing.T) {
	// Mirrors §8's sticky-Triggered invariant at the zone-state layer that
	// sits above this package (internal/handler); here we only assert that
	// ZoneStatus correctly reports membership so that layer can apply it.
	z := ZoneStatus{ViolatedZones: []int{3}, OpenZones: []int{5, 7}}
	if !z.IsViolated(3) || z.IsViolated(5) {
		t.Errorf("zone membership wrong: %+v", z)
	}
}

func TestArmPartitionBBuildIsDeterministic(t *testing.T) {
	a, err := BuildNetFrame(ArmPartitionB("1234"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildNetFrame(ArmPartitionB("1234"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("expected identical bytes for partition B arm command")
	}
}

func TestConnectionInfoParse(t *testing.T) {
	info, err := ParseConnectionInfo(hexBytes(t, "45 12 34 30 00 01"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Channel != ChannelEthernet || info.Account != "1234" || info.MACSuffix != "30:00:01" {
		t.Errorf("got %+v", info)
	}
}

func TestCRC16RoundTrip(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	packet := AppendCRC16(data)
	if !ValidateCRC16Packet(packet) {
		t.Fatalf("expected valid CRC-16 packet, got %x", packet)
	}
	packet[0] ^= 0xFF
	if ValidateCRC16Packet(packet) {
		t.Errorf("expected corrupted packet to fail CRC-16 validation")
	}
}

func TestValidateCRC16PacketTooShort(t *testing.T) {
	if ValidateCRC16Packet([]byte{0x01, 0x02}) {
		t.Errorf("expected a 2-byte packet to be rejected as too short")
	}
}
