package legacy

import "fmt"

// Status is the decoded legacy status payload, found starting at byte 8 of
// the status reply.
type Status struct {
	Model           byte
	FirmwareVersion string
	Armed           bool
	ArmedAway       bool
	ArmedPartial    bool
	ZonesFiring     bool
	AllClosed       bool
	SirenOn         bool
	HasProblem      bool
	OpenZones       []int // 1..64
	Tamper          bool
	BatteryPercent  int // -1 if unknown
}

// decodeGlobalBits decodes bits 5-6 of byte 20: 0 disarmed, 1 partial, 3
// armed-away. Bit layout per §4.9: status nibble (b>>5)&3.
func decodeGlobalBits(b byte) (armedAway, armedPartial bool) {
	switch (b >> 5) & 0x03 {
	case 1:
		return false, true
	case 3:
		return true, false
	default:
		return false, false
	}
}

// ParseStatus decodes a full legacy status reply (the raw bytes received
// from the socket, offset 0 = start of the TCP payload, with the status
// payload itself living at byte 8 onward as documented in §4.9).
func ParseStatus(reply []byte) (*Status, error) {
	const payloadOffset = 8
	const minPayloadLen = 135 // through byte 134, the battery byte
	if len(reply) < payloadOffset+minPayloadLen {
		return nil, fmt.Errorf("legacy: status reply too short (%d bytes)", len(reply))
	}
	p := reply[payloadOffset:]

	s := &Status{
		Model:           p[0],
		FirmwareVersion: fmt.Sprintf("%d.%d.%d", p[1], p[2], p[3]),
	}

	global := p[20]
	s.ArmedAway, s.ArmedPartial = decodeGlobalBits(global)
	s.Armed = s.ArmedAway || s.ArmedPartial
	s.ZonesFiring = global&0x08 != 0
	s.AllClosed = global&0x04 != 0
	s.SirenOn = global&0x02 != 0
	s.HasProblem = global&0x01 != 0

	for i := 0; i < 64; i++ {
		byteIdx, bit := i/8, i%8
		if p[22+byteIdx]&(1<<uint(bit)) != 0 {
			s.OpenZones = append(s.OpenZones, i+1)
		}
	}

	s.Tamper = p[71]&0x02 != 0

	switch p[134] {
	case 1:
		s.BatteryPercent = 0
	case 2:
		s.BatteryPercent = 25
	case 3:
		s.BatteryPercent = 75
	case 4:
		s.BatteryPercent = 100
	default:
		s.BatteryPercent = -1
	}

	return s, nil
}
