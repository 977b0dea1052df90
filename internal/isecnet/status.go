package isecnet

import (
	"fmt"
	"time"
)

// ZoneStatus aggregates per-zone bitmasks decoded from a status payload.
// Zone numbering is 1-based; OpenZones/ViolatedZones/etc. hold the set of
// zone IDs with that bit set.
type ZoneStatus struct {
	OpenZones          []int
	ViolatedZones      []int
	BypassedZones      []int
	TamperZones        []int
	ShortZones         []int
	WirelessLowBattery []int
}

func (z ZoneStatus) has(set []int, id int) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

// IsViolated reports whether zone id is currently in the violated set.
func (z ZoneStatus) IsViolated(id int) bool { return z.has(z.ViolatedZones, id) }

// IsOpen reports whether zone id is currently in the open set.
func (z ZoneStatus) IsOpen(id int) bool { return z.has(z.OpenZones, id) }

// PartitionStatus holds the four fixed partition IDs' armed flags.
type PartitionStatus struct {
	Enabled bool // whether per-partition state is meaningful
	A, B, C, D bool
}

// AllArmed reports whether all four partitions A..D are armed. When
// partitions are not enabled it reports partition A's flag alone.
func (p PartitionStatus) AllArmed() bool {
	if !p.Enabled {
		return p.A
	}
	return p.A && p.B && p.C && p.D
}

// PGMStatus holds the on/off flag for outputs 1..19 (index 0 unused).
type PGMStatus struct {
	On [20]bool
}

// SystemProblems mirrors the panel's power/tamper/comm problem flags.
type SystemProblems struct {
	ACFailure        bool
	LowBattery       bool
	BatteryAbsent    bool
	BatteryShort     bool
	AuxOverload      bool
	SirenWireCut     bool
	SirenShort       bool
	PhoneLineCut     bool
	EventCommFailure bool
	KeyboardTamper   bool
	KeyboardProblems []int // 1..4
	ReceiverProblems []int // 1..4
	ZoneExpanderFault bool
}

// CentralStatus is the decoded status model shared by both the 43-byte
// partial payload and the 54-byte full payload: the full payload simply
// widens several fields (8-byte zone bitmasks instead of 6, partitions C/D,
// more PGMs). A CentralStatus produced from a partial payload is a complete
// value with the unavailable fields left at their zero value, matching the
// original implementation's promotion of PartialCentralStatus into the same
// shape used for the full status.
type CentralStatus struct {
	Model           byte
	FirmwareVersion string
	Armed           bool
	Triggered       bool
	SirenOn         bool
	HasProblem      bool
	DateTime        time.Time // zero value if the encoded date/time was invalid
	Zones           ZoneStatus
	Partitions      PartitionStatus
	PGM             PGMStatus
	Problems        SystemProblems
	Raw             []byte
}

func bitmaskZones(data []byte, maxZone int) []int {
	var zones []int
	for i := 0; i < maxZone; i++ {
		byteIdx, bit := i/8, i%8
		if byteIdx >= len(data) {
			break
		}
		if data[byteIdx]&(1<<uint(bit)) != 0 {
			zones = append(zones, i+1)
		}
	}
	return zones
}

// decodeDateTime interprets 5 raw-hex (not BCD) bytes: hour, minute, day,
// month, year-offset-from-2000. Invalid combinations yield the zero
// time.Time rather than an error.
func decodeDateTime(hour, minute, day, month, yearOffset byte) time.Time {
	year := 2000 + int(yearOffset)
	if hour > 23 || minute > 59 || day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), int(day), int(hour), int(minute), 0, 0, time.UTC)
}

// ParsePartialStatus decodes a 43-byte partial status payload per §4.5.
func ParsePartialStatus(data []byte) (*CentralStatus, error) {
	const want = 43
	if len(data) != want {
		return nil, fmt.Errorf("isecnet: partial status must be %d bytes, got %d", want, len(data))
	}

	s := &CentralStatus{Raw: append([]byte{}, data...)}

	s.Zones.OpenZones = bitmaskZones(data[0:6], 48)
	s.Zones.ViolatedZones = bitmaskZones(data[6:12], 48)
	s.Zones.BypassedZones = bitmaskZones(data[12:18], 48)

	s.Model = data[18]
	s.FirmwareVersion = fmt.Sprintf("%d.%d", data[19]>>4, data[19]&0x0F)

	s.Partitions.Enabled = data[20]&0x01 != 0
	s.Partitions.A = data[21]&0x01 != 0
	s.Partitions.B = data[21]&0x02 != 0

	functioning := data[22]
	s.Armed = functioning&0x08 != 0
	s.Triggered = functioning&0x04 != 0 || functioning&0x40 != 0
	s.SirenOn = functioning&0x02 != 0
	s.HasProblem = functioning&0x01 != 0 || functioning&0x10 != 0

	s.DateTime = decodeDateTime(data[23], data[24], data[25], data[26], data[27])

	power := data[28]
	s.Problems.ACFailure = power&0x01 != 0
	s.Problems.LowBattery = power&0x02 != 0
	s.Problems.BatteryAbsent = power&0x04 != 0
	s.Problems.BatteryShort = power&0x08 != 0
	s.Problems.AuxOverload = power&0x10 != 0

	kbRx := data[29]
	for i := 0; i < 4; i++ {
		if kbRx&(1<<uint(i)) != 0 {
			s.Problems.KeyboardProblems = append(s.Problems.KeyboardProblems, i+1)
		}
		if kbRx&(1<<uint(4+i)) != 0 {
			s.Problems.ReceiverProblems = append(s.Problems.ReceiverProblems, i+1)
		}
	}

	s.Problems.KeyboardTamper = data[31]&0xF0 != 0

	sirenPhone := data[32]
	s.Problems.SirenWireCut = sirenPhone&0x01 != 0
	s.Problems.SirenShort = sirenPhone&0x02 != 0
	s.Problems.PhoneLineCut = sirenPhone&0x04 != 0
	s.Problems.EventCommFailure = sirenPhone&0x08 != 0

	s.Zones.TamperZones = bitmaskZones(data[33:35], 18)
	s.Zones.ShortZones = bitmaskZones(data[35:37], 18)

	pgmSiren := data[37]
	if pgmSiren&0x04 != 0 {
		s.SirenOn = true
	}
	s.PGM.On[1] = pgmSiren&0x40 != 0
	s.PGM.On[2] = pgmSiren&0x20 != 0

	s.Zones.WirelessLowBattery = bitmaskZones(data[38:43], 40)

	return s, nil
}

// TryParsePartialStatus returns nil instead of an error on any failure.
func TryParsePartialStatus(data []byte) *CentralStatus {
	s, err := ParsePartialStatus(data)
	if err != nil {
		return nil
	}
	return s
}

// ParseFullStatus decodes a 54-byte full status payload. It follows the
// partial parser's structure for every overlapping field and widens the
// zone bitmasks to 64 zones, adds partitions C/D, and more PGM outputs —
// per §4.5's guidance that implementers should reuse the partial layout for
// shared fields.
func ParseFullStatus(data []byte) (*CentralStatus, error) {
	const want = 54
	if len(data) != want {
		return nil, fmt.Errorf("isecnet: full status must be %d bytes, got %d", want, len(data))
	}

	s := &CentralStatus{Raw: append([]byte{}, data...)}

	s.Zones.OpenZones = bitmaskZones(data[0:8], 64)
	s.Zones.ViolatedZones = bitmaskZones(data[8:16], 64)
	s.Zones.BypassedZones = bitmaskZones(data[16:24], 64)

	s.Model = data[24]
	s.FirmwareVersion = fmt.Sprintf("%d.%d", data[25]>>4, data[25]&0x0F)

	s.Partitions.Enabled = data[26]&0x01 != 0
	s.Partitions.A = data[27]&0x01 != 0
	s.Partitions.B = data[27]&0x02 != 0
	s.Partitions.C = data[28]&0x01 != 0
	s.Partitions.D = data[28]&0x02 != 0

	functioning := data[29]
	s.Armed = functioning&0x08 != 0
	s.Triggered = functioning&0x04 != 0 || functioning&0x40 != 0
	s.SirenOn = functioning&0x02 != 0
	s.HasProblem = functioning&0x01 != 0 || functioning&0x10 != 0

	s.DateTime = decodeDateTime(data[30], data[31], data[32], data[33], data[34])

	power := data[35]
	s.Problems.ACFailure = power&0x01 != 0
	s.Problems.LowBattery = power&0x02 != 0
	s.Problems.BatteryAbsent = power&0x04 != 0
	s.Problems.BatteryShort = power&0x08 != 0
	s.Problems.AuxOverload = power&0x10 != 0

	kbRx := data[36]
	for i := 0; i < 4; i++ {
		if kbRx&(1<<uint(i)) != 0 {
			s.Problems.KeyboardProblems = append(s.Problems.KeyboardProblems, i+1)
		}
		if kbRx&(1<<uint(4+i)) != 0 {
			s.Problems.ReceiverProblems = append(s.Problems.ReceiverProblems, i+1)
		}
	}

	s.Problems.KeyboardTamper = data[37]&0xF0 != 0

	sirenPhone := data[38]
	s.Problems.SirenWireCut = sirenPhone&0x01 != 0
	s.Problems.SirenShort = sirenPhone&0x02 != 0
	s.Problems.PhoneLineCut = sirenPhone&0x04 != 0
	s.Problems.EventCommFailure = sirenPhone&0x08 != 0
	s.Problems.ZoneExpanderFault = data[39]&0x01 != 0

	s.Zones.TamperZones = bitmaskZones(data[40:42], 18)
	s.Zones.ShortZones = bitmaskZones(data[42:44], 18)

	pgmByte := data[45]
	for i := 1; i <= 8; i++ {
		s.PGM.On[i] = pgmByte&(1<<uint(i-1)) != 0
	}
	pgmByte2 := data[52]
	for i := 9; i <= 16; i++ {
		s.PGM.On[i] = pgmByte2&(1<<uint(i-9)) != 0
	}
	pgmByte3 := data[53]
	for i := 17; i <= 19; i++ {
		s.PGM.On[i] = pgmByte3&(1<<uint(i-17)) != 0
	}

	s.Zones.WirelessLowBattery = bitmaskZones(data[46:52], 48)

	return s, nil
}

// TryParseFullStatus returns nil instead of an error on any failure.
func TryParseFullStatus(data []byte) *CentralStatus {
	s, err := ParseFullStatus(data)
	if err != nil {
		return nil
	}
	return s
}

// ParseStatus dispatches to the full or partial decoder by payload length,
// matching protocol_handlers/isecnet.py::_parse_status: a 54-byte payload
// is a full status, a 43-byte payload is a partial status promoted into
// the same CentralStatus shape. Any other length returns nil.
func ParseStatus(payload []byte) *CentralStatus {
	switch len(payload) {
	case 54:
		return TryParseFullStatus(payload)
	case 43:
		return TryParsePartialStatus(payload)
	default:
		return nil
	}
}
