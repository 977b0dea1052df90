// Package legacy implements the AMT8000 legacy client dialect (C9): a
// short-lived, client-initiated TCP frame layout distinct from ISECNet, plus
// the optional receptorip sidecar text-log scraper. Grounded on the legacy
// framing described alongside isecnet/const.py and on addon_main.py's
// alarm_client/process_receptorip_output wiring.
package legacy

import (
	"fmt"

	"github.com/intelbras/alarm-bridge/internal/isecnet"
)

// Legacy frame header fields (fixed for every request).
var (
	dstID = [2]byte{0x00, 0x00}
	ourID = [2]byte{0x8F, 0xFF}
)

// Opcodes, as 2-byte big-endian pairs.
var (
	OpAuth          = [2]byte{0xF0, 0xF0}
	OpStatus        = [2]byte{0x0B, 0x4A}
	OpArmDisarm     = [2]byte{0x40, 0x1E}
	OpPanic         = [2]byte{0x40, 0x1A}
	OpPairedSensors = [2]byte{0x0B, 0x01}
)

const softwareVersion byte = 0x10

// BuildFrame serializes a legacy request: dst_id | our_id | length_be16 |
// opcode | body | xor_checksum. The length field covers opcode+body only.
func BuildFrame(opcode [2]byte, body []byte) []byte {
	length := 2 + len(body)
	out := make([]byte, 0, 4+2+length+1)
	out = append(out, dstID[:]...)
	out = append(out, ourID[:]...)
	out = append(out, byte(length>>8), byte(length))
	out = append(out, opcode[:]...)
	out = append(out, body...)
	return isecnet.AppendChecksum(out)
}

// BuildAuthFrame builds the auth request for a 6-digit password. The body
// is [device_type=1, d1..d6, software_version].
func BuildAuthFrame(password string) ([]byte, error) {
	if len(password) != 6 {
		return nil, fmt.Errorf("legacy: password must be exactly 6 digits, got %d", len(password))
	}
	body := make([]byte, 0, 8)
	body = append(body, 0x01)
	for _, c := range password {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("legacy: password must be all digits")
		}
		body = append(body, byte(c-'0'))
	}
	body = append(body, softwareVersion)
	return BuildFrame(OpAuth, body), nil
}

// BuildStatusFrame builds the status query request (no body).
func BuildStatusFrame() []byte { return BuildFrame(OpStatus, nil) }

// partitionAll is the "no specific partition" sentinel used by arm/disarm.
const partitionAll byte = 0xFF

// BuildArmFrame builds an arm request for the given partition (or
// partitionAll via PartitionAll).
func BuildArmFrame(partition byte) []byte {
	return BuildFrame(OpArmDisarm, []byte{partition, 0x01})
}

// BuildDisarmFrame builds a disarm request for the given partition.
func BuildDisarmFrame(partition byte) []byte {
	return BuildFrame(OpArmDisarm, []byte{partition, 0x00})
}

// PartitionAll requests the whole-panel arm/disarm behavior.
const PartitionAll = partitionAll

// BuildPanicFrame builds a panic request of the given type byte.
func BuildPanicFrame(panicType byte) []byte {
	return BuildFrame(OpPanic, []byte{panicType})
}

// BuildPairedSensorsFrame builds the paired-sensors query (no body).
func BuildPairedSensorsFrame() []byte { return BuildFrame(OpPairedSensors, nil) }

// AuthResult classifies byte 8 of an auth reply.
type AuthResult int

const (
	AuthOK AuthResult = iota
	AuthBadPassword
	AuthBadSoftwareVersion
	AuthCallback
	AuthWaitingUser
	AuthUnknown
)

func (r AuthResult) String() string {
	switch r {
	case AuthOK:
		return "ok"
	case AuthBadPassword:
		return "bad password"
	case AuthBadSoftwareVersion:
		return "bad software version"
	case AuthCallback:
		return "callback"
	case AuthWaitingUser:
		return "waiting for user"
	default:
		return "unknown"
	}
}

// ParseAuthReply classifies an auth reply by the byte at offset 8.
func ParseAuthReply(reply []byte) (AuthResult, error) {
	if len(reply) < 9 {
		return AuthUnknown, fmt.Errorf("legacy: auth reply too short (%d bytes)", len(reply))
	}
	switch reply[8] {
	case 0:
		return AuthOK, nil
	case 1:
		return AuthBadPassword, nil
	case 2:
		return AuthBadSoftwareVersion, nil
	case 3:
		return AuthCallback, nil
	case 4:
		return AuthWaitingUser, nil
	default:
		return AuthUnknown, nil
	}
}

// ArmResult distinguishes a plain arm from an arm-with-bypass.
type ArmResult int

const (
	ArmFailed ArmResult = iota
	ArmOK
	ArmOKWithBypass
)

// ParseArmReply inspects byte 9, matching §4.9's {0x91, 0x99} expectation.
func ParseArmReply(reply []byte) (ArmResult, error) {
	if len(reply) < 10 {
		return ArmFailed, fmt.Errorf("legacy: arm reply too short (%d bytes)", len(reply))
	}
	switch reply[9] {
	case 0x91:
		return ArmOK, nil
	case 0x99:
		return ArmOKWithBypass, nil
	default:
		return ArmFailed, nil
	}
}

// ParseDisarmReply reports whether byte 9 is the expected 0x90.
func ParseDisarmReply(reply []byte) (bool, error) {
	if len(reply) < 10 {
		return false, fmt.Errorf("legacy: disarm reply too short (%d bytes)", len(reply))
	}
	return reply[9] == 0x90, nil
}

// ParsePanicReply reports whether byte 7 is the expected 0xFE.
func ParsePanicReply(reply []byte) (bool, error) {
	if len(reply) < 8 {
		return false, fmt.Errorf("legacy: panic reply too short (%d bytes)", len(reply))
	}
	return reply[7] == 0xFE, nil
}
