// Package isecnet implements the ISECNet/ISECMobile wire protocols used by
// the AMT 2018/4010 family of Intelbras alarm panels: frame checksums,
// the inner ISECMobile command frame, the outer ISECNet transport frame
// and its streaming reader, the command builder catalog, and the response
// and status-payload parsers.
package isecnet

// Outer ISECNet command bytes.
const (
	CommandMobile    byte = 0xE9 // carries a wrapped ISECMobile frame
	CommandHeartbeat byte = 0xF7 // bare single-byte keep-alive
)

// ISECMobile opcodes (command catalog, §4.4).
const (
	OpActivation     byte = 0x41 // arm
	OpDeactivation   byte = 0x44 // disarm
	OpSirenOn        byte = 0x43
	OpSirenOff       byte = 0x63
	OpPGMControl     byte = 0x50
	OpPartialStatus  byte = 0x5A
	OpFullStatus     byte = 0x5B
	OpIdentification byte = 0x94 // panel -> bridge, on connect
)

// Partition encodings shared by activation and deactivation commands.
const (
	PartitionAll byte = 0x00 // empty body
	PartitionA   byte = 0x41
	PartitionB   byte = 0x42
	PartitionC   byte = 0x43
	PartitionD   byte = 0x44
	PartitionStay byte = 0x50
)

// PGM control sub-bytes.
const (
	PGMActionOn  byte = 0x4C // 'L'
	PGMActionOff byte = 0x44 // 'D'
)

// ResponseAck is the single-byte ACK value. The NACK codes are listed in
// nackReasons (response.go).
const (
	ResponseAck byte = 0xFE
)

// ISECMobile framing delimiter.
const isecMobileDelimiter byte = 0x21

// Password length bounds used by both the builder (validation) and the
// parser (length-detection heuristic).
const (
	passwordMinLen = 4
	passwordMaxLen = 6
)
