package isecnet

// Command is implemented by every ISECMobile command builder. BuildContent
// returns the opcode's body; BuildNetFrame wraps it through the ISECMobile
// and ISECNet layers and returns the full outer wire frame.
type Command interface {
	Opcode() byte
	BuildContent() []byte
	Password() string
}

// BuildMobileFrame wraps a Command's content in an ISECMobile frame.
func BuildMobileFrame(c Command) (*MobileFrame, error) {
	return NewMobileFrame(c.Password(), c.Opcode(), c.BuildContent())
}

// BuildNetFrame wraps a Command all the way to the outer ISECNet frame
// bytes (mobile frame -> 0xE9 carrier -> checksummed wire frame).
func BuildNetFrame(c Command) ([]byte, error) {
	mobile, err := BuildMobileFrame(c)
	if err != nil {
		return nil, err
	}
	return NewMobileCarrierFrame(mobile.Build()).Build(), nil
}

type baseCommand struct {
	password string
}

func (b baseCommand) Password() string { return b.password }

// ActivationCommand arms the whole panel or a single partition.
type ActivationCommand struct {
	baseCommand
	partition byte // PartitionAll, PartitionA..D, or PartitionStay
}

func (ActivationCommand) Opcode() byte { return OpActivation }

func (c ActivationCommand) BuildContent() []byte {
	if c.partition == PartitionAll {
		return nil
	}
	return []byte{c.partition}
}

func ArmAll(password string) ActivationCommand {
	return ActivationCommand{baseCommand{password}, PartitionAll}
}
func ArmPartitionA(password string) ActivationCommand {
	return ActivationCommand{baseCommand{password}, PartitionA}
}
func ArmPartitionB(password string) ActivationCommand {
	return ActivationCommand{baseCommand{password}, PartitionB}
}
func ArmPartitionC(password string) ActivationCommand {
	return ActivationCommand{baseCommand{password}, PartitionC}
}
func ArmPartitionD(password string) ActivationCommand {
	return ActivationCommand{baseCommand{password}, PartitionD}
}
func ArmStay(password string) ActivationCommand {
	return ActivationCommand{baseCommand{password}, PartitionStay}
}

// DeactivationCommand disarms the whole panel or a single partition.
type DeactivationCommand struct {
	baseCommand
	partition byte
}

func (DeactivationCommand) Opcode() byte { return OpDeactivation }

func (c DeactivationCommand) BuildContent() []byte {
	if c.partition == PartitionAll {
		return nil
	}
	return []byte{c.partition}
}

func DisarmAll(password string) DeactivationCommand {
	return DeactivationCommand{baseCommand{password}, PartitionAll}
}
func DisarmPartitionA(password string) DeactivationCommand {
	return DeactivationCommand{baseCommand{password}, PartitionA}
}
func DisarmPartitionB(password string) DeactivationCommand {
	return DeactivationCommand{baseCommand{password}, PartitionB}
}
func DisarmPartitionC(password string) DeactivationCommand {
	return DeactivationCommand{baseCommand{password}, PartitionC}
}
func DisarmPartitionD(password string) DeactivationCommand {
	return DeactivationCommand{baseCommand{password}, PartitionD}
}

// SirenCommand turns the siren on or off. Neither direction carries a body;
// the action lives entirely in the opcode.
type SirenCommand struct {
	baseCommand
	turnOn bool
}

func (c SirenCommand) Opcode() byte {
	if c.turnOn {
		return OpSirenOn
	}
	return OpSirenOff
}
func (SirenCommand) BuildContent() []byte { return nil }

func SirenOn(password string) SirenCommand  { return SirenCommand{baseCommand{password}, true} }
func SirenOff(password string) SirenCommand { return SirenCommand{baseCommand{password}, false} }

// PGMCommand turns one of the panel's 19 programmable outputs on or off.
type PGMCommand struct {
	baseCommand
	turnOn bool
	output int // 1..19
}

func (PGMCommand) Opcode() byte { return OpPGMControl }

func (c PGMCommand) BuildContent() []byte {
	action := PGMActionOff
	if c.turnOn {
		action = PGMActionOn
	}
	return []byte{action, byte(0x30 + c.output)}
}

func PGMOn(password string, output int) PGMCommand  { return PGMCommand{baseCommand{password}, true, output} }
func PGMOff(password string, output int) PGMCommand { return PGMCommand{baseCommand{password}, false, output} }

// StatusRequestCommand requests the full (54-byte) or partial (43-byte)
// status blob depending on opcode.
type StatusRequestCommand struct {
	baseCommand
	full bool
}

func (c StatusRequestCommand) Opcode() byte {
	if c.full {
		return OpFullStatus
	}
	return OpPartialStatus
}
func (StatusRequestCommand) BuildContent() []byte { return nil }

func FullStatusRequest(password string) StatusRequestCommand {
	return StatusRequestCommand{baseCommand{password}, true}
}
func PartialStatusRequest(password string) StatusRequestCommand {
	return StatusRequestCommand{baseCommand{password}, false}
}
