// Package virt implements the privileged-state virtualization engine: a
// virtual CSR register file per hart, write legalization, CSR access
// control, PMP matching, the trap/return state machine, and interrupt
// dispatch. It reproduces the RISC-V privileged-architecture semantics
// bit for bit; the instruction-level dispatcher lives in package emu.
package virt

// PrivilegeLevel is a RISC-V privilege mode, ordered by its numeric
// encoding (User < Supervisor < Machine).
type PrivilegeLevel uint8

// Privilege mode encodings from the privileged specification.
const (
	PrivUser       PrivilegeLevel = 0b00
	PrivSupervisor PrivilegeLevel = 0b01
	PrivMachine    PrivilegeLevel = 0b11
)

// String returns the conventional one-letter mode name.
func (p PrivilegeLevel) String() string {
	switch p {
	case PrivUser:
		return "U"
	case PrivSupervisor:
		return "S"
	case PrivMachine:
		return "M"
	default:
		return "?"
	}
}

// InterruptType identifies one of the nine standard interrupts. The
// numeric value is the interrupt cause code, which is also the bit
// position in mip/mie/mideleg.
type InterruptType uint8

// Standard interrupt cause codes.
const (
	IntUserSoftware       InterruptType = 0
	IntSupervisorSoftware InterruptType = 1
	IntMachineSoftware    InterruptType = 3
	IntUserTimer          InterruptType = 4
	IntSupervisorTimer    InterruptType = 5
	IntMachineTimer       InterruptType = 7
	IntUserExternal       InterruptType = 8
	IntSupervisorExternal InterruptType = 9
	IntMachineExternal    InterruptType = 11
)

// Bit returns the interrupt's bit mask in mip/mie/mideleg.
func (i InterruptType) Bit() uint64 {
	return 1 << uint64(i)
}

func (i InterruptType) String() string {
	switch i {
	case IntUserSoftware:
		return "USI"
	case IntSupervisorSoftware:
		return "SSI"
	case IntMachineSoftware:
		return "MSI"
	case IntUserTimer:
		return "UTI"
	case IntSupervisorTimer:
		return "STI"
	case IntMachineTimer:
		return "MTI"
	case IntUserExternal:
		return "UEI"
	case IntSupervisorExternal:
		return "SEI"
	case IntMachineExternal:
		return "MEI"
	default:
		return "?"
	}
}

// ExceptionType identifies a synchronous exception. The numeric value is
// the cause code written to mcause/scause and the bit index consulted in
// medeleg/sedeleg.
type ExceptionType uint8

// Standard exception cause codes.
const (
	ExcFetchAddrMisaligned ExceptionType = 0
	ExcFetchAccessFault    ExceptionType = 1
	ExcIllegalInstruction  ExceptionType = 2
	ExcBreakpoint          ExceptionType = 3
	ExcLoadAddrMisaligned  ExceptionType = 4
	ExcLoadAccessFault     ExceptionType = 5
	ExcStoreAddrMisaligned ExceptionType = 6
	ExcStoreAccessFault    ExceptionType = 7
	ExcEnvCallFromUser     ExceptionType = 8
	ExcEnvCallFromSup      ExceptionType = 9
	ExcEnvCallFromMachine  ExceptionType = 11
	ExcFetchPageFault      ExceptionType = 12
	ExcLoadPageFault       ExceptionType = 13
	ExcStorePageFault      ExceptionType = 15
)

// Bit returns the exception's bit mask in medeleg/sedeleg.
func (e ExceptionType) Bit() uint64 {
	return 1 << uint64(e)
}

// TrapCause is the value committed to a *cause register on a trap. It is
// write-once per trap and overwritten by the next one.
type TrapCause struct {
	IsInterrupt bool
	Code        uint8
}

// InterruptCause builds the cause for an interrupt trap.
func InterruptCause(i InterruptType) TrapCause {
	return TrapCause{IsInterrupt: true, Code: uint8(i)}
}

// ExceptionCause builds the cause for a synchronous exception trap.
func ExceptionCause(e ExceptionType) TrapCause {
	return TrapCause{IsInterrupt: false, Code: uint8(e)}
}

// Bits returns the cause encoded as an XLEN-wide cause-register value,
// with the interrupt flag in the top bit.
func (c TrapCause) Bits() uint64 {
	v := uint64(c.Code)
	if c.IsInterrupt {
		v |= 1 << 63
	}
	return v
}

// AccessType classifies a physical memory access for PMP checking.
type AccessType uint8

// Memory access kinds.
const (
	AccessRead AccessType = iota
	AccessWrite
	AccessReadWrite
	AccessExecute
)

// Fault maps the access kind to the access-fault exception raised when
// the PMP denies it.
func (a AccessType) Fault() ExceptionType {
	switch a {
	case AccessRead:
		return ExcLoadAccessFault
	case AccessWrite, AccessReadWrite:
		return ExcStoreAccessFault
	case AccessExecute:
		return ExcFetchAccessFault
	default:
		panic("virt: invalid access type")
	}
}
