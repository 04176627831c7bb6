// Package insts provides RISC-V instruction definitions and decoding for
// the privileged subset handled by the monitor.
//
// This package implements decoding of the instructions a machine-mode
// monitor must emulate on behalf of the virtualized firmware:
//   - Zicsr: CSRRW, CSRRS, CSRRC and their immediate forms
//   - Trap returns: MRET, SRET, URET
//   - WFI, ECALL, EBREAK
//   - SFENCE.VMA, FENCE, FENCE.I
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x300312F3) // CSRRW x5, mstatus, x6
//	fmt.Printf("Op: %v, CSR: %#x, Rs1: %d\n", inst.Op, inst.CSR, inst.Rs1)
package insts

// Op represents a RISC-V opcode.
type Op uint16

// Privileged-subset opcodes.
const (
	OpUnknown Op = iota
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI
	OpMRET
	OpSRET
	OpURET
	OpWFI
	OpECALL
	OpEBREAK
	OpSFENCEVMA
	OpFENCE
	OpFENCEI
)

// String returns the assembler mnemonic.
func (o Op) String() string {
	switch o {
	case OpCSRRW:
		return "csrrw"
	case OpCSRRS:
		return "csrrs"
	case OpCSRRC:
		return "csrrc"
	case OpCSRRWI:
		return "csrrwi"
	case OpCSRRSI:
		return "csrrsi"
	case OpCSRRCI:
		return "csrrci"
	case OpMRET:
		return "mret"
	case OpSRET:
		return "sret"
	case OpURET:
		return "uret"
	case OpWFI:
		return "wfi"
	case OpECALL:
		return "ecall"
	case OpEBREAK:
		return "ebreak"
	case OpSFENCEVMA:
		return "sfence.vma"
	case OpFENCE:
		return "fence"
	case OpFENCEI:
		return "fence.i"
	default:
		return "unknown"
	}
}

// Instruction represents a decoded privileged instruction.
type Instruction struct {
	Op Op

	Rd  uint8 // Destination register
	Rs1 uint8 // Source register (or zimm for CSR immediate forms)
	Rs2 uint8 // Second source register (SFENCE.VMA)

	// CSR address for the Zicsr operations.
	CSR uint16

	// Uimm is the zero-extended 5-bit immediate of the CSR immediate
	// forms.
	Uimm uint64

	// Raw is the undecoded instruction word.
	Raw uint32
}

// IsCSROp reports whether the instruction is one of the six Zicsr
// operations.
func (i *Instruction) IsCSROp() bool {
	switch i.Op {
	case OpCSRRW, OpCSRRS, OpCSRRC, OpCSRRWI, OpCSRRSI, OpCSRRCI:
		return true
	default:
		return false
	}
}

// IsImmediate reports whether the instruction uses the zimm field
// instead of rs1.
func (i *Instruction) IsImmediate() bool {
	switch i.Op {
	case OpCSRRWI, OpCSRRSI, OpCSRRCI:
		return true
	default:
		return false
	}
}

// WritesCSR reports whether the instruction performs a CSR write.
// CSRRW always writes; the set and clear forms write only when the
// source register is not x0 (or the immediate is nonzero).
func (i *Instruction) WritesCSR() bool {
	switch i.Op {
	case OpCSRRW, OpCSRRWI:
		return true
	case OpCSRRS, OpCSRRC:
		return i.Rs1 != 0
	case OpCSRRSI, OpCSRRCI:
		return i.Uimm != 0
	default:
		return false
	}
}
