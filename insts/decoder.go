package insts

// Instruction word layout constants.
const (
	opcodeMask   = 0x7F
	opcodeSystem = 0x73
	opcodeFence  = 0x0F

	funct3Priv   = 0
	funct3CSRRW  = 1
	funct3CSRRS  = 2
	funct3CSRRC  = 3
	funct3CSRRWI = 5
	funct3CSRRSI = 6
	funct3CSRRCI = 7

	// Full-word encodings of the zero-operand SYSTEM instructions.
	wordECALL  = 0x00000073
	wordEBREAK = 0x00100073
	wordURET   = 0x00200073
	wordSRET   = 0x10200073
	wordMRET   = 0x30200073
	wordWFI    = 0x10500073

	funct7SfenceVMA = 0x09
)

// Decoder decodes RISC-V machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new privileged-subset instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RISC-V instruction word. Instructions outside
// the privileged subset decode as OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpUnknown, Raw: word}

	switch word & opcodeMask {
	case opcodeSystem:
		d.decodeSystem(word, inst)
	case opcodeFence:
		d.decodeFence(word, inst)
	}

	return inst
}

// decodeSystem decodes the SYSTEM opcode space: the Zicsr operations
// and the zero-operand privileged instructions.
// Format: csr/funct12 | rs1 | funct3 | rd | 1110011
func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	rd := uint8(word >> 7 & 0x1F)
	rs1 := uint8(word >> 15 & 0x1F)
	funct3 := word >> 12 & 0x7

	if funct3 == funct3Priv {
		d.decodePriv(word, inst)
		return
	}

	inst.Rd = rd
	inst.Rs1 = rs1
	inst.CSR = uint16(word >> 20)

	switch funct3 {
	case funct3CSRRW:
		inst.Op = OpCSRRW
	case funct3CSRRS:
		inst.Op = OpCSRRS
	case funct3CSRRC:
		inst.Op = OpCSRRC
	case funct3CSRRWI:
		inst.Op = OpCSRRWI
	case funct3CSRRSI:
		inst.Op = OpCSRRSI
	case funct3CSRRCI:
		inst.Op = OpCSRRCI
	}

	if inst.IsImmediate() {
		// zimm reuses the rs1 field, zero-extended.
		inst.Uimm = uint64(rs1)
	}
}

// decodePriv decodes the funct3=0 SYSTEM instructions, which have no
// CSR operand.
func (d *Decoder) decodePriv(word uint32, inst *Instruction) {
	switch word {
	case wordECALL:
		inst.Op = OpECALL
		return
	case wordEBREAK:
		inst.Op = OpEBREAK
		return
	case wordURET:
		inst.Op = OpURET
		return
	case wordSRET:
		inst.Op = OpSRET
		return
	case wordMRET:
		inst.Op = OpMRET
		return
	case wordWFI:
		inst.Op = OpWFI
		return
	}

	// SFENCE.VMA carries rs1/rs2 operands, so it cannot be matched as a
	// full word.
	if word>>25 == funct7SfenceVMA && word>>7&0x1F == 0 {
		inst.Op = OpSFENCEVMA
		inst.Rs1 = uint8(word >> 15 & 0x1F)
		inst.Rs2 = uint8(word >> 20 & 0x1F)
	}
}

// decodeFence decodes the MISC-MEM opcode space.
func (d *Decoder) decodeFence(word uint32, inst *Instruction) {
	switch word >> 12 & 0x7 {
	case 0:
		inst.Op = OpFENCE
	case 1:
		inst.Op = OpFENCEI
	}
}
