package virt

// mstatus bit layout (RV64).
const (
	MstatusUIE  uint64 = 1 << 0
	MstatusSIE  uint64 = 1 << 1
	MstatusMIE  uint64 = 1 << 3
	MstatusUPIE uint64 = 1 << 4
	MstatusSPIE uint64 = 1 << 5
	MstatusMPIE uint64 = 1 << 7
	MstatusSPP  uint64 = 1 << 8
	MstatusMPRV uint64 = 1 << 17
	MstatusSUM  uint64 = 1 << 18
	MstatusMXR  uint64 = 1 << 19
	MstatusTVM  uint64 = 1 << 20
	MstatusTW   uint64 = 1 << 21
	MstatusTSR  uint64 = 1 << 22
	MstatusSD   uint64 = 1 << 63

	mstatusVSShift  = 9
	mstatusMPPShift = 11
	mstatusFSShift  = 13
	mstatusXSShift  = 15
	mstatusUXLShift = 32
	mstatusSXLShift = 34

	MstatusVS  uint64 = 0b11 << mstatusVSShift
	MstatusMPP uint64 = 0b11 << mstatusMPPShift
	MstatusFS  uint64 = 0b11 << mstatusFSShift
	MstatusXS  uint64 = 0b11 << mstatusXSShift
	MstatusUXL uint64 = 0b11 << mstatusUXLShift
	MstatusSXL uint64 = 0b11 << mstatusSXLShift
)

// mstatusWriteMask covers the fields a raw mstatus write may touch: bits
// 22:0 minus the WPRI bits 2 and 6. Everything above bit 22 is either
// computed (SD), immutable (SXL/UXL), or unimplemented (endianness,
// hypervisor fields) and reads back as the legalizer decides.
const mstatusWriteMask uint64 = 0x007FFFBB

// sstatusMask selects the mstatus fields visible through sstatus.
const sstatusMask uint64 = MstatusSD | MstatusUXL | MstatusMXR | MstatusSUM |
	MstatusXS | MstatusFS | MstatusVS | MstatusSPP | MstatusSPIE |
	MstatusUPIE | MstatusSIE | MstatusUIE

// sstatusLiftMask is the subset of sstatus fields that a write through
// sstatus may change; SD and UXL are recomputed rather than copied.
const sstatusLiftMask uint64 = MstatusMXR | MstatusSUM | MstatusXS |
	MstatusFS | MstatusVS | MstatusSPP | MstatusSPIE | MstatusUPIE |
	MstatusSIE | MstatusUIE

// extDirty is the "Dirty" encoding of the FS/XS/VS two-bit status fields.
const extDirty = 0b11

// misa extension bits.
const (
	MisaC uint64 = 1 << 2
	MisaN uint64 = 1 << 13
	MisaS uint64 = 1 << 18
	MisaU uint64 = 1 << 20

	misaMXLShift        = 62
	misaMXL64    uint64 = 2 << misaMXLShift // MXL = 64-bit

)

// Interrupt bit groups in mip/mie/mideleg/sideleg.
const (
	machineInterrupts    uint64 = 1<<IntMachineSoftware | 1<<IntMachineTimer | 1<<IntMachineExternal
	supervisorInterrupts uint64 = 1<<IntSupervisorSoftware | 1<<IntSupervisorTimer | 1<<IntSupervisorExternal
	userInterrupts       uint64 = 1<<IntUserSoftware | 1<<IntUserTimer | 1<<IntUserExternal
)

// tvec mode field values.
const (
	tvecModeMask   uint64 = 0b11
	tvecModeDirect uint64 = 0b00
	tvecModeVector uint64 = 0b01
)

// satp mode field values (RV64).
const (
	satpModeShift        = 60
	satpModeBare  uint64 = 0
	satpModeSv39  uint64 = 8
	satpModeSv48  uint64 = 9
)

// pmpaddr registers hold bits 55:2 of the physical address.
const pmpaddrMask uint64 = (1 << 54) - 1

// counteren/countinhibit bit assignments.
const (
	counterenCY uint64 = 1 << 0
	counterenTM uint64 = 1 << 1
	counterenIR uint64 = 1 << 2

	counterenMask    uint64 = counterenCY | counterenTM | counterenIR
	countinhibitMask uint64 = counterenCY | counterenIR
)

// menvcfg/senvcfg fields.
const (
	envcfgFIOM  uint64 = 1 << 0
	envcfgCBIE  uint64 = 0b11 << 4
	envcfgCBCFE uint64 = 1 << 6
	envcfgCBZE  uint64 = 1 << 7
	envcfgSTCE  uint64 = 1 << 63
)

// field extracts a two-bit field.
func field2(v uint64, shift int) uint64 {
	return (v >> shift) & 0b11
}

// setField2 replaces a two-bit field.
func setField2(v uint64, shift int, x uint64) uint64 {
	return v&^(0b11<<shift) | (x&0b11)<<shift
}

// lowerMstatus projects mstatus into its sstatus view. The two registers
// share a bit layout, so the lowering is a pure mask.
func lowerMstatus(mstatus uint64) uint64 {
	return mstatus & sstatusMask
}

// liftSstatus merges an sstatus write value into the full mstatus bit
// pattern. SD is recomputed from the merged dirty bits; UXL is left to
// the mstatus legalizer. Lifting then lowering is the identity on every
// visible field.
func liftSstatus(mstatus, v uint64) uint64 {
	m := mstatus&^sstatusLiftMask | v&sstatusLiftMask
	return recomputeSD(m)
}

// recomputeSD sets SD to the OR of the FS/XS/VS dirty states.
func recomputeSD(m uint64) uint64 {
	dirty := field2(m, mstatusFSShift) == extDirty ||
		field2(m, mstatusXSShift) == extDirty ||
		field2(m, mstatusVSShift) == extDirty
	if dirty {
		return m | MstatusSD
	}
	return m &^ MstatusSD
}
