package virt

// CSR identifies a control/status register by its 12-bit address. The
// address encodes the required privilege (bits 9:8) and the access type
// (bits 11:10, 0b11 meaning read-only).
type CSR uint16

// CSR addresses handled by the engine.
const (
	// User trap setup and handling (N extension).
	CSRUstatus  CSR = 0x000
	CSRUie      CSR = 0x004
	CSRUtvec    CSR = 0x005
	CSRUscratch CSR = 0x040
	CSRUepc     CSR = 0x041
	CSRUcause   CSR = 0x042
	CSRUtval    CSR = 0x043
	CSRUip      CSR = 0x044

	// Supervisor-level CSRs.
	CSRSstatus    CSR = 0x100
	CSRSedeleg    CSR = 0x102
	CSRSideleg    CSR = 0x103
	CSRSie        CSR = 0x104
	CSRStvec      CSR = 0x105
	CSRScounteren CSR = 0x106
	CSRSenvcfg    CSR = 0x10A
	CSRSscratch   CSR = 0x140
	CSRSepc       CSR = 0x141
	CSRScause     CSR = 0x142
	CSRStval      CSR = 0x143
	CSRSip        CSR = 0x144
	CSRSatp       CSR = 0x180

	// Machine-level CSRs.
	CSRMstatus       CSR = 0x300
	CSRMisa          CSR = 0x301
	CSRMedeleg       CSR = 0x302
	CSRMideleg       CSR = 0x303
	CSRMie           CSR = 0x304
	CSRMtvec         CSR = 0x305
	CSRMcounteren    CSR = 0x306
	CSRMenvcfg       CSR = 0x30A
	CSRMcountinhibit CSR = 0x320
	CSRMscratch      CSR = 0x340
	CSRMepc          CSR = 0x341
	CSRMcause        CSR = 0x342
	CSRMtval         CSR = 0x343
	CSRMip           CSR = 0x344
	CSRMseccfg       CSR = 0x747

	// Machine counters.
	CSRMcycle   CSR = 0xB00
	CSRMinstret CSR = 0xB02

	// User counters (read-only shadows).
	CSRCycle   CSR = 0xC00
	CSRTime    CSR = 0xC01
	CSRInstret CSR = 0xC02

	// Machine information registers (read-only).
	CSRMvendorid  CSR = 0xF11
	CSRMarchid    CSR = 0xF12
	CSRMimpid     CSR = 0xF13
	CSRMhartid    CSR = 0xF14
	CSRMconfigptr CSR = 0xF15
)

// Base addresses of the indexed CSR ranges.
const (
	csrPmpcfgBase      CSR = 0x3A0 // pmpcfg0..pmpcfg15
	csrPmpaddrBase     CSR = 0x3B0 // pmpaddr0..pmpaddr63
	csrMhpmcounterBase CSR = 0xB00 // mhpmcounter3..mhpmcounter31
	csrMhpmeventBase   CSR = 0x320 // mhpmevent3..mhpmevent31
	csrHpmcounterBase  CSR = 0xC00 // hpmcounter3..hpmcounter31

	numPmpcfgRegisters = 16
	numHpmCounters     = 29 // counters 3..31
)

// PmpcfgCSR returns the address of pmpcfg register i.
func PmpcfgCSR(i int) CSR { return csrPmpcfgBase + CSR(i) }

// PmpaddrCSR returns the address of pmpaddr register i.
func PmpaddrCSR(i int) CSR { return csrPmpaddrBase + CSR(i) }

// MinPrivilege returns the lowest privilege level allowed to access the
// CSR, as encoded in address bits 9:8.
func (c CSR) MinPrivilege() PrivilegeLevel {
	switch (c >> 8) & 0b11 {
	case 0b00:
		return PrivUser
	case 0b01:
		return PrivSupervisor
	default:
		return PrivMachine
	}
}

// ReadOnly reports whether the address encodes a read-only register
// (bits 11:10 == 0b11).
func (c CSR) ReadOnly() bool {
	return (c>>10)&0b11 == 0b11
}

// PmpcfgIndex resolves c as a pmpcfg register, returning its index.
func (c CSR) PmpcfgIndex() (int, bool) {
	if c >= csrPmpcfgBase && c < csrPmpcfgBase+numPmpcfgRegisters {
		return int(c - csrPmpcfgBase), true
	}
	return 0, false
}

// PmpaddrIndex resolves c as a pmpaddr register, returning its index.
func (c CSR) PmpaddrIndex() (int, bool) {
	if c >= csrPmpaddrBase && c < csrPmpaddrBase+NumPMPEntries {
		return int(c - csrPmpaddrBase), true
	}
	return 0, false
}

// MhpmcounterIndex resolves c as mhpmcounter3..31, returning the counter
// number (3-based).
func (c CSR) MhpmcounterIndex() (int, bool) {
	if c >= csrMhpmcounterBase+3 && c < csrMhpmcounterBase+3+numHpmCounters {
		return int(c - csrMhpmcounterBase), true
	}
	return 0, false
}

// MhpmeventIndex resolves c as mhpmevent3..31.
func (c CSR) MhpmeventIndex() (int, bool) {
	if c >= csrMhpmeventBase+3 && c < csrMhpmeventBase+3+numHpmCounters {
		return int(c - csrMhpmeventBase), true
	}
	return 0, false
}

// HpmcounterIndex resolves c as the user-level hpmcounter3..31 shadows.
func (c CSR) HpmcounterIndex() (int, bool) {
	if c >= csrHpmcounterBase+3 && c < csrHpmcounterBase+3+numHpmCounters {
		return int(c - csrHpmcounterBase), true
	}
	return 0, false
}
