package virt

// NumPMPEntries is the architectural maximum number of PMP entries.
const NumPMPEntries = 64

// Config describes the feature surface exposed to the virtualized
// firmware. It is fixed for the lifetime of a Context.
type Config struct {
	// HasSupervisor enables S-mode and the supervisor CSRs.
	HasSupervisor bool
	// HasUser enables U-mode and the user counter shadows.
	HasUser bool
	// HasNExt enables user-level interrupts (the N extension) and with
	// them sedeleg/sideleg, uret, and the user trap CSRs.
	HasNExt bool
	// HasCompressed enables 16-bit instruction alignment (the C
	// extension), which relaxes the epc alignment mask.
	HasCompressed bool

	// HasSstc, HasZicbom, HasZicboz, and HasZfinx gate the corresponding
	// menvcfg/senvcfg and mstatus fields.
	HasSstc   bool
	HasZicbom bool
	HasZicboz bool
	HasZfinx  bool

	// PMPCount is the number of implemented PMP entries (0..64).
	PMPCount int
	// PMPGrain is the log2 of the PMP granularity minus 2 (G); a grain
	// of 0 means 4-byte granularity and permits NA4 entries.
	PMPGrain int
	// HPMCount is the number of implemented hardware performance
	// counters beyond cycle/time/instret (0..29).
	HPMCount int

	// MaxAddress, when nonzero, is the highest valid physical address;
	// epc writes above it are ignored.
	MaxAddress uint64

	// Vendor identity reported by the read-only information registers.
	VendorID uint64
	ArchID   uint64
	ImpID    uint64
}

// lowestPrivilege returns the least privileged mode the configuration
// supports; xRET lands MPP here after a machine return.
func (c Config) lowestPrivilege() PrivilegeLevel {
	switch {
	case c.HasUser:
		return PrivUser
	case c.HasSupervisor:
		return PrivSupervisor
	default:
		return PrivMachine
	}
}

// havePrivilege reports whether the two-bit encoding names a supported
// privilege mode.
func (c Config) havePrivilege(bits uint64) bool {
	switch PrivilegeLevel(bits) {
	case PrivMachine:
		return true
	case PrivSupervisor:
		return c.HasSupervisor
	case PrivUser:
		return c.HasUser
	default:
		return false
	}
}

// csrFile is the backing storage of the virtual CSR register file. It is
// mutated only through the legalizing setters on Context.
type csrFile struct {
	mstatus  uint64
	misa     uint64
	mie      uint64
	mip      uint64
	mideleg  uint64
	medeleg  uint64
	sedeleg  uint64
	sideleg  uint64
	mtvec    uint64
	stvec    uint64
	utvec    uint64
	mscratch uint64
	sscratch uint64
	uscratch uint64
	mepc     uint64
	sepc     uint64
	uepc     uint64
	mcause   uint64
	scause   uint64
	ucause   uint64
	mtval    uint64
	stval    uint64
	utval    uint64
	satp     uint64
	mseccfg  uint64

	mcycle        uint64
	minstret      uint64
	mcounteren    uint64
	scounteren    uint64
	mcountinhibit uint64
	menvcfg       uint64
	senvcfg       uint64

	mhpmcounter [numHpmCounters]uint64
	mhpmevent   [numHpmCounters]uint64

	pmpcfg  [NumPMPEntries]uint8
	pmpaddr [NumPMPEntries]uint64
}

// Context is the privileged state of one virtual hart: its CSR register
// file, current privilege, program counter, and virtual timer. One
// Context is created per hart at monitor boot and owned by a single
// goroutine; cross-hart interaction goes through SetInterruptPending.
type Context struct {
	cfg    Config
	hartID uint64

	csr  csrFile
	mode PrivilegeLevel

	// PC is the virtual program counter, maintained by the dispatcher.
	PC uint64
	// IntRegs are the general-purpose registers. Index 0 is hardwired
	// to zero by the dispatcher.
	IntRegs [32]uint64

	// Virtual CLINT timer, fast-forwarded by WFI.
	Mtime    uint64
	Mtimecmp uint64

	// reservation tracks an outstanding LR/SC reservation; traps and
	// xRETs cancel it.
	reservation bool

	// TrapCounts tallies delivered traps per cause value, for the
	// benchmark tooling.
	TrapCounts map[uint64]uint64
}

// NewContext creates the virtual privileged state of one hart with the
// architectural reset values: Machine mode, interrupts disabled, PMP
// entries off, and misa reflecting the configured extensions.
func NewContext(cfg Config, hartID uint64) *Context {
	if cfg.PMPCount < 0 || cfg.PMPCount > NumPMPEntries {
		panic("virt: PMP count out of range")
	}
	if cfg.HPMCount < 0 || cfg.HPMCount > numHpmCounters {
		panic("virt: HPM count out of range")
	}

	c := &Context{
		cfg:        cfg,
		hartID:     hartID,
		mode:       PrivMachine,
		TrapCounts: make(map[uint64]uint64),
	}

	misa := misaMXL64
	if cfg.HasSupervisor {
		misa |= MisaS
	}
	if cfg.HasUser {
		misa |= MisaU
	}
	if cfg.HasNExt {
		misa |= MisaN
	}
	if cfg.HasCompressed {
		misa |= MisaC
	}
	c.csr.misa = misa

	// SXL/UXL are immutable on a fixed-width build; seed them so the
	// legalizer always reads back 64-bit.
	mstatus := uint64(2) << mstatusUXLShift
	if cfg.HasSupervisor {
		mstatus |= uint64(2) << mstatusSXLShift
	}
	c.csr.mstatus = mstatus

	return c
}

// HartID returns the hart identifier reported through mhartid.
func (c *Context) HartID() uint64 { return c.hartID }

// Config returns the feature configuration of the hart.
func (c *Context) Config() Config { return c.cfg }

// Privilege returns the hart's current privilege level.
func (c *Context) Privilege() PrivilegeLevel { return c.mode }

// SetPrivilege forces the current privilege level. Intended for test
// harnesses; normal transitions go through Trap and the xRET operations.
func (c *Context) SetPrivilege(p PrivilegeLevel) { c.mode = p }

// CancelReservation drops any outstanding atomic memory reservation.
func (c *Context) CancelReservation() { c.reservation = false }

// SetReservation marks an outstanding LR reservation.
func (c *Context) SetReservation() { c.reservation = true }

// HasReservation reports whether a reservation is outstanding.
func (c *Context) HasReservation() bool { return c.reservation }

// pcAlignmentMask is the mask applied to epc values on xRET: bit 0 is
// always cleared, bit 1 only when compressed instructions are absent.
func (c *Context) pcAlignmentMask() uint64 {
	if c.cfg.HasCompressed {
		return ^uint64(1)
	}
	return ^uint64(0b11)
}

// visibleInterrupts is the set of interrupt bits that exist under the
// current feature configuration.
func (c *Context) visibleInterrupts() uint64 {
	bits := machineInterrupts
	if c.cfg.HasSupervisor {
		bits |= supervisorInterrupts
	}
	if c.cfg.HasUser && c.cfg.HasNExt {
		bits |= userInterrupts
	}
	return bits
}

// ReadCSR returns the virtual value of a CSR. Access control is the
// caller's concern (CheckCSR); reads of indexed registers beyond the
// configured counts return zero the way the hardware's absent registers
// do. sstatus, sie, sip, and the user trap aliases are masked
// projections of their machine-level registers, never separate storage.
func (c *Context) ReadCSR(id CSR) uint64 {
	switch id {
	case CSRMstatus:
		return c.csr.mstatus
	case CSRMisa:
		return c.csr.misa
	case CSRMie:
		return c.csr.mie
	case CSRMip:
		return c.csr.mip
	case CSRMideleg:
		return c.csr.mideleg
	case CSRMedeleg:
		return c.csr.medeleg
	case CSRMtvec:
		return c.csr.mtvec
	case CSRMscratch:
		return c.csr.mscratch
	case CSRMepc:
		return c.csr.mepc & c.pcAlignmentMask()
	case CSRMcause:
		return c.csr.mcause
	case CSRMtval:
		return c.csr.mtval
	case CSRMseccfg:
		return c.csr.mseccfg
	case CSRMcycle, CSRCycle:
		return c.csr.mcycle
	case CSRMinstret, CSRInstret:
		return c.csr.minstret
	case CSRTime:
		return c.Mtime
	case CSRMcounteren:
		return c.csr.mcounteren
	case CSRScounteren:
		return c.csr.scounteren
	case CSRMcountinhibit:
		return c.csr.mcountinhibit
	case CSRMenvcfg:
		return c.csr.menvcfg
	case CSRSenvcfg:
		return c.csr.senvcfg
	case CSRMvendorid:
		return c.cfg.VendorID
	case CSRMarchid:
		return c.cfg.ArchID
	case CSRMimpid:
		return c.cfg.ImpID
	case CSRMhartid:
		return c.hartID
	case CSRMconfigptr:
		return 0

	case CSRSstatus:
		return lowerMstatus(c.csr.mstatus)
	case CSRSie:
		return c.csr.mie & c.csr.mideleg & (supervisorInterrupts | userInterrupts)
	case CSRSip:
		return c.csr.mip & c.csr.mideleg & (supervisorInterrupts | userInterrupts)
	case CSRSedeleg:
		return c.csr.sedeleg
	case CSRSideleg:
		return c.csr.sideleg
	case CSRStvec:
		return c.csr.stvec
	case CSRSscratch:
		return c.csr.sscratch
	case CSRSepc:
		return c.csr.sepc & c.pcAlignmentMask()
	case CSRScause:
		return c.csr.scause
	case CSRStval:
		return c.csr.stval
	case CSRSatp:
		return c.csr.satp

	case CSRUstatus:
		return c.csr.mstatus & (MstatusUIE | MstatusUPIE)
	case CSRUie:
		return c.csr.mie & c.csr.sideleg & userInterrupts
	case CSRUip:
		return c.csr.mip & c.csr.sideleg & userInterrupts
	case CSRUtvec:
		return c.csr.utvec
	case CSRUscratch:
		return c.csr.uscratch
	case CSRUepc:
		return c.csr.uepc & c.pcAlignmentMask()
	case CSRUcause:
		return c.csr.ucause
	case CSRUtval:
		return c.csr.utval
	}

	if idx, ok := id.PmpcfgIndex(); ok {
		return c.readPmpcfgReg(idx)
	}
	if idx, ok := id.PmpaddrIndex(); ok {
		return c.readPmpaddrCSR(idx)
	}
	if n, ok := id.MhpmcounterIndex(); ok {
		return c.csr.mhpmcounter[n-3]
	}
	if n, ok := id.MhpmeventIndex(); ok {
		return c.csr.mhpmevent[n-3]
	}
	if n, ok := id.HpmcounterIndex(); ok {
		return c.csr.mhpmcounter[n-3]
	}

	// Unknown CSRs read as zero; access control has already rejected
	// anything reachable from the guest.
	return 0
}
