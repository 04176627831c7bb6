package virt

// Legalization: every function in this file maps (previous value, raw
// write) to the value actually committed, forcing illegal bit patterns
// to their architecturally-fixed results. These functions are pure and
// are the only place the corresponding bit invariants are enforced;
// WriteCSR routes every store through them.

// legalizeMstatus sanitizes a raw mstatus write.
func legalizeMstatus(cfg Config, old, v uint64) uint64 {
	m := v & mstatusWriteMask

	// MPP must encode a supported privilege mode.
	if !cfg.havePrivilege(field2(m, mstatusMPPShift)) {
		m = setField2(m, mstatusMPPShift, uint64(cfg.lowestPrivilege()))
	}

	// No extension state beyond F/V is implemented: XS is read-only Off.
	m = setField2(m, mstatusXSShift, 0)

	// F and Zfinx are mutually exclusive; with Zfinx the FS field is
	// hardwired Off.
	if cfg.HasZfinx {
		m = setField2(m, mstatusFSShift, 0)
	}

	// Without S-mode the supervisor-visible fields do not exist.
	if !cfg.HasSupervisor {
		m &^= MstatusTVM | MstatusTSR | MstatusMXR | MstatusSUM |
			MstatusSPP | MstatusSPIE | MstatusSIE
	}

	// User-level interrupt bits exist only with the N extension.
	if !cfg.HasNExt {
		m &^= MstatusUPIE | MstatusUIE
	}

	// MPRV is meaningless without a less-privileged mode.
	if !cfg.HasUser {
		m &^= MstatusMPRV
	}

	// SXL/UXL are immutable on a fixed-width build.
	m = setField2(m, mstatusSXLShift, field2(old, mstatusSXLShift))
	m = setField2(m, mstatusUXLShift, field2(old, mstatusUXLShift))

	return recomputeSD(m)
}

// legalizeSstatus sanitizes a write through the sstatus view by lifting
// it into mstatus and legalizing the result.
func legalizeSstatus(cfg Config, mstatus, v uint64) uint64 {
	return legalizeMstatus(cfg, mstatus, liftSstatus(mstatus, v))
}

// legalizeTvec accepts a new tvec value only if its mode field decodes
// to Direct or Vector; a reserved mode keeps the previous mode while
// still accepting the base address.
func legalizeTvec(old, v uint64) uint64 {
	switch v & tvecModeMask {
	case tvecModeDirect, tvecModeVector:
		return v
	default:
		return v&^tvecModeMask | old&tvecModeMask
	}
}

// legalizeMideleg masks the delegation register to delegatable
// interrupts: machine-level interrupts can never leave Machine mode, and
// user-level bits exist only with the N extension.
func legalizeMideleg(cfg Config, v uint64) uint64 {
	mask := supervisorInterrupts
	if cfg.HasUser && cfg.HasNExt {
		mask |= userInterrupts
	}
	return v & mask
}

// legalizeMedeleg clears the environment-call-from-M bit: an M-mode
// ecall always traps to Machine.
func legalizeMedeleg(v uint64) uint64 {
	return v &^ ExcEnvCallFromMachine.Bit()
}

// legalizeSedeleg keeps the low nine exception codes, the only ones a
// supervisor may pass down to user level.
func legalizeSedeleg(v uint64) uint64 {
	return v & 0x1FF
}

// legalizeSideleg masks to the user-level interrupt bits.
func legalizeSideleg(v uint64) uint64 {
	return v & userInterrupts
}

// legalizeMie merges a raw mie write over the previous value, touching
// only the interrupt-enable bits visible at this configuration.
func legalizeMie(cfg Config, old, v uint64) uint64 {
	mask := machineInterrupts | supervisorInterrupts
	if cfg.HasUser && cfg.HasNExt {
		mask |= userInterrupts
	}
	return old&^mask | v&mask
}

// legalizeMip merges a raw mip write. The machine-level pending bits are
// read-only through this path (they are driven by the interrupt
// controller and timer), so only supervisor and, with N, user bits move.
func legalizeMip(cfg Config, old, v uint64) uint64 {
	mask := supervisorInterrupts
	if cfg.HasUser && cfg.HasNExt {
		mask |= userInterrupts
	}
	return old&^mask | v&mask
}

// legalizeSie merges a write through the sie alias: only bits delegated
// by mideleg are writable.
func legalizeSie(cfg Config, oldMie, mideleg, v uint64) uint64 {
	mask := mideleg & supervisorInterrupts
	if cfg.HasNExt {
		mask |= mideleg & userInterrupts
	}
	return oldMie&^mask | v&mask
}

// legalizeSip merges a write through the sip alias. Only the
// software-interrupt pending bits are writable from supervisor level,
// and only when delegated.
func legalizeSip(cfg Config, oldMip, mideleg, v uint64) uint64 {
	mask := mideleg & IntSupervisorSoftware.Bit()
	if cfg.HasNExt {
		mask |= mideleg & IntUserSoftware.Bit()
	}
	return oldMip&^mask | v&mask
}

// legalizeSatp accepts the write only if the mode field names a legal
// RV64 translation mode (Bare, Sv39, Sv48); otherwise the whole write is
// dropped and the old value kept.
func legalizeSatp(old, v uint64) uint64 {
	switch v >> satpModeShift & 0b1111 {
	case satpModeBare, satpModeSv39, satpModeSv48:
		return v
	default:
		return old
	}
}

// legalizeEpc aligns an exception PC: bit 0 always clears, bit 1 too
// unless compressed instructions are implemented. Writes beyond the
// platform's highest valid address are ignored.
func legalizeEpc(cfg Config, old, v uint64) uint64 {
	if cfg.MaxAddress != 0 && v > cfg.MaxAddress {
		return old
	}
	if cfg.HasCompressed {
		return v &^ 1
	}
	return v &^ 0b11
}

// legalizeCounteren keeps the cycle/time/instret enables plus the bits
// for implemented hpm counters.
func legalizeCounteren(cfg Config, v uint64) uint64 {
	mask := counterenMask
	if cfg.HPMCount > 0 {
		mask |= ((1 << cfg.HPMCount) - 1) << 3
	}
	return v & mask
}

// legalizeCountinhibit keeps the CY and IR inhibit bits; TM has no
// inhibit by construction.
func legalizeCountinhibit(v uint64) uint64 {
	return v & countinhibitMask
}

// legalizeMenvcfg masks the machine environment-configuration register
// to the fields backed by implemented extensions.
func legalizeMenvcfg(cfg Config, v uint64) uint64 {
	mask := envcfgFIOM
	if cfg.HasSstc {
		mask |= envcfgSTCE
	}
	if cfg.HasZicbom {
		mask |= envcfgCBIE | envcfgCBCFE
	}
	if cfg.HasZicboz {
		mask |= envcfgCBZE
	}
	return v & mask
}

// legalizeSenvcfg is legalizeMenvcfg without the machine-only STCE bit.
func legalizeSenvcfg(cfg Config, v uint64) uint64 {
	mask := envcfgFIOM
	if cfg.HasZicbom {
		mask |= envcfgCBIE | envcfgCBCFE
	}
	if cfg.HasZicboz {
		mask |= envcfgCBZE
	}
	return v & mask
}
