package virt

// ExceptionDelegatee resolves the privilege mode that handles exception
// e when it occurs at privilege p. Delegation walks medeleg and, with
// both S-mode and the N extension, sedeleg, but a trap never lands in a
// mode less privileged than the one it occurred in.
func (c *Context) ExceptionDelegatee(e ExceptionType, p PrivilegeLevel) PrivilegeLevel {
	target := PrivMachine
	if c.csr.medeleg&e.Bit() != 0 {
		switch {
		case c.cfg.HasSupervisor:
			target = PrivSupervisor
			if c.cfg.HasNExt && c.csr.sedeleg&e.Bit() != 0 {
				target = PrivUser
			}
		case c.cfg.HasNExt:
			target = PrivUser
		}
	}
	if target < p {
		target = p
	}
	return target
}

// tvecHandler computes the handler address selected by a tvec register
// for the given cause. Vectored mode offsets interrupts by four bytes
// per cause code; exceptions always use the base.
func tvecHandler(tvec uint64, cause TrapCause) uint64 {
	base := tvec &^ tvecModeMask
	if tvec&tvecModeMask == tvecModeVector && cause.IsInterrupt {
		return base + 4*uint64(cause.Code)
	}
	return base
}

// deliver commits a trap to the target mode's trap CSRs, switches
// privilege, and returns the handler address. The previous interrupt
// enable is stacked into xPIE and xPP records the interrupted mode.
func (c *Context) deliver(target PrivilegeLevel, cause TrapCause, pc, tval uint64) uint64 {
	var handler uint64
	switch target {
	case PrivMachine:
		m := c.csr.mstatus &^ MstatusMPIE
		if m&MstatusMIE != 0 {
			m |= MstatusMPIE
		}
		m &^= MstatusMIE
		m = setField2(m, mstatusMPPShift, uint64(c.mode))
		c.csr.mstatus = m
		c.csr.mcause = cause.Bits()
		c.csr.mepc = pc
		c.csr.mtval = tval
		handler = tvecHandler(c.csr.mtvec, cause)
	case PrivSupervisor:
		m := c.csr.mstatus &^ (MstatusSPIE | MstatusSPP)
		if m&MstatusSIE != 0 {
			m |= MstatusSPIE
		}
		m &^= MstatusSIE
		if c.mode == PrivSupervisor {
			m |= MstatusSPP
		}
		c.csr.mstatus = m
		c.csr.scause = cause.Bits()
		c.csr.sepc = pc
		c.csr.stval = tval
		handler = tvecHandler(c.csr.stvec, cause)
	default:
		m := c.csr.mstatus &^ MstatusUPIE
		if m&MstatusUIE != 0 {
			m |= MstatusUPIE
		}
		m &^= MstatusUIE
		c.csr.mstatus = m
		c.csr.ucause = cause.Bits()
		c.csr.uepc = pc
		c.csr.utval = tval
		handler = tvecHandler(c.csr.utvec, cause)
	}

	c.mode = target
	c.reservation = false
	c.TrapCounts[cause.Bits()]++
	return handler
}

// TakeException delivers a synchronous exception that occurred at pc
// with the given trap value, and returns the handler address.
func (c *Context) TakeException(e ExceptionType, pc, tval uint64) uint64 {
	return c.deliver(c.ExceptionDelegatee(e, c.mode), ExceptionCause(e), pc, tval)
}

// TakeInterrupt delivers interrupt i to the delegatee mode resolved by
// PendingInterrupt, and returns the handler address. The trap value is
// always zero for interrupts.
func (c *Context) TakeInterrupt(i InterruptType, del PrivilegeLevel, pc uint64) uint64 {
	return c.deliver(del, InterruptCause(i), pc, 0)
}

// MRet executes a machine-mode trap return. It restores MIE from MPIE,
// pops MPP, and returns the resume address from mepc. Executing it
// below Machine mode is an illegal instruction.
func (c *Context) MRet() (uint64, error) {
	if c.mode != PrivMachine {
		return 0, ErrIllegalInstruction
	}

	prev := PrivilegeLevel(field2(c.csr.mstatus, mstatusMPPShift))
	m := c.csr.mstatus &^ MstatusMIE
	if m&MstatusMPIE != 0 {
		m |= MstatusMIE
	}
	m |= MstatusMPIE
	m = setField2(m, mstatusMPPShift, uint64(c.cfg.lowestPrivilege()))
	if prev != PrivMachine {
		m &^= MstatusMPRV
	}
	c.csr.mstatus = m

	c.mode = prev
	c.reservation = false
	return c.csr.mepc & c.pcAlignmentMask(), nil
}

// SRet executes a supervisor trap return. It is illegal without S-mode
// support, from User mode, and from Supervisor mode when mstatus.TSR is
// set.
func (c *Context) SRet() (uint64, error) {
	if !c.cfg.HasSupervisor || c.mode == PrivUser {
		return 0, ErrIllegalInstruction
	}
	if c.mode == PrivSupervisor && c.csr.mstatus&MstatusTSR != 0 {
		return 0, ErrIllegalInstruction
	}

	// Without User mode SPP can only encode Supervisor, and the
	// post-return SPP resets to the least privileged supported mode,
	// which is then Supervisor as well.
	prev := PrivUser
	if !c.cfg.HasUser || c.csr.mstatus&MstatusSPP != 0 {
		prev = PrivSupervisor
	}
	m := c.csr.mstatus &^ MstatusSIE
	if m&MstatusSPIE != 0 {
		m |= MstatusSIE
	}
	m |= MstatusSPIE
	if c.cfg.HasUser {
		m &^= MstatusSPP
	} else {
		m |= MstatusSPP
	}
	m &^= MstatusMPRV
	c.csr.mstatus = m

	c.mode = prev
	c.reservation = false
	return c.csr.sepc & c.pcAlignmentMask(), nil
}

// URet executes a user trap return. It exists only with the N
// extension.
func (c *Context) URet() (uint64, error) {
	if !c.cfg.HasNExt {
		return 0, ErrIllegalInstruction
	}

	m := c.csr.mstatus &^ MstatusUIE
	if m&MstatusUPIE != 0 {
		m |= MstatusUIE
	}
	m |= MstatusUPIE
	m &^= MstatusMPRV
	c.csr.mstatus = m

	c.mode = PrivUser
	c.reservation = false
	return c.csr.uepc & c.pcAlignmentMask(), nil
}
