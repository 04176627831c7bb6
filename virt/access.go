package virt

import "errors"

// ErrIllegalInstruction is returned by the privileged operations when
// the attempt must raise an illegal-instruction exception in the guest.
var ErrIllegalInstruction = errors.New("illegal instruction")

// csrDefined reports whether the register exists at all under this
// hart's feature configuration. Undefined registers trap on any access.
func (c *Context) csrDefined(id CSR) bool {
	switch id {
	case CSRMstatus, CSRMisa, CSRMie, CSRMip, CSRMtvec, CSRMscratch,
		CSRMepc, CSRMcause, CSRMtval, CSRMseccfg, CSRMcycle, CSRMinstret,
		CSRMcountinhibit, CSRMvendorid, CSRMarchid, CSRMimpid, CSRMhartid,
		CSRMconfigptr:
		return true
	case CSRMideleg, CSRMedeleg:
		// Delegation registers exist only when there is somewhere to
		// delegate to.
		return c.cfg.HasSupervisor || c.cfg.HasNExt
	case CSRMcounteren, CSRMenvcfg:
		return c.cfg.HasUser
	case CSRSstatus, CSRSie, CSRSip, CSRStvec, CSRSscratch, CSRSepc,
		CSRScause, CSRStval, CSRSatp, CSRScounteren, CSRSenvcfg:
		return c.cfg.HasSupervisor
	case CSRSedeleg, CSRSideleg:
		return c.cfg.HasSupervisor && c.cfg.HasNExt
	case CSRUstatus, CSRUie, CSRUtvec, CSRUscratch, CSRUepc, CSRUcause,
		CSRUtval, CSRUip:
		return c.cfg.HasNExt
	case CSRCycle, CSRTime, CSRInstret:
		return c.cfg.HasUser
	}

	if idx, ok := id.PmpcfgIndex(); ok {
		// RV64 packs eight entries per register, so only even-indexed
		// pmpcfg registers exist.
		return idx%2 == 0 && idx*4 < c.cfg.PMPCount
	}
	if idx, ok := id.PmpaddrIndex(); ok {
		return idx < c.cfg.PMPCount
	}
	if n, ok := id.MhpmcounterIndex(); ok {
		return n-3 < c.cfg.HPMCount
	}
	if n, ok := id.MhpmeventIndex(); ok {
		return n-3 < c.cfg.HPMCount
	}
	if n, ok := id.HpmcounterIndex(); ok {
		return c.cfg.HasUser && n-3 < c.cfg.HPMCount
	}
	return false
}

// counterPermitted applies the mcounteren/scounteren gates to a
// user-level counter read at privilege p.
func (c *Context) counterPermitted(bit uint64, p PrivilegeLevel) bool {
	switch p {
	case PrivMachine:
		return true
	case PrivSupervisor:
		return c.csr.mcounteren&bit != 0
	default:
		if c.csr.mcounteren&bit == 0 {
			return false
		}
		if c.cfg.HasSupervisor {
			return c.csr.scounteren&bit != 0
		}
		return true
	}
}

// CheckCSR reports whether an access to the register is legal at
// privilege p. A false result means the instruction raises an
// illegal-instruction exception: the register does not exist, the write
// targets a read-only register, the privilege is insufficient, the TVM
// trap intercepts satp, or a counter-enable gate is closed.
func (c *Context) CheckCSR(id CSR, p PrivilegeLevel, isWrite bool) bool {
	if !c.csrDefined(id) {
		return false
	}
	if isWrite && id.ReadOnly() {
		return false
	}
	if p < id.MinPrivilege() {
		return false
	}
	if id == CSRSatp && p == PrivSupervisor && c.csr.mstatus&MstatusTVM != 0 {
		return false
	}

	switch id {
	case CSRCycle:
		return c.counterPermitted(counterenCY, p)
	case CSRTime:
		return c.counterPermitted(counterenTM, p)
	case CSRInstret:
		return c.counterPermitted(counterenIR, p)
	}
	if n, ok := id.HpmcounterIndex(); ok {
		return c.counterPermitted(1<<n, p)
	}
	return true
}
