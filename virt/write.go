package virt

// WriteCSR commits a value to a virtual CSR, routing it through the
// legalizers so the stored state never holds an illegal bit pattern.
// Access control is the caller's concern (CheckCSR); writes to read-only
// or absent registers are silently dropped, matching what the hardware
// does once the access check has passed.
func (c *Context) WriteCSR(id CSR, v uint64) {
	if id.ReadOnly() {
		return
	}

	switch id {
	case CSRMstatus:
		c.csr.mstatus = legalizeMstatus(c.cfg, c.csr.mstatus, v)
	case CSRMisa:
		// misa is WARL and this implementation fixes it at reset.
	case CSRMie:
		c.csr.mie = legalizeMie(c.cfg, c.csr.mie, v)
	case CSRMip:
		c.csr.mip = legalizeMip(c.cfg, c.csr.mip, v)
	case CSRMideleg:
		c.csr.mideleg = legalizeMideleg(c.cfg, v)
	case CSRMedeleg:
		c.csr.medeleg = legalizeMedeleg(v)
	case CSRMtvec:
		c.csr.mtvec = legalizeTvec(c.csr.mtvec, v)
	case CSRMscratch:
		c.csr.mscratch = v
	case CSRMepc:
		c.csr.mepc = legalizeEpc(c.cfg, c.csr.mepc, v)
	case CSRMcause:
		c.csr.mcause = v
	case CSRMtval:
		c.csr.mtval = v
	case CSRMseccfg:
		// No ePMP support; the register reads as zero.
	case CSRMcycle:
		c.csr.mcycle = v
	case CSRMinstret:
		c.csr.minstret = v
	case CSRMcounteren:
		c.csr.mcounteren = legalizeCounteren(c.cfg, v)
	case CSRScounteren:
		c.csr.scounteren = legalizeCounteren(c.cfg, v)
	case CSRMcountinhibit:
		c.csr.mcountinhibit = legalizeCountinhibit(v)
	case CSRMenvcfg:
		c.csr.menvcfg = legalizeMenvcfg(c.cfg, v)
	case CSRSenvcfg:
		c.csr.senvcfg = legalizeSenvcfg(c.cfg, v)

	case CSRSstatus:
		c.csr.mstatus = legalizeSstatus(c.cfg, c.csr.mstatus, v)
	case CSRSie:
		c.csr.mie = legalizeSie(c.cfg, c.csr.mie, c.csr.mideleg, v)
	case CSRSip:
		c.csr.mip = legalizeSip(c.cfg, c.csr.mip, c.csr.mideleg, v)
	case CSRSedeleg:
		c.csr.sedeleg = legalizeSedeleg(v)
	case CSRSideleg:
		c.csr.sideleg = legalizeSideleg(v)
	case CSRStvec:
		c.csr.stvec = legalizeTvec(c.csr.stvec, v)
	case CSRSscratch:
		c.csr.sscratch = v
	case CSRSepc:
		c.csr.sepc = legalizeEpc(c.cfg, c.csr.sepc, v)
	case CSRScause:
		c.csr.scause = v
	case CSRStval:
		c.csr.stval = v
	case CSRSatp:
		c.csr.satp = legalizeSatp(c.csr.satp, v)

	case CSRUstatus:
		mask := MstatusUIE | MstatusUPIE
		c.csr.mstatus = legalizeMstatus(c.cfg, c.csr.mstatus,
			c.csr.mstatus&^mask|v&mask)
	case CSRUie:
		mask := c.csr.sideleg & userInterrupts
		c.csr.mie = c.csr.mie&^mask | v&mask
	case CSRUip:
		mask := c.csr.sideleg & IntUserSoftware.Bit()
		c.csr.mip = c.csr.mip&^mask | v&mask
	case CSRUtvec:
		c.csr.utvec = legalizeTvec(c.csr.utvec, v)
	case CSRUscratch:
		c.csr.uscratch = v
	case CSRUepc:
		c.csr.uepc = legalizeEpc(c.cfg, c.csr.uepc, v)
	case CSRUcause:
		c.csr.ucause = v
	case CSRUtval:
		c.csr.utval = v

	default:
		c.writeIndexedCSR(id, v)
	}
}

func (c *Context) writeIndexedCSR(id CSR, v uint64) {
	if idx, ok := id.PmpcfgIndex(); ok {
		c.writePmpcfgReg(idx, v)
		return
	}
	if idx, ok := id.PmpaddrIndex(); ok {
		c.writePmpaddr(idx, v)
		return
	}
	if n, ok := id.MhpmcounterIndex(); ok {
		if n-3 < c.cfg.HPMCount {
			c.csr.mhpmcounter[n-3] = v
		}
		return
	}
	if n, ok := id.MhpmeventIndex(); ok {
		if n-3 < c.cfg.HPMCount {
			c.csr.mhpmevent[n-3] = v
		}
		return
	}
}
