package virt

// PMP entry configuration bits as packed in a pmpcfg byte.
const (
	pmpR uint8 = 1 << 0
	pmpW uint8 = 1 << 1
	pmpX uint8 = 1 << 2
	pmpL uint8 = 1 << 7

	pmpAShift      = 3
	pmpAMask uint8 = 0b11 << pmpAShift
)

// PMP address-matching modes, in the A field of a pmpcfg byte.
const (
	pmpOff uint8 = iota
	pmpTOR
	pmpNA4
	pmpNAPOT
)

// pmpcfgByteMask clears the two reserved bits of a pmpcfg byte.
const pmpcfgByteMask uint8 = 0x9F

func (c *Context) pmpEntryA(i int) uint8 {
	return (c.csr.pmpcfg[i] & pmpAMask) >> pmpAShift
}

// readPmpcfgReg assembles one 64-bit pmpcfg register from eight entry
// bytes. Odd register indexes do not exist on RV64 and read as zero.
func (c *Context) readPmpcfgReg(idx int) uint64 {
	if idx%2 != 0 {
		return 0
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(c.csr.pmpcfg[idx*4+i]) << (8 * i)
	}
	return v
}

// writePmpcfgReg commits one 64-bit pmpcfg write byte by byte. Locked
// entries and entries beyond the implemented count ignore their byte;
// the rest are legalized: reserved bits clear, W without R reads as no
// permissions, and NA4 falls back to OFF when the grain is coarser than
// four bytes.
func (c *Context) writePmpcfgReg(idx int, v uint64) {
	if idx%2 != 0 {
		return
	}
	for i := 0; i < 8; i++ {
		e := idx*4 + i
		if e >= c.cfg.PMPCount {
			return
		}
		if c.csr.pmpcfg[e]&pmpL != 0 {
			continue
		}
		b := uint8(v>>(8*i)) & pmpcfgByteMask
		if b&pmpW != 0 && b&pmpR == 0 {
			b &^= pmpR | pmpW | pmpX
		}
		if c.cfg.PMPGrain >= 1 && (b&pmpAMask)>>pmpAShift == pmpNA4 {
			b &^= pmpAMask
		}
		c.csr.pmpcfg[e] = b
	}
}

// readPmpaddrCSR returns one pmpaddr value with the grain-forced low
// bits applied: in NAPOT modes the low G-1 bits read as ones, otherwise
// the low G bits read as zeros.
func (c *Context) readPmpaddrCSR(idx int) uint64 {
	if idx >= c.cfg.PMPCount {
		return 0
	}
	addr := c.csr.pmpaddr[idx]
	g := c.cfg.PMPGrain
	if c.pmpEntryA(idx)&0b10 != 0 {
		if g >= 2 {
			addr |= 1<<(g-1) - 1
		}
	} else if g >= 1 {
		addr &^= 1<<g - 1
	}
	return addr
}

// writePmpaddr commits one pmpaddr write. The write is dropped when the
// entry is locked, or when the next entry is a locked TOR region whose
// lower bound this register forms.
func (c *Context) writePmpaddr(idx int, v uint64) {
	if idx >= c.cfg.PMPCount {
		return
	}
	if c.csr.pmpcfg[idx]&pmpL != 0 {
		return
	}
	if idx+1 < c.cfg.PMPCount &&
		c.csr.pmpcfg[idx+1]&pmpL != 0 && c.pmpEntryA(idx+1) == pmpTOR {
		return
	}
	c.csr.pmpaddr[idx] = v & pmpaddrMask
}

// pmpEntryRange computes the byte-address interval [lo, hi) guarded by
// entry i. Matching uses the grain-forced address values, so the region
// an entry guards is exactly the region its pmpaddr reads back. OFF
// entries guard nothing; a TOR entry with a bound at or below its
// predecessor is empty.
func (c *Context) pmpEntryRange(i int) (lo, hi uint64, active bool) {
	addr := c.readPmpaddrCSR(i)
	switch c.pmpEntryA(i) {
	case pmpOff:
		return 0, 0, false
	case pmpTOR:
		if i > 0 {
			lo = c.readPmpaddrCSR(i-1) << 2
		}
		hi = addr << 2
		return lo, hi, hi > lo
	case pmpNA4:
		lo = addr << 2
		return lo, lo + 4, true
	default: // NAPOT
		mask := addr ^ (addr + 1)
		lo = (addr &^ mask) << 2
		return lo, lo + (mask+1)<<2, true
	}
}

// pmpEntryPermits reports whether entry i's permission bits allow the
// access at privilege p. An unlocked entry does not bind Machine mode.
func (c *Context) pmpEntryPermits(i int, acc AccessType, p PrivilegeLevel) bool {
	cfg := c.csr.pmpcfg[i]
	if p == PrivMachine && cfg&pmpL == 0 {
		return true
	}
	switch acc {
	case AccessRead:
		return cfg&pmpR != 0
	case AccessWrite:
		return cfg&pmpW != 0
	case AccessReadWrite:
		return cfg&(pmpR|pmpW) == pmpR|pmpW
	case AccessExecute:
		return cfg&pmpX != 0
	default:
		return false
	}
}

// CheckPMP checks a physical access of width bytes at addr against the
// PMP entries in priority order (lowest index wins). An access that
// straddles a region boundary faults regardless of privilege. With no
// matching entry, Machine mode is allowed and everything else faults.
func (c *Context) CheckPMP(addr, width uint64, acc AccessType, p PrivilegeLevel) (ExceptionType, bool) {
	end := addr + width
	for i := 0; i < c.cfg.PMPCount; i++ {
		lo, hi, active := c.pmpEntryRange(i)
		if !active || end <= lo || addr >= hi {
			continue
		}
		if addr < lo || end > hi {
			return acc.Fault(), false
		}
		if c.pmpEntryPermits(i, acc, p) {
			return 0, true
		}
		return acc.Fault(), false
	}
	if p == PrivMachine {
		return 0, true
	}
	return acc.Fault(), false
}
