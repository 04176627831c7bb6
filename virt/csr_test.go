package virt_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hartlab/rvmon/virt"
)

func fullConfig() virt.Config {
	return virt.Config{
		HasSupervisor: true,
		HasUser:       true,
		HasNExt:       true,
		HasCompressed: true,
		PMPCount:      16,
		HPMCount:      4,
	}
}

var _ = Describe("CSR register file", func() {
	var c *virt.Context

	BeforeEach(func() {
		c = virt.NewContext(fullConfig(), 0)
	})

	Describe("mstatus legalization", func() {
		It("should absorb an all-ones write into a legal value", func() {
			c.WriteCSR(virt.CSRMstatus, ^uint64(0))

			// Reserved bits clear, XS hardwired off, UXL/SXL stay at
			// the 64-bit encoding, SD tracks the dirty FS/VS fields.
			Expect(c.ReadCSR(virt.CSRMstatus)).To(Equal(uint64(0x8000000A007E7FBB)))
		})

		It("should keep a legal MPP value", func() {
			c.WriteCSR(virt.CSRMstatus, uint64(0b01)<<11)

			Expect(c.ReadCSR(virt.CSRMstatus) & virt.MstatusMPP).
				To(Equal(uint64(0b01) << 11))
		})

		It("should force MPP to the lowest mode when unsupported", func() {
			mOnly := virt.NewContext(virt.Config{}, 0)

			mOnly.WriteCSR(virt.CSRMstatus, uint64(0b01)<<11)

			Expect(mOnly.ReadCSR(virt.CSRMstatus) & virt.MstatusMPP).
				To(Equal(virt.MstatusMPP))
		})

		It("should clear supervisor fields on a machine-only hart", func() {
			mOnly := virt.NewContext(virt.Config{}, 0)

			mOnly.WriteCSR(virt.CSRMstatus,
				virt.MstatusTVM|virt.MstatusTSR|virt.MstatusSUM|
					virt.MstatusSIE|virt.MstatusMPRV)

			v := mOnly.ReadCSR(virt.CSRMstatus)
			Expect(v & (virt.MstatusTVM | virt.MstatusTSR | virt.MstatusSUM |
				virt.MstatusSIE | virt.MstatusMPRV)).To(Equal(uint64(0)))
		})

		It("should be idempotent on its own output", func() {
			c.WriteCSR(virt.CSRMstatus, 0xDEADBEEFDEADBEEF)
			once := c.ReadCSR(virt.CSRMstatus)

			c.WriteCSR(virt.CSRMstatus, once)

			Expect(c.ReadCSR(virt.CSRMstatus)).To(Equal(once))
		})
	})

	Describe("sstatus projection", func() {
		It("should round-trip the supervisor-visible fields", func() {
			c.WriteCSR(virt.CSRSstatus,
				virt.MstatusSUM|virt.MstatusSPIE|virt.MstatusSIE)

			v := c.ReadCSR(virt.CSRSstatus)
			Expect(v & (virt.MstatusSUM | virt.MstatusSPIE | virt.MstatusSIE)).
				To(Equal(virt.MstatusSUM | virt.MstatusSPIE | virt.MstatusSIE))
		})

		It("should not let sstatus writes reach machine-only fields", func() {
			c.WriteCSR(virt.CSRSstatus, virt.MstatusMIE|virt.MstatusTSR)

			Expect(c.ReadCSR(virt.CSRMstatus) &
				(virt.MstatusMIE | virt.MstatusTSR)).To(Equal(uint64(0)))
		})

		It("should reflect mstatus changes immediately", func() {
			c.WriteCSR(virt.CSRMstatus, virt.MstatusSUM)

			Expect(c.ReadCSR(virt.CSRSstatus) & virt.MstatusSUM).
				To(Equal(virt.MstatusSUM))
		})

		It("should set SD when a write through sstatus dirties FS", func() {
			c.WriteCSR(virt.CSRSstatus, virt.MstatusFS)

			Expect(c.ReadCSR(virt.CSRSstatus) & virt.MstatusSD).
				To(Equal(virt.MstatusSD))
		})
	})

	Describe("delegation registers", func() {
		It("should mask mideleg to delegatable interrupts", func() {
			c.WriteCSR(virt.CSRMideleg, ^uint64(0))

			Expect(c.ReadCSR(virt.CSRMideleg)).To(Equal(uint64(0x333)))
		})

		It("should never delegate machine ecalls", func() {
			c.WriteCSR(virt.CSRMedeleg, ^uint64(0))

			Expect(c.ReadCSR(virt.CSRMedeleg) & (1 << 11)).To(Equal(uint64(0)))
		})

		It("should mask sedeleg to the low nine exceptions", func() {
			c.WriteCSR(virt.CSRSedeleg, ^uint64(0))

			Expect(c.ReadCSR(virt.CSRSedeleg)).To(Equal(uint64(0x1FF)))
		})

		It("should mask sideleg to user-level interrupts", func() {
			c.WriteCSR(virt.CSRSideleg, ^uint64(0))

			Expect(c.ReadCSR(virt.CSRSideleg)).To(Equal(uint64(0x111)))
		})
	})

	Describe("interrupt enable and pending registers", func() {
		It("should keep only implemented bits of mie", func() {
			c.WriteCSR(virt.CSRMie, ^uint64(0))

			Expect(c.ReadCSR(virt.CSRMie)).To(Equal(uint64(0xBBB)))
		})

		It("should keep machine pending bits read-only through mip", func() {
			c.WriteCSR(virt.CSRMip, ^uint64(0))

			Expect(c.ReadCSR(virt.CSRMip)).To(Equal(uint64(0x333)))
		})

		It("should restrict sie writes to delegated bits", func() {
			c.WriteCSR(virt.CSRMideleg, uint64(0x222))

			c.WriteCSR(virt.CSRSie, ^uint64(0))

			Expect(c.ReadCSR(virt.CSRSie)).To(Equal(uint64(0x222)))
			Expect(c.ReadCSR(virt.CSRMie)).To(Equal(uint64(0x222)))
		})

		It("should read sie as zero when nothing is delegated", func() {
			c.WriteCSR(virt.CSRMie, uint64(0x222))

			Expect(c.ReadCSR(virt.CSRSie)).To(Equal(uint64(0)))
		})
	})

	Describe("tvec legalization", func() {
		It("should accept direct and vectored modes", func() {
			c.WriteCSR(virt.CSRMtvec, 0x80000001)

			Expect(c.ReadCSR(virt.CSRMtvec)).To(Equal(uint64(0x80000001)))
		})

		It("should keep the old mode on a reserved mode write", func() {
			c.WriteCSR(virt.CSRMtvec, 0x80000001)

			c.WriteCSR(virt.CSRMtvec, 0x90000002)

			Expect(c.ReadCSR(virt.CSRMtvec)).To(Equal(uint64(0x90000001)))
		})
	})

	Describe("satp legalization", func() {
		It("should accept Bare, Sv39, and Sv48", func() {
			c.WriteCSR(virt.CSRSatp, uint64(8)<<60|0x1000)

			Expect(c.ReadCSR(virt.CSRSatp)).To(Equal(uint64(8)<<60 | 0x1000))
		})

		It("should drop the whole write on a reserved mode", func() {
			c.WriteCSR(virt.CSRSatp, uint64(8)<<60|0x1000)

			c.WriteCSR(virt.CSRSatp, uint64(5)<<60|0x2000)

			Expect(c.ReadCSR(virt.CSRSatp)).To(Equal(uint64(8)<<60 | 0x1000))
		})
	})

	Describe("epc alignment", func() {
		It("should clear bit zero with compressed instructions", func() {
			c.WriteCSR(virt.CSRMepc, 0x80000003)

			Expect(c.ReadCSR(virt.CSRMepc)).To(Equal(uint64(0x80000002)))
		})

		It("should clear the low two bits without compressed", func() {
			cfg := fullConfig()
			cfg.HasCompressed = false
			nc := virt.NewContext(cfg, 0)

			nc.WriteCSR(virt.CSRMepc, 0x80000003)

			Expect(nc.ReadCSR(virt.CSRMepc)).To(Equal(uint64(0x80000000)))
		})

		It("should ignore writes beyond the highest valid address", func() {
			cfg := fullConfig()
			cfg.MaxAddress = 0xFFFFFFFF
			nc := virt.NewContext(cfg, 0)
			nc.WriteCSR(virt.CSRMepc, 0x80000000)

			nc.WriteCSR(virt.CSRMepc, 0x100000000)

			Expect(nc.ReadCSR(virt.CSRMepc)).To(Equal(uint64(0x80000000)))
		})
	})

	Describe("read-only and identity registers", func() {
		It("should ignore writes to misa", func() {
			before := c.ReadCSR(virt.CSRMisa)

			c.WriteCSR(virt.CSRMisa, 0)

			Expect(c.ReadCSR(virt.CSRMisa)).To(Equal(before))
		})

		It("should report the configured extensions in misa", func() {
			misa := c.ReadCSR(virt.CSRMisa)

			Expect(misa & virt.MisaS).NotTo(Equal(uint64(0)))
			Expect(misa & virt.MisaU).NotTo(Equal(uint64(0)))
			Expect(misa & virt.MisaC).NotTo(Equal(uint64(0)))
		})

		It("should report the hart ID through mhartid", func() {
			h := virt.NewContext(fullConfig(), 3)

			Expect(h.ReadCSR(virt.CSRMhartid)).To(Equal(uint64(3)))
		})
	})

	Describe("counter configuration", func() {
		It("should mask mcounteren to implemented counters", func() {
			c.WriteCSR(virt.CSRMcounteren, ^uint64(0))

			// CY/TM/IR plus four hpm enables.
			Expect(c.ReadCSR(virt.CSRMcounteren)).To(Equal(uint64(0x7F)))
		})

		It("should mask mcountinhibit to CY and IR", func() {
			c.WriteCSR(virt.CSRMcountinhibit, ^uint64(0))

			Expect(c.ReadCSR(virt.CSRMcountinhibit)).To(Equal(uint64(0b101)))
		})
	})
})

var _ = Describe("CSR access control", func() {
	var c *virt.Context

	BeforeEach(func() {
		c = virt.NewContext(fullConfig(), 0)
	})

	It("should deny machine CSRs below Machine mode", func() {
		Expect(c.CheckCSR(virt.CSRMstatus, virt.PrivSupervisor, false)).To(BeFalse())
		Expect(c.CheckCSR(virt.CSRMstatus, virt.PrivMachine, false)).To(BeTrue())
	})

	It("should deny supervisor CSRs from User mode", func() {
		Expect(c.CheckCSR(virt.CSRSstatus, virt.PrivUser, false)).To(BeFalse())
		Expect(c.CheckCSR(virt.CSRSstatus, virt.PrivSupervisor, false)).To(BeTrue())
	})

	It("should deny writes to read-only registers at any privilege", func() {
		Expect(c.CheckCSR(virt.CSRMvendorid, virt.PrivMachine, true)).To(BeFalse())
		Expect(c.CheckCSR(virt.CSRMvendorid, virt.PrivMachine, false)).To(BeTrue())
	})

	It("should deny CSRs absent from the configuration", func() {
		mOnly := virt.NewContext(virt.Config{}, 0)

		Expect(mOnly.CheckCSR(virt.CSRSstatus, virt.PrivMachine, false)).To(BeFalse())
		Expect(mOnly.CheckCSR(virt.CSRUstatus, virt.PrivMachine, false)).To(BeFalse())
	})

	It("should trap satp accesses from Supervisor when TVM is set", func() {
		Expect(c.CheckCSR(virt.CSRSatp, virt.PrivSupervisor, true)).To(BeTrue())

		c.WriteCSR(virt.CSRMstatus, virt.MstatusTVM)

		Expect(c.CheckCSR(virt.CSRSatp, virt.PrivSupervisor, true)).To(BeFalse())
		Expect(c.CheckCSR(virt.CSRSatp, virt.PrivMachine, true)).To(BeTrue())
	})

	It("should gate user counter reads on both counteren levels", func() {
		Expect(c.CheckCSR(virt.CSRCycle, virt.PrivUser, false)).To(BeFalse())

		c.WriteCSR(virt.CSRMcounteren, uint64(7))
		Expect(c.CheckCSR(virt.CSRCycle, virt.PrivSupervisor, false)).To(BeTrue())
		Expect(c.CheckCSR(virt.CSRCycle, virt.PrivUser, false)).To(BeFalse())

		c.WriteCSR(virt.CSRScounteren, uint64(7))
		Expect(c.CheckCSR(virt.CSRCycle, virt.PrivUser, false)).To(BeTrue())
	})

	It("should deny pmp registers beyond the configured count", func() {
		Expect(c.CheckCSR(virt.PmpaddrCSR(15), virt.PrivMachine, true)).To(BeTrue())
		Expect(c.CheckCSR(virt.PmpaddrCSR(16), virt.PrivMachine, true)).To(BeFalse())
		Expect(c.CheckCSR(virt.PmpcfgCSR(0), virt.PrivMachine, true)).To(BeTrue())
		Expect(c.CheckCSR(virt.PmpcfgCSR(1), virt.PrivMachine, true)).To(BeFalse())
		Expect(c.CheckCSR(virt.PmpcfgCSR(4), virt.PrivMachine, true)).To(BeFalse())
	})
})
