package platform_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hartlab/rvmon/platform"
	"github.com/hartlab/rvmon/virt"
)

var _ = Describe("Platform", func() {
	var p *platform.Platform

	BeforeEach(func() {
		cfg := platform.Default()
		cfg.Harts = 2

		var err error
		p, err = platform.New(cfg)
		Expect(err).ToNot(HaveOccurred())
	})

	It("should build one monitor per hart", func() {
		Expect(p.Monitors).To(HaveLen(2))
		Expect(p.Fabric.Harts()).To(Equal(2))
		Expect(p.Monitors[0].Context().HartID()).To(Equal(uint64(0)))
		Expect(p.Monitors[1].Context().HartID()).To(Equal(uint64(1)))
	})

	It("should start every hart at the base of memory", func() {
		for _, m := range p.Monitors {
			Expect(m.Context().Privilege()).To(Equal(virt.PrivMachine))
			Expect(m.Context().PC).To(Equal(uint64(0x80000000)))
		}
	})

	It("should reject an oversized image", func() {
		cfg := platform.Default()
		cfg.Memory.Size = 4096
		small, err := platform.New(cfg)
		Expect(err).ToNot(HaveOccurred())

		Expect(small.LoadImage(make([]byte, 8192))).To(HaveOccurred())
	})

	It("should execute instructions fetched from the loaded image", func() {
		// csrrw x5, mscratch, x6
		image := []byte{0xF3, 0x12, 0x03, 0x34}
		Expect(p.LoadImage(image)).To(Succeed())

		m := p.Monitors[0]
		m.WriteReg(6, 0x1234)

		res := p.Step(0)

		Expect(res.Err).ToNot(HaveOccurred())
		Expect(res.Trapped).To(BeFalse())
		Expect(m.Context().ReadCSR(virt.CSRMscratch)).To(Equal(uint64(0x1234)))
		Expect(m.Context().PC).To(Equal(uint64(0x80000004)))
	})

	It("should run a straight-line sequence", func() {
		// Two fence instructions.
		image := []byte{
			0x0F, 0x00, 0xF0, 0x0F,
			0x0F, 0x00, 0xF0, 0x0F,
		}
		Expect(p.LoadImage(image)).To(Succeed())

		Expect(p.Run(0, 2)).To(Succeed())
		Expect(p.Monitors[0].InstructionCount()).To(Equal(uint64(2)))
		Expect(p.Monitors[0].Context().PC).To(Equal(uint64(0x80000008)))
	})

	It("should fault a fetch outside the memory window", func() {
		ctx := p.Monitors[0].Context()
		ctx.WriteCSR(virt.CSRMtvec, 0x80100000)
		ctx.PC = 0x1000

		res := p.Step(0)

		Expect(res.Trapped).To(BeTrue())
		Expect(res.Cause.IsInterrupt).To(BeFalse())
		Expect(res.Cause.Code).To(Equal(uint8(virt.ExcFetchAccessFault)))
		Expect(ctx.ReadCSR(virt.CSRMepc)).To(Equal(uint64(0x1000)))
		Expect(ctx.PC).To(Equal(uint64(0x80100000)))
	})

	It("should fault a fetch the PMP rejects", func() {
		ctx := p.Monitors[0].Context()
		ctx.WriteCSR(virt.CSRMtvec, 0x80100000)

		// Lock a read-write NAPOT region over the base of memory so
		// even machine mode cannot execute from it.
		ctx.WriteCSR(virt.PmpaddrCSR(0), 0x200001FF)
		ctx.WriteCSR(virt.PmpcfgCSR(0), 0x9B)

		res := p.Step(0)

		Expect(res.Trapped).To(BeTrue())
		Expect(res.Cause.Code).To(Equal(uint8(virt.ExcFetchAccessFault)))
	})

	It("should deliver an interrupt posted over the fabric", func() {
		image := []byte{0x0F, 0x00, 0xF0, 0x0F}
		Expect(p.LoadImage(image)).To(Succeed())

		ctx := p.Monitors[1].Context()
		ctx.WriteCSR(virt.CSRMtvec, 0x80100000)
		ctx.WriteCSR(virt.CSRMie, virt.IntMachineSoftware.Bit())
		ctx.WriteCSR(virt.CSRMstatus, virt.MstatusMIE)

		Expect(p.Fabric.Post(1, virt.IntMachineSoftware)).To(Succeed())
		Expect(p.Fabric.Drain()).To(Succeed())

		res := p.Step(1)

		Expect(res.Trapped).To(BeTrue())
		Expect(res.Cause.IsInterrupt).To(BeTrue())
		Expect(res.Cause.Code).To(Equal(uint8(virt.IntMachineSoftware)))
		Expect(ctx.PC).To(Equal(uint64(0x80100000)))
	})

	It("should reject steps on unknown harts", func() {
		Expect(p.Step(5).Err).To(HaveOccurred())
	})
})
