package platform_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hartlab/rvmon/platform"
)

var _ = Describe("Memory", func() {
	var mem *platform.Memory

	BeforeEach(func() {
		mem = platform.NewMemory(0x80000000, 1<<20)
	})

	It("should read unbacked memory as zero", func() {
		Expect(mem.Read64(0x80000000)).To(Equal(uint64(0)))
		Expect(mem.Read(0x800FF000, 16)).To(Equal(make([]byte, 16)))
	})

	It("should round-trip words", func() {
		mem.Write32(0x80000100, 0xDEADBEEF)
		mem.Write64(0x80000108, 0x0123456789ABCDEF)

		Expect(mem.Read32(0x80000100)).To(Equal(uint32(0xDEADBEEF)))
		Expect(mem.Read64(0x80000108)).To(Equal(uint64(0x0123456789ABCDEF)))
	})

	It("should store little endian", func() {
		mem.Write32(0x80000000, 0x11223344)

		Expect(mem.Read(0x80000000, 4)).To(
			Equal([]byte{0x44, 0x33, 0x22, 0x11}))
	})

	It("should span page boundaries", func() {
		mem.Write64(0x80000FFC, 0xA1B2C3D4E5F60708)

		Expect(mem.Read64(0x80000FFC)).To(Equal(uint64(0xA1B2C3D4E5F60708)))
		Expect(mem.Read32(0x80001000)).To(Equal(uint32(0xA1B2C3D4)))
	})

	It("should bound-check accesses", func() {
		Expect(mem.Contains(0x80000000, 4)).To(BeTrue())
		Expect(mem.Contains(0x800FFFFC, 4)).To(BeTrue())
		Expect(mem.Contains(0x800FFFFE, 4)).To(BeFalse())
		Expect(mem.Contains(0x7FFFFFFF, 4)).To(BeFalse())
	})

	It("should load a flat image", func() {
		image := []byte{0x13, 0x00, 0x00, 0x00, 0x73, 0x00, 0x10, 0x00}
		mem.LoadImage(0x80000000, image)

		Expect(mem.Read32(0x80000000)).To(Equal(uint32(0x00000013)))
		Expect(mem.Read32(0x80000004)).To(Equal(uint32(0x00100073)))
	})
})
