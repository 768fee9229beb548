package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hartlab/hartsim/emu"
	"github.com/hartlab/hartsim/insts"
)

var _ = Describe("RegFile", func() {
	var rf *emu.RegFile

	BeforeEach(func() {
		rf = emu.NewRegFile(insts.XLen64)
	})

	It("should start with all registers zeroed", func() {
		for reg := uint8(0); reg < 32; reg++ {
			Expect(rf.ReadReg(reg)).To(Equal(uint64(0)))
		}
		Expect(rf.PC()).To(Equal(uint64(0)))
	})

	It("should store and return register values", func() {
		rf.WriteReg(1, 0xDEADBEEF)
		rf.WriteReg(31, 42)

		Expect(rf.ReadReg(1)).To(Equal(uint64(0xDEADBEEF)))
		Expect(rf.ReadReg(31)).To(Equal(uint64(42)))
	})

	It("should keep register zero hard-wired", func() {
		rf.WriteReg(0, 0xFFFF)

		Expect(rf.ReadReg(0)).To(Equal(uint64(0)))
	})

	It("should ignore out-of-range register numbers", func() {
		rf.WriteReg(32, 1)
		rf.WriteReg(255, 1)

		Expect(rf.ReadReg(32)).To(Equal(uint64(0)))
		Expect(rf.ReadReg(255)).To(Equal(uint64(0)))
	})

	It("should hold the program counter", func() {
		rf.SetPC(0x8000_0000)

		Expect(rf.PC()).To(Equal(uint64(0x8000_0000)))
	})

	It("should report its width", func() {
		Expect(rf.XLen()).To(Equal(insts.XLen64))
	})

	Describe("Regs", func() {
		It("should return a copy of the register state", func() {
			rf.WriteReg(5, 7)

			regs := rf.Regs()
			regs[5] = 99

			Expect(rf.ReadReg(5)).To(Equal(uint64(7)))
		})
	})

	Context("on RV32", func() {
		BeforeEach(func() {
			rf = emu.NewRegFile(insts.XLen32)
		})

		It("should truncate writes to 32 bits", func() {
			rf.WriteReg(1, 0x1_0000_0001)

			Expect(rf.ReadReg(1)).To(Equal(uint64(1)))
		})

		It("should truncate the program counter", func() {
			rf.SetPC(0x1_0000_0004)

			Expect(rf.PC()).To(Equal(uint64(4)))
		})
	})
})
