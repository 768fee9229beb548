package emu_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hartlab/hartsim/emu"
)

var _ = Describe("Trap handling", func() {
	var e *emu.Emulator

	// Bare-metal machine: no syscall emulation, traps vector to a
	// handler region at 0x8000.
	newBareEmulator := func(mutate ...func(*emu.Config)) *emu.Emulator {
		cfg := emu.DefaultConfig()
		cfg.MemoryBase = 0
		cfg.MemorySize = 1 << 20
		cfg.TrapVector = 0x8000
		for _, m := range mutate {
			m(&cfg)
		}
		return emu.NewEmulator(
			emu.WithConfig(cfg),
			emu.WithSyscallHandler(nil),
		)
	}

	BeforeEach(func() {
		e = newBareEmulator()
	})

	Describe("trap entry", func() {
		It("should vector to mtvec on ecall and record the trap CSRs", func() {
			loadWords(e, 0x2000, instECALL)

			result := e.Step()

			Expect(result.Err).To(BeNil())
			Expect(e.RegFile().PC()).To(Equal(uint64(0x8000)))
			Expect(e.Traps().Trapped()).To(BeTrue())
			Expect(e.Traps().Depth()).To(Equal(1))
			Expect(e.Traps().Priv()).To(Equal(emu.PrivMachine))

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMepc]).To(Equal(uint64(0x2000)))
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseEcallFromM)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0)))
		})

		It("should not retire the trapping instruction", func() {
			loadWords(e, 0x2000, instECALL)

			e.Step()

			Expect(e.InstructionCount()).To(Equal(uint64(0)))
			Expect(e.Stats().Traps).To(Equal(uint64(1)))
		})

		It("should transfer MIE into MPIE and record the privilege", func() {
			loadWords(e, 0x2000,
				encodeCSRRSI(0, 8, emu.CsrMstatus), // set MIE
				instECALL,
			)

			e.Step()
			e.Step()

			mstatus := e.CSRs().Snapshot()[emu.CsrMstatus]
			Expect(mstatus & emu.MstatusMIE).To(BeZero())
			Expect(mstatus & emu.MstatusMPIE).NotTo(BeZero())
			Expect(mstatus & emu.MstatusMPPMask).To(Equal(uint64(3) << emu.MstatusMPPShift))
		})

		It("should record the address of a misaligned load", func() {
			e.RegFile().WriteReg(5, 0x2000)
			loadWords(e, 0x2000, encodeLW(6, 5, 1))

			e.Step()

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseLoadAddrMisaligned)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x2001)))
			Expect(csrs[emu.CsrMepc]).To(Equal(uint64(0x2000)))
		})

		It("should record the address of an out-of-bounds load", func() {
			loadWords(e, 0x2000,
				encodeLUI(5, 0x100), // t0 = 0x100000, one past the end
				encodeLW(6, 5, 0),
			)

			e.Step()
			e.Step()

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseLoadAccessFault)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x100000)))
			Expect(csrs[emu.CsrMepc]).To(Equal(uint64(0x2004)))
		})

		It("should record the address of a misaligned store", func() {
			e.RegFile().WriteReg(5, 0x3000)
			loadWords(e, 0x2000, encodeSW(5, 6, 2))

			e.Step()

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseStoreAddrMisaligned)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x3002)))
		})

		It("should record the address of an out-of-bounds store", func() {
			loadWords(e, 0x2000,
				encodeLUI(5, 0x100),
				encodeSW(5, 6, 0),
			)

			e.Step()
			e.Step()

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseStoreAccessFault)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x100000)))
		})

		It("should permit misaligned data under the relaxed policy", func() {
			e = newBareEmulator(func(cfg *emu.Config) { cfg.Alignment = "relaxed" })
			Expect(e.Memory().WriteBytes(0x3000, []byte{0, 0x11, 0x22, 0x33, 0x44})).
				To(Succeed())
			e.RegFile().WriteReg(5, 0x3000)
			loadWords(e, 0x2000, encodeLW(6, 5, 1))

			e.Step()

			Expect(e.Traps().Trapped()).To(BeFalse())
			Expect(e.RegFile().ReadReg(6)).To(Equal(uint64(0x44332211)))
		})

		It("should trap ebreak with the breakpoint cause", func() {
			loadWords(e, 0x2000, instEBREAK)

			e.Step()

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseBreakpoint)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x2000)))
			Expect(csrs[emu.CsrMepc]).To(Equal(uint64(0x2000)))
		})

		It("should trap an unrecognized encoding with the word as tval", func() {
			loadWords(e, 0x2000, 0xFFFFFFFF)

			e.Step()

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseIllegalInstruction)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0xFFFFFFFF)))
		})

		It("should fault a jump to a misaligned target without linking", func() {
			loadWords(e, 0x2000, encodeJAL(1, 2))

			e.Step()

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseInsnAddrMisaligned)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x2002)))
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint64(0)))
		})

		It("should fault an indirect jump to a misaligned target", func() {
			e.RegFile().WriteReg(5, 0x2002)
			loadWords(e, 0x2000, encodeJALR(0, 5, 0))

			e.Step()

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseInsnAddrMisaligned)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x2002)))
		})

		It("should fault a fetch from outside memory", func() {
			e.RegFile().WriteReg(5, 0x200000)
			loadWords(e, 0x2000, encodeJALR(0, 5, 0))

			e.Step() // jump lands outside memory
			e.Step() // fetch faults

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseInsnAccessFault)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x200000)))
			Expect(csrs[emu.CsrMepc]).To(Equal(uint64(0x200000)))
		})

		It("should fault a taken branch to a misaligned target", func() {
			loadWords(e, 0x2000, encodeBNE(0, 0, 2), encodeBNE(1, 0, 2))
			e.RegFile().WriteReg(1, 1)

			e.Step() // not taken: x0 == x0
			Expect(e.Traps().Trapped()).To(BeFalse())

			e.Step() // taken, target 0x2006

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseInsnAddrMisaligned)))
			Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x2006)))
		})
	})

	Describe("trap return", func() {
		It("should resume after the ecall", func() {
			loadWords(e, 0x2000, instECALL)
			loadWords(e, 0x8000, instMRET)
			e.RegFile().SetPC(0x2000)

			e.Step() // ecall traps to 0x8000
			e.Step() // mret

			Expect(e.RegFile().PC()).To(Equal(uint64(0x2004)))
			Expect(e.Traps().Trapped()).To(BeFalse())
			Expect(e.Traps().Depth()).To(Equal(0))
			Expect(e.Traps().Priv()).To(Equal(emu.PrivMachine))
		})

		It("should resume at the faulting instruction after a fault", func() {
			e.RegFile().WriteReg(5, 0x3000)
			loadWords(e, 0x2000, encodeLW(6, 5, 1))
			loadWords(e, 0x8000, instMRET)
			e.RegFile().SetPC(0x2000)

			e.Step() // misaligned load traps
			e.Step() // mret

			Expect(e.RegFile().PC()).To(Equal(uint64(0x2000)))
		})

		It("should restore the interrupt enable on return", func() {
			loadWords(e, 0x2000,
				encodeCSRRSI(0, 8, emu.CsrMstatus),
				instECALL,
			)
			loadWords(e, 0x8000, instMRET)
			e.RegFile().SetPC(0x2000)

			e.Step()
			e.Step()
			e.Step()

			mstatus := e.CSRs().Snapshot()[emu.CsrMstatus]
			Expect(mstatus & emu.MstatusMIE).NotTo(BeZero())
			Expect(mstatus & emu.MstatusMPIE).NotTo(BeZero())
			Expect(mstatus & emu.MstatusMPPMask).To(BeZero())
			Expect(e.RegFile().PC()).To(Equal(uint64(0x2008)))
		})

		It("should drop to user mode when the handler clears MPP", func() {
			loadWords(e, 0x2000, instECALL, instECALL)
			loadWords(e, 0x8000,
				encodeCSRRW(0, 0, emu.CsrMstatus), // MPP <- U
				instMRET,
			)
			e.RegFile().SetPC(0x2000)

			e.Step() // ecall from M
			e.Step() // clear mstatus
			e.Step() // mret drops to U

			Expect(e.Traps().Priv()).To(Equal(emu.PrivUser))
			Expect(e.RegFile().PC()).To(Equal(uint64(0x2004)))

			e.Step() // second ecall, now from U

			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseEcallFromU)))
			Expect(csrs[emu.CsrMepc]).To(Equal(uint64(0x2004)))
			Expect(e.Traps().Priv()).To(Equal(emu.PrivMachine))
		})
	})

	Describe("nested traps", func() {
		It("should end the run on a double fault under the fatal policy", func() {
			loadWords(e, 0x2000, instECALL)
			loadWords(e, 0x8000, instEBREAK)
			e.RegFile().SetPC(0x2000)

			e.Step() // ecall traps

			result := e.Step() // ebreak inside the handler

			Expect(result.Err).To(HaveOccurred())
			Expect(errors.Is(result.Err, emu.ErrDoubleFault)).To(BeTrue())
			Expect(e.Status()).To(Equal(emu.StatusFaulted))

			// The terminal result is sticky.
			again := e.Step()
			Expect(again.Err).To(Equal(result.Err))
		})

		It("should report the double fault through Run", func() {
			stderrBuf := &bytes.Buffer{}
			cfg := emu.DefaultConfig()
			cfg.MemoryBase = 0
			cfg.MemorySize = 1 << 20
			cfg.TrapVector = 0x8000
			e = emu.NewEmulator(
				emu.WithConfig(cfg),
				emu.WithSyscallHandler(nil),
				emu.WithStderr(stderrBuf),
			)
			loadWords(e, 0x2000, instECALL)
			loadWords(e, 0x8000, instEBREAK)
			e.RegFile().SetPC(0x2000)

			exitCode := e.Run()

			Expect(exitCode).To(Equal(int64(-1)))
			Expect(stderrBuf.String()).To(ContainSubstring("Emulation error"))
			Expect(stderrBuf.String()).To(ContainSubstring("double fault"))
		})

		It("should stack and unwind nested traps under the stacking policy", func() {
			e = newBareEmulator(func(cfg *emu.Config) { cfg.NestedTraps = "stack" })
			loadWords(e, 0x2000, instECALL)
			loadWords(e, 0x8000, instEBREAK, instMRET)
			e.RegFile().SetPC(0x2000)

			e.Step() // ecall traps
			Expect(e.Traps().Depth()).To(Equal(1))

			e.Step() // ebreak nests
			Expect(e.Traps().Depth()).To(Equal(2))
			csrs := e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseBreakpoint)))
			Expect(csrs[emu.CsrMepc]).To(Equal(uint64(0x8000)))

			// Replace the ebreak so the handler can run to its mret.
			Expect(e.Memory().WriteBytes(0x8000, uint32ToBytes(instMRET))).To(Succeed())

			e.Step() // inner mret unwinds one level
			Expect(e.RegFile().PC()).To(Equal(uint64(0x8004)))
			Expect(e.Traps().Depth()).To(Equal(1))
			Expect(e.Traps().Trapped()).To(BeTrue())
			csrs = e.CSRs().Snapshot()
			Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseEcallFromM)))
			Expect(csrs[emu.CsrMepc]).To(Equal(uint64(0x2000)))

			e.Step() // outer mret returns to the program
			Expect(e.RegFile().PC()).To(Equal(uint64(0x2004)))
			Expect(e.Traps().Depth()).To(Equal(0))
			Expect(e.Traps().Trapped()).To(BeFalse())
			Expect(e.Stats().Traps).To(Equal(uint64(2)))
		})
	})

	Describe("environment call delegation", func() {
		It("should trap when the handler declines the call", func() {
			h := &refuseAllHandler{}
			cfg := emu.DefaultConfig()
			cfg.MemoryBase = 0
			cfg.MemorySize = 1 << 20
			cfg.TrapVector = 0x8000
			e = emu.NewEmulator(emu.WithConfig(cfg), emu.WithSyscallHandler(h))
			loadWords(e, 0x2000, instECALL)

			e.Step()

			Expect(h.calls).To(Equal(1))
			Expect(e.Traps().Trapped()).To(BeTrue())
			Expect(e.CSRs().Snapshot()[emu.CsrMcause]).
				To(Equal(uint64(emu.CauseEcallFromM)))
		})

		It("should continue past a claimed call without trapping", func() {
			cfg := emu.DefaultConfig()
			cfg.MemoryBase = 0
			cfg.MemorySize = 1 << 20
			e = emu.NewEmulator(emu.WithConfig(cfg), emu.WithSyscallHandler(claimAllHandler{}))
			loadWords(e, 0x2000, instECALL)

			result := e.Step()

			Expect(result.Err).To(BeNil())
			Expect(result.Exited).To(BeFalse())
			Expect(e.Traps().Trapped()).To(BeFalse())
			Expect(e.RegFile().PC()).To(Equal(uint64(0x2004)))
			Expect(e.InstructionCount()).To(Equal(uint64(1)))
		})
	})
})

var _ = Describe("CSR instructions", func() {
	var e *emu.Emulator

	BeforeEach(func() {
		cfg := emu.DefaultConfig()
		cfg.MemoryBase = 0
		cfg.MemorySize = 1 << 20
		cfg.TrapVector = 0x8000
		e = emu.NewEmulator(emu.WithConfig(cfg), emu.WithSyscallHandler(nil))
	})

	It("should write and read back mscratch", func() {
		loadWords(e, 0x2000,
			encodeADDI(5, 0, 0x55),
			encodeCSRRW(0, 5, emu.CsrMscratch),
			encodeCSRRS(6, 0, emu.CsrMscratch),
		)

		e.Step()
		e.Step()
		e.Step()

		Expect(e.RegFile().ReadReg(6)).To(Equal(uint64(0x55)))
		Expect(e.CSRs().Snapshot()[emu.CsrMscratch]).To(Equal(uint64(0x55)))
	})

	It("should set and clear bits through csrrs and csrrc", func() {
		loadWords(e, 0x2000,
			encodeADDI(5, 0, 0xF0),
			encodeCSRRW(0, 5, emu.CsrMscratch),
			encodeADDI(6, 0, 0x0F),
			encodeCSRRS(7, 6, emu.CsrMscratch), // t2 = 0xF0, mscratch = 0xFF
			encodeADDI(6, 0, 0x3C),
			encodeCSRRC(28, 6, emu.CsrMscratch), // t3 = 0xFF, mscratch = 0xC3
		)

		for i := 0; i < 6; i++ {
			e.Step()
		}

		Expect(e.RegFile().ReadReg(7)).To(Equal(uint64(0xF0)))
		Expect(e.RegFile().ReadReg(28)).To(Equal(uint64(0xFF)))
		Expect(e.CSRs().Snapshot()[emu.CsrMscratch]).To(Equal(uint64(0xC3)))
	})

	It("should take the zero-extended immediate in the csrrwi form", func() {
		loadWords(e, 0x2000,
			encodeCSRRWI(0, 13, emu.CsrMscratch),
			encodeCSRRS(5, 0, emu.CsrMscratch),
		)

		e.Step()
		e.Step()

		Expect(e.RegFile().ReadReg(5)).To(Equal(uint64(13)))
	})

	It("should expose the retired instruction counter", func() {
		loadWords(e, 0x2000,
			encodeADDI(5, 0, 1),
			encodeCSRRS(6, 0, emu.CsrInstret),
		)

		e.Step()
		e.Step()

		Expect(e.RegFile().ReadReg(6)).To(Equal(uint64(1)))
	})

	It("should read the cycle counter without trapping", func() {
		loadWords(e, 0x2000, encodeCSRRS(5, 0, emu.CsrCycle))

		e.Step()

		Expect(e.Traps().Trapped()).To(BeFalse())
		Expect(e.RegFile().ReadReg(5)).To(Equal(uint64(1)))
	})

	It("should trap writes to the read-only counters", func() {
		loadWords(e, 0x2000, encodeCSRRW(0, 5, emu.CsrCycle))

		e.Step()

		csrs := e.CSRs().Snapshot()
		Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseIllegalInstruction)))
		Expect(csrs[emu.CsrMtval]).To(Equal(uint64(emu.CsrCycle)))
	})

	It("should trap access to an unimplemented CSR", func() {
		loadWords(e, 0x2000, encodeCSRRS(5, 0, 0x3A0))

		e.Step()

		csrs := e.CSRs().Snapshot()
		Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseIllegalInstruction)))
		Expect(csrs[emu.CsrMtval]).To(Equal(uint64(0x3A0)))
	})

	It("should keep the mtvec mode bits clear", func() {
		loadWords(e, 0x2000,
			encodeLUI(5, 8),
			encodeADDI(5, 5, 3), // t0 = 0x8003
			encodeCSRRW(0, 5, emu.CsrMtvec),
			encodeCSRRS(6, 0, emu.CsrMtvec),
		)

		for i := 0; i < 4; i++ {
			e.Step()
		}

		Expect(e.RegFile().ReadReg(6)).To(Equal(uint64(0x8000)))
	})

	It("should keep mepc even", func() {
		loadWords(e, 0x2000,
			encodeADDI(5, 0, 7),
			encodeCSRRW(0, 5, emu.CsrMepc),
			encodeCSRRS(6, 0, emu.CsrMepc),
		)

		e.Step()
		e.Step()
		e.Step()

		Expect(e.RegFile().ReadReg(6)).To(Equal(uint64(6)))
	})

	It("should report the extensions in misa and ignore writes to it", func() {
		loadWords(e, 0x2000,
			encodeCSRRW(5, 0, emu.CsrMisa), // read, then write 0
			encodeCSRRS(6, 0, emu.CsrMisa),
		)

		e.Step()
		e.Step()

		misa := e.RegFile().ReadReg(5)
		Expect(misa & (1 << 8)).NotTo(BeZero())  // I
		Expect(misa & (1 << 12)).NotTo(BeZero()) // M
		Expect(misa & (1 << 20)).NotTo(BeZero()) // U
		Expect(misa >> 62).To(Equal(uint64(2)))  // MXL=64
		Expect(e.RegFile().ReadReg(6)).To(Equal(misa))
	})

	It("should read hart zero from mhartid", func() {
		e.RegFile().WriteReg(5, 0xFF)
		loadWords(e, 0x2000, encodeCSRRS(5, 0, emu.CsrMhartid))

		e.Step()

		Expect(e.RegFile().ReadReg(5)).To(Equal(uint64(0)))
	})
})

// refuseAllHandler declines every environment call so it reaches the
// trap controller.
type refuseAllHandler struct{ calls int }

func (h *refuseAllHandler) Handle() emu.SyscallResult {
	h.calls++
	return emu.SyscallResult{}
}

// claimAllHandler consumes every environment call without side effects.
type claimAllHandler struct{}

func (claimAllHandler) Handle() emu.SyscallResult {
	return emu.SyscallResult{Handled: true}
}

// Helper functions to encode the system and jump forms used here.

func encodeJAL(rd uint8, offset int32) uint32 {
	imm := uint32(offset)
	return (imm>>20&0x1)<<31 | (imm>>1&0x3FF)<<21 | (imm>>11&0x1)<<20 |
		(imm>>12&0xFF)<<12 | uint32(rd)<<7 | 0x6F
}

func encodeCSRRSI(rd, zimm uint8, csr uint16) uint32 {
	return encodeCSROp(6, rd, zimm, csr)
}
