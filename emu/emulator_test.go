package emu_test

import (
	"bytes"
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hartlab/hartsim/emu"
)

var _ = Describe("Emulator", func() {
	var (
		e         *emu.Emulator
		stdoutBuf *bytes.Buffer
	)

	// The default memory base sits at 2 GiB; tests use a small flat
	// memory at address zero so the conventional low addresses work.
	newEmulator := func(opts ...emu.EmulatorOption) *emu.Emulator {
		cfg := emu.DefaultConfig()
		cfg.MemoryBase = 0
		cfg.MemorySize = 1 << 20
		all := append([]emu.EmulatorOption{
			emu.WithConfig(cfg),
			emu.WithStdout(stdoutBuf),
		}, opts...)
		return emu.NewEmulator(all...)
	}

	BeforeEach(func() {
		stdoutBuf = &bytes.Buffer{}
		e = newEmulator()
	})

	Describe("NewEmulator", func() {
		It("should create an emulator with initialized components", func() {
			Expect(e).NotTo(BeNil())
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
			Expect(e.CSRs()).NotTo(BeNil())
			Expect(e.Traps()).NotTo(BeNil())
			Expect(e.Status()).To(Equal(emu.StatusRunning))
		})

		It("should default to RV64 with 64 MiB at the high base", func() {
			plain := emu.NewEmulator()
			Expect(plain.XLen().Bits()).To(Equal(64))
			Expect(plain.Memory().Base()).To(Equal(uint64(0x8000_0000)))
			Expect(plain.Memory().Size()).To(Equal(uint64(64 * 1024 * 1024)))
		})
	})

	Describe("LoadProgram", func() {
		It("should set the PC to the entry point", func() {
			err := e.LoadProgram(0x1000, uint32ToBytes(instNOP))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.RegFile().PC()).To(Equal(uint64(0x1000)))
		})

		It("should load program bytes into memory", func() {
			err := e.LoadProgram(0x2000, []byte{0xDE, 0xAD, 0xBE, 0xEF})
			Expect(err).NotTo(HaveOccurred())

			for i, want := range []uint8{0xDE, 0xAD, 0xBE, 0xEF} {
				v, fault := e.Memory().Read8(0x2000 + uint64(i))
				Expect(fault).To(BeNil())
				Expect(v).To(Equal(want))
			}
		})

		It("should reject an image that does not fit the memory", func() {
			err := e.LoadProgram(1<<20-2, uint32ToBytes(instNOP))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Step", func() {
		Context("computational instructions", func() {
			It("should execute ADDI", func() {
				// addi t0, t0, 10
				e.RegFile().WriteReg(5, 32)
				loadWords(e, 0x1000, 0x00A28293)

				result := e.Step()

				Expect(result.Err).To(BeNil())
				Expect(result.Exited).To(BeFalse())
				Expect(e.RegFile().ReadReg(5)).To(Equal(uint64(42)))
				Expect(e.RegFile().PC()).To(Equal(uint64(0x1004)))
			})

			It("should execute ADD", func() {
				e.RegFile().WriteReg(5, 10)
				e.RegFile().WriteReg(6, 32)
				loadWords(e, 0x1000, encodeADD(10, 5, 6))

				e.Step()

				Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(42)))
			})

			It("should execute SUB", func() {
				e.RegFile().WriteReg(5, 10)
				e.RegFile().WriteReg(6, 3)
				loadWords(e, 0x1000, encodeSUB(10, 5, 6))

				e.Step()

				Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(7)))
			})

			It("should execute LUI with sign extension", func() {
				// lui a0, 0xABCDE
				loadWords(e, 0x1000, 0xABCDE537)

				e.Step()

				Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(0xFFFFFFFF_ABCDE000)))
			})

			It("should execute AUIPC relative to the instruction", func() {
				loadWords(e, 0x1000, encodeAUIPC(10, 1))

				e.Step()

				Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(0x2000)))
			})

			It("should keep x0 hard-wired to zero", func() {
				loadWords(e, 0x1000, encodeADDI(0, 0, 5))

				result := e.Step()

				Expect(result.Err).To(BeNil())
				Expect(e.RegFile().ReadReg(0)).To(Equal(uint64(0)))
				Expect(e.RegFile().PC()).To(Equal(uint64(0x1004)))
			})

			It("should sign-extend ADDIW results", func() {
				e.RegFile().WriteReg(5, 0x7FFF_FFFF)
				loadWords(e, 0x1000, encodeADDIW(6, 5, 1))

				e.Step()

				Expect(e.RegFile().ReadReg(6)).To(Equal(uint64(0xFFFFFFFF_80000000)))
			})
		})

		Context("load/store instructions", func() {
			It("should execute LD", func() {
				Expect(e.Memory().Write64(0x2008, 0xDEADBEEF_CAFEBABE)).To(BeNil())
				e.RegFile().WriteReg(5, 0x2000)
				loadWords(e, 0x1000, encodeLD(10, 5, 8))

				e.Step()

				Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(0xDEADBEEF_CAFEBABE)))
			})

			It("should execute SD", func() {
				e.RegFile().WriteReg(6, 0x12345678_9ABCDEF0)
				e.RegFile().WriteReg(5, 0x3000)
				loadWords(e, 0x1000, encodeSD(5, 6, 16))

				e.Step()

				v, fault := e.Memory().Read64(0x3010)
				Expect(fault).To(BeNil())
				Expect(v).To(Equal(uint64(0x12345678_9ABCDEF0)))
			})

			It("should sign-extend LB", func() {
				Expect(e.Memory().Write8(0x2500, 0x80)).To(BeNil())
				e.RegFile().WriteReg(5, 0x2500)
				loadWords(e, 0x1000, encodeLB(10, 5, 0))

				e.Step()

				Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(0xFFFFFFFF_FFFFFF80)))
			})

			It("should zero-extend LBU", func() {
				Expect(e.Memory().Write8(0x2500, 0x80)).To(BeNil())
				e.RegFile().WriteReg(5, 0x2500)
				loadWords(e, 0x1000, encodeLBU(10, 5, 0))

				e.Step()

				Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(0x80)))
			})

			It("should sign-extend LW on RV64", func() {
				Expect(e.Memory().Write32(0x2600, 0x80000001)).To(BeNil())
				e.RegFile().WriteReg(5, 0x2600)
				loadWords(e, 0x1000, encodeLW(10, 5, 0))

				e.Step()

				Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(0xFFFFFFFF_80000001)))
			})
		})

		Context("branch instructions", func() {
			It("should take BEQ when operands are equal", func() {
				// beq x1, x2, +8
				e.RegFile().WriteReg(1, 7)
				e.RegFile().WriteReg(2, 7)
				loadWords(e, 0x1000, 0x00208463)

				e.Step()

				Expect(e.RegFile().PC()).To(Equal(uint64(0x1008)))
			})

			It("should fall through BEQ when operands differ", func() {
				e.RegFile().WriteReg(1, 7)
				e.RegFile().WriteReg(2, 8)
				loadWords(e, 0x1000, 0x00208463)

				e.Step()

				Expect(e.RegFile().PC()).To(Equal(uint64(0x1004)))
			})

			It("should compare BLT as signed", func() {
				e.RegFile().WriteReg(1, ^uint64(0)) // -1
				e.RegFile().WriteReg(2, 1)
				loadWords(e, 0x1000, encodeBLT(1, 2, 8))

				e.Step()

				Expect(e.RegFile().PC()).To(Equal(uint64(0x1008)))
			})

			It("should compare BLTU as unsigned", func() {
				e.RegFile().WriteReg(1, ^uint64(0))
				e.RegFile().WriteReg(2, 1)
				loadWords(e, 0x1000, encodeBLTU(1, 2, 8))

				e.Step()

				Expect(e.RegFile().PC()).To(Equal(uint64(0x1004)))
			})

			It("should branch backward", func() {
				e.RegFile().WriteReg(1, 1)
				loadWords(e, 0x1000, instNOP, encodeBNE(1, 0, -4))
				e.RegFile().SetPC(0x1004)

				e.Step()

				Expect(e.RegFile().PC()).To(Equal(uint64(0x1000)))
			})
		})

		Context("jump instructions", func() {
			It("should execute JAL", func() {
				// jal ra, +16
				loadWords(e, 0x1000, 0x010000EF)

				e.Step()

				Expect(e.RegFile().PC()).To(Equal(uint64(0x1010)))
				Expect(e.RegFile().ReadReg(1)).To(Equal(uint64(0x1004)))
			})

			It("should clear the low target bit on JALR", func() {
				e.RegFile().WriteReg(5, 0x2001)
				loadWords(e, 0x1000, encodeJALR(1, 5, 4))

				e.Step()

				Expect(e.RegFile().PC()).To(Equal(uint64(0x2004)))
				Expect(e.RegFile().ReadReg(1)).To(Equal(uint64(0x1004)))
			})

			It("should let JALR write rd over its own source", func() {
				e.RegFile().WriteReg(5, 0x3000)
				loadWords(e, 0x1000, encodeJALR(5, 5, 0))

				e.Step()

				Expect(e.RegFile().PC()).To(Equal(uint64(0x3000)))
				Expect(e.RegFile().ReadReg(5)).To(Equal(uint64(0x1004)))
			})
		})

		Context("ECALL", func() {
			It("should handle the exit syscall", func() {
				e.RegFile().WriteReg(17, emu.SyscallExit)
				e.RegFile().WriteReg(10, 42)
				loadWords(e, 0x1000, instECALL)

				result := e.Step()

				Expect(result.Exited).To(BeTrue())
				Expect(result.ExitCode).To(Equal(int64(42)))
				Expect(e.Status()).To(Equal(emu.StatusHalted))
			})

			It("should handle the write syscall", func() {
				msg := []byte("Hello")
				Expect(e.Memory().WriteBytes(0x3000, msg)).To(Succeed())

				e.RegFile().WriteReg(17, emu.SyscallWrite)
				e.RegFile().WriteReg(10, 1)
				e.RegFile().WriteReg(11, 0x3000)
				e.RegFile().WriteReg(12, uint64(len(msg)))
				loadWords(e, 0x1000, instECALL)

				result := e.Step()

				Expect(result.Exited).To(BeFalse())
				Expect(stdoutBuf.String()).To(Equal("Hello"))
				Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(5)))
			})
		})

		Context("illegal instructions", func() {
			It("should trap instead of ending the run", func() {
				loadWords(e, 0x1000, 0x00000000)

				result := e.Step()

				Expect(result.Err).To(BeNil())
				Expect(e.Traps().Trapped()).To(BeTrue())

				csrs := e.CSRs().Snapshot()
				Expect(csrs[emu.CsrMcause]).To(Equal(uint64(emu.CauseIllegalInstruction)))
				Expect(csrs[emu.CsrMepc]).To(Equal(uint64(0x1000)))
				Expect(e.RegFile().PC()).To(Equal(uint64(0))) // default vector
			})
		})
	})

	Describe("Run", func() {
		It("should execute until exit syscall", func() {
			program := buildProgram(
				encodeADDI(17, 0, 93),
				encodeADDI(10, 0, 42),
				instECALL,
			)
			Expect(e.LoadProgram(0x1000, program)).To(Succeed())

			exitCode := e.Run()

			Expect(exitCode).To(Equal(int64(42)))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should execute a simple computation before exit", func() {
			program := buildProgram(
				encodeADDI(10, 0, 10),
				encodeADDI(5, 0, 5),
				encodeADD(10, 10, 5),
				encodeADDI(17, 0, 93),
				instECALL,
			)
			Expect(e.LoadProgram(0x1000, program)).To(Succeed())

			exitCode := e.Run()

			Expect(exitCode).To(Equal(int64(15)))
		})

		It("should handle branches in a loop", func() {
			program := buildProgram(
				encodeADDI(5, 0, 3),
				encodeADDI(5, 5, -1),
				encodeBNE(5, 0, -4),
				encodeADDI(17, 0, 93),
				encodeADDI(10, 0, 0),
				instECALL,
			)
			Expect(e.LoadProgram(0x1000, program)).To(Succeed())

			exitCode := e.Run()

			Expect(exitCode).To(Equal(int64(0)))
			Expect(e.InstructionCount()).To(Equal(uint64(10)))
		})

		It("should write output during execution", func() {
			Expect(e.Memory().WriteBytes(0x3000, []byte("Hi"))).To(Succeed())

			program := buildProgram(
				encodeADDI(17, 0, 64),
				encodeADDI(10, 0, 1),
				encodeLUI(11, 3), // a1 = 0x3000
				encodeADDI(12, 0, 2),
				instECALL,
				encodeADDI(17, 0, 93),
				encodeADDI(10, 0, 0),
				instECALL,
			)
			Expect(e.LoadProgram(0x1000, program)).To(Succeed())

			exitCode := e.Run()

			Expect(exitCode).To(Equal(int64(0)))
			Expect(stdoutBuf.String()).To(Equal("Hi"))
		})

		It("should stop when the instruction budget runs out", func() {
			stderrBuf := &bytes.Buffer{}
			e = newEmulator(
				emu.WithStderr(stderrBuf),
				emu.WithMaxInstructions(10),
			)
			// jal x0, 0 spins forever
			Expect(e.LoadProgram(0x1000, uint32ToBytes(0x0000006F))).To(Succeed())

			exitCode := e.Run()

			Expect(exitCode).To(Equal(int64(-1)))
			Expect(stderrBuf.String()).To(ContainSubstring("max instructions"))
			Expect(e.InstructionCount()).To(Equal(uint64(10)))
		})

		It("should return when an observer requests a stop", func() {
			s := &stopper{after: 5}
			s.e = e
			e.AddObserver(s)
			Expect(e.LoadProgram(0x1000, uint32ToBytes(0x0000006F))).To(Succeed())

			exitCode := e.Run()

			Expect(exitCode).To(Equal(int64(0)))
			Expect(e.Status()).To(Equal(emu.StatusRunning))
			Expect(s.seen).To(Equal(5))
		})
	})

	Describe("stepping after termination", func() {
		It("should keep returning the exit result", func() {
			program := buildProgram(
				encodeADDI(17, 0, 93),
				encodeADDI(10, 0, 7),
				instECALL,
			)
			Expect(e.LoadProgram(0x1000, program)).To(Succeed())
			e.Run()

			for i := 0; i < 3; i++ {
				result := e.Step()
				Expect(result.Exited).To(BeTrue())
				Expect(result.ExitCode).To(Equal(int64(7)))
			}
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})
	})

	Describe("Reset", func() {
		It("should restore the initial state", func() {
			program := buildProgram(
				encodeADDI(17, 0, 93),
				encodeADDI(10, 0, 1),
				instECALL,
			)
			Expect(e.LoadProgram(0x1000, program)).To(Succeed())
			e.Run()

			e.Reset()

			Expect(e.Status()).To(Equal(emu.StatusRunning))
			Expect(e.RegFile().PC()).To(Equal(uint64(0)))
			Expect(e.RegFile().ReadReg(17)).To(Equal(uint64(0)))
			Expect(e.InstructionCount()).To(Equal(uint64(0)))

			v, fault := e.Memory().Read32(0x1000)
			Expect(fault).To(BeNil())
			Expect(v).To(Equal(uint32(0)))
		})
	})

	Describe("WithStackPointer option", func() {
		It("should set the initial stack pointer", func() {
			spValue := uint64(0x000F_FF00)
			e = newEmulator(emu.WithStackPointer(spValue))

			Expect(e.RegFile().ReadReg(2)).To(Equal(spValue))
		})
	})

	Describe("Stats", func() {
		It("should count instructions, cycles, and memory accesses", func() {
			e.RegFile().WriteReg(5, 0x3000)
			program := buildProgram(
				encodeSW(5, 5, 0),
				encodeLW(6, 5, 0),
				encodeADDI(17, 0, 93),
				instECALL,
			)
			Expect(e.LoadProgram(0x1000, program)).To(Succeed())
			e.Run()

			stats := e.Stats()
			Expect(stats.Instructions).To(Equal(uint64(4)))
			Expect(stats.Cycles).To(Equal(uint64(4)))
			Expect(stats.Traps).To(Equal(uint64(0)))
			Expect(stats.MemReads).To(Equal(uint64(1)))
			Expect(stats.MemWrites).To(Equal(uint64(1)))
		})

		It("should count traps without retiring the faulting instruction", func() {
			loadWords(e, 0x1000, 0x00000000)

			e.Step()

			stats := e.Stats()
			Expect(stats.Traps).To(Equal(uint64(1)))
			Expect(stats.Instructions).To(Equal(uint64(0)))
			Expect(stats.Cycles).To(Equal(uint64(1)))
		})
	})

	Describe("Snapshot", func() {
		It("should capture registers, PC, and CSRs", func() {
			e.RegFile().WriteReg(5, 32)
			loadWords(e, 0x1000, 0x00A28293)
			e.Step()

			snap := e.Snapshot()

			Expect(snap.PC).To(Equal(uint64(0x1004)))
			Expect(snap.Regs[5]).To(Equal(uint64(42)))
			Expect(snap.Status).To(Equal(emu.StatusRunning))
			Expect(snap.Priv).To(Equal(emu.PrivMachine))
			Expect(snap.Trapped).To(BeFalse())
			Expect(snap.CSRs).To(HaveKey(emu.CsrMstatus))
			Expect(snap.CSRs[emu.CsrInstret]).To(Equal(uint64(1)))
		})
	})

	Describe("Observer", func() {
		It("should see step, trap, and halt events", func() {
			r := &recorder{}
			e = newEmulator(emu.WithObserver(r))

			program := buildProgram(
				encodeADDI(5, 0, 1),
				0x00000000, // illegal, traps to vector 0
			)
			Expect(e.LoadProgram(0x0, program)).To(Succeed())

			e.Step() // addi retires
			e.Step() // illegal word traps

			Expect(r.steps).To(Equal([]uint64{0x0}))
			Expect(r.traps).To(Equal([]emu.Cause{emu.CauseIllegalInstruction}))
			Expect(r.halts).To(BeEmpty())
		})

		It("should see the halt event on exit", func() {
			r := &recorder{}
			e = newEmulator(emu.WithObserver(r))

			program := buildProgram(
				encodeADDI(17, 0, 93),
				encodeADDI(10, 0, 3),
				instECALL,
			)
			Expect(e.LoadProgram(0x1000, program)).To(Succeed())
			e.Run()

			Expect(r.halts).To(Equal([]int64{3}))
			Expect(r.steps).To(HaveLen(3))
		})
	})
})

var _ = Describe("Emulator on RV32", func() {
	var e *emu.Emulator

	BeforeEach(func() {
		cfg := emu.DefaultConfig()
		cfg.XLen = 32
		cfg.MemoryBase = 0
		cfg.MemorySize = 1 << 20
		e = emu.NewEmulator(emu.WithConfig(cfg))
	})

	It("should place the LUI immediate without sign extension beyond 32 bits", func() {
		// lui a0, 0xABCDE
		loadWords(e, 0x1000, 0xABCDE537)

		e.Step()

		Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(0xABCDE000)))
	})

	It("should wrap arithmetic at 32 bits", func() {
		e.RegFile().WriteReg(5, 0xFFFF_FFFF)
		loadWords(e, 0x1000, encodeADDI(6, 5, 1))

		e.Step()

		Expect(e.RegFile().ReadReg(6)).To(Equal(uint64(0)))
	})

	It("should shift arithmetically at the 32-bit width", func() {
		// srai ra, sp, 3
		e.RegFile().WriteReg(2, 0x8000_0000)
		loadWords(e, 0x1000, 0x40315093)

		e.Step()

		Expect(e.RegFile().ReadReg(1)).To(Equal(uint64(0xF000_0000)))
	})

	It("should reject RV64-only instructions", func() {
		loadWords(e, 0x1000, encodeLD(10, 5, 0))

		e.Step()

		Expect(e.CSRs().Snapshot()[emu.CsrMcause]).
			To(Equal(uint64(emu.CauseIllegalInstruction)))
	})
})

// recorder captures observer events for assertions.
type recorder struct {
	steps []uint64
	traps []emu.Cause
	halts []int64
}

func (r *recorder) Step(pc uint64, word uint32) { r.steps = append(r.steps, pc) }
func (r *recorder) Trap(cause emu.Cause, pc, tval uint64) {
	r.traps = append(r.traps, cause)
}
func (r *recorder) Halt(exitCode int64) { r.halts = append(r.halts, exitCode) }

// stopper requests a cooperative stop after a fixed number of retired
// instructions.
type stopper struct {
	e     *emu.Emulator
	after int
	seen  int
}

func (s *stopper) Step(pc uint64, word uint32) {
	s.seen++
	if s.seen >= s.after {
		s.e.Stop()
	}
}
func (s *stopper) Trap(cause emu.Cause, pc, tval uint64) {}
func (s *stopper) Halt(exitCode int64)                   {}

// Helper functions to encode RISC-V instructions.

func uint32ToBytes(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func buildProgram(words ...uint32) []byte {
	var program []byte
	for _, w := range words {
		program = append(program, uint32ToBytes(w)...)
	}
	return program
}

func loadWords(e *emu.Emulator, entry uint64, words ...uint32) {
	ExpectWithOffset(1, e.LoadProgram(entry, buildProgram(words...))).To(Succeed())
}

const (
	instNOP    uint32 = 0x00000013
	instECALL  uint32 = 0x00000073
	instEBREAK uint32 = 0x00100073
	instMRET   uint32 = 0x30200073
)

func encodeRType(opcode, funct3, funct7 uint32, rd, rs1, rs2 uint8) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		funct3<<12 | uint32(rd)<<7 | opcode
}

func encodeIType(opcode, funct3 uint32, rd, rs1 uint8, imm int32) uint32 {
	return uint32(imm)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func encodeSType(funct3 uint32, rs1, rs2 uint8, offset int32) uint32 {
	imm := uint32(offset)
	return (imm>>5&0x7F)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		funct3<<12 | (imm&0x1F)<<7 | 0x23
}

func encodeBType(funct3 uint32, rs1, rs2 uint8, offset int32) uint32 {
	imm := uint32(offset)
	return (imm>>12&0x1)<<31 | (imm>>5&0x3F)<<25 | uint32(rs2)<<20 |
		uint32(rs1)<<15 | funct3<<12 | (imm>>1&0xF)<<8 | (imm>>11&0x1)<<7 | 0x63
}

func encodeUType(opcode uint32, rd uint8, imm20 uint32) uint32 {
	return imm20<<12 | uint32(rd)<<7 | opcode
}

func encodeCSROp(funct3 uint32, rd, rs1 uint8, csr uint16) uint32 {
	return uint32(csr)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | 0x73
}

func encodeADDI(rd, rs1 uint8, imm int32) uint32  { return encodeIType(0x13, 0, rd, rs1, imm) }
func encodeADDIW(rd, rs1 uint8, imm int32) uint32 { return encodeIType(0x1B, 0, rd, rs1, imm) }
func encodeADD(rd, rs1, rs2 uint8) uint32         { return encodeRType(0x33, 0, 0, rd, rs1, rs2) }
func encodeSUB(rd, rs1, rs2 uint8) uint32         { return encodeRType(0x33, 0, 0x20, rd, rs1, rs2) }
func encodeLUI(rd uint8, imm20 uint32) uint32     { return encodeUType(0x37, rd, imm20) }
func encodeAUIPC(rd uint8, imm20 uint32) uint32   { return encodeUType(0x17, rd, imm20) }

func encodeLB(rd, rs1 uint8, offset int32) uint32  { return encodeIType(0x03, 0, rd, rs1, offset) }
func encodeLW(rd, rs1 uint8, offset int32) uint32  { return encodeIType(0x03, 2, rd, rs1, offset) }
func encodeLD(rd, rs1 uint8, offset int32) uint32  { return encodeIType(0x03, 3, rd, rs1, offset) }
func encodeLBU(rd, rs1 uint8, offset int32) uint32 { return encodeIType(0x03, 4, rd, rs1, offset) }

func encodeSW(rs1, rs2 uint8, offset int32) uint32 { return encodeSType(2, rs1, rs2, offset) }
func encodeSD(rs1, rs2 uint8, offset int32) uint32 { return encodeSType(3, rs1, rs2, offset) }

func encodeBNE(rs1, rs2 uint8, offset int32) uint32  { return encodeBType(1, rs1, rs2, offset) }
func encodeBLT(rs1, rs2 uint8, offset int32) uint32  { return encodeBType(4, rs1, rs2, offset) }
func encodeBLTU(rs1, rs2 uint8, offset int32) uint32 { return encodeBType(6, rs1, rs2, offset) }

func encodeJALR(rd, rs1 uint8, offset int32) uint32 { return encodeIType(0x67, 0, rd, rs1, offset) }

func encodeCSRRW(rd, rs1 uint8, csr uint16) uint32   { return encodeCSROp(1, rd, rs1, csr) }
func encodeCSRRS(rd, rs1 uint8, csr uint16) uint32   { return encodeCSROp(2, rd, rs1, csr) }
func encodeCSRRC(rd, rs1 uint8, csr uint16) uint32   { return encodeCSROp(3, rd, rs1, csr) }
func encodeCSRRWI(rd, zimm uint8, csr uint16) uint32 { return encodeCSROp(5, rd, zimm, csr) }
