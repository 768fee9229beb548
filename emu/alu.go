// Package emu provides functional RISC-V emulation.
package emu

import (
	"math"
	"math/bits"

	"github.com/hartlab/hartsim/insts"
)

// ALU implements the RISC-V integer computational instructions: the
// register-register and register-immediate operations, the upper
// immediates, and the M extension multiply and divide group.
type ALU struct {
	regFile *RegFile
	xlen    insts.XLen
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile, xlen: regFile.XLen()}
}

// Execute performs a computational instruction. pc is the address of
// the instruction, consumed by auipc. Results wrap modulo the register
// width; no operation in this group can fault.
func (a *ALU) Execute(inst *insts.Instruction, pc uint64) {
	rf := a.regFile
	rs1 := rf.ReadReg(inst.Rs1)
	rs2 := rf.ReadReg(inst.Rs2)
	imm := uint64(inst.Imm)

	var result uint64
	switch inst.Op {
	case insts.OpLUI:
		result = imm
	case insts.OpAUIPC:
		result = pc + imm

	case insts.OpADDI:
		result = rs1 + imm
	case insts.OpSLTI:
		result = boolToReg(a.xlen.Signed(rs1) < inst.Imm)
	case insts.OpSLTIU:
		// The immediate is sign-extended first, then compared unsigned.
		result = boolToReg(rs1 < a.xlen.Trunc(imm))
	case insts.OpXORI:
		result = rs1 ^ imm
	case insts.OpORI:
		result = rs1 | imm
	case insts.OpANDI:
		result = rs1 & imm
	case insts.OpSLLI:
		result = rs1 << (imm & a.xlen.ShiftMask())
	case insts.OpSRLI:
		result = rs1 >> (imm & a.xlen.ShiftMask())
	case insts.OpSRAI:
		result = uint64(a.xlen.Signed(rs1) >> (imm & a.xlen.ShiftMask()))

	case insts.OpADD:
		result = rs1 + rs2
	case insts.OpSUB:
		result = rs1 - rs2
	case insts.OpSLL:
		result = rs1 << (rs2 & a.xlen.ShiftMask())
	case insts.OpSLT:
		result = boolToReg(a.xlen.Signed(rs1) < a.xlen.Signed(rs2))
	case insts.OpSLTU:
		result = boolToReg(rs1 < rs2)
	case insts.OpXOR:
		result = rs1 ^ rs2
	case insts.OpSRL:
		result = rs1 >> (rs2 & a.xlen.ShiftMask())
	case insts.OpSRA:
		result = uint64(a.xlen.Signed(rs1) >> (rs2 & a.xlen.ShiftMask()))
	case insts.OpOR:
		result = rs1 | rs2
	case insts.OpAND:
		result = rs1 & rs2

	case insts.OpADDIW:
		result = sext32(rs1 + imm)
	case insts.OpSLLIW:
		result = sext32(uint64(uint32(rs1) << (imm & 0x1F)))
	case insts.OpSRLIW:
		result = sext32(uint64(uint32(rs1) >> (imm & 0x1F)))
	case insts.OpSRAIW:
		result = uint64(int64(int32(rs1) >> (imm & 0x1F)))
	case insts.OpADDW:
		result = sext32(rs1 + rs2)
	case insts.OpSUBW:
		result = sext32(rs1 - rs2)
	case insts.OpSLLW:
		result = sext32(uint64(uint32(rs1) << (rs2 & 0x1F)))
	case insts.OpSRLW:
		result = sext32(uint64(uint32(rs1) >> (rs2 & 0x1F)))
	case insts.OpSRAW:
		result = uint64(int64(int32(rs1) >> (rs2 & 0x1F)))

	case insts.OpMUL:
		result = rs1 * rs2
	case insts.OpMULH:
		result = a.mulh(rs1, rs2)
	case insts.OpMULHSU:
		result = a.mulhsu(rs1, rs2)
	case insts.OpMULHU:
		result = a.mulhu(rs1, rs2)
	case insts.OpDIV:
		result = a.div(rs1, rs2)
	case insts.OpDIVU:
		result = a.divu(rs1, rs2)
	case insts.OpREM:
		result = a.rem(rs1, rs2)
	case insts.OpREMU:
		result = a.remu(rs1, rs2)

	case insts.OpMULW:
		result = sext32(uint64(uint32(rs1) * uint32(rs2)))
	case insts.OpDIVW:
		result = divW(rs1, rs2)
	case insts.OpDIVUW:
		result = divuW(rs1, rs2)
	case insts.OpREMW:
		result = remW(rs1, rs2)
	case insts.OpREMUW:
		result = remuW(rs1, rs2)
	}

	rf.WriteReg(inst.Rd, result)
}

// mulh computes the upper half of the signed product.
func (a *ALU) mulh(x, y uint64) uint64 {
	if a.xlen == insts.XLen32 {
		return uint64(int64(int32(x)) * int64(int32(y)) >> 32)
	}
	hi, _ := bits.Mul64(x, y)
	// Correct the unsigned product for negative operands.
	if int64(x) < 0 {
		hi -= y
	}
	if int64(y) < 0 {
		hi -= x
	}
	return hi
}

// mulhsu computes the upper half of the signed-by-unsigned product.
func (a *ALU) mulhsu(x, y uint64) uint64 {
	if a.xlen == insts.XLen32 {
		return uint64(int64(int32(x)) * int64(uint32(y)) >> 32)
	}
	hi, _ := bits.Mul64(x, y)
	if int64(x) < 0 {
		hi -= y
	}
	return hi
}

// mulhu computes the upper half of the unsigned product.
func (a *ALU) mulhu(x, y uint64) uint64 {
	if a.xlen == insts.XLen32 {
		return (uint64(uint32(x)) * uint64(uint32(y))) >> 32
	}
	hi, _ := bits.Mul64(x, y)
	return hi
}

func (a *ALU) minSigned() int64 {
	if a.xlen == insts.XLen32 {
		return math.MinInt32
	}
	return math.MinInt64
}

// div computes the signed quotient. Division by zero yields all ones
// and the overflowing Min/-1 case yields the dividend, so division
// never faults.
func (a *ALU) div(x, y uint64) uint64 {
	sx, sy := a.xlen.Signed(x), a.xlen.Signed(y)
	switch {
	case sy == 0:
		return a.xlen.Mask()
	case sx == a.minSigned() && sy == -1:
		return uint64(sx)
	}
	return uint64(sx / sy)
}

// divu computes the unsigned quotient; division by zero yields all
// ones.
func (a *ALU) divu(x, y uint64) uint64 {
	if y == 0 {
		return a.xlen.Mask()
	}
	return x / y
}

// rem computes the signed remainder. Division by zero yields the
// dividend and the overflowing Min/-1 case yields zero.
func (a *ALU) rem(x, y uint64) uint64 {
	sx, sy := a.xlen.Signed(x), a.xlen.Signed(y)
	switch {
	case sy == 0:
		return uint64(sx)
	case sx == a.minSigned() && sy == -1:
		return 0
	}
	return uint64(sx % sy)
}

// remu computes the unsigned remainder; division by zero yields the
// dividend.
func (a *ALU) remu(x, y uint64) uint64 {
	if y == 0 {
		return x
	}
	return x % y
}

func divW(x, y uint64) uint64 {
	sx, sy := int32(x), int32(y)
	switch {
	case sy == 0:
		return ^uint64(0)
	case sx == math.MinInt32 && sy == -1:
		return uint64(int64(sx))
	}
	return uint64(int64(sx / sy))
}

func divuW(x, y uint64) uint64 {
	ux, uy := uint32(x), uint32(y)
	if uy == 0 {
		return ^uint64(0)
	}
	return sext32(uint64(ux / uy))
}

func remW(x, y uint64) uint64 {
	sx, sy := int32(x), int32(y)
	switch {
	case sy == 0:
		return uint64(int64(sx))
	case sx == math.MinInt32 && sy == -1:
		return 0
	}
	return uint64(int64(sx % sy))
}

func remuW(x, y uint64) uint64 {
	ux, uy := uint32(x), uint32(y)
	if uy == 0 {
		return sext32(uint64(ux))
	}
	return sext32(uint64(ux % uy))
}

// sext32 sign-extends the low 32 bits of v to 64 bits.
func sext32(v uint64) uint64 {
	return uint64(int64(int32(v)))
}

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
