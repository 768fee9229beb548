// Package emu provides functional RISC-V emulation.
package emu

import "github.com/hartlab/hartsim/insts"

// BranchUnit evaluates the RISC-V conditional branch predicates. The
// branch instructions compare two registers directly; there is no flags
// register.
type BranchUnit struct {
	regFile *RegFile
	xlen    insts.XLen
}

// NewBranchUnit creates a new BranchUnit connected to the given
// register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile, xlen: regFile.XLen()}
}

// Taken reports whether the branch condition holds for the current
// register state.
func (b *BranchUnit) Taken(inst *insts.Instruction) bool {
	rs1 := b.regFile.ReadReg(inst.Rs1)
	rs2 := b.regFile.ReadReg(inst.Rs2)

	switch inst.Op {
	case insts.OpBEQ:
		return rs1 == rs2
	case insts.OpBNE:
		return rs1 != rs2
	case insts.OpBLT:
		return b.xlen.Signed(rs1) < b.xlen.Signed(rs2)
	case insts.OpBGE:
		return b.xlen.Signed(rs1) >= b.xlen.Signed(rs2)
	case insts.OpBLTU:
		return rs1 < rs2
	case insts.OpBGEU:
		return rs1 >= rs2
	}
	return false
}
