// Package emu provides functional RISC-V emulation.
package emu

import "github.com/hartlab/hartsim/insts"

// LoadStoreUnit executes the RISC-V memory access instructions. The
// effective address is rs1 plus the sign-extended offset, wrapped to
// the register width. Faults from the memory propagate to the caller
// with the register file untouched.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
	xlen    insts.XLen
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
		xlen:    regFile.XLen(),
	}
}

// ExecuteLoad performs a load: rd = extend(mem[rs1 + offset]). The
// signed variants sign-extend the loaded value to the register width,
// the unsigned variants zero-extend.
func (lsu *LoadStoreUnit) ExecuteLoad(inst *insts.Instruction) *Fault {
	addr := lsu.xlen.Trunc(lsu.regFile.ReadReg(inst.Rs1) + uint64(inst.Imm))

	value, fault := lsu.memory.Read(addr, loadWidth(inst.Op))
	if fault != nil {
		return fault
	}

	switch inst.Op {
	case insts.OpLB:
		value = uint64(int64(int8(value)))
	case insts.OpLH:
		value = uint64(int64(int16(value)))
	case insts.OpLW:
		value = sext32(value)
	}

	lsu.regFile.WriteReg(inst.Rd, value)
	return nil
}

// ExecuteStore performs a store: mem[rs1 + offset] = low bytes of rs2.
func (lsu *LoadStoreUnit) ExecuteStore(inst *insts.Instruction) *Fault {
	addr := lsu.xlen.Trunc(lsu.regFile.ReadReg(inst.Rs1) + uint64(inst.Imm))

	var width int
	switch inst.Op {
	case insts.OpSB:
		width = 1
	case insts.OpSH:
		width = 2
	case insts.OpSW:
		width = 4
	default:
		width = 8
	}

	return lsu.memory.Write(addr, width, lsu.regFile.ReadReg(inst.Rs2))
}

func loadWidth(op insts.Op) int {
	switch op {
	case insts.OpLB, insts.OpLBU:
		return 1
	case insts.OpLH, insts.OpLHU:
		return 2
	case insts.OpLW, insts.OpLWU:
		return 4
	default:
		return 8
	}
}
