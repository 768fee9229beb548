// Package emu provides functional RISC-V emulation.
package emu

import "github.com/hartlab/hartsim/insts"

// RegFile represents the RISC-V integer register file: 32 general
// purpose registers plus the program counter. Register x0 is hard-wired
// to zero, and every value is truncated to the register width on write.
type RegFile struct {
	x    [32]uint64
	pc   uint64
	xlen insts.XLen
}

// NewRegFile creates a register file of the given width with all
// registers zeroed.
func NewRegFile(xlen insts.XLen) *RegFile {
	return &RegFile{xlen: xlen}
}

// ReadReg reads a register. Register 0 always reads as zero.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.x[reg]
}

// WriteReg writes a register, truncating the value to the register
// width. Writes to register 0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.x[reg] = r.xlen.Trunc(value)
}

// PC returns the program counter.
func (r *RegFile) PC() uint64 {
	return r.pc
}

// SetPC sets the program counter, truncated to the register width.
func (r *RegFile) SetPC(pc uint64) {
	r.pc = r.xlen.Trunc(pc)
}

// XLen returns the register width.
func (r *RegFile) XLen() insts.XLen {
	return r.xlen
}

// Regs returns a copy of the 32 general purpose registers.
func (r *RegFile) Regs() [32]uint64 {
	return r.x
}
