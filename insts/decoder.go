// Package insts provides RISC-V instruction definitions and decoding.
package insts

import (
	"errors"
	"fmt"
)

// ErrIllegalInstruction reports an instruction word that matches no
// supported opcode/funct combination.
var ErrIllegalInstruction = errors.New("illegal instruction")

// Major opcodes (low 7 bits of the instruction word).
const (
	opcLoad    = 0x03
	opcMiscMem = 0x0F
	opcOpImm   = 0x13
	opcAUIPC   = 0x17
	opcOpImm32 = 0x1B
	opcStore   = 0x23
	opcOp      = 0x33
	opcLUI     = 0x37
	opcOp32    = 0x3B
	opcBranch  = 0x63
	opcJALR    = 0x67
	opcJAL     = 0x6F
	opcSystem  = 0x73
)

// Match masks. Each row matches word&mask == match.
const (
	maskOpcode = 0x0000007F // opcode only (U/J formats)
	maskF3     = 0x0000707F // opcode + funct3
	maskF7F3   = 0xFE00707F // opcode + funct3 + funct7
	maskF6F3   = 0xFC00707F // opcode + funct3 + funct6 (RV64 shift immediates)
	maskExact  = 0xFFFFFFFF // full-word system encodings
)

func m3(opc, funct3 uint32) uint32 {
	return opc | funct3<<12
}

func m73(opc, funct3, funct7 uint32) uint32 {
	return opc | funct3<<12 | funct7<<25
}

func m63(opc, funct3, funct6 uint32) uint32 {
	return opc | funct3<<12 | funct6<<26
}

// Extension identifies an optional ISA extension whose rows can be added
// to a decoder.
type Extension uint8

// Supported extensions. The zero value marks base-ISA rows.
const (
	extBase Extension = iota
	// ExtM is the integer multiply/divide extension.
	ExtM
)

// Register-width applicability of a row.
const (
	xlen32   = 1 << iota // valid on RV32
	xlen64               // valid on RV64
	xlenBoth = xlen32 | xlen64
)

// row is one entry of the decode table: a bit pattern and the operation
// it resolves to.
type row struct {
	op     Op
	format Format
	mask   uint32
	match  uint32
	xlens  uint8
	ext    Extension
}

// masterRows lists every instruction the decoder can produce. NewDecoder
// filters it by register width and enabled extensions.
var masterRows = []row{
	// Upper-immediate and jumps
	{op: OpLUI, format: FormatU, mask: maskOpcode, match: opcLUI, xlens: xlenBoth},
	{op: OpAUIPC, format: FormatU, mask: maskOpcode, match: opcAUIPC, xlens: xlenBoth},
	{op: OpJAL, format: FormatJ, mask: maskOpcode, match: opcJAL, xlens: xlenBoth},
	{op: OpJALR, format: FormatI, mask: maskF3, match: m3(opcJALR, 0), xlens: xlenBoth},

	// Conditional branches
	{op: OpBEQ, format: FormatB, mask: maskF3, match: m3(opcBranch, 0), xlens: xlenBoth},
	{op: OpBNE, format: FormatB, mask: maskF3, match: m3(opcBranch, 1), xlens: xlenBoth},
	{op: OpBLT, format: FormatB, mask: maskF3, match: m3(opcBranch, 4), xlens: xlenBoth},
	{op: OpBGE, format: FormatB, mask: maskF3, match: m3(opcBranch, 5), xlens: xlenBoth},
	{op: OpBLTU, format: FormatB, mask: maskF3, match: m3(opcBranch, 6), xlens: xlenBoth},
	{op: OpBGEU, format: FormatB, mask: maskF3, match: m3(opcBranch, 7), xlens: xlenBoth},

	// Loads
	{op: OpLB, format: FormatI, mask: maskF3, match: m3(opcLoad, 0), xlens: xlenBoth},
	{op: OpLH, format: FormatI, mask: maskF3, match: m3(opcLoad, 1), xlens: xlenBoth},
	{op: OpLW, format: FormatI, mask: maskF3, match: m3(opcLoad, 2), xlens: xlenBoth},
	{op: OpLD, format: FormatI, mask: maskF3, match: m3(opcLoad, 3), xlens: xlen64},
	{op: OpLBU, format: FormatI, mask: maskF3, match: m3(opcLoad, 4), xlens: xlenBoth},
	{op: OpLHU, format: FormatI, mask: maskF3, match: m3(opcLoad, 5), xlens: xlenBoth},
	{op: OpLWU, format: FormatI, mask: maskF3, match: m3(opcLoad, 6), xlens: xlen64},

	// Stores
	{op: OpSB, format: FormatS, mask: maskF3, match: m3(opcStore, 0), xlens: xlenBoth},
	{op: OpSH, format: FormatS, mask: maskF3, match: m3(opcStore, 1), xlens: xlenBoth},
	{op: OpSW, format: FormatS, mask: maskF3, match: m3(opcStore, 2), xlens: xlenBoth},
	{op: OpSD, format: FormatS, mask: maskF3, match: m3(opcStore, 3), xlens: xlen64},

	// Integer register-immediate
	{op: OpADDI, format: FormatI, mask: maskF3, match: m3(opcOpImm, 0), xlens: xlenBoth},
	{op: OpSLTI, format: FormatI, mask: maskF3, match: m3(opcOpImm, 2), xlens: xlenBoth},
	{op: OpSLTIU, format: FormatI, mask: maskF3, match: m3(opcOpImm, 3), xlens: xlenBoth},
	{op: OpXORI, format: FormatI, mask: maskF3, match: m3(opcOpImm, 4), xlens: xlenBoth},
	{op: OpORI, format: FormatI, mask: maskF3, match: m3(opcOpImm, 6), xlens: xlenBoth},
	{op: OpANDI, format: FormatI, mask: maskF3, match: m3(opcOpImm, 7), xlens: xlenBoth},

	// Shift immediates. RV32 fixes the full funct7 (5-bit shamt); RV64
	// frees bit 25 for a 6-bit shamt, leaving funct6.
	{op: OpSLLI, format: FormatI, mask: maskF7F3, match: m73(opcOpImm, 1, 0x00), xlens: xlen32},
	{op: OpSRLI, format: FormatI, mask: maskF7F3, match: m73(opcOpImm, 5, 0x00), xlens: xlen32},
	{op: OpSRAI, format: FormatI, mask: maskF7F3, match: m73(opcOpImm, 5, 0x20), xlens: xlen32},
	{op: OpSLLI, format: FormatI, mask: maskF6F3, match: m63(opcOpImm, 1, 0x00), xlens: xlen64},
	{op: OpSRLI, format: FormatI, mask: maskF6F3, match: m63(opcOpImm, 5, 0x00), xlens: xlen64},
	{op: OpSRAI, format: FormatI, mask: maskF6F3, match: m63(opcOpImm, 5, 0x10), xlens: xlen64},

	// RV64 word-width register-immediate
	{op: OpADDIW, format: FormatI, mask: maskF3, match: m3(opcOpImm32, 0), xlens: xlen64},
	{op: OpSLLIW, format: FormatI, mask: maskF7F3, match: m73(opcOpImm32, 1, 0x00), xlens: xlen64},
	{op: OpSRLIW, format: FormatI, mask: maskF7F3, match: m73(opcOpImm32, 5, 0x00), xlens: xlen64},
	{op: OpSRAIW, format: FormatI, mask: maskF7F3, match: m73(opcOpImm32, 5, 0x20), xlens: xlen64},

	// Integer register-register
	{op: OpADD, format: FormatR, mask: maskF7F3, match: m73(opcOp, 0, 0x00), xlens: xlenBoth},
	{op: OpSUB, format: FormatR, mask: maskF7F3, match: m73(opcOp, 0, 0x20), xlens: xlenBoth},
	{op: OpSLL, format: FormatR, mask: maskF7F3, match: m73(opcOp, 1, 0x00), xlens: xlenBoth},
	{op: OpSLT, format: FormatR, mask: maskF7F3, match: m73(opcOp, 2, 0x00), xlens: xlenBoth},
	{op: OpSLTU, format: FormatR, mask: maskF7F3, match: m73(opcOp, 3, 0x00), xlens: xlenBoth},
	{op: OpXOR, format: FormatR, mask: maskF7F3, match: m73(opcOp, 4, 0x00), xlens: xlenBoth},
	{op: OpSRL, format: FormatR, mask: maskF7F3, match: m73(opcOp, 5, 0x00), xlens: xlenBoth},
	{op: OpSRA, format: FormatR, mask: maskF7F3, match: m73(opcOp, 5, 0x20), xlens: xlenBoth},
	{op: OpOR, format: FormatR, mask: maskF7F3, match: m73(opcOp, 6, 0x00), xlens: xlenBoth},
	{op: OpAND, format: FormatR, mask: maskF7F3, match: m73(opcOp, 7, 0x00), xlens: xlenBoth},

	// RV64 word-width register-register
	{op: OpADDW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 0, 0x00), xlens: xlen64},
	{op: OpSUBW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 0, 0x20), xlens: xlen64},
	{op: OpSLLW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 1, 0x00), xlens: xlen64},
	{op: OpSRLW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 5, 0x00), xlens: xlen64},
	{op: OpSRAW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 5, 0x20), xlens: xlen64},

	// Memory ordering. Decoded but executed as a no-op: a single in-order
	// hart is always sequentially consistent with itself.
	{op: OpFENCE, format: FormatI, mask: maskF3, match: m3(opcMiscMem, 0), xlens: xlenBoth},

	// System
	{op: OpECALL, format: FormatSystem, mask: maskExact, match: 0x00000073, xlens: xlenBoth},
	{op: OpEBREAK, format: FormatSystem, mask: maskExact, match: 0x00100073, xlens: xlenBoth},
	{op: OpMRET, format: FormatSystem, mask: maskExact, match: 0x30200073, xlens: xlenBoth},
	{op: OpCSRRW, format: FormatSystem, mask: maskF3, match: m3(opcSystem, 1), xlens: xlenBoth},
	{op: OpCSRRS, format: FormatSystem, mask: maskF3, match: m3(opcSystem, 2), xlens: xlenBoth},
	{op: OpCSRRC, format: FormatSystem, mask: maskF3, match: m3(opcSystem, 3), xlens: xlenBoth},
	{op: OpCSRRWI, format: FormatSystem, mask: maskF3, match: m3(opcSystem, 5), xlens: xlenBoth},
	{op: OpCSRRSI, format: FormatSystem, mask: maskF3, match: m3(opcSystem, 6), xlens: xlenBoth},
	{op: OpCSRRCI, format: FormatSystem, mask: maskF3, match: m3(opcSystem, 7), xlens: xlenBoth},

	// M extension
	{op: OpMUL, format: FormatR, mask: maskF7F3, match: m73(opcOp, 0, 1), xlens: xlenBoth, ext: ExtM},
	{op: OpMULH, format: FormatR, mask: maskF7F3, match: m73(opcOp, 1, 1), xlens: xlenBoth, ext: ExtM},
	{op: OpMULHSU, format: FormatR, mask: maskF7F3, match: m73(opcOp, 2, 1), xlens: xlenBoth, ext: ExtM},
	{op: OpMULHU, format: FormatR, mask: maskF7F3, match: m73(opcOp, 3, 1), xlens: xlenBoth, ext: ExtM},
	{op: OpDIV, format: FormatR, mask: maskF7F3, match: m73(opcOp, 4, 1), xlens: xlenBoth, ext: ExtM},
	{op: OpDIVU, format: FormatR, mask: maskF7F3, match: m73(opcOp, 5, 1), xlens: xlenBoth, ext: ExtM},
	{op: OpREM, format: FormatR, mask: maskF7F3, match: m73(opcOp, 6, 1), xlens: xlenBoth, ext: ExtM},
	{op: OpREMU, format: FormatR, mask: maskF7F3, match: m73(opcOp, 7, 1), xlens: xlenBoth, ext: ExtM},
	{op: OpMULW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 0, 1), xlens: xlen64, ext: ExtM},
	{op: OpDIVW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 4, 1), xlens: xlen64, ext: ExtM},
	{op: OpDIVUW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 5, 1), xlens: xlen64, ext: ExtM},
	{op: OpREMW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 6, 1), xlens: xlen64, ext: ExtM},
	{op: OpREMUW, format: FormatR, mask: maskF7F3, match: m73(opcOp32, 7, 1), xlens: xlen64, ext: ExtM},
}

// Decoder decodes RISC-V machine code into instructions. A decoder is
// stateless after construction and safe for concurrent use.
type Decoder struct {
	xlen    XLen
	extM    bool
	buckets [128][]row
}

// DecoderOption is a functional option for configuring the Decoder.
type DecoderOption func(*Decoder)

// WithM enables the M (multiply/divide) extension rows.
func WithM() DecoderOption {
	return func(d *Decoder) {
		d.extM = true
	}
}

// NewDecoder creates a decoder for the given register width. Decoders
// built with XLen64 include the RV64-only rows; any other width selects
// the RV32 row set.
func NewDecoder(xlen XLen, opts ...DecoderOption) *Decoder {
	d := &Decoder{xlen: xlen}
	for _, opt := range opts {
		opt(d)
	}

	want := uint8(xlen32)
	if xlen == XLen64 {
		want = xlen64
	}
	for _, r := range masterRows {
		if r.xlens&want == 0 {
			continue
		}
		if r.ext == ExtM && !d.extM {
			continue
		}
		opc := r.match & maskOpcode
		d.buckets[opc] = append(d.buckets[opc], r)
	}

	return d
}

// XLen returns the register width the decoder was built for.
func (d *Decoder) XLen() XLen {
	return d.xlen
}

// Decode decodes a 32-bit RISC-V instruction word. Words that match no
// supported encoding return an error wrapping ErrIllegalInstruction.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	for i := range d.buckets[word&maskOpcode] {
		r := &d.buckets[word&maskOpcode][i]
		if word&r.mask == r.match {
			return decodeFields(r, word), nil
		}
	}
	return nil, fmt.Errorf("%w: 0x%08x", ErrIllegalInstruction, word)
}

// decodeFields extracts the operand fields at the matched row's
// format-specific bit offsets.
func decodeFields(r *row, word uint32) *Instruction {
	inst := &Instruction{Op: r.op, Format: r.format, Raw: word}

	switch r.format {
	case FormatR:
		inst.Rd = rd(word)
		inst.Rs1 = rs1(word)
		inst.Rs2 = rs2(word)
	case FormatI:
		inst.Rd = rd(word)
		inst.Rs1 = rs1(word)
		inst.Imm = immI(word)
	case FormatS:
		inst.Rs1 = rs1(word)
		inst.Rs2 = rs2(word)
		inst.Imm = immS(word)
	case FormatB:
		inst.Rs1 = rs1(word)
		inst.Rs2 = rs2(word)
		inst.Imm = immB(word)
	case FormatU:
		inst.Rd = rd(word)
		inst.Imm = immU(word)
	case FormatJ:
		inst.Rd = rd(word)
		inst.Imm = immJ(word)
	case FormatSystem:
		inst.Rd = rd(word)
		inst.Rs1 = rs1(word)
		inst.CSR = uint16(word >> 20)
	}

	return inst
}

func rd(word uint32) uint8 {
	return uint8((word >> 7) & 0x1F)
}

func rs1(word uint32) uint8 {
	return uint8((word >> 15) & 0x1F)
}

func rs2(word uint32) uint8 {
	return uint8((word >> 20) & 0x1F)
}

// immI extracts the I-type immediate: bits 31:20, sign-extended.
func immI(word uint32) int64 {
	return int64(int32(word) >> 20)
}

// immS extracts the S-type immediate: bits 31:25 and 11:7 reassembled,
// sign-extended.
func immS(word uint32) int64 {
	return int64(int32(word)>>25)<<5 | int64((word>>7)&0x1F)
}

// immB extracts the B-type immediate: bits 31|7|30:25|11:8 followed by an
// implicit zero, sign-extended to 13 bits.
func immB(word uint32) int64 {
	return int64(int32(word)>>31)<<12 |
		int64((word>>7)&0x1)<<11 |
		int64((word>>25)&0x3F)<<5 |
		int64((word>>8)&0xF)<<1
}

// immU extracts the U-type immediate: bits 31:12 in place, low 12 bits
// zero, sign-extended.
func immU(word uint32) int64 {
	return int64(int32(word & 0xFFFFF000))
}

// immJ extracts the J-type immediate: bits 31|19:12|20|30:21 followed by
// an implicit zero, sign-extended to 21 bits.
func immJ(word uint32) int64 {
	return int64(int32(word)>>31)<<20 |
		int64((word>>12)&0xFF)<<12 |
		int64((word>>20)&0x1)<<11 |
		int64((word>>21)&0x3FF)<<1
}
