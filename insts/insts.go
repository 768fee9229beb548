// Package insts provides RISC-V instruction definitions and decoding.
//
// This package implements decoding of RV32I/RV64I machine code into
// structured instruction representations. Decoding is table-driven: every
// supported opcode/funct combination is a row in a match table, so enabling
// an extension (such as M) adds rows rather than scattering new branches
// through the execution logic.
//
// Usage:
//
//	decoder := insts.NewDecoder(insts.XLen64, insts.WithM())
//	inst, err := decoder.Decode(0x00A28293) // addi t0, t0, 10
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts

import "fmt"

// Op represents a RISC-V operation.
type Op uint16

// RV32I/RV64I base integer operations, Zicsr, and the M extension.
const (
	OpUnknown Op = iota

	// Upper-immediate and jumps
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	// Conditional branches
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// Loads
	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU

	// Stores
	OpSB
	OpSH
	OpSW
	OpSD

	// Integer register-immediate
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	// Integer register-register
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	// RV64I word-width forms
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	// Memory ordering
	OpFENCE

	// System
	OpECALL
	OpEBREAK
	OpMRET
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// M extension
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW
)

var opNames = map[Op]string{
	OpLUI: "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge",
	OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLD: "ld",
	OpLBU: "lbu", OpLHU: "lhu", OpLWU: "lwu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw", OpSD: "sd",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori",
	OpORI: "ori", OpANDI: "andi", OpSLLI: "slli", OpSRLI: "srli",
	OpSRAI: "srai",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt",
	OpSLTU: "sltu", OpXOR: "xor", OpSRL: "srl", OpSRA: "sra",
	OpOR: "or", OpAND: "and",
	OpADDIW: "addiw", OpSLLIW: "slliw", OpSRLIW: "srliw", OpSRAIW: "sraiw",
	OpADDW: "addw", OpSUBW: "subw", OpSLLW: "sllw", OpSRLW: "srlw",
	OpSRAW: "sraw",
	OpFENCE: "fence",
	OpECALL: "ecall", OpEBREAK: "ebreak", OpMRET: "mret",
	OpCSRRW: "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpMULW: "mulw", OpDIVW: "divw", OpDIVUW: "divuw", OpREMW: "remw",
	OpREMUW: "remuw",
}

// IsLoad reports whether the operation reads data memory. The load
// operations form one contiguous block of the enumeration.
func (o Op) IsLoad() bool {
	return o >= OpLB && o <= OpLWU
}

// String returns the assembly mnemonic for the operation.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// Format represents one of the RISC-V instruction encoding formats.
type Format uint8

// The six base encoding formats plus the SYSTEM encoding.
const (
	FormatUnknown Format = iota
	FormatR             // register-register
	FormatI             // register-immediate, loads, JALR, FENCE
	FormatS             // stores
	FormatB             // conditional branches
	FormatU             // upper immediate
	FormatJ             // JAL
	FormatSystem        // ECALL/EBREAK/MRET/CSR
)

var formatNames = [...]string{
	FormatUnknown: "unknown",
	FormatR:       "R",
	FormatI:       "I",
	FormatS:       "S",
	FormatB:       "B",
	FormatU:       "U",
	FormatJ:       "J",
	FormatSystem:  "system",
}

// String returns the conventional name of the format.
func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// Instruction represents a decoded RISC-V instruction.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register (the zimm field for CSR immediate forms)
	Rs2 uint8 // Second source register

	// Imm is the sign-extended immediate per the encoding format. For
	// shift-immediate instructions the shift amount occupies its low bits.
	Imm int64

	// CSR is the zero-extended top-12 immediate field. It is the CSR
	// address for Zicsr instructions.
	CSR uint16

	// Raw is the instruction word the record was decoded from.
	Raw uint32
}

// String renders the instruction in rough assembly syntax.
func (i *Instruction) String() string {
	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%v %s, %s, %s", i.Op, RegName(i.Rd), RegName(i.Rs1), RegName(i.Rs2))
	case FormatI:
		return fmt.Sprintf("%v %s, %s, %d", i.Op, RegName(i.Rd), RegName(i.Rs1), i.Imm)
	case FormatS:
		return fmt.Sprintf("%v %s, %d(%s)", i.Op, RegName(i.Rs2), i.Imm, RegName(i.Rs1))
	case FormatB:
		return fmt.Sprintf("%v %s, %s, %d", i.Op, RegName(i.Rs1), RegName(i.Rs2), i.Imm)
	case FormatU:
		return fmt.Sprintf("%v %s, 0x%x", i.Op, RegName(i.Rd), uint32(i.Imm)>>12)
	case FormatJ:
		return fmt.Sprintf("%v %s, %d", i.Op, RegName(i.Rd), i.Imm)
	case FormatSystem:
		switch i.Op {
		case OpECALL, OpEBREAK, OpMRET:
			return i.Op.String()
		}
		return fmt.Sprintf("%v %s, %s, %s", i.Op, RegName(i.Rd), CSRName(i.CSR), RegName(i.Rs1))
	}
	return fmt.Sprintf("unknown (0x%08x)", i.Raw)
}

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of a general-purpose register.
func RegName(reg uint8) string {
	if reg < 32 {
		return regNames[reg]
	}
	return fmt.Sprintf("x%d", reg)
}

var csrNames = map[uint16]string{
	0x300: "mstatus",
	0x301: "misa",
	0x304: "mie",
	0x305: "mtvec",
	0x340: "mscratch",
	0x341: "mepc",
	0x342: "mcause",
	0x343: "mtval",
	0x344: "mip",
	0xC00: "cycle",
	0xC02: "instret",
	0xC80: "cycleh",
	0xC82: "instreth",
	0xF14: "mhartid",
}

// CSRName returns the conventional name of a CSR address, or the hex
// address for CSRs without one.
func CSRName(addr uint16) string {
	if name, ok := csrNames[addr]; ok {
		return name
	}
	return fmt.Sprintf("0x%03x", addr)
}
