// Package emu provides functional RISC-V emulation.
package emu

// Stats aggregates the execution counters of a run.
type Stats struct {
	// Cycles is the number of simulation cycles, one per Step call
	// that found the emulator running.
	Cycles uint64

	// Instructions is the number of retired instructions. Instructions
	// that fault do not retire.
	Instructions uint64

	// Traps is the number of accepted trap entries.
	Traps uint64

	// MemReads and MemWrites count completed data memory accesses.
	// Instruction fetches are not included.
	MemReads  uint64
	MemWrites uint64
}
