// Package benchmarks provides guest microbenchmark programs and a
// harness measuring hartsim's emulation throughput.
package benchmarks

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hartlab/hartsim/emu"
)

// ProgramAddr is the guest address benchmark programs are loaded at.
const ProgramAddr = 0x1000

// StackTop is the initial stack pointer for benchmark runs.
const StackTop = 0x10000

// Result holds the measurements for a single benchmark run.
type Result struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark exercises
	Description string `json:"description"`

	// Instructions is the number of retired instructions
	Instructions uint64 `json:"instructions"`

	// Traps is the number of traps taken during the run
	Traps uint64 `json:"traps"`

	// MemReads/MemWrites count guest memory accesses
	MemReads  uint64 `json:"mem_reads"`
	MemWrites uint64 `json:"mem_writes"`

	// ExitCode is the guest program's exit code
	ExitCode int64 `json:"exit_code"`

	// WallTime is the host time the run took
	WallTime time.Duration `json:"wall_time_ns"`

	// MIPS is millions of retired instructions per wall-clock second
	MIPS float64 `json:"mips"`

	// Error is set when the program could not be placed or run
	Error string `json:"error,omitempty"`
}

// Benchmark defines a single guest benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark exercises
	Description string

	// Setup prepares guest state (registers, data buffers) before the
	// program starts
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the RISC-V machine code to execute
	Program []byte

	// ExpectedExit is the expected exit code (for validation)
	ExpectedExit int64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Emulator is the guest machine configuration benchmarks run on.
	Emulator emu.Config

	// MaxInstructions bounds each run so a broken benchmark cannot
	// hang the harness. Zero means unlimited.
	MaxInstructions uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables per-run progress output
	Verbose bool
}

// DefaultConfig returns the default harness configuration: RV64IM with
// 1 MiB of RAM based at zero.
func DefaultConfig() HarnessConfig {
	cfg := emu.DefaultConfig()
	cfg.MemoryBase = 0
	cfg.MemorySize = 1 << 20
	return HarnessConfig{
		Emulator:        cfg,
		MaxInstructions: 10_000_000,
		Output:          os.Stdout,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []Result {
	results := make([]Result, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "running %s...\n", bench.Name)
		}
		results = append(results, h.runBenchmark(bench))
	}

	return results
}

// runBenchmark executes a single benchmark on a fresh emulator.
func (h *Harness) runBenchmark(bench Benchmark) Result {
	result := Result{Name: bench.Name, Description: bench.Description}

	emulator := emu.NewEmulator(
		emu.WithConfig(h.config.Emulator),
		emu.WithStackPointer(StackTop),
		emu.WithMaxInstructions(h.config.MaxInstructions),
		emu.WithStdout(h.config.Output),
		emu.WithStderr(h.config.Output),
	)

	if bench.Setup != nil {
		bench.Setup(emulator.RegFile(), emulator.Memory())
	}

	if err := emulator.LoadProgram(ProgramAddr, bench.Program); err != nil {
		result.Error = err.Error()
		result.ExitCode = -1
		return result
	}

	start := time.Now()
	exitCode := emulator.Run()
	wallTime := time.Since(start)

	stats := emulator.Stats()
	result.Instructions = stats.Instructions
	result.Traps = stats.Traps
	result.MemReads = stats.MemReads
	result.MemWrites = stats.MemWrites
	result.ExitCode = exitCode
	result.WallTime = wallTime
	if secs := wallTime.Seconds(); secs > 0 {
		result.MIPS = float64(stats.Instructions) / secs / 1e6
	}
	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Hartsim Emulation Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
			_, _ = fmt.Fprintln(h.config.Output, "")
			continue
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Exit Code: %d\n", r.ExitCode)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.Instructions)
		_, _ = fmt.Fprintf(h.config.Output, "  Traps Taken:          %d\n", r.Traps)
		_, _ = fmt.Fprintf(h.config.Output, "  Memory Reads:         %d\n", r.MemReads)
		_, _ = fmt.Fprintf(h.config.Output, "  Memory Writes:        %d\n", r.MemWrites)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time:            %v\n", r.WallTime)
		_, _ = fmt.Fprintf(h.config.Output, "  Throughput:           %.2f MIPS\n", r.MIPS)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,instructions,traps,mem_reads,mem_writes,exit_code,wall_time_ns,mips")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%d,%.3f\n",
			r.Name,
			r.Instructions,
			r.Traps,
			r.MemReads,
			r.MemWrites,
			r.ExitCode,
			r.WallTime.Nanoseconds(),
			r.MIPS,
		)
	}
}

// Report is the complete JSON output format for benchmark results.
type Report struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []Result `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata describes the run configuration.
type ReportMetadata struct {
	// Timestamp when the benchmarks were run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// XLen is the register width benchmarks ran under
	XLen int `json:"xlen"`

	// EnableM reports whether the M extension was available
	EnableM bool `json:"enable_m"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalInstructions is the sum of retired instructions
	TotalInstructions uint64 `json:"total_instructions"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`

	// AverageMIPS is the aggregate throughput
	AverageMIPS float64 `json:"average_mips"`
}

// PrintJSON outputs benchmark results in JSON format for automated
// comparison across simulator versions.
func (h *Harness) PrintJSON(results []Result) error {
	var totalInstructions uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalInstructions += r.Instructions
		totalWallTime += r.WallTime
	}

	avgMIPS := float64(0)
	if secs := totalWallTime.Seconds(); secs > 0 {
		avgMIPS = float64(totalInstructions) / secs / 1e6
	}

	report := Report{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "0.3.0",
			XLen:      h.config.Emulator.XLen,
			EnableM:   h.config.Emulator.EnableM,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalInstructions: totalInstructions,
			TotalWallTime:     totalWallTime,
			AverageMIPS:       avgMIPS,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// Helper functions for building RISC-V guest programs

// BuildProgram assembles instruction words into a little-endian byte
// image.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, 4*len(instrs))
	for i, inst := range instrs {
		binary.LittleEndian.PutUint32(program[4*i:], inst)
	}
	return program
}

// Instruction encoding helpers, one per mnemonic the benchmarks use.

// EncodeADDI encodes addi rd, rs1, imm (also serves as li and mv).
func EncodeADDI(rd, rs1 uint8, imm int32) uint32 {
	return uint32(imm&0xFFF)<<20 | uint32(rs1&0x1F)<<15 | uint32(rd&0x1F)<<7 | 0x13
}

// EncodeADD encodes add rd, rs1, rs2.
func EncodeADD(rd, rs1, rs2 uint8) uint32 {
	return uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 | uint32(rd&0x1F)<<7 | 0x33
}

// EncodeSUB encodes sub rd, rs1, rs2.
func EncodeSUB(rd, rs1, rs2 uint8) uint32 {
	return 0x20<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(rd&0x1F)<<7 | 0x33
}

// EncodeMUL encodes mul rd, rs1, rs2 (M extension).
func EncodeMUL(rd, rs1, rs2 uint8) uint32 {
	return 1<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(rd&0x1F)<<7 | 0x33
}

// EncodeLD encodes ld rd, offset(rs1).
func EncodeLD(rd, rs1 uint8, offset int32) uint32 {
	return uint32(offset&0xFFF)<<20 | uint32(rs1&0x1F)<<15 | 3<<12 |
		uint32(rd&0x1F)<<7 | 0x03
}

// EncodeSD encodes sd rs2, offset(rs1).
func EncodeSD(rs2, rs1 uint8, offset int32) uint32 {
	return uint32((offset>>5)&0x7F)<<25 | uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 | 3<<12 | uint32(offset&0x1F)<<7 | 0x23
}

// EncodeBEQ encodes beq rs1, rs2, offset.
func EncodeBEQ(rs1, rs2 uint8, offset int32) uint32 {
	return encodeBranch(0, rs1, rs2, offset)
}

// EncodeBNE encodes bne rs1, rs2, offset.
func EncodeBNE(rs1, rs2 uint8, offset int32) uint32 {
	return encodeBranch(1, rs1, rs2, offset)
}

func encodeBranch(funct3 uint32, rs1, rs2 uint8, offset int32) uint32 {
	return uint32((offset>>12)&0x1)<<31 | uint32((offset>>5)&0x3F)<<25 |
		uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 | funct3<<12 |
		uint32((offset>>1)&0xF)<<8 | uint32((offset>>11)&0x1)<<7 | 0x63
}

// EncodeJAL encodes jal rd, offset.
func EncodeJAL(rd uint8, offset int32) uint32 {
	return uint32((offset>>20)&0x1)<<31 | uint32((offset>>1)&0x3FF)<<21 |
		uint32((offset>>11)&0x1)<<20 | uint32((offset>>12)&0xFF)<<12 |
		uint32(rd&0x1F)<<7 | 0x6F
}

// EncodeJALR encodes jalr rd, offset(rs1).
func EncodeJALR(rd, rs1 uint8, offset int32) uint32 {
	return uint32(offset&0xFFF)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(rd&0x1F)<<7 | 0x67
}

// EncodeLUI encodes lui rd, imm20.
func EncodeLUI(rd uint8, imm20 uint32) uint32 {
	return (imm20&0xFFFFF)<<12 | uint32(rd&0x1F)<<7 | 0x37
}

// EncodeECALL encodes ecall.
func EncodeECALL() uint32 {
	return 0x00000073
}
