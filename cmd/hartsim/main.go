// Package main provides the entry point for hartsim.
// Hartsim is a functional RISC-V RV32I/RV64I instruction-set simulator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hartlab/hartsim/emu"
	"github.com/hartlab/hartsim/loader"
	"github.com/hartlab/hartsim/trace"
)

var (
	configPath = flag.String("config", "", "Path to emulator configuration JSON file")
	tracePath  = flag.String("trace", "", "Write a binary execution trace to this file")
	rawImage   = flag.Bool("raw", false, "Load the program as a raw flat image at the memory base")
	bare       = flag.Bool("bare", false, "Disable syscall emulation; every ecall takes the trap path")
	maxInstr   = flag.Uint64("max", 0, "Stop after this many instructions (0 = unlimited)")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: hartsim [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := emu.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = emu.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	programPath := flag.Arg(0)

	prog, err := loadProgram(programPath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}
	if prog.XLen != 0 && prog.XLen != cfg.XLen {
		fmt.Fprintf(os.Stderr, "Error: program is RV%d but the configuration is RV%d\n",
			prog.XLen, cfg.XLen)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	opts := []emu.EmulatorOption{
		emu.WithConfig(cfg),
		emu.WithStackPointer(initialStack(cfg)),
	}
	if *maxInstr > 0 {
		opts = append(opts, emu.WithMaxInstructions(*maxInstr))
	}
	if *bare {
		opts = append(opts, emu.WithSyscallHandler(nil))
	}

	emulator := emu.NewEmulator(opts...)

	if err := placeSegments(emulator, prog); err != nil {
		fmt.Fprintf(os.Stderr, "Error placing program: %v\n", err)
		os.Exit(1)
	}
	emulator.RegFile().SetPC(prog.EntryPoint)

	// The trace writer is created after the program is placed, so the
	// opening keyframe holds the entry state.
	var tw *trace.Writer
	if *tracePath != "" {
		f, err := os.Create(*tracePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace file: %v\n", err)
			os.Exit(1)
		}
		tw, err = trace.NewWriter(f, emulator)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing trace: %v\n", err)
			os.Exit(1)
		}
		emulator.AddObserver(tw)
	}

	exitCode := emulator.Run()

	// os.Exit skips defers, so the trace is closed by hand.
	if tw != nil {
		if err := tw.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing trace: %v\n", err)
		}
	}

	if *verbose {
		stats := emulator.Stats()
		fmt.Printf("\nProgram: %s\n", programPath)
		fmt.Printf("Exit code: %d\n", exitCode)
		fmt.Printf("Instructions executed: %d\n", stats.Instructions)
		fmt.Printf("Traps taken: %d\n", stats.Traps)
	}

	os.Exit(int(exitCode))
}

// loadProgram parses an ELF executable, or with -raw copies a flat
// image to the configured memory base.
func loadProgram(path string, cfg emu.Config) (*loader.Program, error) {
	if *rawImage {
		return loader.LoadRaw(path, cfg.MemoryBase)
	}
	return loader.Load(path)
}

// placeSegments copies the program segments into guest memory and
// zero-fills the BSS tail of each one.
func placeSegments(emulator *emu.Emulator, prog *loader.Program) error {
	memory := emulator.Memory()
	for _, seg := range prog.Segments {
		if err := memory.WriteBytes(seg.VirtAddr, seg.Data); err != nil {
			return err
		}
		if seg.MemSize > uint64(len(seg.Data)) {
			zeros := make([]byte, seg.MemSize-uint64(len(seg.Data)))
			if err := memory.WriteBytes(seg.VirtAddr+uint64(len(seg.Data)), zeros); err != nil {
				return err
			}
		}
	}
	return nil
}

// initialStack puts the stack pointer at the top of guest RAM, aligned
// down to the 16-byte ABI boundary.
func initialStack(cfg emu.Config) uint64 {
	return (cfg.MemoryBase + cfg.MemorySize) &^ 0xF
}
