// Package main provides a profiling wrapper for hartsim to identify
// emulation bottlenecks.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/hartlab/hartsim/emu"
	"github.com/hartlab/hartsim/loader"
)

var (
	configPath  = flag.String("config", "", "Path to emulator configuration JSON file")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	duration    = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	instruction = flag.Int("max-instr", 1000000, "max instructions to execute (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
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

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)

	start := time.Now()

	// Hard timeout so a runaway guest cannot stall the profile run.
	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	exitCode, instrCount := runProfile(cfg, prog)

	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Exit code: %d\n", exitCode)
	fmt.Printf("Instructions executed: %d\n", instrCount)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
}

// runProfile runs the program under the functional emulator and
// returns its exit code and retired instruction count.
func runProfile(cfg emu.Config, prog *loader.Program) (int64, uint64) {
	opts := []emu.EmulatorOption{
		emu.WithConfig(cfg),
		emu.WithStackPointer((cfg.MemoryBase + cfg.MemorySize) &^ 0xF),
	}
	if *instruction > 0 {
		opts = append(opts, emu.WithMaxInstructions(uint64(*instruction)))
	}

	emulator := emu.NewEmulator(opts...)

	memory := emulator.Memory()
	for _, seg := range prog.Segments {
		if err := memory.WriteBytes(seg.VirtAddr, seg.Data); err != nil {
			fmt.Fprintf(os.Stderr, "Error placing program: %v\n", err)
			os.Exit(1)
		}
		if seg.MemSize > uint64(len(seg.Data)) {
			zeros := make([]byte, seg.MemSize-uint64(len(seg.Data)))
			if err := memory.WriteBytes(seg.VirtAddr+uint64(len(seg.Data)), zeros); err != nil {
				fmt.Fprintf(os.Stderr, "Error placing program: %v\n", err)
				os.Exit(1)
			}
		}
	}
	emulator.RegFile().SetPC(prog.EntryPoint)

	exitCode := emulator.Run()
	return exitCode, emulator.InstructionCount()
}
