// Command benchmark runs the hartsim emulation benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv      Output results in CSV format (default: human-readable)
//	-json     Output results in JSON format
//	-core     Run only the 3 core benchmarks
//	-verbose  Print progress as benchmarks run
//	-max N    Stop any benchmark after N instructions
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
// The results can be compared across simulator versions to catch
// emulation throughput regressions.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hartlab/hartsim/benchmarks"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	verbose := flag.Bool("verbose", false, "Print progress as benchmarks run")
	maxInstr := flag.Uint64("max", 0, "Stop any benchmark after N instructions (0 = harness default)")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout
	config.Verbose = *verbose
	if *maxInstr != 0 {
		config.MaxInstructions = *maxInstr
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("Hartsim Emulation Benchmark Harness")
		fmt.Println("===================================")
		fmt.Printf("ISA: rv%d, M extension: %v\n", config.Emulator.XLen, config.Emulator.EnableM)
		fmt.Println("")
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- arithmetic_sequential / dependency_chain: pure decode and ALU rate")
		fmt.Println("- memory_sequential: bounds and alignment checks on every access")
		fmt.Println("- function_calls / branch_taken: control flow redirect cost")
		fmt.Println("- vector_multiply / multiply_chain: M extension dispatch")
		fmt.Println("- loop_sum: steady-state fetch/decode/execute loop")
	}
}
