// Package main provides the entry point for hartsim.
// Hartsim is a functional RISC-V RV32I/RV64I instruction-set simulator.
//
// For the full CLI, use: go run ./cmd/hartsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("Hartsim - RISC-V Instruction-Set Simulator")
	fmt.Println("RV32I/RV64I with the M extension")
	fmt.Println("")
	fmt.Println("Usage: hartsim [options] <program>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to machine configuration JSON file")
	fmt.Println("  -trace     Record an execution trace to a file")
	fmt.Println("  -raw       Treat the program as a raw flat image")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/hartsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/hartsim' instead.")
	}
}
