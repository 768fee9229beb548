// Package main provides a pretty-printer for hartsim execution traces.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hartlab/hartsim/trace"
)

var showRegs = flag.Bool("regs", false, "Expand keyframes into full register dumps")

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: tracedump [options] <trace file>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening trace: %v\n", err)
		os.Exit(1)
	}

	r, err := trace.NewReader(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading trace: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = r.Close() }()

	fmt.Printf("trace: %s v%d\n", r.Header.ISA, r.Header.Version)

	if err := trace.Dump(r, os.Stdout, *showRegs); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading trace: %v\n", err)
		os.Exit(1)
	}
}
