// Package emu provides functional RISC-V emulation.
package emu

import (
	"errors"
	"fmt"
)

// Cause identifies a synchronous exception, encoded as in the mcause
// CSR.
type Cause uint64

// Machine-mode exception causes.
const (
	CauseInsnAddrMisaligned  Cause = 0
	CauseInsnAccessFault     Cause = 1
	CauseIllegalInstruction  Cause = 2
	CauseBreakpoint          Cause = 3
	CauseLoadAddrMisaligned  Cause = 4
	CauseLoadAccessFault     Cause = 5
	CauseStoreAddrMisaligned Cause = 6
	CauseStoreAccessFault    Cause = 7
	CauseEcallFromU          Cause = 8
	CauseEcallFromM          Cause = 11
)

var causeNames = map[Cause]string{
	CauseInsnAddrMisaligned:  "instruction address misaligned",
	CauseInsnAccessFault:     "instruction access fault",
	CauseIllegalInstruction:  "illegal instruction",
	CauseBreakpoint:          "breakpoint",
	CauseLoadAddrMisaligned:  "load address misaligned",
	CauseLoadAccessFault:     "load access fault",
	CauseStoreAddrMisaligned: "store address misaligned",
	CauseStoreAccessFault:    "store access fault",
	CauseEcallFromU:          "environment call from U-mode",
	CauseEcallFromM:          "environment call from M-mode",
}

// String returns the conventional description of the cause.
func (c Cause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cause %d", uint64(c))
}

// deliberate reports whether the cause comes from an explicit trap
// instruction rather than a failure. Deliberate traps resume after the
// trapping instruction on mret; faults resume at it.
func (c Cause) deliberate() bool {
	switch c {
	case CauseBreakpoint, CauseEcallFromU, CauseEcallFromM:
		return true
	}
	return false
}

// Fault is a trap event: the cause and the value destined for the mtval
// CSR (the faulting address or instruction word). Faults are raised by
// Memory, the Decoder, and the execution units, and consumed by the
// TrapController.
type Fault struct {
	Cause Cause
	Value uint64
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("%v (tval=0x%x)", f.Cause, f.Value)
}

func newFault(cause Cause, value uint64) *Fault {
	return &Fault{Cause: cause, Value: value}
}

// ErrDoubleFault reports a trap raised while another was already being
// serviced under the fatal nesting policy. It is fatal to the run.
var ErrDoubleFault = errors.New("double fault")
