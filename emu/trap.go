// Package emu provides functional RISC-V emulation.
package emu

import "fmt"

// NestedTrapPolicy selects the behavior when a trap is raised while an
// earlier one is still being serviced.
type NestedTrapPolicy uint8

const (
	// NestedFatal treats a nested trap as a double fault that
	// terminates the run.
	NestedFatal NestedTrapPolicy = iota

	// NestedStack saves the in-service trap context, services the new
	// trap, and unwinds one level per mret.
	NestedStack
)

// String returns "fatal" or "stack".
func (p NestedTrapPolicy) String() string {
	if p == NestedStack {
		return "stack"
	}
	return "fatal"
}

// trapFrame is the context saved by the stacking policy when a nested
// trap is accepted.
type trapFrame struct {
	epc    uint64
	cause  uint64
	tval   uint64
	status uint64
}

// TrapController owns the trap state machine. It accepts fault events,
// performs the machine-mode trap entry through the CSR bank, and
// unwinds the state on mret. The hart starts in machine mode with no
// trap in service.
type TrapController struct {
	csrs   *CSRFile
	policy NestedTrapPolicy

	priv    PrivLevel
	trapped bool
	frames  []trapFrame
}

// NewTrapController creates a controller bound to the given CSR bank.
func NewTrapController(csrs *CSRFile, policy NestedTrapPolicy) *TrapController {
	return &TrapController{
		csrs:   csrs,
		policy: policy,
		priv:   PrivMachine,
	}
}

// Priv returns the current privilege level.
func (t *TrapController) Priv() PrivLevel {
	return t.priv
}

// Trapped reports whether a trap is currently being serviced.
func (t *TrapController) Trapped() bool {
	return t.trapped
}

// Depth returns the number of traps in service: zero in normal
// execution, more than one only under the stacking policy.
func (t *TrapController) Depth() int {
	if !t.trapped {
		return 0
	}
	return len(t.frames) + 1
}

// Enter services a fault raised at pc. It records the cause, the
// faulting pc, and the trap value in the CSRs, saves the interrupt
// enable and privilege state into mstatus, enters machine mode, and
// returns the trap vector to resume at. A nested trap under the fatal
// policy returns ErrDoubleFault instead; under the stacking policy the
// in-service context is pushed first.
func (t *TrapController) Enter(fault *Fault, pc uint64) (uint64, error) {
	if t.trapped {
		if t.policy == NestedFatal {
			return 0, fmt.Errorf(
				"%w: %v at pc=0x%x while servicing cause %v",
				ErrDoubleFault, fault, pc, Cause(t.csrs.get(CsrMcause)))
		}
		t.frames = append(t.frames, trapFrame{
			epc:    t.csrs.get(CsrMepc),
			cause:  t.csrs.get(CsrMcause),
			tval:   t.csrs.get(CsrMtval),
			status: t.csrs.get(CsrMstatus),
		})
	}

	t.csrs.set(CsrMepc, pc)
	t.csrs.set(CsrMcause, uint64(fault.Cause))
	t.csrs.set(CsrMtval, fault.Value)

	status := t.csrs.get(CsrMstatus)
	status &^= MstatusMPIE | MstatusMPPMask
	if status&MstatusMIE != 0 {
		status |= MstatusMPIE
	}
	status &^= MstatusMIE
	status |= uint64(t.priv) << MstatusMPPShift
	t.csrs.set(CsrMstatus, status)

	t.priv = PrivMachine
	t.trapped = true
	return t.csrs.get(CsrMtvec), nil
}

// Return performs the mret transition and returns the address to
// resume at. The privilege level and interrupt enable come back out of
// mstatus. Deliberate traps (ecall, ebreak) resume after the trapping
// instruction; faults resume at it, so the handler must fix the cause
// or install a new target before returning. An mret with no trap in
// service still performs the architectural return.
func (t *TrapController) Return() uint64 {
	resume := t.csrs.get(CsrMepc)
	if Cause(t.csrs.get(CsrMcause)).deliberate() {
		resume += 4
	}

	status := t.csrs.get(CsrMstatus)
	status &^= MstatusMIE
	if status&MstatusMPIE != 0 {
		status |= MstatusMIE
	}
	status |= MstatusMPIE
	t.priv = PrivLevel((status & MstatusMPPMask) >> MstatusMPPShift)
	status &^= MstatusMPPMask
	t.csrs.set(CsrMstatus, status)

	if n := len(t.frames); n > 0 {
		// Unwind one level: the outer trap is in service again, with
		// its CSR context restored.
		fr := t.frames[n-1]
		t.frames = t.frames[:n-1]
		t.csrs.set(CsrMepc, fr.epc)
		t.csrs.set(CsrMcause, fr.cause)
		t.csrs.set(CsrMtval, fr.tval)
		t.csrs.set(CsrMstatus, fr.status)
		return resume
	}

	t.trapped = false
	return resume
}
