// Package emu provides functional RISC-V emulation.
package emu

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/hartlab/hartsim/insts"
)

// Status is the lifecycle state of the simulation loop.
type Status uint8

const (
	// StatusRunning means the loop can execute further cycles.
	StatusRunning Status = iota

	// StatusHalted means the program exited through the exit syscall.
	StatusHalted

	// StatusFaulted means a double fault ended the run.
	StatusFaulted
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusHalted:
		return "halted"
	case StatusFaulted:
		return "faulted"
	}
	return "unknown"
}

// Observer receives execution events. Implementations must not mutate
// architectural state.
type Observer interface {
	// Step is called after each retired instruction, with the address
	// and encoding it retired.
	Step(pc uint64, word uint32)

	// Trap is called when a fault is accepted by the trap controller.
	Trap(cause Cause, pc uint64, tval uint64)

	// Halt is called once when the program exits.
	Halt(exitCode int64)
}

// StepResult represents the result of executing a single cycle.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set on a fatal simulation error, such as a double fault
	// or an exhausted instruction budget.
	Err error
}

// Snapshot is a copy of the architectural state at one point in time.
type Snapshot struct {
	PC       uint64
	Regs     [32]uint64
	CSRs     map[uint16]uint64
	Priv     PrivLevel
	Trapped  bool
	Status   Status
	ExitCode int64
}

// Emulator executes RISC-V instructions functionally: a register file,
// a flat memory, a CSR bank, and a trap controller driven by a fetch,
// decode, execute loop.
type Emulator struct {
	cfg  Config
	xlen insts.XLen

	regFile *RegFile
	memory  *Memory
	csrs    *CSRFile
	decoder *insts.Decoder
	traps   *TrapController

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	syscallHandler SyscallHandler
	syscallSet     bool
	observers      []Observer

	// I/O
	stdout io.Writer
	stderr io.Writer

	// Execution state
	status   Status
	exitCode int64
	fatalErr error

	maxInstructions uint64 // 0 means no limit
	initialSP       uint64
	hasInitialSP    bool
	stopped         atomic.Bool

	stats Stats
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithConfig replaces the whole configuration. The config should have
// passed Validate; unrecognized policy strings fall back to the strict
// and fatal defaults.
func WithConfig(cfg Config) EmulatorOption {
	return func(e *Emulator) {
		e.cfg = cfg
	}
}

// WithMemorySize overrides the memory size in bytes.
func WithMemorySize(size uint64) EmulatorOption {
	return func(e *Emulator) {
		e.cfg.MemorySize = size
	}
}

// WithStackPointer sets the initial stack pointer (x2).
func WithStackPointer(sp uint64) EmulatorOption {
	return func(e *Emulator) {
		e.initialSP = sp
		e.hasInitialSP = true
	}
}

// WithMaxInstructions sets the maximum number of instructions to
// execute; Step reports an error once the limit is reached. A value of
// 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithSyscallHandler sets a custom syscall handler. Passing nil
// disables syscall emulation entirely, so every ecall raises the
// architectural environment call trap (bare-metal mode).
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
		e.syscallSet = true
	}
}

// WithStdout sets a custom stdout writer for the guest.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer. It carries both guest output
// and the emulator's own fatal error messages.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithObserver attaches an execution observer. Multiple observers are
// notified in registration order.
func WithObserver(o Observer) EmulatorOption {
	return func(e *Emulator) {
		e.observers = append(e.observers, o)
	}
}

// AddObserver attaches an execution observer after construction, for
// observers that need a reference to the emulator itself.
func (e *Emulator) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// NewEmulator creates a new RISC-V emulator with the given options
// applied over the default configuration.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		cfg:    DefaultConfig(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	// Apply options first; construction depends on the final config.
	for _, opt := range opts {
		opt(e)
	}

	e.build()
	return e
}

// build constructs the architectural state from the configuration.
func (e *Emulator) build() {
	e.xlen = e.cfg.xlen()
	e.regFile = NewRegFile(e.xlen)
	e.memory = NewMemory(e.cfg.MemoryBase, e.cfg.MemorySize, e.cfg.alignmentPolicy())
	e.csrs = NewCSRFile(e.xlen, e.cfg.EnableM)
	e.csrs.set(CsrMtvec, e.cfg.TrapVector)
	e.traps = NewTrapController(e.csrs, e.cfg.nestedPolicy())

	var decoderOpts []insts.DecoderOption
	if e.cfg.EnableM {
		decoderOpts = append(decoderOpts, insts.WithM())
	}
	e.decoder = insts.NewDecoder(e.xlen, decoderOpts...)

	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)

	// If no syscall handler was provided, create a default one against
	// the fresh units.
	if !e.syscallSet {
		e.syscallHandler = NewDefaultSyscallHandler(e.regFile, e.memory, e.stdout, e.stderr)
	}
	if e.hasInitialSP {
		e.regFile.WriteReg(regSP, e.initialSP)
	}

	e.status = StatusRunning
	e.exitCode = 0
	e.fatalErr = nil
	e.stats = Stats{}
	e.stopped.Store(false)
}

// Reset returns the emulator to its initial state with zeroed memory
// and registers. A custom syscall handler is kept; it is responsible
// for its own state.
func (e *Emulator) Reset() {
	e.build()
}

// LoadProgram copies a flat code image into memory at entry and points
// the program counter at it.
func (e *Emulator) LoadProgram(entry uint64, program []byte) error {
	if err := e.memory.WriteBytes(entry, program); err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}
	e.regFile.SetPC(entry)
	return nil
}

// RegFile returns the register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the guest memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// CSRs returns the CSR bank.
func (e *Emulator) CSRs() *CSRFile {
	return e.csrs
}

// Traps returns the trap controller.
func (e *Emulator) Traps() *TrapController {
	return e.traps
}

// Config returns the configuration the emulator was built with.
func (e *Emulator) Config() Config {
	return e.cfg
}

// XLen returns the register width.
func (e *Emulator) XLen() insts.XLen {
	return e.xlen
}

// Status returns the lifecycle state.
func (e *Emulator) Status() Status {
	return e.status
}

// InstructionCount returns the number of retired instructions.
func (e *Emulator) InstructionCount() uint64 {
	return e.stats.Instructions
}

// Stats returns a copy of the execution counters.
func (e *Emulator) Stats() Stats {
	s := e.stats
	s.MemReads = e.memory.Reads()
	s.MemWrites = e.memory.Writes()
	return s
}

// Snapshot captures the current architectural state for inspection.
func (e *Emulator) Snapshot() Snapshot {
	return Snapshot{
		PC:       e.regFile.PC(),
		Regs:     e.regFile.Regs(),
		CSRs:     e.csrs.Snapshot(),
		Priv:     e.traps.Priv(),
		Trapped:  e.traps.Trapped(),
		Status:   e.status,
		ExitCode: e.exitCode,
	}
}

// Stop requests a cooperative stop from another goroutine; Run returns
// at the next cycle boundary. The emulator remains inspectable and Run
// may be called again to resume.
func (e *Emulator) Stop() {
	e.stopped.Store(true)
}

// Step executes a single cycle: fetch, decode, execute. Faults are
// routed to the trap controller and do not end the simulation unless
// they double-fault. Calling Step after the program has ended returns
// the terminal result again.
func (e *Emulator) Step() StepResult {
	switch e.status {
	case StatusHalted:
		return StepResult{Exited: true, ExitCode: e.exitCode}
	case StatusFaulted:
		return StepResult{Err: e.fatalErr}
	}

	if e.maxInstructions > 0 && e.stats.Instructions >= e.maxInstructions {
		return StepResult{Err: fmt.Errorf("max instructions reached (%d)", e.maxInstructions)}
	}

	e.stats.Cycles++
	e.csrs.UpdateCounters(e.stats.Cycles, e.stats.Instructions)
	pc := e.regFile.PC()

	word, fault := e.memory.Fetch(pc)
	if fault != nil {
		return e.trap(fault, pc)
	}

	inst, err := e.decoder.Decode(word)
	if err != nil {
		return e.trap(newFault(CauseIllegalInstruction, uint64(word)), pc)
	}

	nextPC, fault := e.execute(inst, pc)
	if fault != nil {
		return e.trap(fault, pc)
	}

	e.stats.Instructions++
	e.csrs.UpdateCounters(e.stats.Cycles, e.stats.Instructions)
	e.regFile.SetPC(nextPC)
	e.notifyStep(pc, word)

	if e.status == StatusHalted {
		e.notifyHalt(e.exitCode)
		return StepResult{Exited: true, ExitCode: e.exitCode}
	}
	return StepResult{}
}

// Run executes until the program exits, a fatal error occurs, or Stop
// is called. It returns the exit code, or -1 after printing the fatal
// error.
func (e *Emulator) Run() int64 {
	e.stopped.Store(false)
	for {
		if e.stopped.Load() {
			return e.exitCode
		}

		result := e.Step()
		if result.Exited {
			return result.ExitCode
		}
		if result.Err != nil {
			fmt.Fprintf(e.stderr, "Emulation error: %v\n", result.Err)
			return -1
		}
	}
}

// trap routes a fault to the trap controller. A rejected trap (double
// fault under the fatal policy) ends the run.
func (e *Emulator) trap(fault *Fault, pc uint64) StepResult {
	vector, err := e.traps.Enter(fault, pc)
	if err != nil {
		e.status = StatusFaulted
		e.fatalErr = err
		return StepResult{Err: err}
	}

	e.stats.Traps++
	e.regFile.SetPC(vector)
	e.notifyTrap(fault.Cause, pc, fault.Value)
	return StepResult{}
}

// execute dispatches a decoded instruction to its unit and returns the
// next program counter.
func (e *Emulator) execute(inst *insts.Instruction, pc uint64) (uint64, *Fault) {
	switch inst.Format {
	case insts.FormatR, insts.FormatU:
		e.alu.Execute(inst, pc)
		return pc + 4, nil

	case insts.FormatI:
		switch {
		case inst.Op == insts.OpJALR:
			return e.executeJALR(inst, pc)
		case inst.Op == insts.OpFENCE:
			return pc + 4, nil
		case inst.Op.IsLoad():
			if fault := e.lsu.ExecuteLoad(inst); fault != nil {
				return 0, fault
			}
			return pc + 4, nil
		default:
			e.alu.Execute(inst, pc)
			return pc + 4, nil
		}

	case insts.FormatS:
		if fault := e.lsu.ExecuteStore(inst); fault != nil {
			return 0, fault
		}
		return pc + 4, nil

	case insts.FormatB:
		return e.executeBranch(inst, pc)

	case insts.FormatJ:
		return e.executeJAL(inst, pc)

	case insts.FormatSystem:
		return e.executeSystem(inst, pc)
	}

	return 0, newFault(CauseIllegalInstruction, uint64(inst.Raw))
}

// executeJAL writes the return address and jumps relative to pc.
func (e *Emulator) executeJAL(inst *insts.Instruction, pc uint64) (uint64, *Fault) {
	target := e.xlen.Trunc(pc + uint64(inst.Imm))
	if target%4 != 0 {
		return 0, newFault(CauseInsnAddrMisaligned, target)
	}
	e.regFile.WriteReg(inst.Rd, pc+4)
	return target, nil
}

// executeJALR jumps to rs1 plus offset with the low bit cleared. The
// target is read before the link register is written, so rd may alias
// rs1.
func (e *Emulator) executeJALR(inst *insts.Instruction, pc uint64) (uint64, *Fault) {
	target := e.xlen.Trunc(e.regFile.ReadReg(inst.Rs1)+uint64(inst.Imm)) &^ 1
	if target%4 != 0 {
		return 0, newFault(CauseInsnAddrMisaligned, target)
	}
	e.regFile.WriteReg(inst.Rd, pc+4)
	return target, nil
}

// executeBranch evaluates the predicate; a taken branch to a
// misaligned target faults at the branch itself.
func (e *Emulator) executeBranch(inst *insts.Instruction, pc uint64) (uint64, *Fault) {
	if !e.branchUnit.Taken(inst) {
		return pc + 4, nil
	}
	target := e.xlen.Trunc(pc + uint64(inst.Imm))
	if target%4 != 0 {
		return 0, newFault(CauseInsnAddrMisaligned, target)
	}
	return target, nil
}

// executeSystem handles ecall, ebreak, mret, and the CSR instructions.
func (e *Emulator) executeSystem(inst *insts.Instruction, pc uint64) (uint64, *Fault) {
	switch inst.Op {
	case insts.OpECALL:
		return e.executeECALL(pc)
	case insts.OpEBREAK:
		return 0, newFault(CauseBreakpoint, pc)
	case insts.OpMRET:
		return e.traps.Return(), nil
	}
	return e.executeCSR(inst, pc)
}

// executeECALL gives the syscall handler first claim on the call; an
// unhandled or absent handler raises the environment call trap for the
// current privilege level.
func (e *Emulator) executeECALL(pc uint64) (uint64, *Fault) {
	if e.syscallHandler != nil {
		result := e.syscallHandler.Handle()
		if result.Handled {
			if result.Exited {
				e.status = StatusHalted
				e.exitCode = result.ExitCode
			}
			return pc + 4, nil
		}
	}

	cause := CauseEcallFromM
	if e.traps.Priv() == PrivUser {
		cause = CauseEcallFromU
	}
	return 0, newFault(cause, 0)
}

// executeCSR performs the read-modify-write CSR operations. Writes
// happen before rd is updated, so a faulting access leaves the
// register file untouched.
func (e *Emulator) executeCSR(inst *insts.Instruction, pc uint64) (uint64, *Fault) {
	// The immediate forms carry a 5-bit zero-extended value in the rs1
	// field slot.
	var src uint64
	switch inst.Op {
	case insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI:
		src = uint64(inst.Rs1)
	default:
		src = e.regFile.ReadReg(inst.Rs1)
	}

	switch inst.Op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		// rd=x0 skips the read, so a pure write to a write-only
		// target never takes the read path.
		var old uint64
		if inst.Rd != 0 {
			v, fault := e.csrs.Read(inst.CSR)
			if fault != nil {
				return 0, fault
			}
			old = v
		}
		if fault := e.csrs.Write(inst.CSR, src); fault != nil {
			return 0, fault
		}
		e.regFile.WriteReg(inst.Rd, old)

	case insts.OpCSRRS, insts.OpCSRRSI:
		old, fault := e.csrs.Read(inst.CSR)
		if fault != nil {
			return 0, fault
		}
		// rs1=x0 (or a zero immediate) reads without writing, which
		// keeps the read-only counters accessible.
		if inst.Rs1 != 0 {
			if fault := e.csrs.Write(inst.CSR, old|src); fault != nil {
				return 0, fault
			}
		}
		e.regFile.WriteReg(inst.Rd, old)

	case insts.OpCSRRC, insts.OpCSRRCI:
		old, fault := e.csrs.Read(inst.CSR)
		if fault != nil {
			return 0, fault
		}
		if inst.Rs1 != 0 {
			if fault := e.csrs.Write(inst.CSR, old&^src); fault != nil {
				return 0, fault
			}
		}
		e.regFile.WriteReg(inst.Rd, old)

	default:
		return 0, newFault(CauseIllegalInstruction, uint64(inst.Raw))
	}

	return pc + 4, nil
}

func (e *Emulator) notifyStep(pc uint64, word uint32) {
	for _, o := range e.observers {
		o.Step(pc, word)
	}
}

func (e *Emulator) notifyTrap(cause Cause, pc, tval uint64) {
	for _, o := range e.observers {
		o.Trap(cause, pc, tval)
	}
}

func (e *Emulator) notifyHalt(exitCode int64) {
	for _, o := range e.observers {
		o.Halt(exitCode)
	}
}

// regSP is the stack pointer register (x2) in the standard ABI.
const regSP = 2
