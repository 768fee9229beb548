// Package emu provides functional RISC-V emulation.
package emu

import "github.com/hartlab/hartsim/insts"

// Machine-mode CSR addresses.
const (
	CsrMstatus  uint16 = 0x300
	CsrMisa     uint16 = 0x301
	CsrMie      uint16 = 0x304
	CsrMtvec    uint16 = 0x305
	CsrMscratch uint16 = 0x340
	CsrMepc     uint16 = 0x341
	CsrMcause   uint16 = 0x342
	CsrMtval    uint16 = 0x343
	CsrMip      uint16 = 0x344
	CsrCycle    uint16 = 0xC00
	CsrInstret  uint16 = 0xC02
	CsrCycleH   uint16 = 0xC80
	CsrInstretH uint16 = 0xC82
	CsrMhartid  uint16 = 0xF14
)

// mstatus fields used by the trap machinery.
const (
	MstatusMIE      uint64 = 1 << 3
	MstatusMPIE     uint64 = 1 << 7
	MstatusMPPShift        = 11
	MstatusMPPMask  uint64 = 3 << MstatusMPPShift
)

// PrivLevel is a RISC-V privilege level.
type PrivLevel uint8

const (
	PrivUser    PrivLevel = 0
	PrivMachine PrivLevel = 3
)

// String returns the one-letter privilege name.
func (p PrivLevel) String() string {
	switch p {
	case PrivUser:
		return "U"
	case PrivMachine:
		return "M"
	}
	return "?"
}

// csrEntry is one implemented CSR: its backing value and the set of
// writable bits. A zero write mask makes writes take no effect without
// faulting.
type csrEntry struct {
	value     uint64
	writeMask uint64
}

// CSRFile is the sparse control and status register bank. Only the
// machine-mode registers the simulator uses are implemented; access to
// any other address faults as an illegal instruction with the CSR
// address as the trap value.
type CSRFile struct {
	xlen    insts.XLen
	entries map[uint16]*csrEntry

	// Counter state pushed in by the emulator, surfaced through the
	// cycle and instret CSRs.
	cycle   uint64
	instret uint64
}

// NewCSRFile creates a CSR bank for the given width. enableM sets the M
// bit in the misa extension mask.
func NewCSRFile(xlen insts.XLen, enableM bool) *CSRFile {
	full := xlen.Mask()
	c := &CSRFile{
		xlen:    xlen,
		entries: make(map[uint16]*csrEntry),
	}

	c.entries[CsrMstatus] = &csrEntry{
		writeMask: MstatusMIE | MstatusMPIE | MstatusMPPMask,
	}
	// misa is read-only in practice: writes are legal but take no
	// effect, so the extension set cannot be narrowed at run time.
	c.entries[CsrMisa] = &csrEntry{value: misaValue(xlen, enableM)}
	c.entries[CsrMie] = &csrEntry{writeMask: full}
	// The low two mtvec bits select the vectoring mode; only direct
	// mode is supported, so they read as zero.
	c.entries[CsrMtvec] = &csrEntry{writeMask: full &^ 3}
	c.entries[CsrMscratch] = &csrEntry{writeMask: full}
	// mepc holds instruction addresses, so bit 0 is never writable.
	c.entries[CsrMepc] = &csrEntry{writeMask: full &^ 1}
	c.entries[CsrMcause] = &csrEntry{writeMask: full}
	c.entries[CsrMtval] = &csrEntry{writeMask: full}
	// No interrupt sources exist, so mip is hard-wired to zero.
	c.entries[CsrMip] = &csrEntry{}
	c.entries[CsrMhartid] = &csrEntry{}

	return c
}

func misaValue(xlen insts.XLen, enableM bool) uint64 {
	// Extension letter bits: I, U, and optionally M.
	v := uint64(1)<<8 | uint64(1)<<20
	if enableM {
		v |= 1 << 12
	}
	if xlen == insts.XLen64 {
		v |= 2 << 62
	} else {
		v |= 1 << 30
	}
	return v
}

// XLen returns the register width of the bank.
func (c *CSRFile) XLen() insts.XLen {
	return c.xlen
}

// Read returns the value of a CSR. Reading an unimplemented address
// faults as an illegal instruction.
func (c *CSRFile) Read(addr uint16) (uint64, *Fault) {
	switch addr {
	case CsrCycle:
		return c.xlen.Trunc(c.cycle), nil
	case CsrInstret:
		return c.xlen.Trunc(c.instret), nil
	case CsrCycleH, CsrInstretH:
		// The upper counter halves exist only on RV32.
		if c.xlen != insts.XLen32 {
			break
		}
		if addr == CsrCycleH {
			return c.cycle >> 32, nil
		}
		return c.instret >> 32, nil
	}

	e, ok := c.entries[addr]
	if !ok {
		return 0, newFault(CauseIllegalInstruction, uint64(addr))
	}
	return e.value, nil
}

// Write stores value into a CSR through its write mask. Writing an
// unimplemented address faults, as does writing any address in the
// read-only quadrant (top two address bits set).
func (c *CSRFile) Write(addr uint16, value uint64) *Fault {
	if addr&0xC00 == 0xC00 {
		return newFault(CauseIllegalInstruction, uint64(addr))
	}
	e, ok := c.entries[addr]
	if !ok {
		return newFault(CauseIllegalInstruction, uint64(addr))
	}
	e.value = (e.value &^ e.writeMask) | (value & e.writeMask)
	return nil
}

// set stores value through the write mask without the fault path, for
// trap controller updates.
func (c *CSRFile) set(addr uint16, value uint64) {
	if e, ok := c.entries[addr]; ok {
		e.value = (e.value &^ e.writeMask) | (value & e.writeMask)
	}
}

// get reads an implemented CSR without the fault path.
func (c *CSRFile) get(addr uint16) uint64 {
	if e, ok := c.entries[addr]; ok {
		return e.value
	}
	return 0
}

// UpdateCounters pushes the current cycle and retired-instruction
// counts into the counter CSRs.
func (c *CSRFile) UpdateCounters(cycle, instret uint64) {
	c.cycle = cycle
	c.instret = instret
}

// Snapshot returns a copy of every implemented CSR keyed by address,
// counters included.
func (c *CSRFile) Snapshot() map[uint16]uint64 {
	snap := make(map[uint16]uint64, len(c.entries)+2)
	for addr, e := range c.entries {
		snap[addr] = e.value
	}
	snap[CsrCycle] = c.xlen.Trunc(c.cycle)
	snap[CsrInstret] = c.xlen.Trunc(c.instret)
	if c.xlen == insts.XLen32 {
		snap[CsrCycleH] = c.cycle >> 32
		snap[CsrInstretH] = c.instret >> 32
	}
	return snap
}
