// Package emu provides functional RISC-V emulation.
package emu

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// AlignmentPolicy controls how misaligned multi-byte data accesses
// behave.
type AlignmentPolicy uint8

const (
	// AlignStrict faults any access whose address is not a multiple of
	// its width.
	AlignStrict AlignmentPolicy = iota

	// AlignRelaxed permits misaligned accesses, performing them as byte
	// transfers in little-endian order.
	AlignRelaxed
)

// String returns "strict" or "relaxed".
func (p AlignmentPolicy) String() string {
	if p == AlignRelaxed {
		return "relaxed"
	}
	return "strict"
}

// Memory is the flat, bounds-checked, little-endian guest memory. It is
// backed by an Akita storage and covers the address range
// [base, base+size). Accesses outside the range fault; misaligned
// accesses fault or not according to the alignment policy.
type Memory struct {
	base    uint64
	size    uint64
	policy  AlignmentPolicy
	storage *mem.Storage

	reads  uint64
	writes uint64
}

// NewMemory creates a zeroed memory of size bytes at the given base
// address.
func NewMemory(base, size uint64, policy AlignmentPolicy) *Memory {
	return &Memory{
		base:    base,
		size:    size,
		policy:  policy,
		storage: mem.NewStorage(size),
	}
}

// Base returns the lowest valid address.
func (m *Memory) Base() uint64 {
	return m.base
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint64 {
	return m.size
}

// Policy returns the alignment policy.
func (m *Memory) Policy() AlignmentPolicy {
	return m.policy
}

func (m *Memory) inBounds(addr, n uint64) bool {
	return n <= m.size && addr >= m.base && addr-m.base <= m.size-n
}

// Read loads width bytes (1, 2, 4, or 8) at addr in little-endian order
// and zero-extends them to 64 bits. On a fault the memory is unchanged
// and the returned value is zero.
func (m *Memory) Read(addr uint64, width int) (uint64, *Fault) {
	if !m.inBounds(addr, uint64(width)) {
		return 0, newFault(CauseLoadAccessFault, addr)
	}
	if m.policy == AlignStrict && addr%uint64(width) != 0 {
		return 0, newFault(CauseLoadAddrMisaligned, addr)
	}
	data, err := m.storage.Read(addr-m.base, uint64(width))
	if err != nil {
		return 0, newFault(CauseLoadAccessFault, addr)
	}
	m.reads++
	return leUint(data), nil
}

// Write stores the low width bytes (1, 2, 4, or 8) of value at addr in
// little-endian order. On a fault the memory is unchanged.
func (m *Memory) Write(addr uint64, width int, value uint64) *Fault {
	if !m.inBounds(addr, uint64(width)) {
		return newFault(CauseStoreAccessFault, addr)
	}
	if m.policy == AlignStrict && addr%uint64(width) != 0 {
		return newFault(CauseStoreAddrMisaligned, addr)
	}
	buf := make([]byte, width)
	lePut(buf, value)
	if err := m.storage.Write(addr-m.base, buf); err != nil {
		return newFault(CauseStoreAccessFault, addr)
	}
	m.writes++
	return nil
}

// Fetch reads the 32-bit instruction word at pc. Instruction alignment
// is fixed at the encoding width and is not subject to the data
// alignment policy. Faults carry the instruction access causes.
func (m *Memory) Fetch(pc uint64) (uint32, *Fault) {
	if pc%4 != 0 {
		return 0, newFault(CauseInsnAddrMisaligned, pc)
	}
	if !m.inBounds(pc, 4) {
		return 0, newFault(CauseInsnAccessFault, pc)
	}
	data, err := m.storage.Read(pc-m.base, 4)
	if err != nil {
		return 0, newFault(CauseInsnAccessFault, pc)
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Read8 loads a byte. It can fault only out of bounds.
func (m *Memory) Read8(addr uint64) (uint8, *Fault) {
	v, fault := m.Read(addr, 1)
	return uint8(v), fault
}

// Read16 loads a halfword.
func (m *Memory) Read16(addr uint64) (uint16, *Fault) {
	v, fault := m.Read(addr, 2)
	return uint16(v), fault
}

// Read32 loads a word.
func (m *Memory) Read32(addr uint64) (uint32, *Fault) {
	v, fault := m.Read(addr, 4)
	return uint32(v), fault
}

// Read64 loads a doubleword.
func (m *Memory) Read64(addr uint64) (uint64, *Fault) {
	return m.Read(addr, 8)
}

// Write8 stores a byte. It can fault only out of bounds.
func (m *Memory) Write8(addr uint64, value uint8) *Fault {
	return m.Write(addr, 1, uint64(value))
}

// Write16 stores a halfword.
func (m *Memory) Write16(addr uint64, value uint16) *Fault {
	return m.Write(addr, 2, uint64(value))
}

// Write32 stores a word.
func (m *Memory) Write32(addr uint64, value uint32) *Fault {
	return m.Write(addr, 4, uint64(value))
}

// Write64 stores a doubleword.
func (m *Memory) Write64(addr uint64, value uint64) *Fault {
	return m.Write(addr, 8, value)
}

// WriteBytes copies data into memory at addr in one host-side
// transfer: program images and syscall buffers go through here. It
// bypasses the alignment policy but not the bounds check, and does not
// count as a guest access.
func (m *Memory) WriteBytes(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !m.inBounds(addr, uint64(len(data))) {
		return fmt.Errorf(
			"range [0x%x, 0x%x) outside memory [0x%x, 0x%x)",
			addr, addr+uint64(len(data)), m.base, m.base+m.size)
	}
	if err := m.storage.Write(addr-m.base, data); err != nil {
		return fmt.Errorf("failed to write memory: %w", err)
	}
	return nil
}

// Dump returns a copy of n bytes of memory starting at addr, for
// inspection and host-side transfers. It does not count as a guest
// access.
func (m *Memory) Dump(addr, n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if !m.inBounds(addr, n) {
		return nil, fmt.Errorf(
			"range [0x%x, 0x%x) outside memory [0x%x, 0x%x)",
			addr, addr+n, m.base, m.base+m.size)
	}
	data, err := m.storage.Read(addr-m.base, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, data)
	return out, nil
}

// Reads returns the number of completed guest loads.
func (m *Memory) Reads() uint64 {
	return m.reads
}

// Writes returns the number of completed guest stores.
func (m *Memory) Writes() uint64 {
	return m.writes
}

func leUint(data []byte) uint64 {
	switch len(data) {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(data))
	case 4:
		return uint64(binary.LittleEndian.Uint32(data))
	default:
		return binary.LittleEndian.Uint64(data)
	}
}

func lePut(buf []byte, value uint64) {
	switch len(buf) {
	case 1:
		buf[0] = uint8(value)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(value))
	default:
		binary.LittleEndian.PutUint64(buf, value)
	}
}
