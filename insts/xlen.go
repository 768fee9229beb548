// Package insts provides RISC-V instruction definitions and decoding.
package insts

// XLen is the width of the integer registers.
type XLen uint8

// Supported register widths.
const (
	XLen32 XLen = 32
	XLen64 XLen = 64
)

// Valid reports whether x is a supported register width.
func (x XLen) Valid() bool {
	return x == XLen32 || x == XLen64
}

// Bits returns the register width in bits.
func (x XLen) Bits() int {
	return int(x)
}

// Bytes returns the register width in bytes.
func (x XLen) Bytes() uint64 {
	return uint64(x) / 8
}

// Mask returns the all-ones value of the register width.
func (x XLen) Mask() uint64 {
	if x == XLen32 {
		return 0xFFFFFFFF
	}
	return ^uint64(0)
}

// Trunc truncates v to the register width.
func (x XLen) Trunc(v uint64) uint64 {
	return v & x.Mask()
}

// Signed reinterprets v as a signed value of the register width.
func (x XLen) Signed(v uint64) int64 {
	if x == XLen32 {
		return int64(int32(v))
	}
	return int64(v)
}

// ShiftMask returns the mask applied to shift amounts: 0x1F for RV32,
// 0x3F for RV64.
func (x XLen) ShiftMask() uint64 {
	if x == XLen32 {
		return 0x1F
	}
	return 0x3F
}

// SignBit reports whether the sign bit of v is set at the register width.
func (x XLen) SignBit(v uint64) bool {
	return (v>>(uint(x)-1))&1 == 1
}

// String returns "RV32" or "RV64".
func (x XLen) String() string {
	if x == XLen32 {
		return "RV32"
	}
	return "RV64"
}
