// Package emu provides functional RISC-V emulation.
package emu

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hartlab/hartsim/insts"
)

// Config holds the architectural configuration of an emulator: the
// register width, the memory map, and the policy knobs. The zero value
// is not valid; start from DefaultConfig.
type Config struct {
	// XLen is the register width in bits: 32 or 64.
	XLen int `json:"xlen"`

	// EnableM enables the multiply/divide extension.
	EnableM bool `json:"enable_m"`

	// MemoryBase is the guest address of the first byte of RAM.
	MemoryBase uint64 `json:"memory_base"`

	// MemorySize is the RAM size in bytes.
	MemorySize uint64 `json:"memory_size"`

	// Alignment selects the data alignment policy: "strict" traps
	// misaligned accesses, "relaxed" performs them byte-wise.
	Alignment string `json:"alignment"`

	// NestedTraps selects the nested trap policy: "fatal" ends the run
	// on a trap inside a handler, "stack" services it and unwinds on
	// mret.
	NestedTraps string `json:"nested_traps"`

	// TrapVector is the reset value of the mtvec CSR.
	TrapVector uint64 `json:"trap_vector"`
}

// DefaultConfig returns the standard configuration: RV64 with the M
// extension, 64 MiB of RAM at the conventional base, strict alignment,
// fatal nested traps.
func DefaultConfig() Config {
	return Config{
		XLen:        64,
		EnableM:     true,
		MemoryBase:  0x8000_0000,
		MemorySize:  64 * 1024 * 1024,
		Alignment:   "strict",
		NestedTraps: "fatal",
		TrapVector:  0,
	}
}

// LoadConfig reads a configuration from a JSON file. Absent fields keep
// their default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// SaveConfig writes the configuration to a JSON file.
func (c Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.XLen != 32 && c.XLen != 64 {
		return fmt.Errorf("xlen must be 32 or 64, got %d", c.XLen)
	}
	if c.MemorySize == 0 {
		return fmt.Errorf("memory_size must be positive")
	}
	if c.MemoryBase+c.MemorySize < c.MemoryBase {
		return fmt.Errorf("memory range overflows the address space")
	}
	if c.XLen == 32 && c.MemoryBase+c.MemorySize > 1<<32 {
		return fmt.Errorf("memory range does not fit the 32-bit address space")
	}
	switch c.Alignment {
	case "strict", "relaxed":
	default:
		return fmt.Errorf("alignment must be %q or %q, got %q", "strict", "relaxed", c.Alignment)
	}
	switch c.NestedTraps {
	case "fatal", "stack":
	default:
		return fmt.Errorf("nested_traps must be %q or %q, got %q", "fatal", "stack", c.NestedTraps)
	}
	return nil
}

func (c Config) xlen() insts.XLen {
	if c.XLen == 32 {
		return insts.XLen32
	}
	return insts.XLen64
}

func (c Config) alignmentPolicy() AlignmentPolicy {
	if c.Alignment == "relaxed" {
		return AlignRelaxed
	}
	return AlignStrict
}

func (c Config) nestedPolicy() NestedTrapPolicy {
	if c.NestedTraps == "stack" {
		return NestedStack
	}
	return NestedFatal
}
