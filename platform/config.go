// Package platform assembles a virtual machine-mode platform: the
// per-hart monitors, guest physical memory with a fetch cache, and the
// inter-hart interrupt fabric, all described by a YAML platform file.
package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hartlab/rvmon/virt"
)

// Config describes a virtual platform.
type Config struct {
	Name  string `yaml:"name"`
	Harts int    `yaml:"harts"`

	ISA    ISAConfig    `yaml:"isa"`
	PMP    PMPConfig    `yaml:"pmp"`
	Memory MemoryConfig `yaml:"memory"`
	Timer  TimerConfig  `yaml:"timer"`

	// HPMCounters is the number of implemented performance counters
	// beyond cycle/time/instret.
	HPMCounters int `yaml:"hpm_counters"`

	Identity IdentityConfig `yaml:"identity"`
}

// ISAConfig selects the extensions visible to the virtualized firmware.
type ISAConfig struct {
	Supervisor     bool `yaml:"supervisor"`
	User           bool `yaml:"user"`
	UserInterrupts bool `yaml:"user_interrupts"`
	Compressed     bool `yaml:"compressed"`
	Sstc           bool `yaml:"sstc"`
	Zicbom         bool `yaml:"zicbom"`
	Zicboz         bool `yaml:"zicboz"`
	Zfinx          bool `yaml:"zfinx"`
}

// PMPConfig sizes the physical memory protection unit.
type PMPConfig struct {
	Count int `yaml:"count"`
	Grain int `yaml:"grain"`
}

// MemoryConfig places the guest physical memory.
type MemoryConfig struct {
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// TimerConfig tunes the virtual CLINT.
type TimerConfig struct {
	// Stride is how many mtime ticks one retired instruction accounts
	// for.
	Stride uint64 `yaml:"stride"`
}

// IdentityConfig fills the read-only machine information registers.
type IdentityConfig struct {
	VendorID uint64 `yaml:"vendor_id"`
	ArchID   uint64 `yaml:"arch_id"`
	ImpID    uint64 `yaml:"imp_id"`
}

// Default returns a single-hart RV64 platform with supervisor and user
// modes, a 16-entry PMP, and 128 MiB of memory at the conventional DRAM
// base.
func Default() *Config {
	return &Config{
		Name:  "rvmon-virt",
		Harts: 1,
		ISA: ISAConfig{
			Supervisor: true,
			User:       true,
			Compressed: true,
		},
		PMP:         PMPConfig{Count: 16},
		Memory:      MemoryConfig{Base: 0x80000000, Size: 128 << 20},
		Timer:       TimerConfig{Stride: 1},
		HPMCounters: 4,
	}
}

// Validate checks the configuration for values the engine cannot
// honor.
func (c *Config) Validate() error {
	if c.Harts < 1 {
		return fmt.Errorf("platform: at least one hart required, got %d", c.Harts)
	}
	if c.PMP.Count < 0 || c.PMP.Count > virt.NumPMPEntries {
		return fmt.Errorf("platform: pmp count %d out of range [0, %d]",
			c.PMP.Count, virt.NumPMPEntries)
	}
	if c.ISA.UserInterrupts && !c.ISA.User {
		return fmt.Errorf("platform: user_interrupts requires user mode")
	}
	if c.Memory.Size == 0 {
		return fmt.Errorf("platform: memory size must be nonzero")
	}
	return nil
}

// HartConfig converts the platform description into the per-hart
// feature configuration.
func (c *Config) HartConfig() virt.Config {
	return virt.Config{
		HasSupervisor: c.ISA.Supervisor,
		HasUser:       c.ISA.User,
		HasNExt:       c.ISA.UserInterrupts,
		HasCompressed: c.ISA.Compressed,
		HasSstc:       c.ISA.Sstc,
		HasZicbom:     c.ISA.Zicbom,
		HasZicboz:     c.ISA.Zicboz,
		HasZfinx:      c.ISA.Zfinx,
		PMPCount:      c.PMP.Count,
		PMPGrain:      c.PMP.Grain,
		HPMCount:      c.HPMCounters,
		MaxAddress:    c.Memory.Base + c.Memory.Size - 1,
		VendorID:      c.Identity.VendorID,
		ArchID:        c.Identity.ArchID,
		ImpID:         c.Identity.ImpID,
	}
}

// LoadConfig loads a platform description from a YAML file, applying
// defaults for omitted sections.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading platform file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing platform file: %w", err)
	}

	if cfg.Timer.Stride == 0 {
		cfg.Timer.Stride = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
