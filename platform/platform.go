package platform

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/hartlab/rvmon/emu"
	"github.com/hartlab/rvmon/virt"
)

// fabricLatency is the delivery delay of a posted interrupt, in
// simulated seconds.
const fabricLatency sim.VTimeInSec = 1e-9

// Platform is a fully assembled virtual machine: one monitor per hart,
// shared guest physical memory behind a fetch cache, and the interrupt
// fabric connecting the harts.
type Platform struct {
	Config   *Config
	Monitors []*emu.Monitor
	Memory   *Memory
	Cache    *Cache
	Fabric   *Fabric
}

// New assembles a platform from its description. Every hart starts in
// machine mode with its PC at the base of memory.
func New(cfg *Config) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	memory := NewMemory(cfg.Memory.Base, cfg.Memory.Size)
	cache := NewCache(DefaultCacheConfig(), memory)

	engine := sim.NewSerialEngine()
	fabric := NewFabric(engine, fabricLatency)

	hartCfg := cfg.HartConfig()
	monitors := make([]*emu.Monitor, cfg.Harts)
	for i := range monitors {
		m := emu.NewMonitor(hartCfg, uint64(i),
			emu.WithTimerStride(cfg.Timer.Stride))
		m.Context().PC = cfg.Memory.Base
		fabric.Connect(m.Context())
		monitors[i] = m
	}

	return &Platform{
		Config:   cfg,
		Monitors: monitors,
		Memory:   memory,
		Cache:    cache,
		Fabric:   fabric,
	}, nil
}

// Load assembles a platform from a YAML description file.
func Load(path string) (*Platform, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// LoadImage copies a flat firmware image to the base of memory.
func (p *Platform) LoadImage(image []byte) error {
	if uint64(len(image)) > p.Memory.Size() {
		return fmt.Errorf("platform: image of %d bytes exceeds %d bytes of memory",
			len(image), p.Memory.Size())
	}
	p.Memory.LoadImage(p.Memory.Base(), image)
	return nil
}

// Step fetches and dispatches one instruction on the given hart. A PMP
// fault on the fetch raises the exception on the hart instead of
// dispatching.
func (p *Platform) Step(hart int) emu.StepResult {
	if hart < 0 || hart >= len(p.Monitors) {
		return emu.StepResult{Err: fmt.Errorf("platform: no hart %d", hart)}
	}

	m := p.Monitors[hart]
	ctx := m.Context()
	pc := ctx.PC

	if fault, ok := m.CheckAccess(pc, 4, virt.AccessExecute); !ok {
		handler := ctx.TakeException(fault, pc, pc)
		ctx.PC = handler
		return emu.StepResult{
			Trapped: true,
			Cause:   virt.ExceptionCause(fault),
			NextPC:  handler,
		}
	}

	if !p.Memory.Contains(pc, 4) {
		handler := ctx.TakeException(virt.ExcFetchAccessFault, pc, pc)
		ctx.PC = handler
		return emu.StepResult{
			Trapped: true,
			Cause:   virt.ExceptionCause(virt.ExcFetchAccessFault),
			NextPC:  handler,
		}
	}

	return m.Step(p.Cache.Fetch32(pc))
}

// Run steps the given hart until it has retired n instructions or a
// step fails.
func (p *Platform) Run(hart int, n uint64) error {
	for i := uint64(0); i < n; i++ {
		if res := p.Step(hart); res.Err != nil {
			return res.Err
		}
	}
	return nil
}
