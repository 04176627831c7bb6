// Package main provides the entry point for rvmon.
// rvmon virtualizes the machine-mode privileged state of RISC-V harts:
// it runs a flat firmware image against a virtual CSR file, PMP, and
// trap machinery described by a YAML platform file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hartlab/rvmon/platform"
	"github.com/hartlab/rvmon/virt"
)

var (
	configPath = flag.String("config", "", "Path to platform YAML file")
	steps      = flag.Uint64("steps", 10000, "Maximum instructions per hart")
	hart       = flag.Int("hart", 0, "Hart to run")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: rvmon [options] <firmware.bin>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	imagePath := flag.Arg(0)

	p, err := buildPlatform()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building platform: %v\n", err)
		os.Exit(1)
	}

	image, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading firmware: %v\n", err)
		os.Exit(1)
	}
	if err := p.LoadImage(image); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading firmware: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Platform: %s (%d harts)\n", p.Config.Name, p.Config.Harts)
		fmt.Printf("Firmware: %s (%d bytes at 0x%X)\n",
			imagePath, len(image), p.Memory.Base())
	}

	if err := run(p); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dumpState(p)
}

func buildPlatform() (*platform.Platform, error) {
	if *configPath != "" {
		return platform.Load(*configPath)
	}
	return platform.New(platform.Default())
}

// run steps the selected hart until the step budget is exhausted or a
// step fails.
func run(p *platform.Platform) error {
	if *hart < 0 || *hart >= len(p.Monitors) {
		return fmt.Errorf("no hart %d on this platform", *hart)
	}

	for i := uint64(0); i < *steps; i++ {
		res := p.Step(*hart)
		if res.Err != nil {
			return res.Err
		}
		if *verbose && res.Trapped {
			fmt.Printf("[%d] trap: %s\n", i, describeCause(res.Cause))
		}
	}
	return nil
}

func describeCause(cause virt.TrapCause) string {
	if cause.IsInterrupt {
		return fmt.Sprintf("interrupt %d (%s)",
			cause.Code, virt.InterruptType(cause.Code))
	}
	return fmt.Sprintf("exception %d", cause.Code)
}

// dumpState prints the privileged state of the hart that ran.
func dumpState(p *platform.Platform) {
	m := p.Monitors[*hart]
	ctx := m.Context()

	fmt.Printf("\nHart %d after %d instructions:\n",
		ctx.HartID(), m.InstructionCount())
	fmt.Printf("  privilege: %s\n", ctx.Privilege())
	fmt.Printf("  pc:        0x%016X\n", ctx.PC)

	for _, r := range []struct {
		name string
		id   virt.CSR
	}{
		{"mstatus", virt.CSRMstatus},
		{"mtvec", virt.CSRMtvec},
		{"mepc", virt.CSRMepc},
		{"mcause", virt.CSRMcause},
		{"mtval", virt.CSRMtval},
		{"mie", virt.CSRMie},
		{"mip", virt.CSRMip},
		{"mcycle", virt.CSRMcycle},
		{"minstret", virt.CSRMinstret},
	} {
		fmt.Printf("  %-9s 0x%016X\n", r.name+":", ctx.ReadCSR(r.id))
	}

	stats := p.Cache.Stats()
	fmt.Printf("  fetch cache: %d reads, %.1f%% hit rate\n",
		stats.Reads, 100*p.Cache.HitRate())

	if len(ctx.TrapCounts) > 0 {
		fmt.Printf("  traps taken:\n")
		for cause, count := range ctx.TrapCounts {
			fmt.Printf("    cause 0x%X: %d\n", cause, count)
		}
	}
}
