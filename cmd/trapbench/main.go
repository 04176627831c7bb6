// Package main provides trapbench, a microbenchmark driver for the
// privileged-state engine. It times trap entry/return round trips per
// cause and renders the results as a bar chart.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hartlab/rvmon/emu"
	"github.com/hartlab/rvmon/virt"
)

var (
	iterations = flag.Uint64("n", 100000, "Iterations per benchmark")
	output     = flag.String("o", "trapbench.png", "Output chart file")
	verbose    = flag.Bool("v", false, "Verbose output")
)

// Instruction words driven through the monitor.
const (
	wordCSRSwap = 0x340312F3 // csrrw x5, mscratch, x6
	wordECALL   = 0x00000073
	wordEBREAK  = 0x00100073
	wordMRET    = 0x30200073
	wordSRET    = 0x10200073
	wordFENCE   = 0x0FF0000F
	wordIllegal = 0xFFFFFFFF
)

// benchmark drives one trap scenario: setup prepares the hart, iterate
// runs one round trip.
type benchmark struct {
	name    string
	setup   func(m *emu.Monitor)
	iterate func(m *emu.Monitor)
}

func benchmarks() []benchmark {
	return []benchmark{
		{
			name:  "csr-swap",
			setup: func(m *emu.Monitor) { m.WriteReg(6, 0x1234) },
			iterate: func(m *emu.Monitor) {
				m.Step(wordCSRSwap)
			},
		},
		{
			name: "ecall+mret",
			iterate: func(m *emu.Monitor) {
				m.Step(wordECALL)
				m.Step(wordMRET)
			},
		},
		{
			name: "ebreak+mret",
			iterate: func(m *emu.Monitor) {
				m.Step(wordEBREAK)
				m.Step(wordMRET)
			},
		},
		{
			name: "illegal+mret",
			iterate: func(m *emu.Monitor) {
				m.Step(wordIllegal)
				m.Step(wordMRET)
			},
		},
		{
			name: "ecall-delegated",
			setup: func(m *emu.Monitor) {
				ctx := m.Context()
				ctx.WriteCSR(virt.CSRStvec, 0x80200000)
				ctx.WriteCSR(virt.CSRMedeleg,
					virt.ExcEnvCallFromUser.Bit())
				ctx.SetPrivilege(virt.PrivUser)
			},
			iterate: func(m *emu.Monitor) {
				m.Step(wordECALL)
				m.Step(wordSRET)
			},
		},
		{
			name: "interrupt+mret",
			setup: func(m *emu.Monitor) {
				ctx := m.Context()
				ctx.WriteCSR(virt.CSRMie,
					virt.IntMachineSoftware.Bit())
				ctx.WriteCSR(virt.CSRMstatus, virt.MstatusMIE)
			},
			iterate: func(m *emu.Monitor) {
				ctx := m.Context()
				ctx.SetInterruptPending(virt.IntMachineSoftware)
				m.Step(wordFENCE)
				ctx.ClearInterruptPending(virt.IntMachineSoftware)
				m.Step(wordMRET)
			},
		},
	}
}

func newBenchMonitor() *emu.Monitor {
	m := emu.NewMonitor(virt.Config{
		HasSupervisor: true,
		HasUser:       true,
		HasCompressed: true,
		PMPCount:      16,
		MaxAddress:    0xFFFFFFFF,
	}, 0)

	ctx := m.Context()
	ctx.PC = 0x80000000
	ctx.WriteCSR(virt.CSRMtvec, 0x80100000)
	return m
}

type result struct {
	name  string
	nsOp  float64
	traps uint64
}

func runBenchmark(b benchmark) result {
	m := newBenchMonitor()
	if b.setup != nil {
		b.setup(m)
	}

	start := time.Now()
	for i := uint64(0); i < *iterations; i++ {
		b.iterate(m)
	}
	elapsed := time.Since(start)

	var traps uint64
	for _, n := range m.Context().TrapCounts {
		traps += n
	}

	return result{
		name:  b.name,
		nsOp:  float64(elapsed.Nanoseconds()) / float64(*iterations),
		traps: traps,
	}
}

func renderChart(results []result, path string) error {
	p := plot.New()
	p.Title.Text = "Trap round-trip cost"
	p.Y.Label.Text = "ns/op"

	values := make(plotter.Values, len(results))
	names := make([]string, len(results))
	for i, r := range results {
		values[i] = r.nsOp
		names[i] = r.name
	}

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return fmt.Errorf("building chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(names...)

	return p.Save(7*vg.Inch, 4*vg.Inch, path)
}

func main() {
	flag.Parse()

	results := make([]result, 0)
	for _, b := range benchmarks() {
		if *verbose {
			fmt.Printf("running %s...\n", b.name)
		}
		results = append(results, runBenchmark(b))
	}

	fmt.Printf("%-18s %12s %12s\n", "benchmark", "ns/op", "traps")
	for _, r := range results {
		fmt.Printf("%-18s %12.1f %12d\n", r.name, r.nsOp, r.traps)
	}

	if err := renderChart(results, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering chart: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("chart written to %s\n", *output)
}
