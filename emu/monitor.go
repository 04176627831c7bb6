// Package emu provides the instruction-level monitor dispatcher. It
// emulates the privileged instructions a machine-mode monitor intercepts
// from the virtualized firmware, applying them to the virtual CSR state
// in package virt.
package emu

import (
	"fmt"

	"github.com/hartlab/rvmon/insts"
	"github.com/hartlab/rvmon/virt"
)

// StepResult represents the result of dispatching a single instruction.
type StepResult struct {
	// Trapped is true if the instruction (or a pending interrupt)
	// delivered a trap into the virtual hart.
	Trapped bool

	// Cause is the delivered trap cause if Trapped is true.
	Cause virt.TrapCause

	// NextPC is the program counter after the step: the next sequential
	// instruction, the xRET target, or the trap handler.
	NextPC uint64

	// Err is set if the dispatcher itself failed. Guest-visible faults
	// are reported through Trapped, never through Err.
	Err error
}

// Monitor dispatches privileged instructions against one virtual hart.
type Monitor struct {
	ctx     *virt.Context
	decoder *insts.Decoder

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit

	// timerStride is how far the virtual mtime advances per retired
	// instruction.
	timerStride uint64
}

// MonitorOption is a functional option for configuring the Monitor.
type MonitorOption func(*Monitor)

// WithMaxInstructions sets the maximum number of instructions to
// dispatch. A value of 0 means no limit.
func WithMaxInstructions(max uint64) MonitorOption {
	return func(m *Monitor) {
		m.maxInstructions = max
	}
}

// WithTimerStride sets how many mtime ticks each retired instruction
// accounts for. A value of 0 stops the virtual timer.
func WithTimerStride(stride uint64) MonitorOption {
	return func(m *Monitor) {
		m.timerStride = stride
	}
}

// NewMonitor creates a monitor for one virtual hart.
func NewMonitor(cfg virt.Config, hartID uint64, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		ctx:         virt.NewContext(cfg, hartID),
		decoder:     insts.NewDecoder(),
		timerStride: 1,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Context returns the virtual privileged state of the hart.
func (m *Monitor) Context() *virt.Context {
	return m.ctx
}

// InstructionCount returns the number of instructions dispatched.
func (m *Monitor) InstructionCount() uint64 {
	return m.instructionCount
}

// ReadReg returns a general-purpose register, with x0 hardwired to
// zero.
func (m *Monitor) ReadReg(r uint8) uint64 {
	if r == 0 {
		return 0
	}
	return m.ctx.IntRegs[r]
}

// WriteReg sets a general-purpose register; writes to x0 are dropped.
func (m *Monitor) WriteReg(r uint8, v uint64) {
	if r != 0 {
		m.ctx.IntRegs[r] = v
	}
}

// CheckAccess checks a guest physical memory access against the PMP at
// the effective privilege. An mstatus.MPRV data access is checked at
// the MPP privilege instead of the current one.
func (m *Monitor) CheckAccess(addr, width uint64, acc virt.AccessType) (virt.ExceptionType, bool) {
	p := m.ctx.Privilege()
	mstatus := m.ctx.ReadCSR(virt.CSRMstatus)
	if acc != virt.AccessExecute && mstatus&virt.MstatusMPRV != 0 {
		p = virt.PrivilegeLevel(mstatus >> 11 & 0b11)
	}
	return m.ctx.CheckPMP(addr, width, acc, p)
}

// Step dispatches one instruction word fetched at the hart's current
// PC. Pending interrupts preempt the instruction.
func (m *Monitor) Step(word uint32) StepResult {
	if m.maxInstructions > 0 && m.instructionCount >= m.maxInstructions {
		return StepResult{Err: fmt.Errorf("max instructions reached")}
	}

	if handler, kind, ok := m.ctx.StepInterrupts(m.ctx.PC); ok {
		m.ctx.PC = handler
		return StepResult{
			Trapped: true,
			Cause:   virt.InterruptCause(kind),
			NextPC:  handler,
		}
	}

	inst := m.decoder.Decode(word)
	result := m.execute(inst)

	m.instructionCount++
	m.retireCounters()
	m.tickTimer()

	return result
}

// retireCounters advances mcycle and minstret unless inhibited.
func (m *Monitor) retireCounters() {
	inhibit := m.ctx.ReadCSR(virt.CSRMcountinhibit)
	if inhibit&0b001 == 0 {
		m.ctx.WriteCSR(virt.CSRMcycle, m.ctx.ReadCSR(virt.CSRMcycle)+1)
	}
	if inhibit&0b100 == 0 {
		m.ctx.WriteCSR(virt.CSRMinstret, m.ctx.ReadCSR(virt.CSRMinstret)+1)
	}
}

// tickTimer advances the virtual CLINT and raises the machine timer
// interrupt when mtime reaches mtimecmp.
func (m *Monitor) tickTimer() {
	m.ctx.Mtime += m.timerStride
	if m.ctx.Mtimecmp != 0 && m.ctx.Mtime >= m.ctx.Mtimecmp {
		m.ctx.SetInterruptPending(virt.IntMachineTimer)
	}
}

// execute dispatches a decoded instruction.
func (m *Monitor) execute(inst *insts.Instruction) StepResult {
	if inst.IsCSROp() {
		return m.executeCSR(inst)
	}

	switch inst.Op {
	case insts.OpMRET:
		return m.executeRet(m.ctx.MRet, inst)
	case insts.OpSRET:
		return m.executeRet(m.ctx.SRet, inst)
	case insts.OpURET:
		return m.executeRet(m.ctx.URet, inst)
	case insts.OpWFI:
		return m.executeWFI(inst)
	case insts.OpECALL:
		return m.executeECALL()
	case insts.OpEBREAK:
		return m.trap(virt.ExcBreakpoint, m.ctx.PC)
	case insts.OpSFENCEVMA:
		return m.executeSFENCE(inst)
	case insts.OpFENCE, insts.OpFENCEI:
		// Fences are ordering-only under emulation.
		return m.advance()
	default:
		return m.trap(virt.ExcIllegalInstruction, uint64(inst.Raw))
	}
}

// executeCSR emulates the six Zicsr operations with read/modify/write
// semantics and access control.
func (m *Monitor) executeCSR(inst *insts.Instruction) StepResult {
	id := virt.CSR(inst.CSR)
	isWrite := inst.WritesCSR()

	if !m.ctx.CheckCSR(id, m.ctx.Privilege(), isWrite) {
		return m.trap(virt.ExcIllegalInstruction, uint64(inst.Raw))
	}

	src := m.ReadReg(inst.Rs1)
	if inst.IsImmediate() {
		src = inst.Uimm
	}

	old := m.ctx.ReadCSR(id)
	if isWrite {
		var v uint64
		switch inst.Op {
		case insts.OpCSRRW, insts.OpCSRRWI:
			v = src
		case insts.OpCSRRS, insts.OpCSRRSI:
			v = old | src
		case insts.OpCSRRC, insts.OpCSRRCI:
			v = old &^ src
		}
		m.ctx.WriteCSR(id, v)
	}
	m.WriteReg(inst.Rd, old)

	return m.advance()
}

// executeRet runs one of the xRET operations, converting an illegal
// attempt into a guest trap.
func (m *Monitor) executeRet(ret func() (uint64, error), inst *insts.Instruction) StepResult {
	pc, err := ret()
	if err != nil {
		return m.trap(virt.ExcIllegalInstruction, uint64(inst.Raw))
	}
	m.ctx.PC = pc
	return StepResult{NextPC: pc}
}

// executeWFI emulates WFI by fast-forwarding the virtual timer to the
// next timer event instead of stalling. It is illegal in User mode, and
// in Supervisor mode when mstatus.TW is set.
func (m *Monitor) executeWFI(inst *insts.Instruction) StepResult {
	p := m.ctx.Privilege()
	if p == virt.PrivUser {
		return m.trap(virt.ExcIllegalInstruction, uint64(inst.Raw))
	}
	if p == virt.PrivSupervisor &&
		m.ctx.ReadCSR(virt.CSRMstatus)&virt.MstatusTW != 0 {
		return m.trap(virt.ExcIllegalInstruction, uint64(inst.Raw))
	}

	if m.ctx.Mtimecmp > m.ctx.Mtime {
		skipped := m.ctx.Mtimecmp - m.ctx.Mtime
		m.ctx.Mtime = m.ctx.Mtimecmp
		if m.ctx.ReadCSR(virt.CSRMcountinhibit)&0b001 == 0 {
			m.ctx.WriteCSR(virt.CSRMcycle,
				m.ctx.ReadCSR(virt.CSRMcycle)+skipped)
		}
		m.ctx.SetInterruptPending(virt.IntMachineTimer)
	}

	return m.advance()
}

// executeECALL raises the environment call matching the current mode.
func (m *Monitor) executeECALL() StepResult {
	var e virt.ExceptionType
	switch m.ctx.Privilege() {
	case virt.PrivUser:
		e = virt.ExcEnvCallFromUser
	case virt.PrivSupervisor:
		e = virt.ExcEnvCallFromSup
	default:
		e = virt.ExcEnvCallFromMachine
	}
	return m.trap(e, 0)
}

// executeSFENCE emulates SFENCE.VMA, which under full CSR virtualization
// needs no TLB action. mstatus.TVM intercepts it in Supervisor mode and
// it does not exist in User mode.
func (m *Monitor) executeSFENCE(inst *insts.Instruction) StepResult {
	switch m.ctx.Privilege() {
	case virt.PrivUser:
		return m.trap(virt.ExcIllegalInstruction, uint64(inst.Raw))
	case virt.PrivSupervisor:
		if m.ctx.ReadCSR(virt.CSRMstatus)&virt.MstatusTVM != 0 {
			return m.trap(virt.ExcIllegalInstruction, uint64(inst.Raw))
		}
	}
	return m.advance()
}

// trap delivers a synchronous exception at the current PC.
func (m *Monitor) trap(e virt.ExceptionType, tval uint64) StepResult {
	handler := m.ctx.TakeException(e, m.ctx.PC, tval)
	m.ctx.PC = handler
	return StepResult{Trapped: true, Cause: virt.ExceptionCause(e), NextPC: handler}
}

// advance retires the instruction sequentially.
func (m *Monitor) advance() StepResult {
	m.ctx.PC += 4
	return StepResult{NextPC: m.ctx.PC}
}
