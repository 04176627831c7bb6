package virt

// interruptPriority orders the standard interrupts highest first:
// external before software before timer, machine before supervisor
// before user.
var interruptPriority = [...]InterruptType{
	IntMachineExternal, IntMachineSoftware, IntMachineTimer,
	IntSupervisorExternal, IntSupervisorSoftware, IntSupervisorTimer,
	IntUserExternal, IntUserSoftware, IntUserTimer,
}

func findPendingInterrupt(pending uint64) (InterruptType, bool) {
	for _, i := range interruptPriority {
		if pending&i.Bit() != 0 {
			return i, true
		}
	}
	return 0, false
}

// PendingInterrupt returns the highest-priority interrupt that is
// pending, enabled, and deliverable at the current privilege, together
// with the mode that will handle it. Delegation is resolved in two
// stages: mideleg pushes an interrupt from Machine to Supervisor, and
// sideleg from Supervisor to User. An interrupt destined for a mode at
// or above the current one is gated by that mode's xIE bit; a mode
// strictly above the current one is always eligible.
func (c *Context) PendingInterrupt() (InterruptType, PrivilegeLevel, bool) {
	pending := c.csr.mip & c.csr.mie & c.visibleInterrupts()
	if pending == 0 {
		return 0, 0, false
	}

	machineEnabled := c.mode != PrivMachine || c.csr.mstatus&MstatusMIE != 0
	supervisorEnabled := c.cfg.HasSupervisor &&
		(c.mode == PrivUser ||
			(c.mode == PrivSupervisor && c.csr.mstatus&MstatusSIE != 0))
	userEnabled := c.cfg.HasNExt && c.mode == PrivUser &&
		c.csr.mstatus&MstatusUIE != 0

	if set := pending &^ c.csr.mideleg; set != 0 && machineEnabled {
		i, _ := findPendingInterrupt(set)
		return i, PrivMachine, true
	}
	delegated := pending & c.csr.mideleg
	if set := delegated &^ c.csr.sideleg; set != 0 && supervisorEnabled {
		i, _ := findPendingInterrupt(set)
		return i, PrivSupervisor, true
	}
	if set := delegated & c.csr.sideleg; set != 0 && userEnabled {
		i, _ := findPendingInterrupt(set)
		return i, PrivUser, true
	}
	return 0, 0, false
}

// StepInterrupts delivers the pending interrupt, if any, with pc as the
// interrupted instruction address. It returns the handler address, the
// interrupt that was delivered, and whether a trap was taken. The
// delivered interrupt is reported directly so callers need not read it
// back from whichever xcause register delegation selected.
func (c *Context) StepInterrupts(pc uint64) (uint64, InterruptType, bool) {
	i, del, ok := c.PendingInterrupt()
	if !ok {
		return 0, 0, false
	}
	return c.TakeInterrupt(i, del, pc), i, true
}

// SetInterruptPending asserts an interrupt's mip bit. This is the entry
// point for the timer, the interrupt fabric, and external controllers;
// bits outside the configured feature set are ignored.
func (c *Context) SetInterruptPending(i InterruptType) {
	c.csr.mip |= i.Bit() & c.visibleInterrupts()
}

// ClearInterruptPending deasserts an interrupt's mip bit.
func (c *Context) ClearInterruptPending(i InterruptType) {
	c.csr.mip &^= i.Bit()
}
