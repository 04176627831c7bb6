package platform

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/hartlab/rvmon/virt"
)

// Fabric routes inter-hart interrupts. Posting an interrupt schedules a
// delivery event on a discrete event engine; the pending bit lands in
// the target hart's mip when the event fires, which models the wire
// delay of a real interrupt controller and keeps cross-hart updates
// ordered.
type Fabric struct {
	engine  sim.Engine
	harts   []*virt.Context
	latency sim.VTimeInSec
}

// deliveryEvent carries one mip bit update to its target hart.
type deliveryEvent struct {
	*sim.EventBase

	target *virt.Context
	kind   virt.InterruptType
	clear  bool
}

// NewFabric creates an interrupt fabric on the given engine with a
// fixed delivery latency.
func NewFabric(engine sim.Engine, latency sim.VTimeInSec) *Fabric {
	return &Fabric{
		engine:  engine,
		latency: latency,
	}
}

// Connect attaches a hart to the fabric. The hart's index in attach
// order is its fabric address.
func (f *Fabric) Connect(ctx *virt.Context) {
	f.harts = append(f.harts, ctx)
}

// Harts returns the number of connected harts.
func (f *Fabric) Harts() int { return len(f.harts) }

// Post schedules delivery of an interrupt to the target hart.
func (f *Fabric) Post(target int, kind virt.InterruptType) error {
	return f.schedule(target, kind, false)
}

// Retract schedules clearing of an interrupt's pending bit on the
// target hart.
func (f *Fabric) Retract(target int, kind virt.InterruptType) error {
	return f.schedule(target, kind, true)
}

func (f *Fabric) schedule(target int, kind virt.InterruptType, clear bool) error {
	if target < 0 || target >= len(f.harts) {
		return fmt.Errorf("fabric: no hart %d", target)
	}

	evt := &deliveryEvent{
		EventBase: sim.NewEventBase(f.engine.CurrentTime()+f.latency, f),
		target:    f.harts[target],
		kind:      kind,
		clear:     clear,
	}
	f.engine.Schedule(evt)
	return nil
}

// Handle applies a delivery event to its target hart.
func (f *Fabric) Handle(e sim.Event) error {
	evt, ok := e.(*deliveryEvent)
	if !ok {
		return fmt.Errorf("fabric: unexpected event %T", e)
	}

	if evt.clear {
		evt.target.ClearInterruptPending(evt.kind)
	} else {
		evt.target.SetInterruptPending(evt.kind)
	}
	return nil
}

// Drain runs the engine until every scheduled delivery has fired.
func (f *Fabric) Drain() error {
	return f.engine.Run()
}
