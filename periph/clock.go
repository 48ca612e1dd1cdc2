package periph

import "sensornet/core"

// ClockRegs is the CLOCK register set for the high-frequency crystal. The
// embedded Completion is HFCLKSTARTED.
type ClockRegs interface {
	core.Completion

	StartHFXO()
	StopHFXO()

	// HFXORunning reads HFCLKSTAT: running from the crystal.
	HFXORunning() bool
}

// Clock controls the 64 MHz crystal the radio requires.
type Clock struct {
	regs  ClockRegs
	owner *core.Owner
}

// IdleClock is the clock with no start request outstanding.
type IdleClock struct {
	c     *Clock
	lease core.Lease
}

// ActiveClock is a crystal start in progress.
type ActiveClock struct {
	c     *Clock
	lease core.Lease
}

// NewClock returns the idle clock handle.
func NewClock(regs ClockRegs) IdleClock {
	c := &Clock{regs: regs, owner: core.NewOwner("clock")}
	return IdleClock{c: c, lease: c.owner.Lease()}
}

// StartHF requests the crystal oscillator.
func (h IdleClock) StartHF() ActiveClock {
	next := h.lease.Transfer()
	r := h.c.regs
	r.ClearDone()
	core.Begin(r)
	r.StartHFXO()
	return ActiveClock{c: h.c, lease: next}
}

// EnableHF starts the crystal and waits until it is stable.
func (h IdleClock) EnableHF() IdleClock {
	return h.StartHF().Wait()
}

// StopHF releases the crystal; the core falls back to the RC oscillator.
func (h IdleClock) StopHF() IdleClock {
	h.lease.Check()
	h.c.regs.StopHFXO()
	return h
}

// Running reports whether the crystal is the active HF source.
func (h IdleClock) Running() bool {
	h.lease.Check()
	return h.c.regs.HFXORunning()
}

// Wait sleeps until HFCLKSTARTED.
func (h ActiveClock) Wait() IdleClock {
	next := h.lease.Transfer()
	core.Wait(h.c.regs)
	return IdleClock{c: h.c, lease: next}
}

// PowerMode selects the sub-power mode used while sleeping.
type PowerMode uint8

const (
	LowPower PowerMode = iota
	ConstantLatency
)

// PowerRegs is the POWER register set.
type PowerRegs interface {
	TriggerLowPower()
	TriggerConstantLatency()
}

// Power wraps the POWER peripheral.
type Power struct {
	regs PowerRegs
	mode PowerMode
}

// NewPower returns a Power in low-power mode.
func NewPower(regs PowerRegs) *Power {
	p := &Power{regs: regs}
	p.SetMode(LowPower)
	return p
}

// SetMode selects the sleep sub-power mode.
func (p *Power) SetMode(mode PowerMode) {
	switch mode {
	case ConstantLatency:
		p.regs.TriggerConstantLatency()
	default:
		p.regs.TriggerLowPower()
	}
	p.mode = mode
}

// Mode returns the current sub-power mode.
func (p *Power) Mode() PowerMode {
	return p.mode
}
