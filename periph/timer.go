package periph

import "sensornet/core"

// TimerRegs is the TIMER register set used for one-shot delays. The
// embedded Completion is COMPARE[0].
type TimerRegs interface {
	core.Completion

	// Configure selects timer mode, 32-bit width and the 1 MHz prescaler.
	Configure()
	SetCompare(ticks uint32)
	Clear()
	Start()
	Stop()
}

// Timer is a one-shot microsecond timer.
type Timer struct {
	regs  TimerRegs
	owner *core.Owner
}

// IdleTimer is a timer with no delay outstanding.
type IdleTimer struct {
	t     *Timer
	lease core.Lease
}

// ActiveTimer is a timer counting toward its compare value.
type ActiveTimer struct {
	t     *Timer
	lease core.Lease
}

// NewTimer configures the timer and returns its idle handle.
func NewTimer(regs TimerRegs) IdleTimer {
	regs.Configure()
	t := &Timer{regs: regs, owner: core.NewOwner("timer")}
	return IdleTimer{t: t, lease: t.owner.Lease()}
}

// Start arms a one-shot delay of us microseconds.
func (h IdleTimer) Start(us uint32) ActiveTimer {
	next := h.lease.Transfer()
	r := h.t.regs
	r.Clear()
	r.SetCompare(core.TimerFromUS(us))
	core.Begin(r)
	r.Start()
	return ActiveTimer{t: h.t, lease: next}
}

// Sleep blocks for us microseconds.
func (h IdleTimer) Sleep(us uint32) IdleTimer {
	return h.Start(us).Wait()
}

// Wait sleeps until the compare match and stops the timer.
func (h ActiveTimer) Wait() IdleTimer {
	next := h.lease.Transfer()
	r := h.t.regs
	core.Await(r)
	r.Stop()
	core.Release(r)
	return IdleTimer{t: h.t, lease: next}
}
