package periph

import (
	"errors"

	"sensornet/core"
)

var (
	// ErrPrescalerRange is returned for prescalers wider than 12 bits.
	ErrPrescalerRange = errors.New("rtc: prescaler exceeds 12 bits")
	// ErrCompareRange is returned for periods the 24-bit counter cannot reach.
	ErrCompareRange = errors.New("rtc: compare exceeds 24 bits")
)

// CheckCompare reports whether ticks fits the compare register. Start masks
// its argument, so periods are checked once at configuration time.
func CheckCompare(ticks uint32) error {
	if ticks > core.RTCCounterMask {
		return ErrCompareRange
	}
	return nil
}

// RTCRegs is the RTC register set used for the periodic wake. The embedded
// Completion is COMPARE[0].
type RTCRegs interface {
	core.Completion

	SetPrescaler(p uint16)
	SetCompare(ticks uint32)

	// EnableEventRouting and DisableEventRouting drive EVTEN for COMPARE[0].
	EnableEventRouting()
	DisableEventRouting()

	Clear()
	Start()
	Stop()
	Counter() uint32
}

// RTC is the low-frequency real-time counter used as the wake source.
type RTC struct {
	regs      RTCRegs
	prescaler uint16
	owner     *core.Owner
}

// IdleRTC is a stopped RTC.
type IdleRTC struct {
	r     *RTC
	lease core.Lease
}

// ActiveRTC is an RTC counting toward its compare value.
type ActiveRTC struct {
	r     *RTC
	lease core.Lease
}

// NewRTC programs the prescaler and returns the idle handle.
func NewRTC(regs RTCRegs, prescaler uint16) (IdleRTC, error) {
	if prescaler > core.RTCPrescalerMax {
		return IdleRTC{}, ErrPrescalerRange
	}
	regs.SetPrescaler(prescaler)
	r := &RTC{regs: regs, prescaler: prescaler, owner: core.NewOwner("rtc")}
	return IdleRTC{r: r, lease: r.owner.Lease()}, nil
}

// Prescaler returns the configured prescaler.
func (h IdleRTC) Prescaler() uint16 {
	return h.r.prescaler
}

// Start clears the counter and arms a compare match after ticks ticks.
// ticks is masked to the 24-bit counter width.
func (h IdleRTC) Start(ticks uint32) ActiveRTC {
	next := h.lease.Transfer()
	r := h.r.regs
	r.ClearDone()
	r.SetCompare(ticks & core.RTCCounterMask)
	r.EnableEventRouting()
	core.Begin(r)
	r.Clear()
	r.Start()
	return ActiveRTC{r: h.r, lease: next}
}

// Sleep blocks for ticks RTC ticks.
func (h IdleRTC) Sleep(ticks uint32) IdleRTC {
	return h.Start(ticks).Wait()
}

// Completion exposes the compare event for core.AwaitAny.
func (h ActiveRTC) Completion() core.Completion {
	h.lease.Check()
	return h.r.regs
}

// Expired reports whether the compare match has happened.
func (h ActiveRTC) Expired() bool {
	h.lease.Check()
	return h.r.regs.Done()
}

// Wait sleeps until the compare match, then stops the counter.
func (h ActiveRTC) Wait() IdleRTC {
	next := h.lease.Transfer()
	r := h.r.regs
	core.Await(r)
	r.DisableEventRouting()
	r.Stop()
	core.Release(r)
	return IdleRTC{r: h.r, lease: next}
}
