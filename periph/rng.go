package periph

import "sensornet/core"

// RNGRegs is the RNG register set. The embedded Completion is VALRDY.
type RNGRegs interface {
	core.Completion

	// SetBiasCorrection enables the digital error correction (DERCEN).
	SetBiasCorrection(on bool)
	Start()
	Stop()
	Value() uint8
}

// RNG is the hardware random number generator.
type RNG struct {
	regs  RNGRegs
	owner *core.Owner
}

// IdleRNG is a stopped generator.
type IdleRNG struct {
	g     *RNG
	lease core.Lease
}

// ActiveRNG is a generator producing one byte.
type ActiveRNG struct {
	g     *RNG
	lease core.Lease
}

// NewRNG enables bias correction and returns the idle handle.
func NewRNG(regs RNGRegs) IdleRNG {
	regs.SetBiasCorrection(true)
	g := &RNG{regs: regs, owner: core.NewOwner("rng")}
	return IdleRNG{g: g, lease: g.owner.Lease()}
}

// Start requests one random byte.
func (h IdleRNG) Start() ActiveRNG {
	next := h.lease.Transfer()
	r := h.g.regs
	core.Begin(r)
	r.Start()
	return ActiveRNG{g: h.g, lease: next}
}

// Wait sleeps until the byte is ready and returns it.
func (h ActiveRNG) Wait() (IdleRNG, byte) {
	next := h.lease.Transfer()
	r := h.g.regs
	core.Await(r)
	v := r.Value()
	r.Stop()
	core.Release(r)
	return IdleRNG{g: h.g, lease: next}, v
}

// Fill writes len(p) random bytes into p.
func (h IdleRNG) Fill(p []byte) IdleRNG {
	for i := range p {
		h, p[i] = h.Start().Wait()
	}
	return h
}
