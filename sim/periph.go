//go:build !tinygo

package sim

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"sensornet/core"
	"sensornet/periph"
)

// Timer is a TIMER instance. Each started delay completes at once and
// advances the virtual clock.
type Timer struct {
	event
	mu         sync.Mutex
	configured bool
	running    bool
	compare    uint32
	elapsedUS  uint64
	starts     int
}

var _ periph.TimerRegs = (*Timer)(nil)

func NewTimer() *Timer { return &Timer{} }

func (t *Timer) Configure() {
	t.mu.Lock()
	t.configured = true
	t.mu.Unlock()
}

func (t *Timer) SetCompare(ticks uint32) {
	t.mu.Lock()
	t.compare = ticks
	t.mu.Unlock()
}

func (t *Timer) Clear() {}

func (t *Timer) Start() {
	t.mu.Lock()
	t.running = true
	t.starts++
	t.elapsedUS += uint64(core.TimerToUS(t.compare))
	t.mu.Unlock()
	t.set()
}

func (t *Timer) Stop() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// ElapsedUS is the virtual time spent in delays.
func (t *Timer) ElapsedUS() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedUS
}

// Starts counts started delays.
func (t *Timer) Starts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.starts
}

// Running reports whether the timer was left running.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// RTC is an RTC instance. By default a compare match happens as soon as
// the counter starts; SetManual and SetRealTime change that.
type RTC struct {
	event
	mu        sync.Mutex
	prescaler uint16
	compare   uint32
	counter   uint32
	routed    bool
	running   bool
	manual    bool
	tick      time.Duration
	timer     *time.Timer
	wakes     int
	ticks     uint64
}

var _ periph.RTCRegs = (*RTC)(nil)

func NewRTC() *RTC { return &RTC{} }

// SetManual holds compare matches until Fire is called.
func (r *RTC) SetManual(on bool) {
	r.mu.Lock()
	r.manual = on
	r.mu.Unlock()
}

// SetRealTime makes each tick last d of wall time. Zero restores instant
// matches.
func (r *RTC) SetRealTime(d time.Duration) {
	r.mu.Lock()
	r.tick = d
	r.mu.Unlock()
}

func (r *RTC) SetPrescaler(p uint16) {
	r.mu.Lock()
	r.prescaler = p
	r.mu.Unlock()
}

func (r *RTC) SetCompare(ticks uint32) {
	r.mu.Lock()
	r.compare = ticks
	r.mu.Unlock()
}

func (r *RTC) EnableEventRouting() {
	r.mu.Lock()
	r.routed = true
	r.mu.Unlock()
}

func (r *RTC) DisableEventRouting() {
	r.mu.Lock()
	r.routed = false
	r.mu.Unlock()
}

func (r *RTC) Clear() {
	r.mu.Lock()
	r.counter = 0
	r.mu.Unlock()
}

func (r *RTC) Start() {
	r.mu.Lock()
	r.running = true
	switch {
	case r.manual:
		r.mu.Unlock()
	case r.tick > 0:
		d := time.Duration(r.compare) * r.tick
		r.timer = time.AfterFunc(d, r.Fire)
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		r.Fire()
	}
}

func (r *RTC) Stop() {
	r.mu.Lock()
	r.running = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
}

func (r *RTC) Counter() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

// Fire advances the counter to the compare value and raises the compare
// event if the RTC is running.
func (r *RTC) Fire() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.ticks += uint64(r.compare - r.counter)
	r.counter = r.compare
	r.wakes++
	routed := r.routed
	r.mu.Unlock()
	if routed {
		r.set()
	}
}

// Wakes counts compare matches.
func (r *RTC) Wakes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wakes
}

// Ticks is the virtual time slept, in RTC ticks.
func (r *RTC) Ticks() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

// Compare returns the programmed compare value.
func (r *RTC) Compare() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compare
}

// Prescaler returns the programmed prescaler.
func (r *RTC) Prescaler() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prescaler
}

// RNG is the random number generator, fed from src.
type RNG struct {
	event
	mu      sync.Mutex
	src     io.Reader
	value   uint8
	bias    bool
	running bool
	draws   int
}

var _ periph.RNGRegs = (*RNG)(nil)

// NewRNG creates an RNG reading from src, or crypto/rand when src is nil.
func NewRNG(src io.Reader) *RNG {
	if src == nil {
		src = rand.Reader
	}
	return &RNG{src: src}
}

func (g *RNG) SetBiasCorrection(on bool) {
	g.mu.Lock()
	g.bias = on
	g.mu.Unlock()
}

func (g *RNG) Start() {
	var b [1]byte
	g.mu.Lock()
	g.running = true
	if _, err := io.ReadFull(g.src, b[:]); err != nil {
		g.mu.Unlock()
		return
	}
	g.value = b[0]
	g.draws++
	g.mu.Unlock()
	g.set()
}

func (g *RNG) Stop() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

func (g *RNG) Value() uint8 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// BiasCorrection reports DERCEN.
func (g *RNG) BiasCorrection() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bias
}

// Draws counts generated bytes.
func (g *RNG) Draws() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.draws
}

// Clock is the CLOCK peripheral's HF crystal control.
type Clock struct {
	event
	mu      sync.Mutex
	running bool
	starts  int
}

var _ periph.ClockRegs = (*Clock)(nil)

func NewClock() *Clock { return &Clock{} }

func (c *Clock) StartHFXO() {
	c.mu.Lock()
	c.running = true
	c.starts++
	c.mu.Unlock()
	c.set()
}

func (c *Clock) StopHFXO() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Clock) HFXORunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Starts counts crystal start requests.
func (c *Clock) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

// Power records sub-power mode requests.
type Power struct {
	mu   sync.Mutex
	mode periph.PowerMode
	sets int
}

var _ periph.PowerRegs = (*Power)(nil)

func NewPower() *Power { return &Power{} }

func (p *Power) TriggerLowPower() {
	p.mu.Lock()
	p.mode = periph.LowPower
	p.sets++
	p.mu.Unlock()
}

func (p *Power) TriggerConstantLatency() {
	p.mu.Lock()
	p.mode = periph.ConstantLatency
	p.sets++
	p.mu.Unlock()
}

// Mode returns the last requested mode.
func (p *Power) Mode() periph.PowerMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SAADC converts a settable supply voltage.
type SAADC struct {
	mu      sync.Mutex
	ain     uint8
	volts   float32
	enabled bool
	samples int
}

var _ periph.SAADCRegs = (*SAADC)(nil)

// NewSAADC creates an ADC measuring volts.
func NewSAADC(volts float32) *SAADC {
	return &SAADC{volts: volts}
}

// SetVolts changes the simulated supply.
func (a *SAADC) SetVolts(v float32) {
	a.mu.Lock()
	a.volts = v
	a.mu.Unlock()
}

func (a *SAADC) Configure(ain uint8) {
	a.mu.Lock()
	a.ain = ain
	a.mu.Unlock()
}

func (a *SAADC) Enable() {
	a.mu.Lock()
	a.enabled = true
	a.mu.Unlock()
}

func (a *SAADC) Disable() {
	a.mu.Lock()
	a.enabled = false
	a.mu.Unlock()
}

func (a *SAADC) Sample() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples++
	return periph.VoltsToRaw(a.volts)
}

// Enabled reports whether the ADC was left enabled.
func (a *SAADC) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Samples counts conversions.
func (a *SAADC) Samples() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.samples
}

// FICR holds factory identity words.
type FICR struct {
	ID     [2]uint32
	PartNo uint32
}

var _ periph.FICRRegs = FICR{}

// NewFICR builds the identity words for a 64-bit device id.
func NewFICR(deviceID uint64, part uint32) FICR {
	return FICR{ID: [2]uint32{uint32(deviceID), uint32(deviceID >> 32)}, PartNo: part}
}

func (f FICR) DeviceID() [2]uint32 { return f.ID }
func (f FICR) Part() uint32        { return f.PartNo }

// UICR holds customer words, erased by default.
type UICR struct {
	Words [32]uint32
}

var _ periph.UICRRegs = (*UICR)(nil)

// NewUICR returns an erased UICR.
func NewUICR() *UICR {
	u := &UICR{}
	for i := range u.Words {
		u.Words[i] = 0xFFFFFFFF
	}
	return u
}

func (u *UICR) Customer(i int) uint32 {
	if i < 0 || i >= len(u.Words) {
		return 0xFFFFFFFF
	}
	return u.Words[i]
}
