//go:build !tinygo

package sim

import (
	"sync"

	"sensornet/core"
	"sensornet/radio"
)

// maxQueued bounds frames held for a configured receiver that is between
// receive windows.
const maxQueued = 16

// DefaultRSSI is the RSSI sample reported for delivered frames.
const DefaultRSSI = 60

// Frame is one transmission on the air: address, PDU and CRC.
type Frame struct {
	Frequency uint8
	Bytes     []byte
}

// Air is the radio medium shared by every simulated radio. A frame sent
// by one radio is delivered to every other radio on the same frequency
// whose address filter matches it.
type Air struct {
	mu     sync.Mutex
	radios []*Radio
	tamper func(f *Frame)
	rssi   uint8
	sent   int
	log    []Frame
	logMax int
}

// NewAir creates an empty medium.
func NewAir() *Air {
	return &Air{rssi: DefaultRSSI, logMax: 256}
}

// NewRadio attaches a new radio to the medium.
func (a *Air) NewRadio() *Radio {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := &Radio{air: a}
	a.radios = append(a.radios, r)
	return r
}

// SetTamper installs a hook that may modify every frame in flight.
func (a *Air) SetTamper(fn func(f *Frame)) {
	a.mu.Lock()
	a.tamper = fn
	a.mu.Unlock()
}

// SetRSSI sets the RSSI sample receivers report.
func (a *Air) SetRSSI(v uint8) {
	a.mu.Lock()
	a.rssi = v
	a.mu.Unlock()
}

// Sent counts frames put on the air.
func (a *Air) Sent() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sent
}

// Log returns copies of the most recent frames.
func (a *Air) Log() []Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Frame, len(a.log))
	for i, f := range a.log {
		out[i] = Frame{Frequency: f.Frequency, Bytes: append([]byte(nil), f.Bytes...)}
	}
	return out
}

// Inject puts a well-formed frame carrying payload on the air, addressed
// the way a sensor node addresses it.
func (a *Air) Inject(payload []byte) {
	pdu := make([]byte, 0, len(payload)+2)
	n := len(payload) + 1
	if n > radio.MaxLength {
		n = radio.MaxLength
	}
	pdu = append(pdu, byte(n))
	pdu = append(pdu, payload...)
	pdu = append(pdu, 0)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transmit(nil, radio.Frequency, buildFrame(radio.TxPrefix, radio.BaseAddress, pdu))
}

func buildFrame(prefix uint8, base uint32, pdu []byte) []byte {
	f := make([]byte, 0, 1+radio.BaseLength+len(pdu)+radio.CRCLength)
	f = append(f, prefix, byte(base>>24), byte(base>>16), byte(base>>8), byte(base))
	f = append(f, pdu...)
	return radio.AppendCRC24(f)
}

// transmit delivers a frame to every radio but from; caller holds mu.
func (a *Air) transmit(from *Radio, freq uint8, bytes []byte) {
	f := Frame{Frequency: freq, Bytes: bytes}
	if a.tamper != nil {
		a.tamper(&f)
	}
	a.sent++
	a.log = append(a.log, f)
	if len(a.log) > a.logMax {
		a.log = a.log[len(a.log)-a.logMax:]
	}
	for _, r := range a.radios {
		if r == from {
			continue
		}
		r.receive(f)
	}
}

// Radio is a RADIO instance on an Air. All state is guarded by the
// medium's lock.
type Radio struct {
	air        *Air
	powered    bool
	configured bool
	cfg        radio.Config
	buf        *[radio.BufferSize]byte
	inten      radio.Event
	events     radio.Event
	listening  bool
	queue      []Frame
	rssi       uint8
	match      uint8
	irqs       int
	received   int
	crcErrors  int
}

var _ radio.Regs = (*Radio)(nil)

func (r *Radio) SetPower(on bool) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.powered = on
	if !on {
		r.configured = false
		r.listening = false
		r.inten = 0
		r.events = 0
		r.queue = nil
	}
}

func (r *Radio) Configure(cfg *radio.Config) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.cfg = *cfg
	r.configured = r.powered
}

func (r *Radio) SetPacketPtr(buf *[radio.BufferSize]byte) {
	r.air.mu.Lock()
	r.buf = buf
	r.air.mu.Unlock()
}

func (r *Radio) EnableInterrupts(ev radio.Event) {
	r.air.mu.Lock()
	r.inten |= ev
	fire := r.pendingIRQ()
	r.air.mu.Unlock()
	if fire {
		core.RaiseInterrupt()
	}
}

func (r *Radio) DisableInterrupts(ev radio.Event) {
	r.air.mu.Lock()
	r.inten &^= ev
	r.air.mu.Unlock()
}

func (r *Radio) Events() radio.Event {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.events
}

func (r *Radio) ClearEvents(ev radio.Event) {
	r.air.mu.Lock()
	r.events &^= ev
	r.air.mu.Unlock()
}

func (r *Radio) TriggerTxEn() {
	a := r.air
	a.mu.Lock()
	if !r.configured || r.buf == nil {
		a.mu.Unlock()
		return
	}
	r.events |= radio.EventReady

	n := int(r.buf[0])
	if n > int(r.cfg.MaxLength) {
		n = int(r.cfg.MaxLength)
	}
	pdu := append([]byte(nil), r.buf[:1+n]...)
	prefix := uint8(r.cfg.Prefix0 >> (8 * uint(r.cfg.TxAddress)))
	base := r.cfg.Base0
	if r.cfg.TxAddress != 0 {
		base = r.cfg.Base1
	}

	r.events |= radio.EventAddress | radio.EventPayload | radio.EventEnd
	if r.cfg.Shorts&radio.ShortEndDisable != 0 {
		r.events |= radio.EventDisabled
	}
	a.transmit(r, r.cfg.Frequency, buildFrame(prefix, base, pdu))
	fire := r.pendingIRQ()
	a.mu.Unlock()
	if fire {
		core.RaiseInterrupt()
	}
}

func (r *Radio) TriggerRxEn() {
	a := r.air
	a.mu.Lock()
	if !r.configured || r.buf == nil {
		a.mu.Unlock()
		return
	}
	r.events |= radio.EventReady
	r.listening = true
	for len(r.queue) > 0 && r.listening {
		f := r.queue[0]
		r.queue = r.queue[1:]
		r.deliver(f)
	}
	fire := r.pendingIRQ()
	a.mu.Unlock()
	if fire {
		core.RaiseInterrupt()
	}
}

func (r *Radio) TriggerDisable() {
	a := r.air
	a.mu.Lock()
	r.listening = false
	r.events |= radio.EventDisabled
	fire := r.pendingIRQ()
	a.mu.Unlock()
	if fire {
		core.RaiseInterrupt()
	}
}

func (r *Radio) RSSISample() uint8 {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.rssi
}

func (r *Radio) RxMatch() uint8 {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.match
}

// receive handles a frame from the air; caller holds the medium lock.
func (r *Radio) receive(f Frame) {
	if !r.configured || r.cfg.Frequency != f.Frequency || r.cfg.RxAddresses == 0 {
		return
	}
	if !r.listening {
		if len(r.queue) < maxQueued {
			r.queue = append(r.queue, f)
		}
		return
	}
	r.deliver(f)
	if r.pendingIRQ() {
		core.RaiseInterrupt()
	}
}

// deliver writes a frame into the packet buffer if the address filter
// matches; caller holds the medium lock.
func (r *Radio) deliver(f Frame) {
	b := f.Bytes
	if len(b) < 1+radio.BaseLength+1+radio.CRCLength {
		return
	}
	match, ok := r.addressMatch(b[:1+radio.BaseLength])
	if !ok {
		return
	}

	pdu := b[1+radio.BaseLength : len(b)-radio.CRCLength]
	n := int(pdu[0])
	if n > int(r.cfg.MaxLength) {
		n = int(r.cfg.MaxLength)
	}
	r.buf[0] = byte(n)
	copy(r.buf[1:1+n], pdu[1:])

	ev := radio.EventAddress | radio.EventPayload | radio.EventEnd
	if r.cfg.Shorts&radio.ShortAddressRSSIStart != 0 {
		ev |= radio.EventRSSIEnd
		r.rssi = r.air.rssi
	}
	if radio.CheckCRC24(b) {
		ev |= radio.EventCRCOK
	} else {
		ev |= radio.EventCRCError
		r.crcErrors++
	}
	if r.cfg.Shorts&radio.ShortEndDisable != 0 {
		ev |= radio.EventDisabled
		r.listening = false
	}
	r.match = match
	r.events |= ev
	r.received++
}

func (r *Radio) addressMatch(addr []byte) (uint8, bool) {
	for n := uint8(0); n < 4; n++ {
		if r.cfg.RxAddresses&(1<<n) == 0 {
			continue
		}
		base := r.cfg.Base0
		if n != 0 {
			base = r.cfg.Base1
		}
		if addr[0] == uint8(r.cfg.Prefix0>>(8*n)) &&
			addr[1] == byte(base>>24) && addr[2] == byte(base>>16) &&
			addr[3] == byte(base>>8) && addr[4] == byte(base) {
			return n, true
		}
	}
	return 0, false
}

// pendingIRQ models the IRQ handler: any enabled event masks every radio
// interrupt. Caller holds the medium lock and raises the line.
func (r *Radio) pendingIRQ() bool {
	if r.inten&r.events == 0 {
		return false
	}
	r.inten = 0
	r.irqs++
	return true
}

// Powered reports the POWER register.
func (r *Radio) Powered() bool {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.powered
}

// Listening reports whether the receiver is open.
func (r *Radio) Listening() bool {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.listening
}

// InterruptsEnabled returns INTEN.
func (r *Radio) InterruptsEnabled() radio.Event {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.inten
}

// Config returns the loaded configuration.
func (r *Radio) Config() radio.Config {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.cfg
}

// Received counts frames written to the packet buffer.
func (r *Radio) Received() int {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.received
}

// CRCErrors counts frames received with a bad CRC.
func (r *Radio) CRCErrors() int {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.crcErrors
}

// Queued returns the frames waiting for the receiver to open.
func (r *Radio) Queued() int {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return len(r.queue)
}
