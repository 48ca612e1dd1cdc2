package radio

import (
	"errors"

	"sensornet/core"
)

// ErrPacketTooLarge is returned when the fields do not fit the buffer.
var ErrPacketTooLarge = errors.New("radio: fields exceed packet buffer")

// State is the link-layer state.
type State uint8

const (
	StateDisabled State = iota
	StateReady          // configured, not yet started
	StateTx
	StateRx
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateReady:
		return "ready"
	case StateTx:
		return "tx"
	case StateRx:
		return "rx"
	default:
		return "unknown"
	}
}

// Reception is one packet taken out of the shared buffer by Service.
type Reception struct {
	Payload []byte
	RSSI    int   // dBm, negative
	Match   uint8 // logical address that matched
	Events  Event // events observed in this service pass
}

// Link owns the radio and its packet buffer. Only one TX or RX operation
// uses the buffer at a time; Payload views are invalidated by the next
// start.
type Link struct {
	regs  Regs
	buf   [BufferSize]byte
	state State
	done  disabledCompletion
}

// disabledCompletion is the DISABLED event as a core.Completion.
type disabledCompletion struct {
	regs Regs
}

func (c disabledCompletion) EnableInterrupt()  { c.regs.EnableInterrupts(EventDisabled) }
func (c disabledCompletion) DisableInterrupt() { c.regs.DisableInterrupts(EventDisabled) }
func (c disabledCompletion) Done() bool        { return c.regs.Events()&EventDisabled != 0 }
func (c disabledCompletion) ClearDone()        { c.regs.ClearEvents(EventDisabled) }

// NewLink takes ownership of the radio. The radio is left powered off.
func NewLink(regs Regs) *Link {
	l := &Link{regs: regs, done: disabledCompletion{regs: regs}}
	regs.SetPower(false)
	return l
}

// State returns the link-layer state.
func (l *Link) State() State {
	return l.state
}

// InitTransmission powers the radio and loads the transmitter
// configuration.
func (l *Link) InitTransmission() {
	l.init(TxConfig())
}

// InitReception powers the radio and loads the receiver configuration.
func (l *Link) InitReception() {
	l.init(RxConfig())
}

func (l *Link) init(cfg Config) {
	l.regs.SetPower(true)
	l.regs.DisableInterrupts(EventAll)
	l.regs.Configure(&cfg)
	l.regs.ClearEvents(EventAll)
	l.state = StateReady
}

// StartTransmission copies fields back to back after the length byte and
// starts the transmitter. The length byte is the field total plus one,
// saturated at MaxLength. A total above MaxFields is rejected without
// touching the buffer.
func (l *Link) StartTransmission(fields ...[]byte) error {
	total := 0
	for _, f := range fields {
		total += len(f)
	}
	if total > MaxFields {
		return ErrPacketTooLarge
	}

	pos := 1
	for _, f := range fields {
		pos += copy(l.buf[pos:], f)
	}
	n := total + 1
	if n > MaxLength {
		n = MaxLength
	}
	l.buf[0] = byte(n)

	core.Begin(l.done)
	l.regs.SetPacketPtr(&l.buf)
	l.state = StateTx
	l.regs.TriggerTxEn()
	return nil
}

// StartReception arms the receiver on the shared buffer.
func (l *Link) StartReception() {
	core.Begin(l.done)
	l.regs.SetPacketPtr(&l.buf)
	l.state = StateRx
	l.regs.TriggerRxEn()
}

// Payload returns the received bytes, buf[1:buf[0]]. It reports false for
// a zero length. The view is valid until the next start.
func (l *Link) Payload() ([]byte, bool) {
	n := int(l.buf[0])
	if n == 0 {
		return nil, false
	}
	return l.buf[1:n], true
}

// Completion is the DISABLED event for core.Await and core.AwaitAny.
func (l *Link) Completion() core.Completion {
	return l.done
}

// WaitDisabled sleeps until the current TX or RX cycle ends in DISABLED.
func (l *Link) WaitDisabled() {
	core.Wait(l.done)
	l.state = StateDisabled
}

// Service is the receive handler: it masks radio interrupts, snapshots and
// clears all events, copies a complete CRC-valid packet into dst, and
// re-arms reception whenever the radio reached DISABLED. CRC failures are
// reported in the returned events only.
func (l *Link) Service(dst []byte) (Reception, bool) {
	l.ClearAll()
	ev := l.Events()
	l.EventResetAll()

	rx := Reception{Events: ev}
	ok := false
	if ev&rxComplete == rxComplete {
		if p, has := l.Payload(); has {
			n := copy(dst, p)
			rx.Payload = dst[:n]
			rx.RSSI = l.RSSI()
			rx.Match = l.AddressMatch()
			ok = true
		}
	}

	if ev&EventDisabled != 0 {
		l.state = StateDisabled
		l.StartReception()
	}
	return rx, ok
}

// Events returns all raised events.
func (l *Link) Events() Event {
	return l.regs.Events()
}

// EventResetAll clears every event flag.
func (l *Link) EventResetAll() {
	l.regs.ClearEvents(EventAll)
}

// ClearAll disables every radio interrupt.
func (l *Link) ClearAll() {
	l.regs.DisableInterrupts(EventAll)
}

// SetAll enables every radio interrupt.
func (l *Link) SetAll() {
	l.regs.EnableInterrupts(EventAll)
}

func (l *Link) EventReady() bool    { return l.regs.Events()&EventReady != 0 }
func (l *Link) EventAddress() bool  { return l.regs.Events()&EventAddress != 0 }
func (l *Link) EventPayload() bool  { return l.regs.Events()&EventPayload != 0 }
func (l *Link) EventEnd() bool      { return l.regs.Events()&EventEnd != 0 }
func (l *Link) EventDisabled() bool { return l.regs.Events()&EventDisabled != 0 }
func (l *Link) EventDevMatch() bool { return l.regs.Events()&EventDevMatch != 0 }
func (l *Link) EventDevMiss() bool  { return l.regs.Events()&EventDevMiss != 0 }
func (l *Link) EventRSSIEnd() bool  { return l.regs.Events()&EventRSSIEnd != 0 }
func (l *Link) EventBCMatch() bool  { return l.regs.Events()&EventBCMatch != 0 }
func (l *Link) EventCRCOK() bool    { return l.regs.Events()&EventCRCOK != 0 }
func (l *Link) EventCRCError() bool { return l.regs.Events()&EventCRCError != 0 }

// RSSI returns the last RSSI sample in dBm.
func (l *Link) RSSI() int {
	return -int(l.regs.RSSISample())
}

// AddressMatch returns the logical address of the last received packet.
func (l *Link) AddressMatch() uint8 {
	return l.regs.RxMatch()
}

// Disable triggers the DISABLE task.
func (l *Link) Disable() {
	l.regs.TriggerDisable()
	l.state = StateDisabled
}

// PowerOff removes power from the radio; configuration is lost.
func (l *Link) PowerOff() {
	l.regs.DisableInterrupts(EventAll)
	l.regs.SetPower(false)
	l.state = StateDisabled
}
