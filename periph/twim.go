package periph

import (
	"errors"

	"sensornet/core"
)

// TWIM bus frequencies
const (
	K100 Frequency = 100000
	K250 Frequency = 250000
	K400 Frequency = 400000
)

// Frequency is the TWIM SCL frequency in Hz.
type Frequency uint32

// ERRORSRC bits
const (
	ErrorSrcOverrun uint32 = 1 << 0
	ErrorSrcANACK   uint32 = 1 << 1
	ErrorSrcDNACK   uint32 = 1 << 2
)

// Sentinel causes carried by BusError
var (
	ErrOverrun     = errors.New("twim: receive overrun")
	ErrAddressNACK = errors.New("twim: address not acknowledged")
	ErrDataNACK    = errors.New("twim: data not acknowledged")
	ErrBus         = errors.New("twim: bus error")
)

// BusError is a failed I²C transaction. Source holds the ERRORSRC bits.
type BusError struct {
	Addr   uint8
	Source uint32
}

func (e *BusError) Error() string {
	return e.cause().Error() + " (addr 0x" + string(core.AppendHexUint(nil, uint64(e.Addr), 2)) + ")"
}

func (e *BusError) cause() error {
	switch {
	case e.Source&ErrorSrcANACK != 0:
		return ErrAddressNACK
	case e.Source&ErrorSrcDNACK != 0:
		return ErrDataNACK
	case e.Source&ErrorSrcOverrun != 0:
		return ErrOverrun
	default:
		return ErrBus
	}
}

// Unwrap lets errors.Is match the sentinel causes.
func (e *BusError) Unwrap() error {
	return e.cause()
}

// TWIMConfig holds pin and speed selection.
type TWIMConfig struct {
	SCL       uint8
	SDA       uint8
	Frequency Frequency
}

// TWIMRegs is the TWIM register set. The embedded Completion covers both
// the STOPPED and ERROR events.
type TWIMRegs interface {
	core.Completion

	// Configure connects the pins with pull-ups and sets the frequency.
	Configure(cfg TWIMConfig)

	// SetShorts selects LASTTX_STOP/LASTRX_STOP, or LASTTX_STARTRX for a
	// write followed by a repeated-start read.
	SetShorts(writeRead bool)

	SetAddress(addr uint8)
	SetTxBuffer(buf []byte)
	SetRxBuffer(buf []byte)
	Enable()
	Disable()
	StartTx()
	StartRx()

	// Errored reports the ERROR event, ErrorSource reads and clears ERRORSRC.
	Errored() bool
	ErrorSource() uint32
}

// TWIM is an I²C master.
type TWIM struct {
	regs  TWIMRegs
	owner *core.Owner
}

// IdleTWIM is a bus with no transaction outstanding. The peripheral is
// disabled while idle.
type IdleTWIM struct {
	t     *TWIM
	lease core.Lease
}

// ActiveTWIM is a transaction in flight.
type ActiveTWIM struct {
	t     *TWIM
	addr  uint8
	lease core.Lease
}

// NewTWIM configures the bus and returns its idle handle.
func NewTWIM(regs TWIMRegs, cfg TWIMConfig) IdleTWIM {
	if cfg.Frequency == 0 {
		cfg.Frequency = K400
	}
	regs.Configure(cfg)
	t := &TWIM{regs: regs, owner: core.NewOwner("twim")}
	return IdleTWIM{t: t, lease: t.owner.Lease()}
}

// StartWrite transmits buf to addr. buf must stay untouched until Wait
// returns.
func (h IdleTWIM) StartWrite(addr uint8, buf []byte) ActiveTWIM {
	next := h.lease.Transfer()
	r := h.t.regs
	r.SetShorts(false)
	r.SetAddress(addr)
	r.SetTxBuffer(buf)
	h.start(func() { r.StartTx() })
	return ActiveTWIM{t: h.t, addr: addr, lease: next}
}

// StartRead fills buf from addr.
func (h IdleTWIM) StartRead(addr uint8, buf []byte) ActiveTWIM {
	next := h.lease.Transfer()
	r := h.t.regs
	r.SetShorts(false)
	r.SetAddress(addr)
	r.SetRxBuffer(buf)
	h.start(func() { r.StartRx() })
	return ActiveTWIM{t: h.t, addr: addr, lease: next}
}

// StartWriteRead transmits w then reads into r after a repeated start.
func (h IdleTWIM) StartWriteRead(addr uint8, w, rd []byte) ActiveTWIM {
	next := h.lease.Transfer()
	r := h.t.regs
	r.SetShorts(true)
	r.SetAddress(addr)
	r.SetTxBuffer(w)
	r.SetRxBuffer(rd)
	h.start(func() { r.StartTx() })
	return ActiveTWIM{t: h.t, addr: addr, lease: next}
}

func (h IdleTWIM) start(trigger func()) {
	r := h.t.regs
	core.Begin(r)
	r.Enable()
	r.ClearDone()
	trigger()
}

// Write is StartWrite followed by Wait.
func (h IdleTWIM) Write(addr uint8, buf []byte) (IdleTWIM, error) {
	return h.StartWrite(addr, buf).Wait()
}

// Read is StartRead followed by Wait.
func (h IdleTWIM) Read(addr uint8, buf []byte) (IdleTWIM, error) {
	return h.StartRead(addr, buf).Wait()
}

// WriteRead is StartWriteRead followed by Wait.
func (h IdleTWIM) WriteRead(addr uint8, w, r []byte) (IdleTWIM, error) {
	return h.StartWriteRead(addr, w, r).Wait()
}

// Wait sleeps until the transaction stops or fails, then disables the
// peripheral. The idle handle is returned on failure too.
func (h ActiveTWIM) Wait() (IdleTWIM, error) {
	next := h.lease.Transfer()
	r := h.t.regs
	core.Await(r)

	var err error
	if r.Errored() {
		err = &BusError{Addr: h.addr, Source: r.ErrorSource()}
	}

	core.Release(r)
	r.Disable()
	return IdleTWIM{t: h.t, lease: next}, err
}
