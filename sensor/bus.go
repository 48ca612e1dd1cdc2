package sensor

import (
	"tinygo.org/x/drivers"

	"sensornet/periph"
)

// Bus lets drivers written against tinygo.org/x/drivers use the TWIM
// peripheral. Each Tx is one blocking transaction and the peripheral is
// disabled again when it returns.
type Bus struct {
	twim periph.IdleTWIM
}

var _ drivers.I2C = (*Bus)(nil)

// NewBus wraps an idle TWIM handle.
func NewBus(twim periph.IdleTWIM) *Bus {
	return &Bus{twim: twim}
}

// Tx writes w then reads into r, with a repeated start when both are
// given.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	var err error
	switch {
	case len(w) > 0 && len(r) > 0:
		b.twim, err = b.twim.WriteRead(uint8(addr), w, r)
	case len(w) > 0:
		b.twim, err = b.twim.Write(uint8(addr), w)
	case len(r) > 0:
		b.twim, err = b.twim.Read(uint8(addr), r)
	}
	return err
}

// Release returns the TWIM handle. The Bus must not be used after.
func (b *Bus) Release() periph.IdleTWIM {
	twim := b.twim
	b.twim = periph.IdleTWIM{}
	return twim
}
