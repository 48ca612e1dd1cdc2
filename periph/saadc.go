package periph

// SAADCRegs is the SAADC register set for a single-ended, single-sample
// conversion on channel 0.
type SAADCRegs interface {
	// Configure selects the analog input and gain 1, result count 1.
	Configure(ain uint8)
	Enable()
	Disable()

	// Sample runs START, waits STARTED, runs SAMPLE, waits END and returns
	// the raw 10-bit result.
	Sample() uint16
}

// Battery reads the supply through the SAADC. It implements
// core.BatteryReader.
type Battery struct {
	regs SAADCRegs
}

// NewBattery configures the ADC input the battery divider is wired to.
func NewBattery(regs SAADCRegs, ain uint8) *Battery {
	regs.Configure(ain)
	return &Battery{regs: regs}
}

// Volts samples once. 0.6 V internal reference, 10-bit result, divider 0.4.
func (b *Battery) Volts() float32 {
	b.regs.Enable()
	raw := b.regs.Sample()
	b.regs.Disable()
	return RawToVolts(raw)
}

// RawToVolts converts a raw SAADC result to the supply voltage.
func RawToVolts(raw uint16) float32 {
	return float32(raw) * 0.6 / 1024.0 / 0.4
}

// VoltsToRaw is the inverse of RawToVolts, rounded down.
func VoltsToRaw(v float32) uint16 {
	return uint16(v * 0.4 * 1024.0 / 0.6)
}
