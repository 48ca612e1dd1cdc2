package core

// BatteryReader is the battery-voltage collaborator the node samples once
// per cycle. Implementations take a single-shot ADC sample.
type BatteryReader interface {
	// Volts returns the supply voltage.
	Volts() float32
}

// FixedBattery reports a constant voltage. Boards without a battery
// divider use it, as do tests.
type FixedBattery float32

// Volts implements BatteryReader.
func (b FixedBattery) Volts() float32 {
	return float32(b)
}
