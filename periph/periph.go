// Package periph implements the nRF52 peripheral drivers used by the sensor
// node and gateway. Every driver is a two-state machine built on
// core.Begin/core.Wait: an Idle handle starts an operation and becomes an
// Active handle, and waiting on the Active handle returns the Idle one.
// Handles are values; each transition consumes the caller's lease, so a
// stale copy panics instead of starting a second operation.
//
// Drivers talk to hardware only through the small Regs interfaces declared
// here. targets/nrf52 implements them over device/nrf, sim implements them
// for host tests.
package periph
