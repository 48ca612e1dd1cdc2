//go:build !tinygo

package core

import "time"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// wake stands in for the NVIC pending line. Simulated peripherals raise it
// when an event fires with its interrupt enabled.
var wake = make(chan struct{}, 1)

// disableInterrupts is a no-op on regular Go (for testing)
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on regular Go (for testing)
func restoreInterrupts(state State) {
	_ = state
}

// RaiseInterrupt wakes a CPU parked in waitForInterrupt. Only available in
// host builds, where peripherals are simulated.
func RaiseInterrupt() {
	select {
	case wake <- struct{}{}:
	default:
	}
}

// waitForInterrupt parks until RaiseInterrupt is called. Several simulated
// CPUs may share the line, so a missed wake-up falls back to a 1 ms poll.
func waitForInterrupt() {
	t := time.NewTimer(time.Millisecond)
	select {
	case <-wake:
	case <-t.C:
	}
	t.Stop()
}
