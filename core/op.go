package core

// Completion is the register view of one blocking hardware operation:
// a single "operation complete" event flag and the interrupt-enable bit
// that wakes the CPU when it is raised.
type Completion interface {
	// EnableInterrupt sets the interrupt-enable bit for the completion event.
	EnableInterrupt()

	// DisableInterrupt clears the interrupt-enable bit for the completion event.
	DisableInterrupt()

	// Done reports whether the completion event flag is set.
	Done() bool

	// ClearDone clears the completion event flag.
	ClearDone()
}

// Begin arms the completion interrupt. The caller triggers the hardware
// task right after.
func Begin(c Completion) {
	c.EnableInterrupt()
}

// Await parks the CPU in wait-for-interrupt until c reports completion.
//
// Interrupts are masked while the flag is inspected, so an interrupt that
// fires between the check and the sleep stays pending and ends the sleep.
// The handler only clears its own enable bit; the flag itself stays set in
// the peripheral and is observed on the next iteration.
func Await(c Completion) {
	for {
		state := disableInterrupts()
		if c.Done() {
			restoreInterrupts(state)
			return
		}
		waitForInterrupt()
		restoreInterrupts(state)
	}
}

// AwaitAny parks until one of cs completes and returns its index.
// Lower indices win when several are done at once.
func AwaitAny(cs ...Completion) int {
	for {
		state := disableInterrupts()
		for i, c := range cs {
			if c.Done() {
				restoreInterrupts(state)
				return i
			}
		}
		waitForInterrupt()
		restoreInterrupts(state)
	}
}

// AwaitTimeout is Await bounded to a number of wake-ups. It reports
// whether c completed. Device code uses Await; this exists for tooling
// that must not hang on a missing peripheral.
func AwaitTimeout(c Completion, wakeups int) bool {
	for i := 0; i <= wakeups; i++ {
		state := disableInterrupts()
		if c.Done() {
			restoreInterrupts(state)
			return true
		}
		waitForInterrupt()
		restoreInterrupts(state)
	}
	return c.Done()
}

// Release disables the completion interrupt and clears the event flag,
// returning the peripheral to its idle register state.
func Release(c Completion) {
	c.DisableInterrupt()
	c.ClearDone()
}

// Wait is Await followed by Release.
func Wait(c Completion) {
	Await(c)
	Release(c)
}
