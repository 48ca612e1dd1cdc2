//go:build tinygo

package core

import (
	"device/arm"
	"runtime/interrupt"
)

// disableInterrupts masks interrupts and returns the previous state
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}

// waitForInterrupt sleeps until an interrupt is pending. WFI wakes on a
// pending interrupt even while PRIMASK is set; the handler runs once
// restoreInterrupts unmasks.
func waitForInterrupt() {
	arm.Asm("wfi")
}
