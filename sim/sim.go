//go:build !tinygo

// Package sim implements every register interface of the firmware in
// memory, so the node and gateway run unchanged on the host. Peripherals
// complete in virtual time: a started operation is finished by the time
// the trigger call returns, and its interrupt is delivered through
// core.RaiseInterrupt.
package sim

import (
	"sync"

	"sensornet/core"
)

// event is one peripheral event flag with its interrupt enable bit. It
// implements core.Completion. Delivering the interrupt clears the enable
// bit, the same as the firmware IRQ handlers do.
type event struct {
	mu      sync.Mutex
	enabled bool
	pending bool
	irqs    int
}

func (e *event) EnableInterrupt() {
	e.mu.Lock()
	e.enabled = true
	fire := e.pending
	if fire {
		e.enabled = false
		e.irqs++
	}
	e.mu.Unlock()
	if fire {
		core.RaiseInterrupt()
	}
}

func (e *event) DisableInterrupt() {
	e.mu.Lock()
	e.enabled = false
	e.mu.Unlock()
}

func (e *event) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

func (e *event) ClearDone() {
	e.mu.Lock()
	e.pending = false
	e.mu.Unlock()
}

// Interrupts returns how many interrupts the event has delivered.
func (e *event) Interrupts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.irqs
}

// InterruptEnabled reports the enable bit.
func (e *event) InterruptEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

func (e *event) set() {
	e.mu.Lock()
	e.pending = true
	fire := e.enabled
	if fire {
		e.enabled = false
		e.irqs++
	}
	e.mu.Unlock()
	if fire {
		core.RaiseInterrupt()
	}
}
