//go:build nrf

package nrf52

import (
	"device/nrf"
	"runtime/interrupt"
)

// EnableIRQs installs the peripheral interrupt handlers. A handler only
// masks its peripheral's interrupt sources; the waiting driver observes
// the event flag once WFI returns.
func EnableIRQs() {
	radioIRQ := interrupt.New(nrf.IRQ_RADIO, func(interrupt.Interrupt) {
		nrf.RADIO.INTENCLR.Set(0xFFFFFFFF)
	})
	timerIRQ := interrupt.New(nrf.IRQ_TIMER0, func(interrupt.Interrupt) {
		nrf.TIMER0.INTENCLR.Set(nrf.TIMER_INTENCLR_COMPARE0_Msk)
	})
	rtcIRQ := interrupt.New(nrf.IRQ_RTC0, func(interrupt.Interrupt) {
		nrf.RTC0.INTENCLR.Set(nrf.RTC_INTENCLR_COMPARE0_Msk)
	})
	twimIRQ := interrupt.New(nrf.IRQ_SPIM0_SPIS0_TWIM0_TWIS0_SPI0_TWI0, func(interrupt.Interrupt) {
		nrf.TWIM0.INTENCLR.Set(twimIntMask)
	})
	rngIRQ := interrupt.New(nrf.IRQ_RNG, func(interrupt.Interrupt) {
		nrf.RNG.INTENCLR.Set(nrf.RNG_INTENCLR_VALRDY_Msk)
	})
	clockIRQ := interrupt.New(nrf.IRQ_POWER_CLOCK, func(interrupt.Interrupt) {
		nrf.CLOCK.INTENCLR.Set(nrf.CLOCK_INTENCLR_HFCLKSTARTED_Msk)
	})

	for _, irq := range [...]interrupt.Interrupt{radioIRQ, timerIRQ, rtcIRQ, twimIRQ, rngIRQ, clockIRQ} {
		irq.SetPriority(0xC0)
		irq.Enable()
	}
}
