//go:build nrf

// Package nrf52 implements the periph and radio register interfaces over
// device/nrf. Every Completion here clears its own INTEN bits from the
// interrupt handler in irq.go; the event flags are left for the driver.
package nrf52

import (
	"device/nrf"
	"unsafe"

	"sensornet/periph"
)

// Timer is TIMER0 in 32-bit timer mode at 1 MHz.
type Timer struct{}

var _ periph.TimerRegs = Timer{}

func (Timer) EnableInterrupt() {
	nrf.TIMER0.INTENSET.Set(nrf.TIMER_INTENSET_COMPARE0_Msk)
}

func (Timer) DisableInterrupt() {
	nrf.TIMER0.INTENCLR.Set(nrf.TIMER_INTENCLR_COMPARE0_Msk)
}

func (Timer) Done() bool { return nrf.TIMER0.EVENTS_COMPARE[0].Get() != 0 }

func (Timer) ClearDone() { nrf.TIMER0.EVENTS_COMPARE[0].Set(0) }

func (Timer) Configure() {
	t := nrf.TIMER0
	t.MODE.Set(nrf.TIMER_MODE_MODE_Timer)
	t.BITMODE.Set(nrf.TIMER_BITMODE_BITMODE_32Bit)
	t.PRESCALER.Set(4) // 16 MHz / 2^4
	t.SHORTS.Set(nrf.TIMER_SHORTS_COMPARE0_STOP_Msk | nrf.TIMER_SHORTS_COMPARE0_CLEAR_Msk)
}

func (Timer) SetCompare(ticks uint32) { nrf.TIMER0.CC[0].Set(ticks) }
func (Timer) Clear()                  { nrf.TIMER0.TASKS_CLEAR.Set(1) }
func (Timer) Start()                  { nrf.TIMER0.TASKS_START.Set(1) }
func (Timer) Stop()                   { nrf.TIMER0.TASKS_STOP.Set(1) }

// RTC is RTC0 on the 32.768 kHz clock.
type RTC struct{}

var _ periph.RTCRegs = RTC{}

func (RTC) EnableInterrupt() {
	nrf.RTC0.INTENSET.Set(nrf.RTC_INTENSET_COMPARE0_Msk)
}

func (RTC) DisableInterrupt() {
	nrf.RTC0.INTENCLR.Set(nrf.RTC_INTENCLR_COMPARE0_Msk)
}

func (RTC) Done() bool { return nrf.RTC0.EVENTS_COMPARE[0].Get() != 0 }

func (RTC) ClearDone() { nrf.RTC0.EVENTS_COMPARE[0].Set(0) }

func (RTC) SetPrescaler(p uint16)   { nrf.RTC0.PRESCALER.Set(uint32(p)) }
func (RTC) SetCompare(ticks uint32) { nrf.RTC0.CC[0].Set(ticks) }

func (RTC) EnableEventRouting() {
	nrf.RTC0.EVTENSET.Set(nrf.RTC_EVTENSET_COMPARE0_Msk)
}

func (RTC) DisableEventRouting() {
	nrf.RTC0.EVTENCLR.Set(nrf.RTC_EVTENCLR_COMPARE0_Msk)
}

func (RTC) Clear()          { nrf.RTC0.TASKS_CLEAR.Set(1) }
func (RTC) Start()          { nrf.RTC0.TASKS_START.Set(1) }
func (RTC) Stop()           { nrf.RTC0.TASKS_STOP.Set(1) }
func (RTC) Counter() uint32 { return nrf.RTC0.COUNTER.Get() }

// TWIM is TWIM0.
type TWIM struct{}

var _ periph.TWIMRegs = TWIM{}

const twimIntMask = nrf.TWIM_INTENSET_STOPPED_Msk | nrf.TWIM_INTENSET_ERROR_Msk

func (TWIM) EnableInterrupt()  { nrf.TWIM0.INTENSET.Set(twimIntMask) }
func (TWIM) DisableInterrupt() { nrf.TWIM0.INTENCLR.Set(twimIntMask) }

// Done reports STOPPED. An ERROR event does not stop the bus by itself, so
// it triggers STOP and the transaction completes on the following STOPPED.
func (TWIM) Done() bool {
	if nrf.TWIM0.EVENTS_ERROR.Get() != 0 && nrf.TWIM0.EVENTS_STOPPED.Get() == 0 {
		nrf.TWIM0.TASKS_STOP.Set(1)
	}
	return nrf.TWIM0.EVENTS_STOPPED.Get() != 0
}

func (TWIM) ClearDone() {
	nrf.TWIM0.EVENTS_STOPPED.Set(0)
	nrf.TWIM0.EVENTS_ERROR.Set(0)
	nrf.TWIM0.EVENTS_LASTTX.Set(0)
	nrf.TWIM0.EVENTS_LASTRX.Set(0)
}

func (TWIM) Configure(cfg periph.TWIMConfig) {
	for _, pin := range [...]uint8{cfg.SCL, cfg.SDA} {
		nrf.P0.PIN_CNF[pin].Set(nrf.GPIO_PIN_CNF_DIR_Input<<nrf.GPIO_PIN_CNF_DIR_Pos |
			nrf.GPIO_PIN_CNF_INPUT_Connect<<nrf.GPIO_PIN_CNF_INPUT_Pos |
			nrf.GPIO_PIN_CNF_PULL_Pullup<<nrf.GPIO_PIN_CNF_PULL_Pos |
			nrf.GPIO_PIN_CNF_DRIVE_S0D1<<nrf.GPIO_PIN_CNF_DRIVE_Pos)
	}
	nrf.TWIM0.PSEL.SCL.Set(uint32(cfg.SCL))
	nrf.TWIM0.PSEL.SDA.Set(uint32(cfg.SDA))

	switch cfg.Frequency {
	case periph.K100:
		nrf.TWIM0.FREQUENCY.Set(nrf.TWIM_FREQUENCY_FREQUENCY_K100)
	case periph.K250:
		nrf.TWIM0.FREQUENCY.Set(nrf.TWIM_FREQUENCY_FREQUENCY_K250)
	default:
		nrf.TWIM0.FREQUENCY.Set(nrf.TWIM_FREQUENCY_FREQUENCY_K400)
	}
}

func (TWIM) SetShorts(writeRead bool) {
	if writeRead {
		nrf.TWIM0.SHORTS.Set(nrf.TWIM_SHORTS_LASTTX_STARTRX_Msk | nrf.TWIM_SHORTS_LASTRX_STOP_Msk)
		return
	}
	nrf.TWIM0.SHORTS.Set(nrf.TWIM_SHORTS_LASTTX_STOP_Msk | nrf.TWIM_SHORTS_LASTRX_STOP_Msk)
}

func (TWIM) SetAddress(addr uint8) { nrf.TWIM0.ADDRESS.Set(uint32(addr)) }

func (TWIM) SetTxBuffer(buf []byte) {
	nrf.TWIM0.TXD.PTR.Set(bufPtr(buf))
	nrf.TWIM0.TXD.MAXCNT.Set(uint32(len(buf)))
}

func (TWIM) SetRxBuffer(buf []byte) {
	nrf.TWIM0.RXD.PTR.Set(bufPtr(buf))
	nrf.TWIM0.RXD.MAXCNT.Set(uint32(len(buf)))
}

func (TWIM) Enable() {
	nrf.TWIM0.ENABLE.Set(nrf.TWIM_ENABLE_ENABLE_Enabled)
}

func (TWIM) Disable() {
	nrf.TWIM0.ENABLE.Set(nrf.TWIM_ENABLE_ENABLE_Disabled)
}

func (TWIM) StartTx() { nrf.TWIM0.TASKS_STARTTX.Set(1) }
func (TWIM) StartRx() { nrf.TWIM0.TASKS_STARTRX.Set(1) }

func (TWIM) Errored() bool { return nrf.TWIM0.EVENTS_ERROR.Get() != 0 }

func (TWIM) ErrorSource() uint32 {
	src := nrf.TWIM0.ERRORSRC.Get()
	nrf.TWIM0.ERRORSRC.Set(src) // write-one-to-clear
	return src
}

func bufPtr(buf []byte) uint32 {
	if len(buf) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(&buf[0])))
}

// RNG is the random number generator.
type RNG struct{}

var _ periph.RNGRegs = RNG{}

func (RNG) EnableInterrupt()  { nrf.RNG.INTENSET.Set(nrf.RNG_INTENSET_VALRDY_Msk) }
func (RNG) DisableInterrupt() { nrf.RNG.INTENCLR.Set(nrf.RNG_INTENCLR_VALRDY_Msk) }
func (RNG) Done() bool        { return nrf.RNG.EVENTS_VALRDY.Get() != 0 }
func (RNG) ClearDone()        { nrf.RNG.EVENTS_VALRDY.Set(0) }

func (RNG) SetBiasCorrection(on bool) {
	if on {
		nrf.RNG.CONFIG.Set(nrf.RNG_CONFIG_DERCEN_Enabled << nrf.RNG_CONFIG_DERCEN_Pos)
	} else {
		nrf.RNG.CONFIG.Set(nrf.RNG_CONFIG_DERCEN_Disabled << nrf.RNG_CONFIG_DERCEN_Pos)
	}
}

func (RNG) Start()       { nrf.RNG.TASKS_START.Set(1) }
func (RNG) Stop()        { nrf.RNG.TASKS_STOP.Set(1) }
func (RNG) Value() uint8 { return uint8(nrf.RNG.VALUE.Get()) }

// Clock is the CLOCK peripheral's HFXO control.
type Clock struct{}

var _ periph.ClockRegs = Clock{}

func (Clock) EnableInterrupt() {
	nrf.CLOCK.INTENSET.Set(nrf.CLOCK_INTENSET_HFCLKSTARTED_Msk)
}

func (Clock) DisableInterrupt() {
	nrf.CLOCK.INTENCLR.Set(nrf.CLOCK_INTENCLR_HFCLKSTARTED_Msk)
}

func (Clock) Done() bool { return nrf.CLOCK.EVENTS_HFCLKSTARTED.Get() != 0 }
func (Clock) ClearDone() { nrf.CLOCK.EVENTS_HFCLKSTARTED.Set(0) }
func (Clock) StartHFXO() { nrf.CLOCK.TASKS_HFCLKSTART.Set(1) }
func (Clock) StopHFXO()  { nrf.CLOCK.TASKS_HFCLKSTOP.Set(1) }

func (Clock) HFXORunning() bool {
	stat := nrf.CLOCK.HFCLKSTAT.Get()
	return stat&nrf.CLOCK_HFCLKSTAT_STATE_Msk != 0 && stat&nrf.CLOCK_HFCLKSTAT_SRC_Msk != 0
}

// Power is the POWER peripheral's sub-power-mode tasks.
type Power struct{}

var _ periph.PowerRegs = Power{}

func (Power) TriggerLowPower()        { nrf.POWER.TASKS_LOWPWR.Set(1) }
func (Power) TriggerConstantLatency() { nrf.POWER.TASKS_CONSTLAT.Set(1) }

// SAADC samples channel 0 into a one-word result buffer.
type SAADC struct {
	result *int16
}

var _ periph.SAADCRegs = (*SAADC)(nil)

// NewSAADC returns the SAADC with its own result buffer.
func NewSAADC() *SAADC {
	return &SAADC{result: new(int16)}
}

func (a *SAADC) Configure(ain uint8) {
	s := nrf.SAADC
	s.RESOLUTION.Set(nrf.SAADC_RESOLUTION_VAL_10bit)
	s.OVERSAMPLE.Set(nrf.SAADC_OVERSAMPLE_OVERSAMPLE_Bypass)
	s.CH[0].PSELN.Set(nrf.SAADC_CH_PSELN_PSELN_NC)
	s.CH[0].PSELP.Set(uint32(ain) + 1) // AnalogInput0 is 1
	s.CH[0].CONFIG.Set(nrf.SAADC_CH_CONFIG_GAIN_Gain1<<nrf.SAADC_CH_CONFIG_GAIN_Pos |
		nrf.SAADC_CH_CONFIG_REFSEL_Internal<<nrf.SAADC_CH_CONFIG_REFSEL_Pos |
		nrf.SAADC_CH_CONFIG_TACQ_10us<<nrf.SAADC_CH_CONFIG_TACQ_Pos |
		nrf.SAADC_CH_CONFIG_MODE_SE<<nrf.SAADC_CH_CONFIG_MODE_Pos)
	s.RESULT.PTR.Set(uint32(uintptr(unsafe.Pointer(a.result))))
	s.RESULT.MAXCNT.Set(1)
}

func (a *SAADC) Enable() {
	nrf.SAADC.ENABLE.Set(nrf.SAADC_ENABLE_ENABLE_Enabled)
}

func (a *SAADC) Disable() {
	nrf.SAADC.ENABLE.Set(nrf.SAADC_ENABLE_ENABLE_Disabled)
}

func (a *SAADC) Sample() uint16 {
	s := nrf.SAADC
	s.EVENTS_STARTED.Set(0)
	s.TASKS_START.Set(1)
	for s.EVENTS_STARTED.Get() == 0 {
	}
	s.EVENTS_END.Set(0)
	s.TASKS_SAMPLE.Set(1)
	for s.EVENTS_END.Get() == 0 {
	}
	s.EVENTS_END.Set(0)

	v := *a.result
	if v < 0 {
		v = 0
	}
	return uint16(v)
}

// FICR reads the factory information registers.
type FICR struct{}

func (FICR) DeviceID() [2]uint32 {
	return [2]uint32{nrf.FICR.DEVICEID[0].Get(), nrf.FICR.DEVICEID[1].Get()}
}

func (FICR) Part() uint32 { return nrf.FICR.INFO.PART.Get() }

// UICR reads the customer registers.
type UICR struct{}

func (UICR) Customer(i int) uint32 { return nrf.UICR.CUSTOMER[i].Get() }
