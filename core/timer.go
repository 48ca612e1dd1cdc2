package core

// Clock sources on nRF52
const (
	LFClockFreq = 32768   // 32.768 kHz low-frequency clock feeding the RTC
	TimerFreq   = 1000000 // TIMER runs at 16 MHz / 2^TimerPrescaler

	TimerPrescaler = 4

	// DefaultRTCPrescaler divides LFCLK down to ~10 Hz (0.1 s per tick)
	DefaultRTCPrescaler = 3276

	// RTCPrescalerMax and RTCCounterMask bound the RTC registers
	RTCPrescalerMax = 0xFFF
	RTCCounterMask  = 0xFFFFFF
)

// RTCTickHz returns the RTC tick rate for a prescaler, in millihertz.
func RTCTickHz(prescaler uint16) uint32 {
	return LFClockFreq * 1000 / (uint32(prescaler) + 1)
}

// RTCTicksFromMS converts milliseconds to RTC ticks at the given prescaler,
// rounded to the nearest tick.
func RTCTicksFromMS(ms uint32, prescaler uint16) uint32 {
	div := uint64(prescaler) + 1
	return uint32((uint64(ms)*LFClockFreq + div*500) / (div * 1000))
}

// RTCTicksToMS converts RTC ticks to milliseconds at the given prescaler.
func RTCTicksToMS(ticks uint32, prescaler uint16) uint32 {
	return uint32(uint64(ticks) * (uint64(prescaler) + 1) * 1000 / LFClockFreq)
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}
