//go:build !tinygo

package sim

import "io"

// Board is the peripheral set of one simulated chip.
type Board struct {
	Radio *Radio
	Timer *Timer
	RTC   *RTC
	TWIM  *TWIM
	RNG   *RNG
	Clock *Clock
	Power *Power
	SAADC *SAADC
	FICR  FICR
	UICR  *UICR
}

// BoardConfig describes a simulated chip.
type BoardConfig struct {
	DeviceID uint64
	PartID   uint32
	Volts    float32   // supply seen by the SAADC
	Entropy  io.Reader // RNG source, crypto/rand when nil
}

// NewBoard creates a chip whose radio is attached to air.
func NewBoard(air *Air, cfg BoardConfig) *Board {
	if cfg.PartID == 0 {
		cfg.PartID = 0x52810
	}
	return &Board{
		Radio: air.NewRadio(),
		Timer: NewTimer(),
		RTC:   NewRTC(),
		TWIM:  NewTWIM(),
		RNG:   NewRNG(cfg.Entropy),
		Clock: NewClock(),
		Power: NewPower(),
		SAADC: NewSAADC(cfg.Volts),
		FICR:  NewFICR(cfg.DeviceID, cfg.PartID),
		UICR:  NewUICR(),
	}
}
