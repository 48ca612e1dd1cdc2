//go:build !tinygo

package sim

import (
	"errors"
	"sync"

	"sensornet/periph"
	"sensornet/sensor"
)

// errNACK is returned by device models that refuse a byte.
var errNACK = errors.New("sim: nack")

// I2CDevice is a device model on the simulated bus. An error from Write or
// Read is a data NACK.
type I2CDevice interface {
	Write(p []byte) error
	Read(p []byte) error
}

// TWIM is a TWIM instance with attached device models.
type TWIM struct {
	event
	mu        sync.Mutex
	cfg       periph.TWIMConfig
	enabled   bool
	writeRead bool
	addr      uint8
	tx, rx    []byte
	errored   bool
	errorsrc  uint32
	devices   map[uint8]I2CDevice
	txns      int
}

var _ periph.TWIMRegs = (*TWIM)(nil)

func NewTWIM() *TWIM {
	return &TWIM{devices: make(map[uint8]I2CDevice)}
}

// Attach places a device model at addr.
func (t *TWIM) Attach(addr uint8, dev I2CDevice) {
	t.mu.Lock()
	t.devices[addr] = dev
	t.mu.Unlock()
}

// Detach removes the device at addr, so the next access NACKs.
func (t *TWIM) Detach(addr uint8) {
	t.mu.Lock()
	delete(t.devices, addr)
	t.mu.Unlock()
}

func (t *TWIM) Configure(cfg periph.TWIMConfig) {
	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()
}

// Config returns the last configuration.
func (t *TWIM) Config() periph.TWIMConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

func (t *TWIM) SetShorts(writeRead bool) {
	t.mu.Lock()
	t.writeRead = writeRead
	t.mu.Unlock()
}

func (t *TWIM) SetAddress(addr uint8) {
	t.mu.Lock()
	t.addr = addr
	t.mu.Unlock()
}

func (t *TWIM) SetTxBuffer(buf []byte) {
	t.mu.Lock()
	t.tx = buf
	t.mu.Unlock()
}

func (t *TWIM) SetRxBuffer(buf []byte) {
	t.mu.Lock()
	t.rx = buf
	t.mu.Unlock()
}

func (t *TWIM) Enable() {
	t.mu.Lock()
	t.enabled = true
	t.mu.Unlock()
}

func (t *TWIM) Disable() {
	t.mu.Lock()
	t.enabled = false
	t.mu.Unlock()
}

// Enabled reports whether the peripheral is powered.
func (t *TWIM) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *TWIM) StartTx() {
	t.mu.Lock()
	dev, ok := t.begin()
	if ok {
		if err := dev.Write(t.tx); err != nil {
			t.fail(periph.ErrorSrcDNACK)
		} else if t.writeRead {
			if err := dev.Read(t.rx); err != nil {
				t.fail(periph.ErrorSrcDNACK)
			}
		}
	}
	t.mu.Unlock()
	t.set()
}

func (t *TWIM) StartRx() {
	t.mu.Lock()
	dev, ok := t.begin()
	if ok {
		if err := dev.Read(t.rx); err != nil {
			t.fail(periph.ErrorSrcDNACK)
		}
	}
	t.mu.Unlock()
	t.set()
}

// begin looks up the addressed device; caller holds mu.
func (t *TWIM) begin() (I2CDevice, bool) {
	t.txns++
	if !t.enabled {
		t.fail(periph.ErrorSrcOverrun)
		return nil, false
	}
	dev, ok := t.devices[t.addr]
	if !ok {
		t.fail(periph.ErrorSrcANACK)
		return nil, false
	}
	return dev, true
}

func (t *TWIM) fail(src uint32) {
	t.errored = true
	t.errorsrc |= src
}

func (t *TWIM) ClearDone() {
	t.event.ClearDone()
	t.mu.Lock()
	t.errored = false
	t.mu.Unlock()
}

func (t *TWIM) Errored() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errored
}

func (t *TWIM) ErrorSource() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	src := t.errorsrc
	t.errorsrc = 0
	return src
}

// Transactions counts started transfers.
func (t *TWIM) Transactions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.txns
}

// SHT4x models a Sensirion SHT4x.
type SHT4x struct {
	mu           sync.Mutex
	temperature  float32
	humidity     float32
	serial       uint32
	corrupt      bool
	pending      []byte
	measurements int
}

// NewSHT4x creates a sensor reporting the given climate.
func NewSHT4x(temperature, humidity float32, serial uint32) *SHT4x {
	return &SHT4x{temperature: temperature, humidity: humidity, serial: serial}
}

// Set changes the reported climate.
func (s *SHT4x) Set(temperature, humidity float32) {
	s.mu.Lock()
	s.temperature, s.humidity = temperature, humidity
	s.mu.Unlock()
}

// CorruptCRC makes following responses fail their checksum.
func (s *SHT4x) CorruptCRC(on bool) {
	s.mu.Lock()
	s.corrupt = on
	s.mu.Unlock()
}

// Measurements counts measurement commands.
func (s *SHT4x) Measurements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measurements
}

func (s *SHT4x) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(p) != 1 {
		return errNACK
	}
	switch p[0] {
	case 0xFD:
		s.measurements++
		s.pending = s.words(sht4xRawT(s.temperature), sht4xRawRH(s.humidity))
	case 0x89:
		s.pending = s.words(uint16(s.serial>>16), uint16(s.serial))
	default:
		return errNACK
	}
	return nil
}

func (s *SHT4x) Read(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || len(p) > len(s.pending) {
		return errNACK
	}
	copy(p, s.pending)
	s.pending = nil
	return nil
}

func (s *SHT4x) words(a, b uint16) []byte {
	out := []byte{byte(a >> 8), byte(a), 0, byte(b >> 8), byte(b), 0}
	out[2] = sensor.CRC8(out[0:2])
	out[5] = sensor.CRC8(out[3:5])
	if s.corrupt {
		out[5] ^= 0xFF
	}
	return out
}

func sht4xRawT(t float32) uint16 {
	return clampRaw((t + 45) * 65535 / 175)
}

func sht4xRawRH(rh float32) uint16 {
	return clampRaw((rh + 6) * 65535 / 125)
}

func clampRaw(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 65535 {
		return 65535
	}
	return uint16(v + 0.5)
}

// SHTC3 models a Sensirion SHTC3 in normal mode, temperature first.
type SHTC3 struct {
	mu          sync.Mutex
	temperature float32
	humidity    float32
	awake       bool
	pending     []byte
}

// NewSHTC3 creates a sensor reporting the given climate.
func NewSHTC3(temperature, humidity float32) *SHTC3 {
	return &SHTC3{temperature: temperature, humidity: humidity}
}

// Awake reports whether the chip was left out of sleep.
func (s *SHTC3) Awake() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awake
}

func (s *SHTC3) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(p) != 2 {
		return errNACK
	}
	switch uint16(p[0])<<8 | uint16(p[1]) {
	case 0x3517:
		s.awake = true
	case 0xB098:
		s.awake = false
	case 0x7CA2:
		if !s.awake {
			return errNACK
		}
		rawT := clampRaw((s.temperature*1000 + 45000) * 8192 / 21875)
		rawRH := clampRaw(s.humidity * 100 * 8192 / 1250)
		s.pending = []byte{byte(rawT >> 8), byte(rawT), 0, byte(rawRH >> 8), byte(rawRH), 0}
		s.pending[2] = sensor.CRC8(s.pending[0:2])
		s.pending[5] = sensor.CRC8(s.pending[3:5])
	default:
		return errNACK
	}
	return nil
}

func (s *SHTC3) Read(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || len(p) > len(s.pending) {
		return errNACK
	}
	copy(p, s.pending)
	s.pending = nil
	return nil
}
