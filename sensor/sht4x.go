package sensor

import (
	"errors"

	"sensornet/periph"
)

// SHT4x bus address and commands
const (
	SHT4xAddress = 0x44

	sht4xMeasureHigh = 0xFD // high repeatability measurement
	sht4xReadSerial  = 0x89

	sht4xMeasureUS = 10000
	sht4xSerialUS  = 1000
)

// ErrCRC is returned when a response word fails its checksum.
var ErrCRC = errors.New("sensor: CRC mismatch")

// SHT4x is a Sensirion SHT4x humidity sensor. It borrows the bus and a
// timer for the duration of a reading; Release hands them back.
type SHT4x struct {
	twim  periph.IdleTWIM
	timer periph.IdleTimer
	addr  uint8
	cmd   [1]byte
	buf   [6]byte
}

// SHT4xMeasuring is a measurement in progress.
type SHT4xMeasuring struct {
	s     *SHT4x
	timer periph.ActiveTimer
}

// SHT4xSerial is a serial number read in progress.
type SHT4xSerial struct {
	s     *SHT4x
	timer periph.ActiveTimer
}

// NewSHT4x creates a driver for the sensor at addr.
func NewSHT4x(twim periph.IdleTWIM, timer periph.IdleTimer, addr uint8) *SHT4x {
	return &SHT4x{twim: twim, timer: timer, addr: addr}
}

func (s *SHT4x) command(c byte, us uint32) (periph.ActiveTimer, error) {
	s.cmd[0] = c
	var err error
	s.twim, err = s.twim.Write(s.addr, s.cmd[:])
	if err != nil {
		return periph.ActiveTimer{}, err
	}
	return s.timer.Start(us), nil
}

// response waits out the conversion time and reads both words.
func (s *SHT4x) response(t periph.ActiveTimer) error {
	s.timer = t.Wait()
	var err error
	s.twim, err = s.twim.Read(s.addr, s.buf[:])
	if err != nil {
		return err
	}
	if !checkWords(&s.buf) {
		return ErrCRC
	}
	return nil
}

// StartMeasurement sends the measurement command and starts the 10 ms
// conversion wait.
func (s *SHT4x) StartMeasurement() (SHT4xMeasuring, error) {
	t, err := s.command(sht4xMeasureHigh, sht4xMeasureUS)
	if err != nil {
		return SHT4xMeasuring{}, err
	}
	return SHT4xMeasuring{s: s, timer: t}, nil
}

// Wait sleeps until the conversion is done and reads the result.
func (m SHT4xMeasuring) Wait() (Climate, error) {
	s := m.s
	if err := s.response(m.timer); err != nil {
		return Climate{}, err
	}
	rawT := uint16(s.buf[0])<<8 | uint16(s.buf[1])
	rawRH := uint16(s.buf[3])<<8 | uint16(s.buf[4])
	return Climate{
		Temperature: SHT4xTemperature(rawT),
		Humidity:    SHT4xHumidity(rawRH),
	}, nil
}

// StartSerial sends the read-serial command.
func (s *SHT4x) StartSerial() (SHT4xSerial, error) {
	t, err := s.command(sht4xReadSerial, sht4xSerialUS)
	if err != nil {
		return SHT4xSerial{}, err
	}
	return SHT4xSerial{s: s, timer: t}, nil
}

// Wait returns the 32-bit serial number.
func (r SHT4xSerial) Wait() (uint32, error) {
	s := r.s
	if err := s.response(r.timer); err != nil {
		return 0, err
	}
	return uint32(s.buf[0])<<24 | uint32(s.buf[1])<<16 | uint32(s.buf[3])<<8 | uint32(s.buf[4]), nil
}

// ReadClimate takes one blocking measurement.
func (s *SHT4x) ReadClimate() (Climate, error) {
	m, err := s.StartMeasurement()
	if err != nil {
		return Climate{}, err
	}
	return m.Wait()
}

// ReadSerial reads the serial number.
func (s *SHT4x) ReadSerial() (uint32, error) {
	r, err := s.StartSerial()
	if err != nil {
		return 0, err
	}
	return r.Wait()
}

// Release returns the bus and timer. The driver must not be used after.
func (s *SHT4x) Release() (periph.IdleTWIM, periph.IdleTimer) {
	twim, timer := s.twim, s.timer
	s.twim, s.timer = periph.IdleTWIM{}, periph.IdleTimer{}
	return twim, timer
}

// SHT4xTemperature converts a raw reading to °C.
func SHT4xTemperature(raw uint16) float32 {
	return -45 + 175*float32(raw)/65535
}

// SHT4xHumidity converts a raw reading to %RH.
func SHT4xHumidity(raw uint16) float32 {
	return -6 + 125*float32(raw)/65535
}
