package sensor

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lsm303agr"
	"tinygo.org/x/drivers/shtc3"
)

// SHTC3 is the gateway-local climate sensor. The chip is woken for each
// reading and put back to sleep after.
type SHTC3 struct {
	dev shtc3.Device
}

// NewSHTC3 creates the sensor on a configured bus.
func NewSHTC3(bus drivers.I2C) *SHTC3 {
	return &SHTC3{dev: shtc3.New(bus)}
}

// ReadClimate implements ClimateSensor.
func (s *SHTC3) ReadClimate() (Climate, error) {
	if err := s.dev.WakeUp(); err != nil {
		return Climate{}, err
	}
	milliC, centiRH, err := s.dev.ReadTemperatureHumidity()
	s.dev.Sleep()
	if err != nil {
		return Climate{}, err
	}
	return Climate{
		Temperature: float32(milliC) / 1000,
		Humidity:    float32(centiRH) / 100,
	}, nil
}

// MotionSample is one accelerometer and magnetometer reading.
type MotionSample struct {
	Accel [3]int16 // mg
	Mag   [3]int16 // mG
}

// Motion is an LSM303AGR accelerometer/magnetometer.
type Motion struct {
	dev *lsm303agr.Device
}

// NewMotion creates the sensor on a configured bus.
func NewMotion(bus drivers.I2C) *Motion {
	return &Motion{dev: lsm303agr.New(bus)}
}

// Configure checks both WHO_AM_I registers and applies the driver's
// defaults: ±2 g, 100 Hz accelerometer, continuous 10 Hz magnetometer.
func (m *Motion) Configure() error {
	return m.dev.Configure(lsm303agr.Configuration{})
}

// ReadMotion reads both sensors.
func (m *Motion) ReadMotion() (MotionSample, error) {
	var s MotionSample
	ax, ay, az, err := m.dev.ReadAcceleration()
	if err != nil {
		return s, err
	}
	mx, my, mz, err := m.dev.ReadMagneticField()
	if err != nil {
		return s, err
	}
	s.Accel = [3]int16{clamp16(ax / 1000), clamp16(ay / 1000), clamp16(az / 1000)}
	s.Mag = [3]int16{clamp16(mx), clamp16(my), clamp16(mz)}
	return s, nil
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
