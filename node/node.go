// Package node implements the sensor node loop: sleep on the RTC, sample
// the climate sensor and battery, seal a telemetry record and transmit it.
package node

import (
	"errors"

	"sensornet/core"
	"sensornet/periph"
	"sensornet/protocol"
	"sensornet/radio"
	"sensornet/sensor"
)

// Wake periods in RTC ticks at the default prescaler (0.1 s per tick)
const (
	ProductionPeriod = 600
	DebugPeriod      = 30

	// DefaultLowBattery is the fail-dead threshold in volts.
	DefaultLowBattery = 1.1
)

var (
	// ErrBatteryExhausted is returned once the node has entered the fail-dead
	// loop. It is final.
	ErrBatteryExhausted = errors.New("node: battery exhausted")

	ErrNoLink         = errors.New("node: no radio link")
	ErrNoCodec        = errors.New("node: no codec")
	ErrNoBattery      = errors.New("node: no battery reader")
	ErrPeriod         = errors.New("node: zero wake period")
	ErrPacketType     = errors.New("node: unsupported packet type")
	ErrNoMotionSensor = errors.New("node: motion sensor not answering")
)

// State is the position of the node in its cycle.
type State uint8

const (
	Sleeping State = iota
	Sampling
	Assembling
	Transmitting
	Exhausted
)

func (s State) String() string {
	switch s {
	case Sleeping:
		return "sleeping"
	case Sampling:
		return "sampling"
	case Assembling:
		return "assembling"
	case Transmitting:
		return "transmitting"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Config is the build-time behaviour of a node.
type Config struct {
	SensorID   uint16 // 0 takes the low half of the sensor serial
	PacketType uint16 // protocol.TypeClimate, TypeClimateExt or TypeMotion
	Encrypt    bool
	Debug      bool // ignore the battery threshold

	PeriodTicks uint32  // RTC ticks between cycles
	LowBattery  float32 // volts
}

// DefaultConfig returns the production or debug configuration.
func DefaultConfig(debug bool) Config {
	cfg := Config{
		PacketType:  protocol.TypeClimateExt,
		Encrypt:     true,
		Debug:       debug,
		PeriodTicks: ProductionPeriod,
		LowBattery:  DefaultLowBattery,
	}
	if debug {
		cfg.PeriodTicks = DebugPeriod
	}
	return cfg
}

// Peripherals is everything a node owns. Handles are moved into the node
// and must not be used by the caller afterwards.
type Peripherals struct {
	Link    *radio.Link
	RTC     periph.IdleRTC
	TWIM    periph.IdleTWIM
	Timer   periph.IdleTimer
	RNG     periph.IdleRNG
	Clock   periph.IdleClock
	Battery core.BatteryReader
	Power   *periph.Power

	// SensorAddr is the SHT4x bus address, sensor.SHT4xAddress when zero.
	SensorAddr uint8
}

// motionSensor is what the node needs from an accelerometer.
type motionSensor interface {
	Configure() error
	ReadMotion() (sensor.MotionSample, error)
}

// Node is the sense-encrypt-transmit scheduler. It is not reentrant.
type Node struct {
	cfg      Config
	id       protocol.Identity
	codec    *protocol.Codec
	link     *radio.Link
	rtc      periph.IdleRTC
	rng      periph.IdleRNG
	clock    periph.IdleClock
	battery  core.BatteryReader
	power    *periph.Power
	climate  *sensor.SHT4x
	motion   motionSensor
	motionOK bool

	state  State
	index  uint32
	serial uint32
	nonce  protocol.Nonce
	rec    protocol.Record
	pkt    [protocol.MaxPayload]byte
}

// New takes ownership of p and prepares the node. The sensor serial number
// is read once here; a sensor that does not answer yet is not fatal.
func New(cfg Config, p Peripherals, id protocol.Identity, codec *protocol.Codec) (*Node, error) {
	if p.Link == nil {
		return nil, ErrNoLink
	}
	if p.Battery == nil {
		return nil, ErrNoBattery
	}
	if cfg.PeriodTicks == 0 {
		return nil, ErrPeriod
	}
	if err := periph.CheckCompare(cfg.PeriodTicks); err != nil {
		return nil, err
	}
	if _, ok := protocol.BodySize(cfg.PacketType); !ok {
		return nil, ErrPacketType
	}
	if codec == nil {
		return nil, ErrNoCodec
	}

	n := &Node{
		cfg:     cfg,
		id:      id,
		codec:   codec,
		link:    p.Link,
		rtc:     p.RTC,
		rng:     p.RNG,
		clock:   p.Clock,
		battery: p.Battery,
		power:   p.Power,
	}
	if n.power != nil {
		n.power.SetMode(periph.LowPower)
	}

	if cfg.PacketType&protocol.TypeMask == protocol.TypeMotion {
		n.motion = sensor.NewMotion(sensor.NewBus(p.TWIM))
		n.configureMotion()
		return n, nil
	}

	addr := p.SensorAddr
	if addr == 0 {
		addr = sensor.SHT4xAddress
	}
	n.climate = sensor.NewSHT4x(p.TWIM, p.Timer, addr)
	serial, err := n.climate.ReadSerial()
	if err != nil {
		core.RecordEvent(core.EvtSensorError, 0)
		core.DebugPrintln("[NODE] serial read failed: " + err.Error())
	} else {
		n.serial = serial
		core.DebugPrintln("[NODE] sensor serial " + core.HexString([]byte{
			byte(serial >> 24), byte(serial >> 16), byte(serial >> 8), byte(serial)}))
	}
	if n.cfg.SensorID == 0 {
		n.cfg.SensorID = uint16(n.serial)
	}
	return n, nil
}

func (n *Node) configureMotion() {
	if err := n.motion.Configure(); err != nil {
		core.RecordEvent(core.EvtSensorError, 0)
		core.DebugPrintln("[NODE] motion sensor: " + err.Error())
		return
	}
	n.motionOK = true
}

// Sleep parks on the RTC for one period. Start clears the counter, so the
// time spent in a cycle does not accumulate into the next.
func (n *Node) Sleep() {
	n.rtc = n.rtc.Sleep(n.cfg.PeriodTicks)
	core.RecordEvent(core.EvtWake, n.index)
}

// Cycle runs one Sampling → Assembling → Transmitting pass and returns to
// Sleeping. A sensor failure skips the cycle and is returned; the sequence
// index is only consumed by a packet that is actually assembled.
func (n *Node) Cycle() error {
	if n.state == Exhausted {
		return ErrBatteryExhausted
	}

	n.state = Sampling
	if err := n.sample(); err != nil {
		n.state = Sleeping
		core.RecordEvent(core.EvtSensorError, n.index)
		core.DebugPrintln("[NODE] sensor error, cycle skipped: " + err.Error())
		return err
	}

	volts := n.battery.Volts()
	if volts < n.cfg.LowBattery && !n.cfg.Debug {
		n.state = Exhausted
		core.RecordEvent(core.EvtLowBattery, uint32(volts*1000))
		core.DebugPrintln("[NODE] battery exhausted, going dark")
		return ErrBatteryExhausted
	}
	n.rec.Battery = volts
	core.RecordEvent(core.EvtSampled, n.index)

	n.state = Assembling
	payload, err := n.assemble()
	if err != nil {
		n.state = Sleeping
		return err
	}

	n.state = Transmitting
	if err := n.transmit(payload); err != nil {
		n.state = Sleeping
		return err
	}
	core.RecordEvent(core.EvtSent, n.rec.Seq)
	core.DebugPrintln("[NODE] sent #" + core.Itoa(int(n.rec.Seq)) + " len=" + core.Itoa(len(payload)))

	n.state = Sleeping
	return nil
}

// sample reads the sensor. The bus is only enabled for each transaction.
func (n *Node) sample() error {
	n.rec = protocol.Record{
		Type:     n.cfg.PacketType & protocol.TypeMask,
		DeviceID: n.id.DeviceID,
		PartID:   n.id.PartID,
		SensorID: n.cfg.SensorID,
		Serial:   n.serial,
	}

	if n.motion != nil {
		if !n.motionOK {
			n.configureMotion()
			if !n.motionOK {
				return ErrNoMotionSensor
			}
		}
		m, err := n.motion.ReadMotion()
		if err != nil {
			return err
		}
		n.rec.Accel, n.rec.Mag = m.Accel, m.Mag
		return nil
	}

	c, err := n.climate.ReadClimate()
	if err != nil {
		return err
	}
	n.rec.Temperature, n.rec.Humidity = c.Temperature, c.Humidity
	return nil
}

// assemble stamps the record with the next index and encodes it.
func (n *Node) assemble() ([]byte, error) {
	n.rec.Seq = n.index
	var (
		out []byte
		err error
	)
	if n.cfg.Encrypt {
		n.rng = n.rng.Fill(n.nonce[:])
		out, err = n.codec.Seal(n.pkt[:0], &n.rec, n.nonce)
	} else {
		out, err = n.codec.EncodePlain(n.pkt[:0], &n.rec)
	}
	if err != nil {
		return nil, err
	}
	n.index++
	return out, nil
}

// transmit brings up the crystal, sends one packet and powers everything
// back down.
func (n *Node) transmit(payload []byte) error {
	n.clock = n.clock.EnableHF()
	defer func() { n.clock = n.clock.StopHF() }()

	n.link.InitTransmission()
	if err := n.link.StartTransmission(payload); err != nil {
		n.link.PowerOff()
		return err
	}
	n.link.WaitDisabled()
	n.link.EventResetAll()
	n.link.PowerOff()
	return nil
}

// Step waits for the next wake and runs a cycle. An exhausted node only
// sleeps.
func (n *Node) Step() error {
	n.Sleep()
	if n.state == Exhausted {
		return ErrBatteryExhausted
	}
	return n.Cycle()
}

// Run never returns. Once exhausted the node keeps re-arming the RTC and
// does nothing else.
func (n *Node) Run() {
	for {
		n.Step()
	}
}

// Index returns the sequence number the next packet will carry.
func (n *Node) Index() uint32 {
	return n.index
}

func (n *Node) State() State {
	return n.state
}

// LastNonce returns the nonce of the most recent sealed packet.
func (n *Node) LastNonce() protocol.Nonce {
	return n.nonce
}

// Serial returns the sensor serial number read at start-up.
func (n *Node) Serial() uint32 {
	return n.serial
}

// SensorID returns the sensor id carried in every record.
func (n *Node) SensorID() uint16 {
	return n.cfg.SensorID
}
