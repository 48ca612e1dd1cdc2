//go:build !tinygo

// Package forward mirrors the latest reading of each node into Modbus
// holding registers, so PLCs and SCADA tools can poll the network.
package forward

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"sensornet/host/bridge"
)

// Register block layout, one block per node
const (
	RegIndexHigh   = 0
	RegIndexLow    = 1
	RegTemperature = 2 // int16, 0.01 °C
	RegHumidity    = 3 // uint16, 0.01 %RH
	RegBattery     = 4 // uint16, mV
	RegRSSI        = 5 // int16, dBm
	RegAccel       = 6 // 3 × int16, mg
	RegMag         = 9 // 3 × int16, mG

	BlockSize = 12
)

// NoValue fills registers the reading does not carry.
const NoValue uint16 = 0x8000

// Target maps a node to a register block.
type Target struct {
	MCUID   string
	UnitID  uint8
	Address uint16
}

// RegisterWriter is the part of a Modbus client the forwarder uses.
type RegisterWriter interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// EndpointClient is a single TCP connection to one Modbus server. It
// serializes requests because it mutates SlaveId per write.
type EndpointClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// ClientConfig selects the Modbus server.
type ClientConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// Dial connects to a Modbus TCP server.
func Dial(cfg ClientConfig) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("forward: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &EndpointClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID
	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	return err
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

// Forwarder is a bridge.Sink writing each mapped node's block.
type Forwarder struct {
	w       RegisterWriter
	targets map[string]Target
}

var _ bridge.Sink = (*Forwarder)(nil)

// New creates a forwarder for targets. Readings of other nodes are
// ignored.
func New(w RegisterWriter, targets []Target) *Forwarder {
	m := make(map[string]Target, len(targets))
	for _, t := range targets {
		m[t.MCUID] = t
	}
	return &Forwarder{w: w, targets: m}
}

// Write pushes the register block of r if its node is mapped.
func (f *Forwarder) Write(_ context.Context, r bridge.Reading) error {
	t, ok := f.targets[r.MCUID()]
	if !ok {
		return nil
	}
	regs := Registers(r)
	return f.w.WriteRegisters(t.UnitID, t.Address, regs[:])
}

// Registers encodes a reading as a register block. Fields the reading does
// not carry are NoValue.
func Registers(r bridge.Reading) [BlockSize]uint16 {
	var regs [BlockSize]uint16
	for i := range regs {
		regs[i] = NoValue
	}

	idx := r.Index()
	regs[RegIndexHigh] = uint16(idx >> 16)
	regs[RegIndexLow] = uint16(idx)
	if !r.Local() {
		regs[RegRSSI] = uint16(int16(r.Line.RSSI))
	}

	v := values(r)
	if v.temperature != nil {
		regs[RegTemperature] = uint16(scaleInt16(*v.temperature, 100))
	}
	if v.humidity != nil {
		regs[RegHumidity] = scaleUint16(*v.humidity, 100)
	}
	if v.battery != nil {
		regs[RegBattery] = scaleUint16(*v.battery, 1000)
	}
	if len(v.accel) == 3 && len(v.mag) == 3 {
		for i := 0; i < 3; i++ {
			regs[RegAccel+i] = uint16(v.accel[i])
			regs[RegMag+i] = uint16(v.mag[i])
		}
	}
	return regs
}

type fields struct {
	temperature, humidity, battery *float64
	accel, mag                     []int16
}

func values(r bridge.Reading) fields {
	if m := r.Line.Message; m != nil {
		return fields{m.Temperature, m.Humidity, m.Battery, m.Accel, m.Mag}
	}
	var f fields
	rec := r.Record
	if rec == nil {
		return f
	}
	ptr := func(v float32) *float64 { x := float64(v); return &x }
	switch {
	case rec.Climate != nil:
		f.temperature, f.humidity = ptr(rec.Climate.Temperature), ptr(rec.Climate.Humidity)
	case rec.ClimateExt != nil:
		f.temperature, f.humidity = ptr(rec.ClimateExt.Temperature), ptr(rec.ClimateExt.Humidity)
		f.battery = ptr(rec.ClimateExt.Battery)
	case rec.Motion != nil:
		f.accel, f.mag = rec.Motion.Accel[:], rec.Motion.Mag[:]
	}
	return f
}

func scaleInt16(v, k float64) int16 {
	x := math.Round(v * k)
	switch {
	case math.IsNaN(x):
		return int16(-0x8000)
	case x > math.MaxInt16:
		return math.MaxInt16
	case x < math.MinInt16+1:
		return math.MinInt16 + 1
	}
	return int16(x)
}

func scaleUint16(v, k float64) uint16 {
	x := math.Round(v * k)
	switch {
	case math.IsNaN(x):
		return NoValue
	case x > math.MaxUint16-1:
		return math.MaxUint16 - 1
	case x < 0:
		return 0
	}
	return uint16(x)
}
