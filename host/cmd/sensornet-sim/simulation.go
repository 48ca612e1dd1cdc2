//go:build !tinygo

package main

import (
	"fmt"
	"io"
	"math"

	"tinygo.org/x/drivers/shtc3"

	"sensornet/core"
	"sensornet/gateway"
	"sensornet/node"
	"sensornet/periph"
	"sensornet/protocol"
	"sensornet/radio"
	"sensornet/sensor"
	"sensornet/sim"
)

const (
	nodeIDBase  = 0x5E4A000000000000
	gatewayID   = 0x5E4A0000000000FF
	simPartID   = 0x52810
	localSensor = 0x0C03
)

type simNode struct {
	node  *node.Node
	model *sim.SHT4x
	base  float32
}

// simulation drives every chip on one goroutine. Each node steps and the
// gateway is polled once per frame put on air.
type simulation struct {
	air   *sim.Air
	nodes []simNode
	gw    *gateway.Gateway
	gwRTC *sim.RTC
	local *sim.SHTC3
	round int
}

func newSimulation(cfg simOptions, key protocol.Key, out io.Writer) (*simulation, error) {
	codec, err := protocol.NewCodec(key)
	if err != nil {
		return nil, err
	}
	core.ClearEventRing()

	s := &simulation{air: sim.NewAir()}

	for i := 0; i < cfg.Nodes; i++ {
		b := sim.NewBoard(s.air, sim.BoardConfig{
			DeviceID: nodeIDBase | uint64(i+1),
			PartID:   simPartID,
			Volts:    1.45,
		})
		base := 18 + float32(i)*1.5
		model := sim.NewSHT4x(base, 40+float32(i)*2, 0x00C0FF00|uint32(i))
		b.TWIM.Attach(sensor.SHT4xAddress, model)

		rtc, err := periph.NewRTC(b.RTC, core.DefaultRTCPrescaler)
		if err != nil {
			return nil, err
		}
		ncfg := node.DefaultConfig(false)
		ncfg.Encrypt = !cfg.Plaintext
		if i%2 == 1 {
			ncfg.PacketType = protocol.TypeClimate
		}
		n, err := node.New(ncfg, node.Peripherals{
			Link:    radio.NewLink(b.Radio),
			RTC:     rtc,
			TWIM:    periph.NewTWIM(b.TWIM, periph.TWIMConfig{}),
			Timer:   periph.NewTimer(b.Timer),
			RNG:     periph.NewRNG(b.RNG),
			Clock:   periph.NewClock(b.Clock),
			Battery: periph.NewBattery(b.SAADC, 1),
			Power:   periph.NewPower(b.Power),
		}, periph.ReadIdentity(b.FICR), codec)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		s.nodes = append(s.nodes, simNode{node: n, model: model, base: base})
	}

	gw := sim.NewBoard(s.air, sim.BoardConfig{DeviceID: gatewayID, PartID: 0x52840, Volts: 3.3})
	s.gw = gateway.New(radio.NewLink(gw.Radio), codec, out, gateway.Config{
		AllowPlaintext: cfg.Plaintext,
		ForwardRaw:     true,
		LocalSensorID:  localSensor,
	}, periph.ReadIdentity(gw.FICR))

	if cfg.LocalSensor {
		s.local = sim.NewSHTC3(21.5, 37)
		gw.TWIM.Attach(shtc3.SHTC3_ADDRESS, s.local)
		gw.RTC.SetManual(true)
		rtc, err := periph.NewRTC(gw.RTC, core.DefaultRTCPrescaler)
		if err != nil {
			return nil, err
		}
		s.gwRTC = gw.RTC
		s.gw.WithLocalSensor(sensor.NewSHTC3(sensor.NewBus(periph.NewTWIM(gw.TWIM, periph.TWIMConfig{}))), rtc)
	}

	s.gw.Start()
	return s, nil
}

// step runs one round: every node wakes once, then the local sensor is
// due. Node errors are returned after the round completes.
func (s *simulation) step() []error {
	var errs []error
	for i := range s.nodes {
		n := &s.nodes[i]
		phase := float64(s.round)/10 + float64(i)
		n.model.Set(n.base+float32(2*math.Sin(phase)), 45+float32(5*math.Cos(phase)))

		sent := s.air.Sent()
		if err := n.node.Step(); err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", i, err))
		}
		if s.air.Sent() == sent {
			continue
		}
		if err := s.gw.Poll(); err != nil {
			errs = append(errs, fmt.Errorf("gateway: %w", err))
		}
	}

	if s.gwRTC != nil {
		s.gwRTC.Fire()
		if err := s.gw.Poll(); err != nil {
			errs = append(errs, fmt.Errorf("gateway local: %w", err))
		}
	}
	s.round++
	return errs
}
