// Package gateway receives telemetry packets, authenticates and decrypts
// them, and forwards one JSON line per packet to a serial sink.
package gateway

import (
	"errors"
	"io"

	"sensornet/core"
	"sensornet/periph"
	"sensornet/protocol"
	"sensornet/radio"
	"sensornet/sensor"
)

// ErrCRC is returned by Poll for a frame that failed the radio CRC.
var ErrCRC = errors.New("gateway: radio CRC error")

// DefaultLocalPeriod is the local sensor period in RTC ticks (one minute).
const DefaultLocalPeriod = 600

// Config selects what the gateway accepts and forwards.
type Config struct {
	AllowPlaintext bool // forward packets without FlagEncrypted
	ForwardRaw     bool // forward packets of unknown type as raw hex

	LocalSensorID uint16 // sensor id reported for the local sensor
	LocalPeriod   uint32 // RTC ticks between local readings, at most 24 bits
}

// Stats counts what happened to received frames.
type Stats struct {
	Received     uint32 // CRC-valid frames
	Forwarded    uint32 // radio packets written to the sink
	AuthFailures uint32
	Malformed    uint32
	Rejected     uint32 // plaintext refused by policy
	CRCErrors    uint32
	LocalSamples uint32
	LocalErrors  uint32
	WriteErrors  uint32
}

// Gateway is the receive-decrypt-forward loop. It owns the radio link for
// its lifetime and is not safe for concurrent use.
type Gateway struct {
	link  *radio.Link
	codec *protocol.Codec
	out   io.Writer
	cfg   Config
	id    protocol.Identity

	local      sensor.ClimateSensor
	rtc        periph.IdleRTC
	rtcActive  periph.ActiveRTC
	localIndex uint32

	stats Stats
	rx    [radio.BufferSize]byte
	line  []byte
}

// New creates a gateway writing report lines to out.
func New(link *radio.Link, codec *protocol.Codec, out io.Writer, cfg Config, id protocol.Identity) *Gateway {
	if cfg.LocalPeriod == 0 {
		cfg.LocalPeriod = DefaultLocalPeriod
	}
	if periph.CheckCompare(cfg.LocalPeriod) != nil {
		cfg.LocalPeriod = core.RTCCounterMask
	}
	return &Gateway{
		link:  link,
		codec: codec,
		out:   out,
		cfg:   cfg,
		id:    id,
		line:  make([]byte, 0, 1024),
	}
}

// WithLocalSensor adds a sensor on the gateway itself, read every
// LocalPeriod RTC ticks.
func (g *Gateway) WithLocalSensor(s sensor.ClimateSensor, rtc periph.IdleRTC) *Gateway {
	g.local = s
	g.rtc = rtc
	return g
}

// Start puts the radio in continuous receive and arms the local sensor
// timer.
func (g *Gateway) Start() {
	g.link.InitReception()
	g.link.StartReception()
	if g.local != nil {
		g.rtcActive = g.rtc.Start(g.cfg.LocalPeriod)
	}
	core.DebugPrintln("[GW] listening as " + g.id.MCUID())
}

// Poll sleeps until the radio finishes a receive cycle or the local sensor
// is due, and handles it. Dropped packets are counted and returned as
// errors; the receiver is re-armed either way.
func (g *Gateway) Poll() error {
	if g.local == nil {
		core.Await(g.link.Completion())
		return g.serviceRadio()
	}

	switch core.AwaitAny(g.link.Completion(), g.rtcActive.Completion()) {
	case 0:
		return g.serviceRadio()
	default:
		g.rtc = g.rtcActive.Wait()
		err := g.sampleLocal()
		g.rtcActive = g.rtc.Start(g.cfg.LocalPeriod)
		return err
	}
}

// Run starts the gateway and polls forever.
func (g *Gateway) Run() {
	g.Start()
	for {
		if err := g.Poll(); err != nil {
			core.DebugPrintln("[GW] dropped: " + err.Error())
		}
	}
}

func (g *Gateway) serviceRadio() error {
	rec, ok := g.link.Service(g.rx[:])
	if !ok {
		if rec.Events&radio.EventCRCError != 0 {
			g.stats.CRCErrors++
			core.RecordEvent(core.EvtCRCError, 0)
			return ErrCRC
		}
		return nil
	}
	g.stats.Received++
	core.RecordEvent(core.EvtReceived, uint32(len(rec.Payload)))

	pkt, err := g.codec.Decode(rec.Payload, protocol.DecodeOptions{AllowPlaintext: g.cfg.AllowPlaintext})
	switch {
	case err == nil:
		g.line = AppendRadioLine(g.line[:0], rec.RSSI, &pkt)
		if err := g.emit(); err != nil {
			return err
		}
		g.stats.Forwarded++
		core.RecordEvent(core.EvtForwarded, pkt.Seq)
		return nil
	case errors.Is(err, protocol.ErrAuthentication):
		g.stats.AuthFailures++
		core.RecordEvent(core.EvtAuthFailure, uint32(len(rec.Payload)))
	case errors.Is(err, protocol.ErrPlaintextRejected):
		g.stats.Rejected++
		core.RecordEvent(core.EvtRejected, uint32(len(rec.Payload)))
	case errors.Is(err, protocol.ErrUnknownType) && g.cfg.ForwardRaw:
		g.line = AppendRawLine(g.line[:0], rec.RSSI, rec.Payload)
		if err := g.emit(); err != nil {
			return err
		}
		g.stats.Forwarded++
		return nil
	default:
		g.stats.Malformed++
		core.RecordEvent(core.EvtMalformed, uint32(len(rec.Payload)))
	}
	return err
}

func (g *Gateway) sampleLocal() error {
	c, err := g.local.ReadClimate()
	if err != nil {
		g.stats.LocalErrors++
		core.RecordEvent(core.EvtSensorError, g.localIndex)
		return err
	}
	g.line = AppendSensorLine(g.line[:0], g.id, g.localIndex, g.cfg.LocalSensorID, c)
	if err := g.emit(); err != nil {
		return err
	}
	g.stats.LocalSamples++
	core.RecordEvent(core.EvtLocalSampled, g.localIndex)
	g.localIndex++
	return nil
}

func (g *Gateway) emit() error {
	if _, err := g.out.Write(g.line); err != nil {
		g.stats.WriteErrors++
		return err
	}
	return nil
}

// Stats returns the counters.
func (g *Gateway) Stats() Stats {
	return g.stats
}
