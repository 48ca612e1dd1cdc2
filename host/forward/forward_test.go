package forward

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensornet/gateway"
	"sensornet/host/bridge"
	"sensornet/protocol"
	"sensornet/sensor"
)

// ---- fake register writer ----

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeWriter struct {
	writes []writeCall
}

func (f *fakeWriter) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	f.writes = append(f.writes, writeCall{unitID, addr, append([]uint16(nil), regs...)})
	return nil
}

// ---- helpers ----

var node = protocol.Identity{DeviceID: 0x0102030405060708, PartID: 0x52810}

func radioReading(t *testing.T, rec protocol.Record, rssi int) bridge.Reading {
	t.Helper()
	codec, err := protocol.NewCodec(protocol.DefaultKey())
	require.NoError(t, err)
	payload, err := codec.EncodePlain(nil, &rec)
	require.NoError(t, err)
	pkt, err := codec.Decode(payload, protocol.DecodeOptions{AllowPlaintext: true})
	require.NoError(t, err)
	r, err := bridge.ParseLine(gateway.AppendRadioLine(nil, rssi, &pkt), time.Now())
	require.NoError(t, err)
	return r
}

// ---- tests ----

func TestRegistersClimateExt(t *testing.T) {
	r := radioReading(t, protocol.Record{
		Type:        protocol.TypeClimateExt,
		DeviceID:    node.DeviceID,
		PartID:      node.PartID,
		Seq:         0x00012345,
		Temperature: -12.34,
		Humidity:    56.78,
		Battery:     2.9,
	}, -72)

	regs := Registers(r)
	assert.Equal(t, uint16(0x0001), regs[RegIndexHigh])
	assert.Equal(t, uint16(0x2345), regs[RegIndexLow])
	assert.Equal(t, int16(-1234), int16(regs[RegTemperature]))
	assert.Equal(t, uint16(5678), regs[RegHumidity])
	assert.Equal(t, uint16(2900), regs[RegBattery])
	assert.Equal(t, int16(-72), int16(regs[RegRSSI]))
	for i := RegAccel; i < BlockSize; i++ {
		assert.Equal(t, NoValue, regs[i], "register %d", i)
	}
}

func TestRegistersMotion(t *testing.T) {
	r := radioReading(t, protocol.Record{
		Type:     protocol.TypeMotion,
		DeviceID: node.DeviceID,
		PartID:   node.PartID,
		Accel:    [3]int16{-500, 0, 1000},
		Mag:      [3]int16{100, -200, 300},
	}, -40)

	regs := Registers(r)
	assert.Equal(t, NoValue, regs[RegTemperature])
	assert.Equal(t, NoValue, regs[RegBattery])
	assert.Equal(t, int16(-500), int16(regs[RegAccel]))
	assert.Equal(t, uint16(1000), regs[RegAccel+2])
	assert.Equal(t, int16(-200), int16(regs[RegMag+1]))
}

func TestRegistersLocalSensor(t *testing.T) {
	r, err := bridge.ParseLine(gateway.AppendSensorLine(nil, node, 3, 1, sensor.Climate{Temperature: 20, Humidity: 30}), time.Now())
	require.NoError(t, err)

	regs := Registers(r)
	assert.Equal(t, uint16(3), regs[RegIndexLow])
	assert.Equal(t, uint16(2000), regs[RegTemperature])
	assert.Equal(t, NoValue, regs[RegRSSI])
}

func TestScaleClamps(t *testing.T) {
	assert.Equal(t, int16(32767), scaleInt16(1000, 100))
	assert.Equal(t, int16(-32767), scaleInt16(-1000, 100))
	assert.Equal(t, uint16(0), scaleUint16(-1, 100))
	assert.Equal(t, uint16(65534), scaleUint16(1e6, 1))
}

func TestForwarderMapsTargets(t *testing.T) {
	fake := &fakeWriter{}
	f := New(fake, []Target{{MCUID: node.MCUID(), UnitID: 7, Address: 100}})

	rec := protocol.Record{Type: protocol.TypeClimate, DeviceID: node.DeviceID, PartID: node.PartID, Seq: 1}
	require.NoError(t, f.Write(context.Background(), radioReading(t, rec, -50)))

	other := rec
	other.DeviceID = 99
	require.NoError(t, f.Write(context.Background(), radioReading(t, other, -50)))

	require.Len(t, fake.writes, 1)
	w := fake.writes[0]
	assert.Equal(t, uint8(7), w.unitID)
	assert.Equal(t, uint16(100), w.addr)
	assert.Len(t, w.regs, BlockSize)
	assert.Equal(t, uint16(1), w.regs[RegIndexLow])
}

func TestPackRegisters(t *testing.T) {
	assert.Equal(t, []byte{0x12, 0x34, 0x80, 0x00}, packRegisters([]uint16{0x1234, NoValue}))
}

func TestDialErrors(t *testing.T) {
	_, err := Dial(ClientConfig{})
	require.Error(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(ClientConfig{Endpoint: addr, Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
