package gateway_test

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"sensornet/core"
	"sensornet/gateway"
	"sensornet/node"
	"sensornet/periph"
	"sensornet/protocol"
	"sensornet/radio"
	"sensornet/sensor"
	"sensornet/sim"
)

var gatewayID = protocol.Identity{DeviceID: 0xFEEDFACE00000001, PartID: 0x52840}

type line struct {
	Type      string  `json:"type"`
	RSSI      int     `json:"rssi"`
	Encrypted bool    `json:"encrypted"`
	Data      string  `json:"data"`
	Message   message `json:"message"`
}

type message struct {
	MCUID       string   `json:"mcuId"`
	PacketType  string   `json:"packetType"`
	Index       uint32   `json:"index"`
	SensorID    string   `json:"sensorId"`
	Temperature float32  `json:"temperature"`
	Humidity    float32  `json:"humidity"`
	Battery     float32  `json:"battery"`
	Serial      string   `json:"serial"`
	Accel       [3]int16 `json:"accel"`
	Mag         [3]int16 `json:"mag"`
}

func lines(t *testing.T, out *bytes.Buffer) []line {
	t.Helper()
	var ls []line
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("Invalid report line %q: %v", sc.Text(), err)
		}
		ls = append(ls, l)
	}
	out.Reset()
	return ls
}

func newGateway(t *testing.T, air *sim.Air, cfg gateway.Config) (*gateway.Gateway, *bytes.Buffer, *protocol.Codec) {
	t.Helper()
	core.ClearEventRing()
	codec, err := protocol.NewCodec(protocol.MustParseKey("A0B1C2D3E4F5061728394A5B6C7D8E9F"))
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	out := &bytes.Buffer{}
	g := gateway.New(radio.NewLink(air.NewRadio()), codec, out, cfg, gatewayID)
	g.Start()
	return g, out, codec
}

func scenarioRecord() protocol.Record {
	return protocol.Record{
		Type:        protocol.TypeClimate,
		DeviceID:    0x1122334455667788,
		PartID:      0x0A0B0C0D,
		Seq:         0,
		SensorID:    0x0001,
		Temperature: 23.50,
		Humidity:    45.0,
	}
}

func TestScenario(t *testing.T) {
	air := sim.NewAir()
	g, out, codec := newGateway(t, air, gateway.Config{})

	rec := scenarioRecord()
	payload, err := codec.Seal(nil, &rec, protocol.Nonce{})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	air.Inject(payload)
	if err := g.Poll(); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	ls := lines(t, out)
	if len(ls) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(ls))
	}
	l := ls[0]
	if l.Type != gateway.LineRadio || !l.Encrypted || l.RSSI != -sim.DefaultRSSI {
		t.Errorf("Expected encrypted radio line at -%d dBm, got %+v", sim.DefaultRSSI, l)
	}
	m := l.Message
	if m.MCUID != "0a0b0c0d-1122334455667788" {
		t.Errorf("Expected mcuId 0a0b0c0d-1122334455667788, got %s", m.MCUID)
	}
	if m.Index != 0 || m.Temperature != 23.5 || m.Humidity != 45.0 {
		t.Errorf("Expected seq 0 at 23.5°C/45%%, got %+v", m)
	}
	if m.SensorID != "0001" || m.PacketType != "climate" {
		t.Errorf("Expected climate from sensor 0001, got %+v", m)
	}

	var w protocol.Writer
	w.PutU16(protocol.TypeClimate)
	if err := rec.Encode(&w); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if l.Data != hex.EncodeToString(w.Result()) {
		t.Errorf("Expected data to be the plaintext packet\n%x\ngot\n%s", w.Result(), l.Data)
	}

	// one corrupted ciphertext byte
	payload[14] ^= 0x01
	air.Inject(payload)
	if err := g.Poll(); !errors.Is(err, protocol.ErrAuthentication) {
		t.Fatalf("Expected ErrAuthentication, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("Expected nothing forwarded, got %q", out.String())
	}

	st := g.Stats()
	if st.Received != 2 || st.Forwarded != 1 || st.AuthFailures != 1 {
		t.Errorf("Expected 2 received, 1 forwarded, 1 auth failure, got %+v", st)
	}
	if _, ok := core.LastEvent(core.EvtAuthFailure); !ok {
		t.Error("Expected AUTH_FAIL event")
	}
}

func TestNodeStream(t *testing.T) {
	air := sim.NewAir()
	g, out, codec := newGateway(t, air, gateway.Config{})

	b := sim.NewBoard(air, sim.BoardConfig{DeviceID: 0x1122334455667788, PartID: 0x0A0B0C0D, Volts: 1.4})
	b.TWIM.Attach(sensor.SHT4xAddress, sim.NewSHT4x(21.25, 50, 0x00C0FFEE))
	rtc, _ := periph.NewRTC(b.RTC, core.DefaultRTCPrescaler)
	n, err := node.New(node.DefaultConfig(false), node.Peripherals{
		Link:    radio.NewLink(b.Radio),
		RTC:     rtc,
		TWIM:    periph.NewTWIM(b.TWIM, periph.TWIMConfig{}),
		Timer:   periph.NewTimer(b.Timer),
		RNG:     periph.NewRNG(b.RNG),
		Clock:   periph.NewClock(b.Clock),
		Battery: periph.NewBattery(b.SAADC, 4),
	}, periph.ReadIdentity(b.FICR), codec)
	if err != nil {
		t.Fatalf("node.New failed: %v", err)
	}

	const cycles = 25
	for i := 0; i < cycles; i++ {
		if err := n.Step(); err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
		if err := g.Poll(); err != nil {
			t.Fatalf("Poll %d failed: %v", i, err)
		}
	}

	ls := lines(t, out)
	if len(ls) != cycles {
		t.Fatalf("Expected %d lines, got %d", cycles, len(ls))
	}
	for i, l := range ls {
		if i > 0 && l.Message.Index <= ls[i-1].Message.Index {
			t.Fatalf("Expected strictly increasing index, got %d after %d", l.Message.Index, ls[i-1].Message.Index)
		}
		if l.Message.PacketType != "climate-ext" || l.Message.Serial != "00c0ffee" {
			t.Errorf("Expected climate-ext from serial 00c0ffee, got %+v", l.Message)
		}
		if l.Message.SensorID != "ffee" {
			t.Errorf("Expected sensor id ffee, got %s", l.Message.SensorID)
		}
	}
	if ls[cycles-1].Message.Index != cycles-1 {
		t.Errorf("Expected last index %d, got %d", cycles-1, ls[cycles-1].Message.Index)
	}
}

func TestPlaintextPolicy(t *testing.T) {
	rec := scenarioRecord()

	air := sim.NewAir()
	g, out, codec := newGateway(t, air, gateway.Config{})
	payload, _ := codec.EncodePlain(nil, &rec)
	air.Inject(payload)
	if err := g.Poll(); !errors.Is(err, protocol.ErrPlaintextRejected) {
		t.Fatalf("Expected ErrPlaintextRejected, got %v", err)
	}
	if out.Len() != 0 || g.Stats().Rejected != 1 {
		t.Errorf("Expected plaintext dropped and counted, got %+v", g.Stats())
	}

	air = sim.NewAir()
	g, out, codec = newGateway(t, air, gateway.Config{AllowPlaintext: true})
	payload, _ = codec.EncodePlain(nil, &rec)
	air.Inject(payload)
	if err := g.Poll(); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	ls := lines(t, out)
	if len(ls) != 1 || ls[0].Encrypted || ls[0].Data != hex.EncodeToString(payload) {
		t.Errorf("Expected plaintext line carrying the packet, got %+v", ls)
	}
}

func TestCRCErrorRearms(t *testing.T) {
	air := sim.NewAir()
	g, out, codec := newGateway(t, air, gateway.Config{})

	corrupt := true
	air.SetTamper(func(f *sim.Frame) {
		if corrupt {
			f.Bytes[len(f.Bytes)-1] ^= 0x80
			corrupt = false
		}
	})

	rec := scenarioRecord()
	payload, _ := codec.Seal(nil, &rec, protocol.Nonce{1})
	air.Inject(payload)
	if err := g.Poll(); !errors.Is(err, gateway.ErrCRC) {
		t.Fatalf("Expected ErrCRC, got %v", err)
	}

	air.Inject(payload)
	if err := g.Poll(); err != nil {
		t.Fatalf("Expected next packet after CRC error, got %v", err)
	}
	if len(lines(t, out)) != 1 {
		t.Error("Expected 1 forwarded line")
	}
	st := g.Stats()
	if st.CRCErrors != 1 || st.Received != 1 {
		t.Errorf("Expected 1 CRC error and 1 received, got %+v", st)
	}
}

func TestMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"single byte", []byte{0x05}, protocol.ErrShortPacket},
		{"sealed header only", []byte{0x05, 0x80, 1, 2, 3}, protocol.ErrShortPacket},
		{"unknown type", []byte{0x42, 0x00, 1, 2, 3}, protocol.ErrUnknownType},
		{"short body", []byte{0x05, 0x00, 1, 2, 3}, protocol.ErrLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			air := sim.NewAir()
			g, out, _ := newGateway(t, air, gateway.Config{AllowPlaintext: true})
			air.Inject(tt.payload)
			if err := g.Poll(); !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if out.Len() != 0 || g.Stats().Malformed != 1 {
				t.Errorf("Expected dropped and counted, got %+v", g.Stats())
			}
		})
	}
}

func TestForwardRaw(t *testing.T) {
	air := sim.NewAir()
	g, out, _ := newGateway(t, air, gateway.Config{AllowPlaintext: true, ForwardRaw: true})

	air.Inject([]byte{0x42, 0x00, 0xDE, 0xAD})
	if err := g.Poll(); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	want := `{"type":"gateway-radio","rssi":-60,"data":"4200dead"}` + "\n"
	if out.String() != want {
		t.Errorf("Expected %q, got %q", want, out.String())
	}
	if g.Stats().Forwarded != 1 {
		t.Errorf("Expected 1 forwarded, got %+v", g.Stats())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("uart gone") }

func TestWriteError(t *testing.T) {
	air := sim.NewAir()
	codec, _ := protocol.NewCodec(protocol.DefaultKey())
	g := gateway.New(radio.NewLink(air.NewRadio()), codec, failingWriter{}, gateway.Config{}, gatewayID)
	g.Start()

	rec := scenarioRecord()
	payload, _ := codec.Seal(nil, &rec, protocol.Nonce{})
	air.Inject(payload)
	if err := g.Poll(); err == nil {
		t.Fatal("Expected write error")
	}
	if st := g.Stats(); st.WriteErrors != 1 || st.Forwarded != 0 {
		t.Errorf("Expected write error counted, got %+v", st)
	}
}

func TestLocalSensor(t *testing.T) {
	air := sim.NewAir()
	core.ClearEventRing()
	codec, _ := protocol.NewCodec(protocol.DefaultKey())
	out := &bytes.Buffer{}

	twim := sim.NewTWIM()
	twim.Attach(0x70, sim.NewSHTC3(19.5, 38.0))
	rtcRegs := sim.NewRTC()
	rtcRegs.SetManual(true)
	rtc, _ := periph.NewRTC(rtcRegs, core.DefaultRTCPrescaler)

	g := gateway.New(radio.NewLink(air.NewRadio()), codec, out,
		gateway.Config{LocalSensorID: 0x0C03, LocalPeriod: 100}, gatewayID)
	g.WithLocalSensor(sensor.NewSHTC3(sensor.NewBus(periph.NewTWIM(twim, periph.TWIMConfig{}))), rtc)
	g.Start()
	if rtcRegs.Compare() != 100 {
		t.Errorf("Expected local period 100, got %d", rtcRegs.Compare())
	}

	for i := 0; i < 2; i++ {
		rtcRegs.Fire()
		if err := g.Poll(); err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
	}

	// a pending radio packet is served before a due local reading
	rec := scenarioRecord()
	payload, _ := codec.Seal(nil, &rec, protocol.Nonce{})
	air.Inject(payload)
	rtcRegs.Fire()
	if err := g.Poll(); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if err := g.Poll(); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}

	ls := lines(t, out)
	if len(ls) != 4 {
		t.Fatalf("Expected 4 lines, got %d", len(ls))
	}
	for i, want := range []string{gateway.LineSensor, gateway.LineSensor, gateway.LineRadio, gateway.LineSensor} {
		if ls[i].Type != want {
			t.Errorf("Line %d: Expected %s, got %s", i, want, ls[i].Type)
		}
	}
	local := ls[3].Message
	if local.Index != 2 || local.SensorID != "0c03" || local.MCUID != gatewayID.MCUID() {
		t.Errorf("Expected third local reading from the gateway, got %+v", local)
	}
	if local.Temperature < 19.4 || local.Temperature > 19.6 {
		t.Errorf("Expected ~19.5°C, got %v", local.Temperature)
	}
	if st := g.Stats(); st.LocalSamples != 3 || st.Forwarded != 1 {
		t.Errorf("Expected 3 local samples and 1 forwarded, got %+v", st)
	}
}

func TestLocalSensorError(t *testing.T) {
	air := sim.NewAir()
	codec, _ := protocol.NewCodec(protocol.DefaultKey())
	rtcRegs := sim.NewRTC()
	rtcRegs.SetManual(true)
	rtc, _ := periph.NewRTC(rtcRegs, core.DefaultRTCPrescaler)

	twim := sim.NewTWIM()
	timer := sim.NewTimer()
	sht := sensor.NewSHT4x(periph.NewTWIM(twim, periph.TWIMConfig{}), periph.NewTimer(timer), sensor.SHT4xAddress)
	g := gateway.New(radio.NewLink(air.NewRadio()), codec, &bytes.Buffer{}, gateway.Config{}, gatewayID).
		WithLocalSensor(sht, rtc)
	g.Start()

	rtcRegs.Fire()
	if err := g.Poll(); !errors.Is(err, periph.ErrAddressNACK) {
		t.Fatalf("Expected address NACK from missing sensor, got %v", err)
	}
	if g.Stats().LocalErrors != 1 {
		t.Errorf("Expected 1 local error, got %+v", g.Stats())
	}

	// the timer is re-armed after a failed reading
	twim.Attach(sensor.SHT4xAddress, sim.NewSHT4x(20, 40, 0))
	rtcRegs.Fire()
	if err := g.Poll(); err != nil {
		t.Fatalf("Expected recovery, got %v", err)
	}
}

func TestReportLines(t *testing.T) {
	p := protocol.Packet{
		Record: protocol.Record{
			Type:     protocol.TypeMotion,
			DeviceID: 1,
			PartID:   2,
			Seq:      7,
			SensorID: 0xAB,
			Accel:    [3]int16{-1, 2, 1000},
			Mag:      [3]int16{0, -300, 5},
		},
		Encrypted: true,
		Data:      []byte{0x03, 0x00},
	}
	got := string(gateway.AppendRadioLine(nil, -42, &p))
	want := `{"type":"gateway-radio","rssi":-42,"encrypted":true,"data":"0300","message":` +
		`{"mcuId":"00000002-0000000000000001","packetType":"motion","index":7,"sensorId":"00ab",` +
		`"accel":[-1,2,1000],"mag":[0,-300,5]}}` + "\n"
	if got != want {
		t.Errorf("Expected\n%s\ngot\n%s", want, got)
	}

	got = string(gateway.AppendSensorLine(nil, protocol.Identity{DeviceID: 3, PartID: 4}, 9, 0x0C03,
		sensor.Climate{Temperature: 21.5, Humidity: 40.25}))
	want = `{"type":"gateway-sensor","message":{"mcuId":"00000004-0000000000000003","packetType":"climate",` +
		`"index":9,"sensorId":"0c03","temperature":21.5,"humidity":40.25}}` + "\n"
	if got != want {
		t.Errorf("Expected\n%s\ngot\n%s", want, got)
	}
}

func TestLocalPeriodClamped(t *testing.T) {
	air := sim.NewAir()
	core.ClearEventRing()
	codec, _ := protocol.NewCodec(protocol.DefaultKey())

	twim := sim.NewTWIM()
	twim.Attach(0x70, sim.NewSHTC3(20, 40))
	rtcRegs := sim.NewRTC()
	rtcRegs.SetManual(true)
	rtc, _ := periph.NewRTC(rtcRegs, core.DefaultRTCPrescaler)

	g := gateway.New(radio.NewLink(air.NewRadio()), codec, &bytes.Buffer{},
		gateway.Config{LocalPeriod: 0x1000000}, gatewayID)
	g.WithLocalSensor(sensor.NewSHTC3(sensor.NewBus(periph.NewTWIM(twim, periph.TWIMConfig{}))), rtc)
	g.Start()
	if rtcRegs.Compare() != core.RTCCounterMask {
		t.Errorf("Expected local period clamped to %#x, got %#x", core.RTCCounterMask, rtcRegs.Compare())
	}
}
