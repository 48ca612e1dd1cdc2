package periph_test

import (
	"errors"
	"strings"
	"testing"

	"sensornet/core"
	"sensornet/periph"
	"sensornet/protocol"
	"sensornet/sim"
)

func expectPanic(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("Expected panic containing %q", contains)
		}
		if msg, _ := r.(string); !strings.Contains(msg, contains) {
			t.Errorf("Expected panic containing %q, got %v", contains, r)
		}
	}()
	fn()
}

func TestTimerOneShot(t *testing.T) {
	regs := sim.NewTimer()
	idle := periph.NewTimer(regs)

	idle = idle.Start(10000).Wait()
	idle = idle.Sleep(1000)

	if regs.ElapsedUS() != 11000 {
		t.Errorf("Expected 11000us elapsed, got %d", regs.ElapsedUS())
	}
	if regs.Running() {
		t.Error("Expected timer stopped after wait")
	}
	if regs.InterruptEnabled() || regs.Done() {
		t.Error("Expected interrupt and event released after wait")
	}
	if regs.Interrupts() != 2 {
		t.Errorf("Expected 2 interrupts, got %d", regs.Interrupts())
	}
	_ = idle
}

func TestTimerStaleHandle(t *testing.T) {
	idle := periph.NewTimer(sim.NewTimer())
	active := idle.Start(5)

	expectPanic(t, "timer", func() { idle.Start(5) })

	idle = active.Wait()
	expectPanic(t, "timer", func() { active.Wait() })

	var zero periph.IdleTimer
	expectPanic(t, "zero peripheral handle", func() { zero.Start(1) })
	_ = idle
}

func TestRTC(t *testing.T) {
	regs := sim.NewRTC()
	if _, err := periph.NewRTC(regs, core.RTCPrescalerMax+1); !errors.Is(err, periph.ErrPrescalerRange) {
		t.Errorf("Expected ErrPrescalerRange, got %v", err)
	}
	if err := periph.CheckCompare(core.RTCCounterMask); err != nil {
		t.Errorf("Expected full counter accepted, got %v", err)
	}
	if err := periph.CheckCompare(0x1000000); !errors.Is(err, periph.ErrCompareRange) {
		t.Errorf("Expected ErrCompareRange, got %v", err)
	}

	idle, err := periph.NewRTC(regs, core.DefaultRTCPrescaler)
	if err != nil {
		t.Fatalf("NewRTC failed: %v", err)
	}
	if regs.Prescaler() != core.DefaultRTCPrescaler || idle.Prescaler() != core.DefaultRTCPrescaler {
		t.Errorf("Expected prescaler %d, got %d", core.DefaultRTCPrescaler, regs.Prescaler())
	}

	idle = idle.Sleep(600)
	idle = idle.Sleep(0x1000030)

	if regs.Compare() != 0x30 {
		t.Errorf("Expected compare masked to 24 bits, got %#x", regs.Compare())
	}
	if regs.Wakes() != 2 {
		t.Errorf("Expected 2 wakes, got %d", regs.Wakes())
	}
	if regs.Ticks() != 600+0x30 {
		t.Errorf("Expected %d ticks slept, got %d", 600+0x30, regs.Ticks())
	}
}

func TestRTCManual(t *testing.T) {
	regs := sim.NewRTC()
	regs.SetManual(true)
	idle, _ := periph.NewRTC(regs, core.DefaultRTCPrescaler)

	active := idle.Start(30)
	if active.Expired() {
		t.Fatal("Expected no match before Fire")
	}
	regs.Fire()
	if !active.Expired() {
		t.Fatal("Expected match after Fire")
	}
	if got := core.AwaitAny(active.Completion()); got != 0 {
		t.Errorf("Expected completion 0, got %d", got)
	}
	idle = active.Wait()
	if regs.Done() {
		t.Error("Expected compare event cleared")
	}
	_ = idle
}

func TestTWIM(t *testing.T) {
	regs := sim.NewTWIM()
	regs.Attach(0x44, sim.NewSHT4x(20, 50, 0))
	idle := periph.NewTWIM(regs, periph.TWIMConfig{SCL: 22, SDA: 23})

	if regs.Config().Frequency != periph.K400 {
		t.Errorf("Expected default 400 kHz, got %d", regs.Config().Frequency)
	}

	var err error
	idle, err = idle.Write(0x44, []byte{0xFD})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	var buf [6]byte
	idle, err = idle.Read(0x44, buf[:])
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if buf == ([6]byte{}) {
		t.Error("Expected measurement bytes")
	}
	if regs.Enabled() {
		t.Error("Expected bus disabled between transactions")
	}

	idle, err = idle.Write(0x45, []byte{0xFD})
	var be *periph.BusError
	if !errors.As(err, &be) || be.Addr != 0x45 {
		t.Fatalf("Expected BusError for 0x45, got %v", err)
	}
	if !errors.Is(err, periph.ErrAddressNACK) {
		t.Errorf("Expected address NACK, got %v", err)
	}
	if !strings.Contains(err.Error(), "0x45") {
		t.Errorf("Expected address in message, got %q", err.Error())
	}

	// the handle survives a failed transaction
	idle, err = idle.Read(0x44, buf[:])
	if !errors.Is(err, periph.ErrDataNACK) {
		t.Errorf("Expected data NACK reading with nothing pending, got %v", err)
	}
	if regs.ErrorSource() != 0 {
		t.Error("Expected ERRORSRC consumed by Wait")
	}
	_ = idle
}

func TestBusErrorCauses(t *testing.T) {
	tests := []struct {
		src  uint32
		want error
	}{
		{periph.ErrorSrcANACK, periph.ErrAddressNACK},
		{periph.ErrorSrcDNACK, periph.ErrDataNACK},
		{periph.ErrorSrcOverrun, periph.ErrOverrun},
		{0, periph.ErrBus},
	}
	for _, tt := range tests {
		err := &periph.BusError{Addr: 1, Source: tt.src}
		if !errors.Is(err, tt.want) {
			t.Errorf("Source %#x: Expected %v, got %v", tt.src, tt.want, err)
		}
	}
}

func TestRNGNonceUniqueness(t *testing.T) {
	regs := sim.NewRNG(nil)
	idle := periph.NewRNG(regs)
	if !regs.BiasCorrection() {
		t.Error("Expected bias correction enabled")
	}

	const n = 10000
	seen := make(map[protocol.Nonce]int, n)
	for i := 0; i < n; i++ {
		var nonce protocol.Nonce
		idle = idle.Fill(nonce[:])
		if prev, dup := seen[nonce]; dup {
			t.Fatalf("Nonce %x repeated at %d and %d", nonce, prev, i)
		}
		seen[nonce] = i
	}
	if regs.Draws() != n*protocol.NonceSize {
		t.Errorf("Expected %d draws, got %d", n*protocol.NonceSize, regs.Draws())
	}
}

func TestClock(t *testing.T) {
	regs := sim.NewClock()
	idle := periph.NewClock(regs)

	idle = idle.EnableHF()
	if !idle.Running() {
		t.Error("Expected crystal running")
	}
	idle = idle.StopHF()
	if idle.Running() {
		t.Error("Expected crystal stopped")
	}
	if regs.Starts() != 1 {
		t.Errorf("Expected 1 start, got %d", regs.Starts())
	}
}

func TestPower(t *testing.T) {
	regs := sim.NewPower()
	p := periph.NewPower(regs)
	if p.Mode() != periph.LowPower || regs.Mode() != periph.LowPower {
		t.Errorf("Expected low power by default")
	}
	p.SetMode(periph.ConstantLatency)
	if regs.Mode() != periph.ConstantLatency {
		t.Errorf("Expected constant latency, got %d", regs.Mode())
	}
}

func TestBattery(t *testing.T) {
	regs := sim.NewSAADC(1.5)
	b := periph.NewBattery(regs, 4)

	v := b.Volts()
	if v < 1.49 || v > 1.51 {
		t.Errorf("Expected ~1.5V, got %v", v)
	}
	if regs.Enabled() {
		t.Error("Expected ADC disabled after sample")
	}

	if got := periph.RawToVolts(1024); got < 1.499 || got > 1.501 {
		t.Errorf("Expected full scale 1.5V, got %v", got)
	}
}

func TestIdentity(t *testing.T) {
	ficr := sim.NewFICR(0x1122334455667788, 0x52810)
	id := periph.ReadIdentity(ficr)
	if id.DeviceID != 0x1122334455667788 || id.PartID != 0x52810 {
		t.Errorf("Expected identity round trip, got %+v", id)
	}

	uicr := sim.NewUICR()
	if periph.ReadConfigWord(uicr).Programmed() {
		t.Error("Expected erased UICR")
	}
	uicr.Words[0] = uint32(protocol.NewConfigWord(protocol.BoardSensorNode, 1, 0, 0))
	if periph.ReadConfigWord(uicr).Board() != protocol.BoardSensorNode {
		t.Error("Expected sensor node board")
	}
}
