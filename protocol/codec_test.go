package protocol

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func scenarioRecord() Record {
	return Record{
		Type:        TypeClimate,
		DeviceID:    0x1122334455667788,
		PartID:      0x0A0B0C0D,
		Seq:         0,
		SensorID:    0x0001,
		Temperature: 23.50,
		Humidity:    45.0,
	}
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(DefaultKey())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func TestSealScenario(t *testing.T) {
	c := newTestCodec(t)
	rec := scenarioRecord()

	pkt, err := c.Seal(nil, &rec, Nonce{})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if len(pkt) != 40 {
		t.Fatalf("Expected 40 byte packet, got %d", len(pkt))
	}
	if pkt[0] != 0x05 || pkt[1] != 0x80 {
		t.Errorf("Expected type tag 05 80, got %02x %02x", pkt[0], pkt[1])
	}
	if !bytes.Equal(pkt[2:10], make([]byte, 8)) {
		t.Errorf("Expected zero nonce on wire, got %x", pkt[2:10])
	}

	got, err := c.Decode(pkt, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !got.Encrypted {
		t.Error("Expected packet to be marked encrypted")
	}
	if got.Temperature != 23.50 || got.Humidity != 45.0 {
		t.Errorf("Expected 23.5/45.0, got %v/%v", got.Temperature, got.Humidity)
	}
	if got.Seq != 0 || got.DeviceID != rec.DeviceID || got.PartID != rec.PartID {
		t.Errorf("Header mismatch: %+v", got.Record)
	}
	if got.Type != TypeClimate {
		t.Errorf("Expected flag cleared type 0x0005, got %#04x", got.Type)
	}

	// A single corrupted ciphertext byte must not yield a wrong temperature.
	bad := append([]byte(nil), pkt...)
	bad[14] ^= 0x01
	if _, err := c.Decode(bad, DecodeOptions{}); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got %v", err)
	}
}

func TestDecodeData(t *testing.T) {
	c := newTestCodec(t)
	rec := scenarioRecord()

	plain, err := c.EncodePlain(nil, &rec)
	if err != nil {
		t.Fatalf("EncodePlain failed: %v", err)
	}
	sealed, err := c.Seal(nil, &rec, Nonce{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	got, err := c.Decode(sealed, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(got.Data, plain) {
		t.Errorf("Expected data %x, got %x", plain, got.Data)
	}
	if got.Nonce != (Nonce{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("Expected nonce echoed, got %x", got.Nonce)
	}
}

func randomRecord(rng *rand.Rand, typ uint16) Record {
	return Record{
		Type:        typ,
		DeviceID:    rng.Uint64(),
		PartID:      rng.Uint32(),
		Seq:         rng.Uint32(),
		SensorID:    uint16(rng.Uint32()),
		Temperature: rng.Float32()*100 - 40,
		Humidity:    rng.Float32() * 100,
		Battery:     rng.Float32() * 3.3,
		Serial:      rng.Uint32(),
		Accel:       [3]int16{int16(rng.Uint32()), int16(rng.Uint32()), int16(rng.Uint32())},
		Mag:         [3]int16{int16(rng.Uint32()), int16(rng.Uint32()), int16(rng.Uint32())},
	}
}

// keep only the fields the type carries
func project(r Record) Record {
	out := Record{Type: r.Type, DeviceID: r.DeviceID, PartID: r.PartID, Seq: r.Seq, SensorID: r.SensorID}
	switch r.Type {
	case TypeMotion:
		out.Accel, out.Mag = r.Accel, r.Mag
	case TypeClimate:
		out.Temperature, out.Humidity = r.Temperature, r.Humidity
	case TypeClimateExt:
		out.Temperature, out.Humidity, out.Battery, out.Serial = r.Temperature, r.Humidity, r.Battery, r.Serial
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	rng := rand.New(rand.NewSource(1))

	for _, typ := range []uint16{TypeMotion, TypeClimate, TypeClimateExt} {
		for i := 0; i < 200; i++ {
			rec := randomRecord(rng, typ)
			want := project(rec)

			var nonce Nonce
			rng.Read(nonce[:])
			sealed, err := c.Seal(nil, &rec, nonce)
			if err != nil {
				t.Fatalf("%s: Seal failed: %v", TypeName(typ), err)
			}
			size, _ := BodySize(typ)
			if len(sealed) != size+SealedOverhead {
				t.Fatalf("%s: Expected %d bytes, got %d", TypeName(typ), size+SealedOverhead, len(sealed))
			}
			got, err := c.Decode(sealed, DecodeOptions{})
			if err != nil {
				t.Fatalf("%s: Decode failed: %v", TypeName(typ), err)
			}
			if got.Record != want {
				t.Fatalf("%s: Expected %+v, got %+v", TypeName(typ), want, got.Record)
			}

			plain, err := c.EncodePlain(nil, &rec)
			if err != nil {
				t.Fatalf("%s: EncodePlain failed: %v", TypeName(typ), err)
			}
			got, err = c.Decode(plain, DecodeOptions{AllowPlaintext: true})
			if err != nil {
				t.Fatalf("%s: plaintext Decode failed: %v", TypeName(typ), err)
			}
			if got.Encrypted || got.Record != want {
				t.Fatalf("%s: plaintext mismatch %+v", TypeName(typ), got.Record)
			}
		}
	}
}

func TestTamperEveryBit(t *testing.T) {
	c := newTestCodec(t)
	rec := scenarioRecord()
	rec.Seq = 77

	pkt, err := c.Seal(nil, &rec, Nonce{0xde, 0xad, 0xbe, 0xef, 0, 1, 2, 3})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	flagBit := 15 // bit 7 of the second type byte
	for bit := 0; bit < len(pkt)*8; bit++ {
		bad := append([]byte(nil), pkt...)
		bad[bit/8] ^= 1 << (bit % 8)

		got, err := c.Decode(bad, DecodeOptions{})
		if err == nil {
			t.Fatalf("bit %d: Expected decode failure, got %+v", bit, got.Record)
		}
		if bit == flagBit {
			if !errors.Is(err, ErrPlaintextRejected) {
				t.Errorf("bit %d: Expected ErrPlaintextRejected, got %v", bit, err)
			}
			continue
		}
		if !errors.Is(err, ErrAuthentication) {
			t.Errorf("bit %d: Expected ErrAuthentication, got %v", bit, err)
		}
	}

	// clearing the flag in a debug gateway still does not produce a record
	bad := append([]byte(nil), pkt...)
	bad[1] &^= 0x80
	if _, err := c.Decode(bad, DecodeOptions{AllowPlaintext: true}); !errors.Is(err, ErrLength) {
		t.Errorf("Expected ErrLength for stripped flag, got %v", err)
	}
}

func TestAuthFailureLeavesNoPlaintext(t *testing.T) {
	c := newTestCodec(t)
	rec := scenarioRecord()
	pkt, err := c.Seal(nil, &rec, Nonce{})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	pkt[len(pkt)-1] ^= 0xFF

	got, err := c.Decode(pkt, DecodeOptions{})
	if err == nil {
		t.Fatal("Expected error")
	}
	if got.Data != nil || got.Record != (Record{}) {
		t.Errorf("Expected zero packet, got %+v", got)
	}
	for i, b := range c.plain {
		if b != 0 {
			t.Fatalf("Expected plaintext scratch wiped, byte %d = %#02x", i, b)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	c := newTestCodec(t)
	rec := scenarioRecord()
	plain, _ := c.EncodePlain(nil, &rec)

	tests := []struct {
		name    string
		payload []byte
		opts    DecodeOptions
		want    error
	}{
		{"empty", nil, DecodeOptions{}, ErrShortPacket},
		{"one byte", []byte{0x05}, DecodeOptions{}, ErrShortPacket},
		{"sealed too short", []byte{0x05, 0x80, 1, 2, 3, 4, 5, 6, 7, 8, 9}, DecodeOptions{}, ErrShortPacket},
		{"plaintext refused", plain, DecodeOptions{}, ErrPlaintextRejected},
		{"plaintext short", plain[:len(plain)-1], DecodeOptions{AllowPlaintext: true}, ErrLength},
		{"plaintext unknown", []byte{0x42, 0x00, 1, 2, 3}, DecodeOptions{AllowPlaintext: true}, ErrUnknownType},
		{"oversized", make([]byte, MaxPayload+1), DecodeOptions{}, ErrTooLarge},
		{"sealed oversized is clamped", append([]byte{0x05, 0x80}, make([]byte, MaxPayload+40)...), DecodeOptions{}, ErrAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.payload, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSealUnknownType(t *testing.T) {
	c := newTestCodec(t)
	rec := Record{Type: 0x0042}
	out, err := c.Seal(nil, &rec, Nonce{})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected nothing appended, got %d bytes", len(out))
	}
}

func TestOpen(t *testing.T) {
	c := newTestCodec(t)
	rec := scenarioRecord()
	plain, _ := c.EncodePlain(nil, &rec)
	if _, err := c.Open(plain); !errors.Is(err, ErrPlaintextRejected) {
		t.Errorf("Expected Open to reject plaintext, got %v", err)
	}

	sealed, _ := c.Seal(nil, &rec, Nonce{9})
	got, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got != rec {
		t.Errorf("Expected %+v, got %+v", rec, got)
	}
}

func TestWrongKey(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec(MustParseKey("1"))
	if err != nil {
		t.Fatal(err)
	}
	rec := scenarioRecord()
	sealed, _ := c.Seal(nil, &rec, Nonce{})
	if _, err := other.Open(sealed); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication under another key, got %v", err)
	}
}

func TestOpenIgnoresBytesPastCiphertextLimit(t *testing.T) {
	c := newTestCodec(t)
	rec := scenarioRecord()
	sealed, err := c.Seal(nil, &rec, Nonce{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	long := append(append([]byte(nil), sealed...), make([]byte, MaxPayload)...)
	if _, err := c.Decode(long, DecodeOptions{}); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication for trailing bytes, got %v", err)
	}
	if _, err := c.Decode(sealed, DecodeOptions{}); err != nil {
		t.Errorf("Expected original packet to open, got %v", err)
	}
}
