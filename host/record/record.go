//go:build !tinygo

// Package record unpacks the binary telemetry carried in the gateway's
// "data" field: the packet type tag followed by the plaintext record body,
// all little-endian.
package record

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/lunixbochs/struc"
)

// Packet type tags, encryption flag cleared.
const (
	TypeMotion     uint16 = 0x0003
	TypeClimate    uint16 = 0x0005
	TypeClimateExt uint16 = 0x0006

	typeMask = 0x7FFF
)

var (
	ErrShort       = errors.New("record: data shorter than a header")
	ErrUnknownType = errors.New("record: unknown packet type")
	ErrLength      = errors.New("record: body length does not match type")
)

var order = &struc.Options{Order: binary.LittleEndian}

// Header is the part common to every record.
type Header struct {
	Type     uint16
	DeviceID uint64
	PartID   uint32
	Seq      uint32
	SensorID uint16
}

// Climate is the TypeClimate body.
type Climate struct {
	Temperature float32
	Humidity    float32
}

// ClimateExt is the TypeClimateExt body.
type ClimateExt struct {
	Temperature float32
	Humidity    float32
	Battery     float32
	Serial      uint32
}

// Motion is the TypeMotion body: mg and mG per axis.
type Motion struct {
	Accel [3]int16
	Mag   [3]int16
}

// Record is one unpacked record. Exactly one body pointer is set.
type Record struct {
	Header
	Climate    *Climate
	ClimateExt *ClimateExt
	Motion     *Motion
}

var headerSize = mustSize(&Header{})

var bodySizes = map[uint16]int{
	TypeMotion:     mustSize(&Motion{}),
	TypeClimate:    mustSize(&Climate{}),
	TypeClimateExt: mustSize(&ClimateExt{}),
}

func mustSize(v interface{}) int {
	n, err := struc.SizeofWithOptions(v, order)
	if err != nil {
		panic(err)
	}
	return n
}

// Size returns the full encoded size of a record of typ, tag included.
func Size(typ uint16) (int, bool) {
	n, ok := bodySizes[typ&typeMask]
	return headerSize + n, ok
}

// Decode unpacks data. The type is checked before the length, so a short
// packet of unknown type reports ErrUnknownType. The length must match the
// type exactly.
func Decode(data []byte) (*Record, error) {
	if len(data) < 2 {
		return nil, ErrShort
	}
	typ := binary.LittleEndian.Uint16(data) & typeMask
	size, ok := Size(typ)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnknownType, typ)
	}
	if len(data) < headerSize {
		return nil, ErrShort
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: type 0x%04x, %d bytes", ErrLength, typ, len(data))
	}

	r := bytes.NewReader(data)
	rec := &Record{}
	if err := struc.UnpackWithOptions(r, &rec.Header, order); err != nil {
		return nil, err
	}
	rec.Type = typ

	var body interface{}
	switch typ {
	case TypeMotion:
		rec.Motion = &Motion{}
		body = rec.Motion
	case TypeClimate:
		rec.Climate = &Climate{}
		body = rec.Climate
	case TypeClimateExt:
		rec.ClimateExt = &ClimateExt{}
		body = rec.ClimateExt
	}
	if err := struc.UnpackWithOptions(r, body, order); err != nil {
		return nil, err
	}
	return rec, nil
}

// DecodeHex decodes the hex form used on the gateway's serial output.
func DecodeHex(s string) (*Record, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	return Decode(data)
}

// Encode packs rec in the same layout Decode reads.
func Encode(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, &rec.Header, order); err != nil {
		return nil, err
	}
	var body interface{}
	switch {
	case rec.Motion != nil:
		body = rec.Motion
	case rec.Climate != nil:
		body = rec.Climate
	case rec.ClimateExt != nil:
		body = rec.ClimateExt
	default:
		return nil, ErrUnknownType
	}
	if err := struc.PackWithOptions(&buf, body, order); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MCUID formats the sender identity the way the gateway does.
func (h *Header) MCUID() string {
	return fmt.Sprintf("%08x-%016x", h.PartID, h.DeviceID)
}

// TypeName returns the gateway's label for the record type.
func (h *Header) TypeName() string {
	switch h.Type {
	case TypeMotion:
		return "motion"
	case TypeClimate:
		return "climate"
	case TypeClimateExt:
		return "climate-ext"
	default:
		return "unknown"
	}
}
