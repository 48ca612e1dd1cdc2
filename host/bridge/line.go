//go:build !tinygo

package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sensornet/host/record"
)

// Report line types written by the gateway
const (
	LineRadio  = "gateway-radio"
	LineSensor = "gateway-sensor"
)

var (
	// ErrNotReport marks a line that is not a JSON report, such as the
	// gateway's debug output sharing the UART.
	ErrNotReport = errors.New("bridge: not a report line")
	ErrInvalid   = errors.New("bridge: invalid report line")
	ErrMismatch  = errors.New("bridge: data field disagrees with message")
)

// Line is one gateway report line as written on the wire.
type Line struct {
	Type      string   `json:"type"`
	RSSI      int      `json:"rssi"`
	Encrypted bool     `json:"encrypted"`
	Data      string   `json:"data"`
	Message   *Message `json:"message"`
}

// Message is the decoded record of a report line.
type Message struct {
	MCUID       string   `json:"mcuId"`
	PacketType  string   `json:"packetType"`
	Index       uint32   `json:"index"`
	SensorID    string   `json:"sensorId"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Battery     *float64 `json:"battery"`
	Serial      string   `json:"serial"`
	Accel       []int16  `json:"accel"`
	Mag         []int16  `json:"mag"`
}

// Reading is one report handed to the sinks.
type Reading struct {
	At   time.Time
	Line Line

	// Record is the unpacked data field, nil for local sensor lines.
	Record *record.Record
}

// Local reports whether the reading comes from the gateway's own sensor.
func (r *Reading) Local() bool {
	return r.Line.Type == LineSensor
}

// MCUID returns the sender identity from the message, or from the data
// field for raw-forwarded lines.
func (r *Reading) MCUID() string {
	if r.Line.Message != nil {
		return r.Line.Message.MCUID
	}
	if r.Record != nil {
		return r.Record.MCUID()
	}
	return ""
}

// Index returns the sequence number of the reading.
func (r *Reading) Index() uint32 {
	if r.Line.Message != nil {
		return r.Line.Message.Index
	}
	if r.Record != nil {
		return r.Record.Seq
	}
	return 0
}

// ParseLine decodes one report line received at "at".
func ParseLine(b []byte, at time.Time) (Reading, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return Reading{}, ErrNotReport
	}

	var line Line
	if err := json.Unmarshal(b, &line); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch line.Type {
	case LineRadio:
		if line.Data == "" {
			return Reading{}, fmt.Errorf("%w: radio line without data", ErrInvalid)
		}
	case LineSensor:
		if line.Message == nil {
			return Reading{}, fmt.Errorf("%w: sensor line without message", ErrInvalid)
		}
	default:
		return Reading{}, fmt.Errorf("%w: type %q", ErrInvalid, line.Type)
	}

	r := Reading{At: at, Line: line}
	if line.Data == "" {
		return r, nil
	}

	rec, err := record.DecodeHex(line.Data)
	if err != nil {
		if line.Message == nil && errors.Is(err, record.ErrUnknownType) {
			// raw forward of a type this host does not know either
			return r, nil
		}
		return Reading{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	r.Record = rec

	if m := line.Message; m != nil {
		if m.Index != rec.Seq || m.MCUID != rec.MCUID() || m.PacketType != rec.TypeName() {
			return Reading{}, fmt.Errorf("%w: index %d/%d, mcu %s/%s", ErrMismatch,
				m.Index, rec.Seq, m.MCUID, rec.MCUID())
		}
	}
	return r, nil
}
