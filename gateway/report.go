package gateway

import (
	"math"
	"strconv"

	"sensornet/core"
	"sensornet/protocol"
	"sensornet/sensor"
)

// Report line types
const (
	LineRadio  = "gateway-radio"
	LineSensor = "gateway-sensor"
)

// AppendRadioLine appends the report line for a decoded packet.
func AppendRadioLine(dst []byte, rssi int, p *protocol.Packet) []byte {
	dst = append(dst, `{"type":"`+LineRadio+`","rssi":`...)
	dst = strconv.AppendInt(dst, int64(rssi), 10)
	dst = append(dst, `,"encrypted":`...)
	dst = strconv.AppendBool(dst, p.Encrypted)
	dst = append(dst, `,"data":"`...)
	dst = core.AppendHex(dst, p.Data)
	dst = append(dst, `","message":`...)
	dst = appendMessage(dst, &p.Record)
	return append(dst, '}', '\n')
}

// AppendRawLine appends the report line for a packet forwarded undecoded.
func AppendRawLine(dst []byte, rssi int, payload []byte) []byte {
	dst = append(dst, `{"type":"`+LineRadio+`","rssi":`...)
	dst = strconv.AppendInt(dst, int64(rssi), 10)
	dst = append(dst, `,"data":"`...)
	dst = core.AppendHex(dst, payload)
	return append(dst, '"', '}', '\n')
}

// AppendSensorLine appends the report line for a reading of the gateway's
// own sensor.
func AppendSensorLine(dst []byte, id protocol.Identity, index uint32, sensorID uint16, c sensor.Climate) []byte {
	rec := protocol.Record{
		Type:        protocol.TypeClimate,
		DeviceID:    id.DeviceID,
		PartID:      id.PartID,
		Seq:         index,
		SensorID:    sensorID,
		Temperature: c.Temperature,
		Humidity:    c.Humidity,
	}
	dst = append(dst, `{"type":"`+LineSensor+`","message":`...)
	dst = appendMessage(dst, &rec)
	return append(dst, '}', '\n')
}

func appendMessage(dst []byte, r *protocol.Record) []byte {
	dst = append(dst, `{"mcuId":"`...)
	dst = r.Identity().AppendMCUID(dst)
	dst = append(dst, `","packetType":"`...)
	dst = append(dst, protocol.TypeName(r.Type)...)
	dst = append(dst, `","index":`...)
	dst = strconv.AppendUint(dst, uint64(r.Seq), 10)
	dst = append(dst, `,"sensorId":"`...)
	dst = core.AppendHexUint(dst, uint64(r.SensorID), 4)
	dst = append(dst, '"')

	switch r.Type & protocol.TypeMask {
	case protocol.TypeMotion:
		dst = appendAxes(dst, "accel", r.Accel)
		dst = appendAxes(dst, "mag", r.Mag)
	case protocol.TypeClimateExt:
		dst = appendFloat(dst, "temperature", r.Temperature)
		dst = appendFloat(dst, "humidity", r.Humidity)
		dst = appendFloat(dst, "battery", r.Battery)
		dst = append(dst, `,"serial":"`...)
		dst = core.AppendHexUint(dst, uint64(r.Serial), 8)
		dst = append(dst, '"')
	default:
		dst = appendFloat(dst, "temperature", r.Temperature)
		dst = appendFloat(dst, "humidity", r.Humidity)
	}
	return append(dst, '}')
}

func appendFloat(dst []byte, name string, v float32) []byte {
	dst = append(dst, ',', '"')
	dst = append(dst, name...)
	dst = append(dst, '"', ':')
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(dst, "null"...)
	}
	return strconv.AppendFloat(dst, f, 'f', -1, 32)
}

func appendAxes(dst []byte, name string, v [3]int16) []byte {
	dst = append(dst, ',', '"')
	dst = append(dst, name...)
	dst = append(dst, `":[`...)
	for i, a := range v {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendInt(dst, int64(a), 10)
	}
	return append(dst, ']')
}
