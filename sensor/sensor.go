// Package sensor holds the environmental sensors read by nodes and
// gateways: a state-tagged SHT4x driver on the TWIM peripheral, and
// adapters that put tinygo.org/x/drivers devices on the same bus.
package sensor

import (
	"github.com/snksoft/crc"
)

// Climate is one temperature and humidity reading.
type Climate struct {
	Temperature float32 // °C
	Humidity    float32 // %RH
}

// ClimateSensor is anything that can take a climate reading.
type ClimateSensor interface {
	ReadClimate() (Climate, error)
}

// crc8Params is the Sensirion word checksum.
var crc8Params = &crc.Parameters{
	Width:      8,
	Polynomial: 0x31,
	Init:       0xFF,
	ReflectIn:  false,
	ReflectOut: false,
	FinalXor:   0x00,
}

var crc8Table = crc.NewTable(crc8Params)

// CRC8 computes the Sensirion checksum of one data word.
func CRC8(data []byte) uint8 {
	return uint8(crc8Table.CalculateCRC(data))
}

// checkWords verifies a 6-byte response: two words, each followed by its
// CRC.
func checkWords(buf *[6]byte) bool {
	return buf[2] == CRC8(buf[0:2]) && buf[5] == CRC8(buf[3:5])
}
