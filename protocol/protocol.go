// Package protocol implements the sensornet radio packet format: typed
// telemetry records, the little-endian wire layout and the AES-CCM sealed
// variant of it.
package protocol

// Version represents the sensornet wire format version
const Version = "1.0.0"

// Packet type tags. The tag travels in clear as the first two payload
// bytes; FlagEncrypted marks a sealed packet.
const (
	TypeMotion     uint16 = 0x0003 // header + acceleration + magnetic field
	TypeClimate    uint16 = 0x0005 // header + temperature + humidity
	TypeClimateExt uint16 = 0x0006 // climate + battery + sensor serial

	FlagEncrypted uint16 = 0x8000
	TypeMask      uint16 = 0x7FFF
)

// Protocol constants
const (
	MaxPayload = 254 // radio payload bytes after the length byte

	TypeSize   = 2
	NonceSize  = 8
	TagSize    = 4
	HeaderSize = 18 // device_id, part_id, seq, sensor_id

	// SealedOverhead is what sealing adds to a plaintext body.
	SealedOverhead = TypeSize + NonceSize + TagSize

	// MaxCiphertext bounds the ciphertext‖tag bytes taken from a packet.
	MaxCiphertext = 254

	// MaxSealedBody is the largest record body that still fits one packet
	// once sealed.
	MaxSealedBody = MaxPayload - SealedOverhead

	// scratchHeader is the reserved/length/reserved prefix kept in front of
	// the plaintext and ciphertext scratch buffers.
	scratchHeader = 3
	scratchSize   = scratchHeader + MaxCiphertext
)

// TypeName returns a short label for a type tag, flag ignored.
func TypeName(typ uint16) string {
	switch typ & TypeMask {
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
