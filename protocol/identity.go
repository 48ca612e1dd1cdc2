package protocol

import "sensornet/core"

// Identity is the factory identity of a chip.
type Identity struct {
	DeviceID uint64
	PartID   uint32
}

// AppendMCUID appends the "pppppppp-dddddddddddddddd" form of the
// identity.
func (id Identity) AppendMCUID(dst []byte) []byte {
	dst = core.AppendHexUint(dst, uint64(id.PartID), 8)
	dst = append(dst, '-')
	return core.AppendHexUint(dst, id.DeviceID, 16)
}

// MCUID returns the identity as reported by the gateway.
func (id Identity) MCUID() string {
	return string(id.AppendMCUID(make([]byte, 0, 25)))
}

// Identity returns the sender identity carried in the record.
func (r *Record) Identity() Identity {
	return Identity{DeviceID: r.DeviceID, PartID: r.PartID}
}

// ConfigWord is the board configuration stored once in UICR:
// board type in bits 31..24, then major, minor and patch version bytes.
type ConfigWord uint32

// Erased is the value of an unprogrammed UICR word.
const Erased ConfigWord = 0xFFFFFFFF

// Known board types
const (
	BoardUnknown    uint8 = 0x00
	BoardSensorNode uint8 = 0x01
	BoardGateway    uint8 = 0x02
)

// NewConfigWord packs a board type and version.
func NewConfigWord(board, major, minor, patch uint8) ConfigWord {
	return ConfigWord(uint32(board)<<24 | uint32(major)<<16 | uint32(minor)<<8 | uint32(patch))
}

func (c ConfigWord) Board() uint8 {
	return uint8(c >> 24)
}

// Version returns major, minor and patch.
func (c ConfigWord) Version() (uint8, uint8, uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Programmed reports whether the word was ever written.
func (c ConfigWord) Programmed() bool {
	return c != Erased
}

// String formats the word as "board=N v1.2.3".
func (c ConfigWord) String() string {
	if !c.Programmed() {
		return "unprogrammed"
	}
	major, minor, patch := c.Version()
	return "board=" + core.Itoa(int(c.Board())) + " v" + core.Itoa(int(major)) +
		"." + core.Itoa(int(minor)) + "." + core.Itoa(int(patch))
}
