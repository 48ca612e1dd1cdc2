package radio

import "github.com/snksoft/crc"

// crc24Params describe the PHY CRC: 24 bits, MSB first, zero init.
var crc24Params = &crc.Parameters{
	Width:      24,
	Polynomial: CRCPoly,
	Init:       CRCInit,
	ReflectIn:  false,
	ReflectOut: false,
	FinalXor:   0,
}

var crc24Table = crc.NewTable(crc24Params)

// CRC24 computes the on-air CRC over address and PDU bytes.
func CRC24(data []byte) uint32 {
	return uint32(crc24Table.CalculateCRC(data))
}

// AppendCRC24 appends the CRC of data big-endian, as it goes on air.
func AppendCRC24(data []byte) []byte {
	c := CRC24(data)
	return append(data, byte(c>>16), byte(c>>8), byte(c))
}

// CheckCRC24 reports whether frame ends with a valid CRC of the bytes
// before it.
func CheckCRC24(frame []byte) bool {
	if len(frame) < CRCLength {
		return false
	}
	n := len(frame) - CRCLength
	c := CRC24(frame[:n])
	return frame[n] == byte(c>>16) && frame[n+1] == byte(c>>8) && frame[n+2] == byte(c)
}
