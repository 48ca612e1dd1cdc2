package core

const hexDigits = "0123456789abcdef"

// AppendUint appends v in decimal. Firmware builds avoid strconv and fmt.
func AppendUint(dst []byte, v uint64) []byte {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return append(dst, buf[i:]...)
}

// AppendInt appends n in decimal.
func AppendInt(dst []byte, n int64) []byte {
	u := uint64(n)
	if n < 0 {
		dst = append(dst, '-')
		u = uint64(-n)
	}
	return AppendUint(dst, u)
}

// Itoa formats n for firmware log lines.
func Itoa(n int) string {
	return string(AppendInt(make([]byte, 0, 12), int64(n)))
}

func utoa(n uint32) string {
	return string(AppendUint(make([]byte, 0, 10), uint64(n)))
}

// AppendHex appends src as lowercase hex.
func AppendHex(dst, src []byte) []byte {
	for _, b := range src {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	return dst
}

// AppendHexUint appends the low width nibbles of v as zero-padded
// lowercase hex, most significant first.
func AppendHexUint(dst []byte, v uint64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, hexDigits[(v>>(uint(i)*4))&0x0F])
	}
	return dst
}

// HexString returns src as lowercase hex.
func HexString(src []byte) string {
	return string(AppendHex(make([]byte, 0, len(src)*2), src))
}
