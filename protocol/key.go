package protocol

import (
	"encoding/hex"
	"errors"
	"strings"
)

// DefaultKeyHex is the development key used when no key is provisioned at
// build time.
const DefaultKeyHex = "A0B1C2D3E4F5061728394A5B6C7D8E9F"

// ErrKeyFormat is returned for a key that is not a 128-bit hex number.
var ErrKeyFormat = errors.New("protocol: key must be 1 to 32 hex digits")

// Key is the 128-bit shared network key as handed to AES.
type Key [16]byte

// Nonce is the per-packet value carried in clear after the type tag.
type Nonce [NonceSize]byte

// ParseKey reads s as a 128-bit hexadecimal number and stores it least
// significant byte first. Shorter strings are zero-extended.
func ParseKey(s string) (Key, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) == 0 || len(s) > 32 {
		return Key{}, ErrKeyFormat
	}

	var be [16]byte
	padded := strings.Repeat("0", 32-len(s)) + s
	if _, err := hex.Decode(be[:], []byte(padded)); err != nil {
		return Key{}, ErrKeyFormat
	}

	var k Key
	for i := range be {
		k[i] = be[15-i]
	}
	return k, nil
}

// MustParseKey is ParseKey for build-time constants; it panics on error.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic("protocol: invalid key: " + s)
	}
	return k
}

// DefaultKey returns DefaultKeyHex parsed.
func DefaultKey() Key {
	return MustParseKey(DefaultKeyHex)
}
