package protocol

import (
	"crypto/aes"
	"encoding/binary"
	"errors"

	"github.com/pion/dtls/v2/pkg/crypto/ccm"
)

// Decode errors. Every one of them means the packet is dropped.
var (
	ErrShortPacket       = errors.New("protocol: packet too short")
	ErrUnknownType       = errors.New("protocol: unknown packet type")
	ErrLength            = errors.New("protocol: body length does not match type")
	ErrAuthentication    = errors.New("protocol: authentication failed")
	ErrPlaintextRejected = errors.New("protocol: plaintext packet rejected")
	ErrTooLarge          = errors.New("protocol: packet too large")
)

// ccmNonceSize is the full CCM nonce: a 5-byte packet counter with the
// direction bit, always zero here, followed by the 8 wire nonce bytes.
const ccmNonceSize = 5 + NonceSize

// DecodeOptions selects what Decode accepts.
type DecodeOptions struct {
	// AllowPlaintext accepts packets without FlagEncrypted.
	AllowPlaintext bool
}

// Packet is the result of a successful Decode.
type Packet struct {
	Record
	Encrypted bool
	Nonce     Nonce

	// Data is the type tag, flag cleared, followed by the plaintext body.
	// It aliases codec scratch and is valid until the next call.
	Data []byte
}

// Codec seals and opens packets under one key. It owns fixed scratch
// buffers and is not safe for concurrent use.
type Codec struct {
	aead ccm.CCM
	w    Writer

	// plain and sealed carry the reserved/length/reserved header in front
	// of the data.
	plain  [scratchSize]byte
	sealed [scratchSize]byte
	data   [MaxPayload]byte
}

// NewCodec creates a Codec for key.
func NewCodec(key Key) (*Codec, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := ccm.NewCCM(block, TagSize, ccmNonceSize)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

func ccmNonce(n Nonce) [ccmNonceSize]byte {
	var iv [ccmNonceSize]byte
	copy(iv[ccmNonceSize-NonceSize:], n[:])
	return iv
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// EncodePlain appends the unsealed packet, type tag then body, to dst.
func (c *Codec) EncodePlain(dst []byte, rec *Record) ([]byte, error) {
	c.w.Reset()
	c.w.PutU16(rec.Type & TypeMask)
	if err := rec.Encode(&c.w); err != nil {
		return dst, err
	}
	return append(dst, c.w.Result()...), nil
}

// Seal appends the sealed packet to dst: type tag with FlagEncrypted,
// nonce, then ciphertext and tag. The type tag is authenticated as
// associated data.
func (c *Codec) Seal(dst []byte, rec *Record, nonce Nonce) ([]byte, error) {
	c.w.Reset()
	if err := rec.Encode(&c.w); err != nil {
		return dst, err
	}
	body := c.w.Result()
	if len(body) > MaxSealedBody {
		return dst, ErrTooLarge
	}

	c.plain[0], c.plain[1], c.plain[2] = 0, byte(len(body)), 0
	n := copy(c.plain[scratchHeader:], body)

	var tag [TypeSize]byte
	binary.LittleEndian.PutUint16(tag[:], rec.Type&TypeMask|FlagEncrypted)
	iv := ccmNonce(nonce)

	out := c.aead.Seal(c.sealed[scratchHeader:scratchHeader], iv[:],
		c.plain[scratchHeader:scratchHeader+n], tag[:])
	c.sealed[0], c.sealed[1], c.sealed[2] = 0, byte(len(out)), 0

	dst = append(dst, tag[:]...)
	dst = append(dst, nonce[:]...)
	dst = append(dst, out...)

	wipe(c.plain[:])
	c.w.Reset()
	return dst, nil
}

// Open decodes a sealed packet; plaintext packets are rejected.
func (c *Codec) Open(payload []byte) (Record, error) {
	p, err := c.Decode(payload, DecodeOptions{})
	if err != nil {
		return Record{}, err
	}
	return p.Record, nil
}

// Decode interprets a radio payload. A sealed packet is authenticated
// before any field is looked at; on failure nothing of the decrypted data
// is kept.
func (c *Codec) Decode(payload []byte, opts DecodeOptions) (Packet, error) {
	if len(payload) < TypeSize {
		return Packet{}, ErrShortPacket
	}
	typ := binary.LittleEndian.Uint16(payload)

	if typ&FlagEncrypted == 0 {
		if len(payload) > MaxPayload {
			return Packet{}, ErrTooLarge
		}
		if !opts.AllowPlaintext {
			return Packet{}, ErrPlaintextRejected
		}
		rec, err := DecodeRecord(typ, payload[TypeSize:])
		if err != nil {
			return Packet{}, err
		}
		n := copy(c.data[:], payload)
		return Packet{Record: rec, Data: c.data[:n]}, nil
	}

	if len(payload) < SealedOverhead {
		return Packet{}, ErrShortPacket
	}

	var nonce Nonce
	copy(nonce[:], payload[TypeSize:TypeSize+NonceSize])
	// bytes past MaxCiphertext are ignored; authentication then fails
	ct := payload[TypeSize+NonceSize:]
	if len(ct) > MaxCiphertext {
		ct = ct[:MaxCiphertext]
	}
	c.sealed[0], c.sealed[1], c.sealed[2] = 0, byte(len(ct)), 0
	copy(c.sealed[scratchHeader:], ct)

	iv := ccmNonce(nonce)
	pt, err := c.aead.Open(c.plain[scratchHeader:scratchHeader], iv[:],
		c.sealed[scratchHeader:scratchHeader+len(ct)], payload[:TypeSize])
	if err != nil {
		wipe(c.plain[:])
		return Packet{}, ErrAuthentication
	}
	c.plain[1] = byte(len(pt))

	base := typ & TypeMask
	rec, err := DecodeRecord(base, pt)
	if err != nil {
		wipe(c.plain[:])
		return Packet{}, err
	}

	binary.LittleEndian.PutUint16(c.data[:], base)
	n := TypeSize + copy(c.data[TypeSize:], pt)
	wipe(c.plain[:])

	return Packet{Record: rec, Encrypted: true, Nonce: nonce, Data: c.data[:n]}, nil
}
