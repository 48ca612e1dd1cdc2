package protocol

import (
	"encoding/binary"
	"math"
)

// Writer builds a little-endian packet in a fixed scratch buffer. Writes
// past the end are dropped and latch Overflow.
type Writer struct {
	buf      [MaxPayload]byte
	pos      int
	overflow bool
}

// NewWriter creates an empty Writer
func NewWriter() *Writer {
	return &Writer{}
}

// Output appends raw bytes
func (w *Writer) Output(data []byte) {
	n := copy(w.buf[w.pos:], data)
	w.pos += n
	if n < len(data) {
		w.overflow = true
	}
}

func (w *Writer) PutU8(v uint8) {
	if w.pos >= len(w.buf) {
		w.overflow = true
		return
	}
	w.buf[w.pos] = v
	w.pos++
}

func (w *Writer) PutU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Output(b[:])
}

func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Output(b[:])
}

func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Output(b[:])
}

func (w *Writer) PutI16(v int16) {
	w.PutU16(uint16(v))
}

func (w *Writer) PutF32(v float32) {
	w.PutU32(math.Float32bits(v))
}

// CurPosition returns the current write position
func (w *Writer) CurPosition() int {
	return w.pos
}

// Update modifies a byte at a specific position
func (w *Writer) Update(pos int, val byte) {
	if pos < w.pos {
		w.buf[pos] = val
	}
}

// DataSince returns data from a specific position to current
func (w *Writer) DataSince(pos int) []byte {
	if pos > w.pos {
		return nil
	}
	return w.buf[pos:w.pos]
}

// Result returns the accumulated output data
func (w *Writer) Result() []byte {
	return w.buf[:w.pos]
}

// Overflow reports whether any write was dropped since the last Reset.
func (w *Writer) Overflow() bool {
	return w.overflow
}

// Reset clears the buffer
func (w *Writer) Reset() {
	w.pos = 0
	w.overflow = false
}

// Reader is a little-endian cursor over a received packet. Reads past the
// end return zero and latch ErrShortPacket in Err.
type Reader struct {
	data []byte
	err  error
}

// NewReader creates a Reader over data
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Data returns the unread bytes
func (r *Reader) Data() []byte {
	return r.data
}

// Available returns the number of unread bytes
func (r *Reader) Available() int {
	return len(r.data)
}

// Pop removes n bytes from the front of the buffer
func (r *Reader) Pop(n int) {
	if n > len(r.data) {
		n = len(r.data)
		r.err = ErrShortPacket
	}
	r.data = r.data[n:]
}

// Err returns ErrShortPacket if any read ran past the end.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) take(n int) []byte {
	if len(r.data) < n {
		r.data = r.data[len(r.data):]
		r.err = ErrShortPacket
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) I16() int16 {
	return int16(r.U16())
}

func (r *Reader) F32() float32 {
	return math.Float32frombits(r.U32())
}

// Bytes reads n raw bytes
func (r *Reader) Bytes(n int) []byte {
	return r.take(n)
}
