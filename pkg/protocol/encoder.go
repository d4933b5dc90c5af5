package protocol

import (
	"math"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

// Encoder builds a frame payload by appending to an internal buffer.
// Writes cannot fail, so none of the Write methods return an error; the
// first error surfaces when the decoder walks the bytes back. Reset lets
// a publisher reuse one encoder across transactions.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder sized for a typical transaction.
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 256),
	}
}

// NewEncoderWithCap returns an encoder with the given initial capacity.
// Snapshot encoders pass the previous snapshot's size here.
func NewEncoderWithCap(cap int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, cap),
	}
}

// Reset empties the encoder, keeping the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded payload. The slice aliases the encoder's
// buffer and is valid until the next Reset or Write.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteByte appends one byte.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteBytes appends raw bytes with no length prefix.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteUvarint appends an unsigned varint. Revisions and collection
// counts travel this way.
func (e *Encoder) WriteUvarint(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

// WriteSvarint appends a ZigZag-encoded signed varint.
func (e *Encoder) WriteSvarint(v int64) {
	uv := uint64((v << 1) ^ (v >> 63))
	e.WriteUvarint(uv)
}

// WriteTag appends a view tag as a signed varint. Tags are small in
// practice, so the varint form wins over a fixed width, and the signed
// convention is shared with indexes.
func (e *Encoder) WriteTag(t shadow.Tag) {
	e.WriteSvarint(int64(t))
}

// WritePlacement appends a parent tag and child index, the addressing
// prefix shared by Insert, Remove, and Update. Index -1 marks a view
// with no parent-relative position.
func (e *Encoder) WritePlacement(parent shadow.Tag, index int) {
	e.WriteSvarint(int64(parent))
	e.WriteSvarint(int64(index))
}

// WriteString appends a varint length followed by the string's bytes.
func (e *Encoder) WriteString(s string) {
	e.WriteUvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteLenBytes appends a varint length followed by the bytes.
func (e *Encoder) WriteLenBytes(b []byte) {
	e.WriteUvarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteBool appends 0x01 for true, 0x00 for false.
func (e *Encoder) WriteBool(b bool) {
	v := byte(0x00)
	if b {
		v = 0x01
	}
	e.buf = append(e.buf, v)
}

// WriteUint16 appends a big-endian uint16.
func (e *Encoder) WriteUint16(v uint16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

// WriteUint32 appends a big-endian uint32.
func (e *Encoder) WriteUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteUint64 appends a big-endian uint64.
func (e *Encoder) WriteUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteFloat64 appends an IEEE 754 float64, big-endian. Layout frames
// travel as float64; there is no float32 on this wire.
func (e *Encoder) WriteFloat64(v float64) {
	e.WriteUint64(math.Float64bits(v))
}
