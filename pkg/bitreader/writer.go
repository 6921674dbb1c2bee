package bitreader

import "math"

// Writer appends bits least-significant first, mirroring Reader.
type Writer struct {
	buf []byte
	pos int // bit offset
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the written buffer. The final byte is zero padded.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// BitLen returns the number of bits written.
func (w *Writer) BitLen() int {
	return w.pos
}

// WriteBits appends the low n bits of v.
func (w *Writer) WriteBits(v uint64, n int) {
	for n > 0 {
		if w.pos&7 == 0 {
			w.buf = append(w.buf, 0)
		}
		off := w.pos & 7
		take := 8 - off
		if take > n {
			take = n
		}
		chunk := byte(v & (1<<uint(take) - 1))
		w.buf[len(w.buf)-1] |= chunk << uint(off)
		v >>= uint(take)
		n -= take
		w.pos += take
	}
}

// WriteBool appends a single bit.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

// WriteUVarint32 appends a LEB128 unsigned integer.
func (w *Writer) WriteUVarint32(v uint32) {
	w.WriteUVarint64(uint64(v))
}

// WriteUVarint64 appends a LEB128 unsigned integer.
func (w *Writer) WriteUVarint64(v uint64) {
	for v >= 0x80 {
		w.WriteBits(v&0x7f|0x80, 8)
		v >>= 7
	}
	w.WriteBits(v, 8)
}

// WriteVarint32 appends a zig-zag encoded signed integer.
func (w *Writer) WriteVarint32(v int32) {
	w.WriteUVarint32(uint32(v<<1) ^ uint32(v>>31))
}

// WriteVarint64 appends a zig-zag encoded signed integer.
func (w *Writer) WriteVarint64(v int64) {
	w.WriteUVarint64(uint64(v<<1) ^ uint64(v>>63))
}

// WriteUBitVar appends v in the bit-count-prefixed form read by ReadUBitVar.
func (w *Writer) WriteUBitVar(v uint32) {
	switch {
	case v < 0x10:
		w.WriteBits(uint64(v), 6)
	case v < 0x100:
		w.WriteBits(uint64(v&0x0f)|0x10, 6)
		w.WriteBits(uint64(v>>4), 4)
	case v < 0x1000:
		w.WriteBits(uint64(v&0x0f)|0x20, 6)
		w.WriteBits(uint64(v>>4), 8)
	default:
		w.WriteBits(uint64(v&0x0f)|0x30, 6)
		w.WriteBits(uint64(v>>4), 28)
	}
}

// WriteUBitVarFieldPath appends v in the form read by ReadUBitVarFieldPath.
func (w *Writer) WriteUBitVarFieldPath(v uint32) {
	for _, width := range fieldPathLadder[:len(fieldPathLadder)-1] {
		if uint64(v) < 1<<uint(width) {
			w.WriteBool(true)
			w.WriteBits(uint64(v), width)
			return
		}
		w.WriteBool(false)
	}
	w.WriteBits(uint64(v), 31)
}

// WriteFloat32 appends the raw IEEE 754 bits of f.
func (w *Writer) WriteFloat32(f float32) {
	w.WriteBits(uint64(math.Float32bits(f)), 32)
}

// WriteString appends s followed by a NUL terminator.
func (w *Writer) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		w.WriteBits(uint64(s[i]), 8)
	}
	w.WriteBits(0, 8)
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	for _, c := range b {
		w.WriteBits(uint64(c), 8)
	}
}

// WriteCoord appends f in the form read by ReadCoord, rounded to the
// nearest 1/32.
func (w *Writer) WriteCoord(f float32) {
	neg := f < 0
	abs := math.Abs(float64(f))
	intval := uint64(abs)
	fracval := uint64(math.Round((abs - float64(intval)) * coordDenominator))
	if fracval == coordDenominator {
		intval++
		fracval = 0
	}
	w.WriteBool(intval != 0)
	w.WriteBool(fracval != 0)
	if intval == 0 && fracval == 0 {
		return
	}
	w.WriteBool(neg)
	if intval != 0 {
		w.WriteBits(intval-1, coordIntegerBits)
	}
	if fracval != 0 {
		w.WriteBits(fracval, coordFractionalBits)
	}
}

// WriteAngle appends an angle in degrees as n bits.
func (w *Writer) WriteAngle(deg float32, n int) {
	steps := float64(uint64(1) << uint(n))
	a := math.Mod(float64(deg), 360)
	if a < 0 {
		a += 360
	}
	v := uint64(math.Round(a*steps/360.0)) % uint64(steps)
	w.WriteBits(v, n)
}

// WriteNormal appends f in [-1, 1] as a sign bit and 11 bit magnitude.
func (w *Writer) WriteNormal(f float32) {
	w.WriteBool(f < 0)
	w.WriteBits(uint64(math.Round(math.Abs(float64(f))*normalDenominator)), normalFractionalBits)
}

// Write3BitNormal appends a unit vector; x and y are omitted when zero.
func (w *Writer) Write3BitNormal(v [3]float32) {
	w.WriteBool(v[0] != 0)
	w.WriteBool(v[1] != 0)
	if v[0] != 0 {
		w.WriteNormal(v[0])
	}
	if v[1] != 0 {
		w.WriteNormal(v[1])
	}
	w.WriteBool(v[2] < 0)
}
