package bitreader

import (
	"errors"
	"math"
)

// ErrBufferExhausted is returned when a read would run past the end of the buffer.
var ErrBufferExhausted = errors.New("bitreader: buffer exhausted")

const (
	maxVarint32Bytes = 5
	maxVarint64Bytes = 10

	coordIntegerBits    = 14
	coordFractionalBits = 5
	coordDenominator    = 1 << coordFractionalBits
	coordResolution     = 1.0 / coordDenominator

	normalFractionalBits = 11
	normalDenominator    = (1 << normalFractionalBits) - 1
	normalResolution     = 1.0 / normalDenominator
)

// Reader is a bounds-checked bit cursor over a borrowed byte slice.
type Reader struct {
	buf  []byte
	pos  int // bit offset
	size int // total bits
}

// New creates a reader positioned at the first bit of buf.
func New(buf []byte) *Reader {
	return &Reader{buf: buf, size: len(buf) * 8}
}

// Reset points the reader at a new buffer.
func (r *Reader) Reset(buf []byte) {
	r.buf = buf
	r.pos = 0
	r.size = len(buf) * 8
}

// Position returns the current bit offset.
func (r *Reader) Position() int {
	return r.pos
}

// RemainingBits returns the number of unread bits.
func (r *Reader) RemainingBits() int {
	return r.size - r.pos
}

// peek returns the next n (<= 57) bits without moving the cursor. The caller
// has already checked that n bits are available.
func (r *Reader) peek(n int) uint64 {
	byteOff := r.pos >> 3
	shift := uint(r.pos & 7)

	var word uint64
	end := byteOff + 8
	if end <= len(r.buf) {
		b := r.buf[byteOff:end]
		word = uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
			uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
	} else {
		for i, b := range r.buf[byteOff:] {
			word |= uint64(b) << (8 * uint(i))
		}
	}
	return (word >> shift) & (1<<uint(n) - 1)
}

// ReadBits reads n bits (0 <= n <= 64) as an unsigned integer.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, errors.New("bitreader: bit count out of range")
	}
	if n > r.size-r.pos {
		return 0, ErrBufferExhausted
	}
	if n == 0 {
		return 0, nil
	}
	if n <= 56 {
		v := r.peek(n)
		r.pos += n
		return v, nil
	}
	lo := r.peek(32)
	r.pos += 32
	hi := r.peek(n - 32)
	r.pos += n - 32
	return lo | hi<<32, nil
}

// PeekBits returns the next n (<= 56) bits without consuming them.
func (r *Reader) PeekBits(n int) (uint64, error) {
	if n < 0 || n > 56 {
		return 0, errors.New("bitreader: peek width out of range")
	}
	if n > r.size-r.pos {
		return 0, ErrBufferExhausted
	}
	if n == 0 {
		return 0, nil
	}
	return r.peek(n), nil
}

// SkipBits advances the cursor by n bits.
func (r *Reader) SkipBits(n int) error {
	if n < 0 || n > r.size-r.pos {
		return ErrBufferExhausted
	}
	r.pos += n
	return nil
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (uint8, error) {
	if r.pos >= r.size {
		return 0, ErrBufferExhausted
	}
	v := (r.buf[r.pos>>3] >> uint(r.pos&7)) & 1
	r.pos++
	return v, nil
}

// ReadBool reads a single bit as a boolean.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadBit()
	return b == 1, err
}

// ReadUint32 reads n (<= 32) bits.
func (r *Reader) ReadUint32(n int) (uint32, error) {
	v, err := r.ReadBits(n)
	return uint32(v), err
}

// ReadBytes reads n whole bytes, regardless of alignment, into a new slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n*8 > r.size-r.pos {
		return nil, ErrBufferExhausted
	}
	out := make([]byte, n)
	if r.pos&7 == 0 {
		copy(out, r.buf[r.pos>>3:])
		r.pos += n * 8
		return out, nil
	}
	for i := range out {
		out[i] = byte(r.peek(8))
		r.pos += 8
	}
	return out, nil
}

// AlignByte advances the cursor to the next byte boundary.
func (r *Reader) AlignByte() {
	if rem := r.pos & 7; rem != 0 {
		r.pos += 8 - rem
		if r.pos > r.size {
			r.pos = r.size
		}
	}
}

// ReadUVarint32 reads a LEB128 encoded unsigned 32 bit integer. Bytes beyond
// the fifth are not consumed.
func (r *Reader) ReadUVarint32() (uint32, error) {
	start := r.pos
	var result uint32
	for i := 0; i < maxVarint32Bytes; i++ {
		b, err := r.ReadBits(8)
		if err != nil {
			r.pos = start
			return 0, err
		}
		result |= uint32(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			break
		}
	}
	return result, nil
}

// ReadUVarint64 reads a LEB128 encoded unsigned 64 bit integer.
func (r *Reader) ReadUVarint64() (uint64, error) {
	start := r.pos
	var result uint64
	for i := 0; i < maxVarint64Bytes; i++ {
		b, err := r.ReadBits(8)
		if err != nil {
			r.pos = start
			return 0, err
		}
		result |= (b & 0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			break
		}
	}
	return result, nil
}

// ReadVarint32 reads a zig-zag encoded signed 32 bit integer.
func (r *Reader) ReadVarint32() (int32, error) {
	ux, err := r.ReadUVarint32()
	if err != nil {
		return 0, err
	}
	x := int32(ux >> 1)
	if ux&1 != 0 {
		x = ^x
	}
	return x, nil
}

// ReadVarint64 reads a zig-zag encoded signed 64 bit integer.
func (r *Reader) ReadVarint64() (int64, error) {
	ux, err := r.ReadUVarint64()
	if err != nil {
		return 0, err
	}
	x := int64(ux >> 1)
	if ux&1 != 0 {
		x = ^x
	}
	return x, nil
}

// ReadUBitVar reads the bit-count-prefixed integer used for entity index
// deltas: six bits, whose top two select 0, 4, 8 or 28 additional high bits.
func (r *Reader) ReadUBitVar() (uint32, error) {
	start := r.pos
	v, err := r.ReadBits(6)
	if err != nil {
		return 0, err
	}
	ret := uint32(v)
	var extra int
	switch ret & 0x30 {
	case 0x10:
		extra = 4
	case 0x20:
		extra = 8
	case 0x30:
		extra = 28
	default:
		return ret, nil
	}
	hi, err := r.ReadBits(extra)
	if err != nil {
		r.pos = start
		return 0, err
	}
	return (ret & 0x0f) | uint32(hi)<<4, nil
}

// ReadUBitVarFieldPath reads the length-laddered integer used by field path
// operands: 2, 4, 10, 17 or 31 bits, each step preceded by a one bit.
func (r *Reader) ReadUBitVarFieldPath() (uint32, error) {
	start := r.pos
	for _, width := range fieldPathLadder {
		if width == 31 {
			break
		}
		set, err := r.ReadBool()
		if err != nil {
			r.pos = start
			return 0, err
		}
		if set {
			v, err := r.ReadBits(width)
			if err != nil {
				r.pos = start
				return 0, err
			}
			return uint32(v), nil
		}
	}
	v, err := r.ReadBits(31)
	if err != nil {
		r.pos = start
		return 0, err
	}
	return uint32(v), nil
}

var fieldPathLadder = [...]int{2, 4, 10, 17, 31}

// ReadFloat32 reads 32 raw bits as an IEEE 754 float.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadBits(32)
	return math.Float32frombits(uint32(v)), err
}

// ReadCoord reads a world coordinate: integer and fraction presence bits,
// a sign bit, a 14 bit integer part and a 5 bit fraction.
func (r *Reader) ReadCoord() (float32, error) {
	start := r.pos
	v, err := r.readCoord()
	if err != nil {
		r.pos = start
	}
	return v, err
}

func (r *Reader) readCoord() (float32, error) {
	hasInt, err := r.ReadBool()
	if err != nil {
		return 0, err
	}
	hasFrac, err := r.ReadBool()
	if err != nil {
		return 0, err
	}
	if !hasInt && !hasFrac {
		return 0, nil
	}
	neg, err := r.ReadBool()
	if err != nil {
		return 0, err
	}
	var intval, fracval uint64
	if hasInt {
		if intval, err = r.ReadBits(coordIntegerBits); err != nil {
			return 0, err
		}
		intval++
	}
	if hasFrac {
		if fracval, err = r.ReadBits(coordFractionalBits); err != nil {
			return 0, err
		}
	}
	value := float32(intval) + float32(fracval)*coordResolution
	if neg {
		value = -value
	}
	return value, nil
}

// ReadAngle reads an n bit angle scaled into [0, 360).
func (r *Reader) ReadAngle(n int) (float32, error) {
	v, err := r.ReadBits(n)
	if err != nil {
		return 0, err
	}
	return float32(v) * 360.0 / float32(uint64(1)<<uint(n)), nil
}

// ReadNormal reads a sign bit and an 11 bit magnitude in [0, 1].
func (r *Reader) ReadNormal() (float32, error) {
	start := r.pos
	neg, err := r.ReadBool()
	if err != nil {
		return 0, err
	}
	v, err := r.ReadBits(normalFractionalBits)
	if err != nil {
		r.pos = start
		return 0, err
	}
	ret := float32(v) * normalResolution
	if neg {
		ret = -ret
	}
	return ret, nil
}

// Read3BitNormal reads a unit vector from optional x and y components and a
// sign for the derived z component.
func (r *Reader) Read3BitNormal() ([3]float32, error) {
	start := r.pos
	v, err := r.read3BitNormal()
	if err != nil {
		r.pos = start
	}
	return v, err
}

func (r *Reader) read3BitNormal() ([3]float32, error) {
	var ret [3]float32
	hasX, err := r.ReadBool()
	if err != nil {
		return ret, err
	}
	hasY, err := r.ReadBool()
	if err != nil {
		return ret, err
	}
	if hasX {
		if ret[0], err = r.ReadNormal(); err != nil {
			return ret, err
		}
	}
	if hasY {
		if ret[1], err = r.ReadNormal(); err != nil {
			return ret, err
		}
	}
	negZ, err := r.ReadBool()
	if err != nil {
		return ret, err
	}
	if sum := ret[0]*ret[0] + ret[1]*ret[1]; sum < 1.0 {
		ret[2] = float32(math.Sqrt(float64(1.0 - sum)))
	}
	if negZ {
		ret[2] = -ret[2]
	}
	return ret, nil
}

// ReadString reads a NUL terminated string of at most max bytes. If no
// terminator is found within max bytes, ok is false and the cursor is left
// after the bytes read.
func (r *Reader) ReadString(max int) (s string, ok bool, err error) {
	start := r.pos
	buf := make([]byte, 0, 16)
	for len(buf) < max {
		b, err := r.ReadBits(8)
		if err != nil {
			r.pos = start
			return "", false, err
		}
		if b == 0 {
			return string(buf), true, nil
		}
		buf = append(buf, byte(b))
	}
	return string(buf), false, nil
}
