package fieldvalue

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/ssargent/replaykit/pkg/bitreader"
)

// ErrValueDecode is returned when the bits at a field slot cannot be
// decoded as the field's type. Reader errors are wrapped alongside it.
var ErrValueDecode = errors.New("fieldvalue: value decode error")

// MaxStringLength bounds string fields.
const MaxStringLength = 4096

// qanglePreciseBits is the per-component width of precise angles.
const qanglePreciseBits = 20

// Encoding enumerates the wire encodings a field value can use.
type Encoding uint8

const (
	EncInvalid Encoding = iota
	EncBool
	EncSigned32
	EncSigned64
	EncUnsigned32
	EncUnsigned64
	EncFixed64
	EncFloat
	EncQuantized
	EncCoord
	EncSimTime
	EncRuneTime
	EncNormal
	EncVector
	EncVectorNormal
	EncQAnglePitchYaw
	EncQAngleBits
	EncQAnglePrecise
	EncQAngleCoord
	EncString
	EncHandle
	EncEnum
	EncComponent
	EncAmmo
)

var encodingNames = [...]string{
	EncInvalid:        "invalid",
	EncBool:           "bool",
	EncSigned32:       "signed32",
	EncSigned64:       "signed64",
	EncUnsigned32:     "unsigned32",
	EncUnsigned64:     "unsigned64",
	EncFixed64:        "fixed64",
	EncFloat:          "float",
	EncQuantized:      "quantized",
	EncCoord:          "coord",
	EncSimTime:        "simtime",
	EncRuneTime:       "runetime",
	EncNormal:         "normal",
	EncVector:         "vector",
	EncVectorNormal:   "vector_normal",
	EncQAnglePitchYaw: "qangle_pitch_yaw",
	EncQAngleBits:     "qangle_bits",
	EncQAnglePrecise:  "qangle_precise",
	EncQAngleCoord:    "qangle_coord",
	EncString:         "string",
	EncHandle:         "handle",
	EncEnum:           "enum",
	EncComponent:      "component",
	EncAmmo:           "ammo",
}

func (e Encoding) String() string {
	if int(e) < len(encodingNames) {
		return encodingNames[e]
	}
	return "Encoding(" + strconv.Itoa(int(e)) + ")"
}

// Codec is a fully parameterized value decoder. Build codecs with Select;
// the zero Codec is invalid.
type Codec struct {
	Encoding Encoding
	// Dims is the component count of EncVector.
	Dims int
	// Elem is the per-component codec of EncVector.
	Elem *Codec
	// Bits is the angle width of EncQAnglePitchYaw and EncQAngleBits.
	Bits int
	// Quant parameterizes EncQuantized.
	Quant *Quantized
}

func (c *Codec) String() string {
	switch c.Encoding {
	case EncVector:
		return fmt.Sprintf("vector%d<%s>", c.Dims, c.Elem)
	case EncQuantized:
		return fmt.Sprintf("quantized(%d)", c.Quant.BitCount)
	case EncQAnglePitchYaw, EncQAngleBits:
		return fmt.Sprintf("%s(%d)", c.Encoding, c.Bits)
	}
	return c.Encoding.String()
}

// Kind returns the kind of Value the codec produces.
func (c *Codec) Kind() Kind {
	switch c.Encoding {
	case EncBool, EncComponent:
		return KindBool
	case EncSigned32:
		return KindInt32
	case EncSigned64:
		return KindInt64
	case EncUnsigned32, EncAmmo:
		return KindUint32
	case EncUnsigned64, EncFixed64:
		return KindUint64
	case EncFloat, EncQuantized, EncCoord, EncSimTime, EncRuneTime, EncNormal:
		return KindFloat32
	case EncVector:
		switch c.Dims {
		case 2:
			return KindVector2
		case 3:
			return KindVector3
		case 4:
			return KindVector4
		}
	case EncVectorNormal:
		return KindVector3
	case EncQAnglePitchYaw, EncQAngleBits, EncQAnglePrecise, EncQAngleCoord:
		return KindQAngle
	case EncString:
		return KindString
	case EncHandle:
		return KindHandle
	case EncEnum:
		return KindEnum
	}
	return KindInvalid
}

// Decode reads one value.
func (c *Codec) Decode(r *bitreader.Reader) (Value, error) {
	v, err := c.decode(r)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %s: %w", ErrValueDecode, c, err)
	}
	return v, nil
}

func (c *Codec) decode(r *bitreader.Reader) (Value, error) {
	switch c.Encoding {
	case EncBool, EncComponent:
		b, err := r.ReadBool()
		return Bool(b), err
	case EncSigned32:
		v, err := r.ReadVarint32()
		return Int32(v), err
	case EncSigned64:
		v, err := r.ReadVarint64()
		return Int64(v), err
	case EncUnsigned32:
		v, err := r.ReadUVarint32()
		return Uint32(v), err
	case EncUnsigned64:
		v, err := r.ReadUVarint64()
		return Uint64(v), err
	case EncFixed64:
		v, err := r.ReadBits(64)
		return Uint64(v), err
	case EncHandle:
		v, err := r.ReadUVarint32()
		return Handle(v), err
	case EncEnum:
		v, err := r.ReadUVarint64()
		return Enum(v), err
	case EncAmmo:
		v, err := r.ReadUVarint32()
		if v > 0 {
			v--
		}
		return Uint32(v), err
	case EncString:
		s, ok, err := r.ReadString(MaxStringLength)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Value{}, fmt.Errorf("string longer than %d bytes", MaxStringLength)
		}
		return String(s), nil
	case EncFloat, EncQuantized, EncCoord, EncSimTime, EncRuneTime, EncNormal:
		f, err := c.decodeFloat(r)
		return Float32(f), err
	case EncVector:
		var out [4]float32
		for i := 0; i < c.Dims; i++ {
			f, err := c.Elem.decodeFloat(r)
			if err != nil {
				return Value{}, err
			}
			out[i] = f
		}
		return Value{kind: c.Kind(), vec: out}, nil
	case EncVectorNormal:
		n, err := r.Read3BitNormal()
		return Vector3(n[0], n[1], n[2]), err
	case EncQAnglePitchYaw:
		p, err := r.ReadAngle(c.Bits)
		if err != nil {
			return Value{}, err
		}
		y, err := r.ReadAngle(c.Bits)
		return QAngle(p, y, 0), err
	case EncQAngleBits:
		var a [3]float32
		for i := range a {
			f, err := r.ReadAngle(c.Bits)
			if err != nil {
				return Value{}, err
			}
			a[i] = f
		}
		return QAngle(a[0], a[1], a[2]), nil
	case EncQAnglePrecise, EncQAngleCoord:
		return c.decodeFlaggedAngle(r)
	}
	return Value{}, fmt.Errorf("unsupported encoding %s", c.Encoding)
}

func (c *Codec) decodeFloat(r *bitreader.Reader) (float32, error) {
	switch c.Encoding {
	case EncFloat:
		return r.ReadFloat32()
	case EncQuantized:
		return c.Quant.Decode(r)
	case EncCoord:
		return r.ReadCoord()
	case EncSimTime:
		v, err := r.ReadUVarint32()
		return float32(v) * (1.0 / 30), err
	case EncRuneTime:
		v, err := r.ReadBits(4)
		return math.Float32frombits(uint32(v)), err
	case EncNormal:
		return r.ReadNormal()
	}
	return 0, fmt.Errorf("encoding %s is not a float", c.Encoding)
}

func (c *Codec) decodeFlaggedAngle(r *bitreader.Reader) (Value, error) {
	var has [3]bool
	for i := range has {
		b, err := r.ReadBool()
		if err != nil {
			return Value{}, err
		}
		has[i] = b
	}
	var a [3]float32
	for i := range a {
		if !has[i] {
			continue
		}
		var err error
		if c.Encoding == EncQAngleCoord {
			a[i], err = r.ReadCoord()
		} else {
			a[i], err = r.ReadAngle(qanglePreciseBits)
			a[i] -= 180
		}
		if err != nil {
			return Value{}, err
		}
	}
	return QAngle(a[0], a[1], a[2]), nil
}
