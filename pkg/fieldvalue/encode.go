package fieldvalue

import (
	"fmt"
	"math"

	"github.com/ssargent/replaykit/pkg/bitreader"
)

// Encode writes v in the codec's wire form. Lossy encodings write the
// nearest representable value. It is used to produce streams for fixtures
// and recorded message logs.
func (c *Codec) Encode(w *bitreader.Writer, v Value) error {
	if want := c.Kind(); v.kind != want {
		return fmt.Errorf("%w: %s codec cannot encode %s", ErrValueDecode, c, v.kind)
	}
	switch c.Encoding {
	case EncBool, EncComponent:
		w.WriteBool(v.AsBool())
	case EncSigned32:
		w.WriteVarint32(int32(v.AsInt()))
	case EncSigned64:
		w.WriteVarint64(v.AsInt())
	case EncUnsigned32, EncHandle:
		w.WriteUVarint32(uint32(v.bits))
	case EncUnsigned64, EncEnum:
		w.WriteUVarint64(v.bits)
	case EncFixed64:
		w.WriteBits(v.bits, 64)
	case EncAmmo:
		w.WriteUVarint32(uint32(v.bits) + 1)
	case EncString:
		w.WriteString(v.str)
	case EncFloat, EncQuantized, EncCoord, EncSimTime, EncRuneTime, EncNormal:
		c.encodeFloat(w, v.vec[0])
	case EncVector:
		for i := 0; i < c.Dims; i++ {
			c.Elem.encodeFloat(w, v.vec[i])
		}
	case EncVectorNormal:
		w.Write3BitNormal([3]float32{v.vec[0], v.vec[1], v.vec[2]})
	case EncQAnglePitchYaw:
		w.WriteAngle(v.vec[0], c.Bits)
		w.WriteAngle(v.vec[1], c.Bits)
	case EncQAngleBits:
		for i := 0; i < 3; i++ {
			w.WriteAngle(v.vec[i], c.Bits)
		}
	case EncQAnglePrecise, EncQAngleCoord:
		for i := 0; i < 3; i++ {
			w.WriteBool(v.vec[i] != 0)
		}
		for i := 0; i < 3; i++ {
			if v.vec[i] == 0 {
				continue
			}
			if c.Encoding == EncQAngleCoord {
				w.WriteCoord(v.vec[i])
			} else {
				w.WriteAngle(v.vec[i]+180, qanglePreciseBits)
			}
		}
	default:
		return fmt.Errorf("%w: unsupported encoding %s", ErrValueDecode, c.Encoding)
	}
	return nil
}

func (c *Codec) encodeFloat(w *bitreader.Writer, f float32) {
	switch c.Encoding {
	case EncFloat:
		w.WriteFloat32(f)
	case EncQuantized:
		c.Quant.Encode(w, f)
	case EncCoord:
		w.WriteCoord(f)
	case EncSimTime:
		w.WriteUVarint32(uint32(math.Round(float64(f) * 30)))
	case EncRuneTime:
		w.WriteBits(uint64(math.Float32bits(f))&0xf, 4)
	case EncNormal:
		w.WriteNormal(f)
	}
}
