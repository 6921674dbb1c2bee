package fieldvalue

import (
	"errors"
	"fmt"
	"math"

	"github.com/ssargent/replaykit/pkg/bitreader"
)

// Quantization flags carried in a field's encode flags.
const (
	QuantizeRoundDown     = 1 << 0
	QuantizeRoundUp       = 1 << 1
	QuantizeEncodeZero    = 1 << 2
	QuantizeEncodeInteger = 1 << 3
)

// ErrInvalidHints is returned when encode hints describe an impossible
// quantization. Callers building schemas treat it as a schema conflict.
var ErrInvalidHints = errors.New("fieldvalue: invalid encode hints")

var fallbackMultipliers = [...]float32{0.9999, 0.99, 0.9, 0.8, 0.7}

// Quantized decodes a float spread over [Low, High] in a fixed number of
// bits, with optional escape bits for the range ends and zero.
type Quantized struct {
	Low        float32
	High       float32
	BitCount   int
	Flags      uint32
	highLowMul float32
	decMul     float32
}

// NewQuantized builds the decoder for bitCount in 1..31. low and high
// default to 0 and 1.
func NewQuantized(bitCount int, flags uint32, low, high *float32) (*Quantized, error) {
	if bitCount <= 0 || bitCount >= 32 {
		return nil, fmt.Errorf("%w: quantized bit count %d", ErrInvalidHints, bitCount)
	}
	q := &Quantized{BitCount: bitCount, Flags: flags, High: 1}
	if low != nil {
		q.Low = *low
	}
	if high != nil {
		q.High = *high
	}
	if q.Low > q.High || math.IsNaN(float64(q.Low)) || math.IsNaN(float64(q.High)) {
		return nil, fmt.Errorf("%w: quantized range [%g, %g]", ErrInvalidHints, q.Low, q.High)
	}
	if err := q.validateFlags(); err != nil {
		return nil, err
	}

	steps := uint64(1) << uint(q.BitCount)
	switch {
	case q.Flags&QuantizeRoundDown != 0:
		q.High -= (q.High - q.Low) / float32(steps)
	case q.Flags&QuantizeRoundUp != 0:
		q.Low += (q.High - q.Low) / float32(steps)
	}

	if q.Flags&QuantizeEncodeInteger != 0 {
		delta := q.High - q.Low
		if delta < 1 {
			delta = 1
		}
		rng := uint64(1) << uint(math.Ceil(math.Log2(float64(delta))))
		bits := q.BitCount
		for uint64(1)<<uint(bits) <= rng {
			bits++
		}
		if bits > q.BitCount {
			if bits >= 32 {
				return nil, fmt.Errorf("%w: integer range needs %d bits", ErrInvalidHints, bits)
			}
			q.BitCount = bits
			steps = uint64(1) << uint(bits)
		}
		offset := float32(rng) / float32(steps)
		q.High = q.Low + float32(rng) - offset
	}

	if err := q.assignMultipliers(steps); err != nil {
		return nil, err
	}

	// Escape bits whose value the plain encoding already reproduces are
	// not transmitted.
	if q.Flags&QuantizeRoundDown != 0 && q.quantize(q.Low) == q.Low {
		q.Flags &^= QuantizeRoundDown
	}
	if q.Flags&QuantizeRoundUp != 0 && q.quantize(q.High) == q.High {
		q.Flags &^= QuantizeRoundUp
	}
	if q.Flags&QuantizeEncodeZero != 0 && q.quantize(0) == 0 {
		q.Flags &^= QuantizeEncodeZero
	}
	return q, nil
}

func (q *Quantized) validateFlags() error {
	if q.Flags == 0 {
		return nil
	}
	if (q.Low == 0 && q.Flags&QuantizeRoundDown != 0) || (q.High == 0 && q.Flags&QuantizeRoundUp != 0) {
		q.Flags &^= QuantizeEncodeZero
	}
	if q.Low == 0 && q.Flags&QuantizeEncodeZero != 0 {
		q.Flags |= QuantizeRoundDown
		q.Flags &^= QuantizeEncodeZero
	}
	if q.High == 0 && q.Flags&QuantizeEncodeZero != 0 {
		q.Flags |= QuantizeRoundUp
		q.Flags &^= QuantizeEncodeZero
	}
	if q.Low > 0 || q.High < 0 {
		q.Flags &^= QuantizeEncodeZero
	}
	if q.Flags&QuantizeEncodeInteger != 0 {
		q.Flags &^= QuantizeRoundUp | QuantizeRoundDown | QuantizeEncodeZero
	}
	if q.Flags&(QuantizeRoundDown|QuantizeRoundUp) == QuantizeRoundDown|QuantizeRoundUp {
		return fmt.Errorf("%w: round up and round down are exclusive", ErrInvalidHints)
	}
	return nil
}

func (q *Quantized) assignMultipliers(steps uint64) error {
	rng := q.High - q.Low
	high := uint32(1)<<uint(q.BitCount) - 1

	var mul float32
	if math.Abs(float64(rng)) <= 0 {
		mul = float32(high)
	} else {
		mul = float32(high) / rng
	}
	if overflows(mul, rng, high) {
		for _, m := range fallbackMultipliers {
			mul = float32(high) / rng * m
			if !overflows(mul, rng, high) {
				break
			}
		}
	}
	if mul == 0 || math.IsInf(float64(mul), 0) {
		return fmt.Errorf("%w: cannot compute quantization multiplier", ErrInvalidHints)
	}
	q.highLowMul = mul
	q.decMul = 1 / float32(steps-1)
	return nil
}

func overflows(mul, rng float32, high uint32) bool {
	return mul*rng > float32(high) || float64(mul*rng) > float64(high)
}

// quantize maps val onto the value the decoder would reproduce for it.
func (q *Quantized) quantize(val float32) float32 {
	switch {
	case val < q.Low:
		return q.Low
	case val > q.High:
		return q.High
	}
	i := uint32((val - q.Low) * q.highLowMul)
	return q.Low + (q.High-q.Low)*(float32(i)*q.decMul)
}

// Decode reads one quantized float.
func (q *Quantized) Decode(r *bitreader.Reader) (float32, error) {
	if q.Flags&QuantizeRoundDown != 0 {
		b, err := r.ReadBool()
		if err != nil || b {
			return q.Low, err
		}
	}
	if q.Flags&QuantizeRoundUp != 0 {
		b, err := r.ReadBool()
		if err != nil || b {
			return q.High, err
		}
	}
	if q.Flags&QuantizeEncodeZero != 0 {
		b, err := r.ReadBool()
		if err != nil || b {
			return 0, err
		}
	}
	v, err := r.ReadBits(q.BitCount)
	if err != nil {
		return 0, err
	}
	return q.Low + (q.High-q.Low)*float32(v)*q.decMul, nil
}

// Encode writes val using the same escape rules Decode reads.
func (q *Quantized) Encode(w *bitreader.Writer, val float32) {
	if q.Flags&QuantizeRoundDown != 0 {
		w.WriteBool(val <= q.Low)
		if val <= q.Low {
			return
		}
	}
	if q.Flags&QuantizeRoundUp != 0 {
		w.WriteBool(val >= q.High)
		if val >= q.High {
			return
		}
	}
	if q.Flags&QuantizeEncodeZero != 0 {
		w.WriteBool(val == 0)
		if val == 0 {
			return
		}
	}
	w.WriteBits(uint64(q.step(val)), q.BitCount)
}

// step returns the raw integer the encoder transmits for val.
func (q *Quantized) step(val float32) uint32 {
	if val <= q.Low {
		return 0
	}
	max := uint32(1)<<uint(q.BitCount) - 1
	if val >= q.High {
		return max
	}
	i := uint32(math.Round(float64((val - q.Low) / (q.High - q.Low) / q.decMul)))
	return min(i, max)
}
