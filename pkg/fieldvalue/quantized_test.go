package fieldvalue

import (
	"testing"

	"github.com/ssargent/replaykit/pkg/bitreader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantized_InvalidHints(t *testing.T) {
	tests := []struct {
		name  string
		bits  int
		flags uint32
		low   float32
		high  float32
	}{
		{"zero bits", 0, 0, 0, 1},
		{"full width", 32, 0, 0, 1},
		{"inverted range", 8, 0, 10, -10},
		{"round up and down", 8, QuantizeRoundDown | QuantizeRoundUp, -1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQuantized(tt.bits, tt.flags, &tt.low, &tt.high)
			assert.ErrorIs(t, err, ErrInvalidHints)
		})
	}
}

func TestQuantized_Defaults(t *testing.T) {
	q, err := NewQuantized(8, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0), q.Low)
	assert.Equal(t, float32(1), q.High)

	w := bitreader.NewWriter()
	w.WriteBits(255, 8)
	v, err := q.Decode(bitreader.New(w.Bytes()))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-6)
}

func TestQuantized_DropsRedundantRoundDown(t *testing.T) {
	low, high := float32(0), float32(1)
	q, err := NewQuantized(4, QuantizeRoundDown, &low, &high)
	require.NoError(t, err)
	assert.Zero(t, q.Flags)
	assert.Equal(t, float32(0.9375), q.High)
}

func TestQuantized_EncodeZero(t *testing.T) {
	low, high := float32(-10), float32(10)
	q, err := NewQuantized(8, QuantizeEncodeZero, &low, &high)
	require.NoError(t, err)
	require.NotZero(t, q.Flags&QuantizeEncodeZero)

	for _, val := range []float32{0, -10, 10, 3.3} {
		w := bitreader.NewWriter()
		q.Encode(w, val)
		got, err := q.Decode(bitreader.New(w.Bytes()))
		require.NoError(t, err)
		if val == 0 {
			assert.Equal(t, float32(0), got)
			continue
		}
		assert.InDelta(t, val, got, 0.1)
	}
}

func TestQuantized_EncodeInteger(t *testing.T) {
	low, high := float32(0), float32(10)
	q, err := NewQuantized(2, QuantizeEncodeInteger, &low, &high)
	require.NoError(t, err)
	assert.Equal(t, 5, q.BitCount)
	assert.Equal(t, float32(15.5), q.High)

	w := bitreader.NewWriter()
	q.Encode(w, 7)
	assert.Equal(t, 5, w.BitLen())
	got, err := q.Decode(bitreader.New(w.Bytes()))
	require.NoError(t, err)
	assert.InDelta(t, 7.0, got, 1e-4)
}

func TestQuantized_EscapeBitsAreReadInOrder(t *testing.T) {
	low, high := float32(-5), float32(5)
	q, err := NewQuantized(6, QuantizeEncodeZero, &low, &high)
	require.NoError(t, err)
	q.Flags = QuantizeRoundUp | QuantizeEncodeZero

	w := bitreader.NewWriter()
	w.WriteBool(true)
	got, err := q.Decode(bitreader.New(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, q.High, got)

	w = bitreader.NewWriter()
	w.WriteBool(false)
	w.WriteBool(true)
	got, err = q.Decode(bitreader.New(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, float32(0), got)
}
