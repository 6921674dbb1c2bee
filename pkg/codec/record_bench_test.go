//go:build bench
// +build bench

package codec

import (
	"bytes"
	"testing"
)

var benchPayloads = []struct {
	name    string
	payload []byte
}{
	{name: "small", payload: bytes.Repeat([]byte{0x5A}, 32)},
	{name: "medium", payload: bytes.Repeat([]byte("delta"), 200)},
	{name: "large", payload: bytes.Repeat([]byte("entities"), 8000)},
}

func BenchmarkRecordCodec_Encode(b *testing.B) {
	for _, codec := range []struct {
		name string
		c    *RecordCodec
	}{
		{"plain", NewRecordCodec()},
		{"zstd", NewRecordCodec(WithCompression(256))},
	} {
		for _, bm := range benchPayloads {
			b.Run(codec.name+"/"+bm.name, func(b *testing.B) {
				b.SetBytes(int64(len(bm.payload)))
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := codec.c.Encode(1, uint32(i), bm.payload); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkRecordCodec_DecodeOpen(b *testing.B) {
	codec := NewRecordCodec(WithCompression(256))
	for _, bm := range benchPayloads {
		b.Run(bm.name, func(b *testing.B) {
			encoded, err := codec.Encode(1, 0, bm.payload)
			if err != nil {
				b.Fatal(err)
			}
			b.SetBytes(int64(len(bm.payload)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				r, err := codec.Decode(encoded)
				if err != nil {
					b.Fatal(err)
				}
				if err := r.Validate(); err != nil {
					b.Fatal(err)
				}
				if _, err := codec.Open(r); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSnapshot_Marshal(b *testing.B) {
	s := testSnapshot()
	for i := 0; i < b.N; i++ {
		if _, err := UnmarshalSnapshot(MarshalSnapshot(s)); err != nil {
			b.Fatal(err)
		}
	}
}
