//go:build fuzz
// +build fuzz

package codec

import (
	"bytes"
	"testing"

	"github.com/ssargent/replaykit/pkg/engine"
)

// FuzzRecordCodec_RoundTrip tests encode/decode round-trip with random inputs
func FuzzRecordCodec_RoundTrip(f *testing.F) {
	codec := NewRecordCodec(WithCompression(64))

	f.Add(uint8(1), uint32(0), []byte(""))
	f.Add(uint8(1), uint32(1200), []byte{0x01, 0x02, 0x03})
	f.Add(uint8(4), uint32(7), bytes.Repeat([]byte("ab"), 200))

	f.Fuzz(func(t *testing.T, kind uint8, tick uint32, payload []byte) {
		if len(payload) > 100000 {
			t.Skip("Input too large for fuzz test")
		}

		encoded, err := codec.Encode(kind, tick, payload)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		record, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if err := record.Validate(); err != nil {
			t.Fatalf("Record validation failed: %v", err)
		}
		out, err := codec.Open(record)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if !bytes.Equal(out, payload) || record.Kind != kind || record.Tick != tick {
			t.Errorf("round trip mismatch: kind %d tick %d len %d", record.Kind, record.Tick, len(out))
		}
	})
}

// FuzzRecordCodec_Decode feeds arbitrary bytes to the record and message decoders
func FuzzRecordCodec_Decode(f *testing.F) {
	codec := NewRecordCodec()

	seed, _ := codec.EncodeMessage(&engine.Message{
		Kind:     engine.KindPacketEntities,
		Entities: &engine.PacketEntities{UpdatedEntries: 1, Data: []byte{0x42}},
	})
	f.Add(seed)
	f.Add([]byte{})
	f.Add(bytes.Repeat([]byte{0xFF}, HeaderSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		record, err := codec.Decode(data)
		if err != nil {
			return
		}
		// Must not panic; errors are expected.
		_, _ = codec.DecodeMessage(record)
		_, _ = UnmarshalPayload(engine.Kind(record.Kind), record.Tick, record.Payload)
	})
}

// FuzzSnapshot_Decode checks the snapshot decoder never panics
func FuzzSnapshot_Decode(f *testing.F) {
	f.Add(MarshalSnapshot(testSnapshot()))
	f.Add([]byte{snapshotVersion})

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := UnmarshalSnapshot(data)
		if err != nil {
			return
		}
		again, err := UnmarshalSnapshot(MarshalSnapshot(s))
		if err != nil {
			t.Fatalf("re-decode failed: %v", err)
		}
		if len(again.Entities) != len(s.Entities) {
			t.Errorf("entity count changed: %d != %d", len(again.Entities), len(s.Entities))
		}
	})
}
