package codec_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/ssargent/replaykit/pkg/codec"
	"github.com/ssargent/replaykit/pkg/engine"
)

// ExampleRecordCodec_basic demonstrates framing and reading back a payload
func ExampleRecordCodec_basic() {
	c := codec.NewRecordCodec()

	encoded, err := c.Encode(uint8(engine.KindPacketEntities), 1200, []byte{0x01, 0x02, 0x03})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Encoded %d bytes\n", len(encoded))

	record, err := c.Decode(encoded)
	if err != nil {
		log.Fatal(err)
	}
	if err := record.Validate(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Kind: %s\n", engine.Kind(record.Kind))
	fmt.Printf("Tick: %d\n", record.Tick)
	fmt.Printf("Payload: %x\n", record.Payload)

	// Output:
	// Encoded 17 bytes
	// Kind: packet_entities
	// Tick: 1200
	// Payload: 010203
}

// ExampleRecordCodec_message demonstrates encoding a whole engine message
func ExampleRecordCodec_message() {
	c := codec.NewRecordCodec()

	msg := &engine.Message{
		Kind: engine.KindStringTableBaselines,
		Tick: 1,
		Baselines: []engine.Baseline{
			{Key: "7", Data: []byte{0xAA}},
		},
	}
	encoded, err := c.EncodeMessage(msg)
	if err != nil {
		log.Fatal(err)
	}

	record, err := c.Decode(encoded)
	if err != nil {
		log.Fatal(err)
	}
	got, err := c.DecodeMessage(record)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Record size: %d bytes\n", record.Size())
	fmt.Printf("Baselines: %d key=%s data=%x\n", len(got.Baselines), got.Baselines[0].Key, got.Baselines[0].Data)

	// Output:
	// Record size: 30 bytes
	// Baselines: 1 key=7 data=aa
}

// ExampleRecordCodec_errorHandling demonstrates error handling
func ExampleRecordCodec_errorHandling() {
	c := codec.NewRecordCodec()

	_, err := c.Decode([]byte{0x01, 0x02, 0x03})
	fmt.Println(errors.Is(err, codec.ErrShortRecord))

	encoded, _ := c.Encode(1, 1, []byte("payload"))
	encoded[len(encoded)-1] ^= 0xFF
	record, _ := c.Decode(encoded)
	fmt.Println(errors.Is(record.Validate(), codec.ErrChecksum))

	// Output:
	// true
	// true
}
