// Package codec frames engine messages and entity snapshots for storage.
//
// The codec package implements the binary record format of replaykit message
// logs and the encoding of snapshots persisted by the storage package.
//
// # Record Format
//
// Records are serialized in a binary format with the following structure:
//
//	[CRC32(4)][Kind(1)][Flags(1)][Tick(4)][Size(4)][Payload]
//
// Fields:
//   - CRC32: 32-bit CRC checksum for integrity validation (little-endian)
//   - Kind: engine message kind
//   - Flags: bit 0 set when the payload is zstd compressed
//   - Tick: 32-bit server tick of the message (little-endian)
//   - Size: 32-bit unsigned length of the stored payload (little-endian)
//   - Payload: Variable-length payload data
//
// The total record size is: 14 bytes (header) + stored payload length
//
// # CRC32 Calculation
//
// The CRC32 checksum is calculated over every byte after the CRC32 field:
// Kind, Flags, Tick, Size and the stored (possibly compressed) payload.
// Corruption is therefore detected before any decompression happens.
//
// # Payloads
//
// MarshalPayload and UnmarshalPayload convert between engine messages and
// payload bytes. Entity deltas keep their bitstream verbatim behind a five
// byte header, schema messages are yaml documents in the format read by
// schema.ParseRecords, and baselines are length prefixed binary entries.
//
// # Usage
//
//	c := codec.NewRecordCodec(codec.WithCompression(512))
//
//	encoded, err := c.EncodeMessage(msg)
//	if err != nil {
//	    return err
//	}
//
//	record, err := c.Decode(encoded)
//	if err != nil {
//	    return err
//	}
//
//	msg, err := c.DecodeMessage(record) // validates the CRC first
//
// # Snapshots
//
// MarshalSnapshot writes an entity.Snapshot as a compact varint encoded
// blob; UnmarshalSnapshot reverses it and rejects truncated or trailing
// input.
//
// # Thread Safety
//
// RecordCodec instances are safe for concurrent use. Records returned by
// Decode alias the input buffer.
package codec
