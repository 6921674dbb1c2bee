package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"
)

// HeaderSize is the encoded size of a record header.
const HeaderSize = 14

// FlagZstd marks a record whose payload is zstd compressed.
const FlagZstd uint8 = 1 << 0

var (
	ErrShortRecord = errors.New("codec: data too short for record")
	ErrChecksum    = errors.New("codec: CRC32 mismatch")
)

// Record is one framed message of a message log. Payload holds the bytes as
// stored, compressed when Flags has FlagZstd set.
type Record struct {
	CRC32       uint32 // CRC32 checksum over everything after this field
	Kind        uint8  // Message kind
	Flags       uint8  // Payload flags
	Tick        uint32 // Server tick of the message
	PayloadSize uint32 // Size of the stored payload in bytes
	Payload     []byte // Stored payload
}

// RecordCodec frames message payloads into records.
type RecordCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
	// minCompress is the smallest payload that gets compressed; zero
	// disables compression.
	minCompress int
}

// Option configures a RecordCodec.
type Option func(*RecordCodec)

// WithCompression compresses payloads of at least minSize bytes.
func WithCompression(minSize int) Option {
	return func(c *RecordCodec) {
		if minSize < 1 {
			minSize = 1
		}
		c.minCompress = minSize
	}
}

// NewRecordCodec creates a new record codec instance. Compressed records are
// always readable; writing them needs WithCompression.
func NewRecordCodec(opts ...Option) *RecordCodec {
	c := &RecordCodec{}
	for _, opt := range opts {
		opt(c)
	}
	// Both constructors only fail on invalid options.
	c.dec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if c.minCompress > 0 {
		c.enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	}
	return c
}

// Encode frames a payload into the binary record format.
// Format: [CRC32(4)][Kind(1)][Flags(1)][Tick(4)][Size(4)][Payload]
func (c *RecordCodec) Encode(kind uint8, tick uint32, payload []byte) ([]byte, error) {
	r, err := c.NewRecord(kind, tick, payload)
	if err != nil {
		return nil, err
	}
	return r.Marshal(), nil
}

// NewRecord builds a record with its checksum set, compressing the payload
// when the codec is configured to.
func (c *RecordCodec) NewRecord(kind uint8, tick uint32, payload []byte) (*Record, error) {
	r := &Record{Kind: kind, Tick: tick, Payload: payload}
	if c.enc != nil && len(payload) >= c.minCompress {
		compressed := c.enc.EncodeAll(payload, make([]byte, 0, len(payload)))
		if len(compressed) < len(payload) {
			r.Payload = compressed
			r.Flags |= FlagZstd
		}
	}
	if uint64(len(r.Payload)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("payload too large: %d bytes", len(r.Payload))
	}
	r.PayloadSize = uint32(len(r.Payload))
	r.CRC32 = r.calculateCRC32()
	return r, nil
}

// Decode parses a binary record. The payload aliases data.
func (c *RecordCodec) Decode(data []byte) (*Record, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrShortRecord, HeaderSize, len(data))
	}

	r := &Record{}
	r.CRC32 = binary.LittleEndian.Uint32(data[0:4])
	r.Kind = data[4]
	r.Flags = data[5]
	r.Tick = binary.LittleEndian.Uint32(data[6:10])
	r.PayloadSize = binary.LittleEndian.Uint32(data[10:14])
	if uint64(len(data)) < HeaderSize+uint64(r.PayloadSize) {
		return nil, fmt.Errorf("%w: payload size %d exceeds %d available bytes", ErrShortRecord, r.PayloadSize, len(data)-HeaderSize)
	}
	r.Payload = data[HeaderSize : HeaderSize+int(r.PayloadSize)]
	return r, nil
}

// Open returns the plain payload of r.
func (c *RecordCodec) Open(r *Record) ([]byte, error) {
	if r.Flags&FlagZstd == 0 {
		return r.Payload, nil
	}
	out, err := c.dec.DecodeAll(r.Payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	return out, nil
}

// Marshal encodes r as stored.
func (r *Record) Marshal() []byte {
	buf := make([]byte, r.Size())
	binary.LittleEndian.PutUint32(buf[0:], r.CRC32)
	buf[4] = r.Kind
	buf[5] = r.Flags
	binary.LittleEndian.PutUint32(buf[6:], r.Tick)
	binary.LittleEndian.PutUint32(buf[10:], uint32(len(r.Payload)))
	copy(buf[HeaderSize:], r.Payload)
	return buf
}

// Validate checks the integrity of a record using CRC32
func (r *Record) Validate() error {
	if got := r.calculateCRC32(); r.CRC32 != got {
		return fmt.Errorf("%w: %d != %d", ErrChecksum, r.CRC32, got)
	}
	return nil
}

// Size returns the total size of the record when encoded
func (r *Record) Size() int {
	return HeaderSize + len(r.Payload)
}

// calculateCRC32 covers the header after the CRC field and the payload.
func (r *Record) calculateCRC32() uint32 {
	var hdr [HeaderSize - 4]byte
	hdr[0] = r.Kind
	hdr[1] = r.Flags
	binary.LittleEndian.PutUint32(hdr[2:], r.Tick)
	binary.LittleEndian.PutUint32(hdr[6:], uint32(len(r.Payload)))

	crc := crc32.NewIEEE()
	crc.Write(hdr[:])
	crc.Write(r.Payload)
	return crc.Sum32()
}
