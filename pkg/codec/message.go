package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ssargent/replaykit/pkg/engine"
	"github.com/ssargent/replaykit/pkg/schema"
)

// ErrBadPayload is returned when a record payload does not match its kind.
var ErrBadPayload = errors.New("codec: malformed payload")

// EncodeMessage frames msg as a record.
func (c *RecordCodec) EncodeMessage(msg *engine.Message) ([]byte, error) {
	payload, err := MarshalPayload(msg)
	if err != nil {
		return nil, err
	}
	return c.Encode(uint8(msg.Kind), msg.Tick, payload)
}

// DecodeMessage validates r and rebuilds its message.
func (c *RecordCodec) DecodeMessage(r *Record) (*engine.Message, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	payload, err := c.Open(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalPayload(engine.Kind(r.Kind), r.Tick, payload)
}

// MarshalPayload encodes the payload of msg.
//
//	packet_entities:  [UpdatedEntries int32][IsDelta u8][Data]
//	serializers, class_info: yaml schema records
//	baseline, string_table_baselines: [Count u32] then per entry
//	                  [KeyLen u16][Key][ClassID int32][DataLen u32][Data]
func MarshalPayload(msg *engine.Message) ([]byte, error) {
	switch msg.Kind {
	case engine.KindPacketEntities:
		pe := msg.Entities
		if pe == nil {
			return nil, fmt.Errorf("%w: %s without entities", ErrBadPayload, msg.Kind)
		}
		buf := make([]byte, 5, 5+len(pe.Data))
		binary.LittleEndian.PutUint32(buf, uint32(pe.UpdatedEntries))
		if pe.IsDelta {
			buf[4] = 1
		}
		return append(buf, pe.Data...), nil

	case engine.KindSerializers, engine.KindClassInfo:
		if msg.Schema == nil {
			return nil, fmt.Errorf("%w: %s without schema", ErrBadPayload, msg.Kind)
		}
		return schema.MarshalRecords(msg.Schema)

	case engine.KindBaseline, engine.KindStringTableBaselines:
		buf := binary.LittleEndian.AppendUint32(nil, uint32(len(msg.Baselines)))
		for _, b := range msg.Baselines {
			if len(b.Key) > math.MaxUint16 {
				return nil, fmt.Errorf("%w: baseline key of %d bytes", ErrBadPayload, len(b.Key))
			}
			buf = binary.LittleEndian.AppendUint16(buf, uint16(len(b.Key)))
			buf = append(buf, b.Key...)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(b.ClassID))
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Data)))
			buf = append(buf, b.Data...)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %s", ErrBadPayload, msg.Kind)
}

// UnmarshalPayload rebuilds a message from its kind, tick and payload.
// Byte slices in the result alias payload.
func UnmarshalPayload(kind engine.Kind, tick uint32, payload []byte) (*engine.Message, error) {
	msg := &engine.Message{Kind: kind, Tick: tick}
	switch kind {
	case engine.KindPacketEntities:
		if len(payload) < 5 {
			return nil, fmt.Errorf("%w: %s header", ErrBadPayload, kind)
		}
		msg.Entities = &engine.PacketEntities{
			UpdatedEntries: int32(binary.LittleEndian.Uint32(payload)),
			IsDelta:        payload[4] != 0,
			Data:           payload[5:],
		}

	case engine.KindSerializers, engine.KindClassInfo:
		recs, err := schema.ParseRecords(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadPayload, err)
		}
		msg.Schema = recs

	case engine.KindBaseline, engine.KindStringTableBaselines:
		bs, err := unmarshalBaselines(payload)
		if err != nil {
			return nil, err
		}
		msg.Baselines = bs

	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrBadPayload, kind)
	}
	return msg, nil
}

func unmarshalBaselines(p []byte) ([]engine.Baseline, error) {
	if len(p) < 4 {
		return nil, fmt.Errorf("%w: baseline count", ErrBadPayload)
	}
	n := binary.LittleEndian.Uint32(p)
	p = p[4:]
	// Every entry takes at least ten bytes.
	if uint64(n)*10 > uint64(len(p)) {
		return nil, fmt.Errorf("%w: %d baselines in %d bytes", ErrBadPayload, n, len(p))
	}
	out := make([]engine.Baseline, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(p) < 2 {
			return nil, fmt.Errorf("%w: baseline %d key length", ErrBadPayload, i)
		}
		kl := int(binary.LittleEndian.Uint16(p))
		p = p[2:]
		if len(p) < kl+8 {
			return nil, fmt.Errorf("%w: baseline %d key", ErrBadPayload, i)
		}
		b := engine.Baseline{Key: string(p[:kl])}
		p = p[kl:]
		b.ClassID = int32(binary.LittleEndian.Uint32(p))
		dl := binary.LittleEndian.Uint32(p[4:])
		p = p[8:]
		if uint64(len(p)) < uint64(dl) {
			return nil, fmt.Errorf("%w: baseline %d data", ErrBadPayload, i)
		}
		b.Data = p[:dl]
		p = p[dl:]
		out = append(out, b)
	}
	if len(p) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after baselines", ErrBadPayload, len(p))
	}
	return out, nil
}
