package engine

import (
	"fmt"

	"github.com/ssargent/replaykit/pkg/schema"
)

// Kind identifies the message types the engine consumes.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindPacketEntities carries entity creates, updates, leaves and
	// deletes.
	KindPacketEntities
	// KindSerializers carries serializer records.
	KindSerializers
	// KindClassInfo carries class id to network name records.
	KindClassInfo
	// KindBaseline replaces the instance baseline of one class.
	KindBaseline
	// KindStringTableBaselines carries instance baseline string table
	// entries keyed by decimal class id.
	KindStringTableBaselines
)

var kindNames = [...]string{
	KindInvalid:              "invalid",
	KindPacketEntities:       "packet_entities",
	KindSerializers:          "serializers",
	KindClassInfo:            "class_info",
	KindBaseline:             "baseline",
	KindStringTableBaselines: "string_table_baselines",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Kinds lists every valid message kind.
func Kinds() []Kind {
	return []Kind{KindPacketEntities, KindSerializers, KindClassInfo, KindBaseline, KindStringTableBaselines}
}

// Message is one unit of input handed to the engine. Exactly one payload
// field is set, matching Kind. Buffers are only borrowed for the duration
// of Apply.
type Message struct {
	Kind      Kind
	Tick      uint32
	Entities  *PacketEntities
	Schema    *schema.Records
	Baselines []Baseline
}

// PacketEntities is the payload of an entity delta message.
type PacketEntities struct {
	// UpdatedEntries is the number of entity entries in Data.
	UpdatedEntries int32
	// IsDelta is false for full packets that restate every entity.
	IsDelta bool
	Data    []byte
}

// Baseline is the encoded default state of one class. For string table
// messages Key holds the table key and ClassID is parsed from it.
type Baseline struct {
	Key     string
	ClassID int32
	Data    []byte
}
