// Package schema builds entity class layouts from serializer records and
// resolves decoded field paths against them.
package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"reflect"

	"github.com/ssargent/replaykit/pkg/fieldvalue"
)

var (
	ErrUnknownClass   = errors.New("schema: unknown class")
	ErrSchemaConflict = errors.New("schema: schema conflict")
	ErrPathOutOfRange = errors.New("schema: field path out of range")
	ErrUnknownField   = errors.New("schema: unknown field name")
)

// SerializerID addresses a built serializer inside its registry.
type SerializerID int32

// NoSerializer marks fields without a nested serializer.
const NoSerializer SerializerID = -1

// Kind is the storage model of a field.
type Kind uint8

const (
	KindScalar Kind = iota
	KindString
	KindEnum
	KindHandle
	KindFixedArray
	KindDynamicArray
	KindDynamicTable
	KindStruct
)

var kindNames = [...]string{
	KindScalar:       "scalar",
	KindString:       "string",
	KindEnum:         "enum",
	KindHandle:       "handle",
	KindFixedArray:   "fixed_array",
	KindDynamicArray: "dynamic_array",
	KindDynamicTable: "dynamic_table",
	KindStruct:       "struct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// pointerTypes are serializer typed fields stored as optional structs even
// when the type string carries no pointer marker.
var pointerTypes = map[string]bool{
	"PhysicsRagdollPose_t":       true,
	"CBodyComponent":             true,
	"CEntityIdentity":            true,
	"CPhysicsComponent":          true,
	"CRenderComponent":           true,
	"CDOTAGamerules":             true,
	"CDOTAGameManager":           true,
	"CDOTASpectatorGraphManager": true,
	"CPlayerLocalData":           true,
	"CPlayer_CameraServices":     true,
	"CDOTAGameRules":             true,
}

// Field is one built field of a serializer.
type Field struct {
	Name    string
	VarType VarType
	Kind    Kind
	Encoder string
	// Length is the element count of fixed arrays.
	Length int
	// Codec decodes the leaf value; for arrays it decodes one element.
	Codec *fieldvalue.Codec
	// Serializer is the nested layout of Struct and DynamicTable fields.
	Serializer SerializerID
}

// Serializer is an immutable class layout.
type Serializer struct {
	ID      SerializerID
	Name    string
	Version int32
	Fields  []Field
	byName  map[string]int
}

// FieldIndex returns the index of the named field.
func (s *Serializer) FieldIndex(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

type serializerKey struct {
	name    string
	version int32
}

func (k serializerKey) String() string {
	return fmt.Sprintf("%s(%d)", k.name, k.version)
}

// Registry owns the serializer graph of one replay. Serializers are built
// on first use and never change afterwards. It is not safe for concurrent
// use.
type Registry struct {
	records  map[serializerKey]*SerializerRecord
	latest   map[string]int32
	built    map[serializerKey]SerializerID
	arena    []*Serializer
	classes  map[int32]string
	byClass  map[int32]SerializerID
	building map[serializerKey]bool
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. If logger is nil, slog.Default()
// is used.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		records:  make(map[serializerKey]*SerializerRecord),
		latest:   make(map[string]int32),
		built:    make(map[serializerKey]SerializerID),
		classes:  make(map[int32]string),
		byClass:  make(map[int32]SerializerID),
		building: make(map[serializerKey]bool),
		logger:   logger,
	}
}

// Apply stores a batch of records. Reissuing an identical record is
// accepted; changing a known serializer or class fails with
// ErrSchemaConflict and leaves the registry unchanged.
func (r *Registry) Apply(recs *Records) error {
	pending := make(map[serializerKey]*SerializerRecord, len(recs.Serializers))
	for i := range recs.Serializers {
		rec := &recs.Serializers[i]
		key := serializerKey{rec.Name, rec.Version}
		old, ok := r.records[key]
		if !ok {
			old, ok = pending[key]
		}
		if ok && !reflect.DeepEqual(old, rec) {
			return fmt.Errorf("%w: serializer %s redefined", ErrSchemaConflict, key)
		}
		pending[key] = rec
	}
	names := make(map[int32]string, len(recs.Classes))
	for _, c := range recs.Classes {
		old, ok := r.classes[c.ClassID]
		if !ok {
			old, ok = names[c.ClassID]
		}
		if ok && old != c.NetworkName {
			return fmt.Errorf("%w: class %d renamed from %s to %s", ErrSchemaConflict, c.ClassID, old, c.NetworkName)
		}
		names[c.ClassID] = c.NetworkName
	}

	for i := range recs.Serializers {
		rec := recs.Serializers[i]
		key := serializerKey{rec.Name, rec.Version}
		if _, ok := r.records[key]; ok {
			continue
		}
		r.records[key] = &rec
		if v, ok := r.latest[rec.Name]; !ok || rec.Version > v {
			r.latest[rec.Name] = rec.Version
		}
	}
	for _, c := range recs.Classes {
		r.classes[c.ClassID] = c.NetworkName
	}
	return nil
}

// ClassCount returns the number of known classes.
func (r *Registry) ClassCount() int {
	return len(r.classes)
}

// ClassIDBits returns the width of class ids in entity create headers.
func (r *Registry) ClassIDBits() int {
	return bits.Len(uint(len(r.classes)))
}

// ClassName returns the network name of a class.
func (r *Registry) ClassName(classID int32) (string, error) {
	name, ok := r.classes[classID]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownClass, classID)
	}
	return name, nil
}

// Get returns the serializer of a class, building it on first use.
func (r *Registry) Get(classID int32) (*Serializer, error) {
	if id, ok := r.byClass[classID]; ok {
		return r.arena[id], nil
	}
	name, err := r.ClassName(classID)
	if err != nil {
		return nil, err
	}
	version, ok := r.latest[name]
	if !ok {
		return nil, fmt.Errorf("%w: class %d has no serializer %s", ErrUnknownClass, classID, name)
	}
	s, err := r.Lookup(name, version)
	if err != nil {
		return nil, fmt.Errorf("class %d: %w", classID, err)
	}
	r.byClass[classID] = s.ID
	return s, nil
}

// Lookup returns a serializer by name and version, building it and any
// nested serializers on first use.
func (r *Registry) Lookup(name string, version int32) (*Serializer, error) {
	id, err := r.build(serializerKey{name, version})
	if err != nil {
		return nil, err
	}
	return r.arena[id], nil
}

// Serializer returns a built serializer by id.
func (r *Registry) Serializer(id SerializerID) *Serializer {
	return r.arena[id]
}

// Len returns the number of built serializers.
func (r *Registry) Len() int {
	return len(r.arena)
}

func (r *Registry) build(key serializerKey) (SerializerID, error) {
	if id, ok := r.built[key]; ok {
		return id, nil
	}
	rec, ok := r.records[key]
	if !ok {
		return NoSerializer, fmt.Errorf("%w: missing serializer %s", ErrSchemaConflict, key)
	}
	if r.building[key] {
		return NoSerializer, fmt.Errorf("%w: serializer cycle through %s", ErrSchemaConflict, key)
	}
	r.building[key] = true
	defer delete(r.building, key)

	s := &Serializer{
		Name:    rec.Name,
		Version: rec.Version,
		Fields:  make([]Field, 0, len(rec.Fields)),
		byName:  make(map[string]int, len(rec.Fields)),
	}
	for i := range rec.Fields {
		f, err := r.buildField(&rec.Fields[i])
		if err != nil {
			return NoSerializer, fmt.Errorf("%s.%s: %w", key, rec.Fields[i].VarName, err)
		}
		s.byName[f.Name] = len(s.Fields)
		s.Fields = append(s.Fields, f)
	}

	s.ID = SerializerID(len(r.arena))
	r.arena = append(r.arena, s)
	r.built[key] = s.ID
	r.logger.Debug("built serializer", "name", s.Name, "version", s.Version, "fields", len(s.Fields))
	return s.ID, nil
}

func (r *Registry) buildField(rec *FieldRecord) (Field, error) {
	vt, err := ParseVarType(rec.VarType)
	if err != nil {
		return Field{}, err
	}
	f := Field{
		Name:       rec.VarName,
		VarType:    vt,
		Encoder:    rec.Encoder,
		Serializer: NoSerializer,
	}

	if rec.SerializerName != "" {
		id, err := r.build(serializerKey{rec.SerializerName, rec.SerializerVersion})
		if err != nil {
			return Field{}, err
		}
		f.Serializer = id
		if vt.Pointer || pointerTypes[vt.Base] {
			f.Kind = KindStruct
			f.Codec = &fieldvalue.Codec{Encoding: fieldvalue.EncBool}
		} else {
			f.Kind = KindDynamicTable
			f.Codec = lengthCodec
		}
		return f, nil
	}

	leaf := vt
	switch {
	case vt.Count > 0 && vt.Base != "char":
		f.Kind = KindFixedArray
		f.Length = vt.Count
		leaf.Count = 0
	case vt.IsDynamicArray():
		if vt.Generic == nil {
			return Field{}, fmt.Errorf("%w: %s without element type", ErrSchemaConflict, vt.Base)
		}
		f.Kind = KindDynamicArray
		leaf = *vt.Generic
	}

	codec, err := fieldvalue.Select(fieldvalue.Hints{
		FieldName:   rec.VarName,
		BaseType:    leaf.Base,
		Encoder:     rec.Encoder,
		BitCount:    rec.BitCount,
		Low:         rec.LowValue,
		High:        rec.HighValue,
		EncodeFlags: rec.EncodeFlags,
	})
	if err != nil {
		return Field{}, fmt.Errorf("%w: %w", ErrSchemaConflict, err)
	}
	f.Codec = codec

	if f.Kind == KindScalar {
		switch codec.Encoding {
		case fieldvalue.EncString:
			f.Kind = KindString
		case fieldvalue.EncEnum:
			f.Kind = KindEnum
		case fieldvalue.EncHandle:
			f.Kind = KindHandle
		}
	}
	return f, nil
}

// lengthCodec decodes the element count of dynamic arrays and tables.
var lengthCodec = &fieldvalue.Codec{Encoding: fieldvalue.EncUnsigned32}
