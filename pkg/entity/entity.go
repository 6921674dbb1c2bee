// Package entity holds decoded entity state: per-entity field storage and
// the arena of entity slots of one replay.
package entity

import (
	"math"
	"slices"

	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
	"github.com/ssargent/replaykit/pkg/schema"
)

// Entity is the state of one entity slot. Field storage is sparse: only
// slots that were ever written hold a value.
type Entity struct {
	index      int32
	serial     uint32
	classID    int32
	serializer *schema.Serializer
	fields     map[fieldpath.FieldPath]fieldvalue.Value
	bounds     map[fieldpath.FieldPath]int // last length written per length or presence slot
	deleted    bool
	visible    bool
}

// New creates an empty entity of a class.
func New(index int32, serial uint32, classID int32, s *schema.Serializer) *Entity {
	return &Entity{
		index:      index,
		serial:     serial,
		classID:    classID,
		serializer: s,
		fields:     make(map[fieldpath.FieldPath]fieldvalue.Value),
		bounds:     make(map[fieldpath.FieldPath]int),
		visible:    true,
	}
}

func (e *Entity) Index() int32                   { return e.index }
func (e *Entity) Serial() uint32                 { return e.serial }
func (e *Entity) ClassID() int32                 { return e.classID }
func (e *Entity) Serializer() *schema.Serializer { return e.serializer }

// Handle returns the networked handle referring to this entity.
func (e *Entity) Handle() uint32 {
	return MakeHandle(e.index, e.serial)
}

// Deleted reports whether the entity was destroyed. Its storage is kept
// until the slot is reused.
func (e *Entity) Deleted() bool { return e.deleted }

// Visible reports whether the entity is in the observer's visibility set.
func (e *Entity) Visible() bool { return e.visible }

// Len returns the number of stored field slots.
func (e *Entity) Len() int { return len(e.fields) }

// Value returns the value stored at fp.
func (e *Entity) Value(fp fieldpath.FieldPath) (fieldvalue.Value, bool) {
	v, ok := e.fields[fp]
	return v, ok
}

// Paths returns the stored paths in path order.
func (e *Entity) Paths() []fieldpath.FieldPath {
	out := make([]fieldpath.FieldPath, 0, len(e.fields))
	for fp := range e.fields {
		out = append(out, fp)
	}
	slices.SortFunc(out, fieldpath.FieldPath.Compare)
	return out
}

// Set stores v at fp. Writing a length or presence slot drops stored
// children that the new value no longer covers.
func (e *Entity) Set(fp fieldpath.FieldPath, role schema.Role, v fieldvalue.Value) {
	e.fields[fp] = v
	switch role {
	case schema.RoleLength:
		e.shrink(fp, int(v.AsUint()))
	case schema.RolePresence:
		if v.AsBool() {
			e.bounds[fp] = math.MaxInt32
		} else {
			e.shrink(fp, 0)
		}
	}
}

// shrink records n as the bound of parent and truncates only when it is
// below the previous bound. An unknown previous bound always truncates.
func (e *Entity) shrink(parent fieldpath.FieldPath, n int) {
	prev, ok := e.bounds[parent]
	e.bounds[parent] = n
	if ok && n >= prev {
		return
	}
	e.truncate(parent, n)
}

// truncate removes children of parent whose first index is >= n.
func (e *Entity) truncate(parent fieldpath.FieldPath, n int) {
	depth := parent.Len()
	for fp := range e.fields {
		if fp.Len() > depth && fp.HasPrefix(parent) && fp.At(depth) >= n {
			delete(e.fields, fp)
			delete(e.bounds, fp)
		}
	}
}

// Clone returns a deep copy of e rebound to a slot and serial.
func (e *Entity) Clone(index int32, serial uint32) *Entity {
	c := *e
	c.index = index
	c.serial = serial
	c.fields = make(map[fieldpath.FieldPath]fieldvalue.Value, len(e.fields))
	for fp, v := range e.fields {
		c.fields[fp] = v
	}
	c.bounds = make(map[fieldpath.FieldPath]int, len(e.bounds))
	for fp, n := range e.bounds {
		c.bounds[fp] = n
	}
	return &c
}
