package entity

import (
	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
)

// Snapshot is a detached copy of the live arena at one tick.
type Snapshot struct {
	Tick     uint32
	Entities []State
}

// State is one entity inside a snapshot.
type State struct {
	Index   int32
	Serial  uint32
	ClassID int32
	Class   string
	Visible bool
	Fields  []Field
}

// Field is one stored field slot.
type Field struct {
	Path  fieldpath.FieldPath
	Value fieldvalue.Value
}

// Snapshot copies every live entity, in index order with fields in path
// order.
func (a *Arena) Snapshot(tick uint32) *Snapshot {
	snap := &Snapshot{Tick: tick, Entities: make([]State, 0, a.live)}
	a.Each(func(e *Entity) bool {
		snap.Entities = append(snap.Entities, e.State())
		return true
	})
	return snap
}

// State copies the entity into snapshot form.
func (e *Entity) State() State {
	st := State{
		Index:   e.index,
		Serial:  e.serial,
		ClassID: e.classID,
		Visible: e.visible,
		Fields:  make([]Field, 0, len(e.fields)),
	}
	if e.serializer != nil {
		st.Class = e.serializer.Name
	}
	for _, fp := range e.Paths() {
		st.Fields = append(st.Fields, Field{Path: fp, Value: e.fields[fp]})
	}
	return st
}

// Find returns the state of the entity at index.
func (s *Snapshot) Find(index int32) (State, bool) {
	for _, st := range s.Entities {
		if st.Index == index {
			return st, true
		}
	}
	return State{}, false
}
