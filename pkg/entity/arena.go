package entity

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
	"github.com/ssargent/replaykit/pkg/schema"
)

var (
	// ErrNotFound is returned for lookups of absent entities or fields.
	ErrNotFound = errors.New("entity: not found")
	// ErrBadIndex is returned for slot indices outside the arena.
	ErrBadIndex = errors.New("entity: index out of range")
)

// Arena holds every entity slot of one replay. Downstream readers use the
// read methods between messages; the engine is the only writer.
type Arena struct {
	slots     []*Entity
	live      int
	dirty     []int32
	isDirty   []bool
	dirtyTick uint32
	resolver  *schema.Resolver
}

// NewArena creates an empty arena. resolver is used for name lookups and
// may be nil if they are not needed.
func NewArena(resolver *schema.Resolver) *Arena {
	return &Arena{
		slots:    make([]*Entity, MaxEntities),
		isDirty:  make([]bool, MaxEntities),
		resolver: resolver,
	}
}

func checkIndex(index int32) error {
	if index < 0 || index >= MaxEntities {
		return fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	return nil
}

// Slot returns whatever occupies a slot, including deleted entities.
func (a *Arena) Slot(index int32) *Entity {
	if checkIndex(index) != nil {
		return nil
	}
	return a.slots[index]
}

// Put installs e in its slot, replacing any previous occupant. It returns
// the replaced entity if that one was still live.
func (a *Arena) Put(e *Entity) (*Entity, error) {
	if err := checkIndex(e.index); err != nil {
		return nil, err
	}
	old := a.slots[e.index]
	if old != nil && !old.deleted {
		a.live--
	} else {
		old = nil
	}
	a.slots[e.index] = e
	a.live++
	return old, nil
}

// Delete marks the entity in a slot destroyed. It reports false if the
// slot is empty or already deleted.
func (a *Arena) Delete(index int32) bool {
	e := a.Slot(index)
	if e == nil || e.deleted {
		return false
	}
	e.deleted = true
	e.visible = false
	a.live--
	return true
}

// Leave marks the entity in a slot as outside the visibility set.
func (a *Arena) Leave(index int32) bool {
	e := a.Slot(index)
	if e == nil || e.deleted {
		return false
	}
	e.visible = false
	return true
}

// Len returns the number of live entities.
func (a *Arena) Len() int {
	return a.live
}

// ByIndex returns the live entity in a slot.
func (a *Arena) ByIndex(index int32) (*Entity, bool) {
	e := a.Slot(index)
	if e == nil || e.deleted {
		return nil, false
	}
	return e, true
}

// Lookup returns the live entity with the given index and serial.
func (a *Arena) Lookup(index int32, serial uint32) (*Entity, bool) {
	e, ok := a.ByIndex(index)
	if !ok || e.serial != serial {
		return nil, false
	}
	return e, true
}

// Get resolves a networked handle to a live entity. Handles carry a
// truncated serial, so only those bits are compared.
func (a *Arena) Get(handle uint32) (*Entity, bool) {
	if !IsHandleValid(handle) {
		return nil, false
	}
	e, ok := a.ByIndex(HandleIndex(handle))
	if !ok || HandleSerial(e.Handle()) != HandleSerial(handle) {
		return nil, false
	}
	return e, true
}

// Each calls fn for every live entity in index order until fn returns
// false.
func (a *Arena) Each(fn func(*Entity) bool) {
	for _, e := range a.slots {
		if e == nil || e.deleted {
			continue
		}
		if !fn(e) {
			return
		}
	}
}

// Value reads one field of a live entity.
func (a *Arena) Value(index int32, fp fieldpath.FieldPath) (fieldvalue.Value, error) {
	e, ok := a.ByIndex(index)
	if !ok {
		return fieldvalue.Value{}, fmt.Errorf("%w: entity %d", ErrNotFound, index)
	}
	v, ok := e.Value(fp)
	if !ok {
		return fieldvalue.Value{}, fmt.Errorf("%w: entity %d field %s", ErrNotFound, index, fp)
	}
	return v, nil
}

// ValueByName reads one field of a live entity by dotted name.
func (a *Arena) ValueByName(index int32, name string) (fieldvalue.Value, error) {
	if a.resolver == nil {
		return fieldvalue.Value{}, errors.New("entity: arena has no resolver")
	}
	e, ok := a.ByIndex(index)
	if !ok {
		return fieldvalue.Value{}, fmt.Errorf("%w: entity %d", ErrNotFound, index)
	}
	fp, err := a.resolver.PathForName(e.serializer, name)
	if err != nil {
		return fieldvalue.Value{}, err
	}
	return a.Value(index, fp)
}

// MarkDirty records that an entity changed at tick. The dirty set is
// cleared whenever a later tick is marked.
func (a *Arena) MarkDirty(index int32, tick uint32) {
	if tick != a.dirtyTick {
		a.ClearDirty(tick)
	}
	if checkIndex(index) != nil || a.isDirty[index] {
		return
	}
	a.isDirty[index] = true
	a.dirty = append(a.dirty, index)
}

// ClearDirty empties the dirty set and starts tracking tick.
func (a *Arena) ClearDirty(tick uint32) {
	for _, i := range a.dirty {
		a.isDirty[i] = false
	}
	a.dirty = a.dirty[:0]
	a.dirtyTick = tick
}

// Dirty returns the indices changed in the most recent tick, in ascending
// order.
func (a *Arena) Dirty() []int32 {
	out := slices.Clone(a.dirty)
	slices.Sort(out)
	return out
}

// DirtyTick returns the tick the dirty set belongs to.
func (a *Arena) DirtyTick() uint32 {
	return a.dirtyTick
}
