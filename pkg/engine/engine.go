// Package engine applies entity delta messages to an entity arena.
//
// An Engine owns the complete decoding state of one replay: the serializer
// registry, the arena, instance baselines and the field path decoder
// context. It is synchronous and must be driven from a single goroutine;
// independent replays use independent engines.
package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ssargent/replaykit/pkg/bitreader"
	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/schema"
)

// Entity entry commands. Bit 0 is leave, bit 1 is enter or delete.
const (
	cmdUpdate = 0b00
	cmdLeave  = 0b01
	cmdCreate = 0b10
	cmdDelete = 0b11
)

// Options configures an Engine.
type Options struct {
	// MaxFieldPathOps bounds the operations of one delta block.
	MaxFieldPathOps int
	// SkipFullPackets ignores full packets after the first one.
	SkipFullPackets bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Observer defaults to a no-op observer.
	Observer Observer
}

// Engine decodes one replay.
type Engine struct {
	reg       *schema.Registry
	res       *schema.Resolver
	arena     *entity.Arena
	dec       *fieldpath.Decoder
	paths     []fieldpath.FieldPath
	baselines map[int32][]byte
	decoded   map[int32]*entity.Entity
	tick      uint32
	fullSeen  bool
	opts      Options
	logger    *slog.Logger
	observer  Observer
}

// New creates an engine over reg. reg may already hold records; further
// schema messages are applied to it.
func New(reg *schema.Registry, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	res := schema.NewResolver(reg)
	return &Engine{
		reg:       reg,
		res:       res,
		arena:     entity.NewArena(res),
		dec:       fieldpath.NewDecoder(opts.MaxFieldPathOps),
		paths:     make([]fieldpath.FieldPath, 0, 256),
		baselines: make(map[int32][]byte),
		decoded:   make(map[int32]*entity.Entity),
		opts:      opts,
		logger:    opts.Logger,
		observer:  opts.Observer,
	}
}

// Arena returns the entity arena. It must only be read between calls to
// Apply.
func (e *Engine) Arena() *entity.Arena { return e.arena }

// Registry returns the serializer registry.
func (e *Engine) Registry() *schema.Registry { return e.reg }

// Resolver returns the field path resolver.
func (e *Engine) Resolver() *schema.Resolver { return e.res }

// Tick returns the tick of the last applied message.
func (e *Engine) Tick() uint32 { return e.tick }

// Apply decodes one message and mutates the arena. Any error is a
// *DecodeError and leaves the replay unusable.
func (e *Engine) Apply(msg *Message) error {
	start := time.Now()
	err := e.apply(msg)
	e.observer.MessageApplied(msg.Kind, time.Since(start), err)
	return err
}

func (e *Engine) apply(msg *Message) error {
	e.tick = msg.Tick
	switch msg.Kind {
	case KindPacketEntities:
		if msg.Entities == nil {
			return e.fail(msg, -1, fmt.Errorf("%w: missing entities payload", ErrBadMessage))
		}
		return e.applyEntities(msg)
	case KindSerializers, KindClassInfo:
		if msg.Schema == nil {
			return e.fail(msg, -1, fmt.Errorf("%w: missing schema payload", ErrBadMessage))
		}
		if err := e.reg.Apply(msg.Schema); err != nil {
			return e.fail(msg, -1, err)
		}
		return nil
	case KindBaseline:
		for _, b := range msg.Baselines {
			e.setBaseline(b.ClassID, b.Data)
		}
		return nil
	case KindStringTableBaselines:
		for _, b := range msg.Baselines {
			id, err := strconv.ParseInt(b.Key, 10, 32)
			if err != nil {
				return e.fail(msg, -1, fmt.Errorf("%w: baseline key %q", ErrBadMessage, b.Key))
			}
			e.setBaseline(int32(id), b.Data)
		}
		return nil
	}
	return e.fail(msg, -1, fmt.Errorf("%w: unknown kind %d", ErrBadMessage, msg.Kind))
}

func (e *Engine) fail(msg *Message, index int32, err error) error {
	return &DecodeError{Tick: msg.Tick, Kind: msg.Kind, Index: index, Err: err}
}

// setBaseline stores a class baseline and drops its decoded form.
func (e *Engine) setBaseline(classID int32, data []byte) {
	e.baselines[classID] = append([]byte(nil), data...)
	delete(e.decoded, classID)
}

func (e *Engine) applyEntities(msg *Message) error {
	pe := msg.Entities
	if !pe.IsDelta {
		if e.fullSeen && e.opts.SkipFullPackets {
			e.logger.Debug("skipping full packet", "tick", msg.Tick)
			return nil
		}
		e.fullSeen = true
	}
	if e.arena.DirtyTick() != msg.Tick {
		e.arena.ClearDirty(msg.Tick)
	}

	r := bitreader.New(pe.Data)
	index := int32(-1)
	for i := int32(0); i < pe.UpdatedEntries; i++ {
		delta, err := r.ReadUBitVar()
		if err != nil {
			return e.fail(msg, index, err)
		}
		index += int32(delta) + 1
		if index >= entity.MaxEntities {
			return e.fail(msg, index, fmt.Errorf("%w: %d", entity.ErrBadIndex, index))
		}
		cmd, err := r.ReadBits(2)
		if err != nil {
			return e.fail(msg, index, err)
		}

		switch cmd {
		case cmdCreate:
			err = e.create(r, index)
		case cmdUpdate:
			err = e.update(r, index)
		case cmdLeave:
			if e.arena.Leave(index) {
				e.observer.EntityChanged(OpLeave)
			}
		case cmdDelete:
			if e.arena.Delete(index) {
				e.observer.EntityChanged(OpDelete)
			}
		}
		if err != nil {
			return e.fail(msg, index, err)
		}
	}
	e.observer.LiveEntities(e.arena.Len())
	return nil
}

func (e *Engine) create(r *bitreader.Reader, index int32) error {
	classID, err := r.ReadBits(e.reg.ClassIDBits())
	if err != nil {
		return err
	}
	serial, err := r.ReadBits(entity.SerialBits)
	if err != nil {
		return err
	}
	if _, err := r.ReadUVarint32(); err != nil {
		return err
	}

	base, err := e.baseline(int32(classID))
	if err != nil {
		return err
	}
	ent := base.Clone(index, uint32(serial))
	if err := e.readFields(r, ent, true); err != nil {
		return err
	}

	replaced, err := e.arena.Put(ent)
	if err != nil {
		return err
	}
	if replaced != nil {
		e.logger.Debug("create over live entity", "index", index, "old_serial", replaced.Serial(), "serial", serial)
	}
	e.arena.MarkDirty(index, e.tick)
	e.observer.EntityChanged(OpCreate)
	return nil
}

func (e *Engine) update(r *bitreader.Reader, index int32) error {
	ent := e.arena.Slot(index)
	if ent == nil {
		return ErrUnknownEntity
	}
	// Left and deleted entities still consume their delta bits.
	apply := !ent.Deleted() && ent.Visible()
	if err := e.readFields(r, ent, apply); err != nil {
		return err
	}
	if apply {
		e.arena.MarkDirty(index, e.tick)
		e.observer.EntityChanged(OpUpdate)
	}
	return nil
}

// baseline returns the decoded baseline entity of a class, decoding and
// caching it on first use. Classes without a baseline start empty.
func (e *Engine) baseline(classID int32) (*entity.Entity, error) {
	if ent, ok := e.decoded[classID]; ok {
		return ent, nil
	}
	ser, err := e.reg.Get(classID)
	if err != nil {
		return nil, err
	}
	ent := entity.New(-1, 0, classID, ser)
	if data, ok := e.baselines[classID]; ok {
		if err := e.readFields(bitreader.New(data), ent, true); err != nil {
			return nil, fmt.Errorf("baseline of class %d: %w", classID, err)
		}
	} else {
		e.logger.Debug("class has no baseline", "class_id", classID, "class", ser.Name)
	}
	e.decoded[classID] = ent
	return ent, nil
}

// readFields decodes one delta block: every path first, then one value per
// path in the same order. Values are stored only if apply is set.
func (e *Engine) readFields(r *bitreader.Reader, ent *entity.Entity, apply bool) error {
	var err error
	e.paths, err = e.dec.ReadAll(r, e.paths[:0])
	if err != nil {
		return err
	}
	ser := ent.Serializer()
	for _, fp := range e.paths {
		res, err := e.res.Resolve(ser, fp)
		if err != nil {
			return err
		}
		v, err := res.Codec.Decode(r)
		if err != nil {
			return fmt.Errorf("%s: %w", res.Field.Name, err)
		}
		if apply {
			ent.Set(fp, res.Role, v)
		}
	}
	e.observer.FieldsDecoded(len(e.paths))
	return nil
}
