package engine

import (
	"fmt"

	"github.com/ssargent/replaykit/pkg/bitreader"
	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
	"github.com/ssargent/replaykit/pkg/schema"
)

// Assignment is one field write in a delta block.
type Assignment struct {
	Path  fieldpath.FieldPath
	Value fieldvalue.Value
}

// EncodeFields writes a delta block for s: the path block followed by one
// value per path.
func EncodeFields(w *bitreader.Writer, res *schema.Resolver, s *schema.Serializer, fields []Assignment) error {
	resolved := make([]schema.Resolution, 0, len(fields))
	paths := make([]fieldpath.FieldPath, 0, len(fields))
	for _, f := range fields {
		r, err := res.Resolve(s, f.Path)
		if err != nil {
			return err
		}
		resolved = append(resolved, r)
		paths = append(paths, f.Path)
	}
	if err := fieldpath.EncodeAll(w, paths); err != nil {
		return err
	}
	for i, f := range fields {
		if err := resolved[i].Codec.Encode(w, f.Value); err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
	}
	return nil
}

// EncodeBaseline produces instance baseline data for a class.
func EncodeBaseline(res *schema.Resolver, s *schema.Serializer, fields []Assignment) ([]byte, error) {
	w := bitreader.NewWriter()
	if err := EncodeFields(w, res, s, fields); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// PacketBuilder writes entity delta packets. Entries must be added in
// increasing index order.
type PacketBuilder struct {
	reg   *schema.Registry
	res   *schema.Resolver
	w     *bitreader.Writer
	last  int32
	count int32
}

// NewPacketBuilder creates a builder that encodes against reg.
func NewPacketBuilder(reg *schema.Registry) *PacketBuilder {
	return &PacketBuilder{
		reg:  reg,
		res:  schema.NewResolver(reg),
		w:    bitreader.NewWriter(),
		last: -1,
	}
}

func (b *PacketBuilder) header(index int32, cmd uint64) error {
	if index <= b.last || index >= entity.MaxEntities {
		return fmt.Errorf("%w: entry index %d after %d", entity.ErrBadIndex, index, b.last)
	}
	b.w.WriteUBitVar(uint32(index - b.last - 1))
	b.w.WriteBits(cmd, 2)
	b.last = index
	b.count++
	return nil
}

// Create adds an entity create with its own deltas.
func (b *PacketBuilder) Create(index, classID int32, serial uint32, fields ...Assignment) error {
	s, err := b.reg.Get(classID)
	if err != nil {
		return err
	}
	if err := b.header(index, cmdCreate); err != nil {
		return err
	}
	b.w.WriteBits(uint64(classID), b.reg.ClassIDBits())
	b.w.WriteBits(uint64(serial), entity.SerialBits)
	b.w.WriteUVarint32(0)
	return EncodeFields(b.w, b.res, s, fields)
}

// Update adds a delta for an entity of the given class.
func (b *PacketBuilder) Update(index, classID int32, fields ...Assignment) error {
	s, err := b.reg.Get(classID)
	if err != nil {
		return err
	}
	if err := b.header(index, cmdUpdate); err != nil {
		return err
	}
	return EncodeFields(b.w, b.res, s, fields)
}

// Leave adds a visibility leave.
func (b *PacketBuilder) Leave(index int32) error {
	return b.header(index, cmdLeave)
}

// Delete adds a destroy.
func (b *PacketBuilder) Delete(index int32) error {
	return b.header(index, cmdDelete)
}

// Packet returns the finished payload and resets the builder.
func (b *PacketBuilder) Packet(isDelta bool) *PacketEntities {
	pe := &PacketEntities{
		UpdatedEntries: b.count,
		IsDelta:        isDelta,
		Data:           b.w.Bytes(),
	}
	b.w = bitreader.NewWriter()
	b.last = -1
	b.count = 0
	return pe
}
