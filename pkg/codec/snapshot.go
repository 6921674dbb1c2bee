package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
)

// snapshotVersion leads every encoded snapshot.
const snapshotVersion = 1

// MarshalSnapshot encodes a snapshot for storage. Integers are uvarints,
// signed ones zig-zag encoded, floats are raw little-endian bits.
//
//	[version u8][tick][count]
//	entity: [index][serial][class id][class][visible u8][field count] fields
//	field:  [depth u8][indices] [kind u8][bits][floats] [string]
func MarshalSnapshot(s *entity.Snapshot) []byte {
	buf := []byte{snapshotVersion}
	buf = binary.AppendUvarint(buf, uint64(s.Tick))
	buf = binary.AppendUvarint(buf, uint64(len(s.Entities)))
	for _, st := range s.Entities {
		buf = binary.AppendVarint(buf, int64(st.Index))
		buf = binary.AppendUvarint(buf, uint64(st.Serial))
		buf = binary.AppendVarint(buf, int64(st.ClassID))
		buf = appendString(buf, st.Class)
		if st.Visible {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = binary.AppendUvarint(buf, uint64(len(st.Fields)))
		for _, f := range st.Fields {
			buf = append(buf, byte(f.Path.Len()))
			for i := 0; i < f.Path.Len(); i++ {
				buf = binary.AppendVarint(buf, int64(f.Path.At(i)))
			}
			kind, bits, vec, str := f.Value.Raw()
			buf = append(buf, byte(kind))
			buf = binary.AppendUvarint(buf, bits)
			for i := 0; i < f.Value.Dims(); i++ {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(vec[i]))
			}
			if kind == fieldvalue.KindString {
				buf = appendString(buf, str)
			}
		}
	}
	return buf
}

// UnmarshalSnapshot decodes a snapshot written by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (*entity.Snapshot, error) {
	d := &snapDecoder{buf: data}
	if v := d.u8(); v != snapshotVersion && d.err == nil {
		return nil, fmt.Errorf("%w: snapshot version %d", ErrBadPayload, v)
	}
	s := &entity.Snapshot{Tick: uint32(d.uvarint())}
	n := d.count()
	if d.err != nil {
		return nil, d.err
	}
	s.Entities = make([]entity.State, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		st := entity.State{
			Index:   int32(d.varint()),
			Serial:  uint32(d.uvarint()),
			ClassID: int32(d.varint()),
			Class:   d.text(),
			Visible: d.u8() != 0,
		}
		nf := d.count()
		st.Fields = make([]entity.Field, 0, nf)
		for j := 0; j < nf && d.err == nil; j++ {
			f, err := d.field()
			if err != nil {
				return nil, err
			}
			st.Fields = append(st.Fields, f)
		}
		s.Entities = append(s.Entities, st)
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after snapshot", ErrBadPayload, len(d.buf))
	}
	return s, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// snapDecoder consumes buf and latches the first error.
type snapDecoder struct {
	buf []byte
	err error
}

func (d *snapDecoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: truncated snapshot at %s", ErrBadPayload, what)
	}
	d.buf = nil
}

func (d *snapDecoder) u8() byte {
	if len(d.buf) == 0 {
		d.fail("byte")
		return 0
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b
}

func (d *snapDecoder) uvarint() uint64 {
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.fail("uvarint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *snapDecoder) varint() int64 {
	v, n := binary.Varint(d.buf)
	if n <= 0 {
		d.fail("varint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

// count reads a length bounded by the remaining input.
func (d *snapDecoder) count() int {
	n := d.uvarint()
	if n > uint64(len(d.buf)) {
		d.fail("count")
		return 0
	}
	return int(n)
}

func (d *snapDecoder) text() string {
	n := d.count()
	if d.err != nil {
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

func (d *snapDecoder) field() (entity.Field, error) {
	depth := int(d.u8())
	if d.err == nil && (depth == 0 || depth > fieldpath.MaxDepth) {
		return entity.Field{}, fmt.Errorf("%w: field path depth %d", ErrBadPayload, depth)
	}
	idx := make([]int, depth)
	for i := range idx {
		idx[i] = int(d.varint())
	}
	kind := fieldvalue.Kind(d.u8())
	bits := d.uvarint()
	var vec [4]float32
	dims := fieldvalue.KindDims(kind)
	for i := 0; i < dims; i++ {
		if len(d.buf) < 4 {
			d.fail("float")
			break
		}
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(d.buf))
		d.buf = d.buf[4:]
	}
	var str string
	if kind == fieldvalue.KindString {
		str = d.text()
	}
	if d.err != nil {
		return entity.Field{}, d.err
	}
	v, err := fieldvalue.FromRaw(kind, bits, vec, str)
	if err != nil {
		return entity.Field{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return entity.Field{Path: fieldpath.New(idx...), Value: v}, nil
}
