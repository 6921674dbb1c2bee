package fieldpath

import (
	"errors"
	"fmt"

	"github.com/ssargent/replaykit/pkg/bitreader"
)

// ErrUnencodable is returned for paths no single operation can reach.
var ErrUnencodable = errors.New("fieldpath: path cannot be encoded")

// Encoder writes a block of paths, choosing one operation per transition.
type Encoder struct {
	w  *bitreader.Writer
	fp FieldPath
}

// NewEncoder creates an encoder positioned at the start of a block.
func NewEncoder(w *bitreader.Writer) *Encoder {
	return &Encoder{w: w, fp: root()}
}

// Reset starts a new block.
func (e *Encoder) Reset() {
	e.fp = root()
}

// Encode writes the operation that turns the previous path into next.
func (e *Encoder) Encode(next FieldPath) error {
	cur := e.fp
	d1, d2 := cur.Len(), next.Len()
	for i := 0; i < d2; i++ {
		if next.path[i] < 0 {
			return fmt.Errorf("%w: negative index in %s", ErrUnencodable, next)
		}
	}

	switch {
	case d1 == d2:
		e.encodeSameDepth(cur, next)
	case d2 > d1:
		WriteOp(e.w, OpPushNAndNonTopological)
		for i := 0; i < d1; i++ {
			delta := next.path[i] - cur.path[i]
			e.w.WriteBool(delta != 0)
			if delta != 0 {
				e.w.WriteVarint32(delta - 1)
			}
		}
		e.w.WriteUBitVar(uint32(d2 - d1))
		for i := d1; i < d2; i++ {
			e.w.WriteUBitVarFieldPath(uint32(next.path[i]))
		}
	default:
		WriteOp(e.w, OpPopNAndNonTopographical)
		e.w.WriteUBitVarFieldPath(uint32(d1 - d2))
		e.writeComplex(cur, next, d2)
	}

	e.fp = next
	return nil
}

func (e *Encoder) encodeSameDepth(cur, next FieldPath) {
	last := int(cur.last)
	for i := 0; i < last; i++ {
		if cur.path[i] != next.path[i] {
			WriteOp(e.w, OpNonTopoComplex)
			e.writeComplex(cur, next, last+1)
			return
		}
	}
	switch delta := next.path[last] - cur.path[last]; {
	case delta == 1:
		WriteOp(e.w, OpPlusOne)
	case delta == 2:
		WriteOp(e.w, OpPlusTwo)
	case delta == 3:
		WriteOp(e.w, OpPlusThree)
	case delta == 4:
		WriteOp(e.w, OpPlusFour)
	case delta >= 5:
		WriteOp(e.w, OpPlusN)
		e.w.WriteUBitVarFieldPath(uint32(delta - 5))
	default:
		WriteOp(e.w, OpNonTopoComplex)
		e.writeComplex(cur, next, last+1)
	}
}

func (e *Encoder) writeComplex(cur, next FieldPath, depth int) {
	for i := 0; i < depth; i++ {
		delta := next.path[i] - cur.path[i]
		e.w.WriteBool(delta != 0)
		if delta != 0 {
			e.w.WriteVarint32(delta)
		}
	}
}

// Finish writes the terminal symbol.
func (e *Encoder) Finish() {
	WriteOp(e.w, OpFinish)
}

// EncodeAll writes a complete block: every path followed by the terminal
// symbol.
func EncodeAll(w *bitreader.Writer, paths []FieldPath) error {
	e := NewEncoder(w)
	for _, fp := range paths {
		if err := e.Encode(fp); err != nil {
			return err
		}
	}
	e.Finish()
	return nil
}
