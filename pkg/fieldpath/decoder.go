package fieldpath

import (
	"fmt"

	"github.com/ssargent/replaykit/pkg/bitreader"
)

// DefaultMaxOps bounds the operations of one delta block.
const DefaultMaxOps = 16384

// Decoder is the per delta block decoding context. It owns the path stack
// that successive operations mutate; callers Reset it at the start of every
// block and must not share it between goroutines.
type Decoder struct {
	fp     FieldPath
	ops    int
	maxOps int
	done   bool
}

// NewDecoder creates a decoder that fails with ErrPathTooLong once a block
// uses more than maxOps operations. maxOps <= 0 selects DefaultMaxOps.
func NewDecoder(maxOps int) *Decoder {
	if maxOps <= 0 {
		maxOps = DefaultMaxOps
	}
	d := &Decoder{maxOps: maxOps}
	d.Reset()
	return d
}

// Reset starts a new delta block.
func (d *Decoder) Reset() {
	d.fp = root()
	d.ops = 0
	d.done = false
}

// Done reports whether the terminal symbol has been read.
func (d *Decoder) Done() bool {
	return d.done
}

// Next reads one operation and returns the resulting path. ok is false once
// the terminal symbol is read.
func (d *Decoder) Next(r *bitreader.Reader) (fp FieldPath, ok bool, err error) {
	if d.done {
		return FieldPath{}, false, nil
	}
	op, err := ReadOp(r)
	if err != nil {
		return FieldPath{}, false, err
	}
	d.ops++
	if d.ops > d.maxOps {
		return FieldPath{}, false, fmt.Errorf("%w: more than %d operations", ErrPathTooLong, d.maxOps)
	}
	if op == OpFinish {
		d.done = true
		return FieldPath{}, false, nil
	}
	if err := opTable[op].apply(&d.fp, r); err != nil {
		return FieldPath{}, false, fmt.Errorf("%s at %s: %w", op, d.fp, err)
	}
	return d.fp, true, nil
}

// ReadAll decodes a whole block, appending paths to dst.
func (d *Decoder) ReadAll(r *bitreader.Reader, dst []FieldPath) ([]FieldPath, error) {
	d.Reset()
	for {
		fp, ok, err := d.Next(r)
		if err != nil {
			return dst, err
		}
		if !ok {
			return dst, nil
		}
		dst = append(dst, fp)
	}
}
