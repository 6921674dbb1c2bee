// Package fieldpath decodes the Huffman coded field path grammar used by
// Source 2 entity deltas.
//
// A field path addresses one (possibly nested) field of an entity. Paths are
// not transmitted directly: the stream carries a sequence of operations that
// mutate a shared path stack, and every operation except the terminal one
// yields the current stack as the next path. Two consecutive paths of one
// delta block are therefore never independent, and a Decoder must see every
// operation of a block in order.
package fieldpath

import (
	"errors"
	"strconv"
	"strings"
)

// MaxDepth is the deepest path the protocol can address.
const MaxDepth = 7

var (
	// ErrPathTooLong is returned when a path would exceed MaxDepth or a
	// delta block exceeds its operation budget.
	ErrPathTooLong = errors.New("fieldpath: path too long")

	// ErrMalformedSymbol is returned when a decoded operation cannot be
	// applied to the current path stack; the stream is desynchronized.
	ErrMalformedSymbol = errors.New("fieldpath: malformed huffman symbol")
)

// FieldPath is a fixed capacity stack of indices. It is a comparable value
// and is used directly as a map key for entity field storage. Slots beyond
// the last index are always zero.
type FieldPath struct {
	path [MaxDepth]int32
	last int8
}

// New builds a path from indices. It panics if more than MaxDepth indices
// are given or none at all; it is meant for fixtures and literals.
func New(indices ...int) FieldPath {
	if len(indices) == 0 || len(indices) > MaxDepth {
		panic("fieldpath: invalid path length " + strconv.Itoa(len(indices)))
	}
	var fp FieldPath
	for i, v := range indices {
		fp.path[i] = int32(v)
	}
	fp.last = int8(len(indices) - 1)
	return fp
}

// root is the stack every delta block starts from.
func root() FieldPath {
	return FieldPath{path: [MaxDepth]int32{-1}}
}

// Len returns the number of indices in the path.
func (fp FieldPath) Len() int {
	return int(fp.last) + 1
}

// At returns the index at depth i.
func (fp FieldPath) At(i int) int {
	return int(fp.path[i])
}

// Last returns the deepest index.
func (fp FieldPath) Last() int {
	return int(fp.path[fp.last])
}

// HasPrefix reports whether p is a strict or equal prefix of fp.
func (fp FieldPath) HasPrefix(p FieldPath) bool {
	if p.last > fp.last {
		return false
	}
	for i := 0; i <= int(p.last); i++ {
		if fp.path[i] != p.path[i] {
			return false
		}
	}
	return true
}

// Compare orders paths lexicographically, shorter prefixes first.
func (fp FieldPath) Compare(o FieldPath) int {
	n := min(fp.Len(), o.Len())
	for i := 0; i < n; i++ {
		switch {
		case fp.path[i] < o.path[i]:
			return -1
		case fp.path[i] > o.path[i]:
			return 1
		}
	}
	return fp.Len() - o.Len()
}

func (fp FieldPath) String() string {
	var sb strings.Builder
	for i := 0; i <= int(fp.last); i++ {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.Itoa(int(fp.path[i])))
	}
	return sb.String()
}

func (fp *FieldPath) inc(i int, delta int32) {
	fp.path[i] += delta
}

func (fp *FieldPath) incLast(delta int32) {
	fp.path[fp.last] += delta
}

func (fp *FieldPath) push(v int32) error {
	if int(fp.last)+1 >= MaxDepth {
		return ErrPathTooLong
	}
	fp.last++
	fp.path[fp.last] = v
	return nil
}

func (fp *FieldPath) pop(n int) error {
	if n < 0 || n > int(fp.last) {
		return ErrMalformedSymbol
	}
	for i := 0; i < n; i++ {
		fp.path[fp.last] = 0
		fp.last--
	}
	return nil
}

// Equal reports whether two paths are identical.
func (fp FieldPath) Equal(o FieldPath) bool {
	return fp == o
}
