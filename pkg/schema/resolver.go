package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
)

// MaxDynamicLength bounds element indices of dynamic arrays and tables.
const MaxDynamicLength = 1 << 14

// Role tells what a resolved slot stores.
type Role uint8

const (
	// RoleValue is a leaf value or array element.
	RoleValue Role = iota
	// RoleLength is the element count of a dynamic array or table.
	RoleLength
	// RolePresence is the presence flag of an optional struct.
	RolePresence
)

func (r Role) String() string {
	switch r {
	case RoleValue:
		return "value"
	case RoleLength:
		return "length"
	case RolePresence:
		return "presence"
	}
	return "Role(" + strconv.Itoa(int(r)) + ")"
}

// Resolution is the slot a field path addresses.
type Resolution struct {
	Field *Field
	Codec *fieldvalue.Codec
	Role  Role
}

// Resolver resolves paths against serializers of one registry.
type Resolver struct {
	reg *Registry
}

// NewResolver creates a resolver over reg.
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{reg: reg}
}

func outOfRange(fp fieldpath.FieldPath, depth int, format string, args ...any) error {
	return fmt.Errorf("%w: %s at depth %d: %s", ErrPathOutOfRange, fp, depth, fmt.Sprintf(format, args...))
}

// Resolve walks fp through s and returns the addressed slot.
func (r *Resolver) Resolve(s *Serializer, fp fieldpath.FieldPath) (Resolution, error) {
	depth := 0
	for {
		idx := fp.At(depth)
		if idx < 0 || idx >= len(s.Fields) {
			return Resolution{}, outOfRange(fp, depth, "%s has %d fields", s.Name, len(s.Fields))
		}
		f := &s.Fields[idx]
		rest := fp.Len() - depth - 1

		switch f.Kind {
		case KindScalar, KindString, KindEnum, KindHandle:
			if rest != 0 {
				return Resolution{}, outOfRange(fp, depth, "%s is a leaf", f.Name)
			}
			return Resolution{Field: f, Codec: f.Codec, Role: RoleValue}, nil

		case KindFixedArray:
			if rest != 1 {
				return Resolution{}, outOfRange(fp, depth, "%s needs one element index", f.Name)
			}
			if j := fp.At(depth + 1); j < 0 || j >= f.Length {
				return Resolution{}, outOfRange(fp, depth+1, "%s has %d elements", f.Name, f.Length)
			}
			return Resolution{Field: f, Codec: f.Codec, Role: RoleValue}, nil

		case KindDynamicArray:
			switch rest {
			case 0:
				return Resolution{Field: f, Codec: lengthCodec, Role: RoleLength}, nil
			case 1:
				if j := fp.At(depth + 1); j < 0 || j >= MaxDynamicLength {
					return Resolution{}, outOfRange(fp, depth+1, "element index %d", j)
				}
				return Resolution{Field: f, Codec: f.Codec, Role: RoleValue}, nil
			}
			return Resolution{}, outOfRange(fp, depth, "%s elements are leaves", f.Name)

		case KindDynamicTable:
			if rest == 0 {
				return Resolution{Field: f, Codec: lengthCodec, Role: RoleLength}, nil
			}
			if rest == 1 {
				return Resolution{}, outOfRange(fp, depth, "%s elements are tables", f.Name)
			}
			if j := fp.At(depth + 1); j < 0 || j >= MaxDynamicLength {
				return Resolution{}, outOfRange(fp, depth+1, "element index %d", j)
			}
			s = r.reg.Serializer(f.Serializer)
			depth += 2

		case KindStruct:
			if rest == 0 {
				return Resolution{Field: f, Codec: f.Codec, Role: RolePresence}, nil
			}
			s = r.reg.Serializer(f.Serializer)
			depth++

		default:
			return Resolution{}, outOfRange(fp, depth, "unknown field kind %s", f.Kind)
		}
	}
}

// NameForPath renders fp as a dotted name; element indices are written as
// four digit numbers, e.g. "m_vecPlayers.0002.m_iKills".
func (r *Resolver) NameForPath(s *Serializer, fp fieldpath.FieldPath) (string, error) {
	if _, err := r.Resolve(s, fp); err != nil {
		return "", err
	}
	var sb strings.Builder
	for depth := 0; depth < fp.Len(); {
		f := &s.Fields[fp.At(depth)]
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(f.Name)
		depth++
		switch f.Kind {
		case KindFixedArray, KindDynamicArray, KindDynamicTable:
			if depth < fp.Len() {
				fmt.Fprintf(&sb, ".%04d", fp.At(depth))
				depth++
			}
		}
		if f.Serializer != NoSerializer {
			s = r.reg.Serializer(f.Serializer)
		}
	}
	return sb.String(), nil
}

// PathForName is the inverse of NameForPath.
func (r *Resolver) PathForName(s *Serializer, name string) (fieldpath.FieldPath, error) {
	root := s
	parts := strings.Split(name, ".")
	indices := make([]int, 0, fieldpath.MaxDepth)
	for i := 0; i < len(parts); i++ {
		idx, ok := s.FieldIndex(parts[i])
		if !ok {
			return fieldpath.FieldPath{}, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, s.Name, parts[i])
		}
		indices = append(indices, idx)
		f := &s.Fields[idx]
		switch f.Kind {
		case KindFixedArray, KindDynamicArray, KindDynamicTable:
			if i+1 < len(parts) {
				i++
				n, err := strconv.Atoi(parts[i])
				if err != nil {
					return fieldpath.FieldPath{}, fmt.Errorf("%w: %q is not an element index", ErrUnknownField, parts[i])
				}
				indices = append(indices, n)
			}
		}
		if f.Serializer != NoSerializer {
			s = r.reg.Serializer(f.Serializer)
		}
		if len(indices) > fieldpath.MaxDepth {
			return fieldpath.FieldPath{}, fmt.Errorf("%w: %s", fieldpath.ErrPathTooLong, name)
		}
	}
	if len(indices) == 0 {
		return fieldpath.FieldPath{}, fmt.Errorf("%w: empty name", ErrUnknownField)
	}
	fp := fieldpath.New(indices...)
	if _, err := r.Resolve(root, fp); err != nil {
		return fieldpath.FieldPath{}, err
	}
	return fp, nil
}
