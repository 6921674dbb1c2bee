// Package fieldvalue holds decoded entity field values and the closed set
// of wire codecs that produce them.
package fieldvalue

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the concrete type carried by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindFloat32
	KindVector2
	KindVector3
	KindVector4
	KindQAngle
	KindString
	KindHandle
	KindEnum
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindVector2: "vector2",
	KindVector3: "vector3",
	KindVector4: "vector4",
	KindQAngle:  "qangle",
	KindString:  "string",
	KindHandle:  "handle",
	KindEnum:    "enum",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged union over the primitive field kinds. The zero Value is
// invalid. Values are immutable and safe to copy.
type Value struct {
	kind Kind
	bits uint64
	vec  [4]float32
	str  string
}

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.bits = 1
	}
	return v
}

func Int32(i int32) Value   { return Value{kind: KindInt32, bits: uint64(int64(i))} }
func Int64(i int64) Value   { return Value{kind: KindInt64, bits: uint64(i)} }
func Uint32(u uint32) Value { return Value{kind: KindUint32, bits: uint64(u)} }
func Uint64(u uint64) Value { return Value{kind: KindUint64, bits: u} }
func Handle(h uint32) Value { return Value{kind: KindHandle, bits: uint64(h)} }
func Enum(e uint64) Value   { return Value{kind: KindEnum, bits: e} }
func String(s string) Value { return Value{kind: KindString, str: s} }

func Float32(f float32) Value {
	return Value{kind: KindFloat32, vec: [4]float32{f}}
}

func Vector2(x, y float32) Value {
	return Value{kind: KindVector2, vec: [4]float32{x, y}}
}

func Vector3(x, y, z float32) Value {
	return Value{kind: KindVector3, vec: [4]float32{x, y, z}}
}

func Vector4(x, y, z, w float32) Value {
	return Value{kind: KindVector4, vec: [4]float32{x, y, z, w}}
}

// QAngle holds pitch, yaw and roll in degrees.
func QAngle(pitch, yaw, roll float32) Value {
	return Value{kind: KindQAngle, vec: [4]float32{pitch, yaw, roll}}
}

// Kind returns the type tag.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsBool returns the boolean payload.
func (v Value) AsBool() bool { return v.bits != 0 }

// AsInt returns signed payloads, widening int32.
func (v Value) AsInt() int64 {
	if v.kind == KindInt32 {
		return int64(int32(v.bits))
	}
	return int64(v.bits)
}

// AsUint returns unsigned, handle and enum payloads.
func (v Value) AsUint() uint64 { return v.bits }

// AsFloat returns the scalar float payload.
func (v Value) AsFloat() float32 { return v.vec[0] }

// AsVector returns the vector or angle components; unused trailing
// components are zero.
func (v Value) AsVector() [4]float32 { return v.vec }

// AsString returns the string payload.
func (v Value) AsString() string { return v.str }

// Dims returns the number of float components for vector kinds and 1 for
// scalar floats.
func (v Value) Dims() int { return KindDims(v.kind) }

// KindDims returns the number of float components carried by kind.
func KindDims(k Kind) int {
	switch k {
	case KindFloat32:
		return 1
	case KindVector2:
		return 2
	case KindVector3, KindQAngle:
		return 3
	case KindVector4:
		return 4
	}
	return 0
}

// Equal reports whether two values have the same kind and bit-identical
// payloads. NaN floats compare equal to themselves.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.bits != o.bits || v.str != o.str {
		return false
	}
	for i := range v.vec {
		if math.Float32bits(v.vec[i]) != math.Float32bits(o.vec[i]) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.AsInt(), 10)
	case KindUint32, KindUint64, KindEnum:
		return strconv.FormatUint(v.bits, 10)
	case KindHandle:
		return fmt.Sprintf("handle(%#x)", v.bits)
	case KindFloat32:
		return strconv.FormatFloat(float64(v.vec[0]), 'g', -1, 32)
	case KindVector2, KindVector3, KindVector4, KindQAngle:
		return fmt.Sprint(v.vec[:v.Dims()])
	case KindString:
		return strconv.Quote(v.str)
	}
	return "<invalid>"
}

// Interface returns the payload as a plain Go value, suitable for encoding
// with reflection based marshalers.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.AsBool()
	case KindInt32:
		return int32(v.bits)
	case KindInt64:
		return int64(v.bits)
	case KindUint32, KindHandle:
		return uint32(v.bits)
	case KindUint64, KindEnum:
		return v.bits
	case KindFloat32:
		return v.vec[0]
	case KindVector2, KindVector3, KindVector4, KindQAngle:
		return append([]float32(nil), v.vec[:v.Dims()]...)
	case KindString:
		return v.str
	}
	return nil
}

// Raw exposes the union fields for binary encoders.
func (v Value) Raw() (kind Kind, bits uint64, vec [4]float32, str string) {
	return v.kind, v.bits, v.vec, v.str
}

// FromRaw rebuilds a value produced by Raw.
func FromRaw(kind Kind, bits uint64, vec [4]float32, str string) (Value, error) {
	if kind == KindInvalid || int(kind) >= len(kindNames) {
		return Value{}, fmt.Errorf("%w: unknown kind %d", ErrValueDecode, kind)
	}
	return Value{kind: kind, bits: bits, vec: vec, str: str}, nil
}
