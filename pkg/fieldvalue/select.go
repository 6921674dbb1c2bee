package fieldvalue

import (
	"fmt"
	"strings"
)

// Hints are the schema attributes that pick a codec for a leaf field.
type Hints struct {
	// FieldName is the field's own name; a few fields are keyed by name.
	FieldName string
	// BaseType is the var type without generics, pointer or count.
	BaseType    string
	Encoder     string
	BitCount    *int32
	Low         *float32
	High        *float32
	EncodeFlags *int32
}

func (h Hints) bitCount() int {
	if h.BitCount == nil {
		return 0
	}
	return int(*h.BitCount)
}

func (h Hints) flags() uint32 {
	if h.EncodeFlags == nil {
		return 0
	}
	return uint32(*h.EncodeFlags)
}

var fixedCodecs = map[string]Encoding{
	"bool":                 EncBool,
	"char":                 EncString,
	"CUtlString":           EncString,
	"CUtlSymbolLarge":      EncString,
	"int8":                 EncSigned32,
	"int16":                EncSigned32,
	"int32":                EncSigned32,
	"int64":                EncSigned64,
	"uint8":                EncUnsigned32,
	"uint16":               EncUnsigned32,
	"uint32":               EncUnsigned32,
	"color32":              EncUnsigned32,
	"Color":                EncUnsigned32,
	"CUtlStringToken":      EncUnsigned32,
	"GameTick_t":           EncUnsigned32,
	"HSequence":            EncUnsigned32,
	"CStrongHandle":        EncUnsigned64,
	"CHandle":              EncHandle,
	"CEntityHandle":        EncHandle,
	"CGameSceneNodeHandle": EncHandle,
	"GameTime_t":           EncFloat,
	"CBodyComponent":       EncComponent,
	"CPhysicsComponent":    EncComponent,
	"CRenderComponent":     EncComponent,
	"CLightComponent":      EncComponent,
}

var namedCodecs = map[string]Encoding{
	"m_iClip1":         EncAmmo,
	"m_iClip2":         EncAmmo,
	"m_iPrimaryAmmo":   EncAmmo,
	"m_iSecondaryAmmo": EncAmmo,
}

// Select builds the codec for a leaf field. Invalid quantization hints
// return an error wrapping ErrInvalidHints.
func Select(h Hints) (*Codec, error) {
	if enc, ok := namedCodecs[h.FieldName]; ok {
		return &Codec{Encoding: enc}, nil
	}
	switch h.BaseType {
	case "float32", "CNetworkedQuantizedFloat":
		return selectFloat(h)
	case "uint64":
		if h.Encoder == "fixed64" {
			return &Codec{Encoding: EncFixed64}, nil
		}
		return &Codec{Encoding: EncUnsigned64}, nil
	case "Vector":
		if h.Encoder == "normal" {
			return &Codec{Encoding: EncVectorNormal}, nil
		}
		return selectVector(h, 3)
	case "Vector2D":
		return selectVector(h, 2)
	case "Vector4D", "Quaternion":
		return selectVector(h, 4)
	case "QAngle":
		return selectQAngle(h)
	}
	if enc, ok := fixedCodecs[h.BaseType]; ok {
		return &Codec{Encoding: enc}, nil
	}
	if isEnumType(h.BaseType) {
		return &Codec{Encoding: EncEnum}, nil
	}
	return &Codec{Encoding: EncUnsigned32}, nil
}

// isEnumType matches the engine's enum naming conventions.
func isEnumType(base string) bool {
	if strings.HasSuffix(base, "_t") {
		return true
	}
	return len(base) > 1 && base[0] == 'E' && base[1] >= 'A' && base[1] <= 'Z'
}

func selectFloat(h Hints) (*Codec, error) {
	switch h.Encoder {
	case "coord":
		return &Codec{Encoding: EncCoord}, nil
	case "simtime":
		return &Codec{Encoding: EncSimTime}, nil
	case "runetime":
		return &Codec{Encoding: EncRuneTime}, nil
	case "normal":
		return &Codec{Encoding: EncNormal}, nil
	}
	n := h.bitCount()
	if n <= 0 || n >= 32 {
		return &Codec{Encoding: EncFloat}, nil
	}
	q, err := NewQuantized(n, h.flags(), h.Low, h.High)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.FieldName, err)
	}
	return &Codec{Encoding: EncQuantized, Quant: q}, nil
}

func selectVector(h Hints, dims int) (*Codec, error) {
	elem, err := selectFloat(h)
	if err != nil {
		return nil, err
	}
	return &Codec{Encoding: EncVector, Dims: dims, Elem: elem}, nil
}

func selectQAngle(h Hints) (*Codec, error) {
	n := h.bitCount()
	switch {
	case h.Encoder == "qangle_pitch_yaw":
		if n <= 0 || n >= 32 {
			return nil, fmt.Errorf("%w: %s: pitch/yaw angle needs 1..31 bits, got %d", ErrInvalidHints, h.FieldName, n)
		}
		return &Codec{Encoding: EncQAnglePitchYaw, Bits: n}, nil
	case h.Encoder == "qangle_precise":
		return &Codec{Encoding: EncQAnglePrecise}, nil
	case n > 0 && n < 32:
		return &Codec{Encoding: EncQAngleBits, Bits: n}, nil
	}
	return &Codec{Encoding: EncQAngleCoord}, nil
}
