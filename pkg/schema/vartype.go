package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// VarType is a parsed field type string of the form
// "Base< Generic >*[Count]".
type VarType struct {
	Base    string
	Generic *VarType
	Pointer bool
	Count   int
}

var varTypePattern = regexp.MustCompile(`^([^\<\[\*]+)(\<\s(.*)\s\>)?(\*)?(\[(.*)\])?$`)

// namedCounts resolves array lengths given as constants.
var namedCounts = map[string]int{
	"MAX_ITEM_STOCKS":             8,
	"MAX_ABILITY_DRAFT_ABILITIES": 48,
	"MAX_PLAYERS":                 64,
	"MAX_TEAMS":                   14,
}

// ParseVarType parses a field type string.
func ParseVarType(s string) (VarType, error) {
	m := varTypePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return VarType{}, fmt.Errorf("%w: malformed var type %q", ErrSchemaConflict, s)
	}
	vt := VarType{
		Base:    strings.TrimSpace(m[1]),
		Pointer: m[4] == "*",
	}
	if m[3] != "" {
		g, err := ParseVarType(m[3])
		if err != nil {
			return VarType{}, err
		}
		vt.Generic = &g
	}
	if m[5] != "" {
		n, err := parseCount(m[6])
		if err != nil {
			return VarType{}, fmt.Errorf("%w: var type %q: %w", ErrSchemaConflict, s, err)
		}
		vt.Count = n
	}
	return vt, nil
}

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, ok := namedCounts[s]; ok {
		return n, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown array count %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("array count %d", n)
	}
	return n, nil
}

func (vt VarType) String() string {
	var sb strings.Builder
	sb.WriteString(vt.Base)
	if vt.Generic != nil {
		sb.WriteString("< ")
		sb.WriteString(vt.Generic.String())
		sb.WriteString(" >")
	}
	if vt.Pointer {
		sb.WriteByte('*')
	}
	if vt.Count > 0 {
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(vt.Count))
		sb.WriteByte(']')
	}
	return sb.String()
}

// IsDynamicArray reports whether the type is one of the growable vector
// containers.
func (vt VarType) IsDynamicArray() bool {
	switch vt.Base {
	case "CUtlVector", "CNetworkUtlVectorBase", "CUtlVectorEmbeddedNetworkVar":
		return true
	}
	return false
}
