package schema

import (
	"errors"
	"testing"

	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fooResolver(t *testing.T) (*Resolver, *Serializer) {
	t.Helper()
	reg := newFooRegistry(t)
	s, err := reg.Get(0)
	require.NoError(t, err)
	return NewResolver(reg), s
}

func TestResolver_Resolve(t *testing.T) {
	res, s := fooResolver(t)

	tests := []struct {
		path     fieldpath.FieldPath
		field    string
		role     Role
		encoding fieldvalue.Encoding
	}{
		{fieldpath.New(0), "m_x", RoleValue, fieldvalue.EncSigned32},
		{fieldpath.New(3), "m_name", RoleValue, fieldvalue.EncString},
		{fieldpath.New(4, 3), "m_iValues", RoleValue, fieldvalue.EncUnsigned32},
		{fieldpath.New(5), "m_hItems", RoleLength, fieldvalue.EncUnsigned32},
		{fieldpath.New(5, 100), "m_hItems", RoleValue, fieldvalue.EncHandle},
		{fieldpath.New(6), "m_vecPlayers", RoleLength, fieldvalue.EncUnsigned32},
		{fieldpath.New(6, 2, 0), "m_iKills", RoleValue, fieldvalue.EncSigned32},
		{fieldpath.New(6, 0, 1), "m_szName", RoleValue, fieldvalue.EncString},
		{fieldpath.New(7), "m_pBody", RolePresence, fieldvalue.EncBool},
		{fieldpath.New(7, 1), "m_vecOrigin", RoleValue, fieldvalue.EncVector},
		{fieldpath.New(9), "m_hOwner", RoleValue, fieldvalue.EncHandle},
	}
	for _, tt := range tests {
		t.Run(tt.path.String(), func(t *testing.T) {
			got, err := res.Resolve(s, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.field, got.Field.Name)
			assert.Equal(t, tt.role, got.Role)
			assert.Equal(t, tt.encoding, got.Codec.Encoding)
		})
	}
}

func TestResolver_OutOfRange(t *testing.T) {
	res, s := fooResolver(t)

	for _, fp := range []fieldpath.FieldPath{
		fieldpath.New(10),
		fieldpath.New(-1),
		fieldpath.New(0, 0),
		fieldpath.New(4),
		fieldpath.New(4, 4),
		fieldpath.New(4, 0, 0),
		fieldpath.New(5, MaxDynamicLength),
		fieldpath.New(5, 0, 0),
		fieldpath.New(6, 0),
		fieldpath.New(6, 0, 3),
		fieldpath.New(6, 0, 0, 0),
		fieldpath.New(7, 2),
		fieldpath.New(7, 0, 0),
	} {
		_, err := res.Resolve(s, fp)
		assert.ErrorIs(t, err, ErrPathOutOfRange, fp.String())
	}
}

// enumerate yields every path of the given depth with indices in [0, n).
func enumerate(depth, n int, fn func(fieldpath.FieldPath)) {
	indices := make([]int, depth)
	var rec func(level int)
	rec = func(level int) {
		if level == depth {
			fn(fieldpath.New(indices...))
			return
		}
		for i := 0; i < n; i++ {
			indices[level] = i
			rec(level + 1)
		}
	}
	rec(0)
}

func TestResolver_Totality(t *testing.T) {
	res, s := fooResolver(t)

	legal := map[int]int{}
	for depth := 1; depth <= 4; depth++ {
		enumerate(depth, 12, func(fp fieldpath.FieldPath) {
			first, err := res.Resolve(s, fp)
			second, err2 := res.Resolve(s, fp)
			require.Equal(t, err == nil, err2 == nil)
			if err != nil {
				require.True(t, errors.Is(err, ErrPathOutOfRange), "%s: %v", fp, err)
				return
			}
			require.Same(t, first.Field, second.Field)
			require.Equal(t, first.Role, second.Role)
			legal[depth]++
		})
	}

	// depth 1: every field but the fixed array; depth 2: 4 fixed elements,
	// 12 dynamic elements and 2 struct members; depth 3: 12 table rows of 3.
	assert.Equal(t, map[int]int{1: 9, 2: 18, 3: 36}, legal)
}

func TestResolver_Names(t *testing.T) {
	res, s := fooResolver(t)

	name, err := res.NameForPath(s, fieldpath.New(6, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, "m_vecPlayers.0002.m_iKills", name)

	name, err = res.NameForPath(s, fieldpath.New(7, 1))
	require.NoError(t, err)
	assert.Equal(t, "m_pBody.m_vecOrigin", name)

	for depth := 1; depth <= 3; depth++ {
		enumerate(depth, 8, func(fp fieldpath.FieldPath) {
			name, err := res.NameForPath(s, fp)
			if err != nil {
				return
			}
			back, err := res.PathForName(s, name)
			require.NoError(t, err, name)
			require.Equal(t, fp, back, name)
		})
	}

	_, err = res.PathForName(s, "m_nope")
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = res.PathForName(s, "m_hItems.abc")
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = res.PathForName(s, "m_iValues.0009")
	assert.ErrorIs(t, err, ErrPathOutOfRange)
	_, err = res.NameForPath(s, fieldpath.New(11))
	assert.ErrorIs(t, err, ErrPathOutOfRange)
}
