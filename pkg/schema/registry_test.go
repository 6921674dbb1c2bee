package schema

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFooRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(nil)
	require.NoError(t, reg.Apply(fooRecords()))
	return reg
}

func TestLoadRecords_MatchesFixture(t *testing.T) {
	recs, err := LoadRecords("testdata/foo.yaml")
	require.NoError(t, err)
	if diff := cmp.Diff(fooRecords(), recs); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	data, err := MarshalRecords(recs)
	require.NoError(t, err)
	again, err := ParseRecords(data)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(recs, again))
}

func TestRegistry_BuildsLazily(t *testing.T) {
	reg := newFooRegistry(t)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 3, reg.ClassCount())
	assert.Equal(t, 2, reg.ClassIDBits())

	s, err := reg.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "CFoo", s.Name)
	assert.Equal(t, 3, reg.Len(), "nested serializers are built with their parent")

	again, err := reg.Get(0)
	require.NoError(t, err)
	assert.Same(t, s, again)

	nested, err := reg.Get(1)
	require.NoError(t, err)
	assert.Same(t, reg.Serializer(s.Fields[6].Serializer), nested)
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_FieldKinds(t *testing.T) {
	reg := newFooRegistry(t)
	s, err := reg.Get(0)
	require.NoError(t, err)

	want := []struct {
		name     string
		kind     Kind
		encoding fieldvalue.Encoding
	}{
		{"m_x", KindScalar, fieldvalue.EncSigned32},
		{"m_flSpeed", KindScalar, fieldvalue.EncQuantized},
		{"m_vecOrigin", KindScalar, fieldvalue.EncVector},
		{"m_name", KindString, fieldvalue.EncString},
		{"m_iValues", KindFixedArray, fieldvalue.EncUnsigned32},
		{"m_hItems", KindDynamicArray, fieldvalue.EncHandle},
		{"m_vecPlayers", KindDynamicTable, fieldvalue.EncUnsigned32},
		{"m_pBody", KindStruct, fieldvalue.EncBool},
		{"m_nState", KindEnum, fieldvalue.EncEnum},
		{"m_hOwner", KindHandle, fieldvalue.EncHandle},
	}
	require.Len(t, s.Fields, len(want))
	for i, w := range want {
		f := s.Fields[i]
		assert.Equal(t, w.name, f.Name)
		assert.Equal(t, w.kind, f.Kind, f.Name)
		assert.Equal(t, w.encoding, f.Codec.Encoding, f.Name)
	}
	assert.Equal(t, 4, s.Fields[4].Length)
	assert.Equal(t, NoSerializer, s.Fields[0].Serializer)

	player := reg.Serializer(s.Fields[6].Serializer)
	assert.Equal(t, KindString, player.Fields[1].Kind, "char arrays are strings")

	i, ok := s.FieldIndex("m_hOwner")
	assert.True(t, ok)
	assert.Equal(t, 9, i)
}

func TestRegistry_Errors(t *testing.T) {
	t.Run("unknown class", func(t *testing.T) {
		_, err := newFooRegistry(t).Get(42)
		assert.ErrorIs(t, err, ErrUnknownClass)
	})

	t.Run("class without serializer", func(t *testing.T) {
		reg := NewRegistry(nil)
		require.NoError(t, reg.Apply(&Records{Classes: []ClassRecord{{ClassID: 1, NetworkName: "CMissing"}}}))
		_, err := reg.Get(1)
		assert.ErrorIs(t, err, ErrUnknownClass)
	})

	t.Run("missing nested serializer", func(t *testing.T) {
		reg := NewRegistry(nil)
		require.NoError(t, reg.Apply(&Records{
			Serializers: []SerializerRecord{{Name: "A", Fields: []FieldRecord{
				{VarName: "m_b", VarType: "B*", SerializerName: "B"},
			}}},
			Classes: []ClassRecord{{ClassID: 0, NetworkName: "A"}},
		}))
		_, err := reg.Get(0)
		assert.ErrorIs(t, err, ErrSchemaConflict)
	})

	t.Run("cycle", func(t *testing.T) {
		reg := NewRegistry(nil)
		require.NoError(t, reg.Apply(&Records{
			Serializers: []SerializerRecord{
				{Name: "A", Fields: []FieldRecord{{VarName: "m_b", VarType: "B*", SerializerName: "B"}}},
				{Name: "B", Fields: []FieldRecord{{VarName: "m_a", VarType: "A*", SerializerName: "A"}}},
			},
			Classes: []ClassRecord{{ClassID: 0, NetworkName: "A"}},
		}))
		_, err := reg.Get(0)
		assert.ErrorIs(t, err, ErrSchemaConflict)
		assert.Contains(t, err.Error(), "cycle")
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("invalid quantization", func(t *testing.T) {
		reg := NewRegistry(nil)
		require.NoError(t, reg.Apply(&Records{
			Serializers: []SerializerRecord{{Name: "A", Fields: []FieldRecord{
				{VarName: "m_f", VarType: "float32", BitCount: ptr(int32(8)), EncodeFlags: ptr(int32(3)), LowValue: ptr(float32(-1)), HighValue: ptr(float32(1))},
			}}},
			Classes: []ClassRecord{{ClassID: 0, NetworkName: "A"}},
		}))
		_, err := reg.Get(0)
		assert.ErrorIs(t, err, ErrSchemaConflict)
		assert.ErrorIs(t, err, fieldvalue.ErrInvalidHints)
	})

	t.Run("vector without element type", func(t *testing.T) {
		reg := NewRegistry(nil)
		require.NoError(t, reg.Apply(&Records{
			Serializers: []SerializerRecord{{Name: "A", Fields: []FieldRecord{{VarName: "m_v", VarType: "CUtlVector"}}}},
			Classes:     []ClassRecord{{ClassID: 0, NetworkName: "A"}},
		}))
		_, err := reg.Get(0)
		assert.ErrorIs(t, err, ErrSchemaConflict)
	})
}

func TestRegistry_Reissue(t *testing.T) {
	reg := newFooRegistry(t)
	s, err := reg.Get(0)
	require.NoError(t, err)

	require.NoError(t, reg.Apply(fooRecords()), "identical reissue is accepted")
	again, err := reg.Get(0)
	require.NoError(t, err)
	assert.Same(t, s, again)

	changed := fooRecords()
	changed.Serializers[1].Fields[0].VarType = "int64"
	assert.ErrorIs(t, reg.Apply(changed), ErrSchemaConflict)

	renamed := &Records{Classes: []ClassRecord{{ClassID: 1, NetworkName: "Other"}}}
	assert.ErrorIs(t, reg.Apply(renamed), ErrSchemaConflict)

	name, err := reg.ClassName(1)
	require.NoError(t, err)
	assert.Equal(t, "PlayerData", name, "a rejected batch leaves the registry unchanged")
}

func TestRegistry_ConflictWithinBatch(t *testing.T) {
	recs := &Records{Serializers: []SerializerRecord{
		{Name: "A", Fields: []FieldRecord{{VarName: "m_x", VarType: "int32"}}},
		{Name: "A", Fields: []FieldRecord{{VarName: "m_x", VarType: "uint32"}}},
	}}
	assert.ErrorIs(t, NewRegistry(nil).Apply(recs), ErrSchemaConflict)
}

func TestRegistry_ClassUsesLatestVersion(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Apply(&Records{
		Serializers: []SerializerRecord{
			{Name: "A", Version: 1, Fields: []FieldRecord{{VarName: "m_x", VarType: "int32"}}},
			{Name: "A", Version: 3, Fields: []FieldRecord{{VarName: "m_x", VarType: "int32"}, {VarName: "m_y", VarType: "int32"}}},
		},
		Classes: []ClassRecord{{ClassID: 0, NetworkName: "A"}},
	}))
	s, err := reg.Get(0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), s.Version)
	assert.Len(t, s.Fields, 2)
}

func TestParseVarType(t *testing.T) {
	tests := []struct {
		in   string
		want VarType
	}{
		{"int32", VarType{Base: "int32"}},
		{"uint8[256]", VarType{Base: "uint8", Count: 256}},
		{"CBodyComponent*", VarType{Base: "CBodyComponent", Pointer: true}},
		{"CHandle< CBaseEntity >", VarType{Base: "CHandle", Generic: &VarType{Base: "CBaseEntity"}}},
		{"CNetworkUtlVectorBase< CHandle< CBaseEntity > >", VarType{
			Base:    "CNetworkUtlVectorBase",
			Generic: &VarType{Base: "CHandle", Generic: &VarType{Base: "CBaseEntity"}},
		}},
		{"CDOTA_ItemStockInfo[MAX_ITEM_STOCKS]", VarType{Base: "CDOTA_ItemStockInfo", Count: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVarType(tt.in)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, got))
			if !strings.Contains(tt.in, "MAX_") {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}

	for _, bad := range []string{"", "int32[UNKNOWN_COUNT]", "int32[0]", "<>"} {
		_, err := ParseVarType(bad)
		assert.ErrorIs(t, err, ErrSchemaConflict, bad)
	}
}
