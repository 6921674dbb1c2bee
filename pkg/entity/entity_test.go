package entity

import (
	"testing"

	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
	"github.com/ssargent/replaykit/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSerializer(t *testing.T) (*schema.Resolver, *schema.Serializer) {
	t.Helper()
	reg := schema.NewRegistry(nil)
	require.NoError(t, reg.Apply(&schema.Records{
		Serializers: []schema.SerializerRecord{
			{Name: "CUnit", Fields: []schema.FieldRecord{
				{VarName: "m_iHealth", VarType: "int32"},
				{VarName: "m_hItems", VarType: "CUtlVector< CHandle< CBaseEntity > >"},
				{VarName: "m_pBody", VarType: "Body*", SerializerName: "Body"},
			}},
			{Name: "Body", Fields: []schema.FieldRecord{
				{VarName: "m_cellX", VarType: "uint16"},
			}},
		},
		Classes: []schema.ClassRecord{{ClassID: 3, NetworkName: "CUnit"}},
	}))
	s, err := reg.Get(3)
	require.NoError(t, err)
	return schema.NewResolver(reg), s
}

func TestHandles(t *testing.T) {
	h := MakeHandle(42, 5)
	assert.Equal(t, int32(42), HandleIndex(h))
	assert.Equal(t, uint32(5), HandleSerial(h))
	assert.True(t, IsHandleValid(h))
	assert.False(t, IsHandleValid(InvalidHandle))
	assert.Equal(t, uint32(0xffffff), InvalidHandle)

	// serials wider than the networked width are truncated
	assert.Equal(t, uint32(1), HandleSerial(MakeHandle(1, 1<<10|1)))
}

func TestEntity_SetTruncatesChildren(t *testing.T) {
	_, s := testSerializer(t)
	e := New(1, 1, 3, s)

	items := fieldpath.New(1)
	e.Set(items, schema.RoleLength, fieldvalue.Uint32(3))
	for j := 0; j < 3; j++ {
		e.Set(fieldpath.New(1, j), schema.RoleValue, fieldvalue.Handle(uint32(100+j)))
	}
	e.Set(fieldpath.New(0), schema.RoleValue, fieldvalue.Int32(50))
	assert.Equal(t, 5, e.Len())

	e.Set(items, schema.RoleLength, fieldvalue.Uint32(1))
	_, ok := e.Value(fieldpath.New(1, 0))
	assert.True(t, ok)
	_, ok = e.Value(fieldpath.New(1, 1))
	assert.False(t, ok)
	_, ok = e.Value(fieldpath.New(1, 2))
	assert.False(t, ok)

	body := fieldpath.New(2)
	e.Set(body, schema.RolePresence, fieldvalue.Bool(true))
	e.Set(fieldpath.New(2, 0), schema.RoleValue, fieldvalue.Uint32(7))
	e.Set(body, schema.RolePresence, fieldvalue.Bool(false))
	_, ok = e.Value(fieldpath.New(2, 0))
	assert.False(t, ok)

	assert.Equal(t, []fieldpath.FieldPath{
		fieldpath.New(0), fieldpath.New(1), fieldpath.New(1, 0), fieldpath.New(2),
	}, e.Paths())
}

func TestEntity_LengthWritesOnlyTruncateOnShrink(t *testing.T) {
	_, s := testSerializer(t)
	e := New(1, 1, 3, s)
	items := fieldpath.New(1)

	e.Set(items, schema.RoleLength, fieldvalue.Uint32(2))
	e.Set(fieldpath.New(1, 0), schema.RoleValue, fieldvalue.Handle(100))
	e.Set(fieldpath.New(1, 1), schema.RoleValue, fieldvalue.Handle(101))

	// growing and rewriting the same length keep every element
	e.Set(items, schema.RoleLength, fieldvalue.Uint32(4))
	e.Set(fieldpath.New(1, 3), schema.RoleValue, fieldvalue.Handle(103))
	e.Set(items, schema.RoleLength, fieldvalue.Uint32(4))
	assert.Equal(t, 4, e.Len())

	e.Set(items, schema.RoleLength, fieldvalue.Uint32(1))
	assert.Equal(t, []fieldpath.FieldPath{fieldpath.New(1), fieldpath.New(1, 0)}, e.Paths())

	// a clone remembers the bound it was created with
	e.Set(items, schema.RoleLength, fieldvalue.Uint32(2))
	e.Set(fieldpath.New(1, 1), schema.RoleValue, fieldvalue.Handle(201))
	c := e.Clone(2, 1)
	c.Set(items, schema.RoleLength, fieldvalue.Uint32(0))
	assert.Equal(t, []fieldpath.FieldPath{fieldpath.New(1)}, c.Paths())
	assert.Equal(t, 3, e.Len())

	// presence toggles behave like a length of zero or unbounded
	body := fieldpath.New(2)
	e.Set(body, schema.RolePresence, fieldvalue.Bool(true))
	e.Set(fieldpath.New(2, 0), schema.RoleValue, fieldvalue.Uint32(7))
	e.Set(body, schema.RolePresence, fieldvalue.Bool(true))
	_, ok := e.Value(fieldpath.New(2, 0))
	assert.True(t, ok)
	e.Set(body, schema.RolePresence, fieldvalue.Bool(false))
	_, ok = e.Value(fieldpath.New(2, 0))
	assert.False(t, ok)
}

func TestEntity_CloneIsDeep(t *testing.T) {
	_, s := testSerializer(t)
	base := New(0, 0, 3, s)
	base.Set(fieldpath.New(0), schema.RoleValue, fieldvalue.Int32(10))

	c := base.Clone(9, 4)
	c.Set(fieldpath.New(0), schema.RoleValue, fieldvalue.Int32(11))

	v, _ := base.Value(fieldpath.New(0))
	assert.Equal(t, int64(10), v.AsInt())
	assert.Equal(t, int32(9), c.Index())
	assert.Equal(t, uint32(4), c.Serial())
}

func TestArena_Lifecycle(t *testing.T) {
	res, s := testSerializer(t)
	a := NewArena(res)

	e := New(7, 2, 3, s)
	e.Set(fieldpath.New(0), schema.RoleValue, fieldvalue.Int32(100))
	replaced, err := a.Put(e)
	require.NoError(t, err)
	assert.Nil(t, replaced)
	assert.Equal(t, 1, a.Len())

	got, ok := a.Get(e.Handle())
	require.True(t, ok)
	assert.Same(t, e, got)
	_, ok = a.Lookup(7, 3)
	assert.False(t, ok, "stale serial")

	v, err := a.ValueByName(7, "m_iHealth")
	require.NoError(t, err)
	assert.Equal(t, int64(100), v.AsInt())
	_, err = a.Value(7, fieldpath.New(1))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, a.Leave(7))
	got, ok = a.ByIndex(7)
	require.True(t, ok)
	assert.False(t, got.Visible())

	assert.True(t, a.Delete(7))
	assert.False(t, a.Delete(7), "second delete is a no-op")
	assert.Equal(t, 0, a.Len())
	_, ok = a.ByIndex(7)
	assert.False(t, ok)
	assert.NotNil(t, a.Slot(7), "storage is kept")

	// reuse with a bumped serial
	reborn := New(7, 3, 3, s)
	replaced, err = a.Put(reborn)
	require.NoError(t, err)
	assert.Nil(t, replaced)
	assert.Equal(t, 1, a.Len())
	_, ok = a.Get(e.Handle())
	assert.False(t, ok)

	_, err = a.Put(New(MaxEntities, 0, 3, s))
	assert.ErrorIs(t, err, ErrBadIndex)
}

func TestArena_PutOverLiveReportsReplaced(t *testing.T) {
	_, s := testSerializer(t)
	a := NewArena(nil)
	first := New(1, 1, 3, s)
	_, err := a.Put(first)
	require.NoError(t, err)

	replaced, err := a.Put(New(1, 2, 3, s))
	require.NoError(t, err)
	assert.Same(t, first, replaced)
	assert.Equal(t, 1, a.Len())

	_, err = a.ValueByName(1, "m_iHealth")
	assert.Error(t, err)
}

func TestArena_DirtyIsPerTick(t *testing.T) {
	a := NewArena(nil)
	a.MarkDirty(5, 10)
	a.MarkDirty(2, 10)
	a.MarkDirty(5, 10)
	assert.Equal(t, []int32{2, 5}, a.Dirty())

	a.MarkDirty(3, 11)
	assert.Equal(t, []int32{3}, a.Dirty())
	assert.Equal(t, uint32(11), a.DirtyTick())
}

func TestArena_Snapshot(t *testing.T) {
	_, s := testSerializer(t)
	a := NewArena(nil)
	for _, idx := range []int32{9, 2} {
		e := New(idx, 1, 3, s)
		e.Set(fieldpath.New(0), schema.RoleValue, fieldvalue.Int32(idx))
		_, err := a.Put(e)
		require.NoError(t, err)
	}
	a.Delete(9)

	snap := a.Snapshot(77)
	assert.Equal(t, uint32(77), snap.Tick)
	require.Len(t, snap.Entities, 1)
	st, ok := snap.Find(2)
	require.True(t, ok)
	assert.Equal(t, "CUnit", st.Class)
	require.Len(t, st.Fields, 1)
	assert.True(t, st.Fields[0].Value.Equal(fieldvalue.Int32(2)))

	count := 0
	a.Each(func(*Entity) bool { count++; return true })
	assert.Equal(t, 1, count)
}
