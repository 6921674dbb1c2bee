package synth

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/replaykit/pkg/engine"
	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/schema"
)

func collect(t *testing.T, opts Options) []*engine.Message {
	t.Helper()
	var msgs []*engine.Message
	require.NoError(t, Generate(opts, func(m *engine.Message) error {
		msgs = append(msgs, m)
		return nil
	}))
	return msgs
}

func TestGenerate_Decodes(t *testing.T) {
	opts := Options{Seed: 7, Ticks: 200, Units: 16}
	msgs := collect(t, opts)
	require.Len(t, msgs, 3+opts.Ticks)

	eng := engine.New(schema.NewRegistry(nil), engine.Options{})
	for _, m := range msgs {
		require.NoError(t, eng.Apply(m), "tick %d", m.Tick)
		if m.Kind != engine.KindPacketEntities {
			continue
		}
		visible := 0
		eng.Arena().Each(func(e *entity.Entity) bool {
			if e.Visible() {
				visible++
			}
			return true
		})
		assert.LessOrEqual(t, visible, 2+opts.Units, "tick %d", m.Tick)
	}

	assert.Equal(t, uint32(opts.Ticks), eng.Tick())
	team, ok := eng.Arena().ByIndex(1)
	require.True(t, ok)
	assert.Equal(t, "CTeam", team.Serializer().Name)

	name, err := eng.Arena().ValueByName(1, "m_szTeamname")
	require.NoError(t, err)
	assert.Equal(t, "radiant", name.AsString())
}

func TestGenerate_Deterministic(t *testing.T) {
	opts := Options{Seed: 3, Ticks: 50, Units: 8}
	a := collect(t, opts)
	b := collect(t, opts)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("streams differ (-a +b):\n%s", diff)
	}

	c := collect(t, Options{Seed: 4, Ticks: 50, Units: 8})
	assert.NotEqual(t, a[len(a)-1].Entities.Data, c[len(c)-1].Entities.Data)
}

func TestGenerate_FirstPacketIsFull(t *testing.T) {
	msgs := collect(t, Options{Seed: 1, Ticks: 3, Units: 4})
	assert.Equal(t, engine.KindSerializers, msgs[0].Kind)
	assert.Equal(t, engine.KindClassInfo, msgs[1].Kind)
	assert.Equal(t, engine.KindStringTableBaselines, msgs[2].Kind)
	assert.False(t, msgs[3].Entities.IsDelta)
	assert.True(t, msgs[4].Entities.IsDelta)
}

func TestGenerate_InvalidOptions(t *testing.T) {
	err := Generate(Options{Units: 0}, func(*engine.Message) error { return nil })
	assert.Error(t, err)
}
