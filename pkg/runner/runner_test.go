package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/replaykit/pkg/api"
	"github.com/ssargent/replaykit/pkg/engine"
	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/schema"
	"github.com/ssargent/replaykit/pkg/store"
	"github.com/ssargent/replaykit/pkg/synth"
)

// memSink records snapshots in memory.
type memSink struct {
	mu    sync.Mutex
	snaps map[ksuid.KSUID][]*entity.Snapshot
	err   error
}

func newMemSink() *memSink {
	return &memSink{snaps: make(map[ksuid.KSUID][]*entity.Snapshot)}
}

func (s *memSink) Put(run ksuid.KSUID, snap *entity.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snaps[run] = append(s.snaps[run], snap)
	return nil
}

func (s *memSink) ticks(run ksuid.KSUID) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint32
	for _, snap := range s.snaps[run] {
		out = append(out, snap.Tick)
	}
	return out
}

// writeSynthLog writes a generated stream, optionally dropping the schema
// messages so the runner has to supply them.
func writeSynthLog(t *testing.T, name string, opts synth.Options, withSchema bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".log")
	w, err := store.NewLogWriter(store.LogWriterConfig{FilePath: path, FsyncInterval: -1, CompressAbove: 256})
	require.NoError(t, err)
	err = synth.Generate(opts, func(m *engine.Message) error {
		if !withSchema && (m.Kind == engine.KindSerializers || m.Kind == engine.KindClassInfo) {
			return nil
		}
		_, err := w.Append(m)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

// decodeDirect applies the same stream straight to an engine.
func decodeDirect(t *testing.T, opts synth.Options) *entity.Snapshot {
	t.Helper()
	eng := engine.New(schema.NewRegistry(nil), engine.Options{})
	require.NoError(t, synth.Generate(opts, eng.Apply))
	return eng.Arena().Snapshot(eng.Tick())
}

func TestRunner_Run(t *testing.T) {
	opts := synth.Options{Seed: 11, Ticks: 95, Units: 12}
	path := writeSynthLog(t, "match", opts, true)
	sink := newMemSink()

	r := New(Options{SnapshotInterval: 30, Sink: sink})
	res, err := r.Run(context.Background(), "match", path)
	require.NoError(t, err)

	assert.Equal(t, int64(3+opts.Ticks), res.Messages)
	assert.Equal(t, uint32(95), res.Tick)
	// Snapshots at the first packet, every 30 ticks, then the final tick.
	assert.Equal(t, []uint32{1, 31, 61, 91, 95}, sink.ticks(res.RunID))
	assert.Equal(t, 5, res.Snapshots)
	assert.Equal(t, len(synth.Records().Classes), res.Classes)

	if diff := cmp.Diff(decodeDirect(t, opts), res.Final); diff != "" {
		t.Errorf("final snapshot differs from direct decode (-want +got):\n%s", diff)
	}

	status := r.Status()
	require.Len(t, status, 1)
	assert.True(t, status[0].Done)
	assert.Empty(t, status[0].Error)
	assert.Equal(t, res.RunID.String(), status[0].RunID)
}

func TestRunner_ExternalSchema(t *testing.T) {
	opts := synth.Options{Seed: 2, Ticks: 20, Units: 4}
	path := writeSynthLog(t, "bare", opts, false)

	_, err := New(Options{}).Run(context.Background(), "bare", path)
	require.Error(t, err, "entity packets without schema must fail")

	res, err := New(Options{Schema: synth.Records()}).Run(context.Background(), "bare", path)
	require.NoError(t, err)
	if diff := cmp.Diff(decodeDirect(t, opts), res.Final); diff != "" {
		t.Errorf("final snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRunner_RunAll(t *testing.T) {
	var paths []string
	var want []*entity.Snapshot
	for i := 0; i < 4; i++ {
		opts := synth.Options{Seed: int64(100 + i), Ticks: 40, Units: 8}
		paths = append(paths, writeSynthLog(t, "replay"+string(rune('a'+i)), opts, true))
		want = append(want, decodeDirect(t, opts))
	}

	reg := prometheus.NewRegistry()
	metrics := api.NewMetrics(reg)
	r := New(Options{Workers: 2, Metrics: metrics, Sink: newMemSink()})

	results, err := r.RunAll(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, res := range results {
		assert.Equal(t, ReplayName(paths[i]), res.Name)
		if diff := cmp.Diff(want[i], res.Final); diff != "" {
			t.Errorf("replay %d mismatch (-want +got):\n%s", i, diff)
		}
	}

	assert.Len(t, r.Status(), 4)
	count, err := testutil.GatherAndCount(reg, "replaykit_replays_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	// Per replay series are dropped once a replay finishes.
	live, err := testutil.GatherAndCount(reg, "replaykit_live_entities")
	require.NoError(t, err)
	assert.Zero(t, live)
}

func TestRunner_RunAllSameBaseName(t *testing.T) {
	opts := synth.Options{Seed: 8, Ticks: 30, Units: 6}
	first := writeSynthLog(t, "match", opts, true)
	second := writeSynthLog(t, "match", synth.Options{Seed: 9, Ticks: 30, Units: 6}, true)
	require.NotEqual(t, first, second)

	reg := prometheus.NewRegistry()
	r := New(Options{Workers: 2, Metrics: api.NewMetrics(reg)})
	results, err := r.RunAll(context.Background(), []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, "match", results[0].Name)
	assert.Equal(t, "match-2", results[1].Name)

	status := r.Status()
	require.Len(t, status, 2)
	for _, st := range status {
		assert.True(t, st.Done, st.Name)
		assert.Equal(t, uint32(30), st.Tick, st.Name)
	}
	assert.Equal(t, results[0].RunID.String(), status[0].RunID)
	assert.Equal(t, results[1].RunID.String(), status[1].RunID)
}

func TestReplayNames(t *testing.T) {
	got := replayNames([]string{"a/x.log", "b/x.log", "x-2.log", "c/x.log", "y.log"})
	assert.Equal(t, []string{"x", "x-2", "x-2-2", "x-3", "y"}, got)
}

func TestRunner_FailureCancelsOthers(t *testing.T) {
	good := writeSynthLog(t, "good", synth.Options{Seed: 1, Ticks: 2000, Units: 32}, true)
	bad := filepath.Join(t.TempDir(), "bad.log")
	require.NoError(t, os.WriteFile(bad, []byte("this is not a message log at all"), 0600))

	r := New(Options{Workers: 2})
	results, err := r.RunAll(context.Background(), []string{bad, good})
	require.Error(t, err)
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])

	status := r.Status()
	require.Len(t, status, 2)
	assert.NotEmpty(t, status[0].Error)
}

func TestRunner_Canceled(t *testing.T) {
	path := writeSynthLog(t, "long", synth.Options{Seed: 5, Ticks: 50, Units: 8}, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(Options{}).Run(ctx, "long", path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Messages)
}

func TestRunner_SinkError(t *testing.T) {
	path := writeSynthLog(t, "sinkfail", synth.Options{Seed: 5, Ticks: 10, Units: 4}, true)
	sink := newMemSink()
	sink.err = errors.New("disk full")

	_, err := New(Options{SnapshotInterval: 5, Sink: sink}).Run(context.Background(), "sinkfail", path)
	assert.ErrorContains(t, err, "disk full")
}

func TestRunner_DecodeErrorCarriesContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.log")
	w, err := store.NewLogWriter(store.LogWriterConfig{FilePath: path})
	require.NoError(t, err)
	_, err = w.Append(&engine.Message{Kind: engine.KindSerializers, Schema: &schema.Records{Serializers: synth.Records().Serializers}})
	require.NoError(t, err)
	_, err = w.Append(&engine.Message{Kind: engine.KindClassInfo, Schema: &schema.Records{Classes: synth.Records().Classes}})
	require.NoError(t, err)
	// An update for a slot that was never created.
	_, err = w.Append(&engine.Message{
		Kind:     engine.KindPacketEntities,
		Tick:     77,
		Entities: &engine.PacketEntities{UpdatedEntries: 1, IsDelta: true, Data: []byte{0x00, 0x00}},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	res, err := New(Options{}).Run(context.Background(), "broken", path)
	var de *engine.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint32(77), de.Tick)
	assert.ErrorIs(t, err, engine.ErrUnknownEntity)
	assert.Equal(t, int64(2), res.Messages)
}
