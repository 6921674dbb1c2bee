package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/replaykit/pkg/config"
	"github.com/ssargent/replaykit/pkg/engine"
	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/runner"
	"github.com/ssargent/replaykit/pkg/synth"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Decoder.SnapshotInterval = 10
	cfg.Log.FsyncInterval = 0
	return cfg
}

func TestContainer_Defaults(t *testing.T) {
	c := NewContainer(nil, nil)
	assert.Equal(t, config.DefaultConfig(), c.Config())
	assert.NotNil(t, c.Logger())
	assert.Same(t, c.Metrics(), c.Metrics())
	assert.Same(t, c.Registry(), c.Registry())
	assert.NoError(t, c.Close())
}

func TestContainer_DecodeIntoSnapshotStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	c := NewContainer(cfg, nil)
	defer c.Close()

	path := filepath.Join(t.TempDir(), "match.log")
	w, err := c.NewLogWriter(path)
	require.NoError(t, err)
	require.NoError(t, synth.Generate(synth.Options{Seed: 3, Ticks: 25, Units: 6}, func(m *engine.Message) error {
		_, err := w.Append(m)
		return err
	}))
	require.NoError(t, w.Close())

	r, err := c.NewRunner(nil)
	require.NoError(t, err)
	res, err := r.Run(context.Background(), "match", path)
	require.NoError(t, err)

	snaps, err := c.SnapshotStorage()
	require.NoError(t, err)
	ticks, err := snaps.Ticks(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 11, 21, 25}, ticks)

	latest, err := snaps.Latest(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Final.Tick, latest.Tick)

	srv := httptest.NewServer(c.NewServer(r).Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type countingSink struct{ puts int }

func (s *countingSink) Put(ksuid.KSUID, *entity.Snapshot) error {
	s.puts++
	return nil
}

func TestContainer_SnapshotSinkOverride(t *testing.T) {
	c := NewContainer(testConfig(t), nil)
	sink := &countingSink{}
	c.SetSnapshotSink(sink)

	path := filepath.Join(t.TempDir(), "short.log")
	w, err := c.NewLogWriter(path)
	require.NoError(t, err)
	require.NoError(t, synth.Generate(synth.Options{Seed: 9, Ticks: 5, Units: 2}, func(m *engine.Message) error {
		_, err := w.Append(m)
		return err
	}))
	require.NoError(t, w.Close())

	r, err := c.NewRunner(synth.Records())
	require.NoError(t, err)
	_, err = r.Run(context.Background(), "short", path)
	require.NoError(t, err)
	assert.Equal(t, 2, sink.puts)
	assert.NoError(t, c.Close())
}

var _ runner.SnapshotSink = (*countingSink)(nil)
