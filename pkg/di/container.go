// Package di provides dependency injection container
package di

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ssargent/replaykit/pkg/api"
	"github.com/ssargent/replaykit/pkg/config"
	"github.com/ssargent/replaykit/pkg/engine"
	"github.com/ssargent/replaykit/pkg/runner"
	"github.com/ssargent/replaykit/pkg/schema"
	"github.com/ssargent/replaykit/pkg/storage"
	"github.com/ssargent/replaykit/pkg/store"
)

// Container holds all the dependencies for the application
type Container struct {
	cfg    *config.Config
	logger *slog.Logger

	mu        sync.Mutex
	registry  *prometheus.Registry
	metrics   *api.Metrics
	snapshots *storage.SnapshotStorage
	sink      runner.SnapshotSink
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, logger *slog.Logger) *Container {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{cfg: cfg, logger: logger}
}

// Config returns the loaded configuration
func (c *Container) Config() *config.Config { return c.cfg }

// Logger returns the process logger
func (c *Container) Logger() *slog.Logger { return c.logger }

// Registry returns the metrics registry, created on first use with the
// process and Go runtime collectors.
func (c *Container) Registry() *prometheus.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initMetrics()
	return c.registry
}

// Metrics returns the replaykit collectors registered on Registry.
func (c *Container) Metrics() *api.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initMetrics()
	return c.metrics
}

func (c *Container) initMetrics() {
	if c.registry != nil {
		return
	}
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.metrics = api.NewMetrics(c.registry)
}

// SnapshotStorage opens the snapshot database under the data directory.
// Later calls return the same instance.
func (c *Container) SnapshotStorage() (*storage.SnapshotStorage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshots != nil {
		return c.snapshots, nil
	}
	s, err := storage.NewSnapshotStorage(c.cfg.SnapshotDir())
	if err != nil {
		return nil, err
	}
	c.snapshots = s
	return s, nil
}

// SetSnapshotSink overrides where runners store snapshots (for testing)
func (c *Container) SetSnapshotSink(sink runner.SnapshotSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// NewRunner builds a runner from the decoder configuration. Snapshots go
// to the snapshot database unless a sink was set.
func (c *Container) NewRunner(recs *schema.Records) (*runner.Runner, error) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink == nil {
		s, err := c.SnapshotStorage()
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot storage: %w", err)
		}
		sink = s
	}

	var metrics *api.Metrics
	if c.cfg.Metrics.Enabled {
		metrics = c.Metrics()
	}
	return runner.New(runner.Options{
		Engine: engine.Options{
			MaxFieldPathOps: c.cfg.Decoder.MaxFieldPathOps,
			SkipFullPackets: c.cfg.Decoder.SkipFullPackets,
		},
		Schema:           recs,
		SnapshotInterval: c.cfg.Decoder.SnapshotInterval,
		Sink:             sink,
		Metrics:          metrics,
		Workers:          c.cfg.Decoder.Workers,
		Logger:           c.logger,
	}), nil
}

// NewLogWriter opens a message log with the configured write settings.
func (c *Container) NewLogWriter(path string) (*store.LogWriter, error) {
	return store.NewLogWriter(store.LogWriterConfig{
		FilePath:      path,
		FsyncInterval: c.cfg.Log.FsyncInterval,
		BufferSize:    c.cfg.Log.BufferSize,
		CompressAbove: c.cfg.Log.CompressAbove,
	})
}

// NewServer builds the metrics and status server.
func (c *Container) NewServer(status api.StatusSource) *api.Server {
	return api.NewServer(
		api.ServerConfig{Addr: c.cfg.Metrics.Addr},
		c.Registry(),
		c.Metrics(),
		status,
		c.logger,
	)
}

// Close releases the resources opened by the container
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshots == nil {
		return nil
	}
	err := c.snapshots.Close()
	c.snapshots = nil
	return err
}
