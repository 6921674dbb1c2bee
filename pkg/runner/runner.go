// Package runner feeds message logs through entity engines and persists
// periodic snapshots. Each replay gets its own registry and engine; replays
// share nothing but the snapshot sink and the metrics.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/replaykit/pkg/api"
	"github.com/ssargent/replaykit/pkg/engine"
	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/schema"
	"github.com/ssargent/replaykit/pkg/store"
)

// SnapshotSink receives snapshots taken during a replay.
type SnapshotSink interface {
	Put(run ksuid.KSUID, snap *entity.Snapshot) error
}

// Options configures a Runner.
type Options struct {
	// Engine is copied into every engine; Logger and Observer are set per
	// replay.
	Engine engine.Options
	// Schema is applied to every registry before the log is read. Logs
	// that carry their own schema messages do not need it.
	Schema *schema.Records
	// SnapshotInterval is the tick distance between snapshots. Zero takes
	// only the final snapshot.
	SnapshotInterval uint32
	// Sink stores snapshots; nil keeps only the final one in the Result.
	Sink SnapshotSink
	// Metrics may be nil.
	Metrics *api.Metrics
	// Workers bounds concurrent replays in RunAll.
	Workers int
	Logger  *slog.Logger
}

// Result summarizes one replay.
type Result struct {
	Name      string
	RunID     ksuid.KSUID
	Messages  int64
	Tick      uint32
	Snapshots int
	Classes   int
	Elapsed   time.Duration
	// Final is the arena after the last applied message.
	Final *entity.Snapshot
}

// Runner decodes message logs.
type Runner struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	status map[string]*api.ReplayStatus
}

func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		opts:   opts,
		logger: opts.Logger,
		status: make(map[string]*api.ReplayStatus),
	}
}

// ReplayName derives the replay name from a log path.
func ReplayName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// replayNames derives one name per path. Paths sharing a base name get a
// numeric suffix so their status and metric series stay apart.
func replayNames(paths []string) []string {
	names := make([]string, len(paths))
	taken := make(map[string]bool, len(paths))
	for i, path := range paths {
		base := ReplayName(path)
		name := base
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// RunAll decodes every log concurrently. It returns the results of all
// replays, in input order, and the first error; a failing replay cancels
// the others.
func (r *Runner) RunAll(ctx context.Context, paths []string) ([]*Result, error) {
	results := make([]*Result, len(paths))
	names := replayNames(paths)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			res, err := r.Run(ctx, names[i], path)
			results[i] = res
			return err
		})
	}
	return results, g.Wait()
}

// Run decodes one log. The returned Result is non-nil even on error and
// reflects the progress made.
func (r *Runner) Run(ctx context.Context, name, path string) (*Result, error) {
	start := time.Now()
	res := &Result{Name: name, RunID: ksuid.New()}
	logger := r.logger.With("replay", name, "run_id", res.RunID.String())
	r.track(name, res.RunID)

	err := r.run(ctx, logger, path, res)
	res.Elapsed = time.Since(start)
	r.finish(name, err)
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordReplay(err == nil)
		r.opts.Metrics.Forget(name)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("replay canceled", "tick", res.Tick, "messages", res.Messages)
		} else {
			logger.Error("replay aborted", "tick", res.Tick, "messages", res.Messages, "error", err)
		}
		return res, err
	}
	logger.Info("replay decoded",
		"tick", res.Tick,
		"messages", res.Messages,
		"snapshots", res.Snapshots,
		"classes", res.Classes,
		"entities", len(res.Final.Entities),
		"elapsed", res.Elapsed,
	)
	return res, nil
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, path string, res *Result) error {
	reader, err := store.NewLogReader(store.LogReaderConfig{FilePath: path})
	if err != nil {
		return fmt.Errorf("failed to open message log: %w", err)
	}
	defer reader.Close()

	reg := schema.NewRegistry(logger)
	if r.opts.Schema != nil {
		if err := reg.Apply(r.opts.Schema); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	opts := r.opts.Engine
	opts.Logger = logger
	if r.opts.Metrics != nil {
		opts.Observer = r.opts.Metrics.Observer(res.Name)
	}
	eng := engine.New(reg, opts)

	var lastSnap uint32
	snapped := false
	it := reader.Iterator()
	defer it.Close()
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := it.Message()
		if err != nil {
			return fmt.Errorf("record at offset %d: %w", reader.Offset(), err)
		}
		if err := eng.Apply(msg); err != nil {
			return err
		}
		res.Messages++
		res.Tick = msg.Tick
		r.progress(res.Name, res, eng.Arena().Len())

		if r.opts.SnapshotInterval > 0 && msg.Kind == engine.KindPacketEntities &&
			(!snapped || msg.Tick-lastSnap >= r.opts.SnapshotInterval) {
			if err := r.snapshot(eng, res); err != nil {
				return err
			}
			lastSnap, snapped = msg.Tick, true
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("failed to read message log: %w", err)
	}

	res.Classes = eng.Registry().ClassCount()
	res.Final = eng.Arena().Snapshot(eng.Tick())
	if r.opts.Sink != nil && (!snapped || lastSnap != res.Final.Tick) {
		if err := r.put(res, res.Final); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) snapshot(eng *engine.Engine, res *Result) error {
	if r.opts.Sink == nil {
		return nil
	}
	return r.put(res, eng.Arena().Snapshot(eng.Tick()))
}

func (r *Runner) put(res *Result, snap *entity.Snapshot) error {
	err := r.opts.Sink.Put(res.RunID, snap)
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordSnapshot(err == nil)
	}
	if err != nil {
		return fmt.Errorf("failed to store snapshot at tick %d: %w", snap.Tick, err)
	}
	res.Snapshots++
	return nil
}

func (r *Runner) track(name string, run ksuid.KSUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[name] = &api.ReplayStatus{Name: name, RunID: run.String()}
}

func (r *Runner) progress(name string, res *Result, live int) {
	r.mu.Lock()
	st := r.status[name]
	st.Tick = res.Tick
	st.Messages = res.Messages
	st.Entities = live
	r.mu.Unlock()
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordTick(name, res.Tick)
	}
}

func (r *Runner) finish(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status[name]
	st.Done = true
	if err != nil {
		st.Error = err.Error()
	}
}

// Status reports the progress of every replay started by this runner,
// sorted by name.
func (r *Runner) Status() []api.ReplayStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.ReplayStatus, 0, len(r.status))
	for _, st := range r.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
