// Package storage persists entity snapshots in a pebble database. Keys are
// the 20 byte run id followed by the big-endian tick, so one run's
// snapshots are contiguous and ordered by tick.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/replaykit/pkg/codec"
	"github.com/ssargent/replaykit/pkg/entity"
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("storage: snapshot not found")

const (
	runIDSize = 20
	keySize   = runIDSize + 4
)

type SnapshotStorage struct {
	db *pebble.DB
}

func NewSnapshotStorage(path string) (*SnapshotStorage, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot storage: %w", err)
	}
	return &SnapshotStorage{db: db}, nil
}

// NewRun allocates the id a decode run stores its snapshots under.
func (s *SnapshotStorage) NewRun() ksuid.KSUID {
	return ksuid.New()
}

func snapshotKey(run ksuid.KSUID, tick uint32) []byte {
	key := make([]byte, 0, keySize)
	key = append(key, run.Bytes()...)
	return binary.BigEndian.AppendUint32(key, tick)
}

// runBounds returns the key range holding every snapshot of run.
func runBounds(run ksuid.KSUID) (lower, upper []byte) {
	lower = run.Bytes()
	upper = append(run.Bytes(), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	return lower, upper
}

func (s *SnapshotStorage) Put(run ksuid.KSUID, snap *entity.Snapshot) error {
	return s.db.Set(snapshotKey(run, snap.Tick), codec.MarshalSnapshot(snap), pebble.NoSync)
}

func (s *SnapshotStorage) Get(run ksuid.KSUID, tick uint32) (*entity.Snapshot, error) {
	data, closer, err := s.db.Get(snapshotKey(run, tick))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: run %s tick %d", ErrNotFound, run, tick)
		}
		return nil, err
	}
	defer closer.Close()

	return codec.UnmarshalSnapshot(data)
}

// Latest returns the snapshot with the highest tick of run.
func (s *SnapshotStorage) Latest(run ksuid.KSUID) (*entity.Snapshot, error) {
	lower, upper := runBounds(run)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: run %s has no snapshots", ErrNotFound, run)
	}
	return codec.UnmarshalSnapshot(iter.Value())
}

// Ticks lists the snapshot ticks of run in ascending order.
func (s *SnapshotStorage) Ticks(run ksuid.KSUID) ([]uint32, error) {
	lower, upper := runBounds(run)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ticks []uint32
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != keySize {
			continue
		}
		ticks = append(ticks, binary.BigEndian.Uint32(key[runIDSize:]))
	}
	return ticks, iter.Error()
}

// Runs lists every run id with at least one snapshot, oldest first.
func (s *SnapshotStorage) Runs() ([]ksuid.KSUID, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var runs []ksuid.KSUID
	for valid := iter.First(); valid; {
		key := iter.Key()
		if len(key) != keySize {
			valid = iter.Next()
			continue
		}
		run, err := ksuid.FromBytes(key[:runIDSize])
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
		_, upper := runBounds(run)
		valid = iter.SeekGE(upper)
	}
	return runs, iter.Error()
}

// DeleteRun removes every snapshot of run.
func (s *SnapshotStorage) DeleteRun(run ksuid.KSUID) error {
	lower, upper := runBounds(run)
	return s.db.DeleteRange(lower, upper, pebble.Sync)
}

// Flush makes buffered writes durable.
func (s *SnapshotStorage) Flush() error {
	return s.db.Flush()
}

func (s *SnapshotStorage) Close() error {
	return s.db.Close()
}
