package store

import (
	"sort"
	"sync"

	"github.com/ssargent/replaykit/pkg/engine"
)

// IndexEntry represents the location of a message in the log
type IndexEntry struct {
	Tick   uint32      // Message tick
	Kind   engine.Kind // Message kind
	Offset int64       // Byte offset within the file
	Size   uint32      // Size of the record in bytes
}

// TickIndex maps ticks to record offsets of one message log. Entries are
// kept in log order; ticks are non-decreasing in a well formed log.
type TickIndex struct {
	entries []IndexEntry
	mutex   sync.RWMutex
}

// NewTickIndex creates an empty index
func NewTickIndex() *TickIndex {
	return &TickIndex{}
}

// BuildFromLog scans a log file and populates the index
func (idx *TickIndex) BuildFromLog(reader *LogReader) error {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = idx.entries[:0]

	if err := reader.SeekTo(0); err != nil {
		return err
	}

	iterator := reader.Iterator()
	defer iterator.Close()

	for iterator.Next() {
		record := iterator.Record()
		idx.entries = append(idx.entries, IndexEntry{
			Tick:   record.Tick,
			Kind:   engine.Kind(record.Kind),
			Offset: reader.Offset() - int64(record.Size()),
			Size:   uint32(record.Size()),
		})
	}
	return iterator.Err()
}

// Seek returns the first entry with a tick at or after tick.
func (idx *TickIndex) Seek(tick uint32) (IndexEntry, bool) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Tick >= tick
	})
	if i == len(idx.entries) {
		return IndexEntry{}, false
	}
	return idx.entries[i], true
}

// FullPackets returns the entries of non-delta entity packets. Only
// packet entity records are inspected; reader supplies their payload.
func (idx *TickIndex) FullPackets(reader *LogReader) ([]IndexEntry, error) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	var out []IndexEntry
	for _, e := range idx.entries {
		if e.Kind != engine.KindPacketEntities {
			continue
		}
		record, err := reader.ReadAt(e.Offset)
		if err != nil {
			return nil, err
		}
		msg, err := reader.decode(record)
		if err != nil {
			return nil, err
		}
		if !msg.Entities.IsDelta {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of indexed records
func (idx *TickIndex) Len() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()
	return len(idx.entries)
}

// Stats returns index statistics
func (idx *TickIndex) Stats() *IndexStats {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	stats := &IndexStats{
		TotalRecords: len(idx.entries),
		ByKind:       make(map[engine.Kind]int),
	}
	for _, e := range idx.entries {
		stats.ByKind[e.Kind]++
		stats.TotalBytes += int64(e.Size)
	}
	if n := len(idx.entries); n > 0 {
		stats.FirstTick = idx.entries[0].Tick
		stats.LastTick = idx.entries[n-1].Tick
	}
	return stats
}

// IndexStats holds statistics about the index
type IndexStats struct {
	TotalRecords int
	TotalBytes   int64
	FirstTick    uint32
	LastTick     uint32
	ByKind       map[engine.Kind]int
}
