package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/replaykit/pkg/engine"
)

func TestTickIndex(t *testing.T) {
	msgs := sampleMessages()
	msgs = append(msgs, entityMessage(20, false, []byte{7}), entityMessage(25, true, []byte{8}))
	filePath, offsets := writeLog(t, msgs...)

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	idx := NewTickIndex()
	require.NoError(t, idx.BuildFromLog(reader))
	assert.Equal(t, len(msgs), idx.Len())

	t.Run("seek", func(t *testing.T) {
		e, ok := idx.Seek(11)
		require.True(t, ok)
		assert.Equal(t, offsets[3], e.Offset)
		assert.Equal(t, uint32(11), e.Tick)

		e, ok = idx.Seek(13)
		require.True(t, ok)
		assert.Equal(t, uint32(20), e.Tick)

		_, ok = idx.Seek(26)
		assert.False(t, ok)
	})

	t.Run("offsets address records", func(t *testing.T) {
		e, ok := idx.Seek(25)
		require.True(t, ok)
		rec, err := reader.ReadAt(e.Offset)
		require.NoError(t, err)
		assert.Equal(t, uint32(25), rec.Tick)
		assert.Equal(t, int(e.Size), rec.Size())
	})

	t.Run("full packets", func(t *testing.T) {
		full, err := idx.FullPackets(reader)
		require.NoError(t, err)
		require.Len(t, full, 2)
		assert.Equal(t, uint32(10), full[0].Tick)
		assert.Equal(t, uint32(20), full[1].Tick)
	})

	t.Run("stats", func(t *testing.T) {
		stats := idx.Stats()
		assert.Equal(t, 7, stats.TotalRecords)
		assert.Equal(t, uint32(0), stats.FirstTick)
		assert.Equal(t, uint32(25), stats.LastTick)
		assert.Equal(t, 5, stats.ByKind[engine.KindPacketEntities])
		assert.Equal(t, 1, stats.ByKind[engine.KindClassInfo])
	})

	t.Run("rebuild is idempotent", func(t *testing.T) {
		require.NoError(t, idx.BuildFromLog(reader))
		assert.Equal(t, len(msgs), idx.Len())
	})
}
