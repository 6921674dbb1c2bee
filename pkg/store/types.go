package store

import (
	"time"

	"github.com/ssargent/replaykit/pkg/codec"
	"github.com/ssargent/replaykit/pkg/engine"
)

// LogWriterConfig holds configuration for the log writer
type LogWriterConfig struct {
	FilePath      string        // Path to the message log
	FsyncInterval time.Duration // How often to fsync (0 = every write, negative = on Sync and Close only)
	BufferSize    int           // Write buffer size
	CompressAbove int           // Compress payloads of at least this many bytes (0 = never)
}

// LogReaderConfig holds configuration for the log reader
type LogReaderConfig struct {
	FilePath    string // Path to the message log
	StartOffset int64  // Offset to start reading from
}

// RecordIterator provides streaming access to records
type RecordIterator interface {
	Next() bool
	Record() *codec.Record
	// Message decodes the current record.
	Message() (*engine.Message, error)
	// Err returns the error that stopped iteration, nil at a clean end.
	Err() error
	Close() error
}

// Errors
var (
	ErrCorruption = &LogError{"data corruption detected"}
	ErrClosed     = &LogError{"log is closed"}
)

// LogError represents a message log error
type LogError struct {
	Message string
}

func (e *LogError) Error() string {
	return e.Message
}
