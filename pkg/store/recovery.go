package store

import (
	"errors"
	"io"
	"os"
	"time"
)

// RecoveryResult describes what Recover found in a message log
type RecoveryResult struct {
	RecordsValidated int64
	BytesTruncated   int64
	FileSizeBefore   int64
	FileSizeAfter    int64
	RecoveryTime     time.Duration
}

// Recover validates every record of the log at filePath and truncates the
// file after the last intact record, so a writer can resume appending.
func Recover(filePath string) (*RecoveryResult, error) {
	startTime := time.Now()

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &RecoveryResult{RecoveryTime: time.Since(startTime)}, nil
		}
		return nil, err
	}
	sizeBefore := fileInfo.Size()

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var validated int64
	for {
		_, err := reader.ReadNext()
		if err != nil {
			if err == io.EOF || errors.Is(err, ErrCorruption) {
				break
			}
			return nil, err
		}
		validated++
	}

	lastValid := reader.Offset()
	if lastValid < sizeBefore {
		file, err := os.OpenFile(filePath, os.O_RDWR, 0600)
		if err != nil {
			return nil, err
		}
		if err := file.Truncate(lastValid); err != nil {
			file.Close()
			return nil, err
		}
		if err := file.Close(); err != nil {
			return nil, err
		}
	}

	return &RecoveryResult{
		RecordsValidated: validated,
		BytesTruncated:   sizeBefore - lastValid,
		FileSizeBefore:   sizeBefore,
		FileSizeAfter:    lastValid,
		RecoveryTime:     time.Since(startTime),
	}, nil
}
