package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/ssargent/replaykit/pkg/codec"
	"github.com/ssargent/replaykit/pkg/engine"
)

// maxPayload bounds the payload size a header may declare.
const maxPayload = 256 << 20

// LogReader provides sequential access to records in a message log
type LogReader struct {
	file   *os.File
	reader *bufio.Reader
	codec  *codec.RecordCodec
	offset int64
	config LogReaderConfig
}

// NewLogReader creates a new log reader for the specified file
func NewLogReader(config LogReaderConfig) (*LogReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}

	return &LogReader{
		file:   file,
		reader: bufio.NewReaderSize(file, 64*1024),
		codec:  codec.NewRecordCodec(),
		offset: config.StartOffset,
		config: config,
	}, nil
}

// ReadNext reads the next record from the current offset. It returns io.EOF
// at the end of the log, including after a torn header.
func (r *LogReader) ReadNext() (*codec.Record, error) {
	header := make([]byte, codec.HeaderSize)
	n, err := io.ReadFull(r.reader, header)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	size := binary.LittleEndian.Uint32(header[10:14])
	if size > maxPayload {
		return nil, ErrCorruption
	}

	data := make([]byte, codec.HeaderSize+int(size))
	copy(data, header)
	m, err := io.ReadFull(r.reader, data[codec.HeaderSize:])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrCorruption
		}
		return nil, err
	}

	record, err := r.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, ErrCorruption
	}

	r.offset += int64(n + m)
	return record, nil
}

// ReadMessage reads and decodes the next message
func (r *LogReader) ReadMessage() (*engine.Message, error) {
	record, err := r.ReadNext()
	if err != nil {
		return nil, err
	}
	return r.decode(record)
}

func (r *LogReader) decode(record *codec.Record) (*engine.Message, error) {
	payload, err := r.codec.Open(record)
	if err != nil {
		return nil, errors.Join(ErrCorruption, err)
	}
	return codec.UnmarshalPayload(engine.Kind(record.Kind), record.Tick, payload)
}

// ReadAt reads the record at a specific offset without moving the read
// position
func (r *LogReader) ReadAt(offset int64) (*codec.Record, error) {
	header := make([]byte, codec.HeaderSize)
	if _, err := r.file.ReadAt(header, offset); err != nil {
		if err == io.EOF {
			return nil, ErrCorruption
		}
		return nil, err
	}

	size := binary.LittleEndian.Uint32(header[10:14])
	if size > maxPayload {
		return nil, ErrCorruption
	}
	data := make([]byte, codec.HeaderSize+int(size))
	copy(data, header)
	if size > 0 {
		if _, err := r.file.ReadAt(data[codec.HeaderSize:], offset+codec.HeaderSize); err != nil {
			if err == io.EOF {
				return nil, ErrCorruption
			}
			return nil, err
		}
	}

	record, err := r.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, ErrCorruption
	}
	return record, nil
}

// SeekTo sets the read offset
func (r *LogReader) SeekTo(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	r.reader.Reset(r.file) // Clear buffered data
	r.offset = offset
	return nil
}

// Offset returns the current read offset
func (r *LogReader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator for records
func (r *LogReader) Iterator() RecordIterator {
	return &logRecordIterator{reader: r}
}

// Close closes the log reader
func (r *LogReader) Close() error {
	return r.file.Close()
}

// logRecordIterator implements RecordIterator for streaming access
type logRecordIterator struct {
	reader *LogReader
	record *codec.Record
	err    error
}

func (it *logRecordIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.record, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *logRecordIterator) Record() *codec.Record {
	return it.record
}

func (it *logRecordIterator) Message() (*engine.Message, error) {
	return it.reader.decode(it.record)
}

func (it *logRecordIterator) Err() error {
	if it.err == io.EOF {
		return nil
	}
	return it.err
}

func (it *logRecordIterator) Close() error {
	// Don't close the underlying reader as it's owned by the caller
	return nil
}
