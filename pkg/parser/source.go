package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
)

// LogSource provides one log stream for ParseReader.
type LogSource interface {
	// Name identifies the stream in reports (a path or upload name).
	Name() string

	// Open returns the stream. The caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a log stream from a file on disk.
type FileSource struct {
	path string
}

// NewFileSource creates a LogSource for the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the file path.
func (s *FileSource) Name() string {
	return s.path
}

// Open opens the file for reading.
func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", s.path, err)
	}
	return f, nil
}

// BytesSource serves an in-memory stream, such as an HTTP upload.
type BytesSource struct {
	name string
	data []byte
}

// NewBytesSource creates a LogSource over data.
func NewBytesSource(name string, data []byte) *BytesSource {
	return &BytesSource{name: name, data: data}
}

// Name returns the stream name.
func (s *BytesSource) Name() string {
	return s.name
}

// Open returns a reader over the buffered content.
func (s *BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

// ReaderSource streams from an already open reader, such as standard input.
// It can be opened once; closing it leaves the underlying reader open.
type ReaderSource struct {
	name string
	r    io.Reader
}

// NewReaderSource creates a LogSource over r.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

// Name returns the stream name.
func (s *ReaderSource) Name() string {
	return s.name
}

// Open returns the wrapped reader.
func (s *ReaderSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(s.r), nil
}
