// Package sink owns the downstream byte channel that receives framed
// transmissions. The process is the channel's only writer; every record goes
// out in a single serialized write so the reader never sees interleaved or
// half-written records.
package sink

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Sink accepts one framed record per Write call.
type Sink interface {
	Write(record []byte) error
	Close() error
}

// WriterSink serializes whole-record writes onto any io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Sink = (*WriterSink)(nil)

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.w.Write(record)
	if err != nil {
		return err
	}
	if n != len(record) {
		return io.ErrShortWrite
	}
	return nil
}

func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OpenPipe opens a named pipe for writing, creating the FIFO first when the
// path does not exist. The open blocks until a reader attaches on the other
// end; that is the expected backpressure of the output channel.
func OpenPipe(path string) (*WriterSink, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := unix.Mkfifo(path, 0o644); err != nil {
			return nil, fmt.Errorf("creating fifo %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY, os.ModeNamedPipe)
	if err != nil {
		return nil, fmt.Errorf("opening fifo %s: %w", path, err)
	}
	return NewWriterSink(f), nil
}

// OpenFile appends framed records to a regular file. Useful for capture and
// debugging in place of the pipe.
func OpenFile(path string) (*WriterSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening sink file %s: %w", path, err)
	}
	return NewWriterSink(f), nil
}
