// Package sink delivers stream chunks to local outputs and mirrors.
package sink

import (
	"context"
	"io"
)

// Sink consumes chunks in stream order.
type Sink interface {
	Write(ctx context.Context, chunk []byte) error
	Close() error
}

type flusher interface{ Flush() error }

type syncer interface{ Sync() error }

// WriterSink writes chunks to an io.Writer, flushing after every chunk when supported.
type WriterSink struct {
	w      io.Writer
	closer io.Closer
}

// NewWriter wraps w. If w is also an io.Closer, Close closes it.
func NewWriter(w io.Writer) *WriterSink {
	s := &WriterSink{w: w}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// NewWriterNoClose wraps w without taking ownership (for stdout).
func NewWriterNoClose(w io.Writer) *WriterSink { return &WriterSink{w: w} }

func (s *WriterSink) Write(_ context.Context, chunk []byte) error {
	if _, err := s.w.Write(chunk); err != nil {
		return err
	}
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func (s *WriterSink) Close() error {
	if f, ok := s.w.(flusher); ok {
		_ = f.Flush()
	}
	if s.closer == nil {
		return nil
	}
	if sy, ok := s.w.(syncer); ok {
		_ = sy.Sync()
	}
	return s.closer.Close()
}
