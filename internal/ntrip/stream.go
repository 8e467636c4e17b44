package ntrip

import (
	"context"
	"errors"
	"io"
	"iter"
	"net"
	"sync"
	"time"

	"github.com/matst80/ntriprelay/internal/obs"
)

// State is the lifecycle position of a Stream.
type State int

const (
	StateNotStarted State = iota
	StateActive
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Stream yields the caster payload as ordered chunks: the leftover handshake bytes
// first, then raw reads until the peer closes. It cannot be restarted. Next must not be
// called concurrently; Close may be called from any goroutine to unwind a blocked Next.
type Stream struct {
	client *Client
	conn   net.Conn
	ctx    context.Context
	stop   func() bool
	buf    []byte

	mu      sync.Mutex
	rest    []byte
	state   State
	closed  bool
	err     error
	started time.Time
	bytes   int64
	chunks  int64

	finishOnce sync.Once
}

func newStream(ctx context.Context, c *Client, conn net.Conn, rest []byte, chunkSize int) *Stream {
	s := &Stream{
		client: c,
		conn:   conn,
		ctx:    ctx,
		buf:    make([]byte, chunkSize),
		rest:   rest,
	}
	// unblocks a pending Read on cancellation
	s.stop = context.AfterFunc(ctx, func() { _ = conn.Close() })
	return s
}

// Next returns the next chunk, or io.EOF once the stream is exhausted. Every returned
// slice is owned by the caller.
func (s *Stream) Next() ([]byte, error) {
	s.mu.Lock()
	switch s.state {
	case StateExhausted:
		s.mu.Unlock()
		return nil, io.EOF
	case StateNotStarted:
		s.state = StateActive
		s.started = time.Now()
	}
	if len(s.rest) > 0 {
		chunk := s.rest
		s.rest = nil
		s.account(chunk)
		s.mu.Unlock()
		return chunk, nil
	}
	s.mu.Unlock()

	for {
		n, err := s.conn.Read(s.buf)
		if n > 0 {
			chunk := append([]byte(nil), s.buf[:n]...)
			s.mu.Lock()
			s.account(chunk)
			s.mu.Unlock()
			if err != nil {
				s.finish(err)
			}
			return chunk, nil
		}
		if err != nil {
			s.finish(err)
			return nil, io.EOF
		}
	}
}

// account must be called with s.mu held.
func (s *Stream) account(chunk []byte) {
	s.bytes += int64(len(chunk))
	s.chunks++
	obs.UpstreamBytesTotal.Add(float64(len(chunk)))
	obs.UpstreamChunksTotal.Inc()
}

// All ranges over the remaining chunks. Leaving the loop early closes the stream.
func (s *Stream) All() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		defer s.Close()
		for {
			chunk, err := s.Next()
			if err != nil {
				return
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err distinguishes a read failure from a clean end. It returns a *StreamError if the
// stream ended on a read error, and nil after a peer close, Close or cancellation.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Bytes returns the payload bytes delivered so far.
func (s *Stream) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Close ends the stream, closes the connection and returns the client to not connected.
// It is idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.finish(nil)
	return nil
}

func (s *Stream) finish(readErr error) {
	s.finishOnce.Do(func() {
		s.stop()
		s.mu.Lock()
		wasStarted := s.state != StateNotStarted
		cancelled := s.closed || s.ctx.Err() != nil
		if readErr != nil && !errors.Is(readErr, io.EOF) && !cancelled {
			s.err = &StreamError{Err: readErr}
		}
		s.state = StateExhausted
		s.rest = nil
		started, total, chunks, err := s.started, s.bytes, s.chunks, s.err
		s.mu.Unlock()

		_ = s.conn.Close()
		s.client.release(s.conn)

		f := obs.Fields{"bytes": total, "chunks": chunks, "cancelled": cancelled}
		if wasStarted {
			d := time.Since(started)
			obs.StreamDurationSeconds.Observe(d.Seconds())
			f["duration"] = d.String()
		}
		if err != nil {
			obs.ErrorsTotal.WithLabelValues("stream_read").Inc()
			f["err"] = err
			obs.Error("ntrip.stream.error", f)
			return
		}
		obs.Info("ntrip.stream.end", f)
	})
}
