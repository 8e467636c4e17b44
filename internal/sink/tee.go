package sink

import (
	"context"
	"sync"

	"github.com/matst80/ntriprelay/internal/obs"
)

// Source is an ordered chunk stream, as produced by ntrip.Stream.
type Source interface {
	Next() ([]byte, error)
	Close() error
}

// TeeSource passes chunks through unchanged and copies each one to its mirror sinks.
// A mirror whose Write fails is closed and dropped; the stream itself continues.
type TeeSource struct {
	src Source
	ctx context.Context

	mu      sync.Mutex
	mirrors []Sink
	once    sync.Once
}

func Tee(ctx context.Context, src Source, mirrors ...Sink) *TeeSource {
	// mirror writes are not cut short by cancellation
	return &TeeSource{src: src, ctx: context.WithoutCancel(ctx), mirrors: mirrors}
}

func (t *TeeSource) Next() ([]byte, error) {
	chunk, err := t.src.Next()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.mirrors[:0]
	for _, m := range t.mirrors {
		if werr := m.Write(t.ctx, chunk); werr != nil {
			obs.Error("sink.mirror.drop", obs.Fields{"err": werr})
			obs.ErrorsTotal.WithLabelValues("mirror_write").Inc()
			_ = m.Close()
			continue
		}
		kept = append(kept, m)
	}
	t.mirrors = kept
	return chunk, nil
}

// Mirrors returns the number of mirrors still attached.
func (t *TeeSource) Mirrors() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.mirrors)
}

// Close closes the source and then every remaining mirror.
func (t *TeeSource) Close() error {
	err := t.src.Close()
	t.once.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for _, m := range t.mirrors {
			_ = m.Close()
		}
		t.mirrors = nil
	})
	return err
}
