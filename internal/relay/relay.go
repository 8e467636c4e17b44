// Package relay fans an upstream chunk stream out to any number of local TCP
// subscribers. Subscribers get the raw bytes, no framing and no handshake.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/matst80/ntriprelay/internal/obs"
	"github.com/matst80/ntriprelay/internal/ratelimit"
)

const (
	DefaultPollInterval = time.Second
	DefaultWriteTimeout = 5 * time.Second
)

// Source is an ordered, finite chunk stream. Next returns io.EOF once exhausted.
// Close must unblock a pending Next.
type Source interface {
	Next() ([]byte, error)
	Close() error
}

// Meter receives the size of every successful subscriber write.
type Meter interface {
	Egress(size int)
}

// Config configures a relay Server.
type Config struct {
	Addr         string
	Backlog      int           // kept for parity with socket APIs; the OS default backlog applies
	PollInterval time.Duration // accept wait before re-checking the stop flag
	WriteTimeout time.Duration // per-chunk subscriber write deadline; negative disables
	Limiter      *ratelimit.RateLimiter
	Meter        Meter
}

// Server is one relay run. It is not reusable after Serve returns.
type Server struct {
	cfg       Config
	ready     chan struct{}
	readyOnce sync.Once

	mu   sync.Mutex
	addr net.Addr
	hub  *hub
}

func New(cfg Config) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	return &Server{cfg: cfg, ready: make(chan struct{})}
}

// Ready is closed once Serve has bound the listener or failed to. Addr is nil after a
// failed bind.
func (s *Server) Ready() <-chan struct{} { return s.ready }

func (s *Server) markReady() { s.readyOnce.Do(func() { close(s.ready) }) }

// Addr returns the bound listener address, nil before Ready or when the bind failed.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Subscribers lists the currently connected subscribers.
func (s *Server) Subscribers() []SubscriberInfo {
	s.mu.Lock()
	h := s.hub
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.list()
}

// Serve listens on cfg.Addr and forwards every chunk of src to every subscriber until
// src is exhausted or ctx is cancelled. Both endings return nil. On return the
// listener, every subscriber and src are closed.
func (s *Server) Serve(ctx context.Context, src Source) error {
	defer src.Close()
	defer s.markReady()
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		obs.ErrorsTotal.WithLabelValues("relay_listen").Inc()
		return fmt.Errorf("relay listen %s: %w", s.cfg.Addr, err)
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout < 0 {
		writeTimeout = 0
	}
	h := newHub(ctx, writeTimeout, s.cfg.Meter, s.cfg.Limiter)
	go h.run()

	s.mu.Lock()
	s.addr = ln.Addr()
	s.hub = h
	s.mu.Unlock()
	s.markReady()
	obs.Info("relay.listen", obs.Fields{"addr": ln.Addr().String()})

	stopping := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); s.acceptLoop(ln, h, stopping) }()

	// an upstream read has no deadline, closing src unwinds it
	stopSrc := context.AfterFunc(ctx, func() { _ = src.Close() })

	var chunks int
	for {
		chunk, err := src.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				obs.Error("relay.source", obs.Fields{"err": err})
			}
			break
		}
		chunks++
		h.broadcast(chunk)
	}
	stopSrc()

	close(stopping)
	_ = ln.Close()
	wg.Wait()
	h.stop()
	obs.Info("relay.stop", obs.Fields{"addr": ln.Addr().String(), "chunks": chunks, "cancelled": ctx.Err() != nil})
	return nil
}

func (s *Server) acceptLoop(ln net.Listener, h *hub, stopping <-chan struct{}) {
	tl, _ := ln.(*net.TCPListener)
	for {
		select {
		case <-stopping:
			return
		default:
		}
		if tl != nil {
			_ = tl.SetDeadline(time.Now().Add(s.cfg.PollInterval))
		}
		c, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			obs.Error("relay.accept", obs.Fields{"err": err})
			obs.ErrorsTotal.WithLabelValues("relay_accept").Inc()
			select {
			case <-stopping:
				return
			case <-time.After(s.cfg.PollInterval / 10):
			}
			continue
		}
		sub := newSubscriber(c)
		if !s.cfg.Limiter.AllowConnection(sub.peer) {
			_ = c.Close()
			obs.RelayDroppedTotal.WithLabelValues("rate_limited").Inc()
			obs.Debug("relay.subscriber.rate_limited", obs.Fields{"remote": c.RemoteAddr().String()})
			continue
		}
		if !h.add(sub) {
			_ = c.Close()
			return
		}
	}
}
