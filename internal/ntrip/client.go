package ntrip

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/matst80/ntriprelay/internal/httpx"
	"github.com/matst80/ntriprelay/internal/obs"
	"github.com/matst80/ntriprelay/internal/transport"
)

// HandshakeResult is the accepted caster response.
type HandshakeResult struct {
	Proto   string // "HTTP/1.1" for v2 casters, usually "ICY" for v1
	Code    int
	Reason  string
	Raw     []byte
	Headers []httpx.Header
}

// Client is one caster session. It owns at most one open connection at a time.
type Client struct {
	cfg    Config
	dialer transport.Dialer

	mu     sync.Mutex
	conn   net.Conn
	rest   []byte // leftover bytes received with the response header
	result *HandshakeResult
	stream *Stream
}

type Option func(*Client)

// WithDialer replaces the default TCP/TLS dialer.
func WithDialer(d transport.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New validates cfg after applying defaults (port 2101, version 2, 10s timeout).
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, dialer: transport.TCPDialer{}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Config() Config { return c.cfg }

// Connected reports whether a handshake succeeded and the connection is still open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Handshake returns the last accepted caster response, or nil.
func (c *Client) Handshake() *HandshakeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Connect dials the caster and performs the handshake. It is a no-op while a connection
// is open. Failures are never retried; the client stays not connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	deadline := time.Now().Add(c.cfg.ConnectTimeout)
	obs.Debug("ntrip.connect", obs.Fields{"addr": c.cfg.Addr(), "mountpoint": c.cfg.Mountpoint, "tls": c.cfg.UseTLS, "version": c.cfg.Version})
	conn, err := c.dialer.Dial(ctx, transport.Options{
		Host:    c.cfg.Host,
		Port:    c.cfg.Port,
		Timeout: c.cfg.ConnectTimeout,
		TLS:     c.cfg.UseTLS,
	})
	if err != nil {
		var te *transport.TLSError
		if errors.As(err, &te) {
			obs.HandshakeTotal.WithLabelValues("tls_error").Inc()
		} else {
			obs.HandshakeTotal.WithLabelValues("connect_error").Inc()
		}
		obs.Error("ntrip.connect.failed", obs.Fields{"addr": c.cfg.Addr(), "err": err})
		return err
	}
	res, rest, err := handshake(ctx, conn, c.cfg, deadline)
	if err != nil {
		_ = conn.Close()
		var he *HandshakeError
		if errors.As(err, &he) && he.Rejected {
			obs.HandshakeTotal.WithLabelValues("rejected").Inc()
		} else {
			obs.HandshakeTotal.WithLabelValues("failed").Inc()
		}
		obs.Error("ntrip.handshake.failed", obs.Fields{"addr": c.cfg.Addr(), "mountpoint": c.cfg.Mountpoint, "err": err})
		return err
	}
	obs.HandshakeTotal.WithLabelValues("ok").Inc()
	obs.Info("ntrip.handshake.ok", obs.Fields{"addr": c.cfg.Addr(), "mountpoint": c.cfg.Mountpoint, "proto": res.Proto, "leftover_bytes": len(rest)})
	c.conn, c.rest, c.result = conn, rest, res
	return nil
}

func handshake(ctx context.Context, conn net.Conn, cfg Config, deadline time.Time) (*HandshakeResult, []byte, error) {
	if cfg.ConnectTimeout > 0 {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if _, err := cfg.Request().WriteTo(conn); err != nil {
		return nil, nil, handshakeFailure(ctx, "send request", err)
	}
	head, rest, err := httpx.ReadHead(conn, httpx.MaxHeadBytes)
	if err != nil {
		return nil, nil, handshakeFailure(ctx, "read response", err)
	}
	ph, err := httpx.ParseResponseHead(head)
	if err != nil {
		return nil, nil, &HandshakeError{Msg: "invalid response from caster", Err: err}
	}
	if ph.Code != 200 {
		return nil, nil, &HandshakeError{Rejected: true, Code: ph.Code, Reason: ph.Reason}
	}
	if !stop() && ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}
	// streaming reads are unbounded
	_ = conn.SetDeadline(time.Time{})
	return &HandshakeResult{Proto: ph.Proto, Code: ph.Code, Reason: ph.Reason, Raw: ph.Raw, Headers: ph.Headers}, rest, nil
}

func handshakeFailure(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, httpx.ErrIncompleteHead) {
		return &HandshakeError{Msg: "connection closed before response was received", Err: err}
	}
	return &HandshakeError{Msg: msg, Err: err}
}

// Stream connects if needed and returns the stream for the current connection.
// chunkSize <= 0 selects DefaultChunkSize. Only one stream may be open at a time.
func (c *Client) Stream(ctx context.Context, chunkSize int) (*Stream, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil, ErrStreamOpen
	}
	if c.conn == nil {
		// closed between Connect and here
		return nil, net.ErrClosed
	}
	s := newStream(ctx, c, c.conn, c.rest, chunkSize)
	c.rest = nil
	c.stream = s
	return s, nil
}

// release returns the client to not connected if conn is still its connection.
func (c *Client) release(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.rest = nil
		c.stream = nil
	}
}

// Close closes the open stream or connection, if any. Safe to call repeatedly.
func (c *Client) Close() error {
	c.mu.Lock()
	s := c.stream
	conn := c.conn
	if s == nil {
		c.conn = nil
		c.rest = nil
	}
	c.mu.Unlock()
	if s != nil {
		return s.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
