// Package transport opens the single upstream connection to a caster.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Options configures one dial attempt.
type Options struct {
	Host    string
	Port    int
	Timeout time.Duration // bounds both the TCP dial and the TLS handshake; 0 = no bound
	TLS     bool
}

// Dialer opens an upstream connection.
type Dialer interface {
	Dial(ctx context.Context, opts Options) (net.Conn, error)
}

// ConnectError reports a failure to establish the TCP connection (timeout, refused, DNS).
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("connect %s: %v", e.Addr, e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// TLSError reports a failed TLS handshake or certificate verification.
type TLSError struct {
	Host string
	Err  error
}

func (e *TLSError) Error() string { return fmt.Sprintf("tls %s: %v", e.Host, e.Err) }
func (e *TLSError) Unwrap() error { return e.Err }

// TCPDialer is the default Dialer. TLSConfig, when set, is cloned for the upgrade
// instead of the system trust store defaults.
type TCPDialer struct {
	TLSConfig *tls.Config
}

var _ Dialer = TCPDialer{}

// Dial makes a single attempt, no retries.
func (d TCPDialer) Dial(ctx context.Context, opts Options) (net.Conn, error) {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	if !opts.TLS {
		return conn, nil
	}
	return d.upgrade(ctx, conn, opts.Host)
}

func (d TCPDialer) upgrade(ctx context.Context, conn net.Conn, host string) (net.Conn, error) {
	var cfg *tls.Config
	if d.TLSConfig != nil {
		cfg = d.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	cfg.ServerName = host
	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, &TLSError{Host: host, Err: err}
	}
	return tc, nil
}
