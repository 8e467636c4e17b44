package ntrip

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/matst80/ntriprelay/internal/transport"
)

type readResult struct {
	data []byte
	err  error
}

// scriptedConn replays reads in order and records what the client wrote.
type scriptedConn struct {
	mu      sync.Mutex
	reads   []readResult
	nreads  int
	written bytes.Buffer
	closed  bool
}

func newScriptedConn(reads ...readResult) *scriptedConn { return &scriptedConn{reads: reads} }

func (c *scriptedConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	c.nreads++
	if len(c.reads) == 0 {
		return 0, io.EOF
	}
	r := c.reads[0]
	n := copy(p, r.data)
	if n < len(r.data) {
		c.reads[0].data = r.data[n:]
		return n, nil
	}
	c.reads = c.reads[1:]
	return n, r.err
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(p)
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedConn) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nreads
}

func (c *scriptedConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *scriptedConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (c *scriptedConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (c *scriptedConn) SetDeadline(t time.Time) error      { return nil }
func (c *scriptedConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *scriptedConn) SetWriteDeadline(t time.Time) error { return nil }

// countingDialer hands out conns from next() and counts dial attempts.
type countingDialer struct {
	mu    sync.Mutex
	dials int
	next  func() (net.Conn, error)
}

func (d *countingDialer) Dial(ctx context.Context, opts transport.Options) (net.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	return d.next()
}

func (d *countingDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
