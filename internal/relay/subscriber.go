package relay

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
)

// SubscriberInfo describes a connected subscriber.
type SubscriberInfo struct {
	ID          string    `json:"id"`
	Addr        string    `json:"addr"`
	ConnectedAt time.Time `json:"connected_at"`
	BytesSent   int64     `json:"bytes_sent"`
}

type subscriber struct {
	id          string
	conn        net.Conn
	peer        string // remote IP, rate limiter key
	connectedAt time.Time
	sent        int64 // only touched by the hub goroutine
}

func newSubscriber(c net.Conn) *subscriber {
	return &subscriber{
		id:          uuid.NewString(),
		conn:        c,
		peer:        remoteIP(c),
		connectedAt: time.Now(),
	}
}

// write sends chunk within timeout (none if <= 0). Cancelling ctx expires the deadline of
// a write in progress.
func (s *subscriber) write(ctx context.Context, chunk []byte, timeout time.Duration) error {
	if timeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetWriteDeadline(time.Now()) })
	n, err := s.conn.Write(chunk)
	stop()
	s.sent += int64(n)
	return err
}

func (s *subscriber) info() SubscriberInfo {
	return SubscriberInfo{ID: s.id, Addr: s.conn.RemoteAddr().String(), ConnectedAt: s.connectedAt, BytesSent: s.sent}
}

func dropReason(err error) string {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return "write_timeout"
	}
	return "write_error"
}

func remoteIP(c net.Conn) string {
	h, _, err := net.SplitHostPort(c.RemoteAddr().String())
	if err != nil {
		return c.RemoteAddr().String()
	}
	return h
}
