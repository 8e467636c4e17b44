package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// publisher is the subset of *redis.Client used by RedisSink.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisSink PUBLISHes every chunk, unmodified, on a Redis channel.
type RedisSink struct {
	client  publisher
	channel string
}

func NewRedis(client publisher, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// DialRedis connects and pings the server before returning the sink.
func DialRedis(ctx context.Context, addr, password string, db int, channel string) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedis(rdb, channel), nil
}

func (s *RedisSink) Channel() string { return s.channel }

func (s *RedisSink) Write(ctx context.Context, chunk []byte) error {
	if err := s.client.Publish(ctx, s.channel, chunk).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.channel, err)
	}
	return nil
}

func (s *RedisSink) Close() error { return s.client.Close() }
