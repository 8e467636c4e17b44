package main

import (
	"flag"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/matst80/ntriprelay/internal/ntrip"
)

// Config holds all runtime configuration derived from flags. Credentials default to
// NTRIP_USER / NTRIP_PASSWORD, which may also come from a .env file.
type Config struct {
	Host       string
	Port       int
	Mountpoint string
	User       string
	Password   string
	HTTPS      bool
	Version    int
	Timeout    time.Duration
	ChunkSize  int
	Output     string

	ServeHost         string
	ServePort         int
	RelayWriteTimeout time.Duration
	RelayConnRate     int
	RelayPeerConnRate int
	RelayBurst        int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	MetricsAddr string
	Debug       bool
}

var cfg Config

// init registers flags into the global flag set. main() parses them.
func init() {
	flag.StringVar(&cfg.Host, "host", "", "caster host (required)")
	flag.IntVar(&cfg.Port, "port", ntrip.DefaultPort, "caster port")
	flag.StringVar(&cfg.Mountpoint, "mountpoint", "", "caster mountpoint")
	flag.StringVar(&cfg.User, "user", os.Getenv("NTRIP_USER"), "username for basic auth (env NTRIP_USER)")
	flag.StringVar(&cfg.Password, "password", os.Getenv("NTRIP_PASSWORD"), "password for basic auth (env NTRIP_PASSWORD)")
	flag.BoolVar(&cfg.HTTPS, "https", false, "connect with TLS")
	flag.IntVar(&cfg.Version, "version", ntrip.DefaultVersion, "NTRIP protocol version (1 or 2)")
	flag.DurationVar(&cfg.Timeout, "timeout", ntrip.DefaultTimeout, "connect and handshake timeout")
	flag.IntVar(&cfg.ChunkSize, "chunk-size", ntrip.DefaultChunkSize, "maximum bytes per upstream read")
	flag.StringVar(&cfg.Output, "output", "", "file to write the stream to, stdout otherwise")

	flag.StringVar(&cfg.ServeHost, "serve-host", "0.0.0.0", "relay bind address")
	flag.IntVar(&cfg.ServePort, "serve-port", 0, "serve the stream to TCP subscribers on serve-host:PORT")
	flag.DurationVar(&cfg.RelayWriteTimeout, "relay-write-timeout", 5*time.Second, "drop subscribers whose write takes longer (negative disables)")
	flag.IntVar(&cfg.RelayConnRate, "relay-conn-rate", 0, "global subscriber accepts per second (0 = unlimited)")
	flag.IntVar(&cfg.RelayPeerConnRate, "relay-peer-conn-rate", 0, "subscriber accepts per second per IP (0 = unlimited)")
	flag.IntVar(&cfg.RelayBurst, "relay-burst", 5, "burst size for subscriber accept limits")

	flag.StringVar(&cfg.RedisAddr, "redis-addr", "", "mirror chunks to Redis pub/sub at this address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password (env REDIS_PASSWORD)")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database")
	flag.StringVar(&cfg.RedisChannel, "redis-channel", "", "Redis channel (default ntrip:<mountpoint>)")

	flag.StringVar(&cfg.MetricsAddr, "metrics", "", "metrics, health and dashboard listen address (empty disables)")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logs")
}

func (c *Config) clientConfig() ntrip.Config {
	return ntrip.Config{
		Host:           c.Host,
		Port:           c.Port,
		Mountpoint:     c.Mountpoint,
		Username:       c.User,
		Password:       c.Password,
		UseTLS:         c.HTTPS,
		Version:        c.Version,
		ConnectTimeout: c.Timeout,
	}
}

func (c *Config) relayAddr() string {
	return net.JoinHostPort(c.ServeHost, strconv.Itoa(c.ServePort))
}

func (c *Config) redisChannel(mountpoint string) string {
	if c.RedisChannel != "" {
		return c.RedisChannel
	}
	return "ntrip:" + mountpoint
}
