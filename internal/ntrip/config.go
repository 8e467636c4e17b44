// Package ntrip implements the caster side of an NTRIP session: the handshake
// and the raw correction stream that follows it.
package ntrip

import (
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/matst80/ntriprelay/internal/httpx"
)

const (
	DefaultPort      = 2101
	DefaultVersion   = 2
	DefaultTimeout   = 10 * time.Second
	DefaultChunkSize = 4096

	// UserAgent is sent with every request. Casters commonly require the "NTRIP " prefix.
	UserAgent = "NTRIP ntripclient/1.0"
)

// Config holds the caster connection parameters. It is copied into the Client by New
// and never changes afterwards.
type Config struct {
	Host           string
	Port           int
	Mountpoint     string
	Username       string
	Password       string
	UseTLS         bool
	Version        int // 1 or 2
	ConnectTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Version == 0 {
		c.Version = DefaultVersion
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultTimeout
	}
	c.Mountpoint = strings.TrimLeft(c.Mountpoint, "/")
	return c
}

// Validate reports configuration errors. Defaults are not applied.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Version != 1 && c.Version != 2 {
		return fmt.Errorf("unsupported protocol version %d (want 1 or 2)", c.Version)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("negative connect timeout %s", c.ConnectTimeout)
	}
	return nil
}

// Addr returns host:port.
func (c Config) Addr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

// Path returns the request path with exactly one leading slash.
func (c Config) Path() string { return "/" + strings.TrimLeft(c.Mountpoint, "/") }

// Request builds the handshake request. Header order matters to v1 casters.
func (c Config) Request() *httpx.RequestHead {
	rh := &httpx.RequestHead{Method: "GET", URI: c.Path(), Proto: "HTTP/1.1"}
	rh.Add("Host", c.Host+":"+strconv.Itoa(c.Port))
	rh.Add("User-Agent", UserAgent)
	rh.Add("Accept", "*/*")
	if c.Version == 2 {
		rh.Add("Ntrip-Version", "Ntrip/2.0")
	}
	if c.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
		rh.Add("Authorization", "Basic "+cred)
	}
	return rh
}
