package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matst80/ntriprelay/internal/ntrip"
	"github.com/matst80/ntriprelay/internal/stats"
	"github.com/matst80/ntriprelay/internal/transport"
)

func TestExitCode(t *testing.T) {
	require.Equal(t, exitOK, exitCode(nil))
	require.Equal(t, exitOK, exitCode(fmt.Errorf("stream: %w", context.Canceled)))
	require.Equal(t, exitHandshake, exitCode(&ntrip.HandshakeError{Rejected: true, Code: 401, Reason: "Unauthorized"}))
	require.Equal(t, exitOther, exitCode(&transport.ConnectError{Addr: "x:2101", Err: errors.New("refused")}))
	require.Equal(t, exitOther, exitCode(&ntrip.StreamError{Err: errors.New("reset")}))
}

func TestClientConfigFromFlags(t *testing.T) {
	c := Config{Host: "caster", Port: 2102, Mountpoint: "/M", User: "u", HTTPS: true, Version: 1, Timeout: time.Second}
	nc := c.clientConfig()
	require.Equal(t, "caster", nc.Host)
	require.Equal(t, 2102, nc.Port)
	require.Equal(t, "u", nc.Username)
	require.True(t, nc.UseTLS)
	require.Equal(t, 1, nc.Version)
	require.Equal(t, "ntrip:M", c.redisChannel("M"))
	c.RedisChannel = "custom"
	require.Equal(t, "custom", c.redisChannel("M"))
	c.ServeHost, c.ServePort = "0.0.0.0", 2947
	require.Equal(t, "0.0.0.0:2947", c.relayAddr())
}

func TestMetricsEndpoints(t *testing.T) {
	tp := stats.NewThroughput()
	defer tp.Close()
	state := newAppState(ntrip.Config{Host: "caster", Port: 2101, Mountpoint: "M"}, tp)
	srv := httptest.NewServer(newMetricsMux(state))
	defer srv.Close()

	for path, code := range map[string]int{
		"/healthz":   http.StatusOK,
		"/readyz":    http.StatusServiceUnavailable,
		"/api/state": http.StatusOK,
		"/dashboard": http.StatusOK,
		"/metrics":   http.StatusOK,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, code, resp.StatusCode, path)
	}

	st := collectStats(state)
	require.Equal(t, "connecting", st.State)
	require.Equal(t, "caster:2101", st.Caster)
	require.NotNil(t, st.Subscribers)
}

func TestRenderPageFailureIsCleanError(t *testing.T) {
	rec := httptest.NewRecorder()
	renderPage(rec, "no-such-page", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "render failed\n", rec.Body.String())

	rec = httptest.NewRecorder()
	renderPage(rec, "dashboard", Stats{Caster: "caster:2101", Mountpoint: "M", State: "active"}.ToTemplateMap())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "caster:2101/M")
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}
