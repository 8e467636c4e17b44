package ntrip

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathHasSingleLeadingSlash(t *testing.T) {
	cases := map[string]string{
		"MOUNT":    "/MOUNT",
		"/MOUNT":   "/MOUNT",
		"//MOUNT":  "/MOUNT",
		"":         "/",
		"/":        "/",
		"RTCM3/a":  "/RTCM3/a",
		"/RTCM3/a": "/RTCM3/a",
	}
	for in, want := range cases {
		c, err := New(Config{Host: "caster", Mountpoint: in})
		require.NoError(t, err)
		require.Equal(t, want, c.Config().Path(), in)
		require.True(t, strings.HasPrefix(string(c.Config().Request().Bytes()), "GET "+want+" HTTP/1.1\r\n"))
	}
}

func TestRequestVersion1HasNoNtripVersion(t *testing.T) {
	c, err := New(Config{Host: "caster", Mountpoint: "M", Version: 1})
	require.NoError(t, err)
	req := string(c.Config().Request().Bytes())
	require.NotContains(t, req, "Ntrip-Version")
	require.Equal(t, "GET /M HTTP/1.1\r\nHost: caster:2101\r\nUser-Agent: "+UserAgent+"\r\nAccept: */*\r\n\r\n", req)
}

func TestRequestVersion2FieldOrder(t *testing.T) {
	c, err := New(Config{Host: "caster.example", Port: 2102, Mountpoint: "/M", Username: "u", Password: "p", Version: 2})
	require.NoError(t, err)
	want := "GET /M HTTP/1.1\r\n" +
		"Host: caster.example:2102\r\n" +
		"User-Agent: " + UserAgent + "\r\n" +
		"Accept: */*\r\n" +
		"Ntrip-Version: Ntrip/2.0\r\n" +
		"Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte("u:p")) + "\r\n" +
		"\r\n"
	require.Equal(t, want, string(c.Config().Request().Bytes()))
}

func TestDefaultVersionIs2(t *testing.T) {
	c, err := New(Config{Host: "caster"})
	require.NoError(t, err)
	require.Equal(t, 2, c.Config().Version)
	require.Equal(t, DefaultPort, c.Config().Port)
	require.Equal(t, DefaultTimeout, c.Config().ConnectTimeout)
	require.Equal(t, "Ntrip/2.0", c.Config().Request().Get("Ntrip-Version"))
}

func TestUsernameWithoutPassword(t *testing.T) {
	c, err := New(Config{Host: "caster", Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("alice:")), c.Config().Request().Get("Authorization"))
}

func TestNoUsernameNoAuthorization(t *testing.T) {
	c, err := New(Config{Host: "caster", Password: "secret"})
	require.NoError(t, err)
	require.Empty(t, c.Config().Request().Get("Authorization"))
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{Host: "caster", Version: 3})
	require.Error(t, err)
	_, err = New(Config{Host: "caster", Port: 70000})
	require.Error(t, err)
	_, err = New(Config{Host: "caster", Port: -1})
	require.Error(t, err)
}
