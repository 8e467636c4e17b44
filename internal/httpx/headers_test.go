package httpx

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestRequestHeadKeepsOrder(t *testing.T) {
	rh := &RequestHead{Method: "GET", URI: "/MOUNT", Proto: "HTTP/1.1"}
	rh.Add("Host", "caster:2101")
	rh.Add("User-Agent", "x")
	rh.Add("Accept", "*/*")

	require.Equal(t, "GET /MOUNT HTTP/1.1\r\nHost: caster:2101\r\nUser-Agent: x\r\nAccept: */*\r\n\r\n", string(rh.Bytes()))
	require.Equal(t, "x", rh.Get("user-agent"))
}

func TestReadHeadSplitsRest(t *testing.T) {
	in := "HTTP/1.1 200 OK\r\nContent-Type: gnss/data\r\n\r\n\xd3\x00\x13payload"
	head, rest, err := ReadHead(strings.NewReader(in), MaxHeadBytes)
	require.NoError(t, err)
	require.Equal(t, "HTTP/1.1 200 OK\r\nContent-Type: gnss/data", string(head))
	require.Equal(t, []byte("\xd3\x00\x13payload"), rest)
}

func TestReadHeadAcrossPartialReads(t *testing.T) {
	in := "ICY 200 OK\r\n\r\nabc"
	head, rest, err := ReadHead(iotest.OneByteReader(strings.NewReader(in)), MaxHeadBytes)
	require.NoError(t, err)
	require.Equal(t, "ICY 200 OK", string(head))
	// one byte reads stop exactly at the terminator
	require.Empty(t, rest)
}

func TestReadHeadEarlyClose(t *testing.T) {
	_, _, err := ReadHead(strings.NewReader("HTTP/1.1 200 OK\r\n"), MaxHeadBytes)
	require.True(t, errors.Is(err, ErrIncompleteHead))
}

func TestReadHeadTooLarge(t *testing.T) {
	in := strings.Repeat("a", 3*readChunk)
	_, _, err := ReadHead(strings.NewReader(in), readChunk)
	require.True(t, errors.Is(err, ErrHeadTooLarge))
}

func TestReadHeadReadError(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("HTTP/1.1"), iotest.ErrReader(boom))
	_, _, err := ReadHead(r, MaxHeadBytes)
	require.ErrorIs(t, err, boom)
}

func TestParseResponseHead(t *testing.T) {
	ph, err := ParseResponseHead([]byte("HTTP/1.1 401 Unauthorized\r\nWWW-Authenticate: Basic realm=\"x\"\r\nbroken"))
	require.NoError(t, err)
	require.Equal(t, "HTTP/1.1", ph.Proto)
	require.Equal(t, 401, ph.Code)
	require.Equal(t, "Unauthorized", ph.Reason)
	require.Equal(t, `Basic realm="x"`, ph.Get("www-authenticate"))
	require.Len(t, ph.Headers, 1)
}

func TestParseResponseHeadDropsNonASCII(t *testing.T) {
	ph, err := ParseResponseHead([]byte("HTTP/1.1 404 Nicht gefunden \xc3\xbc"))
	require.NoError(t, err)
	require.Equal(t, 404, ph.Code)
	require.Equal(t, "Nicht gefunden", ph.Reason)
}

func TestParseStatusLineErrors(t *testing.T) {
	for _, line := range []string{"", "HTTP/1.1", "HTTP/1.1 abc OK"} {
		_, _, _, err := ParseStatusLine(line)
		require.True(t, errors.Is(err, ErrStatusLine), line)
	}
	proto, code, reason, err := ParseStatusLine("SOURCETABLE 200 OK")
	require.NoError(t, err)
	require.Equal(t, "SOURCETABLE", proto)
	require.Equal(t, 200, code)
	require.Equal(t, "OK", reason)
}

func TestWriteToPropagatesError(t *testing.T) {
	rh := &RequestHead{Method: "GET", URI: "/", Proto: "HTTP/1.1"}
	_, err := rh.WriteTo(failWriter{})
	require.Error(t, err)
	var b bytes.Buffer
	n, err := rh.WriteTo(&b)
	require.NoError(t, err)
	require.Equal(t, int64(b.Len()), n)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }
