package obs

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogLineIsJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("relay.start", Fields{"addr": "127.0.0.1:2947", "err": errors.New("boom")})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "info", line["level"])
	require.Equal(t, "relay.start", line["msg"])
	require.Equal(t, "127.0.0.1:2947", line["addr"])
	require.Equal(t, "boom", line["err"])
	require.NotEmpty(t, line["ts"])
}

func TestDebugGated(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Debug("hidden", nil)
	require.Zero(t, buf.Len())

	EnableDebug(true)
	defer EnableDebug(false)
	Debug("shown", Fields{"n": 1})
	require.True(t, strings.Contains(buf.String(), `"msg":"shown"`))
}
