package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThroughputCounts(t *testing.T) {
	tp := NewThroughput()
	defer tp.Close()

	require.NoError(t, tp.Write(context.Background(), []byte("abcd")))
	tp.Ingress(6)
	tp.Ingress(0)
	tp.Egress(10)
	tp.Egress(-1)

	s := tp.Snapshot()
	require.Equal(t, uint64(10), s.RxBytes)
	require.Equal(t, uint64(2), s.RxChunks)
	require.Equal(t, uint64(10), s.TxBytes)
	require.False(t, s.LastChunk.IsZero())
	require.False(t, s.Since.IsZero())
}
