// Package stats keeps byte counters and sliding-window bitrates for the upstream
// stream and the relay egress.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/prep/average"
)

const (
	averageWindow      = 10 * time.Second
	averageGranularity = time.Second
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Since        time.Time `json:"since"`
	RxBytes      uint64    `json:"rx_bytes"`
	RxChunks     uint64    `json:"rx_chunks"`
	RxBitrate    float64   `json:"rx_bitrate"`     // bit/s
	TopRxBitrate float64   `json:"rx_top_bitrate"` // bit/s
	TxBytes      uint64    `json:"tx_bytes"`
	TxBitrate    float64   `json:"tx_bitrate"` // bit/s
	LastChunk    time.Time `json:"last_chunk,omitempty"`
}

// Throughput counts ingress (caster) and egress (relay subscribers) bytes.
type Throughput struct {
	rxBitrate *average.SlidingWindow
	txBitrate *average.SlidingWindow

	lock         sync.Mutex
	since        time.Time
	rxBytes      uint64
	rxChunks     uint64
	txBytes      uint64
	topRxBitrate float64
	lastChunk    time.Time
}

func NewThroughput() *Throughput {
	t := &Throughput{since: time.Now()}
	t.rxBitrate, _ = average.New(averageWindow, averageGranularity)
	t.txBitrate, _ = average.New(averageWindow, averageGranularity)
	return t
}

// Ingress records one upstream chunk of size bytes.
func (t *Throughput) Ingress(size int) {
	if size <= 0 {
		return
	}
	t.rxBitrate.Add(int64(size) * 8)

	t.lock.Lock()
	defer t.lock.Unlock()
	t.rxBytes += uint64(size)
	t.rxChunks++
	t.lastChunk = time.Now()
	if bitrate := t.rxBitrate.Average(averageWindow); bitrate > t.topRxBitrate {
		t.topRxBitrate = bitrate
	}
}

// Egress records size bytes written to a subscriber.
func (t *Throughput) Egress(size int) {
	if size <= 0 {
		return
	}
	t.txBitrate.Add(int64(size) * 8)

	t.lock.Lock()
	t.txBytes += uint64(size)
	t.lock.Unlock()
}

// Write lets Throughput sit in a sink tee; it never fails.
func (t *Throughput) Write(_ context.Context, chunk []byte) error {
	t.Ingress(len(chunk))
	return nil
}

// Close stops the sliding windows.
func (t *Throughput) Close() error {
	t.rxBitrate.Stop()
	t.txBitrate.Stop()
	return nil
}

func (t *Throughput) Snapshot() Snapshot {
	t.lock.Lock()
	defer t.lock.Unlock()
	return Snapshot{
		Since:        t.since,
		RxBytes:      t.rxBytes,
		RxChunks:     t.rxChunks,
		RxBitrate:    t.rxBitrate.Average(averageWindow),
		TopRxBitrate: t.topRxBitrate,
		TxBytes:      t.txBytes,
		TxBitrate:    t.txBitrate.Average(averageWindow),
		LastChunk:    t.lastChunk,
	}
}
