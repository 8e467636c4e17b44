package main

import (
	"sync"
	"time"

	"github.com/matst80/ntriprelay/internal/ntrip"
	"github.com/matst80/ntriprelay/internal/relay"
	"github.com/matst80/ntriprelay/internal/stats"
)

// appState is what the metrics server reports about the running session.
type appState struct {
	mu         sync.Mutex
	caster     string
	mountpoint string
	stream     *ntrip.Stream
	relay      *relay.Server
	closing    bool
	tp         *stats.Throughput
}

func newAppState(c ntrip.Config, tp *stats.Throughput) *appState {
	return &appState{caster: c.Addr(), mountpoint: c.Mountpoint, tp: tp}
}

func (s *appState) setStream(st *ntrip.Stream) { s.mu.Lock(); s.stream = st; s.mu.Unlock() }
func (s *appState) setRelay(r *relay.Server)    { s.mu.Lock(); s.relay = r; s.mu.Unlock() }
func (s *appState) setClosing()                 { s.mu.Lock(); s.closing = true; s.mu.Unlock() }

// isReady is true while the upstream stream has not ended.
func (s *appState) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closing && s.stream != nil && s.stream.State() != ntrip.StateExhausted
}

// Stats represents current session stats for dashboards & API.
type Stats struct {
	Caster      string                 `json:"caster"`
	Mountpoint  string                 `json:"mountpoint"`
	State       string                 `json:"state"`
	Throughput  stats.Snapshot         `json:"throughput"`
	Subscribers []relay.SubscriberInfo `json:"subscribers"`
	Now         string                 `json:"now"`
}

func collectStats(s *appState) Stats {
	s.mu.Lock()
	st, rl := s.stream, s.relay
	out := Stats{Caster: s.caster, Mountpoint: s.mountpoint, State: "connecting"}
	s.mu.Unlock()
	if st != nil {
		out.State = st.State().String()
	}
	if rl != nil {
		out.Subscribers = rl.Subscribers()
	}
	if out.Subscribers == nil {
		out.Subscribers = []relay.SubscriberInfo{}
	}
	out.Throughput = s.tp.Snapshot()
	out.Now = time.Now().UTC().Format(time.RFC3339)
	return out
}

// ToTemplateMap returns a map suited for html/template rendering with expected capitalized keys.
func (s Stats) ToTemplateMap() map[string]any {
	return map[string]any{
		"Caster":       s.Caster,
		"Mountpoint":   s.Mountpoint,
		"State":        s.State,
		"RxBytes":      s.Throughput.RxBytes,
		"RxChunks":     s.Throughput.RxChunks,
		"RxBitrate":    s.Throughput.RxBitrate,
		"TopRxBitrate": s.Throughput.TopRxBitrate,
		"LastChunk":    s.Throughput.LastChunk,
		"TxBytes":      s.Throughput.TxBytes,
		"TxBitrate":    s.Throughput.TxBitrate,
		"Subscribers":  s.Subscribers,
	}
}
