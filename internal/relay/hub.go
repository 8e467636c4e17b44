package relay

import (
	"context"
	"time"

	"github.com/matst80/ntriprelay/internal/obs"
	"github.com/matst80/ntriprelay/internal/ratelimit"
)

const peerCleanupInterval = time.Minute

// hub owns the subscriber set. All access goes through its channels, so no lock is
// held while writing to sockets.
type hub struct {
	ctx     context.Context
	addCh   chan *subscriber
	chunkCh chan []byte
	ackCh   chan struct{}
	listCh  chan chan []SubscriberInfo
	quit    chan struct{}
	done    chan struct{}

	subs         map[string]*subscriber
	writeTimeout time.Duration
	meter        Meter
	limiter      *ratelimit.RateLimiter
}

func newHub(ctx context.Context, writeTimeout time.Duration, meter Meter, limiter *ratelimit.RateLimiter) *hub {
	return &hub{
		ctx:          ctx,
		addCh:        make(chan *subscriber),
		chunkCh:      make(chan []byte),
		ackCh:        make(chan struct{}),
		listCh:       make(chan chan []SubscriberInfo),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		subs:         make(map[string]*subscriber),
		writeTimeout: writeTimeout,
		meter:        meter,
		limiter:      limiter,
	}
}

func (h *hub) run() {
	defer close(h.done)
	cleanup := time.NewTicker(peerCleanupInterval)
	defer cleanup.Stop()
	for {
		select {
		case sub := <-h.addCh:
			h.subs[sub.id] = sub
			obs.RelayAcceptedTotal.Inc()
			obs.RelaySubscribers.Set(float64(len(h.subs)))
			obs.Info("relay.subscriber.add", obs.Fields{"id": sub.id, "remote": sub.conn.RemoteAddr().String(), "subscribers": len(h.subs)})
		case chunk := <-h.chunkCh:
			h.deliver(chunk)
			h.ackCh <- struct{}{}
		case reply := <-h.listCh:
			out := make([]SubscriberInfo, 0, len(h.subs))
			for _, sub := range h.subs {
				out = append(out, sub.info())
			}
			reply <- out
		case <-cleanup.C:
			active := make(map[string]bool, len(h.subs))
			for _, sub := range h.subs {
				active[sub.peer] = true
			}
			h.limiter.CleanupExpiredPeers(active)
		case <-h.quit:
			for id, sub := range h.subs {
				_ = sub.conn.Close()
				delete(h.subs, id)
			}
			obs.RelaySubscribers.Set(0)
			return
		}
	}
}

// deliver writes chunk to every subscriber; a failed write drops only that subscriber.
// Once ctx is done every pending write fails at once.
func (h *hub) deliver(chunk []byte) {
	for id, sub := range h.subs {
		err := sub.write(h.ctx, chunk, h.writeTimeout)
		if err == nil {
			obs.RelayBytesSentTotal.Add(float64(len(chunk)))
			if h.meter != nil {
				h.meter.Egress(len(chunk))
			}
			continue
		}
		_ = sub.conn.Close()
		delete(h.subs, id)
		reason := dropReason(err)
		if h.ctx.Err() != nil {
			reason = "shutdown"
		}
		obs.RelayDroppedTotal.WithLabelValues(reason).Inc()
		obs.RelaySubscribers.Set(float64(len(h.subs)))
		obs.Info("relay.subscriber.drop", obs.Fields{"id": id, "reason": reason, "err": err, "bytes_sent": sub.sent, "subscribers": len(h.subs)})
	}
}

// add hands sub to the hub; it reports false once the hub has stopped.
func (h *hub) add(sub *subscriber) bool {
	select {
	case h.addCh <- sub:
		return true
	case <-h.done:
		return false
	}
}

// broadcast returns after chunk has been offered to every current subscriber.
func (h *hub) broadcast(chunk []byte) {
	select {
	case h.chunkCh <- chunk:
	case <-h.done:
		return
	}
	select {
	case <-h.ackCh:
	case <-h.done:
	}
}

func (h *hub) list() []SubscriberInfo {
	reply := make(chan []SubscriberInfo, 1)
	select {
	case h.listCh <- reply:
		return <-reply
	case <-h.done:
		return nil
	}
}

func (h *hub) stop() {
	select {
	case <-h.quit:
	default:
		close(h.quit)
	}
	<-h.done
}
