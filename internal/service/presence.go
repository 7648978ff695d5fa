package service

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webitel/im-routing-service/internal/domain/model"
	"github.com/webitel/im-routing-service/internal/domain/registry"
)

// Broadcaster publishes the full online identity set to every live
// connection whenever the registry's online set changes.
//
// Ordering contract: snapshots carry a monotonic sequence and are fanned
// out by a single goroutine into per-connection FIFO queues, so a later
// snapshot is never delivered before an earlier one to the same
// connection. Bursts of churn coalesce through the capacity-1 kick
// channel: the set is re-read at broadcast time, so the last broadcast
// always reflects the final state.
type Broadcaster struct {
	registry registry.Registrar
	logger   *slog.Logger

	kick chan struct{}
	seq  atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
}

func NewBroadcaster(reg registry.Registrar, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: reg,
		logger:   logger,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start subscribes to registry mutations and launches the fan-out loop.
func (b *Broadcaster) Start() {
	b.registry.OnChange(b.Kick)
	go b.loop()
}

func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

// Kick schedules a broadcast. Non-blocking; the registry mutation that
// triggered it never waits on fan-out.
func (b *Broadcaster) Kick() {
	select {
	case b.kick <- struct{}{}:
	default:
		// A broadcast is already pending; it will pick up this change.
	}
}

func (b *Broadcaster) loop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.kick:
			b.broadcast()
		}
	}
}

func (b *Broadcaster) broadcast() {
	seq := b.seq.Add(1)
	online := b.registry.Snapshot()

	payload := model.PresencePayload{Seq: seq, Online: online}

	b.registry.Each(func(conn registry.Connector) {
		ev := model.NewEvent(conn.GetUserID(), model.EventPresence, model.PriorityNormal, payload)
		if !conn.Send(ev, 100*time.Millisecond) {
			b.logger.Debug("presence snapshot dropped",
				"user_id", conn.GetUserID(), "seq", seq)
		}
	})
}
