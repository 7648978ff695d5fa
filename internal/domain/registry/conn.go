package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the handle the registry keeps per live transport session.
// External layers (router, presence, transport handlers) only ever see this
// interface, never the concrete implementation.
type Connector interface {
	GetID() uuid.UUID
	GetUserID() uuid.UUID
	// Send pushes an event into the per-connection queue. Thread-safe.
	// Returns false when the connection is closed or the buffer stayed
	// saturated past the timeout; callers treat false as "handle gone".
	Send(ev model.Eventer, timeout time.Duration) bool
	Recv() <-chan model.Eventer
	// Done is closed once the connection is terminated. Transport pumps
	// select on it next to Recv.
	Done() <-chan struct{}
	// Touch records inbound activity for liveness accounting.
	Touch()
	LastActivity() time.Time
	CreatedAt() time.Time
	// Close terminates the connection and releases resources. Idempotent.
	Close()
}

// ConnectMetadata is exported for transport and analytics layers.
type ConnectMetadata struct {
	Platform  string
	Version   string
	RemoteIP  string
	UserAgent string
}

type connect struct {
	id        uuid.UUID
	userID    uuid.UUID
	metadata  ConnectMetadata
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	sendCh    chan model.Eventer
	closeOnce sync.Once

	// Atomic fields, updated lock-free from the read pump and the sweeper.
	lastActivityAt int64
	droppedCount   uint64
}

// NewConnector creates a handle bound to ctx. When ctx is cancelled any
// pending Send aborts, so a vanished transport never blocks the router.
func NewConnector(ctx context.Context, userID uuid.UUID, bufferSize int) Connector {
	childCtx, cancel := context.WithCancel(ctx)

	return &connect{
		id:             uuid.New(),
		userID:         userID,
		createdAt:      time.Now(),
		ctx:            childCtx,
		cancelFn:       cancel,
		sendCh:         make(chan model.Eventer, bufferSize),
		lastActivityAt: time.Now().UnixNano(),
	}
}

func (c *connect) GetID() uuid.UUID     { return c.id }
func (c *connect) GetUserID() uuid.UUID { return c.userID }
func (c *connect) CreatedAt() time.Time { return c.createdAt }

func (c *connect) Touch() {
	atomic.StoreInt64(&c.lastActivityAt, time.Now().UnixNano())
}

func (c *connect) LastActivity() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastActivityAt))
}

// Send attempts to push an event into the channel. Unlike a plain 'default'
// branch it waits up to 'timeout' for space, which smooths out transient
// jitter without letting one stalled consumer hold the caller hostage.
func (c *connect) Send(ev model.Eventer, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-c.ctx.Done():
		// Transport already dead.
		return false
	case c.sendCh <- ev:
		return true
	case <-ctx.Done():
		// Buffer stayed saturated for the whole window: persistent slow
		// consumer. Shed load instead of blocking the caller further.
		return c.handleBackpressure(ev)
	}
}

// handleBackpressure sheds load on a saturated buffer. An event popped to
// make room is never re-inserted: pushing it back would land it behind
// entries enqueued after it, reordering the stream. Consumers tolerate
// loss (a dropped snapshot is re-broadcast, a dropped indicator expires),
// they do not tolerate reordering.
func (c *connect) handleBackpressure(ev model.Eventer) bool {
	// Anything below high priority (typing indicators, presence and
	// status refreshes) is shed outright.
	if ev.GetPriority() < model.PriorityHigh {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	// High-priority traffic evicts the oldest queued event. The remaining
	// queue keeps its relative order with the incoming event at the tail.
	select {
	case <-c.sendCh:
		atomic.AddUint64(&c.droppedCount, 1)
		select {
		case c.sendCh <- ev:
			return true
		default:
		}
	default:
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Recv() <-chan model.Eventer { return c.sendCh }
func (c *connect) Done() <-chan struct{}      { return c.ctx.Done() }

// Close terminates the session. The sync.Once guard makes it safe to call
// concurrently from the registry (supersede), the sweeper (eviction) and
// the transport handler (defer). The send channel is deliberately left
// open: a concurrent Send racing with Close must fail via the cancelled
// context, never panic on a closed channel.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
	})
}
