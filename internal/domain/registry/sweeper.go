package registry

import (
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically validates connection liveness and evicts handles
// whose transport went away without a clean close (network partition,
// abrupt termination). Eviction goes through the match-guarded Remove,
// so an in-flight re-registration always wins the race.
type Sweeper struct {
	registry *Registry
	logger   *slog.Logger

	// hooks run after each pass; the service layer attaches queue-age
	// expiry and tracker pruning here.
	hookMu sync.Mutex
	hooks  []func(now time.Time)

	done     chan struct{}
	stopOnce sync.Once
}

func NewSweeper(registry *Registry, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		registry: registry,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// AfterSweep registers a hook invoked after each eviction pass.
// Wiring-time only.
func (s *Sweeper) AfterSweep(fn func(now time.Time)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Start launches the sweep loop in its own goroutine.
func (s *Sweeper) Start() {
	go s.loop()
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.registry.config.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	timeout := s.registry.config.idleTimeout

	var stale []Connector
	s.registry.Each(func(conn Connector) {
		if now.Sub(conn.LastActivity()) > timeout {
			stale = append(stale, conn)
		}
	})

	for _, conn := range stale {
		if s.registry.Remove(conn.GetUserID(), conn.GetID()) {
			s.logger.Info("evicted idle connection",
				"user_id", conn.GetUserID(),
				"conn_id", conn.GetID(),
				"idle", now.Sub(conn.LastActivity()).String(),
			)
		}
	}

	s.hookMu.Lock()
	hooks := s.hooks
	s.hookMu.Unlock()
	for _, fn := range hooks {
		fn(now)
	}
}
