package registry

import "time"

// Option is a functional configuration type for the Registry.
type Option func(*Registry)

// WithSweepInterval configures how often the liveness sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.config.sweepInterval = d
	}
}

// WithIdleTimeout defines the quiet period after which a connection with
// no observed activity is evicted by the sweeper. This is the mechanism
// that reclaims entries whose disconnect event was lost.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.config.idleTimeout = d
	}
}

// WithSendBuffer sets the per-connection send queue capacity.
func WithSendBuffer(size int) Option {
	return func(r *Registry) {
		r.config.sendBuffer = size
	}
}
