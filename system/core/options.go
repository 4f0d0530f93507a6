package engine

import (
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/modrun/system/framework/hub"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithOrder sets an explicit startup order (by module name).
// Unlisted modules start after, in registration order.
func WithOrder(modules ...string) Option {
	return func(e *Engine) {
		e.registry.SetOrdering(modules...)
	}
}

// WithRegistry sets a custom registry.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithHealthMonitor sets a custom health monitor.
func WithHealthMonitor(h *HealthMonitor) Option {
	return func(e *Engine) {
		if h != nil {
			e.health = h
		}
	}
}

// WithDependencyManager sets a custom dependency manager.
func WithDependencyManager(d *DependencyManager) Option {
	return func(e *Engine) {
		if d != nil {
			e.deps = d
		}
	}
}

// WithHub sets the Client Hub instance modules publish into and resolve
// from. If not set, New constructs an empty one.
func WithHub(h *hub.Hub) Option {
	return func(e *Engine) {
		if h != nil {
			e.hub = h
		}
	}
}

// WithDB sets the shared database handle threaded into module contexts
// that declare CapabilityDb.
func WithDB(db *sqlx.DB) Option {
	return func(e *Engine) {
		e.db = db
	}
}

// WithStartupDeadline bounds how long a Stateful module has to report
// readiness after Start is invoked before it is considered failed.
func WithStartupDeadline(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.startupDeadline = d
		}
	}
}

// WithShutdownDeadline bounds how long stateful modules are given to return
// from Start after the cancellation token is signalled before Stop proceeds
// regardless.
func WithShutdownDeadline(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.shutdownDeadline = d
		}
	}
}
