package engine

import (
	"context"

	"github.com/go-chi/chi/v5"
)

// Capability is a declarative label a module attaches to itself, announcing
// that it participates in a particular runtime concern. The Module Runtime
// uses the set to decide which optional lifecycle hooks and aggregate
// consumers (REST/gRPC composition, stateful worker supervision) apply.
type Capability string

const (
	// CapabilityRest marks a module that publishes REST route handlers into
	// the aggregate ingress router.
	CapabilityRest Capability = "rest"
	// CapabilityGrpc marks a module that publishes gRPC service
	// registrations into the aggregate gRPC server.
	CapabilityGrpc Capability = "grpc"
	// CapabilityDb marks a module that consumes the shared database handle.
	CapabilityDb Capability = "db"
	// CapabilityStateful marks a module with a long-running background
	// worker that the runtime starts and supervises under the shared
	// cancellation token.
	CapabilityStateful Capability = "stateful"
	// CapabilitySystem marks a module allowed to observe the runtime itself
	// through the pre_init back-reference and to run post_init finalization.
	CapabilitySystem Capability = "system"
)

// Module is the contract every unit registered with the runtime must satisfy.
// Init is mandatory; PreInit, PostInit, Start, and Stop are detected through
// optional-interface assertion rather than forcing every module to implement
// a monolithic lifecycle interface.
type Module interface {
	// Name uniquely identifies the module within a single runtime instance.
	Name() string
	// Dependencies lists the names of modules that must complete init
	// (and, where applicable, post_init/start) before this module runs the
	// corresponding phase.
	Dependencies() []string
	// Capabilities declares which runtime concerns this module participates in.
	Capabilities() []Capability
	// Init constructs the module's implementations and publishes them to the
	// Client Hub. It runs once per module, in dependency order.
	Init(ctx context.Context, mc *ModuleContext) error
}

// PreIniter is implemented by System-capability modules that need a
// read-only back-reference to the runtime before any module's Init runs.
// This is the only place a module may observe the module manager directly.
type PreIniter interface {
	PreInit(ctx context.Context, sys SystemView) error
}

// PostIniter is implemented by System-capability modules that must observe
// the fully-populated Client Hub after every module's Init has succeeded,
// e.g. to switch a registry from collecting to ready or to validate
// cross-module wiring. The runtime skips PostInit on modules that do not
// declare CapabilitySystem.
type PostIniter interface {
	PostInit(ctx context.Context) error
}

// Starter is implemented by Stateful-capability modules with a background
// worker. Start is invoked concurrently with other Stateful modules once
// every module's PostInit has succeeded, and must return promptly once ctx
// is cancelled.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by modules that hold resources needing orderly
// release. Stop runs in the reverse of init order, regardless of whether the
// module implements Starter.
type Stopper interface {
	Stop(ctx context.Context) error
}

// SystemView is the read-only handle a PreIniter receives. It exposes
// enumeration only; no lifecycle control is reachable through it, matching
// spec's "no general-purpose callback into the runtime" rule.
type SystemView interface {
	// Modules returns the names of every module registered with the runtime,
	// names set with WithOrder first, then the rest in registration order.
	Modules() []string
	// Lookup returns the descriptor-level view of a registered module, or
	// false if no module with that name is registered.
	Lookup(name string) (Descriptor, bool)
}

// Descriptor is the static, read-only shape of a registered module.
type Descriptor struct {
	Name         string
	Dependencies []string
	Capabilities []Capability
}

// HasCapability reports whether the descriptor declares the given capability.
func (d Descriptor) HasCapability(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ReadyChecker reports whether a module is currently ready to serve traffic.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// ReadySetter can be implemented by modules to allow the runtime to mark
// readiness explicitly after a lifecycle transition.
type ReadySetter interface {
	SetReady(status string, errMsg string)
}

// RESTRegistrar is implemented by Rest-capability modules that mount HTTP
// handlers onto the aggregate ingress router. The runtime calls
// RegisterRoutes once, after every module's Init has succeeded, passing a
// sub-router already scoped under the module's own mount point.
type RESTRegistrar interface {
	RegisterRoutes(r chi.Router)
}
