package engine

import (
	"context"
	"log"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/modrun/system/framework/hub"
)

// Engine is the Module Runtime facade: it owns the module Registry, the
// declared dependency graph, health/readiness tracking, and the
// LifecycleManager that drives registered modules through
// pre_init -> init -> post_init -> start -> stop. Callers build one with New,
// Register every module, then call Bootstrap and Run.
type Engine struct {
	log    *log.Logger
	hub    *hub.Hub
	db     *sqlx.DB
	config func(name string) (yaml.Node, bool)

	registry *Registry
	deps     *DependencyManager
	health   *HealthMonitor
	lifecyc  *LifecycleManager

	startupDeadline  time.Duration
	shutdownDeadline time.Duration
}

// New constructs an Engine with an empty registry and applies opts.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:              log.Default(),
		registry:         NewRegistry(),
		deps:             NewDependencyManager(),
		health:           NewHealthMonitor(),
		hub:              hub.New(),
		startupDeadline:  10 * time.Second,
		shutdownDeadline: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.registry.SetHealthMonitor(e.health)
	e.hub.SetLogger(e.log)

	e.lifecyc = NewLifecycleManager(e.registry, e.deps, e.health, e.log)
	e.lifecyc.SetHub(e.hub)
	e.lifecyc.SetStartupDeadline(e.startupDeadline)
	e.lifecyc.SetShutdownDeadline(e.shutdownDeadline)
	if e.db != nil {
		e.lifecyc.SetDB(e.db)
	}
	if e.config != nil {
		e.lifecyc.SetModuleConfig(e.config)
	}

	return e
}

// SetModuleConfig wires the per-module configuration section lookup threaded
// into each module's Init through ModuleContext.Config.
func (e *Engine) SetModuleConfig(fn func(name string) (yaml.Node, bool)) {
	e.config = fn
	e.lifecyc.SetModuleConfig(fn)
}

// Register adds a module to the runtime and records its declared
// dependencies. A module's Dependencies() is a static property read once at
// registration time; there is no separate side channel for wiring deps.
func (e *Engine) Register(module Module) error {
	if err := e.registry.Register(module); err != nil {
		return err
	}
	e.deps.SetDeps(module.Name(), module.Dependencies()...)
	return nil
}

// Unregister removes a module and its recorded dependencies.
func (e *Engine) Unregister(name string) error {
	if err := e.registry.Unregister(name); err != nil {
		return err
	}
	e.deps.RemoveDeps(name)
	return nil
}

// Modules returns the registered module names in startup order.
func (e *Engine) Modules() []string { return e.registry.Modules() }

// Lookup returns a registered module by name, or nil.
func (e *Engine) Lookup(name string) Module { return e.registry.Lookup(name) }

// ModulesByNames returns modules for the given names, skipping unregistered ones.
func (e *Engine) ModulesByNames(names []string) []Module { return e.registry.ModulesByNames(names) }

// ModulesWithCapability returns every registered module declaring cap.
func (e *Engine) ModulesWithCapability(cap Capability) []Module {
	return e.registry.ModulesWithCapability(cap)
}

// Bootstrap runs pre_init, init, post_init, and launches start for every
// registered module, in dependency order. See LifecycleManager.Bootstrap for
// the unwind-on-failure contract.
func (e *Engine) Bootstrap(ctx context.Context) error {
	return e.lifecyc.Bootstrap(ctx)
}

// Run blocks until ctx is cancelled or a Stateful module's Start returns an
// error, whichever happens first.
func (e *Engine) Run(ctx context.Context) error {
	return e.lifecyc.Run(ctx)
}

// Stop signals the shared cancellation token and stops every initialized
// module in reverse init order.
func (e *Engine) Stop(ctx context.Context) error {
	return e.lifecyc.Stop(ctx)
}

// MarkReady updates readiness for the named modules (or all, if names is
// empty).
func (e *Engine) MarkReady(status, errMsg string, names ...string) {
	e.lifecyc.MarkReady(status, errMsg, names...)
}

// ProbeReadiness runs ReadyChecker and dependency-readiness checks for every
// registered module and records the result in the health monitor.
func (e *Engine) ProbeReadiness(ctx context.Context) {
	e.lifecyc.ProbeReadiness(ctx)
}

// ModulesHealth returns the latest known lifecycle state for every registered
// module, in startup order.
func (e *Engine) ModulesHealth() []ModuleHealth {
	names := e.registry.Modules()
	return e.health.ModulesHealth(names)
}

// Hub returns the Client Hub shared across every module in this runtime.
func (e *Engine) Hub() *hub.Hub { return e.hub }

// DB returns the shared database handle threaded into modules declaring
// CapabilityDb, or nil if none was configured.
func (e *Engine) DB() *sqlx.DB { return e.db }

// Logger returns the engine's logger.
func (e *Engine) Logger() *log.Logger { return e.log }

// Registry returns the underlying module registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Health returns the underlying health monitor.
func (e *Engine) Health() *HealthMonitor { return e.health }

// Dependencies returns the underlying dependency manager.
func (e *Engine) Dependencies() *DependencyManager { return e.deps }

// MountREST calls RegisterRoutes on every Rest-capability module that
// implements RESTRegistrar, mounting each under /<module-name> on r. It is
// intended to run once, after Bootstrap has completed every module's Init.
func (e *Engine) MountREST(r chi.Router) {
	for _, mod := range e.registry.ModulesWithCapability(CapabilityRest) {
		registrar, ok := mod.(RESTRegistrar)
		if !ok {
			continue
		}
		r.Route("/"+mod.Name(), func(sub chi.Router) {
			registrar.RegisterRoutes(sub)
		})
	}
}
