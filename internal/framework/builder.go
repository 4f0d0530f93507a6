// Package framework provides the module development framework used by
// modules registered with the runtime in system/core.
package framework

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/R3E-Network/modrun/system/framework/lifecycle"

	engine "github.com/R3E-Network/modrun/system/core"
)

// ModuleBuilder provides a fluent API for assembling a Module, reducing
// boilerplate and enforcing a consistent descriptor/hook structure across
// modules that would otherwise hand-roll the engine.Module contract.
type ModuleBuilder struct {
	name         string
	dependencies []string
	capabilities []engine.Capability

	hooks *lifecycle.Hooks

	initFn     func(context.Context, *engine.ModuleContext) error
	preInitFn  func(context.Context, engine.SystemView) error
	postInitFn func(context.Context) error
	startFn    func(context.Context) error
	stopFn     func(context.Context) error
	readyFn    func(context.Context) error
	routesFn   func(chi.Router)

	errs []error
}

// NewModule creates a new ModuleBuilder with the given name.
func NewModule(name string) *ModuleBuilder {
	return &ModuleBuilder{
		name:  name,
		hooks: lifecycle.NewHooks(),
	}
}

// DependsOn declares the names of modules that must complete init before
// this module's init runs.
func (b *ModuleBuilder) DependsOn(names ...string) *ModuleBuilder {
	b.dependencies = append(b.dependencies, names...)
	return b
}

// WithCapabilities declares the runtime concerns this module participates in.
func (b *ModuleBuilder) WithCapabilities(caps ...engine.Capability) *ModuleBuilder {
	b.capabilities = append(b.capabilities, caps...)
	return b
}

// OnInit sets the module's mandatory Init function.
func (b *ModuleBuilder) OnInit(fn func(context.Context, *engine.ModuleContext) error) *ModuleBuilder {
	b.initFn = fn
	return b
}

// OnPreInit sets the optional PreInit hook. Only meaningful alongside
// CapabilitySystem; the runtime ignores it for modules lacking that
// capability.
func (b *ModuleBuilder) OnPreInit(fn func(context.Context, engine.SystemView) error) *ModuleBuilder {
	b.preInitFn = fn
	return b
}

// OnPostInit sets the optional PostInit hook.
func (b *ModuleBuilder) OnPostInit(fn func(context.Context) error) *ModuleBuilder {
	b.postInitFn = fn
	return b
}

// OnStart sets the optional Start hook for Stateful-capability modules.
func (b *ModuleBuilder) OnStart(fn func(context.Context) error) *ModuleBuilder {
	b.startFn = fn
	return b
}

// OnStop sets the optional Stop hook.
func (b *ModuleBuilder) OnStop(fn func(context.Context) error) *ModuleBuilder {
	b.stopFn = fn
	return b
}

// WithReadyCheck sets a custom readiness check invoked by the runtime's
// readiness probe once the module has started.
func (b *ModuleBuilder) WithReadyCheck(fn func(context.Context) error) *ModuleBuilder {
	b.readyFn = fn
	return b
}

// WithRESTRoutes sets the route registration function for a Rest-capability
// module. fn receives a router already scoped under the module's mount
// point; it is called once, after every module's Init has succeeded.
func (b *ModuleBuilder) WithRESTRoutes(fn func(chi.Router)) *ModuleBuilder {
	b.routesFn = fn
	return b
}

// OnPreStartHook adds a named hook run immediately before Init's body.
func (b *ModuleBuilder) OnPreStartHook(name string, fn lifecycle.HookFunc) *ModuleBuilder {
	b.hooks.OnPreStartNamed(name, fn)
	return b
}

// OnPostStartHook adds a named hook run immediately after Init succeeds.
func (b *ModuleBuilder) OnPostStartHook(name string, fn lifecycle.HookFunc) *ModuleBuilder {
	b.hooks.OnPostStartNamed(name, fn)
	return b
}

// OnPreStopHook adds a named hook run immediately before Stop's body.
func (b *ModuleBuilder) OnPreStopHook(name string, fn lifecycle.HookFunc) *ModuleBuilder {
	b.hooks.OnPreStopNamed(name, fn)
	return b
}

// OnPostStopHook adds a named hook run immediately after Stop, in LIFO order
// relative to registration.
func (b *ModuleBuilder) OnPostStopHook(name string, fn lifecycle.HookFunc) *ModuleBuilder {
	b.hooks.OnPostStopNamed(name, fn)
	return b
}

// Build validates the accumulated configuration and returns the finished Module.
func (b *ModuleBuilder) Build() (*BuiltModule, error) {
	if b.name == "" {
		return nil, fmt.Errorf("%w: module name required", ErrInvalidManifest)
	}
	if b.initFn == nil {
		return nil, fmt.Errorf("%w: module %q has no Init function", ErrInvalidManifest, b.name)
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("builder errors for %q: %v", b.name, b.errs)
	}

	return &BuiltModule{
		name:         b.name,
		dependencies: append([]string{}, b.dependencies...),
		capabilities: append([]engine.Capability{}, b.capabilities...),
		hooks:        b.hooks,
		initFn:       b.initFn,
		preInitFn:    b.preInitFn,
		postInitFn:   b.postInitFn,
		startFn:      b.startFn,
		stopFn:       b.stopFn,
		readyFn:      b.readyFn,
		routesFn:     b.routesFn,
		shutdown:     lifecycle.NewGracefulShutdown(),
	}, nil
}

// MustBuild builds the module or panics. Use only where build errors are
// programmer mistakes, e.g. in a package init wiring a fixed module set.
func (b *ModuleBuilder) MustBuild() *BuiltModule {
	mod, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build module %q: %v", b.name, err))
	}
	return mod
}

// BuiltModule is a module assembled by ModuleBuilder. It implements
// engine.Module and engine.PreIniter/PostIniter/Starter/Stopper/ReadyChecker
// unconditionally, whether or not the corresponding builder hook was set;
// HasPreInit, HasStart and the other Has* methods report which hooks were set.
type BuiltModule struct {
	name         string
	dependencies []string
	capabilities []engine.Capability
	hooks        *lifecycle.Hooks

	initFn     func(context.Context, *engine.ModuleContext) error
	preInitFn  func(context.Context, engine.SystemView) error
	postInitFn func(context.Context) error
	startFn    func(context.Context) error
	stopFn     func(context.Context) error
	readyFn    func(context.Context) error
	routesFn   func(chi.Router)

	shutdown *lifecycle.GracefulShutdown
	ready    bool
	readyErr string
}

func (m *BuiltModule) Name() string                      { return m.name }
func (m *BuiltModule) Dependencies() []string             { return m.dependencies }
func (m *BuiltModule) Capabilities() []engine.Capability   { return m.capabilities }
func (m *BuiltModule) Shutdown() *lifecycle.GracefulShutdown { return m.shutdown }

// Init runs the PreStart/PostStart hooks around the builder's Init function.
func (m *BuiltModule) Init(ctx context.Context, mc *engine.ModuleContext) error {
	if err := m.hooks.RunPreStart(ctx); err != nil {
		return WrapModuleError(m.name, "init", err)
	}
	if err := m.initFn(ctx, mc); err != nil {
		return WrapModuleError(m.name, "init", err)
	}
	if err := m.hooks.RunPostStart(ctx); err != nil {
		return WrapModuleError(m.name, "init", err)
	}
	return nil
}

// PreInit runs the configured PreInit hook, or returns nil when none was
// configured. The method is always present, so a type assertion to
// engine.PreIniter always succeeds; HasPreInit reports whether a hook was set.
func (m *BuiltModule) PreInit(ctx context.Context, sys engine.SystemView) error {
	if m.preInitFn == nil {
		return nil
	}
	return m.preInitFn(ctx, sys)
}

// HasPreInit reports whether a PreInit hook was configured.
func (m *BuiltModule) HasPreInit() bool { return m.preInitFn != nil }

func (m *BuiltModule) PostInit(ctx context.Context) error {
	if m.postInitFn == nil {
		return nil
	}
	return m.postInitFn(ctx)
}

// HasPostInit reports whether a PostInit hook was configured.
func (m *BuiltModule) HasPostInit() bool { return m.postInitFn != nil }

func (m *BuiltModule) Start(ctx context.Context) error {
	if m.startFn == nil {
		return nil
	}
	return m.startFn(ctx)
}

// HasStart reports whether a Start hook was configured.
func (m *BuiltModule) HasStart() bool { return m.startFn != nil }

func (m *BuiltModule) Stop(ctx context.Context) error {
	m.shutdown.Shutdown()

	if err := m.hooks.RunPreStop(ctx); err != nil {
		return WrapModuleError(m.name, "stop", err)
	}

	if m.stopFn != nil {
		if err := m.stopFn(ctx); err != nil {
			return WrapModuleError(m.name, "stop", err)
		}
	}

	return m.hooks.RunPostStop(ctx)
}

// HasStop reports whether a Stop hook was configured.
func (m *BuiltModule) HasStop() bool { return m.stopFn != nil }

func (m *BuiltModule) Ready(ctx context.Context) error {
	if m.readyFn != nil {
		return m.readyFn(ctx)
	}
	if m.readyErr != "" {
		return fmt.Errorf("%s: %s", m.name, m.readyErr)
	}
	return nil
}

// HasReadyCheck reports whether a readiness check was configured.
func (m *BuiltModule) HasReadyCheck() bool { return m.readyFn != nil }

func (m *BuiltModule) SetReady(status string, errMsg string) {
	m.ready = status == engine.ReadyStatusReady
	m.readyErr = errMsg
}

// RegisterRoutes mounts the builder's configured routes, or does nothing for
// a module that never called WithRESTRoutes. Present unconditionally so
// BuiltModule satisfies engine.RESTRegistrar regardless of whether the
// module declared CapabilityRest; the runtime only calls it for modules
// that did.
func (m *BuiltModule) RegisterRoutes(r chi.Router) {
	if m.routesFn == nil {
		return
	}
	m.routesFn(r)
}

// HasRESTRoutes reports whether a route registration function was configured.
func (m *BuiltModule) HasRESTRoutes() bool { return m.routesFn != nil }
