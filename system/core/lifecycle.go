package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/modrun/pkg/metrics"
	"github.com/R3E-Network/modrun/system/framework/hub"
)

// LifecycleManager drives registered modules through
// pre_init -> init -> post_init -> start -> stop, in dependency order,
// unwinding on failure per the phase rules in the Module Runtime design.
type LifecycleManager struct {
	registry *Registry
	deps     *DependencyManager
	health   *HealthMonitor
	log      *log.Logger

	hub *hub.Hub
	db  *sqlx.DB

	moduleConfig func(name string) (yaml.Node, bool)

	startupDeadline  time.Duration
	shutdownDeadline time.Duration

	mu            sync.Mutex
	cancel        context.CancelFunc
	initDone      []string // modules successfully Init'd, in order, for unwind
	runErrs       chan error
	runWG         sync.WaitGroup
	startingSince map[string]time.Time // Stateful modules currently in start(), for startup deadline checks
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager(registry *Registry, deps *DependencyManager, health *HealthMonitor, logger *log.Logger) *LifecycleManager {
	if logger == nil {
		logger = log.Default()
	}
	return &LifecycleManager{
		registry:         registry,
		deps:             deps,
		health:           health,
		log:              logger,
		hub:              hub.New(),
		startupDeadline:  10 * time.Second,
		shutdownDeadline: 30 * time.Second,
		startingSince:    make(map[string]time.Time),
	}
}

// SetHub overrides the Client Hub instance threaded into module contexts.
func (lm *LifecycleManager) SetHub(h *hub.Hub) {
	if h != nil {
		lm.hub = h
	}
}

// SetDB sets the shared database handle threaded into module contexts.
func (lm *LifecycleManager) SetDB(db *sqlx.DB) { lm.db = db }

// SetModuleConfig sets the lookup used to resolve each module's configuration
// section by name.
func (lm *LifecycleManager) SetModuleConfig(fn func(name string) (yaml.Node, bool)) {
	lm.moduleConfig = fn
}

// SetShutdownDeadline bounds how long Start is given to return after
// cancellation before Stop proceeds regardless.
func (lm *LifecycleManager) SetShutdownDeadline(d time.Duration) {
	if d > 0 {
		lm.shutdownDeadline = d
	}
}

// SetStartupDeadline bounds how long a Stateful module is given to report
// readiness after its Start goroutine is launched. A module still not ready
// past this deadline is marked failed by ProbeReadiness.
func (lm *LifecycleManager) SetStartupDeadline(d time.Duration) {
	if d > 0 {
		lm.startupDeadline = d
	}
}

// Hub returns the Client Hub used for this lifecycle run.
func (lm *LifecycleManager) Hub() *hub.Hub { return lm.hub }

func (lm *LifecycleManager) orderedModules() ([]Module, error) {
	names := lm.registry.Modules()
	if err := lm.deps.Verify(names); err != nil {
		return nil, err
	}
	reordered, err := lm.deps.ResolveOrder(names)
	if err != nil {
		return nil, err
	}
	return lm.registry.ModulesByNames(reordered), nil
}

// systemView is the SystemView handed to PreIniters; it is safe to share
// since Descriptors/DescriptorFor snapshot the registry under its own lock.
type systemView struct{ registry *Registry }

func (v systemView) Modules() []string { return v.registry.Modules() }

func (v systemView) Lookup(name string) (Descriptor, bool) {
	return v.registry.DescriptorFor(name)
}

// Bootstrap runs pre_init, init, post_init, and start in sequence, returning
// the first error encountered. On any phase failure, modules already
// initialized are stopped in reverse order before the error is returned.
func (lm *LifecycleManager) Bootstrap(ctx context.Context) error {
	modules, err := lm.orderedModules()
	if err != nil {
		return err
	}

	if err := lm.preInit(ctx, modules); err != nil {
		return err
	}

	if err := lm.init(ctx, modules); err != nil {
		return err
	}

	if err := lm.postInit(ctx, modules); err != nil {
		lm.stopReverse(ctx, lm.initializedModulesLocked())
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	lm.mu.Lock()
	lm.cancel = cancel
	lm.runErrs = make(chan error, 1)
	lm.mu.Unlock()

	lm.start(runCtx, modules)

	return nil
}

// Run blocks until either the shared cancellation token is triggered
// externally or a stateful module's worker completes with an error,
// whichever happens first. It returns nil on ordinary cancellation and the
// worker's error otherwise.
func (lm *LifecycleManager) Run(ctx context.Context) error {
	lm.mu.Lock()
	errs := lm.runErrs
	lm.mu.Unlock()

	if errs == nil {
		<-ctx.Done()
		return nil
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}

func (lm *LifecycleManager) preInit(ctx context.Context, modules []Module) error {
	view := systemView{registry: lm.registry}
	for _, mod := range modules {
		desc := Descriptor{Capabilities: mod.Capabilities()}
		if !desc.HasCapability(CapabilitySystem) {
			continue
		}
		pi, ok := mod.(PreIniter)
		if !ok {
			continue
		}
		if err := pi.PreInit(ctx, view); err != nil {
			return fmt.Errorf("pre_init %s: %w", mod.Name(), err)
		}
	}
	return nil
}

func (lm *LifecycleManager) init(ctx context.Context, modules []Module) error {
	for _, mod := range modules {
		if ctx.Err() != nil {
			lm.stopReverse(ctx, lm.initializedModulesLocked())
			return ctx.Err()
		}

		name := mod.Name()
		mc := lm.newModuleContext(ctx, name, mod.Capabilities())

		if err := mod.Init(ctx, mc); err != nil {
			lm.health.MarkFailed(name, "init", err.Error())
			lm.stopReverse(ctx, lm.initializedModulesLocked())
			return fmt.Errorf("init %s: %w", name, err)
		}

		lm.mu.Lock()
		lm.initDone = append(lm.initDone, name)
		lm.mu.Unlock()
		lm.health.MarkInitialized(name)
	}
	return nil
}

func (lm *LifecycleManager) postInit(ctx context.Context, modules []Module) error {
	for _, mod := range modules {
		desc := Descriptor{Capabilities: mod.Capabilities()}
		if !desc.HasCapability(CapabilitySystem) {
			continue
		}
		pi, ok := mod.(PostIniter)
		if !ok {
			continue
		}
		if err := pi.PostInit(ctx); err != nil {
			lm.health.MarkFailed(mod.Name(), "post_init", err.Error())
			return fmt.Errorf("post_init %s: %w", mod.Name(), err)
		}
		lm.health.MarkPostInitialized(mod.Name())
	}
	return nil
}

// start launches every Stateful module's Starter concurrently under the
// shared cancellation context and returns immediately; it does not wait for
// Start to return, since Start is expected to block for the module's
// lifetime. The first worker error (if any) is delivered through runErrs and
// observed by Run.
func (lm *LifecycleManager) start(ctx context.Context, modules []Module) {
	for _, mod := range modules {
		starter, ok := mod.(Starter)
		desc := Descriptor{Capabilities: mod.Capabilities()}
		if !ok || !desc.HasCapability(CapabilityStateful) {
			continue
		}

		name := mod.Name()
		lm.health.MarkStarting(name)

		startNow := time.Now()
		lm.mu.Lock()
		lm.startingSince[name] = startNow
		lm.mu.Unlock()

		lm.runWG.Add(1)
		go func(name string, starter Starter) {
			defer lm.runWG.Done()
			defer func() {
				lm.mu.Lock()
				delete(lm.startingSince, name)
				lm.mu.Unlock()
			}()
			err := starter.Start(ctx)
			if err != nil && ctx.Err() == nil {
				lm.health.MarkFailed(name, "start", err.Error())
				select {
				case lm.runErrs <- fmt.Errorf("start %s: %w", name, err):
					lm.mu.Lock()
					if lm.cancel != nil {
						lm.cancel()
					}
					lm.mu.Unlock()
				default:
				}
				return
			}
			lm.health.MarkStarted(name, time.Since(startNow).Nanoseconds())
		}(name, starter)
	}
}

func (lm *LifecycleManager) newModuleContext(ctx context.Context, name string, caps []Capability) *ModuleContext {
	var node yaml.Node
	hasConfig := false
	if lm.moduleConfig != nil {
		node, hasConfig = lm.moduleConfig(name)
	}

	var db *sqlx.DB
	desc := Descriptor{Capabilities: caps}
	if desc.HasCapability(CapabilityDb) {
		db = lm.db
	}

	return NewModuleContext(ctx, name, uuid.New(), node, hasConfig, lm.hub, db)
}

func (lm *LifecycleManager) initializedModulesLocked() []Module {
	lm.mu.Lock()
	names := append([]string{}, lm.initDone...)
	lm.mu.Unlock()
	return lm.registry.ModulesByNames(names)
}

// Stop signals the shared cancellation token (if Start was run), waits up to
// the shutdown deadline for stateful workers, then stops every initialized
// module in reverse init order. Stop failures are logged and do not prevent
// other modules from stopping.
func (lm *LifecycleManager) Stop(ctx context.Context) error {
	lm.mu.Lock()
	cancel := lm.cancel
	lm.mu.Unlock()

	if cancel != nil {
		cancel()

		waitCtx, waitCancel := context.WithTimeout(ctx, lm.shutdownDeadline)
		defer waitCancel()

		done := make(chan struct{})
		go func() {
			lm.runWG.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-waitCtx.Done():
			lm.log.Printf("shutdown: stateful workers did not drain within %s", lm.shutdownDeadline)
		}
	}

	lm.stopReverse(ctx, lm.initializedModulesLocked())
	return nil
}

// stopReverse stops modules in reverse order, logging and continuing past
// individual failures.
func (lm *LifecycleManager) stopReverse(ctx context.Context, mods []Module) {
	for i := len(mods) - 1; i >= 0; i-- {
		mod := mods[i]
		name := mod.Name()

		stopper, ok := mod.(Stopper)
		if !ok {
			lm.health.MarkStopped(name, 0)
			continue
		}

		stopNow := time.Now()
		if err := stopper.Stop(ctx); err != nil {
			lm.log.Printf("stop %s: %v", name, err)
			lm.health.MarkStopError(name, err.Error(), time.Since(stopNow).Nanoseconds())
		} else {
			lm.health.MarkStopped(name, time.Since(stopNow).Nanoseconds())
		}

		if setter, ok := mod.(ReadySetter); ok {
			setter.SetReady(ReadyStatusNotReady, "")
		}
	}
}

// MarkReady updates readiness for the provided modules (or all modules when
// names are empty). Status defaults to "ready" when blank.
func (lm *LifecycleManager) MarkReady(status, errMsg string, names ...string) {
	if status == "" {
		status = ReadyStatusReady
	}

	if len(names) == 0 {
		names = lm.registry.Modules()
	}

	var mods []Module
	for _, name := range names {
		if name == "" {
			continue
		}
		if mod := lm.registry.Lookup(name); mod != nil {
			mods = append(mods, mod)
		}
	}

	lm.health.MarkReady(status, errMsg, mods)
}

// ProbeReadiness runs lightweight readiness checks for modules that implement ReadyChecker.
func (lm *LifecycleManager) ProbeReadiness(ctx context.Context) {
	names := lm.registry.Modules()
	modules := lm.registry.ModulesByNames(names)

	depsReadyFunc := func(name string) (bool, []string) {
		return lm.deps.DepsReadyWithReasons(name, lm.health)
	}

	for _, mod := range modules {
		prevReady := lm.health.GetReadyStatus(mod.Name())
		prevReadyErr := lm.health.GetReadyError(mod.Name())

		ok, reasons := depsReadyFunc(mod.Name())
		if !ok {
			newErr := "waiting for dependencies: " + joinStrings(reasons, "; ")
			if prevReady != ReadyStatusNotReady || prevReadyErr != newErr {
				lm.log.Printf("module %s waiting for dependencies: %s", mod.Name(), joinStrings(reasons, "; "))
			}
		}
	}

	lm.health.ProbeReadiness(ctx, modules, depsReadyFunc)
	lm.checkStartupDeadlines()
	lm.recordMetrics(modules, depsReadyFunc)
}

// checkStartupDeadlines fails any Stateful module still mid-start past its
// startup deadline. A module leaves startingSince as soon as its Start
// goroutine returns or a probe finds it ready, so anything still present
// here has neither become ready nor exited; once marked failed, its entry is
// cleared so the check does not fire again on every subsequent probe.
func (lm *LifecycleManager) checkStartupDeadlines() {
	now := time.Now()

	lm.mu.Lock()
	var overdue []string
	for name, since := range lm.startingSince {
		if lm.health.GetReadyStatus(name) == ReadyStatusReady {
			delete(lm.startingSince, name)
			continue
		}
		if now.Sub(since) > lm.startupDeadline {
			overdue = append(overdue, name)
			delete(lm.startingSince, name)
		}
	}
	lm.mu.Unlock()

	for _, name := range overdue {
		lm.log.Printf("module %s did not report readiness within startup deadline %s", name, lm.startupDeadline)
		lm.health.MarkFailed(name, "start", fmt.Sprintf("startup deadline of %s exceeded", lm.startupDeadline))
	}
}

// recordMetrics publishes the current lifecycle/readiness/timing snapshot to
// Prometheus, mirroring spec's "IDK/CH operation counters" metrics surface
// for the Module Runtime's own lifecycle state.
func (lm *LifecycleManager) recordMetrics(modules []Module, depsReadyFunc func(string) (bool, []string)) {
	healths := lm.health.ModulesHealth(lm.registry.Modules())

	metricsOut := make([]metrics.ModuleMetric, 0, len(modules))
	timingsOut := make([]metrics.ModuleTiming, 0, len(modules))
	for _, h := range healths {
		waiting, _ := depsReadyFunc(h.Name)
		metricsOut = append(metricsOut, metrics.ModuleMetric{
			Name:    h.Name,
			Status:  h.Status,
			Ready:   h.ReadyStatus == ReadyStatusReady,
			Waiting: !waiting,
		})
		timingsOut = append(timingsOut, metrics.ModuleTiming{
			Name:         h.Name,
			StartSeconds: float64(h.StartNanos) / 1e9,
			StopSeconds:  float64(h.StopNanos) / 1e9,
		})
	}
	metrics.RecordModuleMetrics(metricsOut)
	metrics.RecordModuleTimings(timingsOut)
}

// joinStrings joins strings with a separator.
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for i := 1; i < len(strs); i++ {
		result += sep + strs[i]
	}
	return result
}
