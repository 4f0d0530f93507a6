// Package engine implements the Module Runtime: the lifecycle orchestrator
// that drives registered modules through pre_init, init, post_init, start,
// and stop, in dependency order.
//
// # Architecture
//
// Four collaborators make up an Engine:
//
//   - Registry holds registered modules and the order they should run in
//     (explicit ordering first, then registration order, then a sorted
//     remainder).
//   - DependencyManager records each module's declared dependencies and
//     resolves a topological startup order, reporting DependencyCycleError
//     when no order satisfies the graph.
//   - HealthMonitor tracks the latest lifecycle status and readiness of
//     every module, independent of lifecycle control flow.
//   - LifecycleManager drives the phase sequence itself: it builds each
//     module's ModuleContext, detects optional lifecycle interfaces
//     (PreIniter, PostIniter, Starter, Stopper) via type assertion, and
//     unwinds already-initialized modules in reverse order when a later
//     phase fails.
//
// Modules never reference one another directly. Instead, a module's Init
// publishes implementations of whatever narrow interfaces it offers into the
// Client Hub (system/framework/hub), and later modules resolve what they
// need from the same Hub instance, which the Engine threads through every
// ModuleContext.
//
//	e := engine.New(engine.WithLogger(logger))
//	e.Register(moduleA)
//	e.Register(moduleB)
//	if err := e.Bootstrap(ctx); err != nil {
//		log.Fatal(err)
//	}
//	go func() { <-sigCh; e.Stop(context.Background()) }()
//	if err := e.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Phases
//
// pre_init runs only for modules declaring CapabilitySystem that implement
// PreIniter; it is the sole place a module may observe the runtime itself,
// through a read-only SystemView. init runs for every module in dependency
// order and is the only mandatory phase. post_init runs for CapabilitySystem
// modules implementing PostIniter once every module has completed init; this
// is where, for example, a schema registry switches from collecting
// registrations to enforcing them. start launches every CapabilityStateful
// module implementing Starter concurrently, under a single cancellation
// context shared by the whole runtime. stop runs in the reverse of init
// order and tolerates individual module failures, logging and continuing so
// that one stuck module cannot block the rest of shutdown.
package engine
