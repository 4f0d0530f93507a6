package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// statefulModule is a fakeModule extended with Start/Stop so it exercises the
// concurrent-start and reverse-stop phases.
type statefulModule struct {
	fakeModule
	startErr  error
	startedAt int32
	stopped   int32
	block     chan struct{}
}

func (m *statefulModule) Start(ctx context.Context) error {
	atomic.StoreInt32(&m.startedAt, 1)
	if m.startErr != nil {
		return m.startErr
	}
	if m.block != nil {
		<-m.block
	}
	<-ctx.Done()
	return nil
}

func (m *statefulModule) Stop(ctx context.Context) error {
	atomic.StoreInt32(&m.stopped, 1)
	return nil
}

// systemModule observes pre_init/post_init and is used to model the registry
// switching from a collecting to a serving state once every module's init
// has run.
type systemModule struct {
	fakeModule
	sawModules []string
	switched   bool
	postInitErr error
}

func (m *systemModule) PreInit(ctx context.Context, sys SystemView) error {
	m.sawModules = sys.Modules()
	return nil
}

func (m *systemModule) PostInit(ctx context.Context) error {
	m.switched = true
	return m.postInitErr
}

func TestEngine_PreInitSeesFullModuleSet(t *testing.T) {
	e := New()
	sys := &systemModule{fakeModule: fakeModule{name: "registry", caps: []Capability{CapabilitySystem}}}
	worker := &fakeModule{name: "worker", deps: []string{"registry"}}

	if err := e.Register(sys); err != nil {
		t.Fatal(err)
	}
	if err := e.Register(worker); err != nil {
		t.Fatal(err)
	}

	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer e.Stop(context.Background())

	if len(sys.sawModules) != 2 {
		t.Fatalf("expected pre_init to see both modules, got %v", sys.sawModules)
	}
	if !sys.switched {
		t.Fatal("expected post_init to have run")
	}
}

func TestEngine_PostInitFailureUnwindsInit(t *testing.T) {
	e := New()
	sys := &systemModule{
		fakeModule:  fakeModule{name: "registry", caps: []Capability{CapabilitySystem}},
		postInitErr: errors.New("backfill failed"),
	}
	if err := e.Register(sys); err != nil {
		t.Fatal(err)
	}

	if err := e.Bootstrap(context.Background()); err == nil {
		t.Fatal("expected bootstrap to fail when post_init fails")
	}

	h := e.Health().GetHealth("registry")
	if h.Status != StatusStopped {
		t.Fatalf("expected registry to be stopped after post_init unwind, got %s", h.Status)
	}
}

func TestEngine_ConcurrentStatefulStart(t *testing.T) {
	e := New()
	w1 := &statefulModule{fakeModule: fakeModule{name: "w1", caps: []Capability{CapabilityStateful}}}
	w2 := &statefulModule{fakeModule: fakeModule{name: "w2", caps: []Capability{CapabilityStateful}}}

	if err := e.Register(w1); err != nil {
		t.Fatal(err)
	}
	if err := e.Register(w2); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := e.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&w1.startedAt) == 0 || atomic.LoadInt32(&w2.startedAt) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for both stateful workers to start")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if atomic.LoadInt32(&w1.stopped) == 0 || atomic.LoadInt32(&w2.stopped) == 0 {
		t.Fatal("expected both stateful workers to be stopped")
	}
}

func TestEngine_StartFailurePropagatesToRun(t *testing.T) {
	e := New()
	boom := errors.New("worker crashed")
	w := &statefulModule{fakeModule: fakeModule{name: "w", caps: []Capability{CapabilityStateful}}, startErr: boom}

	if err := e.Register(w); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := e.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	err := e.Run(runCtx)
	if err == nil {
		t.Fatal("expected Run to surface the worker's start error")
	}
}

func TestEngine_StopReversesInitOrder(t *testing.T) {
	e := New()
	var mu sync.Mutex
	var stopOrder []string

	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			stopOrder = append(stopOrder, name)
			mu.Unlock()
			return nil
		}
	}

	a := &recordingStopModule{fakeModule: fakeModule{name: "a"}, stop: record("a")}
	b := &recordingStopModule{fakeModule: fakeModule{name: "b", deps: []string{"a"}}, stop: record("b")}
	c := &recordingStopModule{fakeModule: fakeModule{name: "c", deps: []string{"b"}}, stop: record("c")}

	for _, m := range []Module{a, b, c} {
		if err := e.Register(m); err != nil {
			t.Fatal(err)
		}
	}

	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"c", "b", "a"}
	mu.Lock()
	defer mu.Unlock()
	if len(stopOrder) != len(want) {
		t.Fatalf("expected %v, got %v", want, stopOrder)
	}
	for i := range want {
		if stopOrder[i] != want[i] {
			t.Fatalf("expected stop order %v, got %v", want, stopOrder)
		}
	}
}

type recordingStopModule struct {
	fakeModule
	stop func(ctx context.Context) error
}

func (m *recordingStopModule) Stop(ctx context.Context) error { return m.stop(ctx) }

func TestEngine_ProbeReadinessReflectsDependencies(t *testing.T) {
	e := New()
	a := &fakeModule{name: "a"}
	b := &fakeModule{name: "b", deps: []string{"a"}}

	if err := e.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := e.Register(b); err != nil {
		t.Fatal(err)
	}

	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer e.Stop(context.Background())

	e.MarkReady("", "", "a")
	e.ProbeReadiness(context.Background())

	if got := e.Health().GetReadyStatus("b"); got != ReadyStatusReady {
		t.Fatalf("expected b ready once a is ready, got %s", got)
	}
}
