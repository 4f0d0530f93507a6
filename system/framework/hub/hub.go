// Package hub implements the Client Hub: a concurrent, type-erased registry
// mapping (capability type, optional scope key) to a shared implementation
// handle. It is the sole inter-module wiring primitive the runtime provides —
// modules never import one another directly; they publish and retrieve
// capability implementations through a Hub.
package hub

import (
	"fmt"
	"log"
	"reflect"
	"sync"

	"github.com/R3E-Network/modrun/pkg/metrics"
)

// Hub is a concurrent, type-erased client registry. The zero value is not
// usable; construct with New.
type Hub struct {
	mu          sync.RWMutex
	unscoped    map[reflect.Type]any
	scoped      map[reflect.Type]map[string]any
	scopedOrder map[reflect.Type][]string
	log         *log.Logger
}

// New returns an empty Hub ready to accept registrations.
func New() *Hub {
	return &Hub{
		unscoped:    make(map[reflect.Type]any),
		scoped:      make(map[reflect.Type]map[string]any),
		scopedOrder: make(map[reflect.Type][]string),
		log:         log.Default(),
	}
}

// SetLogger overrides the logger used to warn about scoped overwrite races.
func (h *Hub) SetLogger(l *log.Logger) {
	if h == nil || l == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log = l
}

// typeOf returns the reflect.Type token for T, used as the TypeTag.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register publishes the sole unscoped (singleton) implementation of T.
// Registering a second unscoped implementation of the same T is a
// programming error and returns an error rather than silently overwriting,
// since unscoped entries are meant to be unique per TypeTag.
func Register[T any](h *Hub, impl T) error {
	if h == nil {
		return fmt.Errorf("hub: nil hub")
	}
	t := typeOf[T]()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.unscoped[t]; exists {
		metrics.RecordHubOperation("register", "already_exists")
		return fmt.Errorf("hub: unscoped implementation of %s already registered", t)
	}
	h.unscoped[t] = impl
	metrics.RecordHubOperation("register", "ok")
	return nil
}

// RegisterScoped publishes an implementation of T under the given scope key.
// Re-registering the same (T, key) pair replaces the prior entry and logs a
// warning — last-writer-wins, since a plugin re-registering under its own
// instance id during a reload is expected, but a collision between two
// different plugins sharing an instance id usually signals a bug upstream.
func RegisterScoped[T any](h *Hub, key string, impl T) error {
	if h == nil {
		return fmt.Errorf("hub: nil hub")
	}
	if key == "" {
		return fmt.Errorf("hub: scope key required")
	}
	t := typeOf[T]()

	h.mu.Lock()
	defer h.mu.Unlock()

	byKey := h.scoped[t]
	if byKey == nil {
		byKey = make(map[string]any)
		h.scoped[t] = byKey
	}
	if _, exists := byKey[key]; exists {
		h.log.Printf("hub: overwriting scoped implementation of %s for key %q", t, key)
		metrics.RecordHubOperation("register_scoped", "overwritten")
	} else {
		h.scopedOrder[t] = append(h.scopedOrder[t], key)
		metrics.RecordHubOperation("register_scoped", "ok")
	}
	byKey[key] = impl
	return nil
}

// Get returns the unscoped implementation of T, or false if none is registered.
func Get[T any](h *Hub) (T, bool) {
	var zero T
	if h == nil {
		return zero, false
	}
	t := typeOf[T]()

	h.mu.RLock()
	defer h.mu.RUnlock()

	v, ok := h.unscoped[t]
	if !ok {
		return zero, false
	}
	impl, ok := v.(T)
	return impl, ok
}

// GetScoped returns the implementation of T registered under key, or false.
func GetScoped[T any](h *Hub, key string) (T, bool) {
	var zero T
	if h == nil {
		return zero, false
	}
	t := typeOf[T]()

	h.mu.RLock()
	defer h.mu.RUnlock()

	byKey, ok := h.scoped[t]
	if !ok {
		return zero, false
	}
	v, ok := byKey[key]
	if !ok {
		return zero, false
	}
	impl, ok := v.(T)
	return impl, ok
}

// ScopedEntry is a single (key, implementation) pair returned by ListScoped.
type ScopedEntry[T any] struct {
	Key   string
	Value T
}

// ListScoped returns every currently registered (key, implementation) pair
// for T, in the order each key was first registered. A key that was
// re-registered (last-writer-wins) keeps its original position.
func ListScoped[T any](h *Hub) []ScopedEntry[T] {
	if h == nil {
		return nil
	}
	t := typeOf[T]()

	h.mu.RLock()
	defer h.mu.RUnlock()

	byKey := h.scoped[t]
	order := h.scopedOrder[t]
	out := make([]ScopedEntry[T], 0, len(order))
	for _, key := range order {
		v, ok := byKey[key]
		if !ok {
			continue
		}
		if impl, ok := v.(T); ok {
			out = append(out, ScopedEntry[T]{Key: key, Value: impl})
		}
	}
	return out
}

// HasUnscoped reports whether an unscoped implementation of T is registered.
func HasUnscoped[T any](h *Hub) bool {
	_, ok := Get[T](h)
	return ok
}
