package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages module registration and lookup. It has no notion of
// lifecycle state; LifecycleManager drives modules through their phases
// using the ordering this type exposes.
type Registry struct {
	mu       sync.RWMutex
	modules  map[string]Module
	order    []string // registration order
	ordering []string // explicit startup order override
	health   *HealthMonitor
}

// NewRegistry creates a new module registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// SetHealthMonitor attaches a health monitor to update on registration.
func (r *Registry) SetHealthMonitor(h *HealthMonitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health = h
}

// SetOrdering sets an explicit startup order (by module name).
// Unlisted modules start after, in registration order.
func (r *Registry) SetOrdering(modules ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ordering = append([]string{}, modules...)
}

// Register adds a module to the registry. Names must be unique.
func (r *Registry) Register(module Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if module == nil {
		return fmt.Errorf("module is nil")
	}
	name := module.Name()
	if name == "" {
		return fmt.Errorf("module name required")
	}
	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("module %q already registered", name)
	}

	r.modules[name] = module
	r.order = append(r.order, name)

	if r.health != nil {
		r.health.MarkRegistered(name)
	}

	return nil
}

// Unregister removes a module from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; !exists {
		return fmt.Errorf("module %q not found", name)
	}

	delete(r.modules, name)

	newOrder := make([]string, 0, len(r.order)-1)
	for _, n := range r.order {
		if n != name {
			newOrder = append(newOrder, n)
		}
	}
	r.order = newOrder

	if r.health != nil {
		r.health.Delete(name)
	}

	return nil
}

// Lookup returns a module by name, if registered.
func (r *Registry) Lookup(name string) Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules[name]
}

// Modules returns the registered module names (ordered).
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderedModulesLocked()
}

// ModuleCount returns the number of registered modules.
func (r *Registry) ModuleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// ModulesByNames returns modules for the given names, skipping any that are
// not registered.
func (r *Registry) ModulesByNames(names []string) []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]Module, 0, len(names))
	for _, name := range names {
		if mod := r.modules[name]; mod != nil {
			modules = append(modules, mod)
		}
	}
	return modules
}

// ModulesWithCapability returns every registered module declaring cap, in
// the same order as Modules.
func (r *Registry) ModulesWithCapability(cap Capability) []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Module
	for _, name := range r.orderedModulesLocked() {
		mod := r.modules[name]
		if mod == nil {
			continue
		}
		if Descriptor{Capabilities: mod.Capabilities()}.HasCapability(cap) {
			out = append(out, mod)
		}
	}
	return out
}

// Descriptors returns the static descriptor for every registered module, in
// the same order as Modules. Used to build the SystemView exposed to PreIniters.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.modules))
	for _, name := range r.orderedModulesLocked() {
		mod := r.modules[name]
		if mod == nil {
			continue
		}
		out = append(out, Descriptor{
			Name:         mod.Name(),
			Dependencies: mod.Dependencies(),
			Capabilities: mod.Capabilities(),
		})
	}
	return out
}

// DescriptorFor returns the descriptor for a single module.
func (r *Registry) DescriptorFor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[name]
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{
		Name:         mod.Name(),
		Dependencies: mod.Dependencies(),
		Capabilities: mod.Capabilities(),
	}, true
}

// orderedModulesLocked returns module names honoring explicit ordering first,
// then remaining registration order. Must be called with lock held.
func (r *Registry) orderedModulesLocked() []string {
	seen := make(map[string]bool, len(r.modules))
	var out []string

	for _, name := range r.ordering {
		if mod, ok := r.modules[name]; ok && mod != nil {
			out = append(out, name)
			seen[name] = true
		}
	}

	for _, name := range r.order {
		if !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}

	var extras []string
	for name := range r.modules {
		if !seen[name] && !contains(out, name) {
			extras = append(extras, name)
		}
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		out = append(out, extras...)
	}

	return out
}

func contains(slice []string, val string) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}
