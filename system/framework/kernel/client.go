package kernel

import "encoding/json"

// Client is the narrow surface a module publishes into the Client Hub so
// other modules can register and query identifiers without importing
// kernel.Registry directly. It deliberately omits SwitchToReady: only the
// owning module (the one that ran post_init on this registry) may flip the
// state.
type Client interface {
	// Register records a batch of schema or instance documents, returning
	// one result per input document in order. Registration never aborts
	// partway through a batch.
	Register(batch []json.RawMessage) []RegisterResult
	// Get returns the document registered under id.
	Get(id Identifier) (Entity, error)
	// List returns every entity matching q.
	List(q Query) ([]Entity, error)
	// State reports whether the registry is still Collecting or has
	// switched to Ready.
	State() State
}

// AsClient adapts a *Registry to the Client interface for publication into
// the Client Hub. The concrete *Registry is kept by the owning module so it
// alone can call SwitchToReady during post_init.
func AsClient(r *Registry) Client { return r }
