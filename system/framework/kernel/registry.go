package kernel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/R3E-Network/modrun/pkg/metrics"
)

// State is the observable lifecycle state of a Registry.
type State int

const (
	// Collecting accepts registrations without cross-reference validation.
	Collecting State = iota
	// Ready validates instance registrations against already-present schemas.
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "collecting"
}

// Entity is a registered (identifier, document) pair.
type Entity struct {
	Identifier Identifier
	Document   json.RawMessage
}

// NotFoundError reports that no entity is registered under an identifier.
type NotFoundError struct{ Identifier Identifier }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("identifier %s not found", e.Identifier)
}

// AlreadyExistsError reports a byte-unequal re-registration under an
// already-occupied key.
type AlreadyExistsError struct{ Identifier Identifier }

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("identifier %s already registered with a different document", e.Identifier)
}

// SchemaNotFoundError reports an instance registered (in Ready state)
// without a matching previously-registered schema.
type SchemaNotFoundError struct{ Identifier Identifier }

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("no schema registered matching instance %s", e.Identifier)
}

// MalformedQueryError reports an invalid list query.
type MalformedQueryError struct{ Reason string }

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed query: %s", e.Reason)
}

// BackfillFailedError reports that switch_to_ready found instances with no
// matching schema; the registry state remains Collecting.
type BackfillFailedError struct{ Offending []Identifier }

func (e *BackfillFailedError) Error() string {
	return fmt.Sprintf("backfill failed for %d identifier(s): %v", len(e.Offending), e.Offending)
}

// idEnvelope extracts a document's self-declared identifier. Every document
// registered with the kernel must carry its own key under "id".
type idEnvelope struct {
	ID string `json:"id"`
}

// Registry stores registered schema and instance entities keyed by
// Identifier, and tracks the Collecting/Ready state transition.
type Registry struct {
	mu       sync.RWMutex
	state    State
	entities map[Identifier]Entity
	order    []Identifier
}

// NewRegistry returns an empty Registry in the Collecting state.
func NewRegistry() *Registry {
	return &Registry{
		state:    Collecting,
		entities: make(map[Identifier]Entity),
	}
}

// State returns the registry's current lifecycle state.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// RegisterResult is the per-item outcome of a batch registration, in the
// same order as the input batch.
type RegisterResult struct {
	Identifier Identifier
	Entity     Entity
	Err        error
}

// Register submits an ordered batch of JSON documents, each self-declaring
// its identifier under an "id" field. It never aborts the batch: every item
// is attempted and reported independently, in input order.
func (r *Registry) Register(batch []json.RawMessage) []RegisterResult {
	results := make([]RegisterResult, len(batch))

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, doc := range batch {
		result := r.registerOneLocked(doc)
		metrics.RecordKernelOperation("register", resultLabel(result.Err))
		results[i] = result
	}
	return results
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch err.(type) {
	case *AlreadyExistsError:
		return "already_exists"
	case *SchemaNotFoundError:
		return "schema_not_found"
	case *MalformedIdentifierError:
		return "malformed"
	default:
		return "error"
	}
}

func (r *Registry) registerOneLocked(doc json.RawMessage) RegisterResult {
	var env idEnvelope
	if err := json.Unmarshal(doc, &env); err != nil {
		return RegisterResult{Err: &MalformedIdentifierError{Text: "", Reason: "document has no parsable \"id\" field: " + err.Error()}}
	}

	id, err := Parse(env.ID)
	if err != nil {
		return RegisterResult{Err: err}
	}

	if existing, ok := r.entities[id]; ok {
		if bytes.Equal(bytes.TrimSpace(existing.Document), bytes.TrimSpace(doc)) {
			return RegisterResult{Identifier: id, Entity: existing}
		}
		return RegisterResult{Identifier: id, Err: &AlreadyExistsError{Identifier: id}}
	}

	if r.state == Ready && id.IsInstance() {
		if !r.hasMatchingSchemaLocked(id) {
			return RegisterResult{Identifier: id, Err: &SchemaNotFoundError{Identifier: id}}
		}
	}

	entity := Entity{Identifier: id, Document: append(json.RawMessage{}, doc...)}
	r.entities[id] = entity
	r.order = append(r.order, id)
	return RegisterResult{Identifier: id, Entity: entity}
}

func (r *Registry) hasMatchingSchemaLocked(instance Identifier) bool {
	schema := instance.SchemaPrefix()
	_, ok := r.entities[schema]
	return ok
}

// Get retrieves the entity registered under identifier.
func (r *Registry) Get(id Identifier) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[id]
	if !ok {
		metrics.RecordKernelOperation("get", "not_found")
		return Entity{}, &NotFoundError{Identifier: id}
	}
	metrics.RecordKernelOperation("get", "ok")
	return e, nil
}

// SegmentScope selects where a list Query's glob pattern is matched.
type SegmentScope string

const (
	// ScopePrimary restricts pattern matching to the schema prefix.
	ScopePrimary SegmentScope = "primary"
	// ScopeAny matches the pattern anywhere in the identifier, instance
	// tail included.
	ScopeAny SegmentScope = "any"
)

// Query filters List results. All non-empty fields are ANDed together.
type Query struct {
	// Pattern is a dot-separated glob, "*" matching a single segment.
	// With SegmentScope primary it is matched against {kind..version}
	// positionally; with SegmentScope any it is matched against the full
	// identifier including the instance tail (when present).
	Pattern      string
	Kind         string
	Vendor       string
	Package      string
	Namespace    string
	SegmentScope SegmentScope
}

// List returns every registered entity matching query, ordered by
// registration order.
func (r *Registry) List(q Query) ([]Entity, error) {
	scope := q.SegmentScope
	if scope == "" {
		scope = ScopePrimary
	}
	if scope != ScopePrimary && scope != ScopeAny {
		metrics.RecordKernelOperation("list", "malformed_query")
		return nil, &MalformedQueryError{Reason: fmt.Sprintf("unknown segment-scope %q", scope)}
	}

	var patternSegs []string
	if q.Pattern != "" {
		patternSegs = strings.Split(q.Pattern, ".")
		for _, seg := range patternSegs {
			if seg == "" {
				metrics.RecordKernelOperation("list", "malformed_query")
				return nil, &MalformedQueryError{Reason: "pattern contains an empty segment"}
			}
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entity, 0, len(r.order))
	for _, id := range r.order {
		e := r.entities[id]
		if !matchesFields(id, q) {
			continue
		}
		if patternSegs != nil && !matchesPattern(id, patternSegs, scope) {
			continue
		}
		out = append(out, e)
	}
	metrics.RecordKernelOperation("list", "ok")
	return out, nil
}

func matchesFields(id Identifier, q Query) bool {
	if q.Kind != "" && id.Kind != q.Kind {
		return false
	}
	if q.Vendor != "" && id.Vendor != q.Vendor {
		return false
	}
	if q.Package != "" && id.Package != q.Package {
		return false
	}
	if q.Namespace != "" && id.Namespace != q.Namespace {
		return false
	}
	return true
}

func matchesPattern(id Identifier, pattern []string, scope SegmentScope) bool {
	segs := []string{id.Kind, id.Vendor, id.Package, id.Namespace, id.Name, id.Version}
	if id.HasInstance {
		segs = append(segs, id.Instance)
	}

	if scope == ScopePrimary {
		prefix := segs
		if id.HasInstance {
			prefix = segs[:6]
		}
		return matchesPositional(prefix, pattern)
	}

	// ScopeAny: match the pattern as a contiguous positional window
	// starting at any offset within the full segment list.
	if len(pattern) > len(segs) {
		return false
	}
	for start := 0; start+len(pattern) <= len(segs); start++ {
		if matchesPositional(segs[start:start+len(pattern)], pattern) {
			return true
		}
	}
	return false
}

func matchesPositional(segs, pattern []string) bool {
	if len(segs) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != segs[i] {
			return false
		}
	}
	return true
}

// SwitchToReady performs the one-way Collecting to Ready transition. It
// validates every currently-registered instance against a present schema;
// if any lack one, the transition is refused and the registry remains
// Collecting.
func (r *Registry) SwitchToReady() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Ready {
		return nil
	}

	var offending []Identifier
	for _, id := range r.order {
		if !id.IsInstance() {
			continue
		}
		if !r.hasMatchingSchemaLocked(id) {
			offending = append(offending, id)
		}
	}
	if len(offending) > 0 {
		sort.Slice(offending, func(i, j int) bool { return offending[i].String() < offending[j].String() })
		return &BackfillFailedError{Offending: offending}
	}

	r.state = Ready
	return nil
}
