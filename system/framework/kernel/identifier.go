// Package kernel implements the Identifier & Schema Kernel: parsing and
// validation of hierarchical type identifiers, and storage of the JSON
// schema/instance documents registered against them.
package kernel

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	segmentPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	versionPattern = regexp.MustCompile(`^v[0-9]+$`)
)

// Identifier is a parsed hierarchical type identifier of the form
// kind.vendor.package.namespace.name.version[~instance].
type Identifier struct {
	Kind      string
	Vendor    string
	Package   string
	Namespace string
	Name      string
	Version   string
	// Instance is the tail after '~'. An empty Instance with HasInstance
	// false means this is a schema identifier; HasInstance true with an
	// empty string is not a valid state (enforced by Parse).
	Instance    string
	HasInstance bool
}

// MalformedIdentifierError reports a syntactically invalid identifier.
type MalformedIdentifierError struct {
	Text   string
	Reason string
}

func (e *MalformedIdentifierError) Error() string {
	return fmt.Sprintf("malformed identifier %q: %s", e.Text, e.Reason)
}

// Parse normalizes and validates the textual form of an identifier.
func Parse(text string) (Identifier, error) {
	schemaPart := text
	instancePart := ""
	hasInstance := false

	if idx := strings.Index(text, "~"); idx >= 0 {
		schemaPart = text[:idx]
		instancePart = text[idx+1:]
		hasInstance = true
		if instancePart == "" {
			return Identifier{}, &MalformedIdentifierError{Text: text, Reason: "empty instance tail after '~'"}
		}
		if strings.Contains(instancePart, "~") {
			return Identifier{}, &MalformedIdentifierError{Text: text, Reason: "more than one '~' separator"}
		}
	}

	segments := strings.Split(schemaPart, ".")
	if len(segments) != 6 {
		return Identifier{}, &MalformedIdentifierError{
			Text:   text,
			Reason: fmt.Sprintf("expected 6 dot-separated segments (kind.vendor.package.namespace.name.version), got %d", len(segments)),
		}
	}

	for i, seg := range segments[:5] {
		if !segmentPattern.MatchString(seg) {
			return Identifier{}, &MalformedIdentifierError{
				Text:   text,
				Reason: fmt.Sprintf("segment %d (%q) must match [a-z][a-z0-9_]*", i, seg),
			}
		}
	}
	if !versionPattern.MatchString(segments[5]) {
		return Identifier{}, &MalformedIdentifierError{
			Text:   text,
			Reason: fmt.Sprintf("version segment %q must match v[0-9]+", segments[5]),
		}
	}

	if hasInstance && !segmentPattern.MatchString(instancePart) {
		return Identifier{}, &MalformedIdentifierError{Text: text, Reason: fmt.Sprintf("instance %q must match [a-z][a-z0-9_]*", instancePart)}
	}

	return Identifier{
		Kind:        segments[0],
		Vendor:      segments[1],
		Package:     segments[2],
		Namespace:   segments[3],
		Name:        segments[4],
		Version:     segments[5],
		Instance:    instancePart,
		HasInstance: hasInstance,
	}, nil
}

// MustParse parses text and panics on error. Intended for static identifiers
// known at compile time (e.g. a gateway's own schema identifier literal).
func MustParse(text string) Identifier {
	id, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the canonical textual form.
func (id Identifier) String() string {
	base := strings.Join([]string{id.Kind, id.Vendor, id.Package, id.Namespace, id.Name, id.Version}, ".")
	if id.HasInstance {
		return base + "~" + id.Instance
	}
	return base
}

// IsSchema reports whether this identifier has no instance tail.
func (id Identifier) IsSchema() bool { return !id.HasInstance }

// IsInstance reports whether this identifier has an instance tail.
func (id Identifier) IsInstance() bool { return id.HasInstance }

// SchemaPrefix returns the {kind..version} portion as a schema identifier,
// discarding any instance tail.
func (id Identifier) SchemaPrefix() Identifier {
	id.Instance = ""
	id.HasInstance = false
	return id
}

// MatchesSchema reports whether a schema identifier matches an instance
// identifier's {kind..version} prefix.
func (schema Identifier) MatchesSchema(instance Identifier) bool {
	return schema.IsSchema() && instance.IsInstance() &&
		schema.Kind == instance.Kind &&
		schema.Vendor == instance.Vendor &&
		schema.Package == instance.Package &&
		schema.Namespace == instance.Namespace &&
		schema.Name == instance.Name &&
		schema.Version == instance.Version
}

// Equal reports structural equality between two identifiers.
func (id Identifier) Equal(other Identifier) bool {
	return id == other
}
