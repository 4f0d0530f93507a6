// Package securequery is a typestate wrapper over a relational store that
// makes it impossible to run a data-access query without first attaching an
// access scope. An UnscopedQuery has no terminal verbs; only ScopeWith
// transitions it to a ScopedQuery, which alone exposes One/All/Insert/Update/
// Delete. The scope is compiled into a mandatory WHERE predicate that every
// terminal verb applies.
package securequery

// ScopableEntity describes, for a single table, which of the four scope
// columns (tenant, resource, owner, type) are present. There are no implicit
// defaults: every entity that participates in scoping states the presence or
// absence of each column explicitly, by leaving the corresponding field
// either set or empty.
type ScopableEntity struct {
	Table      string
	PrimaryKey string

	TenantColumn   string
	ResourceColumn string
	OwnerColumn    string
	TypeColumn     string
}

// HasTenant reports whether e carries a tenant column.
func (e ScopableEntity) HasTenant() bool { return e.TenantColumn != "" }

// HasResource reports whether e carries a resource column.
func (e ScopableEntity) HasResource() bool { return e.ResourceColumn != "" }

// HasOwner reports whether e carries an owner column.
func (e ScopableEntity) HasOwner() bool { return e.OwnerColumn != "" }

// HasType reports whether e carries a type column.
func (e ScopableEntity) HasType() bool { return e.TypeColumn != "" }

// Unrestricted returns an entity descriptor with none of the four scope
// columns present, for tables that sit outside the tenancy model entirely
// (e.g. global reference data). Scope compilation against an unrestricted
// entity only ever emits the root/resource rules of Compile, since tcol is
// always absent.
func Unrestricted(table, primaryKey string) ScopableEntity {
	return ScopableEntity{Table: table, PrimaryKey: primaryKey}
}
