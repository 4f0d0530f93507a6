package securequery

// AccessScope is the security context every query must be tagged with
// before it can run. A root scope bypasses tenant filtering entirely; a
// non-root scope restricts visibility to the listed tenant and resource
// IDs.
type AccessScope struct {
	IsRoot      bool
	TenantIDs   []string
	ResourceIDs []string
}

// RootScope returns a scope that bypasses tenant filtering.
func RootScope() AccessScope {
	return AccessScope{IsRoot: true}
}

// TenantScope returns a non-root scope restricted to the given tenant IDs.
func TenantScope(tenantIDs ...string) AccessScope {
	return AccessScope{TenantIDs: tenantIDs}
}

// IsEmpty reports whether s is a non-root scope with no tenant or resource
// IDs. An empty scope compiles to a deny-all predicate.
func (s AccessScope) IsEmpty() bool {
	return !s.IsRoot && len(s.TenantIDs) == 0 && len(s.ResourceIDs) == 0
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
