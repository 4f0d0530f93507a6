package securequery

import (
	"fmt"
	"strings"
)

// TenantFilterProvider compiles a tenant predicate for a column and a set
// of tenant IDs. The default is a direct IN-list; a future strategy could
// inflate a tenant ID to include its descendants without touching any
// caller of Compile.
type TenantFilterProvider interface {
	// Predicate returns a SQL fragment using "?" placeholders and its
	// positional arguments, restricting column to tenantIDs.
	Predicate(column string, tenantIDs []string) (string, []any)
}

// DirectInListProvider implements TenantFilterProvider as a plain
// "column IN (...)" clause.
type DirectInListProvider struct{}

// Predicate implements TenantFilterProvider.
func (DirectInListProvider) Predicate(column string, tenantIDs []string) (string, []any) {
	return inClause(column, tenantIDs)
}

func inClause(column string, values []string) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args
}
