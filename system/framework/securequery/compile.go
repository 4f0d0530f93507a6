package securequery

// denyAllClause is the predicate emitted whenever the compiled scope must
// exclude every row. It is semantically FALSE for any non-empty table.
const denyAllClause = "1 = 0"

// allowAllClause is the predicate emitted when the scope imposes no
// restriction.
const allowAllClause = "1 = 1"

// Compiler compiles an AccessScope and a ScopableEntity into a SQL WHERE
// predicate, following the three-rule algorithm: root scopes bypass tenant
// filtering and only ever restrict on resource IDs; an empty, non-root
// scope denies everything; otherwise the tenant and resource predicates
// (whichever are present) are conjoined.
type Compiler struct {
	TenantProvider TenantFilterProvider
}

// NewCompiler returns a Compiler using the direct IN-list tenant strategy.
func NewCompiler() Compiler {
	return Compiler{TenantProvider: DirectInListProvider{}}
}

func (c Compiler) tenantProvider() TenantFilterProvider {
	if c.TenantProvider == nil {
		return DirectInListProvider{}
	}
	return c.TenantProvider
}

// Compile returns the predicate clause (using "?" placeholders) and its
// positional arguments for scoping e by s.
func (c Compiler) Compile(e ScopableEntity, s AccessScope) (string, []any) {
	if s.IsRoot {
		return c.compileRoot(e, s)
	}
	if s.IsEmpty() {
		return denyAllClause, nil
	}
	return c.compileScoped(e, s)
}

func (c Compiler) compileRoot(e ScopableEntity, s AccessScope) (string, []any) {
	if len(s.ResourceIDs) == 0 {
		return allowAllClause, nil
	}
	if !e.HasResource() {
		return denyAllClause, nil
	}
	return inClause(e.ResourceColumn, s.ResourceIDs)
}

func (c Compiler) compileScoped(e ScopableEntity, s AccessScope) (string, []any) {
	var clauses []string
	var args []any

	if len(s.TenantIDs) > 0 {
		if e.HasTenant() {
			clause, a := c.tenantProvider().Predicate(e.TenantColumn, s.TenantIDs)
			clauses = append(clauses, clause)
			args = append(args, a...)
		} else {
			clauses = append(clauses, denyAllClause)
		}
	}

	if len(s.ResourceIDs) > 0 {
		if e.HasResource() {
			clause, a := inClause(e.ResourceColumn, s.ResourceIDs)
			clauses = append(clauses, clause)
			args = append(args, a...)
		} else {
			clauses = append(clauses, denyAllClause)
		}
	}

	if len(clauses) == 0 {
		return allowAllClause, nil
	}
	return conjoin(clauses), args
}

func conjoin(clauses []string) string {
	out := "(" + clauses[0] + ")"
	for _, c := range clauses[1:] {
		out += " AND (" + c + ")"
	}
	return out
}
