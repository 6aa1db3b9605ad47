package sqlplan

import (
	"github.com/queryplan/sqlplan/lib/sql/ast"
	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
	"github.com/queryplan/sqlplan/lib/sql/token"
)

func (p *Planner) planJoins(joins []ast.Join, mode token.AccessMode) ([]string, error) {
	if len(joins) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(joins))
	for _, j := range joins {
		sql, err := p.planJoin(j, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, sql)
	}
	return out, nil
}

// planJoin renders TYPE JOIN TABLE[ AS ALIAS] ON (expr). Join tables go
// through the same access check as the main table.
func (p *Planner) planJoin(j ast.Join, mode token.AccessMode) (string, error) {
	keyword, ok := token.LookupJoin(j.Type)
	if !ok {
		return "", sqlerr.Request("unknown join type %q", j.Type)
	}
	table, err := p.resolveTable(j.TableRef, mode)
	if err != nil {
		return "", err
	}
	if j.On == nil {
		return "", sqlerr.Request("join on %s requires an on filter", table.path)
	}
	on, err := p.PlanFilter(j.On, false)
	if err != nil {
		return "", err
	}
	return keyword + " JOIN " + table.sql() + " ON (" + on + ")", nil
}
