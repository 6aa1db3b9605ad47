// Package render assembles the clauses of a compiled plan into one statement.
package render

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/queryplan/sqlplan/lib/sqlplan"
)

// Render joins the clause bodies of plan in statement order. The clause
// bodies carry their values inline, so args is empty for compiled plans.
func Render(plan *sqlplan.Plan) (string, []any, error) {
	if plan == nil {
		return "", nil, fmt.Errorf("render: nil plan")
	}
	parts := plan.Parts
	if len(parts.Columns) == 0 || parts.Table == "" {
		return "", nil, fmt.Errorf("render: plan has no columns or table")
	}

	query := sq.StatementBuilder.
		PlaceholderFormat(sq.Question).
		Select(parts.Columns...).
		From(parts.Table)
	if plan.Distinct {
		query = query.Distinct()
	}
	for _, join := range parts.Joins {
		query = query.JoinClause(join)
	}
	if parts.Where != "" {
		query = query.Where(parts.Where)
	}
	if len(parts.GroupBy) > 0 {
		query = query.GroupBy(parts.GroupBy...)
	}
	if parts.Having != "" {
		query = query.Having(parts.Having)
	}
	if len(parts.OrderBy) > 0 {
		query = query.OrderBy(parts.OrderBy...)
	}
	if parts.Limit >= 0 {
		query = query.Limit(uint64(parts.Limit))
	}
	if parts.Offset != nil {
		query = query.Offset(uint64(*parts.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("render: %w", err)
	}
	return sql, args, nil
}
