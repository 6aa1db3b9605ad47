package sqlplan

import (
	"strings"

	"github.com/queryplan/sqlplan/lib/sql/ast"
	"github.com/queryplan/sqlplan/lib/sql/ident"
	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
	"github.com/queryplan/sqlplan/lib/sql/token"
)

// PlanColumns compiles the SELECT list. When any column aggregates, the
// result also describes which columns the statement must group by.
func (p *Planner) PlanColumns(cols []ast.Column) (*ColumnPlan, error) {
	if len(cols) == 0 {
		return nil, sqlerr.Request("columns must contain at least 1 column")
	}
	out := &ColumnPlan{
		SelectParts: make([]string, 0, len(cols)),
		Aliases:     make([]string, 0, len(cols)),
	}
	bools := make([]bool, 0, len(cols))
	var groupParts []string
	anyAgg := false

	for _, c := range cols {
		expr, isAgg, err := p.columnExpr(c)
		if err != nil {
			return nil, err
		}
		name := expr
		if c.Alias != "" {
			alias, err := ident.Alias(c.Alias)
			if err != nil {
				return nil, err
			}
			expr += " AS " + alias
			name = alias
		}
		if isStar(c) {
			out.HasStar = true
		}
		out.SelectParts = append(out.SelectParts, expr)
		out.Aliases = append(out.Aliases, name)
		bools = append(bools, !isAgg)
		if isAgg {
			anyAgg = true
		} else {
			groupParts = append(groupParts, name)
		}
	}

	if !anyAgg {
		return out, nil
	}
	if out.HasStar {
		return nil, sqlerr.Request("column %q cannot be combined with aggregate columns", ident.Star)
	}
	out.GroupParts = groupParts
	if out.GroupParts == nil {
		out.GroupParts = []string{}
	}
	out.GroupBools = bools
	return out, nil
}

func isStar(c ast.Column) bool {
	return !c.Quoted && c.Name == ident.Star
}

// columnExpr renders c without its alias and reports whether it aggregates.
func (p *Planner) columnExpr(c ast.Column) (string, bool, error) {
	if c.IsAggregate() {
		if c.IsFunc() {
			return "", false, sqlerr.Request("column %q cannot be both an aggregation and a function call", c.Name)
		}
		sql, err := aggregateExpr(c)
		return sql, true, err
	}
	if c.IsFunc() {
		return p.funcExpr(c)
	}
	if c.By != nil || c.Order != nil || c.Delim != nil {
		return "", false, sqlerr.Request("column %q sets aggregation options without agg", c.Name)
	}
	sql, err := ident.Resolve(c.Identifier, false)
	return sql, false, err
}

func aggregateExpr(c ast.Column) (string, error) {
	if !token.IsAggregation(c.Agg) {
		return "", sqlerr.Request("unknown aggregation %q", c.Agg)
	}
	if isStar(c) {
		return "", sqlerr.Request("column %q cannot be aggregated", ident.Star)
	}
	x, err := ident.Resolve(c.Identifier, false)
	if err != nil {
		return "", err
	}

	switch c.Agg {
	case token.COUNTDISTINCT:
		return "COUNT(DISTINCT " + x + ")", nil
	case token.MAX_BY, token.MIN_BY:
		if c.By == nil {
			return "", sqlerr.Request("%s on %q requires a by column", c.Agg, c.Name)
		}
		by, err := ident.Resolve(*c.By, false)
		if err != nil {
			return "", err
		}
		return c.Agg.SQL() + "(" + x + ", " + by + ")", nil
	case token.LISTAGG:
		return listaggExpr(c, x)
	default:
		return c.Agg.SQL() + "(" + x + ")", nil
	}
}

func listaggExpr(c ast.Column, x string) (string, error) {
	var b strings.Builder
	b.WriteString("LISTAGG(")
	if c.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(x)
	if c.Delim != nil {
		b.WriteString(", ")
		b.WriteString(ident.Quote(*c.Delim))
	}
	b.WriteString(")")
	if c.Order != nil {
		order, err := ident.Resolve(*c.Order, false)
		if err != nil {
			return "", err
		}
		b.WriteString(" WITHIN GROUP (ORDER BY ")
		b.WriteString(order)
		if c.Desc {
			b.WriteString(" DESC")
		}
		b.WriteString(")")
	}
	return b.String(), nil
}

// funcExpr renders NAME(arg, ...). A call aggregates when any argument does.
func (p *Planner) funcExpr(c ast.Column) (string, bool, error) {
	if c.Quoted || c.Name == ident.Star {
		return "", false, sqlerr.Request("invalid function name %q", c.Name)
	}
	name, err := ident.Resolve(ast.Ident(c.Name), false)
	if err != nil {
		return "", false, err
	}
	args := make([]string, 0, len(c.Args))
	isAgg := false
	for _, arg := range c.Args {
		sql, agg, err := p.funcArg(arg)
		if err != nil {
			return "", false, err
		}
		args = append(args, sql)
		isAgg = isAgg || agg
	}
	return name + "(" + strings.Join(args, ", ") + ")", isAgg, nil
}

func (p *Planner) funcArg(v ast.Value) (string, bool, error) {
	switch v.Kind {
	case ast.ValueColumn:
		if v.Column.Alias != "" {
			return "", false, sqlerr.Request("function argument %q cannot have an alias", v.Column.Name)
		}
		return p.columnExpr(*v.Column)
	case ast.ValueString:
		sql, err := stringOperand(v.Str)
		return sql, false, err
	case ast.ValueNumber:
		return numberText(v), false, nil
	case ast.ValueBool:
		return formatBool(v.Bool), false, nil
	default:
		return "", false, sqlerr.Request("invalid function argument %s", rawOf(v))
	}
}
