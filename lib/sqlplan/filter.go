package sqlplan

import (
	"strings"

	"github.com/queryplan/sqlplan/lib/sql/ast"
	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
	"github.com/queryplan/sqlplan/lib/sql/token"
)

// PlanFilter compiles a WHERE (having=false) or HAVING (having=true)
// expression. A nil filter yields "" and no error.
func (p *Planner) PlanFilter(f ast.Filter, having bool) (string, error) {
	if f == nil {
		return "", nil
	}
	if ast.ExceedsDepth(f, p.opts.MaxFilterDepth) {
		return "", sqlerr.TooDeep(p.opts.MaxFilterDepth)
	}
	return p.compile(f, having)
}

func (p *Planner) compile(f ast.Filter, having bool) (string, error) {
	switch n := f.(type) {
	case *ast.UnaryFilter:
		if err := checkCategory(n.Op, token.UNARY); err != nil {
			return "", err
		}
		operand, err := p.operand(n.Operand, having)
		if err != nil {
			return "", err
		}
		return operand + " " + n.Op.SQL, nil

	case *ast.CompareFilter:
		if err := checkCategory(n.Op, token.COMPARE); err != nil {
			return "", err
		}
		left, err := p.operand(n.Left, having)
		if err != nil {
			return "", err
		}
		right, err := p.operand(n.Right, having)
		if err != nil {
			return "", err
		}
		return left + " " + n.Op.SQL + " " + right, nil

	case *ast.InFilter:
		if err := checkCategory(n.Op, token.IN); err != nil {
			return "", err
		}
		return p.compileIn(n, having)

	case *ast.NotFilter:
		if n.Filter == nil {
			return "", sqlerr.Request("not filter requires a nested filter")
		}
		inner, err := p.compile(n.Filter, having)
		if err != nil {
			return "", err
		}
		return "NOT " + inner, nil

	case *ast.BoolFilter:
		if err := checkCategory(n.Op, token.BOOLEAN); err != nil {
			return "", err
		}
		if len(n.Filters) == 0 {
			return "", sqlerr.Request("%s filter requires at least 1 item", n.Op.Key)
		}
		parts := make([]string, 0, len(n.Filters))
		for _, child := range n.Filters {
			if child == nil {
				return "", sqlerr.Request("%s filter items must be filters", n.Op.Key)
			}
			sql, err := p.compile(child, having)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		return "(" + strings.Join(parts, " "+n.Op.SQL+" ") + ")", nil

	default:
		return "", sqlerr.Request("unexpected filter %T", f)
	}
}

func (p *Planner) compileIn(n *ast.InFilter, having bool) (string, error) {
	if len(n.Values) == 0 {
		return "", sqlerr.Request("%s filter requires at least 1 value", n.Op.Key)
	}
	operand, err := p.operand(n.Operand, having)
	if err != nil {
		return "", err
	}
	values := make([]string, 0, len(n.Values))
	for _, v := range n.Values {
		sql, err := constant(n.Op.Key, v)
		if err != nil {
			return "", err
		}
		values = append(values, sql)
	}
	return operand + " " + n.Op.SQL + " (" + strings.Join(values, ", ") + ")", nil
}

func checkCategory(op token.Operator, want token.Category) error {
	if op.Category != want {
		return sqlerr.Request("unexpected filter property %q", op.Key)
	}
	return nil
}
