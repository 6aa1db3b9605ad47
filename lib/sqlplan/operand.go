package sqlplan

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/queryplan/sqlplan/lib/sql/ast"
	"github.com/queryplan/sqlplan/lib/sql/ident"
	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
)

// operand renders one side of a unary, compare or in filter. Aggregated
// columns are accepted only in HAVING.
func (p *Planner) operand(v ast.Value, having bool) (string, error) {
	switch v.Kind {
	case ast.ValueString:
		return stringOperand(v.Str)
	case ast.ValueNumber:
		return numberText(v), nil
	case ast.ValueBool:
		return formatBool(v.Bool), nil
	case ast.ValueColumn:
		if v.Column == nil {
			return "", sqlerr.Request("unknown compare value null")
		}
		sql, isAgg, err := p.columnExpr(*v.Column)
		if err != nil {
			return "", err
		}
		if isAgg && !having {
			return "", sqlerr.Request("filter column cannot be an aggregation")
		}
		return sql, nil
	default:
		return "", sqlerr.Request("unknown compare value %s", rawOf(v))
	}
}

// stringOperand treats s as a number when it parses as a finite one, as a
// literal when it is single-quoted, and as a column name otherwise.
func stringOperand(s string) (string, error) {
	if n, ok := numericString(s); ok {
		return n, nil
	}
	if lit, ok := ident.CleanLiteral(s); ok {
		return lit, nil
	}
	return ident.Resolve(ast.Ident(s), false)
}

// numericString renders s when it is a decimal number. Integers that fit in
// an int64 keep every digit. Hex, inf and nan are not numbers here.
func numericString(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if t == "" || hasHexPrefix(t) {
		return "", false
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	n, err := cast.ToFloat64E(t)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return "", false
	}
	return formatNumber(n), true
}

func hasHexPrefix(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func numberText(v ast.Value) string {
	if v.Exact != "" {
		return v.Exact
	}
	return formatNumber(v.Num)
}

func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// constant renders one element of an in list.
func constant(op string, v ast.Value) (string, error) {
	switch v.Kind {
	case ast.ValueString:
		return ident.Quote(v.Str), nil
	case ast.ValueNumber:
		return numberText(v), nil
	case ast.ValueBool:
		return formatBool(v.Bool), nil
	default:
		return "", sqlerr.Request("%s filter value %s has an invalid datatype: expected string, number or boolean", op, rawOf(v))
	}
}

func rawOf(v ast.Value) string {
	switch {
	case v.Raw != "":
		return v.Raw
	case v.Kind == ast.ValueColumn && v.Column != nil:
		return "column " + strconv.Quote(v.Column.Name)
	default:
		return "null"
	}
}
