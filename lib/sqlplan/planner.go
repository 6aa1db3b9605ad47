// Package sqlplan compiles a declarative ast.Query into independent SQL clause
// fragments. It performs no I/O; a Planner is immutable once built and may be
// shared by concurrent requests.
package sqlplan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/queryplan/sqlplan/lib/sql/ast"
	"github.com/queryplan/sqlplan/lib/sql/ident"
	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
	"github.com/queryplan/sqlplan/lib/sql/token"
	"github.com/queryplan/sqlplan/lib/store/accessstore"
)

const (
	// DefaultLimit is applied when a query does not set one.
	DefaultLimit int64 = 1000
	// DefaultMaxFilterDepth bounds not/and/or nesting.
	DefaultMaxFilterDepth = ast.DefaultMaxDepth
)

type Options struct {
	// Policy is consulted for every table when CheckTableAccess is set.
	Policy           *accessstore.Policy
	CheckTableAccess bool
	DefaultLimit     int64
	MaxFilterDepth   int
}

type Planner struct {
	opts Options
}

func New(opts Options) *Planner {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxFilterDepth <= 0 {
		opts.MaxFilterDepth = DefaultMaxFilterDepth
	}
	return &Planner{opts: opts}
}

func (p *Planner) Options() Options {
	return p.opts
}

// Plan compiles q. It either returns every clause or the first error found.
func (p *Planner) Plan(q *ast.Query) (*Plan, error) {
	if q == nil {
		return nil, sqlerr.Request("query is required")
	}
	mode := q.Mode()

	table, err := p.resolveTable(q.TableRef, mode)
	if err != nil {
		return nil, err
	}
	cols, err := p.PlanColumns(q.Columns)
	if err != nil {
		return nil, err
	}
	where, err := p.PlanFilter(q.Filter, false)
	if err != nil {
		return nil, err
	}
	having, err := p.PlanFilter(q.Having, true)
	if err != nil {
		return nil, err
	}
	joins, err := p.planJoins(q.Joins, mode)
	if err != nil {
		return nil, err
	}
	order, err := planOrder(q.Order)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Select:   "SELECT " + strings.Join(cols.SelectParts, ", "),
		From:     "FROM " + table.sql(),
		Joins:    joins,
		Distinct: q.Distinct,
		Parts: Parts{
			Columns: cols.SelectParts,
			Table:   table.sql(),
			Joins:   joins,
			Where:   where,
			Having:  having,
			OrderBy: order,
			Limit:   p.opts.DefaultLimit,
		},
	}
	if where != "" {
		plan.Filter = "WHERE " + where
	}
	if having != "" {
		plan.Having = "HAVING " + having
	}
	if positions := cols.GroupPositions(); len(positions) > 0 {
		plan.GroupBy = "GROUP BY " + strings.Join(positions, ", ")
		plan.Parts.GroupBy = positions
	}
	if len(order) > 0 {
		plan.Order = "ORDER BY " + strings.Join(order, ", ")
	}
	if q.Limit != nil {
		plan.Parts.Limit = *q.Limit
	}
	plan.Limit = "LIMIT " + strconv.FormatInt(plan.Parts.Limit, 10)
	if q.Offset != nil {
		off := *q.Offset
		plan.Parts.Offset = &off
		plan.Offset = "OFFSET " + strconv.FormatInt(off, 10)
	}
	return plan, nil
}

type resolvedTable struct {
	path  string
	alias string
	// aliased is set when the request named the alias explicitly.
	aliased bool
}

func (t resolvedTable) sql() string {
	if t.aliased {
		return t.path + " AS " + t.alias
	}
	return t.path
}

func (p *Planner) resolveTable(ref ast.TableRef, mode token.AccessMode) (resolvedTable, error) {
	if ref.Table.Name == "" {
		return resolvedTable{}, sqlerr.Request("table is required")
	}
	if !ref.DB.IsZero() && ref.Schema.IsZero() {
		return resolvedTable{}, sqlerr.Request("db %q requires a schema", ref.DB.Name)
	}

	name, err := ident.Resolve(ref.Table, true)
	if err != nil {
		return resolvedTable{}, err
	}
	if name == ident.Star {
		return resolvedTable{}, sqlerr.Request("table name cannot be %q", ident.Star)
	}
	tableName, _ := ident.Canonical(ref.Table)
	target := accessstore.Target{Table: tableName, As: mode}
	path := name
	if !ref.Schema.IsZero() {
		schema, err := ident.Resolve(ref.Schema, true)
		if err != nil {
			return resolvedTable{}, err
		}
		if schema == ident.Star {
			return resolvedTable{}, sqlerr.Request("schema name cannot be %q", ident.Star)
		}
		target.Schema, _ = ident.Canonical(ref.Schema)
		path = schema + "." + path
	}
	if !ref.DB.IsZero() {
		db, err := ident.Resolve(ref.DB, true)
		if err != nil {
			return resolvedTable{}, err
		}
		if db == ident.Star {
			return resolvedTable{}, sqlerr.Request("db name cannot be %q", ident.Star)
		}
		target.DB, _ = ident.Canonical(ref.DB)
		path = db + "." + path
	}

	if p.opts.CheckTableAccess {
		if err := p.opts.Policy.CanRead(target); err != nil {
			return resolvedTable{}, err
		}
	}

	t := resolvedTable{path: path, alias: name}
	if ref.Alias != "" {
		alias, err := ident.Alias(ref.Alias)
		if err != nil {
			return resolvedTable{}, err
		}
		t.alias = alias
		t.aliased = true
	}
	return t, nil
}

func planOrder(items []ast.OrderItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		name, err := ident.Resolve(item.Identifier, false)
		if err != nil {
			return nil, err
		}
		if name == ident.Star {
			return nil, sqlerr.Request("cannot order by %q", ident.Star)
		}
		dir := "ASC"
		if item.Desc {
			dir = "DESC"
		}
		out = append(out, fmt.Sprintf("%s %s NULLS LAST", name, dir))
	}
	return out, nil
}
