package ast

import "github.com/queryplan/sqlplan/lib/sql/token"

// Node represents any element of a filter tree that can accept a Visitor.
type Node interface {
	Accept(Visitor)
}

// Filter is the closed set of filter variants: UnaryFilter, CompareFilter,
// InFilter, NotFilter and BoolFilter.
type Filter interface {
	Node
	filterNode()
}

// Identifier names a database, schema, table or column.
type Identifier struct {
	Name   string
	Quoted bool
	From   string
	Alias  string
}

// Ident is shorthand for a bare identifier.
func Ident(name string) Identifier {
	return Identifier{Name: name}
}

// IsZero reports whether the identifier was omitted.
func (i Identifier) IsZero() bool {
	return i.Name == "" && !i.Quoted && i.From == "" && i.Alias == ""
}

// Column is a SELECT list entry: a plain identifier, an aggregation over one,
// or a function call when Args is non-nil.
type Column struct {
	Identifier

	Agg token.Aggregation
	// By is the ordering column of max_by/min_by.
	By *Identifier

	// listagg options
	Delim    *string
	Order    *Identifier
	Desc     bool
	Distinct bool

	Args []Value
}

// IsAggregate reports whether the column carries an aggregation tag.
func (c Column) IsAggregate() bool {
	return c.Agg != ""
}

// IsFunc reports whether the column is a function call.
func (c Column) IsFunc() bool {
	return c.Args != nil
}

// ValueKind enumerates the runtime shapes of a filter operand.
type ValueKind int

const (
	// ValueInvalid holds anything that is not a string, number, boolean or
	// column object (null, arrays, ...). Raw keeps the source text.
	ValueInvalid ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueColumn
)

// Value is a filter operand, an IN list constant or a function argument.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	// Exact is the decimal text of an integral number that fits in an int64.
	// Num alone would round integers above 2^53.
	Exact  string
	Bool   bool
	Column *Column
	Raw    string
}

func String(s string) Value {
	return Value{Kind: ValueString, Str: s}
}

func Number(n float64) Value {
	return Value{Kind: ValueNumber, Num: n}
}

func Bool(b bool) Value {
	return Value{Kind: ValueBool, Bool: b}
}

func ColumnValue(c Column) Value {
	return Value{Kind: ValueColumn, Column: &c}
}

// UnaryFilter is isnull/notnull.
type UnaryFilter struct {
	Op      token.Operator
	Operand Value
}

func (*UnaryFilter) filterNode() {}

// CompareFilter is a binary comparison such as eq or ilike.
type CompareFilter struct {
	Op          token.Operator
	Left, Right Value
}

func (*CompareFilter) filterNode() {}

// InFilter is in/nin/likeany/notlikeany over a list of constants.
type InFilter struct {
	Op      token.Operator
	Operand Value
	Values  []Value
}

func (*InFilter) filterNode() {}

// NotFilter negates a nested filter.
type NotFilter struct {
	Filter Filter
}

func (*NotFilter) filterNode() {}

// BoolFilter joins nested filters with AND or OR.
type BoolFilter struct {
	Op      token.Operator
	Filters []Filter
}

func (*BoolFilter) filterNode() {}

// TableRef locates a table, optionally qualified by database and schema.
type TableRef struct {
	Table  Identifier
	Alias  string
	DB     Identifier
	Schema Identifier
}

// Join attaches another table to the query.
type Join struct {
	TableRef
	Type token.JoinType
	On   Filter
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	Identifier
	Desc bool
}

// Query is the declarative description compiled into SQL clauses.
type Query struct {
	TableRef
	Columns  []Column
	Joins    []Join
	Filter   Filter
	Having   Filter
	Order    []OrderItem
	Limit    *int64
	Offset   *int64
	Distinct bool
	AsUser   bool
}

// Mode returns the access mode the query runs under.
func (q *Query) Mode() token.AccessMode {
	if q.AsUser {
		return token.CALLER
	}
	return token.SERVICE
}
