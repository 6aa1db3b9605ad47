package token

import "strings"

// Category identifies the payload shape of a filter operator.
type Category string

const (
	UNARY   Category = "UNARY"
	COMPARE Category = "COMPARE"
	IN      Category = "IN"
	NOT     Category = "NOT"
	BOOLEAN Category = "BOOLEAN"
)

// Operator describes one spelling of a filter key.
type Operator struct {
	Key      string
	Category Category
	SQL      string
}

var operators = map[string]Operator{
	"isnull":  {Key: "isnull", Category: UNARY, SQL: "IS NULL"},
	"notnull": {Key: "notnull", Category: UNARY, SQL: "IS NOT NULL"},

	"eq":       {Key: "eq", Category: COMPARE, SQL: "="},
	"=":        {Key: "=", Category: COMPARE, SQL: "="},
	"ne":       {Key: "ne", Category: COMPARE, SQL: "!="},
	"<>":       {Key: "<>", Category: COMPARE, SQL: "!="},
	"!=":       {Key: "!=", Category: COMPARE, SQL: "!="},
	"gt":       {Key: "gt", Category: COMPARE, SQL: ">"},
	">":        {Key: ">", Category: COMPARE, SQL: ">"},
	"gte":      {Key: "gte", Category: COMPARE, SQL: ">="},
	">=":       {Key: ">=", Category: COMPARE, SQL: ">="},
	"lt":       {Key: "lt", Category: COMPARE, SQL: "<"},
	"<":        {Key: "<", Category: COMPARE, SQL: "<"},
	"lte":      {Key: "lte", Category: COMPARE, SQL: "<="},
	"<=":       {Key: "<=", Category: COMPARE, SQL: "<="},
	"like":     {Key: "like", Category: COMPARE, SQL: "LIKE"},
	"notlike":  {Key: "notlike", Category: COMPARE, SQL: "NOT LIKE"},
	"ilike":    {Key: "ilike", Category: COMPARE, SQL: "ILIKE"},
	"notilike": {Key: "notilike", Category: COMPARE, SQL: "NOT ILIKE"},

	"in":         {Key: "in", Category: IN, SQL: "IN"},
	"nin":        {Key: "nin", Category: IN, SQL: "NOT IN"},
	"likeany":    {Key: "likeany", Category: IN, SQL: "LIKE ANY"},
	"notlikeany": {Key: "notlikeany", Category: IN, SQL: "NOT LIKE ANY"},

	"not": {Key: "not", Category: NOT, SQL: "NOT"},

	"and": {Key: "and", Category: BOOLEAN, SQL: "AND"},
	"or":  {Key: "or", Category: BOOLEAN, SQL: "OR"},
}

// LookupOperator returns the operator registered under a filter key.
// Keys are matched exactly; "EQ" is not "eq".
func LookupOperator(key string) (Operator, bool) {
	op, ok := operators[key]
	return op, ok
}

// Aggregation is a column aggregation tag as it appears in requests.
type Aggregation string

const (
	SUM           Aggregation = "sum"
	MIN           Aggregation = "min"
	MAX           Aggregation = "max"
	AVG           Aggregation = "avg"
	MEDIAN        Aggregation = "median"
	MODE          Aggregation = "mode"
	COUNT         Aggregation = "count"
	COUNTDISTINCT Aggregation = "countdistinct"
	ANY_VALUE     Aggregation = "any_value"
	LISTAGG       Aggregation = "listagg"
	MAX_BY        Aggregation = "max_by"
	MIN_BY        Aggregation = "min_by"
)

var aggregations = map[Aggregation]struct{}{
	SUM:           {},
	MIN:           {},
	MAX:           {},
	AVG:           {},
	MEDIAN:        {},
	MODE:          {},
	COUNT:         {},
	COUNTDISTINCT: {},
	ANY_VALUE:     {},
	LISTAGG:       {},
	MAX_BY:        {},
	MIN_BY:        {},
}

// IsAggregation reports whether tag names a supported aggregation.
func IsAggregation(tag Aggregation) bool {
	_, ok := aggregations[tag]
	return ok
}

// SQL returns the function name emitted for the aggregation.
func (a Aggregation) SQL() string {
	return strings.ToUpper(string(a))
}

// JoinType is a join kind as it appears in requests.
type JoinType string

const (
	INNER     JoinType = "inner"
	LEFT      JoinType = "left"
	RIGHT     JoinType = "right"
	FULLOUTER JoinType = "fullouter"
)

var joinKeywords = map[JoinType]string{
	INNER:     "INNER",
	LEFT:      "LEFT",
	RIGHT:     "RIGHT",
	FULLOUTER: "FULL OUTER",
}

// LookupJoin returns the SQL keyword for a join type.
func LookupJoin(t JoinType) (string, bool) {
	kw, ok := joinKeywords[t]
	return kw, ok
}

// AccessMode selects which allow list guards a query.
type AccessMode string

const (
	SERVICE AccessMode = "service"
	CALLER  AccessMode = "caller"
)
