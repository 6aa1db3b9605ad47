package ast

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
	"github.com/queryplan/sqlplan/lib/sql/token"
)

// DefaultMaxDepth bounds not/and/or nesting when the caller sets no limit.
const DefaultMaxDepth = 64

// DecodeQuery parses a request body into a Query. Malformed payloads, including
// filters with zero or several keys, unknown operators and wrong tuple arity,
// are reported as *sqlerr.RequestError.
func DecodeQuery(data []byte) (*Query, error) {
	return DecodeQueryDepth(data, DefaultMaxDepth)
}

// DecodeQueryDepth is DecodeQuery with filters limited to maxDepth levels. The
// limit is enforced while decoding, so deeper trees are never parsed in full.
func DecodeQueryDepth(data []byte, maxDepth int) (*Query, error) {
	var raw queryPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, asRequestError(err)
	}
	return raw.query(maxDepth)
}

func asRequestError(err error) error {
	var re *sqlerr.RequestError
	if errors.As(err, &re) {
		return re
	}
	return &sqlerr.RequestError{
		Code:    400,
		Message: "invalid query payload: " + err.Error(),
		Err:     err,
	}
}

func isNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}

func (i *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &i.Name)
	case '{':
		var raw struct {
			Name   string `json:"name"`
			Quoted bool   `json:"quoted"`
			From   string `json:"from"`
			Alias  string `json:"alias"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return sqlerr.Request("invalid identifier %s: %s", data, err)
		}
		*i = Identifier(raw)
		return nil
	default:
		return sqlerr.Request("identifier must be a string or an object, got %s", data)
	}
}

func (c *Column) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &c.Name)
	case '{':
	default:
		return sqlerr.Request("column must be a string or an object, got %s", data)
	}

	var raw struct {
		Name     string            `json:"name"`
		Quoted   bool              `json:"quoted"`
		From     string            `json:"from"`
		Alias    string            `json:"alias"`
		Agg      token.Aggregation `json:"agg"`
		By       *Identifier       `json:"by"`
		Delim    *string           `json:"delim"`
		Order    *Identifier       `json:"order"`
		Desc     bool              `json:"desc"`
		Distinct bool              `json:"distinct"`
		Args     json.RawMessage   `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return asRequestError(err)
	}
	*c = Column{
		Identifier: Identifier{Name: raw.Name, Quoted: raw.Quoted, From: raw.From, Alias: raw.Alias},
		Agg:        raw.Agg,
		By:         raw.By,
		Delim:      raw.Delim,
		Order:      raw.Order,
		Desc:       raw.Desc,
		Distinct:   raw.Distinct,
	}
	if args := bytes.TrimSpace(raw.Args); !isNull(args) {
		if args[0] != '[' {
			return sqlerr.Request("column %q args must be an array", raw.Name)
		}
		values := make([]Value, 0)
		if err := json.Unmarshal(args, &values); err != nil {
			return asRequestError(err)
		}
		c.Args = values
	}
	return nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = Value{Kind: ValueInvalid}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return asRequestError(err)
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return asRequestError(err)
		}
		*v = Bool(b)
	case '{':
		var c Column
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*v = ColumnValue(c)
	case 'n', '[':
		*v = Value{Kind: ValueInvalid, Raw: string(data)}
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return asRequestError(err)
		}
		n, err := num.Float64()
		if err != nil {
			return sqlerr.Request("invalid number %s", data)
		}
		*v = Number(n)
		if i, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
			v.Exact = strconv.FormatInt(i, 10)
		}
	}
	return nil
}

func (o *OrderItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &o.Name)
	}
	if data[0] != '{' {
		return sqlerr.Request("order item must be a string or an object, got %s", data)
	}
	var raw struct {
		Name   string `json:"name"`
		Quoted bool   `json:"quoted"`
		From   string `json:"from"`
		Desc   bool   `json:"desc"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return asRequestError(err)
	}
	*o = OrderItem{
		Identifier: Identifier{Name: raw.Name, Quoted: raw.Quoted, From: raw.From},
		Desc:       raw.Desc,
	}
	return nil
}

type joinPayload struct {
	Table      Identifier      `json:"table"`
	TableAlias string          `json:"tableAlias"`
	DB         Identifier      `json:"db"`
	Schema     Identifier      `json:"schema"`
	Type       token.JoinType  `json:"type"`
	On         json.RawMessage `json:"on"`
}

func (p joinPayload) join(maxDepth int) (Join, error) {
	on, err := DecodeFilterDepth(p.On, maxDepth)
	if err != nil {
		return Join{}, err
	}
	return Join{
		TableRef: TableRef{Table: p.Table, Alias: p.TableAlias, DB: p.DB, Schema: p.Schema},
		Type:     p.Type,
		On:       on,
	}, nil
}

type queryPayload struct {
	Table      Identifier      `json:"table"`
	TableAlias string          `json:"tableAlias"`
	DB         Identifier      `json:"db"`
	Schema     Identifier      `json:"schema"`
	Columns    []Column        `json:"columns"`
	Joins      []joinPayload   `json:"joins"`
	Filter     json.RawMessage `json:"filter"`
	Having     json.RawMessage `json:"having"`
	Order      []OrderItem     `json:"order"`
	Limit      any             `json:"limit"`
	Offset     any             `json:"offset"`
	Distinct   bool            `json:"distinct"`
	AsUser     bool            `json:"asUser"`
}

func (p queryPayload) query(maxDepth int) (*Query, error) {
	filter, err := DecodeFilterDepth(p.Filter, maxDepth)
	if err != nil {
		return nil, err
	}
	having, err := DecodeFilterDepth(p.Having, maxDepth)
	if err != nil {
		return nil, err
	}
	var joins []Join
	for _, jp := range p.Joins {
		j, err := jp.join(maxDepth)
		if err != nil {
			return nil, err
		}
		joins = append(joins, j)
	}
	limit, err := decodeCount("limit", p.Limit)
	if err != nil {
		return nil, err
	}
	offset, err := decodeCount("offset", p.Offset)
	if err != nil {
		return nil, err
	}
	return &Query{
		TableRef: TableRef{Table: p.Table, Alias: p.TableAlias, DB: p.DB, Schema: p.Schema},
		Columns:  p.Columns,
		Joins:    joins,
		Filter:   filter,
		Having:   having,
		Order:    p.Order,
		Limit:    limit,
		Offset:   offset,
		Distinct: p.Distinct,
		AsUser:   p.AsUser,
	}, nil
}

// decodeCount accepts a JSON integer or a base-10 integer string, since some
// transports serialize every scalar as a string.
func decodeCount(name string, v any) (*int64, error) {
	var n int64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if x != math.Trunc(x) {
			return nil, sqlerr.Request("%s must be an integer, got %v", name, x)
		}
		if x < 0 {
			return nil, sqlerr.Request("%s must not be negative", name)
		}
		if x >= 1<<63 {
			return nil, sqlerr.Request("%s %v is out of range", name, x)
		}
		n = int64(x)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return nil, sqlerr.Request("%s %q is out of range", name, x)
		}
		if err != nil {
			return nil, sqlerr.Request("%s must be a base-10 integer, got %q", name, x)
		}
		n = parsed
	default:
		return nil, sqlerr.Request("%s must be a number", name)
	}
	if n < 0 {
		return nil, sqlerr.Request("%s must not be negative", name)
	}
	return &n, nil
}

// DecodeFilter parses one filter object with the default depth limit. An
// absent or null filter yields a nil Filter and no error.
func DecodeFilter(data []byte) (Filter, error) {
	return DecodeFilterDepth(data, DefaultMaxDepth)
}

// DecodeFilterDepth parses one filter object, failing with a RequestError
// wrapping sqlerr.ErrTooDeep as soon as nesting passes maxDepth. A single
// comparison has depth 1.
func DecodeFilterDepth(data []byte, maxDepth int) (Filter, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return decodeFilter(data, 1, maxDepth)
}

func decodeFilter(data []byte, depth, maxDepth int) (Filter, error) {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil, nil
	}
	if depth > maxDepth {
		return nil, sqlerr.TooDeep(maxDepth)
	}
	if data[0] != '{' {
		return nil, sqlerr.Request("filter must be an object with exactly one property, got %s", data)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, asRequestError(err)
	}
	if len(fields) != 1 {
		return nil, sqlerr.Request("filter must have exactly one property, got %d", len(fields))
	}

	var key string
	var raw json.RawMessage
	for k, v := range fields {
		key, raw = k, v
	}
	op, ok := token.LookupOperator(key)
	if !ok {
		return nil, sqlerr.Request("unexpected filter property %q", key)
	}

	switch op.Category {
	case token.UNARY:
		var operand Value
		if err := json.Unmarshal(raw, &operand); err != nil {
			return nil, asRequestError(err)
		}
		return &UnaryFilter{Op: op, Operand: operand}, nil
	case token.COMPARE:
		items, err := decodeTuple(op, raw)
		if err != nil {
			return nil, err
		}
		var left, right Value
		if err := json.Unmarshal(items[0], &left); err != nil {
			return nil, asRequestError(err)
		}
		if err := json.Unmarshal(items[1], &right); err != nil {
			return nil, asRequestError(err)
		}
		return &CompareFilter{Op: op, Left: left, Right: right}, nil
	case token.IN:
		items, err := decodeTuple(op, raw)
		if err != nil {
			return nil, err
		}
		var operand Value
		if err := json.Unmarshal(items[0], &operand); err != nil {
			return nil, asRequestError(err)
		}
		list := bytes.TrimSpace(items[1])
		if len(list) == 0 || list[0] != '[' {
			return nil, sqlerr.Request("%s filter requires an array of values as its second item", op.Key)
		}
		values := make([]Value, 0)
		if err := json.Unmarshal(list, &values); err != nil {
			return nil, asRequestError(err)
		}
		return &InFilter{Op: op, Operand: operand, Values: values}, nil
	case token.NOT:
		inner, err := decodeFilter(raw, depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		if inner == nil {
			return nil, sqlerr.Request("not filter requires a nested filter")
		}
		return &NotFilter{Filter: inner}, nil
	case token.BOOLEAN:
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			return nil, sqlerr.Request("%s filter must be given an array", op.Key)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, asRequestError(err)
		}
		filters := make([]Filter, 0, len(items))
		for _, item := range items {
			f, err := decodeFilter(item, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			if f == nil {
				return nil, sqlerr.Request("%s filter items must be filters, got null", op.Key)
			}
			filters = append(filters, f)
		}
		return &BoolFilter{Op: op, Filters: filters}, nil
	default:
		return nil, sqlerr.Request("unexpected filter property %q", key)
	}
}

func decodeTuple(op token.Operator, raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, sqlerr.Request("%s filter requires a 2-item tuple", op.Key)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, asRequestError(err)
	}
	if len(items) != 2 {
		return nil, sqlerr.Request("%s filter requires a 2-item tuple, got %d items", op.Key, len(items))
	}
	return items, nil
}
