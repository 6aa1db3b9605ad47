package sqlplan

import "strconv"

// Plan holds each compiled clause separately. Empty strings mark absent
// clauses; Select, From and Limit are always set.
type Plan struct {
	Select  string   `json:"select"`
	From    string   `json:"from"`
	Joins   []string `json:"joins,omitempty"`
	Filter  string   `json:"filter,omitempty"`
	Having  string   `json:"having,omitempty"`
	GroupBy string   `json:"groupBy,omitempty"`
	Order   string   `json:"order,omitempty"`
	Limit   string   `json:"limit"`
	Offset  string   `json:"offset,omitempty"`

	// Distinct asks the statement assembler for SELECT DISTINCT.
	Distinct bool `json:"distinct,omitempty"`

	Parts Parts `json:"-"`
}

// Parts are the clause bodies without their keywords, for statement builders.
type Parts struct {
	Columns []string
	Table   string
	Joins   []string
	Where   string
	Having  string
	GroupBy []string
	OrderBy []string
	Limit   int64
	Offset  *int64
}

// ColumnPlan is the compiled SELECT list.
type ColumnPlan struct {
	SelectParts []string
	// Aliases holds each column's output name: its alias, or its SQL otherwise.
	Aliases []string
	// GroupParts lists the output names of non-aggregate columns. It is nil
	// when no column aggregates.
	GroupParts []string
	// GroupBools is aligned with the columns; true marks a grouping column.
	// It is nil when no column aggregates.
	GroupBools []bool
	HasStar    bool
}

// GroupPositions returns the 1-based positions of the grouping columns.
func (c *ColumnPlan) GroupPositions() []string {
	if c == nil || c.GroupBools == nil {
		return nil
	}
	var out []string
	for i, group := range c.GroupBools {
		if group {
			out = append(out, strconv.Itoa(i+1))
		}
	}
	return out
}
