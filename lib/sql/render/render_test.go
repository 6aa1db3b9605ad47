package render

import (
	"testing"

	"github.com/queryplan/sqlplan/lib/sql/ast"
	"github.com/queryplan/sqlplan/lib/sqlplan"
)

func compile(t *testing.T, body string) *sqlplan.Plan {
	t.Helper()
	q, err := ast.DecodeQuery([]byte(body))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	plan, err := sqlplan.New(sqlplan.Options{}).Plan(q)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	return plan
}

func TestRenderFullStatement(t *testing.T) {
	plan := compile(t, `{
		"table": "test1",
		"tableAlias": "t1",
		"distinct": true,
		"columns": ["c1", {"name": "c2", "agg": "sum", "alias": "total"}],
		"joins": [{"table": "other", "type": "fullouter", "on": {"eq": [{"name": "id", "from": "t1"}, {"name": "id", "from": "other"}]}}],
		"filter": {"and": [{"in": ["c1", ["a?", "b"]]}, {"gt": ["c3", "5"]}]},
		"having": {"gt": [{"name": "c2", "agg": "sum"}, 10]},
		"order": [{"name": "total", "desc": true}],
		"limit": 20,
		"offset": 40
	}`)

	out, args, err := Render(plan)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}

	expected := "SELECT DISTINCT C1, SUM(C2) AS TOTAL FROM TEST1 AS T1 " +
		"FULL OUTER JOIN OTHER ON (T1.ID = OTHER.ID) " +
		"WHERE (C1 IN ('a?', 'b') AND C3 > 5) " +
		"GROUP BY 1 HAVING SUM(C2) > 10 " +
		"ORDER BY TOTAL DESC NULLS LAST LIMIT 20 OFFSET 40"
	if out != expected {
		t.Fatalf("unexpected render output:\nexpected: %s\nactual:   %s", expected, out)
	}
}

func TestRenderMinimal(t *testing.T) {
	plan := compile(t, `{"table": "t", "columns": ["*"]}`)
	out, _, err := Render(plan)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	expected := "SELECT * FROM T LIMIT 1000"
	if out != expected {
		t.Fatalf("unexpected render output:\nexpected: %s\nactual:   %s", expected, out)
	}
}

func TestRenderRejectsEmptyPlan(t *testing.T) {
	if _, _, err := Render(nil); err == nil {
		t.Fatalf("expected error for nil plan")
	}
	if _, _, err := Render(&sqlplan.Plan{}); err == nil {
		t.Fatalf("expected error for empty plan")
	}
}
