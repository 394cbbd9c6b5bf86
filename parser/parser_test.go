package parser

import (
	"testing"

	"github.com/mk3008/rawsql-go/ast"
)

func TestParseSelect(t *testing.T) {
	tests := []struct {
		input    string
		wantCols int
	}{
		{"SELECT * FROM users", 1},
		{"SELECT id, name FROM users", 2},
		{"SELECT id, name, email FROM users WHERE id = 1", 3},
		{"SELECT a.id, b.name FROM a JOIN b ON a.id = b.a_id", 2},
		{"SELECT COUNT(*) FROM users", 1},
		{"SELECT DISTINCT name FROM users", 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p := New(tt.input)
			q, err := p.Parse()
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			sel, ok := q.(*ast.SimpleSelect)
			if !ok {
				t.Fatalf("expected *ast.SimpleSelect, got %T", q)
			}
			if len(sel.Columns) != tt.wantCols {
				t.Errorf("expected %d columns, got %d", tt.wantCols, len(sel.Columns))
			}
		})
	}
}

func TestParseWithClausePreservesDeclarationOrder(t *testing.T) {
	input := `WITH a AS (SELECT 1), b AS (SELECT 2) SELECT * FROM a JOIN b ON true`
	p := New(input)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	sel, ok := q.(*ast.SimpleSelect)
	if !ok {
		t.Fatalf("expected *ast.SimpleSelect, got %T", q)
	}
	if sel.With == nil || len(sel.With.CTEs) != 2 {
		t.Fatalf("expected 2 CTEs, got %v", sel.With)
	}
	if sel.With.CTEs[0].Name != "a" || sel.With.CTEs[1].Name != "b" {
		t.Errorf("expected CTE order [a, b], got [%s, %s]", sel.With.CTEs[0].Name, sel.With.CTEs[1].Name)
	}
}

func TestParseRecursiveWith(t *testing.T) {
	input := `WITH RECURSIVE counter(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM counter WHERE n < 10) SELECT * FROM counter`
	p := New(input)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	sel, ok := q.(*ast.SimpleSelect)
	if !ok {
		t.Fatalf("expected *ast.SimpleSelect, got %T", q)
	}
	if !sel.With.Recursive {
		t.Errorf("expected Recursive=true")
	}
	cte := sel.With.CTEs[0]
	if cte.Name != "counter" || len(cte.Columns) != 1 || cte.Columns[0] != "n" {
		t.Errorf("unexpected CTE shape: %+v", cte)
	}
	if _, ok := cte.Query.(*ast.BinarySelect); !ok {
		t.Errorf("expected CTE body to be a BinarySelect (UNION ALL), got %T", cte.Query)
	}
}

func TestParseBinarySelectIsLeftAssociative(t *testing.T) {
	input := `SELECT 1 UNION SELECT 2 EXCEPT SELECT 3`
	p := New(input)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	top, ok := q.(*ast.BinarySelect)
	if !ok {
		t.Fatalf("expected *ast.BinarySelect, got %T", q)
	}
	if top.Type != ast.SetOpExcept {
		t.Errorf("expected outermost op EXCEPT, got %v", top.Type)
	}
	left, ok := top.Left.(*ast.BinarySelect)
	if !ok {
		t.Fatalf("expected left operand to be a BinarySelect (UNION), got %T", top.Left)
	}
	if left.Type != ast.SetOpUnion {
		t.Errorf("expected inner op UNION, got %v", left.Type)
	}
}

func TestParseUnionAll(t *testing.T) {
	p := New(`SELECT id FROM a UNION ALL SELECT id FROM b`)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	bs, ok := q.(*ast.BinarySelect)
	if !ok {
		t.Fatalf("expected *ast.BinarySelect, got %T", q)
	}
	if !bs.All {
		t.Errorf("expected All=true for UNION ALL")
	}
}

func TestParseDeleteUsing(t *testing.T) {
	tests := []struct {
		input    string
		hasUsing bool
		hasWhere bool
	}{
		{"DELETE FROM users WHERE id = 1", false, true},
		{"DELETE FROM users", false, false},
		{"DELETE FROM orders USING (SELECT id FROM cancelled) c WHERE orders.id = c.id", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p := New(tt.input)
			q, err := p.Parse()
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			del, ok := q.(*ast.DeleteQuery)
			if !ok {
				t.Fatalf("expected *ast.DeleteQuery, got %T", q)
			}
			if (del.Using != nil) != tt.hasUsing {
				t.Errorf("expected hasUsing=%v, got %v", tt.hasUsing, del.Using != nil)
			}
			if (del.Where != nil) != tt.hasWhere {
				t.Errorf("expected hasWhere=%v, got %v", tt.hasWhere, del.Where != nil)
			}
		})
	}
}

func TestParseMerge(t *testing.T) {
	input := `
		MERGE INTO target t
		USING (SELECT id, amount FROM staged) s
		ON t.id = s.id
		WHEN MATCHED AND s.amount = 0 THEN DELETE
		WHEN MATCHED THEN UPDATE SET amount = s.amount
		WHEN NOT MATCHED THEN INSERT (id, amount) VALUES (s.id, s.amount)
	`
	p := New(input)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	mq, ok := q.(*ast.MergeQuery)
	if !ok {
		t.Fatalf("expected *ast.MergeQuery, got %T", q)
	}
	if len(mq.Whens) != 3 {
		t.Fatalf("expected 3 WHEN clauses, got %d", len(mq.Whens))
	}
	if mq.Whens[0].Match != ast.MergeMatched || mq.Whens[0].Action.Kind != ast.MergeActionDelete {
		t.Errorf("expected first WHEN to be MATCHED...DELETE, got %+v", mq.Whens[0])
	}
	if mq.Whens[0].Condition == nil {
		t.Errorf("expected first WHEN to carry its AND condition")
	}
	if mq.Whens[1].Action.Kind != ast.MergeActionUpdate || len(mq.Whens[1].Action.Set) != 1 {
		t.Errorf("expected second WHEN to be an UPDATE with one SET, got %+v", mq.Whens[1].Action)
	}
	if mq.Whens[2].Match != ast.MergeNotMatched || mq.Whens[2].Action.Kind != ast.MergeActionInsert {
		t.Errorf("expected third WHEN to be NOT MATCHED...INSERT, got %+v", mq.Whens[2])
	}
	if len(mq.Whens[2].Action.Columns) != 2 || len(mq.Whens[2].Action.Values) != 2 {
		t.Errorf("expected INSERT action with 2 columns and 2 values, got %+v", mq.Whens[2].Action)
	}
}

func TestParseValuesQuery(t *testing.T) {
	p := New(`VALUES (1, 'a'), (2, 'b')`)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	vq, ok := q.(*ast.ValuesQuery)
	if !ok {
		t.Fatalf("expected *ast.ValuesQuery, got %T", q)
	}
	if len(vq.Rows) != 2 || len(vq.Rows[0]) != 2 {
		t.Errorf("unexpected row shape: %+v", vq.Rows)
	}
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, sel *ast.SimpleSelect)
	}{
		{
			name:  "case expression",
			input: `SELECT CASE WHEN x > 0 THEN 'pos' ELSE 'non-pos' END FROM t`,
			check: func(t *testing.T, sel *ast.SimpleSelect) {
				ae := sel.Columns[0].(*ast.AliasedExpr)
				if _, ok := ae.Expr.(*ast.CaseExpr); !ok {
					t.Errorf("expected CaseExpr, got %T", ae.Expr)
				}
			},
		},
		{
			name:  "cast expression",
			input: `SELECT CAST(x AS INTEGER) FROM t`,
			check: func(t *testing.T, sel *ast.SimpleSelect) {
				ae := sel.Columns[0].(*ast.AliasedExpr)
				ce, ok := ae.Expr.(*ast.CastExpr)
				if !ok {
					t.Fatalf("expected CastExpr, got %T", ae.Expr)
				}
				if ce.Type != "INTEGER" {
					t.Errorf("expected type INTEGER, got %q", ce.Type)
				}
			},
		},
		{
			name:  "postgres cast",
			input: `SELECT x::text FROM t`,
			check: func(t *testing.T, sel *ast.SimpleSelect) {
				ae := sel.Columns[0].(*ast.AliasedExpr)
				if _, ok := ae.Expr.(*ast.CastExpr); !ok {
					t.Errorf("expected CastExpr, got %T", ae.Expr)
				}
			},
		},
		{
			name:  "in list",
			input: `SELECT * FROM t WHERE id IN (1, 2, 3)`,
			check: func(t *testing.T, sel *ast.SimpleSelect) {
				in, ok := sel.Where.(*ast.InExpr)
				if !ok {
					t.Fatalf("expected InExpr, got %T", sel.Where)
				}
				if in.List == nil || len(in.List.Items) != 3 {
					t.Errorf("expected 3-item list, got %+v", in.List)
				}
			},
		},
		{
			name:  "not in subquery",
			input: `SELECT * FROM t WHERE id NOT IN (SELECT id FROM blocked)`,
			check: func(t *testing.T, sel *ast.SimpleSelect) {
				in, ok := sel.Where.(*ast.InExpr)
				if !ok {
					t.Fatalf("expected InExpr, got %T", sel.Where)
				}
				if !in.Not || in.Select == nil {
					t.Errorf("expected Not=true with a subquery, got %+v", in)
				}
			},
		},
		{
			name:  "between",
			input: `SELECT * FROM t WHERE n BETWEEN 1 AND 10`,
			check: func(t *testing.T, sel *ast.SimpleSelect) {
				if _, ok := sel.Where.(*ast.BetweenExpr); !ok {
					t.Errorf("expected BetweenExpr, got %T", sel.Where)
				}
			},
		},
		{
			name:  "window function",
			input: `SELECT row_number() OVER (PARTITION BY dept ORDER BY salary DESC) FROM employees`,
			check: func(t *testing.T, sel *ast.SimpleSelect) {
				ae := sel.Columns[0].(*ast.AliasedExpr)
				fn, ok := ae.Expr.(*ast.FuncExpr)
				if !ok {
					t.Fatalf("expected FuncExpr, got %T", ae.Expr)
				}
				if fn.Over == nil || len(fn.Over.PartitionBy) != 1 || len(fn.Over.OrderBy) != 1 {
					t.Errorf("unexpected window spec: %+v", fn.Over)
				}
			},
		},
		{
			name:  "is null",
			input: `SELECT * FROM t WHERE x IS NOT NULL`,
			check: func(t *testing.T, sel *ast.SimpleSelect) {
				is, ok := sel.Where.(*ast.IsExpr)
				if !ok {
					t.Fatalf("expected IsExpr, got %T", sel.Where)
				}
				if !is.Not || is.What != ast.IsNull {
					t.Errorf("expected NOT NULL, got %+v", is)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.input)
			q, err := p.Parse()
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			sel, ok := q.(*ast.SimpleSelect)
			if !ok {
				t.Fatalf("expected *ast.SimpleSelect, got %T", q)
			}
			tt.check(t, sel)
		})
	}
}

func TestParseParamForms(t *testing.T) {
	p := New(`SELECT * FROM t WHERE a = ?`)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	sel := q.(*ast.SimpleSelect)
	bin := sel.Where.(*ast.BinaryExpr)
	param, ok := bin.Right.(*ast.Param)
	if !ok {
		t.Fatalf("expected Param, got %T", bin.Right)
	}
	if param.Type != ast.ParamAnonymous {
		t.Errorf("expected ParamAnonymous, got %v", param.Type)
	}

	p2 := New(`SELECT * FROM t WHERE a = $2`)
	q2, _ := p2.Parse()
	bin2 := q2.(*ast.SimpleSelect).Where.(*ast.BinaryExpr)
	param2 := bin2.Right.(*ast.Param)
	if param2.Type != ast.ParamPositional || param2.Index != 2 {
		t.Errorf("expected positional param index 2, got %+v", param2)
	}

	p3 := New(`SELECT * FROM t WHERE a = :name`)
	q3, _ := p3.Parse()
	bin3 := q3.(*ast.SimpleSelect).Where.(*ast.BinaryExpr)
	param3 := bin3.Right.(*ast.Param)
	if param3.Type != ast.ParamNamed || param3.Name != "name" {
		t.Errorf("expected named param %q, got %+v", "name", param3)
	}
}
