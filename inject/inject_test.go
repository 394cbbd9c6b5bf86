package inject

import (
	"strings"
	"testing"

	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/parser"
	"github.com/mk3008/rawsql-go/printer"
)

func mustParse(t *testing.T, sql string) ast.Query {
	t.Helper()
	p := parser.New(sql)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return q
}

func TestFindUpstreamMatchesByOutputName(t *testing.T) {
	q := mustParse(t, `WITH u AS (SELECT id, fee AS amount FROM orders) SELECT amount FROM u`)
	matches := FindUpstream(q, []string{"amount"}, FindOptions{})
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	cn, ok := matches[0].Sources["amount"].(*ast.ColName)
	if !ok || cn.Parts[len(cn.Parts)-1] != "fee" {
		t.Errorf("expected source_col fee (not alias amount), got %#v", matches[0].Sources["amount"])
	}
}

func TestFindUpstreamSkipsValuesQuery(t *testing.T) {
	q := mustParse(t, `SELECT * FROM (VALUES (1, 2)) AS v(a, amount)`)
	matches := FindUpstream(q, []string{"amount"}, FindOptions{})
	if len(matches) != 0 {
		t.Errorf("expected ValuesQuery to be skipped, got %d matches", len(matches))
	}
}

func TestFindUpstreamConsidersUnionBranchesIndependently(t *testing.T) {
	q := mustParse(t, `SELECT amount FROM a UNION ALL SELECT amount FROM b`)
	matches := FindUpstream(q, []string{"amount"}, FindOptions{})
	if len(matches) != 2 {
		t.Fatalf("expected both UNION branches to qualify independently, got %d", len(matches))
	}
}

func TestInjectMinMaxWrapsInParens(t *testing.T) {
	q := mustParse(t, `SELECT a.price FROM products a`)
	out, err := Inject(q, []Condition{
		&ColumnCondition{Column: "price", Ops: []Op{{Kind: OpMin, Value: ast.IntParam(10)}, {Kind: OpMax, Value: ast.IntParam(100)}}},
	}, Options{})
	if err != nil {
		t.Fatalf("inject error: %v", err)
	}
	text := printer.String(out)
	if !strings.Contains(text, ":price_min") || !strings.Contains(text, ":price_max") {
		t.Errorf("expected both bound parameters in output, got %q", text)
	}
	if !strings.Contains(text, "WHERE (") || !strings.HasSuffix(text, ")") {
		t.Errorf("expected the min/max conjunction wrapped in parentheses, got %q", text)
	}
}

func TestInjectMultipleColumnsAndedTogether(t *testing.T) {
	q := mustParse(t, `SELECT a.price, a.article_name FROM products a`)
	out, err := Inject(q, []Condition{
		&ColumnCondition{Column: "price", Ops: []Op{{Kind: OpMin, Value: ast.IntParam(10)}, {Kind: OpMax, Value: ast.IntParam(100)}}},
		&ColumnCondition{Column: "article_name", Ops: []Op{{Kind: OpLike, Value: ast.StringParam("%super%")}}},
	}, Options{})
	if err != nil {
		t.Fatalf("inject error: %v", err)
	}
	text := printer.String(out)
	if !strings.Contains(text, ":price_min") || !strings.Contains(text, ":article_name_like") {
		t.Errorf("expected both conditions injected, got %q", text)
	}
}

func TestInjectColumnNotFoundError(t *testing.T) {
	q := mustParse(t, `SELECT id FROM users`)
	_, err := Inject(q, []Condition{Eq("missing", ast.IntParam(1))}, Options{})
	if err == nil {
		t.Fatalf("expected InjectError{column_not_found}")
	}
	ierr, ok := err.(*Error)
	if !ok || ierr.Kind != ErrColumnNotFound {
		t.Errorf("expected ErrColumnNotFound, got %#v", err)
	}
}

func TestInjectAppliesToBothUnionBranches(t *testing.T) {
	q := mustParse(t, `SELECT amount FROM a UNION ALL SELECT amount FROM b`)
	out, err := Inject(q, []Condition{Eq("amount", ast.IntParam(5))}, Options{})
	if err != nil {
		t.Fatalf("inject error: %v", err)
	}
	text := printer.String(out)
	if strings.Count(text, ":amount") != 2 {
		t.Errorf("expected the condition injected into both branches, got %q", text)
	}
}

func TestInjectIgnoreCaseAndUnderscoreMatchesFoldedName(t *testing.T) {
	q := mustParse(t, `SELECT user_id FROM users`)
	_, err := Inject(q, []Condition{Eq("UserId", ast.IntParam(1))}, Options{IgnoreCaseAndUnderscore: true})
	if err != nil {
		t.Fatalf("expected folded match to succeed, got %v", err)
	}
}

func TestColumnConditionFromMapRejectsUnknownOperator(t *testing.T) {
	_, err := ColumnConditionFromMap("price", map[string]*ast.ParamValue{"between": ast.IntParam(1)})
	if err == nil {
		t.Fatalf("expected InjectError{unsupported_operator}")
	}
	ierr, ok := err.(*Error)
	if !ok || ierr.Kind != ErrUnsupportedOperator {
		t.Errorf("expected ErrUnsupportedOperator, got %#v", err)
	}
}

func TestAndConditionSuffixesParameterNames(t *testing.T) {
	q := mustParse(t, `SELECT price FROM products`)
	out, err := Inject(q, []Condition{
		&AndCondition{Conditions: []Condition{
			Eq("price", ast.IntParam(1)),
			Eq("price", ast.IntParam(2)),
		}},
	}, Options{})
	if err != nil {
		t.Fatalf("inject error: %v", err)
	}
	text := printer.String(out)
	if !strings.Contains(text, ":price_and_0") || !strings.Contains(text, ":price_and_1") {
		t.Errorf("expected position-suffixed parameter names, got %q", text)
	}
}
