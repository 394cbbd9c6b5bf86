package rawsqlgo

import (
	"strings"
	"testing"

	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/printer"
)

func TestParseAndFormatRoundTrips(t *testing.T) {
	tests := []string{
		"SELECT * FROM users",
		"SELECT id, name FROM users WHERE status = 'active'",
		"SELECT a.id, b.name FROM a JOIN b ON a.id = b.a_id",
		"WITH u AS (SELECT id FROM users) SELECT id FROM u",
	}
	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			q, err := Parse(sql)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			result, err := Format(q, printer.Default())
			if err != nil {
				t.Fatalf("Format error: %v", err)
			}
			if result.Text == "" {
				t.Fatal("formatted output is empty")
			}
		})
	}
}

func TestToDeleteJoinsOnPrimaryKeysAndHoistsWith(t *testing.T) {
	sel, err := Parse(`WITH stale AS (SELECT id FROM sessions WHERE expired) SELECT id FROM stale`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	del, err := ToDelete(sel, ToDeleteOptions{Target: "sessions", PrimaryKeys: []string{"id", "id"}})
	if err != nil {
		t.Fatalf("to_delete error: %v", err)
	}
	if len(del.With.CTEs) != 1 || del.With.CTEs[0].Name != "stale" {
		t.Fatalf("expected CTE hoisted onto DeleteQuery, got %#v", del.With)
	}
	text := printer.String(del)
	if strings.Count(text, "sessions.id") != 1 || !strings.Contains(text, "src.id") {
		t.Errorf("expected deduplicated single pk join condition, got %q", text)
	}
}

func TestToMergeDefaultsInsertAndUpdateColumns(t *testing.T) {
	sel, err := Parse(`SELECT id, name, email FROM staging`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	mq, err := ToMerge(sel, ToMergeOptions{Target: "users", PrimaryKeys: []string{"id"}})
	if err != nil {
		t.Fatalf("to_merge error: %v", err)
	}
	if len(mq.Whens) != 2 {
		t.Fatalf("expected matched+not-matched WHEN clauses, got %d", len(mq.Whens))
	}
	update := mq.Whens[0].Action
	if update.Kind != ast.MergeActionUpdate || len(update.Set) != 2 {
		t.Errorf("expected update of name,email (pk excluded), got %#v", update)
	}
	insert := mq.Whens[1].Action
	if insert.Kind != ast.MergeActionInsert || len(insert.Columns) != 3 {
		t.Errorf("expected insert of all 3 projected columns, got %#v", insert)
	}
}

func TestToMergeRejectsColumnsNotInProjection(t *testing.T) {
	sel, err := Parse(`SELECT id, name FROM staging`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = ToMerge(sel, ToMergeOptions{
		Target:        "users",
		PrimaryKeys:   []string{"id"},
		UpdateColumns: []string{"name", "nonexistent"},
	})
	if err == nil {
		t.Fatalf("expected BuildError{columns_not_found}")
	}
	berr, ok := err.(*BuildError)
	if !ok || berr.Kind != ErrColumnsNotFound || len(berr.Missing) != 1 || berr.Missing[0] != "nonexistent" {
		t.Errorf("expected BuildError naming nonexistent, got %#v", err)
	}
}

func TestToMergeNotMatchedBySourceOptional(t *testing.T) {
	sel, err := Parse(`SELECT id, name FROM staging`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	mq, err := ToMerge(sel, ToMergeOptions{Target: "users", PrimaryKeys: []string{"id"}})
	if err != nil {
		t.Fatalf("to_merge error: %v", err)
	}
	for _, w := range mq.Whens {
		if w.Match == ast.MergeNotMatchedBySource {
			t.Fatalf("expected no WHEN NOT MATCHED BY SOURCE clause when not requested")
		}
	}

	del := ast.MergeActionDelete
	mq2, err := ToMerge(sel, ToMergeOptions{Target: "users", PrimaryKeys: []string{"id"}, NotMatchedBySourceAction: &del})
	if err != nil {
		t.Fatalf("to_merge error: %v", err)
	}
	found := false
	for _, w := range mq2.Whens {
		if w.Match == ast.MergeNotMatchedBySource && w.Action.Kind == ast.MergeActionDelete {
			found = true
		}
	}
	if !found {
		t.Errorf("expected WHEN NOT MATCHED BY SOURCE THEN DELETE clause")
	}
}
