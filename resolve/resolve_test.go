package resolve

import (
	"sort"
	"testing"

	"github.com/mk3008/rawsql-go/parser"
)

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}

func TestCollectPlainSelect(t *testing.T) {
	p := parser.New(`SELECT id, name FROM users`)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	c := NewCollector(Options{})
	fs, err := c.Collect(q)
	if err != nil {
		t.Fatalf("collect error: %v", err)
	}
	got := columnNames(fs.Columns)
	if len(got) != 2 || got[0] != "id" || got[1] != "name" {
		t.Errorf("unexpected columns: %v", got)
	}
}

func TestCollectThroughCTE(t *testing.T) {
	p := parser.New(`WITH u AS (SELECT id, email FROM users) SELECT id FROM u`)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	c := NewCollector(Options{})
	fs, err := c.Collect(q)
	if err != nil {
		t.Fatalf("collect error: %v", err)
	}
	got := columnNames(fs.Columns)
	if len(got) != 1 || got[0] != "id" {
		t.Errorf("expected just [id], got %v", got)
	}
}

func TestCollectUpstreamIncludesAllSourceColumns(t *testing.T) {
	p := parser.New(`SELECT id FROM users`)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	resolver := func(table string) ([]string, bool) {
		if table == "users" {
			return []string{"id", "name", "email"}, true
		}
		return nil, false
	}

	plain, err := NewCollector(Options{Resolver: resolver}).Collect(q)
	if err != nil {
		t.Fatalf("collect error: %v", err)
	}
	upstream, err := NewCollector(Options{Resolver: resolver, Upstream: true}).Collect(q)
	if err != nil {
		t.Fatalf("collect error: %v", err)
	}
	if len(upstream.Columns) <= len(plain.Columns) {
		t.Errorf("expected upstream set to strictly subsume plain set: plain=%d upstream=%d",
			len(plain.Columns), len(upstream.Columns))
	}
}

func TestCollectWildcardWithoutResolverIsOpaqueEmpty(t *testing.T) {
	p := parser.New(`SELECT * FROM users`)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	fs, err := NewCollector(Options{}).Collect(q)
	if err != nil {
		t.Fatalf("expected no error for opaque wildcard, got %v", err)
	}
	if len(fs.Columns) != 0 {
		t.Errorf("expected empty column set, got %v", fs.Columns)
	}
}

func TestCollectStrictWildcardWithoutResolverErrors(t *testing.T) {
	p := parser.New(`SELECT * FROM users`)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = NewCollector(Options{Strict: true}).Collect(q)
	if err == nil {
		t.Fatalf("expected ErrWildcardNeedsSchema in strict mode")
	}
	rerr, ok := err.(*Error)
	if !ok || rerr.Kind != ErrWildcardNeedsSchema {
		t.Errorf("expected ErrWildcardNeedsSchema, got %#v", err)
	}
}

func TestCollectNamedParameters(t *testing.T) {
	p := parser.New(`SELECT id FROM users WHERE name = :name AND age > :age`)
	q, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	fs, err := NewCollector(Options{}).Collect(q)
	if err != nil {
		t.Fatalf("collect error: %v", err)
	}
	if len(fs.Parameters) != 2 {
		t.Errorf("expected 2 parameters, got %v", fs.Parameters)
	}
}

func TestFoldIdentifierIgnoresCaseAndUnderscore(t *testing.T) {
	if FoldIdentifier("user_id") != FoldIdentifier("UserId") {
		t.Errorf("expected user_id and UserId to fold equal")
	}
}
