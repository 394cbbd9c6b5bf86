package inject

import (
	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/resolve"
	"github.com/mk3008/rawsql-go/walker"
)

// FindOptions configures FindUpstream's column matching.
type FindOptions struct {
	// Resolver supplies a table's column list so a bare `*` or `t.*` in
	// an upstream SELECT can be checked against a requested column name.
	// Nil means wildcards never satisfy a request (same opaque-empty
	// default resolve.Collect uses when no resolver is supplied).
	Resolver resolve.SchemaResolver

	// IgnoreCaseAndUnderscore folds both the requested name and each
	// candidate output name through resolve.FoldIdentifier before
	// comparing, per §4.7's ignore_case_and_underscore matching mode.
	IgnoreCaseAndUnderscore bool
}

func (o FindOptions) fold(s string) string {
	if o.IgnoreCaseAndUnderscore {
		return resolve.FoldIdentifier(s)
	}
	return s
}

// Match is one inner SELECT that projects every column FindUpstream was
// asked about, paired with the expression that actually produces each
// one (the select-item's own expression, not its outer alias — the
// source_col alias-tracking rule in §4.7).
type Match struct {
	Select  *ast.SimpleSelect
	Sources map[string]ast.Expr
}

// FindUpstream returns every SimpleSelect reachable from q (through
// CTEs, subqueries, and independent UNION branches) that projects a
// select-item named after every column in required (§4.7 rules 1-4).
// BinarySelect branches and ValuesQuery rows are visited independently
// by construction: walker.Walk descends into each branch as its own
// node, and a ValuesQuery never type-asserts to *ast.SimpleSelect, so
// rules 2 and 3 fall out of the traversal without special-casing them.
func FindUpstream(q ast.Query, required []string, opts FindOptions) []*Match {
	var out []*Match
	walker.Walk(q, func(n ast.Node) bool {
		sel, ok := n.(*ast.SimpleSelect)
		if !ok {
			return true
		}
		sources := make(map[string]ast.Expr, len(required))
		for _, col := range required {
			src, found := findProjected(sel, col, opts)
			if !found {
				sources = nil
				break
			}
			sources[col] = src
		}
		if sources != nil {
			out = append(out, &Match{Select: sel, Sources: sources})
		}
		return true
	})
	return out
}

// findProjected returns the expression behind sel's select-item whose
// output name matches col, if any (rule 1), resolving a `*`/`t.*` item
// through opts.Resolver when present (rule 4).
func findProjected(sel *ast.SimpleSelect, col string, opts FindOptions) (ast.Expr, bool) {
	target := opts.fold(col)
	for _, item := range sel.Columns {
		switch it := item.(type) {
		case *ast.AliasedExpr:
			name := outputName(it)
			if name != "" && opts.fold(name) == target {
				return it.Expr, true
			}
		case *ast.StarExpr:
			if opts.Resolver == nil {
				continue
			}
			table, ok := starTable(sel, it)
			if !ok {
				continue
			}
			cols, ok := opts.Resolver(table)
			if !ok {
				continue
			}
			for _, c := range cols {
				if opts.fold(c) == target {
					return &ast.ColName{Parts: []string{col}}, true
				}
			}
		}
	}
	return nil, false
}

// outputName returns an AliasedExpr's output name: its explicit alias,
// else the bare name of a column reference, else "" (unaddressable,
// e.g. a bare function call with no alias can't be matched by name).
func outputName(it *ast.AliasedExpr) string {
	if it.Alias != "" {
		return it.Alias
	}
	if cn, ok := it.Expr.(*ast.ColName); ok && len(cn.Parts) > 0 {
		return cn.Parts[len(cn.Parts)-1]
	}
	return ""
}

// starTable resolves the table a `*` or `t.*` select-item ranges over:
// the qualifier for `t.*`, or the sole FROM table when sel's FROM is
// unambiguous (a single table, optionally aliased) for a bare `*`.
func starTable(sel *ast.SimpleSelect, star *ast.StarExpr) (string, bool) {
	if star.HasQualifier {
		tables := collectFromTables(sel.From)
		if name, ok := tables[star.TableName]; ok {
			return name, true
		}
		return "", false
	}
	tables := collectFromTables(sel.From)
	if len(tables) != 1 {
		return "", false
	}
	for _, name := range tables {
		return name, true
	}
	return "", false
}

// collectFromTables maps every alias-or-bare-name reachable in te to
// its underlying table name, skipping subqueries (which have no single
// backing table name to resolve a wildcard against).
func collectFromTables(te ast.TableExpr) map[string]string {
	out := make(map[string]string)
	var walk func(ast.TableExpr)
	walk = func(n ast.TableExpr) {
		switch t := n.(type) {
		case nil:
			return
		case *ast.TableName:
			out[t.Name()] = t.Name()
		case *ast.AliasedTableExpr:
			if tn, ok := t.Expr.(*ast.TableName); ok {
				key := t.Alias
				if key == "" {
					key = tn.Name()
				}
				out[key] = tn.Name()
			}
		case *ast.JoinExpr:
			walk(t.Left)
			walk(t.Right)
		case *ast.ParenTableExpr:
			walk(t.Expr)
		case *ast.TableList:
			for _, tbl := range t.Tables {
				walk(tbl)
			}
		}
	}
	walk(te)
	return out
}
