package ctegraph

import (
	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/parser"
	"github.com/mk3008/rawsql-go/printer"
)

// Decomposed is one record of a decompose(q) result (§4.5.3).
type Decomposed struct {
	Name         string
	QueryText    string
	Dependencies []string
	Dependents   []string
	IsRecursive  bool
}

// Decompose returns one Decomposed record per CTE in q. Non-recursive
// CTEs get a query_text rewritten as a self-contained WITH containing
// exactly their transitive dependencies, in execution order, formatted
// by the printer. Recursive CTEs keep their parsed body without any
// dependency rewriting, wrapped in a WITH RECURSIVE ... SELECT * FROM
// name envelope; that text also comes from the printer, so the original
// source text and its formatting are not kept.
func Decompose(q ast.Query) ([]Decomposed, error) {
	g, err := Build(q)
	if err != nil {
		return nil, err
	}
	with := withOf(q)

	results := make([]Decomposed, 0, len(with.CTEs))
	for _, cte := range with.CTEs {
		n := g.nodes[cte.Name]
		rec := Decomposed{
			Name:         cte.Name,
			Dependencies: g.Dependencies(cte.Name),
			Dependents:   g.Dependents(cte.Name),
			IsRecursive:  n.recursive,
		}

		if n.recursive {
			rec.QueryText = recursiveEnvelope(with.Recursive, cte)
		} else {
			text, err := isolatedQueryText(g, with, cte.Name)
			if err != nil {
				return nil, err
			}
			rec.QueryText = text
		}
		results = append(results, rec)
	}
	return results, nil
}

// recursiveEnvelope renders `WITH RECURSIVE name AS (...) SELECT * FROM name`
// for a recursive CTE. The body's AST is used unchanged, but the text is
// printed from it, not copied from the original source.
func recursiveEnvelope(recursive bool, cte *ast.CTE) string {
	sel := &ast.SimpleSelect{
		With: &ast.WithClause{Recursive: recursive, CTEs: []*ast.CTE{cte}},
		Columns: []ast.SelectExpr{&ast.AliasedExpr{Expr: &ast.StarExpr{}}},
		From:    &ast.TableName{Parts: []string{cte.Name}},
	}
	return printer.String(sel)
}

// isolatedQueryText builds `WITH dep1 AS (...), ... SELECT * FROM name`
// containing exactly name's transitive dependencies, in execution order.
func isolatedQueryText(g *Graph, with *ast.WithClause, name string) (string, error) {
	deps := g.TransitiveDependencies(name)
	depSet := make(map[string]bool, len(deps)+1)
	for _, d := range deps {
		depSet[d] = true
	}
	depSet[name] = true

	order, err := g.ExecutionOrder()
	if err != nil {
		return "", err
	}

	cteByName := make(map[string]*ast.CTE, len(with.CTEs))
	for _, cte := range with.CTEs {
		cteByName[cte.Name] = cte
	}

	var ctes []*ast.CTE
	for _, n := range order {
		if n == MainQuery || !depSet[n] {
			continue
		}
		ctes = append(ctes, cteByName[n])
	}

	sel := &ast.SimpleSelect{
		With:    &ast.WithClause{CTEs: ctes},
		Columns: []ast.SelectExpr{&ast.AliasedExpr{Expr: &ast.StarExpr{}}},
		From:    &ast.TableName{Parts: []string{name}},
	}
	return printer.String(sel), nil
}

// Extracted is the extract(q, target_name) result (§4.5.4).
type Extracted struct {
	Name          string
	ExecutableSQL string
	Dependencies  []string
	Warnings      []string
}

// Extract returns a self-contained query that can run on its own for
// targetName: the transitive closure of its dependencies in topological
// order followed by the target's own body as the trailing SELECT. A
// recursive target returns the whole original query untouched, with a
// warning, since a recursive CTE can't be soundly detached from its
// envelope.
func Extract(q ast.Query, targetName string) (*Extracted, error) {
	g, err := Build(q)
	if err != nil {
		return nil, err
	}
	with := withOf(q)

	n, ok := g.nodes[targetName]
	if !ok {
		return nil, newError(ErrNotFound, targetName)
	}

	if n.recursive {
		return &Extracted{
			Name:          targetName,
			ExecutableSQL: printer.String(q),
			Dependencies:  g.Dependencies(targetName),
			Warnings:      []string{"recursive CTE restoration requires the full query context"},
		}, nil
	}

	deps := g.TransitiveDependencies(targetName)
	depSet := make(map[string]bool, len(deps))
	for _, d := range deps {
		depSet[d] = true
	}

	order, err := g.ExecutionOrder()
	if err != nil {
		return nil, err
	}

	cteByName := make(map[string]*ast.CTE, len(with.CTEs))
	for _, cte := range with.CTEs {
		cteByName[cte.Name] = cte
	}

	var ctes []*ast.CTE
	for _, name := range order {
		if name == MainQuery || name == targetName || !depSet[name] {
			continue
		}
		ctes = append(ctes, cteByName[name])
	}

	target := cteByName[targetName]
	var out ast.Query = target.Query
	if len(ctes) > 0 {
		switch body := target.Query.(type) {
		case *ast.SimpleSelect:
			cp := *body
			cp.With = &ast.WithClause{CTEs: ctes}
			out = &cp
		case *ast.DeleteQuery:
			cp := *body
			cp.With = &ast.WithClause{CTEs: ctes}
			out = &cp
		case *ast.BinarySelect:
			root := *body
			parent := &root
			for left, ok := parent.Left.(*ast.BinarySelect); ok; left, ok = parent.Left.(*ast.BinarySelect) {
				cp := *left
				parent.Left = &cp
				parent = &cp
			}
			if left, ok := parent.Left.(*ast.SimpleSelect); ok {
				cp := *left
				cp.With = &ast.WithClause{CTEs: ctes}
				parent.Left = &cp
			}
			out = &root
		default:
			out = target.Query
		}
	}

	return &Extracted{
		Name:          targetName,
		ExecutableSQL: printer.String(out),
		Dependencies:  deps,
	}, nil
}

// EditedCTE is one user-edited CTE body supplied to Compose.
type EditedCTE struct {
	Name  string
	Query ast.Query
}

// Compose stitches edited CTE bodies back into root, a single query
// (§4.5.5). Dependencies are re-derived by re-walking each edited
// body's FROM references rather than trusting stale metadata. An edited
// body that begins with its own WITH keeps it as written rather than
// having it inlined; its names are not checked against the known CTE
// names.
func Compose(edited []EditedCTE, root ast.Query) (ast.Query, error) {
	known := make(map[string]bool, len(edited))
	for _, e := range edited {
		known[e.Name] = true
	}

	g := &Graph{nodes: make(map[string]*node)}
	for i, e := range edited {
		g.order = append(g.order, e.Name)
		g.nodes[e.Name] = &node{
			name:       e.Name,
			declIndex:  i,
			query:      e.Query,
			deps:       make(map[string]bool),
			dependents: make(map[string]bool),
		}
	}
	g.nodes[MainQuery] = &node{name: MainQuery, declIndex: len(edited), deps: make(map[string]bool), dependents: make(map[string]bool)}

	for _, e := range edited {
		for ref := range collectTableRefs(e.Query, nil) {
			if ref != e.Name && known[ref] {
				g.addEdge(e.Name, ref)
			}
		}
	}
	for ref := range collectTableRefs(rootWithoutWith(root), nil) {
		if known[ref] {
			g.addEdge(MainQuery, ref)
		}
	}

	order, err := g.ExecutionOrder()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]ast.Query, len(edited))
	for _, e := range edited {
		byName[e.Name] = e.Query
	}

	var ctes []*ast.CTE
	for _, name := range order {
		if name == MainQuery {
			continue
		}
		ctes = append(ctes, &ast.CTE{Name: name, Query: byName[name]})
	}
	with := &ast.WithClause{CTEs: ctes}

	switch n := root.(type) {
	case *ast.SimpleSelect:
		cp := *n
		cp.With = with
		return &cp, nil
	case *ast.DeleteQuery:
		cp := *n
		cp.With = with
		return &cp, nil
	default:
		return root, nil
	}
}

// Synchronize is Compose followed by a re-parse of the printed result,
// guaranteeing the returned query is referentially consistent (every
// name the printed text uses actually round-trips through the parser).
func Synchronize(edited []EditedCTE, root ast.Query) (ast.Query, error) {
	composed, err := Compose(edited, root)
	if err != nil {
		return nil, err
	}
	text := printer.String(composed)
	p := parser.New(text)
	reparsed, perr := p.Parse()
	if perr != nil {
		return nil, perr
	}
	return reparsed, nil
}
