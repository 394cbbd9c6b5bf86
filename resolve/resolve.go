// Package resolve computes, for any (sub)query node, the set of columns
// and named parameters a predicate may legally reference at that scope
// — following through CTEs, subqueries, and UNION branches, with
// wildcard expansion delegated to a pluggable SchemaResolver. Grounded
// on the teacher's visitor-driven traversal shape (ast/node.go's sum
// types), since the teacher itself never had a resolution pass to
// generalize from; the algorithm is built fresh from §4.4.
package resolve

import (
	"strings"

	"github.com/juju/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/mk3008/rawsql-go/ast"
)

// SchemaResolver maps a table name to its column list. ok is false when
// the resolver has no knowledge of the table (distinct from "zero
// columns"), which is what triggers the opaque-wildcard behavior of
// §4.4 step 3 rather than a resolve error.
type SchemaResolver func(tableName string) (columns []string, ok bool)

// Column is a single entry of a FilterableSet: a column name with its
// originating table/alias namespace, when known.
type Column struct {
	Name           string
	TableNamespace string
}

// Parameter is a named placeholder reachable at a query scope.
type Parameter struct {
	Name string
}

// FilterableSet is the {columns, parameters} pair a scope may legally
// reference in a predicate (§4.4).
type FilterableSet struct {
	Columns    []Column
	Parameters []Parameter
}

// DuplicateMode selects how same-named columns from different sources
// are deduplicated (§4.4 step 5).
type DuplicateMode int

const (
	// DupColumnNameOnly treats two columns as duplicates whenever their
	// bare names match, regardless of table namespace. Default.
	DupColumnNameOnly DuplicateMode = iota
	// DupFullName requires both name and table namespace to match.
	DupFullName
	// DupIgnoreCaseAndUnderscore normalizes case and strips underscores
	// before comparing (user_id ≡ UserId), using Unicode NFKC folding
	// so non-ASCII identifiers compare correctly.
	DupIgnoreCaseAndUnderscore
)

// FoldIdentifier normalizes id the way DupIgnoreCaseAndUnderscore (and
// the injector's ignore_case_and_underscore column-matching option,
// which shares this helper) compare identifiers: Unicode NFKC-normalize
// first so multi-codepoint forms of the same character compare equal,
// then lowercase and drop underscores.
func FoldIdentifier(id string) string {
	folded := norm.NFKC.String(id)
	folded = strings.ToLower(folded)
	return strings.ReplaceAll(folded, "_", "")
}

// ErrorKind enumerates resolve failure modes (ResolveError of the error taxonomy).
type ErrorKind int

const (
	ErrWildcardNeedsSchema ErrorKind = iota
	ErrAmbiguousColumn
)

// Error is the ResolveError of §7.
type Error struct {
	Kind   ErrorKind
	Target string
	cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrWildcardNeedsSchema:
		return "resolve: wildcard requires a SchemaResolver for " + e.Target
	case ErrAmbiguousColumn:
		return "resolve: ambiguous column " + e.Target
	default:
		return "resolve: error"
	}
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, target string) *Error {
	e := &Error{Kind: kind, Target: target}
	e.cause = errors.Annotatef(errors.New(e.Error()), "resolve error")
	return e
}

// Options configures a Collector.
type Options struct {
	Resolver      SchemaResolver
	Upstream      bool // §4.4 step 4: include every source-scope column, not just projected ones
	DuplicateMode DuplicateMode
	Strict        bool // ambiguous bare identifiers raise ErrAmbiguousColumn instead of first-wins
}

// scope is the alias -> exported-columns binding built while walking a
// query's FROM/JOIN tree (§4.4 step 2).
type scope struct {
	alias   string // "" for an unaliased bare table/CTE reference
	columns []Column
	opaque  bool // true when a wildcard source has no resolvable columns (§4.4 step 3 / §9 open question ii)
}

// Collector computes FilterableSets. It is single-use per query scope
// tree but memoizes CTE/subquery exports across calls within one
// Collect invocation so a CTE referenced from three sibling scopes is
// only resolved once.
type Collector struct {
	opts    Options
	cache   map[ast.Query][]Column
	ctes    map[string]*ast.CTE // nearest enclosing WITH clause, name -> CTE
}

// NewCollector creates a Collector with the given options.
func NewCollector(opts Options) *Collector {
	return &Collector{opts: opts, cache: make(map[ast.Query][]Column)}
}

// Collect computes the FilterableSet for q (§4.4).
func (c *Collector) Collect(q ast.Query) (*FilterableSet, error) {
	prevCTEs := c.ctes
	defer func() { c.ctes = prevCTEs }()

	switch n := q.(type) {
	case *ast.SimpleSelect:
		c.bindCTEs(n.With)
		return c.collectSelect(n)
	case *ast.BinarySelect:
		return c.collectBinary(n)
	case *ast.ValuesQuery:
		return &FilterableSet{}, nil
	case *ast.DeleteQuery:
		c.bindCTEs(n.With)
		scopes, err := c.sourceScopes(n.Table)
		if err != nil {
			return nil, err
		}
		if n.Using != nil {
			using, err := c.sourceScopes(n.Using)
			if err != nil {
				return nil, err
			}
			scopes = append(scopes, using...)
		}
		return c.finish(scopes, nil), nil
	case *ast.MergeQuery:
		scopes, err := c.sourceScopes(n.Target)
		if err != nil {
			return nil, err
		}
		srcScopes, err := c.sourceScopes(n.Source)
		if err != nil {
			return nil, err
		}
		return c.finish(append(scopes, srcScopes...), nil), nil
	}
	return &FilterableSet{}, nil
}

func (c *Collector) bindCTEs(with *ast.WithClause) {
	if with == nil {
		return
	}
	m := make(map[string]*ast.CTE, len(with.CTEs))
	for _, cte := range with.CTEs {
		m[cte.Name] = cte
	}
	c.ctes = m
}

func (c *Collector) collectSelect(s *ast.SimpleSelect) (*FilterableSet, error) {
	var scopes []scope
	if s.From != nil {
		sc, err := c.sourceScopes(s.From)
		if err != nil {
			return nil, err
		}
		scopes = sc
	}

	var params []Parameter
	collectParams(s.Where, &params)
	for _, g := range s.GroupBy {
		collectParams(g, &params)
	}
	collectParams(s.Having, &params)

	if c.opts.Upstream {
		return c.finish(scopes, params), nil
	}

	cols, err := c.projectedColumns(s.Columns, scopes)
	if err != nil {
		return nil, err
	}
	return &FilterableSet{Columns: dedupe(cols, c.opts.DuplicateMode), Parameters: params}, nil
}

func (c *Collector) collectBinary(b *ast.BinarySelect) (*FilterableSet, error) {
	left, err := c.Collect(b.Left)
	if err != nil {
		return nil, err
	}
	if c.opts.Upstream {
		right, err := c.Collect(b.Right)
		if err != nil {
			return nil, err
		}
		return &FilterableSet{
			Columns:    dedupe(append(append([]Column{}, left.Columns...), right.Columns...), c.opts.DuplicateMode),
			Parameters: append(left.Parameters, right.Parameters...),
		}, nil
	}
	// §4.4 step 2: column names come from the first (left) branch; the
	// branches' column counts are not compared here or by the parser.
	return left, nil
}

// sourceScopes walks one FROM/JOIN/USING source and returns the aliased
// scopes it introduces (§4.4 step 2).
func (c *Collector) sourceScopes(te ast.TableExpr) ([]scope, error) {
	switch n := te.(type) {
	case *ast.TableName:
		return c.tableScope(n.Name(), "")
	case *ast.AliasedTableExpr:
		scopes, err := c.sourceScopes(n.Expr)
		if err != nil {
			return nil, err
		}
		if n.Alias != "" && len(scopes) == 1 {
			scopes[0].alias = n.Alias
		}
		return scopes, nil
	case *ast.JoinExpr:
		left, err := c.sourceScopes(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.sourceScopes(n.Right)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case *ast.ParenTableExpr:
		return c.sourceScopes(n.Expr)
	case *ast.TableList:
		var out []scope
		for _, t := range n.Tables {
			sc, err := c.sourceScopes(t)
			if err != nil {
				return nil, err
			}
			out = append(out, sc...)
		}
		return out, nil
	case *ast.Subquery:
		cols, err := c.exportedColumns(n.Query)
		if err != nil {
			return nil, err
		}
		return []scope{{columns: cols}}, nil
	case *ast.SimpleSelect, *ast.BinarySelect, *ast.ValuesQuery:
		cols, err := c.exportedColumns(n.(ast.Query))
		if err != nil {
			return nil, err
		}
		return []scope{{columns: cols}}, nil
	}
	return nil, nil
}

// tableScope resolves a bare table-or-CTE name to a scope: a CTE of the
// same name wins over a physical table (§4.7 rule 5 applies the same
// shadowing precedent here).
func (c *Collector) tableScope(name, alias string) ([]scope, error) {
	if cte, ok := c.ctes[name]; ok {
		cols, err := c.exportedColumns(cte.Query)
		if err != nil {
			return nil, err
		}
		if len(cte.Columns) > 0 {
			cols = renameColumns(cols, cte.Columns)
		}
		return []scope{{alias: alias, columns: cols}}, nil
	}
	if c.opts.Resolver != nil {
		if names, ok := c.opts.Resolver(name); ok {
			cols := make([]Column, len(names))
			ns := alias
			if ns == "" {
				ns = name
			}
			for i, cname := range names {
				cols[i] = Column{Name: cname, TableNamespace: ns}
			}
			return []scope{{alias: alias, columns: cols}}, nil
		}
	}
	return []scope{{alias: alias, opaque: true}}, nil
}

// exportedColumns computes the column set a query exposes to an outer
// scope (its outermost SELECT list), memoized per query node.
func (c *Collector) exportedColumns(q ast.Query) ([]Column, error) {
	if cached, ok := c.cache[q]; ok {
		return cached, nil
	}
	switch n := q.(type) {
	case *ast.SimpleSelect:
		prevCTEs := c.ctes
		c.bindCTEs(n.With)
		defer func() { c.ctes = prevCTEs }()

		scopes, err := func() ([]scope, error) {
			if n.From == nil {
				return nil, nil
			}
			return c.sourceScopes(n.From)
		}()
		if err != nil {
			return nil, err
		}
		cols, err := c.projectedColumns(n.Columns, scopes)
		if err != nil {
			return nil, err
		}
		c.cache[q] = cols
		return cols, nil
	case *ast.BinarySelect:
		cols, err := c.exportedColumns(n.Left)
		if err != nil {
			return nil, err
		}
		c.cache[q] = cols
		return cols, nil
	case *ast.ValuesQuery:
		return nil, nil
	}
	return nil, nil
}

// projectedColumns resolves a SELECT list against its source scopes
// (§4.4 step 3): bare identifiers bind to the first matching scope,
// qualified identifiers bind to their named scope, and wildcards expand
// through the scope's columns (or stay opaque/empty, per §9 (ii)/(iii)).
func (c *Collector) projectedColumns(items []ast.SelectExpr, scopes []scope) ([]Column, error) {
	var out []Column
	for _, item := range items {
		switch sel := item.(type) {
		case *ast.StarExpr:
			if sel.HasQualifier {
				for _, sc := range scopes {
					if sc.alias == sel.TableName {
						out = append(out, sc.columns...)
					}
				}
				continue
			}
			for _, sc := range scopes {
				if sc.opaque {
					if c.opts.Strict {
						return nil, newError(ErrWildcardNeedsSchema, "*")
					}
					continue
				}
				out = append(out, sc.columns...)
			}
		case *ast.AliasedExpr:
			name := sel.Alias
			namespace := ""
			if name == "" {
				if col, ok := sel.Expr.(*ast.ColName); ok {
					name = col.Parts[len(col.Parts)-1]
					if len(col.Parts) > 1 {
						namespace = col.Parts[len(col.Parts)-2]
					} else {
						found, ambiguous := findNamespace(scopes, name)
						if ambiguous && c.opts.Strict {
							return nil, newError(ErrAmbiguousColumn, name)
						}
						namespace = found
					}
				}
			}
			if name != "" {
				out = append(out, Column{Name: name, TableNamespace: namespace})
			}
		}
	}
	return out, nil
}

// findNamespace resolves a bare column name against scopes, first-wins,
// reporting whether more than one scope exposed it (ambiguous).
func findNamespace(scopes []scope, name string) (namespace string, ambiguous bool) {
	count := 0
	for _, sc := range scopes {
		for _, col := range sc.columns {
			if col.Name == name {
				if count == 0 {
					namespace = col.TableNamespace
				}
				count++
			}
		}
	}
	return namespace, count > 1
}

func (c *Collector) finish(scopes []scope, params []Parameter) *FilterableSet {
	var cols []Column
	for _, sc := range scopes {
		cols = append(cols, sc.columns...)
	}
	return &FilterableSet{Columns: dedupe(cols, c.opts.DuplicateMode), Parameters: params}
}

func renameColumns(cols []Column, names []string) []Column {
	out := make([]Column, len(cols))
	copy(out, cols)
	for i := range out {
		if i < len(names) {
			out[i].Name = names[i]
		}
	}
	return out
}

func dedupe(cols []Column, mode DuplicateMode) []Column {
	seen := make(map[string]bool, len(cols))
	var out []Column
	for _, col := range cols {
		key := dedupeKey(col, mode)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, col)
	}
	return out
}

func dedupeKey(col Column, mode DuplicateMode) string {
	switch mode {
	case DupFullName:
		return col.TableNamespace + "." + col.Name
	case DupIgnoreCaseAndUnderscore:
		return FoldIdentifier(col.Name)
	default:
		return col.Name
	}
}

// collectParams walks expr for ast.Param nodes (named placeholders),
// appending one Parameter per distinct name in first-encountered order.
func collectParams(expr ast.Expr, out *[]Parameter) {
	if expr == nil || isNilExpr(expr) {
		return
	}
	switch e := expr.(type) {
	case *ast.Param:
		if e.Type == ast.ParamNamed {
			for _, p := range *out {
				if p.Name == e.Name {
					return
				}
			}
			*out = append(*out, Parameter{Name: e.Name})
		}
	case *ast.BinaryExpr:
		collectParams(e.Left, out)
		collectParams(e.Right, out)
	case *ast.UnaryExpr:
		collectParams(e.Operand, out)
	case *ast.ParenExpr:
		collectParams(e.Expr, out)
	case *ast.FuncExpr:
		for _, a := range e.Args {
			collectParams(a, out)
		}
	case *ast.CastExpr:
		collectParams(e.Expr, out)
	case *ast.CaseExpr:
		if e.Operand != nil {
			collectParams(e.Operand, out)
		}
		for _, w := range e.Whens {
			collectParams(w.Cond, out)
			collectParams(w.Result, out)
		}
		collectParams(e.Else, out)
	case *ast.InExpr:
		collectParams(e.Expr, out)
		if e.List != nil {
			for _, item := range e.List.Items {
				collectParams(item, out)
			}
		}
	case *ast.BetweenExpr:
		collectParams(e.Expr, out)
		collectParams(e.Low, out)
		collectParams(e.High, out)
	case *ast.LikeExpr:
		collectParams(e.Expr, out)
		collectParams(e.Pattern, out)
		collectParams(e.Escape, out)
	case *ast.IsExpr:
		collectParams(e.Expr, out)
	}
}

func isNilExpr(e ast.Expr) bool {
	switch v := e.(type) {
	case *ast.Param:
		return v == nil
	case *ast.BinaryExpr:
		return v == nil
	case *ast.UnaryExpr:
		return v == nil
	case *ast.ParenExpr:
		return v == nil
	case *ast.FuncExpr:
		return v == nil
	case *ast.CastExpr:
		return v == nil
	case *ast.CaseExpr:
		return v == nil
	case *ast.InExpr:
		return v == nil
	case *ast.BetweenExpr:
		return v == nil
	case *ast.LikeExpr:
		return v == nil
	case *ast.IsExpr:
		return v == nil
	}
	return false
}
