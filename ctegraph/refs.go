package ctegraph

import "github.com/mk3008/rawsql-go/ast"

// collectTableRefs walks q's FROM/JOIN/USING table expressions and any
// nested subqueries, collecting the bare (single-part) names of every
// table reference encountered, except ones shadowed by a WITH clause
// declared at or below the point of reference (§4.5.1 "excluding
// references to names shadowed by inner WITH clauses"). shadow is the
// set of names already in scope from an enclosing WITH; it is extended
// locally (never mutated in place) when descending into a nested query
// that declares its own CTEs, so sibling branches don't see each
// other's shadows.
func collectTableRefs(q ast.Query, shadow map[string]bool) map[string]bool {
	refs := make(map[string]bool)
	walkQueryRefs(q, shadow, refs)
	return refs
}

func extendShadow(shadow map[string]bool, with *ast.WithClause) map[string]bool {
	if with == nil || len(with.CTEs) == 0 {
		return shadow
	}
	next := make(map[string]bool, len(shadow)+len(with.CTEs))
	for k := range shadow {
		next[k] = true
	}
	for _, cte := range with.CTEs {
		next[cte.Name] = true
	}
	return next
}

func walkQueryRefs(q ast.Query, shadow map[string]bool, refs map[string]bool) {
	if q == nil {
		return
	}
	switch n := q.(type) {
	case *ast.SimpleSelect:
		shadow = extendShadow(shadow, n.With)
		if n.With != nil {
			for _, cte := range n.With.CTEs {
				walkQueryRefs(cte.Query, shadow, refs)
			}
		}
		if n.From != nil {
			walkTableExprRefs(n.From, shadow, refs)
		}
		for _, c := range n.Columns {
			if ae, ok := c.(*ast.AliasedExpr); ok {
				walkExprRefs(ae.Expr, shadow, refs)
			}
		}
		walkExprRefs(n.Where, shadow, refs)
		for _, e := range n.GroupBy {
			walkExprRefs(e, shadow, refs)
		}
		walkExprRefs(n.Having, shadow, refs)

	case *ast.BinarySelect:
		walkQueryRefs(n.Left, shadow, refs)
		walkQueryRefs(n.Right, shadow, refs)

	case *ast.ValuesQuery:
		for _, row := range n.Rows {
			for _, v := range row {
				walkExprRefs(v, shadow, refs)
			}
		}

	case *ast.DeleteQuery:
		shadow = extendShadow(shadow, n.With)
		if n.With != nil {
			for _, cte := range n.With.CTEs {
				walkQueryRefs(cte.Query, shadow, refs)
			}
		}
		if n.Table != nil {
			walkTableExprRefs(n.Table, shadow, refs)
		}
		if n.Using != nil {
			walkTableExprRefs(n.Using, shadow, refs)
		}
		walkExprRefs(n.Where, shadow, refs)

	case *ast.MergeQuery:
		if n.Target != nil {
			walkTableExprRefs(n.Target, shadow, refs)
		}
		if n.Source != nil {
			walkTableExprRefs(n.Source, shadow, refs)
		}
		walkExprRefs(n.On, shadow, refs)
		for _, w := range n.Whens {
			walkExprRefs(w.Condition, shadow, refs)
			for _, ue := range w.Action.Set {
				walkExprRefs(ue.Expr, shadow, refs)
			}
			for _, v := range w.Action.Values {
				walkExprRefs(v, shadow, refs)
			}
		}
	}
}

func walkTableExprRefs(te ast.TableExpr, shadow map[string]bool, refs map[string]bool) {
	switch n := te.(type) {
	case *ast.TableName:
		if len(n.Parts) == 1 && !shadow[n.Parts[0]] {
			refs[n.Parts[0]] = true
		}
	case *ast.AliasedTableExpr:
		walkTableExprRefs(n.Expr, shadow, refs)
	case *ast.JoinExpr:
		walkTableExprRefs(n.Left, shadow, refs)
		walkTableExprRefs(n.Right, shadow, refs)
		walkExprRefs(n.On, shadow, refs)
	case *ast.ParenTableExpr:
		walkTableExprRefs(n.Expr, shadow, refs)
	case *ast.TableList:
		for _, t := range n.Tables {
			walkTableExprRefs(t, shadow, refs)
		}
	case *ast.Subquery:
		walkQueryRefs(n.Query, shadow, refs)
	case *ast.SimpleSelect, *ast.BinarySelect, *ast.ValuesQuery:
		walkQueryRefs(te.(ast.Query), shadow, refs)
	}
}

func walkExprRefs(e ast.Expr, shadow map[string]bool, refs map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.BinaryExpr:
		walkExprRefs(n.Left, shadow, refs)
		walkExprRefs(n.Right, shadow, refs)
	case *ast.UnaryExpr:
		walkExprRefs(n.Operand, shadow, refs)
	case *ast.ParenExpr:
		walkExprRefs(n.Expr, shadow, refs)
	case *ast.FuncExpr:
		for _, a := range n.Args {
			walkExprRefs(a, shadow, refs)
		}
		walkExprRefs(n.Filter, shadow, refs)
	case *ast.CastExpr:
		walkExprRefs(n.Expr, shadow, refs)
	case *ast.CaseExpr:
		walkExprRefs(n.Operand, shadow, refs)
		for _, w := range n.Whens {
			walkExprRefs(w.Cond, shadow, refs)
			walkExprRefs(w.Result, shadow, refs)
		}
		walkExprRefs(n.Else, shadow, refs)
	case *ast.ListExpr:
		for _, it := range n.Items {
			walkExprRefs(it, shadow, refs)
		}
	case *ast.InExpr:
		walkExprRefs(n.Expr, shadow, refs)
		if n.List != nil {
			walkExprRefs(n.List, shadow, refs)
		}
		if n.Select != nil {
			walkQueryRefs(n.Select.Query, shadow, refs)
		}
	case *ast.BetweenExpr:
		walkExprRefs(n.Expr, shadow, refs)
		walkExprRefs(n.Low, shadow, refs)
		walkExprRefs(n.High, shadow, refs)
	case *ast.LikeExpr:
		walkExprRefs(n.Expr, shadow, refs)
		walkExprRefs(n.Pattern, shadow, refs)
		walkExprRefs(n.Escape, shadow, refs)
	case *ast.IsExpr:
		walkExprRefs(n.Expr, shadow, refs)
	case *ast.Subquery:
		walkQueryRefs(n.Query, shadow, refs)
	case *ast.ExistsExpr:
		if n.Subquery != nil {
			walkQueryRefs(n.Subquery.Query, shadow, refs)
		}
	case *ast.ArrayExpr:
		for _, el := range n.Elements {
			walkExprRefs(el, shadow, refs)
		}
	case *ast.NormalizedExpr:
		walkExprRefs(n.Expr, shadow, refs)
	}
}
