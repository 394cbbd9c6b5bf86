package walker

import "github.com/mk3008/rawsql-go/ast"

// Rewriter is called once per node, post-order (children are rewritten
// before their parent sees the result). Returning a different ast.Node
// replaces the original in its parent; returning the same node (or the
// original untouched) leaves the tree as-is. Returning nil is treated
// the same as "no change" at every position, slice elements included:
// Rewrite never removes a node.
type Rewriter func(node ast.Node) ast.Node

// Rewrite rewrites node and its children post-order and returns the
// (possibly replaced) node. Each distinct node identity is rewritten
// once even if shared by multiple parents, and the shared, rewritten
// result is spliced into every parent that referenced it. This package
// has no clone operation for making independent copies.
func Rewrite(node ast.Node, rw Rewriter) ast.Node {
	cache := make(map[ast.Node]ast.Node)
	return rewrite(node, rw, cache)
}

func rewrite(node ast.Node, rw Rewriter, cache map[ast.Node]ast.Node) ast.Node {
	if node == nil {
		return nil
	}
	if done, ok := cache[node]; ok {
		return done
	}

	switch n := node.(type) {
	case *ast.SimpleSelect:
		cache[node] = n
		if n.With != nil {
			for _, cte := range n.With.CTEs {
				cte.Query = rewrite(cte.Query, rw, cache).(ast.Query)
			}
		}
		for i, c := range n.Columns {
			n.Columns[i] = rewrite(c, rw, cache).(ast.SelectExpr)
		}
		if n.From != nil {
			n.From = rewrite(n.From, rw, cache).(ast.TableExpr)
		}
		if n.Where != nil {
			n.Where = rewrite(n.Where, rw, cache).(ast.Expr)
		}
		for i, e := range n.GroupBy {
			n.GroupBy[i] = rewrite(e, rw, cache).(ast.Expr)
		}
		if n.Having != nil {
			n.Having = rewrite(n.Having, rw, cache).(ast.Expr)
		}
		for _, ob := range n.OrderBy {
			ob.Expr = rewrite(ob.Expr, rw, cache).(ast.Expr)
		}

	case *ast.BinarySelect:
		cache[node] = n
		n.Left = rewrite(n.Left, rw, cache).(ast.Query)
		n.Right = rewrite(n.Right, rw, cache).(ast.Query)

	case *ast.ValuesQuery:
		cache[node] = n
		for _, row := range n.Rows {
			for i, v := range row {
				row[i] = rewrite(v, rw, cache).(ast.Expr)
			}
		}

	case *ast.DeleteQuery:
		cache[node] = n
		if n.With != nil {
			for _, cte := range n.With.CTEs {
				cte.Query = rewrite(cte.Query, rw, cache).(ast.Query)
			}
		}
		if n.Table != nil {
			n.Table = rewrite(n.Table, rw, cache).(ast.TableExpr)
		}
		if n.Using != nil {
			n.Using = rewrite(n.Using, rw, cache).(ast.TableExpr)
		}
		if n.Where != nil {
			n.Where = rewrite(n.Where, rw, cache).(ast.Expr)
		}

	case *ast.MergeQuery:
		cache[node] = n
		if n.Target != nil {
			n.Target = rewrite(n.Target, rw, cache).(ast.TableExpr)
		}
		if n.Source != nil {
			n.Source = rewrite(n.Source, rw, cache).(ast.TableExpr)
		}
		if n.On != nil {
			n.On = rewrite(n.On, rw, cache).(ast.Expr)
		}
		for _, w := range n.Whens {
			if w.Condition != nil {
				w.Condition = rewrite(w.Condition, rw, cache).(ast.Expr)
			}
			for _, ue := range w.Action.Set {
				ue.Column = rewrite(ue.Column, rw, cache).(*ast.ColName)
				ue.Expr = rewrite(ue.Expr, rw, cache).(ast.Expr)
			}
			for i, v := range w.Action.Values {
				w.Action.Values[i] = rewrite(v, rw, cache).(ast.Expr)
			}

		}

	case *ast.BinaryExpr:
		cache[node] = n
		n.Left = rewrite(n.Left, rw, cache).(ast.Expr)
		n.Right = rewrite(n.Right, rw, cache).(ast.Expr)

	case *ast.UnaryExpr:
		cache[node] = n
		n.Operand = rewrite(n.Operand, rw, cache).(ast.Expr)

	case *ast.ParenExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.Expr)

	case *ast.FuncExpr:
		cache[node] = n
		for i, a := range n.Args {
			n.Args[i] = rewrite(a, rw, cache).(ast.Expr)
		}
		if n.Filter != nil {
			n.Filter = rewrite(n.Filter, rw, cache).(ast.Expr)
		}
		if n.Over != nil {
			for i, pb := range n.Over.PartitionBy {
				n.Over.PartitionBy[i] = rewrite(pb, rw, cache).(ast.Expr)
			}
			for _, ob := range n.Over.OrderBy {
				ob.Expr = rewrite(ob.Expr, rw, cache).(ast.Expr)
			}
		}

	case *ast.CastExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.Expr)

	case *ast.CaseExpr:
		cache[node] = n
		if n.Operand != nil {
			n.Operand = rewrite(n.Operand, rw, cache).(ast.Expr)
		}
		for _, w := range n.Whens {
			w.Cond = rewrite(w.Cond, rw, cache).(ast.Expr)
			w.Result = rewrite(w.Result, rw, cache).(ast.Expr)
		}
		if n.Else != nil {
			n.Else = rewrite(n.Else, rw, cache).(ast.Expr)
		}

	case *ast.ListExpr:
		cache[node] = n
		for i, it := range n.Items {
			n.Items[i] = rewrite(it, rw, cache).(ast.Expr)
		}

	case *ast.InExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.Expr)
		if n.List != nil {
			n.List = rewrite(n.List, rw, cache).(*ast.ListExpr)
		}
		if n.Select != nil {
			n.Select = rewrite(n.Select, rw, cache).(*ast.Subquery)
		}

	case *ast.BetweenExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.Expr)
		n.Low = rewrite(n.Low, rw, cache).(ast.Expr)
		n.High = rewrite(n.High, rw, cache).(ast.Expr)

	case *ast.LikeExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.Expr)
		n.Pattern = rewrite(n.Pattern, rw, cache).(ast.Expr)
		if n.Escape != nil {
			n.Escape = rewrite(n.Escape, rw, cache).(ast.Expr)
		}

	case *ast.IsExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.Expr)

	case *ast.Subquery:
		cache[node] = n
		n.Query = rewrite(n.Query, rw, cache).(ast.Query)

	case *ast.ExistsExpr:
		cache[node] = n
		if n.Subquery != nil {
			n.Subquery = rewrite(n.Subquery, rw, cache).(*ast.Subquery)
		}

	case *ast.ArrayExpr:
		cache[node] = n
		for i, el := range n.Elements {
			n.Elements[i] = rewrite(el, rw, cache).(ast.Expr)
		}

	case *ast.NormalizedExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.Expr)

	case *ast.AliasedExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.Expr)

	case *ast.AliasedTableExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.TableExpr)

	case *ast.JoinExpr:
		cache[node] = n
		n.Left = rewrite(n.Left, rw, cache).(ast.TableExpr)
		n.Right = rewrite(n.Right, rw, cache).(ast.TableExpr)
		if n.On != nil {
			n.On = rewrite(n.On, rw, cache).(ast.Expr)
		}

	case *ast.ParenTableExpr:
		cache[node] = n
		n.Expr = rewrite(n.Expr, rw, cache).(ast.TableExpr)

	case *ast.TableList:
		cache[node] = n
		for i, t := range n.Tables {
			n.Tables[i] = rewrite(t, rw, cache).(ast.TableExpr)
		}

	default:
		cache[node] = n
	}

	out := rw(node)
	if out == nil {
		out = node
	}
	cache[node] = out
	return out
}
