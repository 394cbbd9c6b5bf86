// Package walker provides cycle-safe AST traversal, in an Observer
// (read-only) and a Rewriter (node-replacing) flavor, grounded on the
// teacher's visitor package's single-Walk-function shape but extended
// with identity-keyed visited sets, since a composed/synchronized CTE
// tree can legitimately share a subtree reference across two call
// sites and a naive recursive walk would loop forever.
package walker

import (
	"github.com/juju/errors"

	"github.com/mk3008/rawsql-go/ast"
)

// ErrorKind enumerates walker failure modes (WalkError of the error taxonomy).
type ErrorKind int

const (
	ErrCycle ErrorKind = iota
)

// Error is the WalkError of the error taxonomy: a cycle was detected
// during traversal.
type Error struct {
	Kind ErrorKind
	Path string
}

func (e *Error) Error() string { return "walker: cycle detected at " + e.Path }

// Unwrap exposes a juju/errors-annotated trace for callers that want
// errors.ErrorStack(err) rather than the one-line message.
func (e *Error) Unwrap() error {
	return errors.Annotatef(errors.New(e.Error()), "walker path %s", e.Path)
}

// Observer is called once per node in depth-first order. Returning
// false stops descent into that node's children (but sibling nodes
// still get visited).
type Observer func(node ast.Node) bool

// Walk traverses node and its children depth-first, calling visit for
// each one. Each node's pointer identity is recorded; if a node is
// reached twice through a shared subtree, it's visited once and its
// children are only descended into once (this is not an error — it is
// a legitimate case for a shared subtree — Walk just never loops).
func Walk(node ast.Node, visit Observer) {
	seen := make(map[ast.Node]bool)
	walk(node, visit, seen)
}

func walk(node ast.Node, visit Observer, seen map[ast.Node]bool) {
	if node == nil || isNilNode(node) {
		return
	}
	if seen[node] {
		return
	}
	seen[node] = true
	if !visit(node) {
		return
	}
	for _, child := range children(node) {
		walk(child, visit, seen)
	}
}

// children returns the direct AST-node children of node, in source order.
func children(node ast.Node) []ast.Node {
	switch n := node.(type) {
	case *ast.SimpleSelect:
		var out []ast.Node
		if n.With != nil {
			for _, cte := range n.With.CTEs {
				out = append(out, cte.Query)
			}
		}
		for _, c := range n.Columns {
			out = append(out, c)
		}
		if n.From != nil {
			out = append(out, n.From)
		}
		if n.Where != nil {
			out = append(out, n.Where)
		}
		for _, e := range n.GroupBy {
			out = append(out, e)
		}
		if n.Having != nil {
			out = append(out, n.Having)
		}
		for _, ob := range n.OrderBy {
			out = append(out, ob.Expr)
		}
		if n.Limit != nil {
			if n.Limit.Count != nil {
				out = append(out, n.Limit.Count)
			}
			if n.Limit.Offset != nil {
				out = append(out, n.Limit.Offset)
			}
		}
		return out

	case *ast.BinarySelect:
		out := []ast.Node{n.Left, n.Right}
		for _, ob := range n.OrderBy {
			out = append(out, ob.Expr)
		}
		return out

	case *ast.ValuesQuery:
		var out []ast.Node
		for _, row := range n.Rows {
			for _, v := range row {
				out = append(out, v)
			}
		}
		return out

	case *ast.DeleteQuery:
		var out []ast.Node
		if n.With != nil {
			for _, cte := range n.With.CTEs {
				out = append(out, cte.Query)
			}
		}
		if n.Table != nil {
			out = append(out, n.Table)
		}
		if n.Using != nil {
			out = append(out, n.Using)
		}
		if n.Where != nil {
			out = append(out, n.Where)
		}
		for _, se := range n.Returning {
			out = append(out, se)
		}
		return out

	case *ast.MergeQuery:
		out := []ast.Node{n.Target}
		if n.Source != nil {
			out = append(out, n.Source)
		}
		if n.On != nil {
			out = append(out, n.On)
		}
		for _, w := range n.Whens {
			if w.Condition != nil {
				out = append(out, w.Condition)
			}
			for _, ue := range w.Action.Set {
				out = append(out, ue.Column, ue.Expr)
			}
			for _, v := range w.Action.Values {
				out = append(out, v)
			}
		}
		return out

	case *ast.BinaryExpr:
		return []ast.Node{n.Left, n.Right}
	case *ast.UnaryExpr:
		return []ast.Node{n.Operand}
	case *ast.ParenExpr:
		return []ast.Node{n.Expr}
	case *ast.FuncExpr:
		var out []ast.Node
		for _, a := range n.Args {
			out = append(out, a)
		}
		if n.Filter != nil {
			out = append(out, n.Filter)
		}
		if n.Over != nil {
			for _, pb := range n.Over.PartitionBy {
				out = append(out, pb)
			}
			for _, ob := range n.Over.OrderBy {
				out = append(out, ob.Expr)
			}
		}
		return out
	case *ast.CastExpr:
		return []ast.Node{n.Expr}
	case *ast.CaseExpr:
		var out []ast.Node
		if n.Operand != nil {
			out = append(out, n.Operand)
		}
		for _, w := range n.Whens {
			out = append(out, w.Cond, w.Result)
		}
		if n.Else != nil {
			out = append(out, n.Else)
		}
		return out
	case *ast.ListExpr:
		var out []ast.Node
		for _, i := range n.Items {
			out = append(out, i)
		}
		return out
	case *ast.InExpr:
		out := []ast.Node{n.Expr}
		if n.List != nil {
			out = append(out, n.List)
		}
		if n.Select != nil {
			out = append(out, n.Select)
		}
		return out
	case *ast.BetweenExpr:
		return []ast.Node{n.Expr, n.Low, n.High}
	case *ast.LikeExpr:
		out := []ast.Node{n.Expr, n.Pattern}
		if n.Escape != nil {
			out = append(out, n.Escape)
		}
		return out
	case *ast.IsExpr:
		return []ast.Node{n.Expr}
	case *ast.Subquery:
		return []ast.Node{n.Query}
	case *ast.ExistsExpr:
		return []ast.Node{n.Subquery}
	case *ast.ArrayExpr:
		var out []ast.Node
		for _, e := range n.Elements {
			out = append(out, e)
		}
		return out
	case *ast.NormalizedExpr:
		return []ast.Node{n.Expr}
	case *ast.AliasedExpr:
		return []ast.Node{n.Expr}
	case *ast.AliasedTableExpr:
		return []ast.Node{n.Expr}
	case *ast.JoinExpr:
		out := []ast.Node{n.Left, n.Right}
		if n.On != nil {
			out = append(out, n.On)
		}
		return out
	case *ast.ParenTableExpr:
		return []ast.Node{n.Expr}
	case *ast.TableList:
		var out []ast.Node
		for _, t := range n.Tables {
			out = append(out, t)
		}
		return out
	default:
		return nil
	}
}

// isNilNode reports whether node wraps a nil pointer of its concrete
// type (a common source of spurious non-nil interface values when a
// struct field of a Node-typed interface is left unset).
func isNilNode(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.SimpleSelect:
		return n == nil
	case *ast.BinarySelect:
		return n == nil
	case *ast.ValuesQuery:
		return n == nil
	case *ast.DeleteQuery:
		return n == nil
	case *ast.MergeQuery:
		return n == nil
	case *ast.Subquery:
		return n == nil
	}
	return false
}
