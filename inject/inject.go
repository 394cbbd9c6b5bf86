package inject

import (
	"fmt"

	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/resolve"
	"github.com/mk3008/rawsql-go/token"
)

// Options configures Inject, forwarded straight through to the
// FindUpstream pass that locates each condition's originating SELECT.
type Options struct {
	Resolver                resolve.SchemaResolver
	IgnoreCaseAndUnderscore bool
}

// leaf is one flattened ColumnCondition, annotated with the parameter
// name prefix accumulated from any enclosing AndCondition nesting.
type leaf struct {
	column string
	ops    []Op
	prefix string
}

// Inject rewrites q so that every upstream SELECT which originates a
// named column receives an additional WHERE conjunct for that column's
// condition (§4.7). A nil opts.Resolver means wildcard select-items
// never satisfy a requested column (resolve's opaque-empty default).
func Inject(q ast.Query, conditions []Condition, opts Options) (ast.Query, error) {
	leaves, err := flatten(conditions, "")
	if err != nil {
		return nil, err
	}

	findOpts := FindOptions{Resolver: opts.Resolver, IgnoreCaseAndUnderscore: opts.IgnoreCaseAndUnderscore}

	for _, lf := range leaves {
		matches := FindUpstream(q, []string{lf.column}, findOpts)
		if len(matches) == 0 {
			return nil, newError(ErrColumnNotFound, lf.column, "")
		}
		for _, m := range matches {
			src := m.Sources[lf.column]
			pred, err := buildPredicate(src, lf)
			if err != nil {
				return nil, err
			}
			m.Select.Where = and(m.Select.Where, pred)
		}
	}
	return q, nil
}

// flatten walks the Condition tree into one leaf per ColumnCondition,
// threading the `_and_<i>` parameter-name suffix that a composite
// AndCondition contributes to every descendant reached through it.
func flatten(conds []Condition, prefix string) ([]leaf, error) {
	var out []leaf
	for _, c := range conds {
		switch n := c.(type) {
		case *ColumnCondition:
			out = append(out, leaf{column: n.Column, ops: n.Ops, prefix: prefix})
		case *AndCondition:
			for i, inner := range n.Conditions {
				sub, err := flatten([]Condition{inner}, fmt.Sprintf("%s_and_%d", prefix, i))
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			}
		default:
			return nil, fmt.Errorf("inject: unrecognized condition type %T", c)
		}
	}
	return out, nil
}

// buildPredicate renders lf's operators against src, ANDing multiple
// operators on the same column (e.g. min+max) and wrapping that group
// in parentheses once there's more than one.
func buildPredicate(src ast.Expr, lf leaf) (ast.Expr, error) {
	var exprs []ast.Expr
	for _, op := range lf.ops {
		e, err := buildOp(src, lf.column, lf.prefix, op)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	result := exprs[0]
	for _, e := range exprs[1:] {
		result = &ast.BinaryExpr{Op: token.AND, Left: result, Right: e}
	}
	if len(exprs) > 1 {
		result = &ast.ParenExpr{Expr: result}
	}
	return result, nil
}

func buildOp(src ast.Expr, column, prefix string, op Op) (ast.Expr, error) {
	switch op.Kind {
	case OpEq:
		return cmp(src, token.EQ, namedParam(column, prefix, "", op.Value)), nil
	case OpNeq:
		return cmp(src, token.NEQ, namedParam(column, prefix, "neq", op.Value)), nil
	case OpLt:
		return cmp(src, token.LT, namedParam(column, prefix, "lt", op.Value)), nil
	case OpGt:
		return cmp(src, token.GT, namedParam(column, prefix, "gt", op.Value)), nil
	case OpLte:
		return cmp(src, token.LTE, namedParam(column, prefix, "lte", op.Value)), nil
	case OpGte:
		return cmp(src, token.GTE, namedParam(column, prefix, "gte", op.Value)), nil
	case OpMin:
		return cmp(src, token.GTE, namedParam(column, prefix, "min", op.Value)), nil
	case OpMax:
		return cmp(src, token.LTE, namedParam(column, prefix, "max", op.Value)), nil
	case OpLike:
		return &ast.LikeExpr{Expr: src, Pattern: namedParam(column, prefix, "like", op.Value)}, nil
	case OpILike:
		return &ast.LikeExpr{Expr: src, Pattern: namedParam(column, prefix, "ilike", op.Value), ILike: true}, nil
	case OpAny:
		param := namedParam(column, prefix, "any", op.Value)
		return &ast.BinaryExpr{Op: token.EQ, Left: src, Right: &ast.FuncExpr{Name: "ANY", Args: []ast.Expr{param}}}, nil
	case OpIn:
		items := make([]ast.Expr, len(op.In))
		for i, v := range op.In {
			items[i] = namedParam(column, prefix, fmt.Sprintf("in_%d", i), v)
		}
		return &ast.InExpr{Expr: src, List: &ast.ListExpr{Items: items}}, nil
	default:
		return nil, newError(ErrUnsupportedOperator, column, fmt.Sprintf("opkind(%d)", op.Kind))
	}
}

func cmp(left ast.Expr, op token.Kind, right ast.Expr) ast.Expr {
	return &ast.BinaryExpr{Op: op, Left: left, Right: right}
}

// namedParam builds the :name bind parameter for one operator, e.g.
// price_min, article_name_like, or plain price for bare equality.
// prefix carries any `_and_<i>` segments an enclosing AndCondition adds.
func namedParam(column, prefix, suffix string, value *ast.ParamValue) *ast.Param {
	name := column + prefix
	if suffix != "" {
		name += "_" + suffix
	}
	return &ast.Param{Type: ast.ParamNamed, Name: name, Value: value}
}

func and(existing ast.Expr, add ast.Expr) ast.Expr {
	if existing == nil {
		return add
	}
	return &ast.BinaryExpr{Op: token.AND, Left: existing, Right: add}
}
