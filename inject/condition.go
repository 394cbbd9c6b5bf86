// Package inject finds the inner SELECT nodes that originate a named
// column (through CTEs, subqueries, and UNION branches) and rewrites
// those SELECTs to add a bound WHERE condition, so a caller can filter
// on a column the outer query doesn't itself expose. Grounded fresh on
// spec.md §4.7 — the teacher has no equivalent pass — reusing the
// walker package's traversal and resolve's identifier folding rather
// than reimplementing either.
package inject

import (
	"fmt"
	"sort"

	"github.com/juju/errors"

	"github.com/mk3008/rawsql-go/ast"
)

// OpKind is the closed set of condition operators (§4.7's "explicit
// operator object" key set), represented as a Go enum rather than a
// string-keyed map so every legal operator is known at compile time.
type OpKind int

const (
	OpEq OpKind = iota
	OpNeq
	OpLt
	OpGt
	OpLte
	OpGte
	OpIn
	OpAny
	OpLike
	OpILike
	OpMin
	OpMax
)

// Op is one operator applied to a column: a scalar value for
// comparison/like operators, a value list for OpIn.
type Op struct {
	Kind  OpKind
	Value *ast.ParamValue
	In    []*ast.ParamValue
}

// Condition is the closed sum type of the condition grammar: a single
// column's operator set, or a composite conjunction of sub-conditions.
type Condition interface {
	conditionNode()
}

// ColumnCondition names one column and the (possibly several, e.g.
// min+max) operators applied to it — each becomes its own comparison,
// conjoined.
type ColumnCondition struct {
	Column string
	Ops    []Op
}

func (*ColumnCondition) conditionNode() {}

// Eq is the scalar-equality shorthand: `{col: value}` → `col = :col`.
func Eq(column string, value *ast.ParamValue) *ColumnCondition {
	return &ColumnCondition{Column: column, Ops: []Op{{Kind: OpEq, Value: value}}}
}

// AndCondition groups sub-conditions conjunctively; parameter names
// emitted from its children are suffixed by the child's position
// (`..._and_<i>_...`) so two conditions on the same column inside one
// And don't collide.
type AndCondition struct {
	Conditions []Condition
}

func (*AndCondition) conditionNode() {}

// ErrorKind enumerates InjectError failure modes (§7).
type ErrorKind int

const (
	ErrColumnNotFound ErrorKind = iota
	ErrUnsupportedOperator
)

// Error is the InjectError of the error taxonomy.
type Error struct {
	Kind   ErrorKind
	Column string
	Key    string
	cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrColumnNotFound:
		return "inject: column not found: " + e.Column
	case ErrUnsupportedOperator:
		return fmt.Sprintf("inject: unsupported operator %q for column %s", e.Key, e.Column)
	default:
		return "inject: error"
	}
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, column, key string) *Error {
	e := &Error{Kind: kind, Column: column, Key: key}
	e.cause = errors.Annotatef(errors.New(e.Error()), "inject")
	return e
}

// operatorKeys maps the operator object's recognized keys (§4.7) onto
// OpKind, for callers building conditions from a loosely-typed bundle
// (e.g. decoded JSON/YAML) rather than constructing Op values directly.
var operatorKeys = map[string]OpKind{
	"=": OpEq, "eq": OpEq,
	"!=": OpNeq, "<>": OpNeq, "neq": OpNeq,
	"<": OpLt, "lt": OpLt,
	">": OpGt, "gt": OpGt,
	"<=": OpLte, "lte": OpLte,
	">=": OpGte, "gte": OpGte,
	"in":    OpIn,
	"any":   OpAny,
	"like":  OpLike,
	"ilike": OpILike,
	"min":   OpMin,
	"max":   OpMax,
}

// opKindOrder is §4.7's canonical operator sequence (`=, !=, <>, <, >,
// <=, >=, in, any, like, ilike, min, max`): the fixed order
// ColumnConditionFromMap must build Ops in, since Go map iteration
// itself carries no ordering guarantee and a multi-operator condition
// (e.g. {min, max}) would otherwise render its AND-joined predicate in
// a different order on every run, breaking §5's determinism guarantee.
var opKindOrder = []OpKind{
	OpEq, OpNeq, OpLt, OpGt, OpLte, OpGte, OpIn, OpAny, OpLike, OpILike, OpMin, OpMax,
}

// keysByKind groups operatorKeys' synonyms under their OpKind, in the
// same fixed sub-order, so a raw map using a synonym (e.g. "lt" instead
// of "<") still resolves deterministically.
var keysByKind = map[OpKind][]string{
	OpEq:    {"=", "eq"},
	OpNeq:   {"!=", "<>", "neq"},
	OpLt:    {"<", "lt"},
	OpGt:    {">", "gt"},
	OpLte:   {"<=", "lte"},
	OpGte:   {">=", "gte"},
	OpIn:    {"in"},
	OpAny:   {"any"},
	OpLike:  {"like"},
	OpILike: {"ilike"},
	OpMin:   {"min"},
	OpMax:   {"max"},
}

// ColumnConditionFromMap builds a ColumnCondition from a raw operator
// object such as `{min: 10, max: 100}`, validating every key against
// the closed operator set and raising ErrUnsupportedOperator on the
// first one that isn't recognized — the boundary check the redesign
// note asks for when a condition bundle originates outside the
// process as a dynamically-typed map. Ops are appended in opKindOrder
// rather than raw's iteration order so the same input always yields
// the same predicate text.
func ColumnConditionFromMap(column string, raw map[string]*ast.ParamValue) (*ColumnCondition, error) {
	var unknown []string
	for key := range raw {
		if _, ok := operatorKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, newError(ErrUnsupportedOperator, column, unknown[0])
	}

	cc := &ColumnCondition{Column: column}
	for _, kind := range opKindOrder {
		for _, key := range keysByKind[kind] {
			val, ok := raw[key]
			if !ok {
				continue
			}
			if kind == OpIn && val != nil && val.Kind == ast.ParamValueArray {
				cc.Ops = append(cc.Ops, Op{Kind: kind, In: val.Array})
				continue
			}
			cc.Ops = append(cc.Ops, Op{Kind: kind, Value: val})
		}
	}
	return cc, nil
}
