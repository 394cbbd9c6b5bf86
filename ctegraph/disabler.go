package ctegraph

import (
	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/walker"
)

// Disabler strips every WITH clause from a query at every nesting
// level, preserving the surrounding SELECT (§4.6). It is the
// CTEDisabler named in the stable library surface (§6), separate from
// the decomposer since "forget every CTE exists" and "describe a CTE's
// dependency shape" are different jobs. Disable takes no CTE name: it
// is unconditional, with no inlining of a stripped CTE's body into its
// former references.
type Disabler struct{}

// NewDisabler returns a Disabler. It carries no configuration — every
// call to Disable behaves identically regardless of the query given.
func NewDisabler() *Disabler {
	return &Disabler{}
}

// Disable returns q with every WithClause it contains, at any nesting
// level (including inside CTE bodies and subqueries), removed. The
// walker's rewrite is cycle-safe (§4.3) and recurses into every nested
// query — CTE bodies among them — before this rewriter's callback ever
// sees the node holding them, so a WITH buried inside another CTE's
// body is stripped along with the outermost one.
func (d *Disabler) Disable(q ast.Query) ast.Query {
	out := walker.Rewrite(q, func(node ast.Node) ast.Node {
		switch n := node.(type) {
		case *ast.SimpleSelect:
			n.With = nil
		case *ast.DeleteQuery:
			n.With = nil
		}
		return node
	})
	return out.(ast.Query)
}
