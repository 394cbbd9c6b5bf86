// Package ast defines the abstract syntax tree for SQL: a closed set of
// Query variants, clause types, and a ValueComponent expression sum
// type, each carrying any comments attached to its tokens.
package ast

import "github.com/mk3008/rawsql-go/token"

// Node is the base interface for all AST nodes.
type Node interface {
	Pos() token.Pos
	End() token.Pos
}

// Commentable is implemented by every concrete node through the
// embedded base struct, letting the printer read and extend a node's
// attached comments without a type switch over every variant.
type Commentable interface {
	CommentList() []token.Comment
	AppendComment(c token.Comment)
}

// Query is the sum type of top-level query shapes: SimpleSelect,
// BinarySelect, ValuesQuery, MergeQuery, DeleteQuery.
type Query interface {
	Node
	queryNode()
}

// Statement is an alias kept for the parser/printer's broader
// "anything parseable at the top level" vocabulary; every Query is a
// Statement.
type Statement interface {
	Node
	statementNode()
}

// Expr represents an expression.
type Expr interface {
	Node
	exprNode()
}

// ValueComponent is the sum type backing every scalar position in a
// query: literal, parameter, column reference, binary/unary operator,
// function call, CAST, CASE, subquery, list, or array. Every
// ValueComponent is also an Expr.
type ValueComponent interface {
	Expr
	valueComponentNode()
}

// TableExpr represents a table expression (in FROM/JOIN/USING clauses).
type TableExpr interface {
	Node
	tableExprNode()
}

// SelectExpr represents an item in the SELECT list.
type SelectExpr interface {
	Node
	selectExprNode()
}
