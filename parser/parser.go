// Package parser provides a recursive descent SQL parser that turns a
// token stream into the ast.Query sum type (SimpleSelect, BinarySelect,
// ValuesQuery, DeleteQuery, MergeQuery).
package parser

import (
	"fmt"
	"strconv"

	"github.com/juju/errors"

	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/lexer"
	"github.com/mk3008/rawsql-go/token"
)

// Parser is a recursive descent SQL parser.
type Parser struct {
	lexer  *lexer.Lexer
	errors []ParseError
	cur    token.Item // current token
}

// ParseError represents a parse error with position and, where known,
// the set of token kinds that would have been accepted instead. cause
// carries the juju/errors-annotated trace; ErrorStack returns the full
// multi-line trace for diagnostics, Error() stays one line for logs.
type ParseError struct {
	Pos      token.Pos
	Message  string
	Expected []token.Kind
	cause    error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// ErrorStack returns the juju/errors multi-frame trace for this error.
func (e ParseError) ErrorStack() string {
	if e.cause == nil {
		return e.Error()
	}
	return errors.ErrorStack(e.cause)
}

// New creates a new parser for the given input.
func New(input string) *Parser {
	p := &Parser{lexer: lexer.New(input)}
	p.advance() // prime the first token
	return p
}

// Parse parses a single query. Trailing semicolons and comments after
// the query are tolerated; anything else left unconsumed is an error.
func (p *Parser) Parse() (ast.Query, error) {
	if p.curIs(token.EOF) {
		return nil, nil
	}
	q := p.parseQuery()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	for p.curIs(token.SEMICOLON) {
		p.advance()
	}
	if !p.curIs(token.EOF) {
		p.errorf("unexpected token %v after query", p.cur.Kind)
		return nil, p.errors[0]
	}
	return q, nil
}

// ParseAll parses every query in the input, separated by semicolons.
func (p *Parser) ParseAll() ([]ast.Query, error) {
	var queries []ast.Query
	for !p.curIs(token.EOF) {
		if p.curIs(token.EOF) {
			break
		}
		q := p.parseQuery()
		if q != nil {
			queries = append(queries, q)
		}
		for p.curIs(token.SEMICOLON) {
			p.advance()
		}
	}
	if len(p.errors) > 0 {
		return queries, p.errors[0]
	}
	return queries, nil
}

// Token navigation helpers

func (p *Parser) advance() {
	p.cur = p.lexer.Next()
}

func (p *Parser) curIs(k token.Kind) bool {
	return p.cur.Kind == k
}

// curIsIdent reports whether the current token can stand in as an
// identifier (a bare IDENT, or a keyword used loosely as a name).
func (p *Parser) curIsIdent() bool {
	return p.cur.Kind == token.IDENT || p.cur.Kind.IsKeyword()
}

func (p *Parser) curIdentValue() string {
	return p.cur.Value
}

func (p *Parser) expect(k token.Kind) bool {
	if p.curIs(k) {
		p.advance()
		return true
	}
	p.errorf("expected %v, got %v", k, p.cur.Kind)
	p.errors[len(p.errors)-1].Expected = []token.Kind{k}
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	cause := errors.Annotatef(errors.New(msg), "parse error at %d:%d", p.cur.Pos.Line, p.cur.Pos.Column)
	p.errors = append(p.errors, ParseError{
		Pos:     p.cur.Pos,
		Message: msg,
		cause:   cause,
	})
}

// parseQuery dispatches to the appropriate top-level query parser and
// folds in any UNION/INTERSECT/EXCEPT suffix.
func (p *Parser) parseQuery() ast.Query {
	q := p.parseQueryPrimary()
	if q == nil {
		return nil
	}
	for p.curIs(token.UNION) || p.curIs(token.INTERSECT) || p.curIs(token.EXCEPT) {
		q = p.parseBinarySelect(q)
	}
	return q
}

func (p *Parser) parseQueryPrimary() ast.Query {
	switch p.cur.Kind {
	case token.SELECT:
		return p.parseSelect()
	case token.WITH:
		return p.parseWith()
	case token.DELETE:
		return p.parseDelete()
	case token.MERGE:
		return p.parseMerge()
	case token.VALUES:
		return p.parseValuesQuery()
	case token.LPAREN:
		return p.parseParenthesizedQuery()
	default:
		p.errorf("unexpected token %v at start of query", p.cur.Kind)
		p.advance()
		return nil
	}
}

func (p *Parser) parseParenthesizedQuery() ast.Query {
	p.advance() // consume '('
	inner := p.parseQuery()
	if inner == nil {
		return nil
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	return inner
}

// parseWith handles a WITH clause and attaches it to the query that follows.
func (p *Parser) parseWith() ast.Query {
	comments := p.cur.Comments
	with := p.parseWithClause()

	switch p.cur.Kind {
	case token.SELECT:
		sel := p.parseSelect()
		if sel != nil {
			sel.With = with
			sel.Comments = append(comments, sel.Comments...)
		}
		return sel
	case token.DELETE:
		del := p.parseDelete()
		if del != nil {
			del.With = with
			del.Comments = append(comments, del.Comments...)
		}
		return del
	default:
		p.errorf("expected SELECT or DELETE after WITH")
		return nil
	}
}

func (p *Parser) parseWithClause() *ast.WithClause {
	p.advance() // consume WITH

	with := &ast.WithClause{}
	if p.curIs(token.RECURSIVE) {
		with.Recursive = true
		p.advance()
	}

	for {
		cte := p.parseCTE()
		if cte != nil {
			with.CTEs = append(with.CTEs, cte)
		}
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	return with
}

func (p *Parser) parseCTE() *ast.CTE {
	if !p.curIs(token.IDENT) {
		p.errorf("expected CTE name")
		return nil
	}

	cte := &ast.CTE{Name: p.cur.Value}
	p.advance()

	if p.curIs(token.LPAREN) {
		cte.Columns = p.parseColumnNameList()
	}

	if !p.expect(token.AS) {
		return nil
	}
	if !p.expect(token.LPAREN) {
		return nil
	}
	cte.Query = p.parseQuery()
	if !p.expect(token.RPAREN) {
		return nil
	}

	return cte
}

func (p *Parser) parseColumnNameList() []string {
	p.advance() // consume (

	var names []string
	for {
		if !p.curIs(token.IDENT) {
			break
		}
		names = append(names, p.cur.Value)
		p.advance()
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	p.expect(token.RPAREN)
	return names
}

func (p *Parser) parseTableName() *ast.TableName {
	if !p.curIsIdent() {
		p.errorf("expected table name")
		return nil
	}

	pos := p.cur.Pos
	comments := p.cur.Comments
	parts := []string{p.curIdentValue()}
	p.advance()

	for p.curIs(token.DOT) {
		p.advance()
		if !p.curIsIdent() {
			p.errorf("expected identifier after '.'")
			return nil
		}
		parts = append(parts, p.curIdentValue())
		p.advance()
	}

	tn := &ast.TableName{Parts: parts}
	tn.StartPos = pos
	tn.EndPos = p.cur.Pos
	tn.Comments = comments
	return tn
}

func isClauseKeyword(k token.Kind) bool {
	switch k {
	case token.FROM, token.WHERE, token.GROUP, token.HAVING, token.ORDER,
		token.LIMIT, token.OFFSET, token.UNION, token.INTERSECT, token.EXCEPT,
		token.ON, token.USING, token.JOIN, token.INNER,
		token.LEFT, token.RIGHT, token.FULL, token.CROSS, token.NATURAL,
		token.AND, token.OR, token.THEN, token.ELSE, token.END, token.WHEN,
		token.AS, token.SET, token.WINDOW, token.FILTER, token.RETURNING:
		return true
	default:
		return false
	}
}

func parseInt(s string) int {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	if n > int64(int(^uint(0)>>1)) {
		return int(^uint(0) >> 1)
	}
	if n < int64(-int(^uint(0)>>1)-1) {
		return -int(^uint(0)>>1) - 1
	}
	return int(n)
}
