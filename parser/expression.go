package parser

import (
	"strconv"
	"strings"

	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/token"
)

// Operator precedence levels (higher binds tighter).
const (
	precLowest     = 0
	precOr         = 1
	precAnd        = 2
	precNot        = 3
	precComparison = 4 // =, <>, <, >, <=, >=, IS, LIKE, IN, BETWEEN
	precBitOr      = 5
	precBitXor     = 6
	precBitAnd     = 7
	precShift      = 8
	precAdditive   = 9 // +, -, ||
	precMultiply   = 10
	precUnary      = 11
)

func precedence(k token.Kind) int {
	switch k {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE:
		return precComparison
	case token.BITOR:
		return precBitOr
	case token.BITXOR:
		return precBitXor
	case token.BITAND:
		return precBitAnd
	case token.LSHIFT, token.RSHIFT:
		return precShift
	case token.PLUS, token.MINUS, token.CONCAT:
		return precAdditive
	case token.ASTERISK, token.SLASH, token.PERCENT:
		return precMultiply
	default:
		return precLowest
	}
}

func isBinaryOp(k token.Kind) bool {
	switch k {
	case token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT,
		token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE,
		token.AND, token.OR,
		token.BITAND, token.BITOR, token.BITXOR, token.LSHIFT, token.RSHIFT,
		token.CONCAT:
		return true
	default:
		return false
	}
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parseExprPrec(precLowest)
}

func (p *Parser) parseExprPrec(minPrec int) ast.Expr {
	left := p.parsePrimaryExpr()
	if left == nil {
		return nil
	}

	for {
		if minPrec <= precComparison && p.curIs(token.IS) {
			left = p.parseIsExpr(left)
			continue
		}
		if minPrec <= precComparison && p.curIs(token.IN) {
			left = p.parseInExpr(left, false)
			continue
		}
		if minPrec <= precComparison && p.curIs(token.NOT) {
			switch p.peekKind() {
			case token.IN:
				p.advance()
				left = p.parseInExpr(left, true)
				continue
			case token.BETWEEN:
				p.advance()
				left = p.parseBetweenExpr(left, true)
				continue
			case token.LIKE, token.ILIKE:
				p.advance()
				left = p.parseLikeExpr(left, true)
				continue
			}
		}
		if minPrec <= precComparison && p.curIs(token.BETWEEN) {
			left = p.parseBetweenExpr(left, false)
			continue
		}
		if minPrec <= precComparison && (p.curIs(token.LIKE) || p.curIs(token.ILIKE)) {
			left = p.parseLikeExpr(left, false)
			continue
		}
		if p.curIs(token.DCOLON) {
			left = p.parsePostgresCast(left)
			continue
		}

		op := p.cur.Kind
		prec := precedence(op)
		if prec < minPrec || !isBinaryOp(op) {
			break
		}

		pos := p.cur.Pos
		p.advance()

		right := p.parseExprPrec(prec + 1)
		if right == nil {
			return nil
		}

		bin := &ast.BinaryExpr{Op: op, Left: left, Right: right}
		bin.StartPos = pos
		bin.EndPos = p.cur.Pos
		left = bin
	}

	return left
}

// peekKind looks one token ahead without consuming the current one. The
// lexer has no lookahead buffer of its own, so this snapshots and
// restores lexer position around a single extra Next call.
func (p *Parser) peekKind() token.Kind {
	snapshot := *p.lexer
	next := p.lexer.Next()
	*p.lexer = snapshot
	return next.Kind
}

func (p *Parser) parsePrimaryExpr() ast.Expr {
	switch p.cur.Kind {
	case token.INT:
		return p.parseLiteral(ast.LiteralInt)
	case token.FLOAT:
		return p.parseLiteral(ast.LiteralFloat)
	case token.STRING:
		return p.parseLiteral(ast.LiteralString)
	case token.NULL:
		return p.parseKeywordLiteral(ast.LiteralNull, "NULL")
	case token.TRUE:
		return p.parseKeywordLiteral(ast.LiteralBool, "TRUE")
	case token.FALSE:
		return p.parseKeywordLiteral(ast.LiteralBool, "FALSE")
	case token.DEFAULT:
		return p.parseKeywordLiteral(ast.LiteralNull, "DEFAULT")
	case token.IDENT:
		return p.parseIdentifierOrFunc()
	case token.PARAM:
		return p.parseParam()
	case token.LPAREN:
		return p.parseParenOrSubquery()
	case token.NOT:
		return p.parseUnary(token.NOT, precNot)
	case token.MINUS:
		return p.parseUnary(token.MINUS, precUnary)
	case token.BITNOT:
		return p.parseUnary(token.BITNOT, precUnary)
	case token.EXISTS:
		return p.parseExistsExpr()
	case token.CASE:
		return p.parseCaseExpr()
	case token.CAST:
		return p.parseCastExpr()
	case token.ASTERISK:
		pos := p.cur.Pos
		comments := p.cur.Comments
		p.advance()
		star := &ast.StarExpr{}
		star.StartPos, star.EndPos = pos, pos
		star.Comments = comments
		return star
	case token.NORMALIZED:
		return p.parseNormalizedExpr()
	case token.CURRENT_DATE, token.CURRENT_TIME, token.CURRENT_TIMESTAMP,
		token.LOCALTIME, token.LOCALTIMESTAMP:
		return p.parseNiladicDatetimeKeyword()
	default:
		if p.cur.Kind.IsKeyword() {
			return p.parseIdentifierOrFunc()
		}
		p.errorf("unexpected token %v in expression", p.cur.Kind)
		return nil
	}
}

func (p *Parser) parseLiteral(litType ast.LiteralType) *ast.Literal {
	lit := &ast.Literal{Type: litType, Value: p.cur.Value, Specifier: p.cur.Specifier}
	lit.StartPos, lit.EndPos = p.cur.Pos, p.cur.Pos
	lit.Comments = p.cur.Comments
	p.advance()
	return lit
}

func (p *Parser) parseKeywordLiteral(litType ast.LiteralType, text string) *ast.Literal {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance()
	lit := &ast.Literal{Type: litType, Value: text}
	lit.StartPos, lit.EndPos = pos, pos
	lit.Comments = comments
	return lit
}

// parseNiladicDatetimeKeyword handles CURRENT_DATE/CURRENT_TIME/
// CURRENT_TIMESTAMP/LOCALTIME/LOCALTIMESTAMP, the parenthesis-free
// datetime keywords, as bare identifiers so the printer round-trips
// them verbatim without inventing call syntax for them.
func (p *Parser) parseNiladicDatetimeKeyword() *ast.ColName {
	pos := p.cur.Pos
	comments := p.cur.Comments
	text := p.cur.Kind.String()
	p.advance()
	col := &ast.ColName{Parts: []string{text}}
	col.StartPos, col.EndPos = pos, pos
	col.Comments = comments
	return col
}

func (p *Parser) parseNormalizedExpr() *ast.NormalizedExpr {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance() // consume NORMALIZED

	form := ""
	switch p.cur.Kind {
	case token.NFC, token.NFD, token.NFKC, token.NFKD:
		form = p.cur.Kind.String()
		p.advance()
	}

	expr := p.parseExprPrec(precUnary)
	n := &ast.NormalizedExpr{Form: form, Expr: expr}
	n.StartPos = pos
	n.EndPos = p.cur.Pos
	n.Comments = comments
	return n
}

func (p *Parser) parseIdentifierOrFunc() ast.Expr {
	pos := p.cur.Pos
	comments := p.cur.Comments
	name := p.cur.Value
	p.advance()

	if p.curIs(token.LPAREN) {
		return p.parseFuncCall(pos, comments, name)
	}

	parts := []string{name}
	endPos := pos

	for p.curIs(token.DOT) {
		p.advance()

		if p.curIs(token.ASTERISK) {
			endPos = p.cur.Pos
			p.advance()
			star := &ast.StarExpr{TableName: parts[len(parts)-1], HasQualifier: true}
			star.StartPos, star.EndPos = pos, endPos
			star.Comments = comments
			return star
		}

		if !p.curIs(token.IDENT) && !p.cur.Kind.IsKeyword() {
			p.errorf("expected identifier after '.'")
			return nil
		}

		parts = append(parts, p.cur.Value)
		endPos = p.cur.Pos
		p.advance()
	}

	col := &ast.ColName{Parts: parts}
	col.StartPos, col.EndPos = pos, endPos
	col.Comments = comments
	return col
}

func (p *Parser) parseFuncCall(pos token.Pos, comments []token.Comment, name string) *ast.FuncExpr {
	p.advance() // consume '('

	fn := &ast.FuncExpr{Name: strings.ToUpper(name)}
	fn.StartPos = pos
	fn.Comments = comments

	if p.curIs(token.DISTINCT) {
		fn.Distinct = true
		p.advance()
	}

	if !p.curIs(token.RPAREN) {
		if p.curIs(token.ASTERISK) {
			star := &ast.StarExpr{}
			star.StartPos, star.EndPos = p.cur.Pos, p.cur.Pos
			fn.Args = append(fn.Args, star)
			p.advance()
		} else {
			for {
				arg := p.parseExpr()
				if arg == nil {
					break
				}
				fn.Args = append(fn.Args, arg)
				if !p.curIs(token.COMMA) {
					break
				}
				p.advance()
			}
		}
	}

	if !p.expect(token.RPAREN) {
		return nil
	}
	fn.EndPos = p.cur.Pos

	if p.curIs(token.FILTER) {
		p.advance()
		if !p.expect(token.LPAREN) {
			return nil
		}
		if !p.expect(token.WHERE) {
			return nil
		}
		fn.Filter = p.parseExpr()
		if !p.expect(token.RPAREN) {
			return nil
		}
	}

	if p.curIs(token.OVER) {
		fn.Over = p.parseWindowSpec()
	}

	return fn
}

func (p *Parser) parseWindowSpec() *ast.WindowSpec {
	p.advance() // consume OVER
	pos := p.cur.Pos

	spec := &ast.WindowSpec{}
	spec.StartPos = pos

	if p.curIs(token.IDENT) {
		spec.Name = p.cur.Value
		p.advance()
		spec.EndPos = p.cur.Pos
		return spec
	}

	if !p.expect(token.LPAREN) {
		return nil
	}

	if p.curIs(token.IDENT) {
		spec.Name = p.cur.Value
		p.advance()
	}

	if p.curIs(token.PARTITION) {
		p.advance()
		p.expect(token.BY)
		spec.PartitionBy = p.parseExprList()
	}

	if p.curIs(token.ORDER) {
		spec.OrderBy = p.parseOrderBy()
	}

	if p.curIs(token.ROWS) || p.curIs(token.RANGE) || p.curIs(token.GROUPS) {
		spec.Frame = p.parseWindowFrame()
	}

	p.expect(token.RPAREN)
	spec.EndPos = p.cur.Pos
	return spec
}

func (p *Parser) parseWindowFrame() *ast.WindowFrame {
	frame := &ast.WindowFrame{}

	switch p.cur.Kind {
	case token.ROWS:
		frame.Type = ast.FrameRows
	case token.RANGE:
		frame.Type = ast.FrameRange
	case token.GROUPS:
		frame.Type = ast.FrameGroups
	}
	p.advance()

	if p.curIs(token.BETWEEN) {
		p.advance()
		frame.Start = p.parseFrameBound()
		p.expect(token.AND)
		frame.End = p.parseFrameBound()
	} else {
		frame.Start = p.parseFrameBound()
	}

	return frame
}

func (p *Parser) parseFrameBound() *ast.FrameBound {
	bound := &ast.FrameBound{}

	if p.curIs(token.CURRENT) {
		p.advance()
		p.expect(token.ROW)
		bound.Type = ast.BoundCurrentRow
	} else if p.curIs(token.UNBOUNDED) {
		p.advance()
		if p.curIs(token.PRECEDING) {
			p.advance()
			bound.Type = ast.BoundUnboundedPreceding
		} else if p.curIs(token.FOLLOWING) {
			p.advance()
			bound.Type = ast.BoundUnboundedFollowing
		}
	} else {
		bound.Offset = p.parseExpr()
		if p.curIs(token.PRECEDING) {
			p.advance()
			bound.Type = ast.BoundPreceding
		} else if p.curIs(token.FOLLOWING) {
			p.advance()
			bound.Type = ast.BoundFollowing
		}
	}

	return bound
}

func (p *Parser) parseParam() *ast.Param {
	param := &ast.Param{}
	param.StartPos, param.EndPos = p.cur.Pos, p.cur.Pos
	param.Comments = p.cur.Comments

	val := p.cur.Value
	switch {
	case val == "?":
		param.Type = ast.ParamAnonymous
	case strings.HasPrefix(val, "$"):
		param.Type = ast.ParamPositional
		param.Index, _ = strconv.Atoi(val[1:])
	case strings.HasPrefix(val, ":"):
		param.Type = ast.ParamNamed
		param.Name = val[1:]
	}

	p.advance()
	return param
}

func (p *Parser) parseParenOrSubquery() ast.Expr {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance() // consume '('

	if p.curIs(token.SELECT) || p.curIs(token.WITH) || p.curIs(token.VALUES) {
		q := p.parseQuery()
		if q == nil {
			return nil
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
		sq := &ast.Subquery{Query: q}
		sq.StartPos, sq.EndPos = pos, p.cur.Pos
		sq.Comments = comments
		return sq
	}

	expr := p.parseExpr()
	if !p.expect(token.RPAREN) {
		return nil
	}
	pe := &ast.ParenExpr{Expr: expr}
	pe.StartPos, pe.EndPos = pos, p.cur.Pos
	pe.Comments = comments
	return pe
}

func (p *Parser) parseUnary(op token.Kind, prec int) *ast.UnaryExpr {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance()
	u := &ast.UnaryExpr{Op: op, Operand: p.parseExprPrec(prec)}
	u.StartPos = pos
	u.Comments = comments
	if u.Operand != nil {
		u.EndPos = u.Operand.End()
	}
	return u
}

func (p *Parser) parseExistsExpr() *ast.ExistsExpr {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance() // consume EXISTS

	if !p.expect(token.LPAREN) {
		return nil
	}

	q := p.parseQuery()
	if q == nil {
		p.errorf("expected query in EXISTS subquery")
		return nil
	}

	if !p.expect(token.RPAREN) {
		return nil
	}

	sq := &ast.Subquery{Query: q}
	ex := &ast.ExistsExpr{Subquery: sq}
	ex.StartPos = pos
	ex.EndPos = p.cur.Pos
	ex.Comments = comments
	return ex
}

func (p *Parser) parseCaseExpr() *ast.CaseExpr {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance() // consume CASE

	ce := &ast.CaseExpr{}
	ce.StartPos = pos
	ce.Comments = comments

	if !p.curIs(token.WHEN) {
		ce.Operand = p.parseExpr()
	}

	for p.curIs(token.WHEN) {
		p.advance()
		cond := p.parseExpr()
		if !p.expect(token.THEN) {
			return nil
		}
		result := p.parseExpr()
		ce.Whens = append(ce.Whens, &ast.When{Cond: cond, Result: result})
	}

	if p.curIs(token.ELSE) {
		p.advance()
		ce.Else = p.parseExpr()
	}

	if !p.expect(token.END) {
		return nil
	}

	ce.EndPos = p.cur.Pos
	return ce
}

func (p *Parser) parseCastExpr() *ast.CastExpr {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance() // consume CAST

	if !p.expect(token.LPAREN) {
		return nil
	}

	expr := p.parseExpr()

	if !p.expect(token.AS) {
		return nil
	}

	dataType := p.parseTypeName()

	if !p.expect(token.RPAREN) {
		return nil
	}

	ce := &ast.CastExpr{Expr: expr, Type: dataType}
	ce.StartPos, ce.EndPos = pos, p.cur.Pos
	ce.Comments = comments
	return ce
}

func (p *Parser) parsePostgresCast(left ast.Expr) *ast.CastExpr {
	p.advance() // consume ::
	dataType := p.parseTypeName()

	ce := &ast.CastExpr{Expr: left, Type: dataType}
	ce.StartPos = left.Pos()
	ce.EndPos = p.cur.Pos
	return ce
}

// parseTypeName parses a type name, optionally parameterized
// (VARCHAR(255), NUMERIC(10,2)) and optionally an array suffix ([]).
func (p *Parser) parseTypeName() string {
	name := p.cur.Value
	if p.cur.Kind.IsKeyword() {
		name = strings.ToUpper(p.cur.Value)
	}
	p.advance()

	if p.curIs(token.LPAREN) {
		p.advance()
		name += "("
		first := true
		for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
			if !first {
				name += ","
			}
			name += p.cur.Value
			first = false
			p.advance()
			if p.curIs(token.COMMA) {
				p.advance()
			}
		}
		name += ")"
		p.expect(token.RPAREN)
	}

	for p.curIs(token.LBRACKET) {
		p.advance()
		p.expect(token.RBRACKET)
		name += "[]"
	}

	return name
}

func (p *Parser) parseIsExpr(left ast.Expr) *ast.IsExpr {
	pos := left.Pos()
	p.advance() // consume IS

	not := false
	if p.curIs(token.NOT) {
		not = true
		p.advance()
	}

	ie := &ast.IsExpr{Expr: left, Not: not}
	ie.StartPos = pos

	switch p.cur.Kind {
	case token.NULL:
		ie.What = ast.IsNull
	case token.TRUE:
		ie.What = ast.IsTrueVal
	case token.FALSE:
		ie.What = ast.IsFalseVal
	case token.UNKNOWN:
		ie.What = ast.IsUnknownVal
	default:
		p.errorf("expected NULL, TRUE, FALSE, or UNKNOWN after IS")
	}

	p.advance()
	ie.EndPos = p.cur.Pos
	return ie
}

func (p *Parser) parseInExpr(left ast.Expr, not bool) *ast.InExpr {
	pos := left.Pos()
	p.advance() // consume IN

	if !p.expect(token.LPAREN) {
		return nil
	}

	ie := &ast.InExpr{Expr: left, Not: not}
	ie.StartPos = pos

	if p.curIs(token.SELECT) || p.curIs(token.WITH) {
		q := p.parseQuery()
		if q == nil {
			return nil
		}
		sq := &ast.Subquery{Query: q}
		ie.Select = sq
	} else {
		list := &ast.ListExpr{}
		list.StartPos = p.cur.Pos
		for {
			val := p.parseExpr()
			if val == nil {
				break
			}
			list.Items = append(list.Items, val)
			if !p.curIs(token.COMMA) {
				break
			}
			p.advance()
		}
		list.EndPos = p.cur.Pos
		ie.List = list
	}

	if !p.expect(token.RPAREN) {
		return nil
	}

	ie.EndPos = p.cur.Pos
	return ie
}

func (p *Parser) parseBetweenExpr(left ast.Expr, not bool) *ast.BetweenExpr {
	pos := left.Pos()
	p.advance() // consume BETWEEN

	be := &ast.BetweenExpr{Expr: left, Not: not}
	be.StartPos = pos

	be.Low = p.parseExprPrec(precComparison + 1)

	if !p.expect(token.AND) {
		return nil
	}

	be.High = p.parseExprPrec(precComparison + 1)
	be.EndPos = p.cur.Pos
	return be
}

func (p *Parser) parseLikeExpr(left ast.Expr, not bool) *ast.LikeExpr {
	pos := left.Pos()
	ilike := p.curIs(token.ILIKE)
	p.advance() // consume LIKE/ILIKE

	le := &ast.LikeExpr{Expr: left, Not: not, ILike: ilike}
	le.StartPos = pos
	le.Pattern = p.parseExprPrec(precComparison + 1)

	le.EndPos = p.cur.Pos
	return le
}

func (p *Parser) parseExprList() []ast.Expr {
	var exprs []ast.Expr
	for {
		expr := p.parseExpr()
		if expr == nil {
			break
		}
		exprs = append(exprs, expr)
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}
	return exprs
}
