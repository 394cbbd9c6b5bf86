package parser

import (
	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/token"
)

func (p *Parser) parseSelect() *ast.SimpleSelect {
	pos := p.cur.Pos
	comments := p.cur.Comments
	if !p.expect(token.SELECT) {
		return nil
	}

	stmt := &ast.SimpleSelect{}
	stmt.StartPos = pos
	stmt.Comments = comments

	if p.curIs(token.DISTINCT) {
		stmt.Distinct = true
		p.advance()
	} else if p.curIs(token.ALL) {
		p.advance()
	}

	stmt.Columns = p.parseSelectExprs()

	if p.curIs(token.FROM) {
		p.advance()
		stmt.From = p.parseTableExpr()
	}

	if p.curIs(token.WHERE) {
		p.advance()
		stmt.Where = p.parseExpr()
	}

	if p.curIs(token.GROUP) {
		p.advance()
		if !p.expect(token.BY) {
			return nil
		}
		stmt.GroupBy = p.parseExprList()
	}

	if p.curIs(token.HAVING) {
		p.advance()
		stmt.Having = p.parseExpr()
	}

	if p.curIs(token.WINDOW) {
		stmt.WindowDefs = p.parseWindowDefs()
	}

	if p.curIs(token.ORDER) {
		stmt.OrderBy = p.parseOrderBy()
	}

	if p.curIs(token.LIMIT) {
		stmt.Limit = p.parseLimit()
	} else if p.curIs(token.OFFSET) {
		stmt.Limit = &ast.Limit{}
		p.advance()
		stmt.Limit.Offset = p.parseExpr()
	} else if p.curIs(token.FETCH) {
		stmt.Limit = &ast.Limit{}
		p.advance()
		if p.curIs(token.FIRST) || p.curIs(token.NEXT) {
			p.advance()
		}
		stmt.Limit.Count = p.parseExpr()
		if p.curIs(token.ROW) || p.curIs(token.ROWS) {
			p.advance()
		}
		if p.curIs(token.ONLY) {
			p.advance()
		}
	}

	stmt.EndPos = p.cur.Pos
	return stmt
}

// parseBinarySelect consumes one UNION/INTERSECT/EXCEPT [ALL] operator
// and its right-hand operand, wrapping left in a new BinarySelect.
// Left-associative chains fall out naturally: the caller re-enters this
// with the freshly built BinarySelect as the next left operand.
func (p *Parser) parseBinarySelect(left ast.Query) ast.Query {
	pos := p.cur.Pos
	comments := p.cur.Comments

	var setOp ast.SetOpType
	switch p.cur.Kind {
	case token.UNION:
		setOp = ast.SetOpUnion
	case token.INTERSECT:
		setOp = ast.SetOpIntersect
	case token.EXCEPT:
		setOp = ast.SetOpExcept
	}
	p.advance()

	all := false
	if p.curIs(token.ALL) {
		all = true
		p.advance()
	} else if p.curIs(token.DISTINCT) {
		p.advance()
	}

	right := p.parseQueryPrimary()
	if right == nil {
		return left
	}

	bs := &ast.BinarySelect{Type: setOp, All: all, Left: left, Right: right}
	bs.StartPos = pos
	bs.EndPos = p.cur.Pos
	bs.Comments = comments

	if p.curIs(token.ORDER) {
		bs.OrderBy = p.parseOrderBy()
	}
	if p.curIs(token.LIMIT) {
		bs.Limit = p.parseLimit()
	}

	return bs
}

func (p *Parser) parseSelectExprs() []ast.SelectExpr {
	var exprs []ast.SelectExpr
	for {
		expr := p.parseSelectExpr()
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

func (p *Parser) parseSelectExpr() ast.SelectExpr {
	pos := p.cur.Pos
	comments := p.cur.Comments

	if p.curIs(token.ASTERISK) {
		p.advance()
		star := &ast.StarExpr{}
		star.StartPos, star.EndPos = pos, pos
		star.Comments = comments
		return star
	}

	expr := p.parseExpr()
	if expr == nil {
		return nil
	}

	if star, ok := expr.(*ast.StarExpr); ok {
		return star
	}

	alias := ""
	if p.curIs(token.AS) {
		p.advance()
		if !p.curIs(token.IDENT) && !p.curIs(token.STRING) {
			p.errorf("expected alias after AS")
			return nil
		}
		alias = p.cur.Value
		p.advance()
	} else if p.curIs(token.IDENT) && !isClauseKeyword(p.cur.Kind) {
		alias = p.cur.Value
		p.advance()
	}

	ae := &ast.AliasedExpr{Expr: expr, Alias: alias}
	ae.StartPos = pos
	ae.EndPos = p.cur.Pos
	return ae
}

func (p *Parser) parseTableExpr() ast.TableExpr {
	left := p.parseTablePrimary()
	if left == nil {
		return nil
	}

	for {
		joinType, natural, hasJoin := p.checkJoinKeyword()
		if !hasJoin {
			break
		}

		join := &ast.JoinExpr{Type: joinType, Natural: natural, Left: left}
		join.StartPos = p.cur.Pos

		p.consumeJoinKeywords()

		if p.curIs(token.LATERAL) {
			join.Lateral = true
			p.advance()
		}

		join.Right = p.parseTablePrimary()

		if joinType != ast.JoinCross && !natural {
			if p.curIs(token.ON) {
				p.advance()
				join.On = p.parseExpr()
			} else if p.curIs(token.USING) {
				p.advance()
				join.Using = p.parseColumnNameList()
			}
		}

		join.EndPos = p.cur.Pos
		left = join
	}

	return left
}

func (p *Parser) parseTablePrimary() ast.TableExpr {
	var expr ast.TableExpr

	lateral := false
	if p.curIs(token.LATERAL) {
		lateral = true
		p.advance()
	}

	if p.curIs(token.LPAREN) {
		pos := p.cur.Pos
		p.advance()
		if p.curIs(token.SELECT) || p.curIs(token.WITH) || p.curIs(token.VALUES) {
			q := p.parseQuery()
			if q == nil {
				return nil
			}
			if !p.expect(token.RPAREN) {
				return nil
			}
			switch v := q.(type) {
			case *ast.SimpleSelect:
				expr = v
			case *ast.ValuesQuery:
				expr = v
			case *ast.BinarySelect:
				expr = v
			default:
				sq := &ast.Subquery{Query: q}
				sq.StartPos, sq.EndPos = pos, p.cur.Pos
				expr = sq
			}
		} else {
			inner := p.parseTableExpr()
			if !p.expect(token.RPAREN) {
				return nil
			}
			pe := &ast.ParenTableExpr{Expr: inner}
			pe.StartPos, pe.EndPos = pos, p.cur.Pos
			expr = pe
		}
	} else if p.curIsIdent() {
		tn := p.parseTableName()
		if tn == nil {
			return nil
		}
		expr = tn
	} else {
		p.errorf("expected table name or subquery")
		return nil
	}

	alias := ""
	if p.curIs(token.AS) {
		p.advance()
	}
	if p.curIs(token.IDENT) && !isClauseKeyword(p.cur.Kind) {
		alias = p.cur.Value
		p.advance()
	}

	if p.curIs(token.LPAREN) {
		p.parseColumnNameList() // column alias list, positions only
	}

	if alias != "" || lateral {
		if lateral {
			if join, ok := expr.(*ast.JoinExpr); ok {
				join.Lateral = true
			}
		}
		aliased := &ast.AliasedTableExpr{Expr: expr, Alias: alias}
		aliased.StartPos = expr.Pos()
		aliased.EndPos = p.cur.Pos
		return aliased
	}

	return expr
}

func (p *Parser) parseValuesQuery() *ast.ValuesQuery {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance() // consume VALUES

	q := &ast.ValuesQuery{}
	q.StartPos = pos
	q.Comments = comments

	for {
		if !p.expect(token.LPAREN) {
			break
		}
		var row []ast.Expr
		for {
			expr := p.parseExpr()
			if expr == nil {
				break
			}
			row = append(row, expr)
			if !p.curIs(token.COMMA) {
				break
			}
			p.advance()
		}
		q.Rows = append(q.Rows, row)
		if !p.expect(token.RPAREN) {
			break
		}
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	q.EndPos = p.cur.Pos
	return q
}

func (p *Parser) parseOrderBy() []*ast.OrderByExpr {
	p.advance() // consume ORDER
	if !p.expect(token.BY) {
		return nil
	}

	var items []*ast.OrderByExpr
	for {
		pos := p.cur.Pos
		expr := p.parseExpr()
		if expr == nil {
			break
		}

		item := &ast.OrderByExpr{Expr: expr}
		item.StartPos = pos

		if p.curIs(token.ASC) {
			p.advance()
		} else if p.curIs(token.DESC) {
			item.Desc = true
			p.advance()
		}

		if p.curIs(token.NULLS) {
			p.advance()
			if p.curIs(token.FIRST) {
				t := true
				item.NullsFirst = &t
				p.advance()
			} else if p.curIs(token.LAST) {
				f := false
				item.NullsFirst = &f
				p.advance()
			}
		}

		item.EndPos = p.cur.Pos
		items = append(items, item)

		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	return items
}

func (p *Parser) parseLimit() *ast.Limit {
	pos := p.cur.Pos
	p.advance() // consume LIMIT

	limit := &ast.Limit{}
	limit.StartPos = pos
	limit.Count = p.parseExpr()

	if p.curIs(token.OFFSET) {
		p.advance()
		limit.Offset = p.parseExpr()
	} else if p.curIs(token.COMMA) {
		p.advance()
		limit.Offset = limit.Count
		limit.Count = p.parseExpr()
	}

	limit.EndPos = p.cur.Pos
	return limit
}

func (p *Parser) parseWindowDefs() []*ast.WindowDef {
	p.advance() // consume WINDOW

	var defs []*ast.WindowDef
	for {
		if !p.curIs(token.IDENT) {
			break
		}
		def := &ast.WindowDef{Name: p.cur.Value}
		p.advance()
		if !p.expect(token.AS) {
			break
		}
		def.Spec = p.parseWindowSpec()
		defs = append(defs, def)
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	return defs
}

func (p *Parser) checkJoinKeyword() (ast.JoinType, bool, bool) {
	natural := false
	if p.curIs(token.NATURAL) {
		natural = true
	}

	switch p.cur.Kind {
	case token.JOIN, token.INNER:
		return ast.JoinInner, natural, true
	case token.LEFT:
		return ast.JoinLeft, natural, true
	case token.RIGHT:
		return ast.JoinRight, natural, true
	case token.FULL:
		return ast.JoinFull, natural, true
	case token.CROSS:
		return ast.JoinCross, natural, true
	case token.NATURAL:
		return ast.JoinInner, true, true
	case token.COMMA:
		return ast.JoinCross, false, true
	default:
		return 0, false, false
	}
}

func (p *Parser) consumeJoinKeywords() {
	for p.curIs(token.NATURAL) || p.curIs(token.INNER) || p.curIs(token.LEFT) ||
		p.curIs(token.RIGHT) || p.curIs(token.FULL) || p.curIs(token.OUTER) ||
		p.curIs(token.CROSS) || p.curIs(token.JOIN) || p.curIs(token.COMMA) {
		p.advance()
	}
}
