package parser

import (
	"strings"

	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/token"
)

func (p *Parser) parseDelete() *ast.DeleteQuery {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance() // consume DELETE

	if p.curIs(token.FROM) {
		p.advance()
	}

	dq := &ast.DeleteQuery{}
	dq.StartPos = pos
	dq.Comments = comments
	dq.Table = p.parseTableExpr()

	if p.curIs(token.USING) {
		p.advance()
		dq.Using = p.parseTableExpr()
	}

	if p.curIs(token.WHERE) {
		p.advance()
		dq.Where = p.parseExpr()
	}

	if p.curIs(token.RETURNING) {
		p.advance()
		dq.Returning = p.parseSelectExprs()
	}

	dq.EndPos = p.cur.Pos
	return dq
}

// parseMerge parses MERGE INTO target USING source ON cond
// WHEN [NOT] MATCHED [BY SOURCE|TARGET] [AND cond] THEN action ...
func (p *Parser) parseMerge() *ast.MergeQuery {
	pos := p.cur.Pos
	comments := p.cur.Comments
	p.advance() // consume MERGE

	if !p.expect(token.INTO) {
		return nil
	}

	mq := &ast.MergeQuery{}
	mq.StartPos = pos
	mq.Comments = comments
	mq.Target = p.parseTableExpr()

	if !p.expect(token.USING) {
		return nil
	}
	mq.Source = p.parseTablePrimary()

	if !p.expect(token.ON) {
		return nil
	}
	mq.On = p.parseExpr()

	for p.curIs(token.WHEN) {
		w := p.parseMergeWhen()
		if w == nil {
			break
		}
		mq.Whens = append(mq.Whens, w)
	}

	mq.EndPos = p.cur.Pos
	return mq
}

func (p *Parser) parseMergeWhen() *ast.MergeWhen {
	p.advance() // consume WHEN

	w := &ast.MergeWhen{}

	not := false
	if p.curIs(token.NOT) {
		not = true
		p.advance()
	}

	if !p.expect(token.MATCHED) {
		return nil
	}

	switch {
	case not && p.curIs(token.BY) && p.peekKind() == token.SOURCE:
		p.advance()
		p.advance()
		w.Match = ast.MergeNotMatchedBySource
	case not && p.curIs(token.BY) && p.peekKind() == token.TARGET:
		p.advance()
		p.advance()
		w.Match = ast.MergeNotMatched
	case not:
		w.Match = ast.MergeNotMatched
	default:
		w.Match = ast.MergeMatched
	}

	if p.curIs(token.AND) {
		p.advance()
		w.Condition = p.parseExpr()
	}

	if !p.expect(token.THEN) {
		return nil
	}

	w.Action = p.parseMergeAction()
	return w
}

func (p *Parser) parseMergeAction() ast.MergeAction {
	switch p.cur.Kind {
	case token.UPDATE:
		p.advance()
		p.expect(token.SET)
		return ast.MergeAction{Kind: ast.MergeActionUpdate, Set: p.parseUpdateExprs()}
	case token.DELETE:
		p.advance()
		return ast.MergeAction{Kind: ast.MergeActionDelete}
	case token.DO:
		p.advance()
		p.expect(token.NOTHING)
		return ast.MergeAction{Kind: ast.MergeActionDoNothing}
	}

	if p.cur.Kind == token.IDENT && strings.EqualFold(p.cur.Value, "INSERT") {
		p.advance()
		action := ast.MergeAction{Kind: ast.MergeActionInsert}
		if p.curIs(token.LPAREN) {
			p.advance()
			for {
				if !p.curIs(token.IDENT) {
					break
				}
				col := &ast.ColName{Parts: []string{p.cur.Value}}
				col.StartPos, col.EndPos = p.cur.Pos, p.cur.Pos
				action.Columns = append(action.Columns, col)
				p.advance()
				if !p.curIs(token.COMMA) {
					break
				}
				p.advance()
			}
			p.expect(token.RPAREN)
		}
		if p.expect(token.VALUES) && p.expect(token.LPAREN) {
			action.Values = p.parseExprList()
			p.expect(token.RPAREN)
		}
		return action
	}

	p.errorf("expected UPDATE, DELETE, INSERT, or DO NOTHING in MERGE WHEN action")
	return ast.MergeAction{}
}

func (p *Parser) parseUpdateExprs() []*ast.UpdateExpr {
	var exprs []*ast.UpdateExpr

	for {
		if !p.curIs(token.IDENT) {
			break
		}

		startPos := p.cur.Pos
		parts := []string{p.cur.Value}
		p.advance()

		for p.curIs(token.DOT) {
			p.advance()
			if p.curIs(token.IDENT) {
				parts = append(parts, p.cur.Value)
				p.advance()
			} else {
				break
			}
		}

		col := &ast.ColName{Parts: parts}
		col.StartPos, col.EndPos = startPos, p.cur.Pos

		if !p.expect(token.EQ) {
			break
		}

		ue := &ast.UpdateExpr{Column: col, Expr: p.parseExpr()}
		exprs = append(exprs, ue)

		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	return exprs
}
