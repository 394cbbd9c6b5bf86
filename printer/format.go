package printer

import (
	"strconv"
	"strings"

	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/token"
)

func (p *printer) formatQuery(q ast.Query) {
	p.writeBeforeComments(q)
	switch n := q.(type) {
	case *ast.SimpleSelect:
		p.formatSimpleSelect(n)
	case *ast.BinarySelect:
		p.formatBinarySelect(n)
	case *ast.ValuesQuery:
		p.formatValuesQuery(n)
	case *ast.DeleteQuery:
		p.formatDelete(n)
	case *ast.MergeQuery:
		p.formatMerge(n)
	default:
		p.err = newFormatError(ErrUnsupportedNode, "unsupported query node")
	}
	p.writeAfterComments(q)
}

func (p *printer) formatWith(w *ast.WithClause) {
	if w == nil {
		return
	}
	p.writeKeyword("WITH")
	if w.Recursive {
		p.space()
		p.writeKeyword("RECURSIVE")
	}
	p.space()
	for i, cte := range w.CTEs {
		if i > 0 {
			p.write(",")
			p.newlineIndent(0)
		}
		p.writeIdent(cte.Name)
		if len(cte.Columns) > 0 {
			p.write(" (")
			for j, c := range cte.Columns {
				if j > 0 {
					p.write(", ")
				}
				p.writeIdent(c)
			}
			p.write(")")
		}
		p.space()
		p.writeKeyword("AS")
		p.write(" (")
		p.formatQuery(cte.Query)
		p.write(")")
	}
	p.space()
}

func (p *printer) formatSimpleSelect(n *ast.SimpleSelect) {
	p.formatWith(n.With)
	p.writeKeyword("SELECT")
	if n.Distinct {
		p.space()
		p.writeKeyword("DISTINCT")
	}
	p.space()
	for i, c := range n.Columns {
		if i > 0 {
			p.writeListSep()
		}
		p.formatSelectExpr(c)
	}
	if n.From != nil {
		p.space()
		p.writeKeyword("FROM")
		p.space()
		p.formatTableExpr(n.From)
	}
	if n.Where != nil {
		p.space()
		p.writeKeyword("WHERE")
		p.space()
		p.formatWhere(n.Where)
	}
	if len(n.GroupBy) > 0 {
		p.space()
		p.writeKeyword("GROUP BY")
		p.space()
		for i, e := range n.GroupBy {
			if i > 0 {
				p.write(", ")
			}
			p.formatExpr(e)
		}
	}
	if n.Having != nil {
		p.space()
		p.writeKeyword("HAVING")
		p.space()
		p.formatExpr(n.Having)
	}
	if len(n.WindowDefs) > 0 {
		p.space()
		p.writeKeyword("WINDOW")
		p.space()
		for i, wd := range n.WindowDefs {
			if i > 0 {
				p.write(", ")
			}
			p.writeIdent(wd.Name)
			p.space()
			p.writeKeyword("AS")
			p.write(" (")
			p.formatWindowSpecBody(wd.Spec)
			p.write(")")
		}
	}
	p.formatOrderBy(n.OrderBy)
	p.formatLimit(n.Limit)
}

func (p *printer) formatBinarySelect(n *ast.BinarySelect) {
	p.formatQuery(n.Left)
	p.space()
	switch n.Type {
	case ast.SetOpUnion:
		p.writeKeyword("UNION")
	case ast.SetOpIntersect:
		p.writeKeyword("INTERSECT")
	case ast.SetOpExcept:
		p.writeKeyword("EXCEPT")
	}
	if n.All {
		p.space()
		p.writeKeyword("ALL")
	}
	p.space()
	p.formatQuery(n.Right)
	p.formatOrderBy(n.OrderBy)
	p.formatLimit(n.Limit)
}

func (p *printer) formatValuesQuery(n *ast.ValuesQuery) {
	p.writeKeyword("VALUES")
	p.space()
	for i, row := range n.Rows {
		if i > 0 {
			p.write(", ")
		}
		p.write("(")
		for j, v := range row {
			if j > 0 {
				p.write(", ")
			}
			p.formatExpr(v)
		}
		p.write(")")
	}
}

func (p *printer) formatDelete(n *ast.DeleteQuery) {
	p.formatWith(n.With)
	p.writeKeyword("DELETE FROM")
	p.space()
	p.formatTableExpr(n.Table)
	if n.Using != nil {
		p.space()
		p.writeKeyword("USING")
		p.space()
		p.formatTableExpr(n.Using)
	}
	if n.Where != nil {
		p.space()
		p.writeKeyword("WHERE")
		p.space()
		p.formatWhere(n.Where)
	}
	if len(n.Returning) > 0 {
		p.space()
		p.writeKeyword("RETURNING")
		p.space()
		for i, se := range n.Returning {
			if i > 0 {
				p.write(", ")
			}
			p.formatSelectExpr(se)
		}
	}
}

func (p *printer) formatMerge(n *ast.MergeQuery) {
	p.writeKeyword("MERGE INTO")
	p.space()
	p.formatTableExpr(n.Target)
	p.space()
	p.writeKeyword("USING")
	p.space()
	p.formatTableExpr(n.Source)
	p.space()
	p.writeKeyword("ON")
	p.space()
	p.formatExpr(n.On)
	for _, w := range n.Whens {
		p.newlineIndent(0)
		p.writeKeyword("WHEN")
		p.space()
		switch w.Match {
		case ast.MergeMatched:
			p.writeKeyword("MATCHED")
		case ast.MergeNotMatched:
			p.writeKeyword("NOT MATCHED")
		case ast.MergeNotMatchedBySource:
			p.writeKeyword("NOT MATCHED BY SOURCE")
		}
		if w.Condition != nil {
			p.space()
			p.writeKeyword("AND")
			p.space()
			p.formatExpr(w.Condition)
		}
		p.space()
		p.writeKeyword("THEN")
		p.space()
		p.formatMergeAction(w.Action)
	}
}

func (p *printer) formatMergeAction(a ast.MergeAction) {
	switch a.Kind {
	case ast.MergeActionDoNothing:
		p.writeKeyword("DO NOTHING")
	case ast.MergeActionDelete:
		p.writeKeyword("DELETE")
	case ast.MergeActionUpdate:
		p.writeKeyword("UPDATE SET")
		p.space()
		for i, ue := range a.Set {
			if i > 0 {
				p.writeListSep()
			}
			p.formatExpr(ue.Column)
			p.write(" = ")
			p.formatExpr(ue.Expr)
		}
	case ast.MergeActionInsert:
		p.writeKeyword("INSERT")
		if len(a.Columns) > 0 {
			p.write(" (")
			for i, c := range a.Columns {
				if i > 0 {
					p.write(", ")
				}
				p.formatExpr(c)
			}
			p.write(")")
		}
		p.space()
		p.writeKeyword("VALUES")
		p.write(" (")
		for i, v := range a.Values {
			if i > 0 {
				p.write(", ")
			}
			p.formatExpr(v)
		}
		p.write(")")
	}
}

func (p *printer) formatWhere(e ast.Expr) {
	if p.opts.AndBreak == BreakNone {
		p.formatExpr(e)
		return
	}
	p.formatAndChain(e)
}

// formatAndChain splits a right-leaning chain of AND-joined BinaryExpr
// nodes across lines per the configured AndBreak placement.
func (p *printer) formatAndChain(e ast.Expr) {
	bin, ok := e.(*ast.BinaryExpr)
	if !ok || bin.Op != token.AND {
		p.formatExpr(e)
		return
	}
	p.formatAndChain(bin.Left)
	if p.opts.AndBreak == BreakBefore {
		p.newlineIndent(0)
		p.writeKeyword("AND")
		p.space()
	} else {
		p.space()
		p.writeKeyword("AND")
		p.newlineIndent(0)
	}
	p.formatAndChain(bin.Right)
}

func (p *printer) writeListSep() {
	switch p.opts.CommaBreak {
	case BreakBefore:
		p.newlineIndent(0)
		p.write(", ")
	case BreakAfter:
		p.write(",")
		p.newlineIndent(0)
	default:
		p.write(", ")
	}
}

func (p *printer) formatOrderBy(obs []*ast.OrderByExpr) {
	if len(obs) == 0 {
		return
	}
	p.space()
	p.writeKeyword("ORDER BY")
	p.space()
	for i, ob := range obs {
		if i > 0 {
			p.write(", ")
		}
		p.formatExpr(ob.Expr)
		if ob.Desc {
			p.space()
			p.writeKeyword("DESC")
		}
		if ob.NullsFirst != nil {
			p.space()
			p.writeKeyword("NULLS")
			p.space()
			if *ob.NullsFirst {
				p.writeKeyword("FIRST")
			} else {
				p.writeKeyword("LAST")
			}
		}
	}
}

func (p *printer) formatLimit(l *ast.Limit) {
	if l == nil {
		return
	}
	if l.Count != nil {
		p.space()
		p.writeKeyword("LIMIT")
		p.space()
		p.formatExpr(l.Count)
	}
	if l.Offset != nil {
		p.space()
		p.writeKeyword("OFFSET")
		p.space()
		p.formatExpr(l.Offset)
	}
}

func (p *printer) formatSelectExpr(se ast.SelectExpr) {
	p.writeBeforeComments(se)
	switch n := se.(type) {
	case *ast.StarExpr:
		if n.HasQualifier {
			p.writeIdent(n.TableName)
			p.write(".*")
		} else {
			p.write("*")
		}
	case *ast.AliasedExpr:
		p.formatExpr(n.Expr)
		if n.Alias != "" {
			p.space()
			p.writeKeyword("AS")
			p.space()
			p.writeIdent(n.Alias)
		}
	default:
		p.err = newFormatError(ErrValuelessSelectItem, "unrecognized select item")
	}
	p.writeAfterComments(se)
}

func (p *printer) formatTableExpr(te ast.TableExpr) {
	p.writeBeforeComments(te)
	switch n := te.(type) {
	case *ast.TableName:
		for i, part := range n.Parts {
			if i > 0 {
				p.write(".")
			}
			p.writeIdent(part)
		}
	case *ast.AliasedTableExpr:
		p.formatTableExpr(n.Expr)
		if n.Alias != "" {
			p.space()
			p.writeKeyword("AS")
			p.space()
			p.writeIdent(n.Alias)
		}
	case *ast.Subquery:
		p.write("(")
		p.formatQuery(n.Query)
		p.write(")")
	case *ast.ParenTableExpr:
		p.write("(")
		p.formatTableExpr(n.Expr)
		p.write(")")
	case *ast.TableList:
		for i, t := range n.Tables {
			if i > 0 {
				p.write(", ")
			}
			p.formatTableExpr(t)
		}
	case *ast.JoinExpr:
		p.formatJoin(n)
	default:
		p.err = newFormatError(ErrUnsupportedNode, "unsupported table expression")
	}
	p.writeAfterComments(te)
}

func (p *printer) formatJoin(n *ast.JoinExpr) {
	p.formatTableExpr(n.Left)
	if !p.opts.JoinOneLine {
		p.newlineIndent(0)
	} else {
		p.space()
	}
	if n.Natural {
		p.writeKeyword("NATURAL")
		p.space()
	}
	switch n.Type {
	case ast.JoinInner:
		if !n.Natural {
			p.writeKeyword("INNER JOIN")
		} else {
			p.writeKeyword("JOIN")
		}
	case ast.JoinLeft:
		p.writeKeyword("LEFT JOIN")
	case ast.JoinRight:
		p.writeKeyword("RIGHT JOIN")
	case ast.JoinFull:
		p.writeKeyword("FULL JOIN")
	case ast.JoinCross:
		p.writeKeyword("CROSS JOIN")
	}
	if n.Lateral {
		p.space()
		p.writeKeyword("LATERAL")
	}
	p.space()
	p.formatTableExpr(n.Right)
	if n.On != nil {
		p.space()
		p.writeKeyword("ON")
		p.space()
		p.formatExpr(n.On)
	}
	if len(n.Using) > 0 {
		p.space()
		p.writeKeyword("USING")
		p.write(" (")
		for i, u := range n.Using {
			if i > 0 {
				p.write(", ")
			}
			p.writeIdent(u)
		}
		p.write(")")
	}
}

func (p *printer) formatWindowSpecBody(w *ast.WindowSpec) {
	wrote := false
	if w.Name != "" {
		p.writeIdent(w.Name)
		wrote = true
	}
	if len(w.PartitionBy) > 0 {
		if wrote {
			p.space()
		}
		p.writeKeyword("PARTITION BY")
		p.space()
		for i, e := range w.PartitionBy {
			if i > 0 {
				p.write(", ")
			}
			p.formatExpr(e)
		}
		wrote = true
	}
	if len(w.OrderBy) > 0 {
		if wrote {
			p.space()
		}
		p.formatOrderBy(w.OrderBy)
	}
	if w.Frame != nil {
		p.space()
		p.formatFrame(w.Frame)
	}
}

func (p *printer) formatFrame(f *ast.WindowFrame) {
	switch f.Type {
	case ast.FrameRows:
		p.writeKeyword("ROWS")
	case ast.FrameRange:
		p.writeKeyword("RANGE")
	case ast.FrameGroups:
		p.writeKeyword("GROUPS")
	}
	p.space()
	if f.End != nil {
		p.writeKeyword("BETWEEN")
		p.space()
		p.formatFrameBound(f.Start)
		p.space()
		p.writeKeyword("AND")
		p.space()
		p.formatFrameBound(f.End)
	} else {
		p.formatFrameBound(f.Start)
	}
}

func (p *printer) formatFrameBound(b *ast.FrameBound) {
	switch b.Type {
	case ast.BoundCurrentRow:
		p.writeKeyword("CURRENT ROW")
	case ast.BoundUnboundedPreceding:
		p.writeKeyword("UNBOUNDED PRECEDING")
	case ast.BoundUnboundedFollowing:
		p.writeKeyword("UNBOUNDED FOLLOWING")
	case ast.BoundPreceding:
		p.formatExpr(b.Offset)
		p.space()
		p.writeKeyword("PRECEDING")
	case ast.BoundFollowing:
		p.formatExpr(b.Offset)
		p.space()
		p.writeKeyword("FOLLOWING")
	}
}

func (p *printer) formatExpr(e ast.Expr) {
	if e == nil {
		return
	}
	p.writeBeforeComments(e)
	switch n := e.(type) {
	case *ast.ColName:
		for i, part := range n.Parts {
			if i > 0 {
				p.write(".")
			}
			p.writeIdent(part)
		}
	case *ast.Literal:
		p.formatLiteral(n)
	case *ast.BinaryExpr:
		p.formatExpr(n.Left)
		p.space()
		p.writeOperator(n.Op)
		p.space()
		p.formatExpr(n.Right)
	case *ast.UnaryExpr:
		p.writeOperator(n.Op)
		if n.Op == token.NOT {
			p.space()
		}
		p.formatExpr(n.Operand)
	case *ast.ParenExpr:
		p.write("(")
		p.formatExpr(n.Expr)
		p.write(")")
	case *ast.FuncExpr:
		p.formatFunc(n)
	case *ast.CastExpr:
		p.writeKeyword("CAST")
		p.write("(")
		p.formatExpr(n.Expr)
		p.space()
		p.writeKeyword("AS")
		p.space()
		p.write(n.Type)
		p.write(")")
	case *ast.CaseExpr:
		p.formatCase(n)
	case *ast.ListExpr:
		p.write("(")
		for i, it := range n.Items {
			if i > 0 {
				p.write(", ")
			}
			p.formatExpr(it)
		}
		p.write(")")
	case *ast.InExpr:
		p.formatExpr(n.Expr)
		p.space()
		if n.Not {
			p.writeKeyword("NOT")
			p.space()
		}
		p.writeKeyword("IN")
		p.space()
		if n.List != nil {
			p.formatExpr(n.List)
		} else if n.Select != nil {
			p.write("(")
			p.formatQuery(n.Select.Query)
			p.write(")")
		}
	case *ast.BetweenExpr:
		p.formatExpr(n.Expr)
		p.space()
		if n.Not {
			p.writeKeyword("NOT")
			p.space()
		}
		p.writeKeyword("BETWEEN")
		p.space()
		p.formatExpr(n.Low)
		p.space()
		p.writeKeyword("AND")
		p.space()
		p.formatExpr(n.High)
	case *ast.LikeExpr:
		p.formatExpr(n.Expr)
		p.space()
		if n.Not {
			p.writeKeyword("NOT")
			p.space()
		}
		if n.ILike {
			p.writeKeyword("ILIKE")
		} else {
			p.writeKeyword("LIKE")
		}
		p.space()
		p.formatExpr(n.Pattern)
		if n.Escape != nil {
			p.space()
			p.writeKeyword("ESCAPE")
			p.space()
			p.formatExpr(n.Escape)
		}
	case *ast.IsExpr:
		p.formatExpr(n.Expr)
		p.space()
		p.writeKeyword("IS")
		p.space()
		if n.Not {
			p.writeKeyword("NOT")
			p.space()
		}
		switch n.What {
		case ast.IsNull:
			p.writeKeyword("NULL")
		case ast.IsTrueVal:
			p.writeKeyword("TRUE")
		case ast.IsFalseVal:
			p.writeKeyword("FALSE")
		case ast.IsUnknownVal:
			p.writeKeyword("UNKNOWN")
		}
	case *ast.Subquery:
		p.write("(")
		p.formatQuery(n.Query)
		p.write(")")
	case *ast.ExistsExpr:
		if n.Not {
			p.writeKeyword("NOT")
			p.space()
		}
		p.writeKeyword("EXISTS")
		p.space()
		p.write("(")
		p.formatQuery(n.Subquery.Query)
		p.write(")")
	case *ast.Param:
		p.formatParam(n)
	case *ast.ArrayExpr:
		p.writeKeyword("ARRAY")
		p.write("[")
		for i, el := range n.Elements {
			if i > 0 {
				p.write(", ")
			}
			p.formatExpr(el)
		}
		p.write("]")
	case *ast.NormalizedExpr:
		p.writeKeyword("NORMALIZED")
		if n.Form != "" {
			p.space()
			p.writeKeyword(n.Form)
		}
		p.space()
		p.formatExpr(n.Expr)
	case *ast.StarExpr:
		if n.HasQualifier {
			p.writeIdent(n.TableName)
			p.write(".*")
		} else {
			p.write("*")
		}
	default:
		p.err = newFormatError(ErrUnsupportedNode, "unsupported expression")
	}
	p.writeAfterComments(e)
}

// writeOperator emits an operator token, keyword-casing it when it's a
// word operator (AND, OR, NOT) and leaving symbol operators (=, ||, <<)
// untouched since case doesn't apply to them.
func (p *printer) writeOperator(op token.Kind) {
	if op.IsKeyword() {
		p.writeKeyword(op.String())
		return
	}
	p.write(op.String())
}

func (p *printer) formatLiteral(n *ast.Literal) {
	switch n.Type {
	case ast.LiteralNull:
		p.writeKeyword("NULL")
	case ast.LiteralString:
		if n.Specifier != "" {
			p.write(n.Specifier)
		}
		p.write("'")
		p.write(strings.ReplaceAll(n.Value, "'", "''"))
		p.write("'")
	case ast.LiteralBool:
		p.writeKeyword(n.Value)
	default:
		p.write(n.Value)
	}
}

func (p *printer) formatFunc(n *ast.FuncExpr) {
	p.writeFuncName(n.Name)
	p.write("(")
	if n.Distinct {
		p.writeKeyword("DISTINCT")
		p.space()
	}
	for i, a := range n.Args {
		if i > 0 {
			p.write(", ")
		}
		p.formatExpr(a)
	}
	if len(n.OrderBy) > 0 {
		p.space()
		p.formatOrderBy(n.OrderBy)
	}
	p.write(")")
	if n.Filter != nil {
		p.space()
		p.writeKeyword("FILTER")
		p.write(" (")
		p.writeKeyword("WHERE")
		p.space()
		p.formatExpr(n.Filter)
		p.write(")")
	}
	if n.Over != nil {
		p.space()
		p.writeKeyword("OVER")
		p.write(" (")
		p.formatWindowSpecBody(n.Over)
		p.write(")")
	}
}

func (p *printer) formatCase(n *ast.CaseExpr) {
	p.writeKeyword("CASE")
	if n.Operand != nil {
		p.space()
		p.formatExpr(n.Operand)
	}
	for _, w := range n.Whens {
		if p.opts.WhenOneLine {
			p.space()
		} else {
			p.newlineIndent(1)
		}
		p.writeKeyword("WHEN")
		p.space()
		p.formatExpr(w.Cond)
		p.space()
		p.writeKeyword("THEN")
		p.space()
		p.formatExpr(w.Result)
	}
	if n.Else != nil {
		if p.opts.WhenOneLine {
			p.space()
		} else {
			p.newlineIndent(1)
		}
		p.writeKeyword("ELSE")
		p.space()
		p.formatExpr(n.Else)
	}
	p.space()
	p.writeKeyword("END")
}

// formatParam renders a bind parameter in the configured ParameterStyle
// and records any bound value into the printer's parameter map. The key
// is the parameter's own name for the named form, "$N" for the
// positional form ("pN" under the named style), and a synthesized "pN"
// sequence name for the anonymous form, so every entry in the result
// map is addressable; when the style rewrites the form, the key can
// differ from the text emitted.
func (p *printer) formatParam(n *ast.Param) {
	var key string
	switch n.Type {
	case ast.ParamNamed:
		key = n.Name
		switch p.opts.ParameterStyle {
		case ParamPositionalStyle:
			p.paramSeq++
			p.write("$" + strconv.Itoa(p.paramSeq))
		case ParamAnonymousStyle:
			p.write("?")
		default:
			p.write(p.opts.ParameterSymbol + n.Name)
		}
	case ast.ParamPositional:
		key = "$" + strconv.Itoa(n.Index)
		switch p.opts.ParameterStyle {
		case ParamNamedStyle:
			p.write(p.opts.ParameterSymbol + "p" + strconv.Itoa(n.Index))
			key = "p" + strconv.Itoa(n.Index)
		case ParamAnonymousStyle:
			p.write("?")
		default:
			p.write("$" + strconv.Itoa(n.Index))
		}
	default:
		p.paramSeq++
		key = "p" + strconv.Itoa(p.paramSeq)
		switch p.opts.ParameterStyle {
		case ParamNamedStyle:
			p.write(p.opts.ParameterSymbol + key)
		case ParamPositionalStyle:
			p.write("$" + strconv.Itoa(p.paramSeq))
		default:
			p.write("?")
		}
	}
	if n.Value != nil {
		p.params[key] = n.Value
	} else if _, ok := p.params[key]; !ok {
		p.params[key] = nil
	}
}
