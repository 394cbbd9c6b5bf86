// Package printer emits SQL text from an ast.Query, with configurable
// keyword case, identifier escaping, indentation, and comma/AND break
// placement. Grounded on the teacher's format package (same per-node
// Format dispatch, write/writeKeyword/writeIdent helpers), generalized
// from the teacher's single fixed Options{Uppercase,Indent} pair into
// the closed style-option set named in the toolkit's printer contract.
package printer

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"github.com/mk3008/rawsql-go/ast"
	"github.com/mk3008/rawsql-go/token"
)

// KeywordCase selects how reserved keywords are cased on emission.
type KeywordCase int

const (
	KeywordLower KeywordCase = iota
	KeywordUpper
)

// BreakStyle controls where a separator (comma, AND) sits relative to a
// line break: before the next item, after the previous one, or never.
type BreakStyle int

const (
	BreakNone BreakStyle = iota
	BreakBefore
	BreakAfter
)

// ParamStyle selects how bind parameters are rendered.
type ParamStyle int

const (
	ParamNamedStyle ParamStyle = iota
	ParamPositionalStyle
	ParamAnonymousStyle
)

// CommentStyle selects how comments are rendered.
type CommentStyle int

const (
	CommentBlock CommentStyle = iota
	CommentLine
	CommentSmart // prefers line comments where safe (no embedded newline, not a pure-separator line)
)

// IdentifierEscape is a start/end quote pair used to wrap non-keyword
// identifiers. A zero value (both fields empty) means "none": identifiers
// are emitted unquoted.
type IdentifierEscape struct {
	Start string
	End   string
}

// Options is the closed configuration record driving every printer
// behavior (§4.8); there is no stringly-typed option map.
type Options struct {
	IdentifierEscape IdentifierEscape
	KeywordCase      KeywordCase
	ParameterSymbol  string // prefix for named parameters: ":", "@", "$"
	ParameterStyle   ParamStyle
	IndentSize       int
	IndentChar       string
	Newline          string // "\n", "\r\n", or "" for single-line output

	CommaBreak             BreakStyle
	AndBreak               BreakStyle
	ValuesCommaBreak       BreakStyle
	JoinOneLine            bool
	WhenOneLine            bool
	InsertColumnsOneLine   bool
	ParenthesesOneLine     bool

	ExportComment bool
	CommentStyle  CommentStyle
}

// Default renders uppercase keywords, double-quoted identifiers, named
// `:param` parameters, single-line output — matching the teacher's own
// DefaultOptions{Uppercase:true} but filled out across the full option set.
func Default() Options {
	return Options{
		IdentifierEscape: IdentifierEscape{Start: `"`, End: `"`},
		KeywordCase:      KeywordUpper,
		ParameterSymbol:  ":",
		ParameterStyle:   ParamNamedStyle,
		IndentSize:       2,
		IndentChar:       " ",
		Newline:          "",
		CommaBreak:       BreakNone,
		AndBreak:         BreakNone,
		ValuesCommaBreak: BreakNone,
		JoinOneLine:      true,
		WhenOneLine:      true,
		InsertColumnsOneLine: true,
		ParenthesesOneLine:   true,
		ExportComment:        true,
		CommentStyle:         CommentSmart,
	}
}

// ErrorKind enumerates printer-internal invariant violations (FormatError).
type ErrorKind int

const (
	ErrValuelessSelectItem ErrorKind = iota
	ErrUnsupportedNode
)

// Error is the FormatError of §7: a structural invariant the printer
// cannot emit around, as opposed to a malformed input (caught earlier,
// by the parser).
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.cause }

func newFormatError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.Annotatef(errors.New(message), "format error")}
}

// Result is what Format returns: the emitted text plus the parameter
// map built while walking parameter nodes (§4.8 "Parameter emission").
type Result struct {
	Text       string
	Parameters map[string]*ast.ParamValue
}

// printer walks an AST and accumulates emitted text plus a parameter map.
type printer struct {
	buf       bytes.Buffer
	opts      Options
	params    map[string]*ast.ParamValue
	paramSeq  int
	indent    int
	err       error
}

// Format renders q into text under opts, returning the parameter map
// assembled from every ast.Param node encountered in emission order.
func Format(q ast.Query, opts Options) (*Result, error) {
	p := &printer{opts: opts, params: make(map[string]*ast.ParamValue)}
	p.formatQuery(q)
	if p.err != nil {
		return nil, p.err
	}
	return &Result{Text: p.buf.String(), Parameters: p.params}, nil
}

// String is a convenience wrapper for Format with Default() options,
// discarding the parameter map — mirrors the teacher's format.String.
func String(q ast.Query) string {
	res, err := Format(q, Default())
	if err != nil {
		return ""
	}
	return res.Text
}

func (p *printer) write(s string)    { p.buf.WriteString(s) }
func (p *printer) space()            { p.buf.WriteString(" ") }

func (p *printer) writeKeyword(kw string) {
	if p.opts.KeywordCase == KeywordUpper {
		p.buf.WriteString(strings.ToUpper(kw))
	} else {
		p.buf.WriteString(strings.ToLower(kw))
	}
}

func (p *printer) writeIdent(id string) {
	esc := p.opts.IdentifierEscape
	if esc.Start == "" && esc.End == "" {
		p.write(id)
		return
	}
	if !needsQuoting(id) {
		p.write(id)
		return
	}
	p.write(esc.Start)
	p.write(strings.ReplaceAll(id, esc.End, esc.End+esc.End))
	p.write(esc.End)
}

// writeFuncName never quotes for keyword-ness, only for illegal
// characters — many SQL functions share names with keywords (COUNT, ANY).
func (p *printer) writeFuncName(name string) {
	esc := p.opts.IdentifierEscape
	if needsQuotingChars(name) && esc.Start != "" {
		p.write(esc.Start)
		p.write(strings.ReplaceAll(name, esc.End, esc.End+esc.End))
		p.write(esc.End)
		return
	}
	p.write(name)
}

func needsQuoting(id string) bool {
	return needsQuotingChars(id) || token.LookupIdent(id).IsKeyword()
}

func needsQuotingChars(id string) bool {
	if len(id) == 0 {
		return true
	}
	ch := id[0]
	if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_') {
		return true
	}
	for i := 1; i < len(id); i++ {
		c := id[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '$') {
			return true
		}
	}
	return false
}

func itoa(n int) string { return strconv.Itoa(n) }

// writeBeforeComments emits n's Before-placed comments, each followed by
// a line break, immediately ahead of n's first token (§4.8).
func (p *printer) writeBeforeComments(n ast.Node) {
	if !p.opts.ExportComment {
		return
	}
	cn, ok := n.(ast.Commentable)
	if !ok {
		return
	}
	for _, c := range cn.CommentList() {
		if c.Placement != token.Before {
			continue
		}
		p.writeComment(c, token.Before)
		p.newlineIndent(0)
	}
}

// writeAfterComments emits n's After-placed comments immediately behind
// n's last token (§4.8), separated from it by a space.
func (p *printer) writeAfterComments(n ast.Node) {
	if !p.opts.ExportComment {
		return
	}
	cn, ok := n.(ast.Commentable)
	if !ok {
		return
	}
	for _, c := range cn.CommentList() {
		if c.Placement != token.After {
			continue
		}
		p.space()
		p.writeComment(c, token.After)
	}
}

// writeComment renders one comment, choosing block vs. line form per
// opts.CommentStyle but never at the cost of §8.7's containment
// guarantee: a line comment can only terminate at an actual newline, so
// anything the printer can't guarantee one after (single-line output,
// an After-placed comment, embedded newlines, a pure separator line)
// always renders as a block comment instead (§7 sanitization).
func (p *printer) writeComment(c token.Comment, placement token.Placement) {
	if p.shouldRenderBlock(c, placement) {
		p.write("/* ")
		p.write(sanitizeBlockCommentText(c.Text))
		p.write(" */")
		return
	}
	p.write("-- ")
	p.write(c.Text)
}

func (p *printer) shouldRenderBlock(c token.Comment, placement token.Placement) bool {
	if p.opts.Newline == "" {
		return true
	}
	if p.opts.CommentStyle == CommentBlock {
		return true
	}
	if strings.ContainsAny(c.Text, "\n\r") || isSeparatorLine(c.Text) || placement == token.After {
		return true
	}
	// CommentLine and CommentSmart both take a line comment here: every
	// case where one would be unsafe has been ruled out above.
	return false
}

// sanitizeBlockCommentText escapes an embedded block-comment terminator
// and collapses internal newlines to spaces so the rendered comment
// can't be mistaken for closing early or spanning unpredictable lines.
func sanitizeBlockCommentText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "*/", "* /")
	return text
}

// isSeparatorLine reports whether text is nothing but a run of
// separator punctuation (----, ====, ____, ####...), the kind of
// banner comment that must stay a block comment regardless of style so
// it can never be read as swallowing the SQL that follows it.
func isSeparatorLine(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		switch r {
		case '-', '=', '_', '+', '#':
		default:
			return false
		}
	}
	return true
}

func (p *printer) newlineIndent(delta int) {
	if p.opts.Newline == "" {
		p.space()
		return
	}
	p.write(p.opts.Newline)
	level := p.indent + delta
	for i := 0; i < level; i++ {
		p.write(p.opts.IndentChar)
	}
}
