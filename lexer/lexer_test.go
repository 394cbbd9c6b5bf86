package lexer

import (
	"testing"

	"github.com/mk3008/rawsql-go/token"
)

func TestLexerBasicTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []token.Item
	}{
		{
			input: "SELECT * FROM users",
			expected: []token.Item{
				{Kind: token.SELECT, Value: "SELECT"},
				{Kind: token.ASTERISK, Value: "*"},
				{Kind: token.FROM, Value: "FROM"},
				{Kind: token.IDENT, Value: "users"},
				{Kind: token.EOF, Value: ""},
			},
		},
		{
			input: "SELECT id, name FROM users WHERE id = 1",
			expected: []token.Item{
				{Kind: token.SELECT, Value: "SELECT"},
				{Kind: token.IDENT, Value: "id"},
				{Kind: token.COMMA, Value: ","},
				{Kind: token.IDENT, Value: "name"},
				{Kind: token.FROM, Value: "FROM"},
				{Kind: token.IDENT, Value: "users"},
				{Kind: token.WHERE, Value: "WHERE"},
				{Kind: token.IDENT, Value: "id"},
				{Kind: token.EQ, Value: "="},
				{Kind: token.INT, Value: "1"},
				{Kind: token.EOF, Value: ""},
			},
		},
		{
			input: "a >= b AND c <= d",
			expected: []token.Item{
				{Kind: token.IDENT, Value: "a"},
				{Kind: token.GTE, Value: ">="},
				{Kind: token.IDENT, Value: "b"},
				{Kind: token.AND, Value: "AND"},
				{Kind: token.IDENT, Value: "c"},
				{Kind: token.LTE, Value: "<="},
				{Kind: token.IDENT, Value: "d"},
				{Kind: token.EOF, Value: ""},
			},
		},
		{
			input: "a <> b OR a != c",
			expected: []token.Item{
				{Kind: token.IDENT, Value: "a"},
				{Kind: token.NEQ, Value: "<>"},
				{Kind: token.IDENT, Value: "b"},
				{Kind: token.OR, Value: "OR"},
				{Kind: token.IDENT, Value: "a"},
				{Kind: token.NEQ, Value: "!="},
				{Kind: token.IDENT, Value: "c"},
				{Kind: token.EOF, Value: ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			for i, exp := range tt.expected {
				got := l.Next()
				if got.Kind != exp.Kind {
					t.Errorf("token %d: expected kind %v, got %v", i, exp.Kind, got.Kind)
				}
				if got.Value != exp.Value {
					t.Errorf("token %d: expected value %q, got %q", i, exp.Value, got.Value)
				}
			}
		})
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input    string
		expected token.Item
	}{
		{"123", token.Item{Kind: token.INT, Value: "123"}},
		{"123.456", token.Item{Kind: token.FLOAT, Value: "123.456"}},
		{".456", token.Item{Kind: token.FLOAT, Value: "0.456"}},
		{"1e10", token.Item{Kind: token.FLOAT, Value: "1e10"}},
		{"1E10", token.Item{Kind: token.FLOAT, Value: "1E10"}},
		{"1.5e+10", token.Item{Kind: token.FLOAT, Value: "1.5e+10"}},
		{"1.5e-10", token.Item{Kind: token.FLOAT, Value: "1.5e-10"}},
		{"0x1A2B", token.Item{Kind: token.INT, Value: "0x1A2B"}},
		{"0X1a2b", token.Item{Kind: token.INT, Value: "0X1a2b"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			got := l.Next()
			if got.Kind != tt.expected.Kind {
				t.Errorf("expected kind %v, got %v", tt.expected.Kind, got.Kind)
			}
			if got.Value != tt.expected.Value {
				t.Errorf("expected value %q, got %q", tt.expected.Value, got.Value)
			}
		})
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input    string
		expected token.Item
	}{
		{"'hello'", token.Item{Kind: token.STRING, Value: "hello"}},
		{"'hello world'", token.Item{Kind: token.STRING, Value: "hello world"}},
		{"'it''s'", token.Item{Kind: token.STRING, Value: "it's"}},
		{"'line1\nline2'", token.Item{Kind: token.STRING, Value: "line1\nline2"}},
		{"E'escaped\\nchar'", token.Item{Kind: token.STRING, Value: "escaped\nchar"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			got := l.Next()
			if got.Kind != tt.expected.Kind {
				t.Errorf("expected kind %v, got %v", tt.expected.Kind, got.Kind)
			}
			if got.Value != tt.expected.Value {
				t.Errorf("expected value %q, got %q", tt.expected.Value, got.Value)
			}
		})
	}
}

func TestLexerDialectStringSpecifier(t *testing.T) {
	l := New("E'hi'")
	got := l.Next()
	if got.Kind != token.STRING {
		t.Fatalf("expected STRING, got %v", got.Kind)
	}
	if got.Specifier != "E" {
		t.Errorf("expected Specifier %q, got %q", "E", got.Specifier)
	}
	if got.Categories()&token.CatStringSpecifier == 0 {
		t.Errorf("expected CatStringSpecifier bit set")
	}
}

func TestLexerQuotedIdentifiers(t *testing.T) {
	tests := []struct {
		input    string
		expected token.Item
	}{
		{`"column"`, token.Item{Kind: token.IDENT, Value: "column"}},
		{`"Column Name"`, token.Item{Kind: token.IDENT, Value: "Column Name"}},
		{`"escaped""quote"`, token.Item{Kind: token.IDENT, Value: `escaped"quote`}},
		{"`column`", token.Item{Kind: token.IDENT, Value: "column"}},
		{"`Column Name`", token.Item{Kind: token.IDENT, Value: "Column Name"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			got := l.Next()
			if got.Kind != tt.expected.Kind {
				t.Errorf("expected kind %v, got %v", tt.expected.Kind, got.Kind)
			}
			if got.Value != tt.expected.Value {
				t.Errorf("expected value %q, got %q", tt.expected.Value, got.Value)
			}
		})
	}
}

func TestLexerOperators(t *testing.T) {
	tests := []struct {
		input    string
		expected []token.Item
	}{
		{
			input: "a || b",
			expected: []token.Item{
				{Kind: token.IDENT, Value: "a"},
				{Kind: token.CONCAT, Value: "||"},
				{Kind: token.IDENT, Value: "b"},
			},
		},
		{
			input: "a | b & c",
			expected: []token.Item{
				{Kind: token.IDENT, Value: "a"},
				{Kind: token.BITOR, Value: "|"},
				{Kind: token.IDENT, Value: "b"},
				{Kind: token.BITAND, Value: "&"},
				{Kind: token.IDENT, Value: "c"},
			},
		},
		{
			input: "a << 2 >> 1",
			expected: []token.Item{
				{Kind: token.IDENT, Value: "a"},
				{Kind: token.LSHIFT, Value: "<<"},
				{Kind: token.INT, Value: "2"},
				{Kind: token.RSHIFT, Value: ">>"},
				{Kind: token.INT, Value: "1"},
			},
		},
		{
			input: "a::int",
			expected: []token.Item{
				{Kind: token.IDENT, Value: "a"},
				{Kind: token.DCOLON, Value: "::"},
				{Kind: token.IDENT, Value: "int"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			for i, exp := range tt.expected {
				got := l.Next()
				if got.Kind != exp.Kind {
					t.Errorf("token %d: expected kind %v, got %v", i, exp.Kind, got.Kind)
				}
				if got.Value != exp.Value {
					t.Errorf("token %d: expected value %q, got %q", i, exp.Value, got.Value)
				}
			}
		})
	}
}

func TestLexerParameters(t *testing.T) {
	tests := []struct {
		input    string
		expected token.Item
	}{
		{"?", token.Item{Kind: token.PARAM, Value: "?"}},
		{"$1", token.Item{Kind: token.PARAM, Value: "$1"}},
		{"$123", token.Item{Kind: token.PARAM, Value: "$123"}},
		{":name", token.Item{Kind: token.PARAM, Value: ":name"}},
		{":user_id", token.Item{Kind: token.PARAM, Value: ":user_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			got := l.Next()
			if got.Kind != tt.expected.Kind {
				t.Errorf("expected kind %v, got %v", tt.expected.Kind, got.Kind)
			}
			if got.Value != tt.expected.Value {
				t.Errorf("expected value %q, got %q", tt.expected.Value, got.Value)
			}
		})
	}
}

func TestLexerCommentAttachment(t *testing.T) {
	l := New("SELECT -- leading\n1 /* trailing */, 2")

	first := l.Next()
	if first.Kind != token.SELECT {
		t.Fatalf("expected SELECT, got %v", first.Kind)
	}

	second := l.Next()
	if second.Kind != token.INT || second.Value != "1" {
		t.Fatalf("expected INT 1, got %v %q", second.Kind, second.Value)
	}
	if len(second.Comments) != 2 {
		t.Fatalf("expected a Before and an After comment on the INT token, got %#v", second.Comments)
	}
	if second.Comments[0].Placement != token.Before || second.Comments[0].Text != " leading" {
		t.Errorf("expected Before comment %q, got %#v", " leading", second.Comments[0])
	}
	if second.Comments[1].Placement != token.After {
		t.Errorf("expected After comment, got %#v", second.Comments[1])
	}

	comma := l.Next()
	if comma.Kind != token.COMMA {
		t.Fatalf("expected COMMA, got %v", comma.Kind)
	}
}

func TestLexerBlockCommentAfterToken(t *testing.T) {
	l := New("1 /* trailing */\n2")

	first := l.Next()
	if first.Kind != token.INT || first.Value != "1" {
		t.Fatalf("expected INT 1, got %v %q", first.Kind, first.Value)
	}
	if len(first.Comments) != 1 || first.Comments[0].Placement != token.After {
		t.Fatalf("expected one After comment, got %#v", first.Comments)
	}
	if !first.Comments[0].Block {
		t.Errorf("expected Block comment")
	}

	second := l.Next()
	if second.Kind != token.INT || second.Value != "2" {
		t.Fatalf("expected INT 2 on next line, got %v %q", second.Kind, second.Value)
	}
	if len(second.Comments) != 0 {
		t.Errorf("comment on a prior line must not attach to the next token, got %#v", second.Comments)
	}
}

func TestLexerPositions(t *testing.T) {
	input := "SELECT\n  id\nFROM t"
	l := New(input)

	expected := []struct {
		kind token.Kind
		line int
		col  int
	}{
		{token.SELECT, 1, 1},
		{token.IDENT, 2, 3},
		{token.FROM, 3, 1},
		{token.IDENT, 3, 6},
	}

	for _, exp := range expected {
		got := l.Next()
		if got.Kind != exp.kind {
			t.Errorf("expected token %v, got %v", exp.kind, got.Kind)
		}
		if got.Pos.Line != exp.line {
			t.Errorf("token %v: expected line %d, got %d", got.Kind, exp.line, got.Pos.Line)
		}
		if got.Pos.Column != exp.col {
			t.Errorf("token %v: expected column %d, got %d", got.Kind, exp.col, got.Pos.Column)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	keywords := []string{
		"SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "IN", "LIKE", "ILIKE", "BETWEEN",
		"IS", "NULL", "TRUE", "FALSE", "AS", "JOIN", "INNER", "LEFT", "RIGHT",
		"FULL", "OUTER", "CROSS", "ON", "ORDER", "BY", "ASC", "DESC", "GROUP",
		"HAVING", "LIMIT", "OFFSET", "UNION", "INTERSECT", "EXCEPT", "MERGE",
		"INTO", "VALUES", "UPDATE", "SET", "DELETE", "EXISTS",
		"CASE", "WHEN", "THEN", "ELSE", "END", "CAST", "DISTINCT", "ALL",
	}

	for _, kw := range keywords {
		t.Run(kw, func(t *testing.T) {
			l := New(kw)
			got := l.Next()
			if !got.Kind.IsKeyword() {
				t.Errorf("%s should be a keyword, got %v", kw, got.Kind)
			}
		})
	}
}

func BenchmarkLexer(b *testing.B) {
	input := `SELECT u.id, u.name, COUNT(o.id) as order_count
FROM users u
LEFT JOIN orders o ON u.id = o.user_id
WHERE u.status = 'active'
  AND u.created_at BETWEEN '2024-01-01' AND '2024-12-31'
GROUP BY u.id, u.name
HAVING COUNT(o.id) > 5
ORDER BY order_count DESC
LIMIT 100`

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		l := New(input)
		for {
			tok := l.Next()
			if tok.Kind == token.EOF {
				break
			}
		}
	}
}
