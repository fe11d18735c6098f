package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftlgo/ftl/internal/errors"
)

type tok struct {
	Type  TokenType
	Value string
}

func simplify(tokens []Token) []tok {
	out := make([]tok, len(tokens))
	for i, t := range tokens {
		out[i] = tok{t.Type, t.Value}
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []tok
	}{
		{
			name:   "text only",
			source: "hello $ < world",
			want:   []tok{{TokenText, "hello $ < world"}, {TokenEOF, ""}},
		},
		{
			name:   "interpolation",
			source: "Hi ${user.name}!",
			want: []tok{
				{TokenText, "Hi "},
				{TokenInterpStart, "${"},
				{TokenIdent, "user"},
				{TokenDot, "."},
				{TokenIdent, "name"},
				{TokenInterpEnd, "}"},
				{TokenText, "!"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "hash literal inside interpolation",
			source: `${{"a": 1}.a}`,
			want: []tok{
				{TokenInterpStart, "${"},
				{TokenBraceOpen, "{"},
				{TokenString, "a"},
				{TokenColon, ":"},
				{TokenNumber, "1"},
				{TokenBraceClose, "}"},
				{TokenDot, "."},
				{TokenIdent, "a"},
				{TokenInterpEnd, "}"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "directive with comparison in parens",
			source: `<#if (x > 1)>y</#if>`,
			want: []tok{
				{TokenDirectiveStart, "if"},
				{TokenParenOpen, "("},
				{TokenIdent, "x"},
				{TokenGt, ">"},
				{TokenNumber, "1"},
				{TokenParenClose, ")"},
				{TokenTagEnd, ">"},
				{TokenText, "y"},
				{TokenDirectiveEnd, "if"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "macro call",
			source: `<@greet name="Joe"; x/>`,
			want: []tok{
				{TokenCallStart, "<@"},
				{TokenIdent, "greet"},
				{TokenIdent, "name"},
				{TokenAssign, "="},
				{TokenString, "Joe"},
				{TokenSemicolon, ";"},
				{TokenIdent, "x"},
				{TokenEmptyTagEnd, "/>"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "closing macro call",
			source: `<@box>x</@box>`,
			want: []tok{
				{TokenCallStart, "<@"},
				{TokenIdent, "box"},
				{TokenTagEnd, ">"},
				{TokenText, "x"},
				{TokenCallEnd, "box"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "comment",
			source: "a<#-- ${x} -->b",
			want: []tok{
				{TokenText, "a"},
				{TokenComment, " ${x} "},
				{TokenText, "b"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "noparse",
			source: "<#noparse>${x}<#if></#noparse>",
			want: []tok{
				{TokenDirectiveStart, "noparse"},
				{TokenTagEnd, ">"},
				{TokenText, "${x}<#if>"},
				{TokenDirectiveEnd, "noparse"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "ranges and operators",
			source: "${a..<b..*c..!d ?? e!f != g}",
			want: []tok{
				{TokenInterpStart, "${"},
				{TokenIdent, "a"},
				{TokenDotDotLess, "..<"},
				{TokenIdent, "b"},
				{TokenDotDotStar, "..*"},
				{TokenIdent, "c"},
				{TokenDotDotLess, "..!"},
				{TokenIdent, "d"},
				{TokenExists, "??"},
				{TokenIdent, "e"},
				{TokenBang, "!"},
				{TokenIdent, "f"},
				{TokenNe, "!="},
				{TokenIdent, "g"},
				{TokenInterpEnd, "}"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "number does not swallow range",
			source: "${1..3.5}",
			want: []tok{
				{TokenInterpStart, "${"},
				{TokenNumber, "1"},
				{TokenDotDot, ".."},
				{TokenNumber, "3.5"},
				{TokenInterpEnd, "}"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "entity comparisons and raw string",
			source: `<#if a &lt;= b && r"\d" == c>`,
			want: []tok{
				{TokenDirectiveStart, "if"},
				{TokenIdent, "a"},
				{TokenLe, "&lt;="},
				{TokenIdent, "b"},
				{TokenAnd, "&&"},
				{TokenRawString, `\d`},
				{TokenEq, "=="},
				{TokenIdent, "c"},
				{TokenTagEnd, ">"},
				{TokenEOF, ""},
			},
		},
		{
			name:   "camel case directive names",
			source: "<#noEscape></#noEscape>",
			want: []tok{
				{TokenDirectiveStart, "noescape"},
				{TokenTagEnd, ">"},
				{TokenDirectiveEnd, "noescape"},
				{TokenEOF, ""},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.source)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, simplify(tokens)); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenizeSpans(t *testing.T) {
	tokens, err := Tokenize("a\n  ${x}")
	require.NoError(t, err)
	require.Equal(t, TokenInterpStart, tokens[1].Type)
	assert.Equal(t, uint16(2), tokens[1].Span.StartLine)
	assert.Equal(t, uint16(2), tokens[1].Span.StartCol)
	assert.Equal(t, uint32(4), tokens[1].Span.StartOffset)
	assert.Equal(t, "x", tokens[2].Value)
	assert.Equal(t, uint16(4), tokens[2].Span.StartCol)
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		source string
		msg    string
	}{
		{"${x", "unexpected end of template inside a tag"},
		{"<#-- never closed", "unclosed comment"},
		{`${"abc}`, "unclosed string literal"},
		{"<#noparse>abc", "unclosed #noparse"},
		{"${a ~ b}", "unexpected character '~'"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := Tokenize(tt.source)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrSyntax))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`plain`, "plain"},
		{`a\nb`, "a\nb"},
		{`\"q\" \'s\'`, `"q" 's'`},
		{`\l\g\a`, "<>&"},
		{`\${x}`, "${x}"},
		{`\x41\x0020B`, "A B"},
		{`\\`, `\`},
	}
	for _, tt := range tests {
		got, err := Unescape(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := Unescape(`\q`)
	assert.Error(t, err)
}

func TestNewExpressionShiftsSpans(t *testing.T) {
	base := spanAt(3, 7, 40)
	tokens, err := NewExpression("a + b", base).All()
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, uint16(3), tokens[2].Span.StartLine)
	assert.Equal(t, uint16(11), tokens[2].Span.StartCol)
	assert.Equal(t, uint32(44), tokens[2].Span.StartOffset)
	assert.Equal(t, TokenEOF, tokens[3].Type)
}
