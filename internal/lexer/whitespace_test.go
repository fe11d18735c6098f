package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftlgo/ftl/syntax"
)

func spanAt(line, col uint16, offset uint32) syntax.Span {
	return syntax.Span{StartLine: line, StartCol: col, StartOffset: offset, EndLine: line, EndCol: col, EndOffset: offset}
}

// textOf joins the text tokens and marks every tag with "#".
func textOf(tokens []Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		switch {
		case t.Type == TokenText:
			sb.WriteString(t.Value)
		case t.Type == TokenDirectiveStart, t.Type == TokenDirectiveEnd, t.Type == TokenInterpStart:
			sb.WriteString("#")
		}
	}
	return sb.String()
}

func TestStripWhitespace(t *testing.T) {
	tests := []struct {
		name   string
		source string
		strip  bool
		want   string
	}{
		{
			name:   "tag only lines vanish",
			source: "a\n  <#if x>\n  b\n  </#if>\nc\n",
			strip:  true,
			want:   "a\n#  b\n#c\n",
		},
		{
			name:   "disabled",
			source: "a\n  <#if x>\nb\n",
			strip:  false,
			want:   "a\n  #\nb\n",
		},
		{
			name:   "interpolation keeps line",
			source: "  <#if x>${y}\n",
			strip:  true,
			want:   "  ##\n",
		},
		{
			name:   "text keeps line",
			source: "  <#if x> z\n",
			strip:  true,
			want:   "  # z\n",
		},
		{
			name:   "comment only line",
			source: "a\n <#-- c -->\nb",
			strip:  true,
			want:   "a\nb",
		},
		{
			name:   "t trims both sides",
			source: "  x  <#t>\ny",
			strip:  true,
			want:   "xy",
		},
		{
			name:   "lt trims leading",
			source: "  x  <#lt>\ny",
			strip:  true,
			want:   "x  \ny",
		},
		{
			name:   "rt trims trailing",
			source: "  x  <#rt>\ny",
			strip:  true,
			want:   "  xy",
		},
		{
			name:   "nt keeps tag line",
			source: "a\n  <#if x><#nt>\nb",
			strip:  true,
			want:   "a\n  #\nb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.source)
			require.NoError(t, err)
			got := StripWhitespace(tokens, tt.strip)
			assert.Equal(t, tt.want, textOf(got))
			for _, tok := range got {
				if tok.Type == TokenDirectiveStart {
					assert.NotContains(t, []string{"t", "lt", "rt", "nt"}, tok.Value)
				}
			}
		})
	}
}
