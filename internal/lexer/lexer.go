package lexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ftlgo/ftl/internal/errors"
	"github.com/ftlgo/ftl/syntax"
)

// Lexer tokenizes FTL template source.
type Lexer struct {
	source    string
	pos       int
	start     int
	line      uint16
	col       uint16
	startLine uint16
	startCol  uint16

	mode         lexerMode
	parenBalance int
	// rawUntil is set after <#noparse> and holds the closing tag to scan to.
	rawUntil string
	// tagName is the directive currently being lexed.
	tagName string
	// base shifts spans of expressions lexed out of a string literal.
	base syntax.Span
}

type lexerMode int

const (
	modeText lexerMode = iota
	modeInterp
	modeTag
	modeExpr
)

// New creates a Lexer for template source.
func New(source string) *Lexer {
	return &Lexer{source: source, line: 1}
}

// NewExpression creates a Lexer that reads a bare expression, as used by
// ?eval and by interpolations inside string literals. Spans are shifted so
// that they start at base.
func NewExpression(source string, base syntax.Span) *Lexer {
	l := &Lexer{source: source, line: 1, mode: modeExpr, base: base}
	return l
}

// Tokenize returns all tokens of a template, ending with TokenEOF.
func Tokenize(source string) ([]Token, error) {
	return New(source).All()
}

// All collects all tokens into a slice, ending with TokenEOF.
func (l *Lexer) All() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	if l.mode == modeText {
		return l.lexText()
	}
	return l.lexExpr()
}

func (l *Lexer) lexText() (Token, error) {
	if l.atEnd() {
		l.markStart()
		return l.makeToken(TokenEOF, ""), nil
	}
	l.markStart()
	rest := l.rest()

	if l.rawUntil != "" {
		idx := strings.Index(rest, l.rawUntil)
		if idx < 0 {
			return Token{}, l.syntaxError("unclosed " + strings.TrimSuffix(strings.TrimPrefix(l.rawUntil, "</"), ">"))
		}
		l.rawUntil = ""
		if idx > 0 {
			l.advance(idx)
			return l.makeToken(TokenText, rest[:idx]), nil
		}
	}

	if tagStartLen(rest) > 0 {
		return l.lexTagStart()
	}

	i := 0
	for i < len(rest) {
		idx := strings.IndexAny(rest[i:], "$<")
		if idx < 0 {
			i = len(rest)
			break
		}
		i += idx
		if tagStartLen(rest[i:]) > 0 {
			break
		}
		i++
	}
	l.advance(i)
	return l.makeToken(TokenText, rest[:i]), nil
}

// tagStartLen returns the length of the tag opener at the start of s, or 0.
func tagStartLen(s string) int {
	switch {
	case strings.HasPrefix(s, "${"):
		return 2
	case strings.HasPrefix(s, "<#--"):
		return 4
	case strings.HasPrefix(s, "<#") && len(s) > 2 && isLetter(s[2]):
		return 2
	case strings.HasPrefix(s, "</#") && len(s) > 3 && isLetter(s[3]):
		return 3
	case strings.HasPrefix(s, "<@") && len(s) > 2 && (isIdentStart(s[2]) || s[2] == '.' || s[2] >= utf8.RuneSelf):
		return 2
	case strings.HasPrefix(s, "</@"):
		return 3
	}
	return 0
}

func (l *Lexer) lexTagStart() (Token, error) {
	rest := l.rest()
	switch {
	case strings.HasPrefix(rest, "${"):
		l.advance(2)
		l.mode = modeInterp
		l.parenBalance = 0
		return l.makeToken(TokenInterpStart, "${"), nil

	case strings.HasPrefix(rest, "<#--"):
		end := strings.Index(rest[4:], "-->")
		if end < 0 {
			return Token{}, l.syntaxError("unclosed comment")
		}
		l.advance(4 + end + 3)
		return l.makeToken(TokenComment, rest[4:4+end]), nil

	case strings.HasPrefix(rest, "</#"):
		name := leadingName(rest[3:])
		l.advance(3 + len(name))
		l.skipWhitespace()
		if l.atEnd() || l.rest()[0] != '>' {
			return Token{}, l.syntaxError("expected '>' after </#" + name)
		}
		l.advance(1)
		return l.makeToken(TokenDirectiveEnd, strings.ToLower(name)), nil

	case strings.HasPrefix(rest, "<#"):
		name := leadingName(rest[2:])
		l.advance(2 + len(name))
		l.mode = modeTag
		l.parenBalance = 0
		l.tagName = strings.ToLower(name)
		return l.makeToken(TokenDirectiveStart, l.tagName), nil

	case strings.HasPrefix(rest, "</@"):
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return Token{}, l.syntaxError("expected '>' to close </@")
		}
		l.advance(end + 1)
		return l.makeToken(TokenCallEnd, strings.TrimSpace(rest[3:end])), nil

	default: // "<@"
		l.advance(2)
		l.mode = modeTag
		l.parenBalance = 0
		l.tagName = ""
		return l.makeToken(TokenCallStart, "<@"), nil
	}
}

func leadingName(s string) string {
	i := 0
	for i < len(s) && (isLetter(s[i]) || s[i] == '_') {
		i++
	}
	return s[:i]
}

func (l *Lexer) lexExpr() (Token, error) {
	l.skipWhitespace()
	l.markStart()
	if l.atEnd() {
		if l.mode == modeExpr {
			return l.makeToken(TokenEOF, ""), nil
		}
		return Token{}, l.syntaxError("unexpected end of template inside a tag")
	}
	rest := l.rest()

	if l.parenBalance == 0 {
		switch l.mode {
		case modeInterp:
			if rest[0] == '}' {
				l.advance(1)
				l.mode = modeText
				return l.makeToken(TokenInterpEnd, "}"), nil
			}
		case modeTag:
			if rest[0] == '>' {
				l.advance(1)
				l.leaveTag()
				return l.makeToken(TokenTagEnd, ">"), nil
			}
			if strings.HasPrefix(rest, "/>") {
				l.advance(2)
				l.mode = modeText
				return l.makeToken(TokenEmptyTagEnd, "/>"), nil
			}
		}
	}

	for _, op := range entityOps {
		if strings.HasPrefix(rest, op.text) {
			l.advance(len(op.text))
			return l.makeToken(op.typ, op.text), nil
		}
	}

	if len(rest) >= 3 {
		switch rest[:3] {
		case "..<", "..!":
			l.advance(3)
			return l.makeToken(TokenDotDotLess, rest[:3]), nil
		case "..*":
			l.advance(3)
			return l.makeToken(TokenDotDotStar, "..*"), nil
		}
	}

	if len(rest) >= 2 {
		if typ, ok := twoCharOps[rest[:2]]; ok {
			l.advance(2)
			return l.makeToken(typ, rest[:2]), nil
		}
	}

	ch := rest[0]
	if typ, ok := oneCharOps[ch]; ok {
		switch ch {
		case '(', '[', '{':
			l.parenBalance++
		case ')', ']', '}':
			l.parenBalance--
		}
		l.advance(1)
		return l.makeToken(typ, string(ch)), nil
	}

	switch {
	case ch == '"' || ch == '\'':
		return l.lexString(ch, TokenString)
	case ch == 'r' && len(rest) > 1 && (rest[1] == '"' || rest[1] == '\''):
		l.advance(1)
		return l.lexString(rest[1], TokenRawString)
	case isDigit(ch):
		return l.lexNumber()
	case isIdentStart(ch) || ch >= utf8.RuneSelf:
		return l.lexIdent()
	}
	return Token{}, l.syntaxError("unexpected character " + strconv.QuoteRune(rune(ch)))
}

func (l *Lexer) leaveTag() {
	l.mode = modeText
	if l.tagName == "noparse" {
		l.rawUntil = "</#noparse>"
	}
	l.tagName = ""
}

var entityOps = []struct {
	text string
	typ  TokenType
}{
	{"&lt;=", TokenLe},
	{"&gt;=", TokenGe},
	{"&lt;", TokenLt},
	{"&gt;", TokenGt},
	{"&amp;&amp;", TokenAnd},
}

var twoCharOps = map[string]TokenType{
	"==": TokenEq,
	"!=": TokenNe,
	"<=": TokenLe,
	">=": TokenGe,
	"&&": TokenAnd,
	"||": TokenOr,
	"??": TokenExists,
	"+=": TokenPlusEq,
	"-=": TokenMinusEq,
	"*=": TokenMulEq,
	"/=": TokenDivEq,
	"%=": TokenModEq,
	"++": TokenIncrement,
	"--": TokenDecrement,
	"->": TokenArrow,
	"..": TokenDotDot,
}

var oneCharOps = map[byte]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMul,
	'/': TokenDiv,
	'%': TokenMod,
	'=': TokenAssign,
	'<': TokenLt,
	'>': TokenGt,
	'!': TokenBang,
	'?': TokenQuestion,
	'.': TokenDot,
	',': TokenComma,
	':': TokenColon,
	';': TokenSemicolon,
	'(': TokenParenOpen,
	')': TokenParenClose,
	'[': TokenBracketOpen,
	']': TokenBracketClose,
	'{': TokenBraceOpen,
	'}': TokenBraceClose,
}

// lexString lexes a string literal. The token value is the raw body; the
// parser decodes escapes and splits out ${} interpolations.
func (l *Lexer) lexString(quote byte, typ TokenType) (Token, error) {
	rest := l.rest()
	i := 1
	for i < len(rest) {
		switch rest[i] {
		case '\\':
			if typ == TokenString {
				i += 2
				continue
			}
		case quote:
			l.advance(i + 1)
			return l.makeToken(typ, rest[1:i]), nil
		}
		i++
	}
	return Token{}, l.syntaxError("unclosed string literal")
}

func (l *Lexer) lexNumber() (Token, error) {
	rest := l.rest()
	n := 0
	for n < len(rest) && isDigit(rest[n]) {
		n++
	}
	if n+1 < len(rest) && rest[n] == '.' && isDigit(rest[n+1]) {
		n++
		for n < len(rest) && isDigit(rest[n]) {
			n++
		}
	}
	l.advance(n)
	return l.makeToken(TokenNumber, rest[:n]), nil
}

func (l *Lexer) lexIdent() (Token, error) {
	rest := l.rest()
	n := 0
	for n < len(rest) {
		ch := rest[n]
		if ch < utf8.RuneSelf {
			if !isIdentPart(ch) {
				break
			}
			n++
			continue
		}
		r, size := utf8.DecodeRuneInString(rest[n:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		n += size
	}
	if n == 0 {
		r, _ := utf8.DecodeRuneInString(rest)
		return Token{}, l.syntaxError("unexpected character " + strconv.QuoteRune(r))
	}
	l.advance(n)
	return l.makeToken(TokenIdent, rest[:n]), nil
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.source)
}

func (l *Lexer) rest() string {
	if l.pos >= len(l.source) {
		return ""
	}
	return l.source[l.pos:]
}

func (l *Lexer) advance(n int) {
	end := min(l.pos+n, len(l.source))
	for _, c := range l.source[l.pos:end] {
		if c == '\n' {
			l.line++
			l.col = 0
		} else if l.col < 65535 {
			l.col++
		}
	}
	l.pos = end
}

func (l *Lexer) markStart() {
	l.start = l.pos
	l.startLine = l.line
	l.startCol = l.col
}

func (l *Lexer) span() syntax.Span {
	s := syntax.Span{
		StartLine:   l.startLine,
		StartCol:    l.startCol,
		StartOffset: uint32(l.start),
		EndLine:     l.line,
		EndCol:      l.col,
		EndOffset:   uint32(l.pos),
	}
	return shift(s, l.base)
}

// shift moves a span lexed out of an embedded source so that it is relative
// to the enclosing template.
func shift(s, base syntax.Span) syntax.Span {
	if base.StartLine == 0 {
		return s
	}
	if s.StartLine == 1 {
		s.StartCol += base.StartCol
	}
	if s.EndLine == 1 {
		s.EndCol += base.StartCol
	}
	s.StartLine += base.StartLine - 1
	s.EndLine += base.StartLine - 1
	s.StartOffset += base.StartOffset
	s.EndOffset += base.StartOffset
	return s
}

func (l *Lexer) makeToken(typ TokenType, value string) Token {
	return Token{Type: typ, Value: value, Span: l.span()}
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() {
		switch l.source[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.advance(1)
		default:
			return
		}
	}
}

func (l *Lexer) syntaxError(msg string) error {
	l.markStart()
	return errors.New(errors.ErrSyntax, msg).WithSpan(l.span())
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentStart(ch byte) bool {
	return isLetter(ch) || ch == '_' || ch == '$' || ch == '@'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

// Unescape decodes the escape sequences of a string literal body.
func Unescape(raw string) (string, error) {
	if !strings.Contains(raw, `\`) {
		return raw, nil
	}
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if ch != '\\' {
			sb.WriteByte(ch)
			continue
		}
		i++
		if i >= len(raw) {
			return "", errors.New(errors.ErrSyntax, "string literal ends with a backslash")
		}
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'f':
			sb.WriteByte('\f')
		case 'b':
			sb.WriteByte('\b')
		case 'l':
			sb.WriteByte('<')
		case 'g':
			sb.WriteByte('>')
		case 'a':
			sb.WriteByte('&')
		case '"', '\'', '\\', '$', '{', '=':
			sb.WriteByte(raw[i])
		case 'x':
			j := i + 1
			for j < len(raw) && j < i+5 && isHex(raw[j]) {
				j++
			}
			if j == i+1 {
				return "", errors.New(errors.ErrSyntax, `\x must be followed by hexadecimal digits`)
			}
			code, _ := strconv.ParseUint(raw[i+1:j], 16, 32)
			sb.WriteRune(rune(code))
			i = j - 1
		default:
			return "", errors.Newf(errors.ErrSyntax, "unknown escape sequence \\%c", raw[i])
		}
	}
	return sb.String(), nil
}

func isHex(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
