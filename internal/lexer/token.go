// Package lexer tokenizes FTL template source.
package lexer

import (
	"fmt"

	"github.com/ftlgo/ftl/syntax"
)

// TokenType represents the type of a token.
type TokenType int

const (
	// Template data (raw text between tags)
	TokenText TokenType = iota

	// Tags
	TokenInterpStart    // ${
	TokenInterpEnd      // }
	TokenDirectiveStart // <#name
	TokenDirectiveEnd   // </#name>
	TokenCallStart      // <@
	TokenCallEnd        // </@name>
	TokenTagEnd         // >
	TokenEmptyTagEnd    // />
	TokenComment        // <#-- -->

	// Literals
	TokenIdent
	TokenString    // "..." or '...', Value holds the undecoded body
	TokenRawString // r"..."
	TokenNumber

	// Operators
	TokenPlus      // +
	TokenMinus     // -
	TokenMul       // *
	TokenDiv       // /
	TokenMod       // %
	TokenEq        // ==
	TokenAssign    // =
	TokenNe        // !=
	TokenLt        // < or &lt;
	TokenLe        // <= or &lt;=
	TokenGt        // > or &gt;
	TokenGe        // >= or &gt;=
	TokenAnd       // &&
	TokenOr        // ||
	TokenBang      // !
	TokenQuestion  // ?
	TokenExists    // ??
	TokenPlusEq    // +=
	TokenMinusEq   // -=
	TokenMulEq     // *=
	TokenDivEq     // /=
	TokenModEq     // %=
	TokenIncrement // ++
	TokenDecrement // --
	TokenArrow     // ->

	// Ranges
	TokenDotDot     // ..
	TokenDotDotLess // ..< or ..!
	TokenDotDotStar // ..*

	// Punctuation
	TokenDot          // .
	TokenComma        // ,
	TokenColon        // :
	TokenSemicolon    // ;
	TokenParenOpen    // (
	TokenParenClose   // )
	TokenBracketOpen  // [
	TokenBracketClose // ]
	TokenBraceOpen    // {
	TokenBraceClose   // }

	TokenEOF
)

// Token represents a single token from the lexer.
type Token struct {
	Type  TokenType
	Value string
	Span  syntax.Span
}

// String returns a debug representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type, t.Value)
}

var tokenTypeNames = map[TokenType]string{
	TokenText:           "Text",
	TokenInterpStart:    "InterpStart",
	TokenInterpEnd:      "InterpEnd",
	TokenDirectiveStart: "DirectiveStart",
	TokenDirectiveEnd:   "DirectiveEnd",
	TokenCallStart:      "CallStart",
	TokenCallEnd:        "CallEnd",
	TokenTagEnd:         "TagEnd",
	TokenEmptyTagEnd:    "EmptyTagEnd",
	TokenComment:        "Comment",
	TokenIdent:          "Ident",
	TokenString:         "String",
	TokenRawString:      "RawString",
	TokenNumber:         "Number",
	TokenPlus:           "Plus",
	TokenMinus:          "Minus",
	TokenMul:            "Mul",
	TokenDiv:            "Div",
	TokenMod:            "Mod",
	TokenEq:             "Eq",
	TokenAssign:         "Assign",
	TokenNe:             "Ne",
	TokenLt:             "Lt",
	TokenLe:             "Le",
	TokenGt:             "Gt",
	TokenGe:             "Ge",
	TokenAnd:            "And",
	TokenOr:             "Or",
	TokenBang:           "Bang",
	TokenQuestion:       "Question",
	TokenExists:         "Exists",
	TokenPlusEq:         "PlusEq",
	TokenMinusEq:        "MinusEq",
	TokenMulEq:          "MulEq",
	TokenDivEq:          "DivEq",
	TokenModEq:          "ModEq",
	TokenIncrement:      "Increment",
	TokenDecrement:      "Decrement",
	TokenArrow:          "Arrow",
	TokenDotDot:         "DotDot",
	TokenDotDotLess:     "DotDotLess",
	TokenDotDotStar:     "DotDotStar",
	TokenDot:            "Dot",
	TokenComma:          "Comma",
	TokenColon:          "Colon",
	TokenSemicolon:      "Semicolon",
	TokenParenOpen:      "ParenOpen",
	TokenParenClose:     "ParenClose",
	TokenBracketOpen:    "BracketOpen",
	TokenBracketClose:   "BracketClose",
	TokenBraceOpen:      "BraceOpen",
	TokenBraceClose:     "BraceClose",
	TokenEOF:            "EOF",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// IsTag reports whether the token belongs to the markup of an FTL tag
// rather than to an expression or to template text.
func (t TokenType) IsTag() bool {
	switch t {
	case TokenDirectiveStart, TokenDirectiveEnd, TokenCallStart, TokenCallEnd,
		TokenTagEnd, TokenEmptyTagEnd, TokenComment:
		return true
	}
	return false
}
