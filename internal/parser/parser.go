package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ftlgo/ftl/internal/errors"
	"github.com/ftlgo/ftl/internal/lexer"
	"github.com/ftlgo/ftl/value"
)

const maxRecursion = 150

var reservedWords = map[string]bool{
	"as": true, "in": true, "using": true,
	"gt": true, "gte": true, "lt": true, "lte": true,
}

// Parser parses FTL templates.
type Parser struct {
	tokens   []lexer.Token
	pos      int
	name     string
	source   string
	depth    int
	lastSpan Span
	header   *Header

	loops    int
	switches int
	lists    int
	macros   int
	function bool
}

// Parse tokenizes and parses a template.
func Parse(name, source string) (*Template, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, withLocation(err, name, source)
	}
	tokens = lexer.StripWhitespace(tokens, stripLinesEnabled(tokens))

	p := &Parser{tokens: tokens, name: name, source: source}
	body, err := p.subparse("", func(tok *lexer.Token) bool {
		return tok.Type == lexer.TokenEOF
	})
	if err != nil {
		return nil, err
	}
	return &Template{
		Name:   name,
		Source: source,
		Header: p.header,
		Body:   body,
		span:   p.expandSpan(Span{StartLine: 1}),
	}, nil
}

// ParseExpression parses a standalone expression such as the operand of
// ?eval.
func ParseExpression(source string) (Expr, error) {
	tokens, err := lexer.NewExpression(source, Span{}).All()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens, source: source}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.matches(lexer.TokenEOF) {
		return nil, p.unexpected("end of expression")
	}
	return expr, nil
}

func withLocation(err error, name, source string) error {
	if e, ok := err.(*errors.Error); ok {
		return e.WithName(name).WithSource(source)
	}
	return err
}

// stripLinesEnabled looks for strip_whitespace=false in a leading <#ftl>
// header before white-space stripping has to run.
func stripLinesEnabled(tokens []lexer.Token) bool {
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if tok.Type == lexer.TokenComment || (tok.Type == lexer.TokenText && strings.TrimSpace(tok.Value) == "") {
			i++
			continue
		}
		break
	}
	if i >= len(tokens) || tokens[i].Type != lexer.TokenDirectiveStart || tokens[i].Value != "ftl" {
		return true
	}
	for j := i + 1; j+2 < len(tokens) && tokens[j].Type != lexer.TokenTagEnd; j++ {
		if tokens[j].Type == lexer.TokenIdent && tokens[j].Value == "strip_whitespace" &&
			tokens[j+1].Type == lexer.TokenAssign {
			v := tokens[j+2]
			return !(v.Type == lexer.TokenIdent && v.Value == "false")
		}
	}
	return true
}

func (p *Parser) current() *lexer.Token {
	if p.pos >= len(p.tokens) {
		return &lexer.Token{Type: lexer.TokenEOF, Span: p.lastSpan}
	}
	return &p.tokens[p.pos]
}

func (p *Parser) peek(n int) *lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return &lexer.Token{Type: lexer.TokenEOF, Span: p.lastSpan}
	}
	return &p.tokens[p.pos+n]
}

func (p *Parser) advance() *lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.lastSpan = tok.Span
		p.pos++
	}
	return tok
}

func (p *Parser) expandSpan(start Span) Span {
	return start.Join(p.lastSpan)
}

func (p *Parser) errorAt(span Span, msg string) error {
	return errors.New(errors.ErrSyntax, msg).WithSpan(span).WithName(p.name).WithSource(p.source)
}

func (p *Parser) syntaxError(msg string) error {
	return p.errorAt(p.current().Span, msg)
}

func (p *Parser) unexpected(expected string) error {
	return p.syntaxError(fmt.Sprintf("unexpected %s, expected %s", tokenDescription(p.current()), expected))
}

func (p *Parser) expect(typ lexer.TokenType, expected string) (*lexer.Token, error) {
	if !p.matches(typ) {
		return nil, p.unexpected(expected)
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent(expected string) (string, error) {
	tok := p.current()
	if tok.Type != lexer.TokenIdent || reservedWords[tok.Value] {
		return "", p.unexpected(expected)
	}
	p.advance()
	return tok.Value, nil
}

// expectName accepts an identifier or a string literal, as FTL allows for
// variable and macro names.
func (p *Parser) expectName(expected string) (string, error) {
	tok := p.current()
	switch tok.Type {
	case lexer.TokenString:
		p.advance()
		s, err := lexer.Unescape(tok.Value)
		if err != nil {
			return "", p.errorAt(tok.Span, err.Error())
		}
		return s, nil
	case lexer.TokenRawString:
		p.advance()
		return tok.Value, nil
	}
	return p.expectIdent(expected)
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.skipKeyword(kw) {
		return p.unexpected(fmt.Sprintf("%q", kw))
	}
	return nil
}

func (p *Parser) skip(typ lexer.TokenType) bool {
	if p.matches(typ) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) skipKeyword(kw string) bool {
	if p.matchesKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matches(typ lexer.TokenType) bool {
	return p.current().Type == typ
}

func (p *Parser) matchesKeyword(kw string) bool {
	tok := p.current()
	return tok.Type == lexer.TokenIdent && tok.Value == kw
}

func (p *Parser) atTagEnd() bool {
	return p.matches(lexer.TokenTagEnd) || p.matches(lexer.TokenEmptyTagEnd)
}

// closeTag consumes the end of a tag and reports whether it was "/>".
func (p *Parser) closeTag() (bool, error) {
	switch p.current().Type {
	case lexer.TokenTagEnd:
		p.advance()
		return false, nil
	case lexer.TokenEmptyTagEnd:
		p.advance()
		return true, nil
	}
	return false, p.unexpected("end of tag")
}

func tokenDescription(tok *lexer.Token) string {
	switch tok.Type {
	case lexer.TokenEOF:
		return "end of input"
	case lexer.TokenIdent:
		return fmt.Sprintf("name %q", tok.Value)
	case lexer.TokenString, lexer.TokenRawString:
		return "string"
	case lexer.TokenNumber:
		return fmt.Sprintf("number %s", tok.Value)
	case lexer.TokenText:
		return "template text"
	case lexer.TokenDirectiveStart:
		return "<#" + tok.Value + ">"
	case lexer.TokenDirectiveEnd:
		return "</#" + tok.Value + ">"
	case lexer.TokenCallStart:
		return "<@"
	case lexer.TokenCallEnd:
		return "</@" + tok.Value + ">"
	case lexer.TokenTagEnd, lexer.TokenEmptyTagEnd:
		return "end of tag"
	case lexer.TokenInterpEnd:
		return "end of interpolation"
	}
	return fmt.Sprintf("%q", tok.Value)
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxRecursion {
		return p.syntaxError("template exceeds maximum nesting depth")
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

// stopAt returns a predicate that ends a body at any of the closing tags in
// ends or at any of the directives in starts.
func stopAt(ends []string, starts ...string) func(*lexer.Token) bool {
	return func(tok *lexer.Token) bool {
		switch tok.Type {
		case lexer.TokenDirectiveEnd:
			for _, e := range ends {
				if tok.Value == e {
					return true
				}
			}
		case lexer.TokenDirectiveStart:
			for _, s := range starts {
				if tok.Value == s {
					return true
				}
			}
		}
		return false
	}
}

func (p *Parser) subparse(opener string, stop func(*lexer.Token) bool) ([]Stmt, error) {
	var stmts []Stmt
	for {
		tok := p.current()
		if stop(tok) {
			return stmts, nil
		}
		switch tok.Type {
		case lexer.TokenEOF:
			return nil, p.syntaxError(fmt.Sprintf("unclosed %s", opener))

		case lexer.TokenText:
			p.advance()
			stmts = append(stmts, &Text{Raw: tok.Value, span: tok.Span})

		case lexer.TokenComment:
			p.advance()

		case lexer.TokenInterpStart:
			p.advance()
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenInterpEnd, "'}'"); err != nil {
				return nil, err
			}
			stmts = append(stmts, &Interpolation{Expr: expr, span: p.expandSpan(tok.Span)})

		case lexer.TokenDirectiveStart:
			p.advance()
			if tok.Value == "ftl" {
				if err := p.parseHeader(tok, stmts); err != nil {
					return nil, err
				}
				stmts = nil
				continue
			}
			if err := p.enter(); err != nil {
				return nil, err
			}
			stmt, err := p.parseDirective(tok)
			p.leave()
			if err != nil {
				return nil, err
			}
			if stmt != nil {
				stmts = append(stmts, stmt)
			}

		case lexer.TokenCallStart:
			p.advance()
			if err := p.enter(); err != nil {
				return nil, err
			}
			stmt, err := p.parseMacroCall(tok)
			p.leave()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)

		case lexer.TokenDirectiveEnd, lexer.TokenCallEnd:
			return nil, p.syntaxError(fmt.Sprintf("unexpected %s", tokenDescription(tok)))

		default:
			return nil, p.syntaxError(fmt.Sprintf("unexpected token %s", tok.Type))
		}
	}
}

func (p *Parser) parseHeader(tok *lexer.Token, before []Stmt) error {
	if p.header != nil || p.depth > 0 {
		return p.errorAt(tok.Span, "<#ftl> must be the first tag of the template")
	}
	for _, s := range before {
		if t, ok := s.(*Text); !ok || strings.TrimSpace(t.Raw) != "" {
			return p.errorAt(tok.Span, "<#ftl> must be the first tag of the template")
		}
	}
	params, err := p.parseNamedParams()
	if err != nil {
		return err
	}
	if _, err := p.closeTag(); err != nil {
		return err
	}
	p.header = &Header{Params: params, span: p.expandSpan(tok.Span)}
	return nil
}

func (p *Parser) parseNamedParams() ([]NamedArg, error) {
	var params []NamedArg
	for !p.atTagEnd() {
		name, err := p.expectIdent("parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenAssign, "'='"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		params = append(params, NamedArg{Name: name, Value: val})
		p.skip(lexer.TokenComma)
	}
	return params, nil
}

func (p *Parser) parseDirective(tok *lexer.Token) (Stmt, error) {
	switch tok.Value {
	case "if":
		return p.parseIf(tok)
	case "list":
		return p.parseList(tok)
	case "foreach":
		return p.parseForeach(tok)
	case "items":
		return p.parseItems(tok)
	case "sep":
		return p.parseSep(tok)
	case "switch":
		return p.parseSwitch(tok)
	case "break":
		if p.loops == 0 && p.switches == 0 {
			return nil, p.errorAt(tok.Span, "<#break> outside of a list or switch")
		}
		if _, err := p.closeTag(); err != nil {
			return nil, err
		}
		return &Break{span: p.expandSpan(tok.Span)}, nil
	case "continue":
		if p.loops == 0 {
			return nil, p.errorAt(tok.Span, "<#continue> outside of a list")
		}
		if _, err := p.closeTag(); err != nil {
			return nil, err
		}
		return &Continue{span: p.expandSpan(tok.Span)}, nil
	case "assign":
		return p.parseAssign(tok, ScopeAssign)
	case "local":
		return p.parseAssign(tok, ScopeLocal)
	case "global":
		return p.parseAssign(tok, ScopeGlobal)
	case "var":
		return p.parseAssign(tok, ScopeVar)
	case "macro":
		return p.parseMacro(tok, false)
	case "function":
		return p.parseMacro(tok, true)
	case "return":
		return p.parseReturn(tok)
	case "nested":
		return p.parseNested(tok)
	case "include":
		return p.parseInclude(tok)
	case "import":
		return p.parseImport(tok)
	case "attempt":
		return p.parseAttempt(tok)
	case "compress":
		body, err := p.parseBlockBody(tok)
		if err != nil {
			return nil, err
		}
		return &Compress{Body: body, span: p.expandSpan(tok.Span)}, nil
	case "escape":
		return p.parseEscape(tok)
	case "noescape":
		body, err := p.parseBlockBody(tok)
		if err != nil {
			return nil, err
		}
		return &NoEscape{Body: body, span: p.expandSpan(tok.Span)}, nil
	case "autoesc", "noautoesc":
		body, err := p.parseBlockBody(tok)
		if err != nil {
			return nil, err
		}
		return &AutoEsc{Enabled: tok.Value == "autoesc", Body: body, span: p.expandSpan(tok.Span)}, nil
	case "outputformat":
		return p.parseOutputFormat(tok)
	case "noparse":
		return p.parseNoparse(tok)
	case "setting":
		return p.parseSetting(tok)
	case "stop":
		var msg Expr
		if !p.atTagEnd() {
			var err error
			if msg, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		if _, err := p.closeTag(); err != nil {
			return nil, err
		}
		return &Stop{Message: msg, span: p.expandSpan(tok.Span)}, nil
	case "flush":
		if _, err := p.closeTag(); err != nil {
			return nil, err
		}
		return &Flush{span: p.expandSpan(tok.Span)}, nil
	case "visit":
		return p.parseVisit(tok)
	case "recurse":
		return p.parseRecurse(tok)
	case "t", "lt", "rt", "nt":
		_, err := p.closeTag()
		return nil, err
	}
	return nil, p.errorAt(tok.Span, fmt.Sprintf("unknown directive <#%s>", tok.Value))
}

// parseBlockBody reads the rest of a parameterless opening tag and the body
// up to the matching closing tag.
func (p *Parser) parseBlockBody(tok *lexer.Token) ([]Stmt, error) {
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	return p.parseBodyTo(tok)
}

func (p *Parser) parseBodyTo(tok *lexer.Token) ([]Stmt, error) {
	body, err := p.subparse("<#"+tok.Value+">", stopAt([]string{tok.Value}))
	if err != nil {
		return nil, err
	}
	p.advance()
	return body, nil
}

func (p *Parser) parseIf(tok *lexer.Token) (Stmt, error) {
	node := &If{}
	cond := tok
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.closeTag(); err != nil {
			return nil, err
		}
		body, err := p.subparse("<#if>", stopAt([]string{"if"}, "elseif", "else"))
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, IfBranch{Cond: expr, Body: body})
		cond = p.advance()
		if cond.Type != lexer.TokenDirectiveStart || cond.Value != "elseif" {
			break
		}
	}
	if cond.Type == lexer.TokenDirectiveStart {
		if _, err := p.closeTag(); err != nil {
			return nil, err
		}
		body, err := p.subparse("<#if>", stopAt([]string{"if"}))
		if err != nil {
			return nil, err
		}
		p.advance()
		node.Else = body
	}
	node.span = p.expandSpan(tok.Span)
	return node, nil
}

func (p *Parser) parseLoopVars() (string, string, error) {
	loopVar, err := p.expectName("loop variable name")
	if err != nil {
		return "", "", err
	}
	var valueVar string
	if p.skip(lexer.TokenComma) {
		if valueVar, err = p.expectName("value variable name"); err != nil {
			return "", "", err
		}
	}
	return loopVar, valueVar, nil
}

func (p *Parser) parseList(tok *lexer.Token) (Stmt, error) {
	src, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	node := &List{Source: src}
	if p.skipKeyword("as") {
		if node.LoopVar, node.ValueVar, err = p.parseLoopVars(); err != nil {
			return nil, err
		}
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	return p.parseListBody(tok, node)
}

func (p *Parser) parseForeach(tok *lexer.Token) (Stmt, error) {
	name, err := p.expectName("loop variable name")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	src, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	return p.parseListBody(tok, &List{Source: src, LoopVar: name})
}

func (p *Parser) parseListBody(tok *lexer.Token, node *List) (Stmt, error) {
	p.lists++
	if node.LoopVar != "" {
		p.loops++
	}
	body, err := p.subparse("<#"+tok.Value+">", stopAt([]string{tok.Value}, "else"))
	if node.LoopVar != "" {
		p.loops--
	}
	p.lists--
	if err != nil {
		return nil, err
	}
	node.Body = body
	if end := p.advance(); end.Type == lexer.TokenDirectiveStart {
		if _, err := p.closeTag(); err != nil {
			return nil, err
		}
		if node.Else, err = p.parseBodyTo(tok); err != nil {
			return nil, err
		}
	}
	node.span = p.expandSpan(tok.Span)
	return node, nil
}

func (p *Parser) parseItems(tok *lexer.Token) (Stmt, error) {
	if p.lists == 0 {
		return nil, p.errorAt(tok.Span, "<#items> must be inside <#list>")
	}
	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	loopVar, valueVar, err := p.parseLoopVars()
	if err != nil {
		return nil, err
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	p.loops++
	body, err := p.parseBodyTo(tok)
	p.loops--
	if err != nil {
		return nil, err
	}
	return &Items{LoopVar: loopVar, ValueVar: valueVar, Body: body, span: p.expandSpan(tok.Span)}, nil
}

// parseSep reads <#sep>. The closing tag is optional: without it the
// separator extends to the end of the enclosing list or items body.
func (p *Parser) parseSep(tok *lexer.Token) (Stmt, error) {
	if p.lists == 0 {
		return nil, p.errorAt(tok.Span, "<#sep> must be inside <#list>")
	}
	empty, err := p.closeTag()
	if err != nil {
		return nil, err
	}
	var body []Stmt
	if !empty {
		body, err = p.subparse("<#sep>", stopAt([]string{"sep", "list", "items", "foreach"}, "else"))
		if err != nil {
			return nil, err
		}
		if end := p.current(); end.Type == lexer.TokenDirectiveEnd && end.Value == "sep" {
			p.advance()
		}
	}
	return &Sep{Body: body, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseSwitch(tok *lexer.Token) (Stmt, error) {
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	node := &Switch{Value: val}
	p.switches++
	defer func() { p.switches-- }()
	for {
		cur := p.current()
		switch {
		case cur.Type == lexer.TokenComment,
			cur.Type == lexer.TokenText && strings.TrimSpace(cur.Value) == "" && len(node.Cases) == 0:
			p.advance()
		case cur.Type == lexer.TokenDirectiveStart && (cur.Value == "case" || cur.Value == "on" || cur.Value == "default"):
			p.advance()
			c := Case{On: cur.Value == "on", span: cur.Span}
			if cur.Value != "default" {
				for {
					v, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					c.Values = append(c.Values, v)
					if !p.skip(lexer.TokenComma) {
						break
					}
				}
			}
			if _, err := p.closeTag(); err != nil {
				return nil, err
			}
			body, err := p.subparse("<#switch>", stopAt([]string{"switch"}, "case", "on", "default"))
			if err != nil {
				return nil, err
			}
			c.Body = body
			node.Cases = append(node.Cases, c)
		case cur.Type == lexer.TokenDirectiveEnd && cur.Value == "switch":
			p.advance()
			node.span = p.expandSpan(tok.Span)
			return node, nil
		default:
			return nil, p.unexpected("<#case>, <#on> or <#default>")
		}
	}
}

var assignOps = map[lexer.TokenType]string{
	lexer.TokenAssign:    "=",
	lexer.TokenPlusEq:    "+=",
	lexer.TokenMinusEq:   "-=",
	lexer.TokenMulEq:     "*=",
	lexer.TokenDivEq:     "/=",
	lexer.TokenModEq:     "%=",
	lexer.TokenIncrement: "++",
	lexer.TokenDecrement: "--",
}

func (p *Parser) parseAssign(tok *lexer.Token, scope AssignScope) (Stmt, error) {
	node := &Assign{Scope: scope}
	for {
		start := p.current().Span
		target, err := p.parseAssignTarget()
		if err != nil {
			return nil, err
		}
		opTok := p.current()
		op, isOp := assignOps[opTok.Type]

		if !isOp && len(node.Items) == 0 && scope != ScopeVar {
			return p.parseAssignCapture(tok, scope, target)
		}

		item := Assignment{Target: target}
		if isOp {
			p.advance()
			item.Op = op
			if op != "++" && op != "--" {
				if item.Value, err = p.parseExpr(); err != nil {
					return nil, err
				}
			}
		} else if scope != ScopeVar {
			return nil, p.unexpected("assignment operator")
		}
		item.span = p.expandSpan(start)
		node.Items = append(node.Items, item)

		p.skip(lexer.TokenComma)
		if p.atTagEnd() || p.matchesKeyword("in") {
			break
		}
	}
	if p.skipKeyword("in") {
		if scope == ScopeLocal || scope == ScopeVar {
			return nil, p.syntaxError(fmt.Sprintf("<#%s> does not support \"in\"", scope))
		}
		ns, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node.Namespace = ns
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	node.span = p.expandSpan(tok.Span)
	return node, nil
}

func (p *Parser) parseAssignCapture(tok *lexer.Token, scope AssignScope, target Expr) (Stmt, error) {
	v, ok := target.(*Var)
	if !ok {
		return nil, p.unexpected("assignment operator")
	}
	node := &AssignCapture{Scope: scope, Name: v.Name}
	if p.skipKeyword("in") {
		ns, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node.Namespace = ns
	}
	if !p.matches(lexer.TokenTagEnd) {
		return nil, p.unexpected("assignment operator")
	}
	p.advance()
	body, err := p.parseBodyTo(tok)
	if err != nil {
		return nil, err
	}
	node.Body = body
	node.span = p.expandSpan(tok.Span)
	return node, nil
}

// parseAssignTarget reads a name optionally followed by .attr and [index]
// selectors.
func (p *Parser) parseAssignTarget() (Expr, error) {
	start := p.current().Span
	name, err := p.expectName("variable name")
	if err != nil {
		return nil, err
	}
	var target Expr = &Var{Name: name, span: p.expandSpan(start)}
	for {
		switch {
		case p.skip(lexer.TokenDot):
			attr, err := p.expectName("attribute name")
			if err != nil {
				return nil, err
			}
			target = &GetAttr{Expr: target, Name: attr, span: p.expandSpan(start)}
		case p.skip(lexer.TokenBracketOpen):
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenBracketClose, "']'"); err != nil {
				return nil, err
			}
			target = &GetItem{Expr: target, Index: idx, span: p.expandSpan(start)}
		default:
			return target, nil
		}
	}
}

func (p *Parser) parseMacro(tok *lexer.Token, isFunction bool) (Stmt, error) {
	if p.macros > 0 {
		return nil, p.errorAt(tok.Span, "macros can not be defined inside other macros")
	}
	name, err := p.expectName("macro name")
	if err != nil {
		return nil, err
	}
	node := &Macro{Name: name, IsFunction: isFunction}
	parens := p.skip(lexer.TokenParenOpen)
	for !p.atTagEnd() && !(parens && p.matches(lexer.TokenParenClose)) {
		pname, err := p.expectIdent("parameter name")
		if err != nil {
			return nil, err
		}
		if node.CatchAll != "" {
			return nil, p.syntaxError("the catch-all parameter must be the last one")
		}
		switch {
		case p.matches(lexer.TokenDotDot) && p.peek(1).Type == lexer.TokenDot:
			p.advance()
			p.advance()
			node.CatchAll = pname
		case p.skip(lexer.TokenAssign):
			def, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			node.Params = append(node.Params, Param{Name: pname, Default: def})
		default:
			node.Params = append(node.Params, Param{Name: pname})
		}
		p.skip(lexer.TokenComma)
	}
	if parens {
		if _, err := p.expect(lexer.TokenParenClose, "')'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	p.macros++
	p.function = isFunction
	loops, switches := p.loops, p.switches
	p.loops, p.switches = 0, 0
	body, err := p.parseBodyTo(tok)
	p.loops, p.switches = loops, switches
	p.macros--
	p.function = false
	if err != nil {
		return nil, err
	}
	node.Body = body
	node.span = p.expandSpan(tok.Span)
	return node, nil
}

func (p *Parser) parseReturn(tok *lexer.Token) (Stmt, error) {
	if p.macros == 0 {
		return nil, p.errorAt(tok.Span, "<#return> outside of a macro or function")
	}
	node := &Return{}
	if !p.atTagEnd() {
		if !p.function {
			return nil, p.syntaxError("a macro can not return a value")
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node.Value = v
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	node.span = p.expandSpan(tok.Span)
	return node, nil
}

func (p *Parser) parseNested(tok *lexer.Token) (Stmt, error) {
	node := &Nested{}
	for !p.atTagEnd() {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node.Args = append(node.Args, arg)
		p.skip(lexer.TokenComma)
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	node.span = p.expandSpan(tok.Span)
	return node, nil
}

func (p *Parser) parseMacroCall(tok *lexer.Token) (Stmt, error) {
	callee, err := p.parseCallee()
	if err != nil {
		return nil, err
	}
	node := &MacroCall{Callee: callee}

	if p.matches(lexer.TokenIdent) && p.peek(1).Type == lexer.TokenAssign {
		for p.matches(lexer.TokenIdent) {
			name := p.advance().Value
			if _, err := p.expect(lexer.TokenAssign, "'='"); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			node.NamedArgs = append(node.NamedArgs, NamedArg{Name: name, Value: val})
			p.skip(lexer.TokenComma)
		}
	} else {
		for !p.atTagEnd() && !p.matches(lexer.TokenSemicolon) {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			node.Args = append(node.Args, arg)
			p.skip(lexer.TokenComma)
		}
	}

	if p.skip(lexer.TokenSemicolon) {
		for {
			name, err := p.expectIdent("loop variable name")
			if err != nil {
				return nil, err
			}
			node.LoopVars = append(node.LoopVars, name)
			if !p.skip(lexer.TokenComma) {
				break
			}
		}
	}

	empty, err := p.closeTag()
	if err != nil {
		return nil, err
	}
	if !empty {
		node.HasBody = true
		body, err := p.subparse("<@"+p.calleeName(callee)+">", func(t *lexer.Token) bool {
			return t.Type == lexer.TokenCallEnd
		})
		if err != nil {
			return nil, err
		}
		end := p.advance()
		if end.Value != "" && end.Value != p.calleeName(callee) {
			return nil, p.errorAt(end.Span, fmt.Sprintf("</@%s> does not match <@%s>", end.Value, p.calleeName(callee)))
		}
		node.Body = body
	}
	node.span = p.expandSpan(tok.Span)
	return node, nil
}

func (p *Parser) calleeName(callee Expr) string {
	return callee.Span().Text(p.source)
}

// parseCallee reads the macro reference of <@...>: a name with optional
// .attr and [index] selectors. A selector must follow the name without
// white-space; "<@m [1, 2]/>" passes a sequence to m.
func (p *Parser) parseCallee() (Expr, error) {
	start := p.current().Span
	var expr Expr
	if p.skip(lexer.TokenDot) {
		name, err := p.expectIdent("special variable name")
		if err != nil {
			return nil, err
		}
		expr = &SpecialVar{Name: name, span: p.expandSpan(start)}
	} else {
		name, err := p.expectIdent("macro name")
		if err != nil {
			return nil, err
		}
		expr = &Var{Name: name, span: p.expandSpan(start)}
	}
	for p.current().Span.StartOffset == p.lastSpan.EndOffset {
		switch {
		case p.matches(lexer.TokenDot):
			p.advance()
			name, err := p.expectIdent("attribute name")
			if err != nil {
				return nil, err
			}
			expr = &GetAttr{Expr: expr, Name: name, span: p.expandSpan(start)}
		case p.matches(lexer.TokenBracketOpen):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenBracketClose, "']'"); err != nil {
				return nil, err
			}
			expr = &GetItem{Expr: expr, Index: idx, span: p.expandSpan(start)}
		default:
			return expr, nil
		}
	}
	return expr, nil
}

func (p *Parser) parseInclude(tok *lexer.Token) (Stmt, error) {
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	params, err := p.parseNamedParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	return &Include{Name: name, Params: params, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseImport(tok *lexer.Token) (Stmt, error) {
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	as, err := p.expectIdent("namespace name")
	if err != nil {
		return nil, err
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	return &Import{Name: name, As: as, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseAttempt(tok *lexer.Token) (Stmt, error) {
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	body, err := p.subparse("<#attempt>", stopAt(nil, "recover"))
	if err != nil {
		return nil, err
	}
	p.advance()
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	recoverBody, err := p.subparse("<#attempt>", stopAt([]string{"attempt", "recover"}))
	if err != nil {
		return nil, err
	}
	p.advance()
	return &Attempt{Body: body, Recover: recoverBody, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseEscape(tok *lexer.Token) (Stmt, error) {
	name, err := p.expectIdent("escape variable name")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlockBody(tok)
	if err != nil {
		return nil, err
	}
	return &Escape{Var: name, Expr: expr, Body: body, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseOutputFormat(tok *lexer.Token) (Stmt, error) {
	format, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlockBody(tok)
	if err != nil {
		return nil, err
	}
	return &OutputFormat{Format: format, Body: body, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseNoparse(tok *lexer.Token) (Stmt, error) {
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	node := &Text{span: tok.Span}
	if t := p.current(); t.Type == lexer.TokenText {
		p.advance()
		node.Raw = t.Value
		node.span = t.Span
	}
	end := p.current()
	if end.Type != lexer.TokenDirectiveEnd || end.Value != "noparse" {
		return nil, p.unexpected("</#noparse>")
	}
	p.advance()
	return node, nil
}

func (p *Parser) parseSetting(tok *lexer.Token) (Stmt, error) {
	name, err := p.expectIdent("setting name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenAssign, "'='"); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	return &Setting{Name: name, Value: val, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseVisit(tok *lexer.Token) (Stmt, error) {
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	using, err := p.parseUsing()
	if err != nil {
		return nil, err
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	return &Visit{Node: node, Using: using, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseRecurse(tok *lexer.Token) (Stmt, error) {
	var node Expr
	if !p.atTagEnd() && !p.matchesKeyword("using") {
		var err error
		if node, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	using, err := p.parseUsing()
	if err != nil {
		return nil, err
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	return &Recurse{Node: node, Using: using, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseUsing() (Expr, error) {
	if !p.skipKeyword("using") {
		return nil, nil
	}
	return p.parseExpr()
}

// --- Expressions ---

func (p *Parser) parseExpr() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *Parser) parseOr() (Expr, error) {
	start := p.current().Span
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.skip(lexer.TokenOr) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "||", Left: left, Right: right, span: p.expandSpan(start)}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	start := p.current().Span
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.skip(lexer.TokenAnd) {
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "&&", Left: left, Right: right, span: p.expandSpan(start)}
	}
	return left, nil
}

func (p *Parser) parseEquality() (Expr, error) {
	start := p.current().Span
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.current().Type {
		case lexer.TokenEq, lexer.TokenAssign:
			op = "=="
		case lexer.TokenNe:
			op = "!="
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &Compare{Op: op, Left: left, Right: right, span: p.expandSpan(start)}
	}
}

func (p *Parser) relationalOp() string {
	tok := p.current()
	switch tok.Type {
	case lexer.TokenLt:
		return "<"
	case lexer.TokenLe:
		return "<="
	case lexer.TokenGt:
		return ">"
	case lexer.TokenGe:
		return ">="
	case lexer.TokenIdent:
		switch tok.Value {
		case "lt":
			return "<"
		case "lte":
			return "<="
		case "gt":
			return ">"
		case "gte":
			return ">="
		}
	}
	return ""
}

func (p *Parser) parseRelational() (Expr, error) {
	start := p.current().Span
	left, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	for {
		op := p.relationalOp()
		if op == "" {
			return left, nil
		}
		p.advance()
		right, err := p.parseRange()
		if err != nil {
			return nil, err
		}
		left = &Compare{Op: op, Left: left, Right: right, span: p.expandSpan(start)}
	}
}

func (p *Parser) parseRange() (Expr, error) {
	start := p.current().Span
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	var mode RangeMode
	switch p.current().Type {
	case lexer.TokenDotDot:
		mode = RangeInclusive
	case lexer.TokenDotDotLess:
		mode = RangeExclusive
	case lexer.TokenDotDotStar:
		mode = RangeLength
	default:
		return left, nil
	}
	p.advance()
	if mode == RangeInclusive && !p.canStartExpr() {
		return &Range{Start: left, Mode: RangeUnbounded, span: p.expandSpan(start)}, nil
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &Range{Start: left, End: right, Mode: mode, span: p.expandSpan(start)}, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	start := p.current().Span
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.current().Type {
		case lexer.TokenPlus:
			op = "+"
		case lexer.TokenMinus:
			op = "-"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: op, Left: left, Right: right, span: p.expandSpan(start)}
	}
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	start := p.current().Span
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.current().Type {
		case lexer.TokenMul:
			op = "*"
		case lexer.TokenDiv:
			op = "/"
		case lexer.TokenMod:
			op = "%"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: op, Left: left, Right: right, span: p.expandSpan(start)}
	}
}

func (p *Parser) parseUnary() (Expr, error) {
	start := p.current().Span
	var op string
	switch p.current().Type {
	case lexer.TokenBang:
		op = "!"
	case lexer.TokenMinus:
		op = "-"
	case lexer.TokenPlus:
		op = "+"
	default:
		return p.parsePostfix()
	}
	p.advance()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &UnaryOp{Op: op, Expr: operand, span: p.expandSpan(start)}, nil
}

func (p *Parser) canStartExpr() bool {
	tok := p.current()
	switch tok.Type {
	case lexer.TokenIdent:
		return !reservedWords[tok.Value]
	case lexer.TokenNumber, lexer.TokenString, lexer.TokenRawString,
		lexer.TokenParenOpen, lexer.TokenBracketOpen, lexer.TokenBraceOpen,
		lexer.TokenMinus, lexer.TokenPlus, lexer.TokenBang, lexer.TokenDot:
		return true
	}
	return false
}

func (p *Parser) parsePostfix() (Expr, error) {
	start := p.current().Span
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.current().Type {
		case lexer.TokenDot:
			p.advance()
			name, err := p.expectName("attribute name")
			if err != nil {
				return nil, err
			}
			expr = &GetAttr{Expr: expr, Name: name, span: p.expandSpan(start)}

		case lexer.TokenBracketOpen:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenBracketClose, "']'"); err != nil {
				return nil, err
			}
			expr = &GetItem{Expr: expr, Index: idx, span: p.expandSpan(start)}

		case lexer.TokenQuestion:
			p.advance()
			tok := p.current()
			if tok.Type != lexer.TokenIdent {
				return nil, p.unexpected("built-in name")
			}
			p.advance()
			expr = &BuiltIn{Expr: expr, Name: tok.Value, span: p.expandSpan(start)}

		case lexer.TokenParenOpen:
			p.advance()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &Call{Expr: expr, Args: args, span: p.expandSpan(start)}

		case lexer.TokenBang:
			p.advance()
			node := &DefaultTo{Expr: expr}
			if p.canStartExpr() {
				if node.Default, err = p.parseUnary(); err != nil {
					return nil, err
				}
			}
			node.span = p.expandSpan(start)
			return node, nil

		case lexer.TokenExists:
			p.advance()
			expr = &Exists{Expr: expr, span: p.expandSpan(start)}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgs() ([]Expr, error) {
	var args []Expr
	if p.skip(lexer.TokenParenClose) {
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.skip(lexer.TokenParenClose) {
			return args, nil
		}
		if _, err := p.expect(lexer.TokenComma, "',' or ')'"); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.current()
	switch tok.Type {
	case lexer.TokenIdent:
		if reservedWords[tok.Value] {
			return nil, p.unexpected("expression")
		}
		p.advance()
		switch tok.Value {
		case "true":
			return &Const{Value: value.True(), span: tok.Span}, nil
		case "false":
			return &Const{Value: value.False(), span: tok.Span}, nil
		}
		if p.matches(lexer.TokenArrow) {
			p.advance()
			body, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &Lambda{Param: tok.Value, Body: body, span: p.expandSpan(tok.Span)}, nil
		}
		return &Var{Name: tok.Value, span: tok.Span}, nil

	case lexer.TokenNumber:
		p.advance()
		v, err := parseNumber(tok.Value)
		if err != nil {
			return nil, p.errorAt(tok.Span, err.Error())
		}
		return &Const{Value: v, span: tok.Span}, nil

	case lexer.TokenString:
		p.advance()
		return p.parseStringLiteral(tok)

	case lexer.TokenRawString:
		p.advance()
		return &Const{Value: value.FromString(tok.Value), span: tok.Span}, nil

	case lexer.TokenDot:
		p.advance()
		name, err := p.expectIdent("special variable name")
		if err != nil {
			return nil, err
		}
		return &SpecialVar{Name: name, span: p.expandSpan(tok.Span)}, nil

	case lexer.TokenParenOpen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenParenClose, "')'"); err != nil {
			return nil, err
		}
		return &Paren{Expr: inner, span: p.expandSpan(tok.Span)}, nil

	case lexer.TokenBracketOpen:
		p.advance()
		return p.parseListLit(tok.Span)

	case lexer.TokenBraceOpen:
		p.advance()
		return p.parseHashLit(tok.Span)
	}
	return nil, p.unexpected("expression")
}

func (p *Parser) parseListLit(start Span) (Expr, error) {
	node := &ListLit{}
	for !p.matches(lexer.TokenBracketClose) {
		if len(node.Items) > 0 {
			if _, err := p.expect(lexer.TokenComma, "',' or ']'"); err != nil {
				return nil, err
			}
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, item)
	}
	p.advance()
	node.span = p.expandSpan(start)
	return node, nil
}

func (p *Parser) parseHashLit(start Span) (Expr, error) {
	node := &HashLit{}
	for !p.matches(lexer.TokenBraceClose) {
		if len(node.Keys) > 0 {
			if _, err := p.expect(lexer.TokenComma, "',' or '}'"); err != nil {
				return nil, err
			}
		}
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenColon, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node.Keys = append(node.Keys, key)
		node.Values = append(node.Values, val)
	}
	p.advance()
	node.span = p.expandSpan(start)
	return node, nil
}

// parseNumber turns a numeric literal into an int64, or into a decimal when
// it has a fraction or does not fit.
func parseNumber(lit string) (value.Value, error) {
	if !strings.Contains(lit, ".") {
		if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return value.FromInt(n), nil
		}
	}
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return value.Value{}, fmt.Errorf("invalid number %q", lit)
	}
	return value.FromDecimal(d), nil
}

// parseStringLiteral decodes a string literal, splitting out ${}
// interpolations into sub-expressions.
func (p *Parser) parseStringLiteral(tok *lexer.Token) (Expr, error) {
	raw := tok.Value
	if !strings.Contains(raw, "${") {
		s, err := lexer.Unescape(raw)
		if err != nil {
			return nil, p.errorAt(tok.Span, err.Error())
		}
		return &Const{Value: value.FromString(s), span: tok.Span}, nil
	}

	node := &Interpolated{span: tok.Span}
	addLiteral := func(s string) error {
		if s == "" {
			return nil
		}
		dec, err := lexer.Unescape(s)
		if err != nil {
			return p.errorAt(tok.Span, err.Error())
		}
		node.Parts = append(node.Parts, &Const{Value: value.FromString(dec), span: tok.Span})
		return nil
	}

	lit := 0
	for i := 0; i < len(raw); {
		if raw[i] == '\\' {
			i += 2
			continue
		}
		if !strings.HasPrefix(raw[i:], "${") {
			i++
			continue
		}
		end, ok := matchBrace(raw, i+2)
		if !ok {
			return nil, p.errorAt(tok.Span, "unclosed interpolation in string literal")
		}
		if err := addLiteral(raw[lit:i]); err != nil {
			return nil, err
		}
		// +1 for the opening quote
		base := advanceSpan(tok.Span, p.source, int(tok.Span.StartOffset)+1+i+2)
		expr, err := p.parseEmbedded(raw[i+2:end], base)
		if err != nil {
			return nil, err
		}
		node.Parts = append(node.Parts, expr)
		i = end + 1
		lit = i
	}
	if err := addLiteral(raw[lit:]); err != nil {
		return nil, err
	}
	if len(node.Parts) == 1 {
		if c, ok := node.Parts[0].(*Const); ok {
			return c, nil
		}
	}
	return node, nil
}

func (p *Parser) parseEmbedded(src string, base Span) (Expr, error) {
	tokens, err := lexer.NewExpression(src, base).All()
	if err != nil {
		return nil, withLocation(err, p.name, p.source)
	}
	sub := &Parser{tokens: tokens, name: p.name, source: p.source, depth: p.depth}
	expr, err := sub.parseExpr()
	if err != nil {
		return nil, err
	}
	if !sub.matches(lexer.TokenEOF) {
		return nil, sub.unexpected("'}'")
	}
	return expr, nil
}

// matchBrace returns the index of the '}' closing an interpolation whose
// expression starts at from.
func matchBrace(s string, from int) (int, bool) {
	depth := 0
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			q := s[i]
			for i++; i < len(s) && s[i] != q; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i, true
			}
			depth--
		}
	}
	return 0, false
}

// advanceSpan returns a zero-width span positioned at offset, computed by
// walking the source from the start of span.
func advanceSpan(span Span, source string, offset int) Span {
	line, col := span.StartLine, span.StartCol
	for i := int(span.StartOffset); i < offset && i < len(source); i++ {
		switch {
		case source[i] == '\n':
			line++
			col = 0
		case source[i]&0xC0 != 0x80:
			col++
		}
	}
	return Span{
		StartLine: line, StartCol: col, StartOffset: uint32(offset),
		EndLine: line, EndCol: col, EndOffset: uint32(offset),
	}
}
