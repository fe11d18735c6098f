package lexer

import "math"

type lineInfo struct {
	tag, interp, text bool

	trimLeft, trimRight, noTrim bool

	// first and last bound the offsets of the line's non-white-space content.
	first, last uint32
}

func (li *lineInfo) content(start, end uint32) {
	li.first = min(li.first, start)
	li.last = max(li.last, end)
}

// StripWhitespace removes template white-space around FTL tags. When
// stripLines is set, lines that contain only FTL tags (directives, macro
// calls and comments) and white-space lose all their white-space including
// the line break. The <#t>, <#lt>, <#rt> and <#nt> directives are applied
// here and removed from the token stream.
func StripWhitespace(tokens []Token, stripLines bool) []Token {
	if len(tokens) == 0 {
		return tokens
	}
	lastLine := tokens[len(tokens)-1].Span.EndLine
	lines := make([]lineInfo, int(lastLine)+2)
	for i := range lines {
		lines[i].first = math.MaxUint32
	}
	removed := make([]bool, len(tokens))

	inTag, inInterp := false, false
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		start, end := tok.Span.StartLine, tok.Span.EndLine
		switch tok.Type {
		case TokenEOF:
			continue
		case TokenText:
			line := start
			offset := tok.Span.StartOffset
			for j := 0; j < len(tok.Value); j++ {
				c := tok.Value[j]
				if !isSpace(c) {
					lines[line].text = true
					lines[line].content(offset, offset+1)
				}
				if c == '\n' {
					line++
				}
				offset++
			}
			continue
		case TokenDirectiveStart:
			if li := trimDirective(tok.Value); li != nil && i+1 < len(tokens) &&
				(tokens[i+1].Type == TokenTagEnd || tokens[i+1].Type == TokenEmptyTagEnd) {
				l := &lines[start]
				l.trimLeft = l.trimLeft || li.trimLeft
				l.trimRight = l.trimRight || li.trimRight
				l.noTrim = l.noTrim || li.noTrim
				removed[i], removed[i+1] = true, true
				i++
				continue
			}
			inTag = true
		case TokenCallStart:
			inTag = true
		case TokenInterpStart:
			inInterp = true
		}

		for _, line := range []uint16{start, end} {
			l := &lines[line]
			switch {
			case inInterp:
				l.interp = true
			case inTag || tok.Type.IsTag():
				l.tag = true
			}
			l.content(tok.Span.StartOffset, tok.Span.EndOffset)
		}

		switch tok.Type {
		case TokenTagEnd, TokenEmptyTagEnd:
			inTag = false
		case TokenInterpEnd:
			inInterp = false
		}
	}

	out := make([]Token, 0, len(tokens))
	for i, tok := range tokens {
		if removed[i] {
			continue
		}
		if tok.Type == TokenText {
			tok.Value = stripText(tok, lines, stripLines)
			if tok.Value == "" {
				continue
			}
		}
		out = append(out, tok)
	}
	return out
}

func stripText(tok Token, lines []lineInfo, stripLines bool) string {
	buf := make([]byte, 0, len(tok.Value))
	line := tok.Span.StartLine
	offset := tok.Span.StartOffset
	for j := 0; j < len(tok.Value); j++ {
		c := tok.Value[j]
		if !isSpace(c) || !shouldStrip(&lines[line], offset, stripLines) {
			buf = append(buf, c)
		}
		if c == '\n' {
			line++
		}
		offset++
	}
	if len(buf) == len(tok.Value) {
		return tok.Value
	}
	return string(buf)
}

func shouldStrip(li *lineInfo, offset uint32, stripLines bool) bool {
	if li.noTrim {
		return false
	}
	if stripLines && li.tag && !li.interp && !li.text {
		return true
	}
	if li.trimLeft && offset < li.first {
		return true
	}
	return li.trimRight && offset >= li.last
}

func trimDirective(name string) *lineInfo {
	switch name {
	case "t":
		return &lineInfo{trimLeft: true, trimRight: true}
	case "lt":
		return &lineInfo{trimLeft: true}
	case "rt":
		return &lineInfo{trimRight: true}
	case "nt":
		return &lineInfo{noTrim: true}
	}
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
