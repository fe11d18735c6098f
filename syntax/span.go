// Package syntax holds source location types shared by the lexer, the parser
// and the runtime.
package syntax

import "fmt"

// Span represents a location range in template source.
//
// Lines and columns are 1-based and 0-based respectively, offsets are byte
// offsets into the source.
type Span struct {
	StartLine   uint16
	StartCol    uint16
	StartOffset uint32
	EndLine     uint16
	EndCol      uint16
	EndOffset   uint32
}

// String renders the start of the span the way error messages show it.
func (s Span) String() string {
	return fmt.Sprintf("line %d, column %d", s.StartLine, s.StartCol+1)
}

// Join returns a span covering both s and other.
func (s Span) Join(other Span) Span {
	out := s
	if other.EndOffset > out.EndOffset {
		out.EndLine = other.EndLine
		out.EndCol = other.EndCol
		out.EndOffset = other.EndOffset
	}
	return out
}

// Text returns the slice of source covered by the span, or "" if the span
// does not fit inside source.
func (s Span) Text(source string) string {
	if int(s.EndOffset) > len(source) || s.StartOffset > s.EndOffset {
		return ""
	}
	return source[s.StartOffset:s.EndOffset]
}
