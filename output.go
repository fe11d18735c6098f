package ftl

import (
	"bytes"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/ftlgo/ftl/internal/parser"
)

var outputFormats = map[string]string{
	"plaintext": "plainText",
	"html":      "HTML",
	"xhtml":     "XHTML",
	"xml":       "XML",
	"rtf":       "RTF",
}

func canonicalFormat(name string) string {
	if f, ok := outputFormats[strings.ToLower(name)]; ok {
		return f
	}
	return "plainText"
}

// outputFormatForName picks the output format from the template name's
// extension, falling back to the configured default.
func outputFormatForName(name, fallback string) string {
	switch {
	case strings.HasSuffix(name, ".ftlh"):
		return "HTML"
	case strings.HasSuffix(name, ".ftlx"):
		return "XML"
	}
	return canonicalFormat(fallback)
}

var (
	htmlEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;", "&", "&amp;", `"`, "&quot;", "'", "&#39;")
	xmlEscaper  = strings.NewReplacer("<", "&lt;", ">", "&gt;", "&", "&amp;", `"`, "&quot;", "'", "&apos;")
	rtfEscaper  = strings.NewReplacer(`\`, `\\`, "{", `\{`, "}", `\}`)
)

// escapeFor escapes s for an output format. Plain text is returned as is.
func escapeFor(format, s string) string {
	switch format {
	case "HTML":
		return htmlEscaper.Replace(s)
	case "XHTML", "XML":
		return xmlEscaper.Replace(s)
	case "RTF":
		return rtfEscaper.Replace(s)
	}
	return s
}

func isMarkupFormat(format string) bool {
	return format != "plainText"
}

// outputContext is the lexical escaping state of the code being rendered.
// Directives that change it derive a new context for their body.
type outputContext struct {
	format  string
	autoEsc bool
	// escapes is the <#escape> stack. A nil entry is a <#noescape>.
	escapes []*parser.Escape
}

func (o *outputContext) autoEscaping() bool {
	return o.autoEsc && isMarkupFormat(o.format)
}

func (o *outputContext) withEscape(esc *parser.Escape) *outputContext {
	next := *o
	next.escapes = append(append([]*parser.Escape(nil), o.escapes...), esc)
	return &next
}

func (o *outputContext) withAutoEsc(enabled bool) *outputContext {
	next := *o
	next.autoEsc = enabled
	return &next
}

func (o *outputContext) withFormat(format string) *outputContext {
	next := *o
	next.format = format
	next.autoEsc = true
	return &next
}

func (o *outputContext) activeEscape() *parser.Escape {
	if len(o.escapes) == 0 {
		return nil
	}
	return o.escapes[len(o.escapes)-1]
}

// compressWriter buffers its input and writes it compressed on Close:
// leading and trailing white-space is removed, white-space runs that
// contain a line break become a single line break and other runs a
// single space.
type compressWriter struct {
	w   io.Writer
	buf bytes.Buffer
}

func (c *compressWriter) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *compressWriter) Close() error {
	_, err := io.WriteString(c.w, compressWhitespace(c.buf.String()))
	return err
}

func compressWhitespace(s string) string {
	s = strings.TrimSpace(s)
	var sb strings.Builder
	sb.Grow(len(s))
	inSpace, sawNewline := false, false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			if r == '\n' || r == '\r' {
				sawNewline = true
			}
			continue
		}
		if inSpace {
			if sawNewline {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
			inSpace, sawNewline = false, false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type flusher interface {
	Flush() error
}

// urlEscape percent-encodes s in the given charset. Unreserved characters
// and, for paths, the slash are kept.
func urlEscape(s, charset string, keepSlash bool) (string, error) {
	raw := []byte(s)
	if !strings.EqualFold(charset, "utf-8") && charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", newErrorf(ErrBadArguments, "unknown charset %q", charset)
		}
		encoded, err := enc.NewEncoder().Bytes(raw)
		if err != nil {
			return "", newErrorf(ErrBadArguments, "can not encode %q in %s", s, charset)
		}
		raw = encoded
	}
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for _, b := range raw {
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9',
			strings.IndexByte("-_.!~*'()", b) >= 0,
			keepSlash && b == '/':
			sb.WriteByte(b)
		default:
			sb.WriteByte('%')
			sb.WriteByte(hex[b>>4])
			sb.WriteByte(hex[b&0xF])
		}
	}
	return sb.String(), nil
}
