package ftl

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/ftlgo/ftl/value"
)

// String built-ins. Markup operands are read as their source text and the
// results are plain strings.

func biUpperCase(in *invocation, v value.Value) (value.Value, error) {
	return value.FromString(cases.Upper(in.e.fmt.tag).String(str(v))), nil
}

func biLowerCase(in *invocation, v value.Value) (value.Value, error) {
	return value.FromString(cases.Lower(in.e.fmt.tag).String(str(v))), nil
}

// biCapitalize upper-cases the first letter of every word and leaves the
// rest alone.
func biCapitalize(in *invocation, v value.Value) (value.Value, error) {
	return value.FromString(cases.Title(in.e.fmt.tag, cases.NoLower).String(str(v))), nil
}

func biCapFirst(in *invocation, v value.Value) (value.Value, error) {
	return value.FromString(mapFirstLetter(str(v), cases.Upper(in.e.fmt.tag))), nil
}

func biUncapFirst(in *invocation, v value.Value) (value.Value, error) {
	return value.FromString(mapFirstLetter(str(v), cases.Lower(in.e.fmt.tag))), nil
}

// mapFirstLetter applies c to the first rune that is not white-space.
func mapFirstLetter(s string, c cases.Caser) string {
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) })
	if i < 0 {
		return s
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return s[:i] + c.String(s[i:i+size]) + s[i+size:]
}

func biLength(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromInt(int64(utf8.RuneCountInString(str(v)))), nil
}

func biTrim(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromString(strings.TrimSpace(str(v))), nil
}

func biLeftPad(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	return padBuiltin(in, v, args, true)
}

func biRightPad(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	return padBuiltin(in, v, args, false)
}

// padBuiltin pads to a width with a filler that repeats as if it had been
// laid out from the start of the line, so right padding continues the
// pattern where the text ends.
func padBuiltin(in *invocation, v value.Value, args []value.Value, left bool) (value.Value, error) {
	width, err := in.intArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	filler, err := in.optStringArg(args, 1, " ")
	if err != nil {
		return value.Undefined(), err
	}
	if filler == "" {
		return value.Undefined(), in.errorf(ErrBadArguments, "the filler string can not be empty")
	}
	s := str(v)
	n := utf8.RuneCountInString(s)
	if n >= width {
		return value.FromString(s), nil
	}
	fr := []rune(filler)
	var sb strings.Builder
	if !left {
		sb.WriteString(s)
	}
	for i := 0; i < width-n; i++ {
		if left {
			sb.WriteRune(fr[i%len(fr)])
		} else {
			sb.WriteRune(fr[(n+i)%len(fr)])
		}
	}
	if left {
		sb.WriteString(s)
	}
	return value.FromString(sb.String()), nil
}

func biContains(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	sub, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromBool(strings.Contains(str(v), sub)), nil
}

func biStartsWith(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	prefix, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromBool(strings.HasPrefix(str(v), prefix)), nil
}

func biEndsWith(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	suffix, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromBool(strings.HasSuffix(str(v), suffix)), nil
}

func biEnsureStartsWith(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	prefix, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	s := str(v)
	if !strings.HasPrefix(s, prefix) {
		s = prefix + s
	}
	return value.FromString(s), nil
}

func biEnsureEndsWith(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	suffix, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	s := str(v)
	if !strings.HasSuffix(s, suffix) {
		s += suffix
	}
	return value.FromString(s), nil
}

func biRemoveBeginning(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	prefix, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromString(strings.TrimPrefix(str(v), prefix)), nil
}

func biRemoveEnding(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	suffix, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromString(strings.TrimSuffix(str(v), suffix)), nil
}

// biIndexOf and biLastIndexOf count in characters, not bytes. The optional
// second argument is the character index the search starts from.
func biIndexOf(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	sub, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	runes := []rune(str(v))
	from := 0
	if len(args) > 1 {
		if from, err = in.intArg(args, 1); err != nil {
			return value.Undefined(), err
		}
	}
	from = max(0, min(from, len(runes)))
	i := strings.Index(string(runes[from:]), sub)
	if i < 0 {
		return value.FromInt(-1), nil
	}
	return value.FromInt(int64(from + utf8.RuneCountInString(string(runes[from:])[:i]))), nil
}

func biLastIndexOf(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	sub, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	runes := []rune(str(v))
	end := len(runes)
	if len(args) > 1 {
		from, err := in.intArg(args, 1)
		if err != nil {
			return value.Undefined(), err
		}
		if from < 0 {
			return value.FromInt(-1), nil
		}
		end = min(len(runes), from+utf8.RuneCountInString(sub))
	}
	head := string(runes[:end])
	i := strings.LastIndex(head, sub)
	if i < 0 {
		return value.FromInt(-1), nil
	}
	return value.FromInt(int64(utf8.RuneCountInString(head[:i]))), nil
}

const searchFlags = "rifmsc"

// searchPattern compiles the pattern argument of the search built-ins.
// Without the r flag the pattern is matched literally.
func (in *invocation) searchPattern(pattern, flags string) (*regexp.Regexp, error) {
	for _, f := range flags {
		if !strings.ContainsRune(searchFlags, f) {
			return nil, in.errorf(ErrBadArguments, "unknown flag %q", f)
		}
	}
	if !strings.ContainsRune(flags, 'r') {
		pattern = regexp.QuoteMeta(pattern)
	}
	return in.e.cfg.regexp(pattern, flags)
}

// literal reports whether a search can use plain string functions.
func literal(flags string) bool {
	return !strings.ContainsAny(flags, "ri")
}

func biReplace(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	old, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	repl, err := in.stringArg(args, 1)
	if err != nil {
		return value.Undefined(), err
	}
	flags, err := in.optStringArg(args, 2, "")
	if err != nil {
		return value.Undefined(), err
	}
	s := str(v)
	first := strings.ContainsRune(flags, 'f')
	if literal(flags) {
		n := -1
		if first {
			n = 1
		}
		return value.FromString(strings.Replace(s, old, repl, n)), nil
	}
	re, err := in.searchPattern(old, flags)
	if err != nil {
		return value.Undefined(), err
	}
	regex := strings.ContainsRune(flags, 'r')
	if !first {
		if regex {
			return value.FromString(re.ReplaceAllString(s, repl)), nil
		}
		return value.FromString(re.ReplaceAllLiteralString(s, repl)), nil
	}
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return value.FromString(s), nil
	}
	var sub []byte
	if regex {
		sub = re.ExpandString(nil, repl, s, loc)
	} else {
		sub = []byte(repl)
	}
	return value.FromString(s[:loc[0]] + string(sub) + s[loc[1]:]), nil
}

func biSplit(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	sep, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	flags, err := in.optStringArg(args, 1, "")
	if err != nil {
		return value.Undefined(), err
	}
	var parts []string
	if literal(flags) {
		parts = strings.Split(str(v), sep)
	} else {
		re, err := in.searchPattern(sep, flags)
		if err != nil {
			return value.Undefined(), err
		}
		parts = re.Split(str(v), -1)
	}
	return stringsValue(parts), nil
}

func stringsValue(parts []string) value.Value {
	items := make([]value.Value, len(parts))
	for i, p := range parts {
		items[i] = value.FromString(p)
	}
	return value.FromSlice(items)
}

// keepBuiltin implements the keep_after and keep_before family.
func keepBuiltin(after, last bool) func(*invocation, value.Value, []value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
		sep, err := in.stringArg(args, 0)
		if err != nil {
			return value.Undefined(), err
		}
		flags, err := in.optStringArg(args, 1, "")
		if err != nil {
			return value.Undefined(), err
		}
		s := str(v)
		start, end := -1, -1
		if literal(flags) {
			var i int
			if last {
				i = strings.LastIndex(s, sep)
			} else {
				i = strings.Index(s, sep)
			}
			if i >= 0 {
				start, end = i, i+len(sep)
			}
		} else {
			re, err := in.searchPattern(sep, flags)
			if err != nil {
				return value.Undefined(), err
			}
			if last {
				if all := re.FindAllStringIndex(s, -1); len(all) > 0 {
					start, end = all[len(all)-1][0], all[len(all)-1][1]
				}
			} else if loc := re.FindStringIndex(s); loc != nil {
				start, end = loc[0], loc[1]
			}
		}
		switch {
		case start < 0 && after:
			return value.FromString(""), nil
		case start < 0:
			return value.FromString(s), nil
		case after:
			return value.FromString(s[end:]), nil
		}
		return value.FromString(s[:start]), nil
	}
}

// matchResult is the value of ?matches: a sequence of the matches found,
// which is true in a boolean context when the whole string matched.
type matchResult struct {
	whole   []string
	matches []*matchItem
}

func (m *matchResult) GetAttr(string) value.Value     { return value.Undefined() }
func (m *matchResult) ObjectShape() value.ObjectShape { return value.ShapeSeq }
func (m *matchResult) SeqLen() int                    { return len(m.matches) }
func (m *matchResult) AsBool() bool                   { return m.whole != nil }

func (m *matchResult) SeqItem(i int) value.Value {
	if i < 0 || i >= len(m.matches) {
		return value.Undefined()
	}
	return value.FromObject(m.matches[i])
}

// matchItem is one match. It prints as the matched text.
type matchItem struct {
	groups []string
}

func (m *matchItem) GetAttr(string) value.Value { return value.Undefined() }
func (m *matchItem) Text() string               { return m.groups[0] }

func biMatches(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	pattern, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	flags, err := in.optStringArg(args, 1, "")
	if err != nil {
		return value.Undefined(), err
	}
	if strings.ContainsRune(flags, 'f') {
		return value.Undefined(), in.errorf(ErrBadArguments, "the f flag can not be used here")
	}
	if !strings.ContainsRune(flags, 'r') {
		flags += "r"
	}
	s := str(v)
	re, err := in.searchPattern(pattern, flags)
	if err != nil {
		return value.Undefined(), err
	}
	anchored, err := in.searchPattern(`\A(?:`+pattern+`)\z`, flags)
	if err != nil {
		return value.Undefined(), err
	}
	res := &matchResult{whole: anchored.FindStringSubmatch(s)}
	for _, groups := range re.FindAllStringSubmatch(s, -1) {
		res.matches = append(res.matches, &matchItem{groups: groups})
	}
	return value.FromObject(res), nil
}

func biGroups(in *invocation, v value.Value) (value.Value, error) {
	obj, _ := v.AsObject()
	switch m := obj.(type) {
	case *matchResult:
		return stringsValue(m.whole), nil
	case *matchItem:
		return stringsValue(m.groups), nil
	}
	return value.Undefined(), in.operandError("the result of ?matches", v)
}

func biWordList(_ *invocation, v value.Value) (value.Value, error) {
	return stringsValue(strings.Fields(str(v))), nil
}

func biChopLinebreak(_ *invocation, v value.Value) (value.Value, error) {
	s := str(v)
	switch {
	case strings.HasSuffix(s, "\r\n"):
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "\n"), strings.HasSuffix(s, "\r"):
		s = s[:len(s)-1]
	}
	return value.FromString(s), nil
}

// truncateBuiltin cuts a string to a maximum length including the
// terminator. With atWord the cut moves back to a word boundary when one
// is in the second half of the kept text.
func truncateBuiltin(atWord bool) func(*invocation, value.Value, []value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
		n, err := in.intArg(args, 0)
		if err != nil {
			return value.Undefined(), err
		}
		term, err := in.optStringArg(args, 1, "[...]")
		if err != nil {
			return value.Undefined(), err
		}
		runes := []rune(str(v))
		if len(runes) <= n {
			return v, nil
		}
		keep := max(0, n-utf8.RuneCountInString(term))
		cut := runes[:keep]
		if atWord {
			for i := len(cut) - 1; i > keep/2; i-- {
				if unicode.IsSpace(cut[i]) {
					cut = cut[:i]
					break
				}
			}
		}
		return value.FromString(strings.TrimRightFunc(string(cut), unicode.IsSpace) + term), nil
	}
}

func escapeBuiltin(format string) func(*invocation, value.Value) (value.Value, error) {
	return func(_ *invocation, v value.Value) (value.Value, error) {
		return value.FromString(escapeFor(format, str(v))), nil
	}
}

func biJSString(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromString(escapeJava(str(v), true)), nil
}

func biJString(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromString(escapeJava(str(v), false)), nil
}

// escapeJava escapes for a quoted Java or, with js set, JavaScript string
// literal. The JavaScript form also escapes both quote characters and the
// angle brackets so the result is safe inside a script element.
func escapeJava(s string, js bool) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\'':
			if js {
				sb.WriteString(`\'`)
			} else {
				sb.WriteRune(r)
			}
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '<':
			if js {
				sb.WriteString(`\x3C`)
			} else {
				sb.WriteRune(r)
			}
		case '>':
			if js {
				sb.WriteString(`\x3E`)
			} else {
				sb.WriteRune(r)
			}
		default:
			if r < 0x20 {
				const hex = "0123456789ABCDEF"
				sb.WriteString(`\u00`)
				sb.WriteByte(hex[r>>4])
				sb.WriteByte(hex[r&0xF])
				continue
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// jsonQuote returns s as a quoted JSON string literal.
func jsonQuote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// strings always encode
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func biJSONString(_ *invocation, v value.Value) (value.Value, error) {
	q := jsonQuote(str(v))
	return value.FromString(q[1 : len(q)-1]), nil
}

func urlBuiltin(keepSlash bool) func(*invocation, value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value) (value.Value, error) {
		s, err := urlEscape(str(v), in.e.fmt.settings.URLEscapingCharset, keepSlash)
		if err != nil {
			return value.Undefined(), err
		}
		return value.FromString(s), nil
	}
}

func urlCharsetBuiltin(keepSlash bool) func(*invocation, value.Value, []value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
		charset, err := in.stringArg(args, 0)
		if err != nil {
			return value.Undefined(), err
		}
		s, err := urlEscape(str(v), charset, keepSlash)
		if err != nil {
			return value.Undefined(), err
		}
		return value.FromString(s), nil
	}
}

// biToNumber parses a string in the computer format.
func biToNumber(_ *invocation, v value.Value) (value.Value, error) {
	if v.IsNumber() {
		return v, nil
	}
	return parseNumber(str(v))
}

func biToBoolean(in *invocation, v value.Value) (value.Value, error) {
	s := str(v)
	switch s {
	case "true":
		return value.True(), nil
	case "false":
		return value.False(), nil
	case in.e.fmt.trueStr:
		return value.True(), nil
	case in.e.fmt.falseStr:
		return value.False(), nil
	}
	return value.Undefined(), in.errorf(ErrBadArguments, "can not convert %q to a boolean", s)
}

// nullBuiltin implements blank_to_null and the like: the result is null
// when the test holds for the string.
func nullBuiltin(test func(string) bool) func(*invocation, value.Value) (value.Value, error) {
	return func(_ *invocation, v value.Value) (value.Value, error) {
		if test(str(v)) {
			return value.Null(), nil
		}
		return v, nil
	}
}

func biTrimToNull(_ *invocation, v value.Value) (value.Value, error) {
	s := strings.TrimSpace(str(v))
	if s == "" {
		return value.Null(), nil
	}
	return value.FromString(s), nil
}
