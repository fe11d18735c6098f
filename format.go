package ftl

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/ftlgo/ftl/value"
)

// formatState is the part of the settings the evaluator reads, with the
// locale dependent helpers derived from it. It is replaced, never mutated,
// when a <#setting> changes it.
type formatState struct {
	settings Settings
	tag      language.Tag
	printer  *message.Printer
	collator *collate.Collator
	engine   value.ArithmeticEngine
	loc      *time.Location
	trueStr  string
	falseStr string
}

func newFormatState(s Settings) (*formatState, error) {
	f := &formatState{settings: s}
	if err := f.apply(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *formatState) apply() error {
	s := f.settings
	tag, err := language.Parse(strings.ReplaceAll(s.Locale, "_", "-"))
	if err != nil {
		return newErrorf(ErrInvalidOperation, "invalid locale %q", s.Locale)
	}
	f.tag = tag
	f.printer = message.NewPrinter(tag)
	f.collator = collate.New(tag)

	eng, ok := value.EngineByName(s.ArithmeticEngine)
	if !ok {
		return newErrorf(ErrInvalidOperation, "unknown arithmetic engine %q", s.ArithmeticEngine)
	}
	f.engine = eng

	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return newErrorf(ErrInvalidOperation, "unknown time zone %q", s.TimeZone)
	}
	f.loc = loc

	switch s.BooleanFormat {
	case "", "c", "true,false":
		f.trueStr, f.falseStr = "true", "false"
	default:
		t, fl, ok := strings.Cut(s.BooleanFormat, ",")
		if !ok {
			return newErrorf(ErrInvalidOperation, "boolean_format must be \"c\" or two comma separated words, got %q", s.BooleanFormat)
		}
		f.trueStr, f.falseStr = t, fl
	}
	return nil
}

// with returns a copy with one setting changed, as <#setting> does.
func (f *formatState) with(name string, v value.Value) (*formatState, error) {
	next := &formatState{settings: f.settings}
	s := &next.settings
	str, isStr := v.AsString()
	switch name {
	case "locale":
		s.Locale = str
	case "time_zone":
		s.TimeZone = str
	case "number_format":
		s.NumberFormat = str
	case "boolean_format":
		s.BooleanFormat = str
	case "date_format":
		s.DateFormat = str
	case "time_format":
		s.TimeFormat = str
	case "datetime_format":
		s.DateTimeFormat = str
	case "url_escaping_charset":
		s.URLEscapingCharset = str
	case "arithmetic_engine":
		s.ArithmeticEngine = str
	default:
		return nil, newErrorf(ErrInvalidOperation, "unknown setting %q", name)
	}
	if !isStr {
		return nil, typeError("<#setting "+name+">", "a string", v)
	}
	if err := next.apply(); err != nil {
		return nil, err
	}
	return next, nil
}

func (f *formatState) formatBool(b bool) string {
	if b {
		return f.trueStr
	}
	return f.falseStr
}

// formatNumber renders a number with a number_format value.
func (f *formatState) formatNumber(v value.Value, format string) (string, error) {
	switch format {
	case "computer", "c":
		return value.NumberString(v), nil
	case "", "number":
		return f.printer.Sprint(number.Decimal(numberArg(v), number.MaxFractionDigits(3))), nil
	case "percent":
		return f.printer.Sprint(number.Percent(numberArg(v))), nil
	case "currency":
		unit, _ := currency.FromTag(f.tag)
		fl, _ := v.AsFloat()
		return f.printer.Sprint(currency.Symbol(unit.Amount(fl))), nil
	}
	p, err := parseNumberPattern(format)
	if err != nil {
		return "", err
	}
	return p.format(f, v), nil
}

// numberArg converts a number for x/text formatting. Integers stay exact.
func numberArg(v value.Value) any {
	if v.IsInteger() {
		if i, ok := v.AsInt(); ok {
			return i
		}
	}
	fl, _ := v.AsFloat()
	return fl
}

// numberPattern is a decimal format pattern such as "#,##0.00".
type numberPattern struct {
	prefix   string
	suffix   string
	grouping bool
	minInt   int
	minFrac  int
	maxFrac  int
	percent  bool
}

func parseNumberPattern(pattern string) (*numberPattern, error) {
	p := &numberPattern{}
	start := strings.IndexAny(pattern, "#0")
	if start < 0 {
		return nil, newErrorf(ErrBadArguments, "invalid number format %q", pattern)
	}
	end := start
	for end < len(pattern) && strings.IndexByte("#0,.", pattern[end]) >= 0 {
		end++
	}
	p.prefix = unquotePatternText(pattern[:start])
	p.suffix = unquotePatternText(pattern[end:])
	p.percent = strings.Contains(p.prefix, "%") || strings.Contains(p.suffix, "%")

	body := pattern[start:end]
	intPart, fracPart, hasFrac := strings.Cut(body, ".")
	p.grouping = strings.Contains(intPart, ",")
	p.minInt = strings.Count(intPart, "0")
	if hasFrac {
		p.minFrac = strings.Count(fracPart, "0")
		p.maxFrac = p.minFrac + strings.Count(fracPart, "#")
	}
	return p, nil
}

func (p *numberPattern) format(f *formatState, v value.Value) string {
	d, err := v.AsDecimal()
	if err != nil {
		return value.NumberString(v)
	}
	if p.percent {
		d = d.Mul(decimal.NewFromInt(100))
	}
	d = d.RoundBank(int32(p.maxFrac))

	opts := []number.Option{
		number.MinIntegerDigits(p.minInt),
		number.MinFractionDigits(p.minFrac),
		number.MaxFractionDigits(p.maxFrac),
	}
	if !p.grouping {
		opts = append(opts, number.NoSeparator())
	}
	var arg any
	if d.IsInteger() && d.BigInt().IsInt64() {
		arg = d.IntPart()
	} else {
		arg = d.InexactFloat64()
	}
	return p.prefix + f.printer.Sprint(number.Decimal(arg, opts...)) + p.suffix
}

func unquotePatternText(s string) string {
	if !strings.Contains(s, "'") {
		return s
	}
	var sb strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\'' {
			sb.WriteByte(c)
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			sb.WriteByte('\'')
			i++
			continue
		}
		inQuote = !inQuote
	}
	return sb.String()
}

var dateStyles = map[string]string{
	"short":  "M/d/yy",
	"medium": "MMM d, yyyy",
	"long":   "MMMM d, yyyy",
	"full":   "EEEE, MMMM d, yyyy",
}

var timeStyles = map[string]string{
	"short":  "h:mm a",
	"medium": "h:mm:ss a",
	"long":   "h:mm:ss a z",
	"full":   "h:mm:ss a zzzz",
}

// datePattern resolves a date/time format setting to a pattern. Style
// names map to fixed patterns; datetime styles may combine two styles as
// in "short_medium".
func datePattern(kind value.DateKind, format string) string {
	switch kind {
	case value.DateKindDate:
		if p, ok := dateStyles[format]; ok {
			return p
		}
	case value.DateKindTime:
		if p, ok := timeStyles[format]; ok {
			return p
		}
	case value.DateKindDateTime:
		ds, ts, combined := strings.Cut(format, "_")
		if !combined {
			ts = ds
		}
		dp, okD := dateStyles[ds]
		tp, okT := timeStyles[ts]
		if okD && okT {
			return dp + ", " + tp
		}
	}
	return format
}

// formatDate renders a date. An empty format means the setting for the
// value's kind.
func (f *formatState) formatDate(d value.DateTime, format string) (string, error) {
	if d.Kind == value.DateKindUnknown {
		return "", newErrorf(ErrInvalidType, "can not format a date of unknown kind; use ?date, ?time or ?datetime first")
	}
	if format == "" {
		switch d.Kind {
		case value.DateKindDate:
			format = f.settings.DateFormat
		case value.DateKindTime:
			format = f.settings.TimeFormat
		default:
			format = f.settings.DateTimeFormat
		}
	}
	t := d.Time.In(f.loc)
	switch format {
	case "iso", "xs":
		return value.DateTime{Time: t, Kind: d.Kind}.ISO(), nil
	}
	return formatJavaDate(t, datePattern(d.Kind, format)), nil
}

// dateSegment is one field or literal of a date pattern. Fields carry the
// Go layout that renders them.
type dateSegment struct {
	layout  string
	literal string
}

// compileDatePattern splits a date pattern in the y/M/d/H/m/s notation
// into Go layout fields and literal text.
func compileDatePattern(pattern string) []dateSegment {
	var segs []dateSegment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, dateSegment{literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(pattern); {
		c := pattern[i]
		if c == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end == 0 {
				lit.WriteByte('\'')
				i += 2
				continue
			}
			if end < 0 {
				lit.WriteString(pattern[i+1:])
				break
			}
			lit.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		if !isPatternLetter(c) {
			r, size := utf8.DecodeRuneInString(pattern[i:])
			lit.WriteRune(r)
			i += size
			continue
		}
		n := 1
		for i+n < len(pattern) && pattern[i+n] == c {
			n++
		}
		layout := dateLayout(c, n)
		if layout == "" {
			lit.WriteString(pattern[i : i+n])
		} else {
			flush()
			segs = append(segs, dateSegment{layout: layout})
		}
		i += n
	}
	flush()
	return segs
}

func isPatternLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func dateLayout(c byte, n int) string {
	switch c {
	case 'y':
		if n == 2 {
			return "06"
		}
		return "2006"
	case 'M':
		switch {
		case n == 1:
			return "1"
		case n == 2:
			return "01"
		case n == 3:
			return "Jan"
		}
		return "January"
	case 'd':
		if n == 1 {
			return "2"
		}
		return "02"
	case 'D':
		return "002"
	case 'E':
		if n >= 4 {
			return "Monday"
		}
		return "Mon"
	case 'a':
		return "PM"
	case 'H':
		return "15"
	case 'h':
		if n == 1 {
			return "3"
		}
		return "03"
	case 'm':
		if n == 1 {
			return "4"
		}
		return "04"
	case 's':
		if n == 1 {
			return "5"
		}
		return "05"
	case 'S':
		return strings.Repeat("0", n)
	case 'z':
		return "MST"
	case 'Z':
		return "-0700"
	case 'X':
		switch n {
		case 1:
			return "Z07"
		case 2:
			return "Z0700"
		}
		return "Z07:00"
	}
	return ""
}

func formatJavaDate(t time.Time, pattern string) string {
	var sb strings.Builder
	for _, seg := range compileDatePattern(pattern) {
		if seg.layout == "" {
			sb.WriteString(seg.literal)
			continue
		}
		if strings.Trim(seg.layout, "0") == "" {
			// fraction of second digits
			ns := t.Nanosecond()
			digits := []byte{'0', '0', '0', '0', '0', '0', '0', '0', '0'}
			for i := 8; i >= 0; i-- {
				digits[i] = byte('0' + ns%10)
				ns /= 10
			}
			n := min(len(seg.layout), 9)
			sb.Write(digits[:n])
			continue
		}
		sb.WriteString(t.Format(seg.layout))
	}
	return sb.String()
}

// goLayout joins a pattern into a single Go layout for parsing.
func goLayout(pattern string) string {
	var sb strings.Builder
	for _, seg := range compileDatePattern(pattern) {
		if seg.layout != "" {
			sb.WriteString(seg.layout)
		} else {
			sb.WriteString(seg.literal)
		}
	}
	return sb.String()
}

// parseDate parses text as a date of the given kind with a pattern, or as
// ISO 8601 when the pattern is empty or "iso".
func (f *formatState) parseDate(text string, kind value.DateKind, pattern string) (value.DateTime, error) {
	var layouts []string
	switch pattern {
	case "", "iso", "xs":
		switch kind {
		case value.DateKindDate:
			layouts = []string{"2006-01-02"}
		case value.DateKindTime:
			layouts = []string{"15:04:05Z07:00", "15:04:05", "15:04"}
		default:
			layouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"}
		}
	default:
		layouts = []string{goLayout(datePattern(kind, pattern))}
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, f.loc); err == nil {
			return value.DateTime{Time: t, Kind: kind}, nil
		}
	}
	return value.DateTime{}, newErrorf(ErrBadArguments, "can not parse %q as a %s", text, kind)
}
