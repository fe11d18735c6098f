package ftl

import (
	"context"
	"io"
	"strings"

	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// Template is a parsed template. It is immutable and may be processed by
// any number of goroutines at the same time.
type Template struct {
	cfg *Configuration
	ast *parser.Template

	strictVars   bool
	locale       string
	engine       value.ArithmeticEngine
	outputFormat string
	autoEsc      bool
	attributes   *value.Hash
}

func newTemplate(cfg *Configuration, ast *parser.Template) (*Template, error) {
	t := &Template{
		cfg:          cfg,
		ast:          ast,
		strictVars:   cfg.settings.StrictVars,
		outputFormat: outputFormatForName(ast.Name, cfg.settings.OutputFormat),
		autoEsc:      true,
		attributes:   value.NewHash(),
	}
	if ast.Header == nil {
		return t, nil
	}
	for _, p := range ast.Header.Params {
		v, ok := constValue(p.Value)
		if !ok {
			return nil, t.headerError(p, "must be a constant")
		}
		switch p.Name {
		case "strict_vars", "strict_syntax", "strip_whitespace", "auto_esc":
			b, ok := v.AsBool()
			if !ok {
				return nil, t.headerError(p, "must be a boolean")
			}
			switch p.Name {
			case "strict_vars":
				t.strictVars = b
			case "auto_esc":
				t.autoEsc = b
			}
		case "locale", "arithmetic_engine", "output_format", "encoding", "ns_prefixes":
			s, ok := v.AsString()
			if !ok && p.Name != "ns_prefixes" {
				return nil, t.headerError(p, "must be a string")
			}
			switch p.Name {
			case "locale":
				t.locale = s
			case "arithmetic_engine":
				eng, ok := value.EngineByName(s)
				if !ok {
					return nil, t.headerError(p, "names an unknown arithmetic engine")
				}
				t.engine = eng
			case "output_format":
				if _, ok := outputFormats[strings.ToLower(s)]; !ok {
					return nil, t.headerError(p, "names an unknown output format")
				}
				t.outputFormat = canonicalFormat(s)
			}
		case "attributes":
			m, ok := v.AsHash()
			if !ok {
				return nil, t.headerError(p, "must be a hash")
			}
			t.attributes = m
		default:
			return nil, t.headerError(p, "is not a known parameter")
		}
	}
	return t, nil
}

func (t *Template) headerError(p parser.NamedArg, msg string) error {
	return newErrorf(ErrSyntax, "<#ftl> parameter %s %s", p.Name, msg).
		WithSpan(p.Value.Span()).
		WithName(t.ast.Name).
		WithSource(t.ast.Source)
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.ast.Name
}

// Source returns the template source.
func (t *Template) Source() string {
	return t.ast.Source
}

// OutputFormat returns the output format interpolations are escaped for.
func (t *Template) OutputFormat() string {
	return t.outputFormat
}

// CustomAttribute returns an entry of the attributes hash of the <#ftl>
// header.
func (t *Template) CustomAttribute(name string) (value.Value, bool) {
	return t.attributes.Get(name)
}

// Process renders the template into w. The data model must be a hash, a
// map with string keys or a struct; nil means an empty data model.
//
// On error, whatever was already written to w stays there.
func (t *Template) Process(data any, w io.Writer) error {
	return t.ProcessContext(context.Background(), data, w)
}

// ProcessContext is like Process but stops when ctx is done.
func (t *Template) ProcessContext(ctx context.Context, data any, w io.Writer) error {
	env, err := t.CreateEnvironment(ctx, data, w)
	if err != nil {
		return err
	}
	return env.Process()
}

// Render renders the template to a string.
func (t *Template) Render(data any) (string, error) {
	var sb strings.Builder
	err := t.Process(data, &sb)
	return sb.String(), err
}

// CreateEnvironment prepares a render without starting it. Use it to
// adjust the environment, or to call macros of the template directly.
func (t *Template) CreateEnvironment(ctx context.Context, data any, w io.Writer) (*Environment, error) {
	model := value.NewHash()
	if data != nil {
		v := value.FromAny(data)
		m, ok := v.AsMapping()
		if !ok {
			return nil, newErrorf(ErrInvalidType, "the data model must be a hash, got %s", v.TypeName())
		}
		for _, k := range m.Keys() {
			item, _ := m.Get(k)
			model.Set(k, item)
		}
	}
	return newEnvironment(ctx, t, model, w)
}

// constValue folds the literal expressions allowed in the template header.
func constValue(expr parser.Expr) (value.Value, bool) {
	switch e := expr.(type) {
	case *parser.Const:
		return e.Value, true
	case *parser.Paren:
		return constValue(e.Expr)
	case *parser.UnaryOp:
		v, ok := constValue(e.Expr)
		if !ok {
			return v, false
		}
		switch e.Op {
		case "-":
			neg, err := value.Negate(v)
			return neg, err == nil
		case "!":
			b, ok := v.AsBool()
			return value.FromBool(!b), ok
		}
		return v, v.IsNumber()
	case *parser.ListLit:
		items := make([]value.Value, len(e.Items))
		for i, item := range e.Items {
			v, ok := constValue(item)
			if !ok {
				return v, false
			}
			items[i] = v
		}
		return value.FromSlice(items), true
	case *parser.HashLit:
		h := value.NewHash()
		for i := range e.Keys {
			k, ok := constValue(e.Keys[i])
			if !ok {
				return k, false
			}
			ks, ok := k.AsString()
			if !ok {
				return k, false
			}
			v, ok := constValue(e.Values[i])
			if !ok {
				return v, false
			}
			h.Set(ks, v)
		}
		return value.FromHash(h), true
	}
	return value.Undefined(), false
}
