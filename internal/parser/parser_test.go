package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftlgo/ftl/internal/errors"
)

func mustParse(t *testing.T, source string) *Template {
	t.Helper()
	tmpl, err := Parse("test.ftl", source)
	require.NoError(t, err)
	return tmpl
}

func TestParseIfChain(t *testing.T) {
	tmpl := mustParse(t, "<#if a>1<#elseif b>2<#else>3</#if>")
	require.Len(t, tmpl.Body, 1)
	node, ok := tmpl.Body[0].(*If)
	require.True(t, ok)
	require.Len(t, node.Branches, 2)
	assert.Equal(t, "a", node.Branches[0].Cond.(*Var).Name)
	assert.Equal(t, "b", node.Branches[1].Cond.(*Var).Name)
	assert.Equal(t, "3", node.Else[0].(*Text).Raw)
}

func TestParseList(t *testing.T) {
	tmpl := mustParse(t, "<#list users as u>${u}<#sep>, </#sep><#else>none</#list>")
	node := tmpl.Body[0].(*List)
	assert.Equal(t, "u", node.LoopVar)
	require.Len(t, node.Body, 2)
	sep := node.Body[1].(*Sep)
	assert.Equal(t, ", ", sep.Body[0].(*Text).Raw)
	assert.Equal(t, "none", node.Else[0].(*Text).Raw)
}

func TestParseListItemsAndOpenSep(t *testing.T) {
	tmpl := mustParse(t, "<#list m as k, v>${k}<#sep>;</#list><#list xs>[<#items as x>${x}</#items>]</#list>")
	first := tmpl.Body[0].(*List)
	assert.Equal(t, "k", first.LoopVar)
	assert.Equal(t, "v", first.ValueVar)
	assert.IsType(t, &Sep{}, first.Body[1])

	second := tmpl.Body[1].(*List)
	assert.Empty(t, second.LoopVar)
	items := second.Body[1].(*Items)
	assert.Equal(t, "x", items.LoopVar)
}

func TestParseSwitch(t *testing.T) {
	tmpl := mustParse(t, `<#switch x>
  <#case 1>one<#break>
  <#on 2, 3>few
  <#default>many
</#switch>`)
	node := tmpl.Body[0].(*Switch)
	require.Len(t, node.Cases, 3)
	assert.False(t, node.Cases[0].On)
	assert.True(t, node.Cases[1].On)
	assert.Len(t, node.Cases[1].Values, 2)
	assert.Nil(t, node.Cases[2].Values)
	assert.IsType(t, &Break{}, node.Cases[0].Body[1])
}

func TestParseAssign(t *testing.T) {
	tmpl := mustParse(t, `<#assign x = 1 y += 2, z++ user.name = "n" seq[0] = 3 in ns>`)
	node := tmpl.Body[0].(*Assign)
	require.Len(t, node.Items, 5)
	ops := make([]string, len(node.Items))
	for i, item := range node.Items {
		ops[i] = item.Op
	}
	if diff := cmp.Diff([]string{"=", "+=", "++", "=", "="}, ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, node.Items[2].Value)
	assert.IsType(t, &GetAttr{}, node.Items[3].Target)
	assert.IsType(t, &GetItem{}, node.Items[4].Target)
	assert.Equal(t, "ns", node.Namespace.(*Var).Name)
}

func TestParseAssignCapture(t *testing.T) {
	tmpl := mustParse(t, `<#global g>captured ${x}</#global>`)
	node := tmpl.Body[0].(*AssignCapture)
	assert.Equal(t, ScopeGlobal, node.Scope)
	assert.Equal(t, "g", node.Name)
	assert.Len(t, node.Body, 2)
}

func TestParseMacro(t *testing.T) {
	tmpl := mustParse(t, `<#macro greet name greeting="Hello" rest...>${greeting} ${name}<#nested name><#return></#macro>`)
	node := tmpl.Body[0].(*Macro)
	assert.Equal(t, "greet", node.Name)
	require.Len(t, node.Params, 2)
	assert.Nil(t, node.Params[0].Default)
	assert.NotNil(t, node.Params[1].Default)
	assert.Equal(t, "rest", node.CatchAll)
	assert.IsType(t, &Nested{}, node.Body[3])
	assert.IsType(t, &Return{}, node.Body[4])
}

func TestParseFunction(t *testing.T) {
	tmpl := mustParse(t, `<#function avg(a, b)><#return (a + b) / 2></#function>`)
	node := tmpl.Body[0].(*Macro)
	assert.True(t, node.IsFunction)
	assert.Len(t, node.Params, 2)
	ret := node.Body[0].(*Return)
	assert.IsType(t, &BinOp{}, ret.Value)
}

func TestParseMacroCall(t *testing.T) {
	tmpl := mustParse(t, `<@ns.box title="T" size=2; row, col>body</@ns.box><@pos 1 2/>`)
	call := tmpl.Body[0].(*MacroCall)
	assert.IsType(t, &GetAttr{}, call.Callee)
	require.Len(t, call.NamedArgs, 2)
	assert.Equal(t, "title", call.NamedArgs[0].Name)
	assert.Equal(t, []string{"row", "col"}, call.LoopVars)
	assert.True(t, call.HasBody)

	pos := tmpl.Body[1].(*MacroCall)
	assert.Len(t, pos.Args, 2)
	assert.False(t, pos.HasBody)
}

func TestParseMacroCallSequenceArgument(t *testing.T) {
	tmpl := mustParse(t, `<@h.row ["a", "b"]/><@lib["row"] 1/>`)
	call := tmpl.Body[0].(*MacroCall)
	assert.IsType(t, &GetAttr{}, call.Callee)
	require.Len(t, call.Args, 1)
	assert.IsType(t, &ListLit{}, call.Args[0])

	indexed := tmpl.Body[1].(*MacroCall)
	assert.IsType(t, &GetItem{}, indexed.Callee)
	assert.Len(t, indexed.Args, 1)
}

func TestParseMismatchedCallEnd(t *testing.T) {
	_, err := Parse("t", `<@a>x</@b>`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "</@b> does not match <@a>")
}

func TestParseHeader(t *testing.T) {
	tmpl := mustParse(t, "<#ftl strict_vars=true strip_whitespace=false>\n  <#if x>y</#if>")
	v, ok := tmpl.Header.Param("strict_vars")
	require.True(t, ok)
	strict, _ := v.(*Const).Value.AsBool()
	assert.True(t, strict)
	// white-space stripping is off, so the indentation survives
	assert.Equal(t, "\n  ", tmpl.Body[0].(*Text).Raw)
}

func TestParseAttempt(t *testing.T) {
	tmpl := mustParse(t, `<#attempt>${x}<#recover>fallback</#attempt>`)
	node := tmpl.Body[0].(*Attempt)
	assert.Len(t, node.Body, 1)
	assert.Equal(t, "fallback", node.Recover[0].(*Text).Raw)
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		source string
		check  func(t *testing.T, e Expr)
	}{
		{"1 + 2 * 3", func(t *testing.T, e Expr) {
			b := e.(*BinOp)
			assert.Equal(t, "+", b.Op)
			assert.Equal(t, "*", b.Right.(*BinOp).Op)
		}},
		{"a || b && c", func(t *testing.T, e Expr) {
			l := e.(*Logical)
			assert.Equal(t, "||", l.Op)
			assert.Equal(t, "&&", l.Right.(*Logical).Op)
		}},
		{"x gte 3", func(t *testing.T, e Expr) {
			assert.Equal(t, ">=", e.(*Compare).Op)
		}},
		{"x = 3", func(t *testing.T, e Expr) {
			assert.Equal(t, "==", e.(*Compare).Op)
		}},
		{"1..n-1", func(t *testing.T, e Expr) {
			r := e.(*Range)
			assert.Equal(t, RangeInclusive, r.Mode)
			assert.IsType(t, &BinOp{}, r.End)
		}},
		{"seq[2..]", func(t *testing.T, e Expr) {
			r := e.(*GetItem).Index.(*Range)
			assert.Equal(t, RangeUnbounded, r.Mode)
			assert.Nil(t, r.End)
		}},
		{"seq[1..*2]", func(t *testing.T, e Expr) {
			assert.Equal(t, RangeLength, e.(*GetItem).Index.(*Range).Mode)
		}},
		{"a.b!'d' + 1", func(t *testing.T, e Expr) {
			b := e.(*BinOp)
			d := b.Left.(*DefaultTo)
			assert.IsType(t, &GetAttr{}, d.Expr)
			assert.IsType(t, &Const{}, d.Default)
		}},
		{"(a.b)!", func(t *testing.T, e Expr) {
			d := e.(*DefaultTo)
			assert.IsType(t, &Paren{}, d.Expr)
			assert.Nil(t, d.Default)
		}},
		{"user.name??", func(t *testing.T, e Expr) {
			assert.IsType(t, &GetAttr{}, e.(*Exists).Expr)
		}},
		{"s?replace('a', 'b')?upper_case", func(t *testing.T, e Expr) {
			outer := e.(*BuiltIn)
			assert.Equal(t, "upper_case", outer.Name)
			call := outer.Expr.(*Call)
			assert.Len(t, call.Args, 2)
			assert.Equal(t, "replace", call.Expr.(*BuiltIn).Name)
		}},
		{"xs?filter(x -> x > 1)", func(t *testing.T, e Expr) {
			lambda := e.(*Call).Args[0].(*Lambda)
			assert.Equal(t, "x", lambda.Param)
			assert.IsType(t, &Compare{}, lambda.Body)
		}},
		{`{"a": 1, "b": [1, 2]}`, func(t *testing.T, e Expr) {
			h := e.(*HashLit)
			assert.Len(t, h.Keys, 2)
			assert.Len(t, h.Values[1].(*ListLit).Items, 2)
		}},
		{".now", func(t *testing.T, e Expr) {
			assert.Equal(t, "now", e.(*SpecialVar).Name)
		}},
		{"!a", func(t *testing.T, e Expr) {
			assert.Equal(t, "!", e.(*UnaryOp).Op)
		}},
		{"1.50", func(t *testing.T, e Expr) {
			assert.Equal(t, "1.5", e.(*Const).Value.String())
		}},
		{`"Hello ${name}!"`, func(t *testing.T, e Expr) {
			parts := e.(*Interpolated).Parts
			require.Len(t, parts, 3)
			assert.Equal(t, "name", parts[1].(*Var).Name)
		}},
		{`"\${literal}"`, func(t *testing.T, e Expr) {
			assert.Equal(t, "${literal}", e.(*Const).Value.String())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			e, err := ParseExpression(tt.source)
			require.NoError(t, err)
			tt.check(t, e)
		})
	}
}

func TestInterpolationSpans(t *testing.T) {
	tmpl := mustParse(t, "line1\n${\"ab${x}\"}")
	interp := tmpl.Body[1].(*Interpolation)
	x := interp.Expr.(*Interpolated).Parts[1].(*Var)
	assert.Equal(t, uint16(2), x.Span().StartLine)
	assert.Equal(t, uint16(7), x.Span().StartCol)
	assert.Equal(t, "x", x.Span().Text(tmpl.Source))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		source string
		msg    string
	}{
		{"<#if x>", "unclosed <#if>"},
		{"</#if>", "unexpected </#if>"},
		{"<#bogus>", "unknown directive <#bogus>"},
		{"<#break>", "<#break> outside of a list or switch"},
		{"<#return>", "<#return> outside of a macro or function"},
		{"<#macro m><#return 1></#macro>", "a macro can not return a value"},
		{"${1 +}", "unexpected end of interpolation, expected expression"},
		{"x<#ftl>", "<#ftl> must be the first tag"},
		{"<#list xs>${x}</#list><#items as x></#items>", "<#items> must be inside <#list>"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := Parse("bad.ftl", tt.source)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrSyntax))
			assert.Contains(t, err.Error(), tt.msg)
			assert.Contains(t, err.Error(), "bad.ftl")
		})
	}
}
