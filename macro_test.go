package ftl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacroParameters(t *testing.T) {
	const lib = `<#macro greet name greeting="Hello">${greeting}, ${name}!</#macro>`
	assertRender(t, lib+`<@greet "Ann"/> <@greet name="Bob" greeting="Hi"/>`, nil, "Hello, Ann! Hi, Bob!")
	assertRender(t, lib+`<@greet greeting="Hey" name="Cy"/>`, nil, "Hey, Cy!")
}

func TestMacroDefaultsSeeEarlierParameters(t *testing.T) {
	assertRender(t, `<#macro m a b=a * 2>${a}/${b}</#macro><@m 3/>`, nil, "3/6")
}

func TestMacroCalledBeforeDefinition(t *testing.T) {
	assertRender(t, `<@later/><#macro later>L</#macro>`, nil, "L")
}

func TestMacroArgumentErrors(t *testing.T) {
	const m = `<#macro m a>${a}</#macro>`
	err := assertRenderErrorKind(t, m+`<@m 1 2/>`, nil, ErrBadArguments)
	assert.Contains(t, err.Message, "takes 1 arguments, got 2")
	err = assertRenderErrorKind(t, m+`<@m/>`, nil, ErrBadArguments)
	assert.Contains(t, err.Message, `requires the parameter "a"`)
	assertRenderErrorKind(t, m+`<@m b=1/>`, nil, ErrBadArguments)
}

func TestMacroCatchAll(t *testing.T) {
	assertRender(t, `<#macro m a rest...>${a}:${rest?size}</#macro><@m 1 2 3/>|<@m 1/>`, nil, "1:2|1:0")
	assertRender(t, `<#macro m a rest...>${a}:${rest?keys?join(",")}</#macro><@m a=1 x=2 y=3/>`, nil, "1:x,y")
}

func TestNested(t *testing.T) {
	assertRender(t, `<#macro twice><#nested 1><#nested 2></#macro><@twice; n>[${n}]</@twice>`, nil, "[1][2]")
	assertRender(t, `<#macro m>(<#nested>)</#macro><@m/>`, nil, "()")
	assertRender(t, `<#macro m>(<#nested>)</#macro><@m>body</@m>`, nil, "(body)")
}

func TestNestedRunsInCallerScope(t *testing.T) {
	assertRender(t,
		`<#assign who = "caller"><#macro m><#local who = "macro"><#nested>/${who}</#macro><@m>${who}</@m>`,
		nil, "caller/macro")
}

func TestMacroDefaultIgnoresCallerLocals(t *testing.T) {
	const src = `<#macro m p=v!"none">${p}</#macro>` +
		`<#macro caller><#local v = "caller"><@m/></#macro><@caller/>|<#assign v = "global"><@caller/>`
	assertRender(t, src, nil, "none|global")
}

func TestNestedLoopVariableMismatch(t *testing.T) {
	assertRenderErrorKind(t, `<#macro m><#nested></#macro><@m; x>${x}</@m>`, nil, ErrBadArguments)
}

func TestMacroReturn(t *testing.T) {
	assertRender(t, `<#macro m>a<#return>b</#macro><@m/>c`, nil, "ac")
	_, err := NewConfiguration().TemplateFromString("test.ftl", `<#return>`)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrSyntax))
	_, err = NewConfiguration().TemplateFromString("test.ftl", `<#macro m><#return 1></#macro>`)
	assert.True(t, IsKind(err, ErrSyntax))
}

func TestMacroDefinedInsideMacro(t *testing.T) {
	_, err := NewConfiguration().TemplateFromString("test.ftl", `<#macro a><#macro b></#macro></#macro>`)
	assert.True(t, IsKind(err, ErrSyntax))
}

func TestFunctions(t *testing.T) {
	assertRender(t, `<#function add(a, b)><#return a + b></#function>${add(2, 3)}`, nil, "5")
	assertRender(t, `<#function sq x><#return x * x></#function>${sq(4)}`, nil, "16")
	assertRender(t,
		`<#function fact n><#if n lte 1><#return 1></#if><#return n * fact(n - 1)></#function>${fact(10)?c}`,
		nil, "3628800")
}

func TestFunctionWithoutResult(t *testing.T) {
	const f = `<#function f></#function>`
	assertRender(t, f+`${f()!"none"} ${(f()??)?c}`, nil, "none false")
	assertRenderErrorKind(t, f+`${f()}`, nil, ErrInvalidReference)
}

func TestMacroAndFunctionMixups(t *testing.T) {
	assertRenderErrorKind(t, `<#macro m>x</#macro>${m()}`, nil, ErrInvalidType)
	assertRenderErrorKind(t, `<#function f><#return 1></#function><@f/>`, nil, ErrInvalidType)
	assertRenderErrorKind(t, `<#assign s = "x"><@s/>`, nil, ErrInvalidType)
}

func TestHostCallableAsMacro(t *testing.T) {
	cfg := NewConfiguration()
	cfg.SetSharedVariable("shout", func(s string) string { return strings.ToUpper(s) + "!" })
	out, err := renderString(cfg, `<@shout "hey"/>`, nil)
	require.NoError(t, err)
	assert.Equal(t, "HEY!", out)

	_, err = renderString(cfg, `<@shout "hey">body</@shout>`, nil)
	assert.True(t, IsKind(err, ErrInvalidOperation))
}

func TestCallerTemplateName(t *testing.T) {
	cfg := NewConfiguration(WithLoader(MapLoader(map[string]string{
		"lib/util.ftl": `<#macro who>${.caller_template_name}@${.template_name}</#macro>`,
	})))
	out, err := renderString(cfg, `<#import "lib/util.ftl" as u><@u.who/>`, nil)
	require.NoError(t, err)
	assert.Equal(t, "test.ftl@lib/util.ftl", out)

	_, err = renderString(cfg, `${.caller_template_name}`, nil)
	assert.True(t, IsKind(err, ErrInvalidOperation))
}

func TestRecursionLimit(t *testing.T) {
	s := DefaultSettings()
	s.MaxRecursion = 10
	cfg := NewConfiguration(WithSettings(s))
	_, err := renderString(cfg, `<#macro r><@r/></#macro><@r/>`, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrRecursionLimit))
	assert.Contains(t, err.Error(), "recursion limit of 10 exceeded")
}

func TestAttempt(t *testing.T) {
	assertRender(t, `<#attempt>ok<#recover>no</#attempt>`, nil, "ok")
	assertRender(t, `[<#attempt>partial ${missing}<#recover>recovered</#attempt>]`, nil, "[recovered]")
	assertRender(t,
		`<#attempt><#attempt>${a}<#recover>${b}</#attempt><#recover>outer</#attempt>`,
		nil, "outer")
}

func TestAttemptErrorVariable(t *testing.T) {
	out, err := renderString(NewConfiguration(), `<#attempt>${missing}<#recover>${.error}</#attempt>`, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "missing is undefined")
	assert.True(t, strings.HasPrefix(out, "invalid reference: "), out)
}

func TestAttemptKeepsFatalErrors(t *testing.T) {
	assertRenderErrorKind(t, `<#attempt><#stop "no"><#recover>swallowed</#attempt>`, nil, ErrStopped)

	s := DefaultSettings()
	s.MaxRecursion = 5
	cfg := NewConfiguration(WithSettings(s))
	_, err := renderString(cfg, `<#macro r><@r/></#macro><#attempt><@r/><#recover>x</#attempt>`, nil)
	assert.True(t, IsKind(err, ErrRecursionLimit))
}
