package ftl

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftlgo/ftl/value"
)

func newTestEnvironment(t *testing.T, cfg *Configuration, source string, data any) (*Environment, *strings.Builder) {
	t.Helper()
	tmpl, err := cfg.TemplateFromString("env.ftl", source)
	require.NoError(t, err)
	var out strings.Builder
	env, err := tmpl.CreateEnvironment(context.Background(), data, &out)
	require.NoError(t, err)
	return env, &out
}

func TestEnvironmentSetGlobal(t *testing.T) {
	env, out := newTestEnvironment(t, NewConfiguration(), `${greeting}, ${name}`, map[string]any{"name": "Ann"})
	env.SetGlobal("greeting", "Hi")
	require.NoError(t, env.Process())
	assert.Equal(t, "Hi, Ann", out.String())
	assert.Equal(t, "env.ftl", env.Name())
	assert.Equal(t, "env.ftl", env.MainTemplate().Name())
}

func TestEnvironmentSetSetting(t *testing.T) {
	env, out := newTestEnvironment(t, NewConfiguration(), `${n} ${b}`, map[string]any{"n": 1234.5, "b": true})
	require.NoError(t, env.SetSetting("locale", "de-DE"))
	require.NoError(t, env.SetSetting("boolean_format", "ja,nein"))
	require.NoError(t, env.Process())
	assert.Equal(t, "1.234,5 ja", out.String())
	assert.Equal(t, "de-DE", env.Settings().Locale)

	err := env.SetSetting("colour", "red")
	assert.True(t, IsKind(err, ErrInvalidOperation))
	err = env.SetSetting("time_zone", "Mars/Olympus")
	assert.True(t, IsKind(err, ErrInvalidOperation))
	err = env.SetSetting("locale", 5)
	assert.True(t, IsKind(err, ErrInvalidType))
	assert.Equal(t, "de-DE", env.Settings().Locale, "failed changes leave the settings alone")
}

func TestEnvironmentLookup(t *testing.T) {
	cfg := NewConfiguration()
	cfg.SetSharedVariable("site", "example.org")
	cfg.SetSharedVariable("name", "shared")
	env, _ := newTestEnvironment(t, cfg, `<#assign page = "ns">`, map[string]any{"name": "model"})
	require.NoError(t, env.Process())

	assert.Equal(t, "ns", env.Lookup("page").String())
	assert.Equal(t, "model", env.Lookup("name").String())
	assert.Equal(t, "example.org", env.Lookup("site").String())
	assert.True(t, env.Lookup("nothing").IsUndefined())

	env.SetGlobal("name", "global")
	assert.Equal(t, "global", env.Lookup("name").String())
}

func TestEnvironmentCallMacro(t *testing.T) {
	env, out := newTestEnvironment(t, NewConfiguration(),
		`<#macro card title body="-">[${title}: ${body}]</#macro>`, nil)
	require.NoError(t, env.CallMacro("card", []any{"A"}, nil))
	require.NoError(t, env.CallMacro("card", []any{"ignored"}, map[string]any{"title": "B", "body": "text"}))
	assert.Equal(t, "[A: -][B: text]", out.String())

	err := env.CallMacro("nope", nil, nil)
	assert.True(t, IsKind(err, ErrInvalidReference))
	err = env.CallMacro("card", nil, nil)
	assert.True(t, IsKind(err, ErrBadArguments))
}

func TestEnvironmentImport(t *testing.T) {
	cfg := newLoaderConfig(map[string]string{
		"lib/colors.ftl": `<#assign primary = "teal">`,
	})
	env, _ := newTestEnvironment(t, cfg, ``, nil)
	ns, err := env.Import("lib/colors.ftl")
	require.NoError(t, err)
	v, ok := ns.Get("primary")
	require.True(t, ok)
	assert.Equal(t, "teal", v.String())
	assert.Equal(t, "lib/colors.ftl", ns.Name())

	again, err := env.Import("/lib/colors.ftl")
	require.NoError(t, err)
	assert.Same(t, ns, again)

	_, err = env.Import("lib/missing.ftl")
	assert.True(t, IsKind(err, ErrTemplateNotFound))
}

func TestFailedImportIsNotCached(t *testing.T) {
	cfg := newLoaderConfig(map[string]string{
		"lib/broken.ftl": `<#assign a = 1>${missing}`,
	})
	env, _ := newTestEnvironment(t, cfg, ``, nil)
	for range 2 {
		ns, err := env.Import("lib/broken.ftl")
		assert.True(t, IsKind(err, ErrInvalidReference))
		assert.Nil(t, ns)
	}
}

func TestRecursionLimitRecovers(t *testing.T) {
	s := DefaultSettings()
	s.MaxRecursion = 3
	env, out := newTestEnvironment(t, NewConfiguration(WithSettings(s)),
		`<#macro deep n>${n}<#if n gt 0><@deep n=n - 1/></#if></#macro>`, nil)
	for range 5 {
		err := env.CallMacro("deep", []any{10}, nil)
		assert.True(t, IsKind(err, ErrRecursionLimit))
	}
	out.Reset()
	require.NoError(t, env.CallMacro("deep", []any{2}, nil))
	assert.Equal(t, "210", out.String())
}

func TestFuel(t *testing.T) {
	s := DefaultSettings()
	s.Fuel = 100
	cfg := NewConfiguration(WithSettings(s))

	env, out := newTestEnvironment(t, cfg, `a${x}<#if true>b</#if>`, map[string]any{"x": 1})
	require.NoError(t, env.Process())
	assert.Equal(t, "a1b", out.String())
	consumed, remaining, ok := env.FuelLevels()
	require.True(t, ok)
	assert.Positive(t, consumed)
	assert.Equal(t, uint64(100), consumed+remaining)

	env, _ = newTestEnvironment(t, cfg, `<#list 1.. as i>${i}</#list>`, nil)
	err := env.Process()
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrOutOfFuel))
	_, remaining, _ = env.FuelLevels()
	assert.Zero(t, remaining)

	env, _ = newTestEnvironment(t, cfg, `<#attempt><#list 1.. as i>${i}</#list><#recover>caught</#attempt>`, nil)
	assert.True(t, IsKind(env.Process(), ErrOutOfFuel))
}

func TestNoFuelLimit(t *testing.T) {
	env, _ := newTestEnvironment(t, NewConfiguration(), `x`, nil)
	require.NoError(t, env.Process())
	_, _, ok := env.FuelLevels()
	assert.False(t, ok)
}

func TestEnvironmentLogsStop(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := NewConfiguration(WithLogger(logger))
	env, _ := newTestEnvironment(t, cfg, `<#stop "enough">`, nil)
	assert.True(t, IsKind(env.Process(), ErrStopped))
	assert.Contains(t, buf.String(), "template stopped")
	assert.Contains(t, buf.String(), "template=env.ftl")
}

func TestScopeChain(t *testing.T) {
	ns := NewNamespace("lib.ftl")
	require.NoError(t, ns.Put("a", value.FromString("ns")))
	assert.Equal(t, ScopeNamespace, ns.Kind())
	assert.Nil(t, ns.Enclosing())
	assert.Same(t, ns, ns.Namespace())
	assert.True(t, ns.DefinesVariable("a"))

	v, ok := ns.ResolveVariable("a")
	require.True(t, ok)
	assert.Equal(t, "ns", v.String())
	assert.Equal(t, "ns", ns.GetAttr("a").String())

	inner := newScope(ScopeMacro, ns)
	inner.Declare("a", value.FromString("inner"))
	v, _ = inner.ResolveVariable("a")
	assert.Equal(t, "inner", v.String())
	assert.Same(t, ns, inner.Namespace())
	assert.Equal(t, "lib.ftl", inner.Name())
	assert.False(t, inner.DefinesVariable("b"))

	ns.Remove("a")
	_, ok = ns.ResolveVariable("a")
	assert.False(t, ok)
}
