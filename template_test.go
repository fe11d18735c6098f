package ftl

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newLoaderConfig(sources map[string]string) *Configuration {
	return NewConfiguration(WithLoader(MapLoader(sources)))
}

func TestGetTemplateCaches(t *testing.T) {
	calls := 0
	cfg := NewConfiguration(WithLoader(func(name string) (string, error) {
		calls++
		return "Hi from " + name, nil
	}))
	a, err := cfg.GetTemplate("/pages/a.ftl")
	require.NoError(t, err)
	b, err := cfg.GetTemplate("pages/a.ftl")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "pages/a.ftl", a.Name())

	cfg.ClearTemplateCache()
	_, err = cfg.GetTemplate("pages/a.ftl")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	cfg.RemoveTemplate("pages/a.ftl")
	_, err = cfg.GetTemplate("pages/a.ftl")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestTemplateNotFound(t *testing.T) {
	cfg := newLoaderConfig(nil)
	_, err := cfg.GetTemplate("nope.ftl")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrTemplateNotFound))

	_, err = NewConfiguration().GetTemplate("nope.ftl")
	assert.True(t, IsKind(err, ErrTemplateNotFound))
}

func TestLoaderFailure(t *testing.T) {
	cfg := NewConfiguration(WithLoader(func(string) (string, error) {
		return "", fmt.Errorf("disk on fire")
	}))
	_, err := cfg.GetTemplate("x.ftl")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrIO))
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestAddTemplate(t *testing.T) {
	cfg := NewConfiguration()
	require.NoError(t, cfg.AddTemplate("hello.ftl", "Hello ${name}!"))
	tmpl, err := cfg.GetTemplate("hello.ftl")
	require.NoError(t, err)
	out, err := tmpl.Render(map[string]any{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ann!", out)

	err = cfg.AddTemplate("broken.ftl", "<#if x>")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrSyntax))
}

func TestFileSystemLoader(t *testing.T) {
	fsys := fstest.MapFS{
		"index.ftl":        {Data: []byte(`<#include "parts/header.ftl">body`)},
		"parts/header.ftl": {Data: []byte(`[${title}]`)},
	}
	cfg := NewConfiguration(WithLoader(FileSystemLoader(fsys)))
	tmpl, err := cfg.GetTemplate("index.ftl")
	require.NoError(t, err)
	out, err := tmpl.Render(map[string]any{"title": "T"})
	require.NoError(t, err)
	assert.Equal(t, "[T]body", out)

	_, err = cfg.GetTemplate("missing.ftl")
	assert.True(t, IsKind(err, ErrTemplateNotFound))
}

func TestInclude(t *testing.T) {
	cfg := newLoaderConfig(map[string]string{
		"main.ftl":          `<#assign x = "main"><#include "inc/part.ftl">|${y}`,
		"inc/part.ftl":      `${x}<#assign y = "set by part"><#include "sibling.ftl">`,
		"inc/sibling.ftl":   `+sibling`,
		"raw.ftl":           `${not.parsed}`,
		"optional/main.ftl": `a<#include "gone.ftl" ignore_missing=true>b`,
		"strict/main.ftl":   `a<#include "gone.ftl">b`,
		"noparse/main.ftl":  `<#include "/raw.ftl" parse=false>`,
		"abs/main.ftl":      `<#include "/inc/sibling.ftl">`,
	})
	render := func(name string) (string, error) {
		tmpl, err := cfg.GetTemplate(name)
		if err != nil {
			return "", err
		}
		return tmpl.Render(nil)
	}

	out, err := render("main.ftl")
	require.NoError(t, err)
	assert.Equal(t, "main+sibling|set by part", out)

	out, err = render("optional/main.ftl")
	require.NoError(t, err)
	assert.Equal(t, "ab", out)

	_, err = render("strict/main.ftl")
	assert.True(t, IsKind(err, ErrTemplateNotFound))

	out, err = render("noparse/main.ftl")
	require.NoError(t, err)
	assert.Equal(t, "${not.parsed}", out)

	out, err = render("abs/main.ftl")
	require.NoError(t, err)
	assert.Equal(t, "+sibling", out)
}

func TestIncludeBadParameter(t *testing.T) {
	cfg := newLoaderConfig(map[string]string{"a.ftl": "a"})
	_, err := renderString(cfg, `<#include "a.ftl" cache=true>`, nil)
	assert.True(t, IsKind(err, ErrBadArguments))
}

func TestImport(t *testing.T) {
	cfg := newLoaderConfig(map[string]string{
		"lib/html.ftl": `<#assign sep = ", "><#macro row items><#list items as i>${i}<#sep>${sep}</#list></#macro><#function double(n)><#return n * 2></#function>`,
	})
	out, err := renderString(cfg, `<#import "lib/html.ftl" as h><@h.row ["a", "b"]/> ${h.double(21)} ${h.sep?length}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "a, b 42 2", out)
}

func TestImportRunsOncePerRender(t *testing.T) {
	cfg := newLoaderConfig(map[string]string{
		"lib.ftl": `<#global loads = (loads!0) + 1>`,
	})
	out, err := renderString(cfg, `<#import "lib.ftl" as a><#import "lib.ftl" as b>${loads}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", out)
}

func TestImportedMacroSeesItsNamespace(t *testing.T) {
	cfg := newLoaderConfig(map[string]string{
		"lib.ftl": `<#assign color = "red"><#macro show>${color}</#macro>`,
	})
	out, err := renderString(cfg, `<#assign color = "blue"><#import "lib.ftl" as lib><@lib.show/> ${color}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "red blue", out)
}

func TestTemplateHeader(t *testing.T) {
	cfg := NewConfiguration()
	tmpl, err := cfg.TemplateFromString("t.ftl", `<#ftl output_format="HTML" attributes={"author": "Ann"}>${s}`)
	require.NoError(t, err)
	assert.Equal(t, "HTML", tmpl.OutputFormat())
	author, ok := tmpl.CustomAttribute("author")
	require.True(t, ok)
	assert.Equal(t, "Ann", author.String())
	out, err := tmpl.Render(map[string]any{"s": "<b>"})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;", out)

	_, err = cfg.TemplateFromString("t.ftl", `<#ftl bogus=1>`)
	assert.True(t, IsKind(err, ErrSyntax))
	_, err = cfg.TemplateFromString("t.ftl", `<#ftl strict_vars="yes">`)
	assert.True(t, IsKind(err, ErrSyntax))
	_, err = cfg.TemplateFromString("t.ftl", `<#ftl encoding="UTF-8" strip_whitespace=false>ok`)
	assert.NoError(t, err)
}

func TestHeaderLocaleAndEngine(t *testing.T) {
	assertRender(t, `<#ftl locale="de-DE">${1234.5}`, nil, "1.234,5")
	assertRender(t, `<#ftl arithmetic_engine="conservative">${(7 / 2)?c}`, nil, "3.5")
	_, err := NewConfiguration().TemplateFromString("t.ftl", `<#ftl arithmetic_engine="float">`)
	assert.True(t, IsKind(err, ErrSyntax))
}

func TestDataModelMustBeHash(t *testing.T) {
	tmpl, err := NewConfiguration().TemplateFromString("t.ftl", "x")
	require.NoError(t, err)
	_, err = tmpl.Render([]int{1})
	assert.True(t, IsKind(err, ErrInvalidType))
}

func TestStructDataModel(t *testing.T) {
	type page struct {
		Title string `json:"title"`
		Tags  []string
	}
	assertRender(t, `${title}: ${Tags?join(" ")}`, page{Title: "News", Tags: []string{"a", "b"}}, "News: a b")
}

func TestProcessStopsOnCanceledContext(t *testing.T) {
	tmpl, err := NewConfiguration().TemplateFromString("t.ftl", "<#list 1.. as i>${i}</#list>")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sb strings.Builder
	err = tmpl.ProcessContext(ctx, nil, &sb)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrStopped))
}

func TestConcurrentRenders(t *testing.T) {
	cfg := newLoaderConfig(map[string]string{
		"page.ftl": `<#import "lib.ftl" as l><@l.row n/>`,
		"lib.ftl":  `<#macro row n><#list 1..n as i>${i}</#list></#macro>`,
	})
	var g errgroup.Group
	for n := 1; n <= 16; n++ {
		g.Go(func() error {
			tmpl, err := cfg.GetTemplate("page.ftl")
			if err != nil {
				return err
			}
			out, err := tmpl.Render(map[string]any{"n": n%5 + 1})
			if err != nil {
				return err
			}
			var want strings.Builder
			for i := 1; i <= n%5+1; i++ {
				fmt.Fprint(&want, i)
			}
			if out != want.String() {
				return fmt.Errorf("n=%d: got %q, want %q", n, out, want.String())
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestSharedVariablesAreReadOnly(t *testing.T) {
	cfg := NewConfiguration()
	cfg.SetSharedVariable("site", map[string]any{"title": "orig", "tags": []string{"a", "b"}})

	for _, source := range []string{
		`<#assign site.title = "hacked">`,
		`<#assign site.tags[0] = "z">`,
		`<#assign copy = site><#assign copy["title"] = "x">`,
	} {
		_, err := renderString(cfg, source, nil)
		assert.True(t, IsKind(err, ErrInvalidType), source)
	}

	out, err := renderString(cfg, `<#assign mine = site + {}><#assign mine.title = "new">${mine.title} ${site.title} ${site.tags?join(",")}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "new orig a,b", out)
}

func TestDataModelIsReadOnly(t *testing.T) {
	data := map[string]any{"user": map[string]any{"name": "Ann"}, "ids": []int{1, 2}}
	for _, source := range []string{`<#assign user.name = "Bob">`, `<#assign ids[0] = 9>`} {
		_, err := renderString(NewConfiguration(), source, data)
		assert.True(t, IsKind(err, ErrInvalidType), source)
	}
	out, err := renderString(NewConfiguration(), `<#assign user = {"name": "Bob"}>${user.name}`, data)
	require.NoError(t, err)
	assert.Equal(t, "Bob", out)
}

func TestConcurrentRendersDoNotShareWrites(t *testing.T) {
	cfg := NewConfiguration()
	cfg.SetSharedVariable("site", map[string]any{"title": "orig"})
	tmpl, err := cfg.TemplateFromString("page.ftl", `<#attempt><#assign site.title = "n${n}"><#recover></#attempt>${site.title}`)
	require.NoError(t, err)

	var g errgroup.Group
	for n := range 16 {
		g.Go(func() error {
			out, err := tmpl.Render(map[string]any{"n": n})
			if err != nil {
				return err
			}
			if out != "orig" {
				return fmt.Errorf("n=%d: got %q", n, out)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(strings.NewReader("locale: de-DE\nnumber_format: \"0.00\"\nfuel: 100\n"))
	require.NoError(t, err)
	assert.Equal(t, "de-DE", s.Locale)
	assert.Equal(t, "0.00", s.NumberFormat)
	assert.Equal(t, uint64(100), s.Fuel)
	assert.Equal(t, "UTC", s.TimeZone)

	_, err = ParseSettings(strings.NewReader("colour: red\n"))
	assert.True(t, IsKind(err, ErrInvalidOperation))

	for _, doc := range []string{"", "# nothing set\n", "---\n"} {
		s, err = ParseSettings(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), s, "document %q", doc)
	}
}

func TestEmptySettingsKeepRecursionLimit(t *testing.T) {
	s, err := ParseSettings(strings.NewReader("# defaults only\n"))
	require.NoError(t, err)
	_, err = renderString(NewConfiguration(WithSettings(s)), `<#macro loop><@loop/></#macro><@loop/>`, nil)
	assert.True(t, IsKind(err, ErrRecursionLimit))
}
