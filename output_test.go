package ftl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderNamed(t *testing.T, name, source string, data any) (string, error) {
	t.Helper()
	tmpl, err := NewConfiguration().TemplateFromString(name, source)
	require.NoError(t, err)
	return tmpl.Render(data)
}

func TestOutputFormatFromName(t *testing.T) {
	data := map[string]any{"s": `<a href="x">'&'</a>`}
	out, err := renderNamed(t, "page.ftlh", `${s}`, data)
	require.NoError(t, err)
	assert.Equal(t, "&lt;a href=&quot;x&quot;&gt;&#39;&amp;&#39;&lt;/a&gt;", out)

	out, err = renderNamed(t, "feed.ftlx", `${s}`, data)
	require.NoError(t, err)
	assert.Equal(t, "&lt;a href=&quot;x&quot;&gt;&apos;&amp;&apos;&lt;/a&gt;", out)

	out, err = renderNamed(t, "mail.ftl", `${s}`, data)
	require.NoError(t, err)
	assert.Equal(t, data["s"], out)
}

func TestConfiguredOutputFormat(t *testing.T) {
	s := DefaultSettings()
	s.OutputFormat = "RTF"
	tmpl, err := NewConfiguration(WithSettings(s)).TemplateFromString("doc.ftl", `${x} ${.output_format}`)
	require.NoError(t, err)
	out, err := tmpl.Render(map[string]any{"x": `{\}`})
	require.NoError(t, err)
	assert.Equal(t, `\{\\\} RTF`, out)
}

func TestNoEscAndEsc(t *testing.T) {
	data := map[string]any{"s": "<b>"}
	out, err := renderNamed(t, "page.ftlh", `${s?no_esc} ${s?esc} ${s?no_esc?esc} ${s?esc?markup_string}`, data)
	require.NoError(t, err)
	assert.Equal(t, "<b> &lt;b&gt; <b> &amp;lt;b&amp;gt;", out)

	_, err = renderNamed(t, "page.ftl", `${s?no_esc}`, data)
	assert.True(t, IsKind(err, ErrInvalidOperation))
	_, err = renderNamed(t, "page.ftl", `${s?esc}`, data)
	assert.True(t, IsKind(err, ErrInvalidOperation))
}

func TestMarkupValues(t *testing.T) {
	out, err := renderNamed(t, "page.ftlh", `<#assign m><i>${s}</i></#assign>${m} ${m?is_markup_output?c} ${s?is_markup_output?c}`, map[string]any{"s": "&"})
	require.NoError(t, err)
	assert.Equal(t, "<i>&amp;</i> true false", out)
}

func TestAutoEscDirectives(t *testing.T) {
	data := map[string]any{"s": "<b>"}
	out, err := renderNamed(t, "page.ftlh", `${s}|<#noautoesc>${s}|<#autoesc>${s}</#autoesc></#noautoesc>`, data)
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;|<b>|&lt;b&gt;", out)

	out, err = renderNamed(t, "page.ftl", `${.auto_esc?c} <#outputformat "XML">${.output_format} ${.auto_esc?c} ${s}</#outputformat> ${s}`, data)
	require.NoError(t, err)
	assert.Equal(t, "false XML true &lt;b&gt; <b>", out)

	_, err = renderNamed(t, "page.ftl", `<#outputformat "PDF">x</#outputformat>`, nil)
	assert.True(t, IsKind(err, ErrBadArguments))
}

func TestAutoEscHeader(t *testing.T) {
	out, err := renderNamed(t, "page.ftlh", `<#ftl auto_esc=false>${s}`, map[string]any{"s": "<b>"})
	require.NoError(t, err)
	assert.Equal(t, "<b>", out)
}

func TestEscapeDirective(t *testing.T) {
	data := map[string]any{"s": "<b>"}
	out, err := renderNamed(t, "page.ftl", `<#escape x as x?html>${s} <#noescape>${s}</#noescape></#escape> ${s}`, data)
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt; <b> <b>", out)

	out, err = renderNamed(t, "page.ftl", `<#escape x as (x!"-")?upper_case>${missing!} ${s}</#escape>`, data)
	require.NoError(t, err)
	assert.Equal(t, " <B>", out)

	_, err = renderNamed(t, "page.ftlh", `<#escape x as x?html>${s}</#escape>`, data)
	assert.True(t, IsKind(err, ErrInvalidOperation))
}

func TestCompressDirective(t *testing.T) {
	out, err := renderNamed(t, "page.ftl", "<#compress>\n<p>\n    ${s}   and\t more\n</p>\n\n</#compress>", map[string]any{"s": "x"})
	require.NoError(t, err)
	assert.Equal(t, "<p>\nx and more\n</p>", out)
}
