package ftl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftlgo/ftl/xmlnode"
)

const bookXML = `<book id="b1"><title>Go</title><chapter n="1"><para>Hello &amp; bye</para></chapter><chapter n="2"><para>Two</para></chapter></book>`

func bookModel(t *testing.T) map[string]any {
	t.Helper()
	doc, err := xmlnode.ParseString(bookXML)
	require.NoError(t, err)
	return map[string]any{"doc": doc}
}

func TestNodeMemberAccess(t *testing.T) {
	data := bookModel(t)
	runRenderCases(t, data, []renderCase{
		{"children", `${doc.book.title} ${doc.book.chapter?size} ${doc.book.chapter[1].para}`, "Go 2 Two"},
		{"attributes", `${doc.book["@id"]} ${doc.book.chapter[0]["@n"]} ${doc.book["@missing"]!"none"}`, "b1 1 none"},
		{"wildcards", `${doc.book["*"]?size} ${doc.book["**"]?size}`, "3 5"},
		{"text", `${doc.book.chapter[0]["@@text"]}`, "Hello & bye"},
	})
}

func TestNodeBuiltins(t *testing.T) {
	data := bookModel(t)
	runRenderCases(t, data, []renderCase{
		{"names", `${doc.book.title?node_name} ${doc.book.title?node_type} ${doc?node_type}`, "title element document"},
		{"family", `${doc.book?children?size} ${doc.book.chapter[0]?parent?node_name} ${doc.book.title?root?node_type}`, "3 book document"},
		{"ancestors", `<#list doc.book.chapter[0].para?ancestors as a>${a?node_name} </#list>`, "chapter book @document "},
		{"named ancestors", `${doc.book.chapter[0].para?ancestors("book")?size}`, "1"},
		{"type test", `${doc.book?is_node?c} ${"x"?is_node?c}`, "true false"},
	})
}

func TestVisit(t *testing.T) {
	const handlers = `<#macro book>[${.node["@id"]}<#recurse>]</#macro>` +
		`<#macro title>T:${.node}</#macro>` +
		`<#macro chapter>(${.node["@n"]}:<#recurse>)</#macro>` +
		`<#macro para>${.node?node_name}=<#recurse></#macro>`
	assertRender(t, handlers+`<#visit doc>`, bookModel(t), "[b1T:Go(1:para=Hello & bye)(2:para=Two)]")
}

func TestVisitEscapesText(t *testing.T) {
	tmpl, err := NewConfiguration().TemplateFromString("page.ftlh", `<#macro para><p><#recurse></p></#macro><#recurse doc.book.chapter[0]>`)
	require.NoError(t, err)
	out, err := tmpl.Render(bookModel(t))
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello &amp; bye</p>", out)
}

func TestVisitUsingLibrary(t *testing.T) {
	cfg := newLoaderConfig(map[string]string{
		"handlers.ftl": `<#macro book>{<#recurse>}</#macro><#macro title>${.node}</#macro><#macro chapter>+</#macro>`,
	})
	out, err := renderString(cfg, `<#import "handlers.ftl" as h><#visit doc using h>|<#visit doc.book using "handlers.ftl">`, bookModel(t))
	require.NoError(t, err)
	assert.Equal(t, "{Go++}|{Go++}", out)
}

func TestVisitErrors(t *testing.T) {
	data := bookModel(t)
	err := assertRenderErrorKind(t, `<#visit doc>`, data, ErrInvalidReference)
	assert.Contains(t, err.Message, `"book"`)
	assertRenderErrorKind(t, `<#visit "x">`, data, ErrInvalidType)
	assertRenderErrorKind(t, `<#recurse>`, data, ErrInvalidOperation)
}
