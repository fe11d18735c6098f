package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	exit := func(code int) { t.Fatalf("unexpected exit %d: %s", code, stderr.String()) }
	err := execute(context.Background(), &stdout, &stderr, exit, args)
	return stdout.String(), stderr.String(), err
}

func TestRender(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"hello.ftl":  `Hello ${user}! <#list items as i>${i}<#sep>, </#list>`,
		"model.yaml": "user: Ann\nitems: [1, 2, 3]\n",
	})
	out, _, err := runCLI(t, "render", "--dir", dir, "--data", filepath.Join(dir, "model.yaml"), "hello.ftl")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ann! 1, 2, 3", out)
}

func TestRenderXMLAndSettings(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"feed.ftl": `<#list doc.feed.entry as e>${e.@id}=${e.title} </#list>${1234.5}`,
		"feed.xml": `<feed><entry id="1"><title>a</title></entry><entry id="2"><title>b</title></entry></feed>`,
	})
	out, _, err := runCLI(t, "render", "--dir", dir,
		"--xml", "doc="+filepath.Join(dir, "feed.xml"),
		"--set", "locale=de-DE",
		"feed.ftl")
	require.NoError(t, err)
	assert.Equal(t, "1=a 2=b 1.234,5", out)
}

func TestRenderToFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{"t.ftl": `${"x"?upper_case}`})
	target := filepath.Join(dir, "out.txt")
	_, _, err := runCLI(t, "render", "--dir", dir, "-o", target, "t.ftl")
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "X", string(data))
}

func TestRenderErrorShowsExcerpt(t *testing.T) {
	dir := writeFiles(t, map[string]string{"bad.ftl": "line one\n${missing}\n"})
	_, stderr, err := runCLI(t, "render", "--dir", dir, "bad.ftl")
	require.Error(t, err)
	assert.Contains(t, stderr, "missing")
}

func TestCheck(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"good.ftl": `<#if x>y</#if>`,
		"bad.ftl":  `<#if x>y`,
	})
	out, _, err := runCLI(t, "check", "--dir", dir, "good.ftl", "bad.ftl")
	require.Error(t, err)
	assert.Contains(t, out, "good.ftl: ok")
	assert.Contains(t, out, "bad.ftl:")
	assert.EqualError(t, err, "1 of 2 templates failed")
}
