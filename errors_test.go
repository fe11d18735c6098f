package ftl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorLocation(t *testing.T) {
	_, err := renderString(NewConfiguration(), "line one\n  ${user.name}", map[string]any{"user": map[string]any{"id": 7}})
	require.Error(t, err)
	assert.Equal(t, "invalid reference: user.name is undefined (in test.ftl at line 2, column 5)", err.Error())

	var tErr *Error
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "test.ftl", tErr.Name)
	assert.Equal(t, "user.name", tErr.Expr)
	require.NotNil(t, tErr.DebugInfo)
	assert.Equal(t, map[string]string{"user": `{"id": 7}`}, tErr.DebugInfo.ReferencedVars)
}

func TestErrorDebugOutput(t *testing.T) {
	_, err := renderString(NewConfiguration(), "<#macro card>\n${title?upper_case}\n</#macro>\n<@card/>", map[string]any{"title": 5})
	require.Error(t, err)
	out := fmt.Sprintf("%+v", err)
	assert.Contains(t, out, "invalid type: ?upper_case expects a string, got number")
	assert.Contains(t, out, "   2 > ${title?upper_case}")
	assert.Contains(t, out, "Macro stack:\n    - card (test.ftl)")
	assert.Contains(t, out, "    title: 5")
}

func TestSyntaxErrorLocation(t *testing.T) {
	_, err := NewConfiguration().TemplateFromString("broken.ftl", "ok\n<#if x>\nno end")
	require.Error(t, err)
	var tErr *Error
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, ErrSyntax, tErr.Kind)
	assert.Equal(t, "broken.ftl", tErr.Name)
	require.NotNil(t, tErr.Span)
}

var errQuota = errors.New("quota exceeded")

func TestHostErrorsKeepTheirCause(t *testing.T) {
	cfg := NewConfiguration()
	cfg.SetSharedVariable("fetch", func(string) (string, error) { return "", errQuota })
	_, err := renderString(cfg, `${fetch("x")}`, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrEval))
	assert.ErrorIs(t, err, errQuota)
	assert.Contains(t, fmt.Sprintf("%+v", err), "quota exceeded")

	out, err := renderString(cfg, `<#attempt>${fetch("x")}<#recover>${.error?contains("quota")?c}</#attempt>`, nil)
	require.NoError(t, err)
	assert.Equal(t, "true", out)
}
