package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	in, err := ParseInput("greet", "$settings: {locale: de-DE}\nuser: Ann\n---\nHello ${user}!\n")
	require.NoError(t, err)
	assert.Equal(t, "greet", in.Name)
	assert.Equal(t, map[string]string{"locale": "de-DE"}, in.Settings)
	assert.Equal(t, "Hello ${user}!\n", in.Template)
	assert.Contains(t, in.Data, "user: Ann")
}

func TestParseInputWithoutData(t *testing.T) {
	in, err := ParseInput("t", "---\n${1}")
	require.NoError(t, err)
	assert.Empty(t, in.Data)
	assert.Equal(t, "${1}", in.Template)

	in, err = ParseInput("t", "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", in.Template)
	assert.Nil(t, in.Settings)
}

func TestParseExpected(t *testing.T) {
	exp, err := ParseExpected("description: fails\nerror: invalid reference\n---\n")
	require.NoError(t, err)
	assert.Equal(t, "fails", exp.Description)
	assert.Equal(t, "invalid reference", exp.Error)
	assert.Empty(t, exp.Output)

	exp, err = ParseExpected("no metadata")
	require.NoError(t, err)
	assert.Equal(t, "no metadata", exp.Output)
}

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff("a", "a"))
	assert.Contains(t, Diff("a", "b"), "=== Actual ===\nb⏎")
}
