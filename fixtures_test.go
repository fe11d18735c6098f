package ftl

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftlgo/ftl/internal/testutil"
)

func TestFixtures(t *testing.T) {
	fixtures, err := testutil.LoadFixtures("testdata")
	require.NoError(t, err)
	require.NotEmpty(t, fixtures)

	for _, fx := range fixtures {
		t.Run(fx.Input.Name, func(t *testing.T) {
			out, err := renderFixture(fx.Input)
			if fx.Expected.Error != "" {
				require.Error(t, err, fx.Expected.Description)
				var tErr *Error
				require.True(t, errors.As(err, &tErr))
				assert.Equal(t, fx.Expected.Error, tErr.Kind.String())
				return
			}
			require.NoError(t, err, fx.Expected.Description)
			if diff := testutil.Diff(fx.Expected.Output, out); diff != "" {
				t.Errorf("%s:\n%s", fx.Expected.Description, diff)
			}
		})
	}
}

func renderFixture(in *testutil.Input) (string, error) {
	model, err := ParseDataModel(strings.NewReader(in.Data))
	if err != nil {
		return "", err
	}
	tmpl, err := NewConfiguration().TemplateFromString(in.Name+".ftl", in.Template)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	env, err := tmpl.CreateEnvironment(context.Background(), model, &sb)
	if err != nil {
		return "", err
	}
	for _, name := range slices.Sorted(maps.Keys(in.Settings)) {
		if err := env.SetSetting(name, in.Settings[name]); err != nil {
			return "", err
		}
	}
	err = env.Process()
	return sb.String(), err
}
