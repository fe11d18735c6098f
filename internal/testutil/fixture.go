// Package testutil loads the template fixtures under testdata.
//
// A fixture is a pair of files. The input, inputs/NAME.ftl, holds a YAML
// data model, a line with "---", and the template:
//
//	$settings: {locale: de-DE}
//	user: Ann
//	---
//	Hello ${user}!
//
// The expected result, expected/NAME.txt, holds YAML metadata, a "---"
// line and the exact output. Metadata may name the error kind the render
// must fail with instead:
//
//	description: greets the user
//	---
//	Hello Ann!
package testutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

const separator = "\n---\n"

// Input is a parsed fixture input.
type Input struct {
	Name string
	// Data is the YAML data model, $settings included.
	Data string
	// Settings holds the $settings entry of the data model.
	Settings map[string]string
	Template string
}

// Expected is a parsed expected result.
type Expected struct {
	Description string `yaml:"description"`
	// Error is the name of the error kind the render fails with.
	Error  string `yaml:"error"`
	Output string `yaml:"-"`
}

// ParseInput splits fixture input content into data model and template.
func ParseInput(name, content string) (*Input, error) {
	in := &Input{Name: name}
	var data, tmpl string
	if rest, ok := strings.CutPrefix(content, "---\n"); ok {
		tmpl = rest
	} else if d, t, ok := strings.Cut(content, separator); ok {
		data, tmpl = d, t
	} else {
		tmpl = content
	}
	in.Data = data
	in.Template = tmpl

	var meta struct {
		Settings map[string]string `yaml:"$settings"`
	}
	if strings.TrimSpace(data) != "" {
		if err := yaml.Unmarshal([]byte(data), &meta); err != nil {
			return nil, err
		}
	}
	in.Settings = meta.Settings
	return in, nil
}

// ParseExpected reads metadata and the expected output.
func ParseExpected(content string) (*Expected, error) {
	exp := &Expected{}
	content = strings.TrimPrefix(content, "---\n")
	meta, out, found := strings.Cut(content, separator)
	if !found {
		exp.Output = content
		return exp, nil
	}
	if err := yaml.Unmarshal([]byte(meta), exp); err != nil {
		return nil, err
	}
	exp.Output = out
	return exp, nil
}

// Fixture is an input with its expected result.
type Fixture struct {
	Input    *Input
	Expected *Expected
}

// LoadFixtures reads every inputs/*.ftl under dir and its expected file.
func LoadFixtures(dir string) ([]Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "inputs", "*.ftl"))
	if err != nil {
		return nil, err
	}
	fixtures := make([]Fixture, 0, len(paths))
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".ftl")
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		in, err := ParseInput(name, string(content))
		if err != nil {
			return nil, err
		}
		expContent, err := os.ReadFile(filepath.Join(dir, "expected", name+".txt"))
		if err != nil {
			return nil, err
		}
		exp, err := ParseExpected(string(expContent))
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, Fixture{Input: in, Expected: exp})
	}
	return fixtures, nil
}

// Diff shows expected and actual output, marking missing final newlines.
func Diff(expected, actual string) string {
	if expected == actual {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("=== Expected ===\n")
	sb.WriteString(expected)
	if !strings.HasSuffix(expected, "\n") {
		sb.WriteString("⏎\n")
	}
	sb.WriteString("=== Actual ===\n")
	sb.WriteString(actual)
	if !strings.HasSuffix(actual, "\n") {
		sb.WriteString("⏎\n")
	}
	sb.WriteString("=== End ===\n")
	return sb.String()
}
