package main

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ftlgo/ftl"
)

const description = "Render FreeMarker-style templates with a YAML data model."

// cli is the top-level command line.
type cli struct {
	Log logConfig `embed:"" group:"log" prefix:"log-"`

	Render renderCmd `cmd:"" help:"Render a template to stdout or a file."`
	Check  checkCmd  `cmd:"" help:"Parse templates and report syntax errors."`
}

func run(ctx context.Context, exit func(int), args ...string) error {
	return execute(ctx, os.Stdout, os.Stderr, exit, args)
}

// execute parses args and runs the selected command. Template errors are
// written to stderr with their source excerpt before being returned.
func execute(ctx context.Context, stdout, stderr io.Writer, exit func(int), args []string) error {
	var c cli
	parser, err := kong.New(&c,
		kong.Name("ftl"),
		kong.Description(description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.Writers(stdout, stderr),
		kong.ExplicitGroups([]kong.Group{c.Log.group()}),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true, Summary: true}),
	)
	if err != nil {
		return err
	}
	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logger := c.Log.logger(stderr)
	ktx.BindTo(ctx, (*context.Context)(nil))
	ktx.BindTo(stdout, (*io.Writer)(nil))
	ktx.Bind(logger)

	err = ktx.Run()
	var tErr *ftl.Error
	if goerrors.As(err, &tErr) {
		_, _ = fmt.Fprintf(stderr, "%+v\n", tErr)
	}
	return err
}
