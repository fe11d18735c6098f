package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/ftlgo/ftl"
	"github.com/ftlgo/ftl/value"
	"github.com/ftlgo/ftl/xmlnode"
)

// templateOptions are shared by the commands that load templates.
type templateOptions struct {
	Dir      string `default:"." help:"Directory templates are loaded from." short:"D" type:"existingdir"`
	Settings string `help:"YAML settings file." short:"s" type:"existingfile"`
}

func (o *templateOptions) configuration(logger *slog.Logger) (*ftl.Configuration, error) {
	settings := ftl.DefaultSettings()
	if o.Settings != "" {
		var err error
		if settings, err = ftl.LoadSettings(o.Settings); err != nil {
			return nil, err
		}
	}
	return ftl.NewConfiguration(
		ftl.WithSettings(settings),
		ftl.WithLoader(ftl.FileSystemLoader(os.DirFS(o.Dir))),
		ftl.WithLogger(logger),
	), nil
}

type renderCmd struct {
	Options templateOptions `embed:""`

	Template string            `arg:"" help:"Template name, relative to --dir."`
	Data     string            `help:"YAML or JSON data model file, or '-' for stdin." short:"d"`
	XML      map[string]string `help:"Expose an XML file as a node variable (name=file)." name:"xml"`
	Set      map[string]string `help:"Override a setting for this render (name=value)."`
	Output   string            `help:"Write to this file instead of stdout." short:"o"`
}

// Run renders the template.
func (r *renderCmd) Run(ctx context.Context, stdout io.Writer, logger *slog.Logger) (err error) {
	cfg, err := r.Options.configuration(logger)
	if err != nil {
		return err
	}
	tmpl, err := cfg.GetTemplate(r.Template)
	if err != nil {
		return err
	}
	model, err := r.model()
	if err != nil {
		return err
	}

	out := stdout
	if r.Output != "" {
		f, err := os.Create(r.Output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}
	w := bufio.NewWriter(out)

	env, err := tmpl.CreateEnvironment(ctx, model, w)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(r.Set))
	for name := range r.Set {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := env.SetSetting(name, r.Set[name]); err != nil {
			return err
		}
	}

	logger.Info("rendering", slog.String("template", tmpl.Name()), slog.String("output_format", tmpl.OutputFormat()))
	if err := env.Process(); err != nil {
		_ = w.Flush()
		return err
	}
	return w.Flush()
}

// model reads the data model and adds the XML documents to it.
func (r *renderCmd) model() (*value.Hash, error) {
	model := value.NewHash()
	if r.Data != "" {
		var in io.Reader = os.Stdin
		if r.Data != "-" {
			f, err := os.Open(r.Data)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			in = f
		}
		var err error
		if model, err = ftl.ParseDataModel(in); err != nil {
			return nil, fmt.Errorf("%s: %w", r.Data, err)
		}
	}
	for name, path := range r.XML {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		doc, err := xmlnode.Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		model.Set(name, value.FromNode(doc))
	}
	return model, nil
}

type checkCmd struct {
	Options templateOptions `embed:""`

	Templates []string `arg:"" help:"Template names, relative to --dir."`
}

// Run parses every template and reports each failure.
func (c *checkCmd) Run(stdout io.Writer, logger *slog.Logger) error {
	cfg, err := c.Options.configuration(logger)
	if err != nil {
		return err
	}
	failed := 0
	for _, name := range c.Templates {
		if _, err := cfg.GetTemplate(name); err != nil {
			failed++
			_, _ = fmt.Fprintf(stdout, "%s: %+v\n", name, err)
			continue
		}
		_, _ = fmt.Fprintf(stdout, "%s: ok\n", name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(c.Templates))
	}
	return nil
}
