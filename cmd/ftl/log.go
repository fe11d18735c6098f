package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"
)

type logConfig struct {
	Level  string `default:"warn" enum:"debug,info,warn,error" help:"Set log level."`
	Format string `default:"text" enum:"text,json"             help:"Set log format."`
}

func (*logConfig) group() kong.Group {
	return kong.Group{Key: "log", Title: "Logging options"}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}

// logger builds the logger for the run and installs it as the default, so
// failures reported by main use the same handler.
func (c *logConfig) logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	var h slog.Handler
	if c.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}
