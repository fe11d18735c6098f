// Command ftl renders and checks templates from the command line.
//
//	ftl render page.ftlh --data model.yaml --xml doc=feed.xml
//	ftl check --dir templates page.ftlh layout.ftl
package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	if err := run(context.Background(), os.Exit, os.Args[1:]...); err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}
